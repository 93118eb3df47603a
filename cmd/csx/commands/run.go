package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/willibrandon/csx/cache"
	"github.com/willibrandon/csx/cachefetch"
	"github.com/willibrandon/csx/cmd/csx/config"
	"github.com/willibrandon/csx/cmd/csx/output"
	"github.com/willibrandon/csx/directive"
	"github.com/willibrandon/csx/frameworks"
	"github.com/willibrandon/csx/internal/nethttp"
	"github.com/willibrandon/csx/internal/observability"
	"github.com/willibrandon/csx/registry"
	"github.com/willibrandon/csx/resolve"
)

// metadataMemCacheMaxBytes bounds the in-process L1 tier of the registry's
// metadata cache; also the denominator CacheHealthCheck reports usage against.
const metadataMemCacheMaxBytes = 8 << 20

type runOptions struct {
	target          string
	cacheDir        string
	concurrency     int
	resolveOnly     bool
	diagnosticsJSON string
	verbosity       string
	metricsAddr     string
	trace           bool
	otlpEndpoint    string
}

// newRunCommand builds `csx run <script>`, the entry point that parses a
// script's dependency directives and resolves them to a flat artifact
// list (spec.md §2, the C1-through-C8 pipeline end to end).
func newRunCommand(console *output.Console) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Resolve a script's #nuget/#package/#r directives and assemble its binaries",
		Long: `run parses a C# script's directive comments, resolves the named packages
and their transitive dependencies against nuget.org, downloads and
extracts them into the local package cache, and prints the runtime
binaries a host would need to load.

Examples:
  csx run script.csx
  csx run script.csx --target core-9.0
  csx run script.csx --resolve-only
  csx run script.csx --diagnostics-json out.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := output.ParseVerbosity(opts.verbosity)
			if err != nil {
				return err
			}
			console.SetVerbosity(v)
			return runScript(cmd.Context(), console, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.target, "target", "", "Target runtime identifier (default: "+string(frameworks.DefaultTarget)+")")
	cmd.Flags().StringVar(&opts.cacheDir, "cache-dir", "", "Package cache directory (default: $CSX_CACHE_DIR or ~/.csx/packages)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "Maximum concurrent downloads (default: number of CPUs)")
	cmd.Flags().BoolVar(&opts.resolveOnly, "resolve-only", false, "Resolve and print artifact paths without side effects beyond the cache")
	cmd.Flags().StringVar(&opts.diagnosticsJSON, "diagnostics-json", "", "Write a machine-readable resolution report to this path")
	cmd.Flags().StringVarP(&opts.verbosity, "verbosity", "v", "normal", "Verbosity: quiet, normal, detailed, or diagnostic")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address for the run's duration (debug use, e.g. 127.0.0.1:9090)")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "Emit OpenTelemetry spans for this run")
	cmd.Flags().StringVar(&opts.otlpEndpoint, "otlp-endpoint", "", "OTLP gRPC collector endpoint for --trace (default: print spans to stdout)")

	return cmd
}

func runScript(ctx context.Context, console *output.Console, scriptPath string, opts *runOptions) error {
	start := time.Now()
	runID := uuid.NewString()

	source, err := os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}

	refs := directive.Parse(string(source))
	if len(refs) == 0 {
		console.Info("no package directives found in %s", scriptPath)
		return nil
	}

	cfg := config.Load()
	if opts.target != "" {
		cfg.Target = opts.target
	}
	if opts.cacheDir != "" {
		cfg.CacheRoot = opts.cacheDir
	}
	if opts.concurrency > 0 {
		cfg.Concurrency = opts.concurrency
	}

	logLevel := observability.InfoLevel
	if console.Verbosity() >= output.VerbosityDiagnostic {
		logLevel = observability.VerboseLevel
	} else if console.Verbosity() >= output.VerbosityDetailed {
		logLevel = observability.DebugLevel
	}
	// Logs go to stderr, never stdout: --resolve-only and --diagnostics-json
	// both treat stdout/the output file as a machine-readable data channel.
	logger := observability.NewLogger(os.Stderr, logLevel).
		ForContext("RunId", runID).
		ForContext("ScriptPath", scriptPath)

	if opts.trace {
		tracerCfg := observability.DefaultTracerConfig()
		if opts.otlpEndpoint != "" {
			tracerCfg.ExporterType = "otlp"
			tracerCfg.OTLPEndpoint = opts.otlpEndpoint
		}
		tp, err := observability.SetupTracing(ctx, tracerCfg)
		if err != nil {
			return fmt.Errorf("set up tracing: %w", err)
		}
		defer func() {
			if err := observability.ShutdownTracing(context.Background(), tp); err != nil {
				logger.WarnContext(ctx, "tracer shutdown failed: {Error}", err)
			}
		}()
	}

	httpCfg := nethttp.DefaultConfig()
	httpCfg.EnableTracing = opts.trace
	httpClient := nethttp.NewClient(httpCfg)
	regSource := registry.Source{Name: "nuget.org", SearchBaseURL: cfg.SearchBaseURL, FlatContainerURL: cfg.FlatContainerURL}
	regClient := registry.NewClient(httpClient, regSource, logger)

	memCache := cache.NewMemoryCache(512, metadataMemCacheMaxBytes)
	diskCache, err := cache.NewDiskCache(filepath.Join(cfg.CacheRoot, ".http-cache"), 256<<20)
	if err != nil {
		logger.WarnContext(ctx, "metadata disk cache unavailable, falling back to memory only: {Error}", err)
	} else {
		regClient.UseMetadataCache(cache.NewMultiTierCache(memCache, diskCache))
	}

	// The core never starts an HTTP server itself; this is the CLI's
	// serve-adjacent debug mode, opt-in per invocation via --metrics-addr.
	// Mirrors the teacher's own combined metrics+health mux on a local
	// ServeMux rather than the package-level http.DefaultServeMux, since a
	// second --metrics-addr run in the same process would otherwise
	// double-register "/metrics" and panic.
	if opts.metricsAddr != "" {
		hc := observability.NewHealthChecker()
		hc.Register(observability.HTTPSourceHealthCheck("nuget-search", cfg.SearchBaseURL, 5*time.Second))
		hc.Register(observability.HTTPSourceHealthCheck("nuget-flatcontainer", cfg.FlatContainerURL, 5*time.Second))
		// CacheHealthCheck only sees the size it is built with, so rebuild it
		// on every check from the memory cache's current size.
		hc.Register(observability.HealthCheck{
			Name: "metadata-cache",
			Check: func(ctx context.Context) observability.HealthCheckResult {
				return observability.CacheHealthCheck("metadata-cache", memCache.Stats().SizeBytes, metadataMemCacheMaxBytes).Check(ctx)
			},
		})

		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.MetricsHandler())
		mux.Handle("/health", hc.Handler())
		debugServer := &http.Server{Addr: opts.metricsAddr, Handler: mux}

		go func() {
			if err := debugServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WarnContext(ctx, "debug server on {Addr} stopped: {Error}", opts.metricsAddr, err)
			}
		}()
	}

	manifests := resolve.NewArchiveManifestFetcher(regClient, regClient, logger)
	walker := resolve.NewWalker(regClient, manifests, cfg.Target, logger)

	cacheEngine := cachefetch.New(cfg.CacheRoot, regClient, logger)
	orchestrator := resolve.NewOrchestrator(walker, cacheEngine, cfg.Concurrency, logger)

	paths, err := orchestrator.Resolve(ctx, refs, cfg.CacheRoot, cfg.Target)
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	if opts.diagnosticsJSON != "" {
		if err := writeDiagnostics(opts.diagnosticsJSON, scriptPath, cfg, refs, paths, start); err != nil {
			console.Warning("failed to write diagnostics: %v", err)
		}
	}

	if opts.resolveOnly {
		for _, p := range paths {
			console.Println(p)
		}
		return nil
	}

	console.Success("resolved %d artifact(s) for %s", len(paths), scriptPath)
	for _, p := range paths {
		console.Detail("  %s", p)
	}
	return nil
}

func writeDiagnostics(path, script string, cfg *config.Config, refs []directive.PackageRef, paths []string, start time.Time) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	doc := output.NewDiagnostics(script, cfg.Target, cfg.CacheRoot, start)
	doc.ArtifactPaths = paths
	for _, r := range refs {
		doc.Packages = append(doc.Packages, output.ResolvedPackage{ID: r.ID, Version: r.Version})
	}
	doc.ElapsedMs = output.MeasureElapsed(start)
	return output.WriteJSON(f, doc)
}
