package resolve

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/willibrandon/csx/artifacts"
	"github.com/willibrandon/csx/directive"
	"github.com/willibrandon/csx/frameworks"
	"github.com/willibrandon/csx/internal/futuremap"
	"github.com/willibrandon/csx/internal/observability"
)

// ErrInvalidInput is returned when resolve is called with a malformed
// configuration, e.g. an empty cache root (spec.md §7).
var ErrInvalidInput = fmt.Errorf("resolve: invalid input")

// CacheEnsurer is the subset of cachefetch.Engine the orchestrator needs.
type CacheEnsurer interface {
	EnsureCached(ctx context.Context, id, version string) (string, error)
}

// Orchestrator is the public entry point (C8). It fans out per-package
// work under a concurrency limit, deduplicates in-flight work across
// concurrent callers for the orchestrator's lifetime, and aggregates
// result paths.
//
// Grounded on the teacher's core/resolver/parallel_resolver.go for the
// semaphore-gated fan-out shape, and on core/resolver/resolution_cache.go
// (via internal/futuremap) for the memoized-future in-flight dedup pattern
// spec.md §9 calls for.
type Orchestrator struct {
	Walker *Walker
	Cache  CacheEnsurer
	Logger observability.Logger

	// Concurrency bounds the number of concurrent download+extract+select
	// operations. Defaults to runtime.NumCPU() when <= 0.
	Concurrency int

	sem      chan struct{}
	semOnce  sync.Once
	inflight futuremap.Map[[]string]
}

// NewOrchestrator constructs an Orchestrator. logger may be nil.
func NewOrchestrator(walker *Walker, cache CacheEnsurer, concurrency int, logger observability.Logger) *Orchestrator {
	if logger == nil {
		logger = observability.NewNullLogger()
	}
	return &Orchestrator{
		Walker:      walker,
		Cache:       cache,
		Logger:      logger,
		Concurrency: concurrency,
	}
}

func (o *Orchestrator) semaphore() chan struct{} {
	o.semOnce.Do(func() {
		n := o.Concurrency
		if n <= 0 {
			n = runtime.NumCPU()
		}
		o.sem = make(chan struct{}, n)
	})
	return o.sem
}

// Resolve implements the public contract from spec.md §4.8:
//
//	resolve(refs, cacheRoot, target) -> []string
//
// cacheRoot must be non-empty and is created if absent. target defaults to
// frameworks.DefaultTarget when empty. Per-package failures are logged and
// skipped; Resolve only fails as a whole for InvalidInput or an
// irrecoverable failure creating cacheRoot.
func (o *Orchestrator) Resolve(ctx context.Context, refs []directive.PackageRef, cacheRoot, target string) (result []string, err error) {
	if strings.TrimSpace(cacheRoot) == "" {
		return nil, fmt.Errorf("%w: cacheRoot must not be empty", ErrInvalidInput)
	}
	if target == "" {
		target = string(frameworks.DefaultTarget)
	}
	if err := os.MkdirAll(cacheRoot, 0o755); err != nil {
		return nil, fmt.Errorf("resolve: create cache root: %w", err)
	}

	ctx, span := observability.StartOrchestrationSpan(ctx, len(refs))
	defer func() { observability.EndSpanWithError(span, err) }()

	coords, err := o.Walker.Walk(ctx, refs)
	if err != nil {
		return nil, err
	}

	dedup := make(map[string]bool)
	results := make([][]string, len(coords))
	var wg sync.WaitGroup

	for i, coord := range coords {
		key := coord.Key()
		if dedup[key] {
			continue
		}
		dedup[key] = true

		wg.Add(1)
		go func(i int, coord PackageCoord) {
			defer wg.Done()
			paths, artifactErr := o.artifactsFor(ctx, coord, cacheRoot, target)
			if artifactErr != nil {
				o.Logger.WarnContext(ctx, "skipping {PackageID} {Version} after failure: {Error}", coord.ID, coord.Version, artifactErr)
				return
			}
			results[i] = paths
		}(i, coord)
	}
	wg.Wait()

	var out []string
	for _, paths := range results {
		out = append(out, paths...)
	}
	return out, nil
}

// artifactsFor ensures coord is cached and selects its artifacts, sharing
// in-flight work across concurrent callers keyed by
// "{id}@{version}|cacheRoot|target" (spec.md §4.8) and gating actual work
// behind the concurrency semaphore. A cache hit still goes through the
// semaphore here (the in-flight map, not the semaphore, is what a second
// caller for the same key bypasses); callers that want a lock-free cache
// read can call cachefetch.IsValid directly before invoking Resolve.
func (o *Orchestrator) artifactsFor(ctx context.Context, coord PackageCoord, cacheRoot, target string) ([]string, error) {
	key := fmt.Sprintf("%s|%s|%s", coord.Key(), cacheRoot, target)

	return o.inflight.Do(key, func() ([]string, error) {
		sem := o.semaphore()
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		dir, err := o.Cache.EnsureCached(ctx, coord.ID, coord.Version)
		if err != nil {
			return nil, err
		}

		_, span := observability.StartArtifactSelectionSpan(ctx, coord.ID, target)
		paths := artifacts.Select(dir, target, o.Logger)
		observability.EndSpanWithError(span, nil)

		return paths, nil
	})
}
