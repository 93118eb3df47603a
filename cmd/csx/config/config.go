// Package config resolves csx's run-time configuration: cache location,
// target runtime, concurrency, and the registry source, layering
// environment variables over built-in defaults. Core packages (registry,
// cachefetch, resolve, ...) never read the environment themselves — only
// this package does, mirroring the teacher's cmd/gonuget/config package
// which keeps NuGet.config discovery out of the restore/package libraries.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/willibrandon/csx/frameworks"
)

// Config is the fully resolved set of knobs a csx invocation runs with.
type Config struct {
	// CacheRoot is the directory package archives are extracted under.
	CacheRoot string
	// Target is the runtime identifier artifact selection resolves
	// against, e.g. "core-8.0".
	Target string
	// Concurrency bounds simultaneous download+extract operations.
	// <= 0 means "let the orchestrator pick (runtime.NumCPU())".
	Concurrency int
	// SearchBaseURL and FlatContainerURL locate the NuGet-compatible
	// registry csx resolves packages against.
	SearchBaseURL    string
	FlatContainerURL string
}

const (
	envCacheRoot        = "CSX_CACHE_DIR"
	envTarget           = "CSX_TARGET"
	envConcurrency      = "CSX_CONCURRENCY"
	envSearchBaseURL    = "CSX_SEARCH_URL"
	envFlatContainerURL = "CSX_FLATCONTAINER_URL"
)

// DefaultCacheRoot returns the platform-appropriate default package cache
// directory: $CSX_CACHE_DIR if set, otherwise ~/.csx/packages.
func DefaultCacheRoot() string {
	if v := os.Getenv(envCacheRoot); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".csx", "packages")
	}
	return filepath.Join(home, ".csx", "packages")
}

// Load builds a Config from defaults overridden by environment variables.
// CLI flags are applied on top of the result by the caller, so flags
// always win over the environment, which always wins over built-ins.
func Load() *Config {
	cfg := &Config{
		CacheRoot:        DefaultCacheRoot(),
		Target:           string(frameworks.DefaultTarget),
		Concurrency:      runtime.NumCPU(),
		SearchBaseURL:    "https://azuresearch-usnc.nuget.org",
		FlatContainerURL: "https://api.nuget.org/v3-flatcontainer",
	}

	if v := os.Getenv(envTarget); v != "" {
		cfg.Target = v
	}
	if v := os.Getenv(envConcurrency); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Concurrency = n
		}
	}
	if v := os.Getenv(envSearchBaseURL); v != "" {
		cfg.SearchBaseURL = v
	}
	if v := os.Getenv(envFlatContainerURL); v != "" {
		cfg.FlatContainerURL = v
	}

	return cfg
}
