// Package resolve implements the Dependency Walker (C5) and Resolver
// Orchestrator (C8): breadth-first transitive closure over package
// coordinates, and the public fan-out entry point that turns a parsed set
// of directives into a flat list of binary artifact paths.
//
// Grounded on the teacher's core/resolver/walker.go for the BFS traversal
// shape, deliberately trimmed of its semver-range satisfaction, cycle/
// downgrade detection, and diamond-dependency conflict resolution — spec.md
// §1 names all three as explicit Non-goals of this simpler core.
package resolve

import (
	"context"
	"strings"

	"github.com/willibrandon/csx/directive"
	"github.com/willibrandon/csx/internal/observability"
	"github.com/willibrandon/csx/manifest"
)

// PackageCoord is the canonical (id, version) identity the walker visits,
// compared case-insensitively per spec.md §3.
type PackageCoord struct {
	ID      string
	Version string
}

// Key returns the "{id}@{version}" dedup key, both lowercased.
func (c PackageCoord) Key() string {
	return strings.ToLower(c.ID) + "@" + strings.ToLower(c.Version)
}

// VersionResolver resolves the latest listed version of a versionless
// package reference.
type VersionResolver interface {
	LatestVersion(ctx context.Context, id string) (string, error)
}

// ManifestFetcher retrieves a package's declared dependencies for a given
// target runtime. Implementations typically download the archive and
// delegate to manifest.Dependencies (C3); failures are expected to be rare
// and are handled entirely inside the implementation per spec.md §4.3 —
// ManifestFetcher itself must never return an error for a routine
// "couldn't read this manifest" case, only for truly unexpected faults.
type ManifestFetcher interface {
	Dependencies(ctx context.Context, id, version, target string) ([]manifest.Dependency, error)
}

// Walker performs the breadth-first transitive closure described in
// spec.md §4.5.
type Walker struct {
	Versions  VersionResolver
	Manifests ManifestFetcher
	Target    string
	Logger    observability.Logger
}

// NewWalker constructs a Walker. logger may be nil.
func NewWalker(versions VersionResolver, manifests ManifestFetcher, target string, logger observability.Logger) *Walker {
	if logger == nil {
		logger = observability.NewNullLogger()
	}
	return &Walker{Versions: versions, Manifests: manifests, Target: target, Logger: logger}
}

// Walk binds versionless refs against Versions, then performs the BFS
// closure, visiting each (id, version) at most once (spec.md invariant 3)
// and preserving first-seen discovery order in the returned slice.
func (w *Walker) Walk(ctx context.Context, refs []directive.PackageRef) ([]PackageCoord, error) {
	ctx, span := observability.StartWalkSpan(ctx, len(refs))
	defer observability.EndSpanWithError(span, nil)

	seen := make(map[string]bool)
	var resolved []PackageCoord
	var queue []PackageCoord

	for _, ref := range refs {
		version := ref.Version
		if version == "" {
			v, err := w.Versions.LatestVersion(ctx, ref.ID)
			if err != nil {
				w.Logger.WarnContext(ctx, "version resolution failed for {PackageID}, dropping: {Error}", ref.ID, err)
				continue
			}
			version = v
		}
		queue = append(queue, PackageCoord{ID: ref.ID, Version: version})
	}

	for len(queue) > 0 {
		coord := queue[0]
		queue = queue[1:]

		key := coord.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		resolved = append(resolved, coord)
		observability.WalkerVisitsTotal.WithLabelValues("resolved").Inc()

		depCtx, depSpan := observability.StartDependencyResolutionSpan(ctx, coord.ID, w.Target)
		deps, err := w.Manifests.Dependencies(depCtx, coord.ID, coord.Version, w.Target)
		observability.EndSpanWithError(depSpan, err)
		if err != nil {
			observability.WalkerVisitsTotal.WithLabelValues("pruned").Inc()
			w.Logger.WarnContext(ctx, "manifest unreadable for {PackageID} {Version}, pruning subtree: {Error}", coord.ID, coord.Version, err)
			continue
		}

		for _, d := range deps {
			dkey := strings.ToLower(d.ID) + "@" + strings.ToLower(d.Version)
			if seen[dkey] {
				continue
			}
			queue = append(queue, PackageCoord{ID: d.ID, Version: d.Version})
		}
	}

	return resolved, nil
}
