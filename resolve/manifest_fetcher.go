package resolve

import (
	"context"

	"github.com/willibrandon/csx/internal/observability"
	"github.com/willibrandon/csx/manifest"
)

// archiveFetcher is the subset of registry.Client a ManifestFetcher needs.
type archiveFetcher interface {
	Archive(ctx context.Context, id, version string) ([]byte, error)
}

// ArchiveManifestFetcher implements ManifestFetcher by downloading a
// package's archive and delegating to manifest.Dependencies (C3). Per
// spec.md §4.3, download/unzip/parse failures are not fatal: they are
// logged and reported as an empty dependency list, never as an error from
// Dependencies.
type ArchiveManifestFetcher struct {
	Archives archiveFetcher
	Versions manifest.VersionResolver
	Logger   observability.Logger
}

// NewArchiveManifestFetcher constructs a ManifestFetcher backed by archives
// and versions. logger may be nil.
func NewArchiveManifestFetcher(archives archiveFetcher, versions manifest.VersionResolver, logger observability.Logger) *ArchiveManifestFetcher {
	if logger == nil {
		logger = observability.NewNullLogger()
	}
	return &ArchiveManifestFetcher{Archives: archives, Versions: versions, Logger: logger}
}

// Dependencies implements ManifestFetcher.
func (f *ArchiveManifestFetcher) Dependencies(ctx context.Context, id, version, target string) ([]manifest.Dependency, error) {
	archive, err := f.Archives.Archive(ctx, id, version)
	if err != nil {
		f.Logger.WarnContext(ctx, "manifest fetch failed for {PackageID} {Version}: {Error}", id, version, err)
		return nil, nil
	}

	deps, err := manifest.Dependencies(ctx, archive, target, f.Versions, f.Logger)
	if err != nil {
		f.Logger.WarnContext(ctx, "manifest unreadable for {PackageID} {Version}: {Error}", id, version, err)
		return nil, nil
	}
	return deps, nil
}
