// Package cachefetch implements the Fetch/Extract Engine (C6): given a
// package coordinate, it ensures the package's archive is downloaded,
// extracted, and validated under the on-disk cache, returning the cache
// entry's root directory.
//
// An entry is not written to a temporary location and renamed into place:
// the entry directory is removed, recreated and populated where it lives,
// and removed again if population or validation fails. Per-entry
// extraction semantics follow the teacher's packaging/file_io.go. Path-traversal defense (spec.md §4.6 step 6, invariant 5) has
// no teacher analogue — packaging/file_io.go trusts its inputs because the
// teacher only extracts packages it downloaded itself via a signed
// protocol path — so it is implemented directly against spec.md here and
// noted as such in DESIGN.md.
package cachefetch

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/willibrandon/csx/internal/observability"
)

// HashSentinelName is the sentinel file written at a cache entry's root
// recording the base64 SHA-256 of the original archive bytes.
const HashSentinelName = ".package.hash"

// ErrDownloadFailed wraps any failure during archive transfer or
// extraction; the original error is wrapped alongside it and stays
// reachable through errors.Is and errors.As.
var ErrDownloadFailed = errors.New("cachefetch: download or extraction failed")

// ErrIntegrityCheckFailed is returned when a freshly populated cache entry
// fails the cache-entry invariants (missing hash sentinel or .nuspec).
var ErrIntegrityCheckFailed = errors.New("cachefetch: integrity check failed")

// ArchiveFetcher is the subset of the registry client C6 needs: fetching
// raw archive bytes for a package coordinate.
type ArchiveFetcher interface {
	Archive(ctx context.Context, id, version string) ([]byte, error)
}

// Engine ensures packages are present and valid in an on-disk cache rooted
// at CacheRoot.
type Engine struct {
	CacheRoot string
	Fetcher   ArchiveFetcher
	Logger    observability.Logger
}

// New creates an Engine. logger may be nil, in which case diagnostics are
// discarded.
func New(cacheRoot string, fetcher ArchiveFetcher, logger observability.Logger) *Engine {
	if logger == nil {
		logger = observability.NewNullLogger()
	}
	return &Engine{CacheRoot: cacheRoot, Fetcher: fetcher, Logger: logger}
}

// entryDir returns the cache entry directory for (id, version), both
// lowercased per spec.md §3.
func (e *Engine) entryDir(id, version string) string {
	return filepath.Join(e.CacheRoot, strings.ToLower(id), strings.ToLower(version))
}

// IsValid reports whether dir satisfies the cache-entry invariants (spec.md
// §3, invariant 1): it contains the hash sentinel and at least one
// .nuspec-suffixed file at its root.
func IsValid(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, HashSentinelName)); err != nil {
		return false
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(ent.Name()), ".nuspec") {
			return true
		}
	}
	return false
}

// EnsureCached implements ensureCached(P, V) -> cacheDir from spec.md §4.6.
// On a cache hit (existing, valid entry) it issues zero network requests.
func (e *Engine) EnsureCached(ctx context.Context, id, version string) (string, error) {
	dir := e.entryDir(id, version)
	key := strings.ToLower(id) + "@" + strings.ToLower(version)

	ctx, lookupSpan := observability.StartCacheLookupSpan(ctx, key)
	hit := IsValid(dir)
	observability.RecordCacheHit(ctx, hit)
	observability.EndSpanWithError(lookupSpan, nil)

	if hit {
		e.Logger.DebugContext(ctx, "cache hit for {PackageID} {Version}", id, version)
		return dir, nil
	}

	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("cachefetch: clear stale entry for %s %s: %w", id, version, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cachefetch: create entry dir for %s %s: %w", id, version, err)
	}

	downloadCtx, downloadSpan := observability.StartPackageDownloadSpan(ctx, id, version, e.CacheRoot)
	err := e.populate(downloadCtx, dir, id, version)
	observability.EndSpanWithError(downloadSpan, err)
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}

	if !IsValid(dir) {
		_ = os.RemoveAll(dir)
		e.Logger.WarnContext(ctx, "integrity check failed for {PackageID} {Version}", id, version)
		return "", fmt.Errorf("%w: %s %s", ErrIntegrityCheckFailed, id, version)
	}

	return dir, nil
}

func (e *Engine) populate(ctx context.Context, dir, id, version string) error {
	start := time.Now()
	archive, err := e.Fetcher.Archive(ctx, id, version)
	observability.PackageDownloadDuration.WithLabelValues(id).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.PackageDownloadsTotal.WithLabelValues("failure").Inc()
		e.Logger.WarnContext(ctx, "download failed for {PackageID} {Version}: {Error}", id, version, err)
		return fmt.Errorf("%w: %s %s: %w", ErrDownloadFailed, id, version, err)
	}
	observability.PackageDownloadsTotal.WithLabelValues("success").Inc()

	sum := sha256.Sum256(archive)
	hashPath := filepath.Join(dir, HashSentinelName)
	if err := os.WriteFile(hashPath, []byte(base64.StdEncoding.EncodeToString(sum[:])), 0o644); err != nil {
		return fmt.Errorf("%w: %s %s: write hash sentinel: %w", ErrDownloadFailed, id, version, err)
	}

	if err := e.extract(ctx, dir, archive, id, version); err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrDownloadFailed, id, version, err)
	}
	return nil
}

// extract unzips archive into dir, enforcing path safety (spec.md §4.6 step
// 6, invariant 5): an entry whose resolved destination escapes dir is
// skipped with a warning rather than extracted.
func (e *Engine) extract(ctx context.Context, dir string, archive []byte, id, version string) error {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return fmt.Errorf("open archive as zip: %w", err)
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve cache dir: %w", err)
	}

	for _, f := range zr.File {
		if err := e.extractEntry(ctx, root, f, id, version); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) extractEntry(ctx context.Context, root string, f *zip.File, id, version string) error {
	absDest, err := filepath.Abs(filepath.Join(root, f.Name))
	if err != nil {
		return fmt.Errorf("resolve entry path: %w", err)
	}
	if absDest != root && !strings.HasPrefix(absDest, root+string(filepath.Separator)) {
		e.Logger.WarnContext(ctx, "path traversal attempt in {PackageID} {Version}: {Entry}", id, version, f.Name)
		return nil
	}

	// An empty basename (the entry name ends in '/') denotes a directory
	// entry (spec.md invariant 6): create only the directory, never a file.
	if f.FileInfo().IsDir() || filepath.Base(f.Name) == "" {
		return os.MkdirAll(absDest, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(absDest), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(absDest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", f.Name, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("write %s: %w", f.Name, err)
	}
	return nil
}
