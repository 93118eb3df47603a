package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/willibrandon/csx/cachefetch"
	"github.com/willibrandon/csx/cmd/csx/config"
	"github.com/willibrandon/csx/cmd/csx/output"
)

// newCacheCommand groups the package-cache maintenance verbs: clear wipes
// it outright, gc drops entries untouched past a retention window and
// invalid entries past a short grace period. Both operate directly on the
// cache root's directory tree rather than through a cachefetch.Engine,
// since there is no package coordinate to resolve here; gc only borrows
// cachefetch.IsValid for its invariant check.
func newCacheCommand(console *output.Console) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or maintain the local package cache",
	}
	cmd.AddCommand(newCacheClearCommand(console))
	cmd.AddCommand(newCacheGCCommand(console))
	return cmd
}

func newCacheClearCommand(console *output.Console) *cobra.Command {
	var cacheDir string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the entire package cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			root := resolveCacheDir(cacheDir)
			if err := os.RemoveAll(root); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			console.Success("cleared package cache at %s", root)
			return nil
		},
	}
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "Package cache directory (default: $CSX_CACHE_DIR or ~/.csx/packages)")
	return cmd
}

func newCacheGCCommand(console *output.Console) *cobra.Command {
	var cacheDir string
	var maxAge time.Duration
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove package cache entries not accessed recently",
		Long: `gc walks the package cache's top-level id/version directories and
removes an entry if either holds: its modification time is older than
--max-age, or it fails the cache-entry invariants from spec.md §3 (a
corrupt or partially-extracted download, missing its hash sentinel or
.nuspec file). The invariant check does not read entry contents beyond
a directory listing, so it is safe to run while a csx run is in
progress: an in-flight download's entry directory is freshly written
and will not be old enough to collect on age alone, though it will look
invalid until the download completes — gc only removes an invalid
entry whose modification time is at least 5 minutes old, to avoid a
race with a download in progress.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := resolveCacheDir(cacheDir)
			n, err := gcCacheRoot(root, maxAge, time.Now())
			if err != nil {
				return fmt.Errorf("gc cache: %w", err)
			}
			console.Success("removed %d stale package(s) from %s", n, root)
			return nil
		},
	}
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "Package cache directory (default: $CSX_CACHE_DIR or ~/.csx/packages)")
	cmd.Flags().DurationVar(&maxAge, "max-age", 30*24*time.Hour, "Entries not modified within this window are removed")
	return cmd
}

func resolveCacheDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return config.DefaultCacheRoot()
}

// minInvalidEntryAge bounds how fresh a cache entry must be before an
// invariant failure (cachefetch.IsValid returning false) is treated as
// corruption rather than a download still in flight.
const minInvalidEntryAge = 5 * time.Minute

// gcCacheRoot removes package entry directories (root/id/version) that are
// either stale (modification time older than now-maxAge) or invalid per
// spec.md §3's cache-entry invariants (cachefetch.IsValid) and at least
// minInvalidEntryAge old, so an in-flight download is never collected. The
// .http-cache subdirectory used by the registry's metadata cache is left
// alone; gc does not prune it.
func gcCacheRoot(root string, maxAge time.Duration, now time.Time) (int, error) {
	idEntries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	staleCutoff := now.Add(-maxAge)
	invalidCutoff := now.Add(-minInvalidEntryAge)
	removed := 0

	for _, idEntry := range idEntries {
		if !idEntry.IsDir() || idEntry.Name() == ".http-cache" {
			continue
		}
		idDir := filepath.Join(root, idEntry.Name())

		versionEntries, err := os.ReadDir(idDir)
		if err != nil {
			continue
		}
		for _, versionEntry := range versionEntries {
			if !versionEntry.IsDir() {
				continue
			}
			versionDir := filepath.Join(idDir, versionEntry.Name())
			info, err := versionEntry.Info()
			if err != nil {
				continue
			}

			stale := info.ModTime().Before(staleCutoff)
			corrupt := info.ModTime().Before(invalidCutoff) && !cachefetch.IsValid(versionDir)
			if !stale && !corrupt {
				continue
			}
			if err := os.RemoveAll(versionDir); err == nil {
				removed++
			}
		}

		remaining, err := os.ReadDir(idDir)
		if err == nil && len(remaining) == 0 {
			_ = os.Remove(idDir)
		}
	}

	return removed, nil
}
