// Package artifacts implements the Artifact Selector (C7): given an
// extracted package's cache directory and a target runtime, it walks the
// conventional lib/ and ref/ binary directories and returns the
// highest-priority, deduplicated set of binary paths for that target.
//
// Grounded on the teacher's packaging/path_resolver.go and
// packaging/assets/conventions.go for the lib/ and ref/ folder convention,
// narrowed to spec.md §4.7's simpler single-priority-score selection (the
// teacher's packaging/assets package implements the much richer RID-graph
// and pattern-table asset selection; spec.md explicitly narrows to a flat
// "highest score wins per basename" rule).
package artifacts

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/willibrandon/csx/frameworks"
	"github.com/willibrandon/csx/internal/observability"
)

const (
	libDir = "lib"
	refDir = "ref"

	refPriorityBonus = 1000

	// exactMatchThreshold mirrors frameworks.Evaluate's +10,000 exact-match
	// bonus: any candidate scoring at or above it earned that bonus.
	exactMatchThreshold = 10000
)

// candidate pairs a binary's absolute path with the priority score it was
// selected under and the priority band that score falls into, for the
// ArtifactsSelectedTotal metric (C7).
type candidate struct {
	path     string
	priority int
	band     string
}

// Select returns the selected binary paths for target within cacheDir, per
// spec.md §4.7. logger may be nil.
func Select(cacheDir, target string, logger observability.Logger) []string {
	if logger == nil {
		logger = observability.NewNullLogger()
	}

	var candidates []candidate
	candidates = append(candidates, collectRoot(cacheDir, libDir, target, false)...)
	candidates = append(candidates, collectRoot(cacheDir, refDir, target, true)...)

	if len(candidates) == 0 {
		if loose := looseLibBinaries(cacheDir); len(loose) > 0 {
			logger.Debug("falling back to loose lib/ binaries for {CacheDir}, ignoring target runtime", cacheDir)
			for _, p := range loose {
				candidates = append(candidates, candidate{path: p, priority: 0, band: "loose_fallback"})
			}
		}
	}

	winners := dedupeByBasename(candidates)
	result := make([]string, 0, len(winners))
	for _, w := range winners {
		observability.ArtifactsSelectedTotal.WithLabelValues(w.band).Inc()
		result = append(result, w.path)
	}
	return result
}

// collectRoot enumerates root's immediate child directories (each a
// declared RuntimeId), keeps those compatible with target, and recursively
// collects their .dll files (excluding *.resources.dll). fromRef adds the
// +1,000 reference-binary bonus on top of the compatibility score.
func collectRoot(cacheDir, root, target string, fromRef bool) []candidate {
	rootPath := filepath.Join(cacheDir, root)
	children, err := os.ReadDir(rootPath)
	if err != nil {
		return nil
	}

	var out []candidate
	for _, child := range children {
		if !child.IsDir() {
			continue
		}
		compatible, score := frameworks.Evaluate(child.Name(), target)
		if !compatible {
			continue
		}
		band := "compatible"
		if score >= exactMatchThreshold {
			band = "exact"
		}
		if fromRef {
			score += refPriorityBonus
		}

		childPath := filepath.Join(rootPath, child.Name())
		_ = filepath.WalkDir(childPath, func(path string, d os.DirEntry, walkErr error) error {
			if walkErr != nil || d.IsDir() {
				return nil
			}
			if !isBinary(path) {
				return nil
			}
			out = append(out, candidate{path: path, priority: score, band: band})
			return nil
		})
	}
	return out
}

// looseLibBinaries implements the spec.md §4.7 step-4 fallback: .dll files
// sitting directly at lib/'s top level, with no runtime subdirectory.
func looseLibBinaries(cacheDir string) []string {
	libPath := filepath.Join(cacheDir, libDir)
	entries, err := os.ReadDir(libPath)
	if err != nil {
		return nil
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(libPath, e.Name())
		if isBinary(p) {
			out = append(out, p)
		}
	}
	return out
}

func isBinary(path string) bool {
	lower := strings.ToLower(path)
	if !strings.HasSuffix(lower, ".dll") {
		return false
	}
	return !strings.HasSuffix(lower, ".resources.dll")
}

// dedupeByBasename groups candidates by case-insensitive basename-without-
// extension and keeps the highest-priority one per group, per spec.md
// invariant 4. Ties are broken by first-seen order, which is stable but
// implementation-defined per spec.md §4.7 step 5.
func dedupeByBasename(candidates []candidate) []candidate {
	best := make(map[string]candidate)
	order := make([]string, 0, len(candidates))

	for _, c := range candidates {
		key := basenameKey(c.path)
		existing, ok := best[key]
		if !ok {
			order = append(order, key)
			best[key] = c
			continue
		}
		if c.priority > existing.priority {
			best[key] = c
		}
	}

	result := make([]candidate, 0, len(order))
	for _, key := range order {
		result = append(result, best[key])
	}
	return result
}

func basenameKey(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ToLower(base)
}
