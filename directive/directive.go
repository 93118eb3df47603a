// Package directive extracts inline package references from script source
// text. A script names its third-party dependencies in comments rather than
// a project file, using one of three accepted spellings:
//
//	// #nuget: <id>[@<version>]
//	// #package: <id>[@<version>]
//	// #r "nuget: <id>, <version>"
//
// the third spelling mirrors the `#r` reference-directive syntax used by
// interactive C# tooling. The parser performs no validation of id or
// version syntax; that is the caller's job.
package directive

import (
	"regexp"
	"sort"
	"strings"
)

// PackageRef is a (id, version?) pair parsed from a script's directives.
// Version is empty when the directive didn't name one — the caller must
// bind a concrete version before the ref can enter the dependency walker.
type PackageRef struct {
	ID      string
	Version string
}

var (
	// #nuget: Foo.Bar@1.2.3   or   // #package: Foo.Bar
	commentPattern = regexp.MustCompile(`(?im)^\s*//\s*#(?:nuget|package)\s*:\s*([^\s@]+)(?:@(\S+))?\s*$`)

	// #r "nuget: Foo.Bar, 1.2.3"   or   #r "nuget: Foo.Bar"
	rPattern = regexp.MustCompile(`(?im)#r\s+"nuget\s*:\s*([^\s",]+)\s*(?:,\s*([^\s"]+))?\s*"`)
)

// Parse scans source for directive lines and returns the PackageRefs it
// finds, in first-seen order, deduplicated by (id, version) with id compared
// case-insensitively. Empty input yields an empty, non-nil slice.
func Parse(source string) []PackageRef {
	refs := make([]PackageRef, 0)
	seen := make(map[string]bool)

	add := func(id, version string) {
		key := normalizeKey(id, version)
		if seen[key] {
			return
		}
		seen[key] = true
		refs = append(refs, PackageRef{ID: id, Version: version})
	}

	type match struct {
		pos         int
		id, version string
	}
	var matches []match
	for _, pattern := range []*regexp.Regexp{commentPattern, rPattern} {
		for _, m := range pattern.FindAllStringSubmatchIndex(source, -1) {
			mt := match{pos: m[0], id: source[m[2]:m[3]]}
			if m[4] >= 0 {
				mt.version = source[m[4]:m[5]]
			}
			matches = append(matches, mt)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].pos < matches[j].pos })
	for _, mt := range matches {
		add(mt.id, mt.version)
	}

	return refs
}

func normalizeKey(id, version string) string {
	return strings.ToLower(id) + "@" + strings.ToLower(version)
}

// String renders a ref back to its canonical "id[@version]" form, the
// inverse of Parse for round-tripping.
func (r PackageRef) String() string {
	if r.Version == "" {
		return r.ID
	}
	return r.ID + "@" + r.Version
}
