// Package manifest implements the Manifest Reader (C3): given a package
// archive's raw bytes, it opens the archive as a ZIP container, locates the
// .nuspec manifest, parses its XML, and extracts the package's dependency
// list for a given target runtime.
//
// Grounded on the teacher's packaging.Nuspec/ParseNuspec (packaging/nuspec.go)
// for the XML shape, narrowed to the fields spec.md §4.3 and §6 need, and on
// packaging/reader.go's GetNuspecFile for locating the manifest entry inside
// the archive.
package manifest

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/willibrandon/csx/frameworks"
	"github.com/willibrandon/csx/internal/observability"
)

// Dependency is a single resolved dependency edge: the id/version to fetch
// next, plus the RuntimeId it was declared under (empty when the manifest's
// <dependencies> had no <group> children — see spec.md §4.3).
type Dependency struct {
	ID              string
	Version         string
	DeclaredRuntime string
}

// VersionResolver is the subset of the registry client C3 needs: resolving
// a dependency's latest version when the manifest names no version.
type VersionResolver interface {
	LatestVersion(ctx context.Context, id string) (string, error)
}

// nuspec mirrors the subset of the teacher's packaging.Nuspec this core
// needs. encoding/xml matches elements by local name regardless of the
// document's default namespace, which is exactly the "inherit the default
// namespace for all child lookups" behavior spec.md §4.3 calls for.
type nuspec struct {
	XMLName  xml.Name `xml:"package"`
	Metadata struct {
		ID           string        `xml:"id"`
		Version      string        `xml:"version"`
		Dependencies *dependencies `xml:"dependencies"`
	} `xml:"metadata"`
}

type dependencies struct {
	Groups       []dependencyGroup `xml:"group"`
	Dependencies []dependencyXML   `xml:"dependency"`
}

type dependencyGroup struct {
	TargetFramework string          `xml:"targetFramework,attr"`
	Dependencies    []dependencyXML `xml:"dependency"`
}

type dependencyXML struct {
	ID      string `xml:"id,attr"`
	Version string `xml:"version,attr"`
}

// FindNuspecEntry locates the first ZIP entry at archive root whose name
// ends in ".nuspec", case-insensitively. Root-only mirrors the teacher's
// GetNuspecFile, which rejects nested candidates.
func FindNuspecEntry(zr *zip.Reader) (*zip.File, error) {
	for _, f := range zr.File {
		if strings.Contains(f.Name, "/") {
			continue
		}
		if strings.HasSuffix(strings.ToLower(f.Name), ".nuspec") {
			return f, nil
		}
	}
	return nil, fmt.Errorf("manifest: no .nuspec entry found at archive root")
}

// Parse opens archiveBytes as a ZIP container, locates its .nuspec entry,
// and parses it. It does not resolve dependencies; use Dependencies for
// that.
func Parse(archiveBytes []byte) (*nuspec, error) {
	zr, err := zip.NewReader(bytes.NewReader(archiveBytes), int64(len(archiveBytes)))
	if err != nil {
		return nil, fmt.Errorf("manifest: open archive: %w", err)
	}

	entry, err := FindNuspecEntry(zr)
	if err != nil {
		return nil, err
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("manifest: open %s: %w", entry.Name, err)
	}
	defer rc.Close()

	var n nuspec
	dec := xml.NewDecoder(rc)
	if err := dec.Decode(&n); err != nil {
		return nil, fmt.Errorf("manifest: parse %s: %w", entry.Name, err)
	}
	return &n, nil
}

// Dependencies implements C3's extraction rule (spec.md §4.3): when the
// manifest's <dependencies> has one or more <group> children, only groups
// whose targetFramework is compatible with target contribute, each
// dependency inheriting the group's targetFramework as DeclaredRuntime.
// Otherwise every direct <dependency> child contributes, tagged with target
// itself. A <dependency> naming no version triggers a latest-version lookup
// via versions; a <dependency> naming no id is dropped silently.
//
// Failure to download, unzip, or parse is not fatal at the caller's level —
// Dependencies returns an error here, and the walker (C5) is responsible
// for treating that as an empty dependency list plus a logged diagnostic,
// per spec.md's ManifestUnreadable error kind.
func Dependencies(ctx context.Context, archiveBytes []byte, target string, versions VersionResolver, logger observability.Logger) ([]Dependency, error) {
	if logger == nil {
		logger = observability.NewNullLogger()
	}

	n, err := Parse(archiveBytes)
	if err != nil {
		return nil, err
	}

	deps := n.Metadata.Dependencies
	if deps == nil {
		return nil, nil
	}

	var raw []dependencyXML
	var declaredRuntime []string

	if len(deps.Groups) > 0 {
		for _, g := range deps.Groups {
			if !frameworks.IsCompatible(g.TargetFramework, target) {
				continue
			}
			for _, d := range g.Dependencies {
				raw = append(raw, d)
				declaredRuntime = append(declaredRuntime, g.TargetFramework)
			}
		}
	} else {
		for _, d := range deps.Dependencies {
			raw = append(raw, d)
			declaredRuntime = append(declaredRuntime, target)
		}
	}

	result := make([]Dependency, 0, len(raw))
	for i, d := range raw {
		if d.ID == "" {
			continue
		}
		version := d.Version
		if version == "" {
			v, err := versions.LatestVersion(ctx, d.ID)
			if err != nil {
				logger.WarnContext(ctx, "version resolution failed for dependency {PackageID}, dropping: {Error}", d.ID, err)
				continue
			}
			version = v
		}
		result = append(result, Dependency{
			ID:              d.ID,
			Version:         version,
			DeclaredRuntime: declaredRuntime[i],
		})
	}
	return result, nil
}

// ID returns the package id recorded in the manifest metadata.
func (n *nuspec) ID() string { return n.Metadata.ID }

// Version returns the package version recorded in the manifest metadata.
func (n *nuspec) Version() string { return n.Metadata.Version }
