package output

import (
	"encoding/json"
	"io"
	"time"
)

// CurrentSchemaVersion is the schema version stamped onto every JSON
// diagnostics document csx emits.
const CurrentSchemaVersion = "1.0.0"

// ResolvedPackage is one entry in a Diagnostics document. csx run writes
// one entry per directive reference in the script, with the id and version
// as written (Version is empty when the directive named none); transitive
// dependencies get no entry, and Artifacts is left unset.
type ResolvedPackage struct {
	ID        string   `json:"id"`
	Version   string   `json:"version"`
	Artifacts []string `json:"artifacts"`
}

// Diagnostics is the document written by `csx run --diagnostics-json`,
// capturing the script's directive references, the full flat artifact list
// and run metadata for tooling that wants to inspect a resolution without
// parsing console output.
type Diagnostics struct {
	SchemaVersion string            `json:"schemaVersion"`
	Script        string            `json:"script"`
	Target        string            `json:"target"`
	CacheRoot     string            `json:"cacheRoot"`
	Packages      []ResolvedPackage `json:"packages"`
	ArtifactPaths []string          `json:"artifactPaths"`
	Warnings      []string          `json:"warnings"`
	ElapsedMs     int64              `json:"elapsedMs"`
}

// NewDiagnostics creates a Diagnostics document stamped with the current
// schema version and elapsed time since start.
func NewDiagnostics(script, target, cacheRoot string, start time.Time) *Diagnostics {
	return &Diagnostics{
		SchemaVersion: CurrentSchemaVersion,
		Script:        script,
		Target:        target,
		CacheRoot:     cacheRoot,
		Packages:      []ResolvedPackage{},
		ArtifactPaths: []string{},
		Warnings:      []string{},
		ElapsedMs:     MeasureElapsed(start),
	}
}

// MeasureElapsed returns the elapsed time in milliseconds since start.
func MeasureElapsed(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

// WriteJSON encodes v to w as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
