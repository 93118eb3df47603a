// Package frameworks implements RuntimeId parsing, normalization, and the
// compatibility oracle used to decide which of a package's binaries apply
// to a given target runtime.
//
// A RuntimeId is drawn from three families:
//
//	standard-N.M   portable API surface, monotonic by version
//	core-N.M       the modern runtime (also spelled unified-N.M for N>=5)
//	fw-NNN         the legacy runtime, compact version digits
package frameworks

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// RuntimeID is a normalized runtime identifier string.
type RuntimeID string

const (
	prefixStandard = "standard-"
	prefixCore     = "core-"
	prefixUnified  = "unified-"
	prefixFw       = "fw-"
)

var unifiedCompactPattern = regexp.MustCompile(`^unified-[0-9]+$`)

// Normalize lowercases id and collapses the compact "unified-N" spelling
// (no dot) into "unified-N.0". All other forms pass through unchanged.
func Normalize(id string) RuntimeID {
	lower := strings.ToLower(strings.TrimSpace(id))
	if unifiedCompactPattern.MatchString(lower) {
		lower += ".0"
	}
	return RuntimeID(lower)
}

// Family classifies a normalized RuntimeId into one of "standard", "core",
// or "framework". Unrecognized identifiers return "".
//
// The canonical vocabulary (standard-/core-/unified-/fw-) disambiguates by
// prefix. A residual "net"-prefixed identifier that doesn't match any of
// those (a raw TFM string like "net8.0" or "net48" passed straight through
// without translation) falls back to the historical NuGet heuristic: an
// identifier containing a '.' or longer than 5 characters is the modern
// (core) runtime, anything else is the legacy framework.
func Family(id RuntimeID) string {
	s := string(id)
	switch {
	case strings.HasPrefix(s, prefixStandard):
		return "standard"
	case strings.HasPrefix(s, prefixCore):
		return "core"
	case strings.HasPrefix(s, prefixUnified):
		return "core"
	case strings.HasPrefix(s, prefixFw):
		return "framework"
	case strings.HasPrefix(s, "net"):
		if strings.Contains(s, ".") || len(s) > 5 {
			return "core"
		}
		return "framework"
	default:
		return ""
	}
}

// version holds a parsed (major, minor) pair for ordering within a family.
type version struct {
	major, minor int
}

func (v version) compare(o version) int {
	if v.major != o.major {
		if v.major < o.major {
			return -1
		}
		return 1
	}
	if v.minor != o.minor {
		if v.minor < o.minor {
			return -1
		}
		return 1
	}
	return 0
}

// parseDotted extracts the (major, minor) pair from a dotted "N.M" version
// string (the suffix of a standard-/core-/unified- RuntimeId). fw-NNN
// compact digits are decoded by parseFwCompact instead.
func parseDotted(s string) (version, bool) {
	parts := strings.SplitN(s, ".", 2)
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return version{}, false
	}
	minor := 0
	if len(parts) == 2 {
		minor, err = strconv.Atoi(parts[1])
		if err != nil {
			return version{}, false
		}
	}
	return version{major: major, minor: minor}, true
}

// parseFwCompact decodes the compact fw-NNN digit string into (major, minor)
// where minor absorbs any trailing build digit (fw-461 -> 4.61, fw-48 -> 4.8,
// fw-472 -> 4.72). The decoded minor does not order across digit widths
// (fw-48's 8 is below fw-461's 61), so framework-tier ordering uses the
// priority table; ParsedVersion returns the decoded pair as-is.
func parseFwCompact(digits string) (version, bool) {
	if len(digits) < 2 || len(digits) > 4 {
		return version{}, false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return version{}, false
		}
	}
	major, err := strconv.Atoi(digits[:1])
	if err != nil {
		return version{}, false
	}
	minor, err := strconv.Atoi(digits[1:])
	if err != nil {
		return version{}, false
	}
	return version{major: major, minor: minor}, true
}

// ParsedVersion returns the (major, minor) pair encoded in a normalized
// RuntimeId, for use by version-threshold checks (e.g. the standard-tier
// crossover rule). ok is false for unrecognized identifiers.
func ParsedVersion(id RuntimeID) (major, minor int, ok bool) {
	s := string(id)
	switch {
	case strings.HasPrefix(s, prefixStandard):
		v, ok := parseDotted(strings.TrimPrefix(s, prefixStandard))
		return v.major, v.minor, ok
	case strings.HasPrefix(s, prefixCore):
		v, ok := parseDotted(strings.TrimPrefix(s, prefixCore))
		return v.major, v.minor, ok
	case strings.HasPrefix(s, prefixUnified):
		v, ok := parseDotted(strings.TrimPrefix(s, prefixUnified))
		return v.major, v.minor, ok
	case strings.HasPrefix(s, prefixFw):
		v, ok := parseFwCompact(strings.TrimPrefix(s, prefixFw))
		return v.major, v.minor, ok
	default:
		return 0, 0, false
	}
}

func (id RuntimeID) String() string {
	return string(id)
}

// Validate returns an error if id does not normalize to a recognized
// RuntimeId. Used by callers that accept a target runtime from a flag or
// config file and want to fail fast instead of silently treating every
// package as incompatible.
func Validate(id string) error {
	n := Normalize(id)
	if _, ok := Priority(n); !ok {
		return fmt.Errorf("frameworks: unrecognized runtime id %q", id)
	}
	return nil
}
