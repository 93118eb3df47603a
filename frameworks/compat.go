package frameworks

// IsCompatible decides whether a package declaring packageRuntime can be
// used by a target declaring targetRuntime, per spec.md §4.4.
func IsCompatible(packageRuntime, targetRuntime string) bool {
	compatible, _ := Evaluate(packageRuntime, targetRuntime)
	return compatible
}

// Evaluate runs the full compatibility oracle and additionally returns the
// priority score used by the artifact selector (C7) to break ties between
// multiple compatible binaries. The score is meaningless when compatible
// is false.
func Evaluate(packageRuntime, targetRuntime string) (compatible bool, score int) {
	// Rule 1: either operand absent/empty -> not compatible.
	if packageRuntime == "" || targetRuntime == "" {
		return false, 0
	}

	// Rule 3 (pre-normalization): exact match before normalization earns
	// the +10,000 exact-match bonus used by C7, on top of whatever score
	// the normalized comparison below produces.
	exactMatchBonus := 0
	if packageRuntime == targetRuntime {
		exactMatchBonus = 10000
	}

	pkg := Normalize(packageRuntime)
	target := Normalize(targetRuntime)

	// Rule 3: equal after normalization -> compatible.
	if pkg == target {
		pp, _ := Priority(pkg)
		return true, pp + exactMatchBonus
	}

	// Rule 4: unknown priorities -> not compatible.
	pp, pkgKnown := Priority(pkg)
	tp, targetKnown := Priority(target)
	if !pkgKnown || !targetKnown {
		return false, 0
	}

	// Rule 5: standard-tier -> modern-runtime crossover.
	if Family(pkg) == "standard" && isNetFamily(target) {
		if ok := standardCrossoverCompatible(pkg, target); ok {
			return true, pp + exactMatchBonus
		}
		return false, 0
	}

	// Rule 6: same family, package priority <= target priority.
	if Family(pkg) != Family(target) {
		return false, 0
	}
	if pp > tp {
		return false, 0
	}

	return true, pp + exactMatchBonus
}

// isNetFamily reports whether id belongs to either modern-runtime family
// recognized as a viable crossover target for .NET Standard packages
// (core-tier or framework-tier) — i.e. "anything in the net-family" per
// spec.md §4.4 rule 5.
func isNetFamily(id RuntimeID) bool {
	f := Family(id)
	return f == "core" || f == "framework"
}

// standardCrossoverCompatible implements the two named thresholds from
// spec.md §4.4 rule 5.
//
// The source's crossover check (per spec.md's Open Question) looks up
// priorities for keys that are absent from its own table and silently
// compares against a default of 0, which makes the crossover trivially
// true for every target. Rather than replicate that, the core-tier
// thresholds here are explicit version comparisons against the named
// anchors (.NET Core 2.0 for standard-2.0, .NET Core 3.0 for standard-2.1).
// The framework-tier anchor for standard-2.0 (.NET Framework 4.6.1) is
// compared by priority-table position against fw-461, because compact fw
// digits do not order numerically (fw-48 decodes to minor 8, fw-461 to 61).
func standardCrossoverCompatible(pkg, target RuntimeID) bool {
	switch pkg {
	case "standard-2.0":
		if Family(target) == "framework" {
			tp, ok := Priority(target)
			anchor, _ := Priority("fw-461")
			return ok && tp >= anchor
		}
		return atLeast(target, "core", 2, 0)
	case "standard-2.1":
		return atLeast(target, "core", 3, 0)
	default:
		return false
	}
}

// atLeast reports whether target belongs to family and its (major, minor)
// is >= the given threshold. minor for the framework family is compared
// in its native compact form (e.g. 4.6.1 -> minor 61), matching
// parseFwCompact.
func atLeast(target RuntimeID, family string, minMajor, minMinor int) bool {
	if Family(target) != family {
		return false
	}
	major, minor, ok := ParsedVersion(target)
	if !ok {
		return false
	}
	if major != minMajor {
		return major > minMajor
	}
	return minor >= minMinor
}
