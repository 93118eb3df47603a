package frameworks

// priorityTable assigns a fixed integer priority to every RuntimeId this
// oracle recognizes. Within a family the ordering is strictly monotonic by
// release version; latest unified scores highest overall, oldest standard
// scores lowest. The three ranges (1000s framework, 2000s standard, 3000s
// core/unified) never overlap, which keeps the family-scoped comparisons
// in IsCompatible well-defined without needing a second lookup.
var priorityTable = map[RuntimeID]int{
	// framework-tier, oldest to newest
	"fw-11":  1000,
	"fw-20":  1001,
	"fw-35":  1002,
	"fw-40":  1003,
	"fw-403": 1004,
	"fw-45":  1005,
	"fw-451": 1006,
	"fw-452": 1007,
	"fw-46":  1008,
	"fw-461": 1009,
	"fw-462": 1010,
	"fw-47":  1011,
	"fw-471": 1012,
	"fw-472": 1013,
	"fw-48":  1014,
	"fw-481": 1015,

	// standard-tier, oldest to newest
	"standard-1.0": 2000,
	"standard-1.1": 2001,
	"standard-1.2": 2002,
	"standard-1.3": 2003,
	"standard-1.4": 2004,
	"standard-1.5": 2005,
	"standard-1.6": 2006,
	"standard-2.0": 2007,
	"standard-2.1": 2008,

	// core-tier, oldest to newest. For N>=5 "core-N.M" and "unified-N.M"
	// are two spellings of the same runtime (spec.md ​§3) and must carry
	// identical priority.
	"core-1.0": 3000,
	"core-1.1": 3001,
	"core-2.0": 3002,
	"core-2.1": 3003,
	"core-2.2": 3004,
	"core-3.0": 3005,
	"core-3.1": 3006,

	"core-5.0":    3007,
	"unified-5.0": 3007,
	"core-6.0":    3008,
	"unified-6.0": 3008,
	"core-7.0":    3009,
	"unified-7.0": 3009,
	"core-8.0":    3010,
	"unified-8.0": 3010,
	"core-9.0":    3011,
	"unified-9.0": 3011,
	"core-10.0":    3012,
	"unified-10.0": 3012,
}

// Priority returns the fixed ordering score for a normalized RuntimeId.
// ok is false when the identifier isn't in the table.
func Priority(id RuntimeID) (int, bool) {
	p, ok := priorityTable[id]
	return p, ok
}

// DefaultTarget is the runtime the resolver orchestrator assumes when the
// caller doesn't name one.
const DefaultTarget RuntimeID = "core-8.0"
