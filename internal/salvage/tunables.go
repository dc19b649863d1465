package salvage

// Tunables collects the numeric thresholds the recovery heuristics depend
// on. The zero value is not usable; start from DefaultTunables and override
// individual fields.
type Tunables struct {
	// CoordCeiling rejects coordinates whose magnitude reaches it. Real
	// scene geometry lives well inside this bound; header words and
	// pointers reinterpreted as floats usually do not.
	CoordCeiling float32

	// CoordFloor rejects non-zero coordinates whose magnitude does not
	// exceed it. Denormals and near-zero noise from integer fields fail
	// this; exact zero is always accepted.
	CoordFloor float32

	// VarianceEpsilon is the minimum axis extent that counts as variation
	// when discarding flat or constant runs.
	VarianceEpsilon float32

	// VariancePrefixVertices bounds how many vertices the variance check
	// inspects, keeping it O(1) on huge runs.
	VariancePrefixVertices int

	// MinBlockVertices is the smallest run the structured block walk keeps.
	MinBlockVertices int

	// MinProbeTriplets is how many consecutive valid triplets the pattern
	// scan requires before it commits to extending a run.
	MinProbeTriplets int

	// MinPatternVertices is the smallest run the pattern scan accepts.
	MinPatternVertices int

	// MinStrideVertices is the smallest run the stride scan accepts.
	MinStrideVertices int

	// MaxRunVertices caps any single run so a pathological buffer cannot
	// produce an unbounded candidate.
	MaxRunVertices int

	// MinViableVertices is the early-exit bar: once the strategies run so
	// far have recovered at least this many vertices, later (more
	// speculative) strategies are skipped.
	MinViableVertices int

	// HashPrefixVertices bounds how many vertices feed the dedup hash.
	HashPrefixVertices int

	// MaxCandidates caps the finalized candidate list.
	MaxCandidates int
}

// DefaultTunables returns the thresholds the engine ships with.
func DefaultTunables() Tunables {
	return Tunables{
		CoordCeiling:           1e5,
		CoordFloor:             1e-30,
		VarianceEpsilon:        1e-4,
		VariancePrefixVertices: 512,
		MinBlockVertices:       4,
		MinProbeTriplets:       5,
		MinPatternVertices:     8,
		MinStrideVertices:      8,
		MaxRunVertices:         100_000,
		MinViableVertices:      24,
		HashPrefixVertices:     256,
		MaxCandidates:          32,
	}
}

// deepScanStrides is the candidate record widths (in floats) the stride scan
// tries, narrowest first. 3 is bare positions; the rest cover common
// position-plus-attribute layouts (normals, UVs, colour, weights).
var deepScanStrides = []int{3, 4, 5, 6, 8, 10, 12}
