package salvage

import "github.com/samcharles93/salvor/internal/bufview"

// validCoord reports whether v is plausible as a single vertex coordinate:
// finite, below the ceiling in magnitude, and either exactly zero or above
// the denormal floor.
func validCoord(v float32, t *Tunables) bool {
	if v != v { // NaN
		return false
	}
	a := v
	if a < 0 {
		a = -a
	}
	if a >= t.CoordCeiling { // also catches +/-Inf
		return false
	}
	if v == 0 {
		return true
	}
	return a > t.CoordFloor
}

// validTripletAt reports whether the three floats starting at float index fi
// are all plausible coordinates. The caller guarantees fi+3 <= src.FloatLen().
func validTripletAt(src *bufview.Source, fi int, t *Tunables) bool {
	return validCoord(src.Float(fi), t) &&
		validCoord(src.Float(fi+1), t) &&
		validCoord(src.Float(fi+2), t)
}

// tripletRun counts consecutive valid triplets starting at float index fi,
// reading no further than float index end and never exceeding maxTriplets.
func tripletRun(src *bufview.Source, fi, end, maxTriplets int, t *Tunables) int {
	n := 0
	for n < maxTriplets && fi+3 <= end {
		if !validTripletAt(src, fi, t) {
			break
		}
		n++
		fi += 3
	}
	return n
}

// collectTriplets copies n triplets starting at float index fi into a fresh
// slice.
func collectTriplets(src *bufview.Source, fi, n int) []float32 {
	out := make([]float32, 0, n*3)
	for i := 0; i < n*3; i++ {
		out = append(out, src.Float(fi+i))
	}
	return out
}

// hasVariance reports whether the positions vary on at least two axes. Runs
// of a constant (or axis-degenerate) value are repeated filler, not
// geometry. Only a bounded prefix is inspected.
func hasVariance(positions []float32, t *Tunables) bool {
	n := len(positions) / 3
	if n == 0 {
		return false
	}
	if n > t.VariancePrefixVertices {
		n = t.VariancePrefixVertices
	}
	var lo, hi [3]float32
	lo[0], lo[1], lo[2] = positions[0], positions[1], positions[2]
	hi = lo
	for i := 1; i < n; i++ {
		for a := 0; a < 3; a++ {
			v := positions[i*3+a]
			if v < lo[a] {
				lo[a] = v
			}
			if v > hi[a] {
				hi[a] = v
			}
		}
	}
	axes := 0
	for a := 0; a < 3; a++ {
		if hi[a]-lo[a] > t.VarianceEpsilon {
			axes++
		}
	}
	return axes >= 2
}
