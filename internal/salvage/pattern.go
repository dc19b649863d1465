package salvage

import (
	"fmt"

	"github.com/samcharles93/salvor/internal/bufview"
)

// patternScan ignores all container structure and slides over the buffer's
// float view looking for long runs of consecutive valid coordinate
// triplets. It is the fallback when the block walk finds nothing, and the
// workhorse for formats whose structure the engine cannot read at all.
//
// Each position is first probed for a short run before the scan commits to
// a full greedy extension; a failed probe still advances the cursor past
// every triplet it validated, which keeps the whole scan linear in the
// buffer size.
func patternScan(src *bufview.Source, t *Tunables) []Candidate {
	end := src.FloatLen()

	var out []Candidate
	fi := 0
	for fi+3*t.MinProbeTriplets <= end {
		n := tripletRun(src, fi, end, t.MaxRunVertices, t)
		if n < t.MinProbeTriplets {
			fi += 3*n + 1
			continue
		}
		if n >= t.MinPatternVertices {
			pts := collectTriplets(src, fi, n)
			if hasVariance(pts, t) {
				out = append(out, Candidate{
					Name:      fmt.Sprintf("scan%02d", len(out)+1),
					Positions: pts,
					Source:    "scan",
				})
			}
		}
		if n >= t.MaxRunVertices {
			// Run was cut by the cap, not by an invalid float; the
			// remainder may start a fresh run of its own.
			fi += 3 * n
		} else {
			fi += 3*n + 1
		}
	}
	return out
}
