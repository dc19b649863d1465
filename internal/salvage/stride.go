package salvage

import (
	"fmt"
	"sort"

	"github.com/samcharles93/salvor/internal/bufview"
)

// maxStrideRuns bounds how many runs one stride keeps: the longest few are
// overwhelmingly the real geometry, the rest is noise.
const maxStrideRuns = 3

// strideScan is the last-resort strategy for buffers whose vertex data is
// interleaved with other per-vertex attributes, which defeats the
// consecutive-triplet scans. It re-reads the buffer once per guessed record
// width and keeps the first width that produces anything: with widths
// ordered narrowest first, a match at a narrow stride makes wider strides
// mere subsamples of the same data.
func strideScan(src *bufview.Source, t *Tunables) []Candidate {
	for _, stride := range deepScanStrides {
		if cands := scanStride(src, stride, t); len(cands) > 0 {
			return cands
		}
	}
	return nil
}

// scanStride collects runs of valid triplets spaced stride floats apart.
// An invalid triplet closes the current run and restarts the scan one
// float later, so a mis-phased guess re-anchors instead of discarding the
// region.
func scanStride(src *bufview.Source, stride int, t *Tunables) []Candidate {
	end := src.FloatLen()

	var runs [][]float32
	var cur []float32
	flush := func() {
		if len(cur)/3 >= t.MinStrideVertices && hasVariance(cur, t) {
			runs = append(runs, cur)
			sort.SliceStable(runs, func(i, j int) bool { return len(runs[i]) > len(runs[j]) })
			if len(runs) > maxStrideRuns {
				runs = runs[:maxStrideRuns]
			}
		}
		cur = nil
	}

	fi := 0
	for fi+3 <= end {
		if validTripletAt(src, fi, t) {
			cur = append(cur, src.Float(fi), src.Float(fi+1), src.Float(fi+2))
			if len(cur)/3 >= t.MaxRunVertices {
				flush()
			}
			fi += stride
		} else {
			flush()
			fi++
		}
	}
	flush()

	out := make([]Candidate, 0, len(runs))
	for i, pts := range runs {
		out = append(out, Candidate{
			Name:      fmt.Sprintf("stride%d_%02d", stride, i+1),
			Positions: pts,
			Source:    fmt.Sprintf("stride%d", stride),
		})
	}
	return out
}
