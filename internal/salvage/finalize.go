package salvage

import (
	"fmt"
	"sort"
)

// minKeepVertices drops fragments that cannot form even one triangle.
const minKeepVertices = 3

// finalizeCandidates turns raw strategy output into the engine's result
// list: it drops sub-triangle fragments, dedups candidates that describe
// the same region of the buffer, synthesizes indices where a strategy
// produced none, and ranks by size. Applying it to its own output changes
// nothing.
func finalizeCandidates(raw []Candidate, t *Tunables) []Candidate {
	seen := make(map[string]struct{}, len(raw))
	out := make([]Candidate, 0, len(raw))
	for _, c := range raw {
		if c.VertexCount() < minKeepVertices {
			continue
		}
		key := fingerprint(c.Positions, t.HashPrefixVertices)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if len(c.Indices) == 0 {
			c.Indices = sequentialIndices(c.VertexCount())
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].VertexCount() > out[j].VertexCount()
	})
	if len(out) > t.MaxCandidates {
		out = out[:t.MaxCandidates]
	}
	return out
}

// fingerprint keys a candidate by its x/y bounding rectangle over a bounded
// vertex prefix plus its total vertex count. Two strategies rediscovering
// the same run produce the same key; genuinely different meshes almost
// never collide.
func fingerprint(positions []float32, prefixVertices int) string {
	verts := len(positions) / 3
	n := verts
	if n > prefixVertices {
		n = prefixVertices
	}
	minX, maxX := positions[0], positions[0]
	minY, maxY := positions[1], positions[1]
	for i := 1; i < n; i++ {
		x, y := positions[i*3], positions[i*3+1]
		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}
	}
	return fmt.Sprintf("%.3f|%.3f|%.3f|%.3f|%d", minX, maxX, minY, maxY, verts)
}

// sequentialIndices builds a triangle list that consumes vertices in order.
// One or two trailing vertices that cannot complete a triangle stay
// unindexed.
func sequentialIndices(verts int) []uint32 {
	n := verts - verts%3
	idx := make([]uint32, n)
	for i := range idx {
		idx[i] = uint32(i)
	}
	return idx
}
