// Package salvage recovers plausible triangle-mesh geometry from closed or
// unparseable scene containers.
//
// The engine has no conformant parser for its inputs. It runs a cascade of
// heuristics over one immutable byte buffer: a structured walk of tagged
// blocks, a raw float-triplet pattern scan, and a last-resort stride scan for
// vertex data interleaved with per-vertex attributes. Everything it returns
// is best-effort salvage, never guaranteed geometry.
package salvage

// Candidate is a provisionally recovered mesh. Positions is a flat list
// grouped in threes (x, y, z); len(Positions)%3 == 0 always holds. Indices,
// when present, is a triangle list and every index is < len(Positions)/3.
type Candidate struct {
	Name      string
	Positions []float32
	Indices   []uint32

	// Source names the strategy that produced the candidate, e.g. "block",
	// "scan", "stride6".
	Source string
}

// VertexCount returns the number of x,y,z triplets in Positions.
func (c *Candidate) VertexCount() int {
	return len(c.Positions) / 3
}

// TriangleCount returns the number of triangles described by Indices.
func (c *Candidate) TriangleCount() int {
	return len(c.Indices) / 3
}
