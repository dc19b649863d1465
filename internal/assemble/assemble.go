// Package assemble turns raw recovery output into presentable artefacts:
// display colours, bounding boxes, viewer transforms and packed archives.
package assemble

import (
	"fmt"
	"time"

	"github.com/samcharles93/salvor/internal/salvage"
	"github.com/samcharles93/salvor/pkg/smf"
)

// Bounds is an axis-aligned bounding box over position triplets.
type Bounds struct {
	Min [3]float32
	Max [3]float32
}

// BoundsOf computes the bounding box. ok is false for empty input.
func BoundsOf(positions []float32) (b Bounds, ok bool) {
	if len(positions) < 3 {
		return Bounds{}, false
	}
	copy(b.Min[:], positions[:3])
	b.Max = b.Min
	for i := 3; i+2 < len(positions); i += 3 {
		for a := 0; a < 3; a++ {
			v := positions[i+a]
			if v < b.Min[a] {
				b.Min[a] = v
			}
			if v > b.Max[a] {
				b.Max[a] = v
			}
		}
	}
	return b, true
}

// Union returns the smallest box containing both b and o.
func (b Bounds) Union(o Bounds) Bounds {
	for a := 0; a < 3; a++ {
		if o.Min[a] < b.Min[a] {
			b.Min[a] = o.Min[a]
		}
		if o.Max[a] > b.Max[a] {
			b.Max[a] = o.Max[a]
		}
	}
	return b
}

// Center returns the box midpoint.
func (b Bounds) Center() [3]float32 {
	var c [3]float32
	for a := 0; a < 3; a++ {
		c[a] = (b.Min[a] + b.Max[a]) / 2
	}
	return c
}

// Size returns the box extent per axis.
func (b Bounds) Size() [3]float32 {
	var s [3]float32
	for a := 0; a < 3; a++ {
		s[a] = b.Max[a] - b.Min[a]
	}
	return s
}

// MaxExtent returns the largest axis extent.
func (b Bounds) MaxExtent() float32 {
	s := b.Size()
	m := s[0]
	if s[1] > m {
		m = s[1]
	}
	if s[2] > m {
		m = s[2]
	}
	return m
}

// Translate shifts every vertex in place.
func Translate(positions []float32, shift [3]float32) {
	for i := 0; i+2 < len(positions); i += 3 {
		positions[i] += shift[0]
		positions[i+1] += shift[1]
		positions[i+2] += shift[2]
	}
}

// Scale multiplies every coordinate in place, scaling about the origin.
func Scale(positions []float32, factor float32) {
	for i := range positions {
		positions[i] *= factor
	}
}

// palette holds the cycling display colours assigned to candidates.
var palette = [][3]uint8{
	{0x4E, 0x79, 0xA7},
	{0xF2, 0x8E, 0x2B},
	{0xE1, 0x57, 0x59},
	{0x76, 0xB7, 0xB2},
	{0x59, 0xA1, 0x4F},
	{0xED, 0xC9, 0x48},
	{0xB0, 0x7A, 0xA1},
	{0xFF, 0x9D, 0xA7},
	{0x9C, 0x75, 0x5F},
	{0xBA, 0xB0, 0xAC},
}

// Color returns a stable display colour for candidate i.
func Color(i int) [3]uint8 {
	if i < 0 {
		i = -i
	}
	return palette[i%len(palette)]
}

// ColorHex returns Color(i) as a #rrggbb string for web consumers.
func ColorHex(i int) string {
	c := Color(i)
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}

// DefaultTargetExtent is the normalised size of a group's largest axis.
const DefaultTargetExtent = 2

// Transform selects the viewer transforms applied to an assembled group.
// Both transforms are uniform across the group so candidates keep their
// relative placement: a vertex maps to (p + Shift) * Scale.
type Transform struct {
	// Recenter translates the group so its bounding-box centre sits at
	// the origin.
	Recenter bool
	// Normalize scales the group so its largest extent becomes
	// TargetExtent. Applied after recentring.
	Normalize bool
	// TargetExtent overrides DefaultTargetExtent when positive.
	TargetExtent float32
}

// Mesh is one renderable member of an assembled group.
type Mesh struct {
	Name      string
	Source    string
	Positions []float32
	Indices   []uint32
	Color     [3]uint8
	Bounds    Bounds
}

// Group is a set of candidate meshes assembled for display or export.
type Group struct {
	Meshes []Mesh
	// Bounds is the union box over all members, after transforms.
	Bounds Bounds
	// Shift and Scale record the transform that was applied.
	Shift [3]float32
	Scale float32
}

// Build assembles candidates into a display group. Candidate buffers are
// never mutated; transforms run on copies.
func Build(cands []salvage.Candidate, tr Transform) *Group {
	g := &Group{Scale: 1}

	var union Bounds
	have := false
	for i := range cands {
		b, ok := BoundsOf(cands[i].Positions)
		if !ok {
			continue
		}
		if !have {
			union, have = b, true
		} else {
			union = union.Union(b)
		}
	}

	var shift [3]float32
	scale := float32(1)
	if have && tr.Recenter {
		c := union.Center()
		shift = [3]float32{-c[0], -c[1], -c[2]}
	}
	if have && tr.Normalize {
		target := tr.TargetExtent
		if target <= 0 {
			target = DefaultTargetExtent
		}
		if ext := union.MaxExtent(); ext > 0 {
			scale = target / ext
		}
	}
	apply := shift != [3]float32{} || scale != 1

	haveGroup := false
	for i := range cands {
		c := &cands[i]
		pos := c.Positions
		if apply {
			pos = append([]float32(nil), pos...)
			Translate(pos, shift)
			if scale != 1 {
				Scale(pos, scale)
			}
		}
		m := Mesh{
			Name:      c.Name,
			Source:    c.Source,
			Positions: pos,
			Indices:   c.Indices,
			Color:     Color(i),
		}
		if b, ok := BoundsOf(pos); ok {
			m.Bounds = b
			if !haveGroup {
				g.Bounds, haveGroup = b, true
			} else {
				g.Bounds = g.Bounds.Union(b)
			}
		}
		g.Meshes = append(g.Meshes, m)
	}
	g.Shift = shift
	g.Scale = scale
	return g
}

// Merge flattens the group into a single vertex/index buffer for
// single-mesh exports. Indices are rebased onto the combined range.
func (g *Group) Merge() (positions []float32, indices []uint32) {
	for i := range g.Meshes {
		m := &g.Meshes[i]
		base := uint32(len(positions) / 3)
		positions = append(positions, m.Positions...)
		for _, ix := range m.Indices {
			indices = append(indices, base+ix)
		}
	}
	return positions, indices
}

// Provenance describes the salvaged source recorded in an archive manifest.
type Provenance struct {
	Tool         string
	SourceFile   string
	SourceSHA256 string
	SourceBytes  int64
}

// BuildArchive converts a recovery result into a packable archive,
// applying the given group transform.
func BuildArchive(res *salvage.Result, tr Transform, prov Provenance) *smf.Archive {
	g := Build(res.Candidates, tr)

	a := &smf.Archive{
		Manifest: smf.Manifest{
			Tool:         prov.Tool,
			CreatedAt:    time.Now().UTC(),
			SourceFile:   prov.SourceFile,
			SourceSHA256: prov.SourceSHA256,
			SourceBytes:  prov.SourceBytes,
			Variant:      string(res.Header.Variant),
		},
		Meshes: make([]smf.Mesh, 0, len(g.Meshes)),
	}
	if tr.Recenter {
		a.Flags |= smf.FlagRecentred
	}
	for i := range res.Strategies {
		rep := res.Strategies[i]
		a.Manifest.Strategies = append(a.Manifest.Strategies, smf.StrategyNote{
			Name:       rep.Name,
			Skipped:    rep.Skipped,
			Candidates: rep.Candidates,
			Vertices:   rep.Vertices,
			Fault:      rep.Fault,
		})
	}
	for i := range g.Meshes {
		m := &g.Meshes[i]
		a.Meshes = append(a.Meshes, smf.Mesh{
			Name:      m.Name,
			Positions: m.Positions,
			Indices:   m.Indices,
		})
	}
	return a
}
