package assemble

import (
	"reflect"
	"testing"

	"github.com/samcharles93/salvor/internal/salvage"
	"github.com/samcharles93/salvor/internal/sniff"
	"github.com/samcharles93/salvor/pkg/smf"
)

// twoTriangles returns a pair of candidates whose union box is exact in
// float32: min (0,0,0), max (8,2,0), centre (4,1,0), extent 8.
func twoTriangles() []salvage.Candidate {
	return []salvage.Candidate{
		{
			Name:      "block01",
			Source:    "block",
			Positions: []float32{0, 0, 0, 2, 0, 0, 0, 2, 0},
			Indices:   []uint32{0, 1, 2},
		},
		{
			Name:      "scan01",
			Source:    "scan",
			Positions: []float32{6, 0, 0, 8, 0, 0, 6, 2, 0},
			Indices:   []uint32{0, 1, 2},
		},
	}
}

func TestBoundsOfAndUnion(t *testing.T) {
	t.Parallel()

	b, ok := BoundsOf([]float32{1, 2, 3, 5, -2, 3, 3, 0, 11})
	if !ok {
		t.Fatal("BoundsOf reported empty input")
	}
	if b.Min != [3]float32{1, -2, 3} || b.Max != [3]float32{5, 2, 11} {
		t.Fatalf("bounds = %v / %v", b.Min, b.Max)
	}
	if c := b.Center(); c != [3]float32{3, 0, 7} {
		t.Fatalf("center = %v", c)
	}
	if s := b.Size(); s != [3]float32{4, 4, 8} {
		t.Fatalf("size = %v", s)
	}
	if e := b.MaxExtent(); e != 8 {
		t.Fatalf("max extent = %v", e)
	}

	other := Bounds{Min: [3]float32{-1, 0, 5}, Max: [3]float32{2, 9, 6}}
	u := b.Union(other)
	if u.Min != [3]float32{-1, -2, 3} || u.Max != [3]float32{5, 9, 11} {
		t.Fatalf("union = %v / %v", u.Min, u.Max)
	}

	if _, ok := BoundsOf(nil); ok {
		t.Fatal("BoundsOf(nil) reported ok")
	}
	if _, ok := BoundsOf([]float32{1, 2}); ok {
		t.Fatal("BoundsOf over a partial triplet reported ok")
	}
	point, ok := BoundsOf([]float32{4, 5, 6})
	if !ok || point.Min != point.Max {
		t.Fatalf("single-vertex bounds = %v / %v (ok=%v)", point.Min, point.Max, ok)
	}
}

func TestTranslateAndScale(t *testing.T) {
	t.Parallel()

	pos := []float32{1, 2, 3, -1, 0, 5}
	Translate(pos, [3]float32{-1, 2, 0})
	if want := []float32{0, 4, 3, -2, 2, 5}; !reflect.DeepEqual(pos, want) {
		t.Fatalf("translated = %v", pos)
	}
	Scale(pos, 0.5)
	if want := []float32{0, 2, 1.5, -1, 1, 2.5}; !reflect.DeepEqual(pos, want) {
		t.Fatalf("scaled = %v", pos)
	}
}

func TestColorPaletteCycles(t *testing.T) {
	t.Parallel()

	if Color(0) == Color(1) {
		t.Fatal("adjacent candidates share a colour")
	}
	if Color(3) != Color(3+len(palette)) {
		t.Fatal("palette does not cycle")
	}
	if got := ColorHex(0); got != "#4e79a7" {
		t.Fatalf("ColorHex(0) = %q", got)
	}
	if Color(-2) != Color(2) {
		t.Fatal("negative index not folded")
	}
}

func TestBuildRecentersGroup(t *testing.T) {
	t.Parallel()

	cands := twoTriangles()
	orig := append([]float32(nil), cands[0].Positions...)

	g := Build(cands, Transform{Recenter: true})
	if g.Shift != [3]float32{-4, -1, 0} {
		t.Fatalf("shift = %v", g.Shift)
	}
	if g.Scale != 1 {
		t.Fatalf("scale = %v", g.Scale)
	}
	if c := g.Bounds.Center(); c != [3]float32{} {
		t.Fatalf("group centre = %v", c)
	}
	// Members keep their relative placement: the first mesh sits left of
	// the origin, not on it.
	if c := g.Meshes[0].Bounds.Center(); c != [3]float32{-3, 0, 0} {
		t.Fatalf("first mesh centre = %v", c)
	}
	if c := g.Meshes[1].Bounds.Center(); c != [3]float32{3, 0, 0} {
		t.Fatalf("second mesh centre = %v", c)
	}
	if !reflect.DeepEqual(cands[0].Positions, orig) {
		t.Fatal("source candidate was mutated")
	}
}

func TestBuildNormalizesToTarget(t *testing.T) {
	t.Parallel()

	g := Build(twoTriangles(), Transform{Normalize: true})
	if g.Scale != 0.25 {
		t.Fatalf("scale = %v", g.Scale)
	}
	if e := g.Bounds.MaxExtent(); e != DefaultTargetExtent {
		t.Fatalf("extent = %v", e)
	}
	// Normalise alone scales about the origin; the centre moves with it.
	if c := g.Bounds.Center(); c != [3]float32{1, 0.25, 0} {
		t.Fatalf("centre = %v", c)
	}

	g = Build(twoTriangles(), Transform{Normalize: true, TargetExtent: 4})
	if g.Scale != 0.5 {
		t.Fatalf("custom target scale = %v", g.Scale)
	}
	if e := g.Bounds.MaxExtent(); e != 4 {
		t.Fatalf("custom target extent = %v", e)
	}
}

func TestBuildRecenterAndNormalize(t *testing.T) {
	t.Parallel()

	g := Build(twoTriangles(), Transform{Recenter: true, Normalize: true})
	if c := g.Bounds.Center(); c != [3]float32{} {
		t.Fatalf("group centre = %v", c)
	}
	if e := g.Bounds.MaxExtent(); e != 2 {
		t.Fatalf("group extent = %v", e)
	}
	wantA := []float32{-1, -0.25, 0, -0.5, -0.25, 0, -1, 0.25, 0}
	wantB := []float32{0.5, -0.25, 0, 1, -0.25, 0, 0.5, 0.25, 0}
	if !reflect.DeepEqual(g.Meshes[0].Positions, wantA) {
		t.Fatalf("first mesh = %v", g.Meshes[0].Positions)
	}
	if !reflect.DeepEqual(g.Meshes[1].Positions, wantB) {
		t.Fatalf("second mesh = %v", g.Meshes[1].Positions)
	}
	for _, v := range g.Meshes[0].Positions {
		if v < -1 || v > 1 {
			t.Fatalf("coordinate %v escaped [-1, 1]", v)
		}
	}
}

func TestBuildSharesBuffersWithoutTransform(t *testing.T) {
	t.Parallel()

	cands := twoTriangles()
	g := Build(cands, Transform{})
	if g.Shift != [3]float32{} || g.Scale != 1 {
		t.Fatalf("identity transform reported shift %v scale %v", g.Shift, g.Scale)
	}
	if &g.Meshes[0].Positions[0] != &cands[0].Positions[0] {
		t.Fatal("positions were copied with no transform requested")
	}
	if &g.Meshes[0].Indices[0] != &cands[0].Indices[0] {
		t.Fatal("indices were copied")
	}
	if g.Meshes[0].Color != Color(0) || g.Meshes[1].Color != Color(1) {
		t.Fatalf("colours = %v, %v", g.Meshes[0].Color, g.Meshes[1].Color)
	}
	if g.Meshes[0].Source != "block" || g.Meshes[1].Source != "scan" {
		t.Fatalf("sources = %q, %q", g.Meshes[0].Source, g.Meshes[1].Source)
	}
}

func TestBuildToleratesEmptyCandidates(t *testing.T) {
	t.Parallel()

	g := Build(nil, Transform{Recenter: true, Normalize: true})
	if len(g.Meshes) != 0 || g.Scale != 1 || g.Shift != [3]float32{} {
		t.Fatalf("empty build = %+v", g)
	}

	cands := []salvage.Candidate{
		{Name: "empty01"},
		twoTriangles()[0],
	}
	g = Build(cands, Transform{Recenter: true})
	if len(g.Meshes) != 2 {
		t.Fatalf("mesh count = %d", len(g.Meshes))
	}
	if c := g.Bounds.Center(); c != [3]float32{} {
		t.Fatalf("group centre = %v", c)
	}
}

func TestMergeRebasesIndices(t *testing.T) {
	t.Parallel()

	g := Build(twoTriangles(), Transform{})
	pos, idx := g.Merge()
	if len(pos) != 18 {
		t.Fatalf("merged position count = %d", len(pos))
	}
	if want := []uint32{0, 1, 2, 3, 4, 5}; !reflect.DeepEqual(idx, want) {
		t.Fatalf("merged indices = %v", idx)
	}
	if pos[9] != 6 {
		t.Fatalf("second mesh start = %v", pos[9:12])
	}
}

func TestBuildArchive(t *testing.T) {
	t.Parallel()

	res := &salvage.Result{
		Header:     sniff.Header{Variant: sniff.VariantBlend},
		Candidates: twoTriangles(),
		Strategies: []salvage.StrategyReport{
			{Name: "block", Candidates: 1, Vertices: 3},
			{Name: "stride", Skipped: true},
		},
	}
	orig := append([]float32(nil), res.Candidates[0].Positions...)

	a := BuildArchive(res, Transform{Recenter: true}, Provenance{
		Tool:         "salvor test",
		SourceFile:   "broken.skp",
		SourceSHA256: "cafe",
		SourceBytes:  1234,
	})

	if a.Flags&smf.FlagRecentred == 0 {
		t.Fatal("recentred flag not set")
	}
	m := a.Manifest
	if m.Tool != "salvor test" || m.SourceFile != "broken.skp" || m.SourceSHA256 != "cafe" || m.SourceBytes != 1234 {
		t.Fatalf("manifest provenance = %+v", m)
	}
	if m.Variant != string(sniff.VariantBlend) {
		t.Fatalf("manifest variant = %q", m.Variant)
	}
	if m.CreatedAt.IsZero() {
		t.Fatal("created_at not stamped")
	}
	if len(m.Strategies) != 2 || m.Strategies[0].Name != "block" || !m.Strategies[1].Skipped {
		t.Fatalf("strategy notes = %+v", m.Strategies)
	}

	if len(a.Meshes) != 2 || a.Meshes[0].Name != "block01" || a.Meshes[1].Name != "scan01" {
		t.Fatalf("meshes = %+v", a.Meshes)
	}
	b, ok := BoundsOf(a.Meshes[0].Positions)
	if !ok || b.Center() != [3]float32{-3, 0, 0} {
		t.Fatalf("first mesh centre = %v (ok=%v)", b.Center(), ok)
	}
	if !reflect.DeepEqual(res.Candidates[0].Positions, orig) {
		t.Fatal("source candidate was mutated by transforms")
	}
}
