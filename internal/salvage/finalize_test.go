package salvage

import (
	"fmt"
	"reflect"
	"testing"
)

func offsetVerts(n int, dx float32) []float32 {
	pts := gridVerts(n)
	for i := 0; i < len(pts); i += 3 {
		pts[i] += dx
	}
	return pts
}

func TestFinalizeDedupsAndRanks(t *testing.T) {
	t.Parallel()
	tun := DefaultTunables()

	shared := gridVerts(12)
	raw := []Candidate{
		{Name: "block01", Positions: shared, Source: "block"},
		{Name: "scan01", Positions: append([]float32(nil), shared...), Source: "scan"},
		{Name: "scan02", Positions: offsetVerts(30, 100), Source: "scan"},
		{Name: "stride6_01", Positions: gridVerts(2), Source: "stride6"},
	}

	out := finalizeCandidates(raw, &tun)
	if len(out) != 2 {
		t.Fatalf("got %d candidates, want 2", len(out))
	}
	if out[0].Name != "scan02" || out[1].Name != "block01" {
		t.Fatalf("order = [%q %q], want [scan02 block01]", out[0].Name, out[1].Name)
	}
	if len(out[0].Indices) != 30 || len(out[1].Indices) != 12 {
		t.Errorf("index lengths = %d, %d, want 30, 12", len(out[0].Indices), len(out[1].Indices))
	}
	for _, c := range out {
		verts := uint32(c.VertexCount())
		for _, ix := range c.Indices {
			if ix >= verts {
				t.Fatalf("%s: index %d out of range for %d vertices", c.Name, ix, verts)
			}
		}
	}
}

func TestFinalizeDropsLeftoverVertices(t *testing.T) {
	t.Parallel()
	tun := DefaultTunables()

	out := finalizeCandidates([]Candidate{{Name: "scan01", Positions: gridVerts(13)}}, &tun)
	if len(out) != 1 {
		t.Fatalf("got %d candidates, want 1", len(out))
	}
	c := out[0]
	if len(c.Indices) != 12 {
		t.Fatalf("index count = %d, want 12", len(c.Indices))
	}
	if c.TriangleCount() != 4 {
		t.Errorf("triangle count = %d, want 4", c.TriangleCount())
	}
	for i, ix := range c.Indices {
		if ix != uint32(i) {
			t.Fatalf("index[%d] = %d, want %d", i, ix, i)
		}
	}
}

func TestFinalizeKeepsExplicitIndices(t *testing.T) {
	t.Parallel()
	tun := DefaultTunables()

	idx := []uint32{2, 1, 0, 0, 2, 3}
	out := finalizeCandidates([]Candidate{{Name: "block01", Positions: gridVerts(4), Indices: idx}}, &tun)
	if len(out) != 1 {
		t.Fatalf("got %d candidates, want 1", len(out))
	}
	if !reflect.DeepEqual(out[0].Indices, idx) {
		t.Errorf("indices rewritten: %v", out[0].Indices)
	}
}

func TestFinalizeTruncatesToCap(t *testing.T) {
	t.Parallel()
	tun := DefaultTunables()

	var raw []Candidate
	for i := 0; i < tun.MaxCandidates+8; i++ {
		raw = append(raw, Candidate{
			Name:      fmt.Sprintf("scan%02d", i+1),
			Positions: offsetVerts(8+i, float32(i)*50),
			Source:    "scan",
		})
	}

	out := finalizeCandidates(raw, &tun)
	if len(out) != tun.MaxCandidates {
		t.Fatalf("got %d candidates, want %d", len(out), tun.MaxCandidates)
	}
	for i := 1; i < len(out); i++ {
		if out[i].VertexCount() > out[i-1].VertexCount() {
			t.Fatalf("candidates not ranked by size at %d: %d > %d",
				i, out[i].VertexCount(), out[i-1].VertexCount())
		}
	}
	// The cap must keep the largest candidates, not the first seen.
	if got := out[0].VertexCount(); got != 8+tun.MaxCandidates+7 {
		t.Errorf("largest kept candidate has %d vertices, want %d", got, 8+tun.MaxCandidates+7)
	}
}

func TestFinalizeIdempotent(t *testing.T) {
	t.Parallel()
	tun := DefaultTunables()

	raw := []Candidate{
		{Name: "block01", Positions: gridVerts(12), Source: "block"},
		{Name: "scan01", Positions: offsetVerts(9, 40), Source: "scan"},
		{Name: "stride6_01", Positions: offsetVerts(20, 80), Source: "stride6"},
	}
	once := finalizeCandidates(raw, &tun)
	twice := finalizeCandidates(once, &tun)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("finalize not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}
