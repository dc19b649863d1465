package importer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/samcharles93/salvor/pkg/smf"
	"github.com/samcharles93/salvor/pkg/stl"
)

// utf16le encodes an ASCII string the way the SketchUp header stores it.
func utf16le(s string) []byte {
	out := make([]byte, 0, len(s)*2)
	for i := 0; i < len(s); i++ {
		out = append(out, s[i], 0)
	}
	return out
}

func TestDetect(t *testing.T) {
	t.Parallel()

	skpHead := append([]byte{0xFF, 0xFE}, utf16le("SketchUp Model")...)

	cases := []struct {
		name string
		path string
		head []byte
		want Format
	}{
		{"glb magic", "scene.bin", []byte("glTF\x02\x00\x00\x00"), FormatGLB},
		{"smf magic", "result.dat", []byte("SMF\x00rest"), FormatSMF},
		{"ply magic", "scan.dat", []byte("ply\nformat ascii 1.0\n"), FormatPLY},
		{"ply crlf magic", "scan.dat", []byte("ply\r\nformat ascii 1.0\r\n"), FormatPLY},
		{"blend header", "broken.dat", []byte("BLENDER_v405" + "rest"), FormatHeuristic},
		{"sketchup marker", "broken.dat", skpHead, FormatHeuristic},
		{"solid prefix", "exported", []byte("solid part\n facet"), FormatSTL},
		{"stl extension", "part.stl", []byte{0xDE, 0xAD, 0xBE, 0xEF}, FormatSTL},
		{"obj extension", "mesh.obj", []byte("# exported cube\n"), FormatOBJ},
		{"gltf extension", "scene.gltf", []byte(`{"asset":{"version":"2.0"}}`), FormatGLTF},
		{"glb extension", "scene.glb", nil, FormatGLB},
		{"ply extension", "scan.ply", nil, FormatPLY},
		{"smf extension", "result.smf", nil, FormatSMF},
		{"blend extension", "backup.blend", nil, FormatHeuristic},
		{"skp extension", "model.skp", nil, FormatHeuristic},
		{"unknown", "README.md", []byte("# notes\n"), FormatUnknown},
	}
	for _, tc := range cases {
		if got := Detect(tc.path, tc.head); got != tc.want {
			t.Errorf("%s: Detect = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestImportOBJ(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mesh.obj")
	src := "v 0 0 0\nv 1 0 0\nv 1 1 0\nv 0 1 0\nf 1 2 3 4\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	cands, format, err := Import(path)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if format != FormatOBJ {
		t.Fatalf("format = %q", format)
	}
	if len(cands) != 1 || cands[0].Name != "obj01" || cands[0].Source != "obj" {
		t.Fatalf("candidates = %+v", cands)
	}
	if cands[0].VertexCount() != 4 {
		t.Fatalf("vertex count = %d", cands[0].VertexCount())
	}
	if want := []uint32{0, 1, 2, 0, 2, 3}; !reflect.DeepEqual(cands[0].Indices, want) {
		t.Fatalf("indices = %v", cands[0].Indices)
	}
}

func TestImportSTL(t *testing.T) {
	t.Parallel()

	positions := []float32{0, 0, 0, 2, 0, 0, 2, 2, 0, 0, 2, 0}
	indices := []uint32{0, 1, 2, 0, 2, 3}
	path := filepath.Join(t.TempDir(), "part.stl")
	if err := stl.WriteFile(path, positions, indices); err != nil {
		t.Fatal(err)
	}

	cands, format, err := Import(path)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if format != FormatSTL {
		t.Fatalf("format = %q", format)
	}
	if len(cands) != 1 || cands[0].Name != "stl01" {
		t.Fatalf("candidates = %+v", cands)
	}
	if !reflect.DeepEqual(cands[0].Positions, positions) {
		t.Fatalf("positions = %v", cands[0].Positions)
	}
	if !reflect.DeepEqual(cands[0].Indices, indices) {
		t.Fatalf("indices = %v", cands[0].Indices)
	}
}

func TestImportSMF(t *testing.T) {
	t.Parallel()

	a := &smf.Archive{
		Manifest: smf.Manifest{Tool: "salvor test"},
		Meshes: []smf.Mesh{
			{Name: "block01", Positions: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}, Indices: []uint32{0, 1, 2}},
			{Name: "scan01", Positions: []float32{5, 5, 5, 6, 5, 5, 5, 6, 5}, Indices: []uint32{0, 1, 2}},
		},
	}
	path := filepath.Join(t.TempDir(), "result.smf")
	if err := smf.WriteFile(path, a); err != nil {
		t.Fatal(err)
	}

	cands, format, err := Import(path)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if format != FormatSMF {
		t.Fatalf("format = %q", format)
	}
	if len(cands) != 2 || cands[0].Name != "block01" || cands[1].Name != "scan01" {
		t.Fatalf("candidates = %+v", cands)
	}
	if cands[0].Source != "smf" {
		t.Fatalf("source = %q", cands[0].Source)
	}
	if !reflect.DeepEqual(cands[1].Positions, a.Meshes[1].Positions) {
		t.Fatalf("positions = %v", cands[1].Positions)
	}
}

func TestImportRoutesClosedContainersToEngine(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.blend")
	head := append([]byte("BLENDER_v405"), make([]byte, 64)...)
	if err := os.WriteFile(path, head, 0o644); err != nil {
		t.Fatal(err)
	}

	cands, format, err := Import(path)
	if !errors.Is(err, ErrHeuristicFormat) {
		t.Fatalf("err = %v", err)
	}
	if format != FormatHeuristic || cands != nil {
		t.Fatalf("format = %q, candidates = %v", format, cands)
	}
}

func TestImportRejectsUnknown(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("just text\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, format, err := Import(path)
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err = %v", err)
	}
	if format != FormatUnknown {
		t.Fatalf("format = %q", format)
	}
}

// writeGLB assembles a minimal binary glTF: one mesh named "tri" with a
// float vec3 POSITION accessor and uint32 indices.
func writeGLB(t *testing.T, path string) (positions []float32, indices []uint32) {
	t.Helper()

	positions = []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}
	indices = []uint32{0, 1, 2}

	doc := `{"asset":{"version":"2.0"},` +
		`"meshes":[{"name":"tri","primitives":[{"attributes":{"POSITION":0},"indices":1}]}],` +
		`"accessors":[` +
		`{"bufferView":0,"componentType":5126,"count":3,"type":"VEC3"},` +
		`{"bufferView":1,"componentType":5125,"count":3,"type":"SCALAR"}],` +
		`"bufferViews":[` +
		`{"buffer":0,"byteOffset":0,"byteLength":36},` +
		`{"buffer":0,"byteOffset":36,"byteLength":12}],` +
		`"buffers":[{"byteLength":48}]}`
	for len(doc)%4 != 0 {
		doc += " "
	}

	bin := make([]byte, 0, 48)
	for _, v := range positions {
		bin = binary.LittleEndian.AppendUint32(bin, math.Float32bits(v))
	}
	for _, ix := range indices {
		bin = binary.LittleEndian.AppendUint32(bin, ix)
	}

	var buf bytes.Buffer
	u32 := func(v uint32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		buf.Write(b[:])
	}
	buf.WriteString("glTF")
	u32(2)
	u32(uint32(12 + 8 + len(doc) + 8 + len(bin)))
	u32(uint32(len(doc)))
	buf.WriteString("JSON")
	buf.WriteString(doc)
	u32(uint32(len(bin)))
	buf.Write([]byte{'B', 'I', 'N', 0})
	buf.Write(bin)

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return positions, indices
}

func TestImportGLB(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "scene.glb")
	positions, indices := writeGLB(t, path)

	cands, format, err := Import(path)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if format != FormatGLB {
		t.Fatalf("format = %q", format)
	}
	if len(cands) != 1 || cands[0].Name != "tri" || cands[0].Source != "gltf" {
		t.Fatalf("candidates = %+v", cands)
	}
	if !reflect.DeepEqual(cands[0].Positions, positions) {
		t.Fatalf("positions = %v", cands[0].Positions)
	}
	if !reflect.DeepEqual(cands[0].Indices, indices) {
		t.Fatalf("indices = %v", cands[0].Indices)
	}
}
