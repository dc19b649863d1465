package smf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func tripleRamp(n int, base float32) []float32 {
	out := make([]float32, 0, n*3)
	for i := 0; i < n; i++ {
		out = append(out, base+float32(i), base+float32(i)*2, base-float32(i))
	}
	return out
}

func testArchive() *Archive {
	return &Archive{
		Manifest: Manifest{
			Tool:       "salvor/test",
			CreatedAt:  time.Unix(1700000000, 0).UTC(),
			SourceFile: "wreck.blend",
			Variant:    "blend",
			Strategies: []StrategyNote{
				{Name: "block", Candidates: 1, Vertices: 9},
				{Name: "stride", Skipped: true},
			},
		},
		Flags: FlagRecentred,
		Meshes: []Mesh{
			{Name: "block01", Positions: tripleRamp(9, 1), Indices: []uint32{0, 1, 2, 3, 4, 5, 6, 7, 8}},
			{Name: "scan01", Positions: tripleRamp(4, 50), Indices: []uint32{0, 1, 2}},
		},
	}
}

func writeTestArchive(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recovered.smf")
	if err := WriteFile(path, testArchive()); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	return path
}

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()

	path := writeTestArchive(t)
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}

	want := testArchive()
	if got.Flags != FlagRecentred {
		t.Errorf("flags = %#x, want %#x", got.Flags, FlagRecentred)
	}
	if len(got.Meshes) != len(want.Meshes) {
		t.Fatalf("got %d meshes, want %d", len(got.Meshes), len(want.Meshes))
	}
	// Index order is name-sorted; the fixture is already sorted.
	for i := range want.Meshes {
		if got.Meshes[i].Name != want.Meshes[i].Name {
			t.Errorf("mesh %d name = %q, want %q", i, got.Meshes[i].Name, want.Meshes[i].Name)
		}
		if !reflect.DeepEqual(got.Meshes[i].Positions, want.Meshes[i].Positions) {
			t.Errorf("mesh %d positions mismatch", i)
		}
		if !reflect.DeepEqual(got.Meshes[i].Indices, want.Meshes[i].Indices) {
			t.Errorf("mesh %d indices mismatch", i)
		}
	}

	m := got.Manifest
	if m.ManifestVersion != ManifestVersion {
		t.Errorf("manifest version = %d, want %d", m.ManifestVersion, ManifestVersion)
	}
	if m.Tool != "salvor/test" || m.SourceFile != "wreck.blend" || m.Variant != "blend" {
		t.Errorf("manifest provenance = %+v", m)
	}
	if !m.CreatedAt.Equal(want.Manifest.CreatedAt) {
		t.Errorf("created at = %v, want %v", m.CreatedAt, want.Manifest.CreatedAt)
	}
	// Totals are recomputed at write time.
	if m.MeshCount != 2 || m.TotalVertices != 13 || m.TotalTriangles != 4 {
		t.Errorf("manifest totals = %d/%d/%d, want 2/13/4", m.MeshCount, m.TotalVertices, m.TotalTriangles)
	}
	if len(m.Strategies) != 2 || m.Strategies[1].Skipped != true {
		t.Errorf("strategies = %+v", m.Strategies)
	}
}

func TestOpenMapsAndAligns(t *testing.T) {
	t.Parallel()

	path := writeTestArchive(t)
	f, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			t.Fatalf("close: %v", cerr)
		}
	}()

	if f.Header.HeaderSize != smfHeaderSize {
		t.Fatalf("header size = %d, want %d", f.Header.HeaderSize, smfHeaderSize)
	}
	if len(f.Sections) != 4 {
		t.Fatalf("got %d sections, want 4", len(f.Sections))
	}
	for i, s := range f.Sections {
		if s.Offset%smfAlign != 0 {
			t.Errorf("section %d offset %d not %d-byte aligned", i, s.Offset, smfAlign)
		}
	}

	mi, err := ParseMeshIndexSection(f.SectionData(f.Section(SectionMeshIndex)))
	if err != nil {
		t.Fatalf("parse mesh index: %v", err)
	}
	if mi.Count() != 2 {
		t.Fatalf("mesh count = %d, want 2", mi.Count())
	}
	if mi.Flags()&MeshIndexFlagSortedByName == 0 {
		t.Error("sorted flag not set")
	}

	i, ok := mi.Find("scan01")
	if !ok {
		t.Fatal("Find(scan01) missed")
	}
	e, err := mi.Entry(i)
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	if e.VertexCount != 4 || e.TriangleCount != 1 {
		t.Errorf("scan01 counts = %d/%d, want 4/1", e.VertexCount, e.TriangleCount)
	}
	if e.PosOff%smfAlign != 0 || e.IdxOff%smfAlign != 0 {
		t.Errorf("mesh payloads not aligned: pos %d idx %d", e.PosOff, e.IdxOff)
	}

	pos, err := mi.Positions(f, i)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if !reflect.DeepEqual(pos, tripleRamp(4, 50)) {
		t.Error("scan01 positions mismatch")
	}
	raw, err := mi.PositionBytes(f, i)
	if err != nil {
		t.Fatalf("position bytes: %v", err)
	}
	if len(raw) != int(e.PosSize) {
		t.Errorf("raw position length = %d, want %d", len(raw), e.PosSize)
	}

	if _, ok := mi.Find("missing"); ok {
		t.Error("Find(missing) hit")
	}
}

func TestParseRejectsCorruptFiles(t *testing.T) {
	t.Parallel()

	path := writeTestArchive(t)
	good, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}

	mutate := func(fn func([]byte) []byte) []byte {
		data := append([]byte(nil), good...)
		return fn(data)
	}

	cases := []struct {
		name string
		data []byte
		want error
	}{
		{"truncated", good[:20], ErrCorruptFile},
		{"bad magic", mutate(func(b []byte) []byte { b[0] = 'X'; return b }), ErrInvalidMagic},
		{"future major", mutate(func(b []byte) []byte {
			binary.LittleEndian.PutUint16(b[4:6], CurrentMajor+1)
			return b
		}), ErrUnsupportedMajor},
		{"file size mismatch", mutate(func(b []byte) []byte { return append(b, 0) }), ErrCorruptFile},
		{"directory out of bounds", mutate(func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[16:24], uint64(len(b))*2)
			return b
		}), ErrCorruptFile},
	}
	for _, tc := range cases {
		if _, err := parseFileData(tc.data, false); !errors.Is(err, tc.want) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestParseMeshIndexRejectsCorrupt(t *testing.T) {
	t.Parallel()

	records := []MeshRecord{{
		Name: "block01", VertexCount: 3, TriangleCount: 1,
		PosOff: 48, PosSize: 36, IdxOff: 88, IdxSize: 12,
	}}
	good, err := EncodeMeshIndexSection(records)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := ParseMeshIndexSection(good); err != nil {
		t.Fatalf("parse valid payload: %v", err)
	}

	mutate := func(fn func([]byte)) []byte {
		b := append([]byte(nil), good...)
		fn(b)
		return b
	}

	if _, err := ParseMeshIndexSection(good[:meshIndexHeaderSize-1]); !errors.Is(err, ErrCorruptFile) {
		t.Errorf("short payload: err = %v", err)
	}
	futureVersion := mutate(func(b []byte) { binary.LittleEndian.PutUint32(b[0:4], 99) })
	if _, err := ParseMeshIndexSection(futureVersion); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("future version: err = %v", err)
	}
	zeroCount := mutate(func(b []byte) { binary.LittleEndian.PutUint32(b[8:12], 0) })
	if _, err := ParseMeshIndexSection(zeroCount); !errors.Is(err, ErrCorruptFile) {
		t.Errorf("zero count: err = %v", err)
	}
	nameOverrun := mutate(func(b []byte) {
		binary.LittleEndian.PutUint32(b[meshIndexHeaderSize+4:], 0xFFFF)
	})
	if _, err := ParseMeshIndexSection(nameOverrun); !errors.Is(err, ErrCorruptFile) {
		t.Errorf("name overrun: err = %v", err)
	}
	sizeDisagrees := mutate(func(b []byte) {
		binary.LittleEndian.PutUint64(b[meshIndexHeaderSize+24:], 37)
	})
	if _, err := ParseMeshIndexSection(sizeDisagrees); err == nil {
		t.Error("size/count disagreement accepted")
	}
}

func TestWriterRejectsMisuse(t *testing.T) {
	t.Parallel()

	f, err := os.Create(filepath.Join(t.TempDir(), "misuse.smf"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer func() { _ = f.Close() }()

	w, err := NewWriter(f)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	sw, err := w.BeginSection(SectionPositions, 1)
	if err != nil {
		t.Fatalf("begin section: %v", err)
	}
	if err := w.WriteSection(SectionManifest, 1, []byte("{}")); err == nil {
		t.Error("write during open section accepted")
	}
	if _, err := sw.Write([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("section write: %v", err)
	}
	if err := sw.End(); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := sw.End(); err == nil {
		t.Error("double End accepted")
	}
	if _, err := w.BeginSection(SectionPositions, 1); err == nil {
		t.Error("duplicate section type accepted")
	}
	if err := w.Finalise(); err != nil {
		t.Fatalf("finalise: %v", err)
	}
	if err := w.WriteSection(SectionManifest, 1, nil); err == nil {
		t.Error("write after finalise accepted")
	}
	if err := w.Finalise(); err == nil {
		t.Error("double finalise accepted")
	}
}

func TestWriteValidatesMeshes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	newFile := func(name string) *os.File {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		t.Cleanup(func() { _ = f.Close() })
		return f
	}

	if err := Write(newFile("empty.smf"), &Archive{}); err == nil {
		t.Error("empty archive accepted")
	}
	badIndex := &Archive{Meshes: []Mesh{{
		Name: "block01", Positions: tripleRamp(3, 0), Indices: []uint32{0, 1, 9},
	}}}
	if err := Write(newFile("badindex.smf"), badIndex); err == nil {
		t.Error("out-of-range index accepted")
	}
	badTriplets := &Archive{Meshes: []Mesh{{
		Name: "block01", Positions: []float32{1, 2},
	}}}
	if err := Write(newFile("badtriplets.smf"), badTriplets); err == nil {
		t.Error("ragged positions accepted")
	}
}

func TestHeaderAndSectionEncodingLittleEndian(t *testing.T) {
	t.Parallel()

	h := Header{
		Magic:            [4]byte{'S', 'M', 'F', 0},
		Major:            0x1122,
		Minor:            0x3344,
		HeaderSize:       smfHeaderSize,
		SectionCount:     4,
		SectionDirOffset: 0x0102030405060708,
		FileSize:         0x1112131415161718,
		Flags:            0x2122232425262728,
	}
	var hdrRaw [smfHeaderSize]byte
	if !encodeHeader(hdrRaw[:], h) {
		t.Fatalf("encode header failed")
	}
	if hdrRaw[4] != 0x22 || hdrRaw[5] != 0x11 {
		t.Fatalf("major is not little-endian: %x", hdrRaw[4:6])
	}
	if hdrRaw[16] != 0x08 || hdrRaw[23] != 0x01 {
		t.Fatalf("section dir offset is not little-endian: %x", hdrRaw[16:24])
	}
	decodedH, ok := decodeHeader(hdrRaw[:])
	if !ok {
		t.Fatalf("decode header failed")
	}
	if decodedH != h {
		t.Fatalf("header round-trip mismatch: got %+v want %+v", decodedH, h)
	}

	s := Section{
		Type:    0x11223344,
		Version: 0x55667788,
		Offset:  0x0102030405060708,
		Size:    0x1112131415161718,
	}
	var secRaw [smfSectionSize]byte
	if !encodeSection(secRaw[:], s) {
		t.Fatalf("encode section failed")
	}
	if secRaw[0] != 0x44 || secRaw[3] != 0x11 {
		t.Fatalf("section type is not little-endian: %x", secRaw[0:4])
	}
	decodedS, ok := decodeSection(secRaw[:])
	if !ok {
		t.Fatalf("decode section failed")
	}
	if decodedS != s {
		t.Fatalf("section round-trip mismatch: got %+v want %+v", decodedS, s)
	}
}

func TestManifestVersionGate(t *testing.T) {
	t.Parallel()

	raw, err := EncodeManifest(&Manifest{Tool: "salvor/test", CreatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	m, err := ParseManifest(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.ManifestVersion != ManifestVersion {
		t.Errorf("version = %d, want stamped %d", m.ManifestVersion, ManifestVersion)
	}

	future := bytes.Replace(raw,
		[]byte(`"manifest_version":1`),
		[]byte(`"manifest_version":99`), 1)
	if _, err := ParseManifest(future); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("future manifest: err = %v", err)
	}
	if _, err := ParseManifest([]byte(`{"tool":"x"}`)); !errors.Is(err, ErrCorruptFile) {
		t.Errorf("versionless manifest: err = %v", err)
	}
}
