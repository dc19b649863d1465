package smf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
)

const geometrySectionVersion uint32 = 1

// Mesh is one recovered mesh ready for packing: flat position triplets and
// a triangle index list.
type Mesh struct {
	Name      string
	Positions []float32
	Indices   []uint32
}

// VertexCount returns the number of x,y,z triplets in Positions.
func (m *Mesh) VertexCount() int { return len(m.Positions) / 3 }

// TriangleCount returns the number of triangles described by Indices.
func (m *Mesh) TriangleCount() int { return len(m.Indices) / 3 }

// Archive couples a manifest with the meshes it describes.
type Archive struct {
	Manifest Manifest
	Flags    uint64
	Meshes   []Mesh
}

func validateMesh(m *Mesh) error {
	if m.Name == "" {
		return errors.New("smf: mesh name must be non-empty")
	}
	if len(m.Positions) == 0 || len(m.Positions)%3 != 0 {
		return fmt.Errorf("smf: mesh %q: positions not grouped in triplets", m.Name)
	}
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("smf: mesh %q: indices not grouped in triangles", m.Name)
	}
	verts := uint32(m.VertexCount())
	for _, ix := range m.Indices {
		if ix >= verts {
			return fmt.Errorf("smf: mesh %q: index %d out of range for %d vertices", m.Name, ix, verts)
		}
	}
	return nil
}

// Write streams the archive into f. The manifest's mesh and vertex totals
// are recomputed from the meshes so they can never disagree with the index.
func Write(f *os.File, a *Archive) error {
	if a == nil || len(a.Meshes) == 0 {
		return errors.New("smf: archive requires at least one mesh")
	}
	for i := range a.Meshes {
		if err := validateMesh(&a.Meshes[i]); err != nil {
			return err
		}
	}

	w, err := NewWriter(f)
	if err != nil {
		return err
	}
	if a.Flags != 0 {
		if err := w.AddFlags(a.Flags); err != nil {
			return err
		}
	}

	records := make([]MeshRecord, len(a.Meshes))
	for i := range a.Meshes {
		records[i].Name = a.Meshes[i].Name
		records[i].VertexCount = uint32(a.Meshes[i].VertexCount())
		records[i].TriangleCount = uint32(a.Meshes[i].TriangleCount())
	}

	// Bulk position data, one aligned payload per mesh.
	ps, err := w.BeginSection(SectionPositions, geometrySectionVersion)
	if err != nil {
		return err
	}
	for i := range a.Meshes {
		if err := ps.Align(smfAlign); err != nil {
			return err
		}
		off, err := ps.CurrentAbsOffset()
		if err != nil {
			return err
		}
		payload := float32Bytes(a.Meshes[i].Positions)
		if _, err := ps.Write(payload); err != nil {
			return err
		}
		records[i].PosOff = off
		records[i].PosSize = uint64(len(payload))
	}
	if err := ps.End(); err != nil {
		return err
	}

	// Triangle index data.
	is, err := w.BeginSection(SectionIndices, geometrySectionVersion)
	if err != nil {
		return err
	}
	for i := range a.Meshes {
		if err := is.Align(smfAlign); err != nil {
			return err
		}
		off, err := is.CurrentAbsOffset()
		if err != nil {
			return err
		}
		payload := uint32Bytes(a.Meshes[i].Indices)
		if _, err := is.Write(payload); err != nil {
			return err
		}
		records[i].IdxOff = off
		records[i].IdxSize = uint64(len(payload))
	}
	if err := is.End(); err != nil {
		return err
	}

	indexPayload, err := EncodeMeshIndexSection(records)
	if err != nil {
		return err
	}
	if err := w.WriteSection(SectionMeshIndex, MeshIndexVersion, indexPayload); err != nil {
		return err
	}

	manifest := a.Manifest
	manifest.MeshCount = len(a.Meshes)
	manifest.TotalVertices = 0
	manifest.TotalTriangles = 0
	for i := range a.Meshes {
		manifest.TotalVertices += a.Meshes[i].VertexCount()
		manifest.TotalTriangles += a.Meshes[i].TriangleCount()
	}
	manifestPayload, err := EncodeManifest(&manifest)
	if err != nil {
		return err
	}
	if err := w.WriteSection(SectionManifest, uint32(ManifestVersion), manifestPayload); err != nil {
		return err
	}

	return w.Finalise()
}

// WriteFile creates (or replaces) an SMF archive at path.
func WriteFile(path string, a *Archive) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, a); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadArchive copies every mesh and the manifest out of an open file. The
// result is safe to retain after the file is closed.
func ReadArchive(f *File) (*Archive, error) {
	msec := f.Section(SectionManifest)
	if msec == nil {
		return nil, fmt.Errorf("%w: missing manifest section", ErrCorruptFile)
	}
	manifest, err := ParseManifest(f.SectionData(msec))
	if err != nil {
		return nil, err
	}

	isec := f.Section(SectionMeshIndex)
	if isec == nil {
		return nil, fmt.Errorf("%w: missing mesh index section", ErrCorruptFile)
	}
	mi, err := ParseMeshIndexSection(f.SectionData(isec))
	if err != nil {
		return nil, err
	}

	a := &Archive{
		Manifest: *manifest,
		Flags:    f.Header.Flags,
		Meshes:   make([]Mesh, mi.Count()),
	}
	for i := range a.Meshes {
		name, err := mi.Name(i)
		if err != nil {
			return nil, err
		}
		pos, err := mi.Positions(f, i)
		if err != nil {
			return nil, err
		}
		idx, err := mi.Indices(f, i)
		if err != nil {
			return nil, err
		}
		a.Meshes[i] = Mesh{Name: name, Positions: pos, Indices: idx}
	}
	return a, nil
}

// ReadFile opens, copies out, and closes an SMF archive.
func ReadFile(path string) (*Archive, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ReadArchive(f)
}

func float32Bytes(vs []float32) []byte {
	out := make([]byte, len(vs)*4)
	for i, v := range vs {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func uint32Bytes(vs []uint32) []byte {
	out := make([]byte, len(vs)*4)
	for i, v := range vs {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}
