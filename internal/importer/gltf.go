package importer

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/qmuntal/gltf"

	"github.com/samcharles93/salvor/internal/salvage"
)

// importGLTF decodes glTF and GLB scenes. Only POSITION attributes and
// triangle indices are lifted; materials, nodes and animations are left
// behind.
func importGLTF(path string) ([]salvage.Candidate, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}

	var cands []salvage.Candidate
	for _, mesh := range doc.Meshes {
		for pi, prim := range mesh.Primitives {
			posIdx, ok := prim.Attributes["POSITION"]
			if !ok {
				continue
			}
			positions, err := readVec3Accessor(doc, posIdx)
			if err != nil {
				return nil, fmt.Errorf("mesh %q: %w", mesh.Name, err)
			}
			var indices []uint32
			if prim.Indices != nil {
				indices, err = readIndexAccessor(doc, *prim.Indices)
				if err != nil {
					return nil, fmt.Errorf("mesh %q: %w", mesh.Name, err)
				}
				verts := uint32(len(positions) / 3)
				for _, ix := range indices {
					if ix >= verts {
						return nil, fmt.Errorf("mesh %q: index %d out of range for %d vertices", mesh.Name, ix, verts)
					}
				}
			}

			name := mesh.Name
			switch {
			case name == "":
				name = fmt.Sprintf("gltf%02d", len(cands)+1)
			case len(mesh.Primitives) > 1:
				name = fmt.Sprintf("%s_%02d", mesh.Name, pi+1)
			}
			cands = append(cands, salvage.Candidate{
				Name:      name,
				Source:    string(FormatGLTF),
				Positions: positions,
				Indices:   indices,
			})
		}
	}
	if len(cands) == 0 {
		return nil, fmt.Errorf("%s: no POSITION data in any primitive", path)
	}
	return cands, nil
}

// accessorBytes resolves an accessor's backing view and returns the view
// bytes together with the element stride.
func accessorBytes(doc *gltf.Document, acc *gltf.Accessor, elemSize int) ([]byte, int, error) {
	if acc.BufferView == nil {
		return nil, 0, fmt.Errorf("sparse accessors not supported")
	}
	vi := *acc.BufferView
	if vi < 0 || vi >= len(doc.BufferViews) {
		return nil, 0, fmt.Errorf("buffer view %d out of range", vi)
	}
	view := doc.BufferViews[vi]
	if view.Buffer < 0 || view.Buffer >= len(doc.Buffers) {
		return nil, 0, fmt.Errorf("buffer %d out of range", view.Buffer)
	}
	data := doc.Buffers[view.Buffer].Data
	if view.ByteOffset < 0 || view.ByteLength < 0 || view.ByteOffset+view.ByteLength > len(data) {
		return nil, 0, fmt.Errorf("buffer view %d exceeds buffer data", vi)
	}
	stride := view.ByteStride
	if stride == 0 {
		stride = elemSize
	}
	return data[view.ByteOffset : view.ByteOffset+view.ByteLength], stride, nil
}

func readVec3Accessor(doc *gltf.Document, idx int) ([]float32, error) {
	if idx < 0 || idx >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", idx)
	}
	acc := doc.Accessors[idx]
	if acc.ComponentType != gltf.ComponentFloat || acc.Type != gltf.AccessorVec3 {
		return nil, fmt.Errorf("accessor %d: POSITION must be float vec3", idx)
	}
	data, stride, err := accessorBytes(doc, acc, 12)
	if err != nil {
		return nil, err
	}

	out := make([]float32, 0, acc.Count*3)
	for i := 0; i < acc.Count; i++ {
		off := i*stride + acc.ByteOffset
		if off < 0 || off+12 > len(data) {
			return nil, fmt.Errorf("accessor %d: vertex %d exceeds buffer view", idx, i)
		}
		x := binary.LittleEndian.Uint32(data[off:])
		y := binary.LittleEndian.Uint32(data[off+4:])
		z := binary.LittleEndian.Uint32(data[off+8:])
		out = append(out, math.Float32frombits(x), math.Float32frombits(y), math.Float32frombits(z))
	}
	return out, nil
}

func readIndexAccessor(doc *gltf.Document, idx int) ([]uint32, error) {
	if idx < 0 || idx >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", idx)
	}
	acc := doc.Accessors[idx]
	if acc.Type != gltf.AccessorScalar {
		return nil, fmt.Errorf("accessor %d: indices must be scalar", idx)
	}
	var size int
	switch acc.ComponentType {
	case gltf.ComponentUbyte:
		size = 1
	case gltf.ComponentUshort:
		size = 2
	case gltf.ComponentUint:
		size = 4
	default:
		return nil, fmt.Errorf("accessor %d: unsupported index component type %d", idx, acc.ComponentType)
	}
	data, stride, err := accessorBytes(doc, acc, size)
	if err != nil {
		return nil, err
	}

	out := make([]uint32, 0, acc.Count)
	for i := 0; i < acc.Count; i++ {
		off := i*stride + acc.ByteOffset
		if off < 0 || off+size > len(data) {
			return nil, fmt.Errorf("accessor %d: index %d exceeds buffer view", idx, i)
		}
		switch size {
		case 1:
			out = append(out, uint32(data[off]))
		case 2:
			out = append(out, uint32(binary.LittleEndian.Uint16(data[off:])))
		default:
			out = append(out, binary.LittleEndian.Uint32(data[off:]))
		}
	}
	return out, nil
}
