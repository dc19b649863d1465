// Package stl reads and writes stereolithography meshes.
//
// Reading accepts both binary and ASCII STL and returns flat position
// triplets plus a triangle index list, deduplicating identical corner
// vertices. Writing always produces binary STL: an 80-byte header, a
// 32-bit triangle count, and one 50-byte record per triangle.
package stl

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// ErrMalformed reports STL input the parser cannot make sense of.
var ErrMalformed = errors.New("stl: malformed file")

const (
	headerSize   = 80
	triangleSize = 50 // normal 12 + vertices 36 + attribute 2
)

// Read parses STL data from r in either encoding.
func Read(r io.Reader) ([]float32, []uint32, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("stl: read: %w", err)
	}
	if isBinary(data) {
		return readBinary(data)
	}
	return readASCII(data)
}

// ReadFile parses the STL file at path.
func ReadFile(path string) ([]float32, []uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = f.Close() }()
	return Read(f)
}

// isBinary detects the encoding. A leading "solid" usually means ASCII, but
// binary headers may spell it too, so the triangle-count size formula gets
// the final say.
func isBinary(data []byte) bool {
	if len(data) < headerSize+4 {
		return false
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("solid")) {
		triCount := binary.LittleEndian.Uint32(data[headerSize : headerSize+4])
		return uint64(len(data)) == headerSize+4+uint64(triCount)*triangleSize
	}
	return true
}

func readBinary(data []byte) ([]float32, []uint32, error) {
	triCount := binary.LittleEndian.Uint32(data[headerSize : headerSize+4])
	expected := uint64(headerSize+4) + uint64(triCount)*triangleSize
	if uint64(len(data)) < expected {
		return nil, nil, fmt.Errorf("%w: expected %d bytes for %d triangles, have %d",
			ErrMalformed, expected, triCount, len(data))
	}

	var (
		positions []float32
		indices   = make([]uint32, 0, int(triCount)*3)
		seen      = make(map[[3]float32]uint32)
	)
	off := headerSize + 4
	for i := uint32(0); i < triCount; i++ {
		off += 12 // facet normal is recomputable; skip it
		for v := 0; v < 3; v++ {
			p := [3]float32{
				float32At(data, off),
				float32At(data, off+4),
				float32At(data, off+8),
			}
			off += 12
			indices = append(indices, internVertex(&positions, seen, p))
		}
		off += 2 // attribute byte count
	}
	return positions, indices, nil
}

func float32At(data []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
}

func internVertex(positions *[]float32, seen map[[3]float32]uint32, p [3]float32) uint32 {
	if idx, ok := seen[p]; ok {
		return idx
	}
	idx := uint32(len(*positions) / 3)
	*positions = append(*positions, p[0], p[1], p[2])
	seen[p] = idx
	return idx
}

func readASCII(data []byte) ([]float32, []uint32, error) {
	var (
		positions []float32
		indices   []uint32
		seen      = make(map[[3]float32]uint32)
		facet     []uint32
		inFacet   bool
	)

	sc := bufio.NewScanner(bytes.NewReader(data))
	lineNum := 0
	for sc.Scan() {
		lineNum++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch strings.ToLower(fields[0]) {
		case "facet":
			inFacet = true
			facet = facet[:0]
		case "vertex":
			if !inFacet {
				return nil, nil, fmt.Errorf("%w: line %d: vertex outside facet", ErrMalformed, lineNum)
			}
			if len(fields) < 4 {
				return nil, nil, fmt.Errorf("%w: line %d: vertex needs x y z", ErrMalformed, lineNum)
			}
			var p [3]float32
			for i := 0; i < 3; i++ {
				v, err := strconv.ParseFloat(fields[i+1], 32)
				if err != nil {
					return nil, nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, lineNum, err)
				}
				p[i] = float32(v)
			}
			facet = append(facet, internVertex(&positions, seen, p))
		case "endfacet":
			if len(facet) < 3 {
				return nil, nil, fmt.Errorf("%w: line %d: facet with %d vertices", ErrMalformed, lineNum, len(facet))
			}
			// Facets are triangles in practice; fan out anything larger.
			for i := 2; i < len(facet); i++ {
				indices = append(indices, facet[0], facet[i-1], facet[i])
			}
			inFacet = false
		}
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("stl: scan: %w", err)
	}
	if len(positions) == 0 {
		return nil, nil, fmt.Errorf("%w: no geometry", ErrMalformed)
	}
	return positions, indices, nil
}

// Write encodes the mesh as binary STL. Facet normals are computed from the
// triangle winding; degenerate triangles get a zero normal.
func Write(w io.Writer, positions []float32, indices []uint32) error {
	if len(positions) == 0 || len(positions)%3 != 0 {
		return fmt.Errorf("stl: positions not grouped in triplets")
	}
	if len(indices) == 0 || len(indices)%3 != 0 {
		return fmt.Errorf("stl: indices not grouped in triangles")
	}
	verts := uint32(len(positions) / 3)
	for _, ix := range indices {
		if ix >= verts {
			return fmt.Errorf("stl: index %d out of range for %d vertices", ix, verts)
		}
	}

	bw := bufio.NewWriter(w)
	var header [headerSize]byte
	copy(header[:], "salvor recovered geometry")
	if _, err := bw.Write(header[:]); err != nil {
		return err
	}
	triCount := uint32(len(indices) / 3)
	if err := binary.Write(bw, binary.LittleEndian, triCount); err != nil {
		return err
	}

	var rec [triangleSize]byte
	for t := uint32(0); t < triCount; t++ {
		a := indices[t*3+0] * 3
		b := indices[t*3+1] * 3
		c := indices[t*3+2] * 3
		n := faceNormal(positions, a, b, c)
		putFloat32(rec[0:], n[0])
		putFloat32(rec[4:], n[1])
		putFloat32(rec[8:], n[2])
		off := 12
		for _, base := range []uint32{a, b, c} {
			putFloat32(rec[off:], positions[base])
			putFloat32(rec[off+4:], positions[base+1])
			putFloat32(rec[off+8:], positions[base+2])
			off += 12
		}
		rec[48], rec[49] = 0, 0
		if _, err := bw.Write(rec[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile encodes the mesh as binary STL at path.
func WriteFile(path string, positions []float32, indices []uint32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, positions, indices); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func putFloat32(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
}

func faceNormal(positions []float32, a, b, c uint32) [3]float32 {
	ux := positions[b] - positions[a]
	uy := positions[b+1] - positions[a+1]
	uz := positions[b+2] - positions[a+2]
	vx := positions[c] - positions[a]
	vy := positions[c+1] - positions[a+1]
	vz := positions[c+2] - positions[a+2]

	nx := uy*vz - uz*vy
	ny := uz*vx - ux*vz
	nz := ux*vy - uy*vx
	mag := float32(math.Sqrt(float64(nx*nx + ny*ny + nz*nz)))
	if mag == 0 {
		return [3]float32{}
	}
	return [3]float32{nx / mag, ny / mag, nz / mag}
}
