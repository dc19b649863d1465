// Package objfile reads and writes Wavefront OBJ geometry.
//
// Only position and face statements matter here; texture coordinates,
// normals, materials and groups are skipped on read and never written.
// Faces with more than three corners are fan-triangulated, and negative
// (end-relative) indices are resolved against the vertices defined so far.
package objfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrMalformed reports OBJ input the parser cannot make sense of.
var ErrMalformed = errors.New("objfile: malformed file")

// Read parses OBJ data from r into flat position triplets and a triangle
// index list.
func Read(r io.Reader) ([]float32, []uint32, error) {
	var (
		positions []float32
		indices   []uint32
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, nil, fmt.Errorf("%w: line %d: vertex needs x y z", ErrMalformed, lineNum)
			}
			for i := 0; i < 3; i++ {
				v, err := strconv.ParseFloat(fields[i+1], 32)
				if err != nil {
					return nil, nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, lineNum, err)
				}
				positions = append(positions, float32(v))
			}
		case "f":
			corners := fields[1:]
			if len(corners) < 3 {
				return nil, nil, fmt.Errorf("%w: line %d: face needs 3 corners", ErrMalformed, lineNum)
			}
			face := make([]uint32, 0, len(corners))
			for _, c := range corners {
				idx, err := resolveIndex(c, len(positions)/3)
				if err != nil {
					return nil, nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, lineNum, err)
				}
				face = append(face, idx)
			}
			for i := 2; i < len(face); i++ {
				indices = append(indices, face[0], face[i-1], face[i])
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("objfile: scan: %w", err)
	}
	if len(positions) == 0 {
		return nil, nil, fmt.Errorf("%w: no geometry", ErrMalformed)
	}
	return positions, indices, nil
}

// ReadFile parses the OBJ file at path.
func ReadFile(path string) ([]float32, []uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = f.Close() }()
	return Read(f)
}

// resolveIndex turns one face corner ("7", "7/1", "7//2", "-1") into a
// zero-based vertex index. OBJ indices are 1-based; negative values count
// back from the most recently defined vertex.
func resolveIndex(corner string, defined int) (uint32, error) {
	ref := corner
	if slash := strings.IndexByte(corner, '/'); slash >= 0 {
		ref = corner[:slash]
	}
	v, err := strconv.Atoi(ref)
	if err != nil {
		return 0, fmt.Errorf("bad index %q", corner)
	}
	switch {
	case v > 0:
		v--
	case v < 0:
		v = defined + v
	default:
		return 0, fmt.Errorf("index 0 in %q (indices are 1-based)", corner)
	}
	if v < 0 || v >= defined {
		return 0, fmt.Errorf("index %q out of range for %d vertices", corner, defined)
	}
	return uint32(v), nil
}

// Write encodes the mesh as OBJ, one object named name.
func Write(w io.Writer, name string, positions []float32, indices []uint32) error {
	if len(positions) == 0 || len(positions)%3 != 0 {
		return fmt.Errorf("objfile: positions not grouped in triplets")
	}
	if len(indices)%3 != 0 {
		return fmt.Errorf("objfile: indices not grouped in triangles")
	}
	verts := uint32(len(positions) / 3)
	for _, ix := range indices {
		if ix >= verts {
			return fmt.Errorf("objfile: index %d out of range for %d vertices", ix, verts)
		}
	}

	bw := bufio.NewWriter(w)
	if name != "" {
		if _, err := fmt.Fprintf(bw, "o %s\n", name); err != nil {
			return err
		}
	}
	for i := 0; i < len(positions); i += 3 {
		if _, err := fmt.Fprintf(bw, "v %s %s %s\n",
			formatCoord(positions[i]),
			formatCoord(positions[i+1]),
			formatCoord(positions[i+2]),
		); err != nil {
			return err
		}
	}
	for i := 0; i < len(indices); i += 3 {
		if _, err := fmt.Fprintf(bw, "f %d %d %d\n",
			indices[i]+1, indices[i+1]+1, indices[i+2]+1,
		); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile encodes the mesh as OBJ at path.
func WriteFile(path, name string, positions []float32, indices []uint32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, name, positions, indices); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func formatCoord(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}
