package importer

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/samcharles93/salvor/internal/salvage"
)

// ErrMalformedPLY reports a PLY stream the reader cannot make sense of.
var ErrMalformedPLY = errors.New("ply: malformed file")

const (
	plyFormatASCII    = "ascii"
	plyFormatBinaryLE = "binary_little_endian"
)

// plyProperty describes one declared property. countType is empty for
// scalars; for lists, typ holds the element type.
type plyProperty struct {
	name      string
	typ       string
	countType string
}

type plyElement struct {
	name  string
	count int
	props []plyProperty
}

type plyHeader struct {
	format   string
	elements []plyElement
}

func importPLY(path string) ([]salvage.Candidate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	positions, indices, err := readPLY(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return []salvage.Candidate{{
		Name:      "ply01",
		Source:    string(FormatPLY),
		Positions: positions,
		Indices:   indices,
	}}, nil
}

// readPLY decodes ascii and binary_little_endian streams. Elements are
// consumed in declared order; anything that is not the vertex or face
// element is read and discarded. Faces are fan-triangulated. A file with
// no face element decodes as a point set with nil indices.
func readPLY(r io.Reader) ([]float32, []uint32, error) {
	br := bufio.NewReaderSize(r, 1<<20)
	hdr, err := parsePLYHeader(br)
	if err != nil {
		return nil, nil, err
	}

	var positions []float32
	var indices []uint32
	for _, el := range hdr.elements {
		switch el.name {
		case "vertex":
			positions, err = readPLYVertices(br, hdr.format, el)
		case "face":
			indices, err = readPLYFaces(br, hdr.format, el, uint32(len(positions)/3))
		default:
			err = skipPLYElement(br, hdr.format, el)
		}
		if err != nil {
			return nil, nil, err
		}
	}
	if len(positions) == 0 {
		return nil, nil, fmt.Errorf("%w: no vertex element", ErrMalformedPLY)
	}
	return positions, indices, nil
}

func parsePLYHeader(br *bufio.Reader) (*plyHeader, error) {
	magic, err := plyLine(br)
	if err != nil {
		return nil, err
	}
	if magic != "ply" {
		return nil, fmt.Errorf("%w: missing ply magic", ErrMalformedPLY)
	}

	hdr := &plyHeader{}
	for {
		line, err := plyLine(br)
		if err != nil {
			return nil, err
		}
		if line == "end_header" {
			break
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "format":
			if len(fields) < 2 {
				return nil, fmt.Errorf("%w: bad format line %q", ErrMalformedPLY, line)
			}
			switch fields[1] {
			case plyFormatASCII, plyFormatBinaryLE:
				hdr.format = fields[1]
			default:
				return nil, fmt.Errorf("ply: unsupported format %q", fields[1])
			}
		case "comment", "obj_info":
		case "element":
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: bad element line %q", ErrMalformedPLY, line)
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil || count < 0 {
				return nil, fmt.Errorf("%w: bad element count %q", ErrMalformedPLY, fields[2])
			}
			hdr.elements = append(hdr.elements, plyElement{name: fields[1], count: count})
		case "property":
			if len(hdr.elements) == 0 {
				return nil, fmt.Errorf("%w: property before any element", ErrMalformedPLY)
			}
			el := &hdr.elements[len(hdr.elements)-1]
			switch {
			case len(fields) >= 5 && fields[1] == "list":
				el.props = append(el.props, plyProperty{name: fields[4], typ: fields[3], countType: fields[2]})
			case len(fields) >= 3:
				el.props = append(el.props, plyProperty{name: fields[2], typ: fields[1]})
			default:
				return nil, fmt.Errorf("%w: bad property line %q", ErrMalformedPLY, line)
			}
		}
	}
	if hdr.format == "" {
		return nil, fmt.Errorf("%w: missing format line", ErrMalformedPLY)
	}
	return hdr, nil
}

func readPLYVertices(br *bufio.Reader, format string, el plyElement) ([]float32, error) {
	xi, yi, zi := -1, -1, -1
	for i, p := range el.props {
		switch p.name {
		case "x":
			xi = i
		case "y":
			yi = i
		case "z":
			zi = i
		}
	}
	if xi < 0 || yi < 0 || zi < 0 {
		return nil, fmt.Errorf("%w: vertex element missing x/y/z", ErrMalformedPLY)
	}

	positions := make([]float32, 0, el.count*3)
	vals := make([]float64, len(el.props))
	scratch := make([]byte, 8)
	for n := 0; n < el.count; n++ {
		var err error
		if format == plyFormatASCII {
			err = readPLYASCIIRecord(br, el.props, vals, nil)
		} else {
			err = readPLYBinaryRecord(br, el.props, vals, nil, scratch)
		}
		if err != nil {
			return nil, err
		}
		positions = append(positions, float32(vals[xi]), float32(vals[yi]), float32(vals[zi]))
	}
	return positions, nil
}

func readPLYFaces(br *bufio.Reader, format string, el plyElement, verts uint32) ([]uint32, error) {
	found := false
	for _, p := range el.props {
		if p.countType != "" && plyIndexList(p.name) {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: face element missing vertex_indices", ErrMalformedPLY)
	}

	var indices []uint32
	vals := make([]float64, len(el.props))
	scratch := make([]byte, 8)
	var corners []float64
	for n := 0; n < el.count; n++ {
		corners = corners[:0]
		var err error
		if format == plyFormatASCII {
			err = readPLYASCIIRecord(br, el.props, vals, &corners)
		} else {
			err = readPLYBinaryRecord(br, el.props, vals, &corners, scratch)
		}
		if err != nil {
			return nil, err
		}
		if len(corners) < 3 {
			return nil, fmt.Errorf("%w: face with %d corners", ErrMalformedPLY, len(corners))
		}
		for j := 2; j < len(corners); j++ {
			for _, v := range [3]float64{corners[0], corners[j-1], corners[j]} {
				if v < 0 || v != math.Trunc(v) || v >= float64(verts) {
					return nil, fmt.Errorf("%w: index %v out of range for %d vertices", ErrMalformedPLY, v, verts)
				}
				indices = append(indices, uint32(v))
			}
		}
	}
	return indices, nil
}

func skipPLYElement(br *bufio.Reader, format string, el plyElement) error {
	vals := make([]float64, len(el.props))
	scratch := make([]byte, 8)
	for n := 0; n < el.count; n++ {
		var err error
		if format == plyFormatASCII {
			err = readPLYASCIIRecord(br, el.props, vals, nil)
		} else {
			err = readPLYBinaryRecord(br, el.props, vals, nil, scratch)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readPLYBinaryRecord decodes one record. Scalar values land in vals by
// property position; index-list entries are appended to list when the
// caller wants them, other lists are read and dropped.
func readPLYBinaryRecord(br *bufio.Reader, props []plyProperty, vals []float64, list *[]float64, scratch []byte) error {
	for i, p := range props {
		if p.countType != "" {
			cnt, err := readPLYScalar(br, p.countType, scratch)
			if err != nil {
				return err
			}
			n := int(cnt)
			if n < 0 || n > 1<<20 {
				return fmt.Errorf("%w: list of %d entries", ErrMalformedPLY, n)
			}
			for j := 0; j < n; j++ {
				v, err := readPLYScalar(br, p.typ, scratch)
				if err != nil {
					return err
				}
				if list != nil && plyIndexList(p.name) {
					*list = append(*list, v)
				}
			}
			continue
		}
		v, err := readPLYScalar(br, p.typ, scratch)
		if err != nil {
			return err
		}
		vals[i] = v
	}
	return nil
}

func readPLYASCIIRecord(br *bufio.Reader, props []plyProperty, vals []float64, list *[]float64) error {
	line, err := plyLine(br)
	if err != nil {
		return err
	}
	fields := strings.Fields(line)
	fi := 0
	next := func() (float64, error) {
		if fi >= len(fields) {
			return 0, fmt.Errorf("%w: short record %q", ErrMalformedPLY, line)
		}
		v, err := strconv.ParseFloat(fields[fi], 64)
		if err != nil {
			return 0, fmt.Errorf("%w: bad number %q", ErrMalformedPLY, fields[fi])
		}
		fi++
		return v, nil
	}

	for i, p := range props {
		if p.countType != "" {
			cnt, err := next()
			if err != nil {
				return err
			}
			n := int(cnt)
			if n < 0 || n > len(fields) {
				return fmt.Errorf("%w: list of %d entries in %q", ErrMalformedPLY, n, line)
			}
			for j := 0; j < n; j++ {
				v, err := next()
				if err != nil {
					return err
				}
				if list != nil && plyIndexList(p.name) {
					*list = append(*list, v)
				}
			}
			continue
		}
		v, err := next()
		if err != nil {
			return err
		}
		vals[i] = v
	}
	return nil
}

func readPLYScalar(br *bufio.Reader, typ string, scratch []byte) (float64, error) {
	size := plyTypeSize(typ)
	if size == 0 {
		return 0, fmt.Errorf("%w: unknown type %q", ErrMalformedPLY, typ)
	}
	buf := scratch[:size]
	if _, err := io.ReadFull(br, buf); err != nil {
		return 0, fmt.Errorf("%w: truncated data", ErrMalformedPLY)
	}
	switch typ {
	case "char", "int8":
		return float64(int8(buf[0])), nil
	case "uchar", "uint8":
		return float64(buf[0]), nil
	case "short", "int16":
		return float64(int16(binary.LittleEndian.Uint16(buf))), nil
	case "ushort", "uint16":
		return float64(binary.LittleEndian.Uint16(buf)), nil
	case "int", "int32":
		return float64(int32(binary.LittleEndian.Uint32(buf))), nil
	case "uint", "uint32":
		return float64(binary.LittleEndian.Uint32(buf)), nil
	case "float", "float32":
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf))), nil
	default:
		return math.Float64frombits(binary.LittleEndian.Uint64(buf)), nil
	}
}

func plyTypeSize(t string) int {
	switch t {
	case "char", "int8", "uchar", "uint8":
		return 1
	case "short", "int16", "ushort", "uint16":
		return 2
	case "int", "int32", "uint", "uint32", "float", "float32":
		return 4
	case "double", "float64":
		return 8
	}
	return 0
}

func plyIndexList(name string) bool {
	return name == "vertex_indices" || name == "vertex_index"
}

// plyLine returns the next non-empty line with surrounding whitespace
// (including any \r) trimmed.
func plyLine(br *bufio.Reader) (string, error) {
	for {
		raw, err := br.ReadString('\n')
		if line := strings.TrimSpace(raw); line != "" {
			return line, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", fmt.Errorf("%w: unexpected end of file", ErrMalformedPLY)
			}
			return "", err
		}
	}
}
