// Package importer decodes conformant interchange files into the same
// candidate shape the salvage engine produces, so assembly and export do
// not care where geometry came from. Closed scene containers are not
// parsed here; they are routed to the heuristic engine.
package importer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/samcharles93/salvor/internal/salvage"
	"github.com/samcharles93/salvor/internal/sniff"
	"github.com/samcharles93/salvor/pkg/objfile"
	"github.com/samcharles93/salvor/pkg/smf"
	"github.com/samcharles93/salvor/pkg/stl"
)

// Format identifies how a file will be decoded.
type Format string

const (
	FormatGLTF Format = "gltf"
	FormatGLB  Format = "glb"
	FormatOBJ  Format = "obj"
	FormatSTL  Format = "stl"
	FormatPLY  Format = "ply"
	FormatSMF  Format = "smf"
	// FormatHeuristic marks closed containers that need the salvage
	// engine rather than a conformant parser.
	FormatHeuristic Format = "heuristic"
	FormatUnknown   Format = "unknown"
)

var (
	// ErrUnsupported reports a file no importer understands.
	ErrUnsupported = errors.New("importer: unsupported format")
	// ErrHeuristicFormat reports a closed container; the caller should
	// run heuristic recovery on it instead.
	ErrHeuristicFormat = errors.New("importer: closed container, use heuristic recovery")
)

// sniffLen covers every magic Detect inspects, including the deepest
// scene-container marker.
const sniffLen = 512

// Detect classifies a file by its leading bytes first and its extension
// second. Binary-vs-ASCII handling within a format (STL) is left to the
// format's own reader.
func Detect(path string, head []byte) Format {
	switch {
	case bytes.HasPrefix(head, []byte("glTF")):
		return FormatGLB
	case bytes.HasPrefix(head, []byte(smf.MagicSMF)):
		return FormatSMF
	case bytes.HasPrefix(head, []byte("ply\n")), bytes.HasPrefix(head, []byte("ply\r\n")):
		return FormatPLY
	}
	if h := sniff.Sniff(head); h.Variant != sniff.VariantUnknown {
		return FormatHeuristic
	}
	if bytes.HasPrefix(head, []byte("solid")) {
		return FormatSTL
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gltf":
		return FormatGLTF
	case ".glb":
		return FormatGLB
	case ".obj":
		return FormatOBJ
	case ".stl":
		return FormatSTL
	case ".ply":
		return FormatPLY
	case ".smf":
		return FormatSMF
	case ".blend", ".skp":
		return FormatHeuristic
	}
	return FormatUnknown
}

// DetectFile reads the sniff window from path and classifies it.
func DetectFile(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return FormatUnknown, err
	}
	return Detect(path, head[:n]), nil
}

// Import decodes path into candidate meshes. The returned format reports
// which decoder ran. A closed container yields ErrHeuristicFormat so the
// caller can fall back to the engine.
func Import(path string) ([]salvage.Candidate, Format, error) {
	format, err := DetectFile(path)
	if err != nil {
		return nil, FormatUnknown, err
	}

	var cands []salvage.Candidate
	switch format {
	case FormatGLTF, FormatGLB:
		cands, err = importGLTF(path)
	case FormatOBJ:
		cands, err = importOBJ(path)
	case FormatSTL:
		cands, err = importSTL(path)
	case FormatPLY:
		cands, err = importPLY(path)
	case FormatSMF:
		cands, err = importSMF(path)
	case FormatHeuristic:
		return nil, format, fmt.Errorf("%s: %w", path, ErrHeuristicFormat)
	default:
		return nil, format, fmt.Errorf("%s: %w", path, ErrUnsupported)
	}
	if err != nil {
		return nil, format, err
	}
	return cands, format, nil
}

func importOBJ(path string) ([]salvage.Candidate, error) {
	positions, indices, err := objfile.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []salvage.Candidate{{
		Name:      "obj01",
		Source:    string(FormatOBJ),
		Positions: positions,
		Indices:   indices,
	}}, nil
}

func importSTL(path string) ([]salvage.Candidate, error) {
	positions, indices, err := stl.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []salvage.Candidate{{
		Name:      "stl01",
		Source:    string(FormatSTL),
		Positions: positions,
		Indices:   indices,
	}}, nil
}

func importSMF(path string) ([]salvage.Candidate, error) {
	a, err := smf.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cands := make([]salvage.Candidate, 0, len(a.Meshes))
	for i := range a.Meshes {
		m := &a.Meshes[i]
		cands = append(cands, salvage.Candidate{
			Name:      m.Name,
			Source:    string(FormatSMF),
			Positions: m.Positions,
			Indices:   m.Indices,
		})
	}
	return cands, nil
}
