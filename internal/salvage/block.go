package salvage

import (
	"fmt"

	"github.com/samcharles93/salvor/internal/bufview"
	"github.com/samcharles93/salvor/internal/sniff"
)

// Block codes worth scanning for geometry. Mesh blocks carry the mesh
// struct itself, DATA blocks carry its vertex and loop arrays.
const (
	blockCodeMesh = "ME\x00\x00"
	blockCodeData = "DATA"
	blockCodeEnd  = "ENDB"

	// blockSkipStep is how far the walk advances when a block header is
	// implausible. Small enough to re-synchronise on the next real
	// header, large enough to stay linear.
	blockSkipStep = 4
)

// blockHeadSize returns the size in bytes of a block header for the given
// pointer width: 4-byte code, 4-byte length, pointer-sized old address, two
// 4-byte struct indices.
func blockHeadSize(wordSize int) int {
	return 16 + wordSize
}

// blockScan walks the buffer's tagged block sequence and scans the payload
// of each allow-listed block for a vertex run. At most one candidate is
// taken per block: the first maximal run that passes validation.
//
// The walk is deliberately forgiving. A block with a nonsensical length is
// not trusted as a cursor; the walk steps forward a few bytes and tries to
// re-synchronise instead of aborting.
func blockScan(src *bufview.Source, hdr sniff.Header, t *Tunables) []Candidate {
	if hdr.Variant == sniff.VariantSketchUp {
		// Known to be section-structured, not block-chunked; the raw
		// scans do the salvage for this variant.
		return nil
	}

	data := src.Bytes()
	head := blockHeadSize(src.Mode().WordSize)
	pos := hdr.HeaderLen()

	var out []Candidate
	for pos+head <= len(data) {
		code := string(data[pos : pos+4])
		if code == blockCodeEnd {
			break
		}
		size := int64(src.Int32At(pos + 4))
		payload := int64(pos + head)
		if size <= 0 || payload+size > int64(len(data)) {
			pos += blockSkipStep
			continue
		}
		if code == blockCodeMesh || code == blockCodeData {
			if c, ok := scanBlockPayload(src, int(payload), int(size), t); ok {
				c.Name = fmt.Sprintf("block%02d", len(out)+1)
				c.Source = "block"
				out = append(out, c)
			}
		}
		pos = int(payload + size)
	}
	return out
}

// scanBlockPayload looks for the first run of consecutive valid triplets
// inside one block payload that is long enough and actually varies. Runs
// that fail validation are skipped over in full, so the scan stays linear.
func scanBlockPayload(src *bufview.Source, off, size int, t *Tunables) (Candidate, bool) {
	fi := (off + 3) / 4
	fend := (off + size) / 4
	for fi+3*t.MinBlockVertices <= fend {
		n := tripletRun(src, fi, fend, t.MaxRunVertices, t)
		if n >= t.MinBlockVertices {
			pts := collectTriplets(src, fi, n)
			if hasVariance(pts, t) {
				return Candidate{Positions: pts}, true
			}
		}
		// Resume past the run and the first float that broke it.
		fi += 3*n + 1
	}
	return Candidate{}, false
}
