// Package sniff identifies the container variant of a raw scene buffer.
//
// Sniffing is a soft operation: an unrecognised prefix yields VariantUnknown
// with default byte-order assumptions, never an error. Recovery strategies
// run either way.
package sniff

import (
	"bytes"

	"github.com/samcharles93/salvor/internal/bufview"
)

type Variant string

const (
	// VariantBlend is the chunk-tagged Blender scene format.
	VariantBlend Variant = "blend"
	// VariantSketchUp is the SketchUp text/record hybrid format.
	VariantSketchUp Variant = "skp"
	VariantUnknown  Variant = "unknown"
)

const (
	blendMagic = "BLENDER"
	// Fixed offsets inside the 12-byte blend header.
	blendPointerOff = 7
	blendEndianOff  = 8
	blendVersionOff = 9
	blendHeaderLen  = 12

	// How far into the buffer the SketchUp marker may appear.
	skpMarkerWindow = 64
)

// skpMarker is "SketchUp Model" encoded as UTF-16LE, the form it takes in
// the file header.
var skpMarker = encodeUTF16LE("SketchUp Model")

// Header is the outcome of sniffing a buffer prefix.
type Header struct {
	Variant Variant
	Mode    bufview.Mode
	Version string // short version tag, e.g. "405"; empty if unknown
}

// Sniff inspects the buffer prefix and reports the variant plus the
// byte-order/word-size mode downstream scans should assume.
func Sniff(data []byte) Header {
	h := Header{Variant: VariantUnknown, Mode: bufview.DefaultMode()}

	if len(data) >= blendHeaderLen && bytes.HasPrefix(data, []byte(blendMagic)) {
		h.Variant = VariantBlend
		// '_' marks 4-byte pointers, '-' 8-byte.
		if data[blendPointerOff] == '-' {
			h.Mode.WordSize = 8
		}
		// 'V' marks big-endian, 'v' little-endian.
		if data[blendEndianOff] == 'V' {
			h.Mode.LittleEndian = false
		}
		if isDigits(data[blendVersionOff:blendHeaderLen]) {
			h.Version = string(data[blendVersionOff:blendHeaderLen])
		}
		return h
	}

	window := data
	if len(window) > skpMarkerWindow {
		window = window[:skpMarkerWindow]
	}
	if bytes.Contains(window, skpMarker) {
		h.Variant = VariantSketchUp
		return h
	}

	return h
}

// HeaderLen is the number of bytes the variant's fixed header occupies, i.e.
// where a structured record walk should begin. Zero for variants without a
// walkable record structure.
func (h Header) HeaderLen() int {
	if h.Variant == VariantBlend {
		return blendHeaderLen
	}
	return 0
}

func isDigits(b []byte) bool {
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(b) > 0
}

func encodeUTF16LE(s string) []byte {
	out := make([]byte, 0, len(s)*2)
	for _, r := range s {
		out = append(out, byte(r), byte(r>>8))
	}
	return out
}
