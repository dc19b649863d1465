package salvage

import (
	"encoding/binary"
	"math"
)

// Builders for the synthetic buffers the strategy tests scan. Everything is
// little-endian unless a test constructs big-endian data by hand.

func leFloats(b []byte, vs ...float32) []byte {
	for _, v := range vs {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
	}
	return b
}

func leWords(b []byte, ws ...uint32) []byte {
	for _, w := range ws {
		b = binary.LittleEndian.AppendUint32(b, w)
	}
	return b
}

// bhead32 appends a little-endian block header with 4-byte pointers. The
// old/sdna/nr fields default to small integers, which reinterpret as
// denormal floats and so never extend a vertex run across the header.
func bhead32(b []byte, code string, size int32) []byte {
	b = append(b, code...)
	b = leWords(b, uint32(size), 1, 1, 2)
	return b
}

// gridVerts returns n vertices varying on x and y with constant z. Values
// stay in [1, 4.5] so their bit patterns can never collide with a block
// code.
func gridVerts(n int) []float32 {
	out := make([]float32, 0, n*3)
	for i := 0; i < n; i++ {
		out = append(out,
			1+0.5*float32(i%5),
			1+0.5*float32(i%7),
			3,
		)
	}
	return out
}

func nanBytes(b []byte) []byte {
	return binary.LittleEndian.AppendUint32(b, 0x7FC00000)
}

func fill(b []byte, n int, v byte) []byte {
	for i := 0; i < n; i++ {
		b = append(b, v)
	}
	return b
}
