// Package bufview exposes aligned numeric views over a single byte buffer.
//
// A Source wraps one immutable []byte and lets callers address the same
// backing memory as bytes, 32-bit floats, or 32-bit signed integers. Index i
// in the float or int view always covers bytes [4i, 4i+4). Nothing is copied;
// out-of-range access panics with the usual slice bounds error.
package bufview

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// Mode describes how multi-byte values in the buffer are laid out.
type Mode struct {
	LittleEndian bool
	WordSize     int // pointer width of the producing host, 4 or 8
}

// DefaultMode is assumed when nothing better is known about the buffer.
func DefaultMode() Mode {
	return Mode{LittleEndian: true, WordSize: 4}
}

var hostLittleEndian = func() bool {
	var v uint16 = 1
	return *(*byte)(unsafe.Pointer(&v)) == 1
}()

// Source is a read-only view bundle over one buffer. It is created once per
// extraction run and must not outlive the backing slice.
type Source struct {
	data []byte
	mode Mode

	// Direct cast views over data. Valid only when the buffer mode matches
	// the host byte order and the base is 4-byte aligned; nil otherwise, in
	// which case element accessors decode via encoding/binary.
	f32 []float32
	i32 []int32
}

// New wraps data without copying it.
func New(data []byte, mode Mode) *Source {
	if mode.WordSize != 8 {
		mode.WordSize = 4
	}
	s := &Source{data: data, mode: mode}
	if n := len(data) / 4; n > 0 && mode.LittleEndian == hostLittleEndian && aligned4(data) {
		s.f32 = unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), n)
		s.i32 = unsafe.Slice((*int32)(unsafe.Pointer(&data[0])), n)
	}
	return s
}

func aligned4(b []byte) bool {
	return uintptr(unsafe.Pointer(&b[0]))%4 == 0
}

// Mode returns the byte-order/word-size mode the source was created with.
func (s *Source) Mode() Mode { return s.mode }

// Bytes returns the byte view. Callers must treat it as read-only.
func (s *Source) Bytes() []byte { return s.data }

// Len is the buffer length in bytes.
func (s *Source) Len() int { return len(s.data) }

// FloatLen is the number of complete 32-bit elements in the buffer.
func (s *Source) FloatLen() int { return len(s.data) / 4 }

// Float returns the 32-bit float at element index i.
func (s *Source) Float(i int) float32 {
	if s.f32 != nil {
		return s.f32[i]
	}
	return math.Float32frombits(s.uint32Element(i))
}

// Int returns the 32-bit signed integer at element index i.
func (s *Source) Int(i int) int32 {
	if s.i32 != nil {
		return s.i32[i]
	}
	return int32(s.uint32Element(i))
}

func (s *Source) uint32Element(i int) uint32 {
	b := s.data[i*4 : i*4+4]
	if s.mode.LittleEndian {
		return binary.LittleEndian.Uint32(b)
	}
	return binary.BigEndian.Uint32(b)
}

// Uint32At reads a 32-bit unsigned integer at an arbitrary byte offset,
// honouring the source byte order. Used by record walkers whose fields are
// not 4-byte aligned relative to the buffer start.
func (s *Source) Uint32At(off int) uint32 {
	b := s.data[off : off+4]
	if s.mode.LittleEndian {
		return binary.LittleEndian.Uint32(b)
	}
	return binary.BigEndian.Uint32(b)
}

// Int32At reads a 32-bit signed integer at an arbitrary byte offset.
func (s *Source) Int32At(off int) int32 {
	return int32(s.Uint32At(off))
}

// FloatAt reads a 32-bit float at an arbitrary byte offset.
func (s *Source) FloatAt(off int) float32 {
	return math.Float32frombits(s.Uint32At(off))
}
