package bufview

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func putF32(b []byte, off int, v float32) {
	binary.LittleEndian.PutUint32(b[off:], math.Float32bits(v))
}

func TestViewsShareBackingBytes(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 24)
	putF32(buf, 0, 1.5)
	putF32(buf, 4, -2.25)
	binary.LittleEndian.PutUint32(buf[8:], 0xDEADBEEF)
	putF32(buf, 12, 0)
	putF32(buf, 16, 42)
	putF32(buf, 20, 1e10)

	s := New(buf, DefaultMode())
	if s.Len() != 24 {
		t.Fatalf("Len: got %d want 24", s.Len())
	}
	if s.FloatLen() != 6 {
		t.Fatalf("FloatLen: got %d want 6", s.FloatLen())
	}
	if got := s.Float(0); got != 1.5 {
		t.Fatalf("Float(0): got %v want 1.5", got)
	}
	if got := s.Float(1); got != -2.25 {
		t.Fatalf("Float(1): got %v want -2.25", got)
	}
	if got := uint32(s.Int(2)); got != 0xDEADBEEF {
		t.Fatalf("Int(2): got %#x want 0xdeadbeef", got)
	}
	// Element i of the float view covers bytes [4i, 4i+4).
	if got := s.FloatAt(16); got != 42 {
		t.Fatalf("FloatAt(16): got %v want 42", got)
	}
	if got := s.Uint32At(8); got != 0xDEADBEEF {
		t.Fatalf("Uint32At(8): got %#x want 0xdeadbeef", got)
	}
}

func TestBigEndianModeDecodes(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:], math.Float32bits(3.5))
	binary.BigEndian.PutUint32(buf[4:], 7)

	s := New(buf, Mode{LittleEndian: false, WordSize: 8})
	if got := s.Float(0); got != 3.5 {
		t.Fatalf("Float(0): got %v want 3.5", got)
	}
	if got := s.Int(1); got != 7 {
		t.Fatalf("Int(1): got %d want 7", got)
	}
	if s.Mode().WordSize != 8 {
		t.Fatalf("WordSize: got %d want 8", s.Mode().WordSize)
	}
}

func TestOutOfRangePanics(t *testing.T) {
	t.Parallel()

	s := New(make([]byte, 8), DefaultMode())
	defer func() {
		if recover() == nil {
			t.Fatal("expected bounds panic for Float(2) on 8-byte buffer")
		}
	}()
	_ = s.Float(2)
}

func TestWordSizeNormalised(t *testing.T) {
	t.Parallel()

	s := New(make([]byte, 4), Mode{LittleEndian: true, WordSize: 0})
	if s.Mode().WordSize != 4 {
		t.Fatalf("WordSize: got %d want 4", s.Mode().WordSize)
	}
}

func TestMapFileRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "blob.bin")
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, release, err := MapFile(path)
	if err != nil {
		t.Fatalf("MapFile: %v", err)
	}
	defer func() {
		if cerr := release(); cerr != nil {
			t.Fatalf("release: %v", cerr)
		}
	}()

	if len(data) != len(want) {
		t.Fatalf("length: got %d want %d", len(data), len(want))
	}
	for i := range want {
		if data[i] != want[i] {
			t.Fatalf("byte %d: got %d want %d", i, data[i], want[i])
		}
	}
}

func TestMapFileEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.bin")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, release, err := MapFile(path)
	if err != nil {
		t.Fatalf("MapFile: %v", err)
	}
	defer func() { _ = release() }()
	if len(data) != 0 {
		t.Fatalf("expected empty mapping, got %d bytes", len(data))
	}
}
