package smf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"sort"
	"unsafe"
)

// MeshIndexVersion is the on-disk version of the mesh index section payload.
const MeshIndexVersion uint32 = 1

const (
	meshIndexHeaderSize = 40
	meshEntrySize       = 48

	positionStride = 12 // 3 float32 per vertex
	triangleStride = 12 // 3 uint32 per triangle
)

// MeshIndexHeader describes the on-disk layout of the mesh index section.
// Offsets are relative to the start of the section payload.
type MeshIndexHeader struct {
	Version   uint32 // = 1
	Flags     uint32 // MeshIndexFlag*
	MeshCount uint32
	_         uint32 // reserved

	EntriesOff  uint64 // []MeshEntry (MeshCount)
	StringsOff  uint64 // []byte (StringsSize)
	StringsSize uint64
}

// MeshIndex flags.
const (
	// MeshIndexFlagSortedByName means entries are sorted by raw name bytes
	// ascending, allowing binary-search lookup without building a map.
	MeshIndexFlagSortedByName uint32 = 1 << 0
)

// MeshEntry is the on-disk fixed-size record for one recovered mesh.
// Name bytes live in the strings table. PosOff and IdxOff are absolute file
// offsets (from the start of the archive), which makes slicing payloads out
// of the mmap trivial.
type MeshEntry struct {
	NameOff       uint32 // into strings table
	NameLen       uint32 // bytes
	VertexCount   uint32
	TriangleCount uint32

	PosOff  uint64
	PosSize uint64
	IdxOff  uint64
	IdxSize uint64
}

// MeshIndex is a parsed view over a mesh index section payload. It keeps a
// reference to the raw section bytes, which usually reference the mmap.
type MeshIndex struct {
	raw []byte
	hdr MeshIndexHeader
}

// MeshRecord is the input to EncodeMeshIndexSection.
type MeshRecord struct {
	Name          string
	VertexCount   uint32
	TriangleCount uint32

	// Absolute file offsets into the archive:
	PosOff  uint64
	PosSize uint64
	IdxOff  uint64
	IdxSize uint64
}

var errBadMeshIndex = errors.New("smf: corrupt mesh index section")

// ParseMeshIndexSection validates and returns a view over a mesh index
// section payload. Pass it File.SectionData(File.Section(SectionMeshIndex)).
func ParseMeshIndexSection(sec []byte) (*MeshIndex, error) {
	if len(sec) < meshIndexHeaderSize {
		return nil, ErrCorruptFile
	}

	h := MeshIndexHeader{
		Version:     binary.LittleEndian.Uint32(sec[0:4]),
		Flags:       binary.LittleEndian.Uint32(sec[4:8]),
		MeshCount:   binary.LittleEndian.Uint32(sec[8:12]),
		EntriesOff:  binary.LittleEndian.Uint64(sec[16:24]),
		StringsOff:  binary.LittleEndian.Uint64(sec[24:32]),
		StringsSize: binary.LittleEndian.Uint64(sec[32:40]),
	}

	if h.Version != MeshIndexVersion {
		return nil, ErrUnsupportedVersion
	}
	if h.MeshCount == 0 {
		return nil, ErrCorruptFile
	}

	secLen := uint64(len(sec))
	entriesBytes := uint64(h.MeshCount) * meshEntrySize
	if h.EntriesOff > secLen || h.EntriesOff+entriesBytes > secLen {
		return nil, ErrCorruptFile
	}
	if h.StringsOff > secLen || h.StringsOff+h.StringsSize > secLen {
		return nil, ErrCorruptFile
	}

	// Validate every entry's name bounds and size/count agreement up front
	// so later accessors only deal with file bounds.
	for i := uint32(0); i < h.MeshCount; i++ {
		e, err := readMeshEntry(sec, h.EntriesOff, i)
		if err != nil {
			return nil, ErrCorruptFile
		}
		if uint64(e.NameOff)+uint64(e.NameLen) > h.StringsSize {
			return nil, ErrCorruptFile
		}
		if e.PosSize != uint64(e.VertexCount)*positionStride {
			return nil, errBadMeshIndex
		}
		if e.IdxSize != uint64(e.TriangleCount)*triangleStride {
			return nil, errBadMeshIndex
		}
	}

	return &MeshIndex{raw: sec, hdr: h}, nil
}

func readMeshEntry(sec []byte, entriesOff uint64, i uint32) (MeshEntry, error) {
	base := entriesOff + uint64(i)*meshEntrySize
	end := base + meshEntrySize
	if end > uint64(len(sec)) {
		return MeshEntry{}, errBadMeshIndex
	}
	b := sec[base:end]

	// Layout matches MeshEntry fields in order (little-endian).
	return MeshEntry{
		NameOff:       binary.LittleEndian.Uint32(b[0:4]),
		NameLen:       binary.LittleEndian.Uint32(b[4:8]),
		VertexCount:   binary.LittleEndian.Uint32(b[8:12]),
		TriangleCount: binary.LittleEndian.Uint32(b[12:16]),
		PosOff:        binary.LittleEndian.Uint64(b[16:24]),
		PosSize:       binary.LittleEndian.Uint64(b[24:32]),
		IdxOff:        binary.LittleEndian.Uint64(b[32:40]),
		IdxSize:       binary.LittleEndian.Uint64(b[40:48]),
	}, nil
}

func (mi *MeshIndex) Count() int {
	return int(mi.hdr.MeshCount)
}

func (mi *MeshIndex) Flags() uint32 {
	return mi.hdr.Flags
}

func (mi *MeshIndex) Entry(i int) (MeshEntry, error) {
	if i < 0 || i >= int(mi.hdr.MeshCount) {
		return MeshEntry{}, ErrCorruptFile
	}
	return readMeshEntry(mi.raw, mi.hdr.EntriesOff, uint32(i))
}

func (mi *MeshIndex) NameBytes(i int) ([]byte, error) {
	e, err := mi.Entry(i)
	if err != nil {
		return nil, err
	}
	strBase := mi.hdr.StringsOff
	off := strBase + uint64(e.NameOff)
	end := off + uint64(e.NameLen)
	if end > strBase+mi.hdr.StringsSize || end > uint64(len(mi.raw)) {
		return nil, ErrCorruptFile
	}
	return mi.raw[off:end], nil
}

func (mi *MeshIndex) Name(i int) (string, error) {
	b, err := mi.NameBytes(i)
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", nil
	}
	// Zero-copy string view over mmap-backed bytes.
	return unsafe.String(unsafe.SliceData(b), len(b)), nil
}

// Find returns the entry index for the given mesh name. If the index is
// sorted (MeshIndexFlagSortedByName) this is O(log n), otherwise a linear
// scan.
func (mi *MeshIndex) Find(name string) (int, bool) {
	if mi == nil {
		return -1, false
	}
	key := []byte(name)

	if mi.hdr.Flags&MeshIndexFlagSortedByName != 0 {
		n := int(mi.hdr.MeshCount)
		i := sort.Search(n, func(i int) bool {
			nb, err := mi.NameBytes(i)
			if err != nil {
				return true
			}
			return bytes.Compare(nb, key) >= 0
		})
		if i < n {
			nb, err := mi.NameBytes(i)
			if err == nil && bytes.Equal(nb, key) {
				return i, true
			}
		}
		return -1, false
	}

	for i := 0; i < int(mi.hdr.MeshCount); i++ {
		nb, err := mi.NameBytes(i)
		if err != nil {
			return -1, false
		}
		if bytes.Equal(nb, key) {
			return i, true
		}
	}
	return -1, false
}

// PositionBytes returns a zero-copy view of the mesh position payload from
// the mapped file.
func (mi *MeshIndex) PositionBytes(f *File, i int) ([]byte, error) {
	e, err := mi.Entry(i)
	if err != nil {
		return nil, err
	}
	return payloadSlice(f, e.PosOff, e.PosSize)
}

// IndexBytes returns a zero-copy view of the mesh triangle index payload
// from the mapped file.
func (mi *MeshIndex) IndexBytes(f *File, i int) ([]byte, error) {
	e, err := mi.Entry(i)
	if err != nil {
		return nil, err
	}
	return payloadSlice(f, e.IdxOff, e.IdxSize)
}

// Positions decodes the mesh position payload into a fresh []float32. The
// result is safe to retain after File.Close().
func (mi *MeshIndex) Positions(f *File, i int) ([]float32, error) {
	raw, err := mi.PositionBytes(f, i)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(raw)/4)
	for j := range out {
		out[j] = math.Float32frombits(binary.LittleEndian.Uint32(raw[j*4:]))
	}
	return out, nil
}

// Indices decodes the mesh triangle index payload into a fresh []uint32.
func (mi *MeshIndex) Indices(f *File, i int) ([]uint32, error) {
	raw, err := mi.IndexBytes(f, i)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, len(raw)/4)
	for j := range out {
		out[j] = binary.LittleEndian.Uint32(raw[j*4:])
	}
	return out, nil
}

func payloadSlice(f *File, off, size uint64) ([]byte, error) {
	if f == nil || f.Data == nil {
		return nil, ErrCorruptFile
	}
	end := off + size
	if end < off || end > uint64(len(f.Data)) {
		return nil, ErrCorruptFile
	}
	return f.Data[off:end], nil
}

// EncodeMeshIndexSection builds a mesh index section payload (v1). Records
// are sorted by name and the sorted flag is set.
func EncodeMeshIndexSection(records []MeshRecord) ([]byte, error) {
	if len(records) == 0 {
		return nil, errors.New("smf: mesh index requires at least one record")
	}

	// Copy and sort for determinism.
	recs := make([]MeshRecord, len(records))
	copy(recs, records)
	sort.Slice(recs, func(i, j int) bool { return recs[i].Name < recs[j].Name })

	var (
		stringBlob []byte
		entries    = make([]MeshEntry, 0, len(recs))
	)
	for _, r := range recs {
		if r.Name == "" {
			return nil, errors.New("smf: mesh name must be non-empty")
		}
		if r.PosSize != uint64(r.VertexCount)*positionStride {
			return nil, errors.New("smf: position size disagrees with vertex count")
		}
		if r.IdxSize != uint64(r.TriangleCount)*triangleStride {
			return nil, errors.New("smf: index size disagrees with triangle count")
		}

		nameOff := uint32(len(stringBlob))
		nameBytes := []byte(r.Name)
		stringBlob = append(stringBlob, nameBytes...)

		entries = append(entries, MeshEntry{
			NameOff:       nameOff,
			NameLen:       uint32(len(nameBytes)),
			VertexCount:   r.VertexCount,
			TriangleCount: r.TriangleCount,
			PosOff:        r.PosOff,
			PosSize:       r.PosSize,
			IdxOff:        r.IdxOff,
			IdxSize:       r.IdxSize,
		})
	}

	hdr := MeshIndexHeader{
		Version:     MeshIndexVersion,
		Flags:       MeshIndexFlagSortedByName,
		MeshCount:   uint32(len(entries)),
		EntriesOff:  meshIndexHeaderSize,
		StringsSize: uint64(len(stringBlob)),
	}
	hdr.StringsOff = hdr.EntriesOff + meshEntrySize*uint64(len(entries))

	total := hdr.StringsOff + hdr.StringsSize
	out := make([]byte, int(total))

	// Header
	binary.LittleEndian.PutUint32(out[0:4], hdr.Version)
	binary.LittleEndian.PutUint32(out[4:8], hdr.Flags)
	binary.LittleEndian.PutUint32(out[8:12], hdr.MeshCount)
	// out[12:16] reserved
	binary.LittleEndian.PutUint64(out[16:24], hdr.EntriesOff)
	binary.LittleEndian.PutUint64(out[24:32], hdr.StringsOff)
	binary.LittleEndian.PutUint64(out[32:40], hdr.StringsSize)

	// Entries (fixed 48-byte layout)
	ep := int(hdr.EntriesOff)
	for _, e := range entries {
		binary.LittleEndian.PutUint32(out[ep+0:ep+4], e.NameOff)
		binary.LittleEndian.PutUint32(out[ep+4:ep+8], e.NameLen)
		binary.LittleEndian.PutUint32(out[ep+8:ep+12], e.VertexCount)
		binary.LittleEndian.PutUint32(out[ep+12:ep+16], e.TriangleCount)
		binary.LittleEndian.PutUint64(out[ep+16:ep+24], e.PosOff)
		binary.LittleEndian.PutUint64(out[ep+24:ep+32], e.PosSize)
		binary.LittleEndian.PutUint64(out[ep+32:ep+40], e.IdxOff)
		binary.LittleEndian.PutUint64(out[ep+40:ep+48], e.IdxSize)
		ep += meshEntrySize
	}

	// Strings
	copy(out[int(hdr.StringsOff):], stringBlob)

	return out, nil
}
