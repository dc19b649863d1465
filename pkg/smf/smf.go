// Package smf implements the Salvaged Mesh File format.
//
// SMF is a single-file, memory-mappable archive for geometry recovered from
// damaged or unreadable scene containers. It stores what was salvaged and
// where it came from, and never implies the geometry is complete or correct.
package smf

// SMF global constants must never change.
const (
	// MagicSMF is the file magic for all SMF archives, encoded as "SMF\0".
	MagicSMF = "SMF\x00"

	// CurrentMajor: any change indicates a breaking format change.
	CurrentMajor uint16 = 1

	// CurrentMinor: versions may add new optional sections or fields.
	CurrentMinor uint16 = 0

	// FlagRecentred marks archives whose geometry was translated to the
	// origin before packing.
	FlagRecentred uint64 = 1 << 0
)

// Fixed on-disk sizes. The header and directory entries are packed
// little-endian; payload sections start 8-byte aligned so consumers can cast
// mapped float and index data directly.
const (
	smfHeaderSize  = 40
	smfSectionSize = 24
	smfAlign       = 8
)

type SectionType uint32

const (
	SectionManifest  SectionType = 0x0001
	SectionMeshIndex SectionType = 0x0002
	SectionPositions SectionType = 0x0003
	SectionIndices   SectionType = 0x0004
)

type Header struct {
	Magic            [4]byte
	Major            uint16
	Minor            uint16
	HeaderSize       uint32
	SectionCount     uint32
	SectionDirOffset uint64
	FileSize         uint64
	Flags            uint64
}

func (h *Header) Valid() bool {
	if string(h.Magic[:]) != MagicSMF {
		return false
	}
	if h.HeaderSize < smfHeaderSize {
		return false
	}
	if h.SectionCount == 0 {
		return false
	}
	return true
}

func (h *Header) Compatible() bool {
	return h.Major == CurrentMajor
}

type Section struct {
	Type    uint32
	Version uint32
	Offset  uint64
	Size    uint64
}

// End returns the first byte past the section payload.
func (s *Section) End() uint64 {
	return s.Offset + s.Size
}
