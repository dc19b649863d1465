package smf

import "encoding/binary"

// The header and section directory are encoded field by field in explicit
// little-endian layout; struct memory is never written to disk.

func encodeHeader(dst []byte, h Header) bool {
	if len(dst) < smfHeaderSize {
		return false
	}
	copy(dst[0:4], h.Magic[:])
	binary.LittleEndian.PutUint16(dst[4:6], h.Major)
	binary.LittleEndian.PutUint16(dst[6:8], h.Minor)
	binary.LittleEndian.PutUint32(dst[8:12], h.HeaderSize)
	binary.LittleEndian.PutUint32(dst[12:16], h.SectionCount)
	binary.LittleEndian.PutUint64(dst[16:24], h.SectionDirOffset)
	binary.LittleEndian.PutUint64(dst[24:32], h.FileSize)
	binary.LittleEndian.PutUint64(dst[32:40], h.Flags)
	return true
}

func decodeHeader(b []byte) (Header, bool) {
	if len(b) < smfHeaderSize {
		return Header{}, false
	}
	var h Header
	copy(h.Magic[:], b[0:4])
	h.Major = binary.LittleEndian.Uint16(b[4:6])
	h.Minor = binary.LittleEndian.Uint16(b[6:8])
	h.HeaderSize = binary.LittleEndian.Uint32(b[8:12])
	h.SectionCount = binary.LittleEndian.Uint32(b[12:16])
	h.SectionDirOffset = binary.LittleEndian.Uint64(b[16:24])
	h.FileSize = binary.LittleEndian.Uint64(b[24:32])
	h.Flags = binary.LittleEndian.Uint64(b[32:40])
	return h, true
}

func encodeSection(dst []byte, s Section) bool {
	if len(dst) < smfSectionSize {
		return false
	}
	binary.LittleEndian.PutUint32(dst[0:4], s.Type)
	binary.LittleEndian.PutUint32(dst[4:8], s.Version)
	binary.LittleEndian.PutUint64(dst[8:16], s.Offset)
	binary.LittleEndian.PutUint64(dst[16:24], s.Size)
	return true
}

func decodeSection(b []byte) (Section, bool) {
	if len(b) < smfSectionSize {
		return Section{}, false
	}
	return Section{
		Type:    binary.LittleEndian.Uint32(b[0:4]),
		Version: binary.LittleEndian.Uint32(b[4:8]),
		Offset:  binary.LittleEndian.Uint64(b[8:16]),
		Size:    binary.LittleEndian.Uint64(b[16:24]),
	}, true
}
