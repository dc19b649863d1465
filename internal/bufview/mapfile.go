package bufview

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// MapFile maps a file read-only and returns its contents plus a release
// function. If mmap is unavailable it falls back to reading the whole file,
// in which case the release function is a no-op. The returned bytes must not
// be used after calling close.
func MapFile(path string) (data []byte, close func() error, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	size64 := stat.Size()
	if size64 == 0 {
		return []byte{}, func() error { return nil }, nil
	}
	if size64 < 0 || size64 > int64(int(^uint(0)>>1)) {
		return nil, nil, io.ErrUnexpectedEOF
	}
	size := int(size64)

	mapped, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		return mapped, func() error { return unix.Munmap(mapped) }, nil
	}

	// Fallback path that does not require mmap support.
	buf := make([]byte, size)
	var off int64
	for off < size64 {
		n, rerr := f.ReadAt(buf[off:], off)
		off += int64(n)
		if rerr == nil {
			continue
		}
		if rerr == io.EOF && off == size64 {
			break
		}
		return nil, nil, rerr
	}
	return buf, func() error { return nil }, nil
}
