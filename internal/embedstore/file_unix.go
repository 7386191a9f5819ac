//go:build unix

package embedstore

import (
	"os"

	"golang.org/x/sys/unix"
)

func readMapped(f *os.File, size int64) (*Index, error) {
	if size <= 0 || size > int64(int(^uint(0)>>1)) {
		return Decode(f)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		// mmap is not available for every file system; stream instead.
		return Decode(f)
	}
	defer func() { _ = unix.Munmap(data) }()
	// Decode copies every identifier and vector out of the mapping.
	return Unmarshal(data)
}
