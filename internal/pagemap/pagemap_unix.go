//go:build unix

package pagemap

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// PageSize returns the OS page size.
func PageSize() int { return unix.Getpagesize() }

// Map maps length bytes of anonymous, private, read-write memory.
func Map(length int) ([]byte, error) {
	if length <= 0 {
		return nil, fmt.Errorf("pagemap: invalid mapping length %d", length)
	}
	data, err := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, &Error{Op: "mmap", Len: length, Err: err}
	}
	return data, nil
}

// Unmap releases a mapping. data must be the exact slice returned by Map or
// Reserve, not a sub-slice.
func Unmap(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := unix.Munmap(data); err != nil {
		return &Error{Op: "munmap", Len: len(data), Err: err}
	}
	return nil
}

// Reserve maps length bytes of inaccessible address space. Pages become
// usable only after Commit.
func Reserve(length int) ([]byte, error) {
	if length <= 0 {
		return nil, fmt.Errorf("pagemap: invalid reservation length %d", length)
	}
	data, err := unix.Mmap(-1, 0, length, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, &Error{Op: "mmap", Len: length, Err: err}
	}
	return data, nil
}

// Commit makes region readable and writable. region must start on a page
// boundary of a reservation.
func Commit(region []byte) error {
	if len(region) == 0 {
		return nil
	}
	if err := unix.Mprotect(region, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return &Error{Op: "mprotect", Len: len(region), Err: err}
	}
	return nil
}
