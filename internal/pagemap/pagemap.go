// Package pagemap wraps the two OS memory primitives the allocator depends
// on: anonymous private mappings, and reserved address space whose prefix is
// committed as a program break advances.
package pagemap

import (
	"errors"
	"fmt"
	"syscall"
)

// ErrUnsupported is returned by Reserve and Commit on platforms without
// mprotect-style page control.
var ErrUnsupported = errors.New("pagemap: address space reservation unsupported on this platform")

// Error describes a failed OS call.
type Error struct {
	Op  string // mmap, munmap, mprotect
	Len int
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("pagemap: %s(%d): %v", e.Op, e.Len, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Errno extracts the OS error number from err, or 0 if none is present.
func Errno(err error) syscall.Errno {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return 0
}

// Anonymous maps private read-write pages that are not backed by a file.
// The zero value is ready to use.
type Anonymous struct{}

// Map returns length bytes of zero-filled memory.
func (Anonymous) Map(length int) ([]byte, error) { return Map(length) }

// Unmap releases a slice previously returned by Map.
func (Anonymous) Unmap(data []byte) error { return Unmap(data) }
