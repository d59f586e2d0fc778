//go:build !unix

package pagemap

import (
	"fmt"
	"os"
)

// PageSize returns the OS page size.
func PageSize() int { return os.Getpagesize() }

// Map falls back to a heap slice when anonymous mappings are not available.
func Map(length int) ([]byte, error) {
	if length <= 0 {
		return nil, fmt.Errorf("pagemap: invalid mapping length %d", length)
	}
	return make([]byte, length), nil
}

// Unmap drops the slice; the garbage collector reclaims it.
func Unmap(data []byte) error { return nil }

// Reserve is not available without mprotect.
func Reserve(length int) ([]byte, error) { return nil, ErrUnsupported }

// Commit is not available without mprotect.
func Commit(region []byte) error { return ErrUnsupported }
