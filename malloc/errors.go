package malloc

import (
	"errors"
	"fmt"
	"syscall"
)

var (
	// ErrBadConfig indicates a configuration rejected by Validate.
	ErrBadConfig = errors.New("malloc: invalid configuration")

	// ErrBadPointer indicates a Ptr that names no live block.
	ErrBadPointer = errors.New("malloc: pointer does not name a live block")
)

// Operation names reported by FatalError for the direct-map path. Arena
// failures carry the ledger step instead (heap_prealloc, extend_block,
// new_block, extend_block_realloc).
const (
	OpMmap   = "mmap"
	OpMunmap = "munmap"
)

// FatalError describes an OS primitive that refused to serve the allocator.
// The allocator cannot continue after one; the default handler panics with
// it.
type FatalError struct {
	Op    string        // failing step
	Errno syscall.Errno // OS error number, 0 when the failure carried none
	Err   error
}

func (e *FatalError) Error() string {
	if e.Errno != 0 {
		return fmt.Sprintf("malloc: fatal: %s failed: errno %d (%v)", e.Op, int(e.Errno), e.Err)
	}
	return fmt.Sprintf("malloc: fatal: %s failed: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }
