package trace

import "errors"

var (
	// ErrSyntax indicates a malformed trace line.
	ErrSyntax = errors.New("trace: syntax error")

	// ErrUnknownID indicates an operation on an id that is not live.
	ErrUnknownID = errors.New("trace: id is not live")

	// ErrDuplicateID indicates an allocation reusing a live id.
	ErrDuplicateID = errors.New("trace: id already live")

	// ErrAllocFailed indicates the allocator returned Nil for a valid request.
	ErrAllocFailed = errors.New("trace: allocation failed")

	// ErrContent indicates payload bytes changed while the block was live.
	ErrContent = errors.New("trace: payload content mismatch")

	// ErrOverlap indicates a new block covers memory of a block still live.
	ErrOverlap = errors.New("trace: block overlaps a live block")
)
