package format

import "errors"

var (
	// ErrTruncated indicates the buffer lacked the bytes required for a header.
	ErrTruncated = errors.New("format: truncated buffer")
	// ErrBadStatus indicates a header carried a status outside the tri-state.
	ErrBadStatus = errors.New("format: invalid block status")
	// ErrMisaligned indicates a header offset or size broke the alignment rule.
	ErrMisaligned = errors.New("format: misaligned block")
)
