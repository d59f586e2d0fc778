package directmap

import "errors"

var (
	// ErrUnknownID indicates an id that names no live mapping.
	ErrUnknownID = errors.New("directmap: unknown mapping id")

	// ErrBadSize indicates a non-positive or overflowing request.
	ErrBadSize = errors.New("directmap: invalid mapping size")

	// ErrClosed indicates use of a table after Close.
	ErrClosed = errors.New("directmap: table closed")

	// ErrCorrupt indicates a mapping whose header no longer reads back as Mapped.
	ErrCorrupt = errors.New("directmap: corrupt mapping header")
)
