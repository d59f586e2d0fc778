package arena

import "errors"

var (
	// ErrExhausted indicates the break would move past the configured limit.
	ErrExhausted = errors.New("arena: break limit reached")

	// ErrNegativeDelta indicates an attempt to move the break backwards.
	ErrNegativeDelta = errors.New("arena: negative break delta")

	// ErrClosed indicates the arena was used after Close.
	ErrClosed = errors.New("arena: closed")
)
