package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrBadRef indicates an offset that does not name a ledger block.
	ErrBadRef = errors.New("ledger: bad block reference")

	// ErrCorrupt indicates a link or header inside the arena is unreadable.
	ErrCorrupt = errors.New("ledger: corrupt block chain")

	// ErrInvariant indicates Verify found a structural violation.
	ErrInvariant = errors.New("ledger: invariant violated")

	// ErrBreakMoved indicates the arena grew somewhere other than the ledger's end.
	ErrBreakMoved = errors.New("ledger: arena break moved underneath the ledger")
)

// Growth operation names, reported when the arena refuses to extend.
const (
	OpHeapPrealloc       = "heap_prealloc"
	OpExtendBlock        = "extend_block"
	OpNewBlock           = "new_block"
	OpExtendBlockRealloc = "extend_block_realloc"
)

// GrowthError reports a failed arena extension and the ledger step that
// needed it.
type GrowthError struct {
	Op    string
	Delta int
	Err   error
}

func (e *GrowthError) Error() string {
	return fmt.Sprintf("ledger: %s: extend by %d: %v", e.Op, e.Delta, e.Err)
}

func (e *GrowthError) Unwrap() error { return e.Err }
