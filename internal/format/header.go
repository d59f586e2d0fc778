package format

import (
	"fmt"

	"github.com/joshuapare/heapkit/internal/buf"
)

// Status is the tri-state lifecycle tag of a block.
type Status uint32

const (
	// Free blocks are linked into the ledger and available for reuse.
	Free Status = 0
	// Allocated blocks are linked into the ledger and owned by a caller.
	Allocated Status = 1
	// Mapped blocks own a private OS mapping and are never linked.
	Mapped Status = 2
)

func (s Status) String() string {
	switch s {
	case Free:
		return "free"
	case Allocated:
		return "allocated"
	case Mapped:
		return "mapped"
	default:
		return fmt.Sprintf("status(%d)", uint32(s))
	}
}

// Valid reports whether s is one of the three known states.
func (s Status) Valid() bool {
	return s <= Mapped
}

// Header is the decoded form of a block header.
//
// Size excludes the header itself. For arena blocks it is always a multiple
// of Alignment; for mapped blocks it is the raw requested size.
type Header struct {
	Size   uint64
	Status Status
	Prev   int64
	Next   int64
}

// HasPrev reports whether the block has a lower-addressed neighbor.
func (h Header) HasPrev() bool { return h.Prev != NoBlock }

// HasNext reports whether the block has a higher-addressed neighbor.
func (h Header) HasNext() bool { return h.Next != NoBlock }

// ReadHeader decodes the header stored at off.
func ReadHeader(b []byte, off int) (Header, error) {
	raw, ok := buf.Slice(b, off, HeaderSize)
	if !ok {
		return Header{}, fmt.Errorf("header at %d: %w", off, ErrTruncated)
	}
	h := Header{
		Size:   ReadU64(raw, HeaderSizeOffset),
		Status: Status(ReadU32(raw, HeaderStatusOffset)),
		Prev:   ReadI64(raw, HeaderPrevOffset),
		Next:   ReadI64(raw, HeaderNextOffset),
	}
	if !h.Status.Valid() {
		return Header{}, fmt.Errorf("header at %d: %w (%d)", off, ErrBadStatus, uint32(h.Status))
	}
	return h, nil
}

// WriteHeader encodes h at off.
func WriteHeader(b []byte, off int, h Header) error {
	raw, ok := buf.Slice(b, off, HeaderSize)
	if !ok {
		return fmt.Errorf("header at %d: %w", off, ErrTruncated)
	}
	PutU64(raw, HeaderSizeOffset, h.Size)
	PutU32(raw, HeaderStatusOffset, uint32(h.Status))
	PutU32(raw, HeaderPadOffset, 0)
	PutI64(raw, HeaderPrevOffset, h.Prev)
	PutI64(raw, HeaderNextOffset, h.Next)
	return nil
}
