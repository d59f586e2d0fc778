package ledger

import (
	"fmt"

	"github.com/joshuapare/heapkit/internal/buf"
	"github.com/joshuapare/heapkit/internal/format"
)

// Verify walks the chain and checks every structural invariant:
//
//   - the first block starts where the initial region started and the last
//     block ends exactly at the break
//   - each header starts where its predecessor's payload ends
//   - prev links mirror next links and the tail matches the last block
//   - sizes are 8-byte aligned and no block is tagged Mapped
//   - no two adjacent blocks are both free
func (l *Ledger) Verify() error {
	data := l.r.Bytes()
	if l.head == noBlock {
		if l.count != 0 || l.tail != noBlock {
			return fmt.Errorf("%w: empty ledger with count=%d tail=%d", ErrInvariant, l.count, l.tail)
		}
		return nil
	}

	expect := l.head
	prev := noBlock
	prevFree := false
	count := 0
	maxBlocks := len(data)/headerSize + 1

	for off := l.head; off != noBlock; {
		h, err := format.ReadHeader(data, off)
		if err != nil {
			return fmt.Errorf("%w: block %d: %w", ErrInvariant, count, err)
		}
		switch {
		case off != expect:
			return fmt.Errorf("%w: block at %d, previous block ended at %d", ErrInvariant, off, expect)
		case int(h.Prev) != prev:
			return fmt.Errorf("%w: block at %d has prev %d, want %d", ErrInvariant, off, h.Prev, prev)
		case h.Status == format.Mapped:
			return fmt.Errorf("%w: mapped block linked at %d", ErrInvariant, off)
		case !format.IsAligned(int(h.Size)):
			return fmt.Errorf("%w: block at %d: size %d: %w", ErrInvariant, off, h.Size, format.ErrMisaligned)
		case h.Status == format.Free && prevFree:
			return fmt.Errorf("%w: adjacent free blocks at %d and %d", ErrInvariant, prev, off)
		}

		if !buf.Has(data, off, headerSize+int(h.Size)) {
			return fmt.Errorf("%w: block at %d of %d bytes runs past break %d", ErrInvariant, off, h.Size, len(data))
		}
		end := off + headerSize + int(h.Size)

		count++
		if count > maxBlocks {
			return fmt.Errorf("%w: link cycle after %d blocks", ErrInvariant, count)
		}
		prev, prevFree, expect = off, h.Status == format.Free, end
		off = int(h.Next)
	}

	if prev != l.tail {
		return fmt.Errorf("%w: last block at %d, tail recorded as %d", ErrInvariant, prev, l.tail)
	}
	if expect != len(data) {
		return fmt.Errorf("%w: ledger ends at %d, break at %d", ErrInvariant, expect, len(data))
	}
	if count != l.count {
		return fmt.Errorf("%w: walked %d blocks, count recorded as %d", ErrInvariant, count, l.count)
	}
	return nil
}
