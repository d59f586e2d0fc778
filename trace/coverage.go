package trace

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/malloc"
)

// coverage tracks which 8-byte units of the arena belong to live blocks,
// header included. Mapped blocks live outside the arena and are not tracked.
type coverage struct {
	units *roaring.Bitmap
}

func newCoverage() *coverage {
	return &coverage{units: roaring.New()}
}

// span returns the unit range [lo, hi) occupied by the arena block whose
// payload starts at p and holds usable bytes.
func span(p malloc.Ptr, usable int) (uint64, uint64) {
	lo := uint64(p) - format.HeaderSize
	hi := uint64(p) + uint64(format.Align8(usable))
	return lo / format.Alignment, hi / format.Alignment
}

// arenaSpan returns the units of p, or ok=false when p is Nil, mapped or
// not a live arena block.
func arenaSpan(a *malloc.Allocator, p malloc.Ptr) (lo, hi uint64, ok bool) {
	if p == malloc.Nil || a.IsMapped(p) {
		return 0, 0, false
	}
	usable := a.Usable(p)
	if usable == 0 {
		return 0, 0, false
	}
	lo, hi = span(p, usable)
	return lo, hi, true
}

// claim records the block at p, failing if any of its units is already live.
func (c *coverage) claim(a *malloc.Allocator, p malloc.Ptr) error {
	lo, hi, ok := arenaSpan(a, p)
	if !ok {
		return nil
	}
	r := roaring.New()
	r.AddRange(lo, hi)
	if c.units.Intersects(r) {
		r.And(c.units)
		return fmt.Errorf("%w: block at %s shares %d units with live blocks, first at byte %d",
			ErrOverlap, p, r.GetCardinality(), uint64(r.Minimum())*format.Alignment)
	}
	c.units.Or(r)
	return nil
}

// drop forgets the block at p. It must be called before p is released or
// resized, while its usable size is still known.
func (c *coverage) drop(a *malloc.Allocator, p malloc.Ptr) {
	if lo, hi, ok := arenaSpan(a, p); ok {
		c.units.RemoveRange(lo, hi)
	}
}

// live reports how many arena bytes are currently claimed.
func (c *coverage) live() int {
	return int(c.units.GetCardinality()) * format.Alignment
}
