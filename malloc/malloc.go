package malloc

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/joshuapare/heapkit/arena"
	"github.com/joshuapare/heapkit/directmap"
	"github.com/joshuapare/heapkit/internal/buf"
	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/internal/pagemap"
	"github.com/joshuapare/heapkit/ledger"
)

// Ptr is an opaque payload handle. Arena handles are the payload's arena
// offset; direct-mapped handles carry mappedTag and the mapping id.
type Ptr uint64

// Nil is the null handle.
const Nil Ptr = 0

const mappedTag Ptr = 1 << 63

// IsNil reports whether p is the null handle.
func (p Ptr) IsNil() bool { return p == Nil }

func (p Ptr) String() string {
	switch {
	case p == Nil:
		return "nil"
	case p&mappedTag != 0:
		return fmt.Sprintf("map#%d", uint64(p&^mappedTag))
	default:
		return fmt.Sprintf("arena+%#x", uint64(p))
	}
}

// Stats holds facade counters plus the counters of each layer.
type Stats struct {
	Mallocs        int // Malloc calls
	Callocs        int // Calloc calls
	Reallocs       int // Realloc calls
	Frees          int // Free calls
	Rejected       int // calls refused for bad arguments or misuse
	Relocations    int // Realloc moves (copy then release)
	GrowInPlace    int // Realloc grew the last arena block
	ShrinkInPlace  int // Realloc satisfied without moving or growing the arena
	Fatal          int // OS failures reported to OnFatal
	ArenaRequests  int // requests routed to the ledger
	MappedRequests int // requests routed to a mapping

	Ledger ledger.Stats
	Maps   directmap.Stats
	Arena  arena.Stats // zero when Config.Region is set
}

// Allocator is one heap: an arena managed by a block ledger plus a table of
// direct mappings.
type Allocator struct {
	cfg     Config
	log     *slog.Logger
	onFatal func(*FatalError)

	region ledger.Region
	arena  *arena.Arena // nil when the region is caller supplied
	blocks *ledger.Ledger
	maps   *directmap.Table

	stats Stats
}

// New creates an allocator. A nil config selects DefaultConfig. No memory is
// requested until the first allocation.
func New(cfg *Config) (*Allocator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := cfg.withDefaults()
	logger := c.logger()

	a := &Allocator{
		cfg:     c,
		log:     logger,
		onFatal: c.OnFatal,
		region:  c.Region,
	}
	if a.onFatal == nil {
		a.onFatal = func(e *FatalError) { panic(e) }
	}
	if a.region == nil {
		a.arena = arena.New(&arena.Config{Limit: c.ArenaLimit, Logger: logger})
		a.region = a.arena
	}
	mapper := c.Mapper
	if mapper == nil {
		mapper = pagemap.Anonymous{}
	}
	a.blocks = ledger.New(a.region, &ledger.Config{InitialSize: c.InitialArenaSize, Logger: logger})
	a.maps = directmap.New(mapper, logger)
	return a, nil
}

// Malloc returns a handle to at least size usable bytes, or Nil when size is
// not positive.
func (a *Allocator) Malloc(size int) Ptr {
	a.stats.Mallocs++
	return a.alloc(size, a.cfg.MmapThreshold)
}

// Calloc returns a handle to count*size zeroed bytes, or Nil when either
// argument is not positive or the product overflows. The mapping threshold
// is lowered to CallocThreshold for this call only.
func (a *Allocator) Calloc(count, size int) Ptr {
	a.stats.Callocs++
	if count <= 0 || size <= 0 {
		a.stats.Rejected++
		return Nil
	}
	total, ok := buf.MulOverflowSafe(count, size)
	if !ok {
		a.stats.Rejected++
		a.log.Warn("malloc: calloc size overflows", "count", count, "size", size)
		return Nil
	}
	p := a.alloc(total, a.cfg.CallocThreshold)
	if p == Nil {
		return Nil
	}
	clear(a.Bytes(p))
	return p
}

// Free releases p. Freeing Nil is a no-op; freeing a handle that names no
// live block is logged and ignored.
func (a *Allocator) Free(p Ptr) {
	a.stats.Frees++
	if p == Nil {
		return
	}
	a.release(p)
}

// Realloc resizes p to size bytes, preserving contents up to the smaller of
// the two sizes. It returns the (possibly moved) handle, or Nil when size is
// not positive (p is released), when p is not live, or when a relocation
// failed (p is left intact).
func (a *Allocator) Realloc(p Ptr, size int) Ptr {
	a.stats.Reallocs++
	if p == Nil {
		return a.alloc(size, a.cfg.MmapThreshold)
	}
	if size <= 0 {
		a.release(p)
		return Nil
	}

	if p&mappedTag != 0 {
		id := uint64(p &^ mappedTag)
		h, err := a.maps.Header(id)
		if err != nil {
			a.reject("realloc", p, err)
			return Nil
		}
		// Mappings are never resized in place.
		return a.relocate(p, size, int(h.Size))
	}

	off, h, err := a.arenaHeader(p)
	if err != nil {
		a.reject("realloc", p, err)
		return Nil
	}
	if h.Status == format.Free {
		a.reject("realloc", p, fmt.Errorf("%w: block already released", ErrBadPointer))
		return Nil
	}

	need, ok := alignedSize(size)
	if !ok {
		a.reject("realloc", p, fmt.Errorf("size %d overflows", size))
		return Nil
	}
	cur := int(h.Size)

	switch {
	case a.routesToMap(need, a.cfg.MmapThreshold):
		return a.relocate(p, size, cur)

	case a.blocks.IsLast(off) && cur < need:
		if err := a.blocks.GrowLast(off, need); err != nil {
			a.fatal(err)
			return Nil
		}
		a.stats.GrowInPlace++
		return p

	case cur >= need:
		if _, err := a.blocks.Shrink(off, need); err != nil {
			a.reject("realloc", p, err)
			return Nil
		}
		a.stats.ShrinkInPlace++
		return p
	}

	got, err := a.blocks.Absorb(off, need)
	if err != nil {
		a.reject("realloc", p, err)
		return Nil
	}
	if got >= need {
		if got > need {
			if _, err := a.blocks.Shrink(off, need); err != nil {
				a.reject("realloc", p, err)
				return Nil
			}
		}
		a.stats.ShrinkInPlace++
		return p
	}
	// Copy everything the block now holds, absorbed neighbors included.
	return a.relocate(p, size, got)
}

// Bytes returns the payload of p: the full block for arena handles, the
// requested size for mapped ones. Nil or dead handles yield nil. Arena views
// must be re-fetched after any allocation on platforms where the arena is a
// copy-grown slice.
func (a *Allocator) Bytes(p Ptr) []byte {
	if p == Nil {
		return nil
	}
	if p&mappedTag != 0 {
		b, err := a.maps.Payload(uint64(p &^ mappedTag))
		if err != nil {
			return nil
		}
		return b
	}
	b, err := a.blocks.Payload(int(p) - format.HeaderSize)
	if err != nil {
		return nil
	}
	return b
}

// Usable returns the number of bytes Bytes(p) exposes.
func (a *Allocator) Usable(p Ptr) int { return len(a.Bytes(p)) }

// IsMapped reports whether p is backed by its own mapping.
func (a *Allocator) IsMapped(p Ptr) bool {
	return p&mappedTag != 0 && a.maps.Has(uint64(p&^mappedTag))
}

// Stats returns a snapshot of every counter.
func (a *Allocator) Stats() Stats {
	s := a.stats
	s.Ledger = a.blocks.Stats()
	s.Maps = a.maps.Stats()
	if a.arena != nil {
		s.Arena = a.arena.Stats()
	}
	return s
}

// Blocks returns the arena blocks in address order.
func (a *Allocator) Blocks() []ledger.Block { return a.blocks.Blocks() }

// Mappings returns the live direct mappings.
func (a *Allocator) Mappings() []directmap.Info { return a.maps.Mappings() }

// Verify checks the arena ledger and every mapping header.
func (a *Allocator) Verify() error {
	if err := a.blocks.Verify(); err != nil {
		return err
	}
	for _, m := range a.maps.Mappings() {
		if _, err := a.maps.Header(m.ID); err != nil {
			return err
		}
	}
	return nil
}

// Close unmaps every live mapping and releases the arena if the allocator
// created it. Handles become invalid.
func (a *Allocator) Close() error {
	err := a.maps.Close()
	if a.arena != nil {
		err = errors.Join(err, a.arena.Close())
	}
	return err
}

// ============================================================================
// Internal helpers
// ============================================================================

// alloc serves a request with an explicit mapping threshold.
func (a *Allocator) alloc(size, threshold int) Ptr {
	if size <= 0 {
		a.stats.Rejected++
		return Nil
	}
	need, ok := alignedSize(size)
	if !ok {
		a.stats.Rejected++
		a.log.Warn("malloc: size overflows", "size", size)
		return Nil
	}

	if a.routesToMap(need, threshold) {
		id, err := a.maps.Alloc(size)
		if errors.Is(err, directmap.ErrBadSize) || errors.Is(err, directmap.ErrClosed) {
			a.stats.Rejected++
			a.log.Warn("malloc: mapping refused", "size", size, "err", err)
			return Nil
		}
		if err != nil {
			a.fatal(err)
			return Nil
		}
		a.stats.MappedRequests++
		p := mappedTag | Ptr(id)
		if logAlloc {
			a.log.Debug("malloc: mapped", "size", size, "ptr", p, "threshold", threshold)
		}
		return p
	}

	off, err := a.blocks.Find(need)
	if err != nil {
		a.fatal(err)
		return Nil
	}
	a.stats.ArenaRequests++
	p := Ptr(off + format.HeaderSize)
	if logAlloc {
		a.log.Debug("malloc: arena", "size", size, "ptr", p, "blocks", a.blocks.Len())
	}
	return p
}

// relocate moves p into a fresh block of size bytes, copying up to keep
// bytes, then releases p. On failure p is left untouched.
func (a *Allocator) relocate(p Ptr, size, keep int) Ptr {
	np := a.alloc(size, a.cfg.MmapThreshold)
	if np == Nil {
		return Nil
	}
	// Fetch both views after the allocation; the arena may have moved.
	src, dst := a.Bytes(p), a.Bytes(np)
	n := min(keep, len(src), len(dst))
	if need, ok := alignedSize(size); ok {
		n = min(n, need)
	}
	copy(dst[:n], src[:n])
	a.release(p)
	a.stats.Relocations++
	a.log.Debug("malloc: relocated", "from", p, "to", np, "copied", n)
	return np
}

func (a *Allocator) release(p Ptr) {
	if p&mappedTag != 0 {
		err := a.maps.Release(uint64(p &^ mappedTag))
		switch {
		case err == nil:
		case errors.Is(err, directmap.ErrUnknownID), errors.Is(err, directmap.ErrClosed):
			a.reject("free", p, err)
		default:
			a.fatal(&FatalError{Op: OpMunmap, Errno: pagemap.Errno(err), Err: err})
		}
		return
	}
	if err := a.blocks.Release(int(p) - format.HeaderSize); err != nil {
		a.reject("free", p, err)
	}
}

func (a *Allocator) arenaHeader(p Ptr) (int, format.Header, error) {
	off := int(p) - format.HeaderSize
	if off < 0 {
		return 0, format.Header{}, fmt.Errorf("%w: %s", ErrBadPointer, p)
	}
	h, err := a.blocks.Header(off)
	if err != nil {
		return 0, format.Header{}, fmt.Errorf("%w: %w", ErrBadPointer, err)
	}
	return off, h, nil
}

func (a *Allocator) routesToMap(need, threshold int) bool {
	return need >= threshold-format.HeaderSize
}

func (a *Allocator) reject(op string, p Ptr, err error) {
	a.stats.Rejected++
	a.log.Warn("malloc: "+op+" ignored", "ptr", p, "err", err)
}

// fatal reports an OS failure. err is either a *FatalError or a growth or
// mapping error to be wrapped in one.
func (a *Allocator) fatal(err error) {
	var fe *FatalError
	if !errors.As(err, &fe) {
		fe = &FatalError{Op: OpMmap, Errno: pagemap.Errno(err), Err: err}
		var gerr *ledger.GrowthError
		if errors.As(err, &gerr) {
			fe.Op = gerr.Op
		}
	}
	a.stats.Fatal++
	a.log.Error("malloc: fatal OS failure", "op", fe.Op, "errno", int(fe.Errno), "err", fe.Err)
	a.onFatal(fe)
}

func alignedSize(size int) (int, bool) {
	n, ok := buf.AddOverflowSafe(size, format.AlignmentMask)
	if !ok {
		return 0, false
	}
	return n &^ format.AlignmentMask, true
}
