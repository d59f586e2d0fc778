package ledger

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/joshuapare/heapkit/internal/buf"
	"github.com/joshuapare/heapkit/internal/format"
)

const (
	headerSize = format.HeaderSize
	noBlock    = int(format.NoBlock)
)

// Region is the break contract the ledger grows through. Extend moves the
// break forward by delta bytes and returns the previous break.
type Region interface {
	Bytes() []byte
	Extend(delta int) (int, error)
}

// Config controls ledger creation.
type Config struct {
	// InitialSize is the region requested on first use, header included.
	// Must be 8-byte aligned and hold at least one header plus 8 bytes.
	InitialSize int

	// Logger receives block events at Debug level. Nil discards.
	Logger *slog.Logger
}

// DefaultConfig requests a 128 KiB initial region.
var DefaultConfig = Config{
	InitialSize: format.InitialArenaSize,
}

// Stats holds ledger counters.
type Stats struct {
	Searches    int   // Find calls
	ExactFits   int   // Find satisfied by an exact-size free block
	BestFits    int   // Find satisfied by the smallest larger free block
	Splits      int   // free remainders carved off
	Merges      int   // headers absorbed into a neighbor
	ExtendLast  int   // free last block grown by Find
	Appends     int   // new blocks appended at the break
	GrowInPlace int   // allocated last block grown by GrowLast
	Absorbs     int   // following free blocks absorbed by Absorb
	Releases    int   // Release calls that freed a block
	BreakBytes  int64 // total bytes requested from the region
}

// Block describes one ledger entry.
type Block struct {
	Off    int // header offset
	Size   int // payload bytes
	Status format.Status
}

// Payload returns the offset of the block's first payload byte.
func (b Block) Payload() int { return b.Off + headerSize }

// End returns the offset just past the block's payload.
func (b Block) End() int { return b.Off + headerSize + b.Size }

// Ledger is the address-ordered block chain of one arena.
type Ledger struct {
	r       Region
	initial int
	log     *slog.Logger

	head  int
	tail  int
	count int

	stats Stats
}

// New creates an empty ledger over r. The first block is created lazily by
// the first Find. A nil config selects DefaultConfig.
func New(r Region, cfg *Config) *Ledger {
	if cfg == nil {
		cfg = &DefaultConfig
	}
	initial := cfg.InitialSize
	if initial <= 0 {
		initial = DefaultConfig.InitialSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Ledger{
		r:       r,
		initial: initial,
		log:     logger,
		head:    noBlock,
		tail:    noBlock,
	}
}

// Len returns the number of blocks.
func (l *Ledger) Len() int { return l.count }

// Empty reports whether the first block has not been created yet.
func (l *Ledger) Empty() bool { return l.head == noBlock }

// Head returns the header offset of the lowest block, or -1.
func (l *Ledger) Head() int { return l.head }

// Tail returns the header offset of the highest block, or -1.
func (l *Ledger) Tail() int { return l.tail }

// IsLast reports whether off is the highest block.
func (l *Ledger) IsLast(off int) bool { return off != noBlock && off == l.tail }

// Stats returns a snapshot of the ledger counters.
func (l *Ledger) Stats() Stats { return l.stats }

// Header returns the decoded header of the block at off after checking that
// off plausibly names a ledger block.
func (l *Ledger) Header(off int) (format.Header, error) {
	data := l.r.Bytes()
	if l.head == noBlock || off < l.head {
		return format.Header{}, fmt.Errorf("%w: offset %d", ErrBadRef, off)
	}
	if !format.IsAligned(off - l.head) {
		return format.Header{}, fmt.Errorf("%w: offset %d: %w", ErrBadRef, off, format.ErrMisaligned)
	}
	h, err := format.ReadHeader(data, off)
	if err != nil {
		return format.Header{}, fmt.Errorf("%w: %w", ErrBadRef, err)
	}
	if h.Status == format.Mapped {
		return format.Header{}, fmt.Errorf("%w: offset %d holds a mapped block", ErrBadRef, off)
	}
	if !format.IsAligned(int(h.Size)) {
		return format.Header{}, fmt.Errorf("%w: size %d at %d: %w", ErrBadRef, h.Size, off, format.ErrMisaligned)
	}
	if _, err := buf.CheckRange(len(data), off+headerSize, int(h.Size)); err != nil {
		return format.Header{}, fmt.Errorf("%w: block at %d: %w", ErrBadRef, off, err)
	}
	if h.HasPrev() == (off == l.head) || h.HasNext() == (off == l.tail) {
		return format.Header{}, fmt.Errorf("%w: offset %d has inconsistent links", ErrBadRef, off)
	}
	return h, nil
}

// Payload returns the payload bytes of the block at off.
func (l *Ledger) Payload(off int) ([]byte, error) {
	h, err := l.Header(off)
	if err != nil {
		return nil, err
	}
	start := off + headerSize
	return l.r.Bytes()[start : start+int(h.Size)], nil
}

// Find returns the header offset of an allocated block with at least size
// payload bytes, growing the arena when no free block fits.
func (l *Ledger) Find(size int) (int, error) {
	need := format.Align8(size)

	if l.head == noBlock {
		if err := l.init(); err != nil {
			return 0, err
		}
	}
	l.Coalesce()
	l.stats.Searches++

	for off := l.head; off != noBlock; {
		h := l.load(off)
		if h.Status == format.Free && int(h.Size) == need {
			h.Status = format.Allocated
			l.store(off, h)
			l.stats.ExactFits++
			return off, nil
		}
		off = int(h.Next)
	}

	best := noBlock
	var bestExcess int
	for off := l.head; off != noBlock; {
		h := l.load(off)
		if h.Status == format.Free {
			excess := int(h.Size) - need
			if excess >= 0 && (best == noBlock || excess < bestExcess) {
				best = off
				bestExcess = excess
			}
		}
		off = int(h.Next)
	}

	if best != noBlock {
		if bestExcess >= format.MinSplitRemainder {
			l.split(best, need)
		}
		h := l.load(best)
		h.Status = format.Allocated
		l.store(best, h)
		l.stats.BestFits++
		return best, nil
	}

	last := l.load(l.tail)
	if last.Status == format.Free {
		deficit := need - int(last.Size)
		if err := l.extend(OpExtendBlock, deficit, l.tail+headerSize+int(last.Size)); err != nil {
			return 0, err
		}
		last = l.load(l.tail)
		last.Size = uint64(need)
		last.Status = format.Allocated
		l.store(l.tail, last)
		l.stats.ExtendLast++
		l.log.Debug("ledger: extended free last block", "off", l.tail, "deficit", deficit)
		return l.tail, nil
	}

	base := l.tail + headerSize + int(last.Size)
	if err := l.extend(OpNewBlock, need+headerSize, base); err != nil {
		return 0, err
	}
	l.store(base, format.Header{
		Size:   uint64(need),
		Status: format.Allocated,
		Prev:   int64(l.tail),
		Next:   format.NoBlock,
	})
	last = l.load(l.tail)
	last.Next = int64(base)
	l.store(l.tail, last)
	l.tail = base
	l.count++
	l.stats.Appends++
	l.log.Debug("ledger: appended block", "off", base, "size", need)
	return base, nil
}

// Release marks the block at off free and merges it with free neighbors.
// Releasing an already free block is a no-op.
func (l *Ledger) Release(off int) error {
	h, err := l.Header(off)
	if err != nil {
		return err
	}
	if h.Status == format.Free {
		return nil
	}
	h.Status = format.Free
	l.store(off, h)
	l.stats.Releases++

	cur := off
	for {
		h = l.load(cur)
		if !h.HasPrev() {
			break
		}
		prev := int(h.Prev)
		if l.load(prev).Status != format.Free {
			break
		}
		l.mergeNext(prev)
		cur = prev
	}
	l.mergeForward(cur)
	return nil
}

// Coalesce merges every run of adjacent free blocks.
func (l *Ledger) Coalesce() {
	for off := l.head; off != noBlock; {
		if l.load(off).Status == format.Free {
			l.mergeForward(off)
		}
		off = int(l.load(off).Next)
	}
}

// Shrink cuts the block at off down to size (rounded) when the leftover can
// form a free block of its own; the remainder is merged with a following
// free block. Reports whether a split happened.
func (l *Ledger) Shrink(off, size int) (bool, error) {
	h, err := l.Header(off)
	if err != nil {
		return false, err
	}
	need := format.Align8(size)
	if int(h.Size) < need || int(h.Size)-need < format.MinSplitRemainder {
		return false, nil
	}
	l.split(off, need)
	return true, nil
}

// GrowLast grows the highest block in place to size (rounded) by extending
// the arena by exactly the deficit.
func (l *Ledger) GrowLast(off, size int) error {
	h, err := l.Header(off)
	if err != nil {
		return err
	}
	if off != l.tail {
		return fmt.Errorf("%w: block at %d is not last", ErrBadRef, off)
	}
	need := format.Align8(size)
	deficit := need - int(h.Size)
	if deficit <= 0 {
		return nil
	}
	if err := l.extend(OpExtendBlockRealloc, deficit, off+headerSize+int(h.Size)); err != nil {
		return err
	}
	h = l.load(off)
	h.Size = uint64(need)
	h.Status = format.Allocated
	l.store(off, h)
	l.stats.GrowInPlace++
	return nil
}

// Absorb merges following free blocks into the block at off while its size
// is below size (rounded), stopping at the first non-free neighbor. Returns
// the resulting payload size.
func (l *Ledger) Absorb(off, size int) (int, error) {
	h, err := l.Header(off)
	if err != nil {
		return 0, err
	}
	need := format.Align8(size)
	for h.HasNext() && int(h.Size) < need {
		if l.load(int(h.Next)).Status != format.Free {
			break
		}
		l.mergeNext(off)
		l.stats.Absorbs++
		h = l.load(off)
	}
	return int(h.Size), nil
}

// Walk calls fn for every block in address order until fn returns false.
func (l *Ledger) Walk(fn func(Block) bool) {
	for off := l.head; off != noBlock; {
		h := l.load(off)
		if !fn(Block{Off: off, Size: int(h.Size), Status: h.Status}) {
			return
		}
		off = int(h.Next)
	}
}

// Blocks returns every block in address order.
func (l *Ledger) Blocks() []Block {
	out := make([]Block, 0, l.count)
	l.Walk(func(b Block) bool {
		out = append(out, b)
		return true
	})
	return out
}

// ============================================================================
// Internal helpers
// ============================================================================

// init creates the first block from the initial region.
func (l *Ledger) init() error {
	base, err := l.r.Extend(l.initial)
	if err != nil {
		return &GrowthError{Op: OpHeapPrealloc, Delta: l.initial, Err: err}
	}
	l.stats.BreakBytes += int64(l.initial)
	l.head, l.tail, l.count = base, base, 1
	l.store(base, format.Header{
		Size:   uint64(l.initial - headerSize),
		Status: format.Free,
		Prev:   format.NoBlock,
		Next:   format.NoBlock,
	})
	l.log.Debug("ledger: initial region", "off", base, "size", l.initial)
	return nil
}

// extend grows the region by delta and checks that the new space starts at want.
func (l *Ledger) extend(op string, delta, want int) error {
	base, err := l.r.Extend(delta)
	if err != nil {
		return &GrowthError{Op: op, Delta: delta, Err: err}
	}
	l.stats.BreakBytes += int64(delta)
	if base != want {
		return &GrowthError{Op: op, Delta: delta, Err: fmt.Errorf("%w: got base %d, want %d", ErrBreakMoved, base, want)}
	}
	return nil
}

// split shrinks the block at off to need bytes and writes a free header for
// the remainder, which is then merged forward. The caller guarantees the
// excess is at least MinSplitRemainder.
func (l *Ledger) split(off, need int) {
	h := l.load(off)
	remOff := off + headerSize + need
	rem := format.Header{
		Size:   h.Size - uint64(need) - headerSize,
		Status: format.Free,
		Prev:   int64(off),
		Next:   h.Next,
	}
	if h.Next != format.NoBlock {
		next := l.load(int(h.Next))
		next.Prev = int64(remOff)
		l.store(int(h.Next), next)
	} else {
		l.tail = remOff
	}
	h.Size = uint64(need)
	h.Next = int64(remOff)
	l.store(off, h)
	l.store(remOff, rem)
	l.count++
	l.stats.Splits++

	l.mergeForward(remOff)
}

// mergeForward absorbs free successors of the block at off.
func (l *Ledger) mergeForward(off int) {
	for {
		h := l.load(off)
		if h.Next == format.NoBlock || l.load(int(h.Next)).Status != format.Free {
			return
		}
		l.mergeNext(off)
	}
}

// mergeNext absorbs the immediate successor of off, header included.
func (l *Ledger) mergeNext(off int) {
	h := l.load(off)
	nextOff := int(h.Next)
	next := l.load(nextOff)

	h.Size += next.Size + headerSize
	h.Next = next.Next
	if next.Next != format.NoBlock {
		after := l.load(int(next.Next))
		after.Prev = int64(off)
		l.store(int(next.Next), after)
	} else {
		l.tail = off
	}
	l.store(off, h)
	l.count--
	l.stats.Merges++
}

// load reads a header reached through the ledger's own links. A failure
// means the arena was overwritten outside any payload.
func (l *Ledger) load(off int) format.Header {
	h, err := format.ReadHeader(l.r.Bytes(), off)
	if err != nil {
		panic(fmt.Errorf("%w: %w", ErrCorrupt, err))
	}
	return h
}

func (l *Ledger) store(off int, h format.Header) {
	if err := format.WriteHeader(l.r.Bytes(), off, h); err != nil {
		panic(fmt.Errorf("%w: %w", ErrCorrupt, err))
	}
}
