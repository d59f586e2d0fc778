package trace

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joshuapare/heapkit/internal/buf"
	"github.com/joshuapare/heapkit/ledger"
	"github.com/joshuapare/heapkit/malloc"
)

// Options controls replay checking.
type Options struct {
	// VerifyEvery runs Allocator.Verify after every N operations. Zero
	// verifies only once at the end.
	VerifyEvery int
}

// Result summarizes one replay.
type Result struct {
	Name     string
	Ops      int
	Live     int // blocks still live at the end
	PeakLive int
	// PeakArena is the largest number of arena bytes, headers included,
	// held by live blocks at once.
	PeakArena int
	Elapsed  time.Duration
	Stats    malloc.Stats
	Blocks   []ledger.Block // arena layout when the replay ended
}

// Trace is a named operation list.
type Trace struct {
	Name string
	Ops  []Op
}

type slot struct {
	p    malloc.Ptr
	size int
}

// pattern is the byte an id's payload is filled with.
func pattern(id int) byte { return byte(id*31+7) | 1 }

// Replay runs ops against a, filling every payload with an id-derived byte
// and checking that contents survive until the block is resized or freed.
// Calloc results must read back as zero, and no arena block may overlap
// another live block.
func Replay(ctx context.Context, a *malloc.Allocator, ops []Op, opts Options) (Result, error) {
	start := time.Now()
	live := make(map[int]slot)
	cov := newCoverage()
	res := Result{}

	fail := func(i int, op Op, err error) (Result, error) {
		res.Ops = i
		res.Live = len(live)
		res.Elapsed = time.Since(start)
		res.Stats = a.Stats()
		return res, fmt.Errorf("op %d (%s, line %d): %w", i, op, op.Line, err)
	}

	for i, op := range ops {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return fail(i, op, err)
			}
		}

		switch op.Kind {
		case Malloc, Calloc:
			if _, ok := live[op.ID]; ok {
				return fail(i, op, ErrDuplicateID)
			}
			var p malloc.Ptr
			size, valid := op.Size, op.Size > 0
			if op.Kind == Malloc {
				p = a.Malloc(size)
			} else {
				p = a.Calloc(op.Count, op.Size)
				size, valid = buf.MulOverflowSafe(op.Count, op.Size)
				valid = valid && op.Count > 0 && op.Size > 0
			}
			if !valid {
				if p != malloc.Nil {
					return fail(i, op, fmt.Errorf("invalid request returned %s", p))
				}
				continue
			}
			if p == malloc.Nil {
				return fail(i, op, ErrAllocFailed)
			}
			b := a.Bytes(p)
			if len(b) < size {
				return fail(i, op, fmt.Errorf("%w: %d usable bytes for %d requested", ErrContent, len(b), size))
			}
			if err := cov.claim(a, p); err != nil {
				return fail(i, op, err)
			}
			if op.Kind == Calloc {
				if j := firstNot(b[:size], 0); j >= 0 {
					return fail(i, op, fmt.Errorf("%w: calloc byte %d not zero", ErrContent, j))
				}
			}
			fillBytes(b[:size], pattern(op.ID))
			live[op.ID] = slot{p, size}

		case Realloc:
			old, ok := live[op.ID]
			cov.drop(a, old.p)
			q := a.Realloc(old.p, op.Size)
			if op.Size <= 0 {
				delete(live, op.ID)
				continue
			}
			if q == malloc.Nil {
				return fail(i, op, ErrAllocFailed)
			}
			b := a.Bytes(q)
			if len(b) < op.Size {
				return fail(i, op, fmt.Errorf("%w: %d usable bytes for %d requested", ErrContent, len(b), op.Size))
			}
			if err := cov.claim(a, q); err != nil {
				return fail(i, op, err)
			}
			if ok {
				if j := firstNot(b[:min(old.size, op.Size)], pattern(op.ID)); j >= 0 {
					return fail(i, op, fmt.Errorf("%w: byte %d lost across resize", ErrContent, j))
				}
			}
			fillBytes(b[:op.Size], pattern(op.ID))
			live[op.ID] = slot{q, op.Size}

		case Free:
			s, ok := live[op.ID]
			if !ok {
				return fail(i, op, ErrUnknownID)
			}
			b := a.Bytes(s.p)
			if len(b) < s.size {
				return fail(i, op, fmt.Errorf("%w: live block %s exposes %d of %d bytes", ErrContent, s.p, len(b), s.size))
			}
			if j := firstNot(b[:s.size], pattern(op.ID)); j >= 0 {
				return fail(i, op, fmt.Errorf("%w: byte %d overwritten", ErrContent, j))
			}
			cov.drop(a, s.p)
			a.Free(s.p)
			delete(live, op.ID)

		default:
			return fail(i, op, fmt.Errorf("%w: unknown kind %d", ErrSyntax, op.Kind))
		}

		res.PeakLive = max(res.PeakLive, len(live))
		res.PeakArena = max(res.PeakArena, cov.live())
		if opts.VerifyEvery > 0 && (i+1)%opts.VerifyEvery == 0 {
			if err := a.Verify(); err != nil {
				return fail(i, op, err)
			}
		}
	}

	if err := a.Verify(); err != nil {
		return fail(len(ops), Op{}, err)
	}
	res.Ops = len(ops)
	res.Live = len(live)
	res.Elapsed = time.Since(start)
	res.Stats = a.Stats()
	res.Blocks = a.Blocks()
	return res, nil
}

// ReplayAll replays each trace on its own allocator, running up to workers
// replays at once. Results are returned in input order. The first failure
// cancels the remaining replays.
func ReplayAll(ctx context.Context, traces []Trace, cfg *malloc.Config, opts Options, workers int) ([]Result, error) {
	if workers <= 0 {
		workers = 1
	}
	results := make([]Result, len(traces))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, tr := range traces {
		g.Go(func() error {
			a, err := malloc.New(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := Replay(ctx, a, tr.Ops, opts)
			res.Name = tr.Name
			results[i] = res
			if err != nil {
				return fmt.Errorf("%s: %w", tr.Name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func fillBytes(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}

func firstNot(b []byte, v byte) int {
	for i, c := range b {
		if c != v {
			return i
		}
	}
	return -1
}
