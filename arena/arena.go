package arena

import (
	"fmt"
	"io"
	"log/slog"
	"syscall"

	"github.com/joshuapare/heapkit/internal/buf"
	"github.com/joshuapare/heapkit/internal/pagemap"
)

// Config controls arena reservation.
type Config struct {
	// Limit is the maximum break in bytes. On unix this much address space is
	// reserved (not committed) on first use.
	Limit int

	// Logger receives growth events at Debug level. Nil discards.
	Logger *slog.Logger
}

// DefaultConfig reserves 1 GiB of address space.
var DefaultConfig = Config{
	Limit: 1 << 30,
}

// Stats holds arena growth counters.
type Stats struct {
	Extends   int   // successful Extend calls with delta > 0
	Failures  int   // Extend calls that returned an error
	Break     int   // current break
	Committed int64 // bytes made accessible (page-rounded on unix)
}

// Arena is a growable, never-shrinking byte region addressed by offset.
type Arena struct {
	limit    int
	pageSize int
	log      *slog.Logger

	region    []byte // reservation (unix) or backing slice (other)
	brk       int
	committed int
	closed    bool

	stats Stats
}

// New creates an arena. Nothing is reserved until the first Extend.
// A nil config selects DefaultConfig.
func New(cfg *Config) *Arena {
	if cfg == nil {
		cfg = &DefaultConfig
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultConfig.Limit
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Arena{
		limit:    limit,
		pageSize: pagemap.PageSize(),
		log:      logger,
	}
}

// Bytes returns the region below the break.
func (a *Arena) Bytes() []byte {
	if a.region == nil {
		return nil
	}
	return a.region[:a.brk]
}

// Size returns the current break.
func (a *Arena) Size() int { return a.brk }

// Limit returns the configured maximum break.
func (a *Arena) Limit() int { return a.limit }

// Stats returns a snapshot of growth counters.
func (a *Arena) Stats() Stats {
	s := a.stats
	s.Break = a.brk
	s.Committed = int64(a.committed)
	return s
}

// Extend moves the break forward by delta bytes and returns the previous
// break. A zero delta reports the current break without growing.
func (a *Arena) Extend(delta int) (int, error) {
	if a.closed {
		a.stats.Failures++
		return 0, ErrClosed
	}
	if delta < 0 {
		a.stats.Failures++
		return 0, fmt.Errorf("%w: %d", ErrNegativeDelta, delta)
	}
	if delta == 0 {
		return a.brk, nil
	}

	newBrk, ok := buf.AddOverflowSafe(a.brk, delta)
	if !ok || newBrk > a.limit {
		a.stats.Failures++
		a.log.Debug("arena: break limit reached", "break", a.brk, "delta", delta, "limit", a.limit)
		return 0, fmt.Errorf("%w: %w", ErrExhausted,
			&pagemap.Error{Op: "brk", Len: delta, Err: syscall.ENOMEM})
	}

	if err := a.grow(newBrk); err != nil {
		a.stats.Failures++
		return 0, err
	}

	base := a.brk
	a.brk = newBrk
	a.stats.Extends++
	a.log.Debug("arena: extend", "base", base, "delta", delta, "break", newBrk, "committed", a.committed)
	return base, nil
}

// Close releases the backing region. Offsets handed out earlier become
// invalid.
func (a *Arena) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	err := a.release()
	a.region = nil
	a.brk = 0
	a.committed = 0
	return err
}
