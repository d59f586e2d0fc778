package malloc

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joshuapare/heapkit/arena"
	"github.com/joshuapare/heapkit/directmap"
	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/ledger"
)

// Runtime debug flag for allocation logging, controlled by HEAPKIT_LOG_ALLOC.
var logAlloc = os.Getenv("HEAPKIT_LOG_ALLOC") != ""

// Config controls allocator behavior. Zero fields take their value from
// DefaultConfig.
type Config struct {
	// InitialArenaSize is the region requested when the arena is first used.
	InitialArenaSize int

	// MmapThreshold routes a request to its own mapping once its rounded
	// size reaches MmapThreshold minus one header.
	MmapThreshold int

	// CallocThreshold replaces MmapThreshold for the duration of a Calloc
	// call so mid-sized zeroed requests get fresh pages.
	CallocThreshold int

	// ArenaLimit bounds the arena break. Ignored when Region is set.
	ArenaLimit int

	// Logger receives allocation events. Nil discards unless
	// HEAPKIT_LOG_ALLOC is set, which logs at Debug to stderr.
	Logger *slog.Logger

	// OnFatal is called when an OS primitive fails. Nil panics with the
	// error. If a custom handler returns, the failing call returns Nil.
	OnFatal func(*FatalError)

	// Region overrides the arena break source. Nil creates an arena.Arena.
	Region ledger.Region

	// Mapper overrides the anonymous mapping source. Nil uses
	// pagemap.Anonymous.
	Mapper directmap.Mapper
}

// DefaultConfig mirrors a classic sbrk/mmap allocator: 128 KiB initial
// arena, 128 KiB mmap threshold, one page for calloc.
var DefaultConfig = Config{
	InitialArenaSize: format.InitialArenaSize,
	MmapThreshold:    format.MmapThreshold,
	CallocThreshold:  format.PageSize,
	ArenaLimit:       arena.DefaultConfig.Limit,
}

// withDefaults returns a copy of cfg with zero fields filled in.
func (cfg *Config) withDefaults() Config {
	out := DefaultConfig
	if cfg == nil {
		return out
	}
	c := *cfg
	if c.InitialArenaSize == 0 {
		c.InitialArenaSize = out.InitialArenaSize
	}
	if c.MmapThreshold == 0 {
		c.MmapThreshold = out.MmapThreshold
	}
	if c.CallocThreshold == 0 {
		c.CallocThreshold = out.CallocThreshold
	}
	if c.ArenaLimit == 0 {
		c.ArenaLimit = out.ArenaLimit
	}
	return c
}

// Validate reports whether the configuration is usable after defaults are
// applied.
func (cfg *Config) Validate() error {
	c := cfg.withDefaults()
	switch {
	case c.InitialArenaSize < format.MinSplitRemainder || !format.IsAligned(c.InitialArenaSize):
		return fmt.Errorf("%w: initial arena size %d must be a multiple of %d and at least %d",
			ErrBadConfig, c.InitialArenaSize, format.Alignment, format.MinSplitRemainder)
	case c.MmapThreshold <= format.HeaderSize:
		return fmt.Errorf("%w: mmap threshold %d must exceed the %d-byte header",
			ErrBadConfig, c.MmapThreshold, format.HeaderSize)
	case c.CallocThreshold <= format.HeaderSize:
		return fmt.Errorf("%w: calloc threshold %d must exceed the %d-byte header",
			ErrBadConfig, c.CallocThreshold, format.HeaderSize)
	case c.Region == nil && c.ArenaLimit < c.InitialArenaSize:
		return fmt.Errorf("%w: arena limit %d below initial arena size %d",
			ErrBadConfig, c.ArenaLimit, c.InitialArenaSize)
	}
	return nil
}

func (cfg *Config) logger() *slog.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}
	if logAlloc {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
