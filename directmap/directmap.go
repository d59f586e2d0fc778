// Package directmap serves large requests from one anonymous mapping each,
// bypassing the arena.
//
// Every mapping starts with a header tagged Mapped whose size field holds the
// raw requested size, not the rounded one. Mapped headers carry no links:
// mappings are never split, merged or grown. A mapping is identified by a
// small integer id handed out by Alloc; ids are never reused within a table.
//
// A Table is not safe for concurrent use.
package directmap

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/joshuapare/heapkit/internal/buf"
	"github.com/joshuapare/heapkit/internal/format"
)

// Mapper is the anonymous mapping contract. Unmap receives the exact slice
// Map returned.
type Mapper interface {
	Map(length int) ([]byte, error)
	Unmap(data []byte) error
}

// Stats holds mapping counters.
type Stats struct {
	Maps        int   // successful Alloc calls
	Unmaps      int   // successful Release calls
	Failures    int   // Map or Unmap errors
	Live        int   // mappings currently held
	LiveBytes   int64 // bytes currently mapped, headers included
	PeakBytes   int64 // high-water mark of LiveBytes
	MappedTotal int64 // bytes ever mapped
}

// Info describes one live mapping.
type Info struct {
	ID     uint64
	Size   int // raw requested size
	Mapped int // mapping length, header included
}

// Table tracks the live mappings of one allocator.
type Table struct {
	m      Mapper
	log    *slog.Logger
	live   map[uint64][]byte
	nextID uint64
	closed bool
	stats  Stats
}

// New creates an empty table over m. A nil logger discards.
func New(m Mapper, logger *slog.Logger) *Table {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Table{
		m:      m,
		log:    logger,
		live:   make(map[uint64][]byte),
		nextID: 1,
	}
}

// MappingSize returns the mapping length used for a request of size bytes.
func MappingSize(size int) (int, bool) {
	if size <= 0 {
		return 0, false
	}
	aligned, ok := buf.AddOverflowSafe(size, format.AlignmentMask)
	if !ok {
		return 0, false
	}
	return buf.AddOverflowSafe(aligned&^format.AlignmentMask, format.HeaderSize)
}

// Alloc maps a block large enough for size payload bytes and returns its id.
func (t *Table) Alloc(size int) (uint64, error) {
	if t.closed {
		return 0, ErrClosed
	}
	length, ok := MappingSize(size)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrBadSize, size)
	}
	data, err := t.m.Map(length)
	if err != nil {
		t.stats.Failures++
		return 0, fmt.Errorf("directmap: map %d bytes: %w", length, err)
	}
	if len(data) < length {
		t.stats.Failures++
		return 0, fmt.Errorf("directmap: mapper returned %d bytes, want %d", len(data), length)
	}
	data = data[:length:length]

	if err := format.WriteHeader(data, 0, format.Header{
		Size:   uint64(size),
		Status: format.Mapped,
		Prev:   format.NoBlock,
		Next:   format.NoBlock,
	}); err != nil {
		return 0, err
	}

	id := t.nextID
	t.nextID++
	t.live[id] = data

	t.stats.Maps++
	t.stats.Live++
	t.stats.LiveBytes += int64(length)
	t.stats.MappedTotal += int64(length)
	if t.stats.LiveBytes > t.stats.PeakBytes {
		t.stats.PeakBytes = t.stats.LiveBytes
	}
	t.log.Debug("directmap: mapped", "id", id, "size", size, "len", length)
	return id, nil
}

// Release unmaps the mapping named by id.
func (t *Table) Release(id uint64) error {
	data, err := t.lookup(id)
	if err != nil {
		return err
	}
	if err := t.m.Unmap(data); err != nil {
		t.stats.Failures++
		return fmt.Errorf("directmap: unmap id %d: %w", id, err)
	}
	delete(t.live, id)
	t.stats.Unmaps++
	t.stats.Live--
	t.stats.LiveBytes -= int64(len(data))
	t.log.Debug("directmap: unmapped", "id", id, "len", len(data))
	return nil
}

// Header returns the decoded header of a live mapping.
func (t *Table) Header(id uint64) (format.Header, error) {
	data, err := t.lookup(id)
	if err != nil {
		return format.Header{}, err
	}
	return t.header(id, data)
}

// Payload returns the recorded-size payload view of a live mapping.
func (t *Table) Payload(id uint64) ([]byte, error) {
	data, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	h, err := t.header(id, data)
	if err != nil {
		return nil, err
	}
	return data[format.HeaderSize : format.HeaderSize+int(h.Size)], nil
}

// Has reports whether id names a live mapping.
func (t *Table) Has(id uint64) bool {
	_, ok := t.live[id]
	return ok
}

// Len returns the number of live mappings.
func (t *Table) Len() int { return len(t.live) }

// Stats returns a snapshot of the mapping counters.
func (t *Table) Stats() Stats { return t.stats }

// Mappings returns every live mapping. Order is unspecified.
func (t *Table) Mappings() []Info {
	out := make([]Info, 0, len(t.live))
	for id, data := range t.live {
		out = append(out, Info{ID: id, Size: int(format.ReadU64(data, format.HeaderSizeOffset)), Mapped: len(data)})
	}
	return out
}

// Close unmaps every live mapping. Further calls return ErrClosed.
func (t *Table) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	var errs []error
	for id := range t.live {
		if err := t.Release(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *Table) lookup(id uint64) ([]byte, error) {
	data, ok := t.live[id]
	if !ok {
		if t.closed {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("%w: %d", ErrUnknownID, id)
	}
	return data, nil
}

func (t *Table) header(id uint64, data []byte) (format.Header, error) {
	h, err := format.ReadHeader(data, 0)
	if err != nil {
		return format.Header{}, fmt.Errorf("%w: id %d: %w", ErrCorrupt, id, err)
	}
	if h.Status != format.Mapped || int(h.Size) > len(data)-format.HeaderSize {
		return format.Header{}, fmt.Errorf("%w: id %d holds %s block of %d bytes", ErrCorrupt, id, h.Status, h.Size)
	}
	return h, nil
}
