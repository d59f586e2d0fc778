// Package format holds the on-arena layout of block headers: sizes, field
// offsets, alignment rules and the little-endian codec used to read and write
// them. Higher-level packages never touch header bytes directly.
package format

const (
	// HeaderSize is the number of bytes occupied by a block header. The
	// payload of every block starts immediately after it.
	HeaderSize = 32

	// Alignment is the minimum payload granularity. Every arena payload size
	// is a multiple of it.
	Alignment = 8

	// AlignmentMask is the bitmask used for aligning to 8-byte boundaries (Alignment - 1).
	AlignmentMask = Alignment - 1

	// MinSplitRemainder is the smallest leftover that is carved into a new
	// free block: a header plus one aligned word of payload.
	MinSplitRemainder = HeaderSize + Alignment

	// PageSize is the page granularity assumed when no OS value is available.
	PageSize = 4 * 1024

	// InitialArenaSize is the size of the region requested on first arena use.
	InitialArenaSize = 128 * 1024

	// MmapThreshold is the default large-object routing threshold.
	MmapThreshold = 128 * 1024

	// NoBlock marks an absent prev/next link.
	NoBlock int64 = -1
)

// Header field offsets.
//
//	Offset  Size  Description
//	0x00    8     Payload size in bytes, header excluded.
//	0x08    4     Status (Free, Allocated, Mapped).
//	0x0C    4     Reserved, always zero.
//	0x10    8     Arena offset of the previous header, or -1.
//	0x18    8     Arena offset of the next header, or -1.
const (
	HeaderSizeOffset   = 0x00
	HeaderStatusOffset = 0x08
	HeaderPadOffset    = 0x0C
	HeaderPrevOffset   = 0x10
	HeaderNextOffset   = 0x18
)
