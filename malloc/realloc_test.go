package malloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/internal/format"
)

func TestReallocNilActsAsMalloc(t *testing.T) {
	a := newTestAllocator(t, nil)
	p := a.Realloc(Nil, 100)
	require.NotEqual(t, Nil, p)
	assert.Equal(t, 104, a.Usable(p))
	assertInvariants(t, a)
}

func TestReallocZeroActsAsFree(t *testing.T) {
	a := newTestAllocator(t, nil)
	p := a.Malloc(100)
	assert.Equal(t, Nil, a.Realloc(p, 0))
	require.Len(t, a.Blocks(), 1)
	assert.Equal(t, format.Free, a.Blocks()[0].Status)

	m := a.Malloc(200_000)
	assert.Equal(t, Nil, a.Realloc(m, -3))
	assert.Empty(t, a.Mappings())
}

func TestReallocReleasedBlockRefused(t *testing.T) {
	a := newTestAllocator(t, nil)
	p := a.Malloc(100)
	_ = a.Malloc(8)
	a.Free(p)
	before := a.Blocks()

	assert.Equal(t, Nil, a.Realloc(p, 50))
	assert.Equal(t, before, a.Blocks(), "refused resize leaves the ledger untouched")
	assert.Equal(t, 1, a.Stats().Rejected)
}

func TestReallocMappedAlwaysRelocates(t *testing.T) {
	for _, size := range []int{150_000, 300_000} {
		a := newTestAllocator(t, nil)
		p := a.Malloc(200_000)
		fill(a.Bytes(p), 0x33)

		q := a.Realloc(p, size)
		require.NotEqual(t, Nil, q)
		assert.NotEqual(t, p, q, "size %d", size)
		assert.True(t, a.IsMapped(q))
		assert.False(t, a.IsMapped(p))
		assert.Len(t, a.Mappings(), 1)
		assert.Len(t, a.Bytes(q), size)
		requireFilled(t, a.Bytes(q)[:min(size, 200_000)], 0x33)
		assert.Equal(t, 1, a.Stats().Relocations)
	}
}

func TestReallocMigratesArenaToMapping(t *testing.T) {
	a := newTestAllocator(t, nil)
	p := a.Malloc(100)
	fill(a.Bytes(p), 0x44)

	q := a.Realloc(p, 200_000)
	require.NotEqual(t, Nil, q)
	assert.True(t, a.IsMapped(q))
	requireFilled(t, a.Bytes(q)[:104], 0x44)
	assert.Equal(t, format.Free, a.Blocks()[0].Status, "old arena block released")
	assertInvariants(t, a)
}

func TestReallocGrowsLastBlockInPlace(t *testing.T) {
	a := newTestAllocator(t, &Config{InitialArenaSize: 1024})
	p := a.Malloc(1024 - format.HeaderSize)
	fill(a.Bytes(p), 0x55)
	breakBefore := a.Stats().Arena.Break

	q := a.Realloc(p, 4000)
	require.Equal(t, p, q)
	assert.Equal(t, 4000, a.Usable(q))
	requireFilled(t, a.Bytes(q)[:1024-format.HeaderSize], 0x55)

	st := a.Stats()
	assert.Equal(t, 1, st.GrowInPlace)
	assert.Equal(t, breakBefore+4000-(1024-format.HeaderSize), st.Arena.Break)
	assertInvariants(t, a)
}

func TestReallocShrinkSplits(t *testing.T) {
	a := newTestAllocator(t, nil)
	p := a.Malloc(500)
	_ = a.Malloc(8)

	q := a.Realloc(p, 200)
	require.Equal(t, p, q)
	blocks := a.Blocks()
	assert.Equal(t, 200, blocks[0].Size)
	assert.Equal(t, format.Free, blocks[1].Status)
	assert.Equal(t, 504-200-format.HeaderSize, blocks[1].Size)
	assertInvariants(t, a)
}

func TestReallocShrinkKeepsSmallLeftover(t *testing.T) {
	a := newTestAllocator(t, nil)
	p := a.Malloc(500)
	_ = a.Malloc(8)
	count := len(a.Blocks())

	q := a.Realloc(p, 480)
	require.Equal(t, p, q)
	assert.Equal(t, 504, a.Usable(q))
	assert.Len(t, a.Blocks(), count)
}

// absorbSetup lays out [p:96][b:96 free][c:96] and fills p and b.
func absorbSetup(t *testing.T) (*Allocator, Ptr, Ptr) {
	t.Helper()
	a := newTestAllocator(t, nil)
	p := a.Malloc(96)
	b := a.Malloc(96)
	c := a.Malloc(96)
	fill(a.Bytes(p), 0x66)
	fill(a.Bytes(b), 0x77)
	a.Free(b)
	return a, p, c
}

func TestReallocAbsorbExact(t *testing.T) {
	a, p, c := absorbSetup(t)
	q := a.Realloc(p, 96+96+format.HeaderSize)
	require.Equal(t, p, q)
	assert.Equal(t, 224, a.Usable(q))
	assert.Equal(t, int(c), int(q)+224+format.HeaderSize)
	requireFilled(t, a.Bytes(q)[:96], 0x66)
	assertInvariants(t, a)
}

func TestReallocAbsorbThenSplit(t *testing.T) {
	a, p, _ := absorbSetup(t)
	q := a.Realloc(p, 160)
	require.Equal(t, p, q)
	assert.Equal(t, 160, a.Usable(q))

	blocks := a.Blocks()
	assert.Equal(t, format.Free, blocks[1].Status)
	assert.Equal(t, 224-160-format.HeaderSize, blocks[1].Size)
	assertInvariants(t, a)
}

func TestReallocAbsorbThenRelocate(t *testing.T) {
	a, p, _ := absorbSetup(t)
	q := a.Realloc(p, 400)
	require.NotEqual(t, Nil, q)
	assert.NotEqual(t, p, q)
	assert.Equal(t, 1, a.Stats().Relocations)

	b := a.Bytes(q)
	requireFilled(t, b[:96], 0x66)
	// The absorbed neighbor's payload travels with the block.
	requireFilled(t, b[96+format.HeaderSize:224], 0x77)
	assertInvariants(t, a)
}

func TestReallocBadPointer(t *testing.T) {
	a := newTestAllocator(t, nil)
	_ = a.Malloc(64)
	assert.Equal(t, Nil, a.Realloc(Ptr(4), 10))
	assert.Equal(t, Nil, a.Realloc(mappedTag|77, 10))
	assert.Equal(t, 2, a.Stats().Rejected)
}

func TestReallocFailureKeepsOriginal(t *testing.T) {
	rec := &fatalRecorder{}
	m := &heapMapper{}
	a := newTestAllocator(t, &Config{Mapper: m, OnFatal: rec.handle})
	p := a.Malloc(100)
	fill(a.Bytes(p), 0x88)

	m.mapErr = errRefused
	assert.Equal(t, Nil, a.Realloc(p, 200_000))
	require.Len(t, rec.errs, 1)
	requireFilled(t, a.Bytes(p)[:100], 0x88)
	assert.Equal(t, format.Allocated, a.Blocks()[0].Status)
}
