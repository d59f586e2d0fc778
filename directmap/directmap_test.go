package directmap

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/internal/pagemap"
)

// fakeMapper hands out heap slices and records every call.
type fakeMapper struct {
	mapped   []int
	unmapped []int
	mapErr   error
	unmapErr error
}

func (f *fakeMapper) Map(length int) ([]byte, error) {
	if f.mapErr != nil {
		return nil, f.mapErr
	}
	f.mapped = append(f.mapped, length)
	return make([]byte, length), nil
}

func (f *fakeMapper) Unmap(data []byte) error {
	if f.unmapErr != nil {
		return f.unmapErr
	}
	f.unmapped = append(f.unmapped, len(data))
	return nil
}

func TestMappingSize(t *testing.T) {
	tests := []struct {
		size int
		want int
		ok   bool
	}{
		{1, 40, true},
		{8, 40, true},
		{9, 48, true},
		{131041, 131072 + 8, true},
		{0, 0, false},
		{-5, 0, false},
	}
	for _, tt := range tests {
		got, ok := MappingSize(tt.size)
		assert.Equal(t, tt.ok, ok, "size %d", tt.size)
		assert.Equal(t, tt.want, got, "size %d", tt.size)
	}
}

func TestAllocWritesMappedHeaderWithRawSize(t *testing.T) {
	m := &fakeMapper{}
	tab := New(m, nil)

	id, err := tab.Alloc(131073)
	require.NoError(t, err)
	assert.Equal(t, []int{format.HeaderSize + 131080}, m.mapped)

	h, err := tab.Header(id)
	require.NoError(t, err)
	assert.Equal(t, format.Mapped, h.Status)
	assert.Equal(t, uint64(131073), h.Size, "mapped headers keep the unrounded size")
	assert.False(t, h.HasPrev())
	assert.False(t, h.HasNext())

	p, err := tab.Payload(id)
	require.NoError(t, err)
	assert.Len(t, p, 131073)
}

func TestReleaseUnmapsWholeMapping(t *testing.T) {
	m := &fakeMapper{}
	tab := New(m, nil)

	id, err := tab.Alloc(1000)
	require.NoError(t, err)
	require.NoError(t, tab.Release(id))
	assert.Equal(t, []int{format.HeaderSize + 1000}, m.unmapped)
	assert.Equal(t, 0, tab.Len())
	assert.False(t, tab.Has(id))

	require.ErrorIs(t, tab.Release(id), ErrUnknownID)
	_, err = tab.Payload(id)
	require.ErrorIs(t, err, ErrUnknownID)
}

func TestIDsAreNotReused(t *testing.T) {
	tab := New(&fakeMapper{}, nil)
	a, err := tab.Alloc(64)
	require.NoError(t, err)
	require.NoError(t, tab.Release(a))
	b, err := tab.Alloc(64)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.NotZero(t, a)
}

func TestStats(t *testing.T) {
	tab := New(&fakeMapper{}, nil)
	a, _ := tab.Alloc(100)
	b, _ := tab.Alloc(200)
	require.NoError(t, tab.Release(a))

	st := tab.Stats()
	assert.Equal(t, 2, st.Maps)
	assert.Equal(t, 1, st.Unmaps)
	assert.Equal(t, 1, st.Live)
	assert.Equal(t, int64(232), st.LiveBytes)
	assert.Equal(t, int64(136+232), st.PeakBytes)
	assert.Equal(t, int64(136+232), st.MappedTotal)

	infos := tab.Mappings()
	require.Len(t, infos, 1)
	assert.Equal(t, Info{ID: b, Size: 200, Mapped: 232}, infos[0])
}

func TestMapFailure(t *testing.T) {
	osErr := &pagemap.Error{Op: "mmap", Len: 40, Err: syscall.ENOMEM}
	tab := New(&fakeMapper{mapErr: osErr}, nil)

	_, err := tab.Alloc(8)
	require.Error(t, err)
	var perr *pagemap.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, syscall.ENOMEM, pagemap.Errno(err))
	assert.Equal(t, 0, tab.Len())
	assert.Equal(t, 1, tab.Stats().Failures)
}

func TestUnmapFailureKeepsMapping(t *testing.T) {
	m := &fakeMapper{}
	tab := New(m, nil)
	id, err := tab.Alloc(8)
	require.NoError(t, err)

	m.unmapErr = errors.New("unmap refused")
	require.Error(t, tab.Release(id))
	assert.True(t, tab.Has(id))
}

func TestBadSize(t *testing.T) {
	tab := New(&fakeMapper{}, nil)
	_, err := tab.Alloc(0)
	require.ErrorIs(t, err, ErrBadSize)
}

func TestCorruptHeaderDetected(t *testing.T) {
	tab := New(&fakeMapper{}, nil)
	id, err := tab.Alloc(64)
	require.NoError(t, err)
	format.PutU32(tab.live[id], format.HeaderStatusOffset, uint32(format.Allocated))

	_, err = tab.Payload(id)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestClose(t *testing.T) {
	m := &fakeMapper{}
	tab := New(m, nil)
	for range 3 {
		_, err := tab.Alloc(64)
		require.NoError(t, err)
	}
	require.NoError(t, tab.Close())
	assert.Len(t, m.unmapped, 3)
	assert.Equal(t, 0, tab.Len())
	require.NoError(t, tab.Close())

	_, err := tab.Alloc(8)
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, tab.Release(1), ErrClosed)
}

func TestAnonymousMapperRoundTrip(t *testing.T) {
	tab := New(pagemap.Anonymous{}, nil)
	t.Cleanup(func() { _ = tab.Close() })

	id, err := tab.Alloc(5000)
	require.NoError(t, err)
	p, err := tab.Payload(id)
	require.NoError(t, err)
	for i := range p {
		require.Zero(t, p[i])
		p[i] = byte(i)
	}
	for i := range p {
		require.Equal(t, byte(i), p[i])
	}
	require.NoError(t, tab.Release(id))
}
