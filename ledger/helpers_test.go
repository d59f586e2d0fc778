package ledger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/internal/format"
)

var errNoMemory = errors.New("test region: out of memory")

// memRegion is a heap-slice Region with an optional limit and failure hook.
// Growth reallocates, so the ledger must never hold on to an old slice.
type memRegion struct {
	data    []byte
	limit   int
	failErr error
	extends []int
}

func (m *memRegion) Bytes() []byte { return m.data }

func (m *memRegion) Extend(delta int) (int, error) {
	if m.failErr != nil {
		return 0, m.failErr
	}
	if m.limit > 0 && len(m.data)+delta > m.limit {
		return 0, errNoMemory
	}
	base := len(m.data)
	grown := make([]byte, base+delta)
	copy(grown, m.data)
	m.data = grown
	m.extends = append(m.extends, delta)
	return base, nil
}

func newTestLedger(t testing.TB, initial int) (*Ledger, *memRegion) {
	t.Helper()
	r := &memRegion{}
	return New(r, &Config{InitialSize: initial}), r
}

// mustFind allocates and checks the ledger afterwards.
func mustFind(t testing.TB, l *Ledger, size int) int {
	t.Helper()
	off, err := l.Find(size)
	require.NoError(t, err)
	assertInvariants(t, l)
	return off
}

func mustRelease(t testing.TB, l *Ledger, off int) {
	t.Helper()
	require.NoError(t, l.Release(off))
	assertInvariants(t, l)
}

func assertInvariants(t testing.TB, l *Ledger) {
	t.Helper()
	require.NoError(t, l.Verify())
}

func blockAt(t testing.TB, l *Ledger, off int) format.Header {
	t.Helper()
	h, err := l.Header(off)
	require.NoError(t, err)
	return h
}
