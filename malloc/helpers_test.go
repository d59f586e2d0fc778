package malloc

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/internal/pagemap"
)

var errRefused = &pagemap.Error{Op: "brk", Len: 0, Err: syscall.ENOMEM}

func newTestAllocator(t testing.TB, cfg *Config) *Allocator {
	t.Helper()
	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func assertInvariants(t testing.TB, a *Allocator) {
	t.Helper()
	require.NoError(t, a.Verify())
}

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}

func requireFilled(t testing.TB, b []byte, v byte) {
	t.Helper()
	for i, got := range b {
		if got != v {
			require.Failf(t, "payload mismatch", "byte %d = %#x, want %#x", i, got, v)
		}
	}
}

// fatalRecorder collects fatal reports instead of panicking.
type fatalRecorder struct {
	errs []*FatalError
}

func (r *fatalRecorder) handle(e *FatalError) { r.errs = append(r.errs, e) }

func (r *fatalRecorder) last() *FatalError {
	if len(r.errs) == 0 {
		return nil
	}
	return r.errs[len(r.errs)-1]
}

// refusingRegion never grows.
type refusingRegion struct{}

func (refusingRegion) Bytes() []byte { return nil }

func (refusingRegion) Extend(int) (int, error) { return 0, errRefused }

// heapMapper serves mappings from the Go heap with switchable failures.
type heapMapper struct {
	mapErr   error
	unmapErr error
	live     int
}

func (m *heapMapper) Map(length int) ([]byte, error) {
	if m.mapErr != nil {
		return nil, m.mapErr
	}
	m.live++
	return make([]byte, length), nil
}

func (m *heapMapper) Unmap([]byte) error {
	if m.unmapErr != nil {
		return m.unmapErr
	}
	m.live--
	return nil
}
