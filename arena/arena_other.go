//go:build !unix

package arena

// grow reallocates the backing slice when capacity runs out. Existing bytes
// are copied; the new tail is zeroed.
func (a *Arena) grow(newBrk int) error {
	if newBrk <= cap(a.region) {
		a.region = a.region[:cap(a.region)]
		return nil
	}
	newCap := max(2*cap(a.region), newBrk)
	newCap = min(newCap, a.limit)

	data := make([]byte, newCap)
	copy(data, a.region[:a.brk])
	a.region = data
	a.committed = newCap
	return nil
}

func (a *Arena) release() error { return nil }
