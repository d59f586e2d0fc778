//go:build unix

package arena

import (
	"fmt"

	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/internal/pagemap"
)

// grow commits pages so that [0, newBrk) is accessible. The reservation is
// created on first use.
func (a *Arena) grow(newBrk int) error {
	if a.region == nil {
		reserved, err := pagemap.Reserve(format.AlignPage(a.limit, a.pageSize))
		if err != nil {
			return fmt.Errorf("arena: reserve %d bytes: %w", a.limit, err)
		}
		a.region = reserved
		a.log.Debug("arena: reserved", "bytes", len(reserved))
	}

	need := format.AlignPage(newBrk, a.pageSize)
	if need <= a.committed {
		return nil
	}
	if need > len(a.region) {
		need = len(a.region)
	}
	if err := pagemap.Commit(a.region[:need]); err != nil {
		return fmt.Errorf("arena: commit %d bytes: %w", need, err)
	}
	a.committed = need
	return nil
}

func (a *Arena) release() error {
	if a.region == nil {
		return nil
	}
	return pagemap.Unmap(a.region)
}
