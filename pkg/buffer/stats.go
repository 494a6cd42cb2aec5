package buffer

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dustin/go-humanize"

	"bufferpool/pkg/storage/page"
)

// PoolStats is a point-in-time snapshot of one instance's frame
// occupancy, taken under its mutex so every field reflects the same
// linearization point. DirtyPages is a set rather than a parallel slice
// so callers doing set algebra against the page table (tests, audit
// tooling) don't have to build their own index.
type PoolStats struct {
	PoolSize   int
	Resident   int
	Pinned     int
	Dirty      int
	Free       int
	DirtyPages mapset.Set[page.ID]
}

// String renders a human-readable summary, sizing the pool in bytes
// rather than frame counts so an operator doesn't have to do the
// multiplication by page.Size themselves.
func (s PoolStats) String() string {
	return fmt.Sprintf(
		"pool=%s resident=%d pinned=%d dirty=%d free=%d",
		humanize.Bytes(uint64(s.PoolSize)*uint64(page.Size)),
		s.Resident, s.Pinned, s.Dirty, s.Free,
	)
}

// Stats takes a consistent snapshot of this instance's frame occupancy.
// It never mutates anything and is safe to call from another goroutine
// while the pool is in active use, at the cost of briefly holding the
// same mutex every other public operation holds.
func (b *BufferPoolManager) Stats() PoolStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	dirty := mapset.NewThreadUnsafeSet[page.ID]()
	resident, pinned := 0, 0
	for _, p := range b.frames {
		if p.ID() == page.InvalidID {
			continue
		}
		resident++
		if p.PinCount() > 0 {
			pinned++
		}
		if p.IsDirty() {
			dirty.Add(p.ID())
		}
	}

	return PoolStats{
		PoolSize:   b.poolSize,
		Resident:   resident,
		Pinned:     pinned,
		Dirty:      dirty.Cardinality(),
		Free:       len(b.freeList),
		DirtyPages: dirty,
	}
}
