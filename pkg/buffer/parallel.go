package buffer

import (
	"sync"

	"bufferpool/pkg/storage/disk"
	"bufferpool/pkg/storage/page"
	"bufferpool/pkg/wal"
)

// ParallelBufferPoolManager shards page ownership across N single
// instances by page_id mod N, reducing latch contention versus one big
// pool guarded by one mutex. It holds exactly one mutex of its own,
// guarding only the round-robin cursor used by NewPage; every other
// operation forwards straight to the owning instance with no extra
// locking here.
type ParallelBufferPoolManager struct {
	mu            sync.Mutex
	instances     []*BufferPoolManager
	startingIndex uint32
	poolSize      int
}

// NewParallelBufferPoolManager constructs numInstances independent
// BufferPoolManagers, each owning poolSizePerInstance frames and its own
// slice of the page-id space.
func NewParallelBufferPoolManager(numInstances uint32, poolSizePerInstance int, diskManager disk.DiskManager, logManager wal.LogManager) *ParallelBufferPoolManager {
	if numInstances == 0 {
		panic(contractViolation + "numInstances must be positive")
	}

	instances := make([]*BufferPoolManager, numInstances)
	for i := uint32(0); i < numInstances; i++ {
		instances[i] = NewBufferPoolManager(poolSizePerInstance, numInstances, i, diskManager, logManager)
	}

	return &ParallelBufferPoolManager{
		instances: instances,
		poolSize:  poolSizePerInstance,
	}
}

// GetPoolSize returns the total frame count across every instance.
func (p *ParallelBufferPoolManager) GetPoolSize() int {
	return len(p.instances) * p.poolSize
}

func (p *ParallelBufferPoolManager) instanceFor(id page.ID) *BufferPoolManager {
	n := uint32(len(p.instances))
	return p.instances[uint32(id)%n]
}

// FetchPage routes to the instance owning id.
func (p *ParallelBufferPoolManager) FetchPage(id page.ID) (*page.Page, error) {
	return p.instanceFor(id).FetchPage(id)
}

// UnpinPage routes to the instance owning id.
func (p *ParallelBufferPoolManager) UnpinPage(id page.ID, isDirty bool) bool {
	return p.instanceFor(id).UnpinPage(id, isDirty)
}

// FlushPage routes to the instance owning id.
func (p *ParallelBufferPoolManager) FlushPage(id page.ID) (bool, error) {
	return p.instanceFor(id).FlushPage(id)
}

// DeletePage routes to the instance owning id.
func (p *ParallelBufferPoolManager) DeletePage(id page.ID) bool {
	return p.instanceFor(id).DeletePage(id)
}

// NewPage tries each instance in round-robin order starting from the
// shared cursor, returning the first success. The cursor advances on
// every attempt, not just on success, so repeated calls under pressure
// still spread load evenly instead of always retrying the same instance
// first.
func (p *ParallelBufferPoolManager) NewPage() (page.ID, *page.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := uint32(len(p.instances))
	var lastErr error
	for i := uint32(0); i < n; i++ {
		inst := p.instances[p.startingIndex]
		id, pg, err := inst.NewPage()
		p.startingIndex = (p.startingIndex + 1) % n
		if pg != nil {
			return id, pg, err
		}
		if err != nil {
			lastErr = err
		}
	}
	return page.InvalidID, nil, lastErr
}

// FlushAllPages flushes every instance in order.
func (p *ParallelBufferPoolManager) FlushAllPages() error {
	for _, inst := range p.instances {
		if err := inst.FlushAllPages(); err != nil {
			return err
		}
	}
	return nil
}

// Audit takes a read-only snapshot of every instance's stats, for admin
// tooling and tests. It never mutates pool state and is never on the hot
// path of a page operation.
func (p *ParallelBufferPoolManager) Audit() []PoolStats {
	stats := make([]PoolStats, len(p.instances))
	for i, inst := range p.instances {
		stats[i] = inst.Stats()
	}
	return stats
}
