// Package buffer implements the buffer pool core: a single-instance
// buffer pool manager, the LRU replacer it delegates eviction policy to,
// and a parallel pool that shards page ownership across instances.
package buffer

import (
	"fmt"
	"sync"

	"bufferpool/pkg/storage/disk"
	"bufferpool/pkg/storage/page"
	"bufferpool/pkg/wal"
)

// BufferPoolManager is the single-instance buffer pool: it owns a fixed
// array of frames, a page table, a free list, and mediates every
// page-to-frame binding through one mutex held end to end for each public
// operation. It is the "instance" in a parallel pool, and can also be
// used standalone (numInstances == 1).
type BufferPoolManager struct {
	mu sync.Mutex

	poolSize      int
	numInstances  uint32
	instanceIndex uint32
	nextPageID    page.ID

	diskManager disk.DiskManager
	logManager  wal.LogManager

	frames    []*page.Page
	replacer  *lruReplacer
	freeList  []frameID
	pageTable map[page.ID]frameID
}

// NewBufferPoolManager constructs a pool of poolSize frames belonging to
// instance instanceIndex of numInstances total instances sharing one
// page-id space by striding. Use NewStandaloneBufferPoolManager for the
// common case of a single, unsharded pool.
//
// Constructing with numInstances == 0 or instanceIndex >= numInstances is
// a caller contract violation and panics — these values come from the
// process wiring the pool together, not from untrusted input.
func NewBufferPoolManager(poolSize int, numInstances, instanceIndex uint32, diskManager disk.DiskManager, logManager wal.LogManager) *BufferPoolManager {
	if numInstances == 0 {
		panic(contractViolation + "numInstances must be positive")
	}
	if instanceIndex >= numInstances {
		panic(contractViolation + "instanceIndex must be less than numInstances")
	}
	if logManager == nil {
		logManager = wal.NoopLogManager{}
	}

	bpm := &BufferPoolManager{
		poolSize:      poolSize,
		numInstances:  numInstances,
		instanceIndex: instanceIndex,
		nextPageID:    page.ID(instanceIndex),
		diskManager:   diskManager,
		logManager:    logManager,
		frames:        make([]*page.Page, poolSize),
		replacer:      newLRUReplacer(poolSize),
		freeList:      make([]frameID, poolSize),
		pageTable:     make(map[page.ID]frameID, poolSize),
	}
	for i := 0; i < poolSize; i++ {
		bpm.frames[i] = &page.Page{}
		bpm.freeList[i] = frameID(i)
	}
	return bpm
}

// NewStandaloneBufferPoolManager constructs a single-instance pool that is
// not part of a parallel pool (numInstances = 1, instanceIndex = 0).
func NewStandaloneBufferPoolManager(poolSize int, diskManager disk.DiskManager, logManager wal.LogManager) *BufferPoolManager {
	return NewBufferPoolManager(poolSize, 1, 0, diskManager, logManager)
}

// GetPoolSize returns the number of frames this instance owns.
func (b *BufferPoolManager) GetPoolSize() int {
	return b.poolSize
}

// NewPage mints a fresh page-id, binds it to a frame, and returns both.
// If every frame is pinned, it returns (page.InvalidID, nil, nil) and the
// freshly minted id is discarded. A non-nil error indicates an eviction
// write-back failed; the new page is still usable in that case, but the
// frame it replaced left stale bytes on disk.
func (b *BufferPoolManager) NewPage() (page.ID, *page.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	newPageID := b.allocatePageLocked()

	fid, ok, err := b.acquireFrameLocked()
	if !ok {
		return page.InvalidID, nil, nil
	}

	p := b.frames[fid]
	p.Reset()
	p.SetID(newPageID)
	p.SetPinCount(1)
	p.SetDirty(false)

	b.pageTable[newPageID] = fid
	b.replacer.Pin(fid)

	if err != nil {
		return newPageID, p, fmt.Errorf("buffer: evict victim frame for page %d: %w", newPageID, err)
	}
	return newPageID, p, nil
}

// FetchPage returns the resident page for id, pinning it — on both a
// page-table hit and a miss. A hit that did not re-pin would leave a
// frame the caller believes it owns eligible for eviction; that was the
// source bug this core does not repeat (see DESIGN.md).
func (b *BufferPoolManager) FetchPage(id page.ID) (*page.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if fid, ok := b.pageTable[id]; ok {
		p := b.frames[fid]
		p.IncPinCount()
		b.replacer.Pin(fid)
		return p, nil
	}

	fid, ok, err := b.acquireFrameLocked()
	if !ok {
		return nil, err
	}

	p := b.frames[fid]
	p.Reset()
	p.SetID(id)
	p.SetPinCount(1)
	p.SetDirty(false)

	b.pageTable[id] = fid
	b.replacer.Pin(fid)

	if readErr := b.diskManager.ReadPage(id, p); readErr != nil {
		return nil, fmt.Errorf("buffer: read page %d: %w", id, readErr)
	}
	if err != nil {
		return p, fmt.Errorf("buffer: evict victim frame for page %d: %w", id, err)
	}
	return p, nil
}

// UnpinPage decrements id's pin count, ORing isDirty into the dirty flag.
// It returns true if the pin count was positive before the decrement
// (the unpin was meaningful) and false if it was already zero — the
// pin count is never allowed to go negative. Unpinning a page that isn't
// resident at all is a stronger caller contract violation and panics.
func (b *BufferPoolManager) UnpinPage(id page.ID, isDirty bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	fid, ok := b.pageTable[id]
	if !ok {
		panic(contractViolation + fmt.Sprintf("unpin of non-resident page %d", id))
	}

	p := b.frames[fid]
	if isDirty {
		p.SetDirty(true)
	}

	if p.PinCount() <= 0 {
		return false
	}

	p.DecPinCount()
	if p.PinCount() == 0 {
		b.replacer.Unpin(fid)
	}
	return true
}

// FlushPage writes id's bytes to disk and clears its dirty flag. It
// returns false if the page is not resident. The invalid-page sentinel is
// never a valid argument and panics rather than returning false, since
// passing it is a programming error, not a normal "not found" outcome.
func (b *BufferPoolManager) FlushPage(id page.ID) (bool, error) {
	if id == page.InvalidID {
		panic(contractViolation + "flush of invalid page id")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	fid, ok := b.pageTable[id]
	if !ok {
		return false, nil
	}

	p := b.frames[fid]
	if err := b.logManager.Flush(0); err != nil {
		return false, fmt.Errorf("buffer: flush page %d: log manager: %w", id, err)
	}
	if err := b.diskManager.WritePage(id, p); err != nil {
		return false, fmt.Errorf("buffer: flush page %d: %w", id, err)
	}
	p.SetDirty(false)
	return true, nil
}

// FlushAllPages writes every bound frame's bytes to disk, skipping frames
// whose page-id is the invalid sentinel (an unbound frame has nothing
// meaningful to write). Frames are written whether or not they are dirty,
// matching the underlying write-back semantics this core mirrors.
func (b *BufferPoolManager) FlushAllPages() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, p := range b.frames {
		if p.ID() == page.InvalidID {
			continue
		}
		if err := b.logManager.Flush(0); err != nil {
			return fmt.Errorf("buffer: flush all pages: log manager: %w", err)
		}
		if err := b.diskManager.WritePage(p.ID(), p); err != nil {
			return fmt.Errorf("buffer: flush all pages: write page %d: %w", p.ID(), err)
		}
		p.SetDirty(false)
	}
	return nil
}

// DeletePage deallocates id's page-id at the disk manager and, if the page
// is resident and unpinned, removes it from the pool and returns its
// frame to the free list. It returns false only when the page is resident
// and pinned. Deletion never writes the page's bytes to disk — it is a
// pure memory-and-bookkeeping operation.
func (b *BufferPoolManager) DeletePage(id page.ID) bool {
	b.diskManager.DeallocatePage(id)

	b.mu.Lock()
	defer b.mu.Unlock()

	fid, ok := b.pageTable[id]
	if !ok {
		return true
	}

	p := b.frames[fid]
	if p.PinCount() > 0 {
		return false
	}

	delete(b.pageTable, id)
	b.replacer.Pin(fid) // no-op if fid isn't tracked as evictable
	p.Reset()
	p.SetID(page.InvalidID)
	p.SetPinCount(0)
	p.SetDirty(false)
	b.freeList = append(b.freeList, fid)
	return true
}

// allocatePageLocked mints the next page-id owned by this instance. Ids
// are minted in strides of numInstances starting at instanceIndex, so
// every id this instance ever produces satisfies id mod numInstances ==
// instanceIndex, and ids are never reused even across DeletePage calls.
func (b *BufferPoolManager) allocatePageLocked() page.ID {
	id := b.nextPageID
	b.nextPageID += page.ID(b.numInstances)
	return id
}

// acquireFrameLocked returns a frame ready to be rebound: the front of the
// free list if non-empty, otherwise an LRU victim. ok is false only when
// neither source has anything to offer (every frame is pinned). A non-nil
// err alongside ok == true means the victim was dirty and its write-back
// failed; the frame is still handed back and already unbound from its old
// page-id, per this core's "rebind proceeds regardless" policy (§7).
func (b *BufferPoolManager) acquireFrameLocked() (frameID, bool, error) {
	if n := len(b.freeList); n > 0 {
		fid := b.freeList[0]
		b.freeList = b.freeList[1:]
		return fid, true, nil
	}

	fid, found := b.replacer.Victim()
	if !found {
		return 0, false, nil
	}

	p := b.frames[fid]
	var writeErr error
	if p.IsDirty() {
		if err := b.logManager.Flush(0); err != nil {
			writeErr = err
		} else if err := b.diskManager.WritePage(p.ID(), p); err != nil {
			writeErr = err
		}
	}
	delete(b.pageTable, p.ID())
	return fid, true, writeErr
}
