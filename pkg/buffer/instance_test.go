package buffer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bufferpool/pkg/storage/disk"
	"bufferpool/pkg/storage/page"
	"bufferpool/pkg/wal"
)

func newTestPool(poolSize int) *BufferPoolManager {
	return NewStandaloneBufferPoolManager(poolSize, disk.NewMemoryManager(), wal.NoopLogManager{})
}

func TestNewPageFillsPoolThenFails(t *testing.T) {
	bpm := newTestPool(3)

	for i := 0; i < 3; i++ {
		id, p, err := bpm.NewPage()
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.NotEqual(t, page.InvalidID, id)
		assert.EqualValues(t, 1, p.PinCount())
	}

	id, p, err := bpm.NewPage()
	assert.Nil(t, p)
	assert.NoError(t, err)
	assert.Equal(t, page.InvalidID, id)
}

func TestUnpinningOneFrameAllowsEvictionToProceed(t *testing.T) {
	bpm := newTestPool(2)

	id0, _, _ := bpm.NewPage()
	id1, _, _ := bpm.NewPage()
	_ = id1

	assert.True(t, bpm.UnpinPage(id0, false))

	id2, p2, err := bpm.NewPage()
	require.NoError(t, err)
	require.NotNil(t, p2)
	assert.NotEqual(t, page.InvalidID, id2)
}

func TestFetchPageHitRePinsAndPreventsEviction(t *testing.T) {
	bpm := newTestPool(2)

	id0, _, _ := bpm.NewPage()
	id1, _, _ := bpm.NewPage()

	require.True(t, bpm.UnpinPage(id0, false))
	require.True(t, bpm.UnpinPage(id1, false))

	// Fetching id0 must re-pin it, not merely return the cached page.
	p0, err := bpm.FetchPage(id0)
	require.NoError(t, err)
	require.NotNil(t, p0)
	assert.EqualValues(t, 1, p0.PinCount())

	// With only one frame free (id1's), a third page must evict id1, not id0.
	id2, p2, err := bpm.NewPage()
	require.NoError(t, err)
	require.NotNil(t, p2)
	assert.NotEqual(t, page.InvalidID, id2)

	// id0 must still be resident because FetchPage re-pinned it.
	stats := bpm.Stats()
	assert.Equal(t, 2, stats.Resident)
	_, id0Resident := bpm.pageTable[id0]
	assert.True(t, id0Resident)
}

func TestUnpinBelowZeroReturnsFalseNotPanic(t *testing.T) {
	bpm := newTestPool(1)

	id, _, _ := bpm.NewPage()
	require.True(t, bpm.UnpinPage(id, false))
	assert.False(t, bpm.UnpinPage(id, false))
}

func TestUnpinNonResidentPagePanics(t *testing.T) {
	bpm := newTestPool(1)
	assert.Panics(t, func() {
		bpm.UnpinPage(page.ID(42), false)
	})
}

func TestDirtyFlagIsMonotonicUntilFlush(t *testing.T) {
	bpm := newTestPool(1)

	id, p, _ := bpm.NewPage()
	assert.False(t, p.IsDirty())

	assert.True(t, bpm.UnpinPage(id, true))
	assert.True(t, p.IsDirty())

	// Re-fetching and unpinning with isDirty=false must not clear it.
	p2, err := bpm.FetchPage(id)
	require.NoError(t, err)
	assert.True(t, bpm.UnpinPage(id, false))
	assert.True(t, p2.IsDirty())

	ok, err := bpm.FlushPage(id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, p2.IsDirty())
}

func TestDeletePageOfPinnedPageFails(t *testing.T) {
	bpm := newTestPool(1)
	id, _, _ := bpm.NewPage()
	assert.False(t, bpm.DeletePage(id))
}

func TestDeletePageOfUnpinnedPageFreesFrame(t *testing.T) {
	bpm := newTestPool(1)
	id, _, _ := bpm.NewPage()
	require.True(t, bpm.UnpinPage(id, false))
	assert.True(t, bpm.DeletePage(id))

	// The freed frame must be usable again.
	newID, p, err := bpm.NewPage()
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.NotEqual(t, page.InvalidID, newID)
}

func TestDeletePageOfNonResidentPageSucceeds(t *testing.T) {
	bpm := newTestPool(1)
	assert.True(t, bpm.DeletePage(page.ID(999)))
}

func TestFlushPageOfNonResidentPageReturnsFalse(t *testing.T) {
	bpm := newTestPool(1)
	ok, err := bpm.FlushPage(page.ID(999))
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestFlushInvalidPageIDPanics(t *testing.T) {
	bpm := newTestPool(1)
	assert.Panics(t, func() {
		bpm.FlushPage(page.InvalidID)
	})
}

func TestFlushAllPagesWritesEveryResidentFrameRegardlessOfDirty(t *testing.T) {
	dm := disk.NewMemoryManager()
	bpm := NewStandaloneBufferPoolManager(2, dm, wal.NoopLogManager{})

	id0, p0, _ := bpm.NewPage()
	copy(p0.Data[:], []byte("clean"))
	id1, p1, _ := bpm.NewPage()
	copy(p1.Data[:], []byte("dirty"))

	require.True(t, bpm.UnpinPage(id0, false))
	require.True(t, bpm.UnpinPage(id1, true))

	require.NoError(t, bpm.FlushAllPages())

	assert.False(t, p0.IsDirty())
	assert.False(t, p1.IsDirty())

	readBack := &page.Page{}
	require.NoError(t, dm.ReadPage(id0, readBack))
	assert.Equal(t, "clean", string(readBack.Data[:5]))
}

func TestConstructingWithZeroInstancesPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewBufferPoolManager(1, 0, 0, disk.NewMemoryManager(), wal.NoopLogManager{})
	})
}

func TestConstructingWithOutOfRangeInstanceIndexPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewBufferPoolManager(1, 2, 2, disk.NewMemoryManager(), wal.NoopLogManager{})
	})
}

func TestStridedAllocationStaysInInstanceLane(t *testing.T) {
	bpm := NewBufferPoolManager(4, 3, 1, disk.NewMemoryManager(), wal.NoopLogManager{})
	for i := 0; i < 4; i++ {
		id, _, err := bpm.NewPage()
		require.NoError(t, err)
		assert.EqualValues(t, 1, int64(id)%3)
	}
}

type failingLogManager struct{}

func (failingLogManager) Flush(lsn uint64) error { return errors.New("log flush failed") }
func (failingLogManager) AppendLSN() uint64       { return 0 }

func TestFlushPagePropagatesLogManagerError(t *testing.T) {
	bpm := NewStandaloneBufferPoolManager(1, disk.NewMemoryManager(), failingLogManager{})
	id, _, _ := bpm.NewPage()
	ok, err := bpm.FlushPage(id)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestEvictionOfDirtyVictimWritesBackBeforeRebinding(t *testing.T) {
	dm := disk.NewMemoryManager()
	bpm := NewStandaloneBufferPoolManager(1, dm, wal.NoopLogManager{})

	id0, p0, _ := bpm.NewPage()
	copy(p0.Data[:], []byte("evict me"))
	require.True(t, bpm.UnpinPage(id0, true))

	id1, p1, err := bpm.NewPage()
	require.NoError(t, err)
	require.NotNil(t, p1)
	assert.NotEqual(t, id0, id1)

	onDisk := &page.Page{}
	require.NoError(t, dm.ReadPage(id0, onDisk))
	assert.Equal(t, "evict me", string(onDisk.Data[:8]))
}
