package disk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bufferpool/pkg/storage/page"
)

func TestMemoryManagerReadWriteRoundTrip(t *testing.T) {
	dm := NewMemoryManager()

	id := dm.AllocatePage()
	p := &page.Page{}
	copy(p.Data[:], []byte("in memory, never on disk"))
	require.NoError(t, dm.WritePage(id, p))

	p2 := &page.Page{}
	require.NoError(t, dm.ReadPage(id, p2))
	assert.Equal(t, "in memory, never on disk", string(p2.Data[:len("in memory, never on disk")]))
}

func TestMemoryManagerReadUnwrittenPageIsZeroed(t *testing.T) {
	dm := NewMemoryManager()
	p := &page.Page{}
	require.NoError(t, dm.ReadPage(page.ID(3), p))
	assert.Equal(t, [page.Size]byte{}, p.Data)
}

func TestMemoryManagerSyncIsNoop(t *testing.T) {
	dm := NewMemoryManager()
	assert.NoError(t, dm.Sync())
	assert.NoError(t, dm.Close())
}
