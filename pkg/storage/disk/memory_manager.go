package disk

import (
	"sync"

	"github.com/dsnet/golib/memfile"

	"bufferpool/pkg/storage/page"
)

// MemoryManager is a DiskManager backed by an in-memory byte store. It is
// used by tests and by ephemeral pools that should never touch the
// filesystem. Sync is a no-op since there is nothing to fsync.
type MemoryManager struct {
	mu         sync.Mutex
	file       *memfile.File
	nextPageID page.ID
	size       int64
}

// NewMemoryManager returns a MemoryManager with an empty backing store.
func NewMemoryManager() *MemoryManager {
	return &MemoryManager{
		file: memfile.New(make([]byte, 0)),
	}
}

func (d *MemoryManager) Close() error { return nil }
func (d *MemoryManager) Sync() error  { return nil }

func (d *MemoryManager) ReadPage(id page.ID, p *page.Page) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	offset := int64(id) * int64(page.Size)
	if offset+int64(page.Size) > d.size {
		p.Data = [page.Size]byte{}
		return nil
	}

	_, err := d.file.ReadAt(p.Data[:], offset)
	return err
}

func (d *MemoryManager) WritePage(id page.ID, p *page.Page) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	offset := int64(id) * int64(page.Size)
	if _, err := d.file.WriteAt(p.Data[:], offset); err != nil {
		return err
	}
	if end := offset + int64(page.Size); end > d.size {
		d.size = end
	}
	return nil
}

func (d *MemoryManager) AllocatePage() page.ID {
	d.mu.Lock()
	defer d.mu.Unlock()
	ret := d.nextPageID
	d.nextPageID++
	return ret
}

func (d *MemoryManager) DeallocatePage(id page.ID) {}
