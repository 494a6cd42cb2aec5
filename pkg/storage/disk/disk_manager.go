// Package disk implements the external collaborator the buffer pool core
// treats as opaque: a byte-addressable page store exposing ReadPage and
// WritePage. Three implementations share the DiskManager interface so a
// buffer pool instance can be pointed at a real file, a direct-I/O file, or
// an in-memory store without any change to buffer pool code.
package disk

import (
	"errors"
	"fmt"

	"bufferpool/pkg/storage/page"
)

// ErrChecksumMismatch is reported (never fatally — callers still get the
// bytes back) when a page's stored checksum does not match its contents.
var ErrChecksumMismatch = errors.New("disk: page checksum mismatch")

// ErrLocked is returned when a file-backed manager cannot acquire its
// exclusive lock because another process already holds the database file.
var ErrLocked = errors.New("disk: database file is locked by another process")

// DiskManager is the contract the buffer pool consumes. ReadPage and
// WritePage are blocking and assumed durable on return; AllocatePage mints
// page-ids from a manager-local monotonic counter. DeallocatePage is a
// notification hook only: it never reuses ids and never reclaims space.
type DiskManager interface {
	ReadPage(id page.ID, p *page.Page) error
	WritePage(id page.ID, p *page.Page) error
	AllocatePage() page.ID
	DeallocatePage(id page.ID)
	Sync() error
	Close() error
}

func checksumErr(id page.ID, got, want uint64) error {
	return fmt.Errorf("%w: page %d: stored %x, computed %x", ErrChecksumMismatch, id, want, got)
}
