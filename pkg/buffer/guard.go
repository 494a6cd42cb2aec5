package buffer

import (
	"sync/atomic"

	"bufferpool/pkg/storage/page"
)

// Guard is a scoped handle around a pinned page. It exists because the
// raw Fetch/NewPage API requires the caller to remember to call
// UnpinPage exactly once — a classic leak surface. A Guard pins on
// construction and unpins on Release, and a second Release (or Unpin) is
// a no-op rather than a double-decrement, so `defer guard.Release()` is
// always safe even on paths that also release explicitly.
//
// Guard does not replace the raw API; it is built on top of it, and both
// remain public.
type Guard struct {
	bpm      *BufferPoolManager
	page     *page.Page
	id       page.ID
	dirty    atomic.Bool
	released atomic.Bool
}

func newGuard(bpm *BufferPoolManager, id page.ID, p *page.Page) *Guard {
	return &Guard{bpm: bpm, page: p, id: id}
}

// FetchGuarded fetches id and wraps it in a Guard. A nil, nil return means
// the page is not resident and the pool has no free frame to load it into
// (capacity exhausted); a non-nil error is a disk failure.
func (b *BufferPoolManager) FetchGuarded(id page.ID) (*Guard, error) {
	p, err := b.FetchPage(id)
	if p == nil {
		return nil, err
	}
	return newGuard(b, id, p), err
}

// NewPageGuarded allocates a fresh page and wraps it in a Guard. When every
// frame is pinned it returns (page.InvalidID, nil, nil), exactly as NewPage
// does; the id minted for that attempt is discarded and not reported.
func (b *BufferPoolManager) NewPageGuarded() (page.ID, *Guard, error) {
	id, p, err := b.NewPage()
	if p == nil {
		return id, nil, err
	}
	return id, newGuard(b, id, p), err
}

// ID returns the page-id this guard holds a pin on.
func (g *Guard) ID() page.ID { return g.id }

// Data returns the page's byte buffer for reading or writing in place.
func (g *Guard) Data() *[page.Size]byte { return &g.page.Data }

// MarkDirty flags the page as dirty without unpinning it. Redundant with
// passing dirty=true to Unpin, but useful when a caller mutates the page
// gradually across several helper calls before finally releasing it.
func (g *Guard) MarkDirty() {
	g.dirty.Store(true)
}

// Unpin ends the pin, ORing dirty into whatever MarkDirty already set. A
// second call, on this guard or via Release, is a no-op.
func (g *Guard) Unpin(dirty bool) {
	if dirty {
		g.dirty.Store(true)
	}
	g.release()
}

// Release ends the pin using whatever dirty state MarkDirty/Unpin have
// accumulated so far. Safe to call more than once.
func (g *Guard) Release() {
	g.release()
}

func (g *Guard) release() {
	if !g.released.CompareAndSwap(false, true) {
		return
	}
	g.bpm.UnpinPage(g.id, g.dirty.Load())
}
