package buffer

import (
	"container/list"
	"sync"
)

// frameID names a slot in an instance's frame array. It is internal to
// this package and never exposed to callers of BufferPoolManager.
type frameID int

// lruReplacer tracks the set of frames that are currently evictable and
// imposes an LRU ordering among them. It knows nothing about pages or
// disk — it only ever sees frame-ids. Every public method acquires mu
// exactly once; none of them call each other, so there is no re-entrant
// locking path to get wrong.
type lruReplacer struct {
	mu       sync.Mutex
	capacity int
	order    *list.List               // front = most recently unpinned, back = least recently unpinned
	index    map[frameID]*list.Element // frameID -> node in order, for O(1) removal
}

func newLRUReplacer(capacity int) *lruReplacer {
	return &lruReplacer{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[frameID]*list.Element, capacity),
	}
}

// Victim removes and returns the least-recently-unpinned frame. found is
// false when the replacer is empty.
func (r *lruReplacer) Victim() (id frameID, found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	back := r.order.Back()
	if back == nil {
		return 0, false
	}
	id = back.Value.(frameID)
	r.order.Remove(back)
	delete(r.index, id)
	return id, true
}

// Pin removes id from the evictable set if present; a no-op if it isn't.
// Called when a frame becomes pinned.
func (r *lruReplacer) Pin(id frameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if elem, ok := r.index[id]; ok {
		r.order.Remove(elem)
		delete(r.index, id)
	}
}

// Unpin inserts id at the most-recently-used end if not already present.
// Re-unpinning a frame that is already tracked is a no-op — it does NOT
// refresh the frame's position. This is a deliberate policy choice, not
// an oversight: it keeps eviction order reproducible across repeated
// unpins of the same frame.
func (r *lruReplacer) Unpin(id frameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[id]; ok {
		return
	}
	elem := r.order.PushFront(id)
	r.index[id] = elem
}

// Size returns the number of frames currently tracked as evictable.
func (r *lruReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}
