package buffer

import "errors"

var (
	// ErrPoolExhausted is returned when every frame in an instance is
	// pinned and neither the free list nor the replacer can supply one.
	ErrPoolExhausted = errors.New("buffer: pool exhausted, every frame is pinned")
	// ErrPageNotResident is returned by operations that require a page to
	// already be in the pool.
	ErrPageNotResident = errors.New("buffer: page is not resident")
	// ErrPagePinned is returned when a delete is refused because the page
	// is still pinned.
	ErrPagePinned = errors.New("buffer: page is pinned")
)

// contract violation panics carry this prefix so they're easy to grep for
// in a crash log and distinguish from ordinary errors.
const contractViolation = "buffer: contract violation: "
