// Package wal defines the log-manager hook the buffer pool core treats as
// opaque: a reserved call made before a dirty page is written back. The
// core never sequences log records itself and never inspects what Flush
// does; implementations are free to be a no-op, an in-memory watermark, or
// (outside this package's scope) a real write-ahead log.
package wal

import "sync/atomic"

// LogManager is the contract the buffer pool consumes. Flush is invoked
// once per page write-back, whether from an explicit FlushPage call, a
// FlushAllPages sweep, or an eviction's write-back of a dirty victim.
type LogManager interface {
	// Flush is called with the LSN the caller believes protects the page
	// about to be written. The buffer pool core does not track page LSNs
	// and always passes 0. Implementations that don't track LSNs ignore
	// the argument entirely.
	Flush(lsn uint64) error
	// AppendLSN returns a new, monotonically increasing sequence number a
	// caller can stamp a page modification with before marking it dirty.
	AppendLSN() uint64
}

// NoopLogManager satisfies the LogManager contract with no behavior. It is
// the default when no write-ahead log is wired up.
type NoopLogManager struct{}

func (NoopLogManager) Flush(lsn uint64) error { return nil }
func (NoopLogManager) AppendLSN() uint64      { return 0 }

// SequenceLogManager tracks a monotonic flushed-LSN watermark in memory.
// It demonstrates the "don't write back a page whose protecting log
// record isn't durable yet" discipline without implementing an actual
// write-ahead log — building one is out of scope for this package.
// Flush always succeeds; gating flushes on the watermark, if a caller
// wants that, is the caller's decision, not this type's.
type SequenceLogManager struct {
	nextLSN    atomic.Uint64
	flushedLSN atomic.Uint64
}

// NewSequenceLogManager returns a SequenceLogManager with both counters at
// zero.
func NewSequenceLogManager() *SequenceLogManager {
	return &SequenceLogManager{}
}

// AppendLSN hands out the next sequence number.
func (m *SequenceLogManager) AppendLSN() uint64 {
	return m.nextLSN.Add(1)
}

// Flush advances the flushed-LSN watermark to lsn if lsn is larger than
// the current watermark, then always returns nil.
func (m *SequenceLogManager) Flush(lsn uint64) error {
	for {
		cur := m.flushedLSN.Load()
		if lsn <= cur {
			return nil
		}
		if m.flushedLSN.CompareAndSwap(cur, lsn) {
			return nil
		}
	}
}

// FlushedLSN reports the current watermark, useful for tests and for
// callers that want to check durability before evicting a page themselves.
func (m *SequenceLogManager) FlushedLSN() uint64 {
	return m.flushedLSN.Load()
}
