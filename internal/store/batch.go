package store

import (
	"context"

	"github.com/mmalewski/kartotherian/pkg/metrics"
)

type entryKind int

const (
	entryUpsert entryKind = iota
	entryDelete
)

// batchEntry is one pending write or delete captured while buffering mode is
// active. Entries keep their submission order and are never retried
// individually; a failed flush fails the whole detached group.
type batchEntry struct {
	kind entryKind
	zoom int
	idx  int64
	tile []byte
}

// batchBuffer accumulates pending entries under a nested begin/end counter.
//
// The buffer does no locking of its own: concurrent batch sessions on one
// store interleave arbitrarily, and callers needing isolation must serialize
// externally or use separate store instances.
type batchBuffer struct {
	depth   int
	maxSize int
	pending []batchEntry

	// apply submits one detached group to the backend.
	apply func(context.Context, []batchEntry) error
}

func newBatchBuffer(maxSize int, apply func(context.Context, []batchEntry) error) *batchBuffer {
	return &batchBuffer{
		maxSize: maxSize,
		apply:   apply,
	}
}

// begin increments the nesting counter. It always succeeds.
func (b *batchBuffer) begin() {
	b.depth++
}

// end decrements the nesting counter and flushes when it reaches zero.
// Calling end with the counter already at zero is a protocol violation.
func (b *batchBuffer) end(ctx context.Context) error {
	if b.depth == 0 {
		return ErrBatchProtocol
	}
	b.depth--
	if b.depth == 0 {
		return b.flush(ctx)
	}
	return nil
}

// submit either applies the entry immediately (direct mode: no active begin,
// or no maximum batch size configured) or appends it to the pending sequence,
// flushing once the sequence grows past maxSize.
func (b *batchBuffer) submit(ctx context.Context, e batchEntry) error {
	if b.depth == 0 || b.maxSize <= 0 {
		return b.apply(ctx, []batchEntry{e})
	}

	b.pending = append(b.pending, e)
	if len(b.pending) > b.maxSize {
		return b.flush(ctx)
	}
	return nil
}

// flush detaches the current pending sequence and submits it as one group.
// The detach happens before the round trip so entries submitted while a flush
// is in flight land in a fresh sequence, neither lost nor sent twice.
// An empty pending sequence is a no-op, not an error.
func (b *batchBuffer) flush(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}
	detached := b.pending
	b.pending = nil
	metrics.BatchFlushes.Inc()
	return b.apply(ctx, detached)
}
