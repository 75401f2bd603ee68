package store

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmalewski/kartotherian/pkg/metrics"
)

type applyRecorder struct {
	groups [][]batchEntry
	err    error
}

func (r *applyRecorder) apply(_ context.Context, entries []batchEntry) error {
	if r.err != nil {
		return r.err
	}
	r.groups = append(r.groups, entries)
	return nil
}

func entry(zoom int, idx int64) batchEntry {
	return batchEntry{kind: entryUpsert, zoom: zoom, idx: idx, tile: []byte{1}}
}

func TestBatchDirectModeWithoutBegin(t *testing.T) {
	rec := &applyRecorder{}
	b := newBatchBuffer(10, rec.apply)

	require.NoError(t, b.submit(context.Background(), entry(1, 1)))
	require.NoError(t, b.submit(context.Background(), entry(1, 2)))

	assert.Len(t, rec.groups, 2, "without begin every submit applies immediately")
	assert.Empty(t, b.pending)
}

func TestBatchDirectModeWithoutMaxSize(t *testing.T) {
	rec := &applyRecorder{}
	b := newBatchBuffer(0, rec.apply)

	b.begin()
	require.NoError(t, b.submit(context.Background(), entry(1, 1)))

	assert.Len(t, rec.groups, 1, "no max batch size means buffering mode never buffers")
	require.NoError(t, b.end(context.Background()))
	assert.Len(t, rec.groups, 1)
}

func TestBatchBuffersUntilEnd(t *testing.T) {
	rec := &applyRecorder{}
	b := newBatchBuffer(10, rec.apply)

	b.begin()
	for i := int64(0); i < 5; i++ {
		require.NoError(t, b.submit(context.Background(), entry(2, i)))
	}
	assert.Empty(t, rec.groups)

	require.NoError(t, b.end(context.Background()))
	require.Len(t, rec.groups, 1)
	assert.Len(t, rec.groups[0], 5)

	for i, e := range rec.groups[0] {
		assert.Equal(t, int64(i), e.idx, "entries keep submission order")
	}
}

func TestBatchNestingCounter(t *testing.T) {
	rec := &applyRecorder{}
	b := newBatchBuffer(10, rec.apply)

	b.begin()
	b.begin()
	b.begin()
	require.NoError(t, b.submit(context.Background(), entry(1, 1)))

	require.NoError(t, b.end(context.Background()))
	require.NoError(t, b.end(context.Background()))
	assert.Empty(t, rec.groups, "only the 1->0 transition flushes")

	require.NoError(t, b.end(context.Background()))
	assert.Len(t, rec.groups, 1)

	err := b.end(context.Background())
	assert.ErrorIs(t, err, ErrBatchProtocol)
}

func TestBatchAutoFlushBoundary(t *testing.T) {
	rec := &applyRecorder{}
	const k = 4
	b := newBatchBuffer(k, rec.apply)

	b.begin()
	for i := int64(0); i < k; i++ {
		require.NoError(t, b.submit(context.Background(), entry(1, i)))
		assert.Empty(t, rec.groups, "no flush at or below the threshold")
	}

	// The (k+1)th submission pushes the sequence past the threshold.
	require.NoError(t, b.submit(context.Background(), entry(1, k)))
	require.Len(t, rec.groups, 1)
	assert.Len(t, rec.groups[0], k+1)
	assert.Empty(t, b.pending)

	require.NoError(t, b.end(context.Background()))
	assert.Len(t, rec.groups, 1, "nothing left to flush at end")
}

func TestBatchExplicitFlush(t *testing.T) {
	rec := &applyRecorder{}
	b := newBatchBuffer(10, rec.apply)

	b.begin()
	require.NoError(t, b.submit(context.Background(), entry(1, 1)))
	require.NoError(t, b.submit(context.Background(), entry(1, 2)))

	require.NoError(t, b.flush(context.Background()))
	require.Len(t, rec.groups, 1)
	assert.Len(t, rec.groups[0], 2)

	// Flushing again with nothing pending is a no-op, not an error.
	require.NoError(t, b.flush(context.Background()))
	assert.Len(t, rec.groups, 1)

	require.NoError(t, b.end(context.Background()))
	assert.Len(t, rec.groups, 1)
}

func TestBatchFlushCounter(t *testing.T) {
	rec := &applyRecorder{}
	const k = 2
	b := newBatchBuffer(k, rec.apply)

	before := testutil.ToFloat64(metrics.BatchFlushes)

	// Direct-mode submits are single writes, not batch flushes.
	require.NoError(t, b.submit(context.Background(), entry(1, 0)))
	assert.Equal(t, before, testutil.ToFloat64(metrics.BatchFlushes))

	b.begin()
	for i := int64(1); i <= k+1; i++ {
		require.NoError(t, b.submit(context.Background(), entry(1, i)))
	}
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.BatchFlushes), "auto-flush counts")

	require.NoError(t, b.submit(context.Background(), entry(1, 9)))
	require.NoError(t, b.flush(context.Background()))
	assert.Equal(t, before+2, testutil.ToFloat64(metrics.BatchFlushes), "explicit flush counts")

	// Empty flushes, including the one at session end, submit nothing.
	require.NoError(t, b.flush(context.Background()))
	require.NoError(t, b.end(context.Background()))
	assert.Equal(t, before+2, testutil.ToFloat64(metrics.BatchFlushes))
}

func TestBatchFlushFailureFailsWholeGroup(t *testing.T) {
	boom := errors.New("backend down")
	rec := &applyRecorder{err: boom}
	b := newBatchBuffer(10, rec.apply)

	b.begin()
	require.NoError(t, b.submit(context.Background(), entry(1, 1)))

	err := b.end(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, b.pending, "the failed group stays detached, not re-queued")
}
