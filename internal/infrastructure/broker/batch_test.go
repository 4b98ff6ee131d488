package broker

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type flushRecorder struct {
	mu      sync.Mutex
	batches [][]int
	err     error
}

func (r *flushRecorder) flush(ctx context.Context, batch []int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.batches = append(r.batches, batch)
	return nil
}

func (r *flushRecorder) snapshot() [][]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]int, len(r.batches))
	copy(out, r.batches)
	return out
}

func testEntry() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("component", "test")
}

func TestBatchBuffer_FlushOnSize(t *testing.T) {
	rec := &flushRecorder{}
	bb := newBatchBuffer[int](BatchConfig{Size: 3}, rec.flush, testEntry())
	bb.setContext(context.Background())

	require.NoError(t, bb.enqueue(1))
	require.NoError(t, bb.enqueue(2))
	require.Empty(t, rec.snapshot())

	require.NoError(t, bb.enqueue(3))
	batches := rec.snapshot()
	require.Len(t, batches, 1)
	require.Equal(t, []int{1, 2, 3}, batches[0])
}

func TestBatchBuffer_FlushOnTimeout(t *testing.T) {
	rec := &flushRecorder{}
	bb := newBatchBuffer[int](BatchConfig{Size: 100, Timeout: 20 * time.Millisecond}, rec.flush, testEntry())
	bb.setContext(context.Background())

	require.NoError(t, bb.enqueue(7))

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, []int{7}, rec.snapshot()[0])
}

func TestBatchBuffer_Drain(t *testing.T) {
	rec := &flushRecorder{}
	bb := newBatchBuffer[int](BatchConfig{Size: 100}, rec.flush, testEntry())
	bb.setContext(context.Background())

	require.NoError(t, bb.enqueue(1))
	require.NoError(t, bb.enqueue(2))
	require.NoError(t, bb.drain(context.Background()))

	batches := rec.snapshot()
	require.Len(t, batches, 1)
	require.Equal(t, []int{1, 2}, batches[0])

	// Draining an empty buffer is a no-op.
	require.NoError(t, bb.drain(context.Background()))
	require.Len(t, rec.snapshot(), 1)
}

func TestBatchBuffer_RejectsWhenNotRunning(t *testing.T) {
	rec := &flushRecorder{}
	bb := newBatchBuffer[int](BatchConfig{Size: 1}, rec.flush, testEntry())

	require.Error(t, bb.enqueue(1))

	ctx, cancel := context.WithCancel(context.Background())
	bb.setContext(ctx)
	cancel()
	require.ErrorIs(t, bb.enqueue(1), context.Canceled)
}

func TestBatchBuffer_PropagatesFlushError(t *testing.T) {
	wantErr := errors.New("broker unavailable")
	rec := &flushRecorder{err: wantErr}
	bb := newBatchBuffer[int](BatchConfig{Size: 1}, rec.flush, testEntry())
	bb.setContext(context.Background())

	require.ErrorIs(t, bb.enqueue(1), wantErr)
}
