package broker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// BatchConfig controls batching thresholds for the trade feed.
type BatchConfig struct {
	Size    int
	Timeout time.Duration
}

type batchBuffer[T any] struct {
	cfg     BatchConfig
	mu      sync.Mutex
	items   []T
	timer   *time.Timer
	flushFn func(context.Context, []T) error
	logger  *logrus.Entry
	ctx     context.Context
}

func newBatchBuffer[T any](cfg BatchConfig, flushFn func(context.Context, []T) error, logger *logrus.Entry) *batchBuffer[T] {
	return &batchBuffer[T]{
		cfg:     cfg,
		flushFn: flushFn,
		logger:  logger,
	}
}

func (bb *batchBuffer[T]) setContext(ctx context.Context) {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	bb.ctx = ctx
}

func (bb *batchBuffer[T]) enqueue(item T) error {
	bb.mu.Lock()
	ctx := bb.ctx
	if ctx == nil {
		bb.mu.Unlock()
		return errors.New("batch buffer is not running")
	}
	if err := ctx.Err(); err != nil {
		bb.mu.Unlock()
		return err
	}
	bb.items = append(bb.items, item)
	var batch []T
	limit := bb.cfg.Size
	if limit <= 0 {
		limit = 1
	}
	if len(bb.items) >= limit {
		batch = bb.takeBatchLocked()
	} else if bb.timer == nil && bb.cfg.Timeout > 0 {
		bb.startTimerLocked()
	}
	bb.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	return bb.flushWithContext(ctx, batch)
}

func (bb *batchBuffer[T]) drain(ctx context.Context) error {
	bb.mu.Lock()
	batch := bb.takeBatchLocked()
	bb.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	return bb.flushWithContext(ctx, batch)
}

func (bb *batchBuffer[T]) takeBatchLocked() []T {
	if bb.timer != nil {
		bb.timer.Stop()
		bb.timer = nil
	}
	batch := bb.items
	bb.items = nil
	return batch
}

func (bb *batchBuffer[T]) startTimerLocked() {
	bb.timer = time.AfterFunc(bb.cfg.Timeout, func() {
		bb.mu.Lock()
		ctx := bb.ctx
		batch := bb.takeBatchLocked()
		bb.mu.Unlock()
		if ctx == nil || len(batch) == 0 {
			return
		}
		if err := bb.flushWithContext(ctx, batch); err != nil {
			bb.logger.WithError(err).Error("timed flush failed")
		}
	})
}

func (bb *batchBuffer[T]) flushWithContext(ctx context.Context, batch []T) error {
	if err := bb.flushFn(ctx, batch); err != nil {
		bb.logger.WithError(err).WithField("batch_size", len(batch)).Error("flush failed")
		return err
	}
	return nil
}
