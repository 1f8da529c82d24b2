// Package batcher implements the write-batching layer: SET/DEL commands
// from many connections are buffered and drained into the store on a
// size or time trigger, acknowledging the client immediately on
// enqueue. Flushing swaps the buffer under the lock and applies the
// swapped-out batch afterward, so the store is never written to while
// the buffer lock is held.
package batcher

import (
	"sync"
	"time"

	"github.com/kvcached/kvcached/internal/kvlog"
	"github.com/kvcached/kvcached/internal/metrics"
	"github.com/kvcached/kvcached/internal/protocol"
	"go.uber.org/zap"
)

// target is the minimal surface the batcher drains into — satisfied by
// *store.Store, and small enough to fake in tests.
type target interface {
	Apply(cmd protocol.Command) error
}

type Batcher struct {
	mu  sync.Mutex
	buf []protocol.Command

	// flushMu serializes whole flushes (swap and apply), so a flush that
	// finds the buffer empty still waits for one already in progress.
	flushMu sync.Mutex

	target target
	sink   *metrics.Sink

	sizeThreshold int
	flushInterval time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Batcher bound to target and starts its background
// timer goroutine immediately.
func New(target target, sink *metrics.Sink, sizeThreshold int, flushIntervalMs int) *Batcher {
	b := &Batcher{
		target:        target,
		sink:          sink,
		sizeThreshold: sizeThreshold,
		flushInterval: time.Duration(flushIntervalMs) * time.Millisecond,
		stopCh:        make(chan struct{}),
	}
	b.wg.Add(1)
	go b.runTimer()
	return b
}

// Add enqueues a write command. If the buffer reaches the size
// threshold the flush runs synchronously on the caller's goroutine.
func (b *Batcher) Add(cmd protocol.Command) {
	b.mu.Lock()
	b.buf = append(b.buf, cmd)
	trigger := len(b.buf) >= b.sizeThreshold
	b.mu.Unlock()

	if trigger {
		b.flush()
	}
}

// Drain forces an immediate flush and blocks until it completes. It
// shares the exact flush path the size/time triggers use, so there is
// no second code path to keep in sync.
func (b *Batcher) Drain() {
	b.flush()
}

func (b *Batcher) flush() {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	if len(b.buf) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.buf
	b.buf = nil
	b.mu.Unlock()

	b.sink.RecordBatch(len(batch))
	for _, cmd := range batch {
		if err := b.target.Apply(cmd); err != nil {
			kvlog.Warn("batcher: applying buffered write failed", zap.Error(err))
		}
	}
}

func (b *Batcher) runTimer() {
	defer b.wg.Done()
	t := time.NewTicker(b.flushInterval)
	defer t.Stop()
	for {
		select {
		case <-b.stopCh:
			return
		case <-t.C:
			b.flush()
		}
	}
}

// Close stops the timer goroutine and performs a final drain, so no
// buffered write is lost on shutdown.
func (b *Batcher) Close() {
	close(b.stopCh)
	b.wg.Wait()
	b.flush()
}
