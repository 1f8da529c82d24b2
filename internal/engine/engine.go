// Package engine wires the metrics sink, journal, sharded store, write
// batcher, and command executor into the single long-lived object the
// rest of the process depends on. Construction and teardown are both
// explicit: Open builds the engine and starts its background
// goroutines, Close stops and joins them deterministically, instead of
// an opaque handle that starts a background thread from inside its own
// constructor and relies on its destructor to stop it.
package engine

import (
	"bufio"
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kvcached/kvcached/internal/batcher"
	"github.com/kvcached/kvcached/internal/config"
	"github.com/kvcached/kvcached/internal/executor"
	"github.com/kvcached/kvcached/internal/journal"
	"github.com/kvcached/kvcached/internal/kvlog"
	"github.com/kvcached/kvcached/internal/metrics"
	"github.com/kvcached/kvcached/internal/store"
)

// Engine owns every core collaborator plus their background goroutines.
type Engine struct {
	cfg      config.Config
	Registry *prometheus.Registry
	Metrics  *metrics.Sink
	Journal  *journal.Journal
	Store    *store.Store
	Batcher  *batcher.Batcher
	Executor *executor.Executor
}

// Open builds the engine per cfg: constructs the metrics sink, opens the
// journal, replays it into a fresh sharded store (bypassing the batcher
// and without re-journaling, since replay is just restoring state
// already on disk), then starts the journal's background flusher and
// the batcher's background timer. Components are constructed leaves
// first, since each later one depends on the ones before it.
func Open(cfg config.Config) (*Engine, error) {
	kvlog.Init(cfg.Log.Level)

	reg := prometheus.NewRegistry()
	sink := metrics.New(cfg.Metrics.SampleCap, reg)

	jrnl, err := journal.Open(
		cfg.Journal.Path,
		cfg.Journal.BackgroundFlushIntervalMs,
		cfg.Journal.CompactionCheckIntervalS,
		cfg.Journal.CompactionThresholdBytes,
	)
	if err != nil {
		return nil, fmt.Errorf("engine: open journal: %w", err)
	}

	st := store.New(cfg.Store.ShardCount, jrnl, sink)

	if err := jrnl.Replay(st.ApplyReplayLine); err != nil {
		kvlog.Warn("engine: journal replay encountered an error", zap.Error(err))
	}

	e := &Engine{cfg: cfg, Registry: reg, Metrics: sink, Journal: jrnl, Store: st}

	jrnl.Start(func() {
		kvlog.Info("journal exceeded compaction threshold, compacting")
		if err := e.Compact(); err != nil {
			kvlog.Warn("background-triggered compaction failed", zap.Error(err))
		}
	})

	b := batcher.New(st, sink, cfg.Batcher.SizeThreshold, cfg.Batcher.FlushIntervalMs)
	e.Batcher = b
	e.Executor = executor.New(st, b, e, sink)

	return e, nil
}

// Compact runs the journal compaction protocol, dumping the store's
// current state shard-by-shard. It satisfies the executor's
// compactorAPI.
func (e *Engine) Compact() error {
	return e.Journal.Compact(func(w *bufio.Writer) error {
		return e.Store.Dump(w)
	})
}

// Close performs an orderly shutdown: stop accepting new batcher work
// and drain it, then stop the journal flusher and perform a final
// flush, then close the journal. ctx bounds
// how long the drain/flush steps may take; on deadline it returns the
// context error but has already done as much cleanup as it could.
func (e *Engine) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.Batcher.Close()
		if err := e.Journal.Close(); err != nil {
			kvlog.Warn("engine: journal close failed", zap.Error(err))
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ShardCount reports the configured shard count, for diagnostics.
func (e *Engine) ShardCount() int { return e.cfg.Store.ShardCount }
