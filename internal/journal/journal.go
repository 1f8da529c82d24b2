// Package journal implements the append-only write-ahead log: buffered
// appends, a background flusher/compaction-trigger goroutine, and the
// compact-then-atomic-rename protocol. Writes go through a buffered
// writer, and the flusher periodically pushes that buffer out to the
// kernel without fsyncing.
package journal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kvcached/kvcached/internal/kvlog"
	"go.uber.org/zap"
)

// Journal owns the on-disk log file, a write lock, and the background
// flusher. It knows nothing about shards or entries — compaction's per-
// shard dump is supplied by the caller as a DumpFunc so the shard-then-
// journal lock ordering stays entirely in the store's hands.
type Journal struct {
	mu   sync.Mutex // journal write lock (acquired after any shard lock)
	path string
	file *os.File
	w    *bufio.Writer

	compacting atomic.Bool

	backgroundFlush time.Duration
	compactionCheck time.Duration
	thresholdBytes  int64

	onCompactionDue func()

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Open creates the journal's parent directory if needed, opens (creating
// if absent) the journal file in append mode, and readies it for writes.
// It does not start the flusher or replay the log — callers that need
// recovery call Replay before Start.
func Open(path string, backgroundFlushMs, compactionCheckS int, thresholdBytes int64) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal: create dir %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}

	return &Journal{
		path:            path,
		file:            f,
		w:               bufio.NewWriter(f),
		backgroundFlush: time.Duration(backgroundFlushMs) * time.Millisecond,
		compactionCheck: time.Duration(compactionCheckS) * time.Second,
		thresholdBytes:  thresholdBytes,
		stopCh:          make(chan struct{}),
	}, nil
}

// Replay reads the journal line by line from the start and calls apply
// for every non-empty line; empty lines are skipped. It does not parse
// records itself, so apply is where malformed lines (such as a record cut
// short by a crash) must be skipped. Replay must run before Start,
// against the file's existing contents — it reads through its own
// read-only handle and does not disturb the append handle used afterward
// (append-mode writes always go to EOF).
func (j *Journal) Replay(apply func(line string)) error {
	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("journal: open for replay %s: %w", j.path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		apply(line)
	}
	return sc.Err()
}

// Start launches the background flusher goroutine. onCompactionDue is
// invoked (synchronously, from the flusher goroutine) whenever the on-disk
// journal size exceeds the configured compaction threshold; the caller is
// expected to call Compact from there.
func (j *Journal) Start(onCompactionDue func()) {
	j.onCompactionDue = onCompactionDue
	j.wg.Add(1)
	go j.runFlusher()
}

func (j *Journal) runFlusher() {
	defer j.wg.Done()

	flushTicker := time.NewTicker(j.backgroundFlush)
	defer flushTicker.Stop()

	elapsed := time.Duration(0)
	for {
		select {
		case <-j.stopCh:
			return
		case <-flushTicker.C:
			if !j.compacting.Load() {
				j.mu.Lock()
				if err := j.w.Flush(); err != nil {
					kvlog.Warn("journal: background flush failed", zap.Error(err))
				}
				j.mu.Unlock()
			}

			elapsed += j.backgroundFlush
			if elapsed >= j.compactionCheck {
				elapsed = 0
				if info, err := os.Stat(j.path); err == nil && info.Size() > j.thresholdBytes {
					if j.onCompactionDue != nil {
						j.onCompactionDue()
					}
				}
			}
		}
	}
}

// AppendLine writes one already-formatted record (no trailing newline
// expected — it is added here) under the journal write lock, without
// fsyncing; the background flusher pushes it to the kernel later.
func (j *Journal) AppendLine(line string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.w.WriteString(line); err != nil {
		return err
	}
	return j.w.WriteByte('\n')
}

// DumpFunc writes the current authoritative state as journal-format lines
// into w. It must not take the journal lock — Compact calls it before
// acquiring that lock, so the caller is free to take its own (shard)
// locks sequentially while the journal continues serving appends against
// the live file.
type DumpFunc func(w *bufio.Writer) error

// Compact runs the snapshot-then-atomic-rename protocol: set the
// compacting flag (so the flusher skips its own flush), dump current
// state to a temp file, then under the journal lock close
// the live handle, rename temp over the journal path, and reopen in
// append mode. On temp-open failure, it aborts with no state change; on
// rename failure, it leaves the old journal authoritative and reopens it.
func (j *Journal) Compact(dump DumpFunc) error {
	j.compacting.Store(true)
	defer j.compacting.Store(false)

	tmpPath := j.path + ".tmp"
	tmpFile, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		kvlog.Warn("journal: could not open temp file for compaction", zap.String("path", tmpPath), zap.Error(err))
		return fmt.Errorf("journal: open temp file: %w", err)
	}

	bw := bufio.NewWriter(tmpFile)
	dumpErr := dump(bw)
	if dumpErr == nil {
		dumpErr = bw.Flush()
	}
	closeErr := tmpFile.Close()
	if dumpErr != nil {
		kvlog.Warn("journal: compaction dump failed", zap.Error(dumpErr))
		return fmt.Errorf("journal: dump: %w", dumpErr)
	}
	if closeErr != nil {
		kvlog.Warn("journal: could not close temp file", zap.Error(closeErr))
		return fmt.Errorf("journal: close temp file: %w", closeErr)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.w.Flush(); err != nil {
		kvlog.Warn("journal: flush before compaction swap failed", zap.Error(err))
	}
	if err := j.file.Close(); err != nil {
		kvlog.Warn("journal: could not close live journal before rename", zap.Error(err))
	}

	if err := os.Rename(tmpPath, j.path); err != nil {
		kvlog.Warn("journal: rename failed during compaction, keeping old journal", zap.Error(err))
		f, reopenErr := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if reopenErr != nil {
			kvlog.Warn("journal: could not reopen journal after failed rename", zap.Error(reopenErr))
			return fmt.Errorf("journal: rename: %w (reopen also failed: %v)", err, reopenErr)
		}
		j.file = f
		j.w = bufio.NewWriter(f)
		return fmt.Errorf("journal: rename: %w", err)
	}

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		kvlog.Warn("journal: could not reopen journal after compaction", zap.Error(err))
		return fmt.Errorf("journal: reopen after compaction: %w", err)
	}
	j.file = f
	j.w = bufio.NewWriter(f)
	return nil
}

// Flush forces any buffered writes to the kernel, without fsyncing.
func (j *Journal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.w.Flush()
}

// Close stops the flusher, performs a final flush, and closes the file.
func (j *Journal) Close() error {
	close(j.stopCh)
	j.wg.Wait()

	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.w.Flush(); err != nil {
		kvlog.Warn("journal: final flush before close failed", zap.Error(err))
	}
	return j.file.Close()
}
