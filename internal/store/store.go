// Package store implements the sharded key-value map: an N-way
// partitioned map with TTL eviction on read, each partition guarded by
// its own mutex so unrelated keys never contend. Shard selection uses a
// process-local FNV-1a hash of the key modulo N — deterministic within a
// run, never persisted, so shard membership is free to reshuffle across
// restarts.
package store

import (
	"bufio"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/kvcached/kvcached/internal/journal"
	"github.com/kvcached/kvcached/internal/metrics"
	"github.com/kvcached/kvcached/internal/protocol"
)

// Store is the sharded map. It holds a reference to the journal (writes
// append there after the shard mutation, so a write is never durable
// before it is visible to readers) and to the metrics sink (reads record
// hit/miss/latency inline from Get/MGet).
type Store struct {
	shards []*shard
	n      uint64
	jrnl   *journal.Journal
	sink   *metrics.Sink
	nowMs  func() int64
}

// New builds a Store with n shards. jrnl may be nil for journal-less unit
// tests. The clock (nowMs) is the wall clock; in-package tests replace the
// field directly.
func New(n int, jrnl *journal.Journal, sink *metrics.Sink) *Store {
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = newShard()
	}
	return &Store{
		shards: shards,
		n:      uint64(n),
		jrnl:   jrnl,
		sink:   sink,
		nowMs:  func() int64 { return time.Now().UnixMilli() },
	}
}

func (s *Store) shardFor(key string) *shard {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum64()%s.n]
}

// Set computes the shard, inserts or overwrites the entry under the
// shard lock, releases it, then journals the write. Lock order is
// strictly shard-then-journal and the shard lock is released before the
// journal lock is taken, so a reader may observe a value slightly before
// the journal records it, and the journal writer is never blocked
// waiting on an unrelated shard.
func (s *Store) Set(key, value string, ttlSeconds int) error {
	now := s.nowMs()
	var expiry int64
	if ttlSeconds > 0 {
		expiry = now + int64(ttlSeconds)*1000
	}

	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.data[key] = entry{value: value, expiryAtMs: expiry}
	sh.mu.Unlock()

	if s.jrnl == nil {
		return nil
	}
	return s.jrnl.AppendLine(formatSet(key, value, expiry))
}

// Get looks up key, evicting it in place if found but expired (lazy
// eviction, no background sweeper). Hit/miss counters and one latency
// sample are recorded per call.
func (s *Store) Get(key string) (string, bool) {
	start := time.Now()
	s.sink.IncRequests()

	sh := s.shardFor(key)
	sh.mu.Lock()
	e, ok := sh.data[key]
	if ok && e.expired(s.nowMs()) {
		delete(sh.data, key)
		ok = false
	}
	sh.mu.Unlock()

	if ok {
		s.sink.IncHits()
	} else {
		s.sink.IncMisses()
	}
	s.sink.RecordLatency(time.Since(start).Microseconds())

	if !ok {
		return "", false
	}
	return e.value, true
}

// Del removes key and journals a DEL record only if the key existed —
// journaling a delete for a key that was never there would waste space
// and replay would be a no-op anyway.
func (s *Store) Del(key string) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	_, existed := sh.data[key]
	delete(sh.data, key)
	sh.mu.Unlock()

	if !existed || s.jrnl == nil {
		return nil
	}
	return s.jrnl.AppendLine("DEL " + key)
}

// MGet preserves input order in the output. Keys are grouped by shard in
// the order each shard first appears, so each shard's lock is acquired
// exactly once; one latency sample covers the whole call, but each key's
// hit or miss is still counted individually, for consistency with GET's
// per-key accounting.
func (s *Store) MGet(keys []string) []protocol.OptValue {
	start := time.Now()
	s.sink.IncRequests()

	results := make([]protocol.OptValue, len(keys))

	type group struct {
		sh      *shard
		indices []int
	}
	order := make([]*shard, 0, len(keys))
	groups := make(map[*shard]*group)

	for i, k := range keys {
		sh := s.shardFor(k)
		g, ok := groups[sh]
		if !ok {
			g = &group{sh: sh}
			groups[sh] = g
			order = append(order, sh)
		}
		g.indices = append(g.indices, i)
	}

	now := s.nowMs()
	for _, sh := range order {
		g := groups[sh]
		sh.mu.Lock()
		for _, idx := range g.indices {
			key := keys[idx]
			e, ok := sh.data[key]
			if ok && e.expired(now) {
				delete(sh.data, key)
				ok = false
			}
			if ok {
				results[idx] = protocol.OptValue{Value: e.value, Ok: true}
				s.sink.IncHits()
			} else {
				s.sink.IncMisses()
			}
		}
		sh.mu.Unlock()
	}

	s.sink.RecordLatency(time.Since(start).Microseconds())
	return results
}

// Apply dispatches a parsed write command (SET or DEL) to the matching
// method; it is the batcher's drain target.
func (s *Store) Apply(cmd protocol.Command) error {
	switch cmd.Kind {
	case protocol.KindSet:
		return s.Set(cmd.Key, cmd.Value, cmd.TTLSeconds)
	case protocol.KindDel:
		return s.Del(cmd.Key)
	default:
		return fmt.Errorf("store: Apply called with non-write command kind %d", cmd.Kind)
	}
}

// ApplyReplayLine applies one already-read journal line directly to the
// map, bypassing the batcher and without re-journaling — used during
// startup recovery.
func (s *Store) ApplyReplayLine(line string) {
	key, value, expiryAtMs, isDel, ok := parseJournalLine(line, s.nowMs())
	if !ok {
		return
	}
	sh := s.shardFor(key)
	sh.mu.Lock()
	if isDel {
		delete(sh.data, key)
	} else {
		sh.data[key] = entry{value: value, expiryAtMs: expiryAtMs}
	}
	sh.mu.Unlock()
}

// Dump writes the current authoritative state as journal-format lines,
// shard by shard, acquiring one shard lock at a time and releasing it
// before moving to the next — so compaction never blocks more than one
// shard's writers concurrently. TTL entries are re-journaled with their
// absolute expiry instant preserved unchanged, so a restart after
// compaction can't silently extend a TTL by the time compaction happened
// to run; expired entries are skipped rather than carried forward.
func (s *Store) Dump(w *bufio.Writer) error {
	now := s.nowMs()
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, e := range sh.data {
			if e.expired(now) {
				continue
			}
			if _, err := w.WriteString(formatSet(key, e.value, e.expiryAtMs)); err != nil {
				sh.mu.Unlock()
				return err
			}
			if err := w.WriteByte('\n'); err != nil {
				sh.mu.Unlock()
				return err
			}
		}
		sh.mu.Unlock()
	}
	return nil
}

// formatSet renders a SET journal record. A non-zero expiryAtMs is
// written as an absolute-millisecond EXAT clause (journal-internal only,
// never accepted from clients) so replay never silently extends a TTL by
// the duration of the downtime between the write and the restart.
func formatSet(key, value string, expiryAtMs int64) string {
	if expiryAtMs == 0 {
		return "SET " + key + " " + value
	}
	return "SET " + key + " " + value + " EXAT " + strconv.FormatInt(expiryAtMs, 10)
}

// parseJournalLine parses one on-disk record: "SET k v", "SET k v EXAT
// <ms>", "SET k v EX <secs>" (legacy relative form, recomputed against
// nowMs), or "DEL k". Malformed lines return ok=false so the caller skips
// them, tolerating a crash mid-write of the final record.
func parseJournalLine(line string, nowMs int64) (key, value string, expiryAtMs int64, isDel bool, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", "", 0, false, false
	}

	switch strings.ToUpper(fields[0]) {
	case "DEL":
		if len(fields) != 2 {
			return "", "", 0, false, false
		}
		return fields[1], "", 0, true, true

	case "SET":
		if len(fields) < 3 {
			return "", "", 0, false, false
		}
		key = fields[1]

		rest := line
		for i := 0; i < 2; i++ {
			idx := strings.IndexAny(rest, " \t")
			if idx < 0 {
				return "", "", 0, false, false
			}
			rest = strings.TrimLeft(rest[idx+1:], " \t")
		}
		value = rest

		if n := len(fields); n >= 4 {
			clause := strings.ToUpper(fields[n-2])
			switch clause {
			case "EXAT":
				if ms, err := strconv.ParseInt(fields[n-1], 10, 64); err == nil {
					expiryAtMs = ms
					value = trimClauseSuffix(value, fields[n-2], fields[n-1])
				}
			case "EX", "TTL":
				if secs, err := strconv.Atoi(fields[n-1]); err == nil {
					expiryAtMs = nowMs + int64(secs)*1000
					value = trimClauseSuffix(value, fields[n-2], fields[n-1])
				}
			}
		}
		return key, value, expiryAtMs, false, true

	default:
		return "", "", 0, false, false
	}
}

func trimClauseSuffix(value, clause, arg string) string {
	suffix := clause + " " + arg
	if strings.HasSuffix(value, suffix) {
		value = strings.TrimRight(value[:len(value)-len(suffix)], " \t")
	}
	return value
}
