// Package metrics implements the process-wide latency/hit-rate sink.
// Counters are lock-free atomics; the latency sample ring is guarded by
// a dedicated mutex held only around append/evict/snapshot. Every
// counter update is mirrored into a Prometheus metric of the same shape
// so the admin HTTP surface's /metrics output never diverges from the
// STATS JSON snapshot.
package metrics

import (
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const sampleCapDefault = 10000

// bucket index order: <1ms, <5ms, <10ms, <50ms, <100ms, >=100ms.
const (
	bucketLT1ms = iota
	bucketLT5ms
	bucketLT10ms
	bucketLT50ms
	bucketLT100ms
	bucketGE100ms
	numBuckets
)

var bucketLabels = [numBuckets]string{"<1ms", "<5ms", "<10ms", "<50ms", "<100ms", ">=100ms"}

// Sink is the single process-wide metrics collaborator. It is
// constructed explicitly by the engine and passed into the components
// that need it, rather than reached through a package-level singleton,
// so tests can substitute their own instance.
type Sink struct {
	hits     uint64
	misses   uint64
	requests uint64

	totalLatencyUs uint64
	buckets        [numBuckets]uint64

	totalBatches       uint64
	totalBatchedWrites uint64

	samplesMu sync.Mutex
	samples   []int64
	sampleCap int

	promHits     prometheus.Counter
	promMisses   prometheus.Counter
	promRequests prometheus.Counter
	promLatency  prometheus.Histogram
	promBatch    prometheus.Histogram
}

// New constructs a Sink with the given sample-ring capacity (0 uses the
// default of 10000) and registers its Prometheus collectors against
// reg. Pass prometheus.NewRegistry() in tests to avoid collisions with
// the global default registry.
func New(sampleCap int, reg prometheus.Registerer) *Sink {
	if sampleCap <= 0 {
		sampleCap = sampleCapDefault
	}
	factory := promauto.With(reg)
	return &Sink{
		sampleCap: sampleCap,
		samples:   make([]int64, 0, sampleCap),
		promHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kvcached", Name: "cache_hits_total", Help: "Number of GET/MGET key lookups that found a live entry.",
		}),
		promMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kvcached", Name: "cache_misses_total", Help: "Number of GET/MGET key lookups that found no live entry.",
		}),
		promRequests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kvcached", Name: "requests_total", Help: "Number of read-path requests served.",
		}),
		promLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kvcached", Name: "read_latency_microseconds", Help: "Latency of GET/MGET operations in microseconds.",
			Buckets: []float64{500, 1000, 5000, 10000, 50000, 100000},
		}),
		promBatch: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kvcached", Name: "batch_size", Help: "Size of write batches flushed into the store.",
			Buckets: []float64{1, 5, 10, 25, 50, 100},
		}),
	}
}

// IncHits/IncMisses/IncRequests increment the named counter with a
// relaxed atomic add — exact ordering across counters doesn't matter,
// only that concurrent increments aren't lost.
func (s *Sink) IncHits()     { atomic.AddUint64(&s.hits, 1); s.promHits.Inc() }
func (s *Sink) IncMisses()   { atomic.AddUint64(&s.misses, 1); s.promMisses.Inc() }
func (s *Sink) IncRequests() { atomic.AddUint64(&s.requests, 1); s.promRequests.Inc() }

// RecordLatency increments the matching bucket, appends to the sample
// ring (evicting the oldest entry at capacity), and adds to the running
// latency total. micros is the operation's wall time in microseconds.
func (s *Sink) RecordLatency(micros int64) {
	atomic.AddUint64(&s.totalLatencyUs, uint64(micros))

	millis := micros / 1000
	var idx int
	switch {
	case millis < 1:
		idx = bucketLT1ms
	case millis < 5:
		idx = bucketLT5ms
	case millis < 10:
		idx = bucketLT10ms
	case millis < 50:
		idx = bucketLT50ms
	case millis < 100:
		idx = bucketLT100ms
	default:
		idx = bucketGE100ms
	}
	atomic.AddUint64(&s.buckets[idx], 1)

	s.samplesMu.Lock()
	if len(s.samples) >= s.sampleCap {
		s.samples = s.samples[1:]
	}
	s.samples = append(s.samples, micros)
	s.samplesMu.Unlock()

	s.promLatency.Observe(float64(micros))
}

// RecordBatch increments the batch count and adds size to the total
// batched-writes counter.
func (s *Sink) RecordBatch(size int) {
	atomic.AddUint64(&s.totalBatches, 1)
	atomic.AddUint64(&s.totalBatchedWrites, uint64(size))
	s.promBatch.Observe(float64(size))
}

// Snapshot is the JSON-shaped view the STATS command returns.
type Snapshot struct {
	CacheHits        uint64             `json:"cache_hits"`
	CacheMisses      uint64             `json:"cache_misses"`
	TotalRequests    uint64             `json:"total_requests"`
	HitRate          float64            `json:"hit_rate"`
	AvgLatencyUs     float64            `json:"avg_latency_us"`
	P50LatencyUs     int64              `json:"p50_latency_us"`
	P95LatencyUs     int64              `json:"p95_latency_us"`
	P99LatencyUs     int64              `json:"p99_latency_us"`
	P50LessThan1ms   uint64             `json:"p50_less_than_1ms"`
	P99TailEvents    uint64             `json:"p99_tail_events"`
	BatchAvgSize     float64            `json:"batch_avg_size"`
	Histogram        map[string]uint64  `json:"histogram"`
}

// Snapshot computes the current JSON view. Percentiles are computed on a
// copy of the sample ring sorted ascending, with the ring lock released
// before sorting, so sorting never blocks writers.
func (s *Sink) Snapshot() Snapshot {
	hits := atomic.LoadUint64(&s.hits)
	misses := atomic.LoadUint64(&s.misses)
	total := atomic.LoadUint64(&s.requests)
	latency := atomic.LoadUint64(&s.totalLatencyUs)

	var hitRate, avgLatency float64
	if total > 0 {
		hitRate = 100.0 * float64(hits) / float64(total)
		avgLatency = float64(latency) / float64(total)
	}

	batches := atomic.LoadUint64(&s.totalBatches)
	batchedWrites := atomic.LoadUint64(&s.totalBatchedWrites)
	var avgBatch float64
	if batches > 0 {
		avgBatch = float64(batchedWrites) / float64(batches)
	}

	p50 := s.percentile(0.50)
	p95 := s.percentile(0.95)
	p99 := s.percentile(0.99)

	hist := make(map[string]uint64, numBuckets)
	for i := 0; i < numBuckets; i++ {
		hist[bucketLabels[i]] = atomic.LoadUint64(&s.buckets[i])
	}

	return Snapshot{
		CacheHits:      hits,
		CacheMisses:    misses,
		TotalRequests:  total,
		HitRate:        hitRate,
		AvgLatencyUs:   avgLatency,
		P50LatencyUs:   p50,
		P95LatencyUs:   p95,
		P99LatencyUs:   p99,
		P50LessThan1ms: atomic.LoadUint64(&s.buckets[bucketLT1ms]),
		P99TailEvents:  atomic.LoadUint64(&s.buckets[bucketGE100ms]),
		BatchAvgSize:   avgBatch,
		Histogram:      hist,
	}
}

// SnapshotJSON marshals Snapshot for the STATS response body.
func (s *Sink) SnapshotJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

func (s *Sink) percentile(p float64) int64 {
	s.samplesMu.Lock()
	cp := make([]int64, len(s.samples))
	copy(cp, s.samples)
	s.samplesMu.Unlock()

	if len(cp) == 0 {
		return 0
	}
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	idx := int(p * float64(len(cp)))
	if idx >= len(cp) {
		idx = len(cp) - 1
	}
	return cp[idx]
}
