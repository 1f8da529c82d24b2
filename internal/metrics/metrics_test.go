package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	return New(4, prometheus.NewRegistry())
}

func TestSinkHitMissCounters(t *testing.T) {
	s := newTestSink(t)
	s.IncRequests()
	s.IncHits()
	s.IncRequests()
	s.IncMisses()

	snap := s.Snapshot()
	assert.EqualValues(t, 1, snap.CacheHits)
	assert.EqualValues(t, 1, snap.CacheMisses)
	assert.EqualValues(t, 2, snap.TotalRequests)
	assert.InDelta(t, 50.0, snap.HitRate, 0.001)
}

func TestSinkLatencyBuckets(t *testing.T) {
	s := newTestSink(t)
	s.RecordLatency(500)     // <1ms
	s.RecordLatency(4500)    // <5ms
	s.RecordLatency(150_000) // >=100ms

	snap := s.Snapshot()
	assert.EqualValues(t, 1, snap.Histogram["<1ms"])
	assert.EqualValues(t, 1, snap.Histogram["<5ms"])
	assert.EqualValues(t, 1, snap.Histogram[">=100ms"])
	assert.EqualValues(t, 1, snap.P50LessThan1ms)
	assert.EqualValues(t, 1, snap.P99TailEvents)
}

func TestSinkSampleRingEvictsOldest(t *testing.T) {
	s := newTestSink(t) // capacity 4
	for i := int64(1); i <= 6; i++ {
		s.RecordLatency(i * 1000)
	}
	s.samplesMu.Lock()
	got := append([]int64(nil), s.samples...)
	s.samplesMu.Unlock()
	assert.Equal(t, []int64{3000, 4000, 5000, 6000}, got)
}

func TestSinkPercentilesOnSortedCopy(t *testing.T) {
	s := newTestSink(t)
	for _, v := range []int64{4000, 1000, 3000, 2000} {
		s.RecordLatency(v)
	}
	assert.EqualValues(t, 2000, s.percentile(0.25))
	assert.EqualValues(t, 4000, s.percentile(0.99))
}

func TestSinkBatchAverage(t *testing.T) {
	s := newTestSink(t)
	s.RecordBatch(10)
	s.RecordBatch(20)
	snap := s.Snapshot()
	assert.InDelta(t, 15.0, snap.BatchAvgSize, 0.001)
}

func TestSnapshotJSONMarshals(t *testing.T) {
	s := newTestSink(t)
	s.IncRequests()
	s.IncHits()
	body, err := s.SnapshotJSON()
	require.NoError(t, err)
	assert.Contains(t, string(body), `"cache_hits":1`)
}
