package cache

import "testing"

func TestCacheMetrics_RecordAndSnapshot(t *testing.T) {
	metrics := NewCacheMetrics()

	metrics.Record(OutcomeHit)
	metrics.Record(OutcomeHit)
	metrics.Record(OutcomeHit)
	metrics.Record(OutcomeMiss)
	metrics.Record(OutcomeError)
	metrics.Record(Outcome(99))

	stats := metrics.GetStats()
	if stats.Hits != 3 || stats.Misses != 1 || stats.Errors != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if metrics.HitRate() != 75.0 {
		t.Errorf("Expected hit rate 75, got %v", metrics.HitRate())
	}

	snapshot := metrics.Snapshot()
	if snapshot["hits"] != int64(3) || snapshot["errors"] != int64(1) {
		t.Errorf("Unexpected snapshot: %v", snapshot)
	}

	metrics.Reset()
	if metrics.GetStats().Hits != 0 || metrics.HitRate() != 0 {
		t.Error("Expected reset to clear the counters")
	}
}
