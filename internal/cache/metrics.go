package cache

import (
	"sync/atomic"
	"time"
)

// Outcome is what a single cache call ended in.
type Outcome int

const (
	OutcomeHit Outcome = iota
	OutcomeMiss
	OutcomeError
	OutcomeSet
	OutcomeDelete
	outcomeCount
)

var outcomeNames = [outcomeCount]string{"hits", "misses", "errors", "sets", "deletes"}

// CacheMetrics counts outcomes with atomics, so it is safe to share.
type CacheMetrics struct {
	counts [outcomeCount]atomic.Int64
	since  atomic.Int64
}

// CacheStats is a point-in-time copy of CacheMetrics.
type CacheStats struct {
	Hits    int64
	Misses  int64
	Errors  int64
	Sets    int64
	Deletes int64
	Since   time.Time
}

func NewCacheMetrics() *CacheMetrics {
	m := &CacheMetrics{}
	m.since.Store(time.Now().Unix())
	return m
}

func (m *CacheMetrics) Record(outcome Outcome) {
	if outcome < 0 || outcome >= outcomeCount {
		return
	}
	m.counts[outcome].Add(1)
}

func (m *CacheMetrics) GetStats() CacheStats {
	return CacheStats{
		Hits:    m.counts[OutcomeHit].Load(),
		Misses:  m.counts[OutcomeMiss].Load(),
		Errors:  m.counts[OutcomeError].Load(),
		Sets:    m.counts[OutcomeSet].Load(),
		Deletes: m.counts[OutcomeDelete].Load(),
		Since:   time.Unix(m.since.Load(), 0),
	}
}

// HitRate is the percentage of reads served from the cache. Errors are not
// reads that reached the cache and do not count.
func (m *CacheMetrics) HitRate() float64 {
	hits := m.counts[OutcomeHit].Load()
	total := hits + m.counts[OutcomeMiss].Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

func (m *CacheMetrics) Snapshot() map[string]interface{} {
	snapshot := make(map[string]interface{}, outcomeCount+2)
	for i, name := range outcomeNames {
		snapshot[name] = m.counts[i].Load()
	}
	snapshot["hit_rate"] = m.HitRate()
	snapshot["since"] = m.since.Load()
	return snapshot
}

func (m *CacheMetrics) Reset() {
	for i := range m.counts {
		m.counts[i].Store(0)
	}
	m.since.Store(time.Now().Unix())
}
