package cache

import (
	"context"
	"path"
	"sync"
	"sync/atomic"
	"time"
)

// FencedCache keeps read-through fills behind committed writes.
//
// Every invalidation advances a write epoch before it deletes. A fill
// carries the epoch observed before its store read and is undone if any
// write landed in between. Keys whose invalidation failed stay pending:
// reads skip the cache for them until a later delete goes through.
type FencedCache struct {
	backend Cache
	epoch   atomic.Uint64

	mu      sync.Mutex
	seq     uint64
	pending map[string]pendingEntry
}

type pendingEntry struct {
	seq     uint64
	pattern bool
}

func NewFencedCache(backend Cache) *FencedCache {
	return &FencedCache{backend: backend, pending: make(map[string]pendingEntry)}
}

// ReadMark is taken before the store read whose result will be passed to
// Fill.
func (f *FencedCache) ReadMark() uint64 {
	return f.epoch.Load()
}

// Get answers ErrCacheDown for a key with a pending invalidation that still
// cannot be cleared.
func (f *FencedCache) Get(ctx context.Context, key string, dest interface{}) error {
	if !f.settle(ctx, key) {
		return ErrCacheDown
	}
	return f.backend.Get(ctx, key, dest)
}

// Fill stores value read from the store after mark. It is a no-op when a
// write has been invalidated since mark.
func (f *FencedCache) Fill(ctx context.Context, key string, value interface{}, ttl time.Duration, mark uint64) error {
	if f.epoch.Load() != mark || f.isPending(key) {
		return nil
	}
	if err := f.backend.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	if f.epoch.Load() == mark {
		return nil
	}

	// a write slipped in between the check and the set
	if err := f.backend.Delete(ctx, key); err != nil {
		f.markPending(key, false)
		return err
	}
	return nil
}

// Invalidate runs after a committed write. On failure the keys stay pending
// and are never served until cleared.
func (f *FencedCache) Invalidate(ctx context.Context, keys ...string) error {
	f.epoch.Add(1)
	if err := f.backend.Delete(ctx, keys...); err != nil {
		for _, key := range keys {
			f.markPending(key, false)
		}
		return err
	}
	return nil
}

func (f *FencedCache) InvalidatePattern(ctx context.Context, pattern string) error {
	f.epoch.Add(1)
	if err := f.backend.DeletePattern(ctx, pattern); err != nil {
		f.markPending(pattern, true)
		return err
	}
	return nil
}

// Pending reports how many keys and patterns still wait for invalidation.
func (f *FencedCache) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

func (f *FencedCache) markPending(key string, pattern bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.pending[key] = pendingEntry{seq: f.seq, pattern: pattern}
}

func (f *FencedCache) isPending(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, _, ok := f.blockingLocked(key)
	return ok
}

// blockingLocked finds a pending entry covering key. Callers hold mu.
func (f *FencedCache) blockingLocked(key string) (string, pendingEntry, bool) {
	if entry, ok := f.pending[key]; ok {
		return key, entry, true
	}
	for name, entry := range f.pending {
		if !entry.pattern {
			continue
		}
		if matched, _ := path.Match(name, key); matched {
			return name, entry, true
		}
	}
	return "", pendingEntry{}, false
}

// settle retries every pending invalidation covering key and reports
// whether key is safe to read.
func (f *FencedCache) settle(ctx context.Context, key string) bool {
	for {
		f.mu.Lock()
		name, entry, ok := f.blockingLocked(key)
		f.mu.Unlock()
		if !ok {
			return true
		}

		var err error
		if entry.pattern {
			err = f.backend.DeletePattern(ctx, name)
		} else {
			err = f.backend.Delete(ctx, name)
		}
		if err != nil {
			return false
		}

		f.mu.Lock()
		// a newer failure on the same key keeps it pending
		if current, ok := f.pending[name]; ok && current.seq == entry.seq {
			delete(f.pending, name)
		}
		f.mu.Unlock()
	}
}
