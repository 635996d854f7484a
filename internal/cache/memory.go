package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const memoryShardCount = 16

type memoryShard struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// Memory is the default in-process store. Expiry is lazy on read, with an
// optional periodic sweep so abandoned keys do not pin memory for the life
// of the process.
type Memory struct {
	ttl    time.Duration
	now    func() time.Time
	shards [memoryShardCount]*memoryShard
}

func NewMemory(ttl time.Duration) *Memory {
	m := &Memory{ttl: ttl, now: time.Now}
	for i := range m.shards {
		m.shards[i] = &memoryShard{entries: map[string]Entry{}}
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) (Entry, time.Duration, bool, error) {
	shard := m.shardFor(key)
	shard.mu.RLock()
	entry, ok := shard.entries[key]
	shard.mu.RUnlock()
	if !ok {
		return Entry{}, 0, false, nil
	}

	age := m.now().Sub(entry.StoredAt)
	if age >= m.ttl {
		shard.mu.Lock()
		if current, still := shard.entries[key]; still && current.StoredAt.Equal(entry.StoredAt) {
			delete(shard.entries, key)
		}
		shard.mu.Unlock()
		return Entry{}, 0, false, nil
	}
	return entry, age, true, nil
}

func (m *Memory) Put(_ context.Context, key string, entry Entry) error {
	if entry.StoredAt.IsZero() {
		entry.StoredAt = m.now()
	}
	shard := m.shardFor(key)
	shard.mu.Lock()
	shard.entries[key] = entry
	shard.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	shard := m.shardFor(key)
	shard.mu.Lock()
	delete(shard.entries, key)
	shard.mu.Unlock()
	return nil
}

// Flush removes every entry belonging to the tenant and reports how many
// were dropped.
func (m *Memory) Flush(_ context.Context, tenantID string) (int, error) {
	prefix := tenantID + ":"
	flushed := 0
	for _, shard := range m.shards {
		shard.mu.Lock()
		for key := range shard.entries {
			if strings.HasPrefix(key, prefix) {
				delete(shard.entries, key)
				flushed++
			}
		}
		shard.mu.Unlock()
	}
	return flushed, nil
}

// StartSweeper evicts expired entries every interval until ctx is done.
func (m *Memory) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep()
			}
		}
	}()
}

func (m *Memory) sweep() int {
	now := m.now()
	swept := 0
	for _, shard := range m.shards {
		shard.mu.Lock()
		for key, entry := range shard.entries {
			if now.Sub(entry.StoredAt) >= m.ttl {
				delete(shard.entries, key)
				swept++
			}
		}
		shard.mu.Unlock()
	}
	return swept
}

func (m *Memory) shardFor(key string) *memoryShard {
	return m.shards[xxhash.Sum64String(key)%memoryShardCount]
}
