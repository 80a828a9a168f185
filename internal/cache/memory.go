package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// MemoryStore is a process-local Store on top of ristretto. Cost is the
// entry size in bytes, so MaxBytes bounds the memory the cache may use.
type MemoryStore struct {
	cache *ristretto.Cache[string, []byte]
}

var _ Store = (*MemoryStore)(nil)

// DefaultMaxBytes bounds the memory store at 64MB.
const DefaultMaxBytes = 64 << 20

func NewMemoryStore(maxBytes int64) (*MemoryStore, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		// ~10x the number of entries we expect to hold.
		NumCounters:        1e5,
		MaxCost:            maxBytes,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: creating memory store: %w", err)
	}
	return &MemoryStore{cache: c}, nil
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.cache.Get(key)
	return v, ok, nil
}

// Set waits for ristretto's write buffer so the entry is visible to the
// very next Get. The admission policy may still drop it under pressure.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.cache.SetWithTTL(key, value, int64(len(value)), ttl)
	m.cache.Wait()
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.cache.Clear()
	return nil
}

func (m *MemoryStore) Close() error {
	m.cache.Close()
	return nil
}
