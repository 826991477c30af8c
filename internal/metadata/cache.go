package metadata

import "sync"

// Store is the key-value backend behind the metadata cache. Implementations
// must be safe for concurrent use. Population is idempotent, so concurrent
// computation of the same key at worst causes redundant work, never an
// incorrect value.
type Store interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
	Delete(key string)
	Flush()
}

// MemoryStore implements Store with an in-process map. This is the default
// backend for single-instance deployments.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]interface{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]interface{})}
}

func (s *MemoryStore) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *MemoryStore) Set(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

func (s *MemoryStore) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]interface{})
}

// Cache memoizes expensive-to-derive schema facts. It is explicitly owned
// and injected into the criteria facade; entries live until Delete or
// Flush is called, so long-lived processes that hot-reload model
// declarations must flush explicitly.
type Cache struct {
	store Store
}

// NewCache creates a cache over the given store. A nil store defaults to
// an in-memory one.
func NewCache(store Store) *Cache {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Cache{store: store}
}

// Delete invalidates a single entry.
func (c *Cache) Delete(key string) {
	c.store.Delete(key)
}

// Flush invalidates every entry.
func (c *Cache) Flush() {
	c.store.Flush()
}

// Memoize returns the cached value for key, computing and storing it on
// first lookup. Compute functions must not fail: negative results (false,
// nil, empty) are cached like any other value. A cached value of the wrong
// type (possible with external backends after a schema change) is treated
// as a miss and recomputed.
func Memoize[T any](c *Cache, key string, compute func() T) T {
	if raw, ok := c.store.Get(key); ok {
		if v, ok := raw.(T); ok {
			return v
		}
	}
	v := compute()
	c.store.Set(key, v)
	return v
}
