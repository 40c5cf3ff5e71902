package store

import (
	"context"
	"slices"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Backend, used by tests and dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	buckets map[string]map[string]*Object
	calls   MemoryCalls
}

// MemoryCalls tracks method invocations for test verification.
type MemoryCalls struct {
	List int
	Get  int
	Put  int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]map[string]*Object)}
}

// List returns the delimited listing of prefix within bucket.
func (m *MemoryStore) List(ctx context.Context, bucket, prefix string) (Listing, error) {
	m.mu.Lock()
	m.calls.List++
	keys := make([]string, 0, len(m.buckets[bucket]))
	for k := range m.buckets[bucket] {
		keys = append(keys, k)
	}
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Listing{}, err
	}
	sort.Strings(keys)
	return listSorted(keys, prefix), nil
}

// Get returns a copy of the object stored at key.
func (m *MemoryStore) Get(ctx context.Context, bucket, key string) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Get++

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	obj, ok := m.buckets[bucket][key]
	if !ok {
		return nil, ErrNotFound{Bucket: bucket, Key: key}
	}
	return &Object{Key: obj.Key, Data: slices.Clone(obj.Data), Metadata: obj.Metadata}, nil
}

// Put stores a copy of obj, replacing any previous object at the same key.
func (m *MemoryStore) Put(ctx context.Context, bucket string, obj *Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Put++

	if err := ctx.Err(); err != nil {
		return err
	}
	b, ok := m.buckets[bucket]
	if !ok {
		b = make(map[string]*Object)
		m.buckets[bucket] = b
	}
	b[obj.Key] = &Object{Key: obj.Key, Data: slices.Clone(obj.Data), Metadata: obj.Metadata}
	return nil
}

// Close releases nothing.
func (m *MemoryStore) Close() error { return nil }

// Seed stores raw objects without metadata. Intended for tests.
func (m *MemoryStore) Seed(bucket string, objects map[string]string) {
	for key, data := range objects {
		_ = m.Put(context.Background(), bucket, &Object{Key: key, Data: []byte(data)})
	}
}

// Keys returns the sorted keys of bucket.
func (m *MemoryStore) Keys(bucket string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.buckets[bucket]))
	for k := range m.buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Calls returns the number of invocations per method.
func (m *MemoryStore) Calls() MemoryCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}
