package mutation

import (
	"context"
	"sort"
	"sync"
)

// MemoryBackend keeps items in memory. Used by tests and ephemeral sessions.
type MemoryBackend struct {
	mu    sync.Mutex
	seq   int64
	items map[Key]memoryItem
}

type memoryItem struct {
	seq  int64
	item Item
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{items: make(map[Key]memoryItem)}
}

func (b *MemoryBackend) Get(_ context.Context, key Key) (*Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := b.items[key]; ok {
		it := m.item
		return &it, nil
	}
	return nil, nil
}

func (b *MemoryBackend) Put(_ context.Context, item Item) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := item.Key()
	m, ok := b.items[key]
	if !ok {
		b.seq++
		m.seq = b.seq
	}
	m.item = item
	b.items[key] = m
	return nil
}

func (b *MemoryBackend) Remove(_ context.Context, key Key, version int64) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.items[key]
	if !ok || m.item.Version != version {
		return false, nil
	}
	delete(b.items, key)
	return true, nil
}

func (b *MemoryBackend) List(_ context.Context) ([]Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	all := make([]memoryItem, 0, len(b.items))
	for _, m := range b.items {
		all = append(all, m)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	out := make([]Item, len(all))
	for i, m := range all {
		out[i] = m.item
	}
	return out, nil
}

func (b *MemoryBackend) RecordFailure(_ context.Context, key Key, message string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := b.items[key]; ok {
		m.item.Attempts++
		m.item.LastError = message
		b.items[key] = m
	}
	return nil
}
