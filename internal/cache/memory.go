package cache

import (
	"container/list"
	"sync"
	"time"
)

// Memory is the in-process tier: an LRU keyed by clip hash, bounded by
// total byte size rather than entry count.
type Memory struct {
	capacity int64
	size     int64

	items    map[string]*list.Element
	eviction *list.List

	mu    sync.Mutex
	stats Stats
}

type memoryEntry struct {
	key     string
	data    []byte
	size    int64
	addedAt time.Time
}

// NewMemory creates a memory tier holding up to capacity bytes.
func NewMemory(capacity int64) *Memory {
	return &Memory{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		stats:    Stats{Capacity: capacity},
	}
}

// Get returns the clip for key and marks it most recently used.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok {
		m.stats.Misses++
		return nil, false
	}

	m.eviction.MoveToFront(elem)
	m.stats.Hits++
	return elem.Value.(*memoryEntry).data, true
}

// Put stores a clip, evicting least recently used entries as needed.
func (m *Memory) Put(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	size := int64(len(data))
	if size > m.capacity {
		return ErrTooLarge
	}

	if elem, ok := m.items[key]; ok {
		entry := elem.Value.(*memoryEntry)
		m.size += size - entry.size
		entry.data = data
		entry.size = size
		entry.addedAt = time.Now()
		m.eviction.MoveToFront(elem)
		return nil
	}

	for m.size+size > m.capacity && m.eviction.Len() > 0 {
		m.evictOldest()
	}

	entry := &memoryEntry{key: key, data: data, size: size, addedAt: time.Now()}
	m.items[key] = m.eviction.PushFront(entry)
	m.size += size
	return nil
}

// Delete removes a clip if present.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.items[key]; ok {
		m.removeElement(elem)
	}
}

// Clear drops every entry.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[string]*list.Element)
	m.eviction.Init()
	m.size = 0
}

// Prune removes entries older than maxAge and reports how many went.
func (m *Memory) Prune(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	pruned := 0

	elem := m.eviction.Back()
	for elem != nil {
		prev := elem.Prev()
		if elem.Value.(*memoryEntry).addedAt.Before(cutoff) {
			m.removeElement(elem)
			pruned++
		}
		elem = prev
	}
	return pruned
}

// Size returns the bytes currently held.
func (m *Memory) Size() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

// Stats returns a snapshot of the tier's counters.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.stats
	stats.Size = m.size
	stats.ItemCount = int64(len(m.items))
	stats.fillHitRate()
	return stats
}

// lock held
func (m *Memory) evictOldest() {
	if elem := m.eviction.Back(); elem != nil {
		m.removeElement(elem)
		m.stats.Evictions++
	}
}

// lock held
func (m *Memory) removeElement(elem *list.Element) {
	m.eviction.Remove(elem)
	entry := elem.Value.(*memoryEntry)
	delete(m.items, entry.key)
	m.size -= entry.size
}
