package cache

import (
	"fmt"
	"sync"
	"time"
)

// Store layers the two tiers behind one Get/Put surface. Reads check
// memory first and promote disk hits; writes go through to both tiers
// so a clip survives the process.
type Store struct {
	memory *Memory
	disk   *Disk

	mu    sync.Mutex
	stats struct {
		memoryHits int64
		diskHits   int64
		misses     int64
		promotions int64
	}
}

// StoreStats aggregates the tier counters for reporting.
type StoreStats struct {
	Memory Stats
	Disk   Stats

	MemoryHits int64
	DiskHits   int64
	Misses     int64
	Promotions int64
	HitRate    float64
}

// Open creates the store described by opts. Stale disk entries are
// pruned once here rather than by a background sweeper; a process that
// speaks a handful of phrases has no use for one.
func Open(opts Options) (*Store, error) {
	disk, err := NewDisk(opts.Dir, opts.DiskCapacity, opts.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("open disk cache: %w", err)
	}

	if opts.MaxAge > 0 {
		disk.RemoveOlderThan(time.Now().Add(-opts.MaxAge))
	}

	return &Store{
		memory: NewMemory(opts.MemoryCapacity),
		disk:   disk,
	}, nil
}

// Get returns the cached clip for key, if either tier has it.
func (s *Store) Get(key string) ([]byte, bool) {
	if data, ok := s.memory.Get(key); ok {
		s.mu.Lock()
		s.stats.memoryHits++
		s.mu.Unlock()
		return data, true
	}

	if data, ok := s.disk.Get(key); ok {
		s.mu.Lock()
		s.stats.diskHits++
		s.stats.promotions++
		s.mu.Unlock()

		// Promotion is best effort; an oversized clip just stays on disk.
		_ = s.memory.Put(key, data)
		return data, true
	}

	s.mu.Lock()
	s.stats.misses++
	s.mu.Unlock()
	return nil, false
}

// Put stores the clip in both tiers. A clip too large for one tier can
// still land in the other.
func (s *Store) Put(key string, data []byte) error {
	memErr := s.memory.Put(key, data)
	diskErr := s.disk.Put(key, data)

	if memErr != nil && memErr != ErrTooLarge {
		return fmt.Errorf("memory cache: %w", memErr)
	}
	if diskErr != nil && diskErr != ErrTooLarge {
		return fmt.Errorf("disk cache: %w", diskErr)
	}
	if memErr == ErrTooLarge && diskErr == ErrTooLarge {
		return ErrTooLarge
	}
	return nil
}

// Delete removes the clip from both tiers.
func (s *Store) Delete(key string) {
	s.memory.Delete(key)
	s.disk.Delete(key)
}

// Clear empties both tiers.
func (s *Store) Clear() error {
	s.memory.Clear()
	return s.disk.Clear()
}

// Stats reports aggregate and per-tier counters.
func (s *Store) Stats() StoreStats {
	s.mu.Lock()
	stats := StoreStats{
		MemoryHits: s.stats.memoryHits,
		DiskHits:   s.stats.diskHits,
		Misses:     s.stats.misses,
		Promotions: s.stats.promotions,
	}
	s.mu.Unlock()

	stats.Memory = s.memory.Stats()
	stats.Disk = s.disk.Stats()

	hits := stats.MemoryHits + stats.DiskHits
	if hits+stats.Misses > 0 {
		stats.HitRate = float64(hits) / float64(hits+stats.Misses)
	}
	return stats
}

// Close persists the disk index.
func (s *Store) Close() error {
	return s.disk.Close()
}
