package cache

import (
	"errors"
	"time"
)

// ErrTooLarge is returned when a clip exceeds a tier's capacity.
var ErrTooLarge = errors.New("clip too large for cache")

// Stats holds the counters one tier accumulates over its lifetime.
type Stats struct {
	Capacity  int64
	Size      int64
	ItemCount int64

	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64
}

func (s *Stats) fillHitRate() {
	if s.Hits+s.Misses > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Hits+s.Misses)
	}
}

// Options sizes the two tiers. Synthesized clips run a few hundred KB
// each, so the defaults hold a few hundred phrases in memory and a few
// thousand on disk.
type Options struct {
	Dir              string        // disk tier directory
	MemoryCapacity   int64         // bytes
	DiskCapacity     int64         // bytes
	CompressionLevel int           // zstd level, 0 disables compression
	MaxAge           time.Duration // disk entries older than this are pruned at open
}

// DefaultOptions returns the standard sizing for the given directory.
func DefaultOptions(dir string) Options {
	return Options{
		Dir:              dir,
		MemoryCapacity:   64 * 1024 * 1024,
		DiskCapacity:     512 * 1024 * 1024,
		CompressionLevel: 3,
		MaxAge:           14 * 24 * time.Hour,
	}
}
