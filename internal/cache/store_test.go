package cache

import (
	"bytes"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	s, err := Open(DefaultOptions(t.TempDir()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	data := []byte("clip")
	if err := s.Put("k", data); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok := s.Get("k")
	if !ok || !bytes.Equal(got, data) {
		t.Errorf("Get = (%q, %v)", got, ok)
	}

	stats := s.Stats()
	if stats.MemoryHits != 1 || stats.Misses != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestStorePromotesDiskHits(t *testing.T) {
	s, err := Open(DefaultOptions(t.TempDir()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	data := []byte("promoted clip")
	if err := s.Put("k", data); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// drop the memory tier so the next read has to come from disk
	s.memory.Clear()

	got, ok := s.Get("k")
	if !ok || !bytes.Equal(got, data) {
		t.Fatalf("disk Get = (%q, %v)", got, ok)
	}
	if _, ok := s.memory.Get("k"); !ok {
		t.Error("disk hit was not promoted to memory")
	}

	stats := s.Stats()
	if stats.DiskHits != 1 || stats.Promotions != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestStoreMissAndHitRate(t *testing.T) {
	s, err := Open(DefaultOptions(t.TempDir()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	s.Put("k", []byte("x"))
	s.Get("k")
	s.Get("absent")

	stats := s.Stats()
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("HitRate = %v, want 0.5", stats.HitRate)
	}
}

func TestStoreTooLargeForBothTiers(t *testing.T) {
	opts := DefaultOptions(t.TempDir())
	opts.MemoryCapacity = 10
	opts.DiskCapacity = 10
	opts.CompressionLevel = 0

	s, err := Open(opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.Put("big", make([]byte, 20)); err != ErrTooLarge {
		t.Errorf("Put = %v, want ErrTooLarge", err)
	}
}

func TestStoreDeleteAndClear(t *testing.T) {
	s, err := Open(DefaultOptions(t.TempDir()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	s.Put("a", []byte("x"))
	s.Put("b", []byte("y"))

	s.Delete("a")
	if _, ok := s.Get("a"); ok {
		t.Error("a present after Delete")
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := s.Get("b"); ok {
		t.Error("b present after Clear")
	}
}
