package cache

import (
	"bytes"
	"testing"
	"time"
)

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory(1024)

	if _, ok := m.Get("missing"); ok {
		t.Error("Get on empty cache reported a hit")
	}

	data := []byte("clip")
	if err := m.Put("k", data); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok := m.Get("k")
	if !ok || !bytes.Equal(got, data) {
		t.Errorf("Get = (%q, %v)", got, ok)
	}
}

func TestMemoryLRUEviction(t *testing.T) {
	m := NewMemory(100)

	m.Put("a", make([]byte, 40))
	m.Put("b", make([]byte, 40))

	// touch a so b is the eviction candidate
	if _, ok := m.Get("a"); !ok {
		t.Fatal("a missing before eviction")
	}

	if err := m.Put("c", make([]byte, 40)); err != nil {
		t.Fatalf("Put c: %v", err)
	}

	if _, ok := m.Get("b"); ok {
		t.Error("b survived eviction despite being least recently used")
	}
	if _, ok := m.Get("a"); !ok {
		t.Error("a evicted despite recent access")
	}
	if _, ok := m.Get("c"); !ok {
		t.Error("c missing after insert")
	}
	if got := m.Stats().Evictions; got != 1 {
		t.Errorf("Evictions = %d, want 1", got)
	}
}

func TestMemoryUpdateAdjustsSize(t *testing.T) {
	m := NewMemory(100)

	m.Put("k", make([]byte, 60))
	m.Put("k", make([]byte, 30))
	if got := m.Size(); got != 30 {
		t.Errorf("Size = %d after shrinking update, want 30", got)
	}

	if err := m.Put("other", make([]byte, 60)); err != nil {
		t.Errorf("Put after shrink: %v", err)
	}
	if got := m.Stats().ItemCount; got != 2 {
		t.Errorf("ItemCount = %d, want 2", got)
	}
}

func TestMemoryTooLarge(t *testing.T) {
	m := NewMemory(10)
	if err := m.Put("big", make([]byte, 11)); err != ErrTooLarge {
		t.Errorf("Put oversized = %v, want ErrTooLarge", err)
	}
}

func TestMemoryDeleteAndClear(t *testing.T) {
	m := NewMemory(1024)
	m.Put("a", []byte("x"))
	m.Put("b", []byte("y"))

	m.Delete("a")
	if _, ok := m.Get("a"); ok {
		t.Error("a present after Delete")
	}

	m.Clear()
	if _, ok := m.Get("b"); ok {
		t.Error("b present after Clear")
	}
	if got := m.Size(); got != 0 {
		t.Errorf("Size = %d after Clear, want 0", got)
	}
}

func TestMemoryPrune(t *testing.T) {
	m := NewMemory(1024)
	m.Put("old", []byte("x"))

	time.Sleep(5 * time.Millisecond)
	if got := m.Prune(time.Millisecond); got != 1 {
		t.Errorf("Prune = %d, want 1", got)
	}
	if _, ok := m.Get("old"); ok {
		t.Error("entry survived pruning")
	}
}
