package cache

import (
	"bytes"
	"testing"
	"time"
)

func TestDiskRoundTrip(t *testing.T) {
	d, err := NewDisk(t.TempDir(), 1024*1024, 3)
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}
	defer d.Close()

	data := []byte("small clip")
	if err := d.Put("k", data); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok := d.Get("k")
	if !ok || !bytes.Equal(got, data) {
		t.Errorf("Get = (%q, %v)", got, ok)
	}
	if _, ok := d.Get("missing"); ok {
		t.Error("missing key reported a hit")
	}
}

func TestDiskCompressesLargeClips(t *testing.T) {
	d, err := NewDisk(t.TempDir(), 1024*1024, 3)
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}
	defer d.Close()

	// highly compressible and above the compression floor
	data := bytes.Repeat([]byte("abcdefgh"), 1024)
	if err := d.Put("k", data); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if got := d.Size(); got >= int64(len(data)) {
		t.Errorf("on-disk size %d not smaller than raw %d", got, len(data))
	}
	got, ok := d.Get("k")
	if !ok || !bytes.Equal(got, data) {
		t.Error("decompressed clip does not match original")
	}
}

func TestDiskIndexSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	data := bytes.Repeat([]byte("audio"), 2048)

	d, err := NewDisk(dir, 1024*1024, 3)
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}
	if err := d.Put("persisted", data); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewDisk(dir, 1024*1024, 3)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, ok := reopened.Get("persisted")
	if !ok || !bytes.Equal(got, data) {
		t.Error("clip lost across reopen")
	}
}

func TestDiskCapacityEviction(t *testing.T) {
	d, err := NewDisk(t.TempDir(), 100, 0)
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}
	defer d.Close()

	d.Put("a", make([]byte, 40))
	time.Sleep(2 * time.Millisecond)
	d.Put("b", make([]byte, 40))
	time.Sleep(2 * time.Millisecond)

	// a has the oldest access time and goes first
	if err := d.Put("c", make([]byte, 40)); err != nil {
		t.Fatalf("Put c: %v", err)
	}

	if _, ok := d.Get("a"); ok {
		t.Error("a survived eviction")
	}
	if _, ok := d.Get("b"); !ok {
		t.Error("b evicted out of order")
	}
	if d.Size() > 100 {
		t.Errorf("Size = %d exceeds capacity", d.Size())
	}
}

func TestDiskTooLarge(t *testing.T) {
	d, err := NewDisk(t.TempDir(), 10, 0)
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}
	defer d.Close()

	if err := d.Put("big", make([]byte, 11)); err != ErrTooLarge {
		t.Errorf("Put oversized = %v, want ErrTooLarge", err)
	}
}

func TestDiskRemoveOlderThan(t *testing.T) {
	d, err := NewDisk(t.TempDir(), 1024, 0)
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}
	defer d.Close()

	d.Put("stale", []byte("x"))
	time.Sleep(5 * time.Millisecond)

	if got := d.RemoveOlderThan(time.Now()); got != 1 {
		t.Errorf("RemoveOlderThan = %d, want 1", got)
	}
	if _, ok := d.Get("stale"); ok {
		t.Error("stale entry survived")
	}
}

func TestDiskClear(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, 1024, 0)
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}
	d.Put("a", []byte("x"))
	d.Put("b", []byte("y"))

	if err := d.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := d.Size(); got != 0 {
		t.Errorf("Size = %d after Clear, want 0", got)
	}
	d.Close()

	// the cleared index is what a reopen sees
	reopened, err := NewDisk(dir, 1024, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if got := reopened.Stats().ItemCount; got != 0 {
		t.Errorf("ItemCount = %d after Clear and reopen, want 0", got)
	}
}
