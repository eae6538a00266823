package cache

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const indexFile = "outloud.index"

// compressFloor skips compression for clips too small to benefit.
const compressFloor = 1024

// Disk is the persistent tier. Clips are written one file per key,
// zstd-compressed when that wins, with a gob index saved on Close so
// hit counts and ages survive restarts.
type Disk struct {
	dir      string
	capacity int64
	size     int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	index map[string]*diskEntry

	mu    sync.Mutex
	stats Stats
}

type diskEntry struct {
	Key        string
	Path       string
	Size       int64 // bytes on disk, after compression
	RawSize    int64
	AddedAt    time.Time
	LastAccess time.Time
	Compressed bool
}

// NewDisk opens (or creates) the disk tier rooted at dir. A zero
// compression level stores clips uncompressed.
func NewDisk(dir string, capacity int64, compressionLevel int) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	d := &Disk{
		dir:      dir,
		capacity: capacity,
		index:    make(map[string]*diskEntry),
		stats:    Stats{Capacity: capacity},
	}

	if compressionLevel > 0 {
		var err error
		d.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		d.decoder, err = zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
	}

	// A missing or unreadable index just means starting empty; the
	// orphaned files get overwritten as their keys come back.
	if err := d.loadIndex(); err != nil {
		d.index = make(map[string]*diskEntry)
	}
	for _, entry := range d.index {
		d.size += entry.Size
	}

	return d, nil
}

// Get reads the clip for key from disk. Entries whose backing file has
// gone missing or fails to decompress are dropped from the index.
func (d *Disk) Get(key string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.index[key]
	if !ok {
		d.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(entry.Path)
	if err != nil {
		d.forget(entry)
		d.stats.Misses++
		return nil, false
	}

	if entry.Compressed {
		if d.decoder == nil {
			d.forget(entry)
			os.Remove(entry.Path)
			d.stats.Misses++
			return nil, false
		}
		data, err = d.decoder.DecodeAll(data, nil)
		if err != nil {
			d.forget(entry)
			os.Remove(entry.Path)
			d.stats.Misses++
			return nil, false
		}
	}

	entry.LastAccess = time.Now()
	d.stats.Hits++
	return data, true
}

// Put writes the clip for key, evicting old entries to stay under
// capacity.
func (d *Disk) Put(key string, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rawSize := int64(len(data))

	payload := data
	compressed := false
	if d.encoder != nil && rawSize > compressFloor {
		if c := d.encoder.EncodeAll(data, nil); len(c) < len(data) {
			payload = c
			compressed = true
		}
	}

	diskSize := int64(len(payload))
	if diskSize > d.capacity {
		return ErrTooLarge
	}

	if existing, ok := d.index[key]; ok {
		os.Remove(existing.Path)
		d.forget(existing)
	}

	for d.size+diskSize > d.capacity && len(d.index) > 0 {
		d.evictOldest()
	}

	path := filepath.Join(d.dir, key+".audio")
	if err := writeAtomic(path, payload); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}

	now := time.Now()
	d.index[key] = &diskEntry{
		Key:        key,
		Path:       path,
		Size:       diskSize,
		RawSize:    rawSize,
		AddedAt:    now,
		LastAccess: now,
		Compressed: compressed,
	}
	d.size += diskSize
	return nil
}

// Delete removes the clip for key if present.
func (d *Disk) Delete(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if entry, ok := d.index[key]; ok {
		os.Remove(entry.Path)
		d.forget(entry)
	}
}

// Clear removes every clip and persists the empty index.
func (d *Disk) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, entry := range d.index {
		os.Remove(entry.Path)
	}
	d.index = make(map[string]*diskEntry)
	d.size = 0
	return d.saveIndex()
}

// RemoveOlderThan drops entries added before cutoff.
func (d *Disk) RemoveOlderThan(cutoff time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for _, entry := range d.index {
		if entry.AddedAt.Before(cutoff) {
			os.Remove(entry.Path)
			d.forget(entry)
			removed++
		}
	}
	return removed
}

// Size returns the bytes currently on disk.
func (d *Disk) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.size
}

// Stats returns a snapshot of the tier's counters.
func (d *Disk) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	stats := d.stats
	stats.Size = d.size
	stats.ItemCount = int64(len(d.index))
	stats.fillHitRate()
	return stats
}

// Close persists the index.
func (d *Disk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saveIndex()
}

// lock held
func (d *Disk) forget(entry *diskEntry) {
	delete(d.index, entry.Key)
	d.size -= entry.Size
}

// lock held
func (d *Disk) evictOldest() {
	var oldest *diskEntry
	for _, entry := range d.index {
		if oldest == nil || entry.LastAccess.Before(oldest.LastAccess) {
			oldest = entry
		}
	}
	if oldest != nil {
		os.Remove(oldest.Path)
		d.forget(oldest)
		d.stats.Evictions++
	}
}

func (d *Disk) loadIndex() error {
	f, err := os.Open(filepath.Join(d.dir, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	return gob.NewDecoder(f).Decode(&d.index)
}

// lock held
func (d *Disk) saveIndex() error {
	path := filepath.Join(d.dir, indexFile)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	err = gob.NewEncoder(f).Encode(d.index)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// writeAtomic writes via a temp file and rename so a crash never
// leaves a truncated clip behind.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
