package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// Store is one tier of the pronunciation cache.
type Store interface {
	// Get returns (nil, false, nil) on a miss.
	Get(ctx context.Context, key string) (*Audio, bool, error)
	Put(ctx context.Context, key string, audio *Audio) error
	Name() string
}

// voiced is implemented by providers whose output depends on a voice.
type voiced interface {
	Voice() string
}

func voiceOf(p Pronouncer) string {
	if v, ok := p.(voiced); ok {
		return v.Voice()
	}
	return ""
}

// Cached serves pronunciations from a list of stores, fastest first, and
// only calls the wrapped provider on a full miss. A hit in a later tier is
// copied into every earlier tier. Substitute audio from a fallback is
// returned but never stored, so the primary is asked again next time. Store
// failures are logged and treated as misses; they never fail a synthesis.
type Cached struct {
	next   Pronouncer
	stores []Store
	log    *zap.SugaredLogger
	ns     string

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCached wraps next with the given stores.
func NewCached(next Pronouncer, log *zap.SugaredLogger, stores ...Store) *Cached {
	ns := next.Name()
	if v, ok := next.(voiced); ok {
		ns += ":" + v.Voice()
	}
	return &Cached{next: next, stores: stores, log: nopIfNil(log), ns: ns}
}

// Name implements Pronouncer.
func (c *Cached) Name() string { return c.next.Name() }

// IsAvailable implements Pronouncer.
func (c *Cached) IsAvailable() error { return c.next.IsAvailable() }

// Stats returns cache hit and miss counts.
func (c *Cached) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Key returns the cache key for word.
func (c *Cached) Key(word string) string {
	h := sha256.Sum256([]byte(c.ns + ":" + word))
	return hex.EncodeToString(h[:])
}

// Synthesize implements Pronouncer.
func (c *Cached) Synthesize(ctx context.Context, word string) (*Audio, error) {
	key := c.Key(word)

	for i, s := range c.stores {
		audio, ok, err := s.Get(ctx, key)
		if err != nil {
			c.log.Warnw("pronunciation cache read failed", "store", s.Name(), "error", err)
			continue
		}
		if !ok {
			continue
		}
		c.hits.Add(1)
		c.log.Debugw("pronunciation cache hit", "store", s.Name(), "word", word, "size", humanize.Bytes(uint64(len(audio.Data))))
		c.fill(ctx, c.stores[:i], key, audio)
		return audio, nil
	}

	c.misses.Add(1)
	audio, err := c.next.Synthesize(ctx, word)
	if err != nil {
		return nil, err
	}
	if audio.Substitute {
		c.log.Debugw("not caching substitute pronunciation", "word", word)
		return audio, nil
	}
	c.fill(ctx, c.stores, key, audio)
	return audio, nil
}

func (c *Cached) fill(ctx context.Context, stores []Store, key string, audio *Audio) {
	for _, s := range stores {
		if err := s.Put(ctx, key, audio); err != nil {
			c.log.Warnw("pronunciation cache write failed", "store", s.Name(), "error", err)
		}
	}
}

// MemoryStore is a bounded in-process store. When full, the oldest entry is
// evicted.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Audio
	order   []string
	max     int
}

// NewMemoryStore returns a store holding at most maxEntries pronunciations.
// A non-positive limit means 512.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 512
	}
	return &MemoryStore{entries: make(map[string]*Audio), max: maxEntries}
}

// Name implements Store.
func (m *MemoryStore) Name() string { return "memory" }

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string) (*Audio, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.entries[key]
	return a, ok, nil
}

// Put implements Store.
func (m *MemoryStore) Put(_ context.Context, key string, audio *Audio) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; !ok {
		m.order = append(m.order, key)
	}
	m.entries[key] = audio
	for len(m.order) > m.max {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.entries, oldest)
	}
	return nil
}

// Len returns the number of cached entries.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// extensions maps cached file suffixes to MIME types, in lookup order.
var extensions = []struct {
	ext  string
	mime string
}{
	{".mp3", MIMEMP3},
	{".wav", MIMEWAV},
}

// DiskStore keeps pronunciations under dir/<key[:2]>/<key>.<ext>. It is
// always read; writes happen only when enabled, so a read-only cache shipped
// with a deployment still gives a warm start.
type DiskStore struct {
	dir   string
	write bool
}

// NewDiskStore returns a disk store rooted at dir.
func NewDiskStore(dir string, write bool) (*DiskStore, error) {
	if dir == "" {
		return nil, errors.New("speech: disk cache dir is empty")
	}
	if write {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("speech: create cache dir %s: %w", dir, err)
		}
	}
	return &DiskStore{dir: dir, write: write}, nil
}

// Name implements Store.
func (d *DiskStore) Name() string { return "disk" }

func (d *DiskStore) path(key, ext string) string {
	return filepath.Join(d.dir, key[:2], key+ext)
}

// Get implements Store.
func (d *DiskStore) Get(_ context.Context, key string) (*Audio, bool, error) {
	for _, e := range extensions {
		data, err := os.ReadFile(d.path(key, e.ext))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		return &Audio{Data: data, MIMEType: e.mime}, true, nil
	}
	return nil, false, nil
}

// Put implements Store. It is a no-op when writes are disabled.
func (d *DiskStore) Put(_ context.Context, key string, audio *Audio) error {
	if !d.write {
		return nil
	}
	ext := ""
	for _, e := range extensions {
		if e.mime == audio.MIMEType {
			ext = e.ext
		}
	}
	if ext == "" {
		return fmt.Errorf("unsupported audio type %q", audio.MIMEType)
	}
	path := d.path(key, ext)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	// Each writer gets its own temp file so concurrent fills of one key
	// never interleave.
	tmp, err := os.CreateTemp(filepath.Dir(path), key+"*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(audio.Data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
