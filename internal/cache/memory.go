package cache

import (
	"context"
	"sort"
	"sync"
)

const DefaultMaxObjectBytes int64 = 50 * 1024 * 1024

type MemoryStorage struct {
	mu             sync.RWMutex
	generations    map[string]*MemoryGeneration
	maxObjectBytes int64
	closed         bool
}

func NewMemoryStorage(maxObjectBytes int64) *MemoryStorage {
	if maxObjectBytes <= 0 {
		maxObjectBytes = DefaultMaxObjectBytes
	}
	return &MemoryStorage{
		generations:    make(map[string]*MemoryGeneration),
		maxObjectBytes: maxObjectBytes,
	}
}

func (m *MemoryStorage) Open(ctx context.Context, name string) (Generation, error) {
	if m == nil {
		return nil, ErrStorageClosed
	}
	if name == "" {
		return nil, ErrInvalidName
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrStorageClosed
	}
	if gen, ok := m.generations[name]; ok {
		return gen, nil
	}
	gen := &MemoryGeneration{
		name:           name,
		entries:        make(map[string]Entry),
		maxObjectBytes: m.maxObjectBytes,
	}
	m.generations[name] = gen
	return gen, nil
}

func (m *MemoryStorage) Names(ctx context.Context) ([]string, error) {
	if m == nil {
		return nil, ErrStorageClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}
	names := make([]string, 0, len(m.generations))
	for name := range m.generations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStorage) Delete(ctx context.Context, name string) (bool, error) {
	if m == nil {
		return false, ErrStorageClosed
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrStorageClosed
	}
	gen, ok := m.generations[name]
	if !ok {
		return false, nil
	}
	delete(m.generations, name)
	gen.drop()
	return true, nil
}

func (m *MemoryStorage) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// MemoryGeneration is a handle into MemoryStorage. A handle kept past the
// deletion of its generation reads as empty and rejects writes.
type MemoryGeneration struct {
	name           string
	mu             sync.RWMutex
	entries        map[string]Entry
	maxObjectBytes int64
	dropped        bool
}

func (g *MemoryGeneration) Name() string {
	if g == nil {
		return ""
	}
	return g.name
}

func (g *MemoryGeneration) Get(ctx context.Context, key string) (Entry, bool, error) {
	if g == nil {
		return Entry{}, false, errNilGeneration
	}
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}
	g.mu.RLock()
	entry, ok := g.entries[key]
	g.mu.RUnlock()
	return entry, ok, nil
}

func (g *MemoryGeneration) Put(ctx context.Context, key string, entry Entry) error {
	if g == nil {
		return errNilGeneration
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if g.maxObjectBytes > 0 && int64(len(entry.Body)) > g.maxObjectBytes {
		return ErrEntryTooLarge
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.dropped {
		return ErrStorageClosed
	}
	g.entries[key] = entry
	return nil
}

func (g *MemoryGeneration) Delete(ctx context.Context, key string) (bool, error) {
	if g == nil {
		return false, errNilGeneration
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	g.mu.Lock()
	_, ok := g.entries[key]
	delete(g.entries, key)
	g.mu.Unlock()
	return ok, nil
}

func (g *MemoryGeneration) Keys(ctx context.Context) ([]string, error) {
	if g == nil {
		return nil, errNilGeneration
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.RLock()
	keys := make([]string, 0, len(g.entries))
	for key := range g.entries {
		keys = append(keys, key)
	}
	g.mu.RUnlock()
	sort.Strings(keys)
	return keys, nil
}

func (g *MemoryGeneration) Len() int {
	if g == nil {
		return 0
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

func (g *MemoryGeneration) drop() {
	g.mu.Lock()
	g.dropped = true
	g.entries = make(map[string]Entry)
	g.mu.Unlock()
}
