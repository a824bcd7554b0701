package offline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dukerupert/renex/internal/model"
)

// Storage holds named cache generations. store.CacheStore is the SQLite
// implementation; MemoryStorage is used in tests and when no database is
// available.
type Storage interface {
	Open(ctx context.Context, name string) error
	Put(ctx context.Context, name string, e model.CacheEntry) error
	Match(ctx context.Context, name, url string) (*model.CacheEntry, error)
	Keys(ctx context.Context) ([]string, error)
	Prune(ctx context.Context, keep string) ([]string, error)
}

type generation struct {
	created time.Time
	entries map[string]model.CacheEntry
}

type MemoryStorage struct {
	mu     sync.RWMutex
	caches map[string]*generation
	seq    time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{caches: make(map[string]*generation)}
}

func (m *MemoryStorage) open(name string) *generation {
	g, ok := m.caches[name]
	if !ok {
		// Strictly increasing creation stamps keep Keys ordered.
		m.seq = m.seq.Add(time.Nanosecond)
		g = &generation{created: m.seq, entries: make(map[string]model.CacheEntry)}
		m.caches[name] = g
	}
	return g
}

func (m *MemoryStorage) Open(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open(name)
	return nil
}

func (m *MemoryStorage) Put(_ context.Context, name string, e model.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.Header = e.Header.Clone()
	e.Body = append([]byte(nil), e.Body...)
	m.open(name).entries[e.URL] = e
	return nil
}

func (m *MemoryStorage) Match(_ context.Context, name, url string) (*model.CacheEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.caches[name]
	if !ok {
		return nil, nil
	}
	e, ok := g.entries[url]
	if !ok {
		return nil, nil
	}
	e.Header = e.Header.Clone()
	return &e, nil
}

func (m *MemoryStorage) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.caches))
	for name := range m.caches {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return m.caches[names[i]].created.Before(m.caches[names[j]].created)
	})
	return names, nil
}

func (m *MemoryStorage) Prune(_ context.Context, keep string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed []string
	for name := range m.caches {
		if name != keep {
			removed = append(removed, name)
			delete(m.caches, name)
		}
	}
	sort.Strings(removed)
	return removed, nil
}
