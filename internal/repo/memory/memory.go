package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hamed0406/uptimeworker/internal/repo"
)

type Store struct {
	mu    sync.RWMutex
	kinds map[string]map[string]repo.Record
}

func New() *Store {
	return &Store{kinds: make(map[string]map[string]repo.Record)}
}

func (m *Store) List(ctx context.Context, kind string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.kinds[kind]))
	for id := range m.kinds[kind] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Store) Read(ctx context.Context, kind, id string) (repo.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.kinds[kind][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", kind, id, repo.ErrNotFound)
	}
	return rec.Clone(), nil
}

func (m *Store) Update(ctx context.Context, kind, id string, rec repo.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.kinds[kind][id]; !ok {
		return fmt.Errorf("%s/%s: %w", kind, id, repo.ErrNotFound)
	}
	m.kinds[kind][id] = rec.Clone()
	return nil
}

func (m *Store) Create(ctx context.Context, kind, id string, rec repo.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.kinds[kind] == nil {
		m.kinds[kind] = make(map[string]repo.Record)
	}
	if _, ok := m.kinds[kind][id]; ok {
		return fmt.Errorf("%s/%s: %w", kind, id, repo.ErrExists)
	}
	m.kinds[kind][id] = rec.Clone()
	return nil
}

var (
	_ repo.RecordStore = (*Store)(nil)
	_ repo.Writer      = (*Store)(nil)
)
