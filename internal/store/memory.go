package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ironsheep/image-release-tools/internal/transform"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu        sync.RWMutex
	instances map[string]transform.Instance
	releases  map[string]*ReleaseRecord
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		instances: make(map[string]transform.Instance),
		releases:  make(map[string]*ReleaseRecord),
	}
}

// Transformations returns copies sorted by order then id.
func (m *MemoryStore) Transformations(ctx context.Context, versionTag string) ([]transform.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []transform.Instance
	for _, in := range m.instances {
		if in.VersionTag == versionTag {
			out = append(out, cloneInstance(in))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) SaveTransformations(ctx context.Context, instances []transform.Instance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, in := range instances {
		if in.ID == "" {
			return fmt.Errorf("transformation instance without id")
		}
		m.instances[in.ID] = cloneInstance(in)
	}
	return nil
}

// MarkTransformationsCompleted fails without changes if any id is unknown.
func (m *MemoryStore) MarkTransformationsCompleted(ctx context.Context, ids []string, releaseID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if _, ok := m.instances[id]; !ok {
			return fmt.Errorf("transformation %s: %w", id, ErrNotFound)
		}
	}
	for _, id := range ids {
		in := m.instances[id]
		in.Status = transform.StatusCompleted
		in.ReleaseID = releaseID
		m.instances[id] = in
	}
	return nil
}

func (m *MemoryStore) SaveRelease(ctx context.Context, rec *ReleaseRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("release record without id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases[rec.ID] = rec.Clone()
	return nil
}

func (m *MemoryStore) Release(ctx context.Context, id string) (*ReleaseRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.releases[id]
	if !ok {
		return nil, fmt.Errorf("release %s: %w", id, ErrNotFound)
	}
	return rec.Clone(), nil
}

// Releases returns every record, newest first.
func (m *MemoryStore) Releases(ctx context.Context) ([]ReleaseRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ReleaseRecord, 0, len(m.releases))
	for _, rec := range m.releases {
		out = append(out, *rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
