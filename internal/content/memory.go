package content

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// It uses a map with RWMutex for thread-safe access.
// Suitable for development and testing; DynamoRepository is used in production.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]*Item
}

// NewMemoryRepository creates a new in-memory content repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		items: make(map[string]*Item),
	}
}

// Create stores a clone of item.
func (r *MemoryRepository) Create(_ context.Context, item *Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[item.ID]; ok {
		return ErrAlreadyExists
	}
	r.items[item.ID] = item.Clone()
	return nil
}

// FindByID retrieves an item by its ID.
// Returns a clone to prevent external mutations.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return item.Clone(), nil
}

// List returns all items ordered by creation time, newest first.
func (r *MemoryRepository) List(_ context.Context) ([]*Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Item, 0, len(r.items))
	for _, item := range r.items {
		result = append(result, item.Clone())
	}
	sort.Slice(result, func(a, b int) bool {
		return result[a].CreatedAt.After(result[b].CreatedAt)
	})
	return result, nil
}

// Update replaces every field except ID, Status and CreatedAt.
func (r *MemoryRepository) Update(_ context.Context, item *Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[item.ID]
	if !ok {
		return ErrNotFound
	}
	next := item.Clone()
	next.Status = stored.Status
	next.CreatedAt = stored.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	r.items[item.ID] = next
	return nil
}

// SetStatus performs a compare-and-set on the item's status.
func (r *MemoryRepository) SetStatus(_ context.Context, id string, to Status, from ...Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	if !slices.Contains(from, stored.Status) {
		return ErrStatusConflict
	}
	stored.Status = to
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete removes an item from storage.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.items, id)
	return nil
}
