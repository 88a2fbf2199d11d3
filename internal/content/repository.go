package content

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when an item cannot be found by ID.
	ErrNotFound = errors.New("content not found")
	// ErrAlreadyExists is returned when creating an item whose ID is taken.
	ErrAlreadyExists = errors.New("content already exists")
	// ErrStatusConflict is returned by SetStatus when the stored status is not
	// one of the expected source states.
	ErrStatusConflict = errors.New("content status conflict")
)

// Repository defines the interface for content metadata persistence.
// It acts as a port in the hexagonal architecture pattern.
type Repository interface {
	// Create persists a new item.
	// Returns ErrAlreadyExists if an item with the same ID exists.
	Create(ctx context.Context, item *Item) error

	// FindByID retrieves an item by its unique identifier.
	// Returns ErrNotFound if the item does not exist.
	FindByID(ctx context.Context, id string) (*Item, error)

	// List returns all items.
	List(ctx context.Context) ([]*Item, error)

	// Update overwrites the descriptive and asset fields of an existing item.
	// The stored status is never changed by Update.
	// Returns ErrNotFound if the item does not exist.
	Update(ctx context.Context, item *Item) error

	// SetStatus moves the item to status "to" only if its current status is
	// one of "from". The check and the write are a single atomic step.
	// Returns ErrNotFound if the item does not exist and ErrStatusConflict
	// if the current status is not in "from".
	SetStatus(ctx context.Context, id string, to Status, from ...Status) error

	// Delete removes an item from storage.
	// Returns ErrNotFound if the item does not exist.
	Delete(ctx context.Context, id string) error
}
