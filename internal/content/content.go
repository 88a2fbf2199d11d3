// Package content provides the ContentItem aggregate for movies and series,
// its lifecycle state machine, the repository port with in-memory and DynamoDB
// adapters, and the Service that records metadata for the upload workflow.
package content

import (
	"errors"
	"slices"
	"time"
)

// Kind distinguishes movies from series.
type Kind string

const (
	// KindMovie has exactly one main media file.
	KindMovie Kind = "movie"
	// KindSeries has an ordered list of main media files.
	KindSeries Kind = "series"
)

// IsValid returns true if the kind is known.
func (k Kind) IsValid() bool {
	return k == KindMovie || k == KindSeries
}

// Status represents the lifecycle state of an Item.
type Status string

const (
	// StatusPending indicates the item was created but its assets are not confirmed.
	StatusPending Status = "PENDING_UPLOAD"
	// StatusAvailable indicates every declared asset was uploaded; the item is public.
	StatusAvailable Status = "AVAILABLE"
	// StatusArchived indicates the item was hidden manually.
	StatusArchived Status = "ARCHIVED"
)

// IsValid returns true if the status is a known lifecycle state.
func (s Status) IsValid() bool {
	return s == StatusPending || s == StatusAvailable || s == StatusArchived
}

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusAvailable},
	StatusAvailable: {StatusArchived},
	StatusArchived:  {StatusAvailable},
}

// CanTransition checks if a transition from one status to another is valid.
func CanTransition(from, to Status) bool {
	return slices.Contains(validTransitions[from], to)
}

// CastMember is one entry of an item's cast list.
type CastMember struct {
	Name string
	// PictureKey is the storage key of the member's picture, if any.
	PictureKey string
}

// Item is a movie or series record.
// Asset fields hold storage keys; the bytes live only in the object store.
type Item struct {
	ID          string
	Title       string
	Description string
	Genres      []string
	Kind        Kind
	Status      Status

	PosterKey   string
	BackdropKey string
	TrailerKey  string
	// MainKeys has one element for a movie and one per episode for a series.
	MainKeys []string
	Cast     []CastMember

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewItem creates a pending Item with the given ID.
func NewItem(itemID string, kind Kind) *Item {
	now := time.Now().UTC()
	return &Item{
		ID:        itemID,
		Kind:      kind,
		Status:    StatusPending,
		Genres:    make([]string, 0),
		MainKeys:  make([]string, 0),
		Cast:      make([]CastMember, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Visible reports whether end users may see the item.
func (i *Item) Visible() bool {
	return i.Status == StatusAvailable
}

// MainKey returns the first main media key, the only one for a movie.
func (i *Item) MainKey() string {
	if len(i.MainKeys) == 0 {
		return ""
	}
	return i.MainKeys[0]
}

// HasGenre reports whether the item is tagged with genre (case-sensitive).
func (i *Item) HasGenre(genre string) bool {
	return slices.Contains(i.Genres, genre)
}

// AssetKeys returns every storage key referenced by the item.
func (i *Item) AssetKeys() []string {
	keys := make([]string, 0, 3+len(i.MainKeys)+len(i.Cast))
	for _, k := range []string{i.PosterKey, i.BackdropKey, i.TrailerKey} {
		if k != "" {
			keys = append(keys, k)
		}
	}
	for _, k := range i.MainKeys {
		if k != "" {
			keys = append(keys, k)
		}
	}
	for _, c := range i.Cast {
		if c.PictureKey != "" {
			keys = append(keys, c.PictureKey)
		}
	}
	return keys
}

// Clone creates a deep copy of the item for safe reads.
func (i *Item) Clone() *Item {
	c := *i
	c.Genres = slices.Clone(i.Genres)
	c.MainKeys = slices.Clone(i.MainKeys)
	c.Cast = slices.Clone(i.Cast)
	return &c
}
