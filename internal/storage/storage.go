// Package storage provides the object store collaborator and the local staging
// area used for file bytes waiting to be transferred.
// It defines the ObjectStore and Staging interfaces (ports) and their
// S3 and local disk implementations.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNoKeys is returned when a batch delete is requested with an empty key list.
var ErrNoKeys = errors.New("storage: no keys to delete")

// Grant is a time-limited write capability for exactly one object.
type Grant struct {
	// URL accepts a single PUT of the object body.
	URL string `json:"url"`
	// Key is the object key the grant was issued for.
	Key string `json:"key"`
	// ContentType must be sent as the Content-Type header of the PUT.
	ContentType string `json:"content_type"`
	// ExpiresAt is when the URL stops being accepted.
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the grant is no longer usable at t.
func (g Grant) Expired(t time.Time) bool {
	return !g.ExpiresAt.IsZero() && !t.Before(g.ExpiresAt)
}

// ObjectStore defines the operations needed from durable blob storage.
type ObjectStore interface {
	// PresignPut issues a write grant for key valid for ttl.
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (Grant, error)

	// DeleteObjects removes keys on a best-effort basis.
	// Returns ErrNoKeys if keys is empty.
	DeleteObjects(ctx context.Context, keys []string) error
}

// Staging holds raw file bytes between request intake and transfer.
type Staging interface {
	// Stage copies data into a new staged file derived from name.
	Stage(ctx context.Context, name string, data io.Reader) (StagedFile, error)

	// Open returns the bytes of a staged file. The caller closes it.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Discard removes staged files. Files already gone are skipped.
	Discard(ctx context.Context, paths ...string) error
}

// StagedFile locates one staged upload.
type StagedFile struct {
	Path string
	Size int64
}
