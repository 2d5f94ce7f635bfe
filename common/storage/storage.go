// Package storage is the credential issuer's view of the object store.
// It signs time-limited write URLs, answers existence checks, and never
// moves file bytes itself.
package storage

import (
	"context"
	"time"
)

// ObjectStorage is the contract the session service needs from a
// backing object store.
type ObjectStorage interface {
	// PresignUpload returns a write URL for key, valid for the
	// configured TTL, that authorizes one PUT with the given content type.
	PresignUpload(ctx context.Context, key, contentType string) (string, error)

	// Exists reports whether an object is present at key.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the object at key.
	Delete(ctx context.Context, key string) error

	// PublicURL resolves the permanent read address for key.
	PublicURL(key string) string

	// PresignTTL is the validity window of issued write URLs.
	PresignTTL() time.Duration
}
