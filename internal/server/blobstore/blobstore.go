// Package blobstore keeps large ciphertexts outside the database. Objects
// are opaque: the store never sees plaintext, keys or tokens.
package blobstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Store interface {
	// Put stores data under a freshly generated key and returns the key.
	Put(ctx context.Context, data []byte) (string, error)
	// Get returns common.ErrorNotFound for an unknown key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete is idempotent.
	Delete(ctx context.Context, key string) error
}

// NewStorageKey returns a date-partitioned object key.
func NewStorageKey(now time.Time) string {
	return fmt.Sprintf("secrets/%d/%d/%d/%v", now.Year(), now.Month(), now.Day(), uuid.New())
}
