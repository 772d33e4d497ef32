package deid

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no mapping set exists for an identifier.
	ErrNotFound = errors.New("mapping not found")

	// ErrDuplicateID is returned when a mapping set already exists for an
	// identifier. Mapping sets are written once and never updated.
	ErrDuplicateID = errors.New("mapping already exists for identifier")
)

// MappingRepository persists the placeholder-to-value entries for a record
// under its identifier. Implementations: in-memory (tests and dev),
// PostgreSQL, and bbolt for single-node deployments.
type MappingRepository interface {
	// Put stores the complete mapping set for id. The write is atomic:
	// either every entry is stored or none are. Returns ErrDuplicateID if
	// a set already exists for id.
	Put(ctx context.Context, id uuid.UUID, entries []MappingEntry) error

	// Get returns the mapping set for id, or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) ([]MappingEntry, error)

	// Delete removes the mapping set for id, or returns ErrNotFound.
	// After deletion the original values are unrecoverable.
	Delete(ctx context.Context, id uuid.UUID) error
}
