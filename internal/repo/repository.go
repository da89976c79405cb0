package repo

import (
	"context"
	"errors"
)

// KindChecks is the partition holding check definitions.
const KindChecks = "checks"

var (
	ErrNotFound = errors.New("record not found")
	ErrExists   = errors.New("record already exists")
)

// Record is an untyped stored document. Values follow JSON decoding rules
// (numbers may arrive as float64) unless the backend keeps native types.
type Record map[string]any

// Clone returns a shallow copy so callers can mutate top-level fields.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Ports (interfaces); swap in any backend.
type RecordStore interface {
	List(ctx context.Context, kind string) ([]string, error)
	// Read returns ErrNotFound (possibly wrapped) for unknown ids.
	Read(ctx context.Context, kind, id string) (Record, error)
	// Update replaces an existing record; missing ids yield ErrNotFound.
	Update(ctx context.Context, kind, id string, rec Record) error
}

// Writer is implemented by stores that can create records (seeding, import).
type Writer interface {
	// Create fails with ErrExists when the id is taken.
	Create(ctx context.Context, kind, id string, rec Record) error
}
