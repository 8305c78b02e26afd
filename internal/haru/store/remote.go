package store

import (
	"context"

	"github.com/harulog/haru/internal/haru/record"
)

// Remote is the narrow interface to the authoritative diary database. In
// production it is backed by SQL (see NewSQLRemote); tests substitute fakes.
//
// Implementations must be safe for concurrent use and must scope every
// operation to the given owner.
type Remote interface {
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Upsert inserts or replaces the record keyed by (owner, id).
	Upsert(ctx context.Context, rec *record.Record) error

	// Get returns the record for (owner, id) or ErrNotFound.
	Get(ctx context.Context, owner, id string) (*record.Record, error)

	// Delete removes the record for (owner, id). Returns ErrNotFound when no
	// row existed.
	Delete(ctx context.Context, owner, id string) error

	// List returns the owner's complete records, newest first.
	List(ctx context.Context, owner string) ([]*record.Record, error)

	// SyncUser upserts the caller's profile row. Best-effort bookkeeping;
	// diary operations never depend on it.
	SyncUser(ctx context.Context, u UserRecord) error

	// Close releases the backend connection.
	Close() error
}
