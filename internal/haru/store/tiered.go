package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/harulog/haru/common/trace"
	"github.com/harulog/haru/internal/haru/record"
)

// Tiered is the store the rest of the service talks to. It composes the
// local file tier with an optional remote tier under the dual-write,
// remote-preferred contract described in the package comment.
//
// remote may be nil for a local-only deployment; every operation then
// degrades to the local tier without logging noise.
type Tiered struct {
	local  *Local
	remote Remote
}

// NewTiered composes the two tiers. remote may be nil.
func NewTiered(local *Local, remote Remote) *Tiered {
	return &Tiered{local: local, remote: remote}
}

// Create makes an empty record for the owner and persists it to both tiers.
func (t *Tiered) Create(ctx context.Context, owner, id string, createdAt time.Time) (*record.Record, error) {
	rec := record.New(id, owner, createdAt)
	if err := t.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Save writes the record locally first — that write must succeed — and then
// pushes it to the remote tier. A remote failure is logged and swallowed;
// the local state is not rolled back. No record-level locking exists:
// concurrent writers to the same record are last-writer-wins.
func (t *Tiered) Save(ctx context.Context, rec *record.Record) error {
	if err := t.local.Save(rec); err != nil {
		return err
	}
	if t.remote == nil {
		return nil
	}
	if err := t.remote.Upsert(ctx, rec); err != nil {
		slog.Warn("store: remote upsert failed, keeping local copy",
			"record", rec.ID, "trace_id", trace.FromContext(ctx), "err", err)
	}
	return nil
}

// Get prefers the remote copy; on any remote failure — unreachable, decode
// trouble, or not found upstream — it falls back to the local file. The
// remote copy wins whenever the remote answers.
func (t *Tiered) Get(ctx context.Context, owner, id string) (*record.Record, error) {
	if t.remote != nil {
		rec, err := t.remote.Get(ctx, owner, id)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, ErrNotFound) {
			slog.Debug("store: remote get failed, falling back to local",
				"record", id, "trace_id", trace.FromContext(ctx), "err", err)
		}
	}
	return t.local.Get(owner, id)
}

// Delete removes both copies. Success when at least one tier held the
// record; ErrNotFound when neither did. A remote transport failure counts
// as "not held" and is logged — the local removal is what the caller
// observes immediately.
func (t *Tiered) Delete(ctx context.Context, owner, id string) error {
	localErr := t.local.Delete(owner, id)
	if localErr != nil && !errors.Is(localErr, ErrNotFound) {
		return localErr
	}

	var remoteErr error = ErrNotFound
	if t.remote != nil {
		remoteErr = t.remote.Delete(ctx, owner, id)
		if remoteErr != nil && !errors.Is(remoteErr, ErrNotFound) {
			slog.Warn("store: remote delete failed",
				"record", id, "trace_id", trace.FromContext(ctx), "err", remoteErr)
		}
	}

	if localErr == nil || remoteErr == nil {
		return nil
	}
	return ErrNotFound
}

// List returns the owner's complete records, newest first, preferring the
// remote tier and falling back to the local files when it fails.
func (t *Tiered) List(ctx context.Context, owner string) ([]*record.Record, error) {
	if t.remote != nil {
		recs, err := t.remote.List(ctx, owner)
		if err == nil {
			return recs, nil
		}
		slog.Debug("store: remote list failed, falling back to local",
			"owner", owner, "trace_id", trace.FromContext(ctx), "err", err)
	}
	return t.local.List(owner)
}

// SyncUser forwards the profile row to the remote tier when one exists.
// Best-effort: errors are returned for the caller to log and ignore.
func (t *Tiered) SyncUser(ctx context.Context, u UserRecord) error {
	if t.remote == nil {
		return nil
	}
	return t.remote.SyncUser(ctx, u)
}
