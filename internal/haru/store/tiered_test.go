package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harulog/haru/internal/haru/record"
	"github.com/harulog/haru/internal/haru/store"
)

// brokenRemote fails every operation, standing in for an unreachable
// database.
type brokenRemote struct{}

var errRemoteDown = errors.New("remote unreachable")

func (brokenRemote) Ping(context.Context) error                          { return errRemoteDown }
func (brokenRemote) Upsert(context.Context, *record.Record) error        { return errRemoteDown }
func (brokenRemote) Get(context.Context, string, string) (*record.Record, error) {
	return nil, errRemoteDown
}
func (brokenRemote) Delete(context.Context, string, string) error { return errRemoteDown }
func (brokenRemote) List(context.Context, string) ([]*record.Record, error) {
	return nil, errRemoteDown
}
func (brokenRemote) SyncUser(context.Context, store.UserRecord) error { return errRemoteDown }
func (brokenRemote) Close() error                                     { return nil }

func newTestTiered(t *testing.T, remote store.Remote) *store.Tiered {
	t.Helper()
	return store.NewTiered(newTestLocal(t), remote)
}

func TestTieredSaveSurvivesRemoteFailure(t *testing.T) {
	ts := newTestTiered(t, brokenRemote{})
	ctx := context.Background()

	rec, err := ts.Create(ctx, "user_1", record.NewID(time.Time{}), time.Time{})
	if err != nil {
		t.Fatalf("Create with broken remote must still succeed locally: %v", err)
	}

	got, err := ts.Get(ctx, "user_1", rec.ID)
	if err != nil {
		t.Fatalf("Get must fall back to local copy: %v", err)
	}
	if got.ID != rec.ID {
		t.Errorf("got %s, want %s", got.ID, rec.ID)
	}
}

func TestTieredPrefersRemoteCopy(t *testing.T) {
	remote := newTestRemote(t)
	ts := newTestTiered(t, remote)
	ctx := context.Background()

	rec, err := ts.Create(ctx, "user_1", record.NewID(time.Time{}), time.Time{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Mutate only the remote copy; the divergent remote value must win.
	divergent := *rec
	divergent.Style = "pixel"
	if err := remote.Upsert(ctx, &divergent); err != nil {
		t.Fatalf("Upsert divergent: %v", err)
	}

	got, err := ts.Get(ctx, "user_1", rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Style != "pixel" {
		t.Errorf("remote copy must win when reachable: got style %q", got.Style)
	}
}

func TestTieredRemoteNotFoundFallsBackToLocal(t *testing.T) {
	remote := newTestRemote(t)
	local := newTestLocal(t)
	ts := store.NewTiered(local, remote)
	ctx := context.Background()

	// Record exists only locally (e.g. remote was down when it was written).
	rec := sampleRecord("user_1")
	if err := local.Save(rec); err != nil {
		t.Fatalf("local Save: %v", err)
	}

	got, err := ts.Get(ctx, "user_1", rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != rec.ID {
		t.Errorf("got %s, want %s", got.ID, rec.ID)
	}
}

func TestTieredDelete(t *testing.T) {
	remote := newTestRemote(t)
	ts := newTestTiered(t, remote)
	ctx := context.Background()

	rec, err := ts.Create(ctx, "user_1", record.NewID(time.Time{}), time.Time{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := ts.Delete(ctx, "user_1", rec.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := ts.Get(ctx, "user_1", rec.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("record must be gone from both tiers, got %v", err)
	}
	if err := ts.Delete(ctx, "user_1", rec.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("deleting a missing record: expected ErrNotFound, got %v", err)
	}
}

func TestTieredListFallsBackWhenRemoteDown(t *testing.T) {
	local := newTestLocal(t)
	ts := store.NewTiered(local, brokenRemote{})

	rec := sampleRecord("user_1")
	rec.SetSummary("요약", nil, "", "")
	if err := local.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	recs, err := ts.List(context.Background(), "user_1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("got %d records, want 1", len(recs))
	}
}

func TestTieredNilRemoteIsLocalOnly(t *testing.T) {
	ts := newTestTiered(t, nil)
	ctx := context.Background()

	rec, err := ts.Create(ctx, "user_1", record.NewID(time.Time{}), time.Time{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := ts.Get(ctx, "user_1", rec.ID); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := ts.SyncUser(ctx, store.UserRecord{ID: "user_1"}); err != nil {
		t.Fatalf("SyncUser on nil remote must be a no-op: %v", err)
	}
}
