// Package store persists diary records across two tiers: a local
// per-owner file store and a remote SQL database.
//
// The consistency contract is deliberate and narrow: writes go to the local
// tier unconditionally and are then pushed to the remote tier, where
// failures are logged and swallowed; reads prefer the remote tier and fall
// back to the local copy on any remote failure. When the tiers diverge the
// remote copy wins whenever it is reachable (last-writer-wins). There is no
// reconciliation pass.
//
// Records are partitioned by owner in both tiers, so a cross-owner read is
// structurally impossible without an explicit owner argument.
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist for the given owner,
// or exists but belongs to someone else.
var ErrNotFound = errors.New("store: record not found")

// UserRecord is the profile row synced into the remote users table after a
// successful identity verification.
type UserRecord struct {
	ID          string
	Email       string
	DisplayName string
	AvatarURL   string
	LastLogin   time.Time
}
