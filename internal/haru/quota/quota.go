// Package quota enforces the per-owner, per-calendar-day limit on completed
// diary entries.
//
// Only complete records (those with a summary) count; an owner can abandon
// any number of in-progress sessions without burning quota. The count is
// derived from the date embedded in each session identifier, not from
// created_at, so entries back-dated at session start land on the day the
// user chose.
package quota

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/harulog/haru/internal/haru/record"
)

// DailyLimit is the number of completed entries an owner may write per day.
const DailyLimit = 2

// ErrQuotaExceeded is returned by Reserve when the owner already has
// DailyLimit completed entries for the day.
var ErrQuotaExceeded = errors.New("quota: daily diary limit reached")

// Lister is the slice of the record store the gate needs: the owner's
// complete records.
type Lister interface {
	List(ctx context.Context, owner string) ([]*record.Record, error)
}

// Gate counts completed entries and serialises session starts.
//
// The count check alone is advisory: two concurrent session starts could
// both pass it. Reserve therefore holds a per-owner-per-day mutex across
// the check, closing the race within this process. Multi-process
// deployments still race; the limit stays best-effort there.
type Gate struct {
	recs  Lister
	limit int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a gate over the given record listing with the default limit.
func New(recs Lister) *Gate {
	return &Gate{recs: recs, limit: DailyLimit, locks: make(map[string]*sync.Mutex)}
}

// CountComplete returns the number of the owner's completed entries whose
// identifier encodes the given calendar date.
func (g *Gate) CountComplete(ctx context.Context, owner string, date time.Time) (int, error) {
	recs, err := g.recs.List(ctx, owner)
	if err != nil {
		return 0, err
	}
	day := date.Format("20060102")
	n := 0
	for _, rec := range recs {
		d, ok := record.DateOf(rec.ID)
		if !ok {
			continue
		}
		if d.Format("20060102") == day {
			n++
		}
	}
	return n, nil
}

// Reserve checks the quota for (owner, date) and, when allowed, returns a
// release function the caller must invoke once the new record has been
// persisted (or the start has failed). The owner-day lock is held until
// release, so concurrent starts for the same day serialise.
func (g *Gate) Reserve(ctx context.Context, owner string, date time.Time) (func(), error) {
	lock := g.dayLock(owner, date)
	lock.Lock()

	n, err := g.CountComplete(ctx, owner, date)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	if n >= g.limit {
		lock.Unlock()
		return nil, ErrQuotaExceeded
	}

	var once sync.Once
	return func() { once.Do(lock.Unlock) }, nil
}

func (g *Gate) dayLock(owner string, date time.Time) *sync.Mutex {
	key := owner + "|" + date.Format("20060102")
	g.mu.Lock()
	defer g.mu.Unlock()
	if l, ok := g.locks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	g.locks[key] = l
	return l
}
