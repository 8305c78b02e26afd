// Package stats computes owner-scoped aggregates over complete diary
// records: emotion-tag frequencies, the newest diaries carrying media, and
// the distinct tag vocabulary. Listings from the store contain complete
// records only, so in-progress sessions never contribute.
package stats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/harulog/haru/internal/haru/record"
)

// Trailing window names.
const (
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

// ErrInvalidPeriod is returned for a period other than "week" or "month".
var ErrInvalidPeriod = errors.New("stats: period must be week or month")

// topTagLimit caps the emotion report to the most frequent tags.
const topTagLimit = 10

// Lister is the slice of the record store the aggregator reads from. The
// returned records are complete ones, ordered newest first.
type Lister interface {
	List(ctx context.Context, owner string) ([]*record.Record, error)
}

// TagCount is one tag's occurrence count within a window.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// EmotionReport summarises tag usage over a trailing window.
type EmotionReport struct {
	Period     string     `json:"period"`
	DiaryCount int        `json:"diary_count"`
	TopTags    []TagCount `json:"top_tags"`
	TotalTags  int        `json:"total_tags"`
}

// MediaReport points at the newest diaries in the window that carry media.
// Either field is nil when no diary qualifies.
type MediaReport struct {
	Period    string           `json:"period"`
	BestImage *record.ListItem `json:"best_image"`
	BestBGM   *record.ListItem `json:"best_bgm"`
}

// Aggregator computes the reports.
type Aggregator struct {
	lister Lister
	now    func() time.Time
}

// New builds an aggregator over the given store view.
func New(lister Lister) *Aggregator {
	return &Aggregator{lister: lister, now: time.Now}
}

func windowDays(period string) (int, error) {
	switch period {
	case PeriodWeek:
		return 7, nil
	case PeriodMonth:
		return 30, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
}

func (a *Aggregator) inWindow(ctx context.Context, owner, period string) ([]*record.Record, error) {
	days, err := windowDays(period)
	if err != nil {
		return nil, err
	}
	recs, err := a.lister.List(ctx, owner)
	if err != nil {
		return nil, err
	}
	cutoff := a.now().AddDate(0, 0, -days)
	var in []*record.Record
	for _, rec := range recs {
		if !rec.CreatedAt.Before(cutoff) {
			in = append(in, rec)
		}
	}
	return in, nil
}

// Emotions reports the top tags across the window's diaries.
func (a *Aggregator) Emotions(ctx context.Context, owner, period string) (*EmotionReport, error) {
	recs, err := a.inWindow(ctx, owner, period)
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}
	total := 0
	for _, rec := range recs {
		for _, tag := range rec.EmotionTags {
			counts[tag]++
			total++
		}
	}

	top := make([]TagCount, 0, len(counts))
	for tag, n := range counts {
		top = append(top, TagCount{Tag: tag, Count: n})
	}
	// Most frequent first; ties break alphabetically so output is stable.
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Tag < top[j].Tag
	})
	if len(top) > topTagLimit {
		top = top[:topTagLimit]
	}

	return &EmotionReport{
		Period:     period,
		DiaryCount: len(recs),
		TopTags:    top,
		TotalTags:  total,
	}, nil
}

// BestMedia returns the newest diary with images and the newest with a BGM
// track within the window. Listings arrive newest first, so the first match
// wins.
func (a *Aggregator) BestMedia(ctx context.Context, owner, period string) (*MediaReport, error) {
	recs, err := a.inWindow(ctx, owner, period)
	if err != nil {
		return nil, err
	}

	report := &MediaReport{Period: period}
	for _, rec := range recs {
		if report.BestImage == nil && len(rec.ImagePaths) > 0 {
			item := rec.Item()
			report.BestImage = &item
		}
		if report.BestBGM == nil && rec.BGMPath != "" {
			item := rec.Item()
			report.BestBGM = &item
		}
		if report.BestImage != nil && report.BestBGM != nil {
			break
		}
	}
	return report, nil
}

// AllTags returns the owner's distinct emotion tags, sorted.
func (a *Aggregator) AllTags(ctx context.Context, owner string) ([]string, error) {
	recs, err := a.lister.List(ctx, owner)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	for _, rec := range recs {
		for _, tag := range rec.EmotionTags {
			seen[tag] = struct{}{}
		}
	}
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags, nil
}
