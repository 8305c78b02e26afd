package record_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/harulog/haru/internal/haru/record"
)

var idPattern = regexp.MustCompile(`^diary_\d{8}_\d{6}_[0-9a-f]{6}$`)

func TestNewIDFormat(t *testing.T) {
	id := record.NewID(time.Time{})
	if !idPattern.MatchString(id) {
		t.Errorf("id %q does not match diary_<YYYYMMDD>_<HHMMSS>_<6 hex>", id)
	}
}

func TestNewIDEncodesSuppliedDate(t *testing.T) {
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)
	id := record.NewID(date)

	if got := id[:14]; got != "diary_20240101" {
		t.Errorf("id prefix: got %q, want diary_20240101", got)
	}

	parsed, ok := record.DateOf(id)
	if !ok {
		t.Fatalf("DateOf(%q) failed", id)
	}
	if parsed.Format("20060102") != "20240101" {
		t.Errorf("DateOf: got %s, want 20240101", parsed.Format("20060102"))
	}
}

func TestNewIDDistinctSuffixes(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := record.NewID(time.Time{})
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}

func TestDateOfRejectsForeignIDs(t *testing.T) {
	for _, id := range []string{"", "note_20240101_120000_abc123", "diary_banana", "diary"} {
		if _, ok := record.DateOf(id); ok {
			t.Errorf("DateOf(%q) unexpectedly succeeded", id)
		}
	}
}
