package record

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// idPrefix is shared by every session identifier so that IDs are
// recognisable in logs and file listings.
const idPrefix = "diary"

// NewID builds a session identifier of the form
// diary_<YYYYMMDD>_<HHMMSS>_<6 hex>. The date part comes from date (zero
// value = today); the time part is always the wall clock of generation. The
// random suffix gives ~16.7M distinct values per owner-second; uniqueness is
// not verified against existing records.
func NewID(date time.Time) string {
	now := time.Now()
	if date.IsZero() {
		date = now
	}
	u := uuid.New()
	suffix := hex.EncodeToString(u[:])[:6]
	return fmt.Sprintf("%s_%s_%s_%s", idPrefix, date.Format("20060102"), now.Format("150405"), suffix)
}

// DateOf extracts the calendar date embedded in a session identifier.
// The returned bool is false when id does not carry a parseable date.
func DateOf(id string) (time.Time, bool) {
	parts := strings.Split(id, "_")
	if len(parts) < 2 || parts[0] != idPrefix {
		return time.Time{}, false
	}
	d, err := time.Parse("20060102", parts[1])
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}
