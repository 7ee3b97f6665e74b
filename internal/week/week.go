// Package week computes ISO-8601 week buckets. Week ids are stable and
// comparable as strings within a year, and every timestamp in one
// Monday-Sunday span maps to the same id.
package week

import (
	"fmt"
	"time"
)

// ID identifies one ISO-8601 calendar week.
type ID struct {
	Year int
	Week int
}

// FromTime returns the ISO week containing t. The week containing the year's
// first Thursday is week 1; weeks start on Monday.
func FromTime(t time.Time) ID {
	year, wk := t.UTC().ISOWeek()
	return ID{Year: year, Week: wk}
}

// String formats the id as "YYYY_Www", e.g. "2026_W35".
func (id ID) String() string {
	return fmt.Sprintf("%04d_W%02d", id.Year, id.Week)
}

// Parse reads an id back from its "YYYY_Www" string form.
func Parse(s string) (ID, error) {
	var id ID
	if _, err := fmt.Sscanf(s, "%4d_W%2d", &id.Year, &id.Week); err != nil {
		return ID{}, fmt.Errorf("parse week id %q: %w", s, err)
	}
	if id.Week < 1 || id.Week > 53 {
		return ID{}, fmt.Errorf("parse week id %q: week out of range", s)
	}
	return id, nil
}

// Bounds returns the Monday 00:00:00 UTC start and the end of the following
// Sunday for this week.
func (id ID) Bounds() (start, end time.Time) {
	// January 4th is always in ISO week 1.
	jan4 := time.Date(id.Year, time.January, 4, 0, 0, 0, 0, time.UTC)
	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	week1Monday := jan4.AddDate(0, 0, 1-weekday)
	start = week1Monday.AddDate(0, 0, (id.Week-1)*7)
	end = start.AddDate(0, 0, 7).Add(-time.Nanosecond)
	return start, end
}
