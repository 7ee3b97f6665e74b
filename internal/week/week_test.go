package week

import (
	"testing"
	"time"
)

func TestFromTime_ISOBoundaries(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want ID
	}{
		{
			name: "midweek",
			t:    time.Date(2026, time.August, 28, 10, 30, 0, 0, time.UTC),
			want: ID{Year: 2026, Week: 35},
		},
		{
			name: "january 1 belongs to previous iso year",
			t:    time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC),
			want: ID{Year: 2026, Week: 53},
		},
		{
			name: "december 29 2025 starts week 1 of 2026",
			t:    time.Date(2025, time.December, 29, 0, 0, 0, 0, time.UTC),
			want: ID{Year: 2026, Week: 1},
		},
		{
			name: "first thursday anchors week 1",
			t:    time.Date(2026, time.January, 1, 12, 0, 0, 0, time.UTC),
			want: ID{Year: 2026, Week: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromTime(tt.t); got != tt.want {
				t.Errorf("FromTime(%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}

func TestFromTime_SameWeekSameID(t *testing.T) {
	// Every timestamp in one Monday-Sunday span buckets identically.
	monday := time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)
	want := FromTime(monday)

	for d := 0; d < 7; d++ {
		for _, hour := range []int{0, 9, 23} {
			ts := monday.AddDate(0, 0, d).Add(time.Duration(hour) * time.Hour)
			if got := FromTime(ts); got != want {
				t.Errorf("FromTime(%v) = %v, want %v", ts, got, want)
			}
		}
	}
}

func TestID_String(t *testing.T) {
	id := ID{Year: 2026, Week: 5}
	if got := id.String(); got != "2026_W05" {
		t.Errorf("String() = %q, want %q", got, "2026_W05")
	}
}

func TestParse_RoundTrip(t *testing.T) {
	for _, s := range []string{"2026_W01", "2026_W35", "2020_W53"} {
		id, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", s, err)
		}
		if id.String() != s {
			t.Errorf("Parse(%q).String() = %q", s, id.String())
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, s := range []string{"", "2026", "2026_W99", "garbage"} {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) expected error", s)
		}
	}
}

func TestBounds_MondayToSunday(t *testing.T) {
	id := ID{Year: 2026, Week: 35}
	start, end := id.Bounds()

	if start.Weekday() != time.Monday {
		t.Errorf("start weekday = %v, want Monday", start.Weekday())
	}
	if got := start.Format("2006-01-02"); got != "2026-08-24" {
		t.Errorf("start = %s, want 2026-08-24", got)
	}
	if end.Before(start) {
		t.Error("end before start")
	}
	if span := end.Sub(start); span >= 7*24*time.Hour {
		t.Errorf("span = %v, want < 7 days", span)
	}

	// The bounds are consistent with bucketing: both ends map back to the id.
	if FromTime(start) != id {
		t.Errorf("FromTime(start) = %v, want %v", FromTime(start), id)
	}
	if FromTime(end) != id {
		t.Errorf("FromTime(end) = %v, want %v", FromTime(end), id)
	}
}

func TestBounds_Week1SpansYearBoundary(t *testing.T) {
	start, _ := ID{Year: 2026, Week: 1}.Bounds()
	if got := start.Format("2006-01-02"); got != "2025-12-29" {
		t.Errorf("week 1 of 2026 starts %s, want 2025-12-29", got)
	}
}
