package timewindow

import (
	"testing"
	"time"
)

func mustClock(t *testing.T, s string) int {
	t.Helper()
	m, err := ParseClock(s)
	if err != nil {
		t.Fatalf("ParseClock(%q): %v", s, err)
	}
	return m
}

func TestInRange(t *testing.T) {
	cases := []struct {
		name    string
		current string
		start   string
		end     string
		want    bool
	}{
		{name: "wrap_inside_after_midnight", current: "02:00", start: "23:30", end: "08:00", want: true},
		{name: "wrap_inside_before_midnight", current: "23:45", start: "23:30", end: "08:00", want: true},
		{name: "wrap_outside", current: "10:00", start: "23:30", end: "08:00", want: false},
		{name: "plain_inside", current: "10:00", start: "08:00", end: "23:30", want: true},
		{name: "plain_outside", current: "07:59", start: "08:00", end: "23:30", want: false},
		{name: "start_inclusive", current: "08:00", start: "08:00", end: "23:30", want: true},
		{name: "end_exclusive", current: "23:30", start: "08:00", end: "23:30", want: false},
		{name: "wrap_end_exclusive", current: "08:00", start: "23:30", end: "08:00", want: false},
		{name: "degenerate_full_day", current: "12:00", start: "00:00", end: "00:00", want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := InRange(mustClock(t, tc.current), mustClock(t, tc.start), mustClock(t, tc.end))
			if got != tc.want {
				t.Fatalf("InRange(%s, %s, %s)=%v, want %v", tc.current, tc.start, tc.end, got, tc.want)
			}
		})
	}
}

func TestParseClockRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "8", "25:00", "08:60", "ab:cd", "-1:00"} {
		if _, err := ParseClock(s); err == nil {
			t.Fatalf("ParseClock(%q) accepted invalid input", s)
		}
	}
}

func TestFormatClock(t *testing.T) {
	if got := FormatClock(Minute(23, 30)); got != "23:30" {
		t.Fatalf("FormatClock(23:30)=%q", got)
	}
	if got := FormatClock(Minute(8, 0)); got != "08:00" {
		t.Fatalf("FormatClock(08:00)=%q", got)
	}
}

func TestResetElapsed(t *testing.T) {
	loc := time.UTC
	base := time.Date(2025, 3, 12, 15, 0, 0, 0, loc) // Wednesday

	cases := []struct {
		name   string
		last   time.Time
		now    time.Time
		daily  bool
		weekly bool
	}{
		{name: "same_moment", last: base, now: base},
		{name: "same_day", last: base, now: base.Add(8 * time.Hour)},
		{name: "next_day_same_week", last: base, now: base.Add(24 * time.Hour), daily: true},
		{name: "week_rollover_sunday_to_monday", last: time.Date(2025, 3, 16, 23, 0, 0, 0, loc), now: time.Date(2025, 3, 17, 1, 0, 0, 0, loc), daily: true, weekly: true},
		{name: "long_idle_same_week_number", last: base, now: base.AddDate(0, 0, 364), daily: true, weekly: true},
		{name: "eight_days_elapsed", last: base, now: base.Add(8 * 24 * time.Hour), daily: true, weekly: true},
		{name: "zero_last_updated", last: time.Time{}, now: base},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResetElapsed(tc.last, tc.now, loc)
			if got.Daily != tc.daily || got.Weekly != tc.weekly {
				t.Fatalf("ResetElapsed=%+v, want daily=%v weekly=%v", got, tc.daily, tc.weekly)
			}
		})
	}
}

func TestSameDayRespectsLocation(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 17:00 UTC and 23:00 UTC are the same UTC day but straddle midnight in Shanghai.
	a := time.Date(2025, 3, 12, 14, 0, 0, 0, time.UTC)
	b := time.Date(2025, 3, 12, 17, 0, 0, 0, time.UTC)
	if SameDay(a, b, loc) {
		t.Fatal("expected different local days in Asia/Shanghai")
	}
	if !SameDay(a, b, time.UTC) {
		t.Fatal("expected same day in UTC")
	}
}
