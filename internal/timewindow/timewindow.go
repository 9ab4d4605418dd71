// Package timewindow holds the pure clock arithmetic the engagement engine
// relies on: minute-of-day window containment (with wraparound past
// midnight) and calendar day/week boundary detection for lazy counter
// resets.
package timewindow

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const MinutesPerDay = 24 * 60

// Minute returns the minute-of-day value for hh:mm.
func Minute(hh, mm int) int {
	return hh*60 + mm
}

// ParseClock parses "HH:MM" into a minute-of-day value.
func ParseClock(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	hh, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	mm, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("clock value %q out of range", s)
	}
	return Minute(hh, mm), nil
}

// FormatClock renders a minute-of-day value as "HH:MM".
func FormatClock(m int) string {
	m = ((m % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// MinuteOfDay returns the minute-of-day of t in its own location.
func MinuteOfDay(t time.Time) int {
	return Minute(t.Hour(), t.Minute())
}

// InRange reports whether current falls in [start, end), all minute-of-day
// values. When start >= end the window wraps past midnight: the test becomes
// current >= start OR current < end. Total on all inputs.
func InRange(current, start, end int) bool {
	if start < end {
		return current >= start && current < end
	}
	return current >= start || current < end
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// WeekRolledOver reports whether the week boundary was crossed between last
// and now: either the ISO week changed, or more than seven days elapsed.
// The elapsed-time arm covers long idle periods that land back in the same
// nominal week number.
func WeekRolledOver(last, now time.Time, loc *time.Location) bool {
	if now.Sub(last) > 7*24*time.Hour {
		return true
	}
	ly, lw := last.In(loc).ISOWeek()
	ny, nw := now.In(loc).ISOWeek()
	return ly != ny || lw != nw
}

// ResetDecision says which counter scopes are stale relative to now.
type ResetDecision struct {
	Daily  bool
	Weekly bool
}

// ResetElapsed is the single place that decides daily/weekly counter resets.
// Both the read and the write paths of the budget ledger call it so the two
// cannot drift.
func ResetElapsed(lastUpdated, now time.Time, loc *time.Location) ResetDecision {
	if lastUpdated.IsZero() {
		return ResetDecision{}
	}
	return ResetDecision{
		Daily:  !SameDay(lastUpdated, now, loc),
		Weekly: WeekRolledOver(lastUpdated, now, loc),
	}
}
