// Package cycletime is the pure aggregation engine behind cycle-time analytics.
// It knows nothing about storage: callers hand it first-occurrence projections
// (or raw ledger entries) and it pairs, filters, averages and buckets them.
package cycletime

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/bark/internal/core/ledger"
	"github.com/example/bark/internal/domain"
)

// Window is an inclusive calendar date range interpreted in Loc.
type Window struct {
	From ledger.Date
	To   ledger.Date
	Loc  *time.Location
}

// NewWindow validates that to is not before from.
func NewWindow(from, to ledger.Date, loc *time.Location) (Window, error) {
	if to.Before(from) {
		return Window{}, fmt.Errorf("%w: end %s is before start %s", domain.ErrInvalidWindow, to, from)
	}
	if loc == nil {
		loc = time.UTC
	}
	return Window{From: from, To: to, Loc: loc}, nil
}

// Trailing returns the n-day window ending on today.
func Trailing(today ledger.Date, n int, loc *time.Location) Window {
	if n < 1 {
		n = 1
	}
	w, _ := NewWindow(today.AddDays(-(n - 1)), today, loc)
	return w
}

// Range presets accepted by ResolvePreset.
const (
	PresetToday    = "today"
	PresetWeek     = "7d"
	PresetMonth    = "month"
	PresetTrailing = "30d"
)

// ResolvePreset turns a named range into a window around today.
// "7d" is the Monday-Sunday week containing today; "month" is the calendar month.
func ResolvePreset(name string, today ledger.Date, loc *time.Location, trailingDays int) (Window, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PresetToday:
		return NewWindow(today, today, loc)
	case PresetWeek:
		offset := (int(today.Weekday()) + 6) % 7
		monday := today.AddDays(-offset)
		return NewWindow(monday, monday.AddDays(6), loc)
	case PresetMonth:
		first := ledger.Date{Year: today.Year, Month: today.Month, Day: 1}
		next := ledger.DateOf(time.Date(today.Year, today.Month+1, 1, 12, 0, 0, 0, time.UTC), time.UTC)
		return NewWindow(first, next.AddDays(-1), loc)
	case "", PresetTrailing:
		return Trailing(today, trailingDays, loc), nil
	default:
		return Window{}, fmt.Errorf("%w: unknown range %q", domain.ErrInvalidWindow, name)
	}
}

// Days returns the number of calendar days in the window.
func (w Window) Days() int {
	return w.From.DaysUntil(w.To) + 1
}

// Dates returns every day of the window in order.
func (w Window) Dates() []ledger.Date {
	out := make([]ledger.Date, 0, w.Days())
	for d := w.From; !d.After(w.To); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}

// Bounds returns the window as a half-open instant range [start, end).
func (w Window) Bounds() (start, end time.Time) {
	return w.From.Start(w.location()), w.To.AddDays(1).Start(w.location())
}

// Contains reports whether t falls on a day of the window.
func (w Window) Contains(t time.Time) bool {
	d := ledger.DateOf(t, w.location())
	return !d.Before(w.From) && !d.After(w.To)
}

func (w Window) location() *time.Location {
	if w.Loc == nil {
		return time.UTC
	}
	return w.Loc
}

func (w Window) String() string {
	return w.From.String() + ".." + w.To.String()
}
