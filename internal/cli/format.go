package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"

	"github.com/example/bark/internal/core/cycletime"
	"github.com/example/bark/internal/domain"
)

var (
	phaseColor = color.New(color.FgCyan)
	valueColor = color.New(color.FgGreen)
	mutedColor = color.New(color.Faint)
)

// noData marks an average with no contributing jobs.
const noData = "n/a"

// formatDays renders an average as fractional days.
func formatDays(d *time.Duration) string {
	if d == nil {
		return mutedColor.Sprint(noData)
	}
	return valueColor.Sprintf("%.2f days", cycletime.Days(*d))
}

// formatDuration renders a stored record duration.
func formatDuration(d *time.Duration) string {
	if d == nil {
		return "-"
	}
	return d.Round(time.Minute).String()
}

func formatCounter(n *int) string {
	if n == nil {
		return "-"
	}
	return strconv.Itoa(*n)
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(loc).Format("2006-01-02 15:04")
}

// timestampLayouts are accepted by `bark job correct`, most specific first.
// Layouts without a zone are read in the configured location.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTimestamp reads a user-supplied timestamp.
func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &domain.ValidationError{
		Field:   "timestamp",
		Message: fmt.Sprintf("%q is not a timestamp (use RFC 3339 or YYYY-MM-DD HH:MM)", s),
	}
}
