package cli

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/bark/internal/domain"
)

func TestParseTimestamp(t *testing.T) {
	manila := time.FixedZone("PHT", 8*3600)

	tests := []struct {
		input string
		want  time.Time
	}{
		{"2025-03-04T10:00:00Z", time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)},
		{"2025-03-04 10:00", time.Date(2025, 3, 4, 10, 0, 0, 0, manila)},
		{"2025-03-04 10:00:30", time.Date(2025, 3, 4, 10, 0, 30, 0, manila)},
		{"2025-03-04", time.Date(2025, 3, 4, 0, 0, 0, 0, manila)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseTimestamp(tt.input, manila)
			if err != nil {
				t.Fatalf("parseTimestamp failed: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	_, err := parseTimestamp("yesterday", manila)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "timestamp" {
		t.Errorf("err = %v, want timestamp ValidationError", err)
	}
}

func TestFormatDays(t *testing.T) {
	if got := formatDays(nil); got != noData {
		t.Errorf("formatDays(nil) = %q", got)
	}
	if got := formatDays(durPtr(36 * time.Hour)); got != "1.50 days" {
		t.Errorf("formatDays(36h) = %q", got)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{errors.New("disk full"), ExitFailure},
		{domain.ErrInvalidWindow, ExitInvalid},
		{&domain.ValidationError{Field: "amount", Message: "must be >= 0"}, ExitInvalid},
		{domain.ErrMissingCreationRecord, ExitConflict},
		{domain.ErrDuplicateCreation, ExitConflict},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestPrintPhases(t *testing.T) {
	var b strings.Builder
	if err := printPhases(&b); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.String(), "APPROVAL_ESTIMATE_DONE *") {
		t.Errorf("default phase not marked: %q", b.String())
	}
}
