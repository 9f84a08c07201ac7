// Package cli provides CLI commands for the bark application.
package cli

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/example/bark/internal/ctxutil"
	"github.com/example/bark/internal/domain"
	"github.com/example/bark/internal/wire"
)

// globalActorID stores the actor for the current CLI invocation.
// Set by the root command's --actor flag; falls back to BARK_ACTOR.
var globalActorID string

// SetActorID overrides the actor recorded on ledger writes.
func SetActorID(id string) {
	globalActorID = id
}

// NewContext creates a context.Background() with the current actor ID embedded.
// CLI commands should use this instead of context.Background() directly.
func NewContext() context.Context {
	actor := globalActorID
	if actor == "" {
		actor = wire.Config().Actor
	}
	return ctxutil.WithActorID(context.Background(), actor)
}

// stdout is swapped in tests.
var stdout io.Writer = os.Stdout

// Exit codes returned by the bark binary.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitInvalid  = 2
	ExitNotFound = 3
	ExitDenied   = 4
	ExitConflict = 5
)

// ExitCode maps a command error onto a process exit code.
func ExitCode(err error) int {
	var verr *domain.ValidationError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &verr),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidPhase),
		errors.Is(err, domain.ErrInvalidWindow):
		return ExitInvalid
	case errors.Is(err, domain.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return ExitDenied
	case errors.Is(err, domain.ErrDuplicateCreation),
		errors.Is(err, domain.ErrMissingCreationRecord),
		errors.Is(err, domain.ErrOrderingViolation):
		return ExitConflict
	default:
		return ExitFailure
	}
}
