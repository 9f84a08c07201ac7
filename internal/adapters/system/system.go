// Package system provides the clock and the static editor list used in
// production wiring.
package system

import (
	"context"
	"time"

	"github.com/example/bark/internal/ports/secondary"
)

// Clock reads the wall clock.
type Clock struct{}

// Now returns the current instant in UTC.
func (Clock) Now() time.Time { return time.Now().UTC() }

// EditorList grants the history-correction capability to a fixed set of actors.
type EditorList struct {
	editors map[string]struct{}
}

// NewEditorList creates an authorizer from configured actor IDs.
func NewEditorList(actors []string) *EditorList {
	m := make(map[string]struct{}, len(actors))
	for _, a := range actors {
		m[a] = struct{}{}
	}
	return &EditorList{editors: m}
}

// CanCorrectHistory reports whether actorID is a configured editor.
// An anonymous actor never is.
func (l *EditorList) CanCorrectHistory(ctx context.Context, actorID string) (bool, error) {
	if actorID == "" {
		return false, nil
	}
	_, ok := l.editors[actorID]
	return ok, nil
}

var (
	_ secondary.Clock      = Clock{}
	_ secondary.Authorizer = (*EditorList)(nil)
)
