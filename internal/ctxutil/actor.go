// Package ctxutil carries the acting user through a request.
// It has no internal dependencies so any layer may import it.
package ctxutil

import (
	"context"
	"strings"
)

type actorKey struct{}

// WithActorID returns a context recording who performs the operation.
// Blank IDs are ignored.
func WithActorID(ctx context.Context, actorID string) context.Context {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actorID)
}

// ActorFromContext returns the actor ID from context, or empty string if not set.
func ActorFromContext(ctx context.Context) string {
	id, _ := ctx.Value(actorKey{}).(string)
	return id
}
