package auth

import (
	"context"

	"github.com/hackgods/emr-backend/internal/access"
)

type contextKey string

const actorKey contextKey = "actor"

func WithActor(ctx context.Context, actor access.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFrom returns the authenticated actor stored by WithActor.
func ActorFrom(ctx context.Context) (access.Actor, bool) {
	a, ok := ctx.Value(actorKey).(access.Actor)
	return a, ok
}
