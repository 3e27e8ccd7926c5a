package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type teamIDKey struct{}
type actorKey struct{}

type actor struct {
	role string
	id   string
}

// WithRequestID stores the inbound request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// WithTeamID stores the team the request is acting on.
func WithTeamID(ctx context.Context, teamID string) context.Context {
	teamID = strings.TrimSpace(teamID)
	if teamID == "" {
		return ctx
	}
	return context.WithValue(ctx, teamIDKey{}, teamID)
}

func TeamIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(teamIDKey{}).(string)
	return value
}

// WithActor stores the role and id of the caller for log enrichment only.
// Business decisions read the actor from explicit request structs.
func WithActor(ctx context.Context, role, id string) context.Context {
	role = strings.TrimSpace(role)
	id = strings.TrimSpace(id)
	if role == "" && id == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actor{role: role, id: id})
}

func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	value, ok := ctx.Value(actorKey{}).(actor)
	if !ok {
		return "", ""
	}
	return value.role, value.id
}
