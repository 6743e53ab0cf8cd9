package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/sppg-platform/budget-engine/internal/tenancy"
	"github.com/sppg-platform/budget-engine/pkg/enums"
)

type contextKey string

const (
	ctxUserID   contextKey = "user_id"
	ctxRole     contextKey = "actor_role"
	ctxTenantID contextKey = "tenant_id"
)

func UserIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxUserID)
}

func RoleFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxRole)
}

func TenantIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxTenantID)
}

// ActorFromContext rebuilds the authenticated actor. Missing or malformed
// values come back as zero fields, which tenancy.Actor.Validate rejects.
func ActorFromContext(ctx context.Context) tenancy.Actor {
	var actor tenancy.Actor
	if id, err := uuid.Parse(UserIDFromContext(ctx)); err == nil {
		actor.UserID = id
	}
	if id, err := uuid.Parse(TenantIDFromContext(ctx)); err == nil {
		actor.TenantID = id
	}
	actor.Role = enums.MemberRole(RoleFromContext(ctx))
	return actor
}

// WithActor seeds the context with an actor, as Auth does after verifying a token.
func WithActor(ctx context.Context, actor tenancy.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, actor.UserID.String())
	ctx = context.WithValue(ctx, ctxRole, string(actor.Role))
	if actor.TenantID != uuid.Nil {
		ctx = context.WithValue(ctx, ctxTenantID, actor.TenantID.String())
	}
	return ctx
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
