package auth

import (
	"context"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleAgent    Role = "agent"
	RolePlayer   Role = "player"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOperator, RoleAgent, RolePlayer:
		return true
	}
	return false
}

// Identity is the caller as established by the bearer token.
type Identity struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	Role     Role
}

type identityKey struct{}

func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := IdentityFromContext(ctx)
	return id.UserID, ok
}
