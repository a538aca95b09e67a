package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/josh-kwaku/betting-ledger/internal/auth"
	"github.com/josh-kwaku/betting-ledger/internal/domain"
)

func caller(r *http.Request) (auth.Identity, *AppError) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return auth.Identity{}, ErrMissingToken
	}
	return id, nil
}

func isStaff(id auth.Identity) bool {
	return id.Role == auth.RoleAdmin || id.Role == auth.RoleOperator
}

// canSee reports whether the caller may read a resource of tenantID owned by
// ownerID. Staff see their whole tenant; everyone else only their own things.
// Anything out of reach answers 404 so ids are not probed.
func canSee(id auth.Identity, tenantID, ownerID uuid.UUID) bool {
	if tenantID != id.TenantID {
		return false
	}
	return isStaff(id) || ownerID == id.UserID
}

func canSeeWallet(id auth.Identity, w *domain.Wallet) bool {
	return canSee(id, w.TenantID, w.OwnerID)
}
