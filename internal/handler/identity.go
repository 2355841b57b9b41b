package handler

import (
	"context"
	"net/http"

	"github.com/farmlink/agritrade/internal/domain"
)

// Identity is the authenticated caller, as asserted by the upstream
// auth gateway through the X-User-Id and X-User-Role headers. The
// engine trusts these headers; authentication itself happens outside.
type Identity struct {
	UserID string
	Role   domain.Role
}

type identityKey struct{}

// identityRequired is middleware that extracts the caller identity from
// the request headers and rejects requests without a valid one.
func identityRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-Id")
		if userID == "" {
			WriteError(w, http.StatusUnauthorized, "unauthorized", "X-User-Id header is required")
			return
		}

		role := domain.Role(r.Header.Get("X-User-Role"))
		if role != domain.RoleFarmer && role != domain.RoleBuyer {
			WriteError(w, http.StatusUnauthorized, "unauthorized", "X-User-Role header must be farmer or buyer")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, Identity{UserID: userID, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// callerIdentity returns the identity attached by identityRequired.
// Handlers are only reachable through that middleware, so the value is
// always present.
func callerIdentity(r *http.Request) Identity {
	return r.Context().Value(identityKey{}).(Identity)
}
