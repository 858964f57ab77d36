// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/planetforge/engine/internal/adapters/identity"
)

// callerKey carries the authenticated user id through the request context.
type callerKey struct{}

// AuthMiddleware rejects requests without a valid bearer credential and
// stashes the authenticated user id for the handler.
func AuthMiddleware(provider identity.Provider, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		userID, err := provider.Authenticate(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated", nil)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, userID)))
	}
}

// callerID returns the authenticated user id set by AuthMiddleware.
func callerID(ctx context.Context) string {
	id, _ := ctx.Value(callerKey{}).(string)
	return id
}
