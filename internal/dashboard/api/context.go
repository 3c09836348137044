// Package api implements the JSON handlers of the driver dashboard.
package api

import (
	"context"
	"net/http"
)

type contextKey string

const contextKeyIdentity contextKey = "identity"

// Identity is the authenticated driver behind a request.
type Identity struct {
	DriverID  string
	Email     string
	SessionID string
}

// WithIdentity returns ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, id)
}

// IdentityFromContext extracts the authenticated driver.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKeyIdentity).(Identity)
	return id, ok && id.DriverID != ""
}

// requireIdentity writes a 401 and returns false when the request is
// unauthenticated.
func requireIdentity(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
	}
	return id, ok
}
