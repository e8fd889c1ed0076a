package auth

import (
	"chat-relay/errors"
	"context"
	"net/http"
	"strings"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	RolesKey  contextKey = "roles"
)

// TokenFromRequest reads "Authorization: Bearer <token>", falling back to the "token" query
// parameter since browsers can't set headers on a websocket handshake.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// Authenticate validates the request token and returns a context carrying the user identity.
func (t *Tokens) Authenticate(r *http.Request) (context.Context, error) {
	raw := TokenFromRequest(r)
	if raw == "" {
		return nil, errors.ErrUnauthorized
	}
	claims, err := t.Validate(raw)
	if err != nil {
		return nil, errors.ErrUnauthorized
	}
	ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
	return context.WithValue(ctx, RolesKey, claims.Roles), nil
}

// Middleware rejects requests without a valid token with 401.
func (t *Tokens) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := t.Authenticate(r)
		if err != nil {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok && id != ""
}
