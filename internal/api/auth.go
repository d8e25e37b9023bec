// Package api is the authenticated HTTP surface (component G): request
// handling, ownership enforcement, and the per-request envelope that
// streams decrypted artifacts back under a fresh session key.
package api

import (
	"context"
	"net/http"
	"strings"
)

// IdentityVerifier turns a bearer token into a stable user identifier.
// The identity provider itself is out of scope; this is the integration
// seam a real deployment plugs a production IDP client into.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (userID string, err error)
}

// StaticTokenVerifier is a development/test IdentityVerifier backed by a
// fixed token → user id map.
type StaticTokenVerifier struct {
	tokens map[string]string
}

// NewStaticTokenVerifier builds a StaticTokenVerifier from a token → user
// id map.
func NewStaticTokenVerifier(tokens map[string]string) *StaticTokenVerifier {
	return &StaticTokenVerifier{tokens: tokens}
}

// Verify implements IdentityVerifier.
func (v *StaticTokenVerifier) Verify(_ context.Context, token string) (string, error) {
	userID, ok := v.tokens[token]
	if !ok {
		return "", errUnauthorized
	}
	return userID, nil
}

type contextKey string

const userIDContextKey contextKey = "user_id"

// withAuth extracts and verifies the bearer token, storing the resolved
// user id in the request context for downstream handlers.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			writeError(w, http.StatusUnauthorized, "missing or malformed Authorization header")
			return
		}
		token := strings.TrimPrefix(header, prefix)

		userID, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userIDFromContext returns the authenticated user id set by withAuth.
func userIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDContextKey).(string)
	return userID
}
