// Package middleware provides HTTP middleware for the local API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/jonathan/apply-agent/internal/auth"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// claimsKey is the context key for the validated token claims.
const claimsKey ContextKey = "claims"

// TokenValidator validates bearer tokens. *auth.Signer implements it.
type TokenValidator interface {
	Validate(tokenString string) (*auth.Claims, error)
}

// RequireBearer rejects requests without a valid bearer token. Paths listed in
// exempt are passed through. A nil validator disables the check.
func RequireBearer(v TokenValidator, exempt ...string) func(http.Handler) http.Handler {
	skip := make(map[string]bool, len(exempt))
	for _, p := range exempt {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		if v == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			claims, err := v.Validate(token)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from an Authorization header value.
// The "Bearer" prefix is case-insensitive.
func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="apply-agent"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// ClaimsFrom returns the token claims stored by RequireBearer.
func ClaimsFrom(r *http.Request) (*auth.Claims, bool) {
	claims, ok := r.Context().Value(claimsKey).(*auth.Claims)
	return claims, ok
}
