package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"github.com/ironforge/athlete-api/internal/apperror"
)

// contextKey is unexported so only this package can read or write the
// identity stored in a request context.
type contextKey string

const claimsKey contextKey = "claims"

// RequireAuth verifies the session on every request and stores the caller's
// Claims in the request context. Failures stop the chain with 401.
func RequireAuth(sessions *SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := sessions.Verify(r)
			if err != nil {
				writeFailure(w, http.StatusUnauthorized, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireCSRF rejects unsafe cookie-session requests whose CSRF header does
// not match the CSRF cookie. It runs globally, before authentication.
func RequireCSRF(sessions *SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sessions.VerifyCSRF(r) {
				writeFailure(w, http.StatusForbidden, apperror.Forbidden(MsgCSRFFailed))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole allows the request through only when the authenticated role is
// one of roles. It must be mounted after RequireAuth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok || !slices.Contains(roles, claims.Role) {
				writeFailure(w, http.StatusForbidden, apperror.Forbidden("Insufficient permissions."))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithClaims returns a child context carrying the authenticated identity.
func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext returns the identity stored by RequireAuth.
// ok is false for anonymous requests.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsKey).(Claims)
	return c, ok && c.UserID != ""
}

// writeFailure writes the API's error envelope. Middleware in this package
// cannot import the handler package, so it carries its own tiny encoder.
func writeFailure(w http.ResponseWriter, status int, err error) {
	msg := http.StatusText(status)
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": msg})
}
