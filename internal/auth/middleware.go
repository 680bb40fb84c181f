package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/haln-dev/glowcart/internal/common"
)

var errNoToken = errors.New("auth: token missing")

// Middleware captures the caller's bearer token for upstream forwarding and,
// when a Verifier is configured, attaches the verified user id to the context.
type Middleware struct {
	Verifier *Verifier
}

// Capture stores the bearer token on the context without rejecting anything.
// Routes that merely proxy upstream data let the platform do the rejecting.
func (m Middleware) Capture(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticateRequest(r)
		if err != nil && !errors.Is(err, errNoToken) {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects requests without a valid bearer token.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticateRequest(r)
		if err != nil {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) authenticateRequest(r *http.Request) (context.Context, error) {
	token := extractBearer(r)
	if token == "" {
		return r.Context(), errNoToken
	}
	ctx := common.WithBearer(r.Context(), token)
	if m.Verifier == nil {
		return ctx, nil
	}
	subject, err := m.Verifier.Subject(token)
	if err != nil {
		return r.Context(), err
	}
	return common.WithUserID(ctx, subject), nil
}

func extractBearer(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
