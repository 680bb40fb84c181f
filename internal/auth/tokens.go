package auth

import (
	"context"

	"github.com/haln-dev/glowcart/internal/common"
)

// TokenSource yields a bearer token to attach to upstream platform calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource always returns the same service token.
type StaticTokenSource string

func (s StaticTokenSource) Token(context.Context) (string, error) {
	return string(s), nil
}

// ContextTokenSource forwards the caller's own bearer token, so upstream
// services see the shopper's identity rather than a shared service account.
type ContextTokenSource struct {
	// Fallback is used when the request context carries no token.
	Fallback string
}

func (c ContextTokenSource) Token(ctx context.Context) (string, error) {
	if token, ok := common.Bearer(ctx); ok && token != "" {
		return token, nil
	}
	return c.Fallback, nil
}
