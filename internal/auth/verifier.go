package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Verifier checks bearer tokens issued by the platform's auth service.
// The gateway does not mint tokens itself, it only verifies and forwards them.
type Verifier struct {
	Secret    []byte
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	now       func() time.Time
}

// WithNow overrides the clock, for tests.
func (v *Verifier) WithNow(now func() time.Time) {
	v.now = now
}

// Subject parses and validates the token, returning its subject claim.
func (v *Verifier) Subject(raw string) (string, error) {
	if len(v.Secret) == 0 {
		return "", errors.New("auth: verifier has no secret")
	}

	msg, err := jws.ParseString(raw)
	if err != nil {
		return "", fmt.Errorf("auth: parse token: %w", err)
	}
	for _, sig := range msg.Signatures() {
		if alg := sig.ProtectedHeaders().Algorithm(); alg != jwa.HS256 {
			return "", fmt.Errorf("auth: unexpected token algorithm %s", alg)
		}
	}

	tok, err := jwt.ParseString(raw, jwt.WithKey(jwa.HS256, v.Secret), jwt.WithValidate(false))
	if err != nil {
		return "", fmt.Errorf("auth: verify token: %w", err)
	}

	now := time.Now()
	if v.now != nil {
		now = v.now()
	}
	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
	}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		options = append(options, jwt.WithAudience(v.Audience))
	}
	if err := jwt.Validate(tok, options...); err != nil {
		return "", fmt.Errorf("auth: validate token: %w", err)
	}
	return tok.Subject(), nil
}
