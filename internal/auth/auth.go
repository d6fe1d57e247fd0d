// Package auth validates the opaque API keys presented on HTTP ingress.
// The credential is a signed bearer token (spec.md §6: "opaque API key
// validated against a configured allowlist"); clients only ever see an
// opaque string, but internally it's a JWT whose key ID (kid) must be on
// a configured allowlist, so one client's credential can be revoked by
// removing its kid from the allowlist without changing the signing key.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidCredential is returned for any malformed, unsigned, expired,
// or otherwise unverifiable token.
var ErrInvalidCredential = errors.New("auth: invalid credential")

// ErrKeyNotAllowed is returned when the token's kid is not on the
// configured allowlist.
var ErrKeyNotAllowed = errors.New("auth: key id not allowed")

// Config configures an Authenticator.
type Config struct {
	// SigningKey is the HMAC key every accepted token must be signed with.
	SigningKey []byte

	// AllowedKeyIDs is the allowlist of token kid header values.
	AllowedKeyIDs []string
}

// Authenticator validates bearer tokens against a signing key and a kid allowlist.
type Authenticator struct {
	signingKey []byte
	allowed    map[string]struct{}
}

// New constructs an Authenticator.
func New(cfg Config) *Authenticator {
	allowed := make(map[string]struct{}, len(cfg.AllowedKeyIDs))
	for _, kid := range cfg.AllowedKeyIDs {
		allowed[kid] = struct{}{}
	}
	return &Authenticator{signingKey: cfg.SigningKey, allowed: allowed}
}

// Validate parses and verifies token, returning its key id on success.
func (a *Authenticator) Validate(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		kid, _ := t.Header["kid"].(string)
		if _, ok := a.allowed[kid]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrKeyNotAllowed, kid)
		}
		return a.signingKey, nil
	})
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}

	kid, _ := parsed.Header["kid"].(string)
	return kid, nil
}
