// Package jwtkit issues and verifies the EdDSA-signed tokens handed to
// clients, and owns the signing-key pool they are verified against.
package jwtkit

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token defaults. The access-token lifetime doubles as the verification
// grace window for retired signing keys.
const (
	DefaultIssuer   = "urn:cot-app-sec:iam"
	DefaultLifetime = 1020 * time.Second
)

// DefaultAudiences lists the resource servers tokens are minted for.
func DefaultAudiences() []string {
	return []string{
		"urn:cot-app-sec:www",
		"urn:cot-app-sec:admin",
		"urn:cot-app-sec:api",
	}
}

// ErrInvalidToken covers every verification failure: wrong segment count,
// missing or unknown kid, bad signature, expired token. Callers get the one
// sentinel so nothing about the failure leaks to clients.
var ErrInvalidToken = errors.New("invalid token")

// Issuer builds and signs tokens with keys drawn from a KeyManager.
type Issuer struct {
	keys     *KeyManager
	issuer   string
	audience []string
	lifetime time.Duration
	now      func() time.Time
}

// IssuerConfig tunes an Issuer. Zero values fall back to the defaults above.
type IssuerConfig struct {
	Issuer   string
	Audience []string
	Lifetime time.Duration
	Now      func() time.Time
}

// NewIssuer builds an Issuer over the given key pool.
func NewIssuer(keys *KeyManager, cfg IssuerConfig) *Issuer {
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if len(cfg.Audience) == 0 {
		cfg.Audience = DefaultAudiences()
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = DefaultLifetime
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Issuer{
		keys:     keys,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		lifetime: cfg.Lifetime,
		now:      cfg.Now,
	}
}

// Lifetime reports the configured token lifetime.
func (i *Issuer) Lifetime() time.Duration { return i.lifetime }

// Issue signs an access or refresh token for the given tenant and subject.
// groups carries the subject's resolved role names.
func (i *Issuer) Issue(tenantID, subject, approvedScopes string, groups []string) (string, error) {
	now := i.now()
	if groups == nil {
		groups = []string{}
	}
	claims := jwt.MapClaims{
		"iss":       i.issuer,
		"aud":       i.audience,
		"tenant-id": tenantID,
		"sub":       subject,
		"upn":       subject,
		"scope":     approvedScopes,
		"groups":    groups,
		"iat":       now.Unix(),
		"nbf":       now.Unix(),
		"exp":       now.Add(i.lifetime).Unix(),
		"jti":       uuid.NewString(),
	}
	return i.SignClaims(claims)
}

// SignClaims signs an arbitrary claim set with the current pool key. Used
// for tokens and for the tamper-evident login session artifact.
func (i *Issuer) SignClaims(claims jwt.MapClaims) (string, error) {
	key, err := i.keys.CurrentSigningKey()
	if err != nil {
		return "", fmt.Errorf("obtain signing key: %w", err)
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = key.KID
	signed, err := tok.SignedString(key.Private)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the claim set. It fails
// closed: any structural, key-lookup, signature, or time failure comes back
// as ErrInvalidToken. Keys past their signing window but inside the
// verification grace window still verify.
func (i *Issuer) Verify(token string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(token, i.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (i *Issuer) keyFunc(t *jwt.Token) (any, error) {
	kid, ok := t.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, errors.New("missing kid header")
	}
	pub, ok := i.keys.KeyFor(kid)
	if !ok {
		return nil, fmt.Errorf("unknown kid %q", kid)
	}
	return pub, nil
}
