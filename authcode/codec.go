// Package authcode encodes and validates the opaque, single-logical-use
// authorization code exchanged for tokens.
//
// A code looks like
//
//	urn:phoenix:code.<random-id>.<base64url(payload-json)>.<base64url(ciphertext||nonce)>
//
// The fourth segment is the client's original PKCE code challenge, sealed
// with ChaCha20-Poly1305 under a process-scoped key. The key exists to keep
// the challenge opaque and tamper-evident while the code round-trips through
// the user's browser, not to hide anything from this server. Codes issued
// before a restart therefore stop decoding after one; they only live two
// minutes, so that is acceptable.
package authcode

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"
)

// Prefix marks the first segment of every authorization code.
const Prefix = "urn:phoenix:code"

const (
	separator  = "."
	defaultTTL = 2 * time.Minute
)

var (
	// ErrMalformed reports a structurally broken or tampered code:
	// wrong segment count, bad base64, failed AEAD open, bad payload JSON.
	ErrMalformed = errors.New("malformed authorization code")

	// ErrVerifierMismatch reports a well-formed code whose sealed challenge
	// does not match the presented verifier. Deliberately distinct from
	// ErrMalformed so the token endpoint can answer precisely.
	ErrVerifierMismatch = errors.New("code verifier does not match the code challenge")
)

// Payload is the plaintext portion of an authorization code.
type Payload struct {
	TenantName     string `json:"tenantName"`
	Username       string `json:"identityUsername"`
	ApprovedScopes string `json:"approvedScopes"`
	ExpirationDate int64  `json:"expirationDate"`
	RedirectURI    string `json:"redirectUri"`
}

// Expired reports whether the payload's embedded expiration has passed.
// The codec never checks this itself; callers must reject expired payloads.
func (p Payload) Expired(now time.Time) bool {
	return now.Unix() > p.ExpirationDate
}

// Codec seals and opens authorization codes with a process-scoped key.
type Codec struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
	ttl time.Duration
	now func() time.Time
}

// CodecConfig tunes code lifetime and the clock. Zero values use the
// 2-minute default and wall time.
type CodecConfig struct {
	TTL time.Duration
	Now func() time.Time
}

// NewCodec generates a fresh symmetric key and builds a codec.
func NewCodec(cfg CodecConfig) (*Codec, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate code key: %w", err)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("init chacha20-poly1305: %w", err)
	}
	return &Codec{aead: aead, ttl: cfg.TTL, now: cfg.Now}, nil
}

// Encode issues a code binding the request's identity, tenant, scopes and
// redirect URI to the client's PKCE challenge. A fresh nonce is drawn per
// call and appended after the ciphertext.
func (c *Codec) Encode(tenantName, username, approvedScopes, redirectURI, codeChallenge string) (string, error) {
	payload := Payload{
		TenantName:     tenantName,
		Username:       username,
		ApprovedScopes: approvedScopes,
		ExpirationDate: c.now().Add(c.ttl).Unix(),
		RedirectURI:    redirectURI,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal code payload: %w", err)
	}
	payloadB64 := base64.RawURLEncoding.EncodeToString(raw)

	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate code nonce: %w", err)
	}
	sealed := c.aead.Seal(nil, nonce, []byte(codeChallenge), nil)
	sealed = append(sealed, nonce...)
	challengeB64 := base64.RawURLEncoding.EncodeToString(sealed)

	return Prefix + separator + uuid.NewString() + separator + payloadB64 + separator + challengeB64, nil
}

// Decode opens a code against the presented verifier. The stored challenge
// must equal base64url(SHA-256(verifier)) byte for byte. Expiration is NOT
// checked here.
func (c *Codec) Decode(code, codeVerifier string) (Payload, error) {
	parts := strings.Split(code, separator)
	if len(parts) != 4 || parts[0] != Prefix {
		return Payload{}, ErrMalformed
	}

	sealed, err := base64.RawURLEncoding.DecodeString(parts[3])
	if err != nil || len(sealed) <= chacha20poly1305.NonceSize {
		return Payload{}, ErrMalformed
	}
	split := len(sealed) - chacha20poly1305.NonceSize
	ciphertext, nonce := sealed[:split], sealed[split:]
	stored, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return Payload{}, ErrMalformed
	}

	computed := ComputeChallenge(codeVerifier)
	if subtle.ConstantTimeCompare(stored, []byte(computed)) != 1 {
		return Payload{}, ErrVerifierMismatch
	}

	raw, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return Payload{}, ErrMalformed
	}
	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Payload{}, ErrMalformed
	}
	return payload, nil
}

// ID extracts the random identifier segment of a code, used by the
// consumption store to enforce single use.
func ID(code string) (string, error) {
	parts := strings.Split(code, separator)
	if len(parts) != 4 || parts[0] != Prefix || parts[1] == "" {
		return "", ErrMalformed
	}
	return parts[1], nil
}

// ComputeChallenge derives the S256 code challenge for a verifier.
func ComputeChallenge(codeVerifier string) string {
	sum := sha256.Sum256([]byte(codeVerifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
