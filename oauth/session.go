package oauth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	jwtkit "github.com/soilmonitoring/phoenix-iam/jwt"
)

// SessionCookieName carries the signed login-session artifact between
// the authorize, login and consent steps.
const SessionCookieName = "signInId"

// SessionLifetime bounds how long a login/consent page may sit idle.
const SessionLifetime = 10 * time.Minute

// ErrInvalidSession reports a missing, tampered or expired artifact.
var ErrInvalidSession = errors.New("invalid sign-in session")

// Session binds the validated authorize parameters together for the
// rest of the flow. The client echoes it back as an opaque value; it is
// never parsed client-side.
type Session struct {
	ClientID      string
	Scope         string
	RedirectURI   string
	CodeChallenge string
	State         string
}

// SessionCodec signs sessions as compact tokens with the same pool keys
// the token issuer uses, so tampering is detectable.
type SessionCodec struct {
	issuer   *jwtkit.Issuer
	lifetime time.Duration
	now      func() time.Time
}

func NewSessionCodec(issuer *jwtkit.Issuer, lifetime time.Duration, now func() time.Time) *SessionCodec {
	if lifetime <= 0 {
		lifetime = SessionLifetime
	}
	if now == nil {
		now = time.Now
	}
	return &SessionCodec{issuer: issuer, lifetime: lifetime, now: now}
}

// Encode signs the session into the opaque cookie value.
func (c *SessionCodec) Encode(s Session) (string, error) {
	now := c.now()
	return c.issuer.SignClaims(jwt.MapClaims{
		"client_id":      s.ClientID,
		"scope":          s.Scope,
		"redirect_uri":   s.RedirectURI,
		"code_challenge": s.CodeChallenge,
		"state":          s.State,
		"iat":            now.Unix(),
		"nbf":            now.Unix(),
		"exp":            now.Add(c.lifetime).Unix(),
	})
}

// Decode verifies the cookie value and recovers the session. Every
// failure collapses to ErrInvalidSession.
func (c *SessionCodec) Decode(token string) (Session, error) {
	claims, err := c.issuer.Verify(token)
	if err != nil {
		return Session{}, ErrInvalidSession
	}
	s := Session{
		ClientID:      stringClaim(claims, "client_id"),
		Scope:         stringClaim(claims, "scope"),
		RedirectURI:   stringClaim(claims, "redirect_uri"),
		CodeChallenge: stringClaim(claims, "code_challenge"),
		State:         stringClaim(claims, "state"),
	}
	if s.ClientID == "" || s.RedirectURI == "" || s.CodeChallenge == "" {
		return Session{}, ErrInvalidSession
	}
	return s, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return v
}
