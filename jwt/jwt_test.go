package jwtkit

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestIssuer(t *testing.T, clock *fakeClock) (*Issuer, *KeyManager) {
	t.Helper()
	cfg := KeyConfig{}
	icfg := IssuerConfig{}
	if clock != nil {
		cfg.Now = clock.Now
		icfg.Now = clock.Now
	}
	m, err := NewKeyManager(cfg)
	if err != nil {
		t.Fatalf("new key manager: %v", err)
	}
	return NewIssuer(m, icfg), m
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	iss, _ := newTestIssuer(t, nil)
	token, err := iss.Issue("tenant-1", "alice", "resource:read resource:write", []string{"user", "admin"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if got := len(strings.Split(token, ".")); got != 3 {
		t.Fatalf("token has %d segments, want 3", got)
	}

	claims, err := iss.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims["tenant-id"] != "tenant-1" {
		t.Errorf("tenant-id = %v", claims["tenant-id"])
	}
	if claims["sub"] != "alice" || claims["upn"] != "alice" {
		t.Errorf("sub/upn = %v/%v", claims["sub"], claims["upn"])
	}
	if claims["scope"] != "resource:read resource:write" {
		t.Errorf("scope = %v", claims["scope"])
	}
	groups, ok := claims["groups"].([]any)
	if !ok || len(groups) != 2 {
		t.Errorf("groups = %v", claims["groups"])
	}
	if jti, _ := claims["jti"].(string); jti == "" {
		t.Error("missing jti")
	}
}

func TestVerifyExpired(t *testing.T) {
	clock := newFakeClock()
	iss, _ := newTestIssuer(t, clock)
	token, err := iss.Issue("tenant-1", "alice", "resource:read", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	clock.Advance(DefaultLifetime + time.Minute)
	if _, err := iss.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token: got %v, want ErrInvalidToken", err)
	}
}

func TestVerifyAfterSigningWindowCloses(t *testing.T) {
	clock := newFakeClock()
	m, err := NewKeyManager(KeyConfig{
		SigningTTL:  time.Minute,
		VerifyGrace: DefaultLifetime,
		Now:         clock.Now,
	})
	if err != nil {
		t.Fatalf("new key manager: %v", err)
	}
	iss := NewIssuer(m, IssuerConfig{Now: clock.Now})

	token, err := iss.Issue("tenant-1", "alice", "resource:read", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	// The signing window closes, but the token is still within its lifetime
	// and must keep verifying through the grace window.
	clock.Advance(2 * time.Minute)
	if _, err := iss.Verify(token); err != nil {
		t.Errorf("token unverifiable after key rotation: %v", err)
	}
}

func TestVerifyFailsClosed(t *testing.T) {
	iss, _ := newTestIssuer(t, nil)
	other, _ := newTestIssuer(t, nil)

	token, err := other.Issue("tenant-1", "alice", "resource:read", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	cases := map[string]string{
		"empty":        "",
		"two segments": "aaaa.bbbb",
		"garbage":      "not a token at all",
		"unknown kid":  token, // signed by a different pool
	}
	for name, tok := range cases {
		if _, err := iss.Verify(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: got %v, want ErrInvalidToken", name, err)
		}
	}
}

func TestVerifyTamperedPayload(t *testing.T) {
	iss, _ := newTestIssuer(t, nil)
	token, err := iss.Issue("tenant-1", "alice", "resource:read", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	parts := strings.Split(token, ".")
	// Swap the payload for a differently padded copy of itself.
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	if _, err := iss.Verify(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("tampered token: got %v, want ErrInvalidToken", err)
	}
}
