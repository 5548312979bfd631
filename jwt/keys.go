package jwtkit

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/mr-tron/base58"
)

// SigningKey is a pool entry selected for signing.
type SigningKey struct {
	KID     string
	Private ed25519.PrivateKey
	Public  ed25519.PublicKey
}

type keyEntry struct {
	kid        string
	private    ed25519.PrivateKey
	public     ed25519.PublicKey
	createdAt  time.Time
	signExpiry time.Time
}

// KeyConfig tunes the key pool. Zero values fall back to the defaults:
// a pool of 3 keys, a 3h signing window, and a verification grace window
// equal to the 17min token lifetime.
type KeyConfig struct {
	PoolSize    int
	SigningTTL  time.Duration
	VerifyGrace time.Duration
	Now         func() time.Time
}

// KeyManager owns a rolling pool of Ed25519 signing keys.
//
// A key signs tokens until its signing expiry, then remains available for
// verification for VerifyGrace (the maximum token lifetime), so tokens signed
// just before rotation stay verifiable for their whole life. The pool always
// holds at least PoolSize keys whose signing window is still open.
//
// All pool access goes through a single critical section: evict, top up,
// pick. Without that, two concurrent callers could both decide to generate,
// or a verifier could observe a key mid-eviction.
type KeyManager struct {
	mu      sync.Mutex
	entries map[string]*keyEntry

	poolSize    int
	signingTTL  time.Duration
	verifyGrace time.Duration
	now         func() time.Time
}

// NewKeyManager builds the manager and fills the initial pool. Key
// generation failure (e.g. no secure randomness) is fatal and is returned,
// never swallowed: a manager without keys cannot serve anything.
func NewKeyManager(cfg KeyConfig) (*KeyManager, error) {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 3
	}
	if cfg.SigningTTL <= 0 {
		cfg.SigningTTL = 3 * time.Hour
	}
	if cfg.VerifyGrace <= 0 {
		cfg.VerifyGrace = 17 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	m := &KeyManager{
		entries:     make(map[string]*keyEntry),
		poolSize:    cfg.PoolSize,
		signingTTL:  cfg.SigningTTL,
		verifyGrace: cfg.VerifyGrace,
		now:         cfg.Now,
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.topUpLocked(); err != nil {
		return nil, fmt.Errorf("initialize key pool: %w", err)
	}
	return m, nil
}

// CurrentSigningKey returns a key whose signing window is open, evicting
// dead keys and topping the pool back up first. Any valid entry may be
// returned; rotation limits compromise blast radius, it is not a load
// balancing concern.
func (m *KeyManager) CurrentSigningKey() (SigningKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.evictLocked()
	if err := m.topUpLocked(); err != nil {
		return SigningKey{}, err
	}
	now := m.now()
	for _, e := range m.entries {
		if now.Before(e.signExpiry) {
			return SigningKey{KID: e.kid, Private: e.private, Public: e.public}, nil
		}
	}
	// Unreachable after a successful top-up.
	return SigningKey{}, fmt.Errorf("key pool empty after top-up")
}

// KeyFor returns the public key for kid if it is still inside its
// verification window.
func (m *KeyManager) KeyFor(kid string) (ed25519.PublicKey, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.evictLocked()
	e, ok := m.entries[kid]
	if !ok {
		return nil, false
	}
	return e.public, true
}

// VerifiableKIDs lists the key ids currently inside their verification
// window, freshest first is not guaranteed.
func (m *KeyManager) VerifiableKIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.evictLocked()
	kids := make([]string, 0, len(m.entries))
	for kid := range m.entries {
		kids = append(kids, kid)
	}
	return kids
}

// Maintain runs one evict/top-up sweep. Called periodically so the pool
// stays warm even across idle stretches; every accessor also maintains the
// pool on its own.
func (m *KeyManager) Maintain() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.evictLocked()
	return m.topUpLocked()
}

// evictLocked removes entries whose verification window has elapsed.
// Callers must hold m.mu.
func (m *KeyManager) evictLocked() {
	now := m.now()
	for kid, e := range m.entries {
		if now.After(e.signExpiry.Add(m.verifyGrace)) {
			delete(m.entries, kid)
		}
	}
}

// topUpLocked generates keys until poolSize entries have open signing
// windows. Callers must hold m.mu.
func (m *KeyManager) topUpLocked() error {
	now := m.now()
	live := 0
	for _, e := range m.entries {
		if now.Before(e.signExpiry) {
			live++
		}
	}
	for ; live < m.poolSize; live++ {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return fmt.Errorf("generate ed25519 key: %w", err)
		}
		kid, err := newKID()
		if err != nil {
			return err
		}
		m.entries[kid] = &keyEntry{
			kid:        kid,
			private:    priv,
			public:     pub,
			createdAt:  now,
			signExpiry: now.Add(m.signingTTL),
		}
	}
	return nil
}

// newKID returns a short URL-safe key id.
func newKID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate kid: %w", err)
	}
	return base58.Encode(b), nil
}
