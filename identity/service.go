package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soilmonitoring/phoenix-iam/core"
	"github.com/soilmonitoring/phoenix-iam/password"
)

var (
	// ErrActivationExpired reports that the pending identity's activation
	// window closed. The pending identity is removed when this happens.
	ErrActivationExpired = errors.New("identity: activation code expired")

	// ErrActivationMismatch reports a wrong but not-yet-expired code.
	ErrActivationMismatch = errors.New("identity: activation code mismatch")

	// ErrInvalidInput reports missing or malformed registration fields.
	ErrInvalidInput = errors.New("identity: invalid input")
)

const activationCodeTTL = 5 * time.Minute

// ActivationCodeCache holds pending activation codes keyed by username.
// Entries vanish after their TTL.
type ActivationCodeCache interface {
	Put(ctx context.Context, username, code string, ttl time.Duration) error
	Get(ctx context.Context, username string) (string, error)
	Delete(ctx context.Context, username string) error
}

// ActivationNotifier delivers the activation code to the new identity,
// typically by queueing an email job. Delivery is fire-and-forget from
// the service's point of view.
type ActivationNotifier interface {
	NotifyActivation(ctx context.Context, email, username, code string) error
}

// Service handles self-registration and activation of identities.
type Service struct {
	identities IdentityRepository
	hasher     *password.Hasher
	codes      ActivationCodeCache
	notifier   ActivationNotifier
	codeTTL    time.Duration
	now        func() time.Time
}

// ServiceConfig wires the service. CodeTTL and Now default to 5 minutes
// and wall time.
type ServiceConfig struct {
	Identities IdentityRepository
	Hasher     *password.Hasher
	Codes      ActivationCodeCache
	Notifier   ActivationNotifier
	CodeTTL    time.Duration
	Now        func() time.Time
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = activationCodeTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		identities: cfg.Identities,
		hasher:     cfg.Hasher,
		codes:      cfg.Codes,
		notifier:   cfg.Notifier,
		codeTTL:    cfg.CodeTTL,
		now:        cfg.Now,
	}
}

// Register creates an inactive identity with the default role, stores a
// short-lived activation code and hands it to the notifier.
func (s *Service) Register(ctx context.Context, username, plainPassword, email string) (*Identity, error) {
	username, err := core.NormalizeUsername(username)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if err := password.Validate(plainPassword); err != nil {
		return nil, err
	}
	if existing, err := s.identities.FindByUsername(ctx, username); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("look up username: %w", err)
	} else if existing != nil {
		return nil, fmt.Errorf("%w: username %q", ErrDuplicate, username)
	}
	if existing, err := s.identities.FindByEmail(ctx, email); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("look up email: %w", err)
	} else if existing != nil {
		return nil, fmt.Errorf("%w: email %q", ErrDuplicate, email)
	}

	hash, err := s.hasher.Hash(plainPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	id := &Identity{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Activated:    false,
		Roles:        RoleUser,
		CreatedAt:    s.now(),
	}
	if err := s.identities.Save(ctx, id); err != nil {
		return nil, fmt.Errorf("save identity: %w", err)
	}

	code, err := newActivationCode()
	if err != nil {
		return nil, fmt.Errorf("generate activation code: %w", err)
	}
	if err := s.codes.Put(ctx, username, code, s.codeTTL); err != nil {
		return nil, fmt.Errorf("store activation code: %w", err)
	}
	if err := s.notifier.NotifyActivation(ctx, email, username, code); err != nil {
		return nil, fmt.Errorf("notify activation: %w", err)
	}
	return id, nil
}

// Activate flips the activation flag when the presented code matches the
// pending one. An expired (absent) code removes the pending identity so
// the username can be claimed again.
func (s *Service) Activate(ctx context.Context, username, code string) error {
	username = strings.TrimSpace(username)
	id, err := s.identities.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	if id.Activated {
		return nil
	}

	stored, err := s.codes.Get(ctx, username)
	if err != nil {
		return fmt.Errorf("read activation code: %w", err)
	}
	if stored == "" {
		if err := s.identities.Delete(ctx, id.ID); err != nil {
			return fmt.Errorf("remove expired registration: %w", err)
		}
		return ErrActivationExpired
	}
	if stored != code {
		return ErrActivationMismatch
	}

	if err := s.identities.SetActivated(ctx, id.ID, true); err != nil {
		return fmt.Errorf("activate identity: %w", err)
	}
	if err := s.codes.Delete(ctx, username); err != nil {
		return fmt.Errorf("drop activation code: %w", err)
	}
	return nil
}

func newActivationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
