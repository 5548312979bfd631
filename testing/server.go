// Package testing provides a fully wired in-memory authorization server
// for integration tests: real key pool, real codecs, memory-backed
// stores, no postgres or redis required.
//
// Example:
//
//	ts := iamtest.NewTestServer(t)
//	ts.SeedTenant("acme", "https://acme.example/cb", "read write")
//	ts.SeedUser("alice", "password-here", "alice@acme.example", true)
//	// drive ts.Server.URL with an OAuth2 client
package testing

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	authgin "github.com/soilmonitoring/phoenix-iam/adapters/gin"
	"github.com/soilmonitoring/phoenix-iam/authcode"
	"github.com/soilmonitoring/phoenix-iam/core"
	"github.com/soilmonitoring/phoenix-iam/identity"
	jwtkit "github.com/soilmonitoring/phoenix-iam/jwt"
	"github.com/soilmonitoring/phoenix-iam/oauth"
	"github.com/soilmonitoring/phoenix-iam/password"
	memorystore "github.com/soilmonitoring/phoenix-iam/storage/memory"
)

// TestServer runs the complete HTTP surface over in-memory stores.
type TestServer struct {
	Server *httptest.Server
	Keys   *jwtkit.KeyManager
	Issuer *jwtkit.Issuer
	Users  *identity.Service

	t          *testing.T
	hasher     *password.Hasher
	tenants    *memTenants
	identities *memIdentities
	grants     *memGrants
	notifier   *recordingNotifier
	store      *memorystore.CodeStore
}

// NewTestServer wires the whole stack and starts an httptest server.
// Everything is torn down via t.Cleanup.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	keys, err := jwtkit.NewKeyManager(jwtkit.KeyConfig{})
	if err != nil {
		t.Fatalf("key manager: %v", err)
	}
	issuer := jwtkit.NewIssuer(keys, jwtkit.IssuerConfig{})
	codec, err := authcode.NewCodec(authcode.CodecConfig{})
	if err != nil {
		t.Fatalf("code codec: %v", err)
	}
	hasher := password.NewHasher(password.Params{Time: 1, Memory: 8 * 1024})

	tenants := &memTenants{byName: make(map[string]*identity.Tenant)}
	identities := &memIdentities{byUsername: make(map[string]*identity.Identity)}
	grants := &memGrants{byKey: make(map[[2]uuid.UUID]*identity.Grant)}
	store := memorystore.NewCodeStore()
	t.Cleanup(func() { store.Close() })

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	notifier := &recordingNotifier{}
	users := identity.NewService(identity.ServiceConfig{
		Identities: identities,
		Hasher:     hasher,
		Codes:      memorystore.NewActivationCache(),
		Notifier:   notifier,
	})

	flow := oauth.NewController(oauth.ControllerConfig{
		Tenants:    tenants,
		Identities: identities,
		Grants:     oauth.NewGrantService(tenants, identities, grants, nil),
		Hasher:     hasher,
		Issuer:     issuer,
		Sessions:   oauth.NewSessionCodec(issuer, 0, nil),
		Codes:      codec,
		UsedCodes:  store,
		Log:        log,
	})

	router := authgin.NewRouter(authgin.Deps{
		Flow:    flow,
		Keys:    keys,
		Users:   users,
		Tenants: tenants,
		Audit:   core.LogrusAuthEvents{Log: log},
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &TestServer{
		Server:     srv,
		Keys:       keys,
		Issuer:     issuer,
		Users:      users,
		t:          t,
		hasher:     hasher,
		tenants:    tenants,
		identities: identities,
		grants:     grants,
		notifier:   notifier,
		store:      store,
	}
}

// SeedTenant registers a client application directly in the store.
func (ts *TestServer) SeedTenant(name, redirectURI, scopes string) *identity.Tenant {
	ts.t.Helper()
	tenant := &identity.Tenant{
		ID:            uuid.New(),
		Name:          name,
		RedirectURI:   redirectURI,
		AllowedScopes: scopes,
		GrantTypes:    "authorization_code refresh_token",
	}
	if err := ts.tenants.Save(context.Background(), tenant); err != nil {
		ts.t.Fatalf("seed tenant: %v", err)
	}
	return tenant
}

// SeedUser creates an identity with a real Argon2 hash of plainPassword.
func (ts *TestServer) SeedUser(username, plainPassword, email string, activated bool) *identity.Identity {
	ts.t.Helper()
	hash, err := ts.hasher.Hash(plainPassword)
	if err != nil {
		ts.t.Fatalf("hash password: %v", err)
	}
	id := &identity.Identity{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Activated:    activated,
		Roles:        identity.RoleUser,
	}
	if err := ts.identities.Save(context.Background(), id); err != nil {
		ts.t.Fatalf("seed user: %v", err)
	}
	return id
}

// LastActivationCode returns the most recently "sent" activation code.
func (ts *TestServer) LastActivationCode() string {
	ts.notifier.mu.Lock()
	defer ts.notifier.mu.Unlock()
	return ts.notifier.code
}

type recordingNotifier struct {
	mu   sync.Mutex
	code string
}

func (n *recordingNotifier) NotifyActivation(_ context.Context, _, _, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.code = code
	return nil
}

type memTenants struct {
	mu     sync.Mutex
	byName map[string]*identity.Tenant
}

func (m *memTenants) FindByName(_ context.Context, name string) (*identity.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byName[name]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return t, nil
}

func (m *memTenants) Save(_ context.Context, t *identity.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byName[t.Name] = t
	return nil
}

type memIdentities struct {
	mu         sync.Mutex
	byUsername map[string]*identity.Identity
}

func (m *memIdentities) FindByUsername(_ context.Context, username string) (*identity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byUsername[username]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return id, nil
}

func (m *memIdentities) FindByEmail(_ context.Context, email string) (*identity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.byUsername {
		if id.Email == email {
			return id, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (m *memIdentities) Save(_ context.Context, id *identity.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byUsername[id.Username] = id
	return nil
}

func (m *memIdentities) SetActivated(_ context.Context, identityID uuid.UUID, activated bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.byUsername {
		if id.ID == identityID {
			id.Activated = activated
			return nil
		}
	}
	return identity.ErrNotFound
}

func (m *memIdentities) Delete(_ context.Context, identityID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for username, id := range m.byUsername {
		if id.ID == identityID {
			delete(m.byUsername, username)
			return nil
		}
	}
	return identity.ErrNotFound
}

type memGrants struct {
	mu    sync.Mutex
	byKey map[[2]uuid.UUID]*identity.Grant
}

func (m *memGrants) Find(_ context.Context, tenantID, identityID uuid.UUID) (*identity.Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.byKey[[2]uuid.UUID{tenantID, identityID}]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return g, nil
}

func (m *memGrants) Save(_ context.Context, g *identity.Grant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byKey[[2]uuid.UUID{g.TenantID, g.IdentityID}] = g
	return nil
}
