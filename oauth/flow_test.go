package oauth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/soilmonitoring/phoenix-iam/authcode"
	"github.com/soilmonitoring/phoenix-iam/identity"
	jwtkit "github.com/soilmonitoring/phoenix-iam/jwt"
	"github.com/soilmonitoring/phoenix-iam/password"
	memorystore "github.com/soilmonitoring/phoenix-iam/storage/memory"
)

type fakeTenants struct{ byName map[string]*identity.Tenant }

func (f *fakeTenants) FindByName(_ context.Context, name string) (*identity.Tenant, error) {
	t, ok := f.byName[name]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return t, nil
}

func (f *fakeTenants) Save(_ context.Context, t *identity.Tenant) error {
	f.byName[t.Name] = t
	return nil
}

type fakeIdentities struct{ byUsername map[string]*identity.Identity }

func (f *fakeIdentities) FindByUsername(_ context.Context, username string) (*identity.Identity, error) {
	id, ok := f.byUsername[username]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return id, nil
}

func (f *fakeIdentities) FindByEmail(_ context.Context, email string) (*identity.Identity, error) {
	for _, id := range f.byUsername {
		if id.Email == email {
			return id, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (f *fakeIdentities) Save(_ context.Context, id *identity.Identity) error {
	f.byUsername[id.Username] = id
	return nil
}

func (f *fakeIdentities) SetActivated(_ context.Context, identityID uuid.UUID, activated bool) error {
	for _, id := range f.byUsername {
		if id.ID == identityID {
			id.Activated = activated
			return nil
		}
	}
	return identity.ErrNotFound
}

func (f *fakeIdentities) Delete(_ context.Context, identityID uuid.UUID) error {
	for username, id := range f.byUsername {
		if id.ID == identityID {
			delete(f.byUsername, username)
			return nil
		}
	}
	return identity.ErrNotFound
}

type grantKey struct{ tenant, id uuid.UUID }

type fakeGrants struct {
	byKey   map[grantKey]*identity.Grant
	saveErr error
}

func (f *fakeGrants) Find(_ context.Context, tenantID, identityID uuid.UUID) (*identity.Grant, error) {
	g, ok := f.byKey[grantKey{tenantID, identityID}]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return g, nil
}

func (f *fakeGrants) Save(_ context.Context, g *identity.Grant) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.byKey[grantKey{g.TenantID, g.IdentityID}] = g
	return nil
}

type fixture struct {
	ctrl       *Controller
	tenants    *fakeTenants
	identities *fakeIdentities
	grants     *fakeGrants
	tenant     *identity.Tenant
	alice      *identity.Identity
	issuer     *jwtkit.Issuer
	store      *memorystore.CodeStore
}

const (
	testVerifier  = "0123456789-0123456789-0123456789-0123456789"
	alicePassword = "hunter22hunter22"
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	keys, err := jwtkit.NewKeyManager(jwtkit.KeyConfig{})
	if err != nil {
		t.Fatalf("key manager: %v", err)
	}
	issuer := jwtkit.NewIssuer(keys, jwtkit.IssuerConfig{})
	codec, err := authcode.NewCodec(authcode.CodecConfig{})
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	hasher := password.NewHasher(password.Params{Time: 1, Memory: 8 * 1024})

	hash, err := hasher.Hash(alicePassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	tenant := &identity.Tenant{
		ID:            uuid.New(),
		Name:          "acme",
		RedirectURI:   "https://acme.example/cb",
		AllowedScopes: "read write admin",
		GrantTypes:    "authorization_code refresh_token",
	}
	alice := &identity.Identity{
		ID:           uuid.New(),
		Username:     "alice",
		Email:        "alice@acme.example",
		PasswordHash: hash,
		Activated:    true,
		Roles:        identity.RoleUser,
	}
	tenants := &fakeTenants{byName: map[string]*identity.Tenant{"acme": tenant}}
	identities := &fakeIdentities{byUsername: map[string]*identity.Identity{"alice": alice}}
	grants := &fakeGrants{byKey: make(map[grantKey]*identity.Grant)}
	store := memorystore.NewCodeStore()
	t.Cleanup(func() { store.Close() })

	ctrl := NewController(ControllerConfig{
		Tenants:    tenants,
		Identities: identities,
		Grants:     NewGrantService(tenants, identities, grants, nil),
		Hasher:     hasher,
		Issuer:     issuer,
		Sessions:   NewSessionCodec(issuer, 0, nil),
		Codes:      codec,
		UsedCodes:  store,
	})
	return &fixture{
		ctrl:       ctrl,
		tenants:    tenants,
		identities: identities,
		grants:     grants,
		tenant:     tenant,
		alice:      alice,
		issuer:     issuer,
		store:      store,
	}
}

func validAuthorize() AuthorizeRequest {
	return AuthorizeRequest{
		ClientID:            "acme",
		RedirectURI:         "https://acme.example/cb",
		ResponseType:        "code",
		Scope:               "read write",
		State:               "xyz",
		CodeChallenge:       authcode.ComputeChallenge(testVerifier),
		CodeChallengeMethod: "S256",
	}
}

func codeFromRedirect(t *testing.T, redirect string) (code, state string) {
	t.Helper()
	u, err := url.Parse(redirect)
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	return u.Query().Get("code"), u.Query().Get("state")
}

func TestAuthorizeValidation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*AuthorizeRequest)
		kind   Kind
		want   string
	}{
		{"missing client_id", func(r *AuthorizeRequest) { r.ClientID = "" }, KindInvalidClient, "Invalid client_id"},
		{"unknown client", func(r *AuthorizeRequest) { r.ClientID = "ghost" }, KindInvalidClient, "Invalid client_id"},
		{"bad response_type", func(r *AuthorizeRequest) { r.ResponseType = "token" }, KindUnsupportedResponseType, "response_type"},
		{"missing redirect_uri", func(r *AuthorizeRequest) { r.RedirectURI = "" }, KindInvalidRequest, "redirect_uri"},
		{"foreign redirect_uri", func(r *AuthorizeRequest) { r.RedirectURI = "https://evil.example/cb" }, KindInvalidRequest, "redirect_uri"},
		{"missing challenge", func(r *AuthorizeRequest) { r.CodeChallenge = "" }, KindInvalidRequest, "code_challenge"},
		{"plain method", func(r *AuthorizeRequest) { r.CodeChallengeMethod = "plain" }, KindInvalidRequest, "S256"},
		{"disallowed scope", func(r *AuthorizeRequest) { r.Scope = "telemetry" }, KindInvalidRequest, "scope"},
	}
	for _, tc := range cases {
		req := validAuthorize()
		tc.mutate(&req)
		_, err := fx.ctrl.Authorize(ctx, req)
		var fe *FlowError
		if !errors.As(err, &fe) {
			t.Errorf("%s: err = %v, want FlowError", tc.name, err)
			continue
		}
		if fe.Kind != tc.kind {
			t.Errorf("%s: kind = %v, want %v", tc.name, fe.Kind, tc.kind)
		}
		if !strings.Contains(fe.Description, tc.want) {
			t.Errorf("%s: description %q missing %q", tc.name, fe.Description, tc.want)
		}
	}
}

func TestFullCodeFlow(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	artifact, err := fx.ctrl.Authorize(ctx, validAuthorize())
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if artifact == "" {
		t.Fatal("no session artifact issued")
	}

	step, err := fx.ctrl.Login(ctx, artifact, "alice", alicePassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !step.ConsentRequired {
		t.Fatal("first login should require consent")
	}

	redirect, err := fx.ctrl.Consent(ctx, artifact, "alice", "read write", ApprovalYes)
	if err != nil {
		t.Fatalf("consent: %v", err)
	}
	if !strings.HasPrefix(redirect, "https://acme.example/cb?") {
		t.Fatalf("redirect to %q", redirect)
	}
	code, state := codeFromRedirect(t, redirect)
	if code == "" || state != "xyz" {
		t.Fatalf("redirect missing code/state: %q", redirect)
	}

	resp, err := fx.ctrl.Token(ctx, TokenRequest{
		GrantType:    "authorization_code",
		Code:         code,
		CodeVerifier: testVerifier,
	})
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if resp.TokenType != "Bearer" || resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatalf("bad token response: %+v", resp)
	}

	claims, err := fx.issuer.Verify(resp.AccessToken)
	if err != nil {
		t.Fatalf("verify access token: %v", err)
	}
	if claims["sub"] != "alice" || claims["upn"] != "alice" {
		t.Errorf("sub/upn = %v/%v", claims["sub"], claims["upn"])
	}
	if claims["scope"] != "read write" {
		t.Errorf("scope = %v", claims["scope"])
	}
	if claims["tenant-id"] != fx.tenant.ID.String() {
		t.Errorf("tenant-id = %v", claims["tenant-id"])
	}
	groups, _ := claims["groups"].([]any)
	if len(groups) != 1 || groups[0] != "user" {
		t.Errorf("groups = %v", claims["groups"])
	}
}

func TestLoginFailures(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	artifact, err := fx.ctrl.Authorize(ctx, validAuthorize())
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}

	_, err = fx.ctrl.Login(ctx, artifact, "alice", "not-her-password")
	var fe *FlowError
	if !errors.As(err, &fe) || fe.Kind != KindAuthenticationFailed || fe.Hint != "invalid_credentials" {
		t.Errorf("bad password: %v", err)
	}

	_, err = fx.ctrl.Login(ctx, artifact, "nobody", alicePassword)
	if !errors.As(err, &fe) || fe.Hint != "invalid_credentials" {
		t.Errorf("unknown user: %v", err)
	}

	fx.alice.Activated = false
	_, err = fx.ctrl.Login(ctx, artifact, "alice", alicePassword)
	if !errors.As(err, &fe) || fe.Hint != "account_not_activated" {
		t.Errorf("inactive account: %v", err)
	}

	_, err = fx.ctrl.Login(ctx, "garbage-session", "alice", alicePassword)
	if !errors.As(err, &fe) || fe.Kind != KindInvalidRequest {
		t.Errorf("tampered session: %v", err)
	}
}

func TestLoginSkipsConsentWithGrant(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.grants.byKey[grantKey{fx.tenant.ID, fx.alice.ID}] = &identity.Grant{
		TenantID:       fx.tenant.ID,
		IdentityID:     fx.alice.ID,
		ApprovedScopes: "read write admin",
		IssuedAt:       time.Now(),
	}

	artifact, err := fx.ctrl.Authorize(ctx, validAuthorize())
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	step, err := fx.ctrl.Login(ctx, artifact, "alice", alicePassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if step.ConsentRequired {
		t.Fatal("consent demanded despite covering grant")
	}
	code, _ := codeFromRedirect(t, step.RedirectURL)
	if code == "" {
		t.Fatalf("no code in %q", step.RedirectURL)
	}
}

func TestConsentDenied(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	artifact, err := fx.ctrl.Authorize(ctx, validAuthorize())
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	redirect, err := fx.ctrl.Consent(ctx, artifact, "alice", "read write", ApprovalNo)
	if err != nil {
		t.Fatalf("consent: %v", err)
	}
	u, err := url.Parse(redirect)
	if err != nil {
		t.Fatal(err)
	}
	if u.Query().Get("error") != "access_denied" {
		t.Errorf("redirect %q missing access_denied", redirect)
	}
	if u.Query().Get("code") != "" {
		t.Error("denied consent still issued a code")
	}
}

func TestConsentPersistFailureIsHard(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.grants.saveErr = errors.New("db down")
	artifact, err := fx.ctrl.Authorize(ctx, validAuthorize())
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	_, err = fx.ctrl.Consent(ctx, artifact, "alice", "read write", ApprovalYes)
	var fe *FlowError
	if !errors.As(err, &fe) || fe.Kind != KindServerError {
		t.Errorf("err = %v, want server error", err)
	}
}

func obtainCode(t *testing.T, fx *fixture) string {
	t.Helper()
	ctx := context.Background()
	artifact, err := fx.ctrl.Authorize(ctx, validAuthorize())
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	redirect, err := fx.ctrl.Consent(ctx, artifact, "alice", "read write", ApprovalYes)
	if err != nil {
		t.Fatalf("consent: %v", err)
	}
	code, _ := codeFromRedirect(t, redirect)
	if code == "" {
		t.Fatal("no code issued")
	}
	return code
}

func TestTokenWrongVerifier(t *testing.T) {
	fx := newFixture(t)
	code := obtainCode(t, fx)
	_, err := fx.ctrl.Token(context.Background(), TokenRequest{
		GrantType:    "authorization_code",
		Code:         code,
		CodeVerifier: "totally-different-verifier-string-000000000",
	})
	var fe *FlowError
	if !errors.As(err, &fe) || fe.Kind != KindInvalidGrant {
		t.Fatalf("err = %v, want invalid grant", err)
	}
	if !strings.Contains(fe.Description, "verifier") {
		t.Errorf("description %q does not name the verifier mismatch", fe.Description)
	}
}

func TestTokenReplayRejected(t *testing.T) {
	fx := newFixture(t)
	code := obtainCode(t, fx)
	ctx := context.Background()
	req := TokenRequest{GrantType: "authorization_code", Code: code, CodeVerifier: testVerifier}

	if _, err := fx.ctrl.Token(ctx, req); err != nil {
		t.Fatalf("first exchange: %v", err)
	}
	_, err := fx.ctrl.Token(ctx, req)
	var fe *FlowError
	if !errors.As(err, &fe) || fe.Kind != KindInvalidGrant {
		t.Fatalf("replay err = %v, want invalid grant", err)
	}
	if !strings.Contains(fe.Description, "redeemed") {
		t.Errorf("description %q does not indicate replay", fe.Description)
	}
}

func TestTokenGrantTypeValidation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.ctrl.Token(ctx, TokenRequest{})
	var fe *FlowError
	if !errors.As(err, &fe) || fe.Description != "grant_type is required" {
		t.Errorf("missing grant_type: %v", err)
	}

	_, err = fx.ctrl.Token(ctx, TokenRequest{GrantType: "password"})
	if !errors.As(err, &fe) || fe.Kind != KindUnsupportedGrantType {
		t.Errorf("unsupported grant_type: %v", err)
	}
}

func TestRefreshGrant(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	code := obtainCode(t, fx)
	first, err := fx.ctrl.Token(ctx, TokenRequest{GrantType: "authorization_code", Code: code, CodeVerifier: testVerifier})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}

	second, err := fx.ctrl.Token(ctx, TokenRequest{GrantType: "refresh_token", RefreshToken: first.RefreshToken})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	claims, err := fx.issuer.Verify(second.AccessToken)
	if err != nil {
		t.Fatalf("verify refreshed token: %v", err)
	}
	if claims["sub"] != "alice" || claims["scope"] != "read write" {
		t.Errorf("refreshed claims sub=%v scope=%v", claims["sub"], claims["scope"])
	}
	groups, _ := claims["groups"].([]any)
	if len(groups) != 1 || groups[0] != "user" {
		t.Errorf("groups not carried through refresh: %v", claims["groups"])
	}

	var fe *FlowError
	if _, err := fx.ctrl.Token(ctx, TokenRequest{GrantType: "refresh_token", RefreshToken: "junk"}); !errors.As(err, &fe) || fe.Kind != KindInvalidGrant {
		t.Errorf("junk refresh token: %v", err)
	}
	if _, err := fx.ctrl.Token(ctx, TokenRequest{GrantType: "refresh_token"}); !errors.As(err, &fe) || fe.Kind != KindInvalidRequest {
		t.Errorf("missing refresh token: %v", err)
	}
}
