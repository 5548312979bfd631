package oauth

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/soilmonitoring/phoenix-iam/authcode"
	"github.com/soilmonitoring/phoenix-iam/identity"
	jwtkit "github.com/soilmonitoring/phoenix-iam/jwt"
	"github.com/soilmonitoring/phoenix-iam/password"
)

// ApprovalYes and ApprovalNo are the consent form's approval_status values.
const (
	ApprovalYes = "YES"
	ApprovalNo  = "NO"
)

// usedCodeTTL keeps consumption records comfortably past the code's own
// 2-minute life so a replay can never slip in after the record lapses.
const usedCodeTTL = 5 * time.Minute

// CodeStore marks authorization-code ids as redeemed. MarkUsed returns
// false when the id was already redeemed.
type CodeStore interface {
	MarkUsed(ctx context.Context, codeID string, ttl time.Duration) (bool, error)
}

// Controller orchestrates authorize, login, consent and token exchange.
// It keeps no per-flow state; everything between steps rides in the
// signed session artifact the client echoes back.
type Controller struct {
	tenants    identity.TenantRepository
	identities identity.IdentityRepository
	grants     *GrantService
	hasher     *password.Hasher
	issuer     *jwtkit.Issuer
	sessions   *SessionCodec
	codes      *authcode.Codec
	used       CodeStore
	log        logrus.FieldLogger
	now        func() time.Time
}

// ControllerConfig wires a Controller. Now defaults to wall time.
type ControllerConfig struct {
	Tenants    identity.TenantRepository
	Identities identity.IdentityRepository
	Grants     *GrantService
	Hasher     *password.Hasher
	Issuer     *jwtkit.Issuer
	Sessions   *SessionCodec
	Codes      *authcode.Codec
	UsedCodes  CodeStore
	Log        logrus.FieldLogger
	Now        func() time.Time
}

func NewController(cfg ControllerConfig) *Controller {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	return &Controller{
		tenants:    cfg.Tenants,
		identities: cfg.Identities,
		grants:     cfg.Grants,
		hasher:     cfg.Hasher,
		issuer:     cfg.Issuer,
		sessions:   cfg.Sessions,
		codes:      cfg.Codes,
		used:       cfg.UsedCodes,
		log:        cfg.Log,
		now:        cfg.Now,
	}
}

// AuthorizeRequest carries the query parameters of GET /authorize.
type AuthorizeRequest struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// Authorize validates the initial request and returns the signed session
// artifact for the login page. Failures here are answered directly, never
// via redirect: the redirect URI is not yet trusted.
func (c *Controller) Authorize(ctx context.Context, req AuthorizeRequest) (string, error) {
	if req.ClientID == "" {
		return "", flowErr(KindInvalidClient, "Invalid client_id")
	}
	if req.ResponseType != "code" {
		return "", flowErr(KindUnsupportedResponseType, "response_type must be code")
	}
	if req.RedirectURI == "" {
		return "", flowErr(KindInvalidRequest, "redirect_uri is required")
	}
	if req.CodeChallenge == "" {
		return "", flowErr(KindInvalidRequest, "code_challenge is required")
	}
	if req.CodeChallengeMethod != "S256" {
		return "", flowErr(KindInvalidRequest, "code_challenge_method must be S256")
	}

	tenant, err := c.tenants.FindByName(ctx, req.ClientID)
	if errors.Is(err, identity.ErrNotFound) {
		return "", flowErr(KindInvalidClient, "Invalid client_id")
	}
	if err != nil {
		return "", flowErrf(KindServerError, "tenant lookup failed", err)
	}
	if req.RedirectURI != tenant.RedirectURI {
		return "", flowErr(KindInvalidRequest, "redirect_uri does not match the registered value")
	}

	scope := FilterScopes(tenant.AllowedScopes, req.Scope)
	if scope == "" {
		return "", flowErr(KindInvalidRequest, "requested scope is not allowed for this client")
	}

	artifact, err := c.sessions.Encode(Session{
		ClientID:      tenant.Name,
		Scope:         scope,
		RedirectURI:   req.RedirectURI,
		CodeChallenge: req.CodeChallenge,
		State:         req.State,
	})
	if err != nil {
		return "", flowErrf(KindServerError, "session signing failed", err)
	}
	return artifact, nil
}

// Step is the outcome of a successful login or consent submission.
// Exactly one of ConsentRequired or RedirectURL is meaningful.
type Step struct {
	ConsentRequired bool
	RedirectURL     string
	Session         Session
	Username        string
}

// Login verifies credentials against the session's tenant. With a prior
// grant covering the request, consent is skipped and the code issued at
// once; otherwise the caller renders the consent prompt.
func (c *Controller) Login(ctx context.Context, sessionToken, username, plainPassword string) (*Step, error) {
	session, err := c.sessions.Decode(sessionToken)
	if err != nil {
		return nil, flowErr(KindInvalidRequest, "sign-in session is missing or invalid")
	}

	id, err := c.identities.FindByUsername(ctx, username)
	if errors.Is(err, identity.ErrNotFound) {
		// Same hint as a bad password; which half was wrong stays private.
		c.log.WithField("client_id", session.ClientID).Warn("login failed: unknown username")
		return nil, authFailed("invalid_credentials")
	}
	if err != nil {
		return nil, flowErrf(KindServerError, "identity lookup failed", err)
	}
	ok, err := c.hasher.Check(id.PasswordHash, plainPassword)
	if err != nil {
		return nil, flowErrf(KindServerError, "password verification failed", err)
	}
	if !ok {
		c.log.WithFields(logrus.Fields{"client_id": session.ClientID, "username": username}).
			Warn("login failed: bad credentials")
		return nil, authFailed("invalid_credentials")
	}
	if !id.Activated {
		return nil, authFailed("account_not_activated")
	}

	tenant, err := c.tenants.FindByName(ctx, session.ClientID)
	if err != nil {
		return nil, flowErrf(KindServerError, "tenant lookup failed", err)
	}
	grant, err := c.grants.ExistingGrant(ctx, tenant, id)
	if err != nil {
		return nil, flowErrf(KindServerError, "grant lookup failed", err)
	}
	if grant == nil || FilterScopes(grant.ApprovedScopes, session.Scope) != session.Scope {
		return &Step{ConsentRequired: true, Session: session, Username: username}, nil
	}

	redirect, err := c.issueCodeRedirect(session, username, session.Scope)
	if err != nil {
		return nil, err
	}
	return &Step{RedirectURL: redirect, Session: session, Username: username}, nil
}

// Consent records the user's decision. Denial travels back to the client
// as an error redirect, not as an HTTP error.
func (c *Controller) Consent(ctx context.Context, sessionToken, username, approvedScope, approvalStatus string) (string, error) {
	session, err := c.sessions.Decode(sessionToken)
	if err != nil {
		return "", flowErr(KindInvalidRequest, "sign-in session is missing or invalid")
	}

	if approvalStatus != ApprovalYes {
		return redirectURL(session.RedirectURI, url.Values{
			"error": {"access_denied"},
			"state": {session.State},
		}), nil
	}

	scopes := FilterScopes(session.Scope, approvedScope)
	if scopes == "" {
		scopes = session.Scope
	}
	if err := c.grants.RecordConsent(ctx, session.ClientID, username, scopes); err != nil {
		return "", flowErrf(KindServerError, "recording consent failed", err)
	}
	return c.issueCodeRedirect(session, username, scopes)
}

func (c *Controller) issueCodeRedirect(session Session, username, approvedScopes string) (string, error) {
	code, err := c.codes.Encode(session.ClientID, username, approvedScopes, session.RedirectURI, session.CodeChallenge)
	if err != nil {
		return "", flowErrf(KindServerError, "code issuance failed", err)
	}
	return redirectURL(session.RedirectURI, url.Values{
		"code":  {code},
		"state": {session.State},
	}), nil
}

// TokenRequest carries the form parameters of POST /token.
type TokenRequest struct {
	GrantType    string
	Code         string
	CodeVerifier string
	RefreshToken string
}

// TokenResponse is the JSON body of a successful exchange.
type TokenResponse struct {
	TokenType    string `json:"token_type"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Token exchanges an authorization code or refresh token for a fresh
// access/refresh pair.
func (c *Controller) Token(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	switch req.GrantType {
	case "":
		return nil, flowErr(KindInvalidRequest, "grant_type is required")
	case "authorization_code":
		return c.exchangeCode(ctx, req.Code, req.CodeVerifier)
	case "refresh_token":
		return c.refresh(ctx, req.RefreshToken)
	default:
		return nil, flowErr(KindUnsupportedGrantType, "unsupported_grant_type")
	}
}

func (c *Controller) exchangeCode(ctx context.Context, code, verifier string) (*TokenResponse, error) {
	payload, err := c.codes.Decode(code, verifier)
	if errors.Is(err, authcode.ErrVerifierMismatch) {
		c.log.Warn("token exchange rejected: code verifier does not match the code challenge")
		return nil, flowErr(KindInvalidGrant, "code verifier does not match the code challenge")
	}
	if err != nil {
		c.log.Warn("token exchange rejected: malformed authorization code")
		return nil, flowErr(KindInvalidGrant, "invalid authorization code")
	}
	if payload.Expired(c.now()) {
		return nil, flowErr(KindInvalidGrant, "authorization code expired")
	}

	codeID, err := authcode.ID(code)
	if err != nil {
		return nil, flowErr(KindInvalidGrant, "invalid authorization code")
	}
	fresh, err := c.used.MarkUsed(ctx, codeID, usedCodeTTL)
	if err != nil {
		return nil, flowErrf(KindServerError, "code consumption check failed", err)
	}
	if !fresh {
		c.log.WithField("code_id", codeID).Warn("token exchange rejected: authorization code replay")
		return nil, flowErr(KindInvalidGrant, "authorization code already redeemed")
	}

	tenant, err := c.tenants.FindByName(ctx, payload.TenantName)
	if err != nil {
		return nil, flowErrf(KindServerError, "tenant lookup failed", err)
	}
	id, err := c.identities.FindByUsername(ctx, payload.Username)
	if err != nil {
		return nil, flowErrf(KindServerError, "identity lookup failed", err)
	}

	return c.issuePair(tenant.ID.String(), id.Username, payload.ApprovedScopes, id.Roles.Names())
}

func (c *Controller) refresh(_ context.Context, refreshToken string) (*TokenResponse, error) {
	if refreshToken == "" {
		return nil, flowErr(KindInvalidRequest, "refresh_token is required")
	}
	claims, err := c.issuer.Verify(refreshToken)
	if err != nil {
		return nil, flowErr(KindInvalidGrant, "invalid refresh token")
	}

	tenantID, _ := claims["tenant-id"].(string)
	subject, _ := claims["sub"].(string)
	scope, _ := claims["scope"].(string)
	if tenantID == "" || subject == "" {
		return nil, flowErr(KindInvalidGrant, "invalid refresh token")
	}
	return c.issuePair(tenantID, subject, scope, groupsClaim(claims))
}

func (c *Controller) issuePair(tenantID, subject, scope string, groups []string) (*TokenResponse, error) {
	access, err := c.issuer.Issue(tenantID, subject, scope, groups)
	if err != nil {
		return nil, flowErrf(KindServerError, "token issuance failed", err)
	}
	refresh, err := c.issuer.Issue(tenantID, subject, scope, groups)
	if err != nil {
		return nil, flowErrf(KindServerError, "token issuance failed", err)
	}
	return &TokenResponse{TokenType: "Bearer", AccessToken: access, RefreshToken: refresh}, nil
}

func groupsClaim(claims map[string]any) []string {
	raw, _ := claims["groups"].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func redirectURL(base string, params url.Values) string {
	u, err := url.Parse(base)
	if err != nil {
		// The URI was validated against the tenant registration in
		// Authorize; a parse failure here means a broken registration.
		return base + "?" + params.Encode()
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
