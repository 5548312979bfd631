package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soilmonitoring/phoenix-iam/identity"
)

// FilterScopes intersects two space-delimited scope sets, keeping the
// iteration order of requested and dropping anything not previously
// approved.
func FilterScopes(previouslyApproved, requested string) string {
	approved := make(map[string]bool)
	for _, s := range strings.Fields(previouslyApproved) {
		approved[s] = true
	}
	var out []string
	for _, s := range strings.Fields(requested) {
		if approved[s] {
			out = append(out, s)
		}
	}
	return strings.Join(out, " ")
}

// GrantService resolves consent records and persists consent decisions.
type GrantService struct {
	tenants    identity.TenantRepository
	identities identity.IdentityRepository
	grants     identity.GrantRepository
	now        func() time.Time
}

func NewGrantService(tenants identity.TenantRepository, identities identity.IdentityRepository, grants identity.GrantRepository, now func() time.Time) *GrantService {
	if now == nil {
		now = time.Now
	}
	return &GrantService{tenants: tenants, identities: identities, grants: grants, now: now}
}

// ExistingGrant returns the stored consent for (tenant, identity), or
// nil when the user has never consented to this tenant.
func (s *GrantService) ExistingGrant(ctx context.Context, tenant *identity.Tenant, id *identity.Identity) (*identity.Grant, error) {
	g, err := s.grants.Find(ctx, tenant.ID, id.ID)
	if errors.Is(err, identity.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("look up grant: %w", err)
	}
	return g, nil
}

// RecordConsent resolves the tenant and identity and durably stores the
// approved scopes. A persistence failure is a hard error; consent must
// never appear granted when it was not stored.
func (s *GrantService) RecordConsent(ctx context.Context, tenantName, username, approvedScopes string) error {
	tenant, err := s.tenants.FindByName(ctx, tenantName)
	if err != nil {
		return fmt.Errorf("resolve tenant %q: %w", tenantName, err)
	}
	id, err := s.identities.FindByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("resolve identity %q: %w", username, err)
	}
	g := &identity.Grant{
		TenantID:       tenant.ID,
		IdentityID:     id.ID,
		ApprovedScopes: approvedScopes,
		IssuedAt:       s.now(),
	}
	if err := s.grants.Save(ctx, g); err != nil {
		return fmt.Errorf("persist grant: %w", err)
	}
	return nil
}
