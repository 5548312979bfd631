// Package identity defines the tenants, identities and grants the
// authorization server reasons about, and the repository contracts the
// flow layer depends on. Persistence lives in storage/postgres.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var (
	// ErrNotFound reports a lookup miss for a tenant, identity or grant.
	ErrNotFound = errors.New("identity: not found")

	// ErrDuplicate reports a uniqueness violation on registration.
	ErrDuplicate = errors.New("identity: already exists")
)

// Tenant is a registered OAuth2 client. Name doubles as the client_id.
type Tenant struct {
	bun.BaseModel `bun:"table:tenants"`

	ID            uuid.UUID `bun:"id,pk,type:uuid"`
	Name          string    `bun:"name,notnull,unique"`
	RedirectURI   string    `bun:"redirect_uri,notnull"`
	AllowedScopes string    `bun:"allowed_scopes,notnull"`
	GrantTypes    string    `bun:"grant_types,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// Identity is an end user. Roles is a typed bitmask; see roles.go.
type Identity struct {
	bun.BaseModel `bun:"table:identities"`

	ID           uuid.UUID `bun:"id,pk,type:uuid"`
	Username     string    `bun:"username,notnull,unique"`
	Email        string    `bun:"email,notnull,unique"`
	PasswordHash string    `bun:"password_hash,notnull"`
	Activated    bool      `bun:"activated,notnull,default:false"`
	Roles        Role      `bun:"roles,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// Grant records that an identity approved a set of scopes for a tenant.
// One row per (tenant, identity); re-consent overwrites.
type Grant struct {
	bun.BaseModel `bun:"table:grants"`

	TenantID       uuid.UUID `bun:"tenant_id,pk,type:uuid"`
	IdentityID     uuid.UUID `bun:"identity_id,pk,type:uuid"`
	ApprovedScopes string    `bun:"approved_scopes,notnull"`
	IssuedAt       time.Time `bun:"issued_at,notnull"`
}

// TenantRepository resolves and persists tenants.
type TenantRepository interface {
	FindByName(ctx context.Context, name string) (*Tenant, error)
	Save(ctx context.Context, t *Tenant) error
}

// IdentityRepository resolves and persists identities.
type IdentityRepository interface {
	FindByUsername(ctx context.Context, username string) (*Identity, error)
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	Save(ctx context.Context, id *Identity) error
	SetActivated(ctx context.Context, identityID uuid.UUID, activated bool) error
	Delete(ctx context.Context, identityID uuid.UUID) error
}

// GrantRepository resolves and persists consent records.
type GrantRepository interface {
	Find(ctx context.Context, tenantID, identityID uuid.UUID) (*Grant, error)
	Save(ctx context.Context, g *Grant) error
}
