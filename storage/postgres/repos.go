// Package pgstore implements the identity repositories on Postgres
// through bun over a pgx connection pool.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/soilmonitoring/phoenix-iam/identity"
)

// NewDB wraps an existing pgx pool for bun.
func NewDB(pool *pgxpool.Pool) *bun.DB {
	sqldb := stdlib.OpenDBFromPool(pool)
	return bun.NewDB(sqldb, pgdialect.New())
}

// TenantRepo implements identity.TenantRepository.
type TenantRepo struct {
	db *bun.DB
}

func NewTenantRepo(db *bun.DB) *TenantRepo { return &TenantRepo{db: db} }

func (r *TenantRepo) FindByName(ctx context.Context, name string) (*identity.Tenant, error) {
	t := new(identity.Tenant)
	err := r.db.NewSelect().Model(t).Where("name = ?", name).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select tenant: %w", err)
	}
	return t, nil
}

func (r *TenantRepo) Save(ctx context.Context, t *identity.Tenant) error {
	_, err := r.db.NewInsert().Model(t).
		On("CONFLICT (name) DO UPDATE").
		Set("redirect_uri = EXCLUDED.redirect_uri").
		Set("allowed_scopes = EXCLUDED.allowed_scopes").
		Set("grant_types = EXCLUDED.grant_types").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert tenant: %w", err)
	}
	return nil
}

// IdentityRepo implements identity.IdentityRepository.
type IdentityRepo struct {
	db *bun.DB
}

func NewIdentityRepo(db *bun.DB) *IdentityRepo { return &IdentityRepo{db: db} }

func (r *IdentityRepo) FindByUsername(ctx context.Context, username string) (*identity.Identity, error) {
	return r.findWhere(ctx, "username = ?", username)
}

func (r *IdentityRepo) FindByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	return r.findWhere(ctx, "email = ?", email)
}

func (r *IdentityRepo) findWhere(ctx context.Context, cond string, arg any) (*identity.Identity, error) {
	id := new(identity.Identity)
	err := r.db.NewSelect().Model(id).Where(cond, arg).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select identity: %w", err)
	}
	return id, nil
}

func (r *IdentityRepo) Save(ctx context.Context, id *identity.Identity) error {
	_, err := r.db.NewInsert().Model(id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

func (r *IdentityRepo) SetActivated(ctx context.Context, identityID uuid.UUID, activated bool) error {
	res, err := r.db.NewUpdate().Model((*identity.Identity)(nil)).
		Set("activated = ?", activated).
		Where("id = ?", identityID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func (r *IdentityRepo) Delete(ctx context.Context, identityID uuid.UUID) error {
	_, err := r.db.NewDelete().Model((*identity.Identity)(nil)).
		Where("id = ?", identityID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	return nil
}

// GrantRepo implements identity.GrantRepository.
type GrantRepo struct {
	db *bun.DB
}

func NewGrantRepo(db *bun.DB) *GrantRepo { return &GrantRepo{db: db} }

func (r *GrantRepo) Find(ctx context.Context, tenantID, identityID uuid.UUID) (*identity.Grant, error) {
	g := new(identity.Grant)
	err := r.db.NewSelect().Model(g).
		Where("tenant_id = ?", tenantID).
		Where("identity_id = ?", identityID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select grant: %w", err)
	}
	return g, nil
}

func (r *GrantRepo) Save(ctx context.Context, g *identity.Grant) error {
	if g.IssuedAt.IsZero() {
		g.IssuedAt = time.Now()
	}
	_, err := r.db.NewInsert().Model(g).
		On("CONFLICT (tenant_id, identity_id) DO UPDATE").
		Set("approved_scopes = EXCLUDED.approved_scopes").
		Set("issued_at = EXCLUDED.issued_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert grant: %w", err)
	}
	return nil
}
