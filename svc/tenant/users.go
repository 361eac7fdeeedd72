package tenant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserStore keeps a local mirror of identity provider accounts. The
// provider is authoritative; these rows are a best-effort cache used for
// listings and joins.
type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

// Mirror upserts the local copy of a realm account.
func (s *UserStore) Mirror(ctx context.Context, tenantID, email, firstName, lastName string, isAdmin bool) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, tenant_id, email, first_name, last_name, is_admin)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, email) DO UPDATE
		SET first_name = excluded.first_name, last_name = excluded.last_name,
			is_admin = excluded.is_admin, updated_at = now()`,
		uuid.New(), tenantID, email, firstName, lastName, isAdmin)
	if err != nil {
		return fmt.Errorf("mirror user for %s: %w", tenantID, err)
	}
	return nil
}

// MirrorAdmin upserts the tenant's admin account.
func (s *UserStore) MirrorAdmin(ctx context.Context, tenantID, email, firstName, lastName string) error {
	return s.Mirror(ctx, tenantID, email, firstName, lastName, true)
}
