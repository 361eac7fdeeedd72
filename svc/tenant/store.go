package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/officekit/accountd/pkg/pg"
)

// Store persists tenants in Postgres. The client secret is written but
// never read back into the model; it stays server-side only.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const tenantColumns = `id, company_name, realm, status, admin_email, admin_username,
	provider, locale, country, phone, coalesce(api_client_id, ''), coalesce(ui_client_id, ''), created_at, updated_at`

func scanTenant(row pgx.Row) (Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.CompanyName, &t.Realm, &t.Status, &t.AdminEmail, &t.AdminUsername,
		&t.Provider, &t.Locale, &t.Country, &t.Phone, &t.APIClientID, &t.UIClientID, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// Create inserts a tenant in the provisioning state.
func (s *Store) Create(ctx context.Context, t Tenant) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tenants (id, company_name, realm, status, admin_email, admin_username, provider, locale, country, phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.CompanyName, t.Realm, t.Status, t.AdminEmail, t.AdminUsername, t.Provider, t.Locale, t.Country, t.Phone)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, t.ID)
		}
		return fmt.Errorf("create tenant %s: %w", t.ID, err)
	}
	return nil
}

// GetByID loads one tenant.
func (s *Store) GetByID(ctx context.Context, id string) (Tenant, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	t, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Tenant{}, fmt.Errorf("get tenant %s: %w", id, err)
	}
	return t, nil
}

// Exists reports whether a tenant id is taken, in any status. Reserved
// rows count so a failed provisioning attempt keeps its id.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tenants WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check tenant %s: %w", id, err)
	}
	return exists, nil
}

// AdminEmailTaken reports whether any tenant already uses the email as
// its admin address.
func (s *Store) AdminEmailTaken(ctx context.Context, email string) (bool, error) {
	var taken bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tenants WHERE admin_email = $1)`, email).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check admin email: %w", err)
	}
	return taken, nil
}

// UpdateStatus moves a tenant to a new lifecycle state.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tenants SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update tenant %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Activate records the provisioned client credentials and marks the
// tenant active in one statement.
func (s *Store) Activate(ctx context.Context, id, apiClientID, apiClientSecret, uiClientID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tenants
		SET status = $2, api_client_id = $3, api_client_secret = $4, ui_client_id = $5, updated_at = now()
		WHERE id = $1`,
		id, StatusActive, apiClientID, apiClientSecret, uiClientID)
	if err != nil {
		return fmt.Errorf("activate tenant %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// List returns tenants ordered by creation time, newest first.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Tenant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+tenantColumns+` FROM tenants ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}
