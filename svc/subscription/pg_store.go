package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/officekit/accountd/pkg/pg"
)

// PGStore is the Postgres-backed Store. Sweeps take one transaction per
// row with FOR UPDATE SKIP LOCKED so concurrent sweeps and user-initiated
// cancels never double-process a subscription.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// dbtx is the subset of pgxpool.Pool and pgx.Tx the store needs.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const subscriptionColumns = `id, tenant_id, plan_code, status, billing_cycle, price_cents,
	start_date, end_date, next_billing_date, trial_end_date, cancelled_at,
	coalesce(cancellation_reason, ''), auto_renew, created_at, updated_at`

func scanSubscription(row pgx.Row) (Subscription, error) {
	var s Subscription
	err := row.Scan(&s.ID, &s.TenantID, &s.PlanCode, &s.Status, &s.BillingCycle, &s.PriceCents,
		&s.StartDate, &s.EndDate, &s.NextBillingDate, &s.TrialEndDate, &s.CancelledAt,
		&s.CancellationReason, &s.AutoRenew, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (s *PGStore) Create(ctx context.Context, sub Subscription) error {
	return insertSubscription(ctx, s.pool, sub)
}

func insertSubscription(ctx context.Context, db dbtx, sub Subscription) error {
	_, err := db.Exec(ctx, `
		INSERT INTO subscriptions (id, tenant_id, plan_code, status, billing_cycle, price_cents,
			start_date, end_date, next_billing_date, trial_end_date, auto_renew)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sub.ID, sub.TenantID, sub.PlanCode, sub.Status, sub.BillingCycle, sub.PriceCents,
		sub.StartDate, sub.EndDate, sub.NextBillingDate, sub.TrialEndDate, sub.AutoRenew)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: tenant %s", ErrAlreadySubscribed, sub.TenantID)
		}
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (s *PGStore) GetByID(ctx context.Context, id uuid.UUID) (Subscription, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Subscription{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Subscription{}, fmt.Errorf("get subscription %s: %w", id, err)
	}
	return sub, nil
}

func (s *PGStore) Current(ctx context.Context, tenantID string) (Subscription, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE tenant_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC
		LIMIT 1`,
		tenantID, StatusTrial, StatusActive)
	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Subscription{}, fmt.Errorf("%w: tenant %s", ErrNotFound, tenantID)
		}
		return Subscription{}, fmt.Errorf("get current subscription for %s: %w", tenantID, err)
	}
	return sub, nil
}

func (s *PGStore) Update(ctx context.Context, sub Subscription) error {
	return updateSubscription(ctx, s.pool, sub)
}

func updateSubscription(ctx context.Context, db dbtx, sub Subscription) error {
	tag, err := db.Exec(ctx, `
		UPDATE subscriptions
		SET plan_code = $2, status = $3, billing_cycle = $4, price_cents = $5,
			start_date = $6, end_date = $7, next_billing_date = $8, trial_end_date = $9,
			cancelled_at = $10, cancellation_reason = nullif($11, ''), auto_renew = $12,
			updated_at = now()
		WHERE id = $1`,
		sub.ID, sub.PlanCode, sub.Status, sub.BillingCycle, sub.PriceCents,
		sub.StartDate, sub.EndDate, sub.NextBillingDate, sub.TrialEndDate,
		sub.CancelledAt, sub.CancellationReason, sub.AutoRenew)
	if err != nil {
		return fmt.Errorf("update subscription %s: %w", sub.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, sub.ID)
	}
	return nil
}

// Replace runs the plan change as one transaction: the old row is
// cancelled, the new row inserted, and the tenant's plan reference moved.
func (s *PGStore) Replace(ctx context.Context, cancelled, next Subscription) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := updateSubscription(ctx, tx, cancelled); err != nil {
		return err
	}
	if err := insertSubscription(ctx, tx, next); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE tenants SET plan_code = $2, updated_at = now() WHERE id = $1`,
		next.TenantID, next.PlanCode); err != nil {
		return fmt.Errorf("update tenant plan reference: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PGStore) SweepDueRenewals(ctx context.Context, now time.Time, fn SweepFunc) (int, error) {
	return s.sweep(ctx, fn, `
		SELECT id FROM subscriptions WHERE status = 'active' AND next_billing_date < $1`, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE id = $1 AND status = 'active' AND next_billing_date < $2
		FOR UPDATE SKIP LOCKED`, now)
}

func (s *PGStore) SweepExpiredTrials(ctx context.Context, now time.Time, fn SweepFunc) (int, error) {
	return s.sweep(ctx, fn, `
		SELECT id FROM subscriptions WHERE status = 'trial' AND trial_end_date < $1`, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE id = $1 AND status = 'trial' AND trial_end_date < $2
		FOR UPDATE SKIP LOCKED`, now)
}

// sweep collects the due ids once, then processes each row in its own
// transaction. The row is re-selected under lock with the original
// predicate so rows that changed since the id scan are skipped, not
// double-processed.
func (s *PGStore) sweep(ctx context.Context, fn SweepFunc, idQuery, lockQuery string, now time.Time) (int, error) {
	rows, err := s.pool.Query(ctx, idQuery, now)
	if err != nil {
		return 0, fmt.Errorf("select due subscriptions: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return 0, fmt.Errorf("collect due subscriptions: %w", err)
	}

	var (
		processed int
		errs      []error
	)
	for _, id := range ids {
		if err := s.sweepOne(ctx, fn, lockQuery, id, now); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue // row changed or locked elsewhere since the id scan
			}
			errs = append(errs, fmt.Errorf("subscription %s: %w", id, err))
			continue
		}
		processed++
	}
	return processed, errors.Join(errs...)
}

func (s *PGStore) sweepOne(ctx context.Context, fn SweepFunc, lockQuery string, id uuid.UUID, now time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	sub, err := scanSubscription(tx.QueryRow(ctx, lockQuery, id, now))
	if err != nil {
		return err
	}
	updated, err := fn(ctx, sub)
	if err != nil {
		return err
	}
	if err := updateSubscription(ctx, tx, updated); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
