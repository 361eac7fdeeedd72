package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SweepFunc inspects one due subscription under its row lock and returns
// the updated row to persist. Returning an error skips the row without
// affecting the rest of the sweep.
type SweepFunc func(ctx context.Context, sub Subscription) (Subscription, error)

// Store persists subscriptions. Implementations must make Replace atomic
// and must isolate sweep rows from each other so one bad row cannot roll
// back its neighbors.
type Store interface {
	Create(ctx context.Context, sub Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (Subscription, error)

	// Current returns the tenant's single trial or active subscription.
	// Returns ErrNotFound when the tenant has none.
	Current(ctx context.Context, tenantID string) (Subscription, error)

	Update(ctx context.Context, sub Subscription) error

	// Replace atomically persists the cancelled subscription, inserts its
	// successor, and moves the tenant's plan reference to the new plan.
	Replace(ctx context.Context, cancelled, next Subscription) error

	// SweepDueRenewals visits every active subscription whose next billing
	// date is before now and returns how many rows were updated.
	SweepDueRenewals(ctx context.Context, now time.Time, fn SweepFunc) (int, error)

	// SweepExpiredTrials visits every trial subscription whose trial end
	// date is before now and returns how many rows were updated.
	SweepExpiredTrials(ctx context.Context, now time.Time, fn SweepFunc) (int, error)
}
