package subscription

import (
	"context"
	"fmt"
)

// UserCounter reports how many accounts a tenant realm currently holds.
// The identity provider is authoritative for account counts.
type UserCounter interface {
	GetUserCount(ctx context.Context, realm string) (int, error)
}

// Seats is seat usage against the plan ceiling. Max is UnlimitedUsers
// when the plan has no ceiling.
type Seats struct {
	Used int `json:"used"`
	Max  int `json:"max"`
}

// Enforcer checks plan seat ceilings before new accounts are admitted.
type Enforcer struct {
	catalog *Catalog
	users   UserCounter
}

func NewEnforcer(catalog *Catalog, users UserCounter) *Enforcer {
	return &Enforcer{catalog: catalog, users: users}
}

// Seats returns current usage for a tenant under the given plan.
func (e *Enforcer) Seats(ctx context.Context, tenantID, planCode string) (Seats, error) {
	plan, err := e.catalog.Get(planCode)
	if err != nil {
		return Seats{}, err
	}
	used, err := e.users.GetUserCount(ctx, tenantID)
	if err != nil {
		return Seats{}, fmt.Errorf("count users for %s: %w", tenantID, err)
	}
	return Seats{Used: used, Max: plan.MaxUsers}, nil
}

// CheckCapacity reports whether the tenant can add n more accounts
// without exceeding the plan ceiling.
func (e *Enforcer) CheckCapacity(ctx context.Context, tenantID, planCode string, n int) error {
	seats, err := e.Seats(ctx, tenantID, planCode)
	if err != nil {
		return err
	}
	if seats.Max == UnlimitedUsers {
		return nil
	}
	if seats.Used+n > seats.Max {
		return fmt.Errorf("%w: %d of %d seats used", ErrUserLimitReached, seats.Used, seats.Max)
	}
	return nil
}
