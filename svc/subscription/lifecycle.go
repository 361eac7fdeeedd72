package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const defaultTrialDays = 14

// TrialEndedNotifier is told when a trial converts to active. Delivery is
// best effort; failures never block the sweep.
type TrialEndedNotifier interface {
	TrialEnded(ctx context.Context, tenantID string) error
}

// Service owns subscription creation and every status transition,
// including the scheduled sweeps.
type Service struct {
	store        Store
	catalog      *Catalog
	log          *slog.Logger
	notifier     TrialEndedNotifier
	onPlanChange func(tenantID string)
	trialDays    int
	now          func() time.Time
}

type Option func(*Service)

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func WithNotifier(n TrialEndedNotifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithTrialPeriod(days int) Option {
	return func(s *Service) { s.trialDays = days }
}

// WithPlanChangeHook runs after a plan change commits. Used to drop
// cached tenant state that embeds the plan.
func WithPlanChangeHook(fn func(tenantID string)) Option {
	return func(s *Service) { s.onPlanChange = fn }
}

// WithClock overrides the time source. Tests use it to move deadlines
// into the past without sleeping.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, catalog *Catalog, opts ...Option) *Service {
	s := &Service{
		store:     store,
		catalog:   catalog,
		log:       slog.Default(),
		trialDays: defaultTrialDays,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens a subscription for a tenant. An empty plan code selects the
// default plan. When trial is set, the row starts in the trial state with
// a trial deadline; otherwise it starts active.
func (s *Service) Start(ctx context.Context, tenantID, planCode string, cycle BillingCycle, trial bool) (Subscription, error) {
	plan, err := s.resolvePlan(planCode)
	if err != nil {
		return Subscription{}, err
	}
	if !cycle.Valid() {
		return Subscription{}, fmt.Errorf("%w: %q", ErrUnknownBillingCycle, cycle)
	}
	price, err := plan.PriceCents(cycle)
	if err != nil {
		return Subscription{}, err
	}

	now := s.now().UTC()
	end, err := cycle.Advance(now)
	if err != nil {
		return Subscription{}, err
	}

	sub := Subscription{
		ID:              uuid.New(),
		TenantID:        tenantID,
		PlanCode:        plan.Code,
		Status:          StatusActive,
		BillingCycle:    cycle,
		PriceCents:      price,
		StartDate:       now,
		EndDate:         end,
		NextBillingDate: end,
		AutoRenew:       true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if trial {
		sub.Status = StatusTrial
		trialEnd := now.AddDate(0, 0, s.trialDays)
		sub.TrialEndDate = &trialEnd
	}

	if err := s.store.Create(ctx, sub); err != nil {
		return Subscription{}, err
	}
	return sub, nil
}

func (s *Service) resolvePlan(code string) (Plan, error) {
	if code == "" {
		return s.catalog.Default()
	}
	return s.catalog.Get(code)
}

// Current returns the tenant's trial or active subscription.
func (s *Service) Current(ctx context.Context, tenantID string) (Subscription, error) {
	return s.store.Current(ctx, tenantID)
}

// PlanChange describes a requested plan or cycle switch. CurrentPlanCode
// is an optional precondition: when set, the change is rejected if the
// tenant is no longer on that plan. Reason, when set, replaces the
// default cancellation note on the superseded row.
type PlanChange struct {
	CurrentPlanCode string
	NewPlanCode     string
	BillingCycle    BillingCycle
	Reason          string
}

// Change moves a tenant to a new plan or cycle. The current row is
// cancelled and a fresh active row inserted in one transaction, keeping
// the full subscription history. The new term is charged at the plain
// plan price for the new cycle; there is no day-based proration.
func (s *Service) Change(ctx context.Context, tenantID string, change PlanChange) (Subscription, error) {
	current, err := s.store.Current(ctx, tenantID)
	if err != nil {
		return Subscription{}, fmt.Errorf("%w: %s", ErrTenantHasNoSub, tenantID)
	}
	if change.CurrentPlanCode != "" && change.CurrentPlanCode != current.PlanCode {
		return Subscription{}, fmt.Errorf("%w: tenant is on %s, not %s", ErrPlanMismatch, current.PlanCode, change.CurrentPlanCode)
	}
	if current.PlanCode == change.NewPlanCode && current.BillingCycle == change.BillingCycle {
		return Subscription{}, fmt.Errorf("%w: %s/%s", ErrNoChange, change.NewPlanCode, change.BillingCycle)
	}

	plan, err := s.catalog.Get(change.NewPlanCode)
	if err != nil {
		return Subscription{}, err
	}
	if !change.BillingCycle.Valid() {
		return Subscription{}, fmt.Errorf("%w: %q", ErrUnknownBillingCycle, change.BillingCycle)
	}
	price, err := plan.PriceCents(change.BillingCycle)
	if err != nil {
		return Subscription{}, err
	}

	reason := change.Reason
	if reason == "" {
		reason = "Upgraded to " + plan.Code
	}

	now := s.now().UTC()
	if err := current.Cancel(reason, now); err != nil {
		return Subscription{}, err
	}

	end, err := change.BillingCycle.Advance(now)
	if err != nil {
		return Subscription{}, err
	}
	next := Subscription{
		ID:              uuid.New(),
		TenantID:        tenantID,
		PlanCode:        plan.Code,
		Status:          StatusActive,
		BillingCycle:    change.BillingCycle,
		PriceCents:      price,
		StartDate:       now,
		EndDate:         end,
		NextBillingDate: end,
		AutoRenew:       true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.store.Replace(ctx, current, next); err != nil {
		return Subscription{}, err
	}
	if s.onPlanChange != nil {
		s.onPlanChange(tenantID)
	}
	s.log.InfoContext(ctx, "subscription changed",
		slog.String("tenant_id", tenantID),
		slog.String("from_plan", current.PlanCode),
		slog.String("to_plan", next.PlanCode),
		slog.String("billing_cycle", next.BillingCycle.String()))
	return next, nil
}

// Cancel transitions the tenant's current subscription to cancelled.
func (s *Service) Cancel(ctx context.Context, tenantID, reason string) (Subscription, error) {
	current, err := s.store.Current(ctx, tenantID)
	if err != nil {
		return Subscription{}, fmt.Errorf("%w: %s", ErrTenantHasNoSub, tenantID)
	}
	if err := current.Cancel(reason, s.now().UTC()); err != nil {
		return Subscription{}, err
	}
	if err := s.store.Update(ctx, current); err != nil {
		return Subscription{}, err
	}
	s.log.InfoContext(ctx, "subscription cancelled",
		slog.String("tenant_id", tenantID),
		slog.String("reason", reason))
	return current, nil
}

// ProcessRenewals advances every past-due active subscription by one
// billing cycle, or expires it when auto-renew is off. Dates advance from
// their previous values so a late sweep does not shift billing anchors.
func (s *Service) ProcessRenewals(ctx context.Context) (int, error) {
	now := s.now().UTC()
	return s.store.SweepDueRenewals(ctx, now, func(ctx context.Context, sub Subscription) (Subscription, error) {
		if !sub.AutoRenew {
			if err := sub.Expire(); err != nil {
				return Subscription{}, err
			}
			s.log.InfoContext(ctx, "subscription expired",
				slog.String("tenant_id", sub.TenantID),
				slog.String("subscription_id", sub.ID.String()))
			return sub, nil
		}
		if err := sub.Renew(); err != nil {
			return Subscription{}, err
		}
		s.log.InfoContext(ctx, "subscription renewed",
			slog.String("tenant_id", sub.TenantID),
			slog.String("subscription_id", sub.ID.String()),
			slog.Time("next_billing_date", sub.NextBillingDate))
		return sub, nil
	})
}

// ProcessTrialExpirations converts ended trials to active when auto-renew
// is on, otherwise cancels them.
func (s *Service) ProcessTrialExpirations(ctx context.Context) (int, error) {
	now := s.now().UTC()
	return s.store.SweepExpiredTrials(ctx, now, func(ctx context.Context, sub Subscription) (Subscription, error) {
		if !sub.AutoRenew {
			if err := sub.Cancel("Trial expired", now); err != nil {
				return Subscription{}, err
			}
			return sub, nil
		}
		if err := sub.ConvertTrial(); err != nil {
			return Subscription{}, err
		}
		if s.notifier != nil {
			if err := s.notifier.TrialEnded(ctx, sub.TenantID); err != nil {
				s.log.WarnContext(ctx, "trial-ended notification failed",
					slog.String("tenant_id", sub.TenantID),
					slog.Any("error", err))
			}
		}
		return sub, nil
	})
}
