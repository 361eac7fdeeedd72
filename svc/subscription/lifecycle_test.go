package subscription_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/officekit/accountd/svc/subscription"
)

type trialNotifier struct {
	tenants []string
	err     error
}

func (n *trialNotifier) TrialEnded(_ context.Context, tenantID string) error {
	n.tenants = append(n.tenants, tenantID)
	return n.err
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestServiceStartActive(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	store := subscription.NewMemoryStore()
	svc := subscription.NewService(store, subscription.NewCatalog(nil), subscription.WithClock(fixedClock(now)))

	sub, err := svc.Start(context.Background(), "acme-corp", "BASIC", subscription.CycleMonthly, false)
	require.NoError(t, err)

	assert.Equal(t, subscription.StatusActive, sub.Status)
	assert.Equal(t, "BASIC", sub.PlanCode)
	assert.EqualValues(t, 2900, sub.PriceCents)
	assert.Equal(t, now, sub.StartDate)
	assert.Equal(t, now.AddDate(0, 1, 0), sub.EndDate)
	assert.Equal(t, now.AddDate(0, 1, 0), sub.NextBillingDate)
	assert.Nil(t, sub.TrialEndDate)
	assert.True(t, sub.AutoRenew)
}

func TestServiceStartTrialDefaultsToFreePlan(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	store := subscription.NewMemoryStore()
	svc := subscription.NewService(store, subscription.NewCatalog(nil), subscription.WithClock(fixedClock(now)))

	sub, err := svc.Start(context.Background(), "acme-corp", "", subscription.CycleMonthly, true)
	require.NoError(t, err)

	assert.Equal(t, subscription.StatusTrial, sub.Status)
	assert.Equal(t, "FREE", sub.PlanCode)
	require.NotNil(t, sub.TrialEndDate)
	assert.Equal(t, now.AddDate(0, 0, 14), *sub.TrialEndDate)
}

func TestServiceStartRejectsSecondCurrentSubscription(t *testing.T) {
	t.Parallel()

	store := subscription.NewMemoryStore()
	svc := subscription.NewService(store, subscription.NewCatalog(nil))
	ctx := context.Background()

	_, err := svc.Start(ctx, "acme-corp", "FREE", subscription.CycleMonthly, false)
	require.NoError(t, err)

	_, err = svc.Start(ctx, "acme-corp", "BASIC", subscription.CycleMonthly, false)
	require.ErrorIs(t, err, subscription.ErrAlreadySubscribed)
}

func TestServiceStartUnknownPlan(t *testing.T) {
	t.Parallel()

	svc := subscription.NewService(subscription.NewMemoryStore(), subscription.NewCatalog(nil))
	_, err := svc.Start(context.Background(), "acme-corp", "ENTERPRISE", subscription.CycleMonthly, false)
	require.ErrorIs(t, err, subscription.ErrPlanNotFound)
}

func TestServiceChangeRejectsNoOp(t *testing.T) {
	t.Parallel()

	store := subscription.NewMemoryStore()
	svc := subscription.NewService(store, subscription.NewCatalog(nil))
	ctx := context.Background()

	created, err := svc.Start(ctx, "acme-corp", "BASIC", subscription.CycleMonthly, false)
	require.NoError(t, err)

	_, err = svc.Change(ctx, "acme-corp", subscription.PlanChange{NewPlanCode: "BASIC", BillingCycle: subscription.CycleMonthly})
	require.ErrorIs(t, err, subscription.ErrNoChange)

	// Nothing mutated.
	current, err := store.Current(ctx, "acme-corp")
	require.NoError(t, err)
	assert.Equal(t, created.ID, current.ID)
	assert.Equal(t, subscription.StatusActive, current.Status)
}

func TestServiceChangeCreatesNewRowAndCancelsOld(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	store := subscription.NewMemoryStore()
	svc := subscription.NewService(store, subscription.NewCatalog(nil), subscription.WithClock(fixedClock(now)))
	ctx := context.Background()

	old, err := svc.Start(ctx, "acme-corp", "BASIC", subscription.CycleMonthly, false)
	require.NoError(t, err)

	next, err := svc.Change(ctx, "acme-corp", subscription.PlanChange{NewPlanCode: "PRO", BillingCycle: subscription.CycleYearly})
	require.NoError(t, err)

	assert.NotEqual(t, old.ID, next.ID, "plan change must create a new row")
	assert.Equal(t, "PRO", next.PlanCode)
	assert.Equal(t, subscription.StatusActive, next.Status)
	assert.EqualValues(t, 9900*12*8/10, next.PriceCents)

	cancelled, err := store.GetByID(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusCancelled, cancelled.Status)
	assert.Equal(t, "Upgraded to PRO", cancelled.CancellationReason)
	require.NotNil(t, cancelled.CancelledAt)

	assert.Equal(t, "PRO", store.TenantPlans["acme-corp"], "tenant plan reference must follow the change")
}

func TestServiceChangeRecordsCallerReason(t *testing.T) {
	t.Parallel()

	store := subscription.NewMemoryStore()
	svc := subscription.NewService(store, subscription.NewCatalog(nil))
	ctx := context.Background()

	old, err := svc.Start(ctx, "acme-corp", "BASIC", subscription.CycleMonthly, false)
	require.NoError(t, err)

	_, err = svc.Change(ctx, "acme-corp", subscription.PlanChange{
		NewPlanCode:  "PRO",
		BillingCycle: subscription.CycleMonthly,
		Reason:       "need unlimited seats",
	})
	require.NoError(t, err)

	cancelled, err := store.GetByID(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, "need unlimited seats", cancelled.CancellationReason)
}

func TestServiceChangeRejectsStalePlanPrecondition(t *testing.T) {
	t.Parallel()

	store := subscription.NewMemoryStore()
	svc := subscription.NewService(store, subscription.NewCatalog(nil))
	ctx := context.Background()

	created, err := svc.Start(ctx, "acme-corp", "PRO", subscription.CycleMonthly, false)
	require.NoError(t, err)

	_, err = svc.Change(ctx, "acme-corp", subscription.PlanChange{
		CurrentPlanCode: "BASIC",
		NewPlanCode:     "FREE",
		BillingCycle:    subscription.CycleMonthly,
	})
	require.ErrorIs(t, err, subscription.ErrPlanMismatch)

	current, err := store.Current(ctx, "acme-corp")
	require.NoError(t, err)
	assert.Equal(t, created.ID, current.ID)
}

func TestServiceChangeWithoutSubscription(t *testing.T) {
	t.Parallel()

	svc := subscription.NewService(subscription.NewMemoryStore(), subscription.NewCatalog(nil))
	_, err := svc.Change(context.Background(), "ghost", subscription.PlanChange{NewPlanCode: "PRO", BillingCycle: subscription.CycleMonthly})
	require.ErrorIs(t, err, subscription.ErrTenantHasNoSub)
}

func TestServiceChangeInvokesPlanChangeHook(t *testing.T) {
	t.Parallel()

	var invalidated []string
	store := subscription.NewMemoryStore()
	svc := subscription.NewService(store, subscription.NewCatalog(nil),
		subscription.WithPlanChangeHook(func(tenantID string) {
			invalidated = append(invalidated, tenantID)
		}))
	ctx := context.Background()

	_, err := svc.Start(ctx, "acme-corp", "BASIC", subscription.CycleMonthly, false)
	require.NoError(t, err)

	_, err = svc.Change(ctx, "acme-corp", subscription.PlanChange{NewPlanCode: "PRO", BillingCycle: subscription.CycleMonthly})
	require.NoError(t, err)
	assert.Equal(t, []string{"acme-corp"}, invalidated)

	// A rejected change must not fire the hook.
	_, err = svc.Change(ctx, "acme-corp", subscription.PlanChange{NewPlanCode: "PRO", BillingCycle: subscription.CycleMonthly})
	require.ErrorIs(t, err, subscription.ErrNoChange)
	assert.Len(t, invalidated, 1)
}

func TestServiceCancel(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	store := subscription.NewMemoryStore()
	svc := subscription.NewService(store, subscription.NewCatalog(nil), subscription.WithClock(fixedClock(now)))
	ctx := context.Background()

	created, err := svc.Start(ctx, "acme-corp", "BASIC", subscription.CycleMonthly, false)
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, "acme-corp", "switching vendors")
	require.NoError(t, err)
	assert.Equal(t, created.ID, cancelled.ID)
	assert.Equal(t, subscription.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, now, *cancelled.CancelledAt)
	assert.False(t, cancelled.AutoRenew)

	_, err = svc.Cancel(ctx, "acme-corp", "again")
	require.ErrorIs(t, err, subscription.ErrTenantHasNoSub)
}

func TestProcessRenewalsAdvancesOneCalendarMonthFromPreviousValue(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	store := subscription.NewMemoryStore()
	svc := subscription.NewService(store, subscription.NewCatalog(nil), subscription.WithClock(fixedClock(now)))
	ctx := context.Background()

	// Billing anchor is the 14th; the sweep runs a day late.
	anchor := time.Date(2026, time.February, 14, 0, 0, 0, 0, time.UTC)
	sub := activeSubscription(t, store, "acme-corp", subscription.CycleMonthly, anchor, true)

	processed, err := svc.ProcessRenewals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	renewed, err := store.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, renewed.Status)
	assert.Equal(t, time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC), renewed.NextBillingDate,
		"renewal must advance from the previous anchor, not from the sweep time")
}

func TestProcessRenewalsExpiresWithoutAutoRenew(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	store := subscription.NewMemoryStore()
	svc := subscription.NewService(store, subscription.NewCatalog(nil), subscription.WithClock(fixedClock(now)))
	ctx := context.Background()

	anchor := time.Date(2026, time.February, 14, 0, 0, 0, 0, time.UTC)
	sub := activeSubscription(t, store, "acme-corp", subscription.CycleMonthly, anchor, false)

	processed, err := svc.ProcessRenewals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	expired, err := store.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusExpired, expired.Status)
}

func TestProcessRenewalsSkipsFutureBillingDates(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	store := subscription.NewMemoryStore()
	svc := subscription.NewService(store, subscription.NewCatalog(nil), subscription.WithClock(fixedClock(now)))

	activeSubscription(t, store, "acme-corp", subscription.CycleMonthly, now.AddDate(0, 0, 10), true)

	processed, err := svc.ProcessRenewals(context.Background())
	require.NoError(t, err)
	assert.Zero(t, processed)
}

func TestProcessTrialExpirationsConvertsWithAutoRenew(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	store := subscription.NewMemoryStore()
	notifier := &trialNotifier{}
	svc := subscription.NewService(store, subscription.NewCatalog(nil),
		subscription.WithClock(fixedClock(now)), subscription.WithNotifier(notifier))
	ctx := context.Background()

	sub := trialSubscription(t, store, "acme-corp", now.AddDate(0, 0, -1), true)

	processed, err := svc.ProcessTrialExpirations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	converted, err := store.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, converted.Status)
	assert.Nil(t, converted.TrialEndDate, "conversion must clear the trial deadline")
	assert.Equal(t, []string{"acme-corp"}, notifier.tenants)
}

func TestProcessTrialExpirationsCancelsWithoutAutoRenew(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	store := subscription.NewMemoryStore()
	svc := subscription.NewService(store, subscription.NewCatalog(nil), subscription.WithClock(fixedClock(now)))
	ctx := context.Background()

	sub := trialSubscription(t, store, "acme-corp", now.AddDate(0, 0, -1), false)

	processed, err := svc.ProcessTrialExpirations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	cancelled, err := store.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, "Trial expired", cancelled.CancellationReason)
}

func TestProcessTrialExpirationsSwallowsNotifierFailure(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	store := subscription.NewMemoryStore()
	notifier := &trialNotifier{err: errors.New("smtp down")}
	svc := subscription.NewService(store, subscription.NewCatalog(nil),
		subscription.WithClock(fixedClock(now)), subscription.WithNotifier(notifier))
	ctx := context.Background()

	sub := trialSubscription(t, store, "acme-corp", now.AddDate(0, 0, -1), true)

	processed, err := svc.ProcessTrialExpirations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	converted, err := store.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, converted.Status, "notification failure must not block the conversion")
}

func activeSubscription(t *testing.T, store *subscription.MemoryStore, tenantID string, cycle subscription.BillingCycle, nextBilling time.Time, autoRenew bool) subscription.Subscription {
	t.Helper()
	svc := subscription.NewService(store, subscription.NewCatalog(nil),
		subscription.WithClock(fixedClock(nextBilling.AddDate(0, -1, 0))))
	sub, err := svc.Start(context.Background(), tenantID, "BASIC", cycle, false)
	require.NoError(t, err)

	sub.StartDate = nextBilling.AddDate(0, -1, 0)
	sub.EndDate = nextBilling
	sub.NextBillingDate = nextBilling
	sub.AutoRenew = autoRenew
	require.NoError(t, store.Update(context.Background(), sub))
	return sub
}

func trialSubscription(t *testing.T, store *subscription.MemoryStore, tenantID string, trialEnd time.Time, autoRenew bool) subscription.Subscription {
	t.Helper()
	svc := subscription.NewService(store, subscription.NewCatalog(nil),
		subscription.WithClock(fixedClock(trialEnd.AddDate(0, 0, -14))))
	sub, err := svc.Start(context.Background(), tenantID, "FREE", subscription.CycleMonthly, true)
	require.NoError(t, err)

	sub.TrialEndDate = &trialEnd
	sub.AutoRenew = autoRenew
	require.NoError(t, store.Update(context.Background(), sub))
	return sub
}
