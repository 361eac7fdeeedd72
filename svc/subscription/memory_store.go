package subscription

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests. Replace is atomic under
// the store mutex; sweep isolation matches the Postgres behavior closely
// enough for lifecycle tests.
type MemoryStore struct {
	mu   sync.Mutex
	subs map[uuid.UUID]Subscription

	// TenantPlans records the plan reference moved by Replace, keyed by
	// tenant id, so tests can assert on it.
	TenantPlans map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subs:        make(map[uuid.UUID]Subscription),
		TenantPlans: make(map[string]string),
	}
}

func (s *MemoryStore) Create(_ context.Context, sub Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.Status.IsCurrent() {
		for _, existing := range s.subs {
			if existing.TenantID == sub.TenantID && existing.Status.IsCurrent() {
				return fmt.Errorf("%w: tenant %s", ErrAlreadySubscribed, sub.TenantID)
			}
		}
	}
	s.subs[sub.ID] = sub
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return Subscription{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sub, nil
}

func (s *MemoryStore) Current(_ context.Context, tenantID string) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		found   bool
		current Subscription
	)
	for _, sub := range s.subs {
		if sub.TenantID != tenantID || !sub.Status.IsCurrent() {
			continue
		}
		if !found || sub.CreatedAt.After(current.CreatedAt) {
			current, found = sub, true
		}
	}
	if !found {
		return Subscription{}, fmt.Errorf("%w: tenant %s", ErrNotFound, tenantID)
	}
	return current, nil
}

func (s *MemoryStore) Update(_ context.Context, sub Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(sub)
}

func (s *MemoryStore) updateLocked(sub Subscription) error {
	if _, ok := s.subs[sub.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sub.ID)
	}
	s.subs[sub.ID] = sub
	return nil
}

func (s *MemoryStore) Replace(_ context.Context, cancelled, next Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.updateLocked(cancelled); err != nil {
		return err
	}
	s.subs[next.ID] = next
	s.TenantPlans[next.TenantID] = next.PlanCode
	return nil
}

func (s *MemoryStore) SweepDueRenewals(ctx context.Context, now time.Time, fn SweepFunc) (int, error) {
	return s.sweep(ctx, fn, func(sub Subscription) bool {
		return sub.Status == StatusActive && sub.NextBillingDate.Before(now)
	})
}

func (s *MemoryStore) SweepExpiredTrials(ctx context.Context, now time.Time, fn SweepFunc) (int, error) {
	return s.sweep(ctx, fn, func(sub Subscription) bool {
		return sub.Status == StatusTrial && sub.TrialEndDate != nil && sub.TrialEndDate.Before(now)
	})
}

func (s *MemoryStore) sweep(ctx context.Context, fn SweepFunc, due func(Subscription) bool) (int, error) {
	s.mu.Lock()
	var dueSubs []Subscription
	for _, sub := range s.subs {
		if due(sub) {
			dueSubs = append(dueSubs, sub)
		}
	}
	s.mu.Unlock()

	// Deterministic order keeps test failures reproducible.
	sort.Slice(dueSubs, func(i, j int) bool { return dueSubs[i].CreatedAt.Before(dueSubs[j].CreatedAt) })

	var processed int
	for _, sub := range dueSubs {
		updated, err := fn(ctx, sub)
		if err != nil {
			continue
		}
		s.mu.Lock()
		err = s.updateLocked(updated)
		s.mu.Unlock()
		if err != nil {
			continue
		}
		processed++
	}
	return processed, nil
}
