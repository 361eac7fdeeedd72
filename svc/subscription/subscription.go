// Package subscription binds tenants to plans and drives the billing
// lifecycle. Plan changes create a new row and cancel the old one so the
// subscription history stays intact.
package subscription

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/officekit/accountd/pkg/statemachine"
)

// Status is the billing state of a subscription. Transitions are
// one-directional; nothing re-enters trial.
type Status string

const (
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusPastDue   Status = "past_due"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
	StatusSuspended Status = "suspended"
)

func (s Status) String() string { return string(s) }

// IsCurrent reports whether the subscription occupies the tenant's single
// current slot.
func (s Status) IsCurrent() bool { return s == StatusTrial || s == StatusActive }

// BillingCycle is the renewal period of a subscription.
type BillingCycle string

const (
	CycleMonthly   BillingCycle = "monthly"
	CycleQuarterly BillingCycle = "quarterly"
	CycleYearly    BillingCycle = "yearly"
)

func (c BillingCycle) String() string { return string(c) }

// Valid reports whether the cycle is one of the known values.
func (c BillingCycle) Valid() bool {
	switch c {
	case CycleMonthly, CycleQuarterly, CycleYearly:
		return true
	}
	return false
}

// Advance adds one billing period to t using calendar arithmetic, so a
// monthly renewal on Jan 31 lands on the calendar-normalized next month
// rather than a fixed day count.
func (c BillingCycle) Advance(t time.Time) (time.Time, error) {
	switch c {
	case CycleMonthly:
		return t.AddDate(0, 1, 0), nil
	case CycleQuarterly:
		return t.AddDate(0, 3, 0), nil
	case CycleYearly:
		return t.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownBillingCycle, c)
	}
}

// Lifecycle events.
const (
	EventActivate    statemachine.StringEvent = "activate"
	EventCancel      statemachine.StringEvent = "cancel"
	EventExpire      statemachine.StringEvent = "expire"
	EventSuspend     statemachine.StringEvent = "suspend"
	EventResume      statemachine.StringEvent = "resume"
	EventMarkPastDue statemachine.StringEvent = "mark_past_due"
)

// transitions is the full lifecycle table. Shared by every writer so a
// sweep and a user-initiated cancel agree on what is legal.
var transitions = statemachine.MustNewTable(
	statemachine.T(StatusTrial.sm(), StatusActive.sm(), EventActivate),
	statemachine.T(StatusTrial.sm(), StatusCancelled.sm(), EventCancel),
	statemachine.T(StatusTrial.sm(), StatusExpired.sm(), EventExpire),
	statemachine.T(StatusActive.sm(), StatusCancelled.sm(), EventCancel),
	statemachine.T(StatusActive.sm(), StatusExpired.sm(), EventExpire),
	statemachine.T(StatusActive.sm(), StatusPastDue.sm(), EventMarkPastDue),
	statemachine.T(StatusActive.sm(), StatusSuspended.sm(), EventSuspend),
	statemachine.T(StatusPastDue.sm(), StatusActive.sm(), EventResume),
	statemachine.T(StatusPastDue.sm(), StatusCancelled.sm(), EventCancel),
	statemachine.T(StatusPastDue.sm(), StatusSuspended.sm(), EventSuspend),
	statemachine.T(StatusSuspended.sm(), StatusActive.sm(), EventResume),
	statemachine.T(StatusSuspended.sm(), StatusCancelled.sm(), EventCancel),
	statemachine.T(StatusCancelled.sm(), StatusExpired.sm(), EventExpire),
)

func (s Status) sm() statemachine.StringState { return statemachine.StringState(s) }

// CanTransition reports whether an event is legal from the given status.
func CanTransition(from Status, event statemachine.StringEvent) bool {
	return transitions.Can(from.sm(), event)
}

// Subscription is one billing term of a tenant on a plan.
type Subscription struct {
	ID                 uuid.UUID
	TenantID           string
	PlanCode           string
	Status             Status
	BillingCycle       BillingCycle
	PriceCents         int64
	StartDate          time.Time
	EndDate            time.Time
	NextBillingDate    time.Time
	TrialEndDate       *time.Time
	CancelledAt        *time.Time
	CancellationReason string
	AutoRenew          bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// transition applies an event, enforcing the lifecycle table.
func (s *Subscription) transition(event statemachine.StringEvent) error {
	next, err := transitions.Target(s.Status.sm(), event)
	if err != nil {
		return fmt.Errorf("%w: %s on %s", ErrInvalidTransition, event, s.Status)
	}
	s.Status = Status(next.(statemachine.StringState))
	return nil
}

// Cancel transitions the subscription to cancelled, stamping the time and
// reason and switching auto-renew off.
func (s *Subscription) Cancel(reason string, at time.Time) error {
	if err := s.transition(EventCancel); err != nil {
		return err
	}
	s.CancelledAt = &at
	s.CancellationReason = reason
	s.AutoRenew = false
	return nil
}

// ConvertTrial promotes a trial to active and clears the trial deadline.
func (s *Subscription) ConvertTrial() error {
	if err := s.transition(EventActivate); err != nil {
		return err
	}
	s.TrialEndDate = nil
	return nil
}

// Expire transitions the subscription to expired.
func (s *Subscription) Expire() error {
	return s.transition(EventExpire)
}

// Renew advances the billing window by one cycle from the previous
// values, not from the current clock, so late sweeps do not drift the
// schedule.
func (s *Subscription) Renew() error {
	start, err := s.BillingCycle.Advance(s.StartDate)
	if err != nil {
		return err
	}
	end, err := s.BillingCycle.Advance(s.EndDate)
	if err != nil {
		return err
	}
	next, err := s.BillingCycle.Advance(s.NextBillingDate)
	if err != nil {
		return err
	}
	s.StartDate, s.EndDate, s.NextBillingDate = start, end, next
	return nil
}
