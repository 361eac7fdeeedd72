package subscription

import "errors"

var (
	ErrNotFound            = errors.New("subscription: not found")
	ErrPlanNotFound        = errors.New("subscription: plan not found")
	ErrUnknownBillingCycle = errors.New("subscription: unknown billing cycle")
	ErrAlreadySubscribed   = errors.New("subscription: tenant already has a current subscription")
	ErrNoChange            = errors.New("subscription: new plan and cycle match the current subscription")
	ErrPlanMismatch        = errors.New("subscription: current plan does not match")
	ErrInvalidTransition   = errors.New("subscription: invalid status transition")
	ErrTenantHasNoSub      = errors.New("subscription: tenant has no current subscription")
	ErrUserLimitReached    = errors.New("subscription: plan user limit reached")
)
