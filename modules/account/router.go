// Package account exposes tenant signup and subscription management over
// HTTP. It is a thin JSON layer: all decisions live in the services it
// mounts.
package account

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/officekit/accountd/svc/signup"
	"github.com/officekit/accountd/svc/subscription"
	"github.com/officekit/accountd/svc/tenant"
)

// SignupService runs the provisioning saga.
type SignupService interface {
	Signup(ctx context.Context, req signup.Request) (signup.Result, error)
}

// SubscriptionService covers reads, user-initiated changes, and the
// administrative sweep triggers.
type SubscriptionService interface {
	Current(ctx context.Context, tenantID string) (subscription.Subscription, error)
	Change(ctx context.Context, tenantID string, change subscription.PlanChange) (subscription.Subscription, error)
	Cancel(ctx context.Context, tenantID, reason string) (subscription.Subscription, error)
	ProcessRenewals(ctx context.Context) (int, error)
	ProcessTrialExpirations(ctx context.Context) (int, error)
}

// TenantUserService adds accounts to a tenant's realm.
type TenantUserService interface {
	CreateUser(ctx context.Context, tenantID string, u tenant.NewUser) error
}

// SeatService reports seat usage against the tenant's plan ceiling.
type SeatService interface {
	Seats(ctx context.Context, tenantID, planCode string) (subscription.Seats, error)
}

// NotificationService retries failed deliveries.
type NotificationService interface {
	Retry(ctx context.Context, id uuid.UUID) error
}

// Deps wires the module. SignupLimiter is optional middleware applied to
// the signup route only.
type Deps struct {
	Signup        SignupService
	Subscriptions SubscriptionService
	Notifications NotificationService
	Users         TenantUserService
	Seats         SeatService
	Log           *slog.Logger

	SignupLimiter func(http.Handler) http.Handler
	Healthcheck   func(ctx context.Context) error
}

// Router mounts the account module.
func Router(deps Deps) chi.Router {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	h := &handlers{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		if deps.SignupLimiter != nil {
			r.Use(deps.SignupLimiter)
		}
		r.Post("/signup", h.signup)
	})

	r.Route("/tenants/{tenantID}", func(r chi.Router) {
		r.Post("/users", h.createTenantUser)
		r.Route("/subscription", func(r chi.Router) {
			r.Get("/", h.currentSubscription)
			r.Get("/seats", h.tenantSeats)
			r.Post("/change", h.changeSubscription)
			r.Post("/cancel", h.cancelSubscription)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/sweeps/renewals", h.processRenewals)
		r.Post("/sweeps/trial-expirations", h.processTrialExpirations)
		r.Post("/notifications/{notificationID}/retry", h.retryNotification)
	})

	r.Get("/health", h.health)

	return r
}
