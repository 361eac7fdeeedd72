// Package signup orchestrates tenant provisioning: local reservation,
// identity provider setup, and reconciliation, in that order.
//
// The saga never cleans up provider-side state on failure. A failed run
// leaves the tenant row in a terminal failure status as a diagnostic and
// retry anchor; partial realms are repaired out-of-band.
package signup

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/officekit/accountd/pkg/apperror"
	"github.com/officekit/accountd/pkg/passwordgen"
	"github.com/officekit/accountd/pkg/tenantid"
	"github.com/officekit/accountd/pkg/validator"
	"github.com/officekit/accountd/svc/idp"
	"github.com/officekit/accountd/svc/subscription"
	"github.com/officekit/accountd/svc/tenant"
)

// TenantStore is the slice of tenant persistence the saga needs.
type TenantStore interface {
	Create(ctx context.Context, t tenant.Tenant) error
	Exists(ctx context.Context, id string) (bool, error)
	AdminEmailTaken(ctx context.Context, email string) (bool, error)
	UpdateStatus(ctx context.Context, id string, status tenant.Status) error
	Activate(ctx context.Context, id, apiClientID, apiClientSecret, uiClientID string) error
}

// SubscriptionStarter opens the tenant's first subscription during the
// local reservation phase.
type SubscriptionStarter interface {
	Start(ctx context.Context, tenantID, planCode string, cycle subscription.BillingCycle, trial bool) (subscription.Subscription, error)
}

// AdminMirror caches the provisioned admin account locally. Failures are
// logged and swallowed: provider state is authoritative, the mirror is
// convenience.
type AdminMirror interface {
	MirrorAdmin(ctx context.Context, tenantID, email, firstName, lastName string) error
}

// Notifier delivers the signup-started notification. Best effort only.
type Notifier interface {
	SignupStarted(ctx context.Context, tenantID, adminEmail string) error
}

// Saga drives one signup end to end.
type Saga struct {
	gateway idp.Gateway
	tenants TenantStore
	subs    SubscriptionStarter

	mirror         AdminMirror
	notifier       Notifier
	log            *slog.Logger
	provider       string
	loginBaseURL   string
	allowedDomains []string
	bannedWords    []string
	realmRoles     []string
}

type Option func(*Saga)

func WithLogger(log *slog.Logger) Option {
	return func(s *Saga) { s.log = log }
}

func WithAdminMirror(m AdminMirror) Option {
	return func(s *Saga) { s.mirror = m }
}

func WithNotifier(n Notifier) Option {
	return func(s *Saga) { s.notifier = n }
}

// WithAllowedEmailDomains restricts admin emails to the given corporate
// domains. An empty list allows any domain.
func WithAllowedEmailDomains(domains []string) Option {
	return func(s *Saga) { s.allowedDomains = domains }
}

// WithDisplayNameFilter rejects display names containing any of the
// given words.
func WithDisplayNameFilter(words []string) Option {
	return func(s *Saga) { s.bannedWords = words }
}

func WithProviderName(name string) Option {
	return func(s *Saga) { s.provider = name }
}

// WithLoginBaseURL sets the base used to construct the login and admin
// console URLs in the signup result.
func WithLoginBaseURL(base string) Option {
	return func(s *Saga) { s.loginBaseURL = strings.TrimSuffix(base, "/") }
}

// WithRealmRoles overrides the roles created in every new realm.
func WithRealmRoles(roles []string) Option {
	return func(s *Saga) { s.realmRoles = roles }
}

func NewSaga(gateway idp.Gateway, tenants TenantStore, subs SubscriptionStarter, opts ...Option) *Saga {
	s := &Saga{
		gateway:    gateway,
		tenants:    tenants,
		subs:       subs,
		log:        slog.Default(),
		provider:   "keycloak",
		realmRoles: []string{"admin", "member"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signup runs the full provisioning saga. On success the tenant is
// active, its realm is provisioned, and its first subscription is open.
func (s *Saga) Signup(ctx context.Context, req Request) (Result, error) {
	req.ApplyDefaults()

	// Phase 1: validate everything and reserve local rows. No external
	// mutation happens until the full request is known to be good.
	violations := req.validate(s.allowedDomains, s.bannedWords)
	if emailTaken, err := s.tenants.AdminEmailTaken(ctx, req.AdminEmail); err != nil {
		return Result{}, apperror.Wrap(apperror.KindInternal, "admin email lookup failed", err)
	} else if emailTaken {
		violations = append(violations, validator.ValidationError{Field: "adminEmail", Message: "admin email is already registered"})
	}
	if len(violations) > 0 {
		return Result{}, apperror.Validation(violations.Messages()...)
	}

	id, err := s.allocateTenantID(ctx, req.CompanyName)
	if err != nil {
		return Result{}, err
	}

	password := req.AdminPassword
	if password == "" {
		password = passwordgen.Generate()
	}

	t := tenant.Tenant{
		ID:            id,
		CompanyName:   req.DisplayName,
		Realm:         id,
		Status:        tenant.StatusProvisioning,
		AdminEmail:    req.AdminEmail,
		AdminUsername: req.AdminEmail,
		Provider:      s.provider,
		Locale:        req.Locale,
		Country:       req.Country,
		Phone:         req.MobileNumber,
	}
	if err := s.tenants.Create(ctx, t); err != nil {
		if errors.Is(err, tenant.ErrAlreadyExists) {
			return Result{}, apperror.Wrap(apperror.KindConflict, "tenant already exists", err)
		}
		return Result{}, apperror.Wrap(apperror.KindInternal, "tenant reservation failed", err)
	}
	if _, err := s.subs.Start(ctx, id, req.PlanCode, req.BillingCycle, req.StartTrial); err != nil {
		s.markStatus(ctx, id, tenant.StatusProvisioningFailed)
		return Result{}, apperror.Wrap(apperror.KindInternal, "subscription creation failed", err)
	}

	// Phase 2: provider calls in dependency order. Any failure leaves the
	// local rows in place under a provisioning_failed marker.
	apiCreds, uiCreds, err := s.provisionRealm(ctx, id, req, password)
	if err != nil {
		s.markStatus(ctx, id, tenant.StatusProvisioningFailed)
		if errors.Is(err, idp.ErrRealmExists) {
			return Result{}, apperror.Wrap(apperror.KindConflict, "realm already exists", err)
		}
		return Result{}, apperror.Wrap(apperror.KindProvisioning, "identity provider provisioning failed", err)
	}

	// Phase 3: reconcile. A failure here means the provider has the
	// tenant but the database is missing its secrets.
	if err := s.tenants.Activate(ctx, id, apiCreds.ClientID, apiCreds.Secret, uiCreds.ClientID); err != nil {
		s.markStatus(ctx, id, tenant.StatusIncomplete)
		return Result{}, apperror.Wrap(apperror.KindIncomplete, "provisioning reconciliation failed", err)
	}

	if s.mirror != nil {
		if err := s.mirror.MirrorAdmin(ctx, id, req.AdminEmail, req.AdminFirstName, req.AdminLastName); err != nil {
			s.log.WarnContext(ctx, "local admin mirror failed",
				slog.String("tenant_id", id),
				slog.Any("error", err))
		}
	}
	if s.notifier != nil {
		if err := s.notifier.SignupStarted(ctx, id, req.AdminEmail); err != nil {
			s.log.WarnContext(ctx, "signup notification failed",
				slog.String("tenant_id", id),
				slog.Any("error", err))
		}
	}

	s.log.InfoContext(ctx, "tenant provisioned",
		slog.String("tenant_id", id),
		slog.String("admin_email", req.AdminEmail),
		slog.String("provider", s.provider))

	return Result{
		TenantID:        id,
		Realm:           id,
		AdminEmail:      req.AdminEmail,
		APIClientID:     apiCreds.ClientID,
		UIClientID:      uiCreds.ClientID,
		Status:          tenant.StatusActive.String(),
		Message:         "tenant provisioned successfully",
		LoginURL:        s.loginBaseURL + "/realms/" + id + "/account",
		AdminConsoleURL: s.loginBaseURL + "/admin/" + id + "/console",
	}, nil
}

// allocateTenantID resolves a unique id against both the local store and
// the provider's realm namespace.
func (s *Saga) allocateTenantID(ctx context.Context, companyName string) (string, error) {
	candidate := tenantid.Allocate(companyName)
	id, err := tenantid.EnsureUnique(ctx, candidate, func(ctx context.Context, id string) (bool, error) {
		if taken, err := s.tenants.Exists(ctx, id); err != nil || taken {
			return taken, err
		}
		return s.gateway.RealmExists(ctx, id)
	})
	if err != nil {
		return "", apperror.Wrap(apperror.KindInternal, "tenant id allocation failed", err)
	}
	return id, nil
}

func (s *Saga) provisionRealm(ctx context.Context, id string, req Request, password string) (api, ui idp.ClientCredentials, err error) {
	if err = s.gateway.CreateRealm(ctx, id, req.DisplayName); err != nil {
		return api, ui, err
	}
	roles := append(append([]string(nil), s.realmRoles...), req.DefaultRoles...)
	if err = s.gateway.CreateRealmRoles(ctx, id, roles); err != nil {
		return api, ui, err
	}
	if err = s.gateway.CreateAdminUser(ctx, id, idp.User{
		Username:  req.AdminEmail,
		Email:     req.AdminEmail,
		FirstName: req.AdminFirstName,
		LastName:  req.AdminLastName,
		Password:  password,
		Temporary: true,
		Roles:     []string{"admin"},
	}); err != nil {
		return api, ui, err
	}
	if api, err = s.gateway.CreateClient(ctx, id, idp.Client{
		ClientID: id + "-api",
		Name:     req.DisplayName + " API",
		Public:   false,
	}); err != nil {
		return api, ui, err
	}
	if ui, err = s.gateway.CreateClient(ctx, id, idp.Client{
		ClientID: id + "-ui",
		Name:     req.DisplayName + " UI",
		Public:   true,
	}); err != nil {
		return api, ui, err
	}
	return api, ui, nil
}

// markStatus records a failure marker. The marker write itself failing is
// logged and dropped; the original error matters more.
func (s *Saga) markStatus(ctx context.Context, id string, status tenant.Status) {
	if err := s.tenants.UpdateStatus(ctx, id, status); err != nil {
		s.log.ErrorContext(ctx, "failed to record tenant failure status",
			slog.String("tenant_id", id),
			slog.String("status", status.String()),
			slog.Any("error", err))
	}
}
