package tenant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/officekit/accountd/pkg/passwordgen"
	"github.com/officekit/accountd/svc/idp"
)

// Getter loads a tenant by id. Both *Cache and a raw store lookup
// satisfy it.
type Getter interface {
	Get(ctx context.Context, id string) (Tenant, error)
}

// MirrorStore upserts the local copy of a realm account.
type MirrorStore interface {
	Mirror(ctx context.Context, tenantID, email, firstName, lastName string, isAdmin bool) error
}

// RealmUserCreator creates accounts at the identity provider.
type RealmUserCreator interface {
	CreateUser(ctx context.Context, realm string, user idp.User) error
}

// SeatGuard rejects account creation past the plan ceiling.
type SeatGuard interface {
	CheckCapacity(ctx context.Context, tenantID, planCode string, n int) error
}

// PlanResolver returns the plan code the tenant is currently on.
type PlanResolver func(ctx context.Context, tenantID string) (string, error)

// NewUser is a request to add an account to a tenant realm. An empty
// Password means a generated temporary one that must be changed on
// first login. Roles defaults to member.
type NewUser struct {
	Email     string   `json:"email"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Password  string   `json:"password,omitempty"`
	Roles     []string `json:"roles,omitempty"`
}

// UserService provisions additional realm accounts for active tenants,
// enforcing the plan's seat ceiling first.
type UserService struct {
	tenants Getter
	mirror  MirrorStore
	realm   RealmUserCreator
	guard   SeatGuard
	plan    PlanResolver
	log     *slog.Logger
}

func NewUserService(tenants Getter, mirror MirrorStore, realm RealmUserCreator, guard SeatGuard, plan PlanResolver, log *slog.Logger) *UserService {
	if log == nil {
		log = slog.Default()
	}
	return &UserService{tenants: tenants, mirror: mirror, realm: realm, guard: guard, plan: plan, log: log}
}

// CreateUser adds an account to the tenant's realm. The provider owns
// the credential; the local mirror row is best effort.
func (s *UserService) CreateUser(ctx context.Context, tenantID string, u NewUser) error {
	t, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return err
	}
	if !t.Status.IsOperational() {
		return fmt.Errorf("%w: %s is %s", ErrNotActive, t.ID, t.Status)
	}

	planCode, err := s.plan(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("resolve plan for %s: %w", t.ID, err)
	}
	if err := s.guard.CheckCapacity(ctx, t.ID, planCode, 1); err != nil {
		return err
	}

	temporary := u.Password == ""
	password := u.Password
	if temporary {
		password = passwordgen.Generate()
	}
	roles := u.Roles
	if len(roles) == 0 {
		roles = []string{"member"}
	}

	err = s.realm.CreateUser(ctx, t.Realm, idp.User{
		Username:  u.Email,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Password:  password,
		Temporary: temporary,
		Roles:     roles,
	})
	if err != nil {
		return fmt.Errorf("create realm user for %s: %w", t.ID, err)
	}

	if err := s.mirror.Mirror(ctx, t.ID, u.Email, u.FirstName, u.LastName, false); err != nil {
		s.log.WarnContext(ctx, "user mirror failed",
			slog.String("tenant_id", t.ID),
			slog.Any("error", err))
	}
	return nil
}
