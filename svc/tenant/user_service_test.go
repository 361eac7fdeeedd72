package tenant_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/officekit/accountd/svc/idp"
	"github.com/officekit/accountd/svc/tenant"
)

type fakeGetter struct {
	tenant tenant.Tenant
	err    error
}

func (f fakeGetter) Get(_ context.Context, _ string) (tenant.Tenant, error) {
	return f.tenant, f.err
}

type mirrorCall struct {
	tenantID, email string
	isAdmin         bool
}

type recordingMirror struct {
	calls []mirrorCall
	err   error
}

func (m *recordingMirror) Mirror(_ context.Context, tenantID, email, _, _ string, isAdmin bool) error {
	m.calls = append(m.calls, mirrorCall{tenantID: tenantID, email: email, isAdmin: isAdmin})
	return m.err
}

type recordingRealm struct {
	users map[string][]idp.User
	err   error
}

func (r *recordingRealm) CreateUser(_ context.Context, realm string, user idp.User) error {
	if r.err != nil {
		return r.err
	}
	if r.users == nil {
		r.users = map[string][]idp.User{}
	}
	r.users[realm] = append(r.users[realm], user)
	return nil
}

type fakeGuard struct {
	err   error
	calls int
}

func (g *fakeGuard) CheckCapacity(_ context.Context, _, _ string, _ int) error {
	g.calls++
	return g.err
}

func activeTenant() tenant.Tenant {
	return tenant.Tenant{
		ID:     "acme-corp",
		Realm:  "acme-corp",
		Status: tenant.StatusActive,
	}
}

func freePlan(_ context.Context, _ string) (string, error) { return "FREE", nil }

func TestUserServiceCreateUser(t *testing.T) {
	t.Parallel()

	realm := &recordingRealm{}
	mirror := &recordingMirror{}
	guard := &fakeGuard{}
	svc := tenant.NewUserService(fakeGetter{tenant: activeTenant()}, mirror, realm, guard, freePlan, nil)

	err := svc.CreateUser(context.Background(), "acme-corp", tenant.NewUser{
		Email:     "bob@test.com",
		FirstName: "Bob",
		LastName:  "Jones",
	})
	require.NoError(t, err)

	require.Len(t, realm.users["acme-corp"], 1)
	created := realm.users["acme-corp"][0]
	assert.Equal(t, "bob@test.com", created.Username)
	assert.Equal(t, []string{"member"}, created.Roles)
	assert.True(t, created.Temporary)
	assert.NotEmpty(t, created.Password)

	assert.Equal(t, 1, guard.calls)
	require.Len(t, mirror.calls, 1)
	assert.Equal(t, mirrorCall{tenantID: "acme-corp", email: "bob@test.com", isAdmin: false}, mirror.calls[0])
}

func TestUserServiceExplicitPassword(t *testing.T) {
	t.Parallel()

	realm := &recordingRealm{}
	svc := tenant.NewUserService(fakeGetter{tenant: activeTenant()}, &recordingMirror{}, realm, &fakeGuard{}, freePlan, nil)

	err := svc.CreateUser(context.Background(), "acme-corp", tenant.NewUser{
		Email:    "bob@test.com",
		Password: "chosen-by-user-1!A",
		Roles:    []string{"member", "billing"},
	})
	require.NoError(t, err)

	created := realm.users["acme-corp"][0]
	assert.Equal(t, "chosen-by-user-1!A", created.Password)
	assert.False(t, created.Temporary)
	assert.Equal(t, []string{"member", "billing"}, created.Roles)
}

func TestUserServiceTenantNotActive(t *testing.T) {
	t.Parallel()

	provisioning := activeTenant()
	provisioning.Status = tenant.StatusProvisioning
	realm := &recordingRealm{}
	svc := tenant.NewUserService(fakeGetter{tenant: provisioning}, &recordingMirror{}, realm, &fakeGuard{}, freePlan, nil)

	err := svc.CreateUser(context.Background(), "acme-corp", tenant.NewUser{Email: "bob@test.com"})
	require.ErrorIs(t, err, tenant.ErrNotActive)
	assert.Empty(t, realm.users)
}

func TestUserServiceSeatLimit(t *testing.T) {
	t.Parallel()

	limitErr := errors.New("limit reached")
	realm := &recordingRealm{}
	svc := tenant.NewUserService(fakeGetter{tenant: activeTenant()}, &recordingMirror{}, realm, &fakeGuard{err: limitErr}, freePlan, nil)

	err := svc.CreateUser(context.Background(), "acme-corp", tenant.NewUser{Email: "bob@test.com"})
	require.ErrorIs(t, err, limitErr)
	assert.Empty(t, realm.users)
}

func TestUserServiceRealmFailure(t *testing.T) {
	t.Parallel()

	mirror := &recordingMirror{}
	svc := tenant.NewUserService(fakeGetter{tenant: activeTenant()}, mirror,
		&recordingRealm{err: idp.ErrRequestFailed}, &fakeGuard{}, freePlan, nil)

	err := svc.CreateUser(context.Background(), "acme-corp", tenant.NewUser{Email: "bob@test.com"})
	require.ErrorIs(t, err, idp.ErrRequestFailed)
	assert.Empty(t, mirror.calls)
}

func TestUserServiceMirrorFailureSwallowed(t *testing.T) {
	t.Parallel()

	svc := tenant.NewUserService(fakeGetter{tenant: activeTenant()},
		&recordingMirror{err: errors.New("db down")}, &recordingRealm{}, &fakeGuard{}, freePlan, nil)

	err := svc.CreateUser(context.Background(), "acme-corp", tenant.NewUser{Email: "bob@test.com"})
	require.NoError(t, err)
}
