package idp

import (
	"context"
	"fmt"
	"sync"
)

// Fake is an in-memory Gateway for tests and local development. Individual
// operations can be forced to fail through the Fail* fields.
type Fake struct {
	mu      sync.Mutex
	realms  map[string]*fakeRealm
	secrets int

	FailCreateRealm     error
	FailCreateRoles     error
	FailCreateAdminUser error
	FailCreateUser      error
	FailCreateClient    error
}

type fakeRealm struct {
	displayName string
	roles       []string
	users       []User
	clients     []Client
}

func NewFake() *Fake {
	return &Fake{realms: make(map[string]*fakeRealm)}
}

func (f *Fake) CreateRealm(_ context.Context, realm, displayName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCreateRealm != nil {
		return f.FailCreateRealm
	}
	if _, ok := f.realms[realm]; ok {
		return fmt.Errorf("%w: %s", ErrRealmExists, realm)
	}
	f.realms[realm] = &fakeRealm{displayName: displayName}
	return nil
}

func (f *Fake) CreateRealmRoles(_ context.Context, realm string, roles []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCreateRoles != nil {
		return f.FailCreateRoles
	}
	r, ok := f.realms[realm]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRealmNotFound, realm)
	}
	r.roles = append(r.roles, roles...)
	return nil
}

func (f *Fake) CreateAdminUser(_ context.Context, realm string, user User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCreateAdminUser != nil {
		return f.FailCreateAdminUser
	}
	return f.addUser(realm, user)
}

func (f *Fake) CreateUser(_ context.Context, realm string, user User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCreateUser != nil {
		return f.FailCreateUser
	}
	return f.addUser(realm, user)
}

func (f *Fake) addUser(realm string, user User) error {
	r, ok := f.realms[realm]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRealmNotFound, realm)
	}
	r.users = append(r.users, user)
	return nil
}

func (f *Fake) CreateClient(_ context.Context, realm string, client Client) (ClientCredentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCreateClient != nil {
		return ClientCredentials{}, f.FailCreateClient
	}
	r, ok := f.realms[realm]
	if !ok {
		return ClientCredentials{}, fmt.Errorf("%w: %s", ErrRealmNotFound, realm)
	}
	r.clients = append(r.clients, client)
	creds := ClientCredentials{ClientID: client.ClientID}
	if !client.Public {
		f.secrets++
		creds.Secret = fmt.Sprintf("fake-secret-%d", f.secrets)
	}
	return creds, nil
}

func (f *Fake) RealmExists(_ context.Context, realm string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.realms[realm]
	return ok, nil
}

func (f *Fake) GetUserCount(_ context.Context, realm string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.realms[realm]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrRealmNotFound, realm)
	}
	return len(r.users), nil
}

// RealmDisplayName returns the display name a realm was created with.
func (f *Fake) RealmDisplayName(realm string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.realms[realm]; ok {
		return r.displayName
	}
	return ""
}

// Realm returns the recorded state of a provisioned realm for assertions.
func (f *Fake) Realm(realm string) (roles []string, users []User, clients []Client, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, found := f.realms[realm]
	if !found {
		return nil, nil, nil, false
	}
	return append([]string(nil), r.roles...), append([]User(nil), r.users...), append([]Client(nil), r.clients...), true
}
