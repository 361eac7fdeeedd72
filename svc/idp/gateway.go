// Package idp abstracts the identity provider behind a narrow gateway so
// tenant provisioning does not depend on a concrete vendor API.
package idp

import (
	"context"
	"errors"
)

var (
	ErrRealmExists        = errors.New("idp: realm already exists")
	ErrRealmNotFound      = errors.New("idp: realm not found")
	ErrProviderNotFound   = errors.New("idp: provider not registered")
	ErrRequestFailed      = errors.New("idp: request failed")
	ErrInvalidCredentials = errors.New("idp: invalid admin credentials")
)

// User is an account to be created inside a tenant realm.
type User struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
	Temporary bool
	Roles     []string
}

// Client is an OAuth client registered inside a tenant realm.
type Client struct {
	ClientID     string
	Name         string
	Public       bool
	RedirectURIs []string
	WebOrigins   []string
}

// ClientCredentials is what the provider hands back after creating a
// confidential client.
type ClientCredentials struct {
	ClientID string
	Secret   string
}

// Gateway is the provisioning surface of an identity provider. Calls are
// idempotent only where the underlying provider makes them so; callers own
// ordering and failure handling.
type Gateway interface {
	// CreateRealm provisions an isolated realm for a tenant, labeled with
	// the tenant's human-readable display name. Returns ErrRealmExists if
	// the realm name is taken.
	CreateRealm(ctx context.Context, realm, displayName string) error

	// CreateRealmRoles defines the given roles inside a realm.
	CreateRealmRoles(ctx context.Context, realm string, roles []string) error

	// CreateAdminUser creates the initial admin account with realm
	// management rights.
	CreateAdminUser(ctx context.Context, realm string, user User) error

	// CreateUser creates a regular account inside a realm.
	CreateUser(ctx context.Context, realm string, user User) error

	// CreateClient registers an OAuth client. For confidential clients the
	// returned credentials carry the generated secret.
	CreateClient(ctx context.Context, realm string, client Client) (ClientCredentials, error)

	// RealmExists reports whether a realm is already provisioned.
	RealmExists(ctx context.Context, realm string) (bool, error)

	// GetUserCount returns the number of accounts in a realm.
	GetUserCount(ctx context.Context, realm string) (int, error)
}
