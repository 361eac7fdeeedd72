// Package tenant holds the tenant model and its provisioning lifecycle.
// A tenant row is created before any identity provider call so failed
// provisioning leaves an inspectable record instead of vanishing.
package tenant

import (
	"time"
)

// Status tracks where a tenant is in the provisioning saga.
type Status string

const (
	// StatusProvisioning marks a tenant reserved locally but not yet set
	// up at the identity provider.
	StatusProvisioning Status = "provisioning"
	// StatusActive marks a fully provisioned tenant.
	StatusActive Status = "active"
	// StatusProvisioningFailed marks a tenant whose identity provider
	// setup failed. The row stays for manual inspection and retry.
	StatusProvisioningFailed Status = "provisioning_failed"
	// StatusIncomplete marks a tenant whose provider setup succeeded but
	// whose local reconciliation did not finish.
	StatusIncomplete Status = "incomplete"
)

func (s Status) String() string { return string(s) }

// IsOperational reports whether the tenant can serve traffic.
func (s Status) IsOperational() bool { return s == StatusActive }

// Tenant is one isolated customer organization. ID doubles as the realm
// name at the identity provider.
type Tenant struct {
	ID            string
	CompanyName   string
	Realm         string
	Status        Status
	AdminEmail    string
	AdminUsername string
	Provider      string
	Locale        string
	Country       string
	Phone         string
	APIClientID   string
	UIClientID    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
