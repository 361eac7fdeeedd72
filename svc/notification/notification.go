// Package notification records and delivers outbound tenant emails.
// Every delivery attempt is persisted first, so a failed send can be
// retried later through the administrative path.
package notification

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("notification: not found")
	ErrAlreadySent = errors.New("notification: already sent")
)

// Kind identifies what triggered a notification.
type Kind string

const (
	KindSignupStarted Kind = "signup_started"
	KindTrialEnded    Kind = "trial_ended"
)

// Status is the delivery state of one notification.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Notification is one outbound email and its delivery record.
type Notification struct {
	ID        uuid.UUID
	TenantID  string
	Kind      Kind
	Recipient string
	Subject   string
	Body      string
	Status    Status
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}
