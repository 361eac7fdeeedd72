package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// AdminEmailLookup resolves the admin address for a tenant. Used when a
// notification is triggered by a sweep rather than a request.
type AdminEmailLookup func(ctx context.Context, tenantID string) (string, error)

// Service records every outbound email before sending it, so failures
// leave a retryable row instead of disappearing.
type Service struct {
	store  Store
	sender Sender
	lookup AdminEmailLookup
	log    *slog.Logger
}

func NewService(store Store, sender Sender, lookup AdminEmailLookup, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, sender: sender, lookup: lookup, log: log}
}

// SignupStarted notifies the new tenant admin that provisioning has
// begun. Satisfies the saga's notifier contract.
func (s *Service) SignupStarted(ctx context.Context, tenantID, adminEmail string) error {
	return s.deliver(ctx, Notification{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Kind:      KindSignupStarted,
		Recipient: adminEmail,
		Subject:   "Your workspace is ready",
		Body: fmt.Sprintf("Your workspace %q has been provisioned. "+
			"Sign in with your admin email to set a permanent password.", tenantID),
		Status: StatusPending,
	})
}

// TrialEnded notifies a tenant that its trial converted to a paid
// subscription. Satisfies the subscription service's notifier contract.
func (s *Service) TrialEnded(ctx context.Context, tenantID string) error {
	recipient, err := s.lookup(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("resolve admin email for %s: %w", tenantID, err)
	}
	return s.deliver(ctx, Notification{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Kind:      KindTrialEnded,
		Recipient: recipient,
		Subject:   "Your trial has ended",
		Body: fmt.Sprintf("The trial period for workspace %q has ended "+
			"and your subscription is now active.", tenantID),
		Status: StatusPending,
	})
}

// Retry re-sends a previously failed notification by id.
func (s *Service) Retry(ctx context.Context, id uuid.UUID) error {
	n, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if n.Status == StatusSent {
		return fmt.Errorf("%w: %s", ErrAlreadySent, id)
	}
	return s.send(ctx, n)
}

// deliver records the notification, then attempts delivery. A failed
// send leaves the row in the failed state; the record write failing is
// the only hard error.
func (s *Service) deliver(ctx context.Context, n Notification) error {
	if err := s.store.Create(ctx, n); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	return s.send(ctx, n)
}

func (s *Service) send(ctx context.Context, n Notification) error {
	n.Attempts++
	if err := s.sender.Send(ctx, n.Recipient, n.Subject, n.Body); err != nil {
		n.Status = StatusFailed
		n.LastError = err.Error()
		if updateErr := s.store.Update(ctx, n); updateErr != nil {
			s.log.ErrorContext(ctx, "failed to record notification failure",
				slog.String("notification_id", n.ID.String()),
				slog.Any("error", updateErr))
		}
		return fmt.Errorf("send notification %s: %w", n.ID, err)
	}

	n.Status = StatusSent
	n.LastError = ""
	if err := s.store.Update(ctx, n); err != nil {
		s.log.ErrorContext(ctx, "notification sent but status update failed",
			slog.String("notification_id", n.ID.String()),
			slog.Any("error", err))
	}
	return nil
}
