package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

var ErrSendFailed = errors.New("notification: send failed")

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// SenderConfig configures the Postmark-backed sender.
type SenderConfig struct {
	ServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	AccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail  string `env:"NOTIFICATION_SENDER_EMAIL" envDefault:"noreply@officekit.example"`
	ReplyTo      string `env:"NOTIFICATION_REPLY_TO" envDefault:"support@officekit.example"`
}

type postmarkSender struct {
	client *postmark.Client
	cfg    SenderConfig
}

// NewPostmarkSender creates a Postmark-backed sender. Tokens are required
// so a misconfigured deployment fails at startup, not at first send.
func NewPostmarkSender(cfg SenderConfig) (Sender, error) {
	if cfg.ServerToken == "" || cfg.AccountToken == "" {
		return nil, errors.New("notification: postmark tokens are required")
	}
	return &postmarkSender{
		client: postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
		cfg:    cfg,
	}, nil
}

func (s *postmarkSender) Send(ctx context.Context, recipient, subject, body string) error {
	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:     s.cfg.SenderEmail,
		ReplyTo:  s.cfg.ReplyTo,
		To:       recipient,
		Subject:  subject,
		TextBody: body,
	})
	if err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrSendFailed, fmt.Errorf("postmark error %d: %s", resp.ErrorCode, resp.Message))
	}
	return nil
}

// NopSender discards every email. Used in development environments where
// outbound delivery is disabled.
type NopSender struct{}

func (NopSender) Send(context.Context, string, string, string) error { return nil }
