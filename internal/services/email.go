package services

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"

	"github.com/confabhq/confab/internal/logging"
)

// EmailServiceInterface sends fully rendered notification emails.
type EmailServiceInterface interface {
	SendNotificationEmail(ctx context.Context, toEmail, subject, html, text string) error
}

// ResendEmailService delivers mail through the Resend API.
type ResendEmailService struct {
	client *resend.Client
	from   string
}

func NewResendEmailService(apiKey, fromName, fromAddress string) *ResendEmailService {
	return &ResendEmailService{
		client: resend.NewClient(apiKey),
		from:   fmt.Sprintf("%s <%s>", fromName, fromAddress),
	}
}

func (s *ResendEmailService) SendNotificationEmail(ctx context.Context, toEmail, subject, html, text string) error {
	_, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: subject,
		Html:    html,
		Text:    text,
	})
	if err != nil {
		return fmt.Errorf("sending email via resend: %w", err)
	}
	return nil
}

// ConsoleEmailService logs mail instead of delivering it. Default in
// development when no provider is configured.
type ConsoleEmailService struct{}

func (ConsoleEmailService) SendNotificationEmail(ctx context.Context, toEmail, subject, html, text string) error {
	logging.Info("Email (console delivery)", map[string]interface{}{
		"to":      toEmail,
		"subject": subject,
		"text":    text,
	})
	return nil
}
