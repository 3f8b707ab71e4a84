package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"carealert/internal/config"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendGridService sends email through the SendGrid v3 API.
type SendGridService struct {
	key       string
	host      string
	from      *sgmail.Email
	templates *Templates
}

// NewSendGridService creates a SendGrid email service.
func NewSendGridService(cfg *config.Config) *SendGridService {
	slog.Info("email notifications enabled", "provider", "sendgrid")
	return &SendGridService{
		key:       cfg.SendGridAPIKey,
		host:      sendgridHost,
		from:      sgmail.NewEmail(cfg.SMTPFromName, cfg.SMTPFrom),
		templates: NewTemplates(cfg),
	}
}

// Send delivers one message. Any non-2xx response is an error.
func (s *SendGridService) Send(ctx context.Context, recipient, subject, body string) error {
	if recipient == "" {
		return fmt.Errorf("no recipient")
	}

	req := sendgrid.GetRequest(s.key, sendgridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(recipient, subject, body))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

func (s *SendGridService) prepare(recipient, subject, body string) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = subject
	p.AddTos(sgmail.NewEmail("", recipient))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(
		sgmail.NewContent("text/plain", body),
		sgmail.NewContent("text/html", s.templates.NotificationHTML(subject, body)),
	)
	return m
}
