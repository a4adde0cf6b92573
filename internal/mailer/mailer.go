// Package mailer delivers account mail (verification and password reset)
// through Resend, SendGrid, or the application log.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"time"

	"taskhub/internal/config"
	"taskhub/internal/middleware"
	"taskhub/internal/models"
	"taskhub/internal/observability"

	"github.com/resend/resend-go/v2"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Template names, also used as metric labels.
const (
	TemplateVerification  = "email_verification"
	TemplatePasswordReset = "password_reset"
)

const (
	verificationSubject  = "Please verify your TaskHub account"
	passwordResetSubject = "Reset your TaskHub password"
)

// Message is one outbound email.
type Message struct {
	To       string
	Subject  string
	HTML     string
	Text     string
	Template string
}

// Sender delivers a rendered message.
type Sender interface {
	Name() string
	Send(ctx context.Context, from string, msg Message) error
}

// Mailer renders account mail and hands it to a Sender.
type Mailer struct {
	sender      Sender
	from        string
	frontendURL string
}

// New wires the provider named in cfg.MailProvider.
func New(cfg *config.Config) (*Mailer, error) {
	var sender Sender
	switch cfg.MailProvider {
	case "resend":
		sender = &resendSender{client: resend.NewClient(cfg.MailAPIKey)}
	case "sendgrid":
		sender = &sendgridSender{client: sendgrid.NewSendClient(cfg.MailAPIKey)}
	case "", "log":
		sender = LogSender{}
	default:
		return nil, fmt.Errorf("unsupported mail provider %q", cfg.MailProvider)
	}
	return NewWithSender(sender, cfg.DefaultFromEmail, cfg.FrontendURL), nil
}

// NewWithSender builds a Mailer around an explicit Sender.
func NewWithSender(sender Sender, from, frontendURL string) *Mailer {
	return &Mailer{sender: sender, from: from, frontendURL: frontendURL}
}

// Provider names the active delivery backend.
func (m *Mailer) Provider() string {
	return m.sender.Name()
}

// SendVerification mails the email verification link to user.
func (m *Mailer) SendVerification(ctx context.Context, user *models.User) error {
	if user.EmailVerificationToken == nil {
		return fmt.Errorf("user %d has no verification token", user.ID)
	}
	link := m.link("/auth/verify-email", *user.EmailVerificationToken)
	return m.deliver(ctx, user, TemplateVerification, verificationSubject, link)
}

// SendPasswordReset mails the password reset link to user.
func (m *Mailer) SendPasswordReset(ctx context.Context, user *models.User) error {
	if user.PasswordResetToken == nil {
		return fmt.Errorf("user %d has no reset token", user.ID)
	}
	link := m.link("/auth/reset-password", *user.PasswordResetToken)
	return m.deliver(ctx, user, TemplatePasswordReset, passwordResetSubject, link)
}

func (m *Mailer) link(path, token string) string {
	return m.frontendURL + path + "?token=" + url.QueryEscape(token)
}

func (m *Mailer) deliver(ctx context.Context, user *models.User, name, subject, link string) error {
	msg, err := render(name, subject, user, link)
	if err != nil {
		return err
	}

	start := time.Now()
	err = m.sender.Send(ctx, m.from, msg)
	observability.MailDeliveries.WithLabelValues(m.sender.Name(), name, observability.Outcome(err)).Inc()
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "mail delivery failed",
			slog.String("provider", m.sender.Name()),
			slog.String("template", name),
			slog.Uint64("user_id", uint64(user.ID)),
			slog.String("error", err.Error()),
		)
		return err
	}
	middleware.Logger.InfoContext(ctx, "mail delivered",
		slog.String("provider", m.sender.Name()),
		slog.String("template", name),
		slog.Uint64("user_id", uint64(user.ID)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

var templates = template.Must(template.New("mail").Parse(`
{{define "email_verification"}}<p>Hi {{.Name}},</p>
<p>Welcome to TaskHub! Please confirm your email address to finish setting up your account.</p>
<p><a href="{{.Link}}">Verify my email</a></p>
<p>If you did not sign up, you can ignore this message.</p>{{end}}
{{define "password_reset"}}<p>Hi {{.Name}},</p>
<p>Someone asked to reset the password on your TaskHub account.</p>
<p><a href="{{.Link}}">Choose a new password</a></p>
<p>The link expires in 2 hours. If this wasn't you, no action is needed.</p>{{end}}
`))

var textBodies = map[string]string{
	TemplateVerification:  "Hi %s,\n\nPlease verify your TaskHub account by opening this link:\n%s\n",
	TemplatePasswordReset: "Hi %s,\n\nReset your TaskHub password with this link (valid for 2 hours):\n%s\n",
}

func render(name, subject string, user *models.User, link string) (Message, error) {
	var html bytes.Buffer
	data := struct{ Name, Link string }{Name: user.DisplayName(), Link: link}
	if err := templates.ExecuteTemplate(&html, name, data); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", name, err)
	}
	return Message{
		To:       user.Email,
		Subject:  subject,
		HTML:     html.String(),
		Text:     fmt.Sprintf(textBodies[name], user.DisplayName(), link),
		Template: name,
	}, nil
}

type resendSender struct {
	client *resend.Client
}

func (s *resendSender) Name() string { return "resend" }

func (s *resendSender) Send(ctx context.Context, from string, msg Message) error {
	params := &resend.SendEmailRequest{
		From:    from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}
	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}

type sendgridSender struct {
	client *sendgrid.Client
}

func (s *sendgridSender) Name() string { return "sendgrid" }

func (s *sendgridSender) Send(ctx context.Context, from string, msg Message) error {
	message := mail.NewSingleEmail(
		mail.NewEmail("TaskHub", from),
		msg.Subject,
		mail.NewEmail("", msg.To),
		msg.Text,
		msg.HTML,
	)
	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogSender writes mail to the application log instead of delivering it.
type LogSender struct{}

func (LogSender) Name() string { return "log" }

func (LogSender) Send(ctx context.Context, from string, msg Message) error {
	middleware.Logger.InfoContext(ctx, "outbound mail",
		slog.String("from", from),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("template", msg.Template),
		slog.String("body", msg.Text),
	)
	return nil
}
