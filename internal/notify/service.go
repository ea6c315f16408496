package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// Service renders a notification template and sends it by email,
// recording the attempt in the notification log. Grounded on the
// teacher's email.Service.SendEmail/sendMail/RenderTemplate.
type Service struct {
	repo Repository
	log  zerolog.Logger
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Send renders the template for templateType (falling back to the
// built-in default if the tenant has no override), sends it, and logs
// the outcome. relatedID is the run/import/backpay-sweep ID the
// notification concerns, for audit correlation.
func (s *Service) Send(ctx context.Context, schemaName, tenantID string, templateType TemplateType, recipient, recipientName string, data TemplateData, attachments []Attachment, relatedID string) (*Log, error) {
	if err := s.repo.EnsureSchema(ctx, schemaName); err != nil {
		return nil, fmt.Errorf("ensure notification schema: %w", err)
	}

	tmpl, err := s.resolveTemplate(ctx, schemaName, tenantID, templateType)
	if err != nil {
		return nil, err
	}

	subject, bodyHTML, bodyText, err := RenderTemplate(tmpl, data)
	if err != nil {
		return nil, fmt.Errorf("render template %s: %w", templateType, err)
	}

	logEntry := &Log{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		Type:           templateType,
		RecipientEmail: recipient,
		RecipientName:  recipientName,
		Subject:        subject,
		Status:         StatusPending,
		RelatedID:      relatedID,
		CreatedAt:      time.Now(),
	}
	if err := s.repo.CreateLog(ctx, schemaName, logEntry); err != nil {
		return nil, fmt.Errorf("create notification log: %w", err)
	}

	settingsJSON, err := s.repo.GetTenantSettings(ctx, tenantID)
	if err != nil {
		return s.fail(ctx, schemaName, logEntry, fmt.Errorf("get tenant settings: %w", err))
	}
	smtpCfg, err := ParseSMTPConfig(settingsJSON)
	if err != nil {
		return s.fail(ctx, schemaName, logEntry, err)
	}
	if !smtpCfg.IsConfigured() {
		return s.fail(ctx, schemaName, logEntry, fmt.Errorf("SMTP is not configured for this tenant"))
	}

	msg, err := buildMessage(smtpCfg, recipient, recipientName, subject, bodyHTML, bodyText, attachments)
	if err != nil {
		return s.fail(ctx, schemaName, logEntry, err)
	}

	if err := sendMail(smtpCfg, msg); err != nil {
		return s.fail(ctx, schemaName, logEntry, err)
	}

	sentAt := time.Now()
	if err := s.repo.UpdateLogStatus(ctx, schemaName, logEntry.ID, StatusSent, &sentAt, ""); err != nil {
		s.log.Warn().Err(err).Str("log_id", logEntry.ID).Msg("notification sent but failed to update log status")
	}
	logEntry.Status = StatusSent
	logEntry.SentAt = &sentAt
	return logEntry, nil
}

func (s *Service) fail(ctx context.Context, schemaName string, logEntry *Log, sendErr error) (*Log, error) {
	if err := s.repo.UpdateLogStatus(ctx, schemaName, logEntry.ID, StatusFailed, nil, sendErr.Error()); err != nil {
		s.log.Warn().Err(err).Str("log_id", logEntry.ID).Msg("failed to record notification failure")
	}
	return nil, fmt.Errorf("send notification: %w", sendErr)
}

func (s *Service) resolveTemplate(ctx context.Context, schemaName, tenantID string, templateType TemplateType) (*Template, error) {
	tmpl, err := s.repo.GetTemplate(ctx, schemaName, tenantID, templateType)
	if err == nil {
		return tmpl, nil
	}
	if err != ErrTemplateNotFound {
		return nil, fmt.Errorf("get notification template: %w", err)
	}
	defaults := DefaultTemplates()
	fallback, ok := defaults[templateType]
	if !ok {
		return nil, fmt.Errorf("no template registered for %s", templateType)
	}
	return &fallback, nil
}

func buildMessage(cfg *SMTPConfig, recipient, recipientName, subject, bodyHTML, bodyText string, attachments []Attachment) (*mail.Msg, error) {
	m := mail.NewMsg()

	var err error
	if cfg.FromName != "" {
		err = m.FromFormat(cfg.FromName, cfg.FromEmail)
	} else {
		err = m.From(cfg.FromEmail)
	}
	if err != nil {
		return nil, fmt.Errorf("set from address: %w", err)
	}

	if recipientName != "" {
		err = m.AddToFormat(recipientName, recipient)
	} else {
		err = m.To(recipient)
	}
	if err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}

	m.Subject(subject)
	m.SetBodyString(mail.TypeTextHTML, bodyHTML)
	if bodyText != "" {
		m.AddAlternativeString(mail.TypeTextPlain, bodyText)
	}

	for _, att := range attachments {
		if err := m.AttachReader(att.Filename, bytes.NewReader(att.Content)); err != nil {
			return nil, fmt.Errorf("attach file %s: %w", att.Filename, err)
		}
	}
	return m, nil
}

func sendMail(cfg *SMTPConfig, m *mail.Msg) error {
	opts := []mail.Option{mail.WithPort(cfg.Port)}

	if cfg.Username != "" {
		opts = append(opts, mail.WithSMTPAuth(mail.SMTPAuthPlain), mail.WithUsername(cfg.Username), mail.WithPassword(cfg.Password))
	}
	if cfg.UseTLS {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory), mail.WithTLSConfig(&tls.Config{
			ServerName: cfg.Host,
			MinVersion: tls.VersionTLS12,
		}))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("create mail client: %w", err)
	}
	if err := client.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// RenderTemplate executes a template's subject/HTML/text bodies against
// data using stdlib html/template.
func RenderTemplate(tmpl *Template, data TemplateData) (subject, bodyHTML, bodyText string, err error) {
	subject, err = renderOne("subject", tmpl.Subject, data)
	if err != nil {
		return "", "", "", err
	}
	bodyHTML, err = renderOne("body_html", tmpl.BodyHTML, data)
	if err != nil {
		return "", "", "", err
	}
	if tmpl.BodyText != "" {
		bodyText, err = renderOne("body_text", tmpl.BodyText, data)
		if err != nil {
			return "", "", "", err
		}
	}
	return subject, bodyHTML, bodyText, nil
}

func renderOne(name, body string, data TemplateData) (string, error) {
	t, err := template.New(name).Parse(body)
	if err != nil {
		return "", fmt.Errorf("parse %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
