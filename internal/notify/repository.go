package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the data-access contract a Service depends on: same
// schema/CRUD shape as an invoice notifier's repository, tables renamed
// to notification_templates/notification_log.
type Repository interface {
	EnsureSchema(ctx context.Context, schemaName string) error

	GetTenantSettings(ctx context.Context, tenantID string) ([]byte, error)

	GetTemplate(ctx context.Context, schemaName, tenantID string, templateType TemplateType) (*Template, error)
	ListTemplates(ctx context.Context, schemaName, tenantID string) ([]Template, error)
	UpsertTemplate(ctx context.Context, schemaName string, tmpl *Template) error

	CreateLog(ctx context.Context, schemaName string, log *Log) error
	UpdateLogStatus(ctx context.Context, schemaName, logID string, status Status, sentAt *time.Time, errorMessage string) error
	ListLog(ctx context.Context, schemaName, tenantID string, limit int) ([]Log, error)
}

var (
	ErrTemplateNotFound = fmt.Errorf("notification template not found")
	ErrSettingsNotFound = fmt.Errorf("tenant settings not found")
)

// PostgresRepository implements Repository using pgx, schema-per-tenant.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) EnsureSchema(ctx context.Context, schemaName string) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.notification_templates (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID NOT NULL,
			template_type VARCHAR(50) NOT NULL,
			subject TEXT NOT NULL,
			body_html TEXT NOT NULL,
			body_text TEXT,
			is_active BOOLEAN DEFAULT true,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE (tenant_id, template_type)
		);

		CREATE TABLE IF NOT EXISTS %s.notification_log (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID NOT NULL,
			notification_type VARCHAR(50) NOT NULL,
			recipient_email VARCHAR(255) NOT NULL,
			recipient_name VARCHAR(255),
			subject TEXT NOT NULL,
			status VARCHAR(20) DEFAULT 'PENDING',
			sent_at TIMESTAMPTZ,
			error_message TEXT,
			related_id UUID,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_notification_log_tenant ON %s.notification_log(tenant_id);
		CREATE INDEX IF NOT EXISTS idx_notification_log_status ON %s.notification_log(status);
	`, schemaName, schemaName, schemaName, schemaName)

	_, err := r.db.Exec(ctx, query)
	return err
}

func (r *PostgresRepository) GetTenantSettings(ctx context.Context, tenantID string) ([]byte, error) {
	var settingsJSON []byte
	err := r.db.QueryRow(ctx, `SELECT settings FROM tenants WHERE id = $1`, tenantID).Scan(&settingsJSON)
	if err == pgx.ErrNoRows {
		return nil, ErrSettingsNotFound
	}
	if err != nil {
		return nil, err
	}
	return settingsJSON, nil
}

func (r *PostgresRepository) GetTemplate(ctx context.Context, schemaName, tenantID string, templateType TemplateType) (*Template, error) {
	var tmpl Template
	err := r.db.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, tenant_id, template_type, subject, body_html, COALESCE(body_text, ''), is_active, created_at, updated_at
		FROM %s.notification_templates
		WHERE tenant_id = $1 AND template_type = $2
	`, schemaName), tenantID, templateType).Scan(
		&tmpl.ID, &tmpl.TenantID, &tmpl.Type, &tmpl.Subject, &tmpl.BodyHTML, &tmpl.BodyText, &tmpl.IsActive, &tmpl.CreatedAt, &tmpl.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tmpl, nil
}

func (r *PostgresRepository) ListTemplates(ctx context.Context, schemaName, tenantID string) ([]Template, error) {
	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT id, tenant_id, template_type, subject, body_html, COALESCE(body_text, ''), is_active, created_at, updated_at
		FROM %s.notification_templates
		WHERE tenant_id = $1
		ORDER BY template_type
	`, schemaName), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []Template
	for rows.Next() {
		var tmpl Template
		if err := rows.Scan(&tmpl.ID, &tmpl.TenantID, &tmpl.Type, &tmpl.Subject, &tmpl.BodyHTML, &tmpl.BodyText, &tmpl.IsActive, &tmpl.CreatedAt, &tmpl.UpdatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, tmpl)
	}
	return templates, nil
}

func (r *PostgresRepository) UpsertTemplate(ctx context.Context, schemaName string, tmpl *Template) error {
	return r.db.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s.notification_templates (id, tenant_id, template_type, subject, body_html, body_text, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, template_type) DO UPDATE SET
			subject = EXCLUDED.subject,
			body_html = EXCLUDED.body_html,
			body_text = EXCLUDED.body_text,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()
		RETURNING id, tenant_id, template_type, subject, body_html, COALESCE(body_text, ''), is_active, created_at, updated_at
	`, schemaName), tmpl.ID, tmpl.TenantID, tmpl.Type, tmpl.Subject, tmpl.BodyHTML, tmpl.BodyText, tmpl.IsActive).Scan(
		&tmpl.ID, &tmpl.TenantID, &tmpl.Type, &tmpl.Subject, &tmpl.BodyHTML, &tmpl.BodyText, &tmpl.IsActive, &tmpl.CreatedAt, &tmpl.UpdatedAt,
	)
}

func (r *PostgresRepository) CreateLog(ctx context.Context, schemaName string, log *Log) error {
	var relatedID *string
	if log.RelatedID != "" {
		relatedID = &log.RelatedID
	}
	_, err := r.db.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s.notification_log (id, tenant_id, notification_type, recipient_email, recipient_name, subject, status, related_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, schemaName), log.ID, log.TenantID, log.Type, log.RecipientEmail, log.RecipientName, log.Subject, log.Status, relatedID)
	return err
}

func (r *PostgresRepository) UpdateLogStatus(ctx context.Context, schemaName, logID string, status Status, sentAt *time.Time, errorMessage string) error {
	_, err := r.db.Exec(ctx, fmt.Sprintf(`
		UPDATE %s.notification_log SET status = $2, sent_at = $3, error_message = $4 WHERE id = $1
	`, schemaName), logID, status, sentAt, errorMessage)
	return err
}

func (r *PostgresRepository) ListLog(ctx context.Context, schemaName, tenantID string, limit int) ([]Log, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT id, tenant_id, notification_type, recipient_email, COALESCE(recipient_name, ''), subject, status, sent_at, COALESCE(error_message, ''), related_id, created_at
		FROM %s.notification_log
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, schemaName), tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []Log
	for rows.Next() {
		var log Log
		var relatedID *string
		if err := rows.Scan(&log.ID, &log.TenantID, &log.Type, &log.RecipientEmail, &log.RecipientName, &log.Subject, &log.Status, &log.SentAt, &log.ErrorMessage, &relatedID, &log.CreatedAt); err != nil {
			return nil, err
		}
		if relatedID != nil {
			log.RelatedID = *relatedID
		}
		logs = append(logs, log)
	}
	return logs, nil
}

// ParseSMTPConfig parses SMTP config out of a tenant's settings JSON blob.
func ParseSMTPConfig(settingsJSON []byte) (*SMTPConfig, error) {
	var settings map[string]any
	if err := json.Unmarshal(settingsJSON, &settings); err != nil {
		return nil, fmt.Errorf("parse tenant settings: %w", err)
	}

	cfg := &SMTPConfig{Port: 587, UseTLS: true}
	if v, ok := settings["smtp_host"].(string); ok {
		cfg.Host = v
	}
	if v, ok := settings["smtp_port"].(float64); ok {
		cfg.Port = int(v)
	}
	if v, ok := settings["smtp_username"].(string); ok {
		cfg.Username = v
	}
	if v, ok := settings["smtp_password"].(string); ok {
		cfg.Password = v
	}
	if v, ok := settings["smtp_from_email"].(string); ok {
		cfg.FromEmail = v
	}
	if v, ok := settings["smtp_from_name"].(string); ok {
		cfg.FromName = v
	}
	if v, ok := settings["smtp_use_tls"].(bool); ok {
		cfg.UseTLS = v
	}
	return cfg, nil
}
