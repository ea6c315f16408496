//go:build gorm

package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ekow-ghana/payroll-core/internal/database"
	"gorm.io/gorm"
)

// tenantSettings reads tenant settings from the public schema.
type tenantSettings struct {
	ID       string `gorm:"column:id;primaryKey"`
	Settings []byte `gorm:"column:settings;type:jsonb"`
}

func (tenantSettings) TableName() string {
	return "tenants"
}

func (Template) TableName() string {
	return "notification_templates"
}

func (Log) TableName() string {
	return "notification_log"
}

// GORMRepository implements Repository using GORM, grounded on
// email.GORMRepository — an alternate backend to PostgresRepository,
// selected at build time by the gorm tag the same way tenant and scheduler
// offer one.
type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) *GORMRepository {
	return &GORMRepository{db: db}
}

// EnsureSchema uses raw SQL since GORM AutoMigrate doesn't support
// dynamic schema names.
func (r *GORMRepository) EnsureSchema(ctx context.Context, schemaName string) error {
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

	return r.db.WithContext(ctx).Exec(query).Error
}

func (r *GORMRepository) GetTenantSettings(ctx context.Context, tenantID string) ([]byte, error) {
	var tenant tenantSettings
	err := r.db.WithContext(ctx).
		Select("id", "settings").
		Where("id = ?", tenantID).
		First(&tenant).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSettingsNotFound
	}
	if err != nil {
		return nil, err
	}

	return tenant.Settings, nil
}

func (r *GORMRepository) GetTemplate(ctx context.Context, schemaName, tenantID string, templateType TemplateType) (*Template, error) {
	db := database.TenantDB(r.db, schemaName).WithContext(ctx)

	var tmpl Template
	err := db.Where("tenant_id = ? AND template_type = ?", tenantID, templateType).
		First(&tmpl).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}

	return &tmpl, nil
}

func (r *GORMRepository) ListTemplates(ctx context.Context, schemaName, tenantID string) ([]Template, error) {
	db := database.TenantDB(r.db, schemaName).WithContext(ctx)

	var templates []Template
	err := db.Where("tenant_id = ?", tenantID).
		Order("template_type").
		Find(&templates).Error
	if err != nil {
		return nil, err
	}

	return templates, nil
}

func (r *GORMRepository) UpsertTemplate(ctx context.Context, schemaName string, tmpl *Template) error {
	db := database.TenantDB(r.db, schemaName).WithContext(ctx)

	// Raw SQL for the ON CONFLICT upsert; GORM's Clauses helper is awkward
	// with composite keys.
	err := db.Exec(`
		INSERT INTO notification_templates (id, tenant_id, template_type, subject, body_html, body_text, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, template_type) DO UPDATE SET
			subject = EXCLUDED.subject,
			body_html = EXCLUDED.body_html,
			body_text = EXCLUDED.body_text,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()
	`, tmpl.ID, tmpl.TenantID, tmpl.Type, tmpl.Subject, tmpl.BodyHTML, tmpl.BodyText, tmpl.IsActive).Error
	if err != nil {
		return err
	}

	return db.Where("tenant_id = ? AND template_type = ?", tmpl.TenantID, tmpl.Type).
		First(tmpl).Error
}

func (r *GORMRepository) CreateLog(ctx context.Context, schemaName string, log *Log) error {
	db := database.TenantDB(r.db, schemaName).WithContext(ctx)
	return db.Create(log).Error
}

func (r *GORMRepository) UpdateLogStatus(ctx context.Context, schemaName, logID string, status Status, sentAt *time.Time, errorMessage string) error {
	db := database.TenantDB(r.db, schemaName).WithContext(ctx)

	return db.Model(&Log{}).
		Where("id = ?", logID).
		Updates(map[string]interface{}{
			"status":        status,
			"sent_at":       sentAt,
			"error_message": errorMessage,
		}).Error
}

func (r *GORMRepository) ListLog(ctx context.Context, schemaName, tenantID string, limit int) ([]Log, error) {
	if limit <= 0 {
		limit = 50
	}

	db := database.TenantDB(r.db, schemaName).WithContext(ctx)

	var logs []Log
	err := db.Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}

	return logs, nil
}
