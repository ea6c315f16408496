package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepository struct {
	settingsJSON []byte
	templates    map[TemplateType]Template
	logs         []Log
	schemaCalled bool
}

func newFakeRepository(settings map[string]any) *fakeRepository {
	b, _ := json.Marshal(settings)
	return &fakeRepository{settingsJSON: b, templates: map[TemplateType]Template{}}
}

func (f *fakeRepository) EnsureSchema(ctx context.Context, schemaName string) error {
	f.schemaCalled = true
	return nil
}

func (f *fakeRepository) GetTenantSettings(ctx context.Context, tenantID string) ([]byte, error) {
	return f.settingsJSON, nil
}

func (f *fakeRepository) GetTemplate(ctx context.Context, schemaName, tenantID string, templateType TemplateType) (*Template, error) {
	tmpl, ok := f.templates[templateType]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	return &tmpl, nil
}

func (f *fakeRepository) ListTemplates(ctx context.Context, schemaName, tenantID string) ([]Template, error) {
	var out []Template
	for _, t := range f.templates {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeRepository) UpsertTemplate(ctx context.Context, schemaName string, tmpl *Template) error {
	f.templates[tmpl.Type] = *tmpl
	return nil
}

func (f *fakeRepository) CreateLog(ctx context.Context, schemaName string, log *Log) error {
	f.logs = append(f.logs, *log)
	return nil
}

func (f *fakeRepository) UpdateLogStatus(ctx context.Context, schemaName, logID string, status Status, sentAt *time.Time, errorMessage string) error {
	for i := range f.logs {
		if f.logs[i].ID == logID {
			f.logs[i].Status = status
			f.logs[i].SentAt = sentAt
			f.logs[i].ErrorMessage = errorMessage
		}
	}
	return nil
}

func (f *fakeRepository) ListLog(ctx context.Context, schemaName, tenantID string, limit int) ([]Log, error) {
	return f.logs, nil
}

func TestSend_NoSMTPConfigured_FailsAndLogs(t *testing.T) {
	repo := newFakeRepository(map[string]any{})
	svc := NewService(repo, zerolog.Nop())

	_, err := svc.Send(context.Background(), "tenant_acme", "t1", TemplatePayslipReady,
		"ama@example.com", "Ama Owusu", TemplateData{EmployeeName: "Ama", PayPeriod: "2026-07", NetPay: "2500.00", Currency: "GHS"},
		nil, "run-1")

	require.Error(t, err)
	require.Len(t, repo.logs, 1)
	assert.Equal(t, StatusFailed, repo.logs[0].Status)
	assert.Contains(t, repo.logs[0].ErrorMessage, "not configured")
}

func TestSend_EnsuresSchemaBeforeSending(t *testing.T) {
	repo := newFakeRepository(map[string]any{})
	svc := NewService(repo, zerolog.Nop())

	_, _ = svc.Send(context.Background(), "tenant_acme", "t1", TemplatePayslipReady,
		"ama@example.com", "Ama Owusu", TemplateData{}, nil, "run-1")

	assert.True(t, repo.schemaCalled)
}

func TestResolveTemplate_FallsBackToDefaultWhenTenantHasNoOverride(t *testing.T) {
	repo := newFakeRepository(nil)
	svc := NewService(repo, zerolog.Nop())

	tmpl, err := svc.resolveTemplate(context.Background(), "tenant_acme", "t1", TemplateRunApproved)
	require.NoError(t, err)
	assert.Equal(t, TemplateRunApproved, tmpl.Type)
	assert.Contains(t, tmpl.Subject, "{{.RunPeriod}}")
}

func TestResolveTemplate_PrefersTenantOverride(t *testing.T) {
	repo := newFakeRepository(nil)
	repo.templates[TemplateRunApproved] = Template{
		Type: TemplateRunApproved, Subject: "Custom subject", BodyHTML: "<p>custom</p>", IsActive: true,
	}
	svc := NewService(repo, zerolog.Nop())

	tmpl, err := svc.resolveTemplate(context.Background(), "tenant_acme", "t1", TemplateRunApproved)
	require.NoError(t, err)
	assert.Equal(t, "Custom subject", tmpl.Subject)
}

func TestRenderTemplate_InterpolatesFields(t *testing.T) {
	tmpl := DefaultTemplates()[TemplatePayslipReady]
	subject, bodyHTML, _, err := RenderTemplate(&tmpl, TemplateData{
		PayPeriod: "2026-07", EmployeeName: "Ama", NetPay: "2,500.00", Currency: "GHS", CompanyName: "Acme Ltd",
	})
	require.NoError(t, err)
	assert.Contains(t, subject, "2026-07")
	assert.Contains(t, bodyHTML, "Ama")
	assert.Contains(t, bodyHTML, "2,500.00 GHS")
}

func TestParseSMTPConfig_ReadsKnownFields(t *testing.T) {
	settingsJSON, err := json.Marshal(map[string]any{
		"smtp_host": "smtp.example.com", "smtp_port": float64(25), "smtp_from_email": "noreply@example.com",
	})
	require.NoError(t, err)

	cfg, err := ParseSMTPConfig(settingsJSON)
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com", cfg.Host)
	assert.Equal(t, 25, cfg.Port)
	assert.True(t, cfg.IsConfigured())
}
