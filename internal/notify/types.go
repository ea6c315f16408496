// Package notify sends payroll lifecycle notifications (payslip-ready,
// run-approved, bulk-import-completed) by email. The SMTP transport,
// template rendering and send-log bookkeeping follow an
// invoice/payment-receipt notifier's shape, generalized to a
// payroll-specific template catalogue and recipients.
package notify

import (
	"errors"
	"time"
)

// TemplateType names a notification's template, one per payroll lifecycle
// event this module can raise (spec §4.J run lifecycle, §4.L backpay
// sweep, §4.M bulk import).
type TemplateType string

const (
	TemplatePayslipReady        TemplateType = "PAYSLIP_READY"
	TemplateRunApproved         TemplateType = "RUN_APPROVED"
	TemplateRunPosted           TemplateType = "RUN_POSTED"
	TemplateImportCompleted     TemplateType = "IMPORT_COMPLETED"
	TemplateBackdatedChangeFound TemplateType = "BACKDATED_CHANGE_FOUND"
)

// Status is a notification's delivery state.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

// SMTPConfig holds SMTP server configuration, read out of a tenant's
// settings column.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	UseTLS    bool
}

func (c *SMTPConfig) Validate() error {
	if c.Host == "" {
		return errors.New("SMTP host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("invalid SMTP port")
	}
	if c.FromEmail == "" {
		return errors.New("from email is required")
	}
	return nil
}

func (c *SMTPConfig) IsConfigured() bool {
	return c.Host != "" && c.Port > 0 && c.FromEmail != ""
}

// Template is a stored, tenant-overridable notification template.
type Template struct {
	ID        string
	TenantID  string
	Type      TemplateType
	Subject   string
	BodyHTML  string
	BodyText  string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Log is one send attempt's audit row.
type Log struct {
	ID             string
	TenantID       string
	Type           TemplateType
	RecipientEmail string
	RecipientName  string
	Subject        string
	Status         Status
	SentAt         *time.Time
	ErrorMessage   string
	RelatedID      string // run ID, import session ID, etc.
	CreatedAt      time.Time
}

// Attachment is one file attached to an outgoing notification (a payslip
// PDF from internal/payslip, typically).
type Attachment struct {
	Filename string
	Content  []byte
}

// TemplateData holds the values a notification template's Go html/template
// body interpolates. Every field is optional; templates reference only
// the ones relevant to their event.
type TemplateData struct {
	CompanyName  string
	EmployeeName string
	Message      string

	// Payslip fields
	PayPeriod string
	NetPay    string
	Currency  string

	// Run fields
	RunID       string
	RunPeriod   string
	ApprovedBy  string
	EmployeeCount int

	// Import fields
	SessionID string
	FileName  string
	ToCreate  int
	ToUpdate  int
	ToError   int

	// Backpay fields
	AffectedEmployees int
	DetectedAt        string
}

// DefaultTemplates returns the built-in templates seeded for a new tenant,
// generalized from an invoice/payment-receipt catalogue to payroll
// lifecycle events.
func DefaultTemplates() map[TemplateType]Template {
	return map[TemplateType]Template{
		TemplatePayslipReady: {
			Type:    TemplatePayslipReady,
			Subject: "Your payslip for {{.PayPeriod}} is ready",
			BodyHTML: `<!DOCTYPE html>
<html><head><meta charset="utf-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
<h2>Payslip for {{.PayPeriod}}</h2>
<p>Dear {{.EmployeeName}},</p>
<p>Your payslip for {{.PayPeriod}} is attached. Net pay: {{.NetPay}} {{.Currency}}.</p>
{{if .Message}}<p>{{.Message}}</p>{{end}}
<p>Best regards,<br>{{.CompanyName}}</p>
</div></body></html>`,
			IsActive: true,
		},
		TemplateRunApproved: {
			Type:    TemplateRunApproved,
			Subject: "Payroll run {{.RunPeriod}} approved",
			BodyHTML: `<!DOCTYPE html>
<html><head><meta charset="utf-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
<h2>Payroll Run Approved</h2>
<p>Run {{.RunPeriod}} ({{.EmployeeCount}} employees) was approved by {{.ApprovedBy}}.</p>
{{if .Message}}<p>{{.Message}}</p>{{end}}
<p>Best regards,<br>{{.CompanyName}}</p>
</div></body></html>`,
			IsActive: true,
		},
		TemplateRunPosted: {
			Type:    TemplateRunPosted,
			Subject: "Payroll run {{.RunPeriod}} posted",
			BodyHTML: `<!DOCTYPE html>
<html><head><meta charset="utf-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
<h2>Payroll Run Posted</h2>
<p>Run {{.RunPeriod}} has been posted and payslips are now available.</p>
<p>Best regards,<br>{{.CompanyName}}</p>
</div></body></html>`,
			IsActive: true,
		},
		TemplateImportCompleted: {
			Type:    TemplateImportCompleted,
			Subject: "Bulk import {{.FileName}} completed",
			BodyHTML: `<!DOCTYPE html>
<html><head><meta charset="utf-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
<h2>Import Completed</h2>
<p>Import of {{.FileName}} finished: {{.ToCreate}} created, {{.ToUpdate}} updated, {{.ToError}} errored.</p>
<p>Session: {{.SessionID}}</p>
<p>Best regards,<br>{{.CompanyName}}</p>
</div></body></html>`,
			IsActive: true,
		},
		TemplateBackdatedChangeFound: {
			Type:    TemplateBackdatedChangeFound,
			Subject: "Backdated change detected affecting {{.AffectedEmployees}} employee(s)",
			BodyHTML: `<!DOCTYPE html>
<html><head><meta charset="utf-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
<h2>Backdated Change Detected</h2>
<p>A change effective before an already-posted run was detected at {{.DetectedAt}}, affecting {{.AffectedEmployees}} employee(s). Backpay resolution is required.</p>
<p>Best regards,<br>{{.CompanyName}}</p>
</div></body></html>`,
			IsActive: true,
		},
	}
}
