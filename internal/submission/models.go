package submission

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxDatevAccountLen is the DATEV account number length limit.
const MaxDatevAccountLen = 20

// Submission is a document handed in through the client portal, owned by
// exactly one organization.
type Submission struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	ClientName     string    `json:"client_name"`
	DocType        string    `json:"doc_type"` // "invoice", "receipt", "statement", "other"
	Period         string    `json:"period"`   // accounting period, e.g. "2026-07"
	DatevAccount   string    `json:"datev_account"`
	Status         string    `json:"status"` // "new", "reviewed", "exported"
	FileName       string    `json:"file_name,omitempty"`
	UploadedAt     time.Time `json:"uploaded_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// Export is a generated DATEV export batch for an organization.
type Export struct {
	ID              string    `json:"id"`
	OrganizationID  string    `json:"organization_id"`
	Format          string    `json:"format"` // "datev-csv", "datev-xml"
	Period          string    `json:"period"`
	SubmissionCount int       `json:"submission_count"`
	Status          string    `json:"status"` // "pending", "ready", "failed"
	RequestedBy     string    `json:"requested_by"`
	CreatedAt       time.Time `json:"created_at"`
}

// CreateSubmissionInput is the portal intake payload.
type CreateSubmissionInput struct {
	ClientName string
	DocType    string
	Period     string
	FileName   string
}

// UpdateSubmissionInput is a partial update of a submission.
type UpdateSubmissionInput struct {
	DatevAccount *string `json:"datev_account"`
	Status       *string `json:"status"`
}

// CreateExportInput is the input for requesting an export batch.
type CreateExportInput struct {
	Format      string
	Period      string
	RequestedBy string
}

// ErrNotFound covers both absent submissions and submissions owned by a
// different organization; callers cannot tell the two apart.
var ErrNotFound = errors.New("submission not found")

// ValidationError is a user-safe rejection of a specific field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var validDocTypes = map[string]struct{}{
	"invoice":   {},
	"receipt":   {},
	"statement": {},
	"other":     {},
}

var validStatuses = map[string]struct{}{
	"new":      {},
	"reviewed": {},
	"exported": {},
}

var validExportFormats = map[string]struct{}{
	"datev-csv": {},
	"datev-xml": {},
}

// Validate checks the portal intake payload.
func (in *CreateSubmissionInput) Validate() error {
	if strings.TrimSpace(in.ClientName) == "" {
		return &ValidationError{Field: "client_name", Message: "client name is required"}
	}
	if len(in.ClientName) > 200 {
		return &ValidationError{Field: "client_name", Message: "cannot exceed 200 characters"}
	}
	if _, ok := validDocTypes[in.DocType]; !ok {
		return &ValidationError{Field: "doc_type", Message: "must be invoice, receipt, statement or other"}
	}
	if !validPeriod(in.Period) {
		return &ValidationError{Field: "period", Message: "must be formatted as YYYY-MM"}
	}
	return nil
}

// Validate checks a partial update. The DATEV account number is capped at
// 20 characters, matching the DATEV field limit.
func (in *UpdateSubmissionInput) Validate() error {
	if in.DatevAccount == nil && in.Status == nil {
		return &ValidationError{Field: "", Message: "no fields to update"}
	}
	if in.DatevAccount != nil && len(*in.DatevAccount) > MaxDatevAccountLen {
		return &ValidationError{
			Field:   "datev_account",
			Message: fmt.Sprintf("cannot exceed %d characters", MaxDatevAccountLen),
		}
	}
	if in.Status != nil {
		if _, ok := validStatuses[*in.Status]; !ok {
			return &ValidationError{Field: "status", Message: "must be new, reviewed or exported"}
		}
	}
	return nil
}

// Validate checks an export request.
func (in *CreateExportInput) Validate() error {
	if _, ok := validExportFormats[in.Format]; !ok {
		return &ValidationError{Field: "format", Message: "must be datev-csv or datev-xml"}
	}
	if !validPeriod(in.Period) {
		return &ValidationError{Field: "period", Message: "must be formatted as YYYY-MM"}
	}
	return nil
}

// validPeriod accepts YYYY-MM with a plausible month.
func validPeriod(p string) bool {
	if len(p) != 7 || p[4] != '-' {
		return false
	}
	var year, month int
	if _, err := fmt.Sscanf(p, "%4d-%2d", &year, &month); err != nil {
		return false
	}
	return year >= 2000 && year <= 2100 && month >= 1 && month <= 12
}
