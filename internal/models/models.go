package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/spigell/bewerbungs-agent/internal/apperrors"
	"github.com/spigell/bewerbungs-agent/internal/classify"
	"github.com/spigell/bewerbungs-agent/internal/plan"
	"github.com/spigell/bewerbungs-agent/internal/textnorm"
	"github.com/spigell/bewerbungs-agent/internal/workflow"
)

type JobSource string

const (
	SourceInboundMail JobSource = "inbound-mail"
	SourceManual      JobSource = "manual"
	SourceBulkImport  JobSource = "bulk-import"
)

type Locale string

const (
	LocaleDE Locale = "de"
	LocaleEN Locale = "en"
)

type User struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email     string    `gorm:"uniqueIndex;type:varchar(255);not null" json:"email"`
	Tier      plan.Tier `gorm:"type:varchar(16);not null;default:free" json:"tier"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Entry is a structured education or work history item.
type Entry struct {
	Title        string `json:"title" yaml:"title"`
	Organization string `json:"organization,omitempty" yaml:"organization,omitempty"`
	Start        string `json:"start,omitempty" yaml:"start,omitempty"`
	End          string `json:"end,omitempty" yaml:"end,omitempty"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
}

type Profile struct {
	ID              string                      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID          string                      `gorm:"uniqueIndex;type:varchar(36);not null" json:"user_id"`
	FullName        string                      `gorm:"type:varchar(255)" json:"full_name"`
	Email           string                      `gorm:"type:varchar(255)" json:"email,omitempty"`
	Phone           string                      `gorm:"type:varchar(50)" json:"phone,omitempty"`
	Location        string                      `gorm:"type:varchar(255)" json:"location,omitempty"`
	ExperienceYears int                         `json:"experience_years,omitempty"`
	Skills          datatypes.JSONSlice[string] `json:"skills"`
	CVText          string                      `gorm:"type:text" json:"cv_text"`
	Education       datatypes.JSONSlice[Entry]  `json:"education,omitempty"`
	WorkHistory     datatypes.JSONSlice[Entry]  `json:"work_history,omitempty"`
	Locales         datatypes.JSONSlice[Locale] `json:"locales,omitempty"`
	CreatedAt       time.Time                   `json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`
}

// SetSkills stores skills case normalized and deduplicated, keeping order.
func (p *Profile) SetSkills(skills []string) {
	p.Skills = datatypes.JSONSlice[string](textnorm.Skills(skills))
}

type Job struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Source       JobSource `gorm:"type:varchar(32);not null" json:"source"`
	Company      string    `gorm:"type:varchar(255);not null" json:"company"`
	Role         string    `gorm:"type:varchar(255);not null" json:"role"`
	Description  string    `gorm:"type:text" json:"description"`
	Requirements string    `gorm:"type:text" json:"requirements"`
	Location     string    `gorm:"type:varchar(255)" json:"location,omitempty"`
	Compensation string    `gorm:"type:varchar(100)" json:"compensation,omitempty"`
	URL          string    `gorm:"type:varchar(1024)" json:"url,omitempty"`
	SignalID     *string   `gorm:"type:varchar(36)" json:"signal_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Enrichment carries the job fields that may change after creation.
type Enrichment struct {
	Location     string
	Compensation string
	URL          string
}

// Apply overwrites the enrichment fields of j that are set in e.
func (e Enrichment) Apply(j *Job) {
	if v := strings.TrimSpace(e.Location); v != "" {
		j.Location = v
	}
	if v := strings.TrimSpace(e.Compensation); v != "" {
		j.Compensation = v
	}
	if v := strings.TrimSpace(e.URL); v != "" {
		j.URL = v
	}
}

type Application struct {
	ID          string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID      string          `gorm:"type:varchar(36);not null;uniqueIndex:idx_application_user_job;index:idx_application_user_status" json:"user_id"`
	JobID       string          `gorm:"type:varchar(36);not null;uniqueIndex:idx_application_user_job" json:"job_id"`
	Status      workflow.Status `gorm:"type:varchar(32);not null;index:idx_application_user_status" json:"status"`
	FitScore    *int            `json:"fit_score,omitempty"`
	Notes       string          `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ApprovedAt  *time.Time      `json:"approved_at,omitempty"`
	ApprovedBy  string          `gorm:"type:varchar(255)" json:"approved_by,omitempty"`
	SubmittedAt *time.Time      `json:"submitted_at,omitempty"`
}

// JoinNotes appends more to existing notes on a new line.
func JoinNotes(existing, more string) string {
	existing, more = strings.TrimSpace(existing), strings.TrimSpace(more)
	switch {
	case existing == "":
		return more
	case more == "":
		return existing
	}
	return existing + "\n" + more
}

// WrongState is the guard violation for t attempted while a is in another
// status.
func (a *Application) WrongState(t workflow.Transition) error {
	return apperrors.GuardViolation(apperrors.GuardWrongState, t.Name(),
		fmt.Sprintf("application %s is %s, expected %s", a.ID, a.Status, t.From()))
}

func ApplicationNotFound(id string) error {
	return apperrors.NotFound("get application", fmt.Sprintf("application %s not found", id))
}

// DuplicateApplication reports the existing application of a (user, job) pair.
func DuplicateApplication(existingID, jobID string) error {
	return apperrors.GuardViolation(apperrors.GuardDuplicate, workflow.CreateName,
		fmt.Sprintf("application %s already exists for job %s", existingID, jobID))
}

func DocumentsFrozen(a *Application) error {
	return apperrors.GuardViolation(apperrors.GuardWrongState, "generate-documents",
		fmt.Sprintf("application %s is %s, documents are frozen after submission", a.ID, a.Status))
}

// TransitionRecord is the audit trail entry written with every status change.
type TransitionRecord struct {
	ID            uint            `gorm:"primaryKey;autoIncrement" json:"-"`
	ApplicationID string          `gorm:"type:varchar(36);not null;index" json:"application_id"`
	Name          string          `gorm:"type:varchar(32);not null" json:"name"`
	From          workflow.Status `gorm:"column:from_status;type:varchar(32);not null" json:"from"`
	To            workflow.Status `gorm:"column:to_status;type:varchar(32);not null" json:"to"`
	Actor         string          `gorm:"type:varchar(255)" json:"actor,omitempty"`
	At            time.Time       `gorm:"not null" json:"at"`
}

// StatusChange describes an atomic status update applied by a store.
type StatusChange struct {
	Transition  workflow.Transition
	Actor       string
	At          time.Time
	ApprovedAt  *time.Time
	ApprovedBy  string
	SubmittedAt *time.Time
}

// ApplyTo writes the status change into a.
func (c StatusChange) ApplyTo(a *Application) {
	a.Status = c.Transition.To()
	a.UpdatedAt = c.At
	if c.ApprovedAt != nil {
		a.ApprovedAt = c.ApprovedAt
		a.ApprovedBy = c.ApprovedBy
	}
	if c.SubmittedAt != nil {
		a.SubmittedAt = c.SubmittedAt
	}
}

// Record is the audit entry for the change.
func (c StatusChange) Record(applicationID string) TransitionRecord {
	return TransitionRecord{
		ApplicationID: applicationID,
		Name:          c.Transition.Name(),
		From:          c.Transition.From(),
		To:            c.Transition.To(),
		Actor:         c.Actor,
		At:            c.At,
	}
}

// FormAnswer is a pre-filled answer for a common application form field.
type FormAnswer struct {
	Field string `json:"field" yaml:"field"`
	Value string `json:"value" yaml:"value"`
}

type DocumentBundle struct {
	ApplicationID     string                          `gorm:"primaryKey;type:varchar(36)" json:"application_id"`
	CoverLetterDE     string                          `gorm:"type:text" json:"cover_letter_de"`
	CoverLetterEN     string                          `gorm:"type:text" json:"cover_letter_en"`
	OptimizationNotes string                          `gorm:"type:text" json:"optimization_notes"`
	FormAnswers       datatypes.JSONSlice[FormAnswer] `json:"form_answers,omitempty"`
	Method            string                          `gorm:"type:varchar(16)" json:"method"`
	GeneratedAt       time.Time                       `json:"generated_at"`
}

// Empty reports whether the bundle carries no usable document text.
func (d *DocumentBundle) Empty() bool {
	if d == nil {
		return true
	}
	return strings.TrimSpace(d.CoverLetterDE) == "" &&
		strings.TrimSpace(d.CoverLetterEN) == "" &&
		strings.TrimSpace(d.OptimizationNotes) == ""
}

type InboundSignal struct {
	ID            string                      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID        string                      `gorm:"type:varchar(36);not null;uniqueIndex:idx_signal_user_message" json:"user_id"`
	MessageID     string                      `gorm:"type:varchar(255);not null;uniqueIndex:idx_signal_user_message" json:"message_id"`
	ThreadID      string                      `gorm:"type:varchar(255)" json:"thread_id,omitempty"`
	Sender        string                      `gorm:"type:varchar(255)" json:"sender,omitempty"`
	Subject       string                      `gorm:"type:varchar(512)" json:"subject"`
	Body          string                      `gorm:"type:text" json:"body"`
	Attachments   datatypes.JSONSlice[string] `json:"attachments,omitempty"`
	ReceivedAt    time.Time                   `json:"received_at"`
	Category      classify.Category           `gorm:"type:varchar(32);index" json:"category"`
	Confidence    float64                     `json:"confidence"`
	Method        classify.Method             `gorm:"type:varchar(16)" json:"method"`
	JobID         *string                     `gorm:"type:varchar(36)" json:"job_id,omitempty"`
	ApplicationID *string                     `gorm:"type:varchar(36)" json:"application_id,omitempty"`
	Processed     bool                        `gorm:"not null;default:false;index" json:"processed"`
	CreatedAt     time.Time                   `json:"created_at"`
}

// All returns every persisted model, in migration order.
func All() []any {
	return []any{
		&User{},
		&Profile{},
		&Job{},
		&Application{},
		&TransitionRecord{},
		&DocumentBundle{},
		&InboundSignal{},
	}
}

// ApplicationFilter narrows application listings. Empty fields match all.
type ApplicationFilter struct {
	UserID string
	Status workflow.Status
	JobID  string
}

// SignalFilter narrows inbound signal listings. Empty fields match all.
type SignalFilter struct {
	UserID    string
	Category  classify.Category
	Processed *bool
}
