// Package export renders applications with their documents for people and
// for other programs.
package export

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spigell/bewerbungs-agent/internal/apperrors"
	"github.com/spigell/bewerbungs-agent/internal/models"
	"github.com/spigell/bewerbungs-agent/internal/workflow"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatText Format = "text"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	case FormatText, "txt", "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown export format %q (expected json, yaml or text)", s)
	}
}

type Application struct {
	ID          string          `json:"id" yaml:"id"`
	UserID      string          `json:"user_id" yaml:"user_id"`
	JobID       string          `json:"job_id" yaml:"job_id"`
	Status      workflow.Status `json:"status" yaml:"status"`
	FitScore    *int            `json:"fit_score,omitempty" yaml:"fit_score,omitempty"`
	Notes       string          `json:"notes,omitempty" yaml:"notes,omitempty"`
	CreatedAt   time.Time       `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" yaml:"updated_at"`
	ApprovedAt  *time.Time      `json:"approved_at,omitempty" yaml:"approved_at,omitempty"`
	ApprovedBy  string          `json:"approved_by,omitempty" yaml:"approved_by,omitempty"`
	SubmittedAt *time.Time      `json:"submitted_at,omitempty" yaml:"submitted_at,omitempty"`
}

type Job struct {
	ID           string           `json:"id" yaml:"id"`
	Company      string           `json:"company" yaml:"company"`
	Role         string           `json:"role" yaml:"role"`
	Location     string           `json:"location,omitempty" yaml:"location,omitempty"`
	Compensation string           `json:"compensation,omitempty" yaml:"compensation,omitempty"`
	URL          string           `json:"url,omitempty" yaml:"url,omitempty"`
	Source       models.JobSource `json:"source" yaml:"source"`
}

type Profile struct {
	FullName string `json:"full_name" yaml:"full_name"`
	Email    string `json:"email,omitempty" yaml:"email,omitempty"`
	Phone    string `json:"phone,omitempty" yaml:"phone,omitempty"`
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
}

type Documents struct {
	CoverLetterDE     string              `json:"cover_letter_de" yaml:"cover_letter_de"`
	CoverLetterEN     string              `json:"cover_letter_en" yaml:"cover_letter_en"`
	OptimizationNotes string              `json:"optimization_notes" yaml:"optimization_notes"`
	FormAnswers       []models.FormAnswer `json:"form_answers,omitempty" yaml:"form_answers,omitempty"`
	Method            string              `json:"method" yaml:"method"`
	GeneratedAt       time.Time           `json:"generated_at" yaml:"generated_at"`
}

type Transition struct {
	Name  string          `json:"name" yaml:"name"`
	From  workflow.Status `json:"from" yaml:"from"`
	To    workflow.Status `json:"to" yaml:"to"`
	Actor string          `json:"actor,omitempty" yaml:"actor,omitempty"`
	At    time.Time       `json:"at" yaml:"at"`
}

// Record is everything needed to act on one application without further
// lookups.
type Record struct {
	Application Application  `json:"application" yaml:"application"`
	Job         Job          `json:"job" yaml:"job"`
	Profile     Profile      `json:"profile" yaml:"profile"`
	Documents   *Documents   `json:"documents,omitempty" yaml:"documents,omitempty"`
	History     []Transition `json:"history,omitempty" yaml:"history,omitempty"`
}

// Build denormalizes the stored entities into a Record. bundle and profile
// may be nil.
func Build(app *models.Application, job *models.Job, profile *models.Profile, bundle *models.DocumentBundle, history []models.TransitionRecord) Record {
	rec := Record{
		Application: Application{
			ID:          app.ID,
			UserID:      app.UserID,
			JobID:       app.JobID,
			Status:      app.Status,
			FitScore:    app.FitScore,
			Notes:       app.Notes,
			CreatedAt:   app.CreatedAt,
			UpdatedAt:   app.UpdatedAt,
			ApprovedAt:  app.ApprovedAt,
			ApprovedBy:  app.ApprovedBy,
			SubmittedAt: app.SubmittedAt,
		},
	}
	if job != nil {
		rec.Job = Job{
			ID:           job.ID,
			Company:      job.Company,
			Role:         job.Role,
			Location:     job.Location,
			Compensation: job.Compensation,
			URL:          job.URL,
			Source:       job.Source,
		}
	}
	if profile != nil {
		rec.Profile = Profile{
			FullName: profile.FullName,
			Email:    profile.Email,
			Phone:    profile.Phone,
			Location: profile.Location,
		}
	}
	if !bundle.Empty() {
		rec.Documents = &Documents{
			CoverLetterDE:     bundle.CoverLetterDE,
			CoverLetterEN:     bundle.CoverLetterEN,
			OptimizationNotes: bundle.OptimizationNotes,
			FormAnswers:       bundle.FormAnswers,
			Method:            bundle.Method,
			GeneratedAt:       bundle.GeneratedAt,
		}
	}
	for _, h := range history {
		rec.History = append(rec.History, Transition{Name: h.Name, From: h.From, To: h.To, Actor: h.Actor, At: h.At})
	}
	return rec
}

// Store is the read access Load needs.
type Store interface {
	GetApplication(ctx context.Context, id string) (*models.Application, error)
	GetJob(ctx context.Context, id string) (*models.Job, error)
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	GetDocuments(ctx context.Context, applicationID string) (*models.DocumentBundle, error)
	ListTransitions(ctx context.Context, applicationID string) ([]models.TransitionRecord, error)
}

// Load reads one application and everything it refers to.
func Load(ctx context.Context, store Store, applicationID string) (*Record, error) {
	app, err := store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	job, err := store.GetJob(ctx, app.JobID)
	if err != nil {
		return nil, fmt.Errorf("load job of application %s: %w", app.ID, err)
	}
	profile, err := store.GetProfile(ctx, app.UserID)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, fmt.Errorf("load profile of application %s: %w", app.ID, err)
	}
	bundle, err := store.GetDocuments(ctx, app.ID)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, fmt.Errorf("load documents of application %s: %w", app.ID, err)
	}
	history, err := store.ListTransitions(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("load history of application %s: %w", app.ID, err)
	}

	rec := Build(app, job, profile, bundle, history)
	return &rec, nil
}

// Write renders records in the given format. JSON and YAML always hold a
// list.
func Write(w io.Writer, format Format, records []Record) error {
	if records == nil {
		records = []Record{}
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(records)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatText:
		return writeText(w, records)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

var textTemplate = template.Must(template.New("export").Funcs(template.FuncMap{
	"deref":     func(v *int) int { return *v },
	"derefTime": func(v *time.Time) time.Time { return *v },
	"date":      func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04 MST") },
	"indent": func(s string) string {
		return "  " + strings.ReplaceAll(strings.TrimSpace(s), "\n", "\n  ")
	},
}).ParseFS(templateFS, "templates/*.tmpl"))

func writeText(w io.Writer, records []Record) error {
	for i := range records {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"+strings.Repeat("-", 72)+"\n\n"); err != nil {
				return err
			}
		}
		if err := textTemplate.ExecuteTemplate(w, "record", &records[i]); err != nil {
			return fmt.Errorf("render application %s: %w", records[i].Application.ID, err)
		}
	}
	return nil
}
