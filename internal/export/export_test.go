package export

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/spigell/bewerbungs-agent/internal/models"
	"github.com/spigell/bewerbungs-agent/internal/storage/memory"
	"github.com/spigell/bewerbungs-agent/internal/utils"
	"github.com/spigell/bewerbungs-agent/internal/workflow"
)

var created = time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)

func sampleRecord() Record {
	approved := created.Add(2 * time.Hour)
	app := &models.Application{
		ID:         "app-1",
		UserID:     "user-1",
		JobID:      "job-1",
		Status:     workflow.UserApproved,
		FitScore:   utils.Ptr(67),
		Notes:      "Recruiter: Frau Schmidt\nCall back Monday",
		CreatedAt:  created,
		UpdatedAt:  approved,
		ApprovedAt: &approved,
		ApprovedBy: "anna",
	}
	job := &models.Job{
		ID:       "job-1",
		Source:   models.SourceManual,
		Company:  "ACME GmbH",
		Role:     "Backend Entwickler",
		Location: "Berlin",
		URL:      "https://acme.example/jobs/1",
	}
	profile := &models.Profile{FullName: "Anna Muster", Email: "anna@example.org"}
	bundle := &models.DocumentBundle{
		ApplicationID:     "app-1",
		CoverLetterDE:     "Sehr geehrte Damen und Herren,\n",
		CoverLetterEN:     "Dear Hiring Team,\n",
		OptimizationNotes: "Fit score: 67/100\n",
		FormAnswers:       []models.FormAnswer{{Field: "full_name", Value: "Anna Muster"}},
		Method:            "template",
		GeneratedAt:       created,
	}
	history := []models.TransitionRecord{
		{ApplicationID: "app-1", Name: workflow.CreateName, To: workflow.Draft, At: created},
		{ApplicationID: "app-1", Name: "approve", From: workflow.ReviewRequired, To: workflow.UserApproved, Actor: "anna", At: approved},
	}
	return Build(app, job, profile, bundle, history)
}

func TestParseFormat(t *testing.T) {
	for input, expected := range map[string]Format{"JSON": FormatJSON, "yml": FormatYAML, "": FormatText, " text ": FormatText} {
		got, err := ParseFormat(input)
		require.NoError(t, err)
		assert.Equal(t, expected, got)
	}
	_, err := ParseFormat("pdf")
	require.Error(t, err)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, []Record{sampleRecord()}))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)

	app := decoded[0]["application"].(map[string]any)
	assert.Equal(t, "USER_APPROVED", app["status"])
	assert.Equal(t, float64(67), app["fit_score"])
	assert.Equal(t, "anna", app["approved_by"])
	assert.NotContains(t, app, "submitted_at")

	job := decoded[0]["job"].(map[string]any)
	assert.Equal(t, "ACME GmbH", job["company"])
	docs := decoded[0]["documents"].(map[string]any)
	assert.Equal(t, "Dear Hiring Team,\n", docs["cover_letter_en"])
	assert.Len(t, decoded[0]["history"], 2)
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatYAML, []Record{sampleRecord()}))

	var decoded []struct {
		Application struct {
			ID     string `yaml:"id"`
			Status string `yaml:"status"`
		} `yaml:"application"`
		Profile struct {
			FullName string `yaml:"full_name"`
		} `yaml:"profile"`
		Documents struct {
			FormAnswers []models.FormAnswer `yaml:"form_answers"`
		} `yaml:"documents"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "app-1", decoded[0].Application.ID)
	assert.Equal(t, "USER_APPROVED", decoded[0].Application.Status)
	assert.Equal(t, "Anna Muster", decoded[0].Profile.FullName)
	assert.Equal(t, []models.FormAnswer{{Field: "full_name", Value: "Anna Muster"}}, decoded[0].Documents.FormAnswers)
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatText, []Record{sampleRecord(), sampleRecord()}))
	out := buf.String()

	for _, want := range []string{
		"Application app-1",
		"Status:     USER_APPROVED",
		"Fit score:  67/100",
		"Approved:   2026-03-03 12:00 UTC by anna",
		"Company:      ACME GmbH",
		"URL:          https://acme.example/jobs/1",
		"Name:     Anna Muster",
		"  Recruiter: Frau Schmidt\n  Call back Monday",
		"== Cover letter (DE) ==\nSehr geehrte Damen und Herren,",
		"full_name: Anna Muster",
		"REVIEW_REQUIRED -> USER_APPROVED  (anna)",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "Submitted:")
	assert.Equal(t, 1, strings.Count(out, strings.Repeat("-", 72)))
}

func TestWriteTextWithoutDocuments(t *testing.T) {
	rec := Build(&models.Application{ID: "app-2", Status: workflow.Draft, CreatedAt: created}, nil, nil, nil, nil)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatText, []Record{rec}))
	assert.Contains(t, buf.String(), "Fit score:  n/a")
	assert.Contains(t, buf.String(), "No documents generated yet.")
}

func TestWriteEmptyList(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	user := &models.User{Email: "anna@example.org"}
	require.NoError(t, store.CreateUser(ctx, user))
	require.NoError(t, store.UpsertProfile(ctx, &models.Profile{UserID: user.ID, FullName: "Anna Muster"}))
	job := &models.Job{Source: models.SourceManual, Company: "ACME", Role: "SRE"}
	require.NoError(t, store.CreateJob(ctx, job))
	app := &models.Application{UserID: user.ID, JobID: job.ID}
	require.NoError(t, store.CreateApplication(ctx, app, nil))

	rec, err := Load(ctx, store, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "SRE", rec.Job.Role)
	assert.Equal(t, "Anna Muster", rec.Profile.FullName)
	assert.Nil(t, rec.Documents)
	require.Len(t, rec.History, 1)
	assert.Equal(t, workflow.CreateName, rec.History[0].Name)

	_, err = Load(ctx, store, "missing")
	require.Error(t, err)
}
