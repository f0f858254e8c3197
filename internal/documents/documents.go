// Package documents renders cover letters, CV notes and form answers from
// profile and job data.
package documents

import (
	"bytes"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/spigell/bewerbungs-agent/internal/models"
	"github.com/spigell/bewerbungs-agent/internal/scoring"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	// MethodTemplate marks bundles rendered from the embedded templates.
	MethodTemplate = "template"

	maxMatched   = 5
	maxLead      = 3
	maxUnmatched = 5
)

// Checklist is the fixed CV tailoring advice appended to every note.
var Checklist = []string{
	"Mirror the job title and key terms of the posting in your CV summary",
	"Quantify achievements with numbers where possible",
	"Order experience so the most relevant roles come first",
	"Remove content unrelated to this role",
	"Check spelling, dates and contact details",
}

// Bundle is the rendered document set.
type Bundle struct {
	CoverLetterDE     string
	CoverLetterEN     string
	OptimizationNotes string
	FormAnswers       []models.FormAnswer
}

type Generator struct {
	scorer    scoring.Scorer
	templates *template.Template
}

func NewGenerator(scorer scoring.Scorer) (*Generator, error) {
	tmpl, err := template.New("documents").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse document templates: %w", err)
	}
	return &Generator{scorer: scorer, templates: tmpl}, nil
}

type templateData struct {
	Role            string
	Company         string
	FullName        string
	Contact         []string
	ExperienceYears int
	FitScore        int
	Matched         []string
	Lead            []string
	Unmatched       []string
	Checklist       []string
}

// Generate renders the bundle. fitScore is printed as given.
func (g *Generator) Generate(profile *models.Profile, job *models.Job, fitScore int) (*Bundle, error) {
	if profile == nil || job == nil {
		return nil, fmt.Errorf("profile and job are required")
	}

	analysis := g.scorer.Analyze(profile, job)
	data := templateData{
		Role:            strings.TrimSpace(job.Role),
		Company:         strings.TrimSpace(job.Company),
		FullName:        strings.TrimSpace(profile.FullName),
		Contact:         contactLines(profile),
		ExperienceYears: profile.ExperienceYears,
		FitScore:        fitScore,
		Matched:         head(analysis.Matched, maxMatched),
		Lead:            head(analysis.Matched, maxLead),
		Unmatched:       head(analysis.Unmatched, maxUnmatched),
		Checklist:       Checklist,
	}

	bundle := &Bundle{}
	var err error
	if bundle.CoverLetterDE, err = g.render("cover_letter_de.tmpl", data); err != nil {
		return nil, err
	}
	if bundle.CoverLetterEN, err = g.render("cover_letter_en.tmpl", data); err != nil {
		return nil, err
	}
	if bundle.OptimizationNotes, err = g.render("notes.tmpl", data); err != nil {
		return nil, err
	}
	bundle.FormAnswers = formAnswers(profile, data)

	return bundle, nil
}

func (g *Generator) render(name string, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := g.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()) + "\n", nil
}

func contactLines(profile *models.Profile) []string {
	var lines []string
	for _, v := range []string{profile.Phone, profile.Email, profile.Location} {
		if v = strings.TrimSpace(v); v != "" {
			lines = append(lines, v)
		}
	}
	return lines
}

func formAnswers(profile *models.Profile, data templateData) []models.FormAnswer {
	motivation := fmt.Sprintf("I am very interested in the %s position at %s.", data.Role, data.Company)
	if len(data.Lead) > 0 {
		motivation += fmt.Sprintf(" My background in %s makes me a strong candidate for this role.", strings.Join(data.Lead, ", "))
	}

	experience := ""
	if profile.ExperienceYears > 0 {
		experience = strconv.Itoa(profile.ExperienceYears)
	}

	return []models.FormAnswer{
		{Field: "full_name", Value: data.FullName},
		{Field: "email", Value: strings.TrimSpace(profile.Email)},
		{Field: "phone", Value: strings.TrimSpace(profile.Phone)},
		{Field: "location", Value: strings.TrimSpace(profile.Location)},
		{Field: "experience_years", Value: experience},
		{Field: "skills", Value: strings.Join(profile.Skills, ", ")},
		{Field: "motivation", Value: motivation},
		{Field: "availability", Value: "Immediate / upon agreement"},
		{Field: "salary_expectations", Value: "Negotiable"},
	}
}

func head(values []string, n int) []string {
	if len(values) <= n {
		return values
	}
	return values[:n]
}
