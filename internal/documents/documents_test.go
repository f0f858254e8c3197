package documents

import (
	"reflect"
	"strings"
	"testing"

	"github.com/spigell/bewerbungs-agent/internal/models"
	"github.com/spigell/bewerbungs-agent/internal/scoring"
)

func newGenerator(t *testing.T) *Generator {
	t.Helper()
	g, err := NewGenerator(scoring.NewScorer(scoring.DefaultConfig()))
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	return g
}

func testProfile() *models.Profile {
	p := &models.Profile{
		FullName:        "Jana Weber",
		Email:           "jana@example.org",
		Phone:           "+49 170 0000000",
		ExperienceYears: 6,
	}
	p.SetSkills([]string{"Python", "SQL", "Terraform"})
	return p
}

func testJob() *models.Job {
	return &models.Job{
		Company:      "Nordlicht GmbH",
		Role:         "Data Engineer",
		Requirements: "Python, Docker, SQL",
	}
}

func TestGenerateIsIdempotent(t *testing.T) {
	g := newGenerator(t)

	first, err := g.Generate(testProfile(), testJob(), 67)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := g.Generate(testProfile(), testJob(), 67)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected byte identical bundles")
	}
}

func TestGenerateUsesMatchedSkills(t *testing.T) {
	bundle, err := newGenerator(t).Generate(testProfile(), testJob(), 67)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	for _, letter := range []string{bundle.CoverLetterDE, bundle.CoverLetterEN} {
		if !strings.Contains(letter, "Data Engineer") || !strings.Contains(letter, "Nordlicht GmbH") {
			t.Fatalf("letter misses role or company:\n%s", letter)
		}
		if !strings.Contains(letter, "- python\n- sql\n") {
			t.Fatalf("letter misses ranked skills:\n%s", letter)
		}
		if strings.Contains(letter, "terraform") {
			t.Fatalf("letter mentions a skill the job does not ask for:\n%s", letter)
		}
	}
	if !strings.Contains(bundle.CoverLetterEN, "6 years") {
		t.Fatalf("expected experience years in english letter")
	}
}

func TestGenerateNotes(t *testing.T) {
	bundle, err := newGenerator(t).Generate(testProfile(), testJob(), 42)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	notes := bundle.OptimizationNotes
	for _, want := range []string{"Fit score: 42/100", "- docker", "- python", "Checklist:"} {
		if !strings.Contains(notes, want) {
			t.Fatalf("notes miss %q:\n%s", want, notes)
		}
	}
	for _, item := range Checklist {
		if !strings.Contains(notes, item) {
			t.Fatalf("notes miss checklist item %q", item)
		}
	}
}

func TestGenerateWithoutMatchesFallsBackToGenericPhrasing(t *testing.T) {
	profile := &models.Profile{FullName: "Jana Weber"}
	profile.SetSkills([]string{"cobol"})

	bundle, err := newGenerator(t).Generate(profile, testJob(), 0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if strings.Contains(bundle.CoverLetterEN, "years of professional experience") {
		t.Fatalf("letter claims experience the profile does not have:\n%s", bundle.CoverLetterEN)
	}
	if !strings.Contains(bundle.CoverLetterEN, "With my professional background") {
		t.Fatalf("expected generic phrasing:\n%s", bundle.CoverLetterEN)
	}
	if !strings.Contains(bundle.CoverLetterDE, "Mit meinem beruflichen Hintergrund") {
		t.Fatalf("expected generic german phrasing:\n%s", bundle.CoverLetterDE)
	}
	if strings.Contains(bundle.CoverLetterEN, "cobol") {
		t.Fatalf("unmatched skill must not be advertised")
	}
	if !strings.Contains(bundle.OptimizationNotes, "No profile skill matched") {
		t.Fatalf("expected notes to flag missing matches:\n%s", bundle.OptimizationNotes)
	}
}

func TestFormAnswers(t *testing.T) {
	bundle, err := newGenerator(t).Generate(testProfile(), testJob(), 67)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	answers := map[string]string{}
	for _, a := range bundle.FormAnswers {
		answers[a.Field] = a.Value
	}
	if answers["full_name"] != "Jana Weber" || answers["experience_years"] != "6" {
		t.Fatalf("unexpected answers: %+v", answers)
	}
	if !strings.Contains(answers["motivation"], "python, sql") {
		t.Fatalf("unexpected motivation: %q", answers["motivation"])
	}
}

func TestGenerateRequiresInputs(t *testing.T) {
	if _, err := newGenerator(t).Generate(nil, testJob(), 1); err == nil {
		t.Fatalf("expected error for missing profile")
	}
}
