package signals

import (
	"testing"

	"github.com/spigell/bewerbungs-agent/internal/models"
)

func TestExtractJob(t *testing.T) {
	sig := &models.InboundSignal{
		ID:      "sig-1",
		Sender:  `"Nordlicht GmbH Recruiting" <jobs@nordlicht.de>`,
		Subject: "Job alert: Senior Data Engineer (m/w/d)",
		Body: "Hallo Jana,\n\nStandort: Hamburg\nGehalt: 70.000 - 85.000 EUR\n\n" +
			"Anforderungen:\n- Python\n- SQL und Docker\n\nMehr unter https://jobs.nordlicht.de/123 ansehen.",
	}

	job := ExtractJob(sig)

	if job.Role != "Senior Data Engineer (m/w/d)" {
		t.Fatalf("unexpected role %q", job.Role)
	}
	if job.Company != "Nordlicht GmbH Recruiting" {
		t.Fatalf("unexpected company %q", job.Company)
	}
	if job.Location != "Hamburg" || job.Compensation != "70.000 - 85.000 EUR" {
		t.Fatalf("unexpected enrichment %q / %q", job.Location, job.Compensation)
	}
	if job.Requirements != "- Python\n- SQL und Docker" {
		t.Fatalf("unexpected requirements %q", job.Requirements)
	}
	if job.URL != "https://jobs.nordlicht.de/123" {
		t.Fatalf("unexpected url %q", job.URL)
	}
	if job.Source != models.SourceInboundMail || job.SignalID == nil || *job.SignalID != "sig-1" {
		t.Fatalf("unexpected source linkage: %+v", job)
	}
}

func TestExtractJobFallbacks(t *testing.T) {
	tests := []struct {
		name        string
		sig         models.InboundSignal
		company     string
		role        string
		requirement string
	}{
		{
			name:        "domain as company and bullets as requirements",
			sig:         models.InboundSignal{Sender: "noreply@stepstone.de", Subject: "Neue Jobs: Backend Entwickler", Body: "* Go\n* Kubernetes\nText"},
			company:     "stepstone",
			role:        "Backend Entwickler",
			requirement: "* Go\n* Kubernetes",
		},
		{
			name:        "inline requirements",
			sig:         models.InboundSignal{Subject: "Fwd: DevOps Engineer", Body: "Requirements: Terraform, AWS"},
			company:     "Unknown company",
			role:        "Fwd: DevOps Engineer",
			requirement: "Terraform, AWS",
		},
		{
			name:    "labelled fields win",
			sig:     models.InboundSignal{Sender: "Alerts <a@b.de>", Subject: "x", Body: "Unternehmen: Acme AG\nPosition: QA Lead"},
			company: "Acme AG",
			role:    "QA Lead",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := ExtractJob(&tt.sig)
			if job.Company != tt.company {
				t.Fatalf("company: expected %q, got %q", tt.company, job.Company)
			}
			if job.Role != tt.role {
				t.Fatalf("role: expected %q, got %q", tt.role, job.Role)
			}
			if job.Requirements != tt.requirement {
				t.Fatalf("requirements: expected %q, got %q", tt.requirement, job.Requirements)
			}
		})
	}
}
