package scoring

import (
	"reflect"
	"testing"

	"github.com/spigell/bewerbungs-agent/internal/models"
)

func profileWith(skills ...string) *models.Profile {
	p := &models.Profile{FullName: "Jana Weber"}
	p.SetSkills(skills)
	return p
}

func TestScoreScenario(t *testing.T) {
	scorer := NewScorer(DefaultConfig())
	job := &models.Job{Requirements: "Python, Docker, SQL"}

	if got := scorer.Score(profileWith("python", "sql"), job); got != 67 {
		t.Fatalf("expected 67, got %d", got)
	}
}

func TestScoreZeroMatches(t *testing.T) {
	scorer := NewScorer(DefaultConfig())
	job := &models.Job{Requirements: "Kubernetes; Terraform"}

	if got := scorer.Score(profileWith("python"), job); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := scorer.Score(profileWith(), job); got != 0 {
		t.Fatalf("expected 0 for empty profile, got %d", got)
	}
}

func TestScoreBaseline(t *testing.T) {
	job := &models.Job{Description: "Great team, great coffee."}

	analysis := NewScorer(DefaultConfig()).Analyze(profileWith("go"), job)
	if analysis.Score != DefaultBaseline || !analysis.Degenerate {
		t.Fatalf("expected degenerate baseline, got %+v", analysis)
	}

	custom := NewScorer(Config{Baseline: 35})
	if got := custom.Score(profileWith("go"), job); got != 35 {
		t.Fatalf("expected custom baseline, got %d", got)
	}
}

func TestScoreIsBoundedAndDeterministic(t *testing.T) {
	scorer := NewScorer(DefaultConfig())
	cases := []struct {
		skills       []string
		requirements string
	}{
		{[]string{"go", "go", "Go"}, "Go"},
		{[]string{"python", "sql", "docker", "aws", "linux"}, "python"},
		{[]string{"c++"}, "C++ and C#"},
		{nil, "- Java\n- Spring\n- Kafka"},
		{[]string{"postgresql"}, "PostgreSQL oder MySQL | Redis"},
	}

	for _, tc := range cases {
		profile := profileWith(tc.skills...)
		job := &models.Job{Requirements: tc.requirements}
		first := scorer.Score(profile, job)
		if first < 0 || first > 100 {
			t.Fatalf("score %d out of bounds for %q", first, tc.requirements)
		}
		if again := scorer.Score(profile, job); again != first {
			t.Fatalf("non deterministic score for %q: %d vs %d", tc.requirements, first, again)
		}
	}
}

func TestRequirementTokens(t *testing.T) {
	got := RequirementTokens("Python, Docker und SQL\n• Kubernetes | CI/CD\n- Erfahrung mit C++ oder C#;\nPython")
	expected := []string{"python", "docker", "sql", "kubernetes", "ci/cd", "erfahrung mit c++", "c#"}

	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("unexpected tokens:\n got: %q\nwant: %q", got, expected)
	}
}

func TestAnalyzeRanksMatchesByRequirementOrder(t *testing.T) {
	job := &models.Job{Requirements: "Erfahrung mit Kubernetes, SQL, Python, Go"}
	profile := profileWith("python", "go", "sql", "kubernetes", "rust")

	analysis := NewScorer(DefaultConfig()).Analyze(profile, job)

	expected := []string{"kubernetes", "sql", "python", "go"}
	if !reflect.DeepEqual(analysis.Matched, expected) {
		t.Fatalf("expected %q, got %q", expected, analysis.Matched)
	}
	if analysis.Score != 100 {
		t.Fatalf("expected 100, got %d", analysis.Score)
	}
}

func TestAnalyzeReportsUnmatched(t *testing.T) {
	job := &models.Job{Requirements: "Python, Docker, SQL"}

	analysis := NewScorer(DefaultConfig()).Analyze(profileWith("sql", "python"), job)

	if !reflect.DeepEqual(analysis.Unmatched, []string{"docker"}) {
		t.Fatalf("unexpected unmatched: %q", analysis.Unmatched)
	}
	if !reflect.DeepEqual(analysis.Matched, []string{"python", "sql"}) {
		t.Fatalf("unexpected matched: %q", analysis.Matched)
	}
}

func TestSkillMatchingSeveralTokensCountsOnce(t *testing.T) {
	job := &models.Job{Requirements: "python, python 3, sql, docker"}

	analysis := NewScorer(DefaultConfig()).Analyze(profileWith("python", "sql"), job)

	if !reflect.DeepEqual(analysis.RequirementTokens, []string{"python", "python 3", "sql", "docker"}) {
		t.Fatalf("unexpected tokens: %q", analysis.RequirementTokens)
	}
	if !reflect.DeepEqual(analysis.Matched, []string{"python", "sql"}) {
		t.Fatalf("unexpected matched: %q", analysis.Matched)
	}
	if analysis.Score != 50 {
		t.Fatalf("expected 50, got %d", analysis.Score)
	}
}
