// Package scoring computes the fit score between a profile and a job.
package scoring

import (
	"math"
	"strings"

	"github.com/spigell/bewerbungs-agent/internal/models"
	"github.com/spigell/bewerbungs-agent/internal/textnorm"
)

// DefaultBaseline is returned for jobs without extractable requirements.
const DefaultBaseline = 50

type Config struct {
	Baseline int `mapstructure:"baseline"`
}

func DefaultConfig() Config {
	return Config{Baseline: DefaultBaseline}
}

// Analysis is the full result behind a score.
type Analysis struct {
	RequirementTokens []string `json:"requirement_tokens"`
	// Matched holds profile skills ordered by the first requirement they
	// satisfy, ties broken by profile order.
	Matched    []string `json:"matched"`
	Unmatched  []string `json:"unmatched"`
	Score      int      `json:"score"`
	Degenerate bool     `json:"degenerate"`
}

// Scorer is pure and safe for concurrent use.
type Scorer struct {
	baseline int
}

func NewScorer(cfg Config) Scorer {
	return Scorer{baseline: clamp(cfg.Baseline)}
}

func (s Scorer) Baseline() int { return s.baseline }

func (s Scorer) Score(profile *models.Profile, job *models.Job) int {
	return s.Analyze(profile, job).Score
}

func (s Scorer) Analyze(profile *models.Profile, job *models.Job) Analysis {
	var requirements string
	if job != nil {
		requirements = job.Requirements
	}
	tokens := RequirementTokens(requirements)

	var skills []string
	if profile != nil {
		skills = textnorm.Skills(profile.Skills)
	}

	analysis := Analysis{
		RequirementTokens: tokens,
		Matched:           []string{},
		Unmatched:         []string{},
	}
	if len(tokens) == 0 {
		analysis.Score = s.baseline
		analysis.Degenerate = true
		return analysis
	}

	used := make(map[string]bool, len(skills))
	for _, token := range tokens {
		hit := false
		for _, skill := range skills {
			if !skillMatches(skill, token) {
				continue
			}
			hit = true
			if !used[skill] {
				used[skill] = true
				analysis.Matched = append(analysis.Matched, skill)
			}
		}
		if !hit {
			analysis.Unmatched = append(analysis.Unmatched, token)
		}
	}

	// A skill counts once however many tokens it satisfies.
	ratio := float64(len(analysis.Matched)) / math.Max(1, float64(len(tokens)))
	analysis.Score = clamp(int(math.Round(100 * ratio)))
	return analysis
}

func skillMatches(skill, token string) bool {
	return skill == token || textnorm.ContainsPhrase(token, skill)
}

var conjunctions = []string{" and ", " und ", " or ", " oder ", " sowie ", " & "}

func isSeparator(r rune) bool {
	switch r {
	case ',', ';', '|', '•', '·', '▪', '◦', '‣', '●':
		return true
	}
	return false
}

// RequirementTokens splits free requirement text into normalized, deduplicated
// tokens in order of appearance.
func RequirementTokens(text string) []string {
	var raw []string
	for _, line := range strings.Split(text, "\n") {
		line = " " + textnorm.Fold(line) + " "
		for _, c := range conjunctions {
			line = strings.ReplaceAll(line, c, ",")
		}
		raw = append(raw, strings.FieldsFunc(line, isSeparator)...)
	}
	return textnorm.Skills(raw)
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
