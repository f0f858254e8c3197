package filtering

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/bewerbungs-agent/internal/models"
	"github.com/spigell/bewerbungs-agent/internal/textnorm"
)

type companiesFilter struct {
	companies []string
}

// NewExcludedCompanies drops jobs whose company contains one of the names.
func NewExcludedCompanies(companies []string) Filter {
	return &companiesFilter{companies: foldAll(companies)}
}

func (f *companiesFilter) Name() string { return "excluded_companies" }

func (f *companiesFilter) IsEnabled() bool { return len(f.companies) > 0 }

func (f *companiesFilter) Apply(_ context.Context, deps Deps, jobs []*models.Job) ([]*models.Job, Step, error) {
	left, step := keep(jobs, func(j *models.Job) bool {
		company := textnorm.Fold(j.Company)
		for _, c := range f.companies {
			if textnorm.ContainsPhrase(company, c) {
				if deps.Logger != nil {
					deps.Logger.Debug("excluding job by company", zap.String("company", j.Company), zap.String("role", j.Role))
				}
				return true
			}
		}
		return false
	})
	return left, step, nil
}

func (f *companiesFilter) Status() Status {
	details := map[string]string{}
	if len(f.companies) > 0 {
		details["companies"] = strings.Join(f.companies, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Details: details}
}

type keywordsFilter struct {
	keywords []string
}

// NewExcludedKeywords drops jobs whose role mentions one of the keywords,
// for example "Praktikum" or "Werkstudent".
func NewExcludedKeywords(keywords []string) Filter {
	return &keywordsFilter{keywords: foldAll(keywords)}
}

func (f *keywordsFilter) Name() string { return "excluded_keywords" }

func (f *keywordsFilter) IsEnabled() bool { return len(f.keywords) > 0 }

func (f *keywordsFilter) Apply(_ context.Context, deps Deps, jobs []*models.Job) ([]*models.Job, Step, error) {
	left, step := keep(jobs, func(j *models.Job) bool {
		role := textnorm.Fold(j.Role)
		for _, k := range f.keywords {
			if strings.Contains(role, k) {
				if deps.Logger != nil {
					deps.Logger.Debug("excluding job by keyword", zap.String("keyword", k), zap.String("role", j.Role))
				}
				return true
			}
		}
		return false
	})
	return left, step, nil
}

func (f *keywordsFilter) Status() Status {
	details := map[string]string{}
	if len(f.keywords) > 0 {
		details["keywords"] = strings.Join(f.keywords, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Details: details}
}

type fitScoreFilter struct {
	minimum int
}

// NewMinimumFitScore drops jobs scoring below minimum against the profile.
func NewMinimumFitScore(minimum int) Filter {
	return &fitScoreFilter{minimum: minimum}
}

func (f *fitScoreFilter) Name() string { return "minimum_fit_score" }

func (f *fitScoreFilter) IsEnabled() bool { return f.minimum > 0 }

func (f *fitScoreFilter) Apply(_ context.Context, deps Deps, jobs []*models.Job) ([]*models.Job, Step, error) {
	if deps.Profile == nil {
		return nil, Step{}, errors.New("profile is required to score jobs")
	}

	left, step := keep(jobs, func(j *models.Job) bool {
		score := deps.Scorer.Score(deps.Profile, j)
		if score < f.minimum {
			if deps.Logger != nil {
				deps.Logger.Debug("excluding job by fit score",
					zap.String("role", j.Role),
					zap.Int("score", score),
					zap.Int("minimum", f.minimum),
				)
			}
			return true
		}
		return false
	})
	return left, step, nil
}

func (f *fitScoreFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Details: map[string]string{"minimum": strconv.Itoa(f.minimum)},
	}
}

func foldAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if folded := textnorm.Fold(v); folded != "" {
			out = append(out, folded)
		}
	}
	return out
}
