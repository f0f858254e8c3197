// Package filtering drops job alerts the user does not want applications for.
package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/bewerbungs-agent/internal/models"
	"github.com/spigell/bewerbungs-agent/internal/scoring"
)

// Filter is a single step of the pipeline.
type Filter interface {
	Name() string
	IsEnabled() bool
	Apply(ctx context.Context, deps Deps, jobs []*models.Job) ([]*models.Job, Step, error)
}

// Deps aggregates what the steps may need.
type Deps struct {
	Logger  *zap.Logger
	Profile *models.Profile
	Scorer  scoring.Scorer
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Config selects and parameterizes the steps. Zero values disable a step.
type Config struct {
	ExcludeCompanies []string `mapstructure:"exclude-companies"`
	ExcludeKeywords  []string `mapstructure:"exclude-keywords"`
	MinimumFitScore  int      `mapstructure:"minimum-fit-score"`
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string            `json:"name"`
	Enabled bool              `json:"enabled"`
	Details map[string]string `json:"details,omitempty"`
}

type statusProvider interface {
	Status() Status
}

// Pipeline runs the configured steps in order.
type Pipeline struct {
	steps  []Filter
	scorer scoring.Scorer
	logger *zap.Logger
}

func New(cfg Config, scorer scoring.Scorer, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		steps: []Filter{
			NewExcludedCompanies(cfg.ExcludeCompanies),
			NewExcludedKeywords(cfg.ExcludeKeywords),
			NewMinimumFitScore(cfg.MinimumFitScore),
		},
		scorer: scorer,
		logger: log,
	}
}

// Run applies every enabled step and returns the jobs left.
func (p *Pipeline) Run(ctx context.Context, profile *models.Profile, jobs []*models.Job) ([]*models.Job, error) {
	deps := Deps{Logger: p.logger, Profile: profile, Scorer: p.scorer}
	for _, step := range p.steps {
		if !step.IsEnabled() {
			continue
		}

		next, info, err := step.Apply(ctx, deps, jobs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if info.Dropped > 0 {
			p.logger.Info("filter step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}
		jobs = next
	}
	return jobs, nil
}

// Allow runs the pipeline for one job and names the step that dropped it.
func (p *Pipeline) Allow(ctx context.Context, profile *models.Profile, job *models.Job) (bool, string, error) {
	deps := Deps{Logger: p.logger, Profile: profile, Scorer: p.scorer}
	jobs := []*models.Job{job}
	for _, step := range p.steps {
		if !step.IsEnabled() {
			continue
		}
		next, _, err := step.Apply(ctx, deps, jobs)
		if err != nil {
			return false, "", fmt.Errorf("%s: %w", step.Name(), err)
		}
		if len(next) == 0 {
			return false, step.Name(), nil
		}
		jobs = next
	}
	return true, "", nil
}

// Describe returns status entries for the steps.
func (p *Pipeline) Describe() []Status {
	statuses := make([]Status, 0, len(p.steps))
	for _, step := range p.steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}
		statuses = append(statuses, Status{Name: step.Name(), Enabled: step.IsEnabled()})
	}
	return statuses
}

func keep(jobs []*models.Job, drop func(*models.Job) bool) ([]*models.Job, Step) {
	left := make([]*models.Job, 0, len(jobs))
	for _, j := range jobs {
		if !drop(j) {
			left = append(left, j)
		}
	}
	return left, Step{Initial: len(jobs), Dropped: len(jobs) - len(left), Left: len(left)}
}
