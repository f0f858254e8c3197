package lifecycle

import (
	"context"
	"math"
	"time"

	"github.com/spigell/bewerbungs-agent/internal/models"
	"github.com/spigell/bewerbungs-agent/internal/plan"
	"github.com/spigell/bewerbungs-agent/internal/workflow"
)

// Report summarizes a user's applications and plan usage.
type Report struct {
	UserID            string                  `json:"user_id" yaml:"user_id"`
	Tier              plan.Tier               `json:"tier" yaml:"tier"`
	Total             int                     `json:"total" yaml:"total"`
	ByStatus          map[workflow.Status]int `json:"by_status" yaml:"by_status"`
	Scored            int                     `json:"scored" yaml:"scored"`
	AverageFitScore   float64                 `json:"average_fit_score" yaml:"average_fit_score"`
	PeriodStart       time.Time               `json:"period_start" yaml:"period_start"`
	CreatedThisPeriod int                     `json:"created_this_period" yaml:"created_this_period"`
	Limit             int                     `json:"limit" yaml:"limit"`
	Unbounded         bool                    `json:"unbounded" yaml:"unbounded"`
	Remaining         int                     `json:"remaining" yaml:"remaining"`
}

func (e *Engine) Report(ctx context.Context, userID string) (*Report, error) {
	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	apps, err := e.store.ListApplications(ctx, models.ApplicationFilter{UserID: user.ID})
	if err != nil {
		return nil, err
	}

	period := plan.PeriodStart(e.now())
	report := &Report{
		UserID:      user.ID,
		Tier:        user.Tier,
		Total:       len(apps),
		ByStatus:    make(map[workflow.Status]int, len(workflow.Statuses())),
		PeriodStart: period,
	}
	for _, st := range workflow.Statuses() {
		report.ByStatus[st] = 0
	}

	sum := 0
	for _, app := range apps {
		report.ByStatus[app.Status]++
		if app.FitScore != nil {
			report.Scored++
			sum += *app.FitScore
		}
		if !app.CreatedAt.Before(period) {
			report.CreatedThisPeriod++
		}
	}
	if report.Scored > 0 {
		report.AverageFitScore = math.Round(float64(sum)/float64(report.Scored)*10) / 10
	}

	limit, bounded := e.guard.Limit(user.Tier)
	report.Unbounded = !bounded
	if bounded {
		report.Limit = limit
		report.Remaining = max(0, limit-report.CreatedThisPeriod)
	}
	return report, nil
}
