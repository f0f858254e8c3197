package signals

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/bewerbungs-agent/internal/apperrors"
	"github.com/spigell/bewerbungs-agent/internal/classify"
	"github.com/spigell/bewerbungs-agent/internal/filtering"
	"github.com/spigell/bewerbungs-agent/internal/logger"
	"github.com/spigell/bewerbungs-agent/internal/models"
	"github.com/spigell/bewerbungs-agent/internal/workflow"
)

// Actor is recorded on transitions performed by the preparation pipeline.
const Actor = "bewerbungs-agent"

// Lifecycle is the part of the lifecycle engine the pipeline drives. It never
// approves.
type Lifecycle interface {
	Create(ctx context.Context, userID, jobID string) (*models.Application, error)
	GenerateDocuments(ctx context.Context, applicationID string) (*models.DocumentBundle, error)
	MarkForReview(ctx context.Context, applicationID, actor string) (*models.Application, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, error)
}

type Prepared struct {
	ApplicationID string `json:"application_id"`
	JobID         string `json:"job_id"`
	SignalID      string `json:"signal_id"`
	Company       string `json:"company"`
	Role          string `json:"role"`
	FitScore      int    `json:"fit_score"`
}

type PrepareResult struct {
	Prepared []Prepared `json:"prepared"`
	Skipped  int        `json:"skipped"`
	// Filtered maps filter names to the number of alerts they dropped.
	Filtered map[string]int `json:"filtered,omitempty"`
	// Stopped holds the guard message that ended the run early, if any.
	Stopped string `json:"stopped,omitempty"`
}

type ProfileGetter interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
}

type Preparer struct {
	store     Store
	lifecycle Lifecycle
	logger    *zap.Logger

	filters  *filtering.Pipeline
	profiles ProfileGetter
}

type PreparerOption func(*Preparer)

// WithFilters drops alerts rejected by pipeline before any job or
// application is created. Dropped alerts are marked processed.
func WithFilters(pipeline *filtering.Pipeline, profiles ProfileGetter) PreparerOption {
	return func(p *Preparer) {
		p.filters = pipeline
		p.profiles = profiles
	}
}

func NewPreparer(store Store, lc Lifecycle, log *zap.Logger, opts ...PreparerOption) *Preparer {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Preparer{store: store, lifecycle: lc, logger: log}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prepare turns up to limit unprocessed job alerts into applications in
// REVIEW_REQUIRED. A quota violation ends the run without error; the
// remaining alerts stay unprocessed for the next period.
func (p *Preparer) Prepare(ctx context.Context, userID string, limit int) (*PrepareResult, error) {
	unprocessed := false
	alerts, err := p.store.ListSignals(ctx, models.SignalFilter{
		UserID:    userID,
		Category:  classify.JobAlert,
		Processed: &unprocessed,
	})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(alerts) > limit {
		alerts = alerts[:limit]
	}

	var profile *models.Profile
	if p.filters != nil && len(alerts) > 0 {
		if profile, err = p.profiles.GetProfile(ctx, userID); err != nil {
			return nil, err
		}
	}

	result := &PrepareResult{Prepared: []Prepared{}}
	for i := range alerts {
		sig := &alerts[i]
		log := logger.WithFields(p.logger, zap.String(logger.FieldSignal, sig.ID))

		if p.filters != nil && sig.JobID == nil {
			allowed, step, err := p.filters.Allow(ctx, profile, ExtractJob(sig))
			if err != nil {
				return result, fmt.Errorf("filter signal %s: %w", sig.ID, err)
			}
			if !allowed {
				log.Info("job alert filtered out", zap.String("filter", step))
				if result.Filtered == nil {
					result.Filtered = make(map[string]int)
				}
				result.Filtered[step]++
				sig.Processed = true
				if err := p.store.UpdateSignal(ctx, sig); err != nil {
					return result, err
				}
				continue
			}
		}

		prepared, err := p.prepareOne(ctx, userID, sig)
		switch {
		case apperrors.IsGuard(err, apperrors.GuardQuota):
			log.Warn("plan limit reached, stopping", zap.Error(err))
			result.Stopped = err.Error()
			return result, nil
		case apperrors.IsGuard(err, apperrors.GuardDuplicate):
			log.Info("job already has an application", zap.Error(err))
			result.Skipped++
			sig.Processed = true
			if err := p.store.UpdateSignal(ctx, sig); err != nil {
				return result, err
			}
			continue
		case err != nil:
			return result, fmt.Errorf("prepare signal %s: %w", sig.ID, err)
		}

		result.Prepared = append(result.Prepared, *prepared)
	}
	return result, nil
}

func (p *Preparer) prepareOne(ctx context.Context, userID string, sig *models.InboundSignal) (*Prepared, error) {
	job := ExtractJob(sig)
	if sig.JobID != nil {
		job.ID = *sig.JobID
	} else {
		if err := p.store.CreateJob(ctx, job); err != nil {
			return nil, err
		}
		sig.JobID = &job.ID
		if err := p.store.UpdateSignal(ctx, sig); err != nil {
			return nil, err
		}
	}

	app, err := p.lifecycle.Create(ctx, userID, job.ID)
	if apperrors.IsGuard(err, apperrors.GuardDuplicate) {
		app, err = p.resume(ctx, userID, sig, err)
	}
	if err != nil {
		return nil, err
	}
	if app.Status == workflow.Draft {
		if _, err := p.lifecycle.GenerateDocuments(ctx, app.ID); err != nil {
			return nil, err
		}
		if app, err = p.lifecycle.MarkForReview(ctx, app.ID, Actor); err != nil {
			return nil, err
		}
	}

	sig.ApplicationID = &app.ID
	sig.Processed = true
	if err := p.store.UpdateSignal(ctx, sig); err != nil {
		return nil, err
	}

	out := &Prepared{
		ApplicationID: app.ID,
		JobID:         job.ID,
		SignalID:      sig.ID,
		Company:       job.Company,
		Role:          job.Role,
	}
	if app.FitScore != nil {
		out.FitScore = *app.FitScore
	}
	return out, nil
}

// resume picks up the application an interrupted run created for the
// signal's job. An application already past review is only linked to the
// signal and dup is returned.
func (p *Preparer) resume(ctx context.Context, userID string, sig *models.InboundSignal, dup error) (*models.Application, error) {
	apps, err := p.lifecycle.List(ctx, models.ApplicationFilter{UserID: userID, JobID: *sig.JobID})
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return nil, dup
	}

	app := apps[0]
	sig.ApplicationID = &app.ID
	switch app.Status {
	case workflow.Draft, workflow.ReviewRequired:
		logger.WithFields(p.logger, zap.String(logger.FieldSignal, sig.ID)).Info("resuming interrupted preparation",
			zap.String(logger.FieldApplication, app.ID),
			zap.String(logger.FieldStatus, string(app.Status)),
		)
		return &app, nil
	default:
		return nil, dup
	}
}
