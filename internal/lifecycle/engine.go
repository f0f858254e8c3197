// Package lifecycle owns the application workflow. It is the only component
// that creates applications and moves them between statuses.
package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/bewerbungs-agent/internal/apperrors"
	"github.com/spigell/bewerbungs-agent/internal/documents"
	"github.com/spigell/bewerbungs-agent/internal/logger"
	"github.com/spigell/bewerbungs-agent/internal/models"
	"github.com/spigell/bewerbungs-agent/internal/plan"
	"github.com/spigell/bewerbungs-agent/internal/scoring"
	"github.com/spigell/bewerbungs-agent/internal/utils"
	"github.com/spigell/bewerbungs-agent/internal/workflow"
)

const (
	OpCreate            = workflow.CreateName
	OpGenerateDocuments = "generate-documents"
	OpAddNotes          = "add-notes"
	OpGet               = "get-application"
)

type Engine struct {
	store     Store
	guard     plan.Guard
	scorer    scoring.Scorer
	documents *documents.Generator
	logger    *zap.Logger

	now   func() time.Time
	newID func() string
}

type Option func(*Engine)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator replaces the uuid based id generator.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

func NewEngine(store Store, guard plan.Guard, scorer scoring.Scorer, docs *documents.Generator, log *zap.Logger, opts ...Option) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		store:     store,
		guard:     guard,
		scorer:    scorer,
		documents: docs,
		logger:    log,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Create scores the job against the user's profile and stores a new DRAFT
// application, subject to the plan quota and the one-application-per-job rule.
func (e *Engine) Create(ctx context.Context, userID, jobID string) (*models.Application, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(jobID) == "" {
		return nil, apperrors.Invalid(OpCreate, "user id and job id are required")
	}

	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	profile, err := e.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	analysis := e.scorer.Analyze(profile, job)
	log := logger.WithOperation(e.logger, OpCreate).With(zap.String(logger.FieldJob, job.ID))
	if analysis.Degenerate {
		log.Info("job has no requirement tokens, using baseline fit score",
			zap.Int("baseline", analysis.Score))
	}

	now := e.now().UTC()
	app := &models.Application{
		ID:        e.newID(),
		UserID:    user.ID,
		JobID:     job.ID,
		Status:    workflow.Initial,
		FitScore:  utils.Ptr(analysis.Score),
		CreatedAt: now,
		UpdatedAt: now,
	}

	admit := func(count int) error {
		if e.guard.CanCreate(user.Tier, count) {
			return nil
		}
		limit, _ := e.guard.Limit(user.Tier)
		return apperrors.GuardViolation(apperrors.GuardQuota, OpCreate,
			fmt.Sprintf("%s plan allows %d applications per month, %d already created since %s",
				user.Tier, limit, count, plan.PeriodStart(now).Format("2006-01-02")))
	}

	if err := e.store.CreateApplication(ctx, app, admit); err != nil {
		return nil, err
	}

	logger.WithApplication(log, app.ID, app.UserID, app.Status.String()).
		Info("application created", zap.Int("fit_score", analysis.Score))
	return app, nil
}

// GenerateDocuments renders and overwrites the bundle. It is allowed until
// the application is submitted.
func (e *Engine) GenerateDocuments(ctx context.Context, applicationID string) (*models.DocumentBundle, error) {
	app, err := e.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if !app.Status.Editable() {
		return nil, models.DocumentsFrozen(app)
	}

	profile, err := e.store.GetProfile(ctx, app.UserID)
	if err != nil {
		return nil, err
	}
	job, err := e.store.GetJob(ctx, app.JobID)
	if err != nil {
		return nil, err
	}

	var score int
	if app.FitScore != nil {
		score = *app.FitScore
	} else {
		score = e.scorer.Score(profile, job)
	}

	rendered, err := e.documents.Generate(profile, job, score)
	if err != nil {
		return nil, fmt.Errorf("generate documents for %s: %w", app.ID, err)
	}

	bundle := &models.DocumentBundle{
		ApplicationID:     app.ID,
		CoverLetterDE:     rendered.CoverLetterDE,
		CoverLetterEN:     rendered.CoverLetterEN,
		OptimizationNotes: rendered.OptimizationNotes,
		FormAnswers:       rendered.FormAnswers,
		Method:            documents.MethodTemplate,
		GeneratedAt:       e.now().UTC(),
	}
	if err := e.store.SaveDocuments(ctx, bundle, workflow.Status.Editable); err != nil {
		return nil, err
	}

	logger.WithApplication(e.logger, app.ID, app.UserID, app.Status.String()).
		Info("documents generated")
	return bundle, nil
}

// MarkForReview moves a DRAFT with generated documents to REVIEW_REQUIRED.
func (e *Engine) MarkForReview(ctx context.Context, applicationID, actor string) (*models.Application, error) {
	return e.apply(ctx, applicationID, workflow.MarkForReview, actor, func(app *models.Application, _ *models.StatusChange) error {
		_, err := e.documentsFor(ctx, app, workflow.MarkForReview, false)
		return err
	})
}

// Approval is the explicit human action that unlocks submission readiness.
type Approval struct {
	ApplicationID string
	// UserID, when set, must own the application. Applications of other
	// users are reported as not found.
	UserID    string
	Actor     string
	Confirmed bool
}

// Approve records the human approval of exactly one application.
func (e *Engine) Approve(ctx context.Context, approval Approval) (*models.Application, error) {
	op := workflow.Approve.Name()
	id := strings.TrimSpace(approval.ApplicationID)
	if id == "" {
		return nil, apperrors.Invalid(op, "an explicit application id is required")
	}
	actor := strings.TrimSpace(approval.Actor)
	if actor == "" {
		return nil, apperrors.Invalid(op, "the approving person must be identified")
	}
	if !approval.Confirmed {
		return nil, apperrors.GuardViolation(apperrors.GuardUnconfirmed, op,
			fmt.Sprintf("approval of application %s was not confirmed", id))
	}

	if owner := strings.TrimSpace(approval.UserID); owner != "" {
		app, err := e.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if app.UserID != owner {
			return nil, models.ApplicationNotFound(id)
		}
	}

	return e.apply(ctx, id, workflow.Approve, actor, func(_ *models.Application, change *models.StatusChange) error {
		at := change.At
		change.ApprovedAt = &at
		change.ApprovedBy = actor
		return nil
	})
}

// MarkReady moves an approved application with a non-empty bundle to
// READY_TO_SUBMIT.
func (e *Engine) MarkReady(ctx context.Context, applicationID, actor string) (*models.Application, error) {
	return e.apply(ctx, applicationID, workflow.MarkReady, actor, func(app *models.Application, _ *models.StatusChange) error {
		_, err := e.documentsFor(ctx, app, workflow.MarkReady, true)
		return err
	})
}

// MarkSubmitted records that the user submitted the application themselves.
func (e *Engine) MarkSubmitted(ctx context.Context, applicationID, actor string) (*models.Application, error) {
	return e.apply(ctx, applicationID, workflow.MarkSubmitted, actor, func(_ *models.Application, change *models.StatusChange) error {
		at := change.At
		change.SubmittedAt = &at
		return nil
	})
}

// RecordOutcome stores the employer's answer to a submitted application.
func (e *Engine) RecordOutcome(ctx context.Context, applicationID string, outcome workflow.Outcome, actor string) (*models.Application, error) {
	t, err := outcome.Transition()
	if err != nil {
		return nil, apperrors.Invalid("record-outcome", err.Error())
	}
	return e.apply(ctx, applicationID, t, actor, nil)
}

// AddNotes appends free text to the application notes.
func (e *Engine) AddNotes(ctx context.Context, applicationID, notes string) (*models.Application, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, apperrors.Invalid(OpAddNotes, "notes must not be empty")
	}
	if strings.TrimSpace(applicationID) == "" {
		return nil, apperrors.Invalid(OpAddNotes, "application id is required")
	}
	return e.store.AppendNotes(ctx, strings.TrimSpace(applicationID), notes)
}

func (e *Engine) Get(ctx context.Context, applicationID string) (*models.Application, error) {
	if strings.TrimSpace(applicationID) == "" {
		return nil, apperrors.Invalid(OpGet, "application id is required")
	}
	return e.store.GetApplication(ctx, strings.TrimSpace(applicationID))
}

func (e *Engine) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, error) {
	return e.store.ListApplications(ctx, filter)
}

// ReviewQueue lists the user's applications awaiting approval.
func (e *Engine) ReviewQueue(ctx context.Context, userID string) ([]models.Application, error) {
	return e.store.ListApplications(ctx, models.ApplicationFilter{UserID: userID, Status: workflow.ReviewRequired})
}

func (e *Engine) Documents(ctx context.Context, applicationID string) (*models.DocumentBundle, error) {
	return e.store.GetDocuments(ctx, applicationID)
}

// History returns the audit trail of the application, oldest first.
func (e *Engine) History(ctx context.Context, applicationID string) ([]models.TransitionRecord, error) {
	if _, err := e.Get(ctx, applicationID); err != nil {
		return nil, err
	}
	return e.store.ListTransitions(ctx, applicationID)
}

type guardFunc func(app *models.Application, change *models.StatusChange) error

// apply runs the guard for t and then performs the compare-and-swap in the
// store. The early status check only improves the error; the store re-checks.
func (e *Engine) apply(ctx context.Context, applicationID string, t workflow.Transition, actor string, guard guardFunc) (*models.Application, error) {
	if !t.Valid() {
		return nil, apperrors.Invalid(t.Name(), "transition is not part of the workflow")
	}

	app, err := e.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != t.From() {
		return nil, app.WrongState(t)
	}

	change := models.StatusChange{
		Transition: t,
		Actor:      strings.TrimSpace(actor),
		At:         e.now().UTC(),
	}
	if guard != nil {
		if err := guard(app, &change); err != nil {
			return nil, err
		}
	}

	updated, err := e.store.TransitionApplication(ctx, app.ID, change)
	if err != nil {
		return nil, err
	}

	logger.WithApplication(e.logger, updated.ID, updated.UserID, updated.Status.String()).
		Info("application status changed",
			zap.String("transition", t.Name()),
			zap.String("from", t.From().String()),
			zap.String("actor", change.Actor),
		)
	return updated, nil
}

func (e *Engine) documentsFor(ctx context.Context, app *models.Application, t workflow.Transition, requireContent bool) (*models.DocumentBundle, error) {
	bundle, err := e.store.GetDocuments(ctx, app.ID)
	if apperrors.IsNotFound(err) {
		return nil, apperrors.GuardViolation(apperrors.GuardMissingDocuments, t.Name(),
			fmt.Sprintf("application %s has no generated documents", app.ID))
	}
	if err != nil {
		return nil, err
	}
	if requireContent && bundle.Empty() {
		return nil, apperrors.GuardViolation(apperrors.GuardMissingDocuments, t.Name(),
			fmt.Sprintf("document bundle of application %s is empty", app.ID))
	}
	return bundle, nil
}
