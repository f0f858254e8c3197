package lifecycle

import (
	"context"

	"github.com/spigell/bewerbungs-agent/internal/models"
	"github.com/spigell/bewerbungs-agent/internal/workflow"
)

// Store is the persistence the engine needs. Implementations report missing
// records with apperrors.NotFound and failed guards with
// apperrors.GuardViolation.
type Store interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	GetJob(ctx context.Context, id string) (*models.Job, error)

	// CreateApplication inserts app unless the (user, job) pair already has
	// an application. admit is called with the number of applications the
	// user created in the plan period of app.CreatedAt; a non-nil result
	// aborts the insert. Counting and inserting are atomic.
	CreateApplication(ctx context.Context, app *models.Application, admit func(countThisPeriod int) error) error
	GetApplication(ctx context.Context, id string) (*models.Application, error)
	ListApplications(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, error)
	// TransitionApplication moves the application from change.Transition.From()
	// to change.Transition.To() only if it is currently in the source status,
	// and appends the transition record in the same unit of work.
	TransitionApplication(ctx context.Context, id string, change models.StatusChange) (*models.Application, error)
	// AppendNotes adds a line to the application's notes in one unit of work.
	AppendNotes(ctx context.Context, id, notes string) (*models.Application, error)

	GetDocuments(ctx context.Context, applicationID string) (*models.DocumentBundle, error)
	// SaveDocuments overwrites the bundle if editable accepts the current
	// application status.
	SaveDocuments(ctx context.Context, bundle *models.DocumentBundle, editable func(workflow.Status) bool) error

	ListTransitions(ctx context.Context, applicationID string) ([]models.TransitionRecord, error)
}
