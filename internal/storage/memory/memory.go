// Package memory is an in-process store used by tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spigell/bewerbungs-agent/internal/apperrors"
	"github.com/spigell/bewerbungs-agent/internal/models"
	"github.com/spigell/bewerbungs-agent/internal/plan"
	"github.com/spigell/bewerbungs-agent/internal/workflow"
)

// Store keeps every record in maps guarded by one mutex. Returned values are
// copies.
type Store struct {
	mu sync.Mutex

	users        map[string]models.User
	usersByEmail map[string]string
	profiles     map[string]models.Profile
	jobs         map[string]models.Job
	apps         map[string]models.Application
	appsByPair   map[string]string
	bundles      map[string]models.DocumentBundle
	transitions  map[string][]models.TransitionRecord
	signals      map[string]models.InboundSignal
	signalsByKey map[string]string
	nextRecordID uint
}

func New() *Store {
	return &Store{
		users:        map[string]models.User{},
		usersByEmail: map[string]string{},
		profiles:     map[string]models.Profile{},
		jobs:         map[string]models.Job{},
		apps:         map[string]models.Application{},
		appsByPair:   map[string]string{},
		bundles:      map[string]models.DocumentBundle{},
		transitions:  map[string][]models.TransitionRecord{},
		signals:      map[string]models.InboundSignal{},
		signalsByKey: map[string]string{},
	}
}

func (s *Store) Migrate(context.Context) error { return nil }
func (s *Store) Close() error                  { return nil }

func pairKey(userID, jobID string) string { return userID + "\x00" + jobID }

func ensureID(id *string) {
	if strings.TrimSpace(*id) == "" {
		*id = uuid.NewString()
	}
}

func stamp(created *time.Time) {
	if created.IsZero() {
		*created = time.Now().UTC()
	}
}

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(u.Email))
	if existing, ok := s.usersByEmail[email]; ok {
		return apperrors.GuardViolation(apperrors.GuardDuplicate, "create-user",
			fmt.Sprintf("user with email %s already exists (%s)", email, existing))
	}
	ensureID(&u.ID)
	u.Email = email
	if u.Tier == "" {
		u.Tier = plan.Free
	}
	stamp(&u.CreatedAt)
	u.UpdatedAt = u.CreatedAt

	s.users[u.ID] = *u
	s.usersByEmail[email] = u.ID
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperrors.NotFound("get user", fmt.Sprintf("user %s not found", id))
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	id, ok := s.usersByEmail[strings.ToLower(strings.TrimSpace(email))]
	s.mu.Unlock()
	if !ok {
		return nil, apperrors.NotFound("get user", fmt.Sprintf("user with email %s not found", email))
	}
	return s.GetUser(ctx, id)
}

func (s *Store) SetUserTier(_ context.Context, id string, tier plan.Tier) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperrors.NotFound("set tier", fmt.Sprintf("user %s not found", id))
	}
	u.Tier = tier
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return &u, nil
}

func (s *Store) UpsertProfile(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[p.UserID]; !ok {
		return apperrors.NotFound("upsert profile", fmt.Sprintf("user %s not found", p.UserID))
	}
	if existing, ok := s.profiles[p.UserID]; ok {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	}
	ensureID(&p.ID)
	stamp(&p.CreatedAt)
	p.UpdatedAt = time.Now().UTC()

	s.profiles[p.UserID] = *p
	return nil
}

func (s *Store) GetProfile(_ context.Context, userID string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, apperrors.NotFound("get profile", fmt.Sprintf("user %s has no profile", userID))
	}
	return &p, nil
}

func (s *Store) CreateJob(_ context.Context, j *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ensureID(&j.ID)
	stamp(&j.CreatedAt)
	s.jobs[j.ID] = *j
	return nil
}

func (s *Store) GetJob(_ context.Context, id string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, apperrors.NotFound("get job", fmt.Sprintf("job %s not found", id))
	}
	return &j, nil
}

func (s *Store) ListJobs(context.Context) ([]models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].CreatedAt.Before(out[k].CreatedAt)
		}
		return out[i].ID < out[k].ID
	})
	return out, nil
}

func (s *Store) EnrichJob(_ context.Context, id string, e models.Enrichment) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, apperrors.NotFound("enrich job", fmt.Sprintf("job %s not found", id))
	}
	e.Apply(&j)
	s.jobs[id] = j
	return &j, nil
}

func (s *Store) CreateApplication(_ context.Context, app *models.Application, admit func(int) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.appsByPair[pairKey(app.UserID, app.JobID)]; ok {
		return models.DuplicateApplication(existing, app.JobID)
	}

	ensureID(&app.ID)
	stamp(&app.CreatedAt)
	period := plan.PeriodStart(app.CreatedAt)

	count := 0
	for _, a := range s.apps {
		if a.UserID == app.UserID && !a.CreatedAt.Before(period) {
			count++
		}
	}
	if admit != nil {
		if err := admit(count); err != nil {
			return err
		}
	}

	if app.Status == "" {
		app.Status = workflow.Initial
	}
	if app.UpdatedAt.IsZero() {
		app.UpdatedAt = app.CreatedAt
	}
	s.apps[app.ID] = *app
	s.appsByPair[pairKey(app.UserID, app.JobID)] = app.ID
	s.appendRecord(models.TransitionRecord{
		ApplicationID: app.ID,
		Name:          workflow.CreateName,
		To:            app.Status,
		At:            app.CreatedAt,
	})
	return nil
}

func (s *Store) GetApplication(_ context.Context, id string) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.apps[id]
	if !ok {
		return nil, models.ApplicationNotFound(id)
	}
	return &a, nil
}

func (s *Store) ListApplications(_ context.Context, filter models.ApplicationFilter) ([]models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Application, 0)
	for _, a := range s.apps {
		if filter.UserID != "" && a.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.JobID != "" && a.JobID != filter.JobID {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].CreatedAt.Before(out[k].CreatedAt)
		}
		return out[i].ID < out[k].ID
	})
	return out, nil
}

func (s *Store) TransitionApplication(_ context.Context, id string, change models.StatusChange) (*models.Application, error) {
	t := change.Transition
	if !t.Valid() {
		return nil, apperrors.Invalid(t.Name(), "transition is not part of the workflow")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.apps[id]
	if !ok {
		return nil, models.ApplicationNotFound(id)
	}
	if a.Status != t.From() {
		return nil, a.WrongState(t)
	}

	change.ApplyTo(&a)
	s.apps[id] = a
	s.appendRecord(change.Record(id))
	return &a, nil
}

func (s *Store) AppendNotes(_ context.Context, id, notes string) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.apps[id]
	if !ok {
		return nil, models.ApplicationNotFound(id)
	}
	a.Notes = models.JoinNotes(a.Notes, notes)
	a.UpdatedAt = time.Now().UTC()
	s.apps[id] = a
	return &a, nil
}

func (s *Store) GetDocuments(_ context.Context, applicationID string) (*models.DocumentBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bundles[applicationID]
	if !ok {
		return nil, apperrors.NotFound("get documents", fmt.Sprintf("application %s has no documents", applicationID))
	}
	b.FormAnswers = append(b.FormAnswers[:0:0], b.FormAnswers...)
	return &b, nil
}

func (s *Store) SaveDocuments(_ context.Context, bundle *models.DocumentBundle, editable func(workflow.Status) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.apps[bundle.ApplicationID]
	if !ok {
		return models.ApplicationNotFound(bundle.ApplicationID)
	}
	if editable != nil && !editable(a.Status) {
		return models.DocumentsFrozen(&a)
	}

	stored := *bundle
	stored.FormAnswers = append(bundle.FormAnswers[:0:0], bundle.FormAnswers...)
	s.bundles[bundle.ApplicationID] = stored
	return nil
}

func (s *Store) ListTransitions(_ context.Context, applicationID string) ([]models.TransitionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.transitions[applicationID]
	out := make([]models.TransitionRecord, len(records))
	copy(out, records)
	return out, nil
}

func (s *Store) appendRecord(r models.TransitionRecord) {
	s.nextRecordID++
	r.ID = s.nextRecordID
	s.transitions[r.ApplicationID] = append(s.transitions[r.ApplicationID], r)
}

func signalKey(userID, messageID string) string { return userID + "\x00" + messageID }

func (s *Store) SaveSignal(_ context.Context, sig *models.InboundSignal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.signalsByKey[signalKey(sig.UserID, sig.MessageID)]; ok {
		*sig = s.signals[id]
		return false, nil
	}
	ensureID(&sig.ID)
	stamp(&sig.CreatedAt)
	s.signals[sig.ID] = *sig
	s.signalsByKey[signalKey(sig.UserID, sig.MessageID)] = sig.ID
	return true, nil
}

func (s *Store) GetSignal(_ context.Context, id string) (*models.InboundSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig, ok := s.signals[id]
	if !ok {
		return nil, apperrors.NotFound("get signal", fmt.Sprintf("signal %s not found", id))
	}
	return &sig, nil
}

func (s *Store) ListSignals(_ context.Context, filter models.SignalFilter) ([]models.InboundSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.InboundSignal, 0)
	for _, sig := range s.signals {
		if filter.UserID != "" && sig.UserID != filter.UserID {
			continue
		}
		if filter.Category != "" && sig.Category != filter.Category {
			continue
		}
		if filter.Processed != nil && sig.Processed != *filter.Processed {
			continue
		}
		out = append(out, sig)
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].ReceivedAt.Equal(out[k].ReceivedAt) {
			return out[i].ReceivedAt.Before(out[k].ReceivedAt)
		}
		return out[i].ID < out[k].ID
	})
	return out, nil
}

func (s *Store) UpdateSignal(_ context.Context, sig *models.InboundSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.signals[sig.ID]; !ok {
		return apperrors.NotFound("update signal", fmt.Sprintf("signal %s not found", sig.ID))
	}
	s.signals[sig.ID] = *sig
	return nil
}
