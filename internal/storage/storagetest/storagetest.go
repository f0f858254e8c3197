// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/bewerbungs-agent/internal/apperrors"
	"github.com/spigell/bewerbungs-agent/internal/classify"
	"github.com/spigell/bewerbungs-agent/internal/models"
	"github.com/spigell/bewerbungs-agent/internal/plan"
	"github.com/spigell/bewerbungs-agent/internal/storage"
	"github.com/spigell/bewerbungs-agent/internal/workflow"
)

// Run exercises repo. Records use random keys so a shared database works.
func Run(t *testing.T, repo storage.Repository) {
	t.Helper()

	t.Run("users", func(t *testing.T) { testUsers(t, repo) })
	t.Run("profiles", func(t *testing.T) { testProfiles(t, repo) })
	t.Run("jobs", func(t *testing.T) { testJobs(t, repo) })
	t.Run("create application", func(t *testing.T) { testCreateApplication(t, repo) })
	t.Run("transition", func(t *testing.T) { testTransition(t, repo) })
	t.Run("concurrent transition", func(t *testing.T) { testConcurrentTransition(t, repo) })
	t.Run("concurrent notes", func(t *testing.T) { testConcurrentNotes(t, repo) })
	t.Run("documents", func(t *testing.T) { testDocuments(t, repo) })
	t.Run("signals", func(t *testing.T) { testSignals(t, repo) })
}

func newUser(t *testing.T, repo storage.Repository, tier plan.Tier) *models.User {
	t.Helper()
	u := &models.User{Email: fmt.Sprintf("%s@example.org", uuid.NewString()), Tier: tier}
	require.NoError(t, repo.CreateUser(context.Background(), u))
	return u
}

func newJob(t *testing.T, repo storage.Repository) *models.Job {
	t.Helper()
	j := &models.Job{Source: models.SourceManual, Company: "Acme", Role: "Engineer", Requirements: "Go, SQL"}
	require.NoError(t, repo.CreateJob(context.Background(), j))
	return j
}

func newApplication(t *testing.T, repo storage.Repository) *models.Application {
	t.Helper()
	u := newUser(t, repo, plan.Agency)
	j := newJob(t, repo)
	now := time.Now().UTC().Truncate(time.Millisecond)
	app := &models.Application{UserID: u.ID, JobID: j.ID, Status: workflow.Initial, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.CreateApplication(context.Background(), app, nil))
	return app
}

func change(t workflow.Transition) models.StatusChange {
	return models.StatusChange{Transition: t, Actor: "tester", At: time.Now().UTC().Truncate(time.Millisecond)}
}

func testUsers(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	u := newUser(t, repo, "")
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, plan.Free, u.Tier)

	dup := &models.User{Email: u.Email}
	err := repo.CreateUser(ctx, dup)
	assert.True(t, apperrors.IsGuard(err, apperrors.GuardDuplicate), "got %v", err)

	byEmail, err := repo.GetUserByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	upgraded, err := repo.SetUserTier(ctx, u.ID, plan.Pro)
	require.NoError(t, err)
	assert.Equal(t, plan.Pro, upgraded.Tier)

	_, err = repo.GetUser(ctx, uuid.NewString())
	assert.True(t, apperrors.IsNotFound(err), "got %v", err)
}

func testProfiles(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	u := newUser(t, repo, plan.Free)

	p := &models.Profile{UserID: u.ID, FullName: "Jana Weber"}
	p.SetSkills([]string{"Go", "go", "SQL"})
	require.NoError(t, repo.UpsertProfile(ctx, p))
	firstID := p.ID

	again := &models.Profile{UserID: u.ID, FullName: "Jana Weber-Schulz", Locales: []models.Locale{models.LocaleDE}}
	again.SetSkills([]string{"Rust"})
	require.NoError(t, repo.UpsertProfile(ctx, again))
	assert.Equal(t, firstID, again.ID)

	stored, err := repo.GetProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jana Weber-Schulz", stored.FullName)
	assert.Equal(t, []string{"rust"}, []string(stored.Skills))

	err = repo.UpsertProfile(ctx, &models.Profile{UserID: uuid.NewString()})
	assert.True(t, apperrors.IsNotFound(err), "got %v", err)
}

func testJobs(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	j := newJob(t, repo)

	enriched, err := repo.EnrichJob(ctx, j.ID, models.Enrichment{Location: "Berlin"})
	require.NoError(t, err)
	assert.Equal(t, "Berlin", enriched.Location)
	assert.Equal(t, "Acme", enriched.Company)

	_, err = repo.GetJob(ctx, uuid.NewString())
	assert.True(t, apperrors.IsNotFound(err), "got %v", err)
}

func testCreateApplication(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	u := newUser(t, repo, plan.Free)
	j1, j2, j3 := newJob(t, repo), newJob(t, repo), newJob(t, repo)

	lastMonth := plan.PeriodStart(time.Now()).Add(-time.Hour)
	old := &models.Application{UserID: u.ID, JobID: j1.ID, CreatedAt: lastMonth, UpdatedAt: lastMonth}
	require.NoError(t, repo.CreateApplication(ctx, old, nil))
	assert.Equal(t, workflow.Draft, old.Status)

	var seen int
	current := &models.Application{UserID: u.ID, JobID: j2.ID, CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.CreateApplication(ctx, current, func(count int) error {
		seen = count
		return nil
	}))
	assert.Equal(t, 0, seen, "applications of earlier periods must not count")

	denied := errors.New("denied")
	err := repo.CreateApplication(ctx, &models.Application{UserID: u.ID, JobID: j3.ID, CreatedAt: time.Now().UTC()},
		func(int) error { return denied })
	assert.ErrorIs(t, err, denied)

	apps, err := repo.ListApplications(ctx, models.ApplicationFilter{UserID: u.ID})
	require.NoError(t, err)
	assert.Len(t, apps, 2)

	err = repo.CreateApplication(ctx, &models.Application{UserID: u.ID, JobID: j2.ID, CreatedAt: time.Now().UTC()}, nil)
	assert.True(t, apperrors.IsGuard(err, apperrors.GuardDuplicate), "got %v", err)

	history, err := repo.ListTransitions(ctx, current.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, workflow.CreateName, history[0].Name)
}

func testTransition(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	app := newApplication(t, repo)

	_, err := repo.TransitionApplication(ctx, app.ID, change(workflow.Approve))
	assert.True(t, apperrors.IsGuard(err, apperrors.GuardWrongState), "got %v", err)

	updated, err := repo.TransitionApplication(ctx, app.ID, change(workflow.MarkForReview))
	require.NoError(t, err)
	assert.Equal(t, workflow.ReviewRequired, updated.Status)

	approve := change(workflow.Approve)
	at := approve.At
	approve.ApprovedAt = &at
	approve.ApprovedBy = "tester"
	updated, err = repo.TransitionApplication(ctx, app.ID, approve)
	require.NoError(t, err)
	assert.Equal(t, workflow.UserApproved, updated.Status)
	assert.Equal(t, "tester", updated.ApprovedBy)
	require.NotNil(t, updated.ApprovedAt)

	filtered, err := repo.ListApplications(ctx, models.ApplicationFilter{UserID: app.UserID, Status: workflow.UserApproved})
	require.NoError(t, err)
	assert.Len(t, filtered, 1)

	history, err := repo.ListTransitions(ctx, app.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, workflow.ReviewRequired, history[1].To)
	assert.Equal(t, workflow.UserApproved, history[2].To)

	_, err = repo.TransitionApplication(ctx, uuid.NewString(), change(workflow.MarkForReview))
	assert.True(t, apperrors.IsNotFound(err), "got %v", err)

	_, err = repo.TransitionApplication(ctx, app.ID, models.StatusChange{})
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalid), "got %v", err)

	notes, err := repo.AppendNotes(ctx, app.ID, "call back")
	require.NoError(t, err)
	assert.Equal(t, "call back", notes.Notes)
	notes, err = repo.AppendNotes(ctx, app.ID, "  ask about remote  ")
	require.NoError(t, err)
	assert.Equal(t, "call back\nask about remote", notes.Notes)

	_, err = repo.AppendNotes(ctx, uuid.NewString(), "lost")
	assert.True(t, apperrors.IsNotFound(err), "got %v", err)
}

func testConcurrentTransition(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	app := newApplication(t, repo)

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.TransitionApplication(ctx, app.ID, change(workflow.MarkForReview))
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	history, err := repo.ListTransitions(ctx, app.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func testConcurrentNotes(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	app := newApplication(t, repo)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := repo.AppendNotes(ctx, app.ID, fmt.Sprintf("note %d", n))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stored, err := repo.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Len(t, strings.Split(stored.Notes, "\n"), workers)
}

func testDocuments(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	app := newApplication(t, repo)

	_, err := repo.GetDocuments(ctx, app.ID)
	assert.True(t, apperrors.IsNotFound(err), "got %v", err)

	bundle := &models.DocumentBundle{
		ApplicationID: app.ID,
		CoverLetterEN: "v1",
		FormAnswers:   []models.FormAnswer{{Field: "full_name", Value: "Jana"}},
		Method:        "template",
		GeneratedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, repo.SaveDocuments(ctx, bundle, workflow.Status.Editable))

	bundle.CoverLetterEN = "v2"
	require.NoError(t, repo.SaveDocuments(ctx, bundle, workflow.Status.Editable))

	stored, err := repo.GetDocuments(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", stored.CoverLetterEN)
	assert.Equal(t, "Jana", stored.FormAnswers[0].Value)

	err = repo.SaveDocuments(ctx, bundle, func(workflow.Status) bool { return false })
	assert.True(t, apperrors.IsGuard(err, apperrors.GuardWrongState), "got %v", err)
}

func testSignals(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	u := newUser(t, repo, plan.Free)
	msgID := "<" + uuid.NewString() + "@mail.example.org>"

	sig := &models.InboundSignal{UserID: u.ID, MessageID: msgID, Subject: "Job alert", ReceivedAt: time.Now().UTC().Truncate(time.Second)}
	created, err := repo.SaveSignal(ctx, sig)
	require.NoError(t, err)
	assert.True(t, created)

	again := &models.InboundSignal{UserID: u.ID, MessageID: msgID, Subject: "changed"}
	created, err = repo.SaveSignal(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, sig.ID, again.ID)
	assert.Equal(t, "Job alert", again.Subject)

	sig.Category = classify.JobAlert
	sig.Confidence = 0.5
	sig.Method = classify.MethodKeywords
	sig.Processed = true
	require.NoError(t, repo.UpdateSignal(ctx, sig))

	processed := true
	list, err := repo.ListSignals(ctx, models.SignalFilter{UserID: u.ID, Processed: &processed})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, classify.JobAlert, list[0].Category)

	err = repo.UpdateSignal(ctx, &models.InboundSignal{ID: uuid.NewString()})
	assert.True(t, apperrors.IsNotFound(err), "got %v", err)
}
