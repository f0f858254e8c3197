// Package storage selects the persistence backend.
package storage

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/bewerbungs-agent/internal/lifecycle"
	"github.com/spigell/bewerbungs-agent/internal/models"
	"github.com/spigell/bewerbungs-agent/internal/plan"
	"github.com/spigell/bewerbungs-agent/internal/secrets"
	"github.com/spigell/bewerbungs-agent/internal/signals"
	"github.com/spigell/bewerbungs-agent/internal/storage/gormstore"
	"github.com/spigell/bewerbungs-agent/internal/storage/memory"
)

const DriverMemory = "memory"

// Repository is everything the commands need from a backend.
type Repository interface {
	lifecycle.Store
	signals.Store

	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SetUserTier(ctx context.Context, id string, tier plan.Tier) (*models.User, error)
	UpsertProfile(ctx context.Context, p *models.Profile) error
	ListJobs(ctx context.Context) ([]models.Job, error)
	EnrichJob(ctx context.Context, id string, e models.Enrichment) (*models.Job, error)

	Migrate(ctx context.Context) error
	Close() error
}

var (
	_ Repository = (*memory.Store)(nil)
	_ Repository = (*gormstore.Store)(nil)
)

// Open returns the backend named by cfg.Driver. The DSN may come from a file.
func Open(cfg gormstore.Config, log *zap.Logger) (Repository, error) {
	if strings.EqualFold(strings.TrimSpace(cfg.Driver), DriverMemory) {
		return memory.New(), nil
	}

	dsn, err := secrets.Load(secrets.Source{
		Name:  "database dsn",
		Value: cfg.DSN,
		File:  cfg.DSNFile,
		Env:   "BEWERBUNGS_DATABASE_DSN",
	})
	if err != nil {
		return nil, fmt.Errorf("resolve database dsn: %w", err)
	}
	cfg.DSN = dsn

	return gormstore.Open(cfg, log)
}
