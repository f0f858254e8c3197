// Package gormstore persists the domain in PostgreSQL or MySQL through gorm.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/spigell/bewerbungs-agent/internal/apperrors"
	"github.com/spigell/bewerbungs-agent/internal/models"
	"github.com/spigell/bewerbungs-agent/internal/plan"
	"github.com/spigell/bewerbungs-agent/internal/workflow"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

type Config struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	DSNFile         string        `mapstructure:"dsn-file"`
	MaxOpenConns    int           `mapstructure:"max-open-conns"`
	MaxIdleConns    int           `mapstructure:"max-idle-conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn-max-lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn-max-idle-time"`
}

func (c Config) withDefaults() Config {
	if c.Driver == "" {
		c.Driver = DriverPostgres
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 20
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 10
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 30 * time.Minute
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	return c
}

type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

func dialector(cfg Config) (gorm.Dialector, error) {
	switch strings.ToLower(cfg.Driver) {
	case DriverPostgres, "postgresql", "pg":
		return postgres.Open(cfg.DSN), nil
	case DriverMySQL:
		return mysql.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q (expected postgres or mysql)", cfg.Driver)
	}
}

// Open connects and configures the pool. The DSN must already be resolved.
func Open(cfg Config, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("database dsn is not configured")
	}

	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(d, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	log.Info("database connected", zap.String("driver", cfg.Driver))
	return New(db, log), nil
}

// New wraps an existing gorm handle.
func New(db *gorm.DB, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, logger: log}
}

func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	s.logger.Info("database schema migrated")
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error, op, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(op, msg)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func newID(id *string) {
	if strings.TrimSpace(*id) == "" {
		*id = uuid.NewString()
	}
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	newID(&u.ID)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Tier == "" {
		u.Tier = plan.Free
	}
	err := s.db.WithContext(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.GuardViolation(apperrors.GuardDuplicate, "create-user",
			fmt.Sprintf("user with email %s already exists", u.Email))
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "get user", fmt.Sprintf("user %s not found", id))
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "email = ?", email).Error; err != nil {
		return nil, notFound(err, "get user", fmt.Sprintf("user with email %s not found", email))
	}
	return &u, nil
}

func (s *Store) SetUserTier(ctx context.Context, id string, tier plan.Tier) (*models.User, error) {
	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]any{"tier": tier, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return nil, fmt.Errorf("set tier: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.NotFound("set tier", fmt.Sprintf("user %s not found", id))
	}
	return s.GetUser(ctx, id)
}

func (s *Store) UpsertProfile(ctx context.Context, p *models.Profile) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Select("id").First(&user, "id = ?", p.UserID).Error; err != nil {
			return notFound(err, "upsert profile", fmt.Sprintf("user %s not found", p.UserID))
		}

		var existing models.Profile
		err := tx.Select("id", "created_at").First(&existing, "user_id = ?", p.UserID).Error
		switch {
		case err == nil:
			p.ID = existing.ID
			p.CreatedAt = existing.CreatedAt
		case errors.Is(err, gorm.ErrRecordNotFound):
			newID(&p.ID)
		default:
			return fmt.Errorf("upsert profile: %w", err)
		}

		if err := tx.Save(p).Error; err != nil {
			return fmt.Errorf("upsert profile: %w", err)
		}
		return nil
	})
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	if err := s.db.WithContext(ctx).First(&p, "user_id = ?", userID).Error; err != nil {
		return nil, notFound(err, "get profile", fmt.Sprintf("user %s has no profile", userID))
	}
	return &p, nil
}

func (s *Store) CreateJob(ctx context.Context, j *models.Job) error {
	newID(&j.ID)
	if err := s.db.WithContext(ctx).Create(j).Error; err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var j models.Job
	if err := s.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "get job", fmt.Sprintf("job %s not found", id))
	}
	return &j, nil
}

func (s *Store) ListJobs(ctx context.Context) ([]models.Job, error) {
	var jobs []models.Job
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

func (s *Store) EnrichJob(ctx context.Context, id string, e models.Enrichment) (*models.Job, error) {
	var job models.Job
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&job, "id = ?", id).Error; err != nil {
			return notFound(err, "enrich job", fmt.Sprintf("job %s not found", id))
		}
		e.Apply(&job)
		return tx.Model(&job).Select("location", "compensation", "url").Updates(&job).Error
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateApplication locks the user row so that concurrent creations for the
// same user count and insert one after another.
func (s *Store) CreateApplication(ctx context.Context, app *models.Application, admit func(int) error) error {
	newID(&app.ID)
	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now().UTC()
	}
	if app.UpdatedAt.IsZero() {
		app.UpdatedAt = app.CreatedAt
	}
	if app.Status == "" {
		app.Status = workflow.Initial
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").
			First(&user, "id = ?", app.UserID).Error; err != nil {
			return notFound(err, workflow.CreateName, fmt.Sprintf("user %s not found", app.UserID))
		}

		var existing models.Application
		err := tx.Select("id").Where("user_id = ? AND job_id = ?", app.UserID, app.JobID).Take(&existing).Error
		if err == nil {
			return models.DuplicateApplication(existing.ID, app.JobID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check duplicate application: %w", err)
		}

		var count int64
		if err := tx.Model(&models.Application{}).
			Where("user_id = ? AND created_at >= ?", app.UserID, plan.PeriodStart(app.CreatedAt)).
			Count(&count).Error; err != nil {
			return fmt.Errorf("count applications: %w", err)
		}
		if admit != nil {
			if err := admit(int(count)); err != nil {
				return err
			}
		}

		if err := tx.Create(app).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return models.DuplicateApplication("(concurrent)", app.JobID)
			}
			return fmt.Errorf("create application: %w", err)
		}
		record := models.TransitionRecord{
			ApplicationID: app.ID,
			Name:          workflow.CreateName,
			To:            app.Status,
			At:            app.CreatedAt,
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("record creation: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("application stored", zap.String("application_id", app.ID))
	return nil
}

func (s *Store) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	var a models.Application
	if err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ApplicationNotFound(id)
		}
		return nil, fmt.Errorf("get application: %w", err)
	}
	return &a, nil
}

func (s *Store) ListApplications(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, error) {
	q := s.db.WithContext(ctx).Model(&models.Application{})
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.JobID != "" {
		q = q.Where("job_id = ?", filter.JobID)
	}

	var apps []models.Application
	if err := q.Order("created_at, id").Find(&apps).Error; err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// TransitionApplication is a conditional update on (id, status) plus the
// audit insert, both in one transaction.
func (s *Store) TransitionApplication(ctx context.Context, id string, change models.StatusChange) (*models.Application, error) {
	t := change.Transition
	if !t.Valid() {
		return nil, apperrors.Invalid(t.Name(), "transition is not part of the workflow")
	}

	updates := map[string]any{
		"status":     t.To(),
		"updated_at": change.At,
	}
	if change.ApprovedAt != nil {
		updates["approved_at"] = change.ApprovedAt
		updates["approved_by"] = change.ApprovedBy
	}
	if change.SubmittedAt != nil {
		updates["submitted_at"] = change.SubmittedAt
	}

	var app models.Application
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Application{}).
			Where("id = ? AND status = ?", id, t.From()).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("%s: %w", t.Name(), result.Error)
		}
		if result.RowsAffected == 0 {
			if err := tx.First(&app, "id = ?", id).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return models.ApplicationNotFound(id)
				}
				return fmt.Errorf("%s: %w", t.Name(), err)
			}
			return app.WrongState(t)
		}

		record := change.Record(id)
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("record %s: %w", t.Name(), err)
		}
		return tx.First(&app, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (s *Store) AppendNotes(ctx context.Context, id, notes string) (*models.Application, error) {
	var app models.Application
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&app, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ApplicationNotFound(id)
			}
			return fmt.Errorf("load application %s: %w", id, err)
		}

		app.Notes = models.JoinNotes(app.Notes, notes)
		app.UpdatedAt = time.Now().UTC()
		if err := tx.Model(&models.Application{}).Where("id = ?", id).
			Updates(map[string]any{"notes": app.Notes, "updated_at": app.UpdatedAt}).Error; err != nil {
			return fmt.Errorf("update notes: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (s *Store) GetDocuments(ctx context.Context, applicationID string) (*models.DocumentBundle, error) {
	var b models.DocumentBundle
	if err := s.db.WithContext(ctx).First(&b, "application_id = ?", applicationID).Error; err != nil {
		return nil, notFound(err, "get documents", fmt.Sprintf("application %s has no documents", applicationID))
	}
	return &b, nil
}

func (s *Store) SaveDocuments(ctx context.Context, bundle *models.DocumentBundle, editable func(workflow.Status) bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var app models.Application
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id", "status").
			First(&app, "id = ?", bundle.ApplicationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ApplicationNotFound(bundle.ApplicationID)
			}
			return fmt.Errorf("save documents: %w", err)
		}
		if editable != nil && !editable(app.Status) {
			return models.DocumentsFrozen(&app)
		}

		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "application_id"}},
			UpdateAll: true,
		}).Create(bundle).Error
		if err != nil {
			return fmt.Errorf("save documents: %w", err)
		}
		return nil
	})
}

func (s *Store) ListTransitions(ctx context.Context, applicationID string) ([]models.TransitionRecord, error) {
	var records []models.TransitionRecord
	if err := s.db.WithContext(ctx).Where("application_id = ?", applicationID).
		Order("at, id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	return records, nil
}

// SaveSignal inserts the signal unless (user, message id) is known; in that
// case sig is replaced by the stored row and false is returned.
func (s *Store) SaveSignal(ctx context.Context, sig *models.InboundSignal) (bool, error) {
	newID(&sig.ID)
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "message_id"}},
		DoNothing: true,
	}).Create(sig)
	if result.Error != nil {
		return false, fmt.Errorf("save signal: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	var existing models.InboundSignal
	if err := s.db.WithContext(ctx).
		First(&existing, "user_id = ? AND message_id = ?", sig.UserID, sig.MessageID).Error; err != nil {
		return false, fmt.Errorf("load existing signal: %w", err)
	}
	*sig = existing
	return false, nil
}

func (s *Store) GetSignal(ctx context.Context, id string) (*models.InboundSignal, error) {
	var sig models.InboundSignal
	if err := s.db.WithContext(ctx).First(&sig, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "get signal", fmt.Sprintf("signal %s not found", id))
	}
	return &sig, nil
}

func (s *Store) ListSignals(ctx context.Context, filter models.SignalFilter) ([]models.InboundSignal, error) {
	q := s.db.WithContext(ctx).Model(&models.InboundSignal{})
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Processed != nil {
		q = q.Where("processed = ?", *filter.Processed)
	}

	var out []models.InboundSignal
	if err := q.Order("received_at, id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	return out, nil
}

func (s *Store) UpdateSignal(ctx context.Context, sig *models.InboundSignal) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.InboundSignal{}).Where("id = ?", sig.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("update signal: %w", err)
		}
		if count == 0 {
			return apperrors.NotFound("update signal", fmt.Sprintf("signal %s not found", sig.ID))
		}
		err := tx.Model(sig).
			Select("category", "confidence", "method", "job_id", "application_id", "processed").
			Updates(sig).Error
		if err != nil {
			return fmt.Errorf("update signal: %w", err)
		}
		return nil
	})
}
