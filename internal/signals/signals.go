// Package signals ingests inbound messages, classifies them and turns job
// alerts into applications waiting for review.
package signals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/bewerbungs-agent/internal/cache"
	"github.com/spigell/bewerbungs-agent/internal/classify"
	"github.com/spigell/bewerbungs-agent/internal/logger"
	"github.com/spigell/bewerbungs-agent/internal/models"
	"github.com/spigell/bewerbungs-agent/internal/utils"
)

// Raw is a message as delivered by a source.
type Raw struct {
	MessageID   string
	ThreadID    string
	Sender      string
	Subject     string
	Body        string
	Attachments []string
	ReceivedAt  time.Time
}

// Source yields raw messages for a user.
type Source interface {
	Fetch(ctx context.Context) ([]Raw, error)
	Name() string
}

type Store interface {
	SaveSignal(ctx context.Context, sig *models.InboundSignal) (bool, error)
	GetSignal(ctx context.Context, id string) (*models.InboundSignal, error)
	ListSignals(ctx context.Context, filter models.SignalFilter) ([]models.InboundSignal, error)
	UpdateSignal(ctx context.Context, sig *models.InboundSignal) error
	CreateJob(ctx context.Context, j *models.Job) error
}

type Classifier interface {
	Classify(ctx context.Context, in classify.Input) classify.Result
}

// IngestResult counts what happened to a batch.
type IngestResult struct {
	Fetched    int                       `json:"fetched"`
	New        int                       `json:"new"`
	Duplicates int                       `json:"duplicates"`
	ByCategory map[classify.Category]int `json:"by_category"`
}

type Processor struct {
	store      Store
	classifier Classifier
	seen       cache.Seen
	logger     *zap.Logger
}

func NewProcessor(store Store, classifier Classifier, seen cache.Seen, log *zap.Logger) *Processor {
	if seen == nil {
		seen = cache.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{store: store, classifier: classifier, seen: seen, logger: log}
}

// Sync fetches from src and ingests the result.
func (p *Processor) Sync(ctx context.Context, userID string, src Source) (*IngestResult, error) {
	raws, err := src.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch from %s: %w", src.Name(), err)
	}
	p.logger.Info("fetched inbound messages", zap.String("source", src.Name()), zap.Int("count", len(raws)))
	return p.Ingest(ctx, userID, raws)
}

// Ingest stores and classifies every message not seen before. A message id
// is processed at most once per user.
func (p *Processor) Ingest(ctx context.Context, userID string, raws []Raw) (*IngestResult, error) {
	result := &IngestResult{Fetched: len(raws), ByCategory: map[classify.Category]int{}}

	for _, raw := range raws {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		messageID := strings.TrimSpace(raw.MessageID)
		if messageID == "" {
			p.logger.Warn("skipping message without id", zap.String("subject", utils.TruncateForLog(raw.Subject, 80)))
			continue
		}

		claimed, err := p.seen.Claim(ctx, userID, messageID)
		if err != nil {
			p.logger.Warn("dedup cache unavailable, relying on database", zap.Error(err))
			claimed = true
		}
		if !claimed {
			result.Duplicates++
			continue
		}

		sig, created, err := p.save(ctx, userID, raw)
		if err != nil {
			p.release(ctx, userID, messageID)
			return result, err
		}
		// A stored signal left unclassified by an earlier failed run is
		// finished here instead of counting as a duplicate.
		if !created && sig.Category != classify.Unclassified {
			result.Duplicates++
			continue
		}

		res, err := p.classify(ctx, sig)
		if err != nil {
			p.release(ctx, userID, messageID)
			return result, err
		}

		result.New++
		result.ByCategory[res.Category]++
		logger.WithFields(p.logger, zap.String(logger.FieldSignal, sig.ID)).Info("signal classified",
			zap.String("category", string(res.Category)),
			zap.Float64("confidence", res.Confidence),
			zap.String("method", string(res.Method)),
		)
	}

	return result, nil
}

func (p *Processor) save(ctx context.Context, userID string, raw Raw) (*models.InboundSignal, bool, error) {
	received := raw.ReceivedAt
	if received.IsZero() {
		received = time.Now()
	}
	sig := &models.InboundSignal{
		UserID:      userID,
		MessageID:   strings.TrimSpace(raw.MessageID),
		ThreadID:    raw.ThreadID,
		Sender:      raw.Sender,
		Subject:     strings.TrimSpace(raw.Subject),
		Body:        strings.TrimSpace(raw.Body),
		Attachments: raw.Attachments,
		ReceivedAt:  received.UTC(),
		Category:    classify.Unclassified,
	}
	created, err := p.store.SaveSignal(ctx, sig)
	if err != nil {
		return nil, false, fmt.Errorf("save signal %s: %w", raw.MessageID, err)
	}
	return sig, created, nil
}

// Reclassify runs the classifier again over a stored signal.
func (p *Processor) Reclassify(ctx context.Context, signalID string) (*models.InboundSignal, error) {
	sig, err := p.store.GetSignal(ctx, signalID)
	if err != nil {
		return nil, err
	}
	if _, err := p.classify(ctx, sig); err != nil {
		return nil, err
	}
	return sig, nil
}

func (p *Processor) classify(ctx context.Context, sig *models.InboundSignal) (classify.Result, error) {
	res := p.classifier.Classify(ctx, classify.Input{
		Subject:     sig.Subject,
		Body:        sig.Body,
		Attachments: sig.Attachments,
	})
	sig.Category = res.Category
	sig.Confidence = res.Confidence
	sig.Method = res.Method
	if err := p.store.UpdateSignal(ctx, sig); err != nil {
		return res, fmt.Errorf("update signal %s: %w", sig.ID, err)
	}
	return res, nil
}

// release lets a later run claim messageID again.
func (p *Processor) release(ctx context.Context, userID, messageID string) {
	if err := p.seen.Release(ctx, userID, messageID); err != nil {
		p.logger.Warn("failed to release dedup key", zap.Error(err))
	}
}
