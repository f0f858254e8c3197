package classify

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/spigell/bewerbungs-agent/internal/ai"
	"github.com/spigell/bewerbungs-agent/internal/apperrors"
	"github.com/spigell/bewerbungs-agent/internal/logger"
	"github.com/spigell/bewerbungs-agent/internal/utils"
)

// Engine chooses between the external classifier and the keyword fallback.
// With a nil primary it runs keywords only.
type Engine struct {
	primary  ai.Classifier
	keywords *KeywordClassifier
	logger   *zap.Logger
}

func NewEngine(cfg Config, primary ai.Classifier, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		primary:  primary,
		keywords: NewKeywordClassifier(cfg),
		logger:   log,
	}
}

// Strategy names the active strategy for logs and reports.
func (e *Engine) Strategy() string {
	if e.primary == nil {
		return string(MethodKeywords)
	}
	return fmt.Sprintf("%s+%s", e.primary.Provider(), MethodKeywords)
}

// Keywords exposes the fallback so callers can run it directly.
func (e *Engine) Keywords() *KeywordClassifier {
	return e.keywords
}

// Classify never fails: any problem with the external classifier is logged
// and answered by the keyword fallback.
func (e *Engine) Classify(ctx context.Context, in Input) Result {
	if e.primary == nil {
		return e.keywords.Classify(in)
	}

	log := logger.WithProvider(e.logger, e.primary.Provider(), "")

	res, err := e.classifyPrimary(ctx, in)
	if err != nil {
		log.Warn("external classification unavailable, using keywords",
			zap.Error(apperrors.ClassificationUnavailable("classify", err)),
			zap.String("subject", utils.TruncateForLog(in.Subject, 80)),
		)
		return e.keywords.Classify(in)
	}

	log.Debug("classified with external capability",
		zap.String("category", string(res.Category)),
		zap.Float64("confidence", res.Confidence),
	)
	return res
}

func (e *Engine) classifyPrimary(ctx context.Context, in Input) (Result, error) {
	out, err := e.primary.Classify(ctx, in.Text())
	if err != nil {
		return Result{}, err
	}
	if out == nil {
		return Result{}, fmt.Errorf("empty classification")
	}

	category, err := ParseCategory(out.Category)
	if err != nil {
		return Result{}, err
	}
	if math.IsNaN(out.Confidence) || out.Confidence < 0 || out.Confidence > 1 {
		return Result{}, fmt.Errorf("confidence %v outside [0,1]", out.Confidence)
	}

	return Result{
		Category:   category,
		Confidence: out.Confidence,
		Method:     MethodAI,
		Reason:     out.Reason,
	}, nil
}
