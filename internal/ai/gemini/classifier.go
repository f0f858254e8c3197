package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/bewerbungs-agent/internal/ai"
	"github.com/spigell/bewerbungs-agent/internal/utils"
)

const (
	providerName        = "gemini"
	defaultMaxLogLength = 200
	// maxMessageRunes keeps long newsletters within a cheap request.
	maxMessageRunes = 8000
)

//go:embed prompt.md
var systemPrompt string

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}

// Classifier labels inbound messages with Gemini.
type Classifier struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

var _ ai.Classifier = (*Classifier)(nil)

func NewClassifier(generator contentGenerator, log *zap.Logger, maxLogLength int) *Classifier {
	if log == nil {
		log = zap.NewNop()
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &Classifier{
		generator: generator,
		logger:    log,
		maxLogLen: maxLogLength,
	}
}

func (c *Classifier) Provider() string {
	return providerName
}

// Classify sends text to the model. Any transport or parsing failure is
// returned so the caller can fall back.
func (c *Classifier) Classify(ctx context.Context, text string) (*ai.Classification, error) {
	if c == nil || c.generator == nil {
		return nil, errors.New("gemini classifier is not initialized")
	}

	message := strings.TrimSpace(text)
	if message == "" {
		return nil, errors.New("text to classify is empty")
	}
	if utf8.RuneCountInString(message) > maxMessageRunes {
		message = string([]rune(message)[:maxMessageRunes])
	}

	c.logger.Debug("gemini classify request",
		zap.String("model", c.generator.Model()),
		zap.Int("message_length", utf8.RuneCountInString(message)),
		zap.String("message_preview", utils.TruncateForLog(message, c.maxLogLen)),
	)

	raw, err := c.generator.GenerateContent(ctx, systemPrompt, message)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("gemini classify response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, c.maxLogLen)),
	)

	out, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}
	out.Raw = raw
	return out, nil
}

func parseResponse(raw string) (*ai.Classification, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	category := coerceString(data["category"])
	if category == "" {
		return nil, errors.New("gemini response has no category")
	}

	return &ai.Classification{
		Category:   category,
		Confidence: coerceFloat(data["confidence"]),
		Reason:     coerceString(data["reason"]),
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	raw = strings.TrimSpace(raw)

	// Some answers wrap the object in a sentence.
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start > 0 && end > start {
		raw = raw[start : end+1]
	}
	return raw
}

// coerceFloat returns NaN for anything that is not a number.
func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", val))
	}
}
