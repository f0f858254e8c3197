package gemini

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type stubGenerator struct {
	response    string
	err         error
	lastSystem  string
	lastMessage string
}

func (s *stubGenerator) GenerateContent(_ context.Context, system, message string) (string, error) {
	s.lastSystem = system
	s.lastMessage = message
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) Model() string {
	return "stub-model"
}

func TestClassifierClassify(t *testing.T) {
	stub := &stubGenerator{response: `{"category": "rejection", "confidence": 0.93, "reason": "Absage"}`}
	classifier := NewClassifier(stub, zap.NewNop(), 0)

	out, err := classifier.Classify(context.Background(), "Leider müssen wir Ihnen mitteilen ...")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.Category != "rejection" {
		t.Fatalf("unexpected category: %s", out.Category)
	}
	if out.Confidence != 0.93 {
		t.Fatalf("expected confidence 0.93, got %v", out.Confidence)
	}
	if out.Reason != "Absage" {
		t.Fatalf("unexpected reason: %s", out.Reason)
	}
	if out.Raw == "" {
		t.Fatalf("expected raw response to be kept")
	}
	if !strings.Contains(stub.lastSystem, "job_alert") {
		t.Fatalf("expected categories in the system prompt")
	}
	if !strings.HasPrefix(stub.lastMessage, "Leider") {
		t.Fatalf("unexpected message: %q", stub.lastMessage)
	}
	if classifier.Provider() != "gemini" {
		t.Fatalf("unexpected provider: %s", classifier.Provider())
	}
}

func TestClassifierPropagatesErrors(t *testing.T) {
	stub := &stubGenerator{err: errors.New("quota exhausted")}
	classifier := NewClassifier(stub, zap.NewNop(), 0)

	if _, err := classifier.Classify(context.Background(), "text"); err == nil {
		t.Fatal("expected error")
	}
}

func TestClassifierRejectsEmptyText(t *testing.T) {
	stub := &stubGenerator{}
	classifier := NewClassifier(stub, zap.NewNop(), 0)

	if _, err := classifier.Classify(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty text")
	}
	if stub.lastMessage != "" {
		t.Fatal("generator must not be called")
	}
}

func TestClassifierTruncatesLongMessages(t *testing.T) {
	stub := &stubGenerator{response: `{"category": "job_alert", "confidence": 0.5}`}
	classifier := NewClassifier(stub, zap.NewNop(), 0)

	if _, err := classifier.Classify(context.Background(), strings.Repeat("ä", maxMessageRunes+100)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len([]rune(stub.lastMessage)); got != maxMessageRunes {
		t.Fatalf("expected %d runes, got %d", maxMessageRunes, got)
	}
}

func TestParseResponse(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		category string
		nanConf  bool
		wantErr  bool
	}{
		{name: "code block", raw: "```json\n{\"category\": \"offer\", \"confidence\": 0.8}\n```", category: "offer"},
		{name: "wrapped in prose", raw: "Here you go: {\"category\": \"interview\", \"confidence\": \"0.7\"}", category: "interview"},
		{name: "missing confidence", raw: `{"category": "offer"}`, category: "offer", nanConf: true},
		{name: "missing category", raw: `{"confidence": 0.4}`, wantErr: true},
		{name: "not json", raw: "offer", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := parseResponse(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out.Category != tc.category {
				t.Fatalf("unexpected category: %s", out.Category)
			}
			if tc.nanConf != math.IsNaN(out.Confidence) {
				t.Fatalf("unexpected confidence: %v", out.Confidence)
			}
		})
	}
}
