package classify

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/bewerbungs-agent/internal/ai"
)

type stubClassifier struct {
	result *ai.Classification
	err    error
	calls  int
	text   string
}

func (s *stubClassifier) Classify(_ context.Context, text string) (*ai.Classification, error) {
	s.calls++
	s.text = text
	return s.result, s.err
}

func (s *stubClassifier) Provider() string { return "stub" }

func TestGermanRejectionWithoutExternalClassifier(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil, nil)

	for _, body := range []string{
		"Leider müssen wir Ihnen mitteilen...",
		"Sehr geehrte Frau Weber,\n\nleider müssen wir Ihnen mitteilen, dass wir uns für andere Kandidaten entschieden haben.",
	} {
		got := engine.Classify(context.Background(), Input{Body: body})

		if got.Category != Rejection {
			t.Fatalf("%q: expected rejection, got %s (%s)", body, got.Category, got.Reason)
		}
		if got.Confidence <= 0 || got.Confidence > DefaultCeiling {
			t.Fatalf("%q: confidence %v out of (0, %v]", body, got.Confidence, DefaultCeiling)
		}
		if got.Method != MethodKeywords {
			t.Fatalf("expected keyword method, got %s", got.Method)
		}
	}
}

func TestKeywordConfidenceIsGroupShare(t *testing.T) {
	k := NewKeywordClassifier(DefaultConfig())

	got := k.Classify(Input{Body: "Leider müssen wir Ihnen mitteilen..."})

	total := len(DefaultConfig().Groups[Rejection])
	expected := 2.0 / float64(total)
	if got.Confidence != expected {
		t.Fatalf("expected %v, got %v", expected, got.Confidence)
	}
}

func TestKeywordConfidenceIsCapped(t *testing.T) {
	k := NewKeywordClassifier(DefaultConfig())

	got := k.Classify(Input{
		Subject: "Absage Ihrer Bewerbung",
		Body: "Leider müssen wir Ihnen mitteilen, dass wir Sie nicht weiter berücksichtigen können. " +
			"Wir haben uns für andere Bewerber entschieden und bedauern dies sehr.",
	})

	if got.Category != Rejection {
		t.Fatalf("expected rejection, got %s", got.Category)
	}
	if got.Confidence != DefaultCeiling {
		t.Fatalf("expected confidence capped at %v, got %v", DefaultCeiling, got.Confidence)
	}
}

func TestCustomCeiling(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ceiling = 0.25
	k := NewKeywordClassifier(cfg)

	got := k.Classify(Input{Body: "Unfortunately we regret to inform you of our rejection."})
	if got.Confidence != 0.25 {
		t.Fatalf("expected custom ceiling 0.25, got %v", got.Confidence)
	}
}

func TestNoKeywordsIsUnclassified(t *testing.T) {
	k := NewKeywordClassifier(DefaultConfig())

	got := k.Classify(Input{Subject: "Hallo", Body: "Wie war dein Wochenende?"})
	if got.Category != Unclassified || got.Confidence != 0 {
		t.Fatalf("expected unclassified/0, got %s/%v", got.Category, got.Confidence)
	}
}

func TestKeywordClassificationIsDeterministic(t *testing.T) {
	k := NewKeywordClassifier(DefaultConfig())
	in := Input{
		Subject:     "New jobs for you: Backend Engineer",
		Body:        "We are hiring! Apply now for 12 open positions.",
		Attachments: []string{"Stellenangebot Backend (m/w/d)"},
	}

	first := k.Classify(in)
	for i := 0; i < 10; i++ {
		if got := k.Classify(in); got != first {
			t.Fatalf("run %d differs: %+v vs %+v", i, got, first)
		}
	}
	if first.Category != JobAlert {
		t.Fatalf("expected job alert, got %s", first.Category)
	}
}

func TestAttachmentsDoNotOverrideSubjectAndBody(t *testing.T) {
	k := NewKeywordClassifier(DefaultConfig())

	got := k.Classify(Input{
		Subject:     "Einladung zum Vorstellungsgespräch",
		Attachments: []string{"Leider erhalten Sie eine Absage. Wir bedauern das."},
	})
	if got.Category != Interview {
		t.Fatalf("expected interview from subject, got %s (%s)", got.Category, got.Reason)
	}

	onlyAttachment := k.Classify(Input{Attachments: []string{"Absage"}})
	if onlyAttachment.Category != Rejection {
		t.Fatalf("expected rejection from attachment, got %s", onlyAttachment.Category)
	}
	inBody := k.Classify(Input{Body: "Absage"})
	if onlyAttachment.Confidence >= inBody.Confidence {
		t.Fatalf("attachment hit %v should weigh less than body hit %v", onlyAttachment.Confidence, inBody.Confidence)
	}
}

func TestTiesFollowPriority(t *testing.T) {
	k := NewKeywordClassifier(DefaultConfig())

	got := k.Classify(Input{Body: "Your job offer after the interview"})
	if got.Category != Offer {
		t.Fatalf("expected offer to win the tie, got %s", got.Category)
	}
}

func TestMatchingIgnoresCase(t *testing.T) {
	k := NewKeywordClassifier(DefaultConfig())

	got := k.Classify(Input{Subject: "HERZLICHEN GLÜCKWUNSCH", Body: "Anbei Ihr ARBEITSVERTRAG."})
	if got.Category != Offer {
		t.Fatalf("expected offer, got %s", got.Category)
	}
}

func TestEngineUsesExternalClassifier(t *testing.T) {
	stub := &stubClassifier{result: &ai.Classification{Category: "Interview", Confidence: 0.93, Reason: "invite"}}
	engine := NewEngine(DefaultConfig(), stub, nil)

	got := engine.Classify(context.Background(), Input{Subject: "Kurze Frage", Body: "Passt Ihnen Dienstag?", Attachments: []string{"cv"}})
	if got.Method != MethodAI || got.Category != Interview || got.Confidence != 0.93 {
		t.Fatalf("unexpected result: %+v", got)
	}
	if stub.text == "" || stub.calls != 1 {
		t.Fatalf("expected one call with text, got %d calls", stub.calls)
	}
}

func TestEngineFallsBackOnFailure(t *testing.T) {
	tests := []struct {
		name string
		stub *stubClassifier
	}{
		{name: "error", stub: &stubClassifier{err: errors.New("quota exceeded")}},
		{name: "nil result", stub: &stubClassifier{}},
		{name: "unknown category", stub: &stubClassifier{result: &ai.Classification{Category: "spam", Confidence: 0.5}}},
		{name: "confidence out of range", stub: &stubClassifier{result: &ai.Classification{Category: "offer", Confidence: 1.5}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, observed := observer.New(zapcore.WarnLevel)
			engine := NewEngine(DefaultConfig(), tt.stub, zap.New(core))

			got := engine.Classify(context.Background(), Input{Body: "Leider müssen wir Ihnen mitteilen..."})

			if got.Method != MethodKeywords || got.Category != Rejection {
				t.Fatalf("expected keyword rejection, got %+v", got)
			}
			if observed.Len() != 1 {
				t.Fatalf("expected one warning, got %d", observed.Len())
			}
		})
	}
}

func TestStrategy(t *testing.T) {
	if got := NewEngine(DefaultConfig(), nil, nil).Strategy(); got != "keywords" {
		t.Fatalf("unexpected strategy %q", got)
	}
	if got := NewEngine(DefaultConfig(), &stubClassifier{}, nil).Strategy(); got != "stub+keywords" {
		t.Fatalf("unexpected strategy %q", got)
	}
}

func TestParseCategory(t *testing.T) {
	if c, err := ParseCategory(" Job-Alert "); err != nil || c != JobAlert {
		t.Fatalf("unexpected: %v %v", c, err)
	}
	if _, err := ParseCategory("newsletter"); err == nil {
		t.Fatalf("expected error")
	}
}
