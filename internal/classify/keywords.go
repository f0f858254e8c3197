package classify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spigell/bewerbungs-agent/internal/textnorm"
)

// Input is the raw text of an inbound signal.
type Input struct {
	Subject     string
	Body        string
	Attachments []string
}

// Text joins subject, body and attachments into one prompt-ready string.
func (in Input) Text() string {
	var b strings.Builder
	if s := strings.TrimSpace(in.Subject); s != "" {
		b.WriteString("Subject: ")
		b.WriteString(s)
		b.WriteString("\n\n")
	}
	b.WriteString(strings.TrimSpace(in.Body))
	for i, att := range in.Attachments {
		att = strings.TrimSpace(att)
		if att == "" {
			continue
		}
		fmt.Fprintf(&b, "\n\n--- attachment %d ---\n%s", i+1, att)
	}
	return strings.TrimSpace(b.String())
}

// Result is the outcome of a classification.
type Result struct {
	Category   Category `json:"category" yaml:"category"`
	Confidence float64  `json:"confidence" yaml:"confidence"`
	Method     Method   `json:"method" yaml:"method"`
	Reason     string   `json:"reason,omitempty" yaml:"reason,omitempty"`
}

type compiledGroup struct {
	name     string
	keywords []string
}

// KeywordClassifier is the deterministic bilingual fallback. It holds no
// mutable state and is safe for concurrent use.
type KeywordClassifier struct {
	cfg    Config
	groups map[Category][]compiledGroup
}

func NewKeywordClassifier(cfg Config) *KeywordClassifier {
	cfg = cfg.withDefaults()

	groups := make(map[Category][]compiledGroup, len(cfg.Groups))
	for category, defs := range cfg.Groups {
		compiled := make([]compiledGroup, 0, len(defs))
		for _, def := range defs {
			keywords := make([]string, 0, len(def.Keywords))
			for _, kw := range def.Keywords {
				if folded := textnorm.Fold(kw); folded != "" {
					keywords = append(keywords, folded)
				}
			}
			if len(keywords) == 0 {
				continue
			}
			compiled = append(compiled, compiledGroup{name: def.Name, keywords: keywords})
		}
		if len(compiled) > 0 {
			groups[category] = compiled
		}
	}
	cfg.Groups = nil

	return &KeywordClassifier{cfg: cfg, groups: groups}
}

type tally struct {
	category  Category
	weight    int
	primary   int
	total     int
	matched   []string
	fromFiles []string
}

// Classify scores every category and returns the strongest one.
func (k *KeywordClassifier) Classify(in Input) Result {
	primary := textnorm.Fold(in.Subject + "\n" + in.Body)
	attachments := textnorm.Fold(strings.Join(in.Attachments, "\n"))

	var best *tally
	for _, category := range priority {
		t := k.tally(category, primary, attachments)
		if t.weight == 0 {
			continue
		}
		if best == nil || t.weight > best.weight || (t.weight == best.weight && t.primary > best.primary) {
			best = &t
		}
	}

	if best == nil {
		return Result{
			Category:   Unclassified,
			Confidence: 0,
			Method:     MethodKeywords,
			Reason:     "no keyword matched",
		}
	}

	return Result{
		Category:   best.category,
		Confidence: k.confidence(*best),
		Method:     MethodKeywords,
		Reason:     best.reason(),
	}
}

func (k *KeywordClassifier) tally(category Category, primary, attachments string) tally {
	t := tally{category: category, total: len(k.groups[category])}
	for _, group := range k.groups[category] {
		switch {
		case group.matches(primary):
			t.weight += k.cfg.SubjectBodyWeight
			t.primary += k.cfg.SubjectBodyWeight
			t.matched = append(t.matched, group.name)
		case group.matches(attachments):
			t.weight += k.cfg.AttachmentWeight
			t.fromFiles = append(t.fromFiles, group.name)
		}
	}
	return t
}

func (k *KeywordClassifier) confidence(t tally) float64 {
	if t.total == 0 {
		return 0
	}
	c := float64(t.weight) / float64(k.cfg.SubjectBodyWeight*t.total)
	if c > k.cfg.Ceiling {
		c = k.cfg.Ceiling
	}
	if c < 0 {
		c = 0
	}
	return c
}

func (g compiledGroup) matches(text string) bool {
	if text == "" {
		return false
	}
	for _, kw := range g.keywords {
		if textnorm.ContainsPhrase(text, kw) {
			return true
		}
	}
	return false
}

func (t tally) reason() string {
	parts := make([]string, 0, 2)
	if len(t.matched) > 0 {
		names := append([]string(nil), t.matched...)
		sort.Strings(names)
		parts = append(parts, "subject/body: "+strings.Join(names, ", "))
	}
	if len(t.fromFiles) > 0 {
		names := append([]string(nil), t.fromFiles...)
		sort.Strings(names)
		parts = append(parts, "attachments: "+strings.Join(names, ", "))
	}
	return fmt.Sprintf("%d of %d %s keyword groups matched (%s)",
		len(t.matched)+len(t.fromFiles), t.total, t.category, strings.Join(parts, "; "))
}
