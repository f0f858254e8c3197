package ai

import "context"

// Classification is the answer of an external classification capability.
type Classification struct {
	Category   string
	Confidence float64
	Reason     string
	Raw        string
}

// Classifier is an external capability that labels job related text.
// Implementations may fail for any reason; callers are expected to fall back.
type Classifier interface {
	Classify(ctx context.Context, text string) (*Classification, error)
	Provider() string
}
