package classify

import (
	"fmt"
	"strings"
)

type Category string

const (
	JobAlert     Category = "job_alert"
	Rejection    Category = "rejection"
	Interview    Category = "interview"
	Offer        Category = "offer"
	Unclassified Category = "unclassified"
)

// priority breaks ties between categories with equal keyword weight.
var priority = []Category{Offer, Interview, Rejection, JobAlert}

func Categories() []Category {
	return []Category{JobAlert, Rejection, Interview, Offer, Unclassified}
}

func ParseCategory(s string) (Category, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	normalized = strings.ReplaceAll(normalized, " ", "_")
	for _, c := range Categories() {
		if string(c) == normalized {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Method tells which strategy produced a result.
type Method string

const (
	MethodAI       Method = "ai"
	MethodKeywords Method = "keywords"
)
