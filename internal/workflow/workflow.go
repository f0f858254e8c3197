// Package workflow holds the application status set and the closed table of
// transitions between statuses.
//
// A Transition can only be obtained from the variables declared here, so a
// caller cannot describe a move that is not part of the table. In particular
// READY_TO_SUBMIT is reachable only through MarkReady, whose source is
// USER_APPROVED.
package workflow

import (
	"fmt"
	"strings"
)

type Status string

const (
	Draft          Status = "DRAFT"
	ReviewRequired Status = "REVIEW_REQUIRED"
	UserApproved   Status = "USER_APPROVED"
	ReadyToSubmit  Status = "READY_TO_SUBMIT"
	Submitted      Status = "SUBMITTED"
	Rejected       Status = "REJECTED"
	Interview      Status = "INTERVIEW"
	Offer          Status = "OFFER"
)

// Initial is the status every application is created in.
const Initial = Draft

// CreateName labels the audit record written when an application is created.
const CreateName = "create-application"

var statuses = []Status{Draft, ReviewRequired, UserApproved, ReadyToSubmit, Submitted, Rejected, Interview, Offer}

// Statuses returns all known statuses in progression order.
func Statuses() []Status {
	out := make([]Status, len(statuses))
	copy(out, statuses)
	return out
}

func ParseStatus(s string) (Status, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	for _, st := range statuses {
		if string(st) == normalized {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown application status %q", s)
}

func (s Status) String() string { return string(s) }

// Editable reports whether the document bundle may still be regenerated.
func (s Status) Editable() bool {
	switch s {
	case Draft, ReviewRequired, UserApproved, ReadyToSubmit:
		return true
	default:
		return false
	}
}

// IsOutcome reports whether the status is one of the informational outcomes
// recorded after submission.
func (s Status) IsOutcome() bool {
	return s == Rejected || s == Interview || s == Offer
}

// Transition is a single edge of the workflow. The zero value is invalid.
type Transition struct {
	name string
	from Status
	to   Status
}

var (
	MarkForReview   = Transition{name: "mark-for-review", from: Draft, to: ReviewRequired}
	Approve         = Transition{name: "approve", from: ReviewRequired, to: UserApproved}
	MarkReady       = Transition{name: "mark-ready", from: UserApproved, to: ReadyToSubmit}
	MarkSubmitted   = Transition{name: "mark-submitted", from: ReadyToSubmit, to: Submitted}
	RecordRejected  = Transition{name: "record-outcome", from: Submitted, to: Rejected}
	RecordInterview = Transition{name: "record-outcome", from: Submitted, to: Interview}
	RecordOffer     = Transition{name: "record-outcome", from: Submitted, to: Offer}
)

var table = []Transition{MarkForReview, Approve, MarkReady, MarkSubmitted, RecordRejected, RecordInterview, RecordOffer}

// Table returns every allowed transition.
func Table() []Transition {
	out := make([]Transition, len(table))
	copy(out, table)
	return out
}

func (t Transition) Name() string { return t.name }
func (t Transition) From() Status { return t.from }
func (t Transition) To() Status   { return t.to }

// Valid reports whether t is one of the table entries.
func (t Transition) Valid() bool {
	for _, allowed := range table {
		if allowed == t {
			return true
		}
	}
	return false
}

func (t Transition) String() string {
	return fmt.Sprintf("%s (%s -> %s)", t.name, t.from, t.to)
}

// Outcome is an informational result recorded after submission.
type Outcome string

const (
	OutcomeRejected  Outcome = "rejected"
	OutcomeInterview Outcome = "interview"
	OutcomeOffer     Outcome = "offer"
)

func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(strings.ToLower(strings.TrimSpace(s))) {
	case OutcomeRejected:
		return OutcomeRejected, nil
	case OutcomeInterview:
		return OutcomeInterview, nil
	case OutcomeOffer:
		return OutcomeOffer, nil
	default:
		return "", fmt.Errorf("unknown outcome %q (expected rejected, interview or offer)", s)
	}
}

// Transition returns the workflow edge recording the outcome.
func (o Outcome) Transition() (Transition, error) {
	switch o {
	case OutcomeRejected:
		return RecordRejected, nil
	case OutcomeInterview:
		return RecordInterview, nil
	case OutcomeOffer:
		return RecordOffer, nil
	default:
		return Transition{}, fmt.Errorf("unknown outcome %q", string(o))
	}
}
