// Package intent classifies one free-form message into a closed intent set
// with extracted entities. Classification never fails: every problem
// degrades to UNKNOWN with a diagnostic.
package intent

import (
	"accidentbot/internal/domain"
)

type Intent string

const (
	StartReport     Intent = "START_REPORT"
	QueryAccident   Intent = "QUERY_ACCIDENT"
	Greeting        Intent = "GREETING"
	Farewell        Intent = "FAREWELL"
	Cancel          Intent = "CANCEL"
	GeneralQuestion Intent = "GENERAL_QUESTION"
	Unknown         Intent = "UNKNOWN"
)

// FailureKind says why a classification degraded to UNKNOWN.
type FailureKind string

const (
	FailureParse    FailureKind = "parse"
	FailureSchema   FailureKind = "schema"
	FailureProvider FailureKind = "provider"
	FailureBlocked  FailureKind = "blocked"
)

type Failure struct {
	Kind   FailureKind
	Reason string
}

// Result is the classifier output. Failure is non-nil only when Intent is
// UNKNOWN because classification failed; a model that answered UNKNOWN
// itself has a nil Failure.
type Result struct {
	Intent   Intent
	Entities domain.Entities
	Raw      string
	Failure  *Failure
}

func (r Result) Failed() bool {
	return r.Failure != nil
}

func unknown(kind FailureKind, reason, raw string) Result {
	return Result{
		Intent:   Unknown,
		Entities: domain.Entities{},
		Raw:      raw,
		Failure:  &Failure{Kind: kind, Reason: reason},
	}
}

// entityKeys lists the entities kept per intent. Other keys are dropped.
var entityKeys = map[Intent][]string{
	StartReport:   {"description", "location", "date", "victim_sex", "victim_age", "victim_count"},
	QueryAccident: {"location", "date", "accident_type", "gravity"},
}
