// Package report implements the multi-turn accident report dialogue: a
// transition table over the report states, field validators, the review
// summary and the submission policy.
package report

import (
	"time"

	"accidentbot/internal/domain"

	"github.com/google/uuid"
)

type State string

const (
	StateIdle                 State = "IDLE"
	StateAwaitingDatetime     State = "AWAITING_DATETIME"
	StateAwaitingSex          State = "AWAITING_SEX"
	StateAwaitingAge          State = "AWAITING_AGE"
	StateAwaitingCount        State = "AWAITING_COUNT"
	StateAwaitingCondition    State = "AWAITING_CONDITION"
	StateAwaitingGravity      State = "AWAITING_GRAVITY"
	StateAwaitingType         State = "AWAITING_TYPE"
	StateAwaitingLocation     State = "AWAITING_LOCATION"
	StateAwaitingConfirmation State = "AWAITING_CONFIRMATION"
	StateSubmitted            State = "SUBMITTED"
	StateCancelled            State = "CANCELLED"
)

type Draft struct {
	ID                string
	OccurredAt        *time.Time
	VictimSex         string
	VictimAge         *int
	VictimCount       *int
	VictimConditionID int
	GravityID         int
	AccidentTypeID    int
	LocationID        int
	LocationLabel     string
	Confirmed         bool
}

func NewDraft() *Draft {
	return &Draft{ID: uuid.NewString()}
}

// missing returns the first collection state whose field is unset, or
// StateAwaitingConfirmation when every field is present.
func (d *Draft) missing() State {
	switch {
	case d.OccurredAt == nil:
		return StateAwaitingDatetime
	case d.VictimSex == "":
		return StateAwaitingSex
	case d.VictimAge == nil:
		return StateAwaitingAge
	case d.VictimCount == nil:
		return StateAwaitingCount
	case d.VictimConditionID == 0:
		return StateAwaitingCondition
	case d.GravityID == 0:
		return StateAwaitingGravity
	case d.AccidentTypeID == 0:
		return StateAwaitingType
	case d.LocationID == 0:
		return StateAwaitingLocation
	}
	return StateAwaitingConfirmation
}

// Submittable is true once every field except Confirmed is set and the
// resulting payload passes validation.
func (d *Draft) Submittable() bool {
	if d == nil || d.missing() != StateAwaitingConfirmation {
		return false
	}
	return domain.ValidateSubmission(d.Submission()) == nil
}

// Submission serializes the draft. Unset fields serialize as zero values;
// callers check Submittable first.
func (d *Draft) Submission() domain.ReportSubmission {
	s := domain.ReportSubmission{
		VictimSex:         d.VictimSex,
		VictimConditionID: d.VictimConditionID,
		GravityID:         d.GravityID,
		AccidentTypeID:    d.AccidentTypeID,
		LocationID:        d.LocationID,
	}
	if d.OccurredAt != nil {
		s.OccurredAt = FormatTimestamp(*d.OccurredAt)
	}
	if d.VictimAge != nil {
		s.VictimAge = *d.VictimAge
	}
	if d.VictimCount != nil {
		s.VictimCount = *d.VictimCount
	}
	return s
}

// Dialogue is the report-collection part of a session. The zero value is idle.
type Dialogue struct {
	State          State
	Draft          *Draft
	Hints          domain.Entities
	SubmitAttempts int
}

func (d *Dialogue) Active() bool {
	return d.State != "" && d.State != StateIdle && d.Draft != nil
}

func (d *Dialogue) clear() {
	d.State = StateIdle
	d.Draft = nil
	d.Hints = nil
	d.SubmitAttempts = 0
}

// Reply is what one dialogue step shows the user. Outcome is set to
// StateSubmitted or StateCancelled when the dialogue ended on this step.
type Reply struct {
	Text    string
	Options []string
	Outcome State
}
