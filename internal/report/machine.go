package report

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"accidentbot/internal/catalog"
	"accidentbot/internal/domain"
	"accidentbot/internal/metrics"
)

type Submitter interface {
	SubmitReport(ctx context.Context, s domain.ReportSubmission) (domain.SubmissionResult, error)
}

type SubmissionRecorder interface {
	RecordSubmission(ctx context.Context, r domain.SubmissionRecord) error
}

type Options struct {
	Catalog   catalog.Catalog
	Location  *time.Location
	Now       func() time.Time
	Submitter Submitter
	Recorder  SubmissionRecorder
	Metrics   *metrics.Metrics
	// SubmitRetries is how many extra attempts a failed submission may get
	// before the draft is discarded.
	SubmitRetries int
}

type step struct {
	field   string
	hint    string
	next    State
	prompt  string
	invalid string
	options func() []string
	accept  func(d *Draft, text string) (string, bool)

	// acceptHint replaces accept for pre-fill values when the typed-input
	// validator is too lenient.
	acceptHint func(d *Draft, text string) (string, bool)
}

type Machine struct {
	cat       catalog.Catalog
	loc       *time.Location
	now       func() time.Time
	submitter Submitter
	recorder  SubmissionRecorder
	metrics   *metrics.Metrics
	retries   int
	steps     map[State]step
}

func NewMachine(opts Options) *Machine {
	m := &Machine{
		cat:       opts.Catalog,
		loc:       opts.Location,
		now:       opts.Now,
		submitter: opts.Submitter,
		recorder:  opts.Recorder,
		metrics:   opts.Metrics,
		retries:   opts.SubmitRetries,
	}
	if m.loc == nil {
		m.loc = time.UTC
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.retries < 0 {
		m.retries = 0
	}
	m.steps = m.buildSteps()
	return m
}

func (m *Machine) buildSteps() map[State]step {
	selection := func(v catalog.Vocabulary, set func(d *Draft, id int)) func(d *Draft, text string) (string, bool) {
		return func(d *Draft, text string) (string, bool) {
			id, ok := v.Lookup(text)
			if !ok {
				return "", false
			}
			set(d, id)
			label, _ := v.Label(id)
			return label, true
		}
	}

	return map[State]step{
		StateAwaitingDatetime: {
			field:   "Date and time",
			hint:    "date",
			next:    StateAwaitingSex,
			prompt:  "When did the accident happen? Use DD/MM/YYYY HH:MM (e.g. 21/05/2024 14:30) or type 'now'.",
			invalid: "Date/time format not recognized.",
			options: func() []string { return []string{"Now"} },
			accept: func(d *Draft, text string) (string, bool) {
				t, ok := ParseOccurredAt(text, m.loc, m.now())
				if !ok {
					return "", false
				}
				d.OccurredAt = &t
				return FormatLocal(t, m.loc) + " (local time)", true
			},
		},
		StateAwaitingSex: {
			field:   "Victim sex",
			hint:    "victim_sex",
			next:    StateAwaitingAge,
			prompt:  "Select the sex of the main victim:",
			options: func() []string { return []string{"Masculine (M)", "Feminine (F)", "Other (O)"} },
			accept: func(d *Draft, text string) (string, bool) {
				d.VictimSex = ParseSex(text)
				return d.VictimSex, true
			},
			acceptHint: func(d *Draft, text string) (string, bool) {
				sex, ok := ParseSexHint(text)
				if !ok {
					return "", false
				}
				d.VictimSex = sex
				return sex, true
			},
		},
		StateAwaitingAge: {
			field:   "Victim age",
			hint:    "victim_age",
			next:    StateAwaitingCount,
			prompt:  "Enter the age of the main victim in years (numbers only):",
			invalid: "Please enter a valid age between 0 and 120 (e.g. 30).",
			accept: func(d *Draft, text string) (string, bool) {
				n, ok := ParseAge(text)
				if !ok {
					return "", false
				}
				d.VictimAge = &n
				return strconv.Itoa(n), true
			},
		},
		StateAwaitingCount: {
			field:   "Number of victims",
			hint:    "victim_count",
			next:    StateAwaitingCondition,
			prompt:  "How many victims were there in total? (numbers only)",
			invalid: "Please enter a valid number of victims, 1 or more (e.g. 1).",
			accept: func(d *Draft, text string) (string, bool) {
				n, ok := ParseCount(text)
				if !ok {
					return "", false
				}
				d.VictimCount = &n
				return strconv.Itoa(n), true
			},
		},
		StateAwaitingCondition: {
			field:   "Victim condition",
			next:    StateAwaitingGravity,
			prompt:  "Select the condition of the victim:",
			invalid: "Invalid option. Please select a condition from the list.",
			options: m.cat.VictimConditions.Labels,
			accept:  selection(m.cat.VictimConditions, func(d *Draft, id int) { d.VictimConditionID = id }),
		},
		StateAwaitingGravity: {
			field:   "Gravity",
			next:    StateAwaitingType,
			prompt:  "Select the gravity for the victim:",
			invalid: "Invalid option. Please select a gravity from the list.",
			options: m.cat.Gravities.Labels,
			accept:  selection(m.cat.Gravities, func(d *Draft, id int) { d.GravityID = id }),
		},
		StateAwaitingType: {
			field:   "Accident type",
			next:    StateAwaitingLocation,
			prompt:  "Select the type of accident:",
			invalid: "Invalid option. Please select an accident type from the list.",
			options: m.cat.AccidentTypes.Labels,
			accept:  selection(m.cat.AccidentTypes, func(d *Draft, id int) { d.AccidentTypeID = id }),
		},
		StateAwaitingLocation: {
			field:   "Location",
			hint:    "location",
			next:    StateAwaitingConfirmation,
			prompt:  "Select the neighborhood where the accident happened, or type its name exactly. If it is not listed, type the numeric location id.",
			invalid: "Invalid neighborhood. Select one from the list or type a numeric location id.",
			options: m.cat.Locations.Labels,
			accept: func(d *Draft, text string) (string, bool) {
				text = strings.TrimSpace(text)
				if id, ok := m.cat.Locations.Lookup(text); ok {
					d.LocationID = id
					d.LocationLabel = text
					return fmt.Sprintf("%s (ID %d)", text, id), true
				}
				id, err := strconv.Atoi(text)
				if err != nil || id <= 0 {
					return "", false
				}
				d.LocationID = id
				d.LocationLabel = ""
				return fmt.Sprintf("ID %d", id), true
			},
		},
	}
}

// Prompt is the question shown on entering state, with its options.
func (m *Machine) Prompt(state State) (string, []string) {
	st, ok := m.steps[state]
	if !ok {
		return "", nil
	}
	var opts []string
	if st.options != nil {
		opts = st.options()
	}
	return st.prompt, opts
}

// Start discards any previous draft and begins a new one. hints are
// classifier entities offered as pre-fill; each is validated like typed input.
func (m *Machine) Start(d *Dialogue, hints domain.Entities) Reply {
	if d.Active() {
		log.Printf("report start replacing draft=%s state=%s", d.Draft.ID, d.State)
	}
	d.clear()
	d.Draft = NewDraft()
	d.Hints = hints.Clone()
	log.Printf("report start draft=%s hints=%d", d.Draft.ID, len(d.Hints))
	return m.enter(d, StateAwaitingDatetime, []string{"Let's report a new accident. Follow the steps below; send /cancel at any time to stop."})
}

func (m *Machine) Cancel(d *Dialogue) Reply {
	if !d.Active() {
		return Reply{Text: "There is no report in progress."}
	}
	log.Printf("report cancelled draft=%s state=%s", d.Draft.ID, d.State)
	d.clear()
	return Reply{Text: "Accident report cancelled.", Outcome: StateCancelled}
}

// Handle applies one user message to an active dialogue.
func (m *Machine) Handle(ctx context.Context, userID string, d *Dialogue, text string) Reply {
	if !d.Active() {
		return Reply{Text: "There is no report in progress. Send /report to start one."}
	}
	if isCancel(text) {
		return m.Cancel(d)
	}
	if d.State == StateAwaitingConfirmation {
		return m.confirm(ctx, userID, d, text)
	}

	st, ok := m.steps[d.State]
	if !ok {
		log.Printf("report unknown state=%s draft=%s, restarting at first missing field", d.State, d.Draft.ID)
		return m.enter(d, d.Draft.missing(), nil)
	}
	display, ok := st.accept(d.Draft, text)
	if !ok {
		prompt, opts := m.Prompt(d.State)
		return Reply{Text: st.invalid + "\n" + prompt, Options: opts}
	}
	return m.enter(d, st.next, []string{fmt.Sprintf("%s recorded: %s.", st.field, display)})
}

// enter moves the dialogue to state, consuming any pre-fill hint for it
// and for the states after it.
func (m *Machine) enter(d *Dialogue, state State, lines []string) Reply {
	for {
		if state == StateAwaitingConfirmation {
			d.State = state
			lines = append(lines, m.Summary(d.Draft), "Submit this report?")
			return Reply{Text: strings.Join(lines, "\n\n"), Options: []string{confirmLabel, declineLabel}}
		}
		st := m.steps[state]
		if hint, ok := d.Hints[st.hint]; ok && st.hint != "" {
			delete(d.Hints, st.hint)
			accept := st.accept
			if st.acceptHint != nil {
				accept = st.acceptHint
			}
			if display, ok := accept(d.Draft, hint); ok {
				lines = append(lines, fmt.Sprintf("Taken from your message: %s: %s", st.field, display))
				state = st.next
				continue
			}
			log.Printf("report hint rejected draft=%s key=%s", d.Draft.ID, st.hint)
		}
		d.State = state
		prompt, opts := m.Prompt(state)
		lines = append(lines, prompt)
		return Reply{Text: strings.Join(lines, "\n\n"), Options: opts}
	}
}

func (m *Machine) confirm(ctx context.Context, userID string, d *Dialogue, text string) Reply {
	yes, recognized := parseConfirmation(text)
	if !recognized {
		return Reply{
			Text:    "Please answer yes or no.\n\n" + m.Summary(d.Draft) + "\n\nSubmit this report?",
			Options: []string{confirmLabel, declineLabel},
		}
	}
	if !yes {
		log.Printf("report declined draft=%s", d.Draft.ID)
		d.clear()
		return Reply{Text: "Report cancelled.", Outcome: StateCancelled}
	}
	if !d.Draft.Submittable() {
		missing := d.Draft.missing()
		log.Printf("report not submittable draft=%s missing=%s", d.Draft.ID, missing)
		return m.enter(d, missing, []string{"Some report data is missing or invalid."})
	}
	return m.submit(ctx, userID, d)
}

func (m *Machine) submit(ctx context.Context, userID string, d *Dialogue) Reply {
	d.SubmitAttempts++
	draft := d.Draft
	payload := draft.Submission()

	var res domain.SubmissionResult
	err := fmt.Errorf("report submission is not configured")
	if m.submitter != nil {
		res, err = m.submitter.SubmitReport(ctx, payload)
	}
	m.metrics.RecordSubmission(err == nil)
	m.record(ctx, userID, draft.ID, d.SubmitAttempts, res, err)

	if err == nil {
		log.Printf("report submitted user=%s draft=%s accident_id=%s attempt=%d", userID, draft.ID, res.AccidentID, d.SubmitAttempts)
		draft.Confirmed = true
		d.clear()
		return Reply{
			Text:    fmt.Sprintf("Report submitted successfully!\nRegistered accident ID: %s\n\nThank you for your help.", res.AccidentID),
			Outcome: StateSubmitted,
		}
	}

	log.Printf("report submit failed user=%s draft=%s attempt=%d: %v", userID, draft.ID, d.SubmitAttempts, err)
	text := fmt.Sprintf("There was a problem submitting the report: %s", err.Error())
	if d.SubmitAttempts <= m.retries {
		return Reply{
			Text:    text + "\n\nReply yes to try again with the same data, or no to cancel.",
			Options: []string{confirmLabel, declineLabel},
		}
	}
	d.clear()
	return Reply{Text: text + "\n\nThe report was discarded.", Outcome: StateCancelled}
}

func (m *Machine) record(ctx context.Context, userID, draftID string, attempt int, res domain.SubmissionResult, err error) {
	if m.recorder == nil {
		return
	}
	rec := domain.SubmissionRecord{
		UserID:      userID,
		DraftID:     draftID,
		Attempt:     attempt,
		Success:     err == nil,
		AccidentID:  res.AccidentID,
		SubmittedAt: m.now(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if rerr := m.recorder.RecordSubmission(ctx, rec); rerr != nil {
		log.Printf("report audit insert failed draft=%s: %v", draftID, rerr)
	}
}
