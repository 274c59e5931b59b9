// Package chat routes one user message to the report dialogue, the intent
// classifier or the conversational responder. It knows nothing about the
// chat transport.
package chat

import (
	"context"
	"log"
	"runtime/debug"
	"strings"
	"time"

	"accidentbot/internal/domain"
	"accidentbot/internal/intent"
	"accidentbot/internal/report"
	"accidentbot/internal/responder"
	"accidentbot/internal/session"
)

const (
	genericApology  = "Sorry, something went wrong while handling your message. Please try again."
	nothingToCancel = "There is no report in progress to cancel."
	emptyMessage    = "Please type a message. Send /help to see what I can do."

	resetHit  = "Done! Your conversation history and any report in progress have been cleared."
	resetMiss = "There was no active conversation to clear. We can start fresh whenever you like."
)

type Classifier interface {
	Classify(ctx context.Context, message string) intent.Result
}

type Responder interface {
	Respond(ctx context.Context, sess *session.Session, message string, res intent.Result) responder.Reply
}

type ClassificationRecorder interface {
	RecordClassification(ctx context.Context, r domain.ClassificationRecord) error
}

type Options struct {
	Sessions   *session.Manager
	Machine    *report.Machine
	Classifier Classifier
	Responder  Responder
	Recorder   ClassificationRecorder
	// Provider and Model label classification audit rows.
	Provider string
	Model    string
	Now      func() time.Time
}

// Reply is what the transport shows the user. Options, when present, are
// the selectable answers for the current question.
type Reply struct {
	Text    string
	Options []string
}

type Engine struct {
	opts Options
}

func NewEngine(opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{opts: opts}
}

// HandleMessage processes one free-form message. Messages of one user are
// handled one at a time.
func (e *Engine) HandleMessage(ctx context.Context, userID, text string) (reply Reply) {
	defer e.recoverTo(&reply, "message", userID)

	sess, unlock := e.opts.Sessions.Lock(userID)
	defer unlock()

	if sess.Dialogue.Active() {
		return fromReport(e.opts.Machine.Handle(ctx, userID, &sess.Dialogue, text))
	}
	if strings.TrimSpace(text) == "" {
		return Reply{Text: emptyMessage}
	}

	res := e.opts.Classifier.Classify(ctx, text)
	e.recordClassification(ctx, userID, res)
	log.Printf("chat message user=%s intent=%s", userID, res.Intent)

	rr := e.opts.Responder.Respond(ctx, sess, text, res)
	switch {
	case rr.StartReport:
		return e.start(sess)
	case res.Intent == intent.Cancel:
		if rr.Text == "" {
			return Reply{Text: nothingToCancel}
		}
		return Reply{Text: nothingToCancel + "\n\n" + rr.Text}
	default:
		return Reply{Text: rr.Text}
	}
}

// StartReport begins a new report dialogue, replacing any draft in progress.
func (e *Engine) StartReport(ctx context.Context, userID string) (reply Reply) {
	defer e.recoverTo(&reply, "start", userID)

	sess, unlock := e.opts.Sessions.Lock(userID)
	defer unlock()
	return e.start(sess)
}

func (e *Engine) Cancel(userID string) (reply Reply) {
	defer e.recoverTo(&reply, "cancel", userID)

	sess, unlock := e.opts.Sessions.Lock(userID)
	defer unlock()
	return fromReport(e.opts.Machine.Cancel(&sess.Dialogue))
}

// ResetChat forgets everything about the user: draft, history and pending
// entities.
func (e *Engine) ResetChat(userID string) Reply {
	if e.opts.Sessions.Reset(userID) {
		log.Printf("chat reset user=%s", userID)
		return Reply{Text: resetHit}
	}
	log.Printf("chat reset user=%s: no session", userID)
	return Reply{Text: resetMiss}
}

func (e *Engine) start(sess *session.Session) Reply {
	pending := sess.PendingEntities
	sess.PendingEntities = nil
	return fromReport(e.opts.Machine.Start(&sess.Dialogue, pending))
}

func (e *Engine) recordClassification(ctx context.Context, userID string, res intent.Result) {
	if e.opts.Recorder == nil {
		return
	}
	rec := domain.ClassificationRecord{
		UserID:       userID,
		Intent:       string(res.Intent),
		EntityCount:  len(res.Entities),
		LLMProvider:  e.opts.Provider,
		LLMModel:     e.opts.Model,
		ClassifiedAt: e.opts.Now(),
	}
	if res.Failure != nil {
		rec.ErrorKind = string(res.Failure.Kind)
	}
	if err := e.opts.Recorder.RecordClassification(ctx, rec); err != nil {
		log.Printf("chat audit classification user=%s: %v", userID, err)
	}
}

func (e *Engine) recoverTo(reply *Reply, op, userID string) {
	if r := recover(); r != nil {
		log.Printf("chat %s panic user=%s: %v\n%s", op, userID, r, debug.Stack())
		*reply = Reply{Text: genericApology}
	}
}

func fromReport(r report.Reply) Reply {
	return Reply{Text: r.Text, Options: r.Options}
}
