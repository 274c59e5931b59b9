// Package responder produces conversational replies, grounding accident
// questions on records fetched from the accident API.
package responder

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"accidentbot/internal/catalog"
	"accidentbot/internal/domain"
	"accidentbot/internal/integrations/llm"
	"accidentbot/internal/intent"
	"accidentbot/internal/metrics"
	"accidentbot/internal/session"
)

const (
	noRecordsNote     = "No matching accident records were found for the given criteria."
	clarificationNote = "More details are needed to search for accidents. Ask the user for a location, a date (for example \"today\"), an accident type or a gravity."

	blockedReply   = "Sorry, I couldn't generate a complete answer because of a content restriction (%s). Could you rephrase your question?"
	technicalReply = "Sorry, I had a technical problem processing your request. Please try again in a few moments."
)

const systemPrompt = `You are "Road Assistant Barranquilla", a friendly and helpful chat assistant specialised in mobility and traffic accidents in Barranquilla, Colombia.

Your purposes:
1. Reporting accidents: guide users who want to report a traffic accident. Tell them they can use the /report command for a guided, step-by-step report.
2. Accident information: answer questions about accidents in Barranquilla. When a "Database context" section is provided, use it EXCLUSIVELY to answer the current question and do not mention it explicitly. If there is no data, say so kindly.
3. Road-safety guidance: explain road-safety practices, relevant Colombian traffic rules and what to do after an accident (the emergency line is 123, traffic police, insurer).
4. General conversation about mobility, traffic, public transport and road safety in Barranquilla.

Behaviour:
- Never invent information, especially about accidents or legal procedures. Say you don't have that information when unsure.
- If a question is ambiguous, ask the user to rephrase or add details.
- Keep answers concise and readable in a chat window.
- You cannot take external actions such as calling emergency services. You can tell the user who to call.
- Database context applies only to the current question.
- Remind users of the commands /report, /help and /reset_chat when appropriate.`

// AccidentQuerier is satisfied by the accident API client.
type AccidentQuerier interface {
	QueryAccidents(ctx context.Context, f domain.AccidentFilter) ([]json.RawMessage, error)
}

type Options struct {
	Generator       llm.Generator
	Querier         AccidentQuerier
	Catalog         catalog.Catalog
	Location        *time.Location
	Now             func() time.Time
	HistoryMaxTurns int
	MaxTokens       int
	Metrics         *metrics.Metrics
}

type Responder struct {
	opts Options
}

// Reply is the responder outcome. StartReport asks the caller to begin the
// report dialogue instead of showing Text.
type Reply struct {
	Text        string
	StartReport bool
}

func New(opts Options) *Responder {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Responder{opts: opts}
}

// Respond answers one classified message. sess must be locked by the caller.
func (r *Responder) Respond(ctx context.Context, sess *session.Session, message string, res intent.Result) Reply {
	if res.Intent == intent.StartReport {
		sess.PendingEntities = res.Entities.Clone()
		return Reply{StartReport: true}
	}

	var note map[string]any
	if res.Intent == intent.QueryAccident {
		note = r.queryContext(ctx, sess.UserID, res.Entities)
	}

	prompt := message
	if note != nil {
		block, err := contextBlock(note)
		if err != nil {
			log.Printf("responder context encode user=%s: %v", sess.UserID, err)
		} else {
			prompt += block
		}
	}

	msgs := make([]llm.Message, 0, len(sess.History)+1)
	for _, t := range sess.History {
		role := llm.RoleUser
		if t.Role == session.RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Text: t.Text})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Text: prompt})

	if r.opts.Generator == nil {
		log.Printf("responder generate user=%s: no text generator configured", sess.UserID)
		return Reply{Text: technicalReply}
	}
	completion, err := r.opts.Generator.Complete(ctx, llm.Request{
		System:    systemPrompt,
		Messages:  msgs,
		MaxTokens: r.opts.MaxTokens,
	})
	switch {
	case err != nil:
		r.opts.Metrics.RecordGeneration("respond", "error")
		log.Printf("responder generate user=%s intent=%s: %v", sess.UserID, res.Intent, err)
		return Reply{Text: technicalReply}
	case completion.Blocked:
		r.opts.Metrics.RecordGeneration("respond", "blocked")
		log.Printf("responder generate blocked user=%s reason=%s", sess.UserID, completion.BlockReason)
		reason := completion.BlockReason
		if reason == "" {
			reason = "unspecified"
		}
		text := fmt.Sprintf(blockedReply, reason)
		sess.AppendTurns(message, text, r.opts.Now(), r.opts.HistoryMaxTurns)
		return Reply{Text: text}
	case strings.TrimSpace(completion.Text) == "":
		r.opts.Metrics.RecordGeneration("respond", "error")
		log.Printf("responder generate user=%s: empty completion", sess.UserID)
		return Reply{Text: technicalReply}
	}

	r.opts.Metrics.RecordGeneration("respond", "ok")
	log.Printf("responder reply user=%s intent=%s tokens=%d", sess.UserID, res.Intent, completion.Usage.TotalTokens())
	sess.AppendTurns(message, completion.Text, r.opts.Now(), r.opts.HistoryMaxTurns)
	return Reply{Text: completion.Text}
}

// BuildFilter maps query entities onto the accident API filters. Entities
// that do not resolve are left out.
func (r *Responder) BuildFilter(entities domain.Entities) domain.AccidentFilter {
	var f domain.AccidentFilter
	f.LocationContains = strings.TrimSpace(entities["location"])
	switch strings.ToLower(strings.TrimSpace(entities["date"])) {
	case "today", "hoy":
		f.Day = r.opts.Now().In(r.opts.Location).Format("2006-01-02")
	}
	if id, ok := r.opts.Catalog.AccidentTypes.LookupFold(entities["accident_type"]); ok {
		f.AccidentTypeID = id
	}
	if id, ok := r.opts.Catalog.Gravities.LookupFold(entities["gravity"]); ok {
		f.GravityID = id
	}
	return f
}

func (r *Responder) queryContext(ctx context.Context, userID string, entities domain.Entities) map[string]any {
	f := r.BuildFilter(entities)
	if f.Empty() {
		log.Printf("responder query skipped user=%s: no resolvable filter", userID)
		return map[string]any{"info_consulta": clarificationNote}
	}
	if r.opts.Querier == nil {
		return map[string]any{"api_error_consulta": "The accident query service is not configured."}
	}

	records, err := r.opts.Querier.QueryAccidents(ctx, f)
	if err != nil {
		r.opts.Metrics.RecordQuery(false)
		log.Printf("responder query user=%s: %v", userID, err)
		return map[string]any{"api_error_consulta": err.Error()}
	}
	r.opts.Metrics.RecordQuery(true)
	if len(records) == 0 {
		return map[string]any{"info_consulta": noRecordsNote}
	}
	return map[string]any{"accidentes_encontrados": records}
}

func contextBlock(note map[string]any) (string, error) {
	data, err := json.MarshalIndent(note, "", "  ")
	if err != nil {
		return "", err
	}
	return "\n\n--- Database context (internal information to answer the user's current question) ---\n```json\n" +
		string(data) + "\n```\n--- End of context ---", nil
}
