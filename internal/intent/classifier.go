package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"accidentbot/internal/domain"
	"accidentbot/internal/integrations/llm"
	"accidentbot/internal/metrics"

	"github.com/go-playground/validator/v10"
)

const classifyMaxTokens = 512

const systemPrompt = `You classify messages sent to a road-safety assistant for the city of Barranquilla, Colombia.
Determine the main intent of the user's message and extract the relevant entities.

Possible intents: START_REPORT, QUERY_ACCIDENT, GREETING, FAREWELL, CANCEL, GENERAL_QUESTION, UNKNOWN.

For START_REPORT extract when present: "description", "location", "date", "victim_sex", "victim_age", "victim_count".
For QUERY_ACCIDENT extract when present: "location", "date", "accident_type", "gravity".
Entity values are strings. Omit entities that are not mentioned.

Answer ONLY with one valid JSON object with the keys "intent" (string) and "entities" (object).
If no entities are extracted, "entities" must be an empty object {}.
If the intent is unclear or fits no category, use "UNKNOWN".

Examples:
User: "I want to report a bad crash on calle 72 with 50 last night"
{"intent": "START_REPORT", "entities": {"description": "bad crash", "location": "calle 72 with 50", "date": "last night"}}

User: "hola"
{"intent": "GREETING", "entities": {}}

User: "were there accidents today in Boston?"
{"intent": "QUERY_ACCIDENT", "entities": {"date": "today", "location": "Boston"}}`

type payload struct {
	Intent   string                     `json:"intent" validate:"required,oneof=START_REPORT QUERY_ACCIDENT GREETING FAREWELL CANCEL GENERAL_QUESTION UNKNOWN"`
	Entities map[string]json.RawMessage `json:"entities" validate:"required"`
}

type Classifier struct {
	gen      llm.Generator
	metrics  *metrics.Metrics
	validate *validator.Validate
}

func NewClassifier(gen llm.Generator, m *metrics.Metrics) *Classifier {
	return &Classifier{gen: gen, metrics: m, validate: validator.New()}
}

// Classify sends one single-turn request and decodes the reply.
func (c *Classifier) Classify(ctx context.Context, message string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("intent classify panic: %v", r)
			res = unknown(FailureProvider, fmt.Sprintf("panic: %v", r), res.Raw)
		}
		c.metrics.RecordIntent(string(res.Intent))
	}()

	if c.gen == nil {
		return unknown(FailureProvider, "no text generator configured", "")
	}
	completion, err := c.gen.Complete(ctx, llm.Request{
		System:    systemPrompt,
		Messages:  []llm.Message{{Role: llm.RoleUser, Text: message}},
		MaxTokens: classifyMaxTokens,
	})
	if err != nil {
		c.metrics.RecordGeneration("classify", "error")
		log.Printf("intent classify provider error: %v", err)
		return unknown(FailureProvider, err.Error(), "")
	}
	if completion.Blocked {
		c.metrics.RecordGeneration("classify", "blocked")
		log.Printf("intent classify blocked reason=%s", completion.BlockReason)
		return unknown(FailureBlocked, "classification blocked ("+completion.BlockReason+")", "")
	}
	c.metrics.RecordGeneration("classify", "ok")

	res = c.Parse(completion.Text)
	if res.Failed() {
		log.Printf("intent classify %s failure: %s raw=%q", res.Failure.Kind, res.Failure.Reason, res.Raw)
	} else {
		log.Printf("intent classify intent=%s entities=%d", res.Intent, len(res.Entities))
	}
	return res
}

// Parse decodes a model reply into a Result.
func (c *Classifier) Parse(raw string) Result {
	text := llm.StripCodeFence(raw)

	var p payload
	dec := json.NewDecoder(strings.NewReader(text))
	if err := dec.Decode(&p); err != nil {
		return unknown(FailureParse, fmt.Sprintf("invalid JSON: %v", err), raw)
	}
	if dec.More() {
		return unknown(FailureParse, "trailing data after JSON object", raw)
	}
	p.Intent = strings.ToUpper(strings.TrimSpace(p.Intent))
	if err := c.validate.Struct(p); err != nil {
		return unknown(FailureSchema, err.Error(), raw)
	}

	intent := Intent(p.Intent)
	entities := domain.Entities{}
	for _, key := range entityKeys[intent] {
		value, ok := p.Entities[key]
		if !ok {
			continue
		}
		v, ok := entityText(value)
		if !ok {
			log.Printf("intent entity dropped key=%s value=%s", key, value)
			continue
		}
		if v != "" {
			entities[key] = v
		}
	}
	return Result{Intent: intent, Entities: entities, Raw: raw}
}

// entityText flattens a scalar entity value to text. Objects and arrays are
// rejected.
func entityText(value json.RawMessage) (string, bool) {
	var v any
	if err := json.Unmarshal(value, &v); err != nil {
		return "", false
	}
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}
