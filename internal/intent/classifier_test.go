package intent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"accidentbot/internal/integrations/llm"
	"accidentbot/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeGenerator struct {
	completion llm.Completion
	err        error
	panicMsg   string
	requests   []llm.Request
}

func (f *fakeGenerator) Complete(_ context.Context, req llm.Request) (llm.Completion, error) {
	f.requests = append(f.requests, req)
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.completion, f.err
}

func (f *fakeGenerator) Provider() string { return "fake" }
func (f *fakeGenerator) Model() string    { return "fake-1" }

func TestClassifyStartReportWithEntities(t *testing.T) {
	gen := &fakeGenerator{completion: llm.Completion{Text: "```json\n" +
		`{"intent": "START_REPORT", "entities": {"location": "Boston", "date": "05/03/2024 17:45", "victim_age": null, "victim_sex": "", "gravity": "Herido"}}` +
		"\n```"}}
	met := metrics.New()
	c := NewClassifier(gen, met)

	res := c.Classify(context.Background(), "report an accident in Boston")

	if res.Intent != StartReport || res.Failed() {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Entities["location"] != "Boston" || res.Entities["date"] != "05/03/2024 17:45" {
		t.Fatalf("unexpected entities: %v", res.Entities)
	}
	if _, ok := res.Entities["victim_age"]; ok {
		t.Fatal("null entity should be dropped")
	}
	if _, ok := res.Entities["victim_sex"]; ok {
		t.Fatal("empty entity should be dropped")
	}
	if _, ok := res.Entities["gravity"]; ok {
		t.Fatal("gravity is not a START_REPORT entity")
	}
	if len(gen.requests) != 1 {
		t.Fatalf("expected one request, got %d", len(gen.requests))
	}
	req := gen.requests[0]
	if len(req.Messages) != 1 || req.Messages[0].Text != "report an accident in Boston" || req.Messages[0].Role != llm.RoleUser {
		t.Fatalf("unexpected request messages: %+v", req.Messages)
	}
	if !strings.Contains(req.System, "QUERY_ACCIDENT") {
		t.Fatal("system prompt should list the intent set")
	}
	if got := testutil.ToFloat64(met.IntentsTotal.WithLabelValues("START_REPORT")); got != 1 {
		t.Fatalf("expected intent counter 1, got %v", got)
	}
	if got := testutil.ToFloat64(met.GenerationsTotal.WithLabelValues("classify", "ok")); got != 1 {
		t.Fatalf("expected generation counter 1, got %v", got)
	}
}

func TestParse(t *testing.T) {
	c := NewClassifier(nil, nil)
	tests := []struct {
		name   string
		raw    string
		intent Intent
		kind   FailureKind
	}{
		{name: "greeting", raw: `{"intent": "GREETING", "entities": {}}`, intent: Greeting},
		{name: "lowercase intent", raw: `{"intent": "farewell", "entities": {}}`, intent: Farewell},
		{name: "model unknown", raw: `{"intent": "UNKNOWN", "entities": {}}`, intent: Unknown},
		{name: "bare fence", raw: "```\n{\"intent\": \"CANCEL\", \"entities\": {}}\n```", intent: Cancel},
		{name: "not json", raw: "I think this is a greeting", intent: Unknown, kind: FailureParse},
		{name: "trailing data", raw: `{"intent": "GREETING", "entities": {}} extra`, intent: Unknown, kind: FailureParse},
		{name: "intent outside set", raw: `{"intent": "ORDER_PIZZA", "entities": {}}`, intent: Unknown, kind: FailureSchema},
		{name: "missing intent", raw: `{"entities": {}}`, intent: Unknown, kind: FailureSchema},
		{name: "missing entities", raw: `{"intent": "GREETING"}`, intent: Unknown, kind: FailureSchema},
		{name: "numeric entity", raw: `{"intent": "QUERY_ACCIDENT", "entities": {"location": 12}}`, intent: QueryAccident},
		{name: "object entity", raw: `{"intent": "START_REPORT", "entities": {"location": {"street": "72"}}}`, intent: StartReport},
		{name: "wrong top-level type", raw: `["GREETING"]`, intent: Unknown, kind: FailureParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.Parse(tt.raw)
			if res.Intent != tt.intent {
				t.Fatalf("intent = %s, want %s", res.Intent, tt.intent)
			}
			if res.Raw != tt.raw {
				t.Fatalf("raw not retained: %q", res.Raw)
			}
			if tt.kind == "" {
				if res.Failed() {
					t.Fatalf("unexpected failure: %+v", res.Failure)
				}
				return
			}
			if !res.Failed() || res.Failure.Kind != tt.kind {
				t.Fatalf("failure = %+v, want kind %s", res.Failure, tt.kind)
			}
			if len(res.Entities) != 0 {
				t.Fatalf("failed result should have no entities: %v", res.Entities)
			}
		})
	}
}

func TestParseScalarEntities(t *testing.T) {
	c := NewClassifier(nil, nil)
	res := c.Parse(`{"intent": "START_REPORT", "entities": {"location": "Boston", "victim_age": 30, "victim_count": 1, "victim_sex": ["M"], "description": true}}`)

	if res.Intent != StartReport || res.Failed() {
		t.Fatalf("numeric entities must not fail the classification: %+v", res)
	}
	want := map[string]string{"location": "Boston", "victim_age": "30", "victim_count": "1", "description": "true"}
	if len(res.Entities) != len(want) {
		t.Fatalf("entities = %v, want %v", res.Entities, want)
	}
	for k, v := range want {
		if res.Entities[k] != v {
			t.Fatalf("entity %s = %q, want %q", k, res.Entities[k], v)
		}
	}
}

func TestClassifyProviderFailures(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
		kind FailureKind
	}{
		{name: "error", gen: &fakeGenerator{err: errors.New("connection refused")}, kind: FailureProvider},
		{name: "blocked", gen: &fakeGenerator{completion: llm.Completion{Blocked: true, BlockReason: "refusal"}}, kind: FailureBlocked},
		{name: "panic", gen: &fakeGenerator{panicMsg: "boom"}, kind: FailureProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			met := metrics.New()
			res := NewClassifier(tt.gen, met).Classify(context.Background(), "hola")
			if res.Intent != Unknown || !res.Failed() || res.Failure.Kind != tt.kind {
				t.Fatalf("unexpected result: %+v", res)
			}
			if got := testutil.ToFloat64(met.IntentsTotal.WithLabelValues("UNKNOWN")); got != 1 {
				t.Fatalf("expected UNKNOWN counted once, got %v", got)
			}
		})
	}
}

func TestClassifyWithoutGenerator(t *testing.T) {
	res := NewClassifier(nil, nil).Classify(context.Background(), "hola")
	if res.Intent != Unknown || res.Failure == nil || res.Failure.Kind != FailureProvider {
		t.Fatalf("unexpected result: %+v", res)
	}
}
