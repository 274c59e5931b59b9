package responder

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"accidentbot/internal/catalog"
	"accidentbot/internal/domain"
	"accidentbot/internal/integrations/accidentapi"
	"accidentbot/internal/integrations/llm"
	"accidentbot/internal/intent"
	"accidentbot/internal/metrics"
	"accidentbot/internal/session"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeGenerator struct {
	completion llm.Completion
	err        error
	requests   []llm.Request
}

func (f *fakeGenerator) Complete(_ context.Context, req llm.Request) (llm.Completion, error) {
	f.requests = append(f.requests, req)
	return f.completion, f.err
}

func (f *fakeGenerator) Provider() string { return "fake" }
func (f *fakeGenerator) Model() string    { return "fake-1" }

type fakeQuerier struct {
	records []json.RawMessage
	err     error
	filters []domain.AccidentFilter
}

func (f *fakeQuerier) QueryAccidents(_ context.Context, filter domain.AccidentFilter) ([]json.RawMessage, error) {
	f.filters = append(f.filters, filter)
	return f.records, f.err
}

var fixedNow = time.Date(2024, 5, 21, 3, 0, 0, 0, time.UTC)

func newTestResponder(t *testing.T, gen llm.Generator, q AccidentQuerier, met *metrics.Metrics) *Responder {
	t.Helper()
	loc, err := time.LoadLocation("America/Bogota")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return New(Options{
		Generator:       gen,
		Querier:         q,
		Catalog:         catalog.Default(),
		Location:        loc,
		Now:             func() time.Time { return fixedNow },
		HistoryMaxTurns: 4,
		MaxTokens:       256,
		Metrics:         met,
	})
}

func lastUserText(t *testing.T, req llm.Request) string {
	t.Helper()
	if len(req.Messages) == 0 {
		t.Fatal("request has no messages")
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != llm.RoleUser {
		t.Fatalf("last message role = %s", last.Role)
	}
	return last.Text
}

func TestQueryWithoutResolvableEntitiesAsksForClarification(t *testing.T) {
	gen := &fakeGenerator{completion: llm.Completion{Text: "Which neighbourhood?"}}
	q := &fakeQuerier{}
	r := newTestResponder(t, gen, q, nil)
	sess := &session.Session{UserID: "U1"}

	res := intent.Result{Intent: intent.QueryAccident, Entities: domain.Entities{"date": "yesterday"}}
	reply := r.Respond(context.Background(), sess, "any accidents?", res)

	if reply.Text != "Which neighbourhood?" || reply.StartReport {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if len(q.filters) != 0 {
		t.Fatalf("expected no query call, got %d", len(q.filters))
	}
	if len(gen.requests) != 1 {
		t.Fatalf("expected one generation call, got %d", len(gen.requests))
	}
	text := lastUserText(t, gen.requests[0])
	if !strings.HasPrefix(text, "any accidents?") || !strings.Contains(text, "info_consulta") || !strings.Contains(text, "More details are needed") {
		t.Fatalf("expected clarification context block, got %q", text)
	}
	if strings.Contains(text, "accidentes_encontrados") {
		t.Fatal("no records should be injected")
	}
}

func TestQueryOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		querier *fakeQuerier
		want    string
		success bool
	}{
		{
			name:    "records",
			querier: &fakeQuerier{records: []json.RawMessage{json.RawMessage(`{"id": 7, "direccion_aproximada": "Calle 72"}`)}},
			want:    "accidentes_encontrados",
			success: true,
		},
		{name: "empty", querier: &fakeQuerier{}, want: noRecordsNote, success: true},
		{
			name:    "error",
			querier: &fakeQuerier{err: &accidentapi.APIError{StatusCode: 503, Detail: "service unavailable"}},
			want:    `"api_error_consulta": "service unavailable"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{completion: llm.Completion{Text: "ok"}}
			met := metrics.New()
			r := newTestResponder(t, gen, tt.querier, met)
			sess := &session.Session{UserID: "U1"}

			res := intent.Result{Intent: intent.QueryAccident, Entities: domain.Entities{"location": "Calle 72"}}
			r.Respond(context.Background(), sess, "accidents on calle 72?", res)

			if len(tt.querier.filters) != 1 || tt.querier.filters[0].LocationContains != "Calle 72" {
				t.Fatalf("expected one query with location filter, got %+v", tt.querier.filters)
			}
			text := lastUserText(t, gen.requests[0])
			if !strings.Contains(text, tt.want) || !strings.Contains(text, "--- End of context ---") {
				t.Fatalf("context block missing %q: %q", tt.want, text)
			}
			outcome := "error"
			if tt.success {
				outcome = "success"
			}
			if got := testutil.ToFloat64(met.QueriesTotal.WithLabelValues(outcome)); got != 1 {
				t.Fatalf("expected %s query counted, got %v", outcome, got)
			}
		})
	}
}

func TestBuildFilter(t *testing.T) {
	r := newTestResponder(t, nil, nil, nil)

	f := r.BuildFilter(domain.Entities{
		"location":      " Boston ",
		"date":          "HOY",
		"accident_type": "choque",
		"gravity":       "Muerto",
	})
	// 03:00 UTC on the 21st is still the 20th in Bogota.
	if f.LocationContains != "Boston" || f.Day != "2024-05-20" || f.AccidentTypeID != 1 || f.GravityID != 2 {
		t.Fatalf("unexpected filter: %+v", f)
	}

	f = r.BuildFilter(domain.Entities{"date": "last week", "accident_type": "meteor"})
	if !f.Empty() {
		t.Fatalf("unresolvable entities should give an empty filter: %+v", f)
	}
}

func TestOtherIntentsHaveNoContext(t *testing.T) {
	gen := &fakeGenerator{completion: llm.Completion{Text: "Hello!"}}
	q := &fakeQuerier{}
	r := newTestResponder(t, gen, q, nil)
	sess := &session.Session{UserID: "U1"}

	for _, it := range []intent.Intent{intent.Greeting, intent.GeneralQuestion, intent.Unknown} {
		r.Respond(context.Background(), sess, "hola", intent.Result{Intent: it, Entities: domain.Entities{"location": "Boston"}})
	}
	if len(q.filters) != 0 {
		t.Fatal("non-query intents must not call the query API")
	}
	for _, req := range gen.requests {
		if strings.Contains(lastUserText(t, req), "Database context") {
			t.Fatal("non-query intents must not carry a context block")
		}
		if req.System == "" || req.MaxTokens != 256 {
			t.Fatalf("unexpected request: %+v", req)
		}
	}
}

func TestStartReportHandsOffEntities(t *testing.T) {
	gen := &fakeGenerator{}
	r := newTestResponder(t, gen, nil, nil)
	sess := &session.Session{UserID: "U1"}
	entities := domain.Entities{"location": "Centro"}

	reply := r.Respond(context.Background(), sess, "I want to report", intent.Result{Intent: intent.StartReport, Entities: entities})

	if !reply.StartReport || reply.Text != "" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if sess.PendingEntities["location"] != "Centro" {
		t.Fatalf("pending entities not set: %v", sess.PendingEntities)
	}
	entities["location"] = "mutated"
	if sess.PendingEntities["location"] != "Centro" {
		t.Fatal("pending entities must be a copy")
	}
	if len(gen.requests) != 0 || len(sess.History) != 0 {
		t.Fatal("start report must not generate or touch history")
	}
}

func TestHistoryIsSentAndTrimmed(t *testing.T) {
	gen := &fakeGenerator{completion: llm.Completion{Text: "reply"}}
	r := newTestResponder(t, gen, nil, nil)
	sess := &session.Session{UserID: "U1"}

	for _, msg := range []string{"one", "two", "three"} {
		r.Respond(context.Background(), sess, msg, intent.Result{Intent: intent.GeneralQuestion})
	}

	if len(sess.History) != 4 {
		t.Fatalf("expected history trimmed to 4 turns, got %d", len(sess.History))
	}
	if sess.History[0].Text != "two" || sess.History[0].Role != session.RoleUser {
		t.Fatalf("oldest pair should be dropped, got %+v", sess.History[0])
	}
	third := gen.requests[2]
	if len(third.Messages) != 5 || third.Messages[0].Text != "one" || third.Messages[1].Role != llm.RoleAssistant {
		t.Fatalf("third request should carry prior history: %+v", third.Messages)
	}
}

func TestGenerationFailures(t *testing.T) {
	t.Run("blocked", func(t *testing.T) {
		gen := &fakeGenerator{completion: llm.Completion{Blocked: true, BlockReason: "content_filter"}}
		r := newTestResponder(t, gen, nil, nil)
		sess := &session.Session{UserID: "U1"}

		reply := r.Respond(context.Background(), sess, "something", intent.Result{Intent: intent.GeneralQuestion})
		if !strings.Contains(reply.Text, "content restriction (content_filter)") {
			t.Fatalf("unexpected blocked reply: %q", reply.Text)
		}
		if len(sess.History) != 2 || sess.History[1].Text != reply.Text {
			t.Fatalf("blocked apology should be recorded: %+v", sess.History)
		}
	})

	t.Run("provider error", func(t *testing.T) {
		gen := &fakeGenerator{err: errors.New("timeout")}
		met := metrics.New()
		r := newTestResponder(t, gen, nil, met)
		sess := &session.Session{UserID: "U1"}

		reply := r.Respond(context.Background(), sess, "something", intent.Result{Intent: intent.GeneralQuestion})
		if reply.Text != technicalReply {
			t.Fatalf("unexpected reply: %q", reply.Text)
		}
		if len(sess.History) != 0 {
			t.Fatal("history must be unchanged after a provider error")
		}
		if got := testutil.ToFloat64(met.GenerationsTotal.WithLabelValues("respond", "error")); got != 1 {
			t.Fatalf("expected error generation counted, got %v", got)
		}
	})

	t.Run("empty completion", func(t *testing.T) {
		gen := &fakeGenerator{completion: llm.Completion{Text: "  "}}
		r := newTestResponder(t, gen, nil, nil)
		reply := r.Respond(context.Background(), &session.Session{UserID: "U1"}, "x", intent.Result{Intent: intent.Greeting})
		if reply.Text != technicalReply {
			t.Fatalf("unexpected reply: %q", reply.Text)
		}
	})
}
