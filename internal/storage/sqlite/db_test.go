package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"accidentbot/internal/domain"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "accidentbot-test.db")
	db, err := InitDB(dbPath)
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestInitDBIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	for i := 0; i < 2; i++ {
		db, err := InitDB(path)
		if err != nil {
			t.Fatalf("InitDB run %d failed: %v", i, err)
		}
		_ = db.Close()
	}
}

func TestAuditStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	classifications := []domain.ClassificationRecord{
		{UserID: "U1", Intent: "START_REPORT", EntityCount: 2, LLMProvider: "anthropic", LLMModel: "m", ClassifiedAt: base},
		{UserID: "U1", Intent: "START_REPORT", ClassifiedAt: base.Add(time.Minute)},
		{UserID: "U2", Intent: "UNKNOWN", ErrorKind: "parse", ClassifiedAt: base.Add(2 * time.Minute)},
		{UserID: "U3", Intent: "GREETING", ClassifiedAt: base.Add(-48 * time.Hour)},
	}
	for _, r := range classifications {
		if err := InsertClassification(ctx, db, r); err != nil {
			t.Fatalf("InsertClassification failed: %v", err)
		}
	}

	store := NewStore(db)
	submissions := []domain.SubmissionRecord{
		{UserID: "U1", DraftID: "d1", Attempt: 1, Success: false, Error: "timeout", SubmittedAt: base},
		{UserID: "U1", DraftID: "d1", Attempt: 2, Success: true, AccidentID: "77", SubmittedAt: base.Add(time.Minute)},
	}
	for _, r := range submissions {
		if err := store.RecordSubmission(ctx, r); err != nil {
			t.Fatalf("RecordSubmission failed: %v", err)
		}
	}

	stats, err := store.Stats(base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalClassifications != 3 {
		t.Fatalf("expected 3 classifications in window, got %d", stats.TotalClassifications)
	}
	if stats.ByIntent["START_REPORT"] != 2 || stats.ByIntent["UNKNOWN"] != 1 {
		t.Fatalf("unexpected per-intent counts: %v", stats.ByIntent)
	}
	if _, ok := stats.ByIntent["GREETING"]; ok {
		t.Fatal("records outside the window must be excluded")
	}
	if stats.FailedClassifications != 1 {
		t.Fatalf("expected 1 failed classification, got %d", stats.FailedClassifications)
	}
	if stats.TotalSubmissions != 2 || stats.FailedSubmissions != 1 {
		t.Fatalf("unexpected submission stats: %+v", stats)
	}
}

func TestStoreDraftSubmissions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := InsertSubmission(ctx, db, domain.SubmissionRecord{UserID: "U1", DraftID: "d1", Attempt: 2, Success: true, AccidentID: "9"}); err != nil {
		t.Fatalf("InsertSubmission failed: %v", err)
	}
	if err := InsertSubmission(ctx, db, domain.SubmissionRecord{UserID: "U1", DraftID: "d1", Attempt: 1, Error: "down"}); err != nil {
		t.Fatalf("InsertSubmission failed: %v", err)
	}
	if err := InsertSubmission(ctx, db, domain.SubmissionRecord{UserID: "U2", DraftID: "d2", Attempt: 1}); err != nil {
		t.Fatalf("InsertSubmission failed: %v", err)
	}

	got, err := NewStore(db).DraftSubmissions("d1")
	if err != nil {
		t.Fatalf("DraftSubmissions failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(got))
	}
	if got[0].Attempt != 1 || got[0].Error != "down" || got[1].AccidentID != "9" || !got[1].Success {
		t.Fatalf("unexpected attempts: %+v", got)
	}
	if got[0].SubmittedAt.IsZero() {
		t.Fatal("expected default submitted_at")
	}
}
