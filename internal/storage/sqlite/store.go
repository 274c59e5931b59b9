package sqlite

import (
	"context"
	"database/sql"
	"time"

	"accidentbot/internal/domain"
)

// Store adapts the audit functions to the recorder interfaces the chat
// components depend on.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) RecordClassification(ctx context.Context, r domain.ClassificationRecord) error {
	return InsertClassification(ctx, s.db, r)
}

func (s *Store) RecordSubmission(ctx context.Context, r domain.SubmissionRecord) error {
	return InsertSubmission(ctx, s.db, r)
}

func (s *Store) Stats(since time.Time) (domain.AuditStats, error) {
	return GetAuditStats(s.db, since)
}

func (s *Store) DraftSubmissions(draftID string) ([]domain.SubmissionRecord, error) {
	return GetSubmissionsByDraft(s.db, draftID)
}
