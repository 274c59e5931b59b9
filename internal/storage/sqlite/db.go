// Package sqlite is the local audit log: one row per classification and
// one row per report submission attempt.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"accidentbot/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS classification_log (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id       TEXT NOT NULL,
		intent        TEXT NOT NULL,
		entity_count  INTEGER NOT NULL DEFAULT 0,
		error_kind    TEXT DEFAULT '',
		llm_provider  TEXT DEFAULT '',
		llm_model     TEXT DEFAULT '',
		classified_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cl_date ON classification_log(classified_at);
	CREATE INDEX IF NOT EXISTS idx_cl_user ON classification_log(user_id);

	CREATE TABLE IF NOT EXISTS submission_log (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id      TEXT NOT NULL,
		draft_id     TEXT NOT NULL,
		attempt      INTEGER NOT NULL DEFAULT 1,
		success      INTEGER NOT NULL DEFAULT 0,
		accident_id  TEXT DEFAULT '',
		error        TEXT DEFAULT '',
		submitted_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sl_date ON submission_log(submitted_at);
	CREATE INDEX IF NOT EXISTS idx_sl_draft ON submission_log(draft_id);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func InsertClassification(ctx context.Context, db *sql.DB, r domain.ClassificationRecord) error {
	if r.ClassifiedAt.IsZero() {
		r.ClassifiedAt = time.Now()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO classification_log (user_id, intent, entity_count, error_kind, llm_provider, llm_model, classified_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.Intent, r.EntityCount, r.ErrorKind, r.LLMProvider, r.LLMModel, r.ClassifiedAt.UTC(),
	)
	return err
}

func InsertSubmission(ctx context.Context, db *sql.DB, r domain.SubmissionRecord) error {
	if r.SubmittedAt.IsZero() {
		r.SubmittedAt = time.Now()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO submission_log (user_id, draft_id, attempt, success, accident_id, error, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.DraftID, r.Attempt, r.Success, r.AccidentID, r.Error, r.SubmittedAt.UTC(),
	)
	return err
}

func GetSubmissionsByDraft(db *sql.DB, draftID string) ([]domain.SubmissionRecord, error) {
	rows, err := db.Query(
		`SELECT id, user_id, draft_id, attempt, success, accident_id, error, submitted_at
		 FROM submission_log WHERE draft_id = ? ORDER BY attempt, id`,
		draftID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SubmissionRecord
	for rows.Next() {
		var r domain.SubmissionRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.DraftID, &r.Attempt, &r.Success, &r.AccidentID, &r.Error, &r.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func GetAuditStats(db *sql.DB, since time.Time) (domain.AuditStats, error) {
	s := domain.AuditStats{ByIntent: map[string]int{}}
	since = since.UTC()

	rows, err := db.Query(
		`SELECT intent, COUNT(*), COALESCE(SUM(CASE WHEN error_kind != '' THEN 1 ELSE 0 END), 0)
		 FROM classification_log WHERE classified_at >= ?
		 GROUP BY intent ORDER BY intent`,
		since,
	)
	if err != nil {
		return s, err
	}
	defer rows.Close()
	for rows.Next() {
		var intent string
		var count, failed int
		if err := rows.Scan(&intent, &count, &failed); err != nil {
			return s, err
		}
		s.ByIntent[intent] = count
		s.TotalClassifications += count
		s.FailedClassifications += failed
	}
	if err := rows.Err(); err != nil {
		return s, err
	}

	err = db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0)
		 FROM submission_log WHERE submitted_at >= ?`,
		since,
	).Scan(&s.TotalSubmissions, &s.FailedSubmissions)
	return s, err
}
