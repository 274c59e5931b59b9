package domain

import "time"

type ClassificationRecord struct {
	ID           int64
	UserID       string
	Intent       string
	EntityCount  int
	ErrorKind    string
	LLMProvider  string
	LLMModel     string
	ClassifiedAt time.Time
}

type SubmissionRecord struct {
	ID          int64
	UserID      string
	DraftID     string
	Attempt     int
	Success     bool
	AccidentID  string
	Error       string
	SubmittedAt time.Time
}

type AuditStats struct {
	TotalClassifications  int
	FailedClassifications int
	ByIntent              map[string]int
	TotalSubmissions      int
	FailedSubmissions     int
}
