// Package testservice is the client for the remote Test Service, which owns
// the question catalog, attempt persistence and scoring. Every durable write
// the engine makes goes through this interface; the service treats repeated
// identical writes as idempotent upserts.
package testservice

import (
	"context"
	"errors"
	"time"

	"github.com/prepdesk/attempt-engine/internal/models"
)

var (
	ErrNotFound    = errors.New("testservice: not found")
	ErrUnavailable = errors.New("testservice: unavailable")
)

// AnswerEntry is the wire form of one saved or submitted answer.
type AnswerEntry struct {
	QuestionID string `json:"question_id"`
	Selected   string `json:"selected_answer"`
	TimeSpent  int    `json:"time_spent"`
}

type StartAttemptResult struct {
	AttemptID string            `json:"attempt_id"`
	TestID    string            `json:"test_id"`
	Title     string            `json:"title"`
	Questions []models.Question `json:"questions"`
	EndTime   time.Time         `json:"end_timestamp"`
}

type ResumeAttemptResult struct {
	TestID string `json:"test_id"`
	Title  string `json:"title"`
	// Questions carry saved_answer / is_marked_for_review from the persisted
	// copy of the attempt.
	Questions []models.Question `json:"questions"`
	EndTime   time.Time         `json:"end_timestamp"`
}

type Section struct {
	Name      string            `json:"name"`
	Questions []models.Question `json:"questions"`
}

type AttemptStatus struct {
	RemainingSeconds int       `json:"remaining_time"`
	EndTime          time.Time `json:"end_timestamp"`
	Title            string    `json:"title"`
}

type SubmitResult struct {
	ResultID string `json:"result_id"`
}

// Client is the contract the engine holds against the Test Service. All calls
// are idempotent from the collaborator's side; submitAttempt additionally
// rejects a second submission for an already-submitted attempt.
type Client interface {
	StartAttempt(ctx context.Context, testID string) (*StartAttemptResult, error)
	ResumeAttempt(ctx context.Context, attemptID string) (*ResumeAttemptResult, error)
	GetQuestions(ctx context.Context, attemptID string) ([]Section, error)
	GetAttemptStatus(ctx context.Context, attemptID string) (*AttemptStatus, error)
	SaveProgress(ctx context.Context, attemptID string, entries []AnswerEntry) error
	MarkForReview(ctx context.Context, attemptID, questionID string, flagged bool) error
	SubmitAttempt(ctx context.Context, attemptID string, entries []AnswerEntry) (*SubmitResult, error)
}
