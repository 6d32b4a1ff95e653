package models

import "time"

// ===== REQUESTS =====

type StartAttemptRequest struct {
	TestID string `json:"test_id" validate:"required"`
}

type SelectAnswerRequest struct {
	QuestionID string `json:"question_id" validate:"required"`
	Selected   string `json:"selected" validate:"required"`
	TimeSpent  int    `json:"time_spent" validate:"min=0"`
}

type ToggleReviewRequest struct {
	QuestionID string `json:"question_id" validate:"required"`
}

type SubmitRequest struct {
	// User-triggered submission must pass through an explicit confirm step;
	// the auto-submit path never uses this request type.
	Confirmed bool `json:"confirmed" validate:"required,eq=true"`
}

// ===== RESPONSES =====

type AttemptHandoffResponse struct {
	AttemptID string `json:"attempt_id"`
}

type QuestionView struct {
	ID            string        `json:"id"`
	Text          string        `json:"text"`
	Options       []Option      `json:"options"`
	Marks         float64       `json:"marks"`
	NegativeMarks float64       `json:"negative_marks"`
	Selected      string        `json:"selected,omitempty"`
	TimeSpent     int           `json:"time_spent,omitempty"`
	Marked        bool          `json:"marked"`
	Status        DisplayStatus `json:"status"`
}

// SessionView is the snapshot the frontend polls while an attempt is open.
type SessionView struct {
	AttemptID        string         `json:"attempt_id"`
	TestID           string         `json:"test_id"`
	Title            string         `json:"title"`
	Status           SessionStatus  `json:"status"`
	EndTime          time.Time      `json:"end_time"`
	RemainingSeconds int            `json:"remaining_seconds"`
	SaveStatus       SaveStatus     `json:"save_status"`
	Questions        []QuestionView `json:"questions"`
	AnsweredCount    int            `json:"answered_count"`
	ResultID         string         `json:"result_id,omitempty"`
}

type SubmitResponse struct {
	ResultID string `json:"result_id"`
}
