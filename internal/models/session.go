package models

// SessionStatus tracks the lifecycle of an attempt session inside this
// service. A terminal session never returns to active editing.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionSubmitted SessionStatus = "submitted"
)

const (
	EndReasonCompleted = "completed"
	EndReasonTimeout   = "time_out"
)

// SaveStatus drives the UI save indicator only; it has no effect on
// correctness.
type SaveStatus string

const (
	SaveIdle   SaveStatus = "idle"
	SaveSaving SaveStatus = "saving"
	SaveSaved  SaveStatus = "saved"
	SaveError  SaveStatus = "error"
)

// AnswerEntry is the engine's record of a selected answer.
type AnswerEntry struct {
	Selected  string `json:"selected"`
	TimeSpent int    `json:"time_spent"` // seconds
}

// DisplayStatus is the palette state of a question in the UI.
type DisplayStatus string

const (
	StatusAnswered       DisplayStatus = "answered"
	StatusAnsweredMarked DisplayStatus = "answered_and_marked"
	StatusMarkedOnly     DisplayStatus = "marked_only"
	StatusUnanswered     DisplayStatus = "unanswered"
)

// DisplayStatusOf maps (answered, marked) to the palette state. Total over
// all four combinations.
func DisplayStatusOf(answered, marked bool) DisplayStatus {
	switch {
	case answered && marked:
		return StatusAnsweredMarked
	case answered:
		return StatusAnswered
	case marked:
		return StatusMarkedOnly
	default:
		return StatusUnanswered
	}
}
