package session

import "errors"

var (
	// Load errors are fatal to the attempt: the caller routes the user away
	// instead of rendering a half-initialized session.
	ErrLoadFailed       = errors.New("session: attempt load failed")
	ErrEmptyQuestionSet = errors.New("session: attempt has no questions")

	ErrSessionNotFound  = errors.New("session: not found")
	ErrNotOwner         = errors.New("session: attempt belongs to another user")
	ErrQuestionNotFound = errors.New("session: unknown question")

	// ErrSessionTerminal means the attempt was already submitted; no further
	// mutation is meaningful.
	ErrSessionTerminal = errors.New("session: attempt already submitted")

	// ErrSubmissionInFlight is returned to the loser of a submit race; the
	// winning submission is still running.
	ErrSubmissionInFlight = errors.New("session: submission already in flight")

	ErrSubmitFailed = errors.New("session: submission failed")
)
