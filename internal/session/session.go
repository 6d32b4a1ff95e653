package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prepdesk/attempt-engine/internal/events"
	"github.com/prepdesk/attempt-engine/internal/models"
	"github.com/prepdesk/attempt-engine/internal/testservice"
)

// submitTimeout bounds the final network call on the auto-submit path, which
// has no request context to inherit from.
const submitTimeout = 30 * time.Second

// Session is the aggregate root of one running attempt. It owns the answer
// store, the review-mark store, the autosave buffer and the countdown; none
// of them are shared across attempts. All mutation is serialized by mu:
// user events, flush completions and the expiry callback all take it.
type Session struct {
	AttemptID string
	TestID    string
	OwnerID   string
	Title     string
	EndTime   time.Time
	Questions []models.Question

	mu      sync.Mutex
	answers *AnswerStore
	reviews *ReviewMarkStore
	buffer  *AutosaveBuffer

	countdown *Countdown

	// submitting is acquired before the submit network call begins and is
	// released only on failure; success leaves it held forever (terminal).
	submitting atomic.Bool
	terminal   atomic.Bool
	resultID   string

	client    testservice.Client
	publisher events.EventPublisher
	logger    *slog.Logger
}

// SelectAnswer upserts the user's choice, updates the palette state and
// enqueues the edit for autosave. The three effects are atomic with respect
// to other session events. When the dirty threshold is reached the flush runs
// in the background; its failure only surfaces through SaveStatus.
func (s *Session) SelectAnswer(questionID, selected string, timeSpent int) error {
	if s.terminal.Load() {
		return ErrSessionTerminal
	}
	if !s.hasQuestion(questionID) {
		return fmt.Errorf("%w: %s", ErrQuestionNotFound, questionID)
	}

	entry := models.AnswerEntry{Selected: selected, TimeSpent: timeSpent}

	// Store and buffer must move together: upserting the buffer outside mu
	// would let two racing edits leave it holding the older value, which a
	// flush would then persist as the server's truth.
	s.mu.Lock()
	s.answers.Upsert(questionID, entry)
	shouldFlush := s.buffer.Upsert(questionID, entry)
	s.mu.Unlock()

	if shouldFlush {
		go s.flushPending()
	}
	return nil
}

// ToggleReview flips the review mark and persists it fire-and-forget; a
// persist failure is logged and never blocks answering or navigation.
func (s *Session) ToggleReview(questionID string) (bool, error) {
	if s.terminal.Load() {
		return false, ErrSessionTerminal
	}
	if !s.hasQuestion(questionID) {
		return false, fmt.Errorf("%w: %s", ErrQuestionNotFound, questionID)
	}

	s.mu.Lock()
	marked := s.reviews.Toggle(questionID)
	s.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()
		if err := s.client.MarkForReview(ctx, s.AttemptID, questionID, marked); err != nil {
			s.logger.Warn("review mark persist failed",
				"attempt_id", s.AttemptID,
				"question_id", questionID,
				"error", err)
		}
	}()

	return marked, nil
}

// ManualSave flushes the entire current answer store, regardless of what is
// pending. It queues behind any automatic flush already on the wire rather
// than being skipped. Failure is reflected in SaveStatus only; the buffer
// keeps its entries for the next trigger.
func (s *Session) ManualSave(ctx context.Context) models.SaveStatus {
	if s.terminal.Load() {
		return s.buffer.Status()
	}

	s.mu.Lock()
	full := s.answers.Snapshot()
	s.mu.Unlock()

	if err := s.buffer.FlushAll(ctx, full, s.saveProgress); err != nil {
		s.logger.Warn("manual save failed", "attempt_id", s.AttemptID, "error", err)
	}
	return s.buffer.Status()
}

// Submit builds the final payload from the full answer store and submits it.
// The in-flight latch guarantees at most one submission regardless of whether
// timer expiry and a user-confirmed submit race; the loser gets
// ErrSubmissionInFlight. On failure the latch is released so the user can
// retry; the answer store is untouched either way.
func (s *Session) Submit(ctx context.Context, endReason string) (string, error) {
	if s.terminal.Load() {
		return "", ErrSessionTerminal
	}
	if !s.submitting.CompareAndSwap(false, true) {
		return "", ErrSubmissionInFlight
	}
	return s.submit(ctx, endReason)
}

// submit runs the submission with the in-flight latch already held.
func (s *Session) submit(ctx context.Context, endReason string) (string, error) {
	payload := s.submissionPayload()
	s.logger.Info("submitting attempt",
		"attempt_id", s.AttemptID,
		"answers", len(payload),
		"end_reason", endReason)

	result, err := s.client.SubmitAttempt(ctx, s.AttemptID, payload)
	if err != nil {
		s.submitting.Store(false)
		s.logger.Error("attempt submission failed", "attempt_id", s.AttemptID, "error", err)
		return "", fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}

	s.mu.Lock()
	s.resultID = result.ResultID
	s.mu.Unlock()
	s.terminal.Store(true)
	s.countdown.Stop()

	s.publish(events.TypeAttemptSubmitted, &events.AttemptEvent{
		AttemptID:     s.AttemptID,
		TestID:        s.TestID,
		UserID:        s.OwnerID,
		AnsweredCount: len(payload),
		ResultID:      result.ResultID,
		EndReason:     endReason,
	})

	s.logger.Info("attempt submitted",
		"attempt_id", s.AttemptID,
		"result_id", result.ResultID)
	return result.ResultID, nil
}

// submissionPayload emits one entry per answered question in question order;
// unanswered questions are omitted and the server treats them as unattempted.
func (s *Session) submissionPayload() []testservice.AnswerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]testservice.AnswerEntry, 0, s.answers.Len())
	for _, q := range s.Questions {
		if e, ok := s.answers.Get(q.ID); ok {
			out = append(out, testservice.AnswerEntry{
				QuestionID: q.ID,
				Selected:   e.Selected,
				TimeSpent:  e.TimeSpent,
			})
		}
	}
	return out
}

// expire is the countdown's terminal callback: auto-submit without any
// confirmation step. If the submission fails the session stays editable and
// the user can retry manually.
func (s *Session) expire() {
	if s.terminal.Load() {
		return
	}
	// Win the latch before announcing expiry. A user submission already on
	// the wire makes the deadline moot; it must not get an expired event
	// stacked on top of its submitted one.
	if !s.submitting.CompareAndSwap(false, true) {
		return
	}

	s.publish(events.TypeAttemptExpired, &events.AttemptEvent{
		AttemptID: s.AttemptID,
		TestID:    s.TestID,
		UserID:    s.OwnerID,
	})

	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	if _, err := s.submit(ctx, models.EndReasonTimeout); err != nil {
		s.logger.Error("auto-submit on expiry failed", "attempt_id", s.AttemptID, "error", err)
	}
}

// Remaining reports whole seconds until the deadline.
func (s *Session) Remaining() int {
	return s.countdown.Remaining()
}

func (s *Session) Terminal() bool {
	return s.terminal.Load()
}

func (s *Session) SaveStatus() models.SaveStatus {
	return s.buffer.Status()
}

// View renders the snapshot the frontend polls.
func (s *Session) View() *models.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := models.SessionActive
	if s.terminal.Load() {
		status = models.SessionSubmitted
	}

	view := &models.SessionView{
		AttemptID:        s.AttemptID,
		TestID:           s.TestID,
		Title:            s.Title,
		Status:           status,
		EndTime:          s.EndTime,
		RemainingSeconds: s.countdown.Remaining(),
		SaveStatus:       s.buffer.Status(),
		Questions:        make([]models.QuestionView, 0, len(s.Questions)),
		AnsweredCount:    s.answers.Len(),
		ResultID:         s.resultID,
	}

	for _, q := range s.Questions {
		qv := models.QuestionView{
			ID:            q.ID,
			Text:          q.Text,
			Options:       q.Options,
			Marks:         q.Marks,
			NegativeMarks: q.NegativeMarks,
			Marked:        s.reviews.Has(q.ID),
		}
		if e, ok := s.answers.Get(q.ID); ok {
			qv.Selected = e.Selected
			qv.TimeSpent = e.TimeSpent
		}
		qv.Status = models.DisplayStatusOf(s.answers.Has(q.ID), s.reviews.Has(q.ID))
		view.Questions = append(view.Questions, qv)
	}
	return view
}

// Close stops the countdown. An in-flight save or submit runs to completion;
// its state update lands on a session nobody reads anymore.
func (s *Session) Close() {
	s.countdown.Stop()
}

func (s *Session) hasQuestion(questionID string) bool {
	for _, q := range s.Questions {
		if q.ID == questionID {
			return true
		}
	}
	return false
}

func (s *Session) flushPending() {
	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()
	// Error handling lives in the buffer: failed entries stay pending and the
	// status indicator reports the failure.
	_ = s.buffer.FlushPending(ctx, s.saveProgress)
}

func (s *Session) saveProgress(ctx context.Context, entries []testservice.AnswerEntry) error {
	return s.client.SaveProgress(ctx, s.AttemptID, entries)
}

func (s *Session) publish(eventType string, data *events.AttemptEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(context.Background(), events.NewEvent(eventType, data)); err != nil {
		s.logger.Warn("event publish failed", "event_type", eventType, "error", err)
	}
}
