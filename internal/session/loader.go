package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prepdesk/attempt-engine/internal/events"
	"github.com/prepdesk/attempt-engine/internal/handoff"
	"github.com/prepdesk/attempt-engine/internal/models"
	"github.com/prepdesk/attempt-engine/internal/testservice"
)

// Loader materializes a Session for an attempt. Three sources, checked in
// order:
//
//  1. fresh handoff: the start endpoint already fetched everything
//  2. resume handoff: the resume endpoint already fetched everything
//  3. cold fetch: nothing handed off (direct open, process restart);
//     fetch questions and status from the test service
//
// Handoff entries are consumed on read, so a reopened session always falls
// through to the cold path and gets server truth.
type Loader struct {
	client    testservice.Client
	channel   handoff.Channel
	publisher events.EventPublisher

	autosaveThreshold int
	fallbackDuration  time.Duration
	tickInterval      time.Duration

	logger *slog.Logger
}

func NewLoader(client testservice.Client, channel handoff.Channel, publisher events.EventPublisher, autosaveThreshold int, fallbackDuration time.Duration, logger *slog.Logger) *Loader {
	return &Loader{
		client:            client,
		channel:           channel,
		publisher:         publisher,
		autosaveThreshold: autosaveThreshold,
		fallbackDuration:  fallbackDuration,
		tickInterval:      time.Second,
		logger:            logger,
	}
}

// Load builds and starts a Session for the attempt. Any failure is fatal to
// the open: no partially initialized session is ever returned.
func (l *Loader) Load(ctx context.Context, attemptID, ownerID string) (*Session, error) {
	payload, fresh, err := l.takeHandoff(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	if payload == nil {
		payload, err = l.coldFetch(ctx, attemptID)
		if err != nil {
			return nil, err
		}
	}

	if len(payload.Questions) == 0 {
		return nil, ErrEmptyQuestionSet
	}

	sess := l.build(payload, ownerID)
	sess.countdown.Start()

	eventType := events.TypeAttemptResumed
	if fresh {
		eventType = events.TypeAttemptStarted
	}
	sess.publish(eventType, &events.AttemptEvent{
		AttemptID: sess.AttemptID,
		TestID:    sess.TestID,
		UserID:    ownerID,
	})

	l.logger.Info("session loaded",
		"attempt_id", attemptID,
		"questions", len(sess.Questions),
		"answered", sess.answers.Len(),
		"remaining_seconds", sess.Remaining(),
		"fresh", fresh)
	return sess, nil
}

// takeHandoff consumes the fresh entry first, then the resume entry. A
// missing entry is the normal case, not an error.
func (l *Loader) takeHandoff(ctx context.Context, attemptID string) (*handoff.Payload, bool, error) {
	payload, err := l.channel.Take(ctx, handoff.FreshKey(attemptID))
	if err == nil {
		return payload, true, nil
	}
	if !errors.Is(err, handoff.ErrNotFound) {
		return nil, false, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	payload, err = l.channel.Take(ctx, handoff.ResumeKey(attemptID))
	if err == nil {
		return payload, false, nil
	}
	if !errors.Is(err, handoff.ErrNotFound) {
		return nil, false, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}
	return nil, false, nil
}

// coldFetch rebuilds the payload from the test service. A question fetch
// failure is fatal; a status fetch failure degrades to a fallback deadline so
// a transient status outage never locks the user out of their attempt.
func (l *Loader) coldFetch(ctx context.Context, attemptID string) (*handoff.Payload, error) {
	sections, err := l.client.GetQuestions(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	questions := make([]models.Question, 0)
	for _, sec := range sections {
		questions = append(questions, sec.Questions...)
	}

	payload := &handoff.Payload{
		AttemptID: attemptID,
		Questions: questions,
	}

	status, err := l.client.GetAttemptStatus(ctx, attemptID)
	switch {
	case err != nil:
		l.logger.Warn("attempt status unavailable, using fallback duration",
			"attempt_id", attemptID,
			"fallback", l.fallbackDuration,
			"error", err)
		payload.EndTime = time.Now().Add(l.fallbackDuration)
	case !status.EndTime.IsZero():
		payload.EndTime = status.EndTime
		payload.Title = status.Title
	default:
		payload.EndTime = time.Now().Add(time.Duration(status.RemainingSeconds) * time.Second)
		payload.Title = status.Title
	}

	return payload, nil
}

// build seeds the stores from the payload's question snapshot, so a resumed
// session shows exactly what the server last saw.
func (l *Loader) build(payload *handoff.Payload, ownerID string) *Session {
	sess := &Session{
		AttemptID: payload.AttemptID,
		TestID:    payload.TestID,
		OwnerID:   ownerID,
		Title:     payload.Title,
		EndTime:   payload.EndTime,
		Questions: payload.Questions,

		answers: NewAnswerStore(),
		reviews: NewReviewMarkStore(),
		buffer:  NewAutosaveBuffer(l.autosaveThreshold, l.logger),

		client:    l.client,
		publisher: l.publisher,
		logger:    l.logger.With("attempt_id", payload.AttemptID),
	}

	for _, q := range payload.Questions {
		if q.SavedAnswer != "" {
			sess.answers.Upsert(q.ID, models.AnswerEntry{Selected: q.SavedAnswer})
		}
		if q.MarkedForReview {
			sess.reviews.Set(q.ID)
		}
	}

	sess.countdown = NewCountdown(payload.EndTime, l.tickInterval, sess.expire)
	return sess
}
