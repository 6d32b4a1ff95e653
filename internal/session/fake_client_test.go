package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prepdesk/attempt-engine/internal/models"
	"github.com/prepdesk/attempt-engine/internal/testservice"
)

type reviewCall struct {
	QuestionID string
	Flagged    bool
}

// fakeClient records every call and injects configured failures. submitGate,
// when set, holds SubmitAttempt open until the channel is closed, which lets
// tests race a second submission against an in-flight one.
type fakeClient struct {
	mu sync.Mutex

	sections []testservice.Section
	status   *testservice.AttemptStatus

	questionsErr error
	statusErr    error
	saveErr      error
	reviewErr    error
	submitErr    error

	questionsGate chan struct{}
	submitGate    chan struct{}

	questionCalls int
	saveCalls     [][]testservice.AnswerEntry
	reviewCalls   []reviewCall
	submitCalls   [][]testservice.AnswerEntry
}

func (f *fakeClient) StartAttempt(context.Context, string) (*testservice.StartAttemptResult, error) {
	return nil, testservice.ErrUnavailable
}

func (f *fakeClient) ResumeAttempt(context.Context, string) (*testservice.ResumeAttemptResult, error) {
	return nil, testservice.ErrUnavailable
}

func (f *fakeClient) GetQuestions(context.Context, string) ([]testservice.Section, error) {
	f.mu.Lock()
	gate := f.questionsGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.questionCalls++
	if f.questionsErr != nil {
		return nil, f.questionsErr
	}
	return f.sections, nil
}

func (f *fakeClient) GetAttemptStatus(context.Context, string) (*testservice.AttemptStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.status, nil
}

func (f *fakeClient) SaveProgress(_ context.Context, _ string, entries []testservice.AnswerEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saveCalls = append(f.saveCalls, append([]testservice.AnswerEntry(nil), entries...))
	return nil
}

func (f *fakeClient) MarkForReview(_ context.Context, _ string, questionID string, flagged bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reviewErr != nil {
		return f.reviewErr
	}
	f.reviewCalls = append(f.reviewCalls, reviewCall{QuestionID: questionID, Flagged: flagged})
	return nil
}

func (f *fakeClient) SubmitAttempt(_ context.Context, _ string, entries []testservice.AnswerEntry) (*testservice.SubmitResult, error) {
	f.mu.Lock()
	gate := f.submitGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitCalls = append(f.submitCalls, append([]testservice.AnswerEntry(nil), entries...))
	return &testservice.SubmitResult{ResultID: "result-1"}, nil
}

func (f *fakeClient) setSaveErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveErr = err
}

func (f *fakeClient) setSubmitErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitErr = err
}

func (f *fakeClient) setQuestionsErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questionsErr = err
}

func (f *fakeClient) saveCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saveCalls)
}

func (f *fakeClient) lastSaveCall() []testservice.AnswerEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saveCalls) == 0 {
		return nil
	}
	return f.saveCalls[len(f.saveCalls)-1]
}

func (f *fakeClient) reviewCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reviewCalls)
}

func (f *fakeClient) submitCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitCalls)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testQuestions(ids ...string) []models.Question {
	out := make([]models.Question, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Question{
			ID:   id,
			Text: "question " + id,
			Options: []models.Option{
				{Key: "A", Text: "first"},
				{Key: "B", Text: "second"},
			},
			Marks:         4,
			NegativeMarks: 1,
		})
	}
	return out
}

func newTestSession(client testservice.Client, questions []models.Question, deadline time.Time, threshold int) *Session {
	logger := testLogger()
	s := &Session{
		AttemptID: "att-1",
		TestID:    "test-1",
		OwnerID:   "user-1",
		Title:     "Mock Test 1",
		EndTime:   deadline,
		Questions: questions,
		answers:   NewAnswerStore(),
		reviews:   NewReviewMarkStore(),
		buffer:    NewAutosaveBuffer(threshold, logger),
		client:    client,
		logger:    logger,
	}
	s.countdown = NewCountdown(deadline, 10*time.Millisecond, s.expire)
	return s
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}
