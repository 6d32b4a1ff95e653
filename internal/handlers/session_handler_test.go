package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prepdesk/attempt-engine/internal/config"
	"github.com/prepdesk/attempt-engine/internal/handoff"
	"github.com/prepdesk/attempt-engine/internal/models"
	"github.com/prepdesk/attempt-engine/internal/session"
	"github.com/prepdesk/attempt-engine/internal/testservice"
	"github.com/prepdesk/attempt-engine/internal/utils"
	"github.com/prepdesk/attempt-engine/internal/validator"
)

// stubClient returns fixed attempt data; the handler tests exercise HTTP
// behavior, not the test service protocol.
type stubClient struct {
	startErr error
}

func (s *stubClient) StartAttempt(_ context.Context, testID string) (*testservice.StartAttemptResult, error) {
	if s.startErr != nil {
		return nil, s.startErr
	}
	return &testservice.StartAttemptResult{
		AttemptID: "att-1",
		TestID:    testID,
		Title:     "Mock Test 1",
		Questions: stubQuestions(),
		EndTime:   time.Now().Add(time.Hour),
	}, nil
}

func (s *stubClient) ResumeAttempt(context.Context, string) (*testservice.ResumeAttemptResult, error) {
	return &testservice.ResumeAttemptResult{
		TestID:    "test-1",
		Title:     "Mock Test 1",
		Questions: stubQuestions(),
		EndTime:   time.Now().Add(time.Hour),
	}, nil
}

func (s *stubClient) GetQuestions(context.Context, string) ([]testservice.Section, error) {
	return []testservice.Section{{Name: "General", Questions: stubQuestions()}}, nil
}

func (s *stubClient) GetAttemptStatus(context.Context, string) (*testservice.AttemptStatus, error) {
	return &testservice.AttemptStatus{EndTime: time.Now().Add(time.Hour), Title: "Mock Test 1"}, nil
}

func (s *stubClient) SaveProgress(context.Context, string, []testservice.AnswerEntry) error {
	return nil
}

func (s *stubClient) MarkForReview(context.Context, string, string, bool) error {
	return nil
}

func (s *stubClient) SubmitAttempt(context.Context, string, []testservice.AnswerEntry) (*testservice.SubmitResult, error) {
	return &testservice.SubmitResult{ResultID: "res-1"}, nil
}

func stubQuestions() []models.Question {
	return []models.Question{
		{ID: "q1", Text: "first", Options: []models.Option{{Key: "A"}, {Key: "B"}}},
		{ID: "q2", Text: "second", Options: []models.Option{{Key: "A"}, {Key: "B"}}},
	}
}

func newTestRouter(t *testing.T, client testservice.Client) (*gin.Engine, handoff.Channel) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	slogLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	logger := utils.NewSlogLogger(slogLogger)
	channel := handoff.NewMemoryChannel(time.Minute)
	loader := session.NewLoader(client, channel, nil, 2, time.Hour, slogLogger)
	manager := session.NewManager(loader, slogLogger)

	// Empty Casdoor config: auth falls back to the X-User-ID header.
	hm := NewHandlerManager(manager, client, channel, validator.New(), logger, config.CasdoorConfig{})

	router := gin.New()
	SetupMiddleware(router, logger)
	hm.SetupRoutes(router)
	return router, channel
}

func doRequest(router *gin.Engine, method, path string, body any, userID string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestStartAttemptStagesHandoff(t *testing.T) {
	router, channel := newTestRouter(t, &stubClient{})

	w := doRequest(router, http.MethodPost, "/api/v1/attempts/start",
		models.StartAttemptRequest{TestID: "test-1"}, "user-1")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp models.AttemptHandoffResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AttemptID != "att-1" {
		t.Errorf("AttemptID = %q, want att-1", resp.AttemptID)
	}

	payload, err := channel.Take(context.Background(), handoff.FreshKey("att-1"))
	if err != nil {
		t.Fatalf("handoff not staged: %v", err)
	}
	if len(payload.Questions) != 2 || payload.Title != "Mock Test 1" {
		t.Errorf("staged payload = %+v", payload)
	}
}

func TestStartAttemptRequiresTestID(t *testing.T) {
	router, _ := newTestRouter(t, &stubClient{})

	w := doRequest(router, http.MethodPost, "/api/v1/attempts/start",
		models.StartAttemptRequest{}, "user-1")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestStartAttemptUpstreamFailure(t *testing.T) {
	router, _ := newTestRouter(t, &stubClient{startErr: testservice.ErrUnavailable})

	w := doRequest(router, http.MethodPost, "/api/v1/attempts/start",
		models.StartAttemptRequest{TestID: "test-1"}, "user-1")
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	router, _ := newTestRouter(t, &stubClient{})

	w := doRequest(router, http.MethodPost, "/api/v1/attempts/start",
		models.StartAttemptRequest{TestID: "test-1"}, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestSessionFlow(t *testing.T) {
	router, _ := newTestRouter(t, &stubClient{})

	// Start stages the handoff, open claims it.
	if w := doRequest(router, http.MethodPost, "/api/v1/attempts/start",
		models.StartAttemptRequest{TestID: "test-1"}, "user-1"); w.Code != http.StatusCreated {
		t.Fatalf("start status = %d", w.Code)
	}
	w := doRequest(router, http.MethodPost, "/api/v1/sessions/att-1/open", nil, "user-1")
	if w.Code != http.StatusOK {
		t.Fatalf("open status = %d, body = %s", w.Code, w.Body.String())
	}

	var view models.SessionView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Status != models.SessionActive || len(view.Questions) != 2 {
		t.Fatalf("view = %+v", view)
	}

	// Answer one question.
	w = doRequest(router, http.MethodPost, "/api/v1/sessions/att-1/answer",
		models.SelectAnswerRequest{QuestionID: "q1", Selected: "A", TimeSpent: 12}, "user-1")
	if w.Code != http.StatusOK {
		t.Fatalf("answer status = %d, body = %s", w.Code, w.Body.String())
	}

	// Mark it for review.
	w = doRequest(router, http.MethodPost, "/api/v1/sessions/att-1/review",
		models.ToggleReviewRequest{QuestionID: "q1"}, "user-1")
	if w.Code != http.StatusOK {
		t.Fatalf("review status = %d", w.Code)
	}

	// Snapshot reflects both.
	w = doRequest(router, http.MethodGet, "/api/v1/sessions/att-1", nil, "user-1")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.AnsweredCount != 1 || view.Questions[0].Status != models.StatusAnsweredMarked {
		t.Errorf("view after answer+review = %+v", view.Questions[0])
	}

	// Unconfirmed submission is rejected.
	w = doRequest(router, http.MethodPost, "/api/v1/sessions/att-1/submit",
		models.SubmitRequest{Confirmed: false}, "user-1")
	if w.Code != http.StatusBadRequest {
		t.Errorf("unconfirmed submit status = %d, want 400", w.Code)
	}

	// Confirmed submission finalizes the attempt.
	w = doRequest(router, http.MethodPost, "/api/v1/sessions/att-1/submit",
		models.SubmitRequest{Confirmed: true}, "user-1")
	if w.Code != http.StatusOK {
		t.Fatalf("submit status = %d, body = %s", w.Code, w.Body.String())
	}
	var submitResp models.SubmitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &submitResp); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	if submitResp.ResultID != "res-1" {
		t.Errorf("ResultID = %q, want res-1", submitResp.ResultID)
	}

	// Further edits conflict.
	w = doRequest(router, http.MethodPost, "/api/v1/sessions/att-1/answer",
		models.SelectAnswerRequest{QuestionID: "q2", Selected: "B", TimeSpent: 3}, "user-1")
	if w.Code != http.StatusConflict {
		t.Errorf("post-submit answer status = %d, want 409", w.Code)
	}
}

func TestManualSaveEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, &stubClient{})

	if w := doRequest(router, http.MethodPost, "/api/v1/attempts/start",
		models.StartAttemptRequest{TestID: "test-1"}, "user-1"); w.Code != http.StatusCreated {
		t.Fatalf("start status = %d", w.Code)
	}
	if w := doRequest(router, http.MethodPost, "/api/v1/sessions/att-1/open", nil, "user-1"); w.Code != http.StatusOK {
		t.Fatalf("open status = %d", w.Code)
	}
	if w := doRequest(router, http.MethodPost, "/api/v1/sessions/att-1/answer",
		models.SelectAnswerRequest{QuestionID: "q1", Selected: "A", TimeSpent: 8}, "user-1"); w.Code != http.StatusOK {
		t.Fatalf("answer status = %d", w.Code)
	}

	w := doRequest(router, http.MethodPost, "/api/v1/sessions/att-1/save", nil, "user-1")
	if w.Code != http.StatusOK {
		t.Fatalf("save status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp SuccessResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Message != "Save completed" {
		t.Errorf("Message = %q, want %q", resp.Message, "Save completed")
	}
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("Data = %T, want object", resp.Data)
	}
	if data["save_status"] != string(models.SaveSaved) {
		t.Errorf("save_status = %v, want %q", data["save_status"], models.SaveSaved)
	}
}

func TestSessionOwnershipEnforced(t *testing.T) {
	router, _ := newTestRouter(t, &stubClient{})

	if w := doRequest(router, http.MethodPost, "/api/v1/attempts/start",
		models.StartAttemptRequest{TestID: "test-1"}, "user-1"); w.Code != http.StatusCreated {
		t.Fatalf("start status = %d", w.Code)
	}
	if w := doRequest(router, http.MethodPost, "/api/v1/sessions/att-1/open", nil, "user-1"); w.Code != http.StatusOK {
		t.Fatalf("open status = %d", w.Code)
	}

	w := doRequest(router, http.MethodGet, "/api/v1/sessions/att-1", nil, "user-2")
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign get status = %d, want 403", w.Code)
	}
}

func TestSessionNotFound(t *testing.T) {
	router, _ := newTestRouter(t, &stubClient{})

	w := doRequest(router, http.MethodGet, "/api/v1/sessions/missing", nil, "user-1")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestUnmountSession(t *testing.T) {
	router, _ := newTestRouter(t, &stubClient{})

	if w := doRequest(router, http.MethodPost, "/api/v1/attempts/start",
		models.StartAttemptRequest{TestID: "test-1"}, "user-1"); w.Code != http.StatusCreated {
		t.Fatalf("start status = %d", w.Code)
	}
	if w := doRequest(router, http.MethodPost, "/api/v1/sessions/att-1/open", nil, "user-1"); w.Code != http.StatusOK {
		t.Fatalf("open status = %d", w.Code)
	}

	w := doRequest(router, http.MethodDelete, "/api/v1/sessions/att-1", nil, "user-1")
	if w.Code != http.StatusNoContent {
		t.Fatalf("unmount status = %d, want 204", w.Code)
	}
	w = doRequest(router, http.MethodGet, "/api/v1/sessions/att-1", nil, "user-1")
	if w.Code != http.StatusNotFound {
		t.Errorf("get after unmount status = %d, want 404", w.Code)
	}
}

func TestHealthEndpointIsPublic(t *testing.T) {
	router, _ := newTestRouter(t, &stubClient{})

	w := doRequest(router, http.MethodGet, "/health", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", w.Code)
	}
}
