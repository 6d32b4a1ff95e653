package testservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prepdesk/attempt-engine/internal/config"
)

// HTTPClient talks JSON over HTTP to the Test Service.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(cfg config.TestServiceConfig, logger *slog.Logger) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *HTTPClient) StartAttempt(ctx context.Context, testID string) (*StartAttemptResult, error) {
	var out StartAttemptResult
	body := map[string]string{"test_id": testID}
	if err := c.do(ctx, http.MethodPost, "/api/v1/attempts/start", body, &out); err != nil {
		return nil, fmt.Errorf("start attempt: %w", err)
	}
	return &out, nil
}

func (c *HTTPClient) ResumeAttempt(ctx context.Context, attemptID string) (*ResumeAttemptResult, error) {
	var out ResumeAttemptResult
	path := fmt.Sprintf("/api/v1/attempts/%s/resume", url.PathEscape(attemptID))
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, fmt.Errorf("resume attempt: %w", err)
	}
	return &out, nil
}

func (c *HTTPClient) GetQuestions(ctx context.Context, attemptID string) ([]Section, error) {
	var out struct {
		Sections []Section `json:"sections"`
	}
	path := fmt.Sprintf("/api/v1/attempts/%s/questions", url.PathEscape(attemptID))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}
	return out.Sections, nil
}

func (c *HTTPClient) GetAttemptStatus(ctx context.Context, attemptID string) (*AttemptStatus, error) {
	var out AttemptStatus
	path := fmt.Sprintf("/api/v1/attempts/%s/status", url.PathEscape(attemptID))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("get attempt status: %w", err)
	}
	return &out, nil
}

func (c *HTTPClient) SaveProgress(ctx context.Context, attemptID string, entries []AnswerEntry) error {
	body := map[string]any{"answers": entries}
	path := fmt.Sprintf("/api/v1/attempts/%s/progress", url.PathEscape(attemptID))
	if err := c.do(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

func (c *HTTPClient) MarkForReview(ctx context.Context, attemptID, questionID string, flagged bool) error {
	body := map[string]any{"question_id": questionID, "flagged": flagged}
	path := fmt.Sprintf("/api/v1/attempts/%s/review", url.PathEscape(attemptID))
	if err := c.do(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("mark for review: %w", err)
	}
	return nil
}

func (c *HTTPClient) SubmitAttempt(ctx context.Context, attemptID string, entries []AnswerEntry) (*SubmitResult, error) {
	var out SubmitResult
	body := map[string]any{"answers": entries}
	path := fmt.Sprintf("/api/v1/attempts/%s/submit", url.PathEscape(attemptID))
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, fmt.Errorf("submit attempt: %w", err)
	}
	return &out, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		// Bounded read keeps a misbehaving upstream from ballooning logs.
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.logger.Warn("test service call failed",
			"method", method,
			"path", path,
			"status", resp.StatusCode)
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(msg))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
