package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prepdesk/attempt-engine/internal/handoff"
	"github.com/prepdesk/attempt-engine/internal/models"
	"github.com/prepdesk/attempt-engine/internal/testservice"
	"github.com/prepdesk/attempt-engine/internal/utils"
	"github.com/prepdesk/attempt-engine/internal/validator"
)

// AttemptHandler serves the two entry points that initiate an attempt. Both
// fetch the attempt from the test service and stage the payload on the
// handoff channel so the session open that follows needs no second fetch.
type AttemptHandler struct {
	BaseHandler
	client    testservice.Client
	channel   handoff.Channel
	validator *validator.Validator
}

func NewAttemptHandler(
	client testservice.Client,
	channel handoff.Channel,
	validator *validator.Validator,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler: NewBaseHandler(logger),
		client:      client,
		channel:     channel,
		validator:   validator,
	}
}

// StartAttempt creates a fresh attempt for a test and stages its payload for
// the session open.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	h.LogRequest(c, "Starting attempt")

	var req models.StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
		return
	}

	if _, err := GetUserIDFromContext(c); err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	result, err := h.client.StartAttempt(c.Request.Context(), req.TestID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	payload := &handoff.Payload{
		AttemptID: result.AttemptID,
		TestID:    result.TestID,
		Title:     result.Title,
		EndTime:   result.EndTime,
		Questions: result.Questions,
	}
	if err := h.channel.Put(c.Request.Context(), handoff.FreshKey(result.AttemptID), payload); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.AttemptHandoffResponse{AttemptID: result.AttemptID})
}

// ResumeAttempt re-fetches an in-progress attempt, including saved answers and
// review marks, and stages it for the session open.
func (h *AttemptHandler) ResumeAttempt(c *gin.Context) {
	attemptID := c.Param("attempt_id")
	h.LogRequest(c, "Resuming attempt", "attempt_id", attemptID)

	if _, err := GetUserIDFromContext(c); err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	result, err := h.client.ResumeAttempt(c.Request.Context(), attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	payload := &handoff.Payload{
		AttemptID: attemptID,
		TestID:    result.TestID,
		Title:     result.Title,
		EndTime:   result.EndTime,
		Questions: result.Questions,
	}
	if err := h.channel.Put(c.Request.Context(), handoff.ResumeKey(attemptID), payload); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AttemptHandoffResponse{AttemptID: attemptID})
}

func (h *AttemptHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, testservice.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Attempt or test not found",
		})
	case errors.Is(err, testservice.ErrUnavailable):
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Message: "Test service unavailable",
		})
	case errors.Is(err, handoff.ErrKeyExists):
		// A previous start/resume already staged this attempt and nobody
		// claimed it yet.
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Attempt already staged for opening",
		})
	default:
		h.LogError(c, err, "Attempt initiation failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
