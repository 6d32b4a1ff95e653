package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prepdesk/attempt-engine/internal/models"
	"github.com/prepdesk/attempt-engine/internal/session"
	"github.com/prepdesk/attempt-engine/internal/testservice"
	"github.com/prepdesk/attempt-engine/internal/utils"
	"github.com/prepdesk/attempt-engine/internal/validator"
)

// SessionHandler serves the live attempt surface: open, snapshot, answer,
// review, save, submit and unmount.
type SessionHandler struct {
	BaseHandler
	manager   *session.Manager
	validator *validator.Validator
}

func NewSessionHandler(
	manager *session.Manager,
	validator *validator.Validator,
	logger utils.Logger,
) *SessionHandler {
	return &SessionHandler{
		BaseHandler: NewBaseHandler(logger),
		manager:     manager,
		validator:   validator,
	}
}

// Open loads (or joins) the session for an attempt and returns its snapshot.
func (h *SessionHandler) Open(c *gin.Context) {
	attemptID := c.Param("attempt_id")
	h.LogRequest(c, "Opening session", "attempt_id", attemptID)

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	sess, err := h.manager.Open(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, sess.View())
}

// Get returns the current snapshot of an open session.
func (h *SessionHandler) Get(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.View())
}

// Answer records a selection for one question.
func (h *SessionHandler) Answer(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	var req models.SelectAnswerRequest
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

	if err := sess.SelectAnswer(req.QuestionID, req.Selected, req.TimeSpent); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"question_id": req.QuestionID,
		"save_status": sess.SaveStatus(),
	})
}

// Review toggles the review mark on one question.
func (h *SessionHandler) Review(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	var req models.ToggleReviewRequest
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

	marked, err := sess.ToggleReview(req.QuestionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"question_id": req.QuestionID,
		"marked":      marked,
	})
}

// Save flushes the full answer state to the test service.
func (h *SessionHandler) Save(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	status := sess.ManualSave(c.Request.Context())
	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Save completed",
		Data:    gin.H{"save_status": status},
	})
}

// Submit finalizes the attempt. The request must carry an explicit
// confirmation; the auto-submit path bypasses this handler entirely.
func (h *SessionHandler) Submit(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	var req models.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Submission requires confirmation",
			Details: err.Error(),
		})
		return
	}

	resultID, err := sess.Submit(c.Request.Context(), models.EndReasonCompleted)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SubmitResponse{ResultID: resultID})
}

// Unmount drops the live session without touching the attempt.
func (h *SessionHandler) Unmount(c *gin.Context) {
	attemptID := c.Param("attempt_id")
	h.LogRequest(c, "Unmounting session", "attempt_id", attemptID)

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	if err := h.manager.Unmount(attemptID, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) session(c *gin.Context) (*session.Session, bool) {
	attemptID := c.Param("attempt_id")

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return nil, false
	}

	sess, err := h.manager.Get(attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return nil, false
	}
	return sess, true
}

func (h *SessionHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Session not found",
		})
	case errors.Is(err, session.ErrNotOwner):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Attempt belongs to another user",
		})
	case errors.Is(err, session.ErrQuestionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Question not part of this attempt",
		})
	case errors.Is(err, session.ErrSessionTerminal):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Attempt already submitted",
		})
	case errors.Is(err, session.ErrSubmissionInFlight):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Submission already in progress",
		})
	case errors.Is(err, session.ErrEmptyQuestionSet):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Attempt has no questions",
		})
	case errors.Is(err, session.ErrSubmitFailed),
		errors.Is(err, session.ErrLoadFailed),
		errors.Is(err, testservice.ErrUnavailable):
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Message: "Test service unavailable",
		})
	case errors.Is(err, testservice.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Attempt not found",
		})
	default:
		h.LogError(c, err, "Session operation failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
