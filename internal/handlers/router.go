package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/prepdesk/attempt-engine/internal/config"
	"github.com/prepdesk/attempt-engine/internal/handoff"
	"github.com/prepdesk/attempt-engine/internal/session"
	"github.com/prepdesk/attempt-engine/internal/testservice"
	"github.com/prepdesk/attempt-engine/internal/utils"
	"github.com/prepdesk/attempt-engine/internal/validator"
)

type HandlerManager struct {
	attemptHandler *AttemptHandler
	sessionHandler *SessionHandler
	authMiddleware *CasdoorAuthMiddleware
}

func NewHandlerManager(
	manager *session.Manager,
	client testservice.Client,
	channel handoff.Channel,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
) *HandlerManager {
	return &HandlerManager{
		attemptHandler: NewAttemptHandler(client, channel, validator, logger),
		sessionHandler: NewSessionHandler(manager, validator, logger),
		authMiddleware: NewCasdoorAuthMiddleware(casdoorConfig),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		attempts := v1.Group("/attempts")
		{
			attempts.POST("/start", hm.attemptHandler.StartAttempt)
			attempts.POST("/:attempt_id/resume", hm.attemptHandler.ResumeAttempt)
		}

		sessions := v1.Group("/sessions")
		{
			sessions.POST("/:attempt_id/open", hm.sessionHandler.Open)
			sessions.GET("/:attempt_id", hm.sessionHandler.Get)
			sessions.POST("/:attempt_id/answer", hm.sessionHandler.Answer)
			sessions.POST("/:attempt_id/review", hm.sessionHandler.Review)
			sessions.POST("/:attempt_id/save", hm.sessionHandler.Save)
			sessions.POST("/:attempt_id/submit", hm.sessionHandler.Submit)
			sessions.DELETE("/:attempt_id", hm.sessionHandler.Unmount)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "attempt-engine",
		})
	})
}
