package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cadet-chat-service/internal/middleware"
	"cadet-chat-service/internal/response"
)

// handleServiceError maps service layer errors to appropriate HTTP responses
func handleServiceError(c *gin.Context, logger *zap.Logger, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.SendError(c, http.StatusNotFound, response.ErrCodeNotFound, "Resource not found")
		return
	}

	var appErr *response.AppError
	if errors.As(err, &appErr) {
		if appErr.Code == response.ErrCodeInternal {
			logger.Error("Service error",
				zap.String("path", c.FullPath()),
				zap.String("details", appErr.Details),
				zap.Error(appErr.Err))
		}
		response.SendError(c, appErr.Status(), appErr.Code, appErr.PublicMessage())
		return
	}

	logger.Error("Unhandled service error", zap.String("path", c.FullPath()), zap.Error(err))
	response.SendError(c, http.StatusInternalServerError, response.ErrCodeInternal, response.InternalMessage)
}

// parseIDParam reads a positive int64 path parameter, writing 400 on failure.
func parseIDParam(c *gin.Context, name, label string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid "+label+".")
		return 0, false
	}
	return id, true
}

// currentUser returns the authenticated caller or writes 401.
func currentUser(c *gin.Context) (*middleware.AuthUser, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, middleware.UnauthorizedMessage)
		return nil, false
	}
	return user, true
}
