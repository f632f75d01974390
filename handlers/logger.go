package handlers

import (
	"errors"
	"net/http"

	"opdportal/services/api"
	"opdportal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// getLogger retrieves the request-scoped Zap logger from the Gin context or
// falls back to the global one.
func getLogger(c *gin.Context) *zap.Logger {
	if l, exists := c.Get("logger"); exists {
		if logger, ok := l.(*zap.Logger); ok {
			return logger
		}
	}
	return zap.L()
}

// backendError answers with the status of a backend rejection, or 502 when
// the backend could not be reached.
func backendError(c *gin.Context, message string, err error) {
	status := http.StatusBadGateway
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
			http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity,
			http.StatusTooManyRequests:
			status = apiErr.Status
		}
	}
	getLogger(c).Warn(message, zap.Error(err), zap.Int("status", status))
	c.JSON(status, utils.ErrorResponse{Message: message, Details: api.Message(err)})
}
