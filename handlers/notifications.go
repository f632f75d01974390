package handlers

import (
	"errors"
	"net/http"

	"opdportal/services/notification"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	Store *notification.Store
}

func NewNotificationHandler(store *notification.Store) *NotificationHandler {
	return &NotificationHandler{Store: store}
}

func (h *NotificationHandler) body() gin.H {
	return gin.H{"notifications": h.Store.List(), "unread": h.Store.UnreadCount()}
}

func (h *NotificationHandler) ListHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.body())
}

// RefreshHandler replaces the list with the server history. On failure the
// last known list is returned with the error.
func (h *NotificationHandler) RefreshHandler(c *gin.Context) {
	if err := h.Store.Refresh(c.Request.Context()); err != nil {
		backendError(c, "failed to refresh notifications", err)
		return
	}
	c.JSON(http.StatusOK, h.body())
}

// MarkAllReadHandler marks everything read. Server updates that failed are
// reported under "syncFailed"; local state stays read.
func (h *NotificationHandler) MarkAllReadHandler(c *gin.Context) {
	err := h.Store.MarkAllRead(c.Request.Context())
	body := h.body()
	var mre *notification.MarkReadError
	if errors.As(err, &mre) {
		body["syncFailed"] = mre.Failed
	} else if err != nil {
		backendError(c, "failed to mark notifications read", err)
		return
	}
	c.JSON(http.StatusOK, body)
}
