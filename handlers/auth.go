package handlers

import (
	"context"
	"errors"
	"net/http"

	"opdportal/middleware"
	"opdportal/models"
	"opdportal/services/api"
	"opdportal/services/session"
	"opdportal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionService is the session store as seen by the HTTP surface.
type SessionService interface {
	Snapshot() session.Snapshot
	Refetch(ctx context.Context) session.Snapshot
	Login(ctx context.Context, in models.LoginRequest) (models.SessionUser, error)
	Register(ctx context.Context, in models.RegisterRequest) (models.SessionUser, error)
	Logout(ctx context.Context) string
}

type SessionHandler struct {
	Store   SessionService
	Landing middleware.Landing
}

func NewSessionHandler(store SessionService, landing middleware.Landing) *SessionHandler {
	return &SessionHandler{Store: store, Landing: landing}
}

// GetSessionHandler returns the current session snapshot.
func (h *SessionHandler) GetSessionHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.Store.Snapshot())
}

// RefetchSessionHandler re-runs the "who am I" call with the persisted token.
func (h *SessionHandler) RefetchSessionHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.Store.Refetch(c.Request.Context()))
}

func (h *SessionHandler) LoginHandler(c *gin.Context) {
	var in models.LoginRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	user, err := h.Store.Login(c.Request.Context(), in)
	if err != nil {
		h.authFailure(c, "login failed", err)
		return
	}
	getLogger(c).Info("User logged in", zap.String("userId", user.ID.String()), zap.String("role", user.Role))
	c.JSON(http.StatusOK, gin.H{"user": user, "redirect": h.Landing.For(user.Role)})
}

func (h *SessionHandler) RegisterHandler(c *gin.Context) {
	var in models.RegisterRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	user, err := h.Store.Register(c.Request.Context(), in)
	if err != nil {
		h.authFailure(c, "registration failed", err)
		return
	}
	getLogger(c).Info("User registered", zap.String("userId", user.ID.String()))
	c.JSON(http.StatusCreated, gin.H{"user": user, "redirect": h.Landing.For(user.Role)})
}

func (h *SessionHandler) authFailure(c *gin.Context, message string, err error) {
	if errors.Is(err, api.ErrMissingToken) || errors.Is(err, models.ErrIncompleteUser) {
		getLogger(c).Warn(message, zap.Error(err))
		utils.JSONError(c, http.StatusBadGateway, message, "backend returned an incomplete session")
		return
	}
	backendError(c, message, err)
}

// LogoutHandler clears every piece of client state and names the login page.
func (h *SessionHandler) LogoutHandler(c *gin.Context) {
	dest := h.Store.Logout(c.Request.Context())
	c.Header("Location", dest)
	c.JSON(http.StatusOK, gin.H{"message": "logged out", "redirect": dest})
}
