package handlers

import (
	"context"
	"net/http"
	"strings"

	"opdportal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AppointmentsAPI serves the patient's existing bookings.
type AppointmentsAPI interface {
	MyAppointments(ctx context.Context) ([]models.Appointment, error)
	GetAppointment(ctx context.Context, id string) (models.Appointment, error)
	CancelAppointment(ctx context.Context, id, reason string) (models.Appointment, error)
}

type AppointmentsHandler struct {
	API AppointmentsAPI
}

func NewAppointmentsHandler(client AppointmentsAPI) *AppointmentsHandler {
	return &AppointmentsHandler{API: client}
}

func (h *AppointmentsHandler) ListMyAppointmentsHandler(c *gin.Context) {
	appts, err := h.API.MyAppointments(c.Request.Context())
	if err != nil {
		backendError(c, "failed to list appointments", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointments": appts})
}

func (h *AppointmentsHandler) GetAppointmentHandler(c *gin.Context) {
	appt, err := h.API.GetAppointment(c.Request.Context(), c.Param("id"))
	if err != nil {
		backendError(c, "failed to fetch appointment", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointment": appt, "cancellable": appt.Status.Cancellable()})
}

// CancelAppointmentHandler cancels a booking. A non-empty reason is required.
func (h *AppointmentsHandler) CancelAppointmentHandler(c *gin.Context) {
	var in models.CancelRequest
	if err := c.ShouldBindJSON(&in); err != nil || strings.TrimSpace(in.Reason) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a cancellation reason is required"})
		return
	}
	id := c.Param("id")
	appt, err := h.API.CancelAppointment(c.Request.Context(), id, strings.TrimSpace(in.Reason))
	if err != nil {
		backendError(c, "failed to cancel appointment", err)
		return
	}
	getLogger(c).Info("Appointment cancelled", zap.String("appointmentId", id))
	c.JSON(http.StatusOK, gin.H{"appointment": appt})
}
