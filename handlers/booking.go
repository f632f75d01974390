package handlers

import (
	"errors"
	"net/http"

	"opdportal/middleware"
	"opdportal/services/booking"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BookingHandler exposes the booking wizard.
type BookingHandler struct {
	Wizard *booking.Wizard
}

func NewBookingHandler(w *booking.Wizard) *BookingHandler {
	return &BookingHandler{Wizard: w}
}

type wizardView struct {
	booking.State
	DoctorOptions []booking.DoctorOption `json:"doctorOptions"`
	Slots         []string               `json:"slots"`
}

func (h *BookingHandler) view() wizardView {
	return wizardView{
		State:         h.Wizard.State(),
		DoctorOptions: h.Wizard.DoctorOptions(),
		Slots:         h.Wizard.SlotOptions(),
	}
}

func (h *BookingHandler) respond(c *gin.Context, err error) {
	if err == nil {
		c.JSON(http.StatusOK, h.view())
		return
	}
	var stepErr *booking.StepError
	switch {
	case errors.As(err, &stepErr):
		c.JSON(http.StatusConflict, gin.H{"error": stepErr.Message, "wizard": h.view()})
	case errors.Is(err, booking.ErrWrongPhase),
		errors.Is(err, booking.ErrSubmitInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "wizard": h.view()})
	case errors.Is(err, booking.ErrUnknownDoctor),
		errors.Is(err, booking.ErrUnknownSlot),
		errors.Is(err, booking.ErrInvalidDate),
		errors.Is(err, booking.ErrIncompleteDraft):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "wizard": h.view()})
	default:
		backendError(c, "booking directory unavailable", err)
	}
}

// GetWizardHandler returns the wizard state with live doctor cards and the
// slot options of the schedule step.
func (h *BookingHandler) GetWizardHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.view())
}

func (h *BookingHandler) LoadHospitalsHandler(c *gin.Context) {
	h.respond(c, h.Wizard.LoadHospitals(c.Request.Context()))
}

func (h *BookingHandler) SelectHospitalHandler(c *gin.Context) {
	var in struct {
		HospitalID string `json:"hospitalId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	h.respond(c, h.Wizard.SelectHospital(c.Request.Context(), in.HospitalID))
}

func (h *BookingHandler) SelectDepartmentHandler(c *gin.Context) {
	var in struct {
		Department string `json:"department" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	h.respond(c, h.Wizard.SelectDepartment(c.Request.Context(), in.Department))
}

func (h *BookingHandler) SelectDoctorHandler(c *gin.Context) {
	var in struct {
		DoctorID string `json:"doctorId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	h.respond(c, h.Wizard.SelectDoctor(in.DoctorID))
}

// SelectScheduleHandler sets the date, the slot, or both.
func (h *BookingHandler) SelectScheduleHandler(c *gin.Context) {
	var in struct {
		Date     string `json:"date"`
		TimeSlot string `json:"timeSlot"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || (in.Date == "" && in.TimeSlot == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date or timeSlot is required"})
		return
	}
	if in.Date != "" {
		if err := h.Wizard.SelectDate(in.Date); err != nil {
			h.respond(c, err)
			return
		}
	}
	if in.TimeSlot != "" {
		if err := h.Wizard.SelectSlot(in.TimeSlot); err != nil {
			h.respond(c, err)
			return
		}
	}
	h.respond(c, nil)
}

func (h *BookingHandler) NextHandler(c *gin.Context) {
	h.respond(c, h.Wizard.Next())
}

func (h *BookingHandler) PreviousHandler(c *gin.Context) {
	h.Wizard.Previous()
	h.respond(c, nil)
}

// SubmitHandler submits the booking for the logged-in user. A daily-limit
// rejection answers 409 with the recovery actions.
func (h *BookingHandler) SubmitHandler(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "login required"})
		return
	}
	appt, err := h.Wizard.Submit(c.Request.Context(), user)
	if err == nil {
		getLogger(c).Info("OPD booking created",
			zap.String("appointmentId", appt.ID.String()), zap.String("userId", user.ID.String()))
		c.JSON(http.StatusCreated, gin.H{"appointment": appt, "wizard": h.view()})
		return
	}
	if booking.IsDailyLimitExceeded(err) {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "daily booking limit reached",
			"actions": []string{"view-appointments", "change-date"},
			"wizard":  h.view(),
		})
		return
	}
	var stepErr *booking.StepError
	if errors.As(err, &stepErr) || errors.Is(err, booking.ErrSubmitInFlight) ||
		errors.Is(err, booking.ErrIncompleteDraft) || errors.Is(err, booking.ErrUnknownDoctor) ||
		errors.Is(err, booking.ErrWrongPhase) {
		h.respond(c, err)
		return
	}
	backendError(c, "booking failed", err)
}

func (h *BookingHandler) ChangeDateHandler(c *gin.Context) {
	h.respond(c, h.Wizard.ChangeDate())
}

func (h *BookingHandler) ResetHandler(c *gin.Context) {
	h.Wizard.Reset()
	h.respond(c, nil)
}
