package handlers

import (
	"context"
	"net/http"
	"strings"

	"opdportal/models"

	"github.com/gin-gonic/gin"
)

// DirectoryAPI is the hospital and doctor directory of the backend.
type DirectoryAPI interface {
	ListHospitals(ctx context.Context) ([]models.Hospital, error)
	GetHospital(ctx context.Context, id string) (models.Hospital, error)
	ListDoctors(ctx context.Context, hospitalID, department string) ([]models.Doctor, error)
}

type DirectoryHandler struct {
	API DirectoryAPI
}

func NewDirectoryHandler(client DirectoryAPI) *DirectoryHandler {
	return &DirectoryHandler{API: client}
}

func (h *DirectoryHandler) ListHospitalsHandler(c *gin.Context) {
	hospitals, err := h.API.ListHospitals(c.Request.Context())
	if err != nil {
		backendError(c, "failed to list hospitals", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hospitals": hospitals})
}

func (h *DirectoryHandler) GetHospitalHandler(c *gin.Context) {
	hospital, err := h.API.GetHospital(c.Request.Context(), c.Param("id"))
	if err != nil {
		backendError(c, "failed to fetch hospital", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hospital": hospital})
}

// ListDoctorsHandler lists a hospital's doctors, optionally filtered by the
// "department" query parameter.
func (h *DirectoryHandler) ListDoctorsHandler(c *gin.Context) {
	department := strings.TrimSpace(c.Query("department"))
	doctors, err := h.API.ListDoctors(c.Request.Context(), c.Param("id"), department)
	if err != nil {
		backendError(c, "failed to list doctors", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"doctors": doctors})
}
