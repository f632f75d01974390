package handlers

import (
	"net/http"

	"opdportal/models"

	"github.com/gin-gonic/gin"
)

// CrowdSource is the read side of the crowd store.
type CrowdSource interface {
	Get(id string) (models.CrowdEntry, bool)
	Snapshot() map[string]models.CrowdEntry
}

type CrowdHandler struct {
	Store CrowdSource
}

func NewCrowdHandler(store CrowdSource) *CrowdHandler {
	return &CrowdHandler{Store: store}
}

func (h *CrowdHandler) SnapshotHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"crowd": h.Store.Snapshot()})
}

func (h *CrowdHandler) GetHandler(c *gin.Context) {
	entry, ok := h.Store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no crowd data yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"crowd": entry})
}
