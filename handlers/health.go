package handlers

import (
	"net/http"

	"opdportal/utils"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports the last dependency check. The portal itself is up
// whenever it answers.
func HealthHandler(c *gin.Context) {
	status := utils.GetHealthStatus()
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"message":      "Hi, I'm the OPD portal",
		"dependencies": status,
	})
}
