package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetStatus reports that the service is up
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   h.opts.ServiceName,
		"in_flight": h.Quoter.InFlight(),
	})
}
