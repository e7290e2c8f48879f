package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type PageHandlers struct {
	Version string
}

func (h *PageHandlers) Home(c *gin.Context) {
	gate, ok := currentGate(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": "Salepage CMS", "authenticated": gate.IsAuthenticated()})
}

func (h *PageHandlers) About(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"name": "Salepage CMS", "version": h.Version})
}

func (h *PageHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
