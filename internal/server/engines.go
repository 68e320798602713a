package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type runEngineResponse struct {
	Success bool            `json:"success"`
	Engine  string          `json:"engine"`
	Earned  decimal.Decimal `json:"earned"`
}

// RunEngine fires an engine immediately, whether or not it is enabled.
func (s *Server) RunEngine(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))

	earned, err := s.engines.TriggerNow(c.Request.Context(), name)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": runEngineResponse{
		Success: true,
		Engine:  name,
		Earned:  earned,
	}})
}

type toggleEngineRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) ToggleEngine(c *gin.Context) {
	var req toggleEngineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Enabled == nil {
		AbortWithError(c, newValidationError("enabled", "invalid_enabled", "enabled is required"))
		return
	}

	name := strings.TrimSpace(c.Param("name"))
	if err := s.engines.SetEnabled(c.Request.Context(), name, *req.Enabled); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"success": true,
		"engine":  name,
		"enabled": *req.Enabled,
	}})
}
