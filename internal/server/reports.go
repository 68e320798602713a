package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/incomeengine/internal/ledger/domain"
	"github.com/smallbiznis/incomeengine/pkg/db/pagination"
)

const (
	defaultEarningsDays = 30
	defaultLogLimit     = 100
)

func (s *Server) GetDashboard(c *gin.Context) {
	resp, err := s.reports.Dashboard(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetEarnings(c *gin.Context) {
	days, err := parsePositiveInt(c.Query("days"), defaultEarningsDays)
	if err != nil {
		AbortWithError(c, newValidationError("days", "invalid_days", "days must be a positive integer"))
		return
	}

	resp, err := s.reports.Earnings(c.Request.Context(), days)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListLogs(c *gin.Context) {
	limit, err := parsePositiveInt(c.Query("limit"), defaultLogLimit)
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "limit must be a positive integer"))
		return
	}

	resp, err := s.reports.Logs(c.Request.Context(), ledgerdomain.LogFilter{
		Level:  ledgerdomain.LogLevel(strings.ToLower(strings.TrimSpace(c.Query("level")))),
		Engine: strings.TrimSpace(c.Query("engine")),
		Limit:  limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListContent(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Platform string `form:"platform"`
		Type     string `form:"type"`
		Since    string `form:"since"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	since, err := parseOptionalTime(query.Since)
	if err != nil {
		AbortWithError(c, newValidationError("since", "invalid_since", "invalid since"))
		return
	}

	items, pageInfo, err := s.reports.Content(c.Request.Context(), ledgerdomain.ContentFilter{
		Platform:   strings.TrimSpace(query.Platform),
		Type:       strings.TrimSpace(query.Type),
		Since:      since,
		Pagination: query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items, "page_info": pageInfo})
}

func (s *Server) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.reports.Health(c.Request.Context()))
}
