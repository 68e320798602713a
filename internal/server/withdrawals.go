package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/incomeengine/internal/ledger/domain"
	withdrawaldomain "github.com/smallbiznis/incomeengine/internal/withdrawal/domain"
)

func (s *Server) ListWithdrawals(c *gin.Context) {
	resp, err := s.reports.Withdrawals(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type requestWithdrawalRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Destination string          `json:"destination"`
	Recipient   string          `json:"recipient"`
}

func (s *Server) RequestWithdrawal(c *gin.Context) {
	var req requestWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	destination := strings.ToLower(strings.TrimSpace(req.Destination))
	if destination == "" {
		AbortWithError(c, newValidationError("destination", "invalid_destination", "destination is required"))
		return
	}

	resp, err := s.withdrawals.RequestWithdrawal(c.Request.Context(), withdrawaldomain.WithdrawalRequest{
		Amount:    req.Amount,
		Method:    destination,
		Recipient: strings.TrimSpace(req.Recipient),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateWithdrawalStatusRequest struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
}

// UpdateWithdrawalStatus records the outcome of a withdrawal settled outside
// the payout API, e.g. a Cash App transfer sent by hand.
func (s *Server) UpdateWithdrawalStatus(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	var req updateWithdrawalStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.withdrawals.UpdateStatus(
		c.Request.Context(),
		id,
		ledgerdomain.WithdrawalStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		req.TransactionID,
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
