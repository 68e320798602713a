package domain

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/incomeengine/internal/ledger/domain"
	payoutdomain "github.com/smallbiznis/incomeengine/internal/payout/domain"
	"github.com/smallbiznis/incomeengine/pkg/errutil"
)

var (
	ErrInvalidAmount     = errutil.Validation("invalid_withdrawal_amount")
	ErrAmountPrecision   = errutil.Validation("invalid_withdrawal_precision")
	ErrInsufficientFunds = errutil.Validation("insufficient_funds")
)

// InsufficientFundsError carries the balance that was available when the
// request was refused.
type InsufficientFundsError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance: requested %s, available %s",
		e.Requested.StringFixed(2), e.Available.StringFixed(2))
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

type WithdrawalRequest struct {
	Amount decimal.Decimal
	// Method is the destination kind, e.g. "paypal" or "cashapp".
	Method string
	// Recipient overrides the configured destination when set.
	Recipient string
}

type WithdrawalResult struct {
	Withdrawal   ledgerdomain.Withdrawal    `json:"withdrawal"`
	Message      string                     `json:"message"`
	Instructions *payoutdomain.Instructions `json:"instructions,omitempty"`
}

type Service interface {
	RequestWithdrawal(ctx context.Context, req WithdrawalRequest) (WithdrawalResult, error)
	// UpdateStatus records an operator-confirmed outcome, typically for
	// pending_manual withdrawals.
	UpdateStatus(ctx context.Context, id snowflake.ID, status ledgerdomain.WithdrawalStatus, transactionID string) (ledgerdomain.Withdrawal, error)
}
