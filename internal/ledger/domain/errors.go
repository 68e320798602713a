package domain

import (
	"math"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/incomeengine/pkg/errutil"
)

var (
	ErrInvalidSource           = errutil.Validation("invalid_source")
	ErrInvalidAmount           = errutil.Validation("invalid_amount")
	ErrInvalidContent          = errutil.Validation("invalid_content")
	ErrInvalidTask             = errutil.Validation("invalid_task")
	ErrInvalidLogLevel         = errutil.Validation("invalid_log_level")
	ErrInvalidLogMessage       = errutil.Validation("invalid_log_message")
	ErrInvalidPlatform         = errutil.Validation("invalid_platform")
	ErrInvalidWithdrawalStatus = errutil.Validation("invalid_withdrawal_status")
	ErrInvalidEngineName       = errutil.Validation("invalid_engine_name")
	ErrInvalidPageToken        = errutil.Validation("invalid_page_token")
	ErrInvalidStatusTransition = errutil.Conflict("invalid_status_transition")
	ErrWithdrawalNotFound      = errutil.NotFound("withdrawal_not_found")
	ErrContentNotFound         = errutil.NotFound("content_not_found")
	ErrEngineConfigNotFound    = errutil.NotFound("engine_not_found")
)

// AmountFromFloat converts an estimate to a ledger amount, rejecting NaN and
// infinities. Amounts are kept to six decimal places.
func AmountFromFloat(v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, ErrInvalidAmount
	}
	return decimal.NewFromFloat(v).Round(amountScale), nil
}

const amountScale = 6

// NormalizeAmount rounds to the ledger's storage scale.
func NormalizeAmount(v decimal.Decimal) decimal.Decimal {
	return v.Round(amountScale)
}
