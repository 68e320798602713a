package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/incomeengine/internal/ledger/domain"
	"github.com/smallbiznis/incomeengine/pkg/errutil"
)

var (
	ErrUnknownDestination = errutil.Validation("unknown_destination_kind")
	ErrNotConfigured      = errutil.Unavailable("payout_not_configured")
	ErrMissingRecipient   = errutil.Validation("missing_payout_recipient")
	ErrPayout             = errutil.Unavailable("payout_error")
	ErrSubCentAmount      = errutil.Validation("sub_cent_payout_amount")
)

// CentPlaces is the precision payouts are sent with.
const CentPlaces = 2

type Balance struct {
	Available decimal.Decimal `json:"available"`
	Pending   decimal.Decimal `json:"pending"`
	Currency  string          `json:"currency"`
}

// ZeroBalance is reported by providers that are not configured.
func ZeroBalance() Balance {
	return Balance{Available: decimal.Zero, Pending: decimal.Zero, Currency: ledgerdomain.DefaultCurrency}
}

// Instructions tell the operator how to complete a manual withdrawal.
type Instructions struct {
	Method      string          `json:"method"`
	Cashtag     string          `json:"cashtag,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Steps       []string        `json:"instructions"`
	PaymentLink *string         `json:"payment_link"`
}

type PayoutResult struct {
	// Status is processing for automated transfers and pending_manual when
	// the operator has to finish the transfer.
	Status        ledgerdomain.WithdrawalStatus
	TransactionID string
	Message       string
	Instructions  *Instructions
}

// Provider moves money out to one destination kind.
type Provider interface {
	Kind() string
	// Destination resolves the recipient recorded for a request, filling in
	// the configured default when requested is empty.
	Destination(requested string) string
	Balance(ctx context.Context) (Balance, error)
	Payout(ctx context.Context, amount decimal.Decimal, destination string) (PayoutResult, error)
}

// PayoutError is a provider failure during a withdrawal.
type PayoutError struct {
	Provider string
	Err      error
}

func (e *PayoutError) Error() string {
	return fmt.Sprintf("payout via %s failed: %v", e.Provider, e.Err)
}

func (e *PayoutError) Unwrap() []error {
	return []error{ErrPayout, e.Err}
}

// IsPayoutError reports whether err carries a PayoutError.
func IsPayoutError(err error) bool {
	var pe *PayoutError
	return errors.As(err, &pe)
}
