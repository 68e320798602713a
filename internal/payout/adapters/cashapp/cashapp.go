package cashapp

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/incomeengine/internal/ledger/domain"
	"github.com/smallbiznis/incomeengine/internal/payout/domain"
)

const (
	Kind            = "cashapp"
	notConfigured   = "not_configured"
	paymentLinkBase = "https://cash.app/$"
)

// Adapter has no transfer API to call. Every payout is queued for the
// operator with instructions and, when a cashtag is set, a payment link.
type Adapter struct {
	cashtag string
}

func New(cashtag string) *Adapter {
	return &Adapter{cashtag: strings.TrimSpace(cashtag)}
}

func (a *Adapter) Kind() string { return Kind }

func (a *Adapter) Destination(requested string) string {
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested
	}
	if a.cashtag == "" {
		return notConfigured
	}
	return a.cashtag
}

func (a *Adapter) Balance(context.Context) (domain.Balance, error) {
	return domain.ZeroBalance(), nil
}

func (a *Adapter) Payout(_ context.Context, amount decimal.Decimal, _ string) (domain.PayoutResult, error) {
	return domain.PayoutResult{
		Status:       ledgerdomain.WithdrawalStatusPendingManual,
		Message:      "Cash App withdrawal queued. Funds will be available when platform minimums are met.",
		Instructions: a.Instructions(amount),
	}, nil
}

// PaymentLink returns nil when no cashtag is configured.
func (a *Adapter) PaymentLink(amount decimal.Decimal) *string {
	if a.cashtag == "" {
		return nil
	}
	link := paymentLinkBase + strings.TrimPrefix(a.cashtag, "$") + "/" + amount.StringFixed(2)
	return &link
}

func (a *Adapter) Instructions(amount decimal.Decimal) *domain.Instructions {
	return &domain.Instructions{
		Method:  "Cash App",
		Cashtag: a.cashtag,
		Amount:  amount,
		Steps: []string{
			"1. Open Cash App on your phone",
			"2. The earnings from various platforms will be deposited to your linked accounts",
			"3. For direct transfers, platforms like Medium and Redbubble can pay to your bank",
			"4. Your bank can then be linked to Cash App for instant access",
			fmt.Sprintf("5. Current pending amount: $%s", amount.StringFixed(2)),
		},
		PaymentLink: a.PaymentLink(amount),
	}
}

// Cashtag exposes the configured tag for the dashboard.
func (a *Adapter) Cashtag() string { return a.cashtag }
