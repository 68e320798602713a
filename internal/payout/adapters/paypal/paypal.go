package paypal

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/incomeengine/internal/clock"
	ledgerdomain "github.com/smallbiznis/incomeengine/internal/ledger/domain"
	"github.com/smallbiznis/incomeengine/internal/payout/domain"
	"github.com/smallbiznis/incomeengine/internal/providers/transport"
)

const (
	Kind = "paypal"

	sandboxBaseURL = "https://api-m.sandbox.paypal.com"
	liveBaseURL    = "https://api-m.paypal.com"

	// tokenSkew renews the access token slightly before PayPal expires it.
	tokenSkew = time.Minute
)

type Config struct {
	ClientID string
	Secret   string
	Email    string
	Live     bool
}

type Adapter struct {
	cfg     Config
	baseURL string
	client  *transport.Client
	clock   clock.Clock

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func New(cfg Config, client *transport.Client, clk clock.Clock) *Adapter {
	if client == nil {
		client = transport.New()
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	baseURL := sandboxBaseURL
	if cfg.Live {
		baseURL = liveBaseURL
	}
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.Secret = strings.TrimSpace(cfg.Secret)
	cfg.Email = strings.TrimSpace(cfg.Email)
	return &Adapter{cfg: cfg, baseURL: baseURL, client: client, clock: clk}
}

func (a *Adapter) WithBaseURL(u string) *Adapter {
	a.baseURL = strings.TrimRight(u, "/")
	return a
}

func (a *Adapter) Kind() string { return Kind }

func (a *Adapter) Configured() bool {
	return a.cfg.ClientID != "" && a.cfg.Secret != ""
}

func (a *Adapter) Destination(requested string) string {
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested
	}
	return a.cfg.Email
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (a *Adapter) accessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	if a.token != "" && now.Before(a.tokenExpiry) {
		return a.token, nil
	}

	credentials := base64.StdEncoding.EncodeToString([]byte(a.cfg.ClientID + ":" + a.cfg.Secret))
	var resp tokenResponse
	err := a.client.Do(ctx, transport.Request{
		Method: http.MethodPost,
		URL:    a.baseURL + "/v1/oauth2/token",
		Header: http.Header{
			"Authorization": {"Basic " + credentials},
			"Content-Type":  {"application/x-www-form-urlencoded"},
		},
		RawBody: []byte(url.Values{"grant_type": {"client_credentials"}}.Encode()),
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("paypal oauth: %w", err)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("paypal oauth: empty access token")
	}

	a.token = resp.AccessToken
	a.tokenExpiry = now.Add(time.Duration(resp.ExpiresIn)*time.Second - tokenSkew)
	return a.token, nil
}

type money struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type balancesResponse struct {
	Balances []struct {
		Currency  string `json:"currency"`
		Available *money `json:"available_balance"`
		Withheld  *money `json:"withheld_balance"`
	} `json:"balances"`
}

// Balance returns zeros when credentials are missing.
func (a *Adapter) Balance(ctx context.Context) (domain.Balance, error) {
	if !a.Configured() {
		return domain.ZeroBalance(), nil
	}
	token, err := a.accessToken(ctx)
	if err != nil {
		return domain.ZeroBalance(), err
	}

	var resp balancesResponse
	err = a.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		URL:    a.baseURL + "/v1/reporting/balances",
		Header: http.Header{"Authorization": {"Bearer " + token}},
	}, &resp)
	if err != nil {
		return domain.ZeroBalance(), fmt.Errorf("paypal balances: %w", err)
	}

	out := domain.ZeroBalance()
	for _, b := range resp.Balances {
		if !strings.EqualFold(b.Currency, ledgerdomain.DefaultCurrency) {
			continue
		}
		out.Available = parseMoney(b.Available)
		out.Pending = parseMoney(b.Withheld)
		break
	}
	return out, nil
}

type payoutRequest struct {
	SenderBatchHeader struct {
		SenderBatchID string `json:"sender_batch_id"`
		EmailSubject  string `json:"email_subject"`
	} `json:"sender_batch_header"`
	Items []payoutItem `json:"items"`
}

type payoutItem struct {
	RecipientType string `json:"recipient_type"`
	Amount        money  `json:"amount"`
	Receiver      string `json:"receiver"`
	Note          string `json:"note"`
}

type payoutResponse struct {
	BatchHeader struct {
		PayoutBatchID string `json:"payout_batch_id"`
		BatchStatus   string `json:"batch_status"`
	} `json:"batch_header"`
}

func (a *Adapter) Payout(ctx context.Context, amount decimal.Decimal, destination string) (domain.PayoutResult, error) {
	if !a.Configured() {
		return domain.PayoutResult{}, domain.ErrNotConfigured
	}
	receiver := a.Destination(destination)
	if receiver == "" {
		return domain.PayoutResult{}, domain.ErrMissingRecipient
	}
	if !amount.Equal(amount.Truncate(domain.CentPlaces)) {
		return domain.PayoutResult{}, domain.ErrSubCentAmount
	}
	token, err := a.accessToken(ctx)
	if err != nil {
		return domain.PayoutResult{}, err
	}

	var req payoutRequest
	req.SenderBatchHeader.SenderBatchID = "withdraw_" + ulid.Make().String()
	req.SenderBatchHeader.EmailSubject = "Income engine withdrawal"
	req.Items = []payoutItem{{
		RecipientType: "EMAIL",
		Amount:        money{Value: amount.StringFixed(2), Currency: ledgerdomain.DefaultCurrency},
		Receiver:      receiver,
		Note:          "Income engine earnings withdrawal",
	}}

	// sent once: a 5xx can arrive after PayPal has accepted the batch
	var resp payoutResponse
	err = a.client.Do(ctx, transport.Request{
		Method:  http.MethodPost,
		URL:     a.baseURL + "/v1/payments/payouts",
		Header:  http.Header{"Authorization": {"Bearer " + token}},
		Body:    req,
		NoRetry: true,
	}, &resp)
	if err != nil {
		return domain.PayoutResult{}, fmt.Errorf("paypal payout: %w", err)
	}

	return domain.PayoutResult{
		Status:        ledgerdomain.WithdrawalStatusProcessing,
		TransactionID: resp.BatchHeader.PayoutBatchID,
		Message:       "PayPal payout initiated",
	}, nil
}

func parseMoney(m *money) decimal.Decimal {
	if m == nil {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(strings.TrimSpace(m.Value))
	if err != nil {
		return decimal.Zero
	}
	return v
}
