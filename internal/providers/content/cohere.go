package content

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/smallbiznis/incomeengine/internal/engine/domain"
	"github.com/smallbiznis/incomeengine/internal/providers/transport"
)

const (
	cohereName       = "cohere"
	cohereDefaultURL = "https://api.cohere.ai/v1/generate"
	cohereModel      = "command"
)

// Throttle gates outbound provider calls. *ratelimit.ProviderThrottle
// satisfies it, including as a nil pointer.
type Throttle interface {
	Allow(ctx context.Context, provider string) error
}

type Cohere struct {
	apiKey   string
	endpoint string
	client   *transport.Client
	throttle Throttle
}

func NewCohere(apiKey string, client *transport.Client, throttle Throttle) *Cohere {
	if client == nil {
		client = transport.New()
	}
	return &Cohere{
		apiKey:   strings.TrimSpace(apiKey),
		endpoint: cohereDefaultURL,
		client:   client,
		throttle: throttle,
	}
}

// WithEndpoint points the client at another generate URL.
func (c *Cohere) WithEndpoint(url string) *Cohere {
	c.endpoint = url
	return c
}

func (c *Cohere) Name() string { return cohereName }

type cohereRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature"`
}

type cohereResponse struct {
	Generations []struct {
		Text string `json:"text"`
	} `json:"generations"`
}

func (c *Cohere) Generate(ctx context.Context, topic string, constraints domain.Constraints) (domain.GeneratedContent, error) {
	if c.apiKey == "" {
		return domain.GeneratedContent{}, fmt.Errorf("%s: no api key: %w", cohereName, domain.ErrProviderUnavailable)
	}
	if err := allow(ctx, c.throttle, cohereName); err != nil {
		return domain.GeneratedContent{}, err
	}

	prompt := topic
	if constraints.System != "" {
		prompt = constraints.System + "\n\n" + topic
	}

	var resp cohereResponse
	err := c.client.Do(ctx, transport.Request{
		Method: http.MethodPost,
		URL:    c.endpoint,
		Header: http.Header{"Authorization": {"Bearer " + c.apiKey}},
		Body: cohereRequest{
			Model:       cohereModel,
			Prompt:      prompt,
			MaxTokens:   constraints.MaxTokens,
			Temperature: constraints.Temperature,
		},
	}, &resp)
	if err != nil {
		return domain.GeneratedContent{}, providerError(cohereName, err)
	}
	if len(resp.Generations) == 0 || strings.TrimSpace(resp.Generations[0].Text) == "" {
		return domain.GeneratedContent{}, fmt.Errorf("%s: empty generation: %w", cohereName, domain.ErrProvider)
	}
	return domain.GeneratedContent{Body: resp.Generations[0].Text}, nil
}

func allow(ctx context.Context, throttle Throttle, provider string) error {
	if throttle == nil {
		return nil
	}
	if err := throttle.Allow(ctx, provider); err != nil {
		return fmt.Errorf("%s: %w: %w", provider, domain.ErrProviderUnavailable, err)
	}
	return nil
}

func providerError(provider string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if code := transport.StatusCode(err); code != 0 {
		return fmt.Errorf("%s: status %d: %w", provider, code, domain.ErrProvider)
	}
	return fmt.Errorf("%s: %w: %w", provider, domain.ErrProvider, err)
}
