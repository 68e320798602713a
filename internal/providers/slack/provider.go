package slack

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/smallbiznis/incomeengine/internal/config"
	"github.com/smallbiznis/incomeengine/internal/providers/transport"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.slack",
	fx.Provide(NewFromConfig),
)

type Provider interface {
	PostMessage(ctx context.Context, channelID string, message string) error
}

// NoOpProvider drops every message. It is used when no webhook is configured.
type NoOpProvider struct{}

func (p *NoOpProvider) PostMessage(ctx context.Context, channelID string, message string) error {
	return nil
}

func NewFromConfig(cfg config.Config, client *transport.Client, log *zap.Logger) Provider {
	if !cfg.Slack.Enabled() {
		log.Named("slack").Info("slack webhook not configured, summaries are not posted")
		return &NoOpProvider{}
	}
	return NewWebhook(cfg.Slack.WebhookURL, client)
}

// Webhook posts to a Slack incoming webhook. The channel only applies to
// legacy webhooks; app webhooks are bound to one channel and ignore it.
type Webhook struct {
	url    string
	client *transport.Client
}

func NewWebhook(url string, client *transport.Client) *Webhook {
	return &Webhook{url: strings.TrimSpace(url), client: client}
}

type webhookPayload struct {
	Text    string `json:"text"`
	Channel string `json:"channel,omitempty"`
}

func (w *Webhook) PostMessage(ctx context.Context, channelID string, message string) error {
	err := w.client.Do(ctx, transport.Request{
		Method: http.MethodPost,
		URL:    w.url,
		Body:   webhookPayload{Text: message, Channel: strings.TrimSpace(channelID)},
	}, nil)
	if err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}
