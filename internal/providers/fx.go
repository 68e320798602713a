package providers

import (
	"github.com/smallbiznis/incomeengine/internal/config"
	"github.com/smallbiznis/incomeengine/internal/engine/domain"
	"github.com/smallbiznis/incomeengine/internal/providers/content"
	"github.com/smallbiznis/incomeengine/internal/providers/email"
	"github.com/smallbiznis/incomeengine/internal/providers/feeds"
	"github.com/smallbiznis/incomeengine/internal/providers/publish"
	"github.com/smallbiznis/incomeengine/internal/providers/slack"
	"github.com/smallbiznis/incomeengine/internal/providers/transport"
	"github.com/smallbiznis/incomeengine/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers",
	email.Module,
	slack.Module,
	fx.Provide(
		func() *transport.Client { return transport.New() },
		NewContentProvider,
		NewPublishTarget,
		NewFeedSource,
	),
)

// NewContentProvider chains Cohere ahead of OpenAI, the order the engines
// have always preferred.
func NewContentProvider(cfg config.Config, client *transport.Client, throttle *ratelimit.ProviderThrottle, log *zap.Logger) domain.ContentProvider {
	return content.NewChain(log,
		content.NewCohere(cfg.Providers.CohereAPIKey, client, throttle),
		content.NewOpenAI(cfg.Providers.OpenAIAPIKey, cfg.Providers.OpenAIModel, client, throttle),
	)
}

func NewPublishTarget(cfg config.Config, client *transport.Client) domain.PublishTarget {
	return publish.NewMedium(cfg.Providers.MediumToken, client)
}

func NewFeedSource(client *transport.Client) domain.FeedSource {
	return feeds.NewReader(client)
}
