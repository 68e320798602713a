package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallbiznis/incomeengine/internal/engine/domain"
	"go.uber.org/zap"
)

// Chain tries each provider in order and returns the first success.
type Chain struct {
	providers []domain.ContentProvider
	log       *zap.Logger
}

func NewChain(log *zap.Logger, providers ...domain.ContentProvider) *Chain {
	if log == nil {
		log = zap.NewNop()
	}
	return &Chain{providers: providers, log: log.Named("content.chain")}
}

func (c *Chain) Name() string { return "chain" }

// Generate returns ErrProviderUnavailable when no provider is configured and
// the joined failures when every configured provider failed.
func (c *Chain) Generate(ctx context.Context, topic string, constraints domain.Constraints) (domain.GeneratedContent, error) {
	var errs []error
	for _, p := range c.providers {
		out, err := p.Generate(ctx, topic, constraints)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return domain.GeneratedContent{}, ctx.Err()
		}
		if !errors.Is(err, domain.ErrProviderUnavailable) {
			c.log.Warn("content provider failed", zap.String("provider", p.Name()), zap.Error(err))
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return domain.GeneratedContent{}, fmt.Errorf("no content provider: %w", domain.ErrProviderUnavailable)
	}
	return domain.GeneratedContent{}, errors.Join(errs...)
}
