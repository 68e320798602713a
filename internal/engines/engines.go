// Package engines holds the built-in revenue engines. Each engine does its
// work through the collaborator interfaces in engine/domain, writes its
// artifacts to the ledger, and returns exactly the earnings it recorded.
package engines

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/incomeengine/internal/clock"
	"github.com/smallbiznis/incomeengine/internal/config"
	"github.com/smallbiznis/incomeengine/internal/engine/domain"
	ledgerdomain "github.com/smallbiznis/incomeengine/internal/ledger/domain"
	"github.com/smallbiznis/incomeengine/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	ContentWriterName   = "content-writer"
	AffiliateBlogName   = "affiliate-blog"
	MicroTasksName      = "micro-tasks"
	PrintOnDemandName   = "print-on-demand"
	SocialMediaName     = "social-media"
	FreelanceBidderName = "freelance-bidder"
)

const estimateWindow = 30 * 24 * time.Hour

type Deps struct {
	fx.In

	Ledger    ledgerdomain.Service
	Content   domain.ContentProvider
	Publish   domain.PublishTarget
	Feeds     domain.FeedSource
	Estimator domain.Estimator
	Clock     clock.Clock
	Config    config.Config
	Log       *zap.Logger
}

// base carries the plumbing every engine shares.
type base struct {
	name string
	deps Deps
	log  *zap.Logger
}

func newBase(name string, deps Deps) base {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = clock.SystemClock{}
	}
	return base{name: name, deps: deps, log: log.Named("engines." + name)}
}

func (b base) Name() string { return b.name }

// note writes a ledger log entry. A failed write is logged and swallowed so
// it never aborts a run.
func (b base) note(ctx context.Context, level ledgerdomain.LogLevel, msg string, data map[string]any) {
	err := b.deps.Ledger.AppendLog(ctx, ledgerdomain.AppendLogRequest{
		Level:   level,
		Engine:  b.name,
		Message: msg,
		Data:    data,
	})
	if err != nil {
		b.log.Warn("append log failed", zap.String("message", msg), zap.Error(err))
	}
}

func (b base) fail(ctx context.Context, msg string, err error) {
	b.log.Warn(msg, zap.Error(err))
	b.note(ctx, ledgerdomain.LogLevelError, msg+": "+err.Error(), nil)
}

// earn records a positive amount and returns what was recorded. Zero and
// negative estimates are not written.
func (b base) earn(ctx context.Context, amount decimal.Decimal, description string, metadata map[string]any) decimal.Decimal {
	amount = ledgerdomain.NormalizeAmount(amount)
	if !amount.IsPositive() {
		return decimal.Zero
	}
	earning, err := b.deps.Ledger.RecordEarning(ctx, ledgerdomain.RecordEarningRequest{
		Source:      b.name,
		Amount:      amount,
		Description: description,
		Metadata:    metadata,
	})
	if err != nil {
		b.fail(ctx, "record earning failed", err)
		return decimal.Zero
	}
	return earning.Amount
}

func (b base) since(window time.Duration) time.Time {
	return b.deps.Clock.Now().Add(-window)
}

// pick returns a random element of items.
func pick[T any](est domain.Estimator, items []T) T {
	return items[est.Intn(len(items))]
}

// eachContent walks every content row matching filter, page by page.
func (b base) eachContent(ctx context.Context, filter ledgerdomain.ContentFilter, fn func(ledgerdomain.Content) error) error {
	filter.PageSize = pagination.MaxPageSize
	for {
		rows, info, err := b.deps.Ledger.ListContent(ctx, filter)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if err := fn(row); err != nil {
				return err
			}
		}
		if !info.HasMore {
			return nil
		}
		filter.PageToken = info.NextPageToken
	}
}

func (b base) countContent(ctx context.Context, platform string, since time.Time) (int, error) {
	n := 0
	err := b.eachContent(ctx, ledgerdomain.ContentFilter{Platform: platform, Since: &since}, func(ledgerdomain.Content) error {
		n++
		return nil
	})
	return n, err
}
