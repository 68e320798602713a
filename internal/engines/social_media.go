package engines

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/incomeengine/internal/engine/domain"
	ledgerdomain "github.com/smallbiznis/incomeengine/internal/ledger/domain"
)

const (
	postsPerRun    = 2
	postTitleLimit = 100
)

var (
	// Revenue is only recorded for posts estimated above this amount.
	postRevenueFloor = decimal.RequireFromString("0.10")

	socialFormats = []struct {
		Type   string
		Prompt string
	}{
		{"thread", "Create a viral Twitter thread (10 tweets) about a counterintuitive money-saving tip. Make it engaging with hooks and cliffhangers."},
		{"linkedin", "Write a compelling LinkedIn post about a career lesson that gets high engagement. Use short paragraphs and line breaks."},
		{"pinterest", `Write a Pinterest pin title and description for a "10 Ways to Save $1000 This Month" infographic. Make it keyword-rich.`},
	}
)

// SocialMedia drafts posts and queues them for manual posting.
type SocialMedia struct {
	base
}

func NewSocialMedia(deps Deps) *SocialMedia {
	return &SocialMedia{base: newBase(SocialMediaName, deps)}
}

func (s *SocialMedia) Run(ctx context.Context) (decimal.Decimal, error) {
	s.note(ctx, ledgerdomain.LogLevelInfo, "Social media engine starting", nil)

	total := decimal.Zero
	for i := 0; i < postsPerRun; i++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		total = total.Add(s.post(ctx))
	}
	return total, nil
}

func (s *SocialMedia) post(ctx context.Context) decimal.Decimal {
	format := pick(s.deps.Estimator, socialFormats)

	generated, err := s.deps.Content.Generate(ctx, format.Prompt, domain.Constraints{MaxTokens: 1000, Temperature: 0.8})
	if err != nil {
		s.fail(ctx, "Content generation failed", err)
		return decimal.Zero
	}

	title := generated.Body
	if r := []rune(title); len(r) > postTitleLimit {
		title = string(r[:postTitleLimit])
	}
	if _, err := s.deps.Ledger.RecordContent(ctx, ledgerdomain.RecordContentRequest{
		Type:     format.Type,
		Platform: format.Type,
		Title:    title,
		URL:      "queued",
		Status:   ledgerdomain.ContentStatusQueued,
		Metadata: map[string]any{"fullContent": generated.Body, "status": "ready_to_post"},
	}); err != nil {
		s.fail(ctx, "record content failed", err)
		return decimal.Zero
	}
	s.note(ctx, ledgerdomain.LogLevelInfo, "Social content created: "+format.Type, nil)

	revenue, err := ledgerdomain.AmountFromFloat(s.deps.Estimator.Float64() * 0.5)
	if err != nil || !revenue.GreaterThan(postRevenueFloor) {
		return decimal.Zero
	}
	return s.earn(ctx, revenue, "Social media "+format.Type+" revenue", nil)
}
