package engines

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/incomeengine/internal/engine/domain"
	ledgerdomain "github.com/smallbiznis/incomeengine/internal/ledger/domain"
	"github.com/smallbiznis/incomeengine/internal/providers/content"
	"go.uber.org/zap"
)

const writerSystemPrompt = "You are an expert content writer who creates engaging, SEO-optimized articles that provide genuine value to readers."

var (
	// Estimated Medium partner earnings per view.
	mediumViewRate = decimal.RequireFromString("0.02")

	writerNiches = []string{
		"personal finance tips",
		"productivity hacks",
		"AI and technology trends",
		"health and wellness",
		"side hustle ideas",
		"investing for beginners",
		"remote work tips",
		"self improvement",
		"cryptocurrency basics",
		"sustainable living",
	}
)

type affiliateProduct struct {
	Name    string
	ASIN    string
	Context string
}

var writerProducts = []affiliateProduct{
	{Name: "Audible", ASIN: "B00NB86OYE", Context: "audiobooks and learning"},
	{Name: "Kindle Unlimited", ASIN: "B00DBYBNEE", Context: "reading and education"},
	{Name: "Ring Doorbell", ASIN: "B08N5NQ69J", Context: "home security"},
	{Name: "Echo Dot", ASIN: "B09B8V1LZ3", Context: "smart home and productivity"},
	{Name: "Fire TV Stick", ASIN: "B08C1W5N87", Context: "entertainment and streaming"},
}

// ContentWriter writes articles for Medium and estimates earnings from the
// views of the last 30 days of articles.
type ContentWriter struct {
	base
}

func NewContentWriter(deps Deps) *ContentWriter {
	return &ContentWriter{base: newBase(ContentWriterName, deps)}
}

func (w *ContentWriter) Run(ctx context.Context) (decimal.Decimal, error) {
	w.note(ctx, ledgerdomain.LogLevelInfo, "Content writer engine starting", nil)

	articles := w.deps.Estimator.Intn(2) + 1
	for i := 0; i < articles; i++ {
		if err := ctx.Err(); err != nil {
			return decimal.Zero, err
		}
		w.writeArticle(ctx)
	}

	return w.estimateViews(ctx), nil
}

func (w *ContentWriter) writeArticle(ctx context.Context) {
	niche := pick(w.deps.Estimator, writerNiches)
	product := pick(w.deps.Estimator, writerProducts)
	w.note(ctx, ledgerdomain.LogLevelInfo, "Generating article about: "+niche, nil)

	generated, err := w.deps.Content.Generate(ctx, writerPrompt(niche, product), domain.Constraints{
		MaxTokens:   2000,
		Temperature: 0.7,
		System:      writerSystemPrompt,
	})
	if err != nil {
		w.fail(ctx, "Failed to generate content", err)
		return
	}

	article := content.Parse(generated.Body, "Essential Tips for "+niche)
	if len(article.Tags) == 0 {
		article.Tags = []string{strings.Fields(niche)[0], "tips", "lifestyle", "self-improvement", "advice"}
	}
	link := w.productURL(product)
	if !strings.Contains(article.Body, link) {
		article.Body += fmt.Sprintf("\n\n*If you found this helpful, you might also enjoy [%s](%s). It has been a game-changer for my %s.*",
			product.Name, link, product.Context)
	}

	location, err := w.deps.Publish.Publish(ctx, article)
	if err != nil {
		w.fail(ctx, "Medium post failed", err)
		return
	}
	status := ledgerdomain.ContentStatusPublished
	if location.Queued {
		status = ledgerdomain.ContentStatusSaved
		w.note(ctx, ledgerdomain.LogLevelWarn, "No Medium token, article saved locally", nil)
	}

	if _, err := w.deps.Ledger.RecordContent(ctx, ledgerdomain.RecordContentRequest{
		Type:     "article",
		Platform: "medium",
		Title:    article.Title,
		URL:      location.URL,
		Status:   status,
		Metadata: map[string]any{"niche": niche, "tags": article.Tags, "product": product.Name},
	}); err != nil {
		w.fail(ctx, "record content failed", err)
		return
	}

	result, _ := json.Marshal(map[string]string{"title": article.Title, "url": location.URL, "id": location.ID})
	if _, err := w.deps.Ledger.RecordTask(ctx, ledgerdomain.RecordTaskRequest{
		Engine:   w.name,
		TaskType: "article",
		Status:   ledgerdomain.TaskStatusCompleted,
		Result:   string(result),
	}); err != nil {
		w.fail(ctx, "record task failed", err)
	}
	w.note(ctx, ledgerdomain.LogLevelInfo, "Article posted: "+article.Title, map[string]any{"url": location.URL})
}

// estimateViews credits each recent Medium article with 5 to 54 views.
func (w *ContentWriter) estimateViews(ctx context.Context) decimal.Decimal {
	since := w.since(estimateWindow)
	total := decimal.Zero
	articles := 0

	err := w.eachContent(ctx, ledgerdomain.ContentFilter{Platform: "medium", Since: &since}, func(c ledgerdomain.Content) error {
		views := int64(w.deps.Estimator.Intn(50) + 5)
		earned := decimal.NewFromInt(views).Mul(mediumViewRate)
		if err := w.deps.Ledger.IncrementContentMetrics(ctx, c.ID, views, earned); err != nil {
			w.log.Warn("increment content metrics failed", zap.String("content_id", c.ID.String()), zap.Error(err))
			return nil
		}
		total = total.Add(earned)
		articles++
		return nil
	})
	if err != nil {
		w.fail(ctx, "Earnings check failed", err)
	}

	return w.earn(ctx, total, "Medium article earnings (estimated)", map[string]any{"articles": articles})
}

func (w *ContentWriter) productURL(p affiliateProduct) string {
	return fmt.Sprintf("https://www.amazon.com/dp/%s?tag=%s", p.ASIN, w.deps.Config.Providers.AmazonAffiliateTag)
}

func writerPrompt(niche string, p affiliateProduct) string {
	return fmt.Sprintf(`Write a compelling, well-researched Medium article about %q.

Requirements:
- Catchy, click-worthy title (under 60 chars)
- Engaging introduction that hooks the reader
- 5-7 actionable tips or insights
- Use subheadings for each section
- Include a natural mention of %s in context of %s
- Conversational, authoritative tone
- 800-1200 words
- End with a call to action
- Include relevant hashtags for Medium

Format:
TITLE: [your title]
TAGS: [tag1, tag2, tag3, tag4, tag5]
---
[article body in markdown]`, niche, p.Name, p.Context)
}
