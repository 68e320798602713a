package engines

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/incomeengine/internal/engine/domain"
	ledgerdomain "github.com/smallbiznis/incomeengine/internal/ledger/domain"
	"github.com/smallbiznis/incomeengine/internal/providers/content"
	"go.uber.org/zap"
)

const trendItemsPerFeed = 5

var (
	// Expected commission per click: 3% conversion at $2.50 average.
	clickConversion = decimal.RequireFromString("0.03")
	clickCommission = decimal.RequireFromString("2.50")

	trendSources = []string{
		"https://trends.google.com/trends/trendingsearches/daily/rss?geo=US",
		"https://hnrss.org/frontpage",
		"https://www.reddit.com/r/technology/.rss",
	}

	evergreenTopics = []string{
		"best budget laptops",
		"work from home essentials",
		"best productivity apps",
		"beginner investing guide",
		"passive income ideas",
		"best noise cancelling headphones",
		"home office setup guide",
		"best books for entrepreneurs",
		"fitness gadgets worth buying",
		"money saving tips",
	}

	categoryProducts = map[string][]string{
		"tech":         {"laptop", "headphones", "keyboard", "monitor", "webcam"},
		"productivity": {"planner", "standing desk", "ergonomic chair", "whiteboard"},
		"health":       {"fitness tracker", "yoga mat", "water bottle", "resistance bands"},
		"books":        {"self-help book", "business book", "investing book", "productivity book"},
	}

	categoryMatchers = []struct {
		category string
		pattern  *regexp.Regexp
	}{
		{"tech", regexp.MustCompile(`laptop|phone|headphone|tech|gadget|computer|keyboard|monitor`)},
		{"productivity", regexp.MustCompile(`productiv|work|office|desk|plan`)},
		{"health", regexp.MustCompile(`health|fitness|yoga|exercise|wellness`)},
		{"books", regexp.MustCompile(`book|read|learn|study`)},
	}
)

// AffiliateBlog writes product review pages for trending topics and
// estimates affiliate commissions on recent reviews.
type AffiliateBlog struct {
	base
}

func NewAffiliateBlog(deps Deps) *AffiliateBlog {
	return &AffiliateBlog{base: newBase(AffiliateBlogName, deps)}
}

type affiliateLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (a *AffiliateBlog) Run(ctx context.Context) (decimal.Decimal, error) {
	a.note(ctx, ledgerdomain.LogLevelInfo, "Affiliate blog engine starting", nil)

	topics := a.trendingTopics(ctx)
	a.writeReview(ctx, pick(a.deps.Estimator, topics))

	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	return a.trackClicks(ctx), nil
}

// trendingTopics never returns an empty list; evergreen topics are always
// appended after whatever the feeds yielded.
func (a *AffiliateBlog) trendingTopics(ctx context.Context) []string {
	var topics []string
	for _, source := range trendSources {
		items, err := a.deps.Feeds.Fetch(ctx, source, trendItemsPerFeed)
		if err != nil {
			a.log.Debug("trend source unavailable", zap.String("source", source), zap.Error(err))
			continue
		}
		for _, item := range items {
			if title := strings.TrimSpace(item.Title); title != "" {
				topics = append(topics, title)
			}
		}
	}
	return append(topics, evergreenTopics...)
}

func (a *AffiliateBlog) writeReview(ctx context.Context, topic string) {
	category := detectCategory(topic)
	links := a.affiliateLinks(categoryProducts[category])

	generated, err := a.deps.Content.Generate(ctx, reviewPrompt(topic, links), domain.Constraints{
		MaxTokens:   2500,
		Temperature: 0.7,
	})
	if err != nil {
		a.fail(ctx, "Review generation failed", err)
		return
	}
	review := content.Parse(generated.Body, topic)

	if _, err := a.deps.Ledger.RecordContent(ctx, ledgerdomain.RecordContentRequest{
		Type:     "review",
		Platform: "self-hosted",
		Title:    review.Title,
		URL:      "/blog/" + slug.Make(review.Title),
		Status:   ledgerdomain.ContentStatusPublished,
		Metadata: map[string]any{
			"topic":          topic,
			"category":       category,
			"affiliateLinks": len(links),
		},
	}); err != nil {
		a.fail(ctx, "record content failed", err)
		return
	}
	a.note(ctx, ledgerdomain.LogLevelInfo, "Review created: "+review.Title, nil)
}

func (a *AffiliateBlog) affiliateLinks(products []string) []affiliateLink {
	tag := a.deps.Config.Providers.AmazonAffiliateTag
	links := make([]affiliateLink, 0, len(products))
	for _, p := range products {
		q := url.Values{"k": {p}, "tag": {tag}}
		links = append(links, affiliateLink{Name: p, URL: "https://www.amazon.com/s?" + q.Encode()})
	}
	return links
}

// trackClicks credits each recent review with 0 to 9 estimated clicks.
func (a *AffiliateBlog) trackClicks(ctx context.Context) decimal.Decimal {
	since := a.since(estimateWindow)
	total := decimal.Zero

	err := a.eachContent(ctx, ledgerdomain.ContentFilter{Platform: "self-hosted", Since: &since}, func(c ledgerdomain.Content) error {
		clicks := a.deps.Estimator.Intn(10)
		earned := decimal.NewFromInt(int64(clicks)).Mul(clickConversion).Mul(clickCommission)
		if !earned.IsPositive() {
			return nil
		}
		if err := a.deps.Ledger.IncrementContentMetrics(ctx, c.ID, 0, earned); err != nil {
			a.log.Warn("increment content metrics failed", zap.String("content_id", c.ID.String()), zap.Error(err))
			return nil
		}
		total = total.Add(earned)
		return nil
	})
	if err != nil {
		a.fail(ctx, "Click tracking failed", err)
	}

	return a.earn(ctx, total, "Affiliate commissions", nil)
}

func detectCategory(title string) string {
	lower := strings.ToLower(title)
	for _, m := range categoryMatchers {
		if m.pattern.MatchString(lower) {
			return m.category
		}
	}
	return "tech"
}

func reviewPrompt(topic string, links []affiliateLink) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a comprehensive product review/listicle article about %q.\n\n", topic)
	b.WriteString("Include these products with affiliate links:\n")
	for _, l := range links {
		fmt.Fprintf(&b, "- [%s](%s)\n", l.Name, l.URL)
	}
	b.WriteString(`
Requirements:
- SEO-optimized title with the year
- Compelling intro
- Review each product with pros/cons
- "Best for" recommendation for each
- Comparison table data
- Buying guide section
- FAQ section
- 1000-1500 words
- Natural affiliate link placement

Format as markdown with TITLE: on the first line.`)
	return b.String()
}
