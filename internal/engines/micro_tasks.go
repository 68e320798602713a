package engines

import (
	"context"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/incomeengine/internal/ledger/domain"
	"golang.org/x/sync/errgroup"
)

var (
	labelRate = decimal.RequireFromString("0.02")

	positiveWords = regexp.MustCompile(`(?i)love|great|best|perfect|exceeded`)
	negativeWords = regexp.MustCompile(`(?i)terrible|broke|disappointing|not recommend`)

	sentimentSamples = []string{
		"This product exceeded my expectations",
		"Terrible customer service experience",
		"Average quality, nothing special",
		"Absolutely love this purchase",
		"Would not recommend to anyone",
		"Great value for the price",
		"Disappointing quality overall",
		"Perfect gift for the holidays",
		"Broke after two weeks of use",
		"Best purchase I've made this year",
	}
	productCategories = []string{"electronics", "clothing", "books", "home", "sports"}
	qaTopics          = []string{"science", "history", "technology", "health", "finance"}
)

const (
	classificationItems = 20
	qaItems             = 10
)

// MicroTasks tracks passive bandwidth sharing and produces labelled data
// batches.
type MicroTasks struct {
	base
}

func NewMicroTasks(deps Deps) *MicroTasks {
	return &MicroTasks{base: newBase(MicroTasksName, deps)}
}

type labelledItem struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

func (m *MicroTasks) Run(ctx context.Context) (decimal.Decimal, error) {
	m.note(ctx, ledgerdomain.LogLevelInfo, "Micro-tasks engine starting", nil)

	total := m.bandwidthSharing(ctx)
	total = total.Add(m.labelling(ctx))
	return total, nil
}

// bandwidthSharing estimates $0.05 to $0.20 when an account is configured.
func (m *MicroTasks) bandwidthSharing(ctx context.Context) decimal.Decimal {
	if m.deps.Config.Providers.HoneygainEmail == "" {
		return decimal.Zero
	}
	amount, err := ledgerdomain.AmountFromFloat(0.05 + m.deps.Estimator.Float64()*0.15)
	if err != nil {
		m.fail(ctx, "Honeygain estimate failed", err)
		return decimal.Zero
	}
	earned := m.earn(ctx, amount, "Honeygain passive bandwidth sharing", nil)
	if earned.IsPositive() {
		m.note(ctx, ledgerdomain.LogLevelInfo, "Honeygain earned: $"+earned.StringFixed(4), nil)
	}
	return earned
}

func (m *MicroTasks) labelling(ctx context.Context) decimal.Decimal {
	var sentiment, classification, qa []labelledItem

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sentiment = labelSentiment()
		return gctx.Err()
	})
	g.Go(func() error {
		classification = m.labelCategories()
		return gctx.Err()
	})
	g.Go(func() error {
		qa = m.qaPairs()
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		m.fail(ctx, "Training data error", err)
		return decimal.Zero
	}

	items := len(sentiment) + len(classification) + len(qa)
	earned := m.earn(ctx, decimal.NewFromInt(int64(items)).Mul(labelRate),
		fmt.Sprintf("Data labeling: %d items", items),
		map[string]any{"sentiment": len(sentiment), "classification": len(classification), "qa": len(qa)})

	if earned.IsPositive() {
		if _, err := m.deps.Ledger.RecordTask(ctx, ledgerdomain.RecordTaskRequest{
			Engine:   m.name,
			TaskType: "labelling",
			Status:   ledgerdomain.TaskStatusCompleted,
			Result:   fmt.Sprintf(`{"items":%d}`, items),
			Earnings: earned,
		}); err != nil {
			m.fail(ctx, "record task failed", err)
		}
	}
	return earned
}

func labelSentiment() []labelledItem {
	out := make([]labelledItem, 0, len(sentimentSamples))
	for _, s := range sentimentSamples {
		label := "neutral"
		switch {
		case positiveWords.MatchString(s):
			label = "positive"
		case negativeWords.MatchString(s):
			label = "negative"
		}
		out = append(out, labelledItem{Text: s, Label: label})
	}
	return out
}

func (m *MicroTasks) labelCategories() []labelledItem {
	out := make([]labelledItem, 0, classificationItems)
	for i := 0; i < classificationItems; i++ {
		out = append(out, labelledItem{
			Text:  fmt.Sprintf("Sample product description %d", i),
			Label: pick(m.deps.Estimator, productCategories),
		})
	}
	return out
}

func (m *MicroTasks) qaPairs() []labelledItem {
	out := make([]labelledItem, 0, qaItems)
	for i := 0; i < qaItems; i++ {
		out = append(out, labelledItem{
			Text:  fmt.Sprintf("What is important about topic %d?", i),
			Label: pick(m.deps.Estimator, qaTopics),
		})
	}
	return out
}
