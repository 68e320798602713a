package engines

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/incomeengine/internal/engine/domain"
	ledgerdomain "github.com/smallbiznis/incomeengine/internal/ledger/domain"
)

const (
	designWidth   = 4500
	designHeight  = 5400
	designLineMax = 15
	// One design in fifty sells in a month.
	designsPerSale = 50
)

var designCommission = decimal.RequireFromString("3.50")

type designNiche struct {
	Theme string
	Tags  []string
}

var (
	designNiches = []designNiche{
		{Theme: "motivational quotes", Tags: []string{"motivation", "inspirational", "quotes"}},
		{Theme: "funny programming jokes", Tags: []string{"programmer", "coding", "developer", "funny"}},
		{Theme: "dog lover sayings", Tags: []string{"dog", "pet", "animal lover", "funny"}},
		{Theme: "cat lover humor", Tags: []string{"cat", "kitty", "pet", "funny"}},
		{Theme: "dad jokes", Tags: []string{"dad", "father", "funny", "humor"}},
		{Theme: "nurse appreciation", Tags: []string{"nurse", "healthcare", "medical", "appreciation"}},
		{Theme: "teacher quotes", Tags: []string{"teacher", "education", "school", "appreciation"}},
		{Theme: "gym motivation", Tags: []string{"fitness", "gym", "workout", "motivation"}},
		{Theme: "coffee lover", Tags: []string{"coffee", "caffeine", "morning", "funny"}},
		{Theme: "introvert humor", Tags: []string{"introvert", "funny", "antisocial", "humor"}},
	}

	fallbackQuotes = map[string][]string{
		"motivational quotes":     {"Hustle Beats Talent", "Dream Big Work Hard", "Stay Hungry Stay Humble"},
		"funny programming jokes": {"I Code Therefore I Am", "Works On My Machine", "Bug Free Zone (Lie)"},
		"dog lover sayings":       {"Dog Mom Life", "My Dog Is My Therapist", "Dogs Before Dudes"},
	}
	defaultQuotes = []string{"Living My Best Life", "Good Vibes Only", "Be Kind Always"}

	designPalettes = []struct{ Background, Text string }{
		{"#1a1a2e", "#e94560"},
		{"#0f3460", "#e94560"},
		{"#16213e", "#00b4d8"},
		{"#1b1b2f", "#e7e247"},
		{"#2d3436", "#00cec9"},
		{"#000000", "#ffffff"},
	}
)

// PrintOnDemand renders text designs for manual upload and estimates sales
// from the designs of the last 30 days.
type PrintOnDemand struct {
	base
	dir string
}

func NewPrintOnDemand(deps Deps) *PrintOnDemand {
	dir := deps.Config.DesignsDir
	if dir == "" {
		dir = "designs"
	}
	return &PrintOnDemand{base: newBase(PrintOnDemandName, deps), dir: dir}
}

func (p *PrintOnDemand) Run(ctx context.Context) (decimal.Decimal, error) {
	p.note(ctx, ledgerdomain.LogLevelInfo, "Print-on-demand engine starting", nil)

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		p.fail(ctx, "Designs directory unavailable", err)
	} else {
		designs := p.deps.Estimator.Intn(2) + 2
		for i := 0; i < designs; i++ {
			if err := ctx.Err(); err != nil {
				return decimal.Zero, err
			}
			p.createDesign(ctx, i)
		}
	}

	return p.trackSales(ctx), nil
}

func (p *PrintOnDemand) createDesign(ctx context.Context, seq int) {
	niche := pick(p.deps.Estimator, designNiches)
	quote := p.quote(ctx, niche)

	path := filepath.Join(p.dir, fmt.Sprintf("design_%d_%d.svg", p.deps.Clock.Now().UnixMilli(), seq))
	palette := pick(p.deps.Estimator, designPalettes)
	if err := os.WriteFile(path, renderDesign(quote, palette.Background, palette.Text), 0o644); err != nil {
		p.fail(ctx, "Design generation failed", err)
		return
	}

	if _, err := p.deps.Ledger.RecordContent(ctx, ledgerdomain.RecordContentRequest{
		Type:     "design",
		Platform: "redbubble",
		Title:    quote,
		URL:      path,
		Status:   ledgerdomain.ContentStatusQueued,
		Metadata: map[string]any{"niche": niche.Theme, "tags": niche.Tags},
	}); err != nil {
		p.fail(ctx, "record content failed", err)
		return
	}
	p.note(ctx, ledgerdomain.LogLevelInfo, "Design ready for upload: "+path, map[string]any{"tags": strings.Join(niche.Tags, ", ")})

	result, _ := json.Marshal(map[string]any{"path": path, "title": quote, "tags": niche.Tags})
	if _, err := p.deps.Ledger.RecordTask(ctx, ledgerdomain.RecordTaskRequest{
		Engine:   p.name,
		TaskType: "upload",
		Status:   ledgerdomain.TaskStatusPending,
		Result:   string(result),
	}); err != nil {
		p.fail(ctx, "record task failed", err)
	}
}

// quote asks the content provider for a short slogan and falls back to a
// canned one.
func (p *PrintOnDemand) quote(ctx context.Context, niche designNiche) string {
	prompt := fmt.Sprintf(`Generate a short, catchy, original t-shirt design text about %q.
Requirements:
- Maximum 6 words
- Funny, clever, or inspiring
- Would look great on a t-shirt
- Original (not copyrighted)
- Respond with ONLY the text, nothing else`, niche.Theme)

	generated, err := p.deps.Content.Generate(ctx, prompt, domain.Constraints{MaxTokens: 50, Temperature: 0.9})
	if err == nil {
		if text := strings.TrimSpace(strings.ReplaceAll(generated.Body, `"`, "")); text != "" {
			return text
		}
	}

	options, ok := fallbackQuotes[niche.Theme]
	if !ok {
		options = defaultQuotes
	}
	return pick(p.deps.Estimator, options)
}

func (p *PrintOnDemand) trackSales(ctx context.Context) decimal.Decimal {
	designs, err := p.countContent(ctx, "redbubble", p.since(estimateWindow))
	if err != nil {
		p.fail(ctx, "Sales tracking failed", err)
		return decimal.Zero
	}
	sales := designs / designsPerSale
	return p.earn(ctx, decimal.NewFromInt(int64(sales)).Mul(designCommission),
		fmt.Sprintf("POD sales (%d items)", sales), nil)
}

// renderDesign lays the quote out in upper case, at most designLineMax
// characters per line, centred on the canvas.
func renderDesign(quote, background, foreground string) []byte {
	var lines []string
	current := ""
	for _, word := range strings.Fields(quote) {
		candidate := strings.TrimSpace(current + " " + word)
		if len(candidate) > designLineMax && current != "" {
			lines = append(lines, current)
			current = word
			continue
		}
		current = candidate
	}
	if current != "" {
		lines = append(lines, current)
	}

	fontSize := 400
	if len(quote) > 20 {
		fontSize = 300
	}
	lineHeight := float64(fontSize) * 1.3
	startY := float64(designHeight)/2 - float64(len(lines)-1)*lineHeight/2

	var b bytes.Buffer
	fmt.Fprintf(&b, `<svg width="%d" height="%d" xmlns="http://www.w3.org/2000/svg">`+"\n", designWidth, designHeight)
	fmt.Fprintf(&b, `  <rect width="100%%" height="100%%" fill="%s"/>`+"\n", background)
	for i, line := range lines {
		fmt.Fprintf(&b, `  <text x="50%%" y="%.0f" text-anchor="middle" font-family="Impact, sans-serif" font-size="%d" fill="%s" font-weight="bold" letter-spacing="10">`,
			startY+float64(i)*lineHeight, fontSize, foreground)
		_ = xml.EscapeText(&b, []byte(strings.ToUpper(line)))
		b.WriteString("</text>\n")
	}
	b.WriteString("</svg>\n")
	return b.Bytes()
}
