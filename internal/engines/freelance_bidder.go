package engines

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/incomeengine/internal/engine/domain"
	ledgerdomain "github.com/smallbiznis/incomeengine/internal/ledger/domain"
	"go.uber.org/zap"
)

const (
	jobItemsPerFeed   = 10
	maxProposals      = 5
	proposalWindow    = 7 * 24 * time.Hour
	proposalsPerGig   = 20
	proposalResultMax = 500
)

var (
	gigValue = decimal.NewFromInt(35)

	jobFeeds = []string{
		"https://www.reddit.com/r/forhire/new/.rss",
		"https://www.reddit.com/r/freelance/.rss",
	}
	hiringWords = regexp.MustCompile(`(?i)hiring|looking for|need|want|seeking`)
	skillWords  = regexp.MustCompile(`(?i)writer|content|blog|copy|data|virtual`)
)

// FreelanceBidder drafts proposals for matching job posts. One in twenty
// proposals from the last 7 days is assumed to win a $35 gig.
type FreelanceBidder struct {
	base
}

func NewFreelanceBidder(deps Deps) *FreelanceBidder {
	return &FreelanceBidder{base: newBase(FreelanceBidderName, deps)}
}

func (f *FreelanceBidder) Run(ctx context.Context) (decimal.Decimal, error) {
	f.note(ctx, ledgerdomain.LogLevelInfo, "Freelance bidder engine starting", nil)

	opportunities := f.opportunities(ctx)
	f.note(ctx, ledgerdomain.LogLevelInfo, fmt.Sprintf("Found %d opportunities", len(opportunities)), nil)

	if len(opportunities) > maxProposals {
		opportunities = opportunities[:maxProposals]
	}
	for _, opp := range opportunities {
		if err := ctx.Err(); err != nil {
			return decimal.Zero, err
		}
		f.propose(ctx, opp)
	}

	return f.trackGigs(ctx), nil
}

func (f *FreelanceBidder) opportunities(ctx context.Context) []domain.FeedItem {
	var out []domain.FeedItem
	for _, feed := range jobFeeds {
		items, err := f.deps.Feeds.Fetch(ctx, feed, jobItemsPerFeed)
		if err != nil {
			f.log.Debug("job feed unavailable", zap.String("feed", feed), zap.Error(err))
			continue
		}
		for _, item := range items {
			if hiringWords.MatchString(item.Title) && skillWords.MatchString(item.Title) {
				out = append(out, item)
			}
		}
	}
	return out
}

func (f *FreelanceBidder) propose(ctx context.Context, opp domain.FeedItem) {
	prompt := fmt.Sprintf(`Write a brief, professional freelance proposal for this job:
%q

Requirements:
- Professional but friendly tone
- Mention relevant experience
- Include a competitive rate
- Show understanding of the project
- Keep it under 200 words
- End with a call to action`, opp.Title)

	generated, err := f.deps.Content.Generate(ctx, prompt, domain.Constraints{MaxTokens: 300, Temperature: 0.7})
	if err != nil {
		f.fail(ctx, "Proposal generation failed", err)
		return
	}

	proposal := generated.Body
	if r := []rune(proposal); len(r) > proposalResultMax {
		proposal = string(r[:proposalResultMax])
	}
	result, _ := json.Marshal(map[string]string{"opportunity": opp.Title, "link": opp.Link, "proposal": proposal})
	if _, err := f.deps.Ledger.RecordTask(ctx, ledgerdomain.RecordTaskRequest{
		Engine:   f.name,
		TaskType: "proposal",
		Status:   ledgerdomain.TaskStatusCompleted,
		Result:   string(result),
	}); err != nil {
		f.fail(ctx, "record task failed", err)
	}
}

func (f *FreelanceBidder) trackGigs(ctx context.Context) decimal.Decimal {
	since := f.since(proposalWindow)
	proposals, err := f.deps.Ledger.CountTasks(ctx, ledgerdomain.TaskCountFilter{
		Engine:   f.name,
		TaskType: "proposal",
		Since:    &since,
	})
	if err != nil {
		f.fail(ctx, "Gig tracking failed", err)
		return decimal.Zero
	}
	gigs := proposals / proposalsPerGig
	return f.earn(ctx, decimal.NewFromInt(gigs).Mul(gigValue), fmt.Sprintf("Freelance gigs completed: %d", gigs), nil)
}
