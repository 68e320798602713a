package domain

import (
	"context"
	"time"
)

// Constraints shape a generation request.
type Constraints struct {
	MaxTokens   int
	Temperature float64
	// System is an optional instruction sent ahead of the prompt.
	System string
}

type GeneratedContent struct {
	Title string
	Body  string
	Tags  []string
}

// ContentProvider produces text for a topic. Implementations return
// ErrProviderUnavailable when they are not configured or throttled, and
// ErrProvider when the backend rejected the call.
type ContentProvider interface {
	Name() string
	Generate(ctx context.Context, topic string, constraints Constraints) (GeneratedContent, error)
}

// PublishedLocation is where a piece of content ended up.
type PublishedLocation struct {
	URL string
	ID  string
	// Queued is set when no publishing credential is configured and the
	// content waits for manual posting.
	Queued bool
}

// QueuedLocation is returned by publish targets that cannot post on their own.
var QueuedLocation = PublishedLocation{URL: "local://saved", Queued: true}

type PublishTarget interface {
	Publish(ctx context.Context, content GeneratedContent) (PublishedLocation, error)
}

// FeedItem is one entry of a trend or job feed.
type FeedItem struct {
	Title     string
	Link      string
	Source    string
	Published time.Time
}

// FeedSource reads recent items from a syndication feed.
type FeedSource interface {
	Fetch(ctx context.Context, url string, limit int) ([]FeedItem, error)
}

// Estimator supplies the random draws engines use for earnings estimates.
// Production uses a seeded generator; tests pin exact sequences.
type Estimator interface {
	// Intn returns a value in [0, n). It returns 0 when n <= 0.
	Intn(n int) int
	// Float64 returns a value in [0, 1).
	Float64() float64
}
