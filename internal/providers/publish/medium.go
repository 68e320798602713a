package publish

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/smallbiznis/incomeengine/internal/engine/domain"
	"github.com/smallbiznis/incomeengine/internal/providers/transport"
)

const mediumDefaultBaseURL = "https://api.medium.com/v1"

// Medium posts markdown articles to the token owner's profile. Without a
// token it returns domain.QueuedLocation so the article waits for manual
// posting.
type Medium struct {
	token   string
	baseURL string
	client  *transport.Client
}

func NewMedium(token string, client *transport.Client) *Medium {
	if client == nil {
		client = transport.New()
	}
	return &Medium{token: strings.TrimSpace(token), baseURL: mediumDefaultBaseURL, client: client}
}

func (m *Medium) WithBaseURL(url string) *Medium {
	m.baseURL = strings.TrimRight(url, "/")
	return m
}

type mediumEnvelope[T any] struct {
	Data T `json:"data"`
}

type mediumUser struct {
	ID string `json:"id"`
}

type mediumPost struct {
	Title         string   `json:"title"`
	ContentFormat string   `json:"contentFormat"`
	Content       string   `json:"content"`
	Tags          []string `json:"tags,omitempty"`
	PublishStatus string   `json:"publishStatus"`
}

type mediumPostResult struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (m *Medium) Publish(ctx context.Context, content domain.GeneratedContent) (domain.PublishedLocation, error) {
	if m.token == "" {
		return domain.QueuedLocation, nil
	}
	header := http.Header{"Authorization": {"Bearer " + m.token}}

	var me mediumEnvelope[mediumUser]
	if err := m.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		URL:    m.baseURL + "/me",
		Header: header,
	}, &me); err != nil {
		return domain.PublishedLocation{}, fmt.Errorf("medium: resolve user: %w: %w", domain.ErrPublish, err)
	}
	if me.Data.ID == "" {
		return domain.PublishedLocation{}, fmt.Errorf("medium: empty user id: %w", domain.ErrPublish)
	}

	var post mediumEnvelope[mediumPostResult]
	if err := m.client.Do(ctx, transport.Request{
		Method: http.MethodPost,
		URL:    fmt.Sprintf("%s/users/%s/posts", m.baseURL, me.Data.ID),
		Header: header,
		Body: mediumPost{
			Title:         content.Title,
			ContentFormat: "markdown",
			Content:       fmt.Sprintf("# %s\n\n%s", content.Title, content.Body),
			Tags:          content.Tags,
			PublishStatus: "public",
		},
	}, &post); err != nil {
		return domain.PublishedLocation{}, fmt.Errorf("medium: create post: %w: %w", domain.ErrPublish, err)
	}

	return domain.PublishedLocation{URL: post.Data.URL, ID: post.Data.ID}, nil
}

// Queue never posts; it marks every item for manual posting. Social posts
// use it since no social network credentials are supported.
type Queue struct{}

func (Queue) Publish(context.Context, domain.GeneratedContent) (domain.PublishedLocation, error) {
	return domain.QueuedLocation, nil
}
