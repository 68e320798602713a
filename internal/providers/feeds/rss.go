// Package feeds reads RSS 2.0 and Atom feeds into engine feed items.
package feeds

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/incomeengine/internal/engine/domain"
	"github.com/smallbiznis/incomeengine/internal/providers/transport"
)

const userAgent = "incomeengine-feeds/1.0"

type rssDocument struct {
	Channel struct {
		Items []struct {
			Title   string `xml:"title"`
			Link    string `xml:"link"`
			PubDate string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

type atomDocument struct {
	Entries []struct {
		Title string `xml:"title"`
		Links []struct {
			Href string `xml:"href,attr"`
			Rel  string `xml:"rel,attr"`
		} `xml:"link"`
		Updated   string `xml:"updated"`
		Published string `xml:"published"`
	} `xml:"entry"`
}

type Reader struct {
	client *transport.Client
}

func NewReader(client *transport.Client) *Reader {
	if client == nil {
		client = transport.New()
	}
	return &Reader{client: client}
}

// Fetch returns at most limit items from the feed at url. limit <= 0 means
// all items.
func (r *Reader) Fetch(ctx context.Context, url string, limit int) ([]domain.FeedItem, error) {
	var body []byte
	err := r.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		URL:    url,
		Header: http.Header{
			"Accept":     {"application/rss+xml, application/atom+xml, application/xml, text/xml"},
			"User-Agent": {userAgent},
		},
	}, &body)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w: %w", url, domain.ErrFeed, err)
	}

	items, err := Parse(body, url)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Parse decodes an RSS or Atom document.
func Parse(body []byte, source string) ([]domain.FeedItem, error) {
	var root struct {
		XMLName xml.Name
	}
	if err := xml.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("parse %s: %w: %w", source, domain.ErrFeed, err)
	}

	switch strings.ToLower(root.XMLName.Local) {
	case "rss":
		var doc rssDocument
		if err := xml.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w: %w", source, domain.ErrFeed, err)
		}
		items := make([]domain.FeedItem, 0, len(doc.Channel.Items))
		for _, it := range doc.Channel.Items {
			items = append(items, domain.FeedItem{
				Title:     strings.TrimSpace(it.Title),
				Link:      strings.TrimSpace(it.Link),
				Source:    source,
				Published: parseTime(it.PubDate),
			})
		}
		return items, nil
	case "feed":
		var doc atomDocument
		if err := xml.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w: %w", source, domain.ErrFeed, err)
		}
		items := make([]domain.FeedItem, 0, len(doc.Entries))
		for _, e := range doc.Entries {
			link := ""
			for _, l := range e.Links {
				if l.Rel == "" || l.Rel == "alternate" {
					link = l.Href
					break
				}
			}
			published := e.Published
			if published == "" {
				published = e.Updated
			}
			items = append(items, domain.FeedItem{
				Title:     strings.TrimSpace(e.Title),
				Link:      strings.TrimSpace(link),
				Source:    source,
				Published: parseTime(published),
			})
		}
		return items, nil
	default:
		return nil, fmt.Errorf("parse %s: unknown root <%s>: %w", source, root.XMLName.Local, domain.ErrFeed)
	}
}

var timeLayouts = []string{time.RFC1123Z, time.RFC1123, time.RFC3339, "Mon, 2 Jan 2006 15:04:05 -0700"}

func parseTime(v string) time.Time {
	v = strings.TrimSpace(v)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
