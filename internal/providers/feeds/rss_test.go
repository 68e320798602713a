package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smallbiznis/incomeengine/internal/engine/domain"
	"github.com/smallbiznis/incomeengine/internal/providers/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssSample = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>HN</title>
<item><title> Show HN: a thing </title><link>https://example.com/1</link><pubDate>Fri, 14 Mar 2025 10:00:00 +0000</pubDate></item>
<item><title>Second</title><link>https://example.com/2</link></item>
<item><title>Third</title><link>https://example.com/3</link></item>
</channel></rss>`

const atomSample = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
<entry><title>[Hiring] Need blog writer</title><link href="https://reddit.com/r/forhire/1"/><updated>2025-03-14T10:00:00+00:00</updated></entry>
</feed>`

func TestParseRSS(t *testing.T) {
	items, err := Parse([]byte(rssSample), "hn")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Show HN: a thing", items[0].Title)
	assert.Equal(t, "https://example.com/1", items[0].Link)
	assert.Equal(t, "hn", items[0].Source)
	assert.Equal(t, time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC), items[0].Published)
	assert.True(t, items[1].Published.IsZero())
}

func TestParseAtom(t *testing.T) {
	items, err := Parse([]byte(atomSample), "forhire")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "[Hiring] Need blog writer", items[0].Title)
	assert.Equal(t, "https://reddit.com/r/forhire/1", items[0].Link)
}

func TestParseRejectsUnknownDocument(t *testing.T) {
	_, err := Parse([]byte(`<html></html>`), "x")
	assert.ErrorIs(t, err, domain.ErrFeed)

	_, err = Parse([]byte(`not xml`), "x")
	assert.ErrorIs(t, err, domain.ErrFeed)
}

func TestFetchLimitsItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssSample))
	}))
	defer srv.Close()

	reader := NewReader(transport.New(transport.WithInitialInterval(time.Millisecond)))
	items, err := reader.Fetch(context.Background(), srv.URL, 2)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestFetchUnavailableFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	reader := NewReader(transport.New(transport.WithInitialInterval(time.Millisecond)))
	_, err := reader.Fetch(context.Background(), srv.URL, 5)
	assert.ErrorIs(t, err, domain.ErrFeed)
}
