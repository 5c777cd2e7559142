package feed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ai-digest-bot/pkg/store"

	"github.com/mmcdole/gofeed"
)

// RSSSource fetches an RSS/Atom/JSON feed and maps its items.
type RSSSource struct {
	URL    string
	parser *gofeed.Parser
}

func NewRSSSource(url string, client *http.Client) *RSSSource {
	p := gofeed.NewParser()
	if client != nil {
		p.Client = client
	}
	return &RSSSource{URL: url, parser: p}
}

func (s *RSSSource) Name() string {
	return s.URL
}

func (s *RSSSource) Fetch(ctx context.Context) (*Payload, error) {
	f, err := s.parser.ParseURLWithContext(s.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", s.URL, err)
	}

	records := make([]store.NormalizedRecord, 0, len(f.Items))
	for _, item := range f.Items {
		if item == nil {
			continue
		}
		records = append(records, mapItem(item, s.URL))
	}
	return &Payload{Records: records}, nil
}

// mapItem prefers the parsed publish date, then the update date, then a
// best-effort parse of the raw strings. Anything else is left absent.
func mapItem(item *gofeed.Item, source string) store.NormalizedRecord {
	r := store.NormalizedRecord{
		Title:  strings.TrimSpace(item.Title),
		Link:   strings.TrimSpace(item.Link),
		Source: source,
	}
	switch {
	case item.PublishedParsed != nil:
		r.Timestamp = item.PublishedParsed
	case item.UpdatedParsed != nil:
		r.Timestamp = item.UpdatedParsed
	default:
		r.Timestamp = parseLooseDate(item.Published)
	}
	return r
}

var looseLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"2006-01-02",
}

func parseLooseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range looseLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
