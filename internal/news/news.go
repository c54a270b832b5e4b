// Package news looks up stage headlines in RSS and Atom feeds.
package news

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	maxPerFeed     = 20
	defaultMaxAge  = 48 * time.Hour
	defaultTimeout = 15 * time.Second
)

// Feed is a single configured feed.
type Feed struct {
	URL  string
	Name string
}

// Headline is a feed item that mentions a stage.
type Headline struct {
	Title     string
	URL       string
	Source    string
	Published time.Time
}

// Options tunes a Source. Zero values select defaults.
type Options struct {
	// MaxAge drops items published longer ago than this.
	MaxAge  time.Duration
	Timeout time.Duration
	Now     func() time.Time
}

// Source searches a list of feeds for stage headlines.
type Source struct {
	feeds  []Feed
	parser *gofeed.Parser
	maxAge time.Duration
	now    func() time.Time
}

// NewSource creates a headline source over feeds.
func NewSource(feeds []Feed, opts Options) *Source {
	s := &Source{
		feeds:  feeds,
		parser: gofeed.NewParser(),
		maxAge: opts.MaxAge,
		now:    opts.Now,
	}
	if s.maxAge <= 0 {
		s.maxAge = defaultMaxAge
	}
	if s.now == nil {
		s.now = time.Now
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	s.parser.Client = &http.Client{Timeout: timeout}
	return s
}

// Headline returns the first recent item, across feeds in configured
// order, whose title mentions stage. Feeds that fail to load are logged
// and skipped.
func (s *Source) Headline(ctx context.Context, stage int) (Headline, bool) {
	pattern := stagePattern(stage)
	cutoff := s.now().Add(-s.maxAge)

	for _, f := range s.feeds {
		name := f.Name
		if name == "" {
			name = sourceName(f.URL)
		}

		feed, err := s.parser.ParseURLWithContext(f.URL, ctx)
		if err != nil {
			slog.WarnContext(ctx, "feed unavailable", "feed", name, "err", err)
			continue
		}

		for i, item := range feed.Items {
			if i >= maxPerFeed {
				break
			}
			h, ok := parseItem(item, name)
			if !ok || !pattern.MatchString(h.Title) {
				continue
			}
			if !h.Published.IsZero() && h.Published.Before(cutoff) {
				continue
			}
			slog.DebugContext(ctx, "feed headline found", "feed", name, "stage", stage, "title", h.Title)
			return h, true
		}
	}
	return Headline{}, false
}

// stagePattern matches "Stage 4" but not "Stage 14".
func stagePattern(stage int) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`(?i)\bstage\s+%d\b`, stage))
}

func parseItem(item *gofeed.Item, source string) (Headline, bool) {
	link := item.Link
	if link == "" {
		link = item.GUID
	}
	title := strings.Join(strings.Fields(item.Title), " ")
	if link == "" || title == "" {
		return Headline{}, false
	}

	h := Headline{Title: title, URL: link, Source: source}
	if item.PublishedParsed != nil {
		h.Published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		h.Published = *item.UpdatedParsed
	}
	return h, true
}

func sourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		host = parts[len(parts)-2]
	}
	return strings.ToUpper(host[:1]) + host[1:]
}
