package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const rss = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Giro news</title>
  <item>
    <title>Stage 14 preview: the hills return</title>
    <link>https://example.com/stage-14-preview</link>
    <pubDate>Tue, 06 May 2025 06:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Old news: Stage 4 route revealed</title>
    <link>https://example.com/route</link>
    <pubDate>Mon, 10 Feb 2025 06:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Giro d'Italia stage 4:  Pogačar storms into pink</title>
    <link>https://example.com/stage-4-report</link>
    <pubDate>Tue, 06 May 2025 05:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Stage 4 analysis</title>
    <link>https://example.com/stage-4-analysis</link>
    <pubDate>Tue, 06 May 2025 04:00:00 GMT</pubDate>
  </item>
</channel>
</rss>`

func fixedNow() time.Time {
	return time.Date(2025, time.May, 6, 8, 0, 0, 0, time.UTC)
}

func serveFeed(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHeadline(t *testing.T) {
	srv := serveFeed(t, rss)
	src := NewSource([]Feed{{URL: srv.URL, Name: "Test"}}, Options{Now: fixedNow})

	h, ok := src.Headline(context.Background(), 4)
	if !ok {
		t.Fatal("expected a headline")
	}
	if h.Title != "Giro d'Italia stage 4: Pogačar storms into pink" {
		t.Errorf("Title = %q", h.Title)
	}
	if h.URL != "https://example.com/stage-4-report" {
		t.Errorf("URL = %q", h.URL)
	}
	if h.Source != "Test" {
		t.Errorf("Source = %q", h.Source)
	}
}

func TestHeadlineNoMatch(t *testing.T) {
	srv := serveFeed(t, rss)
	src := NewSource([]Feed{{URL: srv.URL}}, Options{Now: fixedNow})

	if h, ok := src.Headline(context.Background(), 1); ok {
		t.Errorf("unexpected headline %+v", h)
	}
}

func TestHeadlineSkipsBrokenFeed(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()
	good := serveFeed(t, rss)

	src := NewSource([]Feed{{URL: broken.URL}, {URL: good.URL}}, Options{Now: fixedNow})
	if _, ok := src.Headline(context.Background(), 14); !ok {
		t.Error("expected headline from second feed")
	}
}

func TestStagePattern(t *testing.T) {
	p := stagePattern(4)
	for _, s := range []string{"Stage 4", "stage  4 report", "STAGE 4:"} {
		if !p.MatchString(s) {
			t.Errorf("expected match for %q", s)
		}
	}
	for _, s := range []string{"Stage 14", "Stage 40", "Stage4"} {
		if p.MatchString(s) {
			t.Errorf("unexpected match for %q", s)
		}
	}
}

func TestSourceName(t *testing.T) {
	tests := map[string]string{
		"https://www.cyclingnews.com/feeds/all/": "Cyclingnews",
		"not a url":                              "not a url",
	}
	for in, want := range tests {
		if got := sourceName(in); got != want {
			t.Errorf("sourceName(%q) = %q, want %q", in, got, want)
		}
	}
}
