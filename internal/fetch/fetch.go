package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultUserAgent identifies as a desktop browser; the results site rejects
// obvious automated clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// DefaultTimeout bounds a single results request.
const DefaultTimeout = 20 * time.Second

// Page is a fetched results document.
type Page struct {
	Stage int
	URL   string
	HTML  string
}

// Fetcher retrieves stage results pages over HTTP.
type Fetcher struct {
	baseURL string
	client  *resty.Client
}

// Options configures a Fetcher.
type Options struct {
	Timeout   time.Duration
	UserAgent string
}

// New creates a fetcher for results pages under baseURL.
func New(baseURL string, opts Options) *Fetcher {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	client := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml").
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))

	return &Fetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// StageURL returns the results URL for a stage.
func (f *Fetcher) StageURL(stage int) string {
	return fmt.Sprintf("%s/stage-%d/results/", f.baseURL, stage)
}

// Fetch downloads the results page for a stage. Any transport problem is
// returned as *NetworkError and any non-200 answer as *StatusError; no
// retries are attempted.
func (f *Fetcher) Fetch(ctx context.Context, stage int) (*Page, error) {
	url := f.StageURL(stage)
	slog.DebugContext(ctx, "requesting results page", "stage", stage, "url", url)

	resp, err := f.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode(), URL: url}
	}

	slog.DebugContext(ctx, "results page loaded", "stage", stage, "size", len(resp.Body()))
	return &Page{Stage: stage, URL: url, HTML: resp.String()}, nil
}
