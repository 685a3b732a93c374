// Package scholar scrapes a public academic profile for its publication list.
package scholar

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/juyoungml/pubsync/internal/normalize"
	"github.com/juyoungml/pubsync/internal/publication"
)

const (
	// BaseURL is the profile site base URL.
	BaseURL = "https://scholar.google.com"

	// DefaultLanguage is the interface language requested from the site.
	DefaultLanguage = "en"

	// DefaultUserAgent is a browser-like request identifier.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	// DefaultDelay is the pause enforced before each detail fetch.
	DefaultDelay = time.Second

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxBodyBytes caps how much of a response body is parsed.
	MaxBodyBytes = 5 * 1024 * 1024
)

// Client fetches profile listing and detail pages, one request at a time.
// It is not safe for concurrent use.
type Client struct {
	httpClient *http.Client
	delay      time.Duration
	limiter    *rate.Limiter
	baseURL    string
	language   string
	userAgent  string
	maxEntries int
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithLanguage sets the interface language query parameter.
func WithLanguage(lang string) ClientOption {
	return func(c *Client) {
		if lang != "" {
			c.language = lang
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithDelay sets the minimum pause before each detail fetch.
// A zero delay disables pacing.
func WithDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.delay = d
		c.limiter = newPacer(d)
	}
}

// WithMaxEntries sets the per-run cap on successfully titled entries.
func WithMaxEntries(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithLogger sets the logger used for progress and recoverable failures.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a new profile client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		delay:      DefaultDelay,
		limiter:    newPacer(DefaultDelay),
		baseURL:    BaseURL,
		language:   DefaultLanguage,
		userAgent:  DefaultUserAgent,
		maxEntries: publication.DefaultMaxRecords,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// newPacer returns a limiter granting one request per d.
func newPacer(d time.Duration) *rate.Limiter {
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// restartPacer starts a new pacing interval now, so the next detail fetch
// waits one full delay after the request that just finished.
func (c *Client) restartPacer() {
	c.limiter = newPacer(c.delay)
	c.limiter.Allow()
}

// ListingURL returns the listing page URL for a profile.
func (c *Client) ListingURL(profileID string) string {
	q := url.Values{}
	q.Set("user", profileID)
	q.Set("hl", c.language)
	return c.baseURL + "/citations?" + q.Encode()
}

// Scrape fetches the listing page once and then, in listing order, the detail
// page of each titled row, until the entry cap is reached.
//
// A listing failure aborts the scrape. Detail failures are logged and the
// entry is kept without abstract or page text. Rows without a title are
// skipped and do not consume a position.
func (c *Client) Scrape(ctx context.Context, profileID string) ([]normalize.RawEntry, error) {
	if strings.TrimSpace(profileID) == "" {
		return nil, ErrEmptyProfileID
	}

	base, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	listingURL := c.ListingURL(profileID)
	c.logger.Debug("fetching listing", "url", listingURL)
	doc, err := c.fetchDocument(ctx, listingURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListingUnavailable, err)
	}
	// The listing request counts toward pacing, so the first detail fetch waits too.
	c.restartPacer()

	rows := ParseListing(doc, base)
	c.logger.Debug("parsed listing", "rows", len(rows))

	entries := make([]normalize.RawEntry, 0, min(len(rows), c.maxEntries))
	for i, row := range rows {
		if len(entries) >= c.maxEntries {
			break
		}
		if row.Title == "" {
			c.logger.Debug("skipping row without title", "row", i+1)
			continue
		}

		entry := normalize.RawEntry{
			Position:  len(entries) + 1,
			Title:     row.Title,
			Authors:   row.Authors,
			VenueYear: row.VenueYear,
			Citations: row.Citations,
			DetailURL: row.DetailURL,
		}

		detail, err := c.FetchDetail(ctx, row.DetailURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("detail fetch failed", "title", row.Title, "err", err)
		} else {
			entry.DetailFetched = true
			entry.DetailAbstract = detail.Abstract
			entry.DetailText = detail.Text
		}

		entries = append(entries, entry)
		c.logger.Info("fetched publication", "id", entry.Position, "title", entry.Title)
	}

	return entries, nil
}

// FetchDetail waits for the pacing limiter and fetches one detail page.
// The delay is measured from the end of the previous request.
func (c *Client) FetchDetail(ctx context.Context, detailURL string) (Detail, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Detail{}, fmt.Errorf("rate limiter: %w", err)
	}

	doc, err := c.fetchDocument(ctx, detailURL)
	c.restartPacer()
	if err != nil {
		return Detail{}, err
	}
	return ParseDetail(doc), nil
}

// fetchDocument performs a GET and parses the body as HTML.
func (c *Client) fetchDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if err := checkHTTPErrors(resp, rawURL); err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML from %s: %w", rawURL, err)
	}
	return doc, nil
}
