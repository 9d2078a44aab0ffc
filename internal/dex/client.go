package dex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"fusiondex/internal/fusion"
	"fusiondex/internal/logging"
)

const (
	defaultTimeout  = 20 * time.Second
	maxPageBytes    = 5 << 20
	defaultAgent    = "fusiondex/dev"
	acceptHTMLValue = "text/html,application/xhtml+xml"
)

// Fetcher retrieves both directional records of one unordered pair.
type Fetcher interface {
	Fetch(ctx context.Context, pair fusion.Pair) (map[fusion.Key]fusion.Record, error)
}

// Client fetches fusion detail pages.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

var _ Fetcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(agent string) Option {
	return func(c *Client) {
		if agent = strings.TrimSpace(agent); agent != "" {
			c.userAgent = agent
		}
	}
}

// WithRequestsPerSecond limits page requests across all workers. Zero or a
// negative value disables the limiter.
func WithRequestsPerSecond(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "dex")
	}
}

// New creates a detail page client. Pages are addressed as baseURL + "{lo}.{hi}".
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("dex base url required")
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	client := &Client{
		baseURL:    baseURL,
		userAgent:  defaultAgent,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logging.NewComponentLogger(nil, "dex"),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// PageURL returns the detail page address for pair.
func (c *Client) PageURL(pair fusion.Pair) string {
	return c.baseURL + pair.Normalized().String()
}

// Fetch retrieves and parses the detail page for pair. Failures are returned
// as *FetchError.
func (c *Client) Fetch(ctx context.Context, pair fusion.Pair) (map[fusion.Key]fusion.Record, error) {
	pair = pair.Normalized()
	if !pair.Valid() {
		return nil, &FetchError{Pair: pair, Reason: ReasonStructure, Err: fusion.ErrInvalidKey}
	}
	pageURL := c.PageURL(pair)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{Pair: pair, Reason: ReasonNetwork, Err: fmt.Errorf("rate limiter: %w", err)}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &FetchError{Pair: pair, Reason: ReasonNetwork, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", acceptHTMLValue)

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, &FetchError{Pair: pair, Reason: ReasonNetwork, Err: fmt.Errorf("execute request (latency=%v): %w", latency, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &FetchError{
			Pair:       pair,
			Reason:     ReasonStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("detail page returned %d (latency=%v)", resp.StatusCode, latency),
		}
	}

	records, err := ParsePage(io.LimitReader(resp.Body, maxPageBytes), pair, pageURL)
	if err != nil {
		return nil, &FetchError{Pair: pair, Reason: parseReason(err), Err: err}
	}

	c.logger.Debug("fetched fusion page",
		logging.String(logging.FieldPair, pair.String()),
		logging.Int("records", len(records)),
		logging.Duration("latency", latency))
	return records, nil
}
