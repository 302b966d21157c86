// Package catalog talks to the space-track.org catalog service: cookie-based
// login, one fixed debris query, and throttle-aware fetching.
package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rahimhussain95/DarkNet/internal/metrics"
)

const (
	defaultBaseURL = "https://www.space-track.org"
	loginPath      = "/ajaxauth/login"

	// bodyExcerptLimit caps the diagnostic body carried in a FetchError.
	bodyExcerptLimit = 512
)

// Config holds catalog client configuration.
type Config struct {
	BaseURL  string
	Username string
	Password string

	// Limit caps the result row count of the debris query.
	Limit int

	// MaxAttempts bounds the total tries for a throttled (429) query.
	// The original behavior retried without bound; a ceiling keeps a
	// sustained throttle from hanging callers forever.
	MaxAttempts int

	// ThrottleBackoff is the wait between throttled attempts.
	ThrottleBackoff time.Duration

	// RequestsPerMinute paces all upstream requests client-side,
	// independent of 429 handling. space-track allows ~30/min.
	RequestsPerMinute int

	// Timeout applies per HTTP request.
	Timeout time.Duration

	// MaxBodyBytes bounds response reads.
	MaxBodyBytes int64
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Limit <= 0 {
		c.Limit = 100
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.ThrottleBackoff <= 0 {
		c.ThrottleBackoff = 60 * time.Second
	}
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = 20
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 50 << 20
	}
	return c
}

// Client is an authenticated catalog session. The cookie jar carries the
// login session, mirroring the upstream's cookie-based auth.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	query      Query
	logger     *slog.Logger
}

// NewClient creates a catalog client. The client is not logged in until
// Login or FetchDebris is called.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	cfg = cfg.withDefaults()

	// CookieJar never returns an error with a nil PublicSuffixList.
	jar, _ := cookiejar.New(nil)

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
		},
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1),
		query:   DebrisQuery(cfg.Limit),
		logger:  logger,
	}
}

// Login posts credentials to the auth endpoint. Success is solely an HTTP
// 200; any other status is an *AuthError and must not be retried.
func (c *Client) Login(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	form := url.Values{
		"identity": {c.cfg.Username},
		"password": {c.cfg.Password},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+loginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.IncUpstreamRequest("login", "transport_error")
		return &AuthError{Err: fmt.Errorf("posting credentials: %w", err)}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, bodyExcerptLimit))

	if resp.StatusCode != http.StatusOK {
		metrics.IncUpstreamRequest("login", "rejected")
		return &AuthError{StatusCode: resp.StatusCode}
	}

	metrics.IncUpstreamRequest("login", "ok")
	c.logger.Info("catalog login successful", "base_url", c.cfg.BaseURL)
	return nil
}

// Query issues the debris query against the logged-in session and decodes
// the JSON result. A 429 response sleeps the configured back-off and retries
// up to MaxAttempts total tries, then surfaces ErrThrottled wrapped in a
// *FetchError. Transport failures and other non-200 statuses fail
// immediately.
func (c *Client) Query(ctx context.Context) ([]Record, error) {
	queryURL := c.cfg.BaseURL + c.query.Path()

	for attempt := 1; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{Err: fmt.Errorf("waiting for rate limiter: %w", err)}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
		if err != nil {
			return nil, &FetchError{Err: fmt.Errorf("creating query request: %w", err)}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			metrics.IncUpstreamRequest("query", "transport_error")
			return nil, &FetchError{Err: fmt.Errorf("fetching catalog data: %w", err)}
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			io.Copy(io.Discard, io.LimitReader(resp.Body, bodyExcerptLimit))
			resp.Body.Close()
			metrics.IncUpstreamRequest("query", "throttled")

			if attempt >= c.cfg.MaxAttempts {
				c.logger.Warn("catalog throttle retries exhausted", "attempts", attempt)
				return nil, &FetchError{StatusCode: resp.StatusCode, Err: ErrThrottled}
			}

			c.logger.Warn("catalog throttled, backing off",
				"attempt", attempt,
				"backoff_seconds", c.cfg.ThrottleBackoff.Seconds(),
			)
			select {
			case <-time.After(c.cfg.ThrottleBackoff):
			case <-ctx.Done():
				return nil, &FetchError{Err: ctx.Err()}
			}
			continue
		}

		records, err := c.readQueryResponse(resp)
		if err != nil {
			return nil, err
		}

		c.logger.Info("catalog query successful", "records", len(records), "attempt", attempt)
		return records, nil
	}
}

// readQueryResponse consumes and closes a non-429 query response.
func (c *Client) readQueryResponse(resp *http.Response) ([]Record, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes+1))
	if err != nil {
		metrics.IncUpstreamRequest("query", "transport_error")
		return nil, &FetchError{Err: fmt.Errorf("reading response body: %w", err)}
	}
	if int64(len(body)) > c.cfg.MaxBodyBytes {
		metrics.IncUpstreamRequest("query", "oversized")
		return nil, &FetchError{Err: fmt.Errorf("response exceeded %d byte limit", c.cfg.MaxBodyBytes)}
	}

	if resp.StatusCode != http.StatusOK {
		metrics.IncUpstreamRequest("query", "rejected")
		excerpt := string(body)
		if len(excerpt) > bodyExcerptLimit {
			excerpt = excerpt[:bodyExcerptLimit]
		}
		return nil, &FetchError{StatusCode: resp.StatusCode, Body: excerpt}
	}

	records, err := DecodeRecords(body)
	if err != nil {
		metrics.IncUpstreamRequest("query", "bad_body")
		return nil, &FetchError{Err: err}
	}

	metrics.IncUpstreamRequest("query", "ok")
	return records, nil
}

// FetchDebris performs login and query as a single synchronous call.
func (c *Client) FetchDebris(ctx context.Context) ([]Record, error) {
	if err := c.Login(ctx); err != nil {
		return nil, err
	}
	return c.Query(ctx)
}
