package scrapingbee

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/discounthunter/backend/internal/domain"
)

const (
	// DefaultBaseURL is the ScrapingBee HTML API endpoint
	DefaultBaseURL = "https://app.scrapingbee.com/api/v1/"

	defaultMaxAttempts = 3
	maxBodyBytes       = 5 << 20
	userAgent          = "Mozilla/5.0 (Linux; Android 14) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Mobile Safari/537.36"
)

// ClientConfig holds configuration for a store's fetch client
type ClientConfig struct {
	Store       string // display name, used in logs and errors
	APIKey      string // empty fetches the target directly
	BaseURL     string
	MaxAttempts int
	RatePerSec  float64 // 0 disables rate limiting
	Burst       int
}

// FetchOptions are the per-store ScrapingBee rendering parameters
type FetchOptions struct {
	RenderJS bool
	WaitMS   int
}

// Client fetches store search pages through ScrapingBee, or directly when no API key is set
type Client struct {
	httpClient  *http.Client
	store       string
	apiKey      string
	baseURL     string
	maxAttempts int
	rateLimiter *rate.Limiter
	backoff     func(attempt int) time.Duration
	debug       bool
}

// NewClient creates a new fetch client. Each store gets its own so rate limits stay per store.
func NewClient(config ClientConfig) *Client {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	maxAttempts := config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	var limiter *rate.Limiter
	if config.RatePerSec > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RatePerSec), burst)
	}

	// Storefronts set session cookies on the first hit; keep them for follow-up requests
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	return &Client{
		// Deadlines come from the request context
		httpClient:  &http.Client{Jar: jar},
		store:       config.Store,
		apiKey:      config.APIKey,
		baseURL:     baseURL,
		maxAttempts: maxAttempts,
		rateLimiter: limiter,
		backoff:     exponentialBackoff,
	}
}

// SetDebug enables per-attempt response logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// Proxied reports whether requests go through ScrapingBee
func (c *Client) Proxied() bool {
	return c.apiKey != ""
}

// exponentialBackoff returns the wait before retrying after the given attempt: 500ms, 1s, 2s, ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

// requestURL builds the URL actually requested for a target page
func (c *Client) requestURL(target string, opts FetchOptions) string {
	if !c.Proxied() {
		return target
	}

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("url", target)
	params.Set("render_js", strconv.FormatBool(opts.RenderJS))
	if opts.RenderJS && opts.WaitMS > 0 {
		params.Set("wait", strconv.Itoa(opts.WaitMS))
	}
	return fmt.Sprintf("%s?%s", c.baseURL, params.Encode())
}

// doRequest executes an HTTP GET request with proper headers and error handling
func (c *Client) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "lt-LT,lt;q=0.9,en;q=0.8")

	return c.httpClient.Do(req)
}

// Fetch returns the HTML of target. A 404 is ErrQuoteNotFound; other failures are
// *domain.AdapterError. Network errors, 429 and 5xx are retried with backoff.
func (c *Client) Fetch(ctx context.Context, target string, opts FetchOptions) ([]byte, error) {
	reqURL := c.requestURL(target, opts)

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, c.backoff(attempt-1)); err != nil {
				return nil, domain.ClassifyAdapterError(c.store, err)
			}
		}

		if c.rateLimiter != nil {
			if err := c.rateLimiter.Wait(ctx); err != nil {
				log.Printf("[SCRAPINGBEE] %s rate limiter error: %v", c.store, err)
				return nil, domain.ClassifyAdapterError(c.store, ctxErr(ctx, err))
			}
		}

		resp, err := c.doRequest(ctx, reqURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, domain.ClassifyAdapterError(c.store, ctx.Err())
			}
			log.Printf("[SCRAPINGBEE] %s request error (attempt %d): %v", c.store, attempt, err)
			lastErr = domain.NewAdapterError(c.store, domain.AdapterNetwork, err)
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		resp.Body.Close()

		if c.debug {
			log.Printf("[SCRAPINGBEE] %s response (attempt %d) - Status: %d, %d bytes", c.store, attempt, resp.StatusCode, len(body))
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, domain.ErrQuoteNotFound
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			log.Printf("[SCRAPINGBEE] %s upstream error (attempt %d) - Status: %d", c.store, attempt, resp.StatusCode)
			lastErr = domain.NewAdapterError(c.store, domain.AdapterUpstream, fmt.Errorf("status %d", resp.StatusCode))
			continue
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return nil, domain.NewAdapterError(c.store, domain.AdapterUpstream, fmt.Errorf("status %d", resp.StatusCode))
		}

		if readErr != nil {
			if ctx.Err() != nil {
				return nil, domain.ClassifyAdapterError(c.store, ctx.Err())
			}
			lastErr = domain.NewAdapterError(c.store, domain.AdapterNetwork, readErr)
			continue
		}

		return body, nil
	}

	log.Printf("[SCRAPINGBEE] %s all %d attempts failed", c.store, c.maxAttempts)
	return nil, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ctxErr prefers the context's own error; rate.Limiter reports a would-exceed-deadline
// condition with a plain error before the deadline actually passes.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}
