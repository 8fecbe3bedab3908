// Package appraiser provides a client for the county property appraiser's
// public search proxy, the record source for the ingest pipeline.
package appraiser

import (
	"context"
	"encoding/json"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public property search proxy endpoint.
const DefaultBaseURL = "https://miamidade.gov/Apps/PA/PApublicServiceProxy/PaServicesProxy.ashx"

// ErrIncomplete reports a response whose completion flag was false. The
// service uses the flag instead of HTTP status codes, so callers treat it
// the same as a transport failure.
var ErrIncomplete = eris.New("appraiser: response not completed")

// Client is the record source consumed by the resolver and the fetch workers.
type Client interface {
	// SearchByAddress returns the candidate properties for a normalized
	// street address.
	SearchByAddress(ctx context.Context, address string) (*SearchResult, error)

	// PropertyByFolio returns the full nested payload for one folio.
	PropertyByFolio(ctx context.Context, folio string) (*Property, error)
}

// Option configures the HTTP client.
type Option func(*httpClient)

// WithBaseURL overrides the service endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.client = hc }
}

// WithRateLimit sets the requests-per-second cap against the service.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), int(math.Max(rps, 1)))
	}
}

// WithMaxRetries sets how many attempts are made per call.
func WithMaxRetries(n int) Option {
	return func(c *httpClient) { c.maxRetries = n }
}

type httpClient struct {
	baseURL    string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

// NewClient creates a Client with the given options. Defaults: production
// endpoint, 20s request timeout, 10 req/s, 3 attempts.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:    DefaultBaseURL,
		client:     &http.Client{Timeout: 20 * time.Second},
		limiter:    rate.NewLimiter(10, 10),
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	// At least one attempt always runs; otherwise get would return a
	// zero-value payload with no error.
	if c.maxRetries < 1 {
		c.maxRetries = 1
	}
	return c
}

func (c *httpClient) SearchByAddress(ctx context.Context, address string) (*SearchResult, error) {
	params := url.Values{
		"myAddress":     {address},
		"myUnit":        {""},
		"clientAppName": {"PropertySearch"},
		"from":          {"0"},
		"to":            {"1"},
		"Operation":     {"GetAddress"},
		"endPoint":      {""},
	}

	var res SearchResult
	if err := c.get(ctx, params, &res); err != nil {
		return nil, eris.Wrapf(err, "appraiser: search address %q", address)
	}
	if !res.Completed {
		return nil, eris.Wrapf(ErrIncomplete, "appraiser: search address %q", address)
	}
	return &res, nil
}

func (c *httpClient) PropertyByFolio(ctx context.Context, folio string) (*Property, error) {
	params := url.Values{
		"folioNumber":   {strings.ReplaceAll(folio, "-", "")},
		"clientAppName": {"PropertySearch"},
		"Operation":     {"GetPropertySearchByFolio"},
		"endPoint":      {""},
	}

	var res Property
	if err := c.get(ctx, params, &res); err != nil {
		return nil, eris.Wrapf(err, "appraiser: fetch folio %s", folio)
	}
	if !res.Completed {
		return nil, eris.Wrapf(ErrIncomplete, "appraiser: fetch folio %s", folio)
	}
	return &res, nil
}

// get performs one rate-limited GET with retries on transport errors,
// 429s, and 5xx responses, decoding the JSON body into out.
func (c *httpClient) get(ctx context.Context, params url.Values, out any) error {
	reqURL := c.baseURL + "?" + params.Encode()

	var lastErr error
	for attempt := range c.maxRetries {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return eris.Wrap(err, "create request")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			zap.L().Warn("appraiser request failed, retrying",
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			c.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = eris.Errorf("http %d from appraiser service", resp.StatusCode)
			zap.L().Warn("appraiser returned retryable status",
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			c.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return eris.Errorf("unexpected status %d", resp.StatusCode)
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		_ = resp.Body.Close()
		if err != nil {
			return eris.Wrap(err, "decode response")
		}
		return nil
	}

	return eris.Wrap(lastErr, "all retries exhausted")
}

func (c *httpClient) backoff(ctx context.Context, attempt int) {
	base := 500 * time.Millisecond
	maxBackoff := 10 * time.Second
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > maxBackoff {
		d = maxBackoff
	}
	d += time.Duration(rand.Int64N(int64(d) / 2))

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
