package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const userAgent = "macrocorr/1.0 (+https://github.com/sawpanic/macrocorr)"

// Client is the shared HTTP transport for all sources: per-host token
// bucket rate limiting, a circuit breaker per provider, and bounded
// retries on throttling and server errors.
type Client struct {
	http       *http.Client
	rps        float64
	burst      int
	maxRetries int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewClient builds a client with conservative defaults suitable for free
// public data endpoints.
func NewClient() *Client {
	return &Client{
		http:       &http.Client{Timeout: 20 * time.Second},
		rps:        2.0,
		burst:      2,
		maxRetries: 3,
		limiters:   make(map[string]*rate.Limiter),
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (c *Client) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(c.rps), c.burst)
		c.limiters[host] = l
	}
	return l
}

func (c *Client) breaker(provider string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.breakers[provider]
	if !ok {
		b = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        provider,
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("provider", name).
					Str("from", from.String()).Str("to", to.String()).
					Msg("Provider circuit breaker state change")
			},
		})
		c.breakers[provider] = b
	}
	return b
}

// GetBody fetches rawURL through the provider's breaker and the host's
// rate limiter, retrying 429 and 5xx responses with linear backoff.
func (c *Client) GetBody(ctx context.Context, provider, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	body, err := c.breaker(provider).Execute(func() (interface{}, error) {
		return c.getWithRetry(ctx, u.Host, rawURL)
	})
	if err != nil {
		return nil, err
	}
	return body.([]byte), nil
}

func (c *Client) getWithRetry(ctx context.Context, host, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter(host).Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		body, retryable, err := c.getOnce(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable || attempt == c.maxRetries {
			break
		}

		backoff := time.Duration(attempt) * 400 * time.Millisecond
		log.Debug().Str("url", rawURL).Int("attempt", attempt).Dur("backoff", backoff).
			Err(err).Msg("Retrying fetch")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, lastErr
}

func (c *Client) getOnce(ctx context.Context, rawURL string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/csv,application/json;q=0.9,*/*;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("http %d from %s", resp.StatusCode, rawURL)
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, false, fmt.Errorf("http %d from %s", resp.StatusCode, rawURL)
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}
	return body, false, nil
}
