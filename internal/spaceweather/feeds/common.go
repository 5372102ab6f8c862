package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"

	"github.com/i474232898/space-weather-aggregation/internal/observability"
	"github.com/i474232898/space-weather-aggregation/internal/spaceweather"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

const (
	userAgent   = "space-weather-aggregation/1.0"
	maxBodySize = 8 << 20
)

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// doRequestWithResilience executes the HTTP request with retries, exponential backoff,
// and a circuit breaker. Statuses other than 429 and 5xx are not retried.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	var attempt int
	var lastErr error

	for {
		if ctx.Err() != nil {
			if lastErr != nil {
				return nil, fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
			}
			return nil, ctx.Err()
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}

		// Ensure the request obeys context cancellation.
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}

			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return resp, nil
			}

			// Drain so the connection can be reused.
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				return nil, errRateLimited
			case resp.StatusCode >= 500:
				return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
			default:
				return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
			}
		})

		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return resp, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		if errors.Is(err, errUnexpected) {
			return nil, err
		}

		lastErr = err
		if attempt >= cfg.Backoff.MaxRetries {
			return nil, lastErr
		}

		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		case <-timer.C:
		}

		attempt++
	}
}

// base carries what every NOAA feed client shares: transport, breaker, timeout, and metrics.
type base struct {
	source  spaceweather.FeedSource
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	timeout time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics
}

func newBase(source spaceweather.FeedSource, opts Options) base {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(source),
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return base{
		source:  source,
		httpCfg: opts.HTTP,
		circuit: cb,
		timeout: opts.Timeout,
		clock:   opts.Clock,
		metrics: opts.Metrics,
	}
}

// Source implements spaceweather.FeedClient.
func (b *base) Source() spaceweather.FeedSource {
	return b.source
}

// run bounds fetch by the client timeout and turns every failure, panics
// included, into a FeedResult with OK=false.
func (b *base) run(ctx context.Context, fetch func(ctx context.Context) (any, error)) (res spaceweather.FeedResult) {
	start := b.clock.Now()
	res = spaceweather.FeedResult{
		Source:    b.source,
		FetchedAt: start.UTC(),
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			res.OK = false
			res.Payload = nil
			res.Error = fmt.Sprintf("%s: panic while parsing: %v", b.source, r)
		}
		b.metrics.ObserveFetch(string(b.source), res.OK, b.clock.Since(start))
	}()

	payload, err := fetch(ctx)
	if err != nil {
		res.Error = fmt.Sprintf("%s: %v", b.source, err)
		return res
	}

	res.Payload = payload
	res.OK = true
	return res
}

// getJSON fetches url and decodes the JSON body into v.
func (b *base) getJSON(ctx context.Context, url string, v any) error {
	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", userAgent)
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, b.httpCfg, b.circuit, buildRequest)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
