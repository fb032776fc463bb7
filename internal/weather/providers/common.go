package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-reorder/internal/weather"
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

// Option customises a live provider.
type Option func(*liveOptions)

type liveOptions struct {
	baseURL string
	backoff *BackoffConfig
}

// WithBaseURL points the provider at another host, e.g. a test server.
func WithBaseURL(baseURL string) Option {
	return func(o *liveOptions) {
		o.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithBackoff(b BackoffConfig) Option {
	return func(o *liveOptions) {
		o.backoff = &b
	}
}

// applyOptions resolves opts over the provider defaults.
func applyOptions(defaultBaseURL string, defaultBackoff BackoffConfig, opts []Option) (string, BackoffConfig) {
	o := liveOptions{baseURL: defaultBaseURL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.baseURL == "" {
		o.baseURL = defaultBaseURL
	}
	if o.backoff != nil {
		return o.baseURL, *o.backoff
	}
	return o.baseURL, defaultBackoff
}

// CallRecorder receives one record per HTTP attempt and is asked for quota
// before every retry.
type CallRecorder interface {
	RecordCall(service string, success bool)
	CheckRateLimit(service string) bool
}

var (
	errRateLimited   = errors.New("rate limited by provider")
	errServerError   = errors.New("server error")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// maxBodyBytes bounds provider payloads.
const maxBodyBytes = 1 << 20

type exchange struct {
	status int
	body   []byte
}

// statusError marks a retryable HTTP status (429, 5xx).
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string { return fmt.Sprintf("%v: %d", e.err, e.status) }
func (e *statusError) Unwrap() error { return e.err }

// doRequestWithResilience executes a GET with bounded retries, exponential
// backoff and a circuit breaker. Every attempt is reported to recorder, and a
// retry only goes out while recorder still has quota. Any other non-2xx
// outcome becomes a *weather.ProviderError for endpoint.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	recorder CallRecorder,
	endpoint string,
	buildRequest func(ctx context.Context) (*http.Request, error),
) ([]byte, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	var attempt int

	for {
		if ctx.Err() != nil {
			return nil, &weather.ProviderError{Endpoint: endpoint, Err: ctx.Err()}
		}

		req, err := buildRequest(ctx)
		if err != nil {
			return nil, err
		}

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				recorder.RecordCall(weather.ServiceName, false)
				return nil, execErr
			}
			defer resp.Body.Close()

			ok := resp.StatusCode >= 200 && resp.StatusCode < 300
			recorder.RecordCall(weather.ServiceName, ok)

			// Retryable statuses count against the breaker; other client
			// errors mean the provider is up and are handled by the caller.
			if resp.StatusCode == http.StatusTooManyRequests {
				return nil, &statusError{status: resp.StatusCode, err: errRateLimited}
			}
			if resp.StatusCode >= 500 {
				return nil, &statusError{status: resp.StatusCode, err: errServerError}
			}

			body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
			if readErr != nil {
				return nil, readErr
			}
			return &exchange{status: resp.StatusCode, body: body}, nil
		})

		if err == nil {
			ex, ok := result.(*exchange)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			if ex.status < 200 || ex.status >= 300 {
				return nil, &weather.ProviderError{Endpoint: endpoint, StatusCode: ex.status}
			}
			return ex.body, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &weather.ProviderError{Endpoint: endpoint, Err: fmt.Errorf("%w: %v", errCircuitOpen, err)}
		}

		if attempt >= cfg.Backoff.MaxRetries || ctx.Err() != nil {
			return nil, toProviderError(endpoint, err)
		}

		// Backoff with exponential delay.
		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &weather.ProviderError{Endpoint: endpoint, Err: ctx.Err()}
		case <-timer.C:
		}

		if !recorder.CheckRateLimit(weather.ServiceName) {
			return nil, fmt.Errorf("retry %s: %w", endpoint, weather.ErrRateLimited)
		}

		attempt++
	}
}

func toProviderError(endpoint string, err error) *weather.ProviderError {
	var se *statusError
	if errors.As(err, &se) {
		return &weather.ProviderError{Endpoint: endpoint, StatusCode: se.status, Err: se.err}
	}
	// url.Error carries the request URL, which includes the API key.
	var ue *url.Error
	if errors.As(err, &ue) {
		err = ue.Err
	}
	return &weather.ProviderError{Endpoint: endpoint, Err: err}
}

// retriesFor converts a total attempt budget into a retry count.
func retriesFor(attempts int) int {
	if attempts <= 1 {
		return 0
	}
	return attempts - 1
}
