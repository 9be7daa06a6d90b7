// Package loadgen drives traffic at a running simulator: a fixed worker
// pool paced by a token-bucket limiter, with optional retry and
// circuit-breaker transports, reporting latency percentiles and status
// counts. It exists to exercise shaped endpoints the same way a load test
// would.
package loadgen

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	gobreaker "github.com/sony/gobreaker/v2"
)

// ClientConfig configures the transport chain.
type ClientConfig struct {
	// Timeout bounds one request as the caller sees it: with retries on, all
	// attempts and their backoff waits share it; there is no separate
	// per-attempt bound. Zero means no client timeout, which is the right
	// default against endpoints with multi-second latency shapes.
	Timeout time.Duration

	// MaxRetries enables the retry transport when positive. Retries use
	// exponential backoff and fire on transport errors and 5xx.
	MaxRetries int

	// Breaker enables a circuit breaker around all requests. When the
	// breaker is open, attempts fail fast without touching the network.
	Breaker bool
}

// NewClient builds an *http.Client with the configured transport chain:
// breaker outermost, then retry, then the default transport.
func NewClient(cfg ClientConfig) *http.Client {
	var transport http.RoundTripper = http.DefaultTransport

	if cfg.MaxRetries > 0 {
		transport = &retryTransport{base: transport, maxTries: cfg.MaxRetries + 1}
	}
	if cfg.Breaker {
		cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:    "loadgen",
			Timeout: 5 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.Requests >= 10 &&
					float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
			},
		})
		transport = &breakerTransport{base: transport, breaker: cb}
	}

	return &http.Client{Transport: transport, Timeout: cfg.Timeout}
}

// errServerStatus marks a 5xx attempt as retryable without consuming the
// response, which the caller still wants for its status counts.
var errServerStatus = errors.New("server status")

type retryTransport struct {
	base     http.RoundTripper
	maxTries int
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Buffer the body so every attempt can replay it.
	var bodyBytes []byte
	if req.Body != nil && req.Body != http.NoBody {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
	}

	var last *http.Response
	operation := func() (*http.Response, error) {
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			if last != nil {
				last.Body.Close()
			}
			last = resp
			return nil, errServerStatus
		}
		return resp, nil
	}

	resp, err := backoff.Retry(req.Context(), operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(t.maxTries)),
	)
	if errors.Is(err, errServerStatus) && last != nil {
		// Out of retries on 5xx: surface the final response to the caller.
		return last, nil
	}
	return resp, err
}

type breakerTransport struct {
	base    http.RoundTripper
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.breaker.Execute(func() (*http.Response, error) {
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			// Counts against the breaker but still reaches the caller.
			return resp, errServerStatus
		}
		return resp, nil
	})
	if errors.Is(err, errServerStatus) {
		return resp, nil
	}
	return resp, err
}
