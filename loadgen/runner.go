package loadgen

import (
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// RunConfig describes one load run.
type RunConfig struct {
	// URL is the target endpoint.
	URL string

	// Method defaults to GET.
	Method string

	// Body is sent with each request when non-empty.
	Body string

	// Rate is the target request rate per second across all workers.
	Rate float64

	// Workers is the concurrency level. Default 8.
	Workers int

	// Total is the number of requests to send. Default 100.
	Total int
}

// Result is one request's outcome.
type Result struct {
	Status  int
	Latency time.Duration
	Err     error
}

// Report aggregates a finished run.
type Report struct {
	Total        int
	Errors       int
	StatusCounts map[int]int
	Elapsed      time.Duration
	P50, P95, P99 time.Duration
}

// Runner issues paced requests from a worker pool and aggregates outcomes.
type Runner struct {
	client *http.Client
	logger zerolog.Logger
}

// NewRunner wires a runner around a client built with NewClient.
func NewRunner(client *http.Client, logger zerolog.Logger) *Runner {
	return &Runner{client: client, logger: logger}
}

// Run blocks until Total requests completed or the context is cancelled.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) (*Report, error) {
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.Total <= 0 {
		cfg.Total = 100
	}

	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}

	var (
		mu      sync.Mutex
		results = make([]Result, 0, cfg.Total)
	)
	work := make(chan struct{})
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(work)
		for i := 0; i < cfg.Total; i++ {
			select {
			case work <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	for i := 0; i < cfg.Workers; i++ {
		g.Go(func() error {
			for range work {
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						return err
					}
				}
				res := r.one(ctx, cfg)
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return nil, err
	}

	return summarize(results, time.Since(start)), nil
}

func (r *Runner) one(ctx context.Context, cfg RunConfig) Result {
	var body io.Reader
	if cfg.Body != "" {
		body = strings.NewReader(cfg.Body)
	}
	req, err := http.NewRequestWithContext(ctx, cfg.Method, cfg.URL, body)
	if err != nil {
		return Result{Err: err}
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return Result{Latency: latency, Err: err}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return Result{Status: resp.StatusCode, Latency: latency}
}

func summarize(results []Result, elapsed time.Duration) *Report {
	report := &Report{
		Total:        len(results),
		StatusCounts: map[int]int{},
		Elapsed:      elapsed,
	}

	latencies := make([]time.Duration, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			report.Errors++
			continue
		}
		report.StatusCounts[res.Status]++
		latencies = append(latencies, res.Latency)
	}

	if len(latencies) > 0 {
		sort.Slice(latencies, func(a, b int) bool { return latencies[a] < latencies[b] })
		report.P50 = percentile(latencies, 0.50)
		report.P95 = percentile(latencies, 0.95)
		report.P99 = percentile(latencies, 0.99)
	}
	return report
}

func percentile(sorted []time.Duration, q float64) time.Duration {
	idx := int(float64(len(sorted)-1) * q)
	return sorted[idx]
}
