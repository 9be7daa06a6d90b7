package loadgen

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_CompletesAllRequests(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	runner := NewRunner(NewClient(ClientConfig{}), zerolog.Nop())
	report, err := runner.Run(context.Background(), RunConfig{
		URL:     server.URL,
		Workers: 4,
		Total:   20,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(20), hits.Load())
	assert.Equal(t, 20, report.Total)
	assert.Equal(t, 0, report.Errors)
	assert.Equal(t, 20, report.StatusCounts[200])
	assert.Greater(t, report.P99, time.Duration(0))
}

func TestRunner_CountsStatuses(t *testing.T) {
	t.Parallel()

	var n atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if n.Add(1)%2 == 0 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	runner := NewRunner(NewClient(ClientConfig{}), zerolog.Nop())
	report, err := runner.Run(context.Background(), RunConfig{
		URL:     server.URL,
		Workers: 1,
		Total:   10,
	})
	require.NoError(t, err)

	assert.Equal(t, 5, report.StatusCounts[200])
	assert.Equal(t, 5, report.StatusCounts[429])
}

func TestRunner_PacesRequests(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	runner := NewRunner(NewClient(ClientConfig{}), zerolog.Nop())
	start := time.Now()
	report, err := runner.Run(context.Background(), RunConfig{
		URL:     server.URL,
		Rate:    100, // 10 requests at 100 rps needs ~90ms past the first token
		Workers: 4,
		Total:   10,
	})
	require.NoError(t, err)

	assert.Equal(t, 10, report.Total)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var n atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if n.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{MaxRetries: 3})
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(3), n.Load(), "two failures then a success")
}

func TestClient_SurfacesFinalStatusWhenRetriesExhaust(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{MaxRetries: 2})
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestClient_BreakerPassesHealthyTraffic(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{Breaker: true})
	for i := 0; i < 20; i++ {
		resp, err := client.Get(server.URL)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
}
