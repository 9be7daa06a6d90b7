package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macnak/simulant/config"
	"github.com/macnak/simulant/distributions"
)

func newTestPipeline(seed uint64) *Pipeline {
	return NewPipeline(distributions.NewSeededRand(seed), zerolog.Nop(), nil)
}

func resolved(ep config.Endpoint) *ResolvedEndpoint {
	return &ResolvedEndpoint{Endpoint: ep, LoadedAt: time.Now()}
}

func fixedLatency(delayMs float64) config.LatencyConfig {
	return config.LatencyConfig{
		Distribution: config.DistFixed,
		Params:       config.DistributionParams{DelayMs: ptr(delayMs)},
	}
}

func TestPipeline_FixedLatencyNoError(t *testing.T) {
	t.Parallel()

	pipeline := newTestPipeline(1)
	ep := resolved(config.Endpoint{
		ID:      "health",
		Latency: fixedLatency(10),
		Response: config.Response{
			Status:  200,
			Headers: map[string]string{"Content-Type": "application/json"},
			Body:    `{"ok":true}`,
		},
	})

	for i := 0; i < 20; i++ {
		start := time.Now()
		reply, err := pipeline.Execute(context.Background(), ep, "")
		require.NoError(t, err)
		assert.Equal(t, 200, reply.Status)
		assert.Equal(t, `{"ok":true}`, string(reply.Body))
		assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	}
}

func TestPipeline_AlwaysError(t *testing.T) {
	t.Parallel()

	pipeline := newTestPipeline(2)
	ep := resolved(config.Endpoint{
		ID:      "flap",
		Latency: fixedLatency(0),
		Response: config.Response{Status: 200, Body: "up"},
		ErrorProfile: config.ErrorProfile{
			Rate:  1.0,
			Codes: []int{503},
			Body:  "down",
		},
	})

	for i := 0; i < 50; i++ {
		reply, err := pipeline.Execute(context.Background(), ep, "")
		require.NoError(t, err)
		assert.Equal(t, 503, reply.Status)
		assert.Equal(t, "down", string(reply.Body))
	}
}

func TestPipeline_ErrorRateConverges(t *testing.T) {
	t.Parallel()

	pipeline := newTestPipeline(3)
	ep := resolved(config.Endpoint{
		ID:      "shaky",
		Latency: fixedLatency(0),
		Response: config.Response{Status: 200, Body: "ok"},
		ErrorProfile: config.ErrorProfile{
			Rate:  0.3,
			Codes: []int{500},
		},
	})

	errors := 0
	const n = 5000
	for i := 0; i < n; i++ {
		reply, err := pipeline.Execute(context.Background(), ep, "")
		require.NoError(t, err)
		if reply.Status == 500 {
			errors++
		}
	}
	assert.InDelta(t, 0.3, float64(errors)/n, 0.03)
}

func TestPipeline_BodyMatch(t *testing.T) {
	t.Parallel()

	pipeline := newTestPipeline(4)
	ep := resolved(config.Endpoint{
		ID:      "echo",
		Latency: fixedLatency(0),
		Request: &config.RequestMatch{
			BodyMatch: config.BodyMatchExact,
			Body:      ptr("ping"),
		},
		Response: config.Response{Status: 200, Body: "pong"},
	})

	t.Run("given a mismatched body, then 400 with the literal message", func(t *testing.T) {
		reply, err := pipeline.Execute(context.Background(), ep, "pong")
		require.NoError(t, err)
		assert.Equal(t, 400, reply.Status)
		assert.Equal(t, "Request body did not match", string(reply.Body))
		assert.Equal(t, "text/plain", reply.Headers["Content-Type"])
	})

	t.Run("given the expected body, then the template answers", func(t *testing.T) {
		reply, err := pipeline.Execute(context.Background(), ep, "ping")
		require.NoError(t, err)
		assert.Equal(t, 200, reply.Status)
		assert.Equal(t, "pong", string(reply.Body))
	})
}

func TestPipeline_RateLimit(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	ep := endpoint("limited", config.MethodGet, "/limited")
	ep.RateLimit = &config.RateLimit{RequestsPerSecond: 10, Burst: ptr(10.0)}
	registry.SetConfig(&config.Configuration{
		Version:   config.Version,
		Endpoints: []config.Endpoint{ep},
	})
	limited, ok := registry.Get(config.MethodGet, "/limited")
	require.True(t, ok)

	pipeline := newTestPipeline(5)
	for i := 0; i < 10; i++ {
		reply, err := pipeline.Execute(context.Background(), limited, "")
		require.NoError(t, err)
		assert.Equal(t, 200, reply.Status, "request %d within burst", i+1)
	}

	reply, err := pipeline.Execute(context.Background(), limited, "")
	require.NoError(t, err)
	assert.Equal(t, 429, reply.Status)
	assert.Equal(t, "Rate limit exceeded", string(reply.Body))
}

func TestPipeline_BehaviorWindowOverride(t *testing.T) {
	t.Parallel()

	window := config.BehaviorWindow{
		Scope:    config.BehaviorScope{Global: true},
		ErrorMix: config.MixOverride,
		Schedule: config.BehaviorSchedule{
			Mode:          config.ScheduleFixed,
			StartOffsetMs: ptr(1000.0),
			DurationMs:    1000,
		},
		LatencyOverride: ptr(fixedLatency(100)),
	}
	base := config.Endpoint{
		ID:       "windowed",
		Latency:  fixedLatency(5),
		Response: config.Response{Status: 200, Body: "ok"},
	}
	pipeline := newTestPipeline(6)

	at := func(tMs float64) time.Duration {
		ep := &ResolvedEndpoint{
			Endpoint: base,
			Windows:  []config.BehaviorWindow{window},
			LoadedAt: time.Now().Add(-time.Duration(tMs * float64(time.Millisecond))),
		}
		start := time.Now()
		reply, err := pipeline.Execute(context.Background(), ep, "")
		require.NoError(t, err)
		require.Equal(t, 200, reply.Status)
		return time.Since(start)
	}

	assert.Less(t, at(500), 60*time.Millisecond, "before the window the base latency applies")
	assert.GreaterOrEqual(t, at(1500), 100*time.Millisecond, "inside the window the override applies")
	assert.Less(t, at(2500), 60*time.Millisecond, "after the window the base latency returns")
}

func TestPipeline_BurstSpikeReplacesLatency(t *testing.T) {
	t.Parallel()

	ep := &ResolvedEndpoint{
		Endpoint: config.Endpoint{
			ID:       "bursty",
			Latency:  fixedLatency(0),
			Response: config.Response{Status: 200, Body: "ok"},
		},
		Bursts: []config.BurstEvent{{
			Scope:        config.BehaviorScope{Global: true},
			Frequency:    config.BurstFrequency{EveryMs: 1000},
			DurationMs:   1000, // always active
			LatencySpike: ptr(fixedLatency(50)),
		}},
		LoadedAt: time.Now(),
	}

	pipeline := newTestPipeline(7)
	start := time.Now()
	reply, err := pipeline.Execute(context.Background(), ep, "")
	require.NoError(t, err)
	assert.Equal(t, 200, reply.Status)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestPipeline_WindowErrorOverride(t *testing.T) {
	t.Parallel()

	ep := &ResolvedEndpoint{
		Endpoint: config.Endpoint{
			ID:       "stormy",
			Latency:  fixedLatency(0),
			Response: config.Response{Status: 200, Body: "ok"},
		},
		Windows: []config.BehaviorWindow{{
			Scope:    config.BehaviorScope{Global: true},
			ErrorMix: config.MixOverride,
			Schedule: config.BehaviorSchedule{
				Mode:          config.ScheduleFixed,
				StartOffsetMs: ptr(0.0),
				DurationMs:    1e9,
			},
			ErrorProfileOverride: &config.ErrorProfile{
				Rate:  1.0,
				Codes: []int{503},
				Body:  "maintenance",
			},
		}},
		LoadedAt: time.Now(),
	}

	pipeline := newTestPipeline(8)
	for i := 0; i < 20; i++ {
		reply, err := pipeline.Execute(context.Background(), ep, "")
		require.NoError(t, err)
		assert.Equal(t, 503, reply.Status)
		assert.Equal(t, "maintenance", string(reply.Body))
	}
}

func TestPipeline_ErrorInPayloadKeepsStatus(t *testing.T) {
	t.Parallel()

	pipeline := newTestPipeline(9)
	ep := resolved(config.Endpoint{
		ID:       "sneaky",
		Latency:  fixedLatency(0),
		Response: config.Response{Status: 201, Body: "created"},
		ErrorProfile: config.ErrorProfile{
			Rate:           1.0,
			ErrorInPayload: true,
			Body:           `{"error":"hidden"}`,
		},
	})

	reply, err := pipeline.Execute(context.Background(), ep, "")
	require.NoError(t, err)
	assert.Equal(t, 201, reply.Status)
	assert.Equal(t, `{"error":"hidden"}`, string(reply.Body))
}

func TestPipeline_PayloadCorruption(t *testing.T) {
	t.Parallel()

	t.Run("given truncate at ratio 0.5, then half the body survives", func(t *testing.T) {
		pipeline := newTestPipeline(10)
		ep := resolved(config.Endpoint{
			ID:       "garbled",
			Latency:  fixedLatency(0),
			Response: config.Response{Status: 200, Body: "0123456789"},
			ErrorProfile: config.ErrorProfile{
				PayloadCorruption: &config.PayloadCorruption{
					Rate:          1.0,
					Mode:          config.CorruptTruncate,
					TruncateRatio: ptr(0.5),
				},
			},
		})
		reply, err := pipeline.Execute(context.Background(), ep, "")
		require.NoError(t, err)
		assert.Equal(t, "01234", string(reply.Body))
	})

	t.Run("given replace with no replacement, then the body empties", func(t *testing.T) {
		pipeline := newTestPipeline(11)
		ep := resolved(config.Endpoint{
			ID:       "replaced",
			Latency:  fixedLatency(0),
			Response: config.Response{Status: 200, Body: "0123456789"},
			ErrorProfile: config.ErrorProfile{
				PayloadCorruption: &config.PayloadCorruption{
					Rate: 1.0,
					Mode: config.CorruptReplace,
				},
			},
		})
		reply, err := pipeline.Execute(context.Background(), ep, "")
		require.NoError(t, err)
		assert.Empty(t, reply.Body)
	})
}

func TestPipeline_BandwidthPacing(t *testing.T) {
	t.Parallel()

	pipeline := newTestPipeline(12)
	ep := resolved(config.Endpoint{
		ID:           "throttled",
		Latency:      fixedLatency(0),
		Response:     config.Response{Status: 200, Body: string(make([]byte, 1000))},
		BandwidthCap: &config.BandwidthCap{BytesPerSecond: 10000},
	})

	start := time.Now()
	reply, err := pipeline.Execute(context.Background(), ep, "")
	require.NoError(t, err)
	assert.Equal(t, 200, reply.Status)
	// 1000 bytes at 10000 B/s paces for 100ms.
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestPipeline_CancelledDuringDelay(t *testing.T) {
	t.Parallel()

	pipeline := newTestPipeline(13)
	ep := resolved(config.Endpoint{
		ID:       "slow",
		Latency:  fixedLatency(5000),
		Response: config.Response{Status: 200, Body: "ok"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := pipeline.Execute(ctx, ep, "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second, "cancellation must end the sleep early")
}
