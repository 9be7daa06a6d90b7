package controlplane

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macnak/simulant/config"
	"github.com/macnak/simulant/engine"
)

func ptr[T any](v T) *T { return &v }

func sampleConfig(delayMs float64) *config.Configuration {
	return &config.Configuration{
		Version: config.Version,
		Endpoints: []config.Endpoint{{
			ID:     "health",
			Method: config.MethodGet,
			Path:   "/health",
			Latency: config.LatencyConfig{
				Distribution: config.DistFixed,
				Params:       config.DistributionParams{DelayMs: ptr(delayMs)},
			},
			Response: config.Response{Status: 200, Body: "ok"},
		}},
	}
}

func TestStore_ApplyPersistsAndActivates(t *testing.T) {
	t.Parallel()

	registry := engine.NewRegistry()
	path := filepath.Join(t.TempDir(), "simulation.yaml")
	store := NewStore(registry, path, zerolog.Nop())

	require.NoError(t, store.Apply(sampleConfig(1)))

	_, ok := registry.Get(config.MethodGet, "/health")
	assert.True(t, ok)
	_, err := os.Stat(path)
	assert.NoError(t, err)
	assert.NotNil(t, store.Current())
}

func TestStore_ApplyRejectsInvalid(t *testing.T) {
	t.Parallel()

	registry := engine.NewRegistry()
	store := NewStore(registry, filepath.Join(t.TempDir(), "simulation.yaml"), zerolog.Nop())

	bad := sampleConfig(1)
	bad.Endpoints[0].Path = "no-slash"
	assert.Error(t, store.Apply(bad))

	_, ok := registry.Get(config.MethodGet, "/health")
	assert.False(t, ok)
	assert.Nil(t, store.Current())
}

func TestStore_LoadFromDiskSkipsUnchangedContent(t *testing.T) {
	t.Parallel()

	registry := engine.NewRegistry()
	path := filepath.Join(t.TempDir(), "simulation.yaml")
	store := NewStore(registry, path, zerolog.Nop())

	require.NoError(t, store.Apply(sampleConfig(1)))
	first, ok := registry.Get(config.MethodGet, "/health")
	require.True(t, ok)

	// Re-reading our own save must not reset the behavior clock.
	require.NoError(t, store.LoadFromDisk())
	second, ok := registry.Get(config.MethodGet, "/health")
	require.True(t, ok)
	assert.Equal(t, first.LoadedAt, second.LoadedAt)
}

func TestStore_LoadFromDiskPicksUpEdits(t *testing.T) {
	t.Parallel()

	registry := engine.NewRegistry()
	path := filepath.Join(t.TempDir(), "simulation.yaml")
	store := NewStore(registry, path, zerolog.Nop())
	require.NoError(t, store.Apply(sampleConfig(1)))

	require.NoError(t, config.Save(path, sampleConfig(25)))
	require.NoError(t, store.LoadFromDisk())

	ep, ok := registry.Get(config.MethodGet, "/health")
	require.True(t, ok)
	assert.Equal(t, 25.0, *ep.Latency.Params.DelayMs)
}

func TestStore_LoadFromDiskKeepsRegistryOnBadFile(t *testing.T) {
	t.Parallel()

	registry := engine.NewRegistry()
	path := filepath.Join(t.TempDir(), "simulation.yaml")
	store := NewStore(registry, path, zerolog.Nop())
	require.NoError(t, store.Apply(sampleConfig(1)))

	require.NoError(t, os.WriteFile(path, []byte("endpoints: ["), 0o644))
	assert.Error(t, store.LoadFromDisk())

	_, ok := registry.Get(config.MethodGet, "/health")
	assert.True(t, ok, "a bad edit must not disturb the live table")
}

func TestWatcher_ReloadsOnFileChange(t *testing.T) {
	t.Parallel()

	registry := engine.NewRegistry()
	path := filepath.Join(t.TempDir(), "simulation.yaml")
	store := NewStore(registry, path, zerolog.Nop())
	require.NoError(t, store.Apply(sampleConfig(1)))

	watcher := NewWatcher(store, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() { _ = watcher.Run(ctx) }()

	// Give the watcher a beat to install before editing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, config.Save(path, sampleConfig(25)))

	require.Eventually(t, func() bool {
		ep, ok := registry.Get(config.MethodGet, "/health")
		return ok && *ep.Latency.Params.DelayMs == 25.0
	}, 3*time.Second, 50*time.Millisecond)
}
