// Package engine implements the simulation data plane: the compiled
// endpoint registry, the per-request behavior pipeline, and the HTTP server
// that fronts them.
package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/macnak/simulant/config"
)

// ResolvedEndpoint is the compile product the pipeline runs against: the
// endpoint plus the behavior windows and bursts whose scope matches it, the
// clock origin shared by every endpoint of one load, and a live token bucket
// when the endpoint is rate-limited.
//
// Resolved endpoints are immutable after compilation except for the bucket,
// which guards its own state.
type ResolvedEndpoint struct {
	config.Endpoint

	Windows  []config.BehaviorWindow
	Bursts   []config.BurstEvent
	LoadedAt time.Time

	bucket *TokenBucket
}

// TryAdmit consumes a rate-limit token. Endpoints without a rate limit
// always admit.
func (e *ResolvedEndpoint) TryAdmit() bool {
	if e.bucket == nil {
		return true
	}
	return e.bucket.TryTake()
}

// ElapsedMs returns milliseconds between the table's load and now; all
// window and burst offsets are measured on this clock.
func (e *ResolvedEndpoint) ElapsedMs(now time.Time) float64 {
	return float64(now.Sub(e.LoadedAt)) / float64(time.Millisecond)
}

type routeKey struct {
	method config.Method
	path   string
}

type table struct {
	byRoute   map[routeKey]*ResolvedEndpoint
	endpoints []*ResolvedEndpoint
}

var emptyTable = &table{byRoute: map[routeKey]*ResolvedEndpoint{}}

// Registry holds the live compiled endpoint table. Lookups read the current
// table through an atomic pointer and never block behind a reload; a reload
// builds a complete new table and swaps it in, so in-flight requests keep
// the endpoints they already resolved.
type Registry struct {
	current atomic.Pointer[table]

	mu       sync.Mutex // serializes SetConfig
	lastLoad time.Time
}

// NewRegistry returns a registry with no endpoints; every lookup misses
// until the first SetConfig.
func NewRegistry() *Registry {
	r := &Registry{}
	r.current.Store(emptyTable)
	return r
}

// SetConfig compiles the (already validated) document into a new table and
// publishes it. Each endpoint gets the load's shared clock origin, a fresh
// token bucket when rate-limited, and the window/burst lists scoped to it.
func (r *Registry) SetConfig(cfg *config.Configuration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	loadedAt := time.Now()
	// loaded_at must advance strictly across consecutive loads even if the
	// clock granularity makes two loads land on the same instant.
	if !loadedAt.After(r.lastLoad) {
		loadedAt = r.lastLoad.Add(time.Nanosecond)
	}
	r.lastLoad = loadedAt

	groups := make(map[string][]string, len(cfg.EndpointGroups))
	for _, g := range cfg.EndpointGroups {
		groups[g.ID] = g.EndpointIDs
	}

	next := &table{
		byRoute:   make(map[routeKey]*ResolvedEndpoint, len(cfg.Endpoints)),
		endpoints: make([]*ResolvedEndpoint, 0, len(cfg.Endpoints)),
	}
	for i := range cfg.Endpoints {
		ep := cfg.Endpoints[i]
		resolved := &ResolvedEndpoint{
			Endpoint: ep,
			Windows:  matchingWindows(cfg.BehaviorWindows, ep.ID, groups),
			Bursts:   matchingBursts(cfg.BurstEvents, ep.ID, groups),
			LoadedAt: loadedAt,
		}
		if ep.RateLimit != nil {
			resolved.bucket = NewTokenBucket(ep.RateLimit.RequestsPerSecond, ep.RateLimit.Burst)
		}
		next.byRoute[routeKey{ep.Method, ep.Path}] = resolved
		next.endpoints = append(next.endpoints, resolved)
	}

	r.current.Store(next)
}

// Get returns the resolved endpoint for an exact (method, path) route.
func (r *Registry) Get(method config.Method, path string) (*ResolvedEndpoint, bool) {
	ep, ok := r.current.Load().byRoute[routeKey{method, path}]
	return ep, ok
}

// List snapshots the resolved endpoints in declaration order.
func (r *Registry) List() []*ResolvedEndpoint {
	endpoints := r.current.Load().endpoints
	out := make([]*ResolvedEndpoint, len(endpoints))
	copy(out, endpoints)
	return out
}

func scopeMatches(s config.BehaviorScope, endpointID string, groups map[string][]string) bool {
	switch {
	case s.Global:
		return true
	case s.EndpointID != nil:
		return *s.EndpointID == endpointID
	case s.GroupID != nil:
		for _, id := range groups[*s.GroupID] {
			if id == endpointID {
				return true
			}
		}
	}
	return false
}

func matchingWindows(windows []config.BehaviorWindow, endpointID string, groups map[string][]string) []config.BehaviorWindow {
	var out []config.BehaviorWindow
	for _, w := range windows {
		if scopeMatches(w.Scope, endpointID, groups) {
			out = append(out, w)
		}
	}
	return out
}

func matchingBursts(bursts []config.BurstEvent, endpointID string, groups map[string][]string) []config.BurstEvent {
	var out []config.BurstEvent
	for _, b := range bursts {
		if scopeMatches(b.Scope, endpointID, groups) {
			out = append(out, b)
		}
	}
	return out
}
