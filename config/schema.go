// Package config defines the simulation configuration document, its
// YAML/JSON parsing, structural validation, and on-disk persistence.
//
// A document describes the endpoints the simulator serves and the
// time-varying behavior layered on top of them. The engine never consumes
// a Configuration directly; it receives one through the endpoint registry.
// The registry compiles whatever it is given without re-checking it; the
// control-plane store runs Validate before every document it hands over.
package config

// Version is the only configuration schema version this build understands.
const Version = "1.0"

// Configuration is the top-level document.
type Configuration struct {
	Version         string           `yaml:"version" json:"version"`
	Metadata        Metadata         `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	Endpoints       []Endpoint       `yaml:"endpoints" json:"endpoints"`
	EndpointGroups  []EndpointGroup  `yaml:"endpoint_groups,omitempty" json:"endpoint_groups,omitempty"`
	BehaviorWindows []BehaviorWindow `yaml:"behavior_windows,omitempty" json:"behavior_windows,omitempty"`
	BurstEvents     []BurstEvent     `yaml:"burst_events,omitempty" json:"burst_events,omitempty"`
	Workflows       []Workflow       `yaml:"workflows,omitempty" json:"workflows,omitempty"`
}

// Metadata carries free-form document annotations.
type Metadata struct {
	Name        string `yaml:"name,omitempty" json:"name,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Author      string `yaml:"author,omitempty" json:"author,omitempty"`
	Created     string `yaml:"created,omitempty" json:"created,omitempty"`
}

// Endpoint declares one simulated route, keyed for routing by (Method, Path).
type Endpoint struct {
	ID           string        `yaml:"id" json:"id"`
	Method       Method        `yaml:"method" json:"method"`
	Path         string        `yaml:"path" json:"path"`
	Request      *RequestMatch `yaml:"request,omitempty" json:"request,omitempty"`
	Latency      LatencyConfig `yaml:"latency" json:"latency"`
	Response     Response      `yaml:"response" json:"response"`
	ErrorProfile ErrorProfile  `yaml:"error_profile,omitempty" json:"error_profile,omitempty"`
	RateLimit    *RateLimit    `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
	BandwidthCap *BandwidthCap `yaml:"bandwidth_cap,omitempty" json:"bandwidth_cap,omitempty"`
}

// EndpointGroup names a set of endpoint ids so a single behavior rule can
// target all of them.
type EndpointGroup struct {
	ID          string   `yaml:"id" json:"id"`
	EndpointIDs []string `yaml:"endpoint_ids" json:"endpoint_ids"`
}

// Method is an upper-case HTTP verb.
type Method string

// Supported verbs. Anything else is rejected with 405 before routing.
const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodPatch   Method = "PATCH"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
)

// ParseMethod maps a wire verb onto a Method, reporting whether the verb is
// one the simulator serves.
func ParseMethod(verb string) (Method, bool) {
	switch Method(verb) {
	case MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch, MethodHead, MethodOptions:
		return Method(verb), true
	}
	return "", false
}

// RequestMatch restricts which request bodies an endpoint accepts.
type RequestMatch struct {
	BodyMatch BodyMatchType `yaml:"body_match,omitempty" json:"body_match,omitempty"`
	Body      *string       `yaml:"body,omitempty" json:"body,omitempty"`
}

// BodyMatchType selects the comparison applied to the request body.
type BodyMatchType string

const (
	BodyMatchAny      BodyMatchType = "any"
	BodyMatchExact    BodyMatchType = "exact"
	BodyMatchContains BodyMatchType = "contains"
	BodyMatchIgnore   BodyMatchType = "ignore"
)

// LatencyConfig pairs a distribution kind with its parameters.
type LatencyConfig struct {
	Distribution DistributionType   `yaml:"distribution" json:"distribution"`
	Params       DistributionParams `yaml:"params" json:"params"`
}

// DistributionType tags the latency distribution family.
type DistributionType string

const (
	DistFixed       DistributionType = "fixed"
	DistNormal      DistributionType = "normal"
	DistExponential DistributionType = "exponential"
	DistUniform     DistributionType = "uniform"
	DistLogNormal   DistributionType = "log_normal"
	DistMixture     DistributionType = "mixture"
)

// DistributionParams holds the parameter record for every distribution
// family; the set of populated fields must agree with the declared type
// (Validate enforces this). All delays are milliseconds.
type DistributionParams struct {
	// fixed
	DelayMs *float64 `yaml:"delay_ms,omitempty" json:"delay_ms,omitempty"`
	// normal / log_normal
	MeanMs   *float64 `yaml:"mean_ms,omitempty" json:"mean_ms,omitempty"`
	StddevMs *float64 `yaml:"stddev_ms,omitempty" json:"stddev_ms,omitempty"`
	// exponential
	Rate *float64 `yaml:"rate,omitempty" json:"rate,omitempty"`
	// uniform
	MinMs *float64 `yaml:"min_ms,omitempty" json:"min_ms,omitempty"`
	MaxMs *float64 `yaml:"max_ms,omitempty" json:"max_ms,omitempty"`
	// mixture
	Components []MixtureComponent `yaml:"components,omitempty" json:"components,omitempty"`
}

// MixtureComponent is one weighted member of a mixture distribution.
// Components must themselves be non-mixture.
type MixtureComponent struct {
	Weight       float64            `yaml:"weight" json:"weight"`
	Distribution DistributionType   `yaml:"distribution" json:"distribution"`
	Params       DistributionParams `yaml:"params" json:"params"`
}

// Response is the template the endpoint answers with when no error fires.
type Response struct {
	Status  int               `yaml:"status" json:"status"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Body    string            `yaml:"body" json:"body"`
}

// ErrorProfile describes injected failures.
//
// When Rate is positive and ErrorInPayload is false, each firing picks a
// status uniformly from Codes and replaces the body. When ErrorInPayload is
// true the template status is kept and only the body is swapped, modelling
// upstreams that bury errors inside a 200.
type ErrorProfile struct {
	Rate              float64            `yaml:"rate,omitempty" json:"rate,omitempty"`
	Codes             []int              `yaml:"codes,omitempty" json:"codes,omitempty"`
	Body              string             `yaml:"body,omitempty" json:"body,omitempty"`
	ErrorInPayload    bool               `yaml:"error_in_payload,omitempty" json:"error_in_payload,omitempty"`
	PayloadCorruption *PayloadCorruption `yaml:"payload_corruption,omitempty" json:"payload_corruption,omitempty"`
}

// PayloadCorruption mangles response bodies with the given probability.
type PayloadCorruption struct {
	Rate          float64        `yaml:"rate" json:"rate"`
	Mode          CorruptionMode `yaml:"mode" json:"mode"`
	TruncateRatio *float64       `yaml:"truncate_ratio,omitempty" json:"truncate_ratio,omitempty"`
	Replacement   *string        `yaml:"replacement,omitempty" json:"replacement,omitempty"`
}

// CorruptionMode selects how a corrupted body is produced.
type CorruptionMode string

const (
	CorruptTruncate CorruptionMode = "truncate"
	CorruptReplace  CorruptionMode = "replace"
)

// RateLimit caps request admission for one endpoint. Burst defaults to
// RequestsPerSecond when unset.
type RateLimit struct {
	RequestsPerSecond float64  `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             *float64 `yaml:"burst,omitempty" json:"burst,omitempty"`
}

// BandwidthCap paces response bodies at the given byte rate.
type BandwidthCap struct {
	BytesPerSecond float64 `yaml:"bytes_per_second" json:"bytes_per_second"`
}

// BehaviorScope targets a behavior rule at one endpoint, a group, or every
// endpoint. Exactly one selector must be set.
type BehaviorScope struct {
	EndpointID *string `yaml:"endpoint_id,omitempty" json:"endpoint_id,omitempty"`
	GroupID    *string `yaml:"group_id,omitempty" json:"group_id,omitempty"`
	Global     bool    `yaml:"global,omitempty" json:"global,omitempty"`
}

// Key returns the stable identity used for deterministic occurrence jitter
// when a window or burst has no explicit id.
func (s BehaviorScope) Key() string {
	switch {
	case s.Global:
		return "global"
	case s.EndpointID != nil:
		return "endpoint:" + *s.EndpointID
	case s.GroupID != nil:
		return "group:" + *s.GroupID
	}
	return ""
}

// ScheduleMode tags a window schedule.
type ScheduleMode string

const (
	ScheduleFixed     ScheduleMode = "fixed"
	ScheduleRecurring ScheduleMode = "recurring"
)

// BehaviorSchedule places a window on the clock that starts at config load.
//
// Fixed mode uses StartOffsetMs + DurationMs. Recurring mode repeats every
// EveryMs with optional start jitter, lead-in delay, and occurrence cap.
type BehaviorSchedule struct {
	Mode           ScheduleMode `yaml:"mode" json:"mode"`
	StartOffsetMs  *float64     `yaml:"start_offset_ms,omitempty" json:"start_offset_ms,omitempty"`
	DurationMs     float64      `yaml:"duration_ms" json:"duration_ms"`
	EveryMs        *float64     `yaml:"every_ms,omitempty" json:"every_ms,omitempty"`
	JitterMs       *float64     `yaml:"jitter_ms,omitempty" json:"jitter_ms,omitempty"`
	MaxOccurrences *int         `yaml:"max_occurrences,omitempty" json:"max_occurrences,omitempty"`
	MinDelayMs     *float64     `yaml:"min_delay_ms,omitempty" json:"min_delay_ms,omitempty"`
}

// RampCurve shapes the ramp factor near window edges.
type RampCurve string

const (
	RampLinear RampCurve = "linear"
	RampSCurve RampCurve = "s_curve"
)

// RampConfig fades a window or burst in and out instead of switching it on
// at full intensity.
type RampConfig struct {
	UpMs   *float64   `yaml:"up_ms,omitempty" json:"up_ms,omitempty"`
	DownMs *float64   `yaml:"down_ms,omitempty" json:"down_ms,omitempty"`
	Curve  *RampCurve `yaml:"curve,omitempty" json:"curve,omitempty"`
}

// ErrorMix selects how an override error profile combines with the base.
type ErrorMix string

const (
	MixOverride ErrorMix = "override"
	MixAdditive ErrorMix = "additive"
	MixBlend    ErrorMix = "blend"
)

// BehaviorWindow overrides latency and error behavior for its scope while
// its schedule is active.
type BehaviorWindow struct {
	ID                   *string          `yaml:"id,omitempty" json:"id,omitempty"`
	Scope                BehaviorScope    `yaml:"scope" json:"scope"`
	Schedule             BehaviorSchedule `yaml:"schedule" json:"schedule"`
	Ramp                 *RampConfig      `yaml:"ramp,omitempty" json:"ramp,omitempty"`
	ErrorMix             ErrorMix         `yaml:"error_mix,omitempty" json:"error_mix,omitempty"`
	LatencyOverride      *LatencyConfig   `yaml:"latency_override,omitempty" json:"latency_override,omitempty"`
	ErrorProfileOverride *ErrorProfile    `yaml:"error_profile_override,omitempty" json:"error_profile_override,omitempty"`
}

// JitterKey returns the identity hashed with the occurrence index for
// deterministic schedule jitter.
func (w BehaviorWindow) JitterKey() string {
	if w.ID != nil && *w.ID != "" {
		return *w.ID
	}
	return w.Scope.Key()
}

// BurstFrequency sets the recurrence of a burst event.
type BurstFrequency struct {
	EveryMs  float64  `yaml:"every_ms" json:"every_ms"`
	JitterMs *float64 `yaml:"jitter_ms,omitempty" json:"jitter_ms,omitempty"`
}

// ErrorSpike is the error overlay a burst applies while active.
type ErrorSpike struct {
	ErrorMix     ErrorMix     `yaml:"error_mix,omitempty" json:"error_mix,omitempty"`
	ErrorProfile ErrorProfile `yaml:"error_profile" json:"error_profile"`
}

// BurstEvent layers short recurring spikes on top of any active window.
type BurstEvent struct {
	ID           *string        `yaml:"id,omitempty" json:"id,omitempty"`
	Scope        BehaviorScope  `yaml:"scope" json:"scope"`
	Frequency    BurstFrequency `yaml:"frequency" json:"frequency"`
	DurationMs   float64        `yaml:"duration_ms" json:"duration_ms"`
	Ramp         *RampConfig    `yaml:"ramp,omitempty" json:"ramp,omitempty"`
	LatencySpike *LatencyConfig `yaml:"latency_spike,omitempty" json:"latency_spike,omitempty"`
	ErrorSpike   *ErrorSpike    `yaml:"error_spike,omitempty" json:"error_spike,omitempty"`
}

// JitterKey mirrors BehaviorWindow.JitterKey for bursts.
func (b BurstEvent) JitterKey() string {
	if b.ID != nil && *b.ID != "" {
		return *b.ID
	}
	return b.Scope.Key()
}

// Workflow is parsed and round-tripped but has no runtime behavior yet.
type Workflow struct {
	ID string `yaml:"id" json:"id"`
}

// applyDefaults fills the fields the schema leaves optional.
func (c *Configuration) applyDefaults() {
	for i := range c.Endpoints {
		ep := &c.Endpoints[i]
		if ep.Response.Headers == nil {
			ep.Response.Headers = map[string]string{"Content-Type": "application/json"}
		}
		if ep.Request != nil && ep.Request.BodyMatch == "" {
			ep.Request.BodyMatch = BodyMatchAny
		}
	}
	for i := range c.BehaviorWindows {
		if c.BehaviorWindows[i].ErrorMix == "" {
			c.BehaviorWindows[i].ErrorMix = MixOverride
		}
	}
	for i := range c.BurstEvents {
		if spike := c.BurstEvents[i].ErrorSpike; spike != nil && spike.ErrorMix == "" {
			spike.ErrorMix = MixOverride
		}
	}
}
