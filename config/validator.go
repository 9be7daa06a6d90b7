package config

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// ValidationError reports one structural problem in a document.
type ValidationError struct {
	Field    string `json:"field"`
	Message  string `json:"error"`
	Location string `json:"location,omitempty"`
}

func (e ValidationError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Field, e.Message, e.Location)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates every problem found in one pass so callers can
// report all of them at once.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("configuration validation failed with %d error(s): %s",
		len(e), strings.Join(msgs, "; "))
}

// Validate checks every structural invariant of the document. The control
// plane only hands documents that pass to the registry, which does not
// re-check them; the engine assumes all of these hold.
func Validate(cfg *Configuration) error {
	v := &validator{}

	if cfg.Version != Version {
		v.push("version", "must be '"+Version+"'", "")
	}
	if len(cfg.Endpoints) == 0 {
		v.push("endpoints", "must contain at least one endpoint", "")
	}

	ids := map[string]bool{}
	routes := map[string]bool{}
	for i := range cfg.Endpoints {
		ep := &cfg.Endpoints[i]
		v.endpoint(ep)
		if ids[ep.ID] {
			v.push("endpoints.id", "duplicate endpoint id", ep.ID)
		}
		ids[ep.ID] = true
		route := string(ep.Method) + " " + ep.Path
		if routes[route] {
			v.push("endpoints.method+path", "duplicate method and path combination", route)
		}
		routes[route] = true
	}

	groups := map[string]bool{}
	for i := range cfg.EndpointGroups {
		g := &cfg.EndpointGroups[i]
		loc := g.ID
		if strings.TrimSpace(g.ID) == "" {
			v.push("endpoint_groups.id", "id must not be empty", "")
		}
		if groups[g.ID] {
			v.push("endpoint_groups.id", "duplicate group id", g.ID)
		}
		groups[g.ID] = true
		if len(g.EndpointIDs) == 0 {
			v.push("endpoint_groups.endpoint_ids", "must reference at least one endpoint", loc)
		}
		for _, id := range g.EndpointIDs {
			if !ids[id] {
				v.push("endpoint_groups.endpoint_ids", "unknown endpoint id '"+id+"'", loc)
			}
		}
	}

	v.behaviorWindows(cfg, ids, groups)
	v.burstEvents(cfg, ids, groups)

	workflowIDs := map[string]bool{}
	for _, w := range cfg.Workflows {
		if workflowIDs[w.ID] {
			v.push("workflows.id", "duplicate workflow id", w.ID)
		}
		workflowIDs[w.ID] = true
	}

	if len(v.errs) > 0 {
		return v.errs
	}
	return nil
}

type validator struct {
	errs ValidationErrors
}

func (v *validator) push(field, message, location string) {
	v.errs = append(v.errs, ValidationError{Field: field, Message: message, Location: location})
}

func (v *validator) endpoint(ep *Endpoint) {
	loc := ep.ID
	if strings.TrimSpace(ep.ID) == "" {
		v.push("endpoints.id", "id must not be empty", "")
	}
	if _, ok := ParseMethod(string(ep.Method)); !ok {
		v.push("endpoints.method", "unsupported HTTP method '"+string(ep.Method)+"'", loc)
	}
	if !strings.HasPrefix(ep.Path, "/") {
		v.push("endpoints.path", "path must start with '/'", loc)
	}

	v.latency(&ep.Latency, "latency", loc)
	v.response(&ep.Response, loc)
	v.errorProfile(&ep.ErrorProfile, "error_profile", loc)
	v.requestMatch(ep.Request, loc)

	if rl := ep.RateLimit; rl != nil {
		if !positiveFinite(rl.RequestsPerSecond) {
			v.push("rate_limit.requests_per_second", "must be > 0", loc)
		}
		if rl.Burst != nil && !positiveFinite(*rl.Burst) {
			v.push("rate_limit.burst", "must be > 0", loc)
		}
	}
	if bw := ep.BandwidthCap; bw != nil && !positiveFinite(bw.BytesPerSecond) {
		v.push("bandwidth_cap.bytes_per_second", "must be > 0", loc)
	}
}

func (v *validator) response(r *Response, loc string) {
	if r.Status < 100 || r.Status > 599 {
		v.push("response.status", "must be between 100 and 599", loc)
	}
}

func (v *validator) requestMatch(rm *RequestMatch, loc string) {
	if rm == nil {
		return
	}
	switch rm.BodyMatch {
	case BodyMatchAny, BodyMatchIgnore:
	case BodyMatchExact, BodyMatchContains:
		if rm.Body == nil {
			v.push("request.body", "required when body_match is '"+string(rm.BodyMatch)+"'", loc)
		}
	default:
		v.push("request.body_match", "unknown body_match '"+string(rm.BodyMatch)+"'", loc)
	}
}

func (v *validator) errorProfile(p *ErrorProfile, field, loc string) {
	if p.Rate < 0 || p.Rate > 1 || !isFinite(p.Rate) {
		v.push(field+".rate", "must be between 0.0 and 1.0", loc)
	}
	for _, code := range p.Codes {
		if code < 100 || code > 599 {
			v.push(field+".codes", fmt.Sprintf("status code %d out of range 100-599", code), loc)
		}
	}
	if p.Rate > 0 && !p.ErrorInPayload && len(p.Codes) == 0 {
		v.push(field+".codes", "must not be empty when rate > 0 and error_in_payload is false", loc)
	}
	if pc := p.PayloadCorruption; pc != nil {
		if pc.Rate < 0 || pc.Rate > 1 || !isFinite(pc.Rate) {
			v.push(field+".payload_corruption.rate", "must be between 0.0 and 1.0", loc)
		}
		switch pc.Mode {
		case CorruptTruncate, CorruptReplace:
		default:
			v.push(field+".payload_corruption.mode", "must be 'truncate' or 'replace'", loc)
		}
		if pc.TruncateRatio != nil && (!isFinite(*pc.TruncateRatio) || *pc.TruncateRatio < 0 || *pc.TruncateRatio > 1) {
			v.push(field+".payload_corruption.truncate_ratio", "must be between 0.0 and 1.0", loc)
		}
	}
}

func (v *validator) latency(lc *LatencyConfig, field, loc string) {
	v.distribution(lc.Distribution, &lc.Params, field, loc, true)
}

func (v *validator) distribution(kind DistributionType, p *DistributionParams, field, loc string, allowMixture bool) {
	switch kind {
	case DistFixed:
		if p.DelayMs == nil || !nonNegativeFinite(*p.DelayMs) {
			v.push(field+".params.delay_ms", "must be >= 0", loc)
		}
	case DistNormal, DistLogNormal:
		if p.MeanMs == nil || !nonNegativeFinite(*p.MeanMs) {
			v.push(field+".params.mean_ms", "must be >= 0", loc)
		}
		if p.StddevMs == nil || !nonNegativeFinite(*p.StddevMs) {
			v.push(field+".params.stddev_ms", "must be >= 0", loc)
		}
	case DistExponential:
		if p.Rate == nil || !positiveFinite(*p.Rate) {
			v.push(field+".params.rate", "must be > 0", loc)
		}
	case DistUniform:
		switch {
		case p.MinMs == nil || !nonNegativeFinite(*p.MinMs):
			v.push(field+".params.min_ms", "must be >= 0", loc)
		case p.MaxMs == nil || !nonNegativeFinite(*p.MaxMs):
			v.push(field+".params.max_ms", "must be >= 0", loc)
		case *p.MaxMs < *p.MinMs:
			v.push(field+".params.max_ms", "must be >= min_ms", loc)
		}
	case DistMixture:
		if !allowMixture {
			v.push(field+".distribution", "mixture components must not be mixtures", loc)
			return
		}
		if len(p.Components) == 0 {
			v.push(field+".params.components", "must contain at least one component", loc)
			return
		}
		for i := range p.Components {
			comp := &p.Components[i]
			compField := fmt.Sprintf("%s.params.components[%d]", field, i)
			if !positiveFinite(comp.Weight) {
				v.push(compField+".weight", "must be > 0", loc)
			}
			v.distribution(comp.Distribution, &comp.Params, compField, loc, false)
		}
	default:
		v.push(field+".distribution", "unknown distribution '"+string(kind)+"'", loc)
	}
}

func (v *validator) behaviorWindows(cfg *Configuration, ids, groups map[string]bool) {
	// Track per-scope fixed intervals and recurring counts for the overlap
	// and single-recurring invariants.
	type interval struct{ start, end float64 }
	fixedByScope := map[string][]interval{}
	recurringByScope := map[string]int{}

	for i := range cfg.BehaviorWindows {
		w := &cfg.BehaviorWindows[i]
		loc := fmt.Sprintf("behavior_windows[%d]", i)
		if w.ID != nil && *w.ID != "" {
			loc = *w.ID
		}

		v.scope(&w.Scope, "behavior_windows.scope", loc, ids, groups)

		switch w.ErrorMix {
		case MixOverride, MixAdditive, MixBlend:
		default:
			v.push("behavior_windows.error_mix", "must be 'override', 'additive', or 'blend'", loc)
		}

		if w.LatencyOverride != nil {
			v.latency(w.LatencyOverride, "behavior_windows.latency_override", loc)
		}
		if w.ErrorProfileOverride != nil {
			v.errorProfile(w.ErrorProfileOverride, "behavior_windows.error_profile_override", loc)
		}
		v.ramp(w.Ramp, "behavior_windows.ramp", loc)

		s := &w.Schedule
		if !positiveFinite(s.DurationMs) {
			v.push("behavior_windows.schedule.duration_ms", "must be > 0", loc)
		}
		switch s.Mode {
		case ScheduleFixed:
			if s.StartOffsetMs == nil || !nonNegativeFinite(*s.StartOffsetMs) {
				v.push("behavior_windows.schedule.start_offset_ms", "must be >= 0 for fixed schedules", loc)
				continue
			}
			key := w.Scope.Key()
			fixedByScope[key] = append(fixedByScope[key],
				interval{*s.StartOffsetMs, *s.StartOffsetMs + s.DurationMs})
		case ScheduleRecurring:
			if s.EveryMs == nil || !positiveFinite(*s.EveryMs) {
				v.push("behavior_windows.schedule.every_ms", "must be > 0 for recurring schedules", loc)
				continue
			}
			v.recurrence(*s.EveryMs, s.DurationMs, s.JitterMs, "behavior_windows.schedule", loc)
			if s.MinDelayMs != nil && !nonNegativeFinite(*s.MinDelayMs) {
				v.push("behavior_windows.schedule.min_delay_ms", "must be >= 0", loc)
			}
			if s.MaxOccurrences != nil && *s.MaxOccurrences <= 0 {
				v.push("behavior_windows.schedule.max_occurrences", "must be > 0", loc)
			}
			recurringByScope[w.Scope.Key()]++
		default:
			v.push("behavior_windows.schedule.mode", "must be 'fixed' or 'recurring'", loc)
		}
	}

	for scope, windows := range fixedByScope {
		sort.Slice(windows, func(a, b int) bool { return windows[a].start < windows[b].start })
		for i := 1; i < len(windows); i++ {
			if windows[i].start < windows[i-1].end {
				v.push("behavior_windows.schedule",
					"fixed windows on the same scope must not overlap", scope)
			}
		}
	}
	for scope, count := range recurringByScope {
		if count > 1 {
			v.push("behavior_windows.schedule",
				"at most one recurring window per scope", scope)
		}
	}
}

func (v *validator) burstEvents(cfg *Configuration, ids, groups map[string]bool) {
	for i := range cfg.BurstEvents {
		b := &cfg.BurstEvents[i]
		loc := fmt.Sprintf("burst_events[%d]", i)
		if b.ID != nil && *b.ID != "" {
			loc = *b.ID
		}

		v.scope(&b.Scope, "burst_events.scope", loc, ids, groups)

		if !positiveFinite(b.Frequency.EveryMs) {
			v.push("burst_events.frequency.every_ms", "must be > 0", loc)
			continue
		}
		if !positiveFinite(b.DurationMs) {
			v.push("burst_events.duration_ms", "must be > 0", loc)
			continue
		}
		v.recurrence(b.Frequency.EveryMs, b.DurationMs, b.Frequency.JitterMs, "burst_events", loc)
		v.ramp(b.Ramp, "burst_events.ramp", loc)

		if b.LatencySpike != nil {
			v.latency(b.LatencySpike, "burst_events.latency_spike", loc)
		}
		if spike := b.ErrorSpike; spike != nil {
			switch spike.ErrorMix {
			case MixOverride, MixAdditive, MixBlend:
			default:
				v.push("burst_events.error_spike.error_mix", "must be 'override', 'additive', or 'blend'", loc)
			}
			v.errorProfile(&spike.ErrorProfile, "burst_events.error_spike.error_profile", loc)
		}
	}
}

func (v *validator) recurrence(everyMs, durationMs float64, jitterMs *float64, field, loc string) {
	if durationMs > everyMs {
		v.push(field+".duration_ms", "must be <= every_ms", loc)
	}
	if jitterMs != nil {
		if !nonNegativeFinite(*jitterMs) {
			v.push(field+".jitter_ms", "must be >= 0", loc)
		} else if *jitterMs > everyMs-durationMs {
			v.push(field+".jitter_ms", "must be <= every_ms - duration_ms", loc)
		}
	}
}

func (v *validator) ramp(r *RampConfig, field, loc string) {
	if r == nil {
		return
	}
	if r.UpMs != nil && !nonNegativeFinite(*r.UpMs) {
		v.push(field+".up_ms", "must be >= 0", loc)
	}
	if r.DownMs != nil && !nonNegativeFinite(*r.DownMs) {
		v.push(field+".down_ms", "must be >= 0", loc)
	}
	if r.Curve != nil {
		switch *r.Curve {
		case RampLinear, RampSCurve:
		default:
			v.push(field+".curve", "must be 'linear' or 's_curve'", loc)
		}
	}
}

func (v *validator) scope(s *BehaviorScope, field, loc string, ids, groups map[string]bool) {
	set := 0
	if s.EndpointID != nil {
		set++
		if !ids[*s.EndpointID] {
			v.push(field+".endpoint_id", "unknown endpoint id '"+*s.EndpointID+"'", loc)
		}
	}
	if s.GroupID != nil {
		set++
		if !groups[*s.GroupID] {
			v.push(field+".group_id", "unknown group id '"+*s.GroupID+"'", loc)
		}
	}
	if s.Global {
		set++
	}
	if set != 1 {
		v.push(field, "exactly one of endpoint_id, group_id, or global must be set", loc)
	}
}

func isFinite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func positiveFinite(f float64) bool { return isFinite(f) && f > 0 }

func nonNegativeFinite(f float64) bool { return isFinite(f) && f >= 0 }
