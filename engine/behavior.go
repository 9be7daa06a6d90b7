package engine

import (
	"math"

	"github.com/macnak/simulant/config"
	"github.com/macnak/simulant/distributions"
)

// Behavior is the outcome of resolving an endpoint's windows and bursts at
// one request time: at most one active window, at most one active burst, and
// their ramp factors.
type Behavior struct {
	Window       *config.BehaviorWindow
	WindowFactor float64
	Burst        *config.BurstEvent
	BurstFactor  float64
}

// ResolveBehavior selects the active window and burst for elapsed time tMs
// (milliseconds since the endpoint's table was loaded). Iteration follows
// declaration order; the first event whose interval contains tMs wins.
func ResolveBehavior(ep *ResolvedEndpoint, tMs float64) Behavior {
	var b Behavior
	for i := range ep.Windows {
		w := &ep.Windows[i]
		start, end, active := windowInterval(w, tMs)
		if active {
			b.Window = w
			b.WindowFactor = rampFactor(w.Ramp, tMs, start, end)
			break
		}
	}
	for i := range ep.Bursts {
		burst := &ep.Bursts[i]
		start, end, active := burstInterval(burst, tMs)
		if active {
			b.Burst = burst
			b.BurstFactor = rampFactor(burst.Ramp, tMs, start, end)
			break
		}
	}
	return b
}

// windowInterval computes the window's current [start, end) occurrence.
func windowInterval(w *config.BehaviorWindow, tMs float64) (start, end float64, active bool) {
	s := &w.Schedule
	switch s.Mode {
	case config.ScheduleFixed:
		if s.StartOffsetMs == nil {
			return 0, 0, false
		}
		start = *s.StartOffsetMs
		end = start + s.DurationMs

	case config.ScheduleRecurring:
		if s.EveryMs == nil || *s.EveryMs <= 0 {
			return 0, 0, false
		}
		minDelay := 0.0
		if s.MinDelayMs != nil {
			minDelay = *s.MinDelayMs
		}
		tau := tMs - minDelay
		if tau < 0 {
			return 0, 0, false
		}
		k := int64(math.Floor(tau / *s.EveryMs))
		if s.MaxOccurrences != nil && k >= int64(*s.MaxOccurrences) {
			return 0, 0, false
		}
		start = minDelay + float64(k)**s.EveryMs
		if s.JitterMs != nil {
			start += distributions.OccurrenceJitter(w.JitterKey(), k, *s.JitterMs)
		}
		if start < minDelay {
			start = minDelay
		}
		end = start + s.DurationMs

	default:
		return 0, 0, false
	}
	return start, end, tMs >= start && tMs < end
}

// burstInterval computes the burst's current [start, end) occurrence. Bursts
// have no lead-in delay or occurrence cap; they cycle from load time.
func burstInterval(b *config.BurstEvent, tMs float64) (start, end float64, active bool) {
	every := b.Frequency.EveryMs
	if every <= 0 || tMs < 0 {
		return 0, 0, false
	}
	k := int64(math.Floor(tMs / every))
	start = float64(k) * every
	if b.Frequency.JitterMs != nil {
		start += distributions.OccurrenceJitter(b.JitterKey(), k, *b.Frequency.JitterMs)
	}
	end = start + b.DurationMs
	return start, end, tMs >= start && tMs < end
}

// rampFactor scales event intensity near its edges. Without a ramp the
// event runs at full intensity for its whole interval.
func rampFactor(ramp *config.RampConfig, tMs, start, end float64) float64 {
	if ramp == nil {
		return 1
	}

	f := 1.0
	progress := tMs - start
	switch {
	case ramp.UpMs != nil && *ramp.UpMs > 0 && progress < *ramp.UpMs:
		f = progress / *ramp.UpMs
	case ramp.DownMs != nil && *ramp.DownMs > 0 && tMs > end-*ramp.DownMs:
		f = (end - tMs) / *ramp.DownMs
	}

	if f < 0 {
		f = 0
	} else if f > 1 {
		f = 1
	}
	if ramp.Curve != nil && *ramp.Curve == config.RampSCurve {
		f = smoothstep(f)
	}
	return f
}

// smoothstep maps [0,1] onto [0,1] with zero slope at both ends.
func smoothstep(f float64) float64 {
	return f * f * (3 - 2*f)
}
