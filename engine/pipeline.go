package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/macnak/simulant/config"
	"github.com/macnak/simulant/distributions"
)

// Reply is the pipeline's fully-determined response: status, the endpoint's
// declared headers, and the final (possibly corrupted) body.
type Reply struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// PlainText builds the synthetic replies the pipeline emits itself
// (match rejections, rate limiting) and the server emits for route misses.
func PlainText(status int, body string) Reply {
	return Reply{
		Status:  status,
		Headers: map[string]string{"Content-Type": "text/plain"},
		Body:    []byte(body),
	}
}

// Pipeline orchestrates one request through match, admission, latency,
// error injection, corruption, and bandwidth pacing. It holds no per-request
// state; one pipeline serves every in-flight request concurrently.
type Pipeline struct {
	rng     *distributions.Rand
	logger  zerolog.Logger
	metrics *Metrics
}

// NewPipeline wires a pipeline. metrics may be nil when no collection is
// wanted (tests, embedded use).
func NewPipeline(rng *distributions.Rand, logger zerolog.Logger, metrics *Metrics) *Pipeline {
	if rng == nil {
		rng = distributions.NewRand()
	}
	return &Pipeline{rng: rng, logger: logger, metrics: metrics}
}

// Execute runs the request against a resolved endpoint. The returned error
// is non-nil only when the caller went away mid-sleep; there is nothing to
// write in that case.
//
// Behavior is resolved once at arrival: a sleep that outlives the active
// window still answers under that window's profile.
func (p *Pipeline) Execute(ctx context.Context, ep *ResolvedEndpoint, body string) (Reply, error) {
	start := time.Now()

	if !MatchesRequest(ep.Request, body) {
		return PlainText(400, "Request body did not match"), nil
	}

	if !ep.TryAdmit() {
		if p.metrics != nil {
			p.metrics.RateLimited(ep.ID)
		}
		return PlainText(429, "Rate limit exceeded"), nil
	}

	behavior := ResolveBehavior(ep, ep.ElapsedMs(start))

	delay := p.sampleDelay(ep, behavior)
	if err := sleep(ctx, delay); err != nil {
		return Reply{}, err
	}

	effective := p.effectiveProfile(ep, behavior)
	reply, injected := p.compose(ep, effective)
	reply.Body = p.corrupt(reply.Body, effective.PayloadCorruption)

	if bw := ep.BandwidthCap; bw != nil && bw.BytesPerSecond > 0 {
		pace := time.Duration(float64(len(reply.Body)) / bw.BytesPerSecond * float64(time.Second))
		if err := sleep(ctx, pace); err != nil {
			return Reply{}, err
		}
	}

	if p.metrics != nil {
		p.metrics.Request(ep.ID, reply.Status, injected, time.Since(start))
	}
	return reply, nil
}

// sampleDelay picks the latency source (base, window override, burst spike)
// and draws one sample. A window override joins by Bernoulli blend on the
// ramp factor; an active burst spike replaces the choice outright under the
// same rule.
func (p *Pipeline) sampleDelay(ep *ResolvedEndpoint, b Behavior) time.Duration {
	source := ep.Latency
	if w := b.Window; w != nil && w.LatencyOverride != nil {
		if b.WindowFactor >= 1 || p.rng.Float64() < b.WindowFactor {
			source = *w.LatencyOverride
		}
	}
	if burst := b.Burst; burst != nil && burst.LatencySpike != nil {
		if b.BurstFactor >= 1 || p.rng.Float64() < b.BurstFactor {
			source = *burst.LatencySpike
		}
	}
	return distributions.Sample(p.rng, source)
}

// effectiveProfile merges the base error profile with the window override
// and then the burst spike, in that order.
func (p *Pipeline) effectiveProfile(ep *ResolvedEndpoint, b Behavior) config.ErrorProfile {
	effective := ep.ErrorProfile
	if w := b.Window; w != nil && w.ErrorProfileOverride != nil {
		effective = MergeProfiles(effective, *w.ErrorProfileOverride, w.ErrorMix, b.WindowFactor)
	}
	if burst := b.Burst; burst != nil && burst.ErrorSpike != nil {
		effective = MergeProfiles(effective, burst.ErrorSpike.ErrorProfile, burst.ErrorSpike.ErrorMix, b.BurstFactor)
	}
	return effective
}

// compose determines status and body from the template and the effective
// profile. The second result reports whether an error fired.
func (p *Pipeline) compose(ep *ResolvedEndpoint, effective config.ErrorProfile) (Reply, bool) {
	reply := Reply{
		Status:  ep.Response.Status,
		Headers: ep.Response.Headers,
		Body:    []byte(ep.Response.Body),
	}

	if effective.Rate <= 0 || p.rng.Float64() >= effective.Rate {
		return reply, false
	}

	if effective.ErrorInPayload {
		// Status stays; the error hides in the payload.
		if effective.Body != "" {
			reply.Body = []byte(effective.Body)
		}
		return reply, true
	}

	reply.Status = 500
	if len(effective.Codes) > 0 {
		reply.Status = effective.Codes[p.rng.IntN(len(effective.Codes))]
	}
	reply.Body = []byte(effective.Body)
	return reply, true
}

// corrupt applies payload corruption to the chosen body.
func (p *Pipeline) corrupt(body []byte, pc *config.PayloadCorruption) []byte {
	if pc == nil || pc.Rate <= 0 || p.rng.Float64() >= pc.Rate {
		return body
	}

	switch pc.Mode {
	case config.CorruptTruncate:
		ratio := 0.5
		if pc.TruncateRatio != nil {
			ratio = *pc.TruncateRatio
		}
		if ratio < 0 {
			ratio = 0
		} else if ratio > 1 {
			ratio = 1
		}
		return body[:int(float64(len(body))*ratio)]
	case config.CorruptReplace:
		if pc.Replacement != nil {
			return []byte(*pc.Replacement)
		}
		return []byte{}
	}
	return body
}

// sleep waits for d or until the request is cancelled, whichever is first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
