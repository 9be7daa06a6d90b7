package distributions

import (
	"math"
	"time"

	"github.com/macnak/simulant/config"
)

// Sample draws one latency value from the configured distribution. The
// result is always non-negative and finite. A parameter record that does not
// match the declared distribution yields zero rather than a panic; the
// validator rejects such configs before they reach the engine.
func Sample(rng *Rand, lc config.LatencyConfig) time.Duration {
	return sample(rng, lc.Distribution, &lc.Params, true)
}

func sample(rng *Rand, kind config.DistributionType, p *config.DistributionParams, allowMixture bool) time.Duration {
	switch kind {
	case config.DistFixed:
		if p.DelayMs == nil {
			return 0
		}
		return millis(*p.DelayMs)

	case config.DistNormal:
		if p.MeanMs == nil || p.StddevMs == nil {
			return 0
		}
		return sampleNormal(rng, *p.MeanMs, *p.StddevMs)

	case config.DistExponential:
		if p.Rate == nil {
			return 0
		}
		return sampleExponential(rng, *p.Rate)

	case config.DistUniform:
		if p.MinMs == nil || p.MaxMs == nil {
			return 0
		}
		return millis(*p.MinMs + (*p.MaxMs-*p.MinMs)*rng.Float64())

	case config.DistLogNormal:
		if p.MeanMs == nil || p.StddevMs == nil {
			return 0
		}
		return sampleLogNormal(rng, *p.MeanMs, *p.StddevMs)

	case config.DistMixture:
		if !allowMixture {
			return 0
		}
		return sampleMixture(rng, p.Components)
	}
	return 0
}

// sampleNormal retries up to 10 times for a non-negative finite draw and
// falls back to zero when the distribution keeps landing negative.
func sampleNormal(rng *Rand, meanMs, stddevMs float64) time.Duration {
	for i := 0; i < 10; i++ {
		v := meanMs + stddevMs*rng.NormFloat64()
		if !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0 {
			return millis(v)
		}
	}
	return 0
}

// sampleExponential uses the inverse CDF of an exponential with the given
// rate. Non-finite results (rate too small, u too close to 1) clamp to zero.
func sampleExponential(rng *Rand, rate float64) time.Duration {
	u := rng.Float64()
	v := -math.Log(1-u) / rate
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return millis(v)
}

// sampleLogNormal reparameterizes the requested mean/stddev (both in ms, in
// linear space) to the underlying normal's mu/sigma:
//
//	sigma^2 = ln(1 + var/mean^2)
//	mu      = ln(mean^2 / sqrt(var + mean^2))
func sampleLogNormal(rng *Rand, meanMs, stddevMs float64) time.Duration {
	if meanMs <= 0 || stddevMs < 0 {
		return 0
	}
	if stddevMs == 0 {
		return millis(meanMs)
	}

	variance := stddevMs * stddevMs
	meanSq := meanMs * meanMs
	sigma := math.Sqrt(math.Log(1 + variance/meanSq))
	mu := math.Log(meanSq / math.Sqrt(variance+meanSq))

	v := math.Exp(mu + sigma*rng.NormFloat64())
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return millis(v)
}

// sampleMixture rolls uniformly into the total weight and samples the chosen
// component. Components with non-positive or non-finite weight are skipped;
// if nothing remains the sample is zero.
func sampleMixture(rng *Rand, components []config.MixtureComponent) time.Duration {
	var total float64
	for i := range components {
		w := components[i].Weight
		if w > 0 && !math.IsInf(w, 0) && !math.IsNaN(w) {
			total += w
		}
	}
	if total <= 0 {
		return 0
	}

	roll := rng.Float64() * total
	last := -1
	for i := range components {
		comp := &components[i]
		w := comp.Weight
		if w <= 0 || math.IsInf(w, 0) || math.IsNaN(w) {
			continue
		}
		last = i
		roll -= w
		if roll < 0 {
			return sample(rng, comp.Distribution, &comp.Params, false)
		}
	}
	// Floating-point drift past the final eligible component: use it.
	comp := &components[last]
	return sample(rng, comp.Distribution, &comp.Params, false)
}

func millis(ms float64) time.Duration {
	if ms <= 0 || math.IsNaN(ms) || math.IsInf(ms, 0) {
		return 0
	}
	return time.Duration(ms * float64(time.Millisecond))
}
