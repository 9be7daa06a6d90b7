package engine

import (
	"github.com/macnak/simulant/config"
)

// MergeProfiles combines a base error profile with an override under the
// given mix policy and ramp factor f.
//
// Weights:
//
//	override:  base 1-f, override f
//	additive:  base 1,   override f
//	blend:     base 1-f, override f
//
// The combined rate clamps to 1. Codes keep base order and append override
// codes not already present. Scalar fields come from the override when its
// weight is above 0.5 and from the base otherwise (under additive mix this
// holds even though the base weight is 1); payload corruption falls back to
// the other side when the chosen side has none.
func MergeProfiles(base, override config.ErrorProfile, mix config.ErrorMix, f float64) config.ErrorProfile {
	if f < 0 {
		f = 0
	} else if f > 1 {
		f = 1
	}

	baseWeight := 1 - f
	if mix == config.MixAdditive {
		baseWeight = 1
	}
	overrideWeight := f

	combined := config.ErrorProfile{
		Rate: min(1, base.Rate*baseWeight+override.Rate*overrideWeight),
	}

	combined.Codes = append(combined.Codes, base.Codes...)
	seen := make(map[int]bool, len(base.Codes))
	for _, code := range base.Codes {
		seen[code] = true
	}
	for _, code := range override.Codes {
		if !seen[code] {
			combined.Codes = append(combined.Codes, code)
			seen[code] = true
		}
	}

	if overrideWeight > 0.5 {
		combined.Body = override.Body
		combined.ErrorInPayload = override.ErrorInPayload
		combined.PayloadCorruption = override.PayloadCorruption
		if combined.PayloadCorruption == nil {
			combined.PayloadCorruption = base.PayloadCorruption
		}
	} else {
		combined.Body = base.Body
		combined.ErrorInPayload = base.ErrorInPayload
		combined.PayloadCorruption = base.PayloadCorruption
		if combined.PayloadCorruption == nil {
			combined.PayloadCorruption = override.PayloadCorruption
		}
	}

	return combined
}
