package planner

import (
	"github.com/ironsheep/image-release-tools/internal/apperr"
)

// Strategy selects how candidates are sampled down to the quota.
type Strategy string

const (
	StrategyIntelligent Strategy = "intelligent"
	StrategyRandom      Strategy = "random"
	StrategyUniform     Strategy = "uniform"
)

// Policy bounds how many configs each source image receives.
type Policy struct {
	ImagesPerOriginal int      `json:"images_per_original" yaml:"images_per_original"`
	Strategy          Strategy `json:"strategy" yaml:"strategy"`
	FixedCount        int      `json:"fixed_count" yaml:"fixed_count"`
	Seed              int64    `json:"seed" yaml:"seed"`
	// VaryPerImage mixes the image id into the seed so that images sample
	// different configs.
	VaryPerImage bool `json:"vary_per_image" yaml:"vary_per_image"`
}

// Validate rejects policies that cannot be honored. Nothing is clamped.
func (p Policy) Validate() error {
	if p.ImagesPerOriginal < 1 {
		return apperr.Configuration("planner.Policy", "images_per_original must be >= 1, got %d", p.ImagesPerOriginal)
	}
	if p.FixedCount < 0 {
		return apperr.Configuration("planner.Policy", "fixed_count must be >= 0, got %d", p.FixedCount)
	}
	if p.FixedCount > p.ImagesPerOriginal {
		return apperr.Configuration("planner.Policy",
			"fixed_count %d exceeds images_per_original %d", p.FixedCount, p.ImagesPerOriginal)
	}
	switch p.strategy() {
	case StrategyIntelligent, StrategyRandom, StrategyUniform:
	default:
		return apperr.Configuration("planner.Policy", "unknown sampling strategy %q", p.Strategy)
	}
	return nil
}

func (p Policy) strategy() Strategy {
	if p.Strategy == "" {
		return StrategyIntelligent
	}
	return p.Strategy
}
