package disease

import (
	"fmt"

	"github.com/epiforge/stisim/dist"
)

// Genotype is the immutable per-genotype parameter bundle. Descriptors are
// built once from configuration and read-only during the run.
type Genotype struct {
	Key string // Genotype name, e.g. "hr16"

	// RelBeta scales the base per-act transmission probability.
	RelBeta float64

	// DurPrecin is the pre-clinical duration: infection to severity onset.
	DurPrecin dist.Dist

	// DurInfection is the post-onset duration to clearance, absent
	// progression to the invasive outcome.
	DurInfection dist.Dist

	// Severity governs severity growth after onset.
	Severity SeverityFn

	// DurInvasive is the duration from the invasive transition to death.
	DurInvasive dist.Dist

	// SeroProb is the probability that clearance seroconverts, producing a
	// natural immunity boost.
	SeroProb float64
}

// Validate checks the descriptor's tags and parameter ranges.
func (g Genotype) Validate() error {
	if g.Key == "" {
		return fmt.Errorf("disease: genotype requires a key")
	}
	if g.RelBeta < 0 {
		return fmt.Errorf("disease: genotype %q: negative relative transmissibility", g.Key)
	}
	if g.SeroProb < 0 || g.SeroProb > 1 {
		return fmt.Errorf("disease: genotype %q: seroconversion probability %v outside [0,1]", g.Key, g.SeroProb)
	}
	for _, d := range []dist.Dist{g.DurPrecin, g.DurInfection, g.DurInvasive} {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("disease: genotype %q: %w", g.Key, err)
		}
	}
	if err := g.Severity.Validate(); err != nil {
		return fmt.Errorf("disease: genotype %q: %w", g.Key, err)
	}
	return nil
}
