package pop

import (
	"fmt"
	"math"
)

// StateInvariantError reports an internal consistency violation. It always
// indicates a bug in the core and must never be caught and continued.
type StateInvariantError struct {
	Agent    int    // Offending agent index (-1 if not agent-specific)
	Genotype int    // Offending genotype (-1 if not genotype-specific)
	Message  string // What was violated
}

func (e *StateInvariantError) Error() string {
	return fmt.Sprintf("state invariant violated (agent=%d genotype=%d): %s", e.Agent, e.Genotype, e.Message)
}

// CheckStates verifies the per-agent state machine invariants at timestep t:
// at most one of the mutually exclusive disease states per genotype, at most
// one severity grade at a time, and invasive disease excluding susceptibility
// and future scheduled dates for every other genotype.
func (p *People) CheckStates(t float64) error {
	for i := 0; i < p.Len(); i++ {
		if !p.Alive[i] {
			continue
		}
		anyInvasive := false
		for g := 0; g < p.nGenotypes; g++ {
			if p.Invasive[g][i] {
				anyInvasive = true
			}
			exclusive := 0
			for _, b := range []bool{p.Susceptible[g][i], p.Infectious[g][i], p.Latent[g][i]} {
				if b {
					exclusive++
				}
			}
			if exclusive > 1 {
				return &StateInvariantError{Agent: i, Genotype: g, Message: "more than one of susceptible/infectious/latent set"}
			}
			grades := 0
			for _, b := range []bool{p.Grade1[g][i], p.Grade2[g][i], p.Grade3[g][i], p.Invasive[g][i]} {
				if b {
					grades++
				}
			}
			if grades > 1 {
				return &StateInvariantError{Agent: i, Genotype: g, Message: "agent holds multiple severity grades"}
			}
			if grades > 0 && p.Susceptible[g][i] {
				return &StateInvariantError{Agent: i, Genotype: g, Message: "graded agent still susceptible"}
			}
		}
		if anyInvasive {
			for g := 0; g < p.nGenotypes; g++ {
				if p.Susceptible[g][i] {
					return &StateInvariantError{Agent: i, Genotype: g, Message: "susceptible despite invasive disease"}
				}
				if p.Invasive[g][i] {
					continue
				}
				for _, field := range [][]float64{p.DateGrade1[g], p.DateGrade2[g], p.DateGrade3[g], p.DateInvasive[g]} {
					if field[i] > t { // NaN compares false
						return &StateInvariantError{Agent: i, Genotype: g, Message: "future scheduled date survives invasive transition"}
					}
				}
			}
		}
	}
	return nil
}

// DateInvasiveAny returns the earliest invasive date recorded for the agent
// across genotypes, or NaN if none.
func (p *People) DateInvasiveAny(i int) float64 {
	out := NaN
	for g := 0; g < p.nGenotypes; g++ {
		d := p.DateInvasive[g][i]
		if !math.IsNaN(d) && (math.IsNaN(out) || d < out) {
			out = d
		}
	}
	return out
}

// CheckPartnerCounts verifies that every agent's recorded partner count per
// layer is non-negative. The exact edge-count reconciliation against the
// network lives in the network package, which owns the edges.
func (p *People) CheckPartnerCounts() error {
	for l := 0; l < p.nLayers; l++ {
		for i, n := range p.CurrentPartners[l] {
			if n < 0 {
				return &StateInvariantError{Agent: i, Genotype: -1, Message: fmt.Sprintf("negative partner count %d in layer %d", n, l)}
			}
		}
	}
	return nil
}
