package transmission

import (
	"fmt"
	"math"
	"sort"

	"github.com/epiforge/stisim/disease"
	"github.com/epiforge/stisim/dist"
	"github.com/epiforge/stisim/immunity"
	"github.com/epiforge/stisim/network"
	"github.com/epiforge/stisim/pop"
)

// Engine applies one step of transmission over the network.
type Engine struct {
	// Beta is the base per-act transmission probability.
	Beta float64
	// EffCondoms is the per-act efficacy of condom protection.
	EffCondoms float64

	disease *disease.Model
	imm     *immunity.Model
}

// NewEngine validates the transmission parameters and binds the disease and
// immunity models used to apply infections.
func NewEngine(beta, effCondoms float64, d *disease.Model, imm *immunity.Model) (*Engine, error) {
	if beta < 0 || beta > 1 {
		return nil, fmt.Errorf("transmission: beta %v outside [0,1]", beta)
	}
	if effCondoms < 0 || effCondoms > 1 {
		return nil, fmt.Errorf("transmission: condom efficacy %v outside [0,1]", effCondoms)
	}
	if d == nil || imm == nil {
		return nil, fmt.Errorf("transmission: disease and immunity models are required")
	}
	return &Engine{Beta: beta, EffCondoms: effCondoms, disease: d, imm: imm}, nil
}

// pInfect is the probability that at least one of the step's acts transmits.
// Acts per step are split into whole acts, each an independent trial, and a
// remaining fraction applied as one act at proportionally reduced
// probability.
func pInfect(pAct, actsPerStep float64) float64 {
	if pAct <= 0 || actsPerStep <= 0 {
		return 0
	}
	if pAct > 1 {
		pAct = 1
	}
	whole, frac := math.Modf(actsPerStep)
	pEscape := math.Pow(1-pAct, whole) * (1 - pAct*frac)
	return 1 - pEscape
}

// Step runs transmission for one timestep over every layer and genotype and
// returns the per-genotype infection flows. The infectious and susceptible
// pools are snapshotted before any infection is applied, and each target is
// infected at most once per genotype per step even when reached through
// several edges.
func (e *Engine) Step(p *pop.People, s *dist.Sampler, net *network.Network, t, dt float64) ([]disease.InfectFlow, error) {
	nG := p.NGenotypes()

	// Pre-step snapshots: within-step acquisitions do not transmit.
	infectious := make([][]bool, nG)
	susceptible := make([][]bool, nG)
	for g := 0; g < nG; g++ {
		infectious[g] = make([]bool, p.Len())
		copy(infectious[g], p.Infectious[g])
		susceptible[g] = make([]bool, p.Len())
		copy(susceptible[g], p.Susceptible[g])
	}

	targets := make([]map[int]bool, nG)
	for g := range targets {
		targets[g] = make(map[int]bool)
	}

	params := net.Params()
	for li, layer := range net.Layers() {
		condomFactor := 1 - params[li].Condoms*e.EffCondoms
		for _, edge := range layer.Edges {
			if !p.Alive[edge.F] || !p.Alive[edge.M] {
				continue
			}
			actsPerStep := edge.Acts * dt
			if actsPerStep <= 0 {
				continue
			}
			for g := 0; g < nG; g++ {
				relBeta := e.Beta * e.disease.Genotypes[g].RelBeta * condomFactor
				e.tryEdge(p, s, targets[g], infectious[g], susceptible[g], g, edge.F, edge.M, relBeta, actsPerStep)
				e.tryEdge(p, s, targets[g], infectious[g], susceptible[g], g, edge.M, edge.F, relBeta, actsPerStep)
			}
		}
	}

	flows := make([]disease.InfectFlow, nG)
	for g := 0; g < nG; g++ {
		if len(targets[g]) == 0 {
			continue
		}
		inds := make([]int, 0, len(targets[g]))
		for i := range targets[g] {
			inds = append(inds, i)
		}
		// Map order is randomized; sampler draws must not depend on it.
		sort.Ints(inds)
		flow, err := e.disease.Infect(p, s, inds, g, t, dt, disease.ReasonTransmission)
		if err != nil {
			return flows, err
		}
		flows[g] = flow
	}
	return flows, nil
}

// tryEdge evaluates one direction of one edge for one genotype and records
// the target on success.
func (e *Engine) tryEdge(p *pop.People, s *dist.Sampler, targets map[int]bool, infectious, susceptible []bool, g, src, tgt int, relBeta, actsPerStep float64) {
	if !infectious[src] || !susceptible[tgt] || targets[tgt] {
		return
	}
	pAct := relBeta * p.RelTrans[src] * p.RelSus[tgt] * e.imm.RelSusceptibility(p, tgt, g)
	if s.Bernoulli(pInfect(pAct, actsPerStep)) {
		targets[tgt] = true
	}
}
