package disease

import (
	"fmt"
	"math"

	"github.com/epiforge/stisim/dist"
	"github.com/epiforge/stisim/immunity"
	"github.com/epiforge/stisim/pop"
)

// Reason distinguishes how an infection event arose, for flow accounting.
type Reason string

const (
	// ReasonTransmission is acquisition through a partnership contact.
	ReasonTransmission Reason = "transmission"
	// ReasonSeed is an infection planted at initialization.
	ReasonSeed Reason = "seed"
	// ReasonReactivation is a latent infection returning to the
	// infectious state.
	ReasonReactivation Reason = "reactivation"
)

// InfectFlow summarizes one Infect call.
type InfectFlow struct {
	Infections    int // New infectious agents, reinfections included
	InfectionsF   int // Female share of Infections
	InfectionsM   int // Male share of Infections
	Reinfections  int // Agents with a prior recorded exposure to this genotype
	Reactivations int // Latent infections returned to infectious
}

// Model holds the natural-history parameters for every genotype and applies
// infection and date-gated state transitions to a population.
type Model struct {
	Genotypes []Genotype

	// LatentProb is the probability that a scheduled clearance becomes
	// latency instead of a return to susceptibility.
	LatentProb float64

	// ReactivationProb is the annual probability that a latent infection
	// reactivates.
	ReactivationProb float64

	imm *immunity.Model
}

// NewModel validates the genotype descriptors and probabilities and binds the
// immunity model used for severity modifiers and clearance boosts.
func NewModel(genotypes []Genotype, latentProb, reactivationProb float64, imm *immunity.Model) (*Model, error) {
	if len(genotypes) == 0 {
		return nil, fmt.Errorf("disease: need at least one genotype")
	}
	seen := make(map[string]bool, len(genotypes))
	for _, g := range genotypes {
		if err := g.Validate(); err != nil {
			return nil, err
		}
		if seen[g.Key] {
			return nil, fmt.Errorf("disease: duplicate genotype key %q", g.Key)
		}
		seen[g.Key] = true
	}
	if latentProb < 0 || latentProb > 1 {
		return nil, fmt.Errorf("disease: latency probability %v outside [0,1]", latentProb)
	}
	if reactivationProb < 0 || reactivationProb > 1 {
		return nil, fmt.Errorf("disease: reactivation probability %v outside [0,1]", reactivationProb)
	}
	if imm == nil {
		return nil, fmt.Errorf("disease: immunity model is required")
	}
	return &Model{Genotypes: genotypes, LatentProb: latentProb, ReactivationProb: reactivationProb, imm: imm}, nil
}

// steps converts a duration in years to a whole number of timesteps, rounding
// up so no transition fires on the step it was scheduled.
func steps(years, dt float64) float64 {
	return math.Ceil(years / dt)
}

// Infect makes the given agents infectious with genotype g at timestep t and
// schedules their full prognosis up front. Dead agents and duplicates are
// skipped; non-susceptible agents are skipped unless the reason is
// reactivation, which draws targets from the latent pool instead.
func (m *Model) Infect(p *pop.People, s *dist.Sampler, inds []int, g int, t, dt float64, reason Reason) (InfectFlow, error) {
	var flow InfectFlow
	if g < 0 || g >= len(m.Genotypes) {
		return flow, fmt.Errorf("disease: infect: genotype index %d out of range for %d genotypes", g, len(m.Genotypes))
	}
	gt := m.Genotypes[g]

	seen := make(map[int]bool, len(inds))
	for _, i := range inds {
		if err := p.CheckIndex("infect", i); err != nil {
			return flow, err
		}
		if seen[i] || !p.Alive[i] {
			continue
		}
		seen[i] = true

		if reason == ReasonReactivation {
			if !p.Latent[g][i] {
				continue
			}
			flow.Reactivations++
		} else if !p.Susceptible[g][i] {
			continue
		}
		if !math.IsNaN(p.DateExposed[g][i]) {
			flow.Reinfections++
		}
		flow.Infections++
		if p.Sex[i] == pop.Female {
			flow.InfectionsF++
		} else {
			flow.InfectionsM++
		}

		p.Susceptible[g][i] = false
		p.Infectious[g][i] = true
		p.Latent[g][i] = false
		p.DateExposed[g][i] = t
		p.DateInfectious[g][i] = t
		p.DateClearance[g][i] = pop.NaN
		p.DurDisease[g][i] = 0

		durPrecin, err := s.Draw(gt.DurPrecin)
		if err != nil {
			return flow, err
		}
		if durPrecin < dt {
			durPrecin = dt
		}
		p.DurPrecin[g][i] = durPrecin

		if p.Sex[i] == pop.Male {
			// Males carry and transmit but never progress; they clear
			// on the pre-clinical clock alone.
			p.DateClearance[g][i] = t + steps(durPrecin, dt)
			p.SevRate[g][i] = pop.NaN
			continue
		}

		rateMod := p.RelSev[i] * m.imm.RelSevGrowth(p, i, g)
		p.SevRate[g][i] = gt.Severity.Rate * rateMod

		onset := t + steps(durPrecin, dt)
		p.DateGrade1[g][i] = onset
		schedule := func(cut float64, field []float64) {
			tt := gt.Severity.TimeTo(cut, rateMod)
			if math.IsInf(tt, 1) {
				field[i] = pop.NaN
				return
			}
			field[i] = onset + steps(tt, dt)
		}
		schedule(CutGrade2, p.DateGrade2[g])
		schedule(CutGrade3, p.DateGrade3[g])
		schedule(CutInvasive, p.DateInvasive[g])

		durInfection, err := s.Draw(gt.DurInfection)
		if err != nil {
			return flow, err
		}
		if durInfection < dt {
			durInfection = dt
		}
		p.DateClearance[g][i] = onset + steps(durInfection, dt)
	}
	return flow, nil
}

// due reports a scheduled date that has arrived. NaN dates never fire.
func due(date, t float64) bool {
	return date <= t
}

// CheckGrade1 promotes infectious female agents whose severity onset date has
// arrived to grade 1, and returns their indices.
func (m *Model) CheckGrade1(p *pop.People, g int, t float64) []int {
	var fired []int
	for i := range p.Alive {
		if !p.Alive[i] || !p.Infectious[g][i] || p.Grade1[g][i] {
			continue
		}
		if p.Grade2[g][i] || p.Grade3[g][i] || p.Invasive[g][i] {
			continue
		}
		if due(p.DateGrade1[g][i], t) {
			p.Grade1[g][i] = true
			fired = append(fired, i)
		}
	}
	return fired
}

// CheckGrade2 promotes grade-1 agents whose grade-2 date has arrived.
func (m *Model) CheckGrade2(p *pop.People, g int, t float64) []int {
	var fired []int
	for i := range p.Alive {
		if !p.Alive[i] || !p.Grade1[g][i] {
			continue
		}
		if due(p.DateGrade2[g][i], t) {
			p.Grade1[g][i] = false
			p.Grade2[g][i] = true
			fired = append(fired, i)
		}
	}
	return fired
}

// CheckGrade3 promotes grade-2 agents whose grade-3 date has arrived.
func (m *Model) CheckGrade3(p *pop.People, g int, t float64) []int {
	var fired []int
	for i := range p.Alive {
		if !p.Alive[i] || !p.Grade2[g][i] {
			continue
		}
		if due(p.DateGrade3[g][i], t) {
			p.Grade2[g][i] = false
			p.Grade3[g][i] = true
			fired = append(fired, i)
		}
	}
	return fired
}

// CheckInvasive fires the invasive transition for grade-3 agents whose date
// has arrived. The transition is terminal: the agent stops being infectious,
// loses susceptibility to every genotype, every other genotype's pending
// dates are wiped, and a disease death date is drawn.
func (m *Model) CheckInvasive(p *pop.People, s *dist.Sampler, g int, t, dt float64) ([]int, error) {
	gt := m.Genotypes[g]
	var fired []int
	for i := range p.Alive {
		if !p.Alive[i] || !p.Grade3[g][i] {
			continue
		}
		if !due(p.DateInvasive[g][i], t) {
			continue
		}
		p.Grade3[g][i] = false
		p.Infectious[g][i] = false
		p.Latent[g][i] = false
		p.Invasive[g][i] = true
		p.DateClearance[g][i] = pop.NaN

		for og := 0; og < p.NGenotypes(); og++ {
			p.Susceptible[og][i] = false
			if og == g {
				continue
			}
			p.Infectious[og][i] = false
			p.Grade1[og][i] = false
			p.Grade2[og][i] = false
			p.Grade3[og][i] = false
			p.Latent[og][i] = false
			for _, field := range [][]float64{
				p.DateExposed[og], p.DateInfectious[og], p.DateGrade1[og],
				p.DateGrade2[og], p.DateGrade3[og], p.DateInvasive[og],
				p.DateClearance[og], p.DateDeadDisease[og],
			} {
				if field[i] > t {
					field[i] = pop.NaN
				}
			}
		}

		dur, err := s.Draw(gt.DurInvasive)
		if err != nil {
			return fired, err
		}
		if dur < dt {
			dur = dt
		}
		p.DateDeadDisease[g][i] = t + steps(dur, dt)
		fired = append(fired, i)
	}
	return fired, nil
}

// CheckClearance resolves infections whose clearance date has arrived.
// Cleared agents return to susceptibility for the genotype and may
// seroconvert, boosting natural immunity; a fraction enter latency instead
// and retain no scheduled dates.
func (m *Model) CheckClearance(p *pop.People, s *dist.Sampler, g int, t float64) (cleared, latent []int, err error) {
	gt := m.Genotypes[g]
	for i := range p.Alive {
		if !p.Alive[i] || !p.Infectious[g][i] || p.Invasive[g][i] {
			continue
		}
		if !due(p.DateClearance[g][i], t) {
			continue
		}
		p.Infectious[g][i] = false
		p.Grade1[g][i] = false
		p.Grade2[g][i] = false
		p.Grade3[g][i] = false
		p.DateGrade1[g][i] = pop.NaN
		p.DateGrade2[g][i] = pop.NaN
		p.DateGrade3[g][i] = pop.NaN
		p.DateInvasive[g][i] = pop.NaN

		if s.Bernoulli(m.LatentProb) {
			p.Latent[g][i] = true
			p.DateClearance[g][i] = pop.NaN
			latent = append(latent, i)
			continue
		}
		p.Susceptible[g][i] = true
		cleared = append(cleared, i)
	}

	if len(cleared) > 0 && gt.SeroProb > 0 {
		sero := s.Filter(gt.SeroProb, cleared)
		if len(sero) > 0 {
			if err := m.imm.BoostNatural(p, s, sero, g, t); err != nil {
				return cleared, latent, err
			}
		}
	}
	return cleared, latent, nil
}

// CheckReactivation gives each latent infection a per-step chance of
// returning to the infectious state, with a freshly drawn prognosis.
func (m *Model) CheckReactivation(p *pop.People, s *dist.Sampler, g int, t, dt float64) (InfectFlow, error) {
	if m.ReactivationProb <= 0 {
		return InfectFlow{}, nil
	}
	pStep := m.ReactivationProb * dt
	var targets []int
	for i := range p.Alive {
		if p.Alive[i] && p.Latent[g][i] && s.Bernoulli(pStep) {
			targets = append(targets, i)
		}
	}
	if len(targets) == 0 {
		return InfectFlow{}, nil
	}
	return m.Infect(p, s, targets, g, t, dt, ReasonReactivation)
}

// CheckDiseaseDeaths removes agents whose disease death date has arrived, for
// any genotype, and returns the removed indices.
func (m *Model) CheckDiseaseDeaths(p *pop.People, t float64) ([]int, error) {
	var dead []int
	for i := range p.Alive {
		if !p.Alive[i] {
			continue
		}
		for g := 0; g < p.NGenotypes(); g++ {
			if due(p.DateDeadDisease[g][i], t) {
				dead = append(dead, i)
				break
			}
		}
	}
	if len(dead) == 0 {
		return nil, nil
	}
	if err := p.Remove(dead, pop.CauseDisease, t); err != nil {
		return nil, err
	}
	return dead, nil
}

// AccumulateDurations adds one step's worth of time to the running infected
// duration of every active infection.
func (m *Model) AccumulateDurations(p *pop.People, dt float64) {
	for g := 0; g < p.NGenotypes(); g++ {
		for i := range p.Alive {
			if p.Alive[i] && p.Infectious[g][i] {
				p.DurDisease[g][i] += dt
			}
		}
	}
}
