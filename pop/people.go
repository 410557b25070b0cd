package pop

import (
	"fmt"
	"math"
)

// Sex is the agent's sex.
type Sex uint8

const (
	// Female agents can progress through the severity-grade pathway.
	Female Sex = iota
	// Male agents clear infection on a duration-only clock.
	Male
)

// Cause identifies why an agent was removed from the population.
type Cause string

const (
	// CauseBackground is death from background (all-other-cause) mortality.
	CauseBackground Cause = "background"
	// CauseDisease is death from the invasive outcome of the primary pathogen.
	CauseDisease Cause = "disease"
	// CauseCoinfection is death from the secondary pathogen.
	CauseCoinfection Cause = "coinfection"
	// CauseEmigration is removal by emigration.
	CauseEmigration Cause = "emigration"
)

// OutOfRangeError reports an agent index outside the store's capacity, or an
// invalid growth request.
type OutOfRangeError struct {
	Op    string // Operation that failed
	Index int    // Offending index (or size for Grow)
	Size  int    // Current capacity
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("pop: %s: index %d out of range for population of %d", e.Op, e.Index, e.Size)
}

// NaN is the canonical not-scheduled / not-applicable marker for date fields.
var NaN = math.NaN()

// People is the population state store. All slices are indexed by agent slot;
// two-dimensional state is stored as [genotype][agent], [layer][agent] or
// [immunity source][agent].
type People struct {
	nGenotypes  int
	nLayers     int
	nImmSources int

	// Identity and demography
	UID        []int64
	Sex        []Sex
	Age        []float64 // Years, incremented by dt each step
	Debut      []float64 // Age of sexual debut
	Alive      []bool
	DeathCause []Cause
	DateDead   []float64 // Timestep of removal (NaN while alive)

	// Partnership bookkeeping, per layer
	Partners        [][]float64 // Desired concurrent partners
	CurrentPartners [][]int     // Active edges touching the agent
	NRelationships  [][]int     // Lifetime formed partnerships

	// Primary pathogen state vectors, per genotype
	Susceptible [][]bool
	Infectious  [][]bool
	Grade1      [][]bool
	Grade2      [][]bool
	Grade3      [][]bool
	Invasive    [][]bool
	Latent      [][]bool

	// Primary pathogen dates (timestep floats, NaN = unscheduled), per genotype
	DateExposed     [][]float64
	DateInfectious  [][]float64
	DateGrade1      [][]float64
	DateGrade2      [][]float64
	DateGrade3      [][]float64
	DateInvasive    [][]float64
	DateClearance   [][]float64
	DateDeadDisease [][]float64

	// Accumulated infection durations and per-infection severity parameters
	DurPrecin  [][]float64 // Duration before severity onset
	DurDisease [][]float64 // Total infected duration
	SevRate    [][]float64 // Severity growth rate in effect for this infection

	// Immunity levels, per immunity source
	Imm     [][]float64 // Current level
	PeakImm [][]float64 // Level at acquisition
	DateImm [][]float64 // Timestep the source was (re)acquired

	// Individual transmission modifiers
	RelTrans []float64 // Relative transmissibility (drawn at creation)
	RelSus   []float64 // Relative susceptibility (co-infection adjusted)
	RelSev   []float64 // Severity growth multiplier (co-infection adjusted)
	RelImm   []float64 // Immunity attenuation (co-infection adjusted)

	// Secondary pathogen
	Coinfected          []bool
	InCare              []bool
	CareFailed          []bool
	CD4                 []float64 // Continuous immune-status marker
	DateCoinfected      []float64
	DateCare            []float64
	DateDeadCoinfection []float64
	DurCoinfection      []float64 // Sampled time to death when untreated

	nextUID int64
}

// NewPeople allocates a store with n agent slots for the given shape. Agents
// start alive, fully susceptible, with unit relative modifiers; all dates are
// NaN. Ages, sexes, debuts and partner preferences are assigned by the caller.
func NewPeople(n, nGenotypes, nLayers, nImmSources int) (*People, error) {
	if n < 0 {
		return nil, &OutOfRangeError{Op: "new", Index: n, Size: 0}
	}
	if nGenotypes < 1 || nLayers < 1 {
		return nil, fmt.Errorf("pop: need at least one genotype and one layer, got %d and %d", nGenotypes, nLayers)
	}
	p := &People{nGenotypes: nGenotypes, nLayers: nLayers, nImmSources: nImmSources}
	p.grow(n)
	return p, nil
}

// NGenotypes returns the number of genotypes tracked per agent.
func (p *People) NGenotypes() int { return p.nGenotypes }

// NLayers returns the number of partnership layers tracked per agent.
func (p *People) NLayers() int { return p.nLayers }

// NImmSources returns the number of immunity sources tracked per agent.
func (p *People) NImmSources() int { return p.nImmSources }

// Len returns the number of agent slots, dead or alive.
func (p *People) Len() int { return len(p.Age) }

func appendFill[T any](s []T, n int, v T) []T {
	for i := 0; i < n; i++ {
		s = append(s, v)
	}
	return s
}

func (p *People) grow(n int) []int {
	start := p.Len()
	inds := make([]int, n)
	for i := range inds {
		inds[i] = start + i
		p.UID = append(p.UID, p.nextUID)
		p.nextUID++
	}

	p.Sex = appendFill(p.Sex, n, Female)
	p.Age = appendFill(p.Age, n, 0.0)
	p.Debut = appendFill(p.Debut, n, 0.0)
	p.Alive = appendFill(p.Alive, n, true)
	p.DeathCause = appendFill(p.DeathCause, n, Cause(""))
	p.DateDead = appendFill(p.DateDead, n, NaN)

	growLayer := func(s [][]float64) [][]float64 {
		for len(s) < p.nLayers {
			s = append(s, nil)
		}
		for l := range s {
			s[l] = appendFill(s[l], n, 0.0)
		}
		return s
	}
	growLayerInt := func(s [][]int) [][]int {
		for len(s) < p.nLayers {
			s = append(s, nil)
		}
		for l := range s {
			s[l] = appendFill(s[l], n, 0)
		}
		return s
	}
	growGeno := func(s [][]bool, v bool) [][]bool {
		for len(s) < p.nGenotypes {
			s = append(s, nil)
		}
		for g := range s {
			s[g] = appendFill(s[g], n, v)
		}
		return s
	}
	growGenoF := func(s [][]float64, v float64) [][]float64 {
		for len(s) < p.nGenotypes {
			s = append(s, nil)
		}
		for g := range s {
			s[g] = appendFill(s[g], n, v)
		}
		return s
	}
	growSrcF := func(s [][]float64, v float64) [][]float64 {
		for len(s) < p.nImmSources {
			s = append(s, nil)
		}
		for k := range s {
			s[k] = appendFill(s[k], n, v)
		}
		return s
	}

	p.Partners = growLayer(p.Partners)
	p.CurrentPartners = growLayerInt(p.CurrentPartners)
	p.NRelationships = growLayerInt(p.NRelationships)

	p.Susceptible = growGeno(p.Susceptible, true)
	p.Infectious = growGeno(p.Infectious, false)
	p.Grade1 = growGeno(p.Grade1, false)
	p.Grade2 = growGeno(p.Grade2, false)
	p.Grade3 = growGeno(p.Grade3, false)
	p.Invasive = growGeno(p.Invasive, false)
	p.Latent = growGeno(p.Latent, false)

	p.DateExposed = growGenoF(p.DateExposed, NaN)
	p.DateInfectious = growGenoF(p.DateInfectious, NaN)
	p.DateGrade1 = growGenoF(p.DateGrade1, NaN)
	p.DateGrade2 = growGenoF(p.DateGrade2, NaN)
	p.DateGrade3 = growGenoF(p.DateGrade3, NaN)
	p.DateInvasive = growGenoF(p.DateInvasive, NaN)
	p.DateClearance = growGenoF(p.DateClearance, NaN)
	p.DateDeadDisease = growGenoF(p.DateDeadDisease, NaN)
	p.DurPrecin = growGenoF(p.DurPrecin, NaN)
	p.DurDisease = growGenoF(p.DurDisease, NaN)
	p.SevRate = growGenoF(p.SevRate, NaN)

	p.Imm = growSrcF(p.Imm, 0)
	p.PeakImm = growSrcF(p.PeakImm, 0)
	p.DateImm = growSrcF(p.DateImm, NaN)

	p.RelTrans = appendFill(p.RelTrans, n, 1.0)
	p.RelSus = appendFill(p.RelSus, n, 1.0)
	p.RelSev = appendFill(p.RelSev, n, 1.0)
	p.RelImm = appendFill(p.RelImm, n, 1.0)

	p.Coinfected = appendFill(p.Coinfected, n, false)
	p.InCare = appendFill(p.InCare, n, false)
	p.CareFailed = appendFill(p.CareFailed, n, false)
	p.CD4 = appendFill(p.CD4, n, NaN)
	p.DateCoinfected = appendFill(p.DateCoinfected, n, NaN)
	p.DateCare = appendFill(p.DateCare, n, NaN)
	p.DateDeadCoinfection = appendFill(p.DateDeadCoinfection, n, NaN)
	p.DurCoinfection = appendFill(p.DurCoinfection, n, NaN)

	return inds
}

// Grow appends n new agent slots and returns their indices.
func (p *People) Grow(n int) ([]int, error) {
	if n < 0 {
		return nil, &OutOfRangeError{Op: "grow", Index: n, Size: p.Len()}
	}
	return p.grow(n), nil
}

// CheckIndex validates that i addresses an existing slot.
func (p *People) CheckIndex(op string, i int) error {
	if i < 0 || i >= p.Len() {
		return &OutOfRangeError{Op: op, Index: i, Size: p.Len()}
	}
	return nil
}

// genotypeDates lists every per-genotype date column, used for future-date
// wiping on removal.
func (p *People) genotypeDates() [][][]float64 {
	return [][][]float64{
		p.DateExposed, p.DateInfectious, p.DateGrade1, p.DateGrade2,
		p.DateGrade3, p.DateInvasive, p.DateClearance, p.DateDeadDisease,
	}
}

// Remove marks agents as not alive, records the cause and removal time, and
// nulls every scheduled date strictly after t. Dates at or before t are
// preserved so result accounting can still read them. Partnership cleanup is
// the orchestrator's responsibility, via the network's dissolution pass.
func (p *People) Remove(inds []int, cause Cause, t float64) error {
	switch cause {
	case CauseBackground, CauseDisease, CauseCoinfection, CauseEmigration:
	default:
		return fmt.Errorf("pop: remove: unknown cause %q", cause)
	}
	for _, i := range inds {
		if err := p.CheckIndex("remove", i); err != nil {
			return err
		}
	}
	for _, i := range inds {
		if !p.Alive[i] {
			continue
		}
		p.Alive[i] = false
		p.DeathCause[i] = cause
		p.DateDead[i] = t

		for g := 0; g < p.nGenotypes; g++ {
			p.Susceptible[g][i] = false
			p.Infectious[g][i] = false
			p.Grade1[g][i] = false
			p.Grade2[g][i] = false
			p.Grade3[g][i] = false
			p.Latent[g][i] = false
			// Invasive state is kept: it is terminal and already-recorded.
		}

		for _, field := range p.genotypeDates() {
			for g := range field {
				if field[g][i] > t { // NaN comparisons are false, so unscheduled dates are untouched
					field[g][i] = NaN
				}
			}
		}
		if p.DateDeadCoinfection[i] > t {
			p.DateDeadCoinfection[i] = NaN
		}
	}
	return nil
}

// CountAlive returns the number of living agents.
func (p *People) CountAlive() int {
	n := 0
	for _, a := range p.Alive {
		if a {
			n++
		}
	}
	return n
}

// Count returns the number of living agents satisfying pred.
func (p *People) Count(pred func(i int) bool) int {
	n := 0
	for i, a := range p.Alive {
		if a && pred(i) {
			n++
		}
	}
	return n
}

// AliveInds returns the indices of all living agents.
func (p *People) AliveInds() []int {
	out := make([]int, 0, p.Len())
	for i, a := range p.Alive {
		if a {
			out = append(out, i)
		}
	}
	return out
}

// IsActive reports whether the agent is alive and past sexual debut.
func (p *People) IsActive(i int) bool {
	return p.Alive[i] && p.Age[i] >= p.Debut[i]
}

// InfectiousAny reports whether the agent is infectious with any genotype.
func (p *People) InfectiousAny(i int) bool {
	for g := 0; g < p.nGenotypes; g++ {
		if p.Infectious[g][i] {
			return true
		}
	}
	return false
}
