package coinfect

import (
	"fmt"
	"math"
	"sort"

	"github.com/epiforge/stisim/demog"
	"github.com/epiforge/stisim/dist"
	"github.com/epiforge/stisim/pop"
)

// Immune-status trajectory constants. The untreated marker follows
// (a - b*f)^2 over the fraction f of survival time elapsed; reconstitution
// under care adds g1*m - g2*m^2 over months m in care.
const (
	declineBase  = 24.363
	declineSlope = 16.672
	reconLinear  = 15.584
	reconQuad    = 0.2113
)

// HealthyCD4 is the marker level of an agent without the co-infection, and
// the cap for reconstitution under care.
const HealthyCD4 = declineBase * declineBase

// CareTable maps calendar years to care coverage, linearly interpolated and
// clamped outside the range.
type CareTable struct {
	Years    []float64 `yaml:"years"`
	Coverage []float64 `yaml:"coverage"`
}

// Validate checks shape and coverage bounds.
func (c *CareTable) Validate() error {
	if len(c.Years) == 0 || len(c.Years) != len(c.Coverage) {
		return fmt.Errorf("coinfect: care table needs matching years and coverage, got %d and %d", len(c.Years), len(c.Coverage))
	}
	if !sort.Float64sAreSorted(c.Years) {
		return fmt.Errorf("coinfect: care table years must be ascending")
	}
	for _, v := range c.Coverage {
		if v < 0 || v > 1 {
			return fmt.Errorf("coinfect: care coverage %v outside [0,1]", v)
		}
	}
	return nil
}

// At returns the coverage in effect at the given year.
func (c *CareTable) At(year float64) float64 {
	return demog.Interp(year, c.Years, c.Coverage)
}

// Band maps a marker floor to the primary-disease modifiers applied while the
// agent's marker sits at or above the floor (and below the next band's).
type Band struct {
	Min    float64 `yaml:"min"`
	RelSus float64 `yaml:"rel_sus"`
	RelSev float64 `yaml:"rel_sev"`
	RelImm float64 `yaml:"rel_imm"`
}

// Params configures the co-infection model.
type Params struct {
	// Incidence holds per-person-year acquisition rates by year, sex and age.
	Incidence *demog.RateTable `yaml:"incidence"`

	// Care is the year-indexed care coverage table.
	Care CareTable `yaml:"care"`

	// CareFailureProb is the probability that an episode of care fails,
	// leaving the agent on the untreated trajectory.
	CareFailureProb float64 `yaml:"care_failure_prob"`

	// DtCare is the cadence in years at which uncared agents re-roll
	// against care coverage.
	DtCare float64 `yaml:"dt_care"`

	// SurvivalScaleBase and SurvivalScaleSlope set the Weibull scale of
	// untreated survival as base - slope*age, floored at zero. Shape is
	// fixed at 2.
	SurvivalScaleBase  float64 `yaml:"survival_scale_base"`
	SurvivalScaleSlope float64 `yaml:"survival_scale_slope"`

	// Bands maps marker levels to primary-disease modifiers, ascending by Min.
	Bands []Band `yaml:"bands"`
}

// DefaultParams returns the standard parameterization. Band modifiers step up
// as the marker falls.
func DefaultParams() Params {
	return Params{
		CareFailureProb:    0.1,
		DtCare:             5.0,
		SurvivalScaleBase:  21.182,
		SurvivalScaleSlope: 0.2717,
		Bands: []Band{
			{Min: 0, RelSus: 2.2, RelSev: 1.5, RelImm: 0.36},
			{Min: 200, RelSus: 2.2, RelSev: 1.2, RelImm: 0.76},
			{Min: 500, RelSus: 2.2, RelSev: 1.0, RelImm: 1.0},
		},
	}
}

// Model applies the co-infection dynamics each step.
type Model struct {
	params Params
}

// NewModel validates params and returns a Model.
func NewModel(params Params) (*Model, error) {
	if params.Incidence == nil {
		return nil, fmt.Errorf("coinfect: incidence table is required")
	}
	if err := params.Incidence.Validate(); err != nil {
		return nil, err
	}
	if err := params.Care.Validate(); err != nil {
		return nil, err
	}
	if params.CareFailureProb < 0 || params.CareFailureProb > 1 {
		return nil, fmt.Errorf("coinfect: care failure probability %v outside [0,1]", params.CareFailureProb)
	}
	if params.DtCare <= 0 {
		return nil, fmt.Errorf("coinfect: care re-roll cadence must be positive, got %v", params.DtCare)
	}
	if len(params.Bands) == 0 {
		return nil, fmt.Errorf("coinfect: at least one marker band is required")
	}
	for b := 1; b < len(params.Bands); b++ {
		if params.Bands[b].Min <= params.Bands[b-1].Min {
			return nil, fmt.Errorf("coinfect: band floors must be strictly ascending")
		}
	}
	return &Model{params: params}, nil
}

// Flow summarizes one co-infection step.
type Flow struct {
	Acquisitions int
	CareStarts   int
	CareFailures int
	Deaths       int
}

// Step advances acquisition, care, the immune marker, the primary-disease
// modifiers and co-infection mortality by one timestep. year is the calendar
// year of the step.
func (m *Model) Step(p *pop.People, s *dist.Sampler, t, dt, year float64) (Flow, error) {
	var flow Flow

	if err := m.acquire(p, s, &flow, t, dt, year); err != nil {
		return flow, err
	}
	m.updateCare(p, s, &flow, t, dt, year)
	m.updateMarker(p, t, dt)
	m.applyModifiers(p)

	var dead []int
	for i := range p.Alive {
		if p.Alive[i] && p.DateDeadCoinfection[i] <= t {
			dead = append(dead, i)
		}
	}
	if len(dead) > 0 {
		if err := p.Remove(dead, pop.CauseCoinfection, t); err != nil {
			return flow, err
		}
		flow.Deaths = len(dead)
	}
	return flow, nil
}

func (m *Model) acquire(p *pop.People, s *dist.Sampler, flow *Flow, t, dt, year float64) error {
	for i := range p.Alive {
		if !p.Alive[i] || p.Coinfected[i] {
			continue
		}
		rate := m.params.Incidence.Rate(year, p.Sex[i] == pop.Female, p.Age[i])
		if rate <= 0 {
			continue
		}
		if !s.Bernoulli(1 - math.Exp(-rate*dt)) {
			continue
		}
		p.Coinfected[i] = true
		p.DateCoinfected[i] = t
		p.CD4[i] = HealthyCD4

		scale := m.params.SurvivalScaleBase - m.params.SurvivalScaleSlope*p.Age[i]
		if scale <= 0 {
			// Past the survival envelope: death within one step.
			p.DurCoinfection[i] = dt
			p.DateDeadCoinfection[i] = t + 1
			flow.Acquisitions++
			continue
		}
		dur, err := s.Draw(dist.Dist{Form: dist.FormWeibull, Par1: 2, Par2: scale})
		if err != nil {
			return err
		}
		if dur < dt {
			dur = dt
		}
		p.DurCoinfection[i] = dur
		p.DateDeadCoinfection[i] = t + math.Ceil(dur/dt)
		flow.Acquisitions++
	}
	return nil
}

// updateCare rolls uncared agents against coverage at acquisition and on the
// DtCare cadence. A successful start clears the scheduled co-infection death;
// a failed start leaves the agent on the untreated trajectory for good.
func (m *Model) updateCare(p *pop.People, s *dist.Sampler, flow *Flow, t, dt, year float64) {
	coverage := m.params.Care.At(year)
	for i := range p.Alive {
		if !p.Alive[i] || !p.Coinfected[i] || p.InCare[i] || p.CareFailed[i] {
			continue
		}
		elapsed := (t - p.DateCoinfected[i]) * dt
		if math.Mod(elapsed, m.params.DtCare) >= dt {
			continue
		}
		if !s.Bernoulli(coverage) {
			continue
		}
		if s.Bernoulli(m.params.CareFailureProb) {
			p.CareFailed[i] = true
			flow.CareFailures++
			continue
		}
		p.InCare[i] = true
		p.DateCare[i] = t
		p.DateDeadCoinfection[i] = pop.NaN
		flow.CareStarts++
	}
}

// updateMarker advances the immune marker: untreated agents decline along the
// survival fraction, agents in care reconstitute toward the healthy level.
func (m *Model) updateMarker(p *pop.People, t, dt float64) {
	for i := range p.Alive {
		if !p.Alive[i] || !p.Coinfected[i] {
			continue
		}
		if p.InCare[i] {
			months := (t - p.DateCare[i]) * dt * 12
			next := months + dt*12
			gain := recon(next) - recon(months)
			if gain < 0 {
				gain = 0
			}
			p.CD4[i] = math.Min(HealthyCD4, p.CD4[i]+gain)
			continue
		}
		f := (t - p.DateCoinfected[i]) * dt / p.DurCoinfection[i]
		if f > 1 {
			f = 1
		}
		base := declineBase - declineSlope*f
		p.CD4[i] = base * base
	}
}

// recon is the cumulative reconstitution after m months in care.
func recon(m float64) float64 {
	return reconLinear*m - reconQuad*m*m
}

// applyModifiers sets each agent's primary-disease modifiers from its marker
// band. Unaffected agents carry unit modifiers.
func (m *Model) applyModifiers(p *pop.People) {
	for i := range p.Alive {
		if !p.Alive[i] {
			continue
		}
		if !p.Coinfected[i] {
			p.RelSus[i] = 1
			p.RelSev[i] = 1
			p.RelImm[i] = 1
			continue
		}
		b := m.band(p.CD4[i])
		p.RelSus[i] = b.RelSus
		p.RelSev[i] = b.RelSev
		p.RelImm[i] = b.RelImm
	}
}

// band returns the highest band whose floor the marker reaches.
func (m *Model) band(cd4 float64) Band {
	out := m.params.Bands[0]
	for _, b := range m.params.Bands[1:] {
		if cd4 >= b.Min {
			out = b
		}
	}
	return out
}
