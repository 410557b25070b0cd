package immunity

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/epiforge/stisim/dist"
	"github.com/epiforge/stisim/pop"
)

// DecayForm identifies the supported decay kinetics.
type DecayForm string

const (
	// DecayExp halves the level every HalfLife years.
	DecayExp DecayForm = "exp_decay"
	// DecayNone keeps the level permanent.
	DecayNone DecayForm = "none"
)

// ErrUnknownDecayForm is returned when a decay tag is not recognized. This is
// checked at configuration time, never mid-simulation.
type ErrUnknownDecayForm struct {
	Form string
}

func (e *ErrUnknownDecayForm) Error() string {
	return fmt.Sprintf("immunity: unknown decay form %q", e.Form)
}

// Decay describes the kinetics applied to a source's immunity level.
type Decay struct {
	Form     DecayForm `yaml:"form"`
	HalfLife float64   `yaml:"half_life"` // Years; required for exp_decay
}

// Validate rejects unknown forms and non-positive half-lives.
func (d Decay) Validate() error {
	switch d.Form {
	case DecayExp:
		if d.HalfLife <= 0 {
			return fmt.Errorf("immunity: exp_decay requires a positive half-life, got %v", d.HalfLife)
		}
	case DecayNone:
	default:
		return &ErrUnknownDecayForm{Form: string(d.Form)}
	}
	return nil
}

// Factor returns the multiplicative decay after elapsed years.
func (d Decay) Factor(elapsed float64) float64 {
	if elapsed <= 0 {
		return 1
	}
	switch d.Form {
	case DecayExp:
		return math.Exp(-math.Ln2 * elapsed / d.HalfLife)
	default:
		return 1
	}
}

// SourceKind distinguishes natural from vaccine-derived immunity.
type SourceKind string

const (
	// SourceNatural is immunity from clearing an infection, keyed by genotype.
	SourceNatural SourceKind = "natural"
	// SourceVaccine is immunity from a vaccine product.
	SourceVaccine SourceKind = "vaccine"
)

// Source describes one immunity source.
type Source struct {
	Key      string     // Genotype key or vaccine product name
	Kind     SourceKind //
	Genotype int        // Genotype index for natural sources; -1 for vaccines
	InitDist dist.Dist  // Distribution of the initial level on acquisition
	Decay    Decay      //
}

// Model owns the immunity sources and the cross-immunity matrix. Rows of the
// matrix are sources, columns are genotypes; the natural own-genotype entries
// are expected to be 1.0.
type Model struct {
	sources    []Source
	cross      *mat.Dense
	natural    map[int]int // genotype -> source index
	nGenotypes int
}

// NewModel validates the sources against the genotype count and builds the
// model. The cross matrix must be len(sources) x nGenotypes.
func NewModel(sources []Source, cross *mat.Dense, nGenotypes int) (*Model, error) {
	r, c := cross.Dims()
	if r != len(sources) || c != nGenotypes {
		return nil, fmt.Errorf("immunity: cross matrix is %dx%d, want %dx%d", r, c, len(sources), nGenotypes)
	}
	natural := make(map[int]int)
	for si, src := range sources {
		if err := src.Decay.Validate(); err != nil {
			return nil, err
		}
		if err := src.InitDist.Validate(); err != nil {
			return nil, fmt.Errorf("immunity: source %q: %w", src.Key, err)
		}
		switch src.Kind {
		case SourceNatural:
			if src.Genotype < 0 || src.Genotype >= nGenotypes {
				return nil, fmt.Errorf("immunity: natural source %q references genotype %d of %d", src.Key, src.Genotype, nGenotypes)
			}
			if _, dup := natural[src.Genotype]; dup {
				return nil, fmt.Errorf("immunity: duplicate natural source for genotype %d", src.Genotype)
			}
			natural[src.Genotype] = si
		case SourceVaccine:
		default:
			return nil, fmt.Errorf("immunity: unknown source kind %q", src.Kind)
		}
	}
	return &Model{sources: sources, cross: cross, natural: natural, nGenotypes: nGenotypes}, nil
}

// NSources returns the number of immunity sources.
func (m *Model) NSources() int { return len(m.sources) }

// Sources returns the configured sources.
func (m *Model) Sources() []Source { return m.sources }

// NaturalSource returns the source index for natural immunity to genotype g,
// or -1 if none is configured.
func (m *Model) NaturalSource(g int) int {
	if si, ok := m.natural[g]; ok {
		return si
	}
	return -1
}

// BoostNatural draws and applies a peak immunity level for agents who just
// cleared genotype g. A no-op if no natural source covers g.
func (m *Model) BoostNatural(p *pop.People, s *dist.Sampler, inds []int, g int, t float64) error {
	si := m.NaturalSource(g)
	if si < 0 {
		return nil
	}
	return m.boost(p, s, inds, si, t)
}

// Vaccinate draws and applies a peak immunity level for the given vaccine
// source, used by intervention injections.
func (m *Model) Vaccinate(p *pop.People, s *dist.Sampler, inds []int, source int, t float64) error {
	if source < 0 || source >= len(m.sources) {
		return fmt.Errorf("immunity: vaccinate: source %d out of range", source)
	}
	if m.sources[source].Kind != SourceVaccine {
		return fmt.Errorf("immunity: vaccinate: source %q is not a vaccine", m.sources[source].Key)
	}
	return m.boost(p, s, inds, source, t)
}

func (m *Model) boost(p *pop.People, s *dist.Sampler, inds []int, si int, t float64) error {
	d := m.sources[si].InitDist
	for _, i := range inds {
		if err := p.CheckIndex("immunity boost", i); err != nil {
			return err
		}
		level, err := s.Draw(d)
		if err != nil {
			return err
		}
		if level < 0 {
			level = 0
		}
		// Boosting never lowers an existing level.
		if level > p.Imm[si][i] {
			p.PeakImm[si][i] = level
			p.Imm[si][i] = level
			p.DateImm[si][i] = t
		}
	}
	return nil
}

// SetLevel directly assigns an immunity level, the entry point for external
// intervention effects.
func (m *Model) SetLevel(p *pop.People, inds []int, source int, level, t float64) error {
	if source < 0 || source >= len(m.sources) {
		return fmt.Errorf("immunity: set level: source %d out of range", source)
	}
	for _, i := range inds {
		if err := p.CheckIndex("immunity set", i); err != nil {
			return err
		}
		p.PeakImm[source][i] = level
		p.Imm[source][i] = level
		p.DateImm[source][i] = t
	}
	return nil
}

// Update applies decay kinetics to every agent's levels. t is the current
// timestep and dt the step size in years.
func (m *Model) Update(p *pop.People, t, dt float64) {
	for si, src := range m.sources {
		if src.Decay.Form == DecayNone {
			continue
		}
		imm := p.Imm[si]
		peak := p.PeakImm[si]
		date := p.DateImm[si]
		for i := range imm {
			if math.IsNaN(date[i]) || peak[i] == 0 {
				continue
			}
			elapsed := (t - date[i]) * dt
			imm[i] = peak[i] * src.Decay.Factor(elapsed)
		}
	}
}

// Protection returns the agent's effective immunity against genotype g,
// combining every source through the cross-immunity matrix and the agent's
// co-infection-adjusted immunity attenuation, clamped to [0, 1].
func (m *Model) Protection(p *pop.People, i, g int) float64 {
	total := 0.0
	for si := range m.sources {
		lvl := p.Imm[si][i]
		if lvl <= 0 {
			continue
		}
		total += m.cross.At(si, g) * lvl
	}
	total *= p.RelImm[i]
	if total > 1 {
		return 1
	}
	if total < 0 {
		return 0
	}
	return total
}

// RelSusceptibility returns the multiplicative susceptibility modifier for
// genotype g: 1 for a naive agent, approaching 0 with full protection.
func (m *Model) RelSusceptibility(p *pop.People, i, g int) float64 {
	return 1 - m.Protection(p, i, g)
}

// RelSevGrowth returns the multiplicative severity-growth modifier for
// genotype g; immune pressure slows severity accumulation.
func (m *Model) RelSevGrowth(p *pop.People, i, g int) float64 {
	return 1 - m.Protection(p, i, g)
}
