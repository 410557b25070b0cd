package sim

import (
	"fmt"

	"github.com/epiforge/stisim/pop"
)

// EffectKind names an externally injected intervention effect.
type EffectKind string

const (
	// EffectVaccinate boosts a vaccine immunity source with its configured
	// level distribution.
	EffectVaccinate EffectKind = "vaccinate"
	// EffectSetImmunity assigns an explicit immunity level to a source.
	EffectSetImmunity EffectKind = "set_immunity"
	// EffectClearInfection resolves an agent's infection with a genotype,
	// returning them to susceptibility, as treatment would.
	EffectClearInfection EffectKind = "clear_infection"
)

// Effect is one externally injected state change.
type Effect struct {
	Kind EffectKind
	// Key selects the immunity source (vaccinate, set_immunity) or the
	// genotype (clear_infection).
	Key   string
	Inds  []int
	Level float64 // set_immunity only
}

// InjectEffect applies an intervention effect outside the intervention plugin
// path, the entry point for external drivers of the simulation.
func (s *Sim) InjectEffect(e Effect) error {
	if !s.initialized {
		return fmt.Errorf("sim: inject effect: simulation is not initialized")
	}
	t := float64(s.step)
	switch e.Kind {
	case EffectVaccinate:
		si := s.sourceIndex(e.Key)
		if si < 0 {
			return fmt.Errorf("sim: inject effect: unknown immunity source %q", e.Key)
		}
		return s.imm.Vaccinate(s.people, s.sampler, e.Inds, si, t)
	case EffectSetImmunity:
		si := s.sourceIndex(e.Key)
		if si < 0 {
			return fmt.Errorf("sim: inject effect: unknown immunity source %q", e.Key)
		}
		return s.imm.SetLevel(s.people, e.Inds, si, e.Level, t)
	case EffectClearInfection:
		g := s.cfg.GenotypeIndex(e.Key)
		if g < 0 {
			return fmt.Errorf("sim: inject effect: unknown genotype %q", e.Key)
		}
		return s.clearInfection(e.Inds, g, t)
	default:
		return fmt.Errorf("sim: inject effect: unknown kind %q", e.Kind)
	}
}

func (s *Sim) sourceIndex(key string) int {
	for si, src := range s.imm.Sources() {
		if src.Key == key {
			return si
		}
	}
	return -1
}

// clearInfection force-resolves an infection: states and pending dates drop,
// susceptibility returns. Invasive disease is past treatment and is left
// untouched.
func (s *Sim) clearInfection(inds []int, g int, t float64) error {
	p := s.people
	for _, i := range inds {
		if err := p.CheckIndex("clear infection", i); err != nil {
			return err
		}
		if !p.Alive[i] || p.Invasive[g][i] {
			continue
		}
		if !p.Infectious[g][i] && !p.Latent[g][i] {
			continue
		}
		p.Infectious[g][i] = false
		p.Latent[g][i] = false
		p.Grade1[g][i] = false
		p.Grade2[g][i] = false
		p.Grade3[g][i] = false
		p.Susceptible[g][i] = true
		for _, field := range [][]float64{
			p.DateGrade1[g], p.DateGrade2[g], p.DateGrade3[g],
			p.DateInvasive[g], p.DateClearance[g], p.DateDeadDisease[g],
		} {
			if field[i] > t {
				field[i] = pop.NaN
			}
		}
	}
	return nil
}

// VaccinationCampaign vaccinates a share of an age band each step between two
// years. It implements Intervention.
type VaccinationCampaign struct {
	Source    string  // Vaccine source key
	Coverage  float64 // Per-step share of eligible agents
	AgeLo     float64
	AgeHi     float64
	StartYear float64
	EndYear   float64
}

// Key identifies the campaign in logs.
func (v *VaccinationCampaign) Key() string { return "vaccination:" + v.Source }

// Apply vaccinates eligible agents for the current step.
func (v *VaccinationCampaign) Apply(s *Sim, step int, year float64) error {
	if year < v.StartYear || year >= v.EndYear {
		return nil
	}
	p := s.People()
	var eligible []int
	for i := range p.Alive {
		if p.Alive[i] && p.Age[i] >= v.AgeLo && p.Age[i] < v.AgeHi {
			eligible = append(eligible, i)
		}
	}
	targets := s.Sampler().Filter(v.Coverage, eligible)
	if len(targets) == 0 {
		return nil
	}
	return s.InjectEffect(Effect{Kind: EffectVaccinate, Key: v.Source, Inds: targets})
}
