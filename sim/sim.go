package sim

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/epiforge/stisim/coinfect"
	"github.com/epiforge/stisim/config"
	"github.com/epiforge/stisim/disease"
	"github.com/epiforge/stisim/dist"
	"github.com/epiforge/stisim/immunity"
	"github.com/epiforge/stisim/logging"
	"github.com/epiforge/stisim/network"
	"github.com/epiforge/stisim/pop"
	"github.com/epiforge/stisim/transmission"
)

// AlreadyRunError is returned when a completed simulation is run again.
type AlreadyRunError struct {
	Step int // Step the run finished at
}

func (e *AlreadyRunError) Error() string {
	return fmt.Sprintf("sim: already run to completion at step %d; create a new Sim to run again", e.Step)
}

// Intervention is applied once per step, after network formation and before
// transmission, so its effects shape the current step's force of infection.
type Intervention interface {
	// Key identifies the intervention in logs.
	Key() string
	// Apply mutates the simulation state for this step.
	Apply(s *Sim, step int, year float64) error
}

// StoppingFunc halts a run early when it returns true for a step's snapshot.
type StoppingFunc func(snap Snapshot) bool

// Options configures optional simulation behavior.
type Options struct {
	// Logger receives structured run output; defaults to a no-op logger.
	Logger logging.Logger

	// Interventions run each step in order.
	Interventions []Intervention

	// StoppingFunc, when set, is evaluated after every step.
	StoppingFunc StoppingFunc

	// Label tags log output for this run.
	Label string
}

// Sim is one simulation run.
type Sim struct {
	cfg *config.Config
	log logging.Logger
	id  string

	sampler *dist.Sampler
	people  *pop.People
	net     *network.Network
	disease *disease.Model
	imm     *immunity.Model
	trans   *transmission.Engine
	coin    *coinfect.Model

	interventions []Intervention
	stopping      StoppingFunc

	popScale float64 // Agents per real person, for the migration target

	step        int
	stepsTotal  int
	initialized bool
	complete    bool

	results *Results
}

// New validates the configuration, builds every model and returns an
// uninitialized Sim.
func New(cfg *config.Config, optFns ...func(o *Options)) (*Sim, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	imm, err := cfg.BuildImmunity()
	if err != nil {
		return nil, err
	}
	genotypes, err := cfg.BuildGenotypes()
	if err != nil {
		return nil, err
	}
	dis, err := disease.NewModel(genotypes, cfg.LatentProb, cfg.ReactivationProb, imm)
	if err != nil {
		return nil, err
	}
	net, err := network.New(cfg.BuildLayers())
	if err != nil {
		return nil, err
	}
	trans, err := transmission.NewEngine(cfg.Beta, cfg.EffCondoms, dis, imm)
	if err != nil {
		return nil, err
	}
	var coin *coinfect.Model
	if cfg.Coinfection != nil {
		coin, err = coinfect.NewModel(*cfg.Coinfection)
		if err != nil {
			return nil, err
		}
	}

	s := &Sim{
		cfg:           cfg,
		log:           opts.Logger,
		id:            uuid.NewString(),
		sampler:       dist.NewSampler(cfg.Seed),
		net:           net,
		disease:       dis,
		imm:           imm,
		trans:         trans,
		coin:          coin,
		interventions: opts.Interventions,
		stopping:      opts.StoppingFunc,
		stepsTotal:    int(math.Round((cfg.EndYear - cfg.StartYear) / cfg.Dt)),
		results:       &Results{},
	}
	if sl, ok := opts.Logger.(*logging.SimLogger); ok {
		s.log = sl.WithComponent("sim").WithRun(s.id)
	}
	return s, nil
}

// ID returns the run identifier.
func (s *Sim) ID() string { return s.id }

// People exposes the population store, for interventions and inspection.
func (s *Sim) People() *pop.People { return s.people }

// Network exposes the partnership network.
func (s *Sim) Network() *network.Network { return s.net }

// Sampler exposes the run's random stream, for interventions that draw.
func (s *Sim) Sampler() *dist.Sampler { return s.sampler }

// Agent returns a read-only copy of one agent's state.
func (s *Sim) Agent(i int) (pop.AgentView, error) { return s.people.View(i) }

// Initialize builds the population, seeds initial infections and forms the
// initial partnership network. Calling it twice is a no-op.
func (s *Sim) Initialize() error {
	if s.initialized {
		return nil
	}
	cfg := s.cfg
	nG := len(cfg.Genotypes)
	nL := len(cfg.Layers)
	nS := nG + len(cfg.Immunity.Vaccines)

	p, err := pop.NewPeople(cfg.NAgents, nG, nL, nS)
	if err != nil {
		return err
	}
	s.people = p
	inds := make([]int, cfg.NAgents)
	for i := range inds {
		inds[i] = i
	}
	if err := s.initAgents(inds, false); err != nil {
		return err
	}

	for g, gc := range cfg.Genotypes {
		if gc.InitPrev <= 0 {
			continue
		}
		seeds := s.sampler.Filter(gc.InitPrev, p.AliveInds())
		flow, err := s.disease.Infect(p, s.sampler, seeds, g, 0, cfg.Dt, disease.ReasonSeed)
		if err != nil {
			return err
		}
		s.log.Debug("Seeded infections", "genotype", gc.Key, "count", flow.Infections)
	}

	if s.cfg.Demography.Migration != nil {
		s.popScale = float64(cfg.NAgents) / cfg.Demography.Migration.Size(cfg.StartYear)
	}

	if _, err := s.net.Form(p, s.sampler, cfg.StartYear, s.edgeTargets()); err != nil {
		return err
	}

	// Population construction burns a config-dependent amount of the
	// stream; reseed so stepping starts from a fixed point.
	s.sampler.Reseed(cfg.Seed + 1)
	s.initialized = true
	s.log.Info("Initialized", "agents", cfg.NAgents, "genotypes", nG, "layers", nL)
	return nil
}

// initAgents assigns demographics to freshly grown slots. Newborns get age
// zero; seeded and immigrant agents draw from the configured age structure.
func (s *Sim) initAgents(inds []int, newborn bool) error {
	cfg := s.cfg
	p := s.people
	for _, i := range inds {
		if s.sampler.Bernoulli(0.5) {
			p.Sex[i] = pop.Male
		}
		if newborn {
			p.Age[i] = 0
		} else {
			age, err := s.sampler.Draw(cfg.Demography.AgeDist)
			if err != nil {
				return err
			}
			p.Age[i] = age
		}
		debutDist := cfg.DebutFemale
		if p.Sex[i] == pop.Male {
			debutDist = cfg.DebutMale
		}
		debut, err := s.sampler.Draw(debutDist)
		if err != nil {
			return err
		}
		p.Debut[i] = debut
		rt, err := s.sampler.Draw(cfg.RelTransDist)
		if err != nil {
			return err
		}
		p.RelTrans[i] = rt
		for li, lc := range cfg.Layers {
			partners, err := s.sampler.Draw(lc.Partners)
			if err != nil {
				return err
			}
			p.Partners[li][i] = partners
		}
	}
	return nil
}

// edgeTargets derives per-layer formation counts from the partnership
// deficit of active agents. Each new edge serves two agents.
func (s *Sim) edgeTargets() map[string]int {
	targets := make(map[string]int, len(s.cfg.Layers))
	for li, lc := range s.cfg.Layers {
		deficit := 0
		for i := range s.people.Alive {
			if !s.people.IsActive(i) {
				continue
			}
			d := int(math.Round(s.people.Partners[li][i])) - s.people.CurrentPartners[li][i]
			if d > 0 {
				deficit += d
			}
		}
		targets[lc.Key] = (deficit + 1) / 2
	}
	return targets
}

// Snapshot returns a census of the current state.
func (s *Sim) Snapshot() Snapshot {
	edges := make(map[string]int)
	for _, l := range s.net.Layers() {
		edges[l.Key] = len(l.Edges)
	}
	return takeSnapshot(s.people, s.step, s.year(), edges)
}

// Results returns the accumulated flow series.
func (s *Sim) Results() *Results { return s.results }

func (s *Sim) year() float64 {
	return s.cfg.StartYear + float64(s.step)*s.cfg.Dt
}
