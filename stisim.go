// Package stisim provides a high-level façade over the simulation engine and
// its component models (population, network, disease, immunity, co-infection
// & logging) enabling rapid construction of agent-based transmission studies.
// Most applications interact with this package by:
//  1. Creating an STISim via New() (optionally overriding the default configuration)
//  2. Attaching interventions or a stopping condition
//  3. Running to completion (Run) or stepping manually (Step)
//
// The façade delegates orchestration to sim.Sim while keeping setup and usage
// ergonomics concise. All defaults produce a runnable two-genotype scenario;
// real studies supply a calibrated configuration file and a structured logger.
package stisim

import (
	"context"

	"github.com/epiforge/stisim/config"
	"github.com/epiforge/stisim/logging"
	"github.com/epiforge/stisim/sim"
)

// Options configures the STISim instance.
type Options struct {
	// Config is the full simulation configuration; nil loads the defaults.
	Config *config.Config

	// Interventions run each step, after network formation and before
	// transmission.
	Interventions []sim.Intervention

	// StoppingFunc halts the run early when it returns true.
	StoppingFunc sim.StoppingFunc

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// STISim is the high-level façade aggregating the simulation engine.
type STISim struct {
	opts Options
	sim  *sim.Sim
}

// New creates a new STISim instance with optional overrides. An unset
// configuration falls back to the built-in default scenario.
func New(optFns ...func(o *Options)) (*STISim, error) {
	opts := Options{
		Config: config.Default(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	s, err := sim.New(opts.Config, func(o *sim.Options) {
		o.Logger = opts.Logger
		o.Interventions = opts.Interventions
		o.StoppingFunc = opts.StoppingFunc
	})
	if err != nil {
		return nil, err
	}
	return &STISim{opts: opts, sim: s}, nil
}

// Sim exposes the underlying simulation for stepping, inspection and effect
// injection.
func (s *STISim) Sim() *sim.Sim { return s.sim }

// Run executes the simulation to its configured end year and returns the
// accumulated results.
func (s *STISim) Run(ctx context.Context) (*sim.Results, error) {
	return s.sim.Run(ctx)
}

// Step advances the simulation by a single timestep.
func (s *STISim) Step() (sim.FlowRecord, error) {
	return s.sim.Step()
}

// Snapshot returns a census of the current population state.
func (s *STISim) Snapshot() sim.Snapshot {
	return s.sim.Snapshot()
}
