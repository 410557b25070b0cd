package sim

import (
	"context"
	"math"
	"time"

	"github.com/epiforge/stisim/logging"
	"github.com/epiforge/stisim/pop"
)

// compactThreshold is the dead fraction of slots that triggers a compaction
// at the demography cadence.
const compactThreshold = 0.5

// ageCutoff removes agents who age past it on the next demography update.
const ageCutoff = 100.0

// Step advances the simulation by one timestep and returns its flow record.
// The phase order is fixed; see the package documentation.
func (s *Sim) Step() (FlowRecord, error) {
	if s.complete {
		return FlowRecord{}, &AlreadyRunError{Step: s.step}
	}
	if !s.initialized {
		if err := s.Initialize(); err != nil {
			return FlowRecord{}, err
		}
	}

	began := time.Now()
	t := float64(s.step)
	year := s.year()
	dt := s.cfg.Dt
	p := s.people
	flow := newFlowRecord(s.step, year, p.NGenotypes())

	sl, _ := s.log.(*logging.SimLogger)
	phase := func(name string, fn func() error) error {
		start := time.Now()
		err := fn()
		if sl != nil {
			sl.LogPhase(name, s.step, time.Since(start), err)
		}
		return err
	}

	for i := range p.Alive {
		if p.Alive[i] {
			p.Age[i] += dt
		}
	}
	if s.demographyDue() {
		if err := phase("demography", func() error {
			return s.applyDemography(&flow, t, year)
		}); err != nil {
			return flow, err
		}
	}
	if s.coin != nil {
		if err := phase("coinfection", func() error {
			cf, err := s.coin.Step(p, s.sampler, t, dt, year)
			if err != nil {
				return err
			}
			flow.Coinfection = cf
			return nil
		}); err != nil {
			return flow, err
		}
	}

	// The network clock runs in calendar years: edge durations are sampled
	// in years, so ends are scheduled and compared on the same scale.
	if err := phase("network", func() error {
		flow.EdgesDissolved = s.net.DissolveDue(p, year)
		formed, err := s.net.Form(p, s.sampler, year, s.edgeTargets())
		if err != nil {
			return err
		}
		flow.EdgesFormed = formed
		return nil
	}); err != nil {
		return flow, err
	}

	if err := phase("interventions", func() error {
		for _, iv := range s.interventions {
			if err := iv.Apply(s, s.step, year); err != nil {
				s.log.Error("Intervention failed", "key", iv.Key(), "error", err)
				return err
			}
		}
		return nil
	}); err != nil {
		return flow, err
	}

	if err := phase("transmission", func() error {
		transFlows, err := s.trans.Step(p, s.sampler, s.net, t, dt)
		if err != nil {
			return err
		}
		for g, tf := range transFlows {
			flow.Infections[g] += tf.Infections
			flow.InfectionsF += tf.InfectionsF
			flow.InfectionsM += tf.InfectionsM
			flow.Reinfections[g] += tf.Reinfections
		}
		return nil
	}); err != nil {
		return flow, err
	}

	if err := phase("progression", func() error {
		return s.applyProgression(&flow, t, dt)
	}); err != nil {
		return flow, err
	}

	s.imm.Update(p, t, dt)

	if err := p.CheckStates(t); err != nil {
		return flow, err
	}
	if err := p.CheckPartnerCounts(); err != nil {
		return flow, err
	}
	if err := s.net.CheckPartnerCounts(p); err != nil {
		return flow, err
	}

	s.step++
	s.results.Flows = append(s.results.Flows, flow)
	if sl != nil {
		sl.LogStep(flow.Step, flow.Year, flow.TotalInfections(), flow.TotalDeaths(), time.Since(began))
	}
	return flow, nil
}

// Run steps the simulation to its configured end. It halts early at step
// boundaries on context cancellation, the wall-clock time limit, or the
// stopping function, and never mid-step. A completed Sim cannot run again.
func (s *Sim) Run(ctx context.Context) (*Results, error) {
	if s.complete {
		return nil, &AlreadyRunError{Step: s.step}
	}
	if err := s.Initialize(); err != nil {
		return nil, err
	}
	start := time.Now()
	for s.step < s.stepsTotal {
		select {
		case <-ctx.Done():
			return s.results, ctx.Err()
		default:
		}
		if s.cfg.TimeLimit > 0 && time.Since(start).Seconds() > s.cfg.TimeLimit {
			s.log.Warn("Time limit reached", "limit_s", s.cfg.TimeLimit, "step", s.step)
			break
		}
		if _, err := s.Step(); err != nil {
			return s.results, err
		}
		if s.stopping != nil && s.stopping(s.Snapshot()) {
			s.log.Info("Stopping function fired", "step", s.step)
			break
		}
	}
	s.complete = true
	s.results.Final = s.Snapshot()
	s.log.Info("Run complete", "steps", s.step, "infections", s.results.CumulativeInfections(), "elapsed", time.Since(start).String())
	return s.results, nil
}

// demographyDue reports whether the current step starts a demography window.
func (s *Sim) demographyDue() bool {
	stepsPer := int(math.Round(s.cfg.DtDemog / s.cfg.Dt))
	if stepsPer < 1 {
		stepsPer = 1
	}
	return s.step%stepsPer == 0
}

// applyDemography runs background mortality, births and migration for one
// demography window, then compacts the store if enough slots are dead.
func (s *Sim) applyDemography(flow *FlowRecord, t, year float64) error {
	p := s.people
	window := s.cfg.DtDemog

	var dead []int
	for i := range p.Alive {
		if !p.Alive[i] {
			continue
		}
		female := p.Sex[i] == pop.Female
		prob := 1.0
		if p.Age[i] <= ageCutoff {
			rate := s.cfg.Demography.Deaths.Rate(year, female, p.Age[i])
			prob = 1 - math.Exp(-rate*window)
		}
		if s.sampler.Bernoulli(prob) {
			dead = append(dead, i)
			if female {
				flow.BackgroundDeathsF++
			} else {
				flow.BackgroundDeathsM++
			}
		}
	}
	if len(dead) > 0 {
		if err := p.Remove(dead, pop.CauseBackground, t); err != nil {
			return err
		}
	}

	alive := p.CountAlive()
	nBirths := s.sampler.RandRound(s.cfg.Demography.Births.Rate(year) * float64(alive) * window)
	if nBirths > 0 {
		inds, err := p.Grow(nBirths)
		if err != nil {
			return err
		}
		if err := s.initAgents(inds, true); err != nil {
			return err
		}
		flow.Births = nBirths
	}

	if err := s.applyMigration(flow, t, year); err != nil {
		return err
	}

	if deadFrac := 1 - float64(p.CountAlive())/float64(p.Len()); deadFrac > compactThreshold {
		remap := p.Compact()
		s.net.Remap(p, remap)
		s.log.Debug("Compacted population", "slots", p.Len(), "remapped", len(remap))
	}
	return nil
}

// applyMigration nudges the population toward the configured trend: growth
// beyond vital dynamics arrives as immigrants, shrinkage leaves as emigrants.
// Years outside the trend's range see no migration.
func (s *Sim) applyMigration(flow *FlowRecord, t, year float64) error {
	trend := s.cfg.Demography.Migration
	if trend == nil || !trend.InRange(year) {
		return nil
	}
	p := s.people
	expected := trend.Size(year) * s.popScale
	diff := int(math.Round(expected - float64(p.CountAlive())))
	switch {
	case diff > 0:
		inds, err := p.Grow(diff)
		if err != nil {
			return err
		}
		if err := s.initAgents(inds, false); err != nil {
			return err
		}
		flow.Immigrants = diff
	case diff < 0:
		alive := p.AliveInds()
		out := s.sampler.Choose(len(alive), -diff)
		leaving := make([]int, len(out))
		for k, j := range out {
			leaving[k] = alive[j]
		}
		if err := p.Remove(leaving, pop.CauseEmigration, t); err != nil {
			return err
		}
		flow.Emigrants = len(leaving)
	}
	return nil
}

// applyProgression runs the date-gated disease transitions for every
// genotype, then disease mortality and duration accounting.
func (s *Sim) applyProgression(flow *FlowRecord, t, dt float64) error {
	p := s.people
	for g := 0; g < p.NGenotypes(); g++ {
		flow.Grade1s[g] = len(s.disease.CheckGrade1(p, g, t))
		flow.Grade2s[g] = len(s.disease.CheckGrade2(p, g, t))
		flow.Grade3s[g] = len(s.disease.CheckGrade3(p, g, t))
		inv, err := s.disease.CheckInvasive(p, s.sampler, g, t, dt)
		if err != nil {
			return err
		}
		flow.Invasives[g] = len(inv)
		cleared, latent, err := s.disease.CheckClearance(p, s.sampler, g, t)
		if err != nil {
			return err
		}
		flow.Clearances[g] = len(cleared)
		flow.Latencies[g] = len(latent)
		rf, err := s.disease.CheckReactivation(p, s.sampler, g, t, dt)
		if err != nil {
			return err
		}
		flow.Infections[g] += rf.Infections
		flow.InfectionsF += rf.InfectionsF
		flow.InfectionsM += rf.InfectionsM
		flow.Reactivations[g] += rf.Reactivations
	}
	dead, err := s.disease.CheckDiseaseDeaths(p, t)
	if err != nil {
		return err
	}
	flow.DiseaseDeaths = len(dead)
	s.disease.AccumulateDurations(p, dt)
	return nil
}
