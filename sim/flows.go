package sim

import (
	"github.com/epiforge/stisim/coinfect"
	"github.com/epiforge/stisim/pop"
)

// FlowRecord holds the event counts of one completed timestep. Per-genotype
// slices are indexed in configuration order.
type FlowRecord struct {
	Step int
	Year float64

	Infections    []int
	InfectionsF   int // Female total across genotypes
	InfectionsM   int // Male total across genotypes
	Reinfections  []int
	Reactivations []int
	Grade1s       []int
	Grade2s       []int
	Grade3s       []int
	Invasives     []int
	Clearances    []int
	Latencies     []int

	DiseaseDeaths     int
	BackgroundDeathsF int
	BackgroundDeathsM int
	Births            int
	Immigrants        int
	Emigrants         int

	Coinfection coinfect.Flow

	EdgesFormed    map[string]int
	EdgesDissolved map[string]int
}

func newFlowRecord(step int, year float64, nGenotypes int) FlowRecord {
	return FlowRecord{
		Step: step, Year: year,
		Infections:    make([]int, nGenotypes),
		Reinfections:  make([]int, nGenotypes),
		Reactivations: make([]int, nGenotypes),
		Grade1s:       make([]int, nGenotypes),
		Grade2s:       make([]int, nGenotypes),
		Grade3s:       make([]int, nGenotypes),
		Invasives:     make([]int, nGenotypes),
		Clearances:    make([]int, nGenotypes),
		Latencies:     make([]int, nGenotypes),
	}
}

// TotalInfections sums new infections across genotypes.
func (f FlowRecord) TotalInfections() int {
	n := 0
	for _, v := range f.Infections {
		n += v
	}
	return n
}

// TotalDeaths sums deaths from every cause.
func (f FlowRecord) TotalDeaths() int {
	return f.DiseaseDeaths + f.BackgroundDeathsF + f.BackgroundDeathsM + f.Coinfection.Deaths
}

// Snapshot is a point-in-time census of the population state.
type Snapshot struct {
	Step int
	Year float64

	NAlive       int
	NInfectedAny int   // Infectious with at least one genotype
	NSusceptible []int // Per genotype
	NInfectious  []int
	NGrade1      []int
	NGrade2      []int
	NGrade3      []int
	NInvasive    []int
	NLatent      []int

	NCoinfected int
	NInCare     int

	NEdges map[string]int
}

func takeSnapshot(p *pop.People, step int, year float64, edges map[string]int) Snapshot {
	nG := p.NGenotypes()
	snap := Snapshot{
		Step: step, Year: year,
		NSusceptible: make([]int, nG),
		NInfectious:  make([]int, nG),
		NGrade1:      make([]int, nG),
		NGrade2:      make([]int, nG),
		NGrade3:      make([]int, nG),
		NInvasive:    make([]int, nG),
		NLatent:      make([]int, nG),
		NEdges:       edges,
	}
	for i := range p.Alive {
		if !p.Alive[i] {
			continue
		}
		snap.NAlive++
		if p.InfectiousAny(i) {
			snap.NInfectedAny++
		}
		if p.Coinfected[i] {
			snap.NCoinfected++
		}
		if p.InCare[i] {
			snap.NInCare++
		}
		for g := 0; g < nG; g++ {
			if p.Susceptible[g][i] {
				snap.NSusceptible[g]++
			}
			if p.Infectious[g][i] {
				snap.NInfectious[g]++
			}
			if p.Grade1[g][i] {
				snap.NGrade1[g]++
			}
			if p.Grade2[g][i] {
				snap.NGrade2[g]++
			}
			if p.Grade3[g][i] {
				snap.NGrade3[g]++
			}
			if p.Invasive[g][i] {
				snap.NInvasive[g]++
			}
			if p.Latent[g][i] {
				snap.NLatent[g]++
			}
		}
	}
	return snap
}

// Results accumulates the flow series of a run.
type Results struct {
	Flows []FlowRecord
	Final Snapshot
}

// CumulativeInfections sums new infections over the whole run.
func (r *Results) CumulativeInfections() int {
	n := 0
	for _, f := range r.Flows {
		n += f.TotalInfections()
	}
	return n
}
