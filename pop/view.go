package pop

// GenotypeView is the read-only per-genotype slice of an agent's state.
type GenotypeView struct {
	Susceptible    bool
	Infectious     bool
	Grade1         bool
	Grade2         bool
	Grade3         bool
	Invasive       bool
	Latent         bool
	DateInfectious float64
	DateClearance  float64
	DateInvasive   float64
	DurDisease     float64
}

// AgentView is a transient read-only copy of one agent's full state, used by
// snapshots, interventions and tests. Mutating a view has no effect on the
// store.
type AgentView struct {
	UID             int64
	Sex             Sex
	Age             float64
	Debut           float64
	Alive           bool
	DeathCause      Cause
	DateDead        float64
	CurrentPartners []int
	// DateInvasiveAny is the earliest invasive date across genotypes, NaN
	// if none is recorded.
	DateInvasiveAny float64
	Genotypes       []GenotypeView
	Imm             []float64
	Coinfected      bool
	InCare          bool
	CD4             float64
}

// View returns a read-only copy of agent i's state.
func (p *People) View(i int) (AgentView, error) {
	if err := p.CheckIndex("view", i); err != nil {
		return AgentView{}, err
	}
	v := AgentView{
		UID:        p.UID[i],
		Sex:        p.Sex[i],
		Age:        p.Age[i],
		Debut:      p.Debut[i],
		Alive:      p.Alive[i],
		DeathCause: p.DeathCause[i],
		DateDead:   p.DateDead[i],
		Coinfected: p.Coinfected[i],
		InCare:     p.InCare[i],
		CD4:        p.CD4[i],
	}
	v.DateInvasiveAny = p.DateInvasiveAny(i)
	v.CurrentPartners = make([]int, p.nLayers)
	for l := 0; l < p.nLayers; l++ {
		v.CurrentPartners[l] = p.CurrentPartners[l][i]
	}
	v.Genotypes = make([]GenotypeView, p.nGenotypes)
	for g := 0; g < p.nGenotypes; g++ {
		v.Genotypes[g] = GenotypeView{
			Susceptible:    p.Susceptible[g][i],
			Infectious:     p.Infectious[g][i],
			Grade1:         p.Grade1[g][i],
			Grade2:         p.Grade2[g][i],
			Grade3:         p.Grade3[g][i],
			Invasive:       p.Invasive[g][i],
			Latent:         p.Latent[g][i],
			DateInfectious: p.DateInfectious[g][i],
			DateClearance:  p.DateClearance[g][i],
			DateInvasive:   p.DateInvasive[g][i],
			DurDisease:     p.DurDisease[g][i],
		}
	}
	v.Imm = make([]float64, p.nImmSources)
	for k := 0; k < p.nImmSources; k++ {
		v.Imm[k] = p.Imm[k][i]
	}
	return v, nil
}
