package pop

// Compact physically removes dead agent slots, renumbering the survivors.
// It returns the old-to-new index remap so edge lists and any other external
// index holders can be rewritten; entries for removed agents are absent.
// This is the only sanctioned way a slot index is ever reused.
func (p *People) Compact() map[int]int {
	remap := make(map[int]int, p.Len())
	next := 0
	for i := 0; i < p.Len(); i++ {
		if !p.Alive[i] {
			continue
		}
		remap[i] = next
		if next != i {
			p.copyRow(next, i)
		}
		next++
	}
	p.truncate(next)
	return remap
}

func (p *People) copyRow(dst, src int) {
	p.UID[dst] = p.UID[src]
	p.Sex[dst] = p.Sex[src]
	p.Age[dst] = p.Age[src]
	p.Debut[dst] = p.Debut[src]
	p.Alive[dst] = p.Alive[src]
	p.DeathCause[dst] = p.DeathCause[src]
	p.DateDead[dst] = p.DateDead[src]
	for l := 0; l < p.nLayers; l++ {
		p.Partners[l][dst] = p.Partners[l][src]
		p.CurrentPartners[l][dst] = p.CurrentPartners[l][src]
		p.NRelationships[l][dst] = p.NRelationships[l][src]
	}
	for g := 0; g < p.nGenotypes; g++ {
		p.Susceptible[g][dst] = p.Susceptible[g][src]
		p.Infectious[g][dst] = p.Infectious[g][src]
		p.Grade1[g][dst] = p.Grade1[g][src]
		p.Grade2[g][dst] = p.Grade2[g][src]
		p.Grade3[g][dst] = p.Grade3[g][src]
		p.Invasive[g][dst] = p.Invasive[g][src]
		p.Latent[g][dst] = p.Latent[g][src]
		p.DateExposed[g][dst] = p.DateExposed[g][src]
		p.DateInfectious[g][dst] = p.DateInfectious[g][src]
		p.DateGrade1[g][dst] = p.DateGrade1[g][src]
		p.DateGrade2[g][dst] = p.DateGrade2[g][src]
		p.DateGrade3[g][dst] = p.DateGrade3[g][src]
		p.DateInvasive[g][dst] = p.DateInvasive[g][src]
		p.DateClearance[g][dst] = p.DateClearance[g][src]
		p.DateDeadDisease[g][dst] = p.DateDeadDisease[g][src]
		p.DurPrecin[g][dst] = p.DurPrecin[g][src]
		p.DurDisease[g][dst] = p.DurDisease[g][src]
		p.SevRate[g][dst] = p.SevRate[g][src]
	}
	for k := 0; k < p.nImmSources; k++ {
		p.Imm[k][dst] = p.Imm[k][src]
		p.PeakImm[k][dst] = p.PeakImm[k][src]
		p.DateImm[k][dst] = p.DateImm[k][src]
	}
	p.RelTrans[dst] = p.RelTrans[src]
	p.RelSus[dst] = p.RelSus[src]
	p.RelSev[dst] = p.RelSev[src]
	p.RelImm[dst] = p.RelImm[src]
	p.Coinfected[dst] = p.Coinfected[src]
	p.InCare[dst] = p.InCare[src]
	p.CareFailed[dst] = p.CareFailed[src]
	p.CD4[dst] = p.CD4[src]
	p.DateCoinfected[dst] = p.DateCoinfected[src]
	p.DateCare[dst] = p.DateCare[src]
	p.DateDeadCoinfection[dst] = p.DateDeadCoinfection[src]
	p.DurCoinfection[dst] = p.DurCoinfection[src]
}

func (p *People) truncate(n int) {
	p.UID = p.UID[:n]
	p.Sex = p.Sex[:n]
	p.Age = p.Age[:n]
	p.Debut = p.Debut[:n]
	p.Alive = p.Alive[:n]
	p.DeathCause = p.DeathCause[:n]
	p.DateDead = p.DateDead[:n]
	for l := 0; l < p.nLayers; l++ {
		p.Partners[l] = p.Partners[l][:n]
		p.CurrentPartners[l] = p.CurrentPartners[l][:n]
		p.NRelationships[l] = p.NRelationships[l][:n]
	}
	for g := 0; g < p.nGenotypes; g++ {
		p.Susceptible[g] = p.Susceptible[g][:n]
		p.Infectious[g] = p.Infectious[g][:n]
		p.Grade1[g] = p.Grade1[g][:n]
		p.Grade2[g] = p.Grade2[g][:n]
		p.Grade3[g] = p.Grade3[g][:n]
		p.Invasive[g] = p.Invasive[g][:n]
		p.Latent[g] = p.Latent[g][:n]
		p.DateExposed[g] = p.DateExposed[g][:n]
		p.DateInfectious[g] = p.DateInfectious[g][:n]
		p.DateGrade1[g] = p.DateGrade1[g][:n]
		p.DateGrade2[g] = p.DateGrade2[g][:n]
		p.DateGrade3[g] = p.DateGrade3[g][:n]
		p.DateInvasive[g] = p.DateInvasive[g][:n]
		p.DateClearance[g] = p.DateClearance[g][:n]
		p.DateDeadDisease[g] = p.DateDeadDisease[g][:n]
		p.DurPrecin[g] = p.DurPrecin[g][:n]
		p.DurDisease[g] = p.DurDisease[g][:n]
		p.SevRate[g] = p.SevRate[g][:n]
	}
	for k := 0; k < p.nImmSources; k++ {
		p.Imm[k] = p.Imm[k][:n]
		p.PeakImm[k] = p.PeakImm[k][:n]
		p.DateImm[k] = p.DateImm[k][:n]
	}
	p.RelTrans = p.RelTrans[:n]
	p.RelSus = p.RelSus[:n]
	p.RelSev = p.RelSev[:n]
	p.RelImm = p.RelImm[:n]
	p.Coinfected = p.Coinfected[:n]
	p.InCare = p.InCare[:n]
	p.CareFailed = p.CareFailed[:n]
	p.CD4 = p.CD4[:n]
	p.DateCoinfected = p.DateCoinfected[:n]
	p.DateCare = p.DateCare[:n]
	p.DateDeadCoinfection = p.DateDeadCoinfection[:n]
	p.DurCoinfection = p.DurCoinfection[:n]
}
