package config

import (
	"gonum.org/v1/gonum/mat"

	"github.com/epiforge/stisim/disease"
	"github.com/epiforge/stisim/immunity"
	"github.com/epiforge/stisim/network"
)

// Build converts the serializable genotype into a disease descriptor.
func (g GenotypeConfig) Build() (disease.Genotype, error) {
	dg := disease.Genotype{
		Key:          g.Key,
		RelBeta:      g.RelBeta,
		DurPrecin:    g.DurPrecin,
		DurInfection: g.DurInfection,
		DurInvasive:  g.DurInvasive,
		Severity: disease.SeverityFn{
			Form:   disease.SevForm(g.Severity.Form),
			Rate:   g.Severity.Rate,
			Method: disease.Method(g.Severity.Method),
		},
		SeroProb: g.SeroProb,
	}
	if err := dg.Validate(); err != nil {
		return disease.Genotype{}, err
	}
	return dg, nil
}

// BuildGenotypes converts every configured genotype.
func (c *Config) BuildGenotypes() ([]disease.Genotype, error) {
	out := make([]disease.Genotype, 0, len(c.Genotypes))
	for _, g := range c.Genotypes {
		dg, err := g.Build()
		if err != nil {
			return nil, err
		}
		out = append(out, dg)
	}
	return out, nil
}

// BuildLayers converts the layer configurations into network parameters, in
// config order, which fixes the layer indexing on the population store.
func (c *Config) BuildLayers() []network.LayerParams {
	out := make([]network.LayerParams, 0, len(c.Layers))
	for _, l := range c.Layers {
		p := network.LayerParams{
			Key:          l.Key,
			Duration:     l.Duration,
			Acts:         l.Acts,
			Condoms:      l.Condoms,
			ActivityPeak: l.ActivityPeak,
			Retirement:   l.Retirement,
			PrefWeight:   l.PrefWeight,
		}
		if l.Participation != nil {
			p.Participation = &network.Participation{
				AgeBins: l.Participation.AgeBins,
				Rates:   l.Participation.Rates,
			}
		}
		if l.Mixing != nil {
			w := mat.NewDense(len(l.Mixing.AgeBins), len(l.Mixing.AgeBins), nil)
			for r, row := range l.Mixing.Weights {
				for col, v := range row {
					w.Set(r, col, v)
				}
			}
			p.Mixing = &network.Mixing{AgeBins: l.Mixing.AgeBins, Weights: w}
		}
		out = append(out, p)
	}
	return out
}

// BuildImmunity assembles the immunity sources and cross matrix: one natural
// source per genotype, then one source per vaccine. Natural rows come from
// cross_immunity (identity when omitted); vaccine rows are the efficacy
// vectors.
func (c *Config) BuildImmunity() (*immunity.Model, error) {
	nG := len(c.Genotypes)
	var sources []immunity.Source
	for gi, g := range c.Genotypes {
		sources = append(sources, immunity.Source{
			Key:      g.Key,
			Kind:     immunity.SourceNatural,
			Genotype: gi,
			InitDist: g.ImmInit,
			Decay:    c.Immunity.Decay,
		})
	}
	for _, v := range c.Immunity.Vaccines {
		sources = append(sources, immunity.Source{
			Key:      v.Key,
			Kind:     immunity.SourceVaccine,
			Genotype: -1,
			InitDist: v.ImmInit,
			Decay:    v.Decay,
		})
	}

	cross := mat.NewDense(len(sources), nG, nil)
	for gi := 0; gi < nG; gi++ {
		for gj := 0; gj < nG; gj++ {
			v := 0.0
			if len(c.Immunity.CrossImmunity) > 0 {
				v = c.Immunity.CrossImmunity[gi][gj]
			} else if gi == gj {
				v = 1.0
			}
			cross.Set(gi, gj, v)
		}
	}
	for vi, v := range c.Immunity.Vaccines {
		for gj, eff := range v.Efficacy {
			cross.Set(nG+vi, gj, eff)
		}
	}
	return immunity.NewModel(sources, cross, nG)
}
