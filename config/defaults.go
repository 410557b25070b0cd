package config

import (
	"github.com/epiforge/stisim/demog"
	"github.com/epiforge/stisim/dist"
	"github.com/epiforge/stisim/immunity"
)

// Default returns a complete, runnable configuration: two high-risk genotypes
// over a marital and a casual layer, natural immunity with slow decay, and
// stylized vital dynamics. File loading overlays onto these values.
func Default() *Config {
	ageBins := []float64{0, 15, 20, 25, 30, 35, 40, 45, 50, 55, 60, 65, 70, 75, 80}
	flatRates := func(v float64) []float64 {
		out := make([]float64, len(ageBins))
		for i := range out {
			out[i] = v
		}
		return out
	}

	return &Config{
		Seed:    1,
		NAgents: 10_000,

		StartYear: 1995,
		EndYear:   2035,
		Dt:        0.25,
		DtDemog:   1.0,

		Beta:             0.2,
		EffCondoms:       0.7,
		LatentProb:       0.0,
		ReactivationProb: 0.0,

		RelTransDist: dist.Const(1),
		DebutFemale:  dist.Dist{Form: dist.FormNormalPos, Par1: 17.5, Par2: 2.0},
		DebutMale:    dist.Dist{Form: dist.FormNormalPos, Par1: 18.6, Par2: 2.0},

		Genotypes: []GenotypeConfig{
			{
				Key:          "hr16",
				RelBeta:      1.0,
				DurPrecin:    dist.Dist{Form: dist.FormLogNormal, Par1: 3.0, Par2: 9.0},
				DurInfection: dist.Dist{Form: dist.FormLogNormal, Par1: 6.0, Par2: 5.0},
				DurInvasive:  dist.Dist{Form: dist.FormLogNormal, Par1: 8.5, Par2: 3.0},
				Severity:     SeverityConfig{Form: "logf2", Rate: 0.4, Method: "analytic"},
				SeroProb:     0.7,
				InitPrev:     0.05,
				ImmInit:      dist.Dist{Form: dist.FormBeta, Par1: 3.5, Par2: 1.2},
			},
			{
				Key:          "hr18",
				RelBeta:      0.75,
				DurPrecin:    dist.Dist{Form: dist.FormLogNormal, Par1: 2.5, Par2: 9.0},
				DurInfection: dist.Dist{Form: dist.FormLogNormal, Par1: 6.0, Par2: 5.0},
				DurInvasive:  dist.Dist{Form: dist.FormLogNormal, Par1: 8.0, Par2: 3.0},
				Severity:     SeverityConfig{Form: "logf2", Rate: 0.35, Method: "analytic"},
				SeroProb:     0.56,
				InitPrev:     0.03,
				ImmInit:      dist.Dist{Form: dist.FormBeta, Par1: 3.5, Par2: 1.2},
			},
		},

		Layers: []LayerConfig{
			{
				Key:      "marital",
				Partners: dist.Dist{Form: dist.FormPoisson, Par1: 0.01},
				Duration: dist.Dist{Form: dist.FormNormalPos, Par1: 15, Par2: 3},
				Acts:     dist.Dist{Form: dist.FormNegBinomial, Par1: 80, Par2: 40},
				Condoms:  0.01,
				Participation: &ParticipationConfig{
					AgeBins: []float64{0, 15, 20, 25, 30, 40, 50, 60, 70},
					Rates:   []float64{0, 0.05, 0.25, 0.40, 0.25, 0.10, 0.05, 0.02, 0},
				},
				Mixing: &MixingConfig{
					AgeBins: []float64{0, 15, 20, 25, 30, 35, 40, 50, 60},
					Weights: [][]float64{
						{0, 0, 0, 0, 0, 0, 0, 0, 0},
						{0, 1, 0, 0, 0, 0, 0, 0, 0},
						{0, 1, 1, 0, 0, 0, 0, 0, 0},
						{0, 0.5, 1, 1, 0, 0, 0, 0, 0},
						{0, 0, 0.5, 1, 1, 0, 0, 0, 0},
						{0, 0, 0, 0.5, 1, 1, 0, 0, 0},
						{0, 0, 0, 0, 0.5, 1, 1, 0, 0},
						{0, 0, 0, 0, 0, 0.5, 1, 1, 0},
						{0, 0, 0, 0, 0, 0, 0.5, 1, 1},
					},
				},
				ActivityPeak: 30,
				Retirement:   75,
			},
			{
				Key:      "casual",
				Partners: dist.Dist{Form: dist.FormPoisson, Par1: 0.5},
				Duration: dist.Dist{Form: dist.FormLogNormal, Par1: 1, Par2: 2},
				Acts:     dist.Dist{Form: dist.FormNegBinomial, Par1: 50, Par2: 40},
				Condoms:  0.2,
				Participation: &ParticipationConfig{
					AgeBins: []float64{0, 15, 20, 25, 30, 40, 50, 60, 70},
					Rates:   []float64{0, 0.10, 0.22, 0.15, 0.08, 0.05, 0.02, 0.01, 0},
				},
				ActivityPeak: 25,
				Retirement:   70,
			},
		},

		Immunity: ImmunityConfig{
			Decay: immunity.Decay{Form: immunity.DecayExp, HalfLife: 30},
			CrossImmunity: [][]float64{
				{1.0, 0.3},
				{0.3, 1.0},
			},
		},

		Demography: DemographyConfig{
			Births: demog.BirthSeries{
				Years: []float64{1995, 2005, 2015, 2025, 2035},
				Rates: []float64{24, 21, 19, 17, 16},
			},
			Deaths: &demog.RateTable{
				AgeBins: ageBins,
				Years:   []float64{2000},
				Female:  [][]float64{flatRates(0.008)},
				Male:    [][]float64{flatRates(0.010)},
			},
			AgeDist: dist.Dist{Form: dist.FormUniform, Par1: 0, Par2: 80},
		},

		LogLevel: "info",
	}
}
