package immunity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/epiforge/stisim/dist"
	"github.com/epiforge/stisim/pop"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()
	sources := []Source{
		{Key: "hr16", Kind: SourceNatural, Genotype: 0, InitDist: dist.Const(0.8), Decay: Decay{Form: DecayExp, HalfLife: 10}},
		{Key: "hr18", Kind: SourceNatural, Genotype: 1, InitDist: dist.Const(0.8), Decay: Decay{Form: DecayNone}},
		{Key: "vax", Kind: SourceVaccine, Genotype: -1, InitDist: dist.Const(0.9), Decay: Decay{Form: DecayNone}},
	}
	cross := mat.NewDense(3, 2, []float64{
		1.0, 0.3,
		0.3, 1.0,
		0.95, 0.9,
	})
	m, err := NewModel(sources, cross, 2)
	require.NoError(t, err)
	return m
}

func TestDecayValidate(t *testing.T) {
	assert.NoError(t, Decay{Form: DecayNone}.Validate())
	assert.NoError(t, Decay{Form: DecayExp, HalfLife: 5}.Validate())
	assert.Error(t, Decay{Form: DecayExp}.Validate())

	var unknown *ErrUnknownDecayForm
	assert.ErrorAs(t, Decay{Form: "linear"}.Validate(), &unknown)
}

func TestDecayFactorHalfLife(t *testing.T) {
	d := Decay{Form: DecayExp, HalfLife: 10}
	assert.Equal(t, 1.0, d.Factor(0))
	assert.InDelta(t, 0.5, d.Factor(10), 1e-12)
	assert.InDelta(t, 0.25, d.Factor(20), 1e-12)
	assert.Equal(t, 1.0, Decay{Form: DecayNone}.Factor(100))
}

func TestNewModelDimensionMismatch(t *testing.T) {
	sources := []Source{{Key: "a", Kind: SourceNatural, Genotype: 0, InitDist: dist.Const(1), Decay: Decay{Form: DecayNone}}}
	_, err := NewModel(sources, mat.NewDense(2, 2, nil), 2)
	assert.Error(t, err)
}

func TestNewModelDuplicateNatural(t *testing.T) {
	sources := []Source{
		{Key: "a", Kind: SourceNatural, Genotype: 0, InitDist: dist.Const(1), Decay: Decay{Form: DecayNone}},
		{Key: "b", Kind: SourceNatural, Genotype: 0, InitDist: dist.Const(1), Decay: Decay{Form: DecayNone}},
	}
	_, err := NewModel(sources, mat.NewDense(2, 1, nil), 1)
	assert.Error(t, err)
}

func TestBoostNeverLowers(t *testing.T) {
	m := newTestModel(t)
	p, err := pop.NewPeople(1, 2, 1, 3)
	require.NoError(t, err)
	s := dist.NewSampler(1)

	require.NoError(t, m.SetLevel(p, []int{0}, 0, 0.95, 0))
	require.NoError(t, m.BoostNatural(p, s, []int{0}, 0, 5))
	// InitDist is 0.8 < existing 0.95, so the boost is a no-op.
	assert.Equal(t, 0.95, p.Imm[0][0])
	assert.Equal(t, 0.0, p.DateImm[0][0])
}

func TestVaccinateRejectsNaturalSource(t *testing.T) {
	m := newTestModel(t)
	p, err := pop.NewPeople(1, 2, 1, 3)
	require.NoError(t, err)
	s := dist.NewSampler(1)

	assert.Error(t, m.Vaccinate(p, s, []int{0}, 0, 0))
	assert.NoError(t, m.Vaccinate(p, s, []int{0}, 2, 0))
	assert.Equal(t, 0.9, p.Imm[2][0])
}

func TestUpdateAppliesDecay(t *testing.T) {
	m := newTestModel(t)
	p, err := pop.NewPeople(1, 2, 1, 3)
	require.NoError(t, err)
	s := dist.NewSampler(1)
	require.NoError(t, m.BoostNatural(p, s, []int{0}, 0, 0))

	// 40 steps at dt=0.25 is one half-life.
	m.Update(p, 40, 0.25)
	assert.InDelta(t, 0.4, p.Imm[0][0], 1e-12)
	assert.Equal(t, 0.8, p.PeakImm[0][0], "peak is preserved")
}

func TestProtectionCombinesSources(t *testing.T) {
	m := newTestModel(t)
	p, err := pop.NewPeople(1, 2, 1, 3)
	require.NoError(t, err)
	require.NoError(t, m.SetLevel(p, []int{0}, 0, 0.5, 0))

	assert.InDelta(t, 0.5, m.Protection(p, 0, 0), 1e-12)
	assert.InDelta(t, 0.15, m.Protection(p, 0, 1), 1e-12, "cross immunity scales the level")
	assert.InDelta(t, 0.5, m.RelSusceptibility(p, 0, 0), 1e-12)
	assert.InDelta(t, 0.5, m.RelSevGrowth(p, 0, 0), 1e-12)
}

func TestProtectionAttenuatedAndClamped(t *testing.T) {
	m := newTestModel(t)
	p, err := pop.NewPeople(1, 2, 1, 3)
	require.NoError(t, err)
	require.NoError(t, m.SetLevel(p, []int{0}, 0, 0.8, 0))
	require.NoError(t, m.SetLevel(p, []int{0}, 2, 0.9, 0))

	// Both sources stack and clamp at 1.
	assert.Equal(t, 1.0, m.Protection(p, 0, 0))

	p.RelImm[0] = 0.5 // immunocompromised
	assert.InDelta(t, 0.5*(0.8+0.9*0.95), m.Protection(p, 0, 0), 1e-12)
}

func TestNaturalSourceLookup(t *testing.T) {
	m := newTestModel(t)
	assert.Equal(t, 0, m.NaturalSource(0))
	assert.Equal(t, 1, m.NaturalSource(1))
	assert.Equal(t, -1, m.NaturalSource(5))
}

func TestUpdateSkipsUnset(t *testing.T) {
	m := newTestModel(t)
	p, err := pop.NewPeople(1, 2, 1, 3)
	require.NoError(t, err)
	m.Update(p, 100, 0.25)
	assert.True(t, math.IsNaN(p.DateImm[0][0]))
	assert.Equal(t, 0.0, p.Imm[0][0])
}
