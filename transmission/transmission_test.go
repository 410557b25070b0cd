package transmission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/epiforge/stisim/disease"
	"github.com/epiforge/stisim/dist"
	"github.com/epiforge/stisim/immunity"
	"github.com/epiforge/stisim/network"
	"github.com/epiforge/stisim/pop"
)

const testDt = 0.25

func testModels(t *testing.T) (*disease.Model, *immunity.Model) {
	t.Helper()
	imm, err := immunity.NewModel([]immunity.Source{{
		Key:      "g0",
		Kind:     immunity.SourceNatural,
		Genotype: 0,
		InitDist: dist.Const(1),
		Decay:    immunity.Decay{Form: immunity.DecayNone},
	}}, mat.NewDense(1, 1, []float64{1}), 1)
	require.NoError(t, err)

	d, err := disease.NewModel([]disease.Genotype{{
		Key:          "g0",
		RelBeta:      1,
		DurPrecin:    dist.Const(1),
		DurInfection: dist.Const(10),
		DurInvasive:  dist.Const(1),
		Severity:     disease.SeverityFn{Form: disease.SevLogf2, Rate: 0.4, Method: disease.MethodAnalytic},
		SeroProb:     1,
	}}, 0, 0, imm)
	require.NoError(t, err)
	return d, imm
}

// chain builds agents 0 (infectious female), 1 (male) and 2 (female) with
// edges 0-1 and 1-2 in one layer, acts high enough that transmission at
// pAct=1 is certain.
func chain(t *testing.T) (*pop.People, *network.Network) {
	t.Helper()
	p, err := pop.NewPeople(3, 1, 1, 1)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		p.Age[i] = 25
		p.Debut[i] = 16
	}
	p.Sex[1] = pop.Male

	p.Susceptible[0][0] = false
	p.Infectious[0][0] = true

	net, err := network.New([]network.LayerParams{{
		Key:          "all",
		Duration:     dist.Const(100),
		Acts:         dist.Const(100),
		ActivityPeak: 30,
		Retirement:   75,
	}})
	require.NoError(t, err)
	layer := net.Layers()[0]
	layer.Edges = append(layer.Edges,
		network.Edge{F: 0, M: 1, Start: 0, End: 100, Acts: 100},
		network.Edge{F: 2, M: 1, Start: 0, End: 100, Acts: 100},
	)
	p.CurrentPartners[0][0] = 1
	p.CurrentPartners[0][1] = 2
	p.CurrentPartners[0][2] = 1
	return p, net
}

func TestNewEngineValidation(t *testing.T) {
	d, imm := testModels(t)
	_, err := NewEngine(1.2, 0, d, imm)
	assert.Error(t, err)
	_, err = NewEngine(0.5, -0.1, d, imm)
	assert.Error(t, err)
	_, err = NewEngine(0.5, 0.5, nil, imm)
	assert.Error(t, err)
}

func TestStepCertainTransmission(t *testing.T) {
	d, imm := testModels(t)
	e, err := NewEngine(1, 0, d, imm)
	require.NoError(t, err)
	p, net := chain(t)

	flows, err := e.Step(p, dist.NewSampler(1), net, 1, testDt)
	require.NoError(t, err)
	assert.Equal(t, 1, flows[0].Infections)
	assert.True(t, p.Infectious[0][1], "direct partner is infected at certainty")
}

func TestStepSnapshotBlocksWithinStepChains(t *testing.T) {
	d, imm := testModels(t)
	e, err := NewEngine(1, 0, d, imm)
	require.NoError(t, err)
	p, net := chain(t)

	_, err = e.Step(p, dist.NewSampler(1), net, 1, testDt)
	require.NoError(t, err)
	assert.True(t, p.Infectious[0][1])
	assert.False(t, p.Infectious[0][2], "agent infected this step must not transmit onward")
	assert.True(t, p.Susceptible[0][2])

	// The following step, the chain continues.
	flows, err := e.Step(p, dist.NewSampler(1), net, 2, testDt)
	require.NoError(t, err)
	assert.Equal(t, 1, flows[0].Infections)
	assert.True(t, p.Infectious[0][2])
}

func TestStepZeroBetaTransmitsNothing(t *testing.T) {
	d, imm := testModels(t)
	e, err := NewEngine(0, 0, d, imm)
	require.NoError(t, err)
	p, net := chain(t)

	flows, err := e.Step(p, dist.NewSampler(1), net, 1, testDt)
	require.NoError(t, err)
	assert.Equal(t, 0, flows[0].Infections)
}

func TestStepImmunityBlocks(t *testing.T) {
	d, imm := testModels(t)
	e, err := NewEngine(1, 0, d, imm)
	require.NoError(t, err)
	p, net := chain(t)
	require.NoError(t, imm.SetLevel(p, []int{1}, 0, 1, 0))

	flows, err := e.Step(p, dist.NewSampler(1), net, 1, testDt)
	require.NoError(t, err)
	assert.Equal(t, 0, flows[0].Infections)
	assert.False(t, p.Infectious[0][1], "fully protected partner stays uninfected")
}

func TestStepFullCondomUseBlocks(t *testing.T) {
	d, imm := testModels(t)
	e, err := NewEngine(1, 1, d, imm)
	require.NoError(t, err)
	p, net := chain(t)
	params := net.Params()
	params[0].Condoms = 1

	flows, err := e.Step(p, dist.NewSampler(1), net, 1, testDt)
	require.NoError(t, err)
	assert.Equal(t, 0, flows[0].Infections)
}

func TestStepSkipsDeadEndpoints(t *testing.T) {
	d, imm := testModels(t)
	e, err := NewEngine(1, 0, d, imm)
	require.NoError(t, err)
	p, net := chain(t)
	require.NoError(t, p.Remove([]int{1}, pop.CauseBackground, 0))

	flows, err := e.Step(p, dist.NewSampler(1), net, 1, testDt)
	require.NoError(t, err)
	assert.Equal(t, 0, flows[0].Infections)
}

func TestPInfect(t *testing.T) {
	assert.Equal(t, 0.0, pInfect(0, 10))
	assert.Equal(t, 0.0, pInfect(0.5, 0))
	assert.InDelta(t, 1.0, pInfect(1, 1), 1e-12)

	// Two whole acts plus a half act at p=0.5:
	// escape = 0.5^2 * (1 - 0.25) = 0.1875.
	assert.InDelta(t, 1-0.1875, pInfect(0.5, 2.5), 1e-12)

	// More acts never lower the risk.
	assert.Greater(t, pInfect(0.1, 5), pInfect(0.1, 2))
	assert.Greater(t, pInfect(0.1, 2.5), pInfect(0.1, 2))
}
