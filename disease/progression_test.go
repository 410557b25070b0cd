package disease

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/epiforge/stisim/dist"
	"github.com/epiforge/stisim/immunity"
	"github.com/epiforge/stisim/pop"
)

const testDt = 0.25

func testImmunity(t *testing.T, nGenotypes int) *immunity.Model {
	t.Helper()
	sources := make([]immunity.Source, nGenotypes)
	cross := mat.NewDense(nGenotypes, nGenotypes, nil)
	for g := 0; g < nGenotypes; g++ {
		sources[g] = immunity.Source{
			Key:      "g",
			Kind:     immunity.SourceNatural,
			Genotype: g,
			InitDist: dist.Const(0.8),
			Decay:    immunity.Decay{Form: immunity.DecayNone},
		}
		cross.Set(g, g, 1)
	}
	m, err := immunity.NewModel(sources, cross, nGenotypes)
	require.NoError(t, err)
	return m
}

func testGenotype(key string) Genotype {
	return Genotype{
		Key:          key,
		RelBeta:      1,
		DurPrecin:    dist.Const(0.5),
		DurInfection: dist.Const(10),
		DurInvasive:  dist.Const(1),
		Severity:     SeverityFn{Form: SevLogf2, Rate: 2.0, Method: MethodAnalytic},
		SeroProb:     1,
	}
}

func newTestModel(t *testing.T, latentProb, reactivationProb float64) (*Model, *pop.People, *dist.Sampler) {
	t.Helper()
	imm := testImmunity(t, 2)
	m, err := NewModel([]Genotype{testGenotype("hr16"), testGenotype("hr18")}, latentProb, reactivationProb, imm)
	require.NoError(t, err)
	p, err := pop.NewPeople(4, 2, 1, 2)
	require.NoError(t, err)
	for i := 0; i < p.Len(); i++ {
		p.Age[i] = 25
		p.Debut[i] = 16
	}
	p.Sex[1] = pop.Male
	return m, p, dist.NewSampler(1)
}

func TestNewModelValidation(t *testing.T) {
	imm := testImmunity(t, 1)
	_, err := NewModel(nil, 0, 0, imm)
	assert.Error(t, err)

	gt := testGenotype("dup")
	_, err = NewModel([]Genotype{gt, gt}, 0, 0, imm)
	assert.Error(t, err)

	_, err = NewModel([]Genotype{testGenotype("a")}, 1.5, 0, imm)
	assert.Error(t, err)

	_, err = NewModel([]Genotype{testGenotype("a")}, 0, 0, nil)
	assert.Error(t, err)
}

func TestInfectSchedulesFemaleProgression(t *testing.T) {
	m, p, s := newTestModel(t, 0, 0)
	flow, err := m.Infect(p, s, []int{0}, 0, 0, testDt, ReasonSeed)
	require.NoError(t, err)
	assert.Equal(t, 1, flow.Infections)
	assert.Equal(t, 1, flow.InfectionsF)
	assert.Equal(t, 0, flow.InfectionsM)
	assert.Equal(t, 0, flow.Reinfections)

	assert.False(t, p.Susceptible[0][0])
	assert.True(t, p.Infectious[0][0])
	assert.Equal(t, 0.0, p.DateExposed[0][0])
	assert.Equal(t, 0.0, p.DateInfectious[0][0])

	// Onset after ceil(0.5y / 0.25y) = 2 steps, grades strictly ordered.
	assert.Equal(t, 2.0, p.DateGrade1[0][0])
	assert.Less(t, p.DateGrade1[0][0], p.DateGrade2[0][0])
	assert.Less(t, p.DateGrade2[0][0], p.DateGrade3[0][0])
	assert.Less(t, p.DateGrade3[0][0], p.DateInvasive[0][0])
	assert.Greater(t, p.DateClearance[0][0], p.DateGrade1[0][0])
}

func TestInfectMaleClearsWithoutGrades(t *testing.T) {
	m, p, s := newTestModel(t, 0, 0)
	_, err := m.Infect(p, s, []int{1}, 0, 0, testDt, ReasonSeed)
	require.NoError(t, err)

	assert.True(t, p.Infectious[0][1])
	assert.Equal(t, 2.0, p.DateClearance[0][1])
	assert.True(t, math.IsNaN(p.DateGrade1[0][1]))
	assert.True(t, math.IsNaN(p.DateInvasive[0][1]))
}

func TestInfectDeduplicatesAndCountsReinfection(t *testing.T) {
	m, p, s := newTestModel(t, 0, 0)
	flow, err := m.Infect(p, s, []int{0, 0, 2}, 0, 0, testDt, ReasonSeed)
	require.NoError(t, err)
	assert.Equal(t, 2, flow.Infections, "duplicate index infects once")

	// Already infectious: a second call is a no-op.
	flow, err = m.Infect(p, s, []int{0}, 0, 1, testDt, ReasonTransmission)
	require.NoError(t, err)
	assert.Equal(t, 0, flow.Infections)

	// Clear and reinfect: the prior exposure marks it a reinfection.
	cleared, _, err := m.CheckClearance(p, s, 0, p.DateClearance[0][0])
	require.NoError(t, err)
	require.Contains(t, cleared, 0)
	flow, err = m.Infect(p, s, []int{0}, 0, 50, testDt, ReasonTransmission)
	require.NoError(t, err)
	assert.Equal(t, 1, flow.Infections)
	assert.Equal(t, 1, flow.Reinfections)
}

// walk runs every date-gated transition from step 0 through tEnd.
func walk(t *testing.T, m *Model, p *pop.People, s *dist.Sampler, g int, tEnd float64) {
	t.Helper()
	for step := 0.0; step <= tEnd; step++ {
		m.CheckGrade1(p, g, step)
		m.CheckGrade2(p, g, step)
		m.CheckGrade3(p, g, step)
		_, err := m.CheckInvasive(p, s, g, step, testDt)
		require.NoError(t, err)
		require.NoError(t, p.CheckStates(step))
	}
}

func TestGradeProgressionIsExclusive(t *testing.T) {
	m, p, s := newTestModel(t, 0, 0)
	_, err := m.Infect(p, s, []int{0}, 0, 0, testDt, ReasonSeed)
	require.NoError(t, err)

	walk(t, m, p, s, 0, p.DateGrade3[0][0])
	assert.True(t, p.Grade3[0][0])
	assert.False(t, p.Grade1[0][0])
	assert.False(t, p.Grade2[0][0])
	assert.True(t, p.Infectious[0][0], "graded agents remain infectious")
}

func TestInvasiveTransitionIsTerminal(t *testing.T) {
	m, p, s := newTestModel(t, 0, 0)
	_, err := m.Infect(p, s, []int{0}, 0, 0, testDt, ReasonSeed)
	require.NoError(t, err)
	_, err = m.Infect(p, s, []int{0}, 1, 0, testDt, ReasonSeed)
	require.NoError(t, err)

	tInv := p.DateInvasive[0][0]
	walk(t, m, p, s, 0, tInv)

	assert.True(t, p.Invasive[0][0])
	assert.False(t, p.Infectious[0][0])
	assert.False(t, p.Grade3[0][0])
	for g := 0; g < 2; g++ {
		assert.False(t, p.Susceptible[g][0], "invasive disease ends susceptibility to genotype %d", g)
	}
	assert.False(t, p.Infectious[1][0], "concurrent infection is wiped")
	assert.True(t, math.IsNaN(p.DateGrade1[1][0]))
	assert.True(t, math.IsNaN(p.DateClearance[1][0]))
	assert.False(t, math.IsNaN(p.DateDeadDisease[0][0]))

	// Death fires exactly at its scheduled step.
	tDead := p.DateDeadDisease[0][0]
	dead, err := m.CheckDiseaseDeaths(p, tDead-1)
	require.NoError(t, err)
	assert.Empty(t, dead)
	dead, err = m.CheckDiseaseDeaths(p, tDead)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, dead)
	assert.Equal(t, pop.CauseDisease, p.DeathCause[0])
}

func TestClearanceRestoresSusceptibilityAndBoosts(t *testing.T) {
	m, p, s := newTestModel(t, 0, 0)
	_, err := m.Infect(p, s, []int{0}, 0, 0, testDt, ReasonSeed)
	require.NoError(t, err)

	tClear := p.DateClearance[0][0]
	cleared, latent, err := m.CheckClearance(p, s, 0, tClear)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, cleared)
	assert.Empty(t, latent)

	assert.True(t, p.Susceptible[0][0])
	assert.False(t, p.Infectious[0][0])
	assert.Equal(t, 0.8, p.Imm[0][0], "seroconversion boosts natural immunity")
	assert.True(t, math.IsNaN(p.DateInvasive[0][0]), "pending dates are wiped on clearance")
}

func TestClearanceToLatencyAndReactivation(t *testing.T) {
	m, p, s := newTestModel(t, 1, 1)
	_, err := m.Infect(p, s, []int{0}, 0, 0, testDt, ReasonSeed)
	require.NoError(t, err)

	tClear := p.DateClearance[0][0]
	cleared, latent, err := m.CheckClearance(p, s, 0, tClear)
	require.NoError(t, err)
	assert.Empty(t, cleared)
	assert.Equal(t, []int{0}, latent)
	assert.True(t, p.Latent[0][0])
	assert.False(t, p.Susceptible[0][0])
	assert.True(t, math.IsNaN(p.DateClearance[0][0]))

	// Reactivation probability 1 per year over dt=0.25 is not certain per
	// step, so drive until it fires.
	fired := false
	for step := tClear + 1; step < tClear+200 && !fired; step++ {
		flow, err := m.CheckReactivation(p, s, 0, step, testDt)
		require.NoError(t, err)
		if flow.Reactivations > 0 {
			fired = true
			assert.Equal(t, 1, flow.Infections)
		}
	}
	require.True(t, fired)
	assert.True(t, p.Infectious[0][0])
	assert.False(t, p.Latent[0][0])
}

func TestAccumulateDurations(t *testing.T) {
	m, p, s := newTestModel(t, 0, 0)
	_, err := m.Infect(p, s, []int{0}, 0, 0, testDt, ReasonSeed)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		m.AccumulateDurations(p, testDt)
	}
	assert.InDelta(t, 1.0, p.DurDisease[0][0], 1e-12)
	assert.Equal(t, 0.0, p.DurDisease[0][2], "uninfected agents accumulate nothing")
}

func TestGenotypeValidate(t *testing.T) {
	g := testGenotype("ok")
	assert.NoError(t, g.Validate())

	bad := testGenotype("")
	assert.Error(t, bad.Validate())

	bad = testGenotype("neg")
	bad.RelBeta = -1
	assert.Error(t, bad.Validate())

	bad = testGenotype("sero")
	bad.SeroProb = 1.2
	assert.Error(t, bad.Validate())

	bad = testGenotype("dist")
	bad.DurPrecin = dist.Dist{Form: "cauchy"}
	assert.Error(t, bad.Validate())
}
