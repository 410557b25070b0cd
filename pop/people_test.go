package pop

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPeople(t *testing.T, n int) *People {
	t.Helper()
	p, err := NewPeople(n, 2, 2, 2)
	require.NoError(t, err)
	return p
}

func TestNewPeopleDefaults(t *testing.T) {
	p := newTestPeople(t, 3)
	assert.Equal(t, 3, p.Len())
	assert.Equal(t, 3, p.CountAlive())
	for g := 0; g < p.NGenotypes(); g++ {
		for i := 0; i < p.Len(); i++ {
			assert.True(t, p.Susceptible[g][i])
			assert.False(t, p.Infectious[g][i])
			assert.True(t, math.IsNaN(p.DateExposed[g][i]))
		}
	}
	assert.Equal(t, 1.0, p.RelSus[0])
}

func TestNewPeopleRejectsNegative(t *testing.T) {
	_, err := NewPeople(-1, 1, 1, 1)
	var oor *OutOfRangeError
	require.ErrorAs(t, err, &oor)
}

func TestGrowAssignsFreshUIDs(t *testing.T) {
	p := newTestPeople(t, 2)
	inds, err := p.Grow(2)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, inds)
	assert.Equal(t, 4, p.Len())
	seen := map[int64]bool{}
	for _, uid := range p.UID {
		assert.False(t, seen[uid], "uid %d reused", uid)
		seen[uid] = true
	}
}

func TestRemoveWipesFutureDates(t *testing.T) {
	p := newTestPeople(t, 2)
	p.Susceptible[0][0] = false
	p.Infectious[0][0] = true
	p.DateInfectious[0][0] = 2  // already happened
	p.DateGrade1[0][0] = 10     // pending
	p.DateClearance[0][0] = 15  // pending
	p.DateDeadDisease[0][0] = 3 // already happened

	require.NoError(t, p.Remove([]int{0}, CauseBackground, 5))

	assert.False(t, p.Alive[0])
	assert.Equal(t, CauseBackground, p.DeathCause[0])
	assert.Equal(t, 5.0, p.DateDead[0])
	assert.False(t, p.Infectious[0][0])
	assert.Equal(t, 2.0, p.DateInfectious[0][0], "past dates must survive")
	assert.Equal(t, 3.0, p.DateDeadDisease[0][0], "past dates must survive")
	assert.True(t, math.IsNaN(p.DateGrade1[0][0]), "future dates must be wiped")
	assert.True(t, math.IsNaN(p.DateClearance[0][0]), "future dates must be wiped")
}

func TestRemoveKeepsInvasiveFlag(t *testing.T) {
	p := newTestPeople(t, 1)
	p.Susceptible[0][0] = false
	p.Invasive[0][0] = true
	p.DateInvasive[0][0] = 1

	require.NoError(t, p.Remove([]int{0}, CauseDisease, 4))
	assert.True(t, p.Invasive[0][0])
	assert.Equal(t, 1.0, p.DateInvasive[0][0])
}

func TestRemoveValidation(t *testing.T) {
	p := newTestPeople(t, 1)
	assert.Error(t, p.Remove([]int{0}, Cause("unknown"), 0))
	var oor *OutOfRangeError
	assert.ErrorAs(t, p.Remove([]int{5}, CauseBackground, 0), &oor)
}

func TestRemoveIdempotent(t *testing.T) {
	p := newTestPeople(t, 1)
	require.NoError(t, p.Remove([]int{0}, CauseBackground, 2))
	require.NoError(t, p.Remove([]int{0}, CauseDisease, 3))
	// The first removal wins.
	assert.Equal(t, CauseBackground, p.DeathCause[0])
	assert.Equal(t, 2.0, p.DateDead[0])
}

func TestCheckStatesExclusivity(t *testing.T) {
	p := newTestPeople(t, 2)
	require.NoError(t, p.CheckStates(0))

	p.Infectious[0][0] = true // still susceptible too
	var sie *StateInvariantError
	require.ErrorAs(t, p.CheckStates(0), &sie)
	assert.Equal(t, 0, sie.Agent)

	p.Susceptible[0][0] = false
	require.NoError(t, p.CheckStates(0))
}

func TestCheckStatesSingleGrade(t *testing.T) {
	p := newTestPeople(t, 1)
	p.Susceptible[0][0] = false
	p.Infectious[0][0] = true
	p.Grade1[0][0] = true
	p.Grade2[0][0] = true
	var sie *StateInvariantError
	require.ErrorAs(t, p.CheckStates(0), &sie)
}

func TestCheckStatesInvasiveTerminality(t *testing.T) {
	p := newTestPeople(t, 1)
	p.Susceptible[0][0] = false
	p.Invasive[0][0] = true
	p.Susceptible[1][0] = false

	require.NoError(t, p.CheckStates(10))

	p.Susceptible[1][0] = true
	var sie *StateInvariantError
	require.ErrorAs(t, p.CheckStates(10), &sie)

	p.Susceptible[1][0] = false
	p.DateGrade1[1][0] = 20 // pending date on another genotype
	require.ErrorAs(t, p.CheckStates(10), &sie)
}

func TestCompact(t *testing.T) {
	p := newTestPeople(t, 4)
	p.Age[3] = 33
	uid3 := p.UID[3]
	p.Infectious[1][3] = true
	p.Susceptible[1][3] = false
	require.NoError(t, p.Remove([]int{1, 2}, CauseBackground, 1))

	remap := p.Compact()

	assert.Equal(t, 2, p.Len())
	assert.Equal(t, map[int]int{0: 0, 3: 1}, remap)
	assert.Equal(t, uid3, p.UID[1])
	assert.Equal(t, 33.0, p.Age[1])
	assert.True(t, p.Infectious[1][1])
	assert.False(t, p.Susceptible[1][1])
	assert.Equal(t, 2, p.CountAlive())
}

func TestView(t *testing.T) {
	p := newTestPeople(t, 2)
	p.Sex[1] = Male
	p.Age[1] = 40
	p.Infectious[0][1] = true
	p.Susceptible[0][1] = false

	v, err := p.View(1)
	require.NoError(t, err)
	assert.Equal(t, Male, v.Sex)
	assert.Equal(t, 40.0, v.Age)
	assert.True(t, v.Genotypes[0].Infectious)
	assert.False(t, v.Genotypes[0].Susceptible)
	assert.True(t, math.IsNaN(v.DateInvasiveAny))

	_, err = p.View(9)
	assert.Error(t, err)
}

func TestDateInvasiveAny(t *testing.T) {
	p := newTestPeople(t, 1)
	assert.True(t, math.IsNaN(p.DateInvasiveAny(0)))

	p.DateInvasive[0][0] = 12
	p.DateInvasive[1][0] = 8
	assert.Equal(t, 8.0, p.DateInvasiveAny(0))

	v, err := p.View(0)
	require.NoError(t, err)
	assert.Equal(t, 8.0, v.DateInvasiveAny)
}

func TestIsActive(t *testing.T) {
	p := newTestPeople(t, 1)
	p.Age[0] = 14
	p.Debut[0] = 16
	assert.False(t, p.IsActive(0))
	p.Age[0] = 16
	assert.True(t, p.IsActive(0))
	p.Alive[0] = false
	assert.False(t, p.IsActive(0))
}
