// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing populations, networks and distribution
// descriptors. These helpers are intentionally minimal and are not intended
// for production usage.
package testutil

import (
	"github.com/epiforge/stisim/dist"
	"github.com/epiforge/stisim/network"
	"github.com/epiforge/stisim/pop"
)

// PeopleBuilder provides a fluent helper for constructing small populations
// in tests. Example:
//
//	p := NewPeopleBuilder().Agents(4).Genotypes(2).Female(0, 25).Male(1, 30).Build()
//
// Chain only the parts you need; sensible defaults are applied.
type PeopleBuilder struct {
	n          int
	genotypes  int
	layers     int
	immSources int
	setups     []func(p *pop.People)
}

// NewPeopleBuilder creates a builder for a two-agent, one-genotype,
// one-layer population.
func NewPeopleBuilder() *PeopleBuilder {
	return &PeopleBuilder{n: 2, genotypes: 1, layers: 1, immSources: 1}
}

// Agents sets the number of agent slots (chainable).
func (b *PeopleBuilder) Agents(n int) *PeopleBuilder { b.n = n; return b }

// Genotypes sets the genotype count (chainable).
func (b *PeopleBuilder) Genotypes(n int) *PeopleBuilder { b.genotypes = n; return b }

// Layers sets the partnership layer count (chainable).
func (b *PeopleBuilder) Layers(n int) *PeopleBuilder { b.layers = n; return b }

// ImmSources sets the immunity source count (chainable).
func (b *PeopleBuilder) ImmSources(n int) *PeopleBuilder { b.immSources = n; return b }

// Female makes agent i a female of the given age, already past debut (chainable).
func (b *PeopleBuilder) Female(i int, age float64) *PeopleBuilder {
	b.setups = append(b.setups, func(p *pop.People) {
		p.Sex[i] = pop.Female
		p.Age[i] = age
		p.Debut[i] = 16
	})
	return b
}

// Male makes agent i a male of the given age, already past debut (chainable).
func (b *PeopleBuilder) Male(i int, age float64) *PeopleBuilder {
	b.setups = append(b.setups, func(p *pop.People) {
		p.Sex[i] = pop.Male
		p.Age[i] = age
		p.Debut[i] = 16
	})
	return b
}

// Partners sets agent i's desired partner count on layer l (chainable).
func (b *PeopleBuilder) Partners(i, l int, n float64) *PeopleBuilder {
	b.setups = append(b.setups, func(p *pop.People) { p.Partners[l][i] = n })
	return b
}

// Infectious marks agent i infectious with genotype g (chainable).
func (b *PeopleBuilder) Infectious(i, g int) *PeopleBuilder {
	b.setups = append(b.setups, func(p *pop.People) {
		p.Susceptible[g][i] = false
		p.Infectious[g][i] = true
		p.DateExposed[g][i] = 0
		p.DateInfectious[g][i] = 0
	})
	return b
}

// Build constructs the population, panicking on invalid shapes since a test
// builder misuse is a programming error.
func (b *PeopleBuilder) Build() *pop.People {
	p, err := pop.NewPeople(b.n, b.genotypes, b.layers, b.immSources)
	if err != nil {
		panic(err)
	}
	for _, fn := range b.setups {
		fn(p)
	}
	return p
}

// SingleLayerNetwork returns a one-layer network with fixed edge duration and
// act count, no participation or mixing tables, suitable for deterministic
// formation tests.
func SingleLayerNetwork(duration, acts float64) *network.Network {
	n, err := network.New([]network.LayerParams{{
		Key:          "all",
		Duration:     dist.Const(duration),
		Acts:         dist.Const(acts),
		ActivityPeak: 30,
		Retirement:   75,
	}})
	if err != nil {
		panic(err)
	}
	return n
}
