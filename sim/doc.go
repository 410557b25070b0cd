// Package sim wires the population, network, disease, immunity and
// co-infection models into a stepped simulation.
//
// A Sim is built from a validated configuration, initialized once, and then
// advanced step by step or run to completion. Each step follows a fixed phase
// order: demography and co-infection, partnership dissolution and formation,
// interventions, transmission, disease progression, immunity decay, and
// finally the flow commit with invariant checks. All randomness flows through
// a single seeded sampler, so runs with equal seeds and configurations
// produce identical trajectories.
package sim
