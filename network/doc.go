// Package network maintains the multi-layer sexual partnership network: one
// edge list per layer (e.g. marital, casual, one-off), each edge carrying
// formation time, scheduled dissolution time and an act rate. Every step the
// orchestrator dissolves edges that expired or lost an endpoint, then forms
// new ones under age-participation, age-mixing and concurrency-preference
// weighting. Partner counts on the population store are kept exactly equal to
// the number of active edges touching each agent.
package network
