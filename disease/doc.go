// Package disease implements the per-genotype natural history of the primary
// pathogen: immutable genotype descriptors, the monotonic severity functions
// that map time since infection to clinical grade, and the date-gated state
// machine advancing infected agents through precancer grades to the invasive
// outcome, clearance or latency.
//
// Severity forms are a closed tagged union. Grade transition times are
// computed from the inverse of the severity function, either analytically or
// by a numeric grid inversion; requesting a combination without support fails
// at descriptor construction, never mid-run.
package disease
