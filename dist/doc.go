// Package dist provides seeded sampling from named parametric distributions.
//
// Distribution descriptors are a closed tagged union (Form plus two
// parameters); unknown tags are rejected with a SamplingError rather than
// silently defaulting. All randomness in the simulator flows through an
// explicitly owned Sampler so that runs are reproducible for a fixed seed.
package dist
