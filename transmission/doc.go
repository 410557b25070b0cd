// Package transmission computes per-edge, per-genotype force of infection
// over the active partnership network and applies the resulting infections.
//
// The per-act probability combines the base transmissibility, the genotype's
// relative transmissibility, condom protection on the layer, the source's
// individual transmissibility and the target's susceptibility modifiers,
// including immunity-derived protection. The per-step act count splits into a
// whole part, applied as repeated independent acts, and a fractional part,
// applied as a single discounted act.
//
// Targets are snapshotted before any infection is applied, so an agent
// infected earlier in the same step cannot onward-transmit within the step.
package transmission
