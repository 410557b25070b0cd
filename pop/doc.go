// Package pop implements the agent database as a structure of arrays: one
// slot per agent, parallel columns for every state variable, boolean state
// vectors per genotype, and float dates (NaN meaning unscheduled) driving the
// date-gated transitions elsewhere in the core.
//
// Agents are never physically removed during a run; death and emigration
// clear the alive flag and wipe strictly-future scheduled dates, preserving
// already-elapsed dates for downstream accounting. Physical slot reclamation
// only happens through the explicit Compact call.
package pop
