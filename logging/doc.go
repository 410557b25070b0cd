// Package logging provides a tiny abstraction over slog so the simulation
// core can depend on a minimal interface (Logger) while allowing callers to
// plug any structured logger. It also offers a richer SimLogger with
// contextual helpers (run, component, step) and domain specific logging
// helpers for timesteps and simulation phases.
package logging
