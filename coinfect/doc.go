// Package coinfect models an immunosuppressive secondary pathogen and its
// feedback on the primary disease.
//
// Agents acquire the co-infection from age-, sex- and year-specific incidence
// rates. A continuous immune-status marker declines along the untreated
// survival trajectory and reconstitutes under successful care; the marker's
// band sets the agent's relative susceptibility, severity-growth and immunity
// modifiers for the primary pathogen. Untreated and care-failed agents die at
// a sampled survival time.
package coinfect
