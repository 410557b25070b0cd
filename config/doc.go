// Package config defines the serializable simulation configuration, its
// validation, and the conversion into the domain models.
//
// Configurations load from YAML or HJSON files. HJSON input is decoded
// through the YAML path so field names are declared once, on the yaml tags.
// Validation is front-loaded: every tag, table shape and probability is
// checked before a simulation is constructed, so unknown distribution forms,
// decay kinetics or severity methods surface as a ConfigurationError at
// initialization rather than a failure mid-run.
package config
