// Package demog holds the demographic calibration tables consumed by the
// simulation core: age- and sex-indexed mortality rates, crude birth rates,
// and the population trend used for migration. Tables are pure lookups with
// no simulation state; year lookup is nearest-calibration-year and age lookup
// is by digitized bin, matching how the rates are published.
package demog
