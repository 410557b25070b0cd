package demog

import (
	"fmt"
	"sort"
)

// Digitize returns the index of the bin containing x, where bins holds
// ascending lower bounds. Values below the first bound map to bin 0 and
// values beyond the last bound map to the final bin.
func Digitize(x float64, bins []float64) int {
	if len(bins) == 0 {
		return 0
	}
	ix := sort.SearchFloat64s(bins, x)
	// SearchFloat64s returns the insertion point; step back unless x sits
	// exactly on a bound.
	if ix == len(bins) || bins[ix] != x {
		ix--
	}
	if ix < 0 {
		return 0
	}
	if ix >= len(bins) {
		return len(bins) - 1
	}
	return ix
}

// NearestYear returns the index of the calibration year closest to year.
// Years must be non-empty and ascending.
func NearestYear(years []float64, year float64) int {
	best := 0
	bestDist := year - years[0]
	if bestDist < 0 {
		bestDist = -bestDist
	}
	for i := 1; i < len(years); i++ {
		d := year - years[i]
		if d < 0 {
			d = -d
		}
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Interp linearly interpolates ys over xs at x, clamping outside the range.
func Interp(x float64, xs, ys []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	if x <= xs[0] {
		return ys[0]
	}
	if x >= xs[len(xs)-1] {
		return ys[len(ys)-1]
	}
	ix := sort.SearchFloat64s(xs, x)
	x0, x1 := xs[ix-1], xs[ix]
	y0, y1 := ys[ix-1], ys[ix]
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}

// RateTable is an age- and sex-indexed annual rate curve per calibration
// year, e.g. background mortality or secondary-pathogen incidence.
type RateTable struct {
	AgeBins []float64   `yaml:"age_bins"` // Ascending lower bounds
	Years   []float64   `yaml:"years"`    // Ascending calibration years
	Female  [][]float64 `yaml:"female"`   // [year][age bin]
	Male    [][]float64 `yaml:"male"`     // [year][age bin]
}

// Validate checks table dimensions.
func (t *RateTable) Validate() error {
	if len(t.Years) == 0 || len(t.AgeBins) == 0 {
		return fmt.Errorf("rate table requires at least one year and one age bin")
	}
	if len(t.Female) != len(t.Years) || len(t.Male) != len(t.Years) {
		return fmt.Errorf("rate table has %d years but %d female and %d male rows", len(t.Years), len(t.Female), len(t.Male))
	}
	for i := range t.Years {
		if len(t.Female[i]) != len(t.AgeBins) || len(t.Male[i]) != len(t.AgeBins) {
			return fmt.Errorf("rate table year %v has mismatched bin counts", t.Years[i])
		}
		if i > 0 && t.Years[i] <= t.Years[i-1] {
			return fmt.Errorf("rate table years must be ascending")
		}
	}
	for i := 1; i < len(t.AgeBins); i++ {
		if t.AgeBins[i] <= t.AgeBins[i-1] {
			return fmt.Errorf("rate table age bins must be ascending")
		}
	}
	return nil
}

// Rate returns the annual rate for the nearest calibration year, the given
// sex, and the age bin containing age.
func (t *RateTable) Rate(year float64, female bool, age float64) float64 {
	yi := NearestYear(t.Years, year)
	ai := Digitize(age, t.AgeBins)
	if female {
		return t.Female[yi][ai]
	}
	return t.Male[yi][ai]
}

// BirthSeries is a crude-birth-rate series (births per 1000 alive per year),
// linearly interpolated between calibration years.
type BirthSeries struct {
	Years []float64 `yaml:"years"`
	Rates []float64 `yaml:"rates"` // Per 1000 alive
}

// Validate checks the series shape.
func (b *BirthSeries) Validate() error {
	if len(b.Years) == 0 || len(b.Years) != len(b.Rates) {
		return fmt.Errorf("birth series requires matching non-empty years and rates")
	}
	for i := 1; i < len(b.Years); i++ {
		if b.Years[i] <= b.Years[i-1] {
			return fmt.Errorf("birth series years must be ascending")
		}
	}
	return nil
}

// Rate returns the interpolated crude birth rate per person per year.
func (b *BirthSeries) Rate(year float64) float64 {
	return Interp(year, b.Years, b.Rates) / 1e3
}

// PopTrend is the target population size over time, used to derive net
// migration. Years outside the data range yield no migration.
type PopTrend struct {
	Years []float64 `yaml:"years"`
	Sizes []float64 `yaml:"sizes"`
}

// Validate checks the trend shape.
func (p *PopTrend) Validate() error {
	if len(p.Years) == 0 || len(p.Years) != len(p.Sizes) {
		return fmt.Errorf("population trend requires matching non-empty years and sizes")
	}
	for i := 1; i < len(p.Years); i++ {
		if p.Years[i] <= p.Years[i-1] {
			return fmt.Errorf("population trend years must be ascending")
		}
	}
	return nil
}

// InRange reports whether year falls inside the data range.
func (p *PopTrend) InRange(year float64) bool {
	return year >= p.Years[0] && year <= p.Years[len(p.Years)-1]
}

// Size returns the interpolated population size at year.
func (p *PopTrend) Size(year float64) float64 {
	return Interp(year, p.Years, p.Sizes)
}
