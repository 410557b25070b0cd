package disease

import (
	"fmt"
	"math"
)

// Severity cut-points mapping accumulated severity to clinical grade.
// Severity below CutGrade2 is grade 1, then grade 2, grade 3, and invasive
// disease at CutInvasive.
const (
	CutGrade2   = 0.33
	CutGrade3   = 0.67
	CutInvasive = 0.99
)

// SevForm identifies a severity-growth functional form.
type SevForm string

const (
	// SevLogf2 is a logistic growth: sev(t) = 2/(1+exp(-k*t)) - 1.
	SevLogf2 SevForm = "logf2"
	// SevLinear is linear growth clamped at 1: sev(t) = min(1, k*t).
	SevLinear SevForm = "linear"
)

// Method selects how grade crossing times are derived from the severity
// function.
type Method string

const (
	// MethodAnalytic inverts the severity function in closed form.
	MethodAnalytic Method = "analytic"
	// MethodNumeric inverts by stepping a fixed time grid.
	MethodNumeric Method = "numeric"
)

// ErrUnsupportedMethod reports a (form, method) combination without an
// implementation. Raised at descriptor construction.
type ErrUnsupportedMethod struct {
	Form   string
	Method string
}

func (e *ErrUnsupportedMethod) Error() string {
	return fmt.Sprintf("disease: severity form %q does not support method %q", e.Form, e.Method)
}

// SeverityFn is a monotonic map from years since severity onset to a
// severity value in [0, 1).
type SeverityFn struct {
	Form SevForm `yaml:"form"`
	Rate float64 `yaml:"rate"` // Growth rate k per year
	// Method selects analytic or numeric inversion for crossing times.
	Method Method `yaml:"method"`
}

// numericGrid is the resolution of the numeric inversion fallback, in years.
const numericGrid = 1.0 / 128

// numericHorizon caps the numeric search; severities unreachable within this
// many years are treated as never crossed.
const numericHorizon = 120.0

// Validate rejects unknown tags and unsupported combinations.
func (f SeverityFn) Validate() error {
	switch f.Form {
	case SevLogf2, SevLinear:
	default:
		return fmt.Errorf("disease: unknown severity form %q", f.Form)
	}
	switch f.Method {
	case MethodAnalytic:
		// Both current forms have closed inverses; the gate remains so a
		// future form without one fails here instead of returning wrong
		// values.
	case MethodNumeric:
	default:
		return &ErrUnsupportedMethod{Form: string(f.Form), Method: string(f.Method)}
	}
	if f.Rate <= 0 {
		return fmt.Errorf("disease: severity rate must be positive, got %v", f.Rate)
	}
	return nil
}

// Sev returns the severity after t years of growth, with the agent's
// growth-rate modifier applied multiplicatively to the base rate.
func (f SeverityFn) Sev(t, rateMod float64) float64 {
	if t <= 0 {
		return 0
	}
	k := f.Rate * rateMod
	switch f.Form {
	case SevLogf2:
		return 2/(1+math.Exp(-k*t)) - 1
	case SevLinear:
		s := k * t
		if s > 1 {
			s = 1
		}
		return s
	default:
		return 0
	}
}

// TimeTo returns the years of growth needed to reach severity s under the
// given rate modifier, or +Inf when s is unreachable (e.g. zero modifier, or
// beyond the numeric horizon).
func (f SeverityFn) TimeTo(s, rateMod float64) float64 {
	if s <= 0 {
		return 0
	}
	k := f.Rate * rateMod
	if k <= 0 {
		return math.Inf(1)
	}
	switch f.Method {
	case MethodAnalytic:
		switch f.Form {
		case SevLogf2:
			if s >= 1 {
				return math.Inf(1)
			}
			return math.Log((1+s)/(1-s)) / k
		case SevLinear:
			return s / k
		}
	case MethodNumeric:
		for t := numericGrid; t <= numericHorizon; t += numericGrid {
			if f.Sev(t, rateMod) >= s {
				return t
			}
		}
		return math.Inf(1)
	}
	return math.Inf(1)
}
