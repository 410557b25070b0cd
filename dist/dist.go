package dist

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Form identifies a supported parametric distribution.
type Form string

const (
	// FormConst always returns Par1.
	FormConst Form = "const"
	// FormUniform draws uniformly between Par1 and Par2.
	FormUniform Form = "uniform"
	// FormNormal draws from a normal with mean Par1 and std Par2.
	FormNormal Form = "normal"
	// FormNormalPos draws from a normal truncated at zero (redraw on negative).
	FormNormalPos Form = "normal_pos"
	// FormNormalInt draws from a normal and rounds to the nearest integer.
	FormNormalInt Form = "normal_int"
	// FormLogNormal draws from a lognormal parameterized by the mean Par1 and
	// std Par2 of the resulting distribution (not of the underlying normal).
	FormLogNormal Form = "lognormal"
	// FormLogNormalInt is FormLogNormal rounded to the nearest integer.
	FormLogNormalInt Form = "lognormal_int"
	// FormWeibull draws from a Weibull with shape Par1 and scale Par2.
	FormWeibull Form = "weibull"
	// FormBeta draws from a beta with alpha Par1 and beta Par2.
	FormBeta Form = "beta"
	// FormPoisson draws from a Poisson with rate Par1 (Par2 unused).
	FormPoisson Form = "poisson"
	// FormNegBinomial draws from a negative binomial with mean Par1 and
	// dispersion Par2, realized as a gamma-Poisson mixture.
	FormNegBinomial Form = "neg_binomial"
)

// knownForms is the closed set of accepted distribution tags.
var knownForms = map[Form]bool{
	FormConst: true, FormUniform: true, FormNormal: true, FormNormalPos: true,
	FormNormalInt: true, FormLogNormal: true, FormLogNormalInt: true,
	FormWeibull: true, FormBeta: true, FormPoisson: true, FormNegBinomial: true,
}

// Dist describes a distribution to draw from: a form tag plus up to two
// parameters, whose meaning depends on the form.
type Dist struct {
	Form Form    `yaml:"form" json:"form"`
	Par1 float64 `yaml:"par1" json:"par1"`
	Par2 float64 `yaml:"par2" json:"par2"`
}

// Const is shorthand for a degenerate distribution returning v.
func Const(v float64) Dist { return Dist{Form: FormConst, Par1: v} }

// Validate checks that the form tag is recognized.
func (d Dist) Validate() error {
	if !knownForms[d.Form] {
		return &SamplingError{Form: string(d.Form), Message: "unrecognized distribution form"}
	}
	return nil
}

// SamplingError reports a request for an unrecognized or invalid distribution.
type SamplingError struct {
	Form    string // Offending form tag
	Message string // Error message
}

func (e *SamplingError) Error() string {
	return fmt.Sprintf("sampling error for form %q: %s", e.Form, e.Message)
}

// Sampler owns a seeded random source and draws from distribution
// descriptors. It is not safe for concurrent use; the simulation steps are
// single-threaded.
type Sampler struct {
	src *rand.Rand
}

// NewSampler creates a Sampler seeded with the given seed.
func NewSampler(seed uint64) *Sampler {
	return &Sampler{src: rand.New(rand.NewSource(seed))}
}

// Reseed resets the underlying stream. Used to restore reproducibility after
// population construction, mirroring reseeding at well-defined boundaries only.
func (s *Sampler) Reseed(seed uint64) {
	s.src = rand.New(rand.NewSource(seed))
}

// Float64 returns a uniform draw in [0, 1).
func (s *Sampler) Float64() float64 { return s.src.Float64() }

// Intn returns a uniform draw in [0, n).
func (s *Sampler) Intn(n int) int { return s.src.Intn(n) }

// Draw samples a single value from d.
func (s *Sampler) Draw(d Dist) (float64, error) {
	switch d.Form {
	case FormConst:
		return d.Par1, nil
	case FormUniform:
		return d.Par1 + (d.Par2-d.Par1)*s.src.Float64(), nil
	case FormNormal:
		return distuv.Normal{Mu: d.Par1, Sigma: d.Par2, Src: s.src}.Rand(), nil
	case FormNormalPos:
		n := distuv.Normal{Mu: d.Par1, Sigma: d.Par2, Src: s.src}
		for {
			if v := n.Rand(); v >= 0 {
				return v, nil
			}
		}
	case FormNormalInt:
		return math.Round(distuv.Normal{Mu: d.Par1, Sigma: d.Par2, Src: s.src}.Rand()), nil
	case FormLogNormal, FormLogNormalInt:
		v, err := s.logNormal(d.Par1, d.Par2)
		if err != nil {
			return 0, err
		}
		if d.Form == FormLogNormalInt {
			v = math.Round(v)
		}
		return v, nil
	case FormWeibull:
		if d.Par1 <= 0 || d.Par2 <= 0 {
			return 0, &SamplingError{Form: string(d.Form), Message: "weibull shape and scale must be positive"}
		}
		return distuv.Weibull{K: d.Par1, Lambda: d.Par2, Src: s.src}.Rand(), nil
	case FormBeta:
		return distuv.Beta{Alpha: d.Par1, Beta: d.Par2, Src: s.src}.Rand(), nil
	case FormPoisson:
		return distuv.Poisson{Lambda: d.Par1, Src: s.src}.Rand(), nil
	case FormNegBinomial:
		return s.negBinomial(d.Par1, d.Par2)
	default:
		return 0, &SamplingError{Form: string(d.Form), Message: "unrecognized distribution form"}
	}
}

// DrawN samples n values from d.
func (s *Sampler) DrawN(d Dist, n int) ([]float64, error) {
	if n < 0 {
		return nil, &SamplingError{Form: string(d.Form), Message: fmt.Sprintf("cannot draw %d samples", n)}
	}
	out := make([]float64, n)
	for i := range out {
		v, err := s.Draw(d)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// logNormal converts the desired mean and std of the lognormal into the
// underlying normal's parameters before drawing.
func (s *Sampler) logNormal(mean, std float64) (float64, error) {
	if mean <= 0 {
		return 0, &SamplingError{Form: string(FormLogNormal), Message: "lognormal mean must be positive"}
	}
	sigma2 := math.Log(std*std/(mean*mean) + 1)
	mu := math.Log(mean) - sigma2/2
	return distuv.LogNormal{Mu: mu, Sigma: math.Sqrt(sigma2), Src: s.src}.Rand(), nil
}

// negBinomial draws NB(mean, dispersion) as Poisson(Gamma(k, mean/k)).
func (s *Sampler) negBinomial(mean, dispersion float64) (float64, error) {
	if mean < 0 || dispersion <= 0 {
		return 0, &SamplingError{Form: string(FormNegBinomial), Message: "mean must be >=0 and dispersion >0"}
	}
	if mean == 0 {
		return 0, nil
	}
	lambda := distuv.Gamma{Alpha: dispersion, Beta: dispersion / mean, Src: s.src}.Rand()
	return distuv.Poisson{Lambda: lambda, Src: s.src}.Rand(), nil
}

// Bernoulli returns true with probability p.
func (s *Sampler) Bernoulli(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return s.src.Float64() < p
}

// BernoulliEach performs one independent trial per probability.
func (s *Sampler) BernoulliEach(probs []float64) []bool {
	out := make([]bool, len(probs))
	for i, p := range probs {
		out[i] = s.Bernoulli(p)
	}
	return out
}

// Filter keeps each index with probability p.
func (s *Sampler) Filter(p float64, inds []int) []int {
	var kept []int
	for _, ix := range inds {
		if s.Bernoulli(p) {
			kept = append(kept, ix)
		}
	}
	return kept
}

// Choose selects k distinct values from [0, n) uniformly without replacement.
func (s *Sampler) Choose(n, k int) []int {
	if k >= n {
		k = n
	}
	perm := s.src.Perm(n)
	return perm[:k]
}

// ChooseWeighted selects n indices from weights proportionally. With
// unique=true the selection is without replacement. Zero-weight entries are
// never selected; if fewer than n positive weights exist under unique
// selection, only that many indices are returned.
func (s *Sampler) ChooseWeighted(weights []float64, n int, unique bool) []int {
	w := make([]float64, len(weights))
	copy(w, weights)
	total := 0.0
	positive := 0
	for _, v := range w {
		if v > 0 {
			total += v
			positive++
		}
	}
	if total <= 0 || n <= 0 {
		return nil
	}
	if unique && n > positive {
		n = positive
	}
	out := make([]int, 0, n)
	for len(out) < n {
		target := s.src.Float64() * total
		acc := 0.0
		picked := -1
		for i, v := range w {
			if v <= 0 {
				continue
			}
			acc += v
			if target < acc {
				picked = i
				break
			}
		}
		if picked < 0 { // Floating point edge: take the last positive weight
			for i := len(w) - 1; i >= 0; i-- {
				if w[i] > 0 {
					picked = i
					break
				}
			}
		}
		out = append(out, picked)
		if unique {
			total -= w[picked]
			w[picked] = 0
		}
	}
	return out
}

// RandRound rounds x to one of its neighboring integers with probability
// proportional to proximity, preserving expectations for small rates.
func (s *Sampler) RandRound(x float64) int {
	base := math.Floor(x)
	out := int(base)
	if s.src.Float64() < x-base {
		out++
	}
	return out
}
