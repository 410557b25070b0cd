package network

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/epiforge/stisim/demog"
	"github.com/epiforge/stisim/dist"
	"github.com/epiforge/stisim/pop"
)

// DefaultPrefWeight is the selection-weight multiplier for agents below
// their desired partner count. A weighted preference, not a hard cap.
const DefaultPrefWeight = 100.0

// Edge is one active partnership. Times are in simulation years.
type Edge struct {
	F     int     // Female agent index
	M     int     // Male agent index
	Start float64 // Formation time
	End   float64 // Scheduled dissolution time (Start + sampled duration)
	Acts  float64 // Age-scaled acts per year
}

// Layer is a named edge list.
type Layer struct {
	Key   string
	Edges []Edge
}

// Participation is the female age-participation-rate table for a layer.
type Participation struct {
	AgeBins []float64 `yaml:"age_bins"` // Ascending lower bounds
	Rates   []float64 `yaml:"rates"`    // Per-step participation probability per bin
}

// Validate checks the table shape.
func (p *Participation) Validate() error {
	if len(p.AgeBins) == 0 || len(p.AgeBins) != len(p.Rates) {
		return fmt.Errorf("network: participation table needs matching non-empty bins and rates")
	}
	return nil
}

// Mixing is an age-mixing matrix: rows are male age bins, columns female age
// bins, values relative likelihood of pairing. Zero-weight bins are excluded
// from candidate pools.
type Mixing struct {
	AgeBins []float64
	Weights *mat.Dense
}

// Validate checks matrix dimensions against the age bins.
func (m *Mixing) Validate() error {
	if len(m.AgeBins) == 0 || m.Weights == nil {
		return fmt.Errorf("network: mixing matrix needs age bins and weights")
	}
	r, c := m.Weights.Dims()
	if r != len(m.AgeBins) || c != len(m.AgeBins) {
		return fmt.Errorf("network: mixing matrix is %dx%d but there are %d age bins", r, c, len(m.AgeBins))
	}
	return nil
}

// LayerParams configures one partnership layer. Slice order must match the
// layer indexing on the population store.
type LayerParams struct {
	Key           string         // Layer name
	Duration      dist.Dist      // Partnership duration (years)
	Acts          dist.Dist      // Yearly act count before age scaling
	Condoms       float64        // Proportion of acts protected, read by transmission
	Participation *Participation // Female selection table; nil enables the uniform fallback
	Mixing        *Mixing        // Male age-mixing matrix; nil enables rank-order fallback
	ActivityPeak  float64        // Age of peak act rate
	Retirement    float64        // Age beyond which act rates reach zero
	PrefWeight    float64        // Underpartnered weight; 0 means DefaultPrefWeight
}

// Network holds all layers and their formation parameters.
type Network struct {
	layers []*Layer
	params []LayerParams
}

// New builds a network with one empty edge list per configured layer.
func New(params []LayerParams) (*Network, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("network: at least one layer is required")
	}
	n := &Network{params: params}
	for i := range params {
		if params[i].PrefWeight == 0 {
			params[i].PrefWeight = DefaultPrefWeight
		}
		if params[i].Participation != nil {
			if err := params[i].Participation.Validate(); err != nil {
				return nil, err
			}
		}
		if params[i].Mixing != nil {
			if err := params[i].Mixing.Validate(); err != nil {
				return nil, err
			}
		}
		n.layers = append(n.layers, &Layer{Key: params[i].Key})
	}
	n.params = params
	return n, nil
}

// Layers exposes the live edge lists, primarily for transmission and tests.
func (n *Network) Layers() []*Layer { return n.layers }

// Params returns the layer configuration.
func (n *Network) Params() []LayerParams { return n.params }

// LayerIndex returns the index for a layer key, or -1.
func (n *Network) LayerIndex(key string) int {
	for i, l := range n.layers {
		if l.Key == key {
			return i
		}
	}
	return -1
}

// DissolveDue removes every edge whose scheduled end has passed or whose
// endpoints are no longer alive, decrementing both endpoints' partner counts
// per removed edge. Returns dissolved counts per layer key.
func (n *Network) DissolveDue(p *pop.People, now float64) map[string]int {
	counts := make(map[string]int, len(n.layers))
	for li, layer := range n.layers {
		kept := layer.Edges[:0]
		dissolved := 0
		for _, e := range layer.Edges {
			if now > e.End || !p.Alive[e.F] || !p.Alive[e.M] {
				p.CurrentPartners[li][e.F]--
				p.CurrentPartners[li][e.M]--
				dissolved++
				continue
			}
			kept = append(kept, e)
		}
		layer.Edges = kept
		counts[layer.Key] = dissolved
	}
	return counts
}

// ageScaleActs scales a pair's yearly act count by the average age of the
// partners: acts ramp up from debut to the peak-activity age and decline
// linearly to zero at the retirement age. Post-retirement pairings therefore
// scale to zero and are discarded by the caller.
func ageScaleActs(acts, ageF, ageM, debutF, debutM, peak, retirement float64) float64 {
	avgAge := (ageF + ageM) / 2
	avgDebut := (debutF + debutM) / 2
	if avgAge >= retirement {
		return 0
	}
	if avgAge <= avgDebut {
		return 0
	}
	var factor float64
	if avgAge <= peak {
		factor = (avgAge - avgDebut) / (peak - avgDebut)
	} else {
		factor = (retirement - avgAge) / (retirement - peak)
	}
	if factor < 0 {
		factor = 0
	} else if factor > 1 {
		factor = 1
	}
	return math.Round(acts * factor)
}

// selectionWeights builds the base per-agent selection weights for a layer:
// zero for inactive agents, one for active, PrefWeight for active agents
// below their desired partner count in this layer.
func (n *Network) selectionWeights(p *pop.People, li int) []float64 {
	w := make([]float64, p.Len())
	pref := n.params[li].PrefWeight
	for i := range w {
		if !p.IsActive(i) {
			continue
		}
		w[i] = 1
		if float64(p.CurrentPartners[li][i]) < p.Partners[li][i] {
			w[i] = pref
		}
	}
	return w
}

// Form creates new partnerships for every layer. For layers with a
// participation table, females are selected by their age-bin participation
// rate; otherwise nNew[key] females are drawn by concurrency-preference
// weight. Males are matched through the mixing matrix when present, or by
// age rank order. Pairs whose age-scaled act count rounds to zero are
// discarded. Returns formed counts per layer key.
func (n *Network) Form(p *pop.People, s *dist.Sampler, now float64, nNew map[string]int) (map[string]int, error) {
	formed := make(map[string]int, len(n.layers))
	for li := range n.layers {
		cnt, err := n.formLayer(p, s, now, li, nNew[n.layers[li].Key])
		if err != nil {
			return nil, err
		}
		formed[n.layers[li].Key] = cnt
	}
	return formed, nil
}

func (n *Network) formLayer(p *pop.People, s *dist.Sampler, now float64, li, nNew int) (int, error) {
	params := n.params[li]
	weights := n.selectionWeights(p, li)

	females := n.selectFemales(p, s, li, weights, nNew)
	if len(females) == 0 {
		return 0, nil
	}

	males := n.selectMales(p, s, li, weights, females)

	count := 0
	for k := range females {
		f, m := females[k], males[k]
		if m < 0 {
			continue // No eligible male weight in this female's age bin
		}
		acts, err := s.Draw(params.Acts)
		if err != nil {
			return 0, err
		}
		scaled := ageScaleActs(acts, p.Age[f], p.Age[m], p.Debut[f], p.Debut[m], params.ActivityPeak, params.Retirement)
		if scaled <= 0 {
			continue
		}
		dur, err := s.Draw(params.Duration)
		if err != nil {
			return 0, err
		}
		if dur < 0 {
			dur = 0
		}
		n.layers[li].Edges = append(n.layers[li].Edges, Edge{
			F: f, M: m, Start: now, End: now + dur, Acts: scaled,
		})
		p.CurrentPartners[li][f]++
		p.CurrentPartners[li][m]++
		p.NRelationships[li][f]++
		p.NRelationships[li][m]++
		count++
	}
	return count, nil
}

// selectFemales picks the females entering new partnerships this step.
func (n *Network) selectFemales(p *pop.People, s *dist.Sampler, li int, weights []float64, nNew int) []int {
	params := n.params[li]

	if part := params.Participation; part != nil {
		// Eligible: active underpartnered females not already partnered in
		// another layer.
		var out []int
		for i := 0; i < p.Len(); i++ {
			if p.Sex[i] != pop.Female || !p.IsActive(i) {
				continue
			}
			if float64(p.CurrentPartners[li][i]) >= p.Partners[li][i] {
				continue
			}
			other := false
			for ol := 0; ol < p.NLayers(); ol++ {
				if ol != li && p.CurrentPartners[ol][i] > 0 {
					other = true
					break
				}
			}
			if other {
				continue
			}
			rate := part.Rates[demog.Digitize(p.Age[i], part.AgeBins)]
			if s.Bernoulli(rate) {
				out = append(out, i)
			}
		}
		return out
	}

	// Fallback: draw nNew females by preference weight.
	fw := make([]float64, len(weights))
	for i, w := range weights {
		if p.Sex[i] == pop.Female {
			fw[i] = w
		}
	}
	return s.ChooseWeighted(fw, nNew, true)
}

// selectMales matches one male per female. The returned slice is aligned
// with females; -1 marks a female with no eligible partner this step.
func (n *Network) selectMales(p *pop.People, s *dist.Sampler, li int, weights []float64, females []int) []int {
	params := n.params[li]

	mw := make([]float64, len(weights))
	var activeMales []int
	for i, w := range weights {
		if p.Sex[i] == pop.Male && p.IsActive(i) {
			mw[i] = w
			activeMales = append(activeMales, i)
		}
	}

	out := make([]int, len(females))

	if mix := params.Mixing; mix != nil {
		maleBins := make([]int, len(activeMales))
		for k, m := range activeMales {
			maleBins[k] = demog.Digitize(p.Age[m], mix.AgeBins)
		}
		for k, f := range females {
			fBin := demog.Digitize(p.Age[f], mix.AgeBins)
			// Weight candidate males by the female bin's age preference.
			cand := make([]float64, len(activeMales))
			hasWeight := false
			for j, m := range activeMales {
				w := mw[m] * mix.Weights.At(maleBins[j], fBin)
				cand[j] = w
				if w > 0 {
					hasWeight = true
				}
			}
			if !hasWeight {
				out[k] = -1 // Accepted boundary condition: no partner this step
				continue
			}
			picked := s.ChooseWeighted(cand, 1, false)
			out[k] = activeMales[picked[0]]
		}
		return out
	}

	// Fallback: draw as many males as females and pair in age rank order,
	// approximating assortative mixing.
	picked := s.ChooseWeighted(mw, len(females), true)
	fOrder := sortByAge(p, append([]int(nil), females...))
	mOrder := sortByAge(p, picked)
	byFemale := make(map[int]int, len(fOrder))
	for k := range fOrder {
		if k < len(mOrder) {
			byFemale[fOrder[k]] = mOrder[k]
		}
	}
	for k, f := range females {
		if m, ok := byFemale[f]; ok {
			out[k] = m
		} else {
			out[k] = -1
		}
	}
	return out
}

func sortByAge(p *pop.People, inds []int) []int {
	for i := 1; i < len(inds); i++ {
		for j := i; j > 0 && p.Age[inds[j]] < p.Age[inds[j-1]]; j-- {
			inds[j], inds[j-1] = inds[j-1], inds[j]
		}
	}
	return inds
}

// CheckPartnerCounts recomputes partner counts from the live edges and
// verifies they match the population store exactly.
func (n *Network) CheckPartnerCounts(p *pop.People) error {
	for li, layer := range n.layers {
		counts := make([]int, p.Len())
		for _, e := range layer.Edges {
			counts[e.F]++
			counts[e.M]++
		}
		for i, c := range counts {
			if p.CurrentPartners[li][i] != c {
				return &pop.StateInvariantError{
					Agent:    i,
					Genotype: -1,
					Message:  fmt.Sprintf("layer %q records %d partners but has %d active edges", layer.Key, p.CurrentPartners[li][i], c),
				}
			}
		}
	}
	return nil
}

// Remap rewrites edge endpoints after a population compaction. Edges that
// lost an endpoint to the compaction are dropped, and the surviving
// endpoint's partner count is decremented so the store stays reconciled with
// the edge lists.
func (n *Network) Remap(p *pop.People, remap map[int]int) {
	for li, layer := range n.layers {
		kept := layer.Edges[:0]
		for _, e := range layer.Edges {
			nf, okF := remap[e.F]
			nm, okM := remap[e.M]
			if !okF || !okM {
				if okF {
					p.CurrentPartners[li][nf]--
				}
				if okM {
					p.CurrentPartners[li][nm]--
				}
				continue
			}
			e.F, e.M = nf, nm
			kept = append(kept, e)
		}
		layer.Edges = kept
	}
}
