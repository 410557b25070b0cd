package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hjson/hjson-go/v4"
	"gopkg.in/yaml.v3"

	"github.com/epiforge/stisim/coinfect"
	"github.com/epiforge/stisim/demog"
	"github.com/epiforge/stisim/dist"
	"github.com/epiforge/stisim/immunity"
)

// ConfigurationError reports an invalid or inconsistent configuration value.
type ConfigurationError struct {
	Field   string // Dotted path of the offending field
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error at %s: %s", e.Field, e.Message)
}

func errf(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// SeverityConfig describes a genotype's severity growth function.
type SeverityConfig struct {
	Form   string  `yaml:"form"`
	Rate   float64 `yaml:"rate"`
	Method string  `yaml:"method"`
}

// GenotypeConfig parameterizes one genotype.
type GenotypeConfig struct {
	Key          string         `yaml:"key"`
	RelBeta      float64        `yaml:"rel_beta"`
	DurPrecin    dist.Dist      `yaml:"dur_precin"`
	DurInfection dist.Dist      `yaml:"dur_infection"`
	DurInvasive  dist.Dist      `yaml:"dur_invasive"`
	Severity     SeverityConfig `yaml:"severity"`
	SeroProb     float64        `yaml:"sero_prob"`
	InitPrev     float64        `yaml:"init_prev"` // Seeded prevalence at initialization
	ImmInit      dist.Dist      `yaml:"imm_init"`  // Natural immunity level on seroconversion
}

// MixingConfig is the serializable form of an age-mixing matrix.
type MixingConfig struct {
	AgeBins []float64   `yaml:"age_bins"`
	Weights [][]float64 `yaml:"weights"` // [male bin][female bin]
}

// ParticipationConfig is the female age-participation table for a layer.
type ParticipationConfig struct {
	AgeBins []float64 `yaml:"age_bins"`
	Rates   []float64 `yaml:"rates"`
}

// LayerConfig parameterizes one partnership layer.
type LayerConfig struct {
	Key           string               `yaml:"key"`
	Partners      dist.Dist            `yaml:"partners"` // Desired concurrent partners
	Duration      dist.Dist            `yaml:"duration"` // Years
	Acts          dist.Dist            `yaml:"acts"`     // Per year before age scaling
	Condoms       float64              `yaml:"condoms"`
	Participation *ParticipationConfig `yaml:"participation"`
	Mixing        *MixingConfig        `yaml:"mixing"`
	ActivityPeak  float64              `yaml:"activity_peak"`
	Retirement    float64              `yaml:"retirement"`
	PrefWeight    float64              `yaml:"pref_weight"`
}

// VaccineConfig is one vaccine product: an immunity source with a per-genotype
// efficacy row in the cross-immunity matrix.
type VaccineConfig struct {
	Key      string         `yaml:"key"`
	ImmInit  dist.Dist      `yaml:"imm_init"`
	Decay    immunity.Decay `yaml:"decay"`
	Efficacy []float64      `yaml:"efficacy"` // One value per genotype, in config order
}

// ImmunityConfig groups the immunity settings.
type ImmunityConfig struct {
	Decay immunity.Decay `yaml:"decay"` // Kinetics of natural immunity
	// CrossImmunity is genotypes x genotypes for the natural sources; empty
	// defaults to the identity (no cross protection).
	CrossImmunity [][]float64     `yaml:"cross_immunity"`
	Vaccines      []VaccineConfig `yaml:"vaccines"`
}

// DemographyConfig groups the vital-dynamics inputs.
type DemographyConfig struct {
	Births    demog.BirthSeries `yaml:"births"`
	Deaths    *demog.RateTable  `yaml:"deaths"`
	Migration *demog.PopTrend   `yaml:"migration"` // Optional
	AgeDist   dist.Dist         `yaml:"age_dist"`  // Initial age structure
}

// Config is the full simulation configuration.
type Config struct {
	Seed    uint64 `yaml:"seed"`
	NAgents int    `yaml:"n_agents"`

	StartYear float64 `yaml:"start_year"`
	EndYear   float64 `yaml:"end_year"`
	Dt        float64 `yaml:"dt"`       // Years per step
	DtDemog   float64 `yaml:"dt_demog"` // Years between demography updates

	Beta             float64 `yaml:"beta"`
	EffCondoms       float64 `yaml:"eff_condoms"`
	LatentProb       float64 `yaml:"latent_prob"`
	ReactivationProb float64 `yaml:"reactivation_prob"`

	RelTransDist dist.Dist `yaml:"rel_trans"`    // Individual transmissibility draw
	DebutFemale  dist.Dist `yaml:"debut_female"` // Age of sexual debut
	DebutMale    dist.Dist `yaml:"debut_male"`

	Genotypes []GenotypeConfig `yaml:"genotypes"`
	Layers    []LayerConfig    `yaml:"layers"`

	Immunity   ImmunityConfig   `yaml:"immunity"`
	Demography DemographyConfig `yaml:"demography"`

	// Coinfection enables the secondary pathogen when present.
	Coinfection *coinfect.Params `yaml:"coinfection"`

	LogLevel  string  `yaml:"log_level"`
	TimeLimit float64 `yaml:"time_limit"` // Wall-clock seconds; 0 disables
}

// Load reads a configuration file, dispatching on extension: .yaml/.yml or
// .hjson/.json.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".hjson", ".json":
		return ParseHJSON(data)
	default:
		return nil, errf("file", "unsupported config extension %q", filepath.Ext(path))
	}
}

// ParseYAML decodes and validates a YAML configuration.
func ParseYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseHJSON decodes and validates an HJSON (or JSON) configuration. The
// document is re-encoded as YAML so field naming follows the yaml tags.
func ParseHJSON(data []byte) (*Config, error) {
	var raw any
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse hjson: %w", err)
	}
	buf, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("config: parse hjson: %w", err)
	}
	return ParseYAML(buf)
}

// Validate checks every field, table and tag. It is the single gate between a
// parsed document and a constructed simulation.
func (c *Config) Validate() error {
	if c.NAgents <= 0 {
		return errf("n_agents", "must be positive, got %d", c.NAgents)
	}
	if c.Dt <= 0 {
		return errf("dt", "must be positive, got %v", c.Dt)
	}
	if c.EndYear <= c.StartYear {
		return errf("end_year", "%v is not after start_year %v", c.EndYear, c.StartYear)
	}
	if c.DtDemog <= 0 {
		return errf("dt_demog", "must be positive, got %v", c.DtDemog)
	}
	if c.DtDemog < c.Dt {
		return errf("dt_demog", "%v is finer than dt %v", c.DtDemog, c.Dt)
	}
	for field, v := range map[string]float64{
		"beta": c.Beta, "eff_condoms": c.EffCondoms,
		"latent_prob": c.LatentProb, "reactivation_prob": c.ReactivationProb,
	} {
		if v < 0 || v > 1 {
			return errf(field, "%v outside [0,1]", v)
		}
	}
	for field, d := range map[string]dist.Dist{
		"rel_trans": c.RelTransDist, "debut_female": c.DebutFemale, "debut_male": c.DebutMale,
		"demography.age_dist": c.Demography.AgeDist,
	} {
		if err := d.Validate(); err != nil {
			return errf(field, "%v", err)
		}
	}

	if len(c.Genotypes) == 0 {
		return errf("genotypes", "at least one genotype is required")
	}
	seen := map[string]bool{}
	for gi, g := range c.Genotypes {
		field := fmt.Sprintf("genotypes[%d]", gi)
		if g.Key == "" {
			return errf(field+".key", "key is required")
		}
		if seen[g.Key] {
			return errf(field+".key", "duplicate genotype key %q", g.Key)
		}
		seen[g.Key] = true
		if g.InitPrev < 0 || g.InitPrev > 1 {
			return errf(field+".init_prev", "%v outside [0,1]", g.InitPrev)
		}
		if dg, err := g.Build(); err != nil {
			return errf(field, "%v", err)
		} else if err := dg.Validate(); err != nil {
			return errf(field, "%v", err)
		}
		if err := g.ImmInit.Validate(); err != nil {
			return errf(field+".imm_init", "%v", err)
		}
	}

	if len(c.Layers) == 0 {
		return errf("layers", "at least one layer is required")
	}
	seenLayer := map[string]bool{}
	for li, l := range c.Layers {
		field := fmt.Sprintf("layers[%d]", li)
		if l.Key == "" {
			return errf(field+".key", "key is required")
		}
		if seenLayer[l.Key] {
			return errf(field+".key", "duplicate layer key %q", l.Key)
		}
		seenLayer[l.Key] = true
		for sub, d := range map[string]dist.Dist{".partners": l.Partners, ".duration": l.Duration, ".acts": l.Acts} {
			if err := d.Validate(); err != nil {
				return errf(field+sub, "%v", err)
			}
		}
		if l.Condoms < 0 || l.Condoms > 1 {
			return errf(field+".condoms", "%v outside [0,1]", l.Condoms)
		}
		if l.Retirement <= l.ActivityPeak {
			return errf(field+".retirement", "%v is not after activity_peak %v", l.Retirement, l.ActivityPeak)
		}
		if l.Mixing != nil {
			if len(l.Mixing.Weights) != len(l.Mixing.AgeBins) {
				return errf(field+".mixing", "weights have %d rows for %d age bins", len(l.Mixing.Weights), len(l.Mixing.AgeBins))
			}
			for _, row := range l.Mixing.Weights {
				if len(row) != len(l.Mixing.AgeBins) {
					return errf(field+".mixing", "weights row has %d columns for %d age bins", len(row), len(l.Mixing.AgeBins))
				}
			}
		}
		if l.Participation != nil && len(l.Participation.AgeBins) != len(l.Participation.Rates) {
			return errf(field+".participation", "age_bins and rates differ in length")
		}
	}

	if err := c.Immunity.Decay.Validate(); err != nil {
		return errf("immunity.decay", "%v", err)
	}
	nG := len(c.Genotypes)
	if len(c.Immunity.CrossImmunity) > 0 {
		if len(c.Immunity.CrossImmunity) != nG {
			return errf("immunity.cross_immunity", "%d rows for %d genotypes", len(c.Immunity.CrossImmunity), nG)
		}
		for _, row := range c.Immunity.CrossImmunity {
			if len(row) != nG {
				return errf("immunity.cross_immunity", "row has %d columns for %d genotypes", len(row), nG)
			}
		}
	}
	for vi, v := range c.Immunity.Vaccines {
		field := fmt.Sprintf("immunity.vaccines[%d]", vi)
		if v.Key == "" {
			return errf(field+".key", "key is required")
		}
		if err := v.Decay.Validate(); err != nil {
			return errf(field+".decay", "%v", err)
		}
		if err := v.ImmInit.Validate(); err != nil {
			return errf(field+".imm_init", "%v", err)
		}
		if len(v.Efficacy) != nG {
			return errf(field+".efficacy", "%d values for %d genotypes", len(v.Efficacy), nG)
		}
	}

	if c.Demography.Deaths == nil {
		return errf("demography.deaths", "death rate table is required")
	}
	if err := c.Demography.Deaths.Validate(); err != nil {
		return errf("demography.deaths", "%v", err)
	}
	if err := c.Demography.Births.Validate(); err != nil {
		return errf("demography.births", "%v", err)
	}
	if c.Demography.Migration != nil {
		if err := c.Demography.Migration.Validate(); err != nil {
			return errf("demography.migration", "%v", err)
		}
	}

	if c.Coinfection != nil {
		if _, err := coinfect.NewModel(*c.Coinfection); err != nil {
			return errf("coinfection", "%v", err)
		}
	}
	return nil
}

// GenotypeIndex returns the index of a genotype key, or -1.
func (c *Config) GenotypeIndex(key string) int {
	for i, g := range c.Genotypes {
		if g.Key == key {
			return i
		}
	}
	return -1
}
