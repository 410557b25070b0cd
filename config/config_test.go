package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epiforge/stisim/dist"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestDefaultBuilds(t *testing.T) {
	cfg := Default()

	genotypes, err := cfg.BuildGenotypes()
	require.NoError(t, err)
	assert.Len(t, genotypes, 2)
	assert.Equal(t, "hr16", genotypes[0].Key)

	layers := cfg.BuildLayers()
	require.Len(t, layers, 2)
	assert.Equal(t, "marital", layers[0].Key)
	assert.NotNil(t, layers[0].Mixing)
	r, c := layers[0].Mixing.Weights.Dims()
	assert.Equal(t, len(cfg.Layers[0].Mixing.AgeBins), r)
	assert.Equal(t, r, c)

	imm, err := cfg.BuildImmunity()
	require.NoError(t, err)
	assert.Equal(t, 2, imm.NSources())
}

func TestBuildImmunityWithVaccine(t *testing.T) {
	cfg := Default()
	cfg.Immunity.Vaccines = []VaccineConfig{{
		Key:      "bivalent",
		ImmInit:  dist.Const(0.9),
		Decay:    cfg.Immunity.Decay,
		Efficacy: []float64{0.95, 0.9},
	}}
	require.NoError(t, cfg.Validate())

	imm, err := cfg.BuildImmunity()
	require.NoError(t, err)
	assert.Equal(t, 3, imm.NSources())
	assert.Equal(t, "bivalent", imm.Sources()[2].Key)
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"zero agents", func(c *Config) { c.NAgents = 0 }, "n_agents"},
		{"zero dt", func(c *Config) { c.Dt = 0 }, "dt"},
		{"end before start", func(c *Config) { c.EndYear = c.StartYear }, "end_year"},
		{"demography coarser than dt", func(c *Config) { c.DtDemog = c.Dt / 2 }, "dt_demog"},
		{"beta range", func(c *Config) { c.Beta = 1.5 }, "beta"},
		{"no genotypes", func(c *Config) { c.Genotypes = nil }, "genotypes"},
		{"duplicate genotype", func(c *Config) { c.Genotypes[1].Key = c.Genotypes[0].Key }, "genotypes[1].key"},
		{"unknown dist form", func(c *Config) { c.Genotypes[0].DurPrecin.Form = "cauchy" }, "genotypes[0]"},
		{"unknown severity form", func(c *Config) { c.Genotypes[0].Severity.Form = "cubic" }, "genotypes[0]"},
		{"unsupported severity method", func(c *Config) { c.Genotypes[0].Severity.Method = "secant" }, "genotypes[0]"},
		{"init prev range", func(c *Config) { c.Genotypes[0].InitPrev = 2 }, "genotypes[0].init_prev"},
		{"no layers", func(c *Config) { c.Layers = nil }, "layers"},
		{"duplicate layer", func(c *Config) { c.Layers[1].Key = c.Layers[0].Key }, "layers[1].key"},
		{"retirement before peak", func(c *Config) { c.Layers[0].Retirement = 20 }, "layers[0].retirement"},
		{"ragged mixing", func(c *Config) { c.Layers[0].Mixing.Weights = c.Layers[0].Mixing.Weights[:3] }, "layers[0].mixing"},
		{"unknown decay", func(c *Config) { c.Immunity.Decay.Form = "linear" }, "immunity.decay"},
		{"cross matrix shape", func(c *Config) { c.Immunity.CrossImmunity = [][]float64{{1}} }, "immunity.cross_immunity"},
		{"vaccine efficacy length", func(c *Config) {
			c.Immunity.Vaccines = []VaccineConfig{{Key: "v", ImmInit: dist.Const(0.9), Decay: c.Immunity.Decay, Efficacy: []float64{0.9}}}
		}, "immunity.vaccines[0].efficacy"},
		{"missing deaths", func(c *Config) { c.Demography.Deaths = nil }, "demography.deaths"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			var cerr *ConfigurationError
			require.ErrorAs(t, err, &cerr, "expected a configuration error")
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestParseYAMLOverlaysDefaults(t *testing.T) {
	doc := []byte(`
seed: 99
n_agents: 500
beta: 0.1
`)
	cfg, err := ParseYAML(doc)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), cfg.Seed)
	assert.Equal(t, 500, cfg.NAgents)
	assert.Equal(t, 0.1, cfg.Beta)
	assert.Len(t, cfg.Genotypes, 2, "unset sections keep defaults")
}

func TestParseYAMLRejectsInvalid(t *testing.T) {
	_, err := ParseYAML([]byte("n_agents: -5\n"))
	var cerr *ConfigurationError
	require.ErrorAs(t, err, &cerr)

	_, err = ParseYAML([]byte("n_agents: [not, a, number]\n"))
	assert.Error(t, err)
}

func TestParseHJSON(t *testing.T) {
	doc := []byte(`
{
  // comments are allowed in hjson
  seed: 7
  n_agents: 250
}
`)
	cfg, err := ParseHJSON(doc)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), cfg.Seed)
	assert.Equal(t, 250, cfg.NAgents)
}

func TestLoadDispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("seed: 11\n"), 0o644))
	cfg, err := Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), cfg.Seed)

	hjsonPath := filepath.Join(dir, "scenario.hjson")
	require.NoError(t, os.WriteFile(hjsonPath, []byte("{seed: 12}\n"), 0o644))
	cfg, err = Load(hjsonPath)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), cfg.Seed)

	txtPath := filepath.Join(dir, "scenario.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("seed: 13\n"), 0o644))
	_, err = Load(txtPath)
	var cerr *ConfigurationError
	require.ErrorAs(t, err, &cerr)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestGenotypeIndex(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 0, cfg.GenotypeIndex("hr16"))
	assert.Equal(t, 1, cfg.GenotypeIndex("hr18"))
	assert.Equal(t, -1, cfg.GenotypeIndex("nope"))
}
