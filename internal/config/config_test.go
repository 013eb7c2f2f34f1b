package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidateRejectsOutOfRangeFields(t *testing.T) {
	cases := []struct {
		name string
		edit func(*EngineConfig)
	}{
		{"max_cycles", func(c *EngineConfig) { c.Forward.MaxCycles = 0 }},
		{"max_depth", func(c *EngineConfig) { c.Backward.MaxDepth = 0 }},
		{"solution_cap", func(c *EngineConfig) { c.Backward.SolutionCap = 0 }},
		{"strategy", func(c *EngineConfig) { c.Backward.Strategy = "bogus" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.edit(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFillsOmittedFieldsFromDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rulekit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
forward:
  max_cycles: 500
logging:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Forward.MaxCycles)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, DefaultConfig().Forward.DefaultStrategy, cfg.Forward.DefaultStrategy)
	assert.Equal(t, DefaultConfig().Backward.MaxDepth, cfg.Backward.MaxDepth)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
