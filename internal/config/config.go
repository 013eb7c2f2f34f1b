// Package config holds rulekit's typed, YAML-loadable engine configuration
// (spec §4.8/§4.11/§5 "configurable"): the default conflict-resolution
// strategy, the forward-engine cycle cap, backward-engine search defaults,
// the parallel executor's worker count, and the log level. It follows the
// teacher's internal/config nested-struct-plus-DefaultConfig convention
// (theRebelliousNerd-codenerd internal/config/config.go), scaled down from
// that package's dozen domain-specific sub-configs to the handful of knobs
// this engine actually exposes.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ForwardConfig configures the forward-chaining driver (spec §4.8, §5.3).
type ForwardConfig struct {
	// DefaultStrategy names the agenda's initial conflict-resolution
	// strategy: salience, lex, mea, depth, breadth, simplicity,
	// complexity, or random.
	DefaultStrategy string `yaml:"default_strategy"`
	// MaxCycles safety-caps the agenda loop; exceeding it is normal
	// termination with Result.LimitHit set, never an error.
	MaxCycles int `yaml:"max_cycles"`
	// Parallel enables the dependency-analyzed parallel activation
	// executor (spec §5.3) instead of firing one activation at a time.
	Parallel bool `yaml:"parallel"`
	// Workers bounds parallel batch concurrency; <=0 means unbounded.
	Workers int `yaml:"workers"`
	// RandomSeed seeds the deterministic Random strategy (spec §4.7).
	RandomSeed int64 `yaml:"random_seed"`
}

// BackwardConfig configures the backward-chaining driver (spec §4.11).
type BackwardConfig struct {
	// MaxDepth caps proof-search recursion before DepthExceeded.
	MaxDepth int `yaml:"max_depth"`
	// Strategy names the search traversal: dfs, bfs, or iddfs.
	Strategy string `yaml:"strategy"`
	// SolutionCap bounds all-solutions search.
	SolutionCap int `yaml:"solution_cap"`
	// Trace enables opt-in proof-tree recording (zero overhead when off).
	Trace bool `yaml:"trace"`
}

// LoggingConfig controls the ambient structured logger (internal/rlog).
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Development selects zap's human-readable console encoder instead of
	// the production JSON encoder.
	Development bool `yaml:"development"`
}

// EngineConfig is the top-level configuration for one rulekit Engine
// (internal/engine), covering every knob spec.md calls out as
// "configurable" across §4.8, §4.11, and §5.
type EngineConfig struct {
	Forward  ForwardConfig  `yaml:"forward"`
	Backward BackwardConfig `yaml:"backward"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DefaultConfig returns rulekit's out-of-the-box configuration: salience
// strategy, a ten-thousand-cycle forward cap, depth-first backward search
// capped at 64, tracing off, info-level production logging.
func DefaultConfig() EngineConfig {
	return EngineConfig{
		Forward: ForwardConfig{
			DefaultStrategy: "salience",
			MaxCycles:       10000,
			Parallel:        false,
			Workers:         0,
			RandomSeed:      1,
		},
		Backward: BackwardConfig{
			MaxDepth:    64,
			Strategy:    "dfs",
			SolutionCap: 1,
			Trace:       false,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Development: false,
		},
	}
}

// Load reads and parses an EngineConfig from a YAML file at path, filling
// any fields the file omits with DefaultConfig's values.
func Load(path string) (EngineConfig, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the configuration's numeric knobs are within
// sane operating ranges, the way the teacher's ValidateCoreLimits does for
// its own resource-limit struct.
func (c EngineConfig) Validate() error {
	if c.Forward.MaxCycles < 1 {
		return fmt.Errorf("config: forward.max_cycles must be >= 1")
	}
	if c.Backward.MaxDepth < 1 {
		return fmt.Errorf("config: backward.max_depth must be >= 1")
	}
	if c.Backward.SolutionCap < 1 {
		return fmt.Errorf("config: backward.solution_cap must be >= 1")
	}
	switch c.Backward.Strategy {
	case "dfs", "bfs", "iddfs":
	default:
		return fmt.Errorf("config: backward.strategy %q not one of dfs, bfs, iddfs", c.Backward.Strategy)
	}
	return nil
}
