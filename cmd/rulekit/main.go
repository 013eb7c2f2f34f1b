// Command rulekit is a thin demonstration CLI over the engine package: load
// an RL source file, assert facts from a JSON file, then either run the
// forward-chaining agenda to completion or prove a backward-chaining
// query. The interesting engine/rule/fact/proof machinery all lives under
// internal/; this command only wires flags to it, the way the teacher's
// cmd/nerd/main.go is a thin cobra root plus one cmd_*.go file per verb
// (theRebelliousNerd-codenerd cmd/nerd).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rulekit/rulekit/internal/config"
	"github.com/rulekit/rulekit/internal/rlog"
)

var (
	verbose    bool
	configPath string
	logger     *zap.Logger
	engineCfg  config.EngineConfig
)

var rootCmd = &cobra.Command{
	Use:   "rulekit",
	Short: "rulekit - a forward + backward chaining rule engine",
	Long: `rulekit loads Rule Language (RL) source, asserts facts, and either
fires matching rules (forward chaining) or proves a goal against the rule
base (backward chaining).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.DefaultConfig()
		if configPath != "" {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
		}
		if verbose {
			cfg.Logging.Level = "debug"
			cfg.Logging.Development = true
		}
		engineCfg = cfg

		built, err := rlog.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = built
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug-level logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to an EngineConfig YAML file")
	rootCmd.AddCommand(runCmd, queryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
