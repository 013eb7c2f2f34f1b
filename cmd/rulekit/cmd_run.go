package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rulekit/rulekit/internal/engine"
)

var (
	runFactsPath string
	runLimit     int
	runReset     bool
)

var runCmd = &cobra.Command{
	Use:   "run [rules.rl]",
	Short: "load RL rules, assert facts, and fire the forward-chaining agenda",
	Args:  cobra.ExactArgs(1),
	RunE:  runForward,
}

func init() {
	runCmd.Flags().StringVarP(&runFactsPath, "facts", "f", "", "JSON file of {type, data} facts to assert before running")
	runCmd.Flags().IntVarP(&runLimit, "limit", "l", 0, "max agenda cycles (0 = use config default)")
	runCmd.Flags().BoolVar(&runReset, "reset", false, "apply registered deffacts before asserting --facts")
}

func runForward(cmd *cobra.Command, args []string) error {
	source, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read rules file: %w", err)
	}

	eng, unit, err := engine.Load(string(source), engineCfg, logger)
	if err != nil {
		return err
	}
	logger.Info("loaded rule base",
		zap.Int("rules", len(unit.Rules)),
		zap.Int("templates", len(unit.Templates)),
		zap.Int("deffacts", len(unit.Deffacts)))

	if runReset {
		if err := eng.Reset(); err != nil {
			return err
		}
	}
	if err := loadFactsFile(eng, runFactsPath); err != nil {
		return err
	}

	result := eng.Run(cmd.Context(), runLimit)
	fmt.Printf("fired: %v\n", result.Fired)
	fmt.Printf("cycles: %d  limit_hit: %v  cancelled: %v\n", result.Cycles, result.LimitHit, result.Cancelled)
	return nil
}
