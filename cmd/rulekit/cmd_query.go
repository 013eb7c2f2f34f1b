package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rulekit/rulekit/internal/engine"
	"github.com/rulekit/rulekit/internal/value"
)

var (
	queryFactsPath string
	queryReadOnly  bool
)

var queryCmd = &cobra.Command{
	Use:   "query [rules.rl] [goal expression]",
	Short: "load RL rules, assert facts, and prove a backward-chaining goal",
	Args:  cobra.ExactArgs(2),
	RunE:  runBackward,
}

func init() {
	queryCmd.Flags().StringVarP(&queryFactsPath, "facts", "f", "", "JSON file of {type, data} facts to assert before querying")
	queryCmd.Flags().BoolVar(&queryReadOnly, "read-only", false, "don't fire deriving rules' actions, just report provability")
}

func runBackward(cmd *cobra.Command, args []string) error {
	source, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read rules file: %w", err)
	}
	goalText := args[1]

	eng, _, err := engine.Load(string(source), engineCfg, logger)
	if err != nil {
		return err
	}
	if err := loadFactsFile(eng, queryFactsPath); err != nil {
		return err
	}

	result, err := eng.Query(cmd.Context(), goalText, queryReadOnly)
	if err != nil {
		return err
	}

	fmt.Printf("provable: %v  cancelled: %v\n", result.Provable, result.Cancelled)
	for i, sol := range result.Solutions {
		fmt.Printf("solution %d:", i)
		for _, name := range sol.Names() {
			v, _ := sol.Get(name)
			fmt.Printf(" %s=%s", name, value.Display(v))
		}
		fmt.Println()
	}
	return nil
}
