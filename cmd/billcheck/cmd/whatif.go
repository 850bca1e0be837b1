package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lvonguyen/bill-insights/internal/whatif"
)

var (
	scenarioPlan    int
	scenarioAddOns  []int
	disableVAS      bool
	blockPremiumSMS bool
	topK            int
)

// whatifCmd prices one scenario
var whatifCmd = &cobra.Command{
	Use:   "whatif USER_ID PERIOD",
	Short: "Recompute a bill under a different plan, add-ons or toggles",
	Long: `Recompute a bill with the same measured usage under a candidate
configuration.

Examples:
  billcheck whatif 1001 2025-08 --plan 2 --disable-vas
  billcheck whatif 1001 2025-08 --addon 101 --addon 102`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, period, err := parseUserPeriod(args)
		if err != nil {
			return err
		}

		sc := whatif.Scenario{
			AddOns:          scenarioAddOns,
			DisableVAS:      disableVAS,
			BlockPremiumSMS: blockPremiumSMS,
		}
		if cmd.Flags().Changed("plan") {
			sc.PlanID = &scenarioPlan
		}

		r, err := current.engine.EvaluateScenario(cmd.Context(), userID, period, sc)
		if err != nil {
			return fmt.Errorf("failed to evaluate scenario: %w", err)
		}
		return writeJSON(cmd.OutOrStdout(), r)
	},
}

// topCmd searches the scenario grid
var topCmd = &cobra.Command{
	Use:   "top USER_ID PERIOD",
	Short: "List the cheapest scenarios for a bill",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, period, err := parseUserPeriod(args)
		if err != nil {
			return err
		}
		results, err := current.engine.SearchTopScenarios(cmd.Context(), userID, period, topK)
		if err != nil {
			return fmt.Errorf("failed to search scenarios: %w", err)
		}
		return writeJSON(cmd.OutOrStdout(), results)
	},
}

// autofixCmd recommends the best-saving scenario
var autofixCmd = &cobra.Command{
	Use:   "autofix USER_ID PERIOD",
	Short: "Recommend the configuration with the largest saving",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, period, err := parseUserPeriod(args)
		if err != nil {
			return err
		}
		rec, err := current.engine.Recommend(cmd.Context(), userID, period)
		if err != nil {
			return fmt.Errorf("failed to recommend: %w", err)
		}
		current.logger.Debug("Recommendation", zap.String("rationale", rec.Rationale))
		return writeJSON(cmd.OutOrStdout(), rec)
	},
}

func init() {
	whatifCmd.Flags().IntVar(&scenarioPlan, "plan", 0, "plan id (default keeps the current plan)")
	whatifCmd.Flags().IntSliceVar(&scenarioAddOns, "addon", nil, "add-on pack id, repeatable")
	whatifCmd.Flags().BoolVar(&disableVAS, "disable-vas", false, "cancel value-added services")
	whatifCmd.Flags().BoolVar(&blockPremiumSMS, "block-premium-sms", false, "block premium SMS")

	topCmd.Flags().IntVarP(&topK, "top", "k", 0, "number of scenarios (default from config)")
}
