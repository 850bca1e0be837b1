package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lvonguyen/bill-insights/internal/chargeback"
	"github.com/lvonguyen/bill-insights/internal/normalizer"
)

var (
	baselineWindow int
	taxCSVPath     string
)

// baselineCmd prints the statistical baseline of a period
var baselineCmd = &cobra.Command{
	Use:   "baseline USER_ID PERIOD",
	Short: "Show the per-category baseline before a billing period",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, period, err := parseUserPeriod(args)
		if err != nil {
			return err
		}
		b, err := current.engine.GetBaseline(userID, period, baselineWindow)
		if err != nil {
			return fmt.Errorf("failed to build baseline: %w", err)
		}
		return writeJSON(cmd.OutOrStdout(), b)
	},
}

// anomalyCmd scores a bill against its baseline
var anomalyCmd = &cobra.Command{
	Use:   "anomaly USER_ID PERIOD",
	Short: "Flag anomalous category spend on a bill",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, period, err := parseUserPeriod(args)
		if err != nil {
			return err
		}
		report, err := current.engine.DetectAnomalies(userID, period)
		if err != nil {
			return fmt.Errorf("failed to detect anomalies: %w", err)
		}
		if len(report.Anomalies) > 0 {
			current.logger.Warn("Anomalies detected",
				zap.Int("user_id", userID),
				zap.String("period", period),
				zap.Int("count", len(report.Anomalies)),
			)
		}
		return writeJSON(cmd.OutOrStdout(), report)
	},
}

// taxCmd allocates a bill's tax over its categories
var taxCmd = &cobra.Command{
	Use:   "tax USER_ID PERIOD",
	Short: "Allocate tax per category and compute net unit costs",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, period, err := parseUserPeriod(args)
		if err != nil {
			return err
		}

		bill, err := current.store.BillFor(userID, period)
		if err != nil {
			return err
		}
		items := current.store.LineItems(bill.BillID)
		alloc := current.engine.AllocateTaxes(
			normalizer.TaxTotal(items),
			normalizer.Amounts(normalizer.Breakdown(items)),
		)
		units := current.engine.UnitCosts(alloc.Net(), current.store.UsageForBill(bill))

		if taxCSVPath != "" {
			report := chargeback.NewReport(userID, period, bill.BillID, alloc)
			if err := report.SaveCSV(taxCSVPath); err != nil {
				return fmt.Errorf("failed to save report: %w", err)
			}
			current.logger.Info("Tax allocation report generated", zap.String("path", taxCSVPath))
		}

		return writeJSON(cmd.OutOrStdout(), struct {
			TaxAllocation chargeback.TaxAllocation `json:"tax_allocation"`
			UnitCosts     chargeback.UnitCosts     `json:"unit_costs"`
		}{alloc, units})
	},
}

// explainCmd explains a single bill
var explainCmd = &cobra.Command{
	Use:   "explain BILL_ID",
	Short: "Break a bill down and summarize it against its baseline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		billID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid bill id %q", args[0])
		}
		x, err := current.engine.Explain(cmd.Context(), billID)
		if err != nil {
			return fmt.Errorf("failed to explain bill: %w", err)
		}
		return writeJSON(cmd.OutOrStdout(), x)
	},
}

// rulesCmd runs the threshold rules
var rulesCmd = &cobra.Command{
	Use:   "rules USER_ID PERIOD",
	Short: "Apply threshold rules to a bill",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, period, err := parseUserPeriod(args)
		if err != nil {
			return err
		}
		report, err := current.engine.Analyze(userID, period)
		if err != nil {
			return fmt.Errorf("failed to analyze bill: %w", err)
		}
		return writeJSON(cmd.OutOrStdout(), report)
	},
}

// cohortCmd compares a bill with bills of the same customer type
var cohortCmd = &cobra.Command{
	Use:   "cohort USER_ID PERIOD",
	Short: "Compare a bill with subscribers of the same customer type",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, period, err := parseUserPeriod(args)
		if err != nil {
			return err
		}
		c, err := current.engine.CompareCohort(userID, period)
		if err != nil {
			return fmt.Errorf("failed to compare cohort: %w", err)
		}
		return writeJSON(cmd.OutOrStdout(), c)
	},
}

func init() {
	baselineCmd.Flags().IntVarP(&baselineWindow, "window", "w", 0, "number of prior periods (default from config)")
	taxCmd.Flags().StringVar(&taxCSVPath, "csv", "", "also write the allocation as CSV to this path")
}
