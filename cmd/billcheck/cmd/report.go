package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lvonguyen/bill-insights/internal/reporter"
	"github.com/lvonguyen/bill-insights/internal/store"
)

var (
	reportFormat string
	reportDir    string
	snapshotOut  string
)

// reportCmd writes a bill report file
var reportCmd = &cobra.Command{
	Use:   "report BILL_ID",
	Short: "Write an HTML, CSV or JSON report for a bill",
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
		flags, err := current.engine.Analyze(x.Summary.UserID, x.Summary.Period)
		if err != nil {
			return fmt.Errorf("failed to analyze bill: %w", err)
		}

		dir := reportDir
		if dir == "" {
			dir = current.cfg.Reporter.OutputDir
		}
		path, err := reporter.New(dir).Generate(reportFormat, reporter.ReportData{
			Explanation: x,
			Flags:       flags.Flags,
			GeneratedAt: time.Now(),
			RunID:       current.runID,
		})
		if err != nil {
			return err
		}

		current.logger.Info("Report generated", zap.String("path", path), zap.String("format", reportFormat))
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

// snapshotCmd converts the CSV snapshot into a SQLite file
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Convert the CSV snapshot directory into a SQLite snapshot",
	Annotations: map[string]string{
		"snapshot": "none",
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if snapshotOut == "" {
			return fmt.Errorf("--out is required")
		}

		st, err := store.LoadCSV(current.cfg.Data.Dir)
		if err != nil {
			return err
		}
		if err := store.SaveSQLite(cmd.Context(), snapshotOut, st.Tables()); err != nil {
			return err
		}

		current.logger.Info("Snapshot written",
			zap.String("from", current.cfg.Data.Dir),
			zap.String("to", snapshotOut),
			zap.Int("bills", len(st.Tables().BillHeaders)),
		)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "html", "report format (html, csv, json)")
	reportCmd.Flags().StringVarP(&reportDir, "output", "o", "", "output directory (default from config)")

	snapshotCmd.Flags().StringVar(&snapshotOut, "out", "", "SQLite file to write")
}
