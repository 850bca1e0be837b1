// Package cmd provides the CLI commands for billcheck.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lvonguyen/bill-insights/internal/config"
	"github.com/lvonguyen/bill-insights/internal/engine"
	"github.com/lvonguyen/bill-insights/internal/logging"
	"github.com/lvonguyen/bill-insights/internal/store"
)

var (
	cfgFile    string
	dataDir    string
	sqlitePath string
	logLevel   string
	verbose    bool
)

// app is the state shared by subcommands once the root pre-run has loaded it
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
	engine *engine.Engine
	runID  string
}

var current *app

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "billcheck",
	Short: "Explain subscriber bills and find cheaper configurations",
	Long: `billcheck analyzes a telecom subscriber's monthly bill against their own
usage history.

It flags anomalous category spend, allocates tax per category with net unit
costs, and searches plan and add-on configurations for a cheaper outcome.

Examples:
  billcheck anomaly 1001 2025-08
  billcheck explain 4 --data ./data
  billcheck top 1001 2025-08 -k 5
  billcheck snapshot --out bills.db`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if current != nil {
			_ = current.logger.Sync()
		}
	},
}

// Execute runs the CLI
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "CSV snapshot directory")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite", "", "SQLite snapshot file, overrides --data")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(baselineCmd)
	rootCmd.AddCommand(anomalyCmd)
	rootCmd.AddCommand(taxCmd)
	rootCmd.AddCommand(whatifCmd)
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(autofixCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(cohortCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (*config.Config, error) {
	config.LoadEnv()

	cfg := config.Default()
	if cfgFile != "" {
		var err error
		if cfg, err = config.Load(cfgFile); err != nil {
			return nil, err
		}
	}

	if dataDir != "" {
		cfg.Data.Dir = dataDir
	}
	if sqlitePath != "" {
		cfg.Data.SQLite = sqlitePath
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))
	current = &app{cfg: cfg, logger: logger, runID: runID}

	if cmd.Annotations["snapshot"] == "none" {
		return nil
	}

	st, err := openStore(cmd.Context(), cfg.Data)
	if err != nil {
		return err
	}
	current.store = st
	current.engine = engine.New(cfg, st, logger)

	logger.Debug("Snapshot loaded",
		zap.String("command", cmd.Name()),
		zap.Int("users", len(st.Users())),
		zap.Int("plans", len(st.Plans())),
	)
	return nil
}

func openStore(ctx context.Context, data config.DataConfig) (*store.Store, error) {
	if data.SQLite != "" {
		return store.LoadSQLite(ctx, data.SQLite)
	}
	return store.LoadCSV(data.Dir)
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print version information",
	Annotations: map[string]string{"snapshot": "none"},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "billcheck version 0.1.0")
	},
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseUserPeriod(args []string) (int, string, error) {
	userID, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, "", fmt.Errorf("invalid user id %q", args[0])
	}
	return userID, args[1], nil
}
