package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"receiptfix/internal/config"
	"receiptfix/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
	runID  string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "receiptfix",
	Short: "receiptfix - batched correction of linked receipt documents",
	Long: `receiptfix drives the correction of receipt documents whose invoice links
went stale, in bounded batches against the live application.

Each batch runs three phases: apply the correction to every receipt of the
batch, start the remote reprocessing job over the affected invoices, then
drain the pending queue the job produced. Units that cannot be corrected are
written to a failure ledger and never abort the run.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		runID = uuid.NewString()
		logger, err = logging.New(cfg.Logging, runID)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config YAML (defaults apply when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(partitionCmd)
	rootCmd.AddCommand(aggregateCmd)
	rootCmd.AddCommand(inspectCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
