package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"receiptfix/internal/ledger"
	"receiptfix/internal/logging"
)

var aggregateOut string

// aggregateCmd merges ledgers into one exclusion list
var aggregateCmd = &cobra.Command{
	Use:   "aggregate [ledger-dir]",
	Short: "Merge failure ledgers into a sorted exclusion list",
	Long: `Reads every ledger file in the directory, extracts the blocked grouping
keys and writes them sorted and deduplicated. Feed the result to a later run
via the exclusions setting to skip known-bad units.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAggregate,
}

func init() {
	aggregateCmd.Flags().StringVar(&aggregateOut, "out", "", "write keys to this file instead of stdout")
}

func runAggregate(cmd *cobra.Command, args []string) error {
	dir := cfg.Ledger.Dir
	if len(args) == 1 {
		dir = args[0]
	}

	keys, err := ledger.Aggregate(dir)
	if err != nil {
		return err
	}

	if aggregateOut != "" {
		if err := ledger.WriteKeys(aggregateOut, keys); err != nil {
			return err
		}
		logging.For(logger, logging.CategoryLedger).Infow("exclusion list written",
			"path", aggregateOut, "keys", len(keys))
		fmt.Printf("wrote %d keys to %s\n", len(keys), aggregateOut)
		return nil
	}
	for _, k := range keys {
		fmt.Println(k)
	}
	return nil
}
