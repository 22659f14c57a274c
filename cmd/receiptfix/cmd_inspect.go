package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"receiptfix/internal/ledger"
	"receiptfix/internal/records"
	"receiptfix/internal/run"
	"receiptfix/internal/units"
)

// inspectCmd previews the feed without touching the application
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show how the feed groups into units, without running anything",
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	entries, err := records.ParseFile(cfg.Source)
	if err != nil {
		return err
	}
	us := units.Group(entries)

	excluded := 0
	if cfg.Exclusions != "" {
		excl, err := ledger.LoadExclusions(cfg.Exclusions)
		if err != nil {
			return err
		}
		us, excluded = run.Exclude(us, excl)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tROWS\tOPEN REFS\tLABELS")
	for _, u := range us {
		fmt.Fprintf(w, "%d\t%d\t%d\t%s\n",
			u.Key, len(u.Entries), len(u.OpenRefs), strings.Join(labelSample(u), ", "))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	batches := (len(us) + cfg.BatchSize - 1) / cfg.BatchSize
	fmt.Printf("\n%d rows, %d units (%d excluded), %d batches of up to %d\n",
		len(entries), len(us), excluded, batches, cfg.BatchSize)
	return nil
}

// labelSample keeps the listing readable for units with many distinct labels.
func labelSample(u *units.Unit) []string {
	const max = 3
	if len(u.Labels) <= max {
		return u.Labels
	}
	return append(append([]string{}, u.Labels[:max]...), fmt.Sprintf("(+%d more)", len(u.Labels)-max))
}
