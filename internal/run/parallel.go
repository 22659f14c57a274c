package run

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"receiptfix/internal/units"
)

// GroupRun pairs one partition group's units with the runner that will
// process them. Groups share no invoice reference, so their external calls
// cannot contend; each group must still hold its own driver pair and its own
// ledger writer.
type GroupRun struct {
	Name   string
	Runner *Runner
	Units  []*units.Unit
}

// Sequential processes the groups one after another.
func Sequential(ctx context.Context, runs []GroupRun) ([]*Summary, error) {
	summaries := make([]*Summary, len(runs))
	for i, gr := range runs {
		sum, err := gr.Runner.Run(ctx, gr.Units)
		summaries[i] = sum
		if err != nil {
			return summaries, fmt.Errorf("group %s: %w", gr.Name, err)
		}
	}
	return summaries, nil
}

// Parallel processes all groups concurrently. The first group to fail cancels
// the rest; summaries of groups that ran are returned either way.
func Parallel(ctx context.Context, runs []GroupRun) ([]*Summary, error) {
	summaries := make([]*Summary, len(runs))
	g, ctx := errgroup.WithContext(ctx)

	for i, gr := range runs {
		i, gr := i, gr
		g.Go(func() error {
			sum, err := gr.Runner.Run(ctx, gr.Units)
			summaries[i] = sum
			if err != nil {
				return fmt.Errorf("group %s: %w", gr.Name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summaries, err
	}
	return summaries, nil
}
