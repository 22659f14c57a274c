package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"receiptfix/internal/browser"
	"receiptfix/internal/drain"
	"receiptfix/internal/jobrun"
	"receiptfix/internal/ledger"
	"receiptfix/internal/logging"
	"receiptfix/internal/partition"
	"receiptfix/internal/records"
	"receiptfix/internal/run"
	"receiptfix/internal/units"
	"receiptfix/internal/workflow"
)

var (
	runGroups   int
	runParallel bool
)

// runCmd drives the full correction run
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process the correction feed in batches against the application",
	Long: `Parses the correction feed, groups rows into receipt units, schedules them
into batches and runs the three-phase cycle for each batch: correct, trigger
the reprocessing job, drain the pending queue.

With --groups N the units are first split into N disjoint streams that share
no invoice; --parallel runs the streams concurrently, each with its own
browser sessions and ledger.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVar(&runGroups, "groups", 0, "number of disjoint streams (0 uses config)")
	runCmd.Flags().BoolVar(&runParallel, "parallel", false, "run streams concurrently")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	us, excluded, err := loadUnits()
	if err != nil {
		return err
	}
	if len(us) == 0 {
		fmt.Println("nothing to do: no units after exclusions")
		return nil
	}

	groups := runGroups
	if groups == 0 {
		groups = cfg.Partition.Groups
	}
	parallel := runParallel || cfg.Partition.Parallel

	var streams [][]*units.Unit
	var names []string
	if groups > 1 {
		parts, err := partition.Split(us, groups)
		if err != nil {
			return err
		}
		for i, g := range parts {
			if len(g.Units) == 0 {
				continue
			}
			streams = append(streams, g.Units)
			names = append(names, fmt.Sprintf("group-%d", i+1))
		}
	} else {
		streams = [][]*units.Unit{us}
		names = []string{"all"}
	}

	var runs []run.GroupRun
	var cleanups []func()
	defer func() {
		for _, c := range cleanups {
			c()
		}
	}()
	for i, stream := range streams {
		gr, cleanup, err := buildStream(ctx, names[i], stream)
		// Registered before the error check: a stream that failed halfway
		// through its build still has sessions and a ledger to release.
		cleanups = append(cleanups, cleanup)
		if err != nil {
			return err
		}
		runs = append(runs, gr)
	}

	var summaries []*run.Summary
	if parallel && len(runs) > 1 {
		summaries, err = run.Parallel(ctx, runs)
	} else {
		summaries, err = run.Sequential(ctx, runs)
	}
	for i, sum := range summaries {
		if sum == nil {
			continue
		}
		sum.UnitsExcluded = excluded
		printSummary(names[i], sum)
	}
	return err
}

// loadUnits parses the feed, groups it into units and applies the exclusion
// list.
func loadUnits() ([]*units.Unit, int, error) {
	log := logging.For(logger, logging.CategoryParse)

	entries, err := records.ParseFile(cfg.Source)
	if err != nil {
		return nil, 0, err
	}
	us := units.Group(entries)
	log.Infow("parsed correction feed",
		"source", cfg.Source, "rows", len(entries), "units", len(us))

	if cfg.Exclusions == "" {
		return us, 0, nil
	}
	excl, err := ledger.LoadExclusions(cfg.Exclusions)
	if err != nil {
		return nil, 0, err
	}
	kept, dropped := run.Exclude(us, excl)
	if dropped > 0 {
		log.Infow("applied exclusion list",
			"path", cfg.Exclusions, "dropped", dropped)
	}
	return kept, dropped, nil
}

// closers releases a stream's resources in reverse acquisition order.
type closers []func()

func (c closers) close() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// buildStream opens one stream's browser sessions and ledger and wires its
// runner. The returned cleanup closes whatever was acquired, even when the
// build itself failed partway.
func buildStream(ctx context.Context, name string, us []*units.Unit) (run.GroupRun, func(), error) {
	log := logging.For(logger, logging.CategoryBrowser).With("stream", name)

	var cs closers

	led, err := ledger.NewWriter(cfg.Ledger.Dir, runID+"-"+name)
	if err != nil {
		return run.GroupRun{}, cs.close, err
	}
	cs = append(cs, func() { _ = led.Close() })

	app := browser.NewApp(browser.NewSession(cfg.Browser, log), cfg.Target, log)
	if err := app.Start(ctx); err != nil {
		return run.GroupRun{}, cs.close, err
	}
	cs = append(cs, func() { _ = app.Close() })

	job := browser.NewJob(browser.NewSession(cfg.Browser, log), cfg.Job, log)
	if err := job.Start(ctx); err != nil {
		return run.GroupRun{}, cs.close, err
	}
	cs = append(cs, func() { _ = job.Close() })

	runner := run.New(app, job, led, logging.For(logger, logging.CategoryWorkflow).With("stream", name), streamConfig())
	logger.Info("stream ready",
		zap.String("stream", name),
		zap.Int("units", len(us)),
		zap.String("ledger", led.Path()))

	return run.GroupRun{Name: name, Runner: runner, Units: us}, cs.close, nil
}

// streamConfig maps the loaded configuration onto the per-phase settings.
func streamConfig() run.Config {
	return run.Config{
		BatchSize:     cfg.BatchSize,
		FatalPatterns: cfg.Target.FatalPatterns,
		Workflow: workflow.Config{
			TypeField:      cfg.Target.TypeField,
			DateField:      cfg.Target.DateField,
			CodeSeparator:  cfg.Target.CodeSeparator,
			SentinelCode:   cfg.Target.SentinelCode,
			CorrectionList: cfg.Target.CorrectionList,
			ToggleFirst:    cfg.Target.ToggleFirst,
			ToggleSecond:   cfg.Target.ToggleSecond,
			ReasonField:    cfg.Target.ReasonField,
			Description:    cfg.Description,
			IndexField:     cfg.Target.IndexField,
			IndexDoneValue: cfg.Target.IndexDoneValue,
			SubmitPoll:     cfg.Target.SubmitPollInterval(),
			SubmitDeadline: cfg.Target.SubmitResultDeadline(),
		},
		Job: jobrun.Config{
			PollInterval: cfg.Job.JobPollInterval(),
			Deadline:     cfg.Job.JobDeadline(),
			DoneStatus:   cfg.Job.DoneStatus,
		},
		Drain: drain.Config{
			MaxIterations:  cfg.Drain.MaxIterations,
			StallThreshold: cfg.Drain.StallThreshold,
			SubmitPoll:     cfg.Target.SubmitPollInterval(),
			SubmitDeadline: cfg.Target.SubmitResultDeadline(),
		},
	}
}

func printSummary(name string, sum *run.Summary) {
	fmt.Printf("\n=== Stream %s ===\n", name)
	fmt.Printf("Units:           %d (excluded %d)\n", sum.UnitsTotal, sum.UnitsExcluded)
	fmt.Printf("Batches:         %d (timed out %d, stalled %d)\n", sum.Batches, sum.BatchTimeouts, sum.StalledBatches)
	fmt.Printf("Completed:       %d\n", sum.Completed)
	fmt.Printf("Submitted:       %d\n", sum.Submitted)
	fmt.Printf("Blocked:         %d\n", sum.Blocked)
	fmt.Printf("Failed in drain: %d\n", sum.Failed)
	if sum.Leftover > 0 {
		fmt.Printf("Leftover:        %d pending items need manual review\n", sum.Leftover)
	}
}
