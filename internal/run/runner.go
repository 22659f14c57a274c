// Package run orchestrates a reconciliation stream end to end: schedule the
// units into batches, then drive each batch through correction, job trigger,
// and drain, strictly in that order. All run-scoped state lives on the
// Runner and its Summary, never in package globals.
package run

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"receiptfix/internal/drain"
	"receiptfix/internal/faults"
	"receiptfix/internal/jobrun"
	"receiptfix/internal/schedule"
	"receiptfix/internal/target"
	"receiptfix/internal/units"
	"receiptfix/internal/workflow"
)

// Recorder is the failure-ledger surface shared by both failing phases.
type Recorder interface {
	Record(u *units.Unit, reason string) error
}

// Config bundles the per-phase settings of one stream.
type Config struct {
	BatchSize     int
	FatalPatterns []string

	Workflow workflow.Config
	Job      jobrun.Config
	Drain    drain.Config
}

// Summary is the partial-success report of one stream.
type Summary struct {
	RunID string

	UnitsTotal    int
	UnitsExcluded int
	Batches       int

	// Blocked counts units ledgered during the correction phase.
	Blocked int

	// Failed counts units ledgered during the drain.
	Failed int

	// Submitted counts confirmed pending-item submissions.
	Submitted int

	// Completed counts units that made it all the way through.
	Completed int

	// BatchTimeouts counts batches whose remote job missed its deadline;
	// their drain phase was skipped.
	BatchTimeouts int

	// StalledBatches counts batches whose drain aborted early.
	StalledBatches int

	// Leftover is the pending-list size observed after the final batch.
	Leftover int
}

// Runner executes one stream of batches against one driver pair.
type Runner struct {
	wf   *workflow.Runner
	trig *jobrun.Trigger
	loop *drain.Loop
	log  *zap.SugaredLogger
	cfg  Config
}

// New wires a stream runner. The classifier is shared between the correction
// phase and the drain so both see the same closed rule set.
func New(app target.AppDriver, jobs target.JobDriver, rec Recorder, log *zap.SugaredLogger, cfg Config) *Runner {
	cls := workflow.NewClassifier(cfg.FatalPatterns)
	return &Runner{
		wf:   workflow.NewRunner(app, cls, rec, log, cfg.Workflow),
		trig: jobrun.NewTrigger(jobs, log, cfg.Job),
		loop: drain.NewLoop(app, cls, rec, log, cfg.Drain),
		log:  log,
		cfg:  cfg,
	}
}

// Exclude drops units whose grouping key is on the exclusion list, keeping
// order. It returns the kept units and the number dropped.
func Exclude(us []*units.Unit, excluded map[int64]struct{}) ([]*units.Unit, int) {
	if len(excluded) == 0 {
		return us, 0
	}
	kept := make([]*units.Unit, 0, len(us))
	for _, u := range us {
		if _, ok := excluded[u.Key]; ok {
			continue
		}
		kept = append(kept, u)
	}
	return kept, len(us) - len(kept)
}

// Run drives every batch of the stream. Unit-level failures are absorbed into
// the summary; only configuration errors and unusable external sessions
// surface as errors.
func (r *Runner) Run(ctx context.Context, us []*units.Unit) (*Summary, error) {
	sum := &Summary{UnitsTotal: len(us)}

	batches, err := schedule.Chunk(us, r.cfg.BatchSize)
	if err != nil {
		return sum, err
	}
	sum.Batches = len(batches)

	// Lifecycle position per unit, advanced as each phase touches it. The
	// summary counters are derived from the terminal states at the end, so
	// an aborted run still reports what the finished phases achieved.
	states := make(map[int64]workflow.State, len(us))
	for _, u := range us {
		states[u.Key] = workflow.StatePending
	}
	defer r.tally(states, sum)

	for i, batch := range batches {
		log := r.log.With("batch", i+1)
		log.Infow("batch starting", "units", len(batch))

		survivors, results, err := r.wf.RunBatch(ctx, batch)
		if err != nil {
			return sum, fmt.Errorf("batch %d correction: %w", i+1, err)
		}
		for _, wres := range results {
			states[wres.Unit.Key] = wres.State
		}

		param := jobrun.Param(survivors)
		if err := r.trig.Run(ctx, param); err != nil {
			if errors.Is(err, faults.ErrOperationTimeout) {
				// Batch-fatal: phases for this batch stop, later batches run.
				log.Errorw("remote job deadline exceeded, skipping drain", "error", err)
				sum.BatchTimeouts++
				continue
			}
			return sum, fmt.Errorf("batch %d job trigger: %w", i+1, err)
		}
		for _, u := range survivors {
			states[u.Key] = workflow.StateJobTriggered
		}

		res, err := r.loop.Run(ctx, survivors)
		if err != nil {
			return sum, fmt.Errorf("batch %d drain: %w", i+1, err)
		}
		sum.Submitted += res.Submitted
		sum.Leftover = res.Leftover
		if res.Stalled {
			sum.StalledBatches++
		}
		for _, o := range res.Outcomes {
			s := o.State
			if s == workflow.StateSubmitted {
				// The batch's job has already completed, so a confirmed
				// submission ends the unit's lifecycle.
				s = workflow.StateCompleted
			}
			states[o.Key] = s
		}

		log.Infow("batch finished",
			"survivors", len(survivors),
			"submitted", res.Submitted,
			"leftover", res.Leftover,
			"stalled", res.Stalled)
	}

	return sum, nil
}

// tally folds the per-unit lifecycle states into the summary counters. Units
// stuck mid-lifecycle (a timed-out batch job, a stalled drain) count toward
// none of them and are logged for the operator.
func (r *Runner) tally(states map[int64]workflow.State, sum *Summary) {
	for key, s := range states {
		if !s.Terminal() {
			r.log.Infow("unit did not finish", "key", key, "state", s)
			continue
		}
		switch s {
		case workflow.StateBlocked:
			sum.Blocked++
		case workflow.StateFailed:
			sum.Failed++
		default:
			sum.Completed++
		}
	}
}
