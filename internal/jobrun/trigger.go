// Package jobrun triggers the remote correction job for a batch and polls it
// to completion. The job parameter aggregates the qualifying invoice
// references of every unit that survived the correction phase; the trigger
// therefore runs strictly after that phase, once per batch.
package jobrun

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"receiptfix/internal/faults"
	"receiptfix/internal/target"
	"receiptfix/internal/units"
)

// DoneStatus is the status display that marks a finished job.
const DoneStatus = "Completed"

// Config bounds the status polling.
type Config struct {
	PollInterval time.Duration
	Deadline     time.Duration

	// DoneStatus overrides the default completion display when set.
	DoneStatus string
}

func (c Config) doneStatus() string {
	if c.DoneStatus != "" {
		return c.DoneStatus
	}
	return DoneStatus
}

// Param joins the deduplicated union of qualifying invoice references across
// the surviving units, in first-seen order, into the job's parameter string.
func Param(survivors []*units.Unit) string {
	seen := make(map[int64]struct{})
	var parts []string
	for _, u := range survivors {
		for _, ref := range u.OpenRefs {
			if _, ok := seen[ref]; ok {
				continue
			}
			seen[ref] = struct{}{}
			parts = append(parts, strconv.FormatInt(ref, 10))
		}
	}
	return strings.Join(parts, ",")
}

// Trigger runs the remote job for one batch.
type Trigger struct {
	jobs target.JobDriver
	log  *zap.SugaredLogger
	cfg  Config
}

// NewTrigger wires a job trigger.
func NewTrigger(jobs target.JobDriver, log *zap.SugaredLogger, cfg Config) *Trigger {
	return &Trigger{jobs: jobs, log: log, cfg: cfg}
}

var errJobPending = errors.New("job still running")

// Run starts the job with param and polls the status surface at a fixed
// interval until completion or the per-batch deadline. An empty parameter is
// a logged no-op. A deadline overrun is fatal for the batch, not for the run.
func (t *Trigger) Run(ctx context.Context, param string) error {
	if param == "" {
		t.log.Infow("no qualifying references, skipping job trigger")
		return nil
	}

	t.log.Infow("starting remote job", "param", param)
	if err := t.jobs.OpenJobSurface(ctx); err != nil {
		return fmt.Errorf("open job surface: %w", err)
	}
	if err := t.jobs.StartWithParameter(ctx, param); err != nil {
		return fmt.Errorf("start job: %w", err)
	}

	attempts := uint(t.cfg.Deadline / t.cfg.PollInterval)
	if attempts < 1 {
		attempts = 1
	}

	// The attempt cap alone undercounts time spent inside the driver calls,
	// so the deadline is also enforced as wall clock on the polling context.
	pollCtx, cancel := context.WithTimeout(ctx, t.cfg.Deadline)
	defer cancel()

	err := retry.Do(
		func() error {
			if err := t.jobs.RefreshStatus(pollCtx); err != nil {
				return retry.Unrecoverable(fmt.Errorf("refresh status: %w", err))
			}
			status, err := t.jobs.ReadStatus(pollCtx)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("read status: %w", err))
			}
			if status != t.cfg.doneStatus() {
				return fmt.Errorf("%w: %s", errJobPending, status)
			}
			return nil
		},
		retry.Context(pollCtx),
		retry.Attempts(attempts),
		retry.Delay(t.cfg.PollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return err
		case errors.Is(err, errJobPending), errors.Is(err, context.DeadlineExceeded):
			return fmt.Errorf("job did not complete within %s: %w", t.cfg.Deadline, faults.ErrOperationTimeout)
		default:
			return err
		}
	}

	t.log.Infow("remote job completed")
	return nil
}
