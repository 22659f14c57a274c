// Package drain consumes the application's pending-work queue after the
// remote job has run, reconciling each item's invoice references against the
// surviving units and submitting it. The loop is bounded: it stops on an
// empty queue, after a configured number of iterations, or as soon as the
// queue stops shrinking.
package drain

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"receiptfix/internal/target"
	"receiptfix/internal/units"
	"receiptfix/internal/workflow"
)

// Recorder is the slice of the failure ledger the drain loop needs.
type Recorder interface {
	Record(u *units.Unit, reason string) error
}

// Config bounds the loop.
type Config struct {
	// MaxIterations caps the number of pending-list fetches.
	MaxIterations int

	// StallThreshold is the number of consecutive fetches without a strict
	// size decrease after which the loop gives up on the batch.
	StallThreshold int

	SubmitPoll     time.Duration
	SubmitDeadline time.Duration
}

// Outcome is the final disposition of one unit during the drain.
type Outcome struct {
	Key    int64
	State  workflow.State
	Reason string
}

// Result summarizes one batch's drain.
type Result struct {
	// Submitted counts confirmed submissions.
	Submitted int

	// Outcomes holds per-unit dispositions, in processing order. Carry-over
	// items have no unit and do not appear here.
	Outcomes []Outcome

	// Stalled is set when the loop aborted early because the queue stopped
	// shrinking. Reported, never an error.
	Stalled bool

	// Leftover is the pending-list size after the loop ended. Non-zero means
	// items likely requiring manual intervention.
	Leftover int
}

// Loop drains the pending-work queue for one batch.
type Loop struct {
	app    target.AppDriver
	cls    *workflow.Classifier
	ledger Recorder
	log    *zap.SugaredLogger
	cfg    Config
}

// NewLoop wires a drain loop.
func NewLoop(app target.AppDriver, cls *workflow.Classifier, ledger Recorder, log *zap.SugaredLogger, cfg Config) *Loop {
	return &Loop{app: app, cls: cls, ledger: ledger, log: log, cfg: cfg}
}

// Run drains the queue. The internal unit queue holds the batch's surviving
// units in original order; once it is exhausted, remaining pending items are
// carry-overs from earlier runs and are submitted unchanged.
func (l *Loop) Run(ctx context.Context, queue []*units.Unit) (*Result, error) {
	res := &Result{}
	pending := append([]*units.Unit(nil), queue...)

	lastSize := -1
	stalls := 0

	for i := 0; i < l.cfg.MaxIterations; i++ {
		items, err := l.app.FetchPendingList(ctx)
		if err != nil {
			return res, fmt.Errorf("fetch pending list: %w", err)
		}
		if len(items) == 0 {
			break
		}

		if lastSize >= 0 && len(items) >= lastSize {
			stalls++
		} else {
			stalls = 0
		}
		lastSize = len(items)
		if stalls >= l.cfg.StallThreshold {
			l.log.Warnw("pending queue stalled, leaving remainder for manual handling",
				"size", len(items), "stalls", stalls)
			res.Stalled = true
			break
		}

		// The list is newest-first; the tail is the oldest pending item.
		tail := items[len(items)-1]
		if err := l.app.OpenListItem(ctx, tail); err != nil {
			return res, fmt.Errorf("open item %s: %w", tail.ID, err)
		}

		var u *units.Unit
		if len(pending) > 0 {
			u = pending[0]
			pending = pending[1:]
			if err := l.reconcile(ctx, u); err != nil {
				return res, fmt.Errorf("reconcile unit %d: %w", u.Key, err)
			}
			l.log.Debugw("unit reconciled", "key", u.Key, "state", workflow.StateReconciled)
		}

		if err := l.app.Submit(ctx); err != nil {
			return res, fmt.Errorf("submit item %s: %w", tail.ID, err)
		}
		if err := l.awaitClose(ctx, tail, u, res); err != nil {
			return res, err
		}
	}

	items, err := l.app.FetchPendingList(ctx)
	if err != nil {
		return res, fmt.Errorf("final pending fetch: %w", err)
	}
	res.Leftover = len(items)
	if res.Leftover > 0 {
		l.log.Warnw("pending items likely require manual intervention", "count", res.Leftover)
	}
	return res, nil
}

// reconcile replaces the item's attached references with the unit's needed
// set: remove everything, then add each reference by label search, one at a
// time, in the unit's distinct-label order.
func (l *Loop) reconcile(ctx context.Context, u *units.Unit) error {
	if err := l.app.RemoveAllReferences(ctx); err != nil {
		return fmt.Errorf("remove references: %w", err)
	}
	for _, label := range u.Labels {
		if err := l.app.SearchAndAddReference(ctx, label); err != nil {
			return fmt.Errorf("add reference %q: %w", label, err)
		}
	}
	return nil
}

// awaitClose polls for the item closing or a notification. Unlike the
// correction phase, a fatal classification never cancels the row: the item
// stays in the remote queue for manual resolution.
func (l *Loop) awaitClose(ctx context.Context, item target.PendingItem, u *units.Unit, res *Result) error {
	deadline := time.Now().Add(l.cfg.SubmitDeadline)
	for {
		closed, err := l.app.ItemClosed(ctx)
		if err != nil {
			return fmt.Errorf("check item %s: %w", item.ID, err)
		}
		if closed {
			res.Submitted++
			if u != nil {
				res.Outcomes = append(res.Outcomes, Outcome{Key: u.Key, State: workflow.StateSubmitted})
			}
			return nil
		}

		text, present, err := l.app.DetectNotification(ctx)
		if err != nil {
			return fmt.Errorf("detect notification: %w", err)
		}
		if present {
			if l.cls.Classify(text) == workflow.ClassFatal {
				l.recordFailure(u, item, text, res)
				return nil
			}
			l.log.Infow("dismissing notification", "item", item.ID, "notification", text)
			if err := l.app.DismissNotification(ctx); err != nil {
				return fmt.Errorf("dismiss: %w", err)
			}
			res.Submitted++
			if u != nil {
				res.Outcomes = append(res.Outcomes, Outcome{Key: u.Key, State: workflow.StateSubmitted, Reason: text})
			}
			return nil
		}

		if time.Now().After(deadline) {
			l.recordFailure(u, item, "no close or notification within deadline", res)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.cfg.SubmitPoll):
		}
	}
}

func (l *Loop) recordFailure(u *units.Unit, item target.PendingItem, reason string, res *Result) {
	if u == nil {
		// Carry-over item from an earlier run; there is no unit to replay.
		l.log.Warnw("carry-over item failed", "item", item.ID, "reason", reason)
		return
	}
	l.log.Warnw("item failed, left in queue", "item", item.ID, "key", u.Key, "reason", reason)
	res.Outcomes = append(res.Outcomes, Outcome{Key: u.Key, State: workflow.StateFailed, Reason: reason})
	if err := l.ledger.Record(u, reason); err != nil {
		l.log.Errorw("ledger write failed", "key", u.Key, "error", err)
	}
}
