package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"receiptfix/internal/target"
	"receiptfix/internal/units"
)

// Recorder is the slice of the failure ledger the workflow needs.
type Recorder interface {
	Record(u *units.Unit, reason string) error
}

// Config holds the application-specific knobs of the correction phase: field
// names, the type-code sentinel, toggle order, and the submit-await budget.
type Config struct {
	// TypeField and DateField are the descriptive fields read back from the
	// opened representation.
	TypeField string
	DateField string

	// CodeSeparator splits the type label; the prefix before it is the
	// derived code.
	CodeSeparator string

	// SentinelCode names the one type whose correction dialog omits the
	// selector entirely.
	SentinelCode string

	// CorrectionList is the filtered selector inside the correction dialog.
	CorrectionList string

	// ToggleFirst must be enabled before ToggleSecond becomes togglable.
	ToggleFirst  string
	ToggleSecond string

	// ReasonField receives Description on every corrected unit.
	ReasonField string
	Description string

	// IndexField is polled after submit; reaching IndexDoneValue means the
	// correction took effect.
	IndexField     string
	IndexDoneValue string

	SubmitPoll     time.Duration
	SubmitDeadline time.Duration
}

// Result is the phase-1 outcome for one unit.
type Result struct {
	Unit   *units.Unit
	State  State
	Reason string
}

// Survived reports whether the unit proceeds to the later phases.
func (r Result) Survived() bool { return r.State != StateBlocked }

// Runner executes the correction phase for one batch at a time.
type Runner struct {
	app    target.AppDriver
	cls    *Classifier
	ledger Recorder
	log    *zap.SugaredLogger
	cfg    Config
}

// NewRunner wires a phase-1 runner.
func NewRunner(app target.AppDriver, cls *Classifier, ledger Recorder, log *zap.SugaredLogger, cfg Config) *Runner {
	return &Runner{app: app, cls: cls, ledger: ledger, log: log, cfg: cfg}
}

// RunBatch corrects every unit of the batch in order and returns the
// survivors plus the full per-unit results. Only driver failures that make
// the session unusable are returned as errors; unit-level failures are
// ledgered and absorbed.
func (r *Runner) RunBatch(ctx context.Context, batch []*units.Unit) ([]*units.Unit, []Result, error) {
	var survivors []*units.Unit
	results := make([]Result, 0, len(batch))

	for _, u := range batch {
		res, err := r.runUnit(ctx, u)
		if err != nil {
			return survivors, results, fmt.Errorf("unit %d: %w", u.Key, err)
		}
		results = append(results, res)
		if res.Survived() {
			survivors = append(survivors, u)
		}
	}
	return survivors, results, nil
}

func (r *Runner) runUnit(ctx context.Context, u *units.Unit) (Result, error) {
	r.log.Infow("correcting unit", "key", u.Key, "entries", len(u.Entries))

	if err := r.app.OpenByKey(ctx, u.Key); err != nil {
		return Result{}, fmt.Errorf("open: %w", err)
	}
	r.log.Debugw("unit opened", "key", u.Key, "state", StateOpened)

	typeLabel, err := r.app.ReadField(ctx, r.cfg.TypeField)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", r.cfg.TypeField, err)
	}
	date, err := r.app.ReadField(ctx, r.cfg.DateField)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", r.cfg.DateField, err)
	}

	code := typeLabel
	if i := strings.Index(typeLabel, r.cfg.CodeSeparator); i >= 0 {
		code = typeLabel[:i]
	}

	// The sentinel type's dialog has no selector at all.
	if code != r.cfg.SentinelCode {
		if err := r.app.SelectFromFilteredList(ctx, r.cfg.CorrectionList, code); err != nil {
			return Result{}, fmt.Errorf("select %s: %w", code, err)
		}
	}

	// Hard ordering: the first toggle enables the second.
	if err := r.app.ToggleOption(ctx, r.cfg.ToggleFirst); err != nil {
		return Result{}, fmt.Errorf("toggle %s: %w", r.cfg.ToggleFirst, err)
	}
	if err := r.app.ToggleOption(ctx, r.cfg.ToggleSecond); err != nil {
		return Result{}, fmt.Errorf("toggle %s: %w", r.cfg.ToggleSecond, err)
	}

	if err := r.app.FillField(ctx, r.cfg.DateField, date); err != nil {
		return Result{}, fmt.Errorf("fill %s: %w", r.cfg.DateField, err)
	}
	if err := r.app.FillField(ctx, r.cfg.ReasonField, r.cfg.Description); err != nil {
		return Result{}, fmt.Errorf("fill %s: %w", r.cfg.ReasonField, err)
	}

	if err := r.app.Submit(ctx); err != nil {
		return Result{}, fmt.Errorf("submit: %w", err)
	}

	outcome, text, err := r.awaitSubmit(ctx)
	if err != nil {
		return Result{}, err
	}

	switch outcome {
	case submitOK:
		return Result{Unit: u, State: StateCorrected}, nil

	case submitTimeout:
		reason := "no confirmation within deadline"
		r.log.Warnw("unit blocked on timeout", "key", u.Key)
		if err := r.ledger.Record(u, reason); err != nil {
			return Result{}, fmt.Errorf("ledger: %w", err)
		}
		return Result{Unit: u, State: StateBlocked, Reason: reason}, nil

	default: // submitNotified
		switch r.cls.Classify(text) {
		case ClassFatal:
			r.log.Warnw("unit blocked", "key", u.Key, "notification", text)
			if err := r.ledger.Record(u, text); err != nil {
				return Result{}, fmt.Errorf("ledger: %w", err)
			}
			if err := r.app.CancelAndConfirm(ctx); err != nil {
				return Result{}, fmt.Errorf("cancel: %w", err)
			}
			return Result{Unit: u, State: StateBlocked, Reason: text}, nil

		default:
			// Informational, or unknown and treated as such.
			r.log.Infow("dismissing notification", "key", u.Key, "notification", text)
			if err := r.app.DismissNotification(ctx); err != nil {
				return Result{}, fmt.Errorf("dismiss: %w", err)
			}
			return Result{Unit: u, State: StateCorrected, Reason: text}, nil
		}
	}
}

type submitOutcome int

const (
	submitOK submitOutcome = iota
	submitNotified
	submitTimeout
)

// awaitSubmit polls the index field and the notification channel until the
// done value appears, a notification shows, or the deadline elapses. The
// spin-wait is bounded and uses a fixed inter-poll delay.
func (r *Runner) awaitSubmit(ctx context.Context) (submitOutcome, string, error) {
	deadline := time.Now().Add(r.cfg.SubmitDeadline)
	for {
		v, err := r.app.ReadStatusField(ctx, r.cfg.IndexField)
		if err != nil {
			return 0, "", fmt.Errorf("read %s: %w", r.cfg.IndexField, err)
		}
		if v == r.cfg.IndexDoneValue {
			return submitOK, "", nil
		}

		text, present, err := r.app.DetectNotification(ctx)
		if err != nil {
			return 0, "", fmt.Errorf("detect notification: %w", err)
		}
		if present {
			return submitNotified, text, nil
		}

		if time.Now().After(deadline) {
			return submitTimeout, "", nil
		}
		select {
		case <-ctx.Done():
			return 0, "", ctx.Err()
		case <-time.After(r.cfg.SubmitPoll):
		}
	}
}
