package browser

import (
	"context"

	"go.uber.org/zap"

	"receiptfix/internal/config"
	"receiptfix/internal/target"
)

// Job drives the job-execution service in its own session, independent of
// the application session.
type Job struct {
	s   *Session
	cfg config.JobConfig
	log *zap.SugaredLogger
}

var _ target.JobDriver = (*Job)(nil)

// NewJob wires the job driver over its own session.
func NewJob(s *Session, cfg config.JobConfig, log *zap.SugaredLogger) *Job {
	return &Job{s: s, cfg: cfg, log: log}
}

// Start connects the session. The job surface itself is opened per batch.
func (j *Job) Start(ctx context.Context) error { return j.s.Start(ctx) }

// Close releases the session.
func (j *Job) Close() error { return j.s.Close() }

func (j *Job) OpenJobSurface(ctx context.Context) error {
	return j.s.navigate(ctx, j.cfg.SurfaceURL)
}

func (j *Job) StartWithParameter(ctx context.Context, param string) error {
	j.log.Debugw("starting job", "param", param)
	if err := j.s.input(ctx, j.cfg.ParamInput, param); err != nil {
		return err
	}
	return j.s.click(ctx, j.cfg.StartButton)
}

func (j *Job) RefreshStatus(ctx context.Context) error {
	return j.s.click(ctx, j.cfg.RefreshLink)
}

func (j *Job) ReadStatus(ctx context.Context) (string, error) {
	return j.s.text(ctx, j.cfg.StatusCell)
}
