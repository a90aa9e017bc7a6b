package janitor

import (
	"context"
	"errors"
	"time"

	"github.com/hilthontt/lobby/internal/infrastructure/lease"
	"github.com/hilthontt/lobby/internal/infrastructure/logging"
	"github.com/hilthontt/lobby/internal/infrastructure/metrics"
)

type Runner interface {
	Run(ctx context.Context) (Report, error)
}

// Lease elects one replica per run.
type Lease interface {
	Acquire(ctx context.Context, ttl time.Duration) (func(context.Context) error, error)
}

// Job runs the sweep on a fixed cadence inside a long-lived process.
type Job struct {
	runner     Runner
	lease      Lease
	recorder   Recorder
	logger     logging.Logger
	interval   time.Duration
	runTimeout time.Duration
	stopChan   chan struct{}
}

type JobOptions struct {
	Interval time.Duration
	// RunTimeout bounds one run; zero means 80% of Interval so runs never
	// overlap.
	RunTimeout time.Duration
	// Lease is optional. Without it every replica sweeps.
	Lease    Lease
	Recorder Recorder
}

func NewJob(runner Runner, opts JobOptions, logger logging.Logger) *Job {
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = opts.Interval * 4 / 5
	}
	return &Job{
		runner:     runner,
		lease:      opts.Lease,
		recorder:   opts.Recorder,
		logger:     logger,
		interval:   opts.Interval,
		runTimeout: opts.RunTimeout,
		stopChan:   make(chan struct{}),
	}
}

func (j *Job) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info(logging.Janitor, logging.Startup, "janitor job started", map[logging.ExtraKey]any{
		"interval":   j.interval.String(),
		"runTimeout": j.runTimeout.String(),
	})

	j.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			j.RunOnce(ctx)
		case <-j.stopChan:
			j.logger.Info(logging.Janitor, logging.Shutdown, "janitor job stopped", nil)
			return
		case <-ctx.Done():
			j.logger.Info(logging.Janitor, logging.Shutdown, "janitor job context cancelled", nil)
			return
		}
	}
}

func (j *Job) Stop() {
	close(j.stopChan)
}

// RunOnce performs a single bounded run. ran is false when another replica
// holds the lease.
func (j *Job) RunOnce(ctx context.Context) (report Report, ran bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, j.runTimeout)
	defer cancel()

	if j.lease != nil {
		release, err := j.lease.Acquire(ctx, j.runTimeout)
		switch {
		case errors.Is(err, lease.ErrNotAcquired):
			j.logger.Debug(logging.Janitor, logging.Lease, "another replica holds the janitor lease", nil)
			if j.recorder != nil {
				j.recorder.JanitorRun(metrics.OutcomeSkipped, 0, 0, 0, 0)
			}
			return Report{}, false, nil
		case err != nil:
			// the sweep is idempotent, so running without the lease only
			// duplicates work
			j.logger.Warn(logging.Janitor, logging.Lease, "lease unavailable, sweeping locally", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		default:
			defer func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := release(releaseCtx); err != nil {
					j.logger.Warn(logging.Janitor, logging.Lease, "failed to release janitor lease", map[logging.ExtraKey]any{
						logging.ErrorMessage: err.Error(),
					})
				}
			}()
		}
	}

	report, err = j.runner.Run(ctx)
	return report, true, err
}
