package dependency

import (
	"context"

	"github.com/hilthontt/lobby/internal/application/activity"
	"github.com/hilthontt/lobby/internal/application/janitor"
	"github.com/hilthontt/lobby/internal/application/membership"
	"github.com/hilthontt/lobby/internal/application/messages"
	"github.com/hilthontt/lobby/internal/application/rooms"
	"github.com/hilthontt/lobby/internal/infrastructure/lease"
)

func (c *Container) initApplication() {
	c.Rooms = rooms.NewRegistry(c.Store, c.Tenant, c.Publisher, c.Logger)
	c.Members = membership.NewTracker(c.Store, c.Tenant, c.Publisher, c.Metrics, c.Logger)
	c.Messages = messages.NewService(c.Store, c.Tenant, activity.NewClock(c.Store, c.Tenant), c.Publisher, c.Logger)
}

func (c *Container) initJanitor() {
	cfg := c.Config.Janitor

	c.Sweep = janitor.NewSweep(c.Store, janitor.Options{
		Tenant:      c.Config.App.Tenant,
		StaleAfter:  cfg.StaleAfter,
		Concurrency: cfg.Concurrency,
		ReapOrphans: cfg.ReapOrphans,
		Publisher:   c.Publisher,
		Recorder:    c.Metrics,
	}, c.Logger)

	opts := janitor.JobOptions{
		Interval:   cfg.Interval,
		RunTimeout: cfg.EffectiveRunTimeout(),
		Recorder:   c.Metrics,
	}
	if cfg.Lease && c.Redis != nil {
		opts.Lease = lease.NewRedis(c.Redis, cfg.LeaseKey)
	}
	c.Job = janitor.NewJob(c.Sweep, opts, c.Logger)
}

// StartJanitor runs the sweep on its cadence in the background when the
// embedded janitor is enabled.
func (c *Container) StartJanitor(ctx context.Context) {
	if !c.Config.Janitor.Embedded {
		return
	}

	go c.Job.Start(ctx)
	c.onClose(func(context.Context) error {
		c.Job.Stop()
		return nil
	})
}
