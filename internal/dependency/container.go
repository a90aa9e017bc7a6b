// Package dependency builds the object graph shared by the lobby binaries.
package dependency

import (
	"context"
	"errors"
	"fmt"

	"github.com/hilthontt/lobby/internal/application/janitor"
	"github.com/hilthontt/lobby/internal/application/membership"
	"github.com/hilthontt/lobby/internal/application/messages"
	"github.com/hilthontt/lobby/internal/application/rooms"
	"github.com/hilthontt/lobby/internal/domain"
	"github.com/hilthontt/lobby/internal/infrastructure/configs"
	"github.com/hilthontt/lobby/internal/infrastructure/events"
	"github.com/hilthontt/lobby/internal/infrastructure/logging"
	"github.com/hilthontt/lobby/internal/infrastructure/messaging"
	"github.com/hilthontt/lobby/internal/infrastructure/metrics"
	"github.com/hilthontt/lobby/internal/infrastructure/tracing"
	"github.com/hilthontt/lobby/internal/persistence/store"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

type Container struct {
	Config  *configs.Config
	Logger  logging.Logger
	Metrics *metrics.Metrics
	Tenant  domain.TenantPath

	Store    store.Store
	Mongo    *mongo.Client
	Redis    *redis.Client
	RabbitMQ *messaging.RabbitMQ

	Publisher events.Publisher
	AuditRepo domain.RoomAuditRepository

	Rooms    rooms.Registry
	Members  membership.Tracker
	Messages messages.Service
	Sweep    *janitor.Sweep
	Job      *janitor.Job

	closers []func(context.Context) error
}

// NewContainer connects every backend the configuration enables. The
// configuration must have passed Validate. On error everything opened so
// far is closed again.
func NewContainer(ctx context.Context, cfg *configs.Config, serviceName string, logger logging.Logger) (*Container, error) {
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
		Tenant:  domain.Tenant(cfg.App.Tenant),
	}

	logger.Info(logging.General, logging.Startup, "initializing dependencies", map[logging.ExtraKey]any{
		logging.AppName: serviceName,
		logging.Tenant:  cfg.App.Tenant,
		"storeDriver":   cfg.Store.Driver,
	})

	if err := c.init(ctx, serviceName); err != nil {
		_ = c.Close(context.Background())
		return nil, err
	}

	logger.Info(logging.General, logging.Startup, "all dependencies initialized", nil)
	return c, nil
}

func (c *Container) init(ctx context.Context, serviceName string) error {
	if err := c.initTracing(serviceName); err != nil {
		return fmt.Errorf("error initializing tracing: %w", err)
	}
	if err := c.initStore(ctx); err != nil {
		return fmt.Errorf("error initializing store: %w", err)
	}
	if err := c.initRedis(ctx); err != nil {
		return fmt.Errorf("error initializing redis: %w", err)
	}
	if err := c.initMessaging(ctx); err != nil {
		return fmt.Errorf("error initializing messaging: %w", err)
	}

	c.initApplication()
	c.initJanitor()
	return nil
}

func (c *Container) initTracing(serviceName string) error {
	tracerCfg := tracing.NewDefaultConfig(serviceName)
	tracerCfg.Environment = c.Config.App.Environment
	tracerCfg.Enabled = c.Config.Tracing.Enabled
	tracerCfg.Endpoint = c.Config.Tracing.Endpoint

	shutdown, err := tracing.InitTracer(tracerCfg)
	if err != nil {
		return err
	}
	c.onClose(shutdown)
	return nil
}

func (c *Container) onClose(fn func(context.Context) error) {
	c.closers = append(c.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
