package dependency

import (
	"context"
	"fmt"

	"github.com/hilthontt/lobby/internal/infrastructure/configs"
	"github.com/hilthontt/lobby/internal/infrastructure/events"
	"github.com/hilthontt/lobby/internal/infrastructure/logging"
	"github.com/hilthontt/lobby/internal/infrastructure/messaging"
	"github.com/hilthontt/lobby/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/lobby/internal/infrastructure/tracing"
	"github.com/hilthontt/lobby/internal/persistence/db"
	"github.com/hilthontt/lobby/internal/persistence/repository"
	"github.com/hilthontt/lobby/internal/persistence/store"
	"go.mongodb.org/mongo-driver/mongo"
)

func (c *Container) mongoDatabase(ctx context.Context) (*mongo.Database, error) {
	mongoCfg := &db.MongoConfig{
		URI:               c.Config.Store.Mongo.URI,
		Database:          c.Config.Store.Mongo.Database,
		ConnectionTimeout: c.Config.Store.Mongo.ConnectionTimeout,
	}

	if c.Mongo == nil {
		client, err := db.NewMongoClient(ctx, mongoCfg)
		if err != nil {
			return nil, err
		}
		c.Mongo = client
		c.onClose(func(ctx context.Context) error {
			return db.DisconnectMongo(ctx, client)
		})
		c.Logger.Info(logging.MongoDB, logging.Startup, "connected to mongodb", map[logging.ExtraKey]any{
			"database": mongoCfg.Database,
		})
	}

	return db.GetDatabase(c.Mongo, mongoCfg), nil
}

func (c *Container) initStore(ctx context.Context) error {
	switch c.Config.Store.Driver {
	case configs.StoreDriverMongo:
		database, err := c.mongoDatabase(ctx)
		if err != nil {
			return err
		}
		mongoStore := store.NewMongo(database, store.MongoOptions{
			Collection: c.Config.Store.Mongo.Collection,
			Tracer:     tracing.GetTracer("lobby/store"),
			Errors:     c.Metrics,
		})
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("failed to create store indexes: %w", err)
		}
		c.Store = mongoStore
	default:
		c.Store = store.NewMemory(nil)
		c.Logger.Warn(logging.Store, logging.Startup, "using the in-memory store, rooms do not survive a restart", nil)
	}

	c.onClose(c.Store.Close)
	return nil
}

// initRedis connects only when the rate limiter or the janitor lease need
// it.
func (c *Container) initRedis(ctx context.Context) error {
	if c.Config.RateLimiter.Backend != configs.RateLimiterBackendRedis && !c.Config.Janitor.Lease {
		return nil
	}

	client, err := db.NewRedisClient(ctx, &db.RedisConfig{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
	if err != nil {
		return err
	}
	c.Redis = client
	c.onClose(func(context.Context) error {
		return client.Close()
	})

	c.Logger.Info(logging.Redis, logging.Startup, "connected to redis", map[logging.ExtraKey]any{
		"addr": c.Config.Redis.Addr,
	})
	return nil
}

func (c *Container) initMessaging(ctx context.Context) error {
	c.Publisher = events.NewNopPublisher()
	if !c.Config.RabbitMQ.Enabled {
		return nil
	}

	rabbitmq, err := messaging.NewRabbitMQ(c.Config.RabbitMQ.URI)
	if err != nil {
		return err
	}
	c.RabbitMQ = rabbitmq
	c.onClose(func(context.Context) error {
		rabbitmq.Close()
		return nil
	})
	c.Publisher = events.NewRoomPublisher(rabbitmq)

	c.Logger.Info(logging.RabbitMQ, logging.Startup, "connected to rabbitmq", nil)

	if !c.Config.Audit.Enabled {
		return nil
	}
	if c.Config.Store.Mongo.URI == "" {
		c.Logger.Warn(logging.MongoDB, logging.Startup, "audit log disabled: store.mongo.uri is not set", nil)
		return nil
	}

	database, err := c.mongoDatabase(ctx)
	if err != nil {
		return err
	}
	audit := repository.NewRoomAuditLogRepository(database, c.Config.Audit.Retention)
	if err := audit.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create audit indexes: %w", err)
	}
	c.AuditRepo = audit
	return nil
}

// RateLimiter returns the limiter for the HTTP surface, backed by Redis when
// configured so every replica shares one budget.
func (c *Container) RateLimiter() *ratelimiter.RateLimiter {
	var cache ratelimiter.GetterSetter
	if c.Config.RateLimiter.Backend == configs.RateLimiterBackendRedis && c.Redis != nil {
		cache = ratelimiter.NewRedis(c.Redis, "lobby:ratelimit:")
	} else {
		mem := ratelimiter.NewInMemory()
		c.onClose(func(context.Context) error {
			return mem.Close()
		})
		cache = mem
	}

	return ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: c.Config.RateLimiter.MaxRatePerSecond,
		MaxBurst:         c.Config.RateLimiter.MaxBurst,
		Cache:            cache,
		CacheTTL:         c.Config.RateLimiter.CacheTTL,
		SourceHeaderKey:  c.Config.RateLimiter.SourceHeaderKey,
	})
}

// StartAuditConsumer consumes room events into the audit log until the
// broker connection closes. It is a no-op unless auditing is configured.
func (c *Container) StartAuditConsumer() {
	if c.RabbitMQ == nil || c.AuditRepo == nil {
		return
	}

	consumer := events.NewRoomConsumer(c.RabbitMQ, c.AuditRepo, c.Logger)
	go func() {
		if err := consumer.Listen(); err != nil {
			c.Logger.Error(logging.RabbitMQ, logging.Consume, "audit consumer stopped", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
	}()
}
