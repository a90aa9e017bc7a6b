package main

import (
	"context"
	"expvar"
	"log"
	"runtime"
	"time"

	"github.com/hilthontt/lobby/internal/dependency"
	"github.com/hilthontt/lobby/internal/infrastructure/configs"
	"github.com/hilthontt/lobby/internal/infrastructure/logging"
	"github.com/hilthontt/lobby/internal/infrastructure/ws"
	"github.com/hilthontt/lobby/internal/presentation/api"
	healthHandler "github.com/hilthontt/lobby/internal/presentation/handler/health"
	janitorHandler "github.com/hilthontt/lobby/internal/presentation/handler/janitor"
	membersHandler "github.com/hilthontt/lobby/internal/presentation/handler/members"
	messagesHandler "github.com/hilthontt/lobby/internal/presentation/handler/messages"
	roomsHandler "github.com/hilthontt/lobby/internal/presentation/handler/rooms"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	serviceName = "lobby-api"
)

// @title        Lobby API
// @version      1.0
// @description  Ephemeral chat rooms that are reclaimed once abandoned.
// @BasePath     /
func main() {
	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.NewLogger(&cfg.Logger)

	if err := cfg.Validate(); err != nil {
		logger.Fatal(logging.General, logging.Startup, "invalid configuration", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := dependency.NewContainer(ctx, cfg, serviceName, logger)
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "failed to initialize dependencies", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		if err := c.Close(closeCtx); err != nil {
			logger.Error(logging.General, logging.Shutdown, "failed to release dependencies", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
	}()

	c.StartAuditConsumer()
	c.StartJanitor(ctx)

	checks := map[string]healthHandler.Check{}
	if c.Mongo != nil {
		checks["mongodb"] = func(ctx context.Context) error {
			return c.Mongo.Ping(ctx, readpref.Primary())
		}
	}
	if c.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return c.Redis.Ping(ctx).Err()
		}
	}

	upgrader := ws.NewUpgrader(cfg.HTTP.AllowedOrigins)
	handlers := api.Handlers{
		Rooms:    roomsHandler.NewHandler(c.Rooms, upgrader, logger),
		Members:  membersHandler.NewHandler(c.Members, cfg.HTTP.SecureCookies, logger),
		Messages: messagesHandler.NewHandler(c.Messages, upgrader, cfg.HTTP.SecureCookies, logger),
		Health:   healthHandler.NewHandler(checks),
		Janitor:  janitorHandler.NewHandler(c.Job, logger),
	}

	app := api.NewApplication(*cfg, handlers, logger, c.RateLimiter(), c.Metrics)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.Mount()
	if err := app.Run(mux); err != nil {
		logger.Error(logging.General, logging.Shutdown, "server stopped with error", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
}
