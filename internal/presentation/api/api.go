package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/hilthontt/lobby/docs"
	"github.com/hilthontt/lobby/internal/infrastructure/configs"
	"github.com/hilthontt/lobby/internal/infrastructure/logging"
	"github.com/hilthontt/lobby/internal/infrastructure/metrics"
	"github.com/hilthontt/lobby/internal/infrastructure/ratelimiter"
	healthHandler "github.com/hilthontt/lobby/internal/presentation/handler/health"
	janitorHandler "github.com/hilthontt/lobby/internal/presentation/handler/janitor"
	membersHandler "github.com/hilthontt/lobby/internal/presentation/handler/members"
	messagesHandler "github.com/hilthontt/lobby/internal/presentation/handler/messages"
	roomsHandler "github.com/hilthontt/lobby/internal/presentation/handler/rooms"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Handlers struct {
	Rooms    *roomsHandler.Handler
	Members  *membersHandler.Handler
	Messages *messagesHandler.Handler
	Health   *healthHandler.Handler
	Janitor  *janitorHandler.Handler
}

type Application struct {
	config      configs.Config
	handlers    Handlers
	logger      logging.Logger
	ratelimiter ratelimiter.Limiter
	metrics     *metrics.Metrics
}

func NewApplication(
	config configs.Config,
	handlers Handlers,
	logger logging.Logger,
	ratelimiter ratelimiter.Limiter,
	metrics *metrics.Metrics,
) *Application {
	return &Application{
		config:      config,
		handlers:    handlers,
		logger:      logger,
		ratelimiter: ratelimiter,
		metrics:     metrics,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(app.loggerMiddleware)
	r.Use(app.prometheusMiddleware)
	r.Use(app.enableCors)

	r.Route("/api", func(r chi.Router) {
		r.Use(app.rateLimiterMiddleware)

		r.Route("/rooms", func(r chi.Router) {
			r.Post("/", app.handlers.Rooms.CreateRoomHandler)
			r.Get("/", app.handlers.Rooms.ListRoomsHandler)
			r.Get("/watch", app.handlers.Rooms.WatchRoomsHandler)

			r.Route("/{roomId}", func(r chi.Router) {
				r.Get("/", app.handlers.Rooms.GetRoomHandler)

				r.Get("/members", app.handlers.Members.ListMembersHandler)
				r.Post("/members", app.handlers.Members.JoinHandler)
				r.Delete("/members/me", app.handlers.Members.LeaveHandler)
				r.Post("/leave", app.handlers.Members.LeaveBeaconHandler)

				r.Post("/messages", app.handlers.Messages.SendMessageHandler)
				r.Get("/messages/watch", app.handlers.Messages.WatchMessagesHandler)
			})
		})

		r.Get("/health", app.handlers.Health.GetHealth)
	})

	r.Get("/healthz", app.handlers.Health.GetHealth)
	r.Get("/live", app.handlers.Health.GetHealth)
	r.Get("/ready", app.handlers.Health.GetReady)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	if app.metrics != nil {
		r.Method(http.MethodGet, "/metrics", app.metrics.Handler())
	}
	if app.handlers.Janitor != nil {
		r.Post("/internal/janitor/run", app.handlers.Janitor.RunHandler)
	}

	return otelhttp.NewHandler(r, "lobby.http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

func (app *Application) Run(mux http.Handler) error {
	readTimeout := app.config.HTTP.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := app.config.HTTP.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:      mux,
		WriteTimeout: writeTimeout,
		ReadTimeout:  readTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.handlers.Health.SetHealthy(false)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Info(logging.General, logging.Shutdown, "signal caught", map[logging.ExtraKey]any{
			"signal": s.String(),
		})

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	return nil
}
