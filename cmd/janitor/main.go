// Command janitor performs one reclamation sweep and exits. It is meant for
// an external scheduler such as a Kubernetes CronJob.
//
// Exit status is 0 when the run completed, including runs where some rooms
// could not be reclaimed (they are retried by the next run), and 1 when the
// run was aborted.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/hilthontt/lobby/internal/dependency"
	"github.com/hilthontt/lobby/internal/domain"
	"github.com/hilthontt/lobby/internal/infrastructure/configs"
	"github.com/hilthontt/lobby/internal/infrastructure/logging"
)

const (
	serviceName = "lobby-janitor"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Printf("failed to load configuration: %v", err)
		return 1
	}

	logger := logging.NewLogger(&cfg.Logger)

	if err := cfg.ValidateStandaloneJanitor(); err != nil {
		logger.Error(logging.Janitor, logging.Startup, "invalid configuration, nothing was swept", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Janitor.EffectiveRunTimeout()+30*time.Second)
	defer cancel()

	c, err := dependency.NewContainer(ctx, cfg, serviceName, logger)
	if err != nil {
		logger.Error(logging.Janitor, logging.Startup, "failed to initialize dependencies", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		return 1
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		_ = c.Close(closeCtx)
	}()

	_, ran, err := c.Job.RunOnce(ctx)
	switch {
	case !ran:
		return 0
	case err == nil, errors.Is(err, domain.ErrPartialSweep):
		return 0
	default:
		return 1
	}
}
