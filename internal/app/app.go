package app

import (
	"context"
	"fmt"

	"fplpilot/internal/autopilot"
	"fplpilot/internal/config"
	"fplpilot/internal/logger"
	"fplpilot/internal/scheduler"
	apihttp "fplpilot/internal/transport/http/api"

	"golang.org/x/sync/errgroup"
)

// App runs the HTTP API (with MCP mounted) and the advance scheduler.
type App struct {
	cfg     *config.Config
	core    *Core
	api     *apihttp.Server
	sched   *scheduler.AdvanceScheduler
	Summary *StartupSummary
}

// NewApp builds the app without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run serves until ctx is cancelled or a component fails, then closes the stores.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.core == nil {
		return fmt.Errorf("app not initialized")
	}
	defer func() {
		if err := a.core.Close(); err != nil {
			logger.Warnf("[app] close stores: %v", err)
		}
	}()
	if a.Summary != nil {
		a.Summary.Print()
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.api.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		return a.sched.Start(ctx)
	})
	return group.Wait()
}

// Service exposes the autopilot service for tests and tooling.
func (a *App) Service() *autopilot.Service {
	if a == nil || a.core == nil {
		return nil
	}
	return a.core.Service
}
