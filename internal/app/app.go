// Package app wires configuration, the history store, the analysis
// engine and the HTTP server into one runnable unit.
package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"chartsight/internal/analysis"
	"chartsight/internal/config"
	"chartsight/internal/engine"
	"chartsight/internal/logger"
	"chartsight/internal/provider"
	"chartsight/internal/store/history"
	apihttp "chartsight/internal/transport/http/api"
)

type App struct {
	cfg     *config.Config
	cfgPath string
	store   *history.Store
	engine  *engine.Engine
	server  *apihttp.Server
}

// NewApp builds the dependency graph from a loaded config. cfgPath
// enables hot reload of log settings; empty disables the watcher.
func NewApp(cfg *config.Config, cfgPath string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app requires a config")
	}

	var store *history.Store
	if cfg.History.Enabled {
		s, err := history.New(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open history store: %w", err)
		}
		store = s
	}

	market, _ := analysis.ParseMarket(cfg.Analysis.DefaultMarket)
	eng := engine.NewWithFactory(provider.NewFactory(cfg.Providers), engine.Options{
		Store:          store,
		DefaultMarket:  market,
		PromptProfile:  cfg.Analysis.PromptProfile,
		PreferProvider: cfg.Providers.Prefer,
	})

	server, err := apihttp.NewServer(apihttp.ServerConfig{
		Addr:   cfg.Server.Addr,
		Engine: eng,
		Store:  store,
	})
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, fmt.Errorf("build http server: %w", err)
	}

	return &App{cfg: cfg, cfgPath: cfgPath, store: store, engine: eng, server: server}, nil
}

// Run serves until a signal arrives or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Infof("chartsight listening on %s (env=%s history=%v market=%s)",
		a.server.Addr(), a.cfg.App.Env, a.cfg.History.Enabled, a.cfg.Analysis.DefaultMarket)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	if a.cfgPath != "" {
		group.Go(func() error {
			// Reload only touches log settings; provider and server
			// changes need a restart.
			return config.Watch(ctx, a.cfgPath, func(next *config.Config) {
				logger.SetLevel(next.App.LogLevel)
				logger.EnableLLMPayloadDump(next.App.LLMDump)
				logger.Infof("config reloaded: log_level=%s llm_dump=%v", next.App.LogLevel, next.App.LLMDump)
			})
		})
	}

	err := group.Wait()
	if a.store != nil {
		_ = a.store.Close()
	}
	return err
}
