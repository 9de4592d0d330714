package main

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/pario-ai/skillgate/pkg/api"
	"github.com/pario-ai/skillgate/pkg/cache/sqlite"
	"github.com/pario-ai/skillgate/pkg/config"
	"github.com/pario-ai/skillgate/pkg/contextchain"
	"github.com/pario-ai/skillgate/pkg/hallucination"
	"github.com/pario-ai/skillgate/pkg/logging"
	"github.com/pario-ai/skillgate/pkg/orchestrator"
	"github.com/pario-ai/skillgate/pkg/registry"
	"github.com/pario-ai/skillgate/pkg/router"
	"github.com/pario-ai/skillgate/pkg/tools"
)

// app holds every wired component for one command invocation.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	reg    *prometheus.Registry
	cache  *sqlite.Cache
	svc    *api.Service
}

// loadApp reads configuration and wires the components. sweep enables the
// background expiry loop, which only long-running commands want.
func loadApp(configPath string, sweep bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	cacheOpts := []sqlite.Option{
		sqlite.WithLogger(logger.Named("cache")),
		sqlite.WithMetrics(sqlite.NewMetrics(reg)),
	}
	if sweep {
		cacheOpts = append(cacheOpts, sqlite.WithSweepInterval(cfg.Cache.SweepInterval))
	}
	cache, err := sqlite.New(cfg.Cache.Path, cacheOpts...)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}

	skills := registry.Default()
	if cfg.Registry.ManifestPath != "" {
		skills, err = registry.Load(cfg.Registry.ManifestPath)
		if err != nil {
			_ = cache.Close()
			return nil, fmt.Errorf("load skill manifest: %w", err)
		}
	}

	orch := orchestrator.New(cache, router.New(cfg), cfg.Orchestrator,
		orchestrator.WithLogger(logger.Named("orchestrator")),
		orchestrator.WithMetrics(orchestrator.NewMetrics(reg)))

	chainOpts := []contextchain.Option{
		contextchain.WithMaxEntries(cfg.Context.MaxEntries),
		contextchain.WithDefaultTTL(cfg.Context.DefaultTTL),
		contextchain.WithLogger(logger.Named("context")),
	}
	if cfg.Context.Persist {
		chainOpts = append(chainOpts, contextchain.WithStore(cache))
	}

	validator := tools.New(cache,
		tools.WithPeers(orch),
		tools.WithLogger(logger.Named("tools")),
		tools.WithMetrics(tools.NewMetrics(reg)))

	svc := api.New(cache, orch, contextchain.New(chainOpts...), validator,
		hallucination.New(), skills, logger.Named("api"))

	return &app{cfg: cfg, logger: logger, reg: reg, cache: cache, svc: svc}, nil
}

func (a *app) Close() error {
	return errors.Join(a.cache.Close(), logging.Sync(a.logger))
}
