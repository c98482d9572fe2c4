// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/ManuGH/hubgate/internal/api"
	"github.com/ManuGH/hubgate/internal/cache"
	"github.com/ManuGH/hubgate/internal/catalog"
	"github.com/ManuGH/hubgate/internal/config"
	"github.com/ManuGH/hubgate/internal/daemon"
	"github.com/ManuGH/hubgate/internal/health"
	"github.com/ManuGH/hubgate/internal/hub"
	hglog "github.com/ManuGH/hubgate/internal/log"
	"github.com/ManuGH/hubgate/internal/metrics"
	"github.com/ManuGH/hubgate/internal/ratelimit"
	"github.com/ManuGH/hubgate/internal/resilience"
	"github.com/ManuGH/hubgate/internal/telemetry"
	"github.com/ManuGH/hubgate/internal/token"
	"github.com/ManuGH/hubgate/internal/usage"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(runHealthcheckCLI(os.Args[2:]))
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe defaults until the config is loaded.
	hglog.Configure(hglog.Config{
		Level:   "info",
		Service: "hubgate",
		Version: version,
	})
	logger := hglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Config path: explicit via --config, otherwise auto-load the data
	// dir's config.yaml if it exists.
	effectiveConfigPath := strings.TrimSpace(*configPath)
	if effectiveConfigPath == "" {
		dataDir := strings.TrimSpace(config.ParseString("HUBGATE_DATA_DIR", "./data"))
		autoPath := filepath.Join(dataDir, "config.yaml")
		if _, err := os.Stat(autoPath); err == nil {
			effectiveConfigPath = autoPath
		}
	}

	loader := config.NewLoader(effectiveConfigPath, version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	// Re-configure with the loaded level.
	hglog.Configure(hglog.Config{
		Level:   cfg.LogLevel,
		Service: "hubgate",
		Version: cfg.Version,
	})

	if effectiveConfigPath != "" {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file").
			Str("path", effectiveConfigPath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	// Pre-flight checks, fail fast.
	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.check_failed").
			Msg("startup checks failed, verify configuration and permissions")
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", cfg.Listen).
		Msg("starting hubgate")

	logger.Info().Msgf("→ Hub: %s", config.MaskURL(cfg.Hub.Endpoint))
	logger.Info().Msgf("→ Inference: %s", config.MaskURL(cfg.Inference.Endpoint))
	logger.Info().Msgf("→ Data dir: %s", cfg.DataDir)
	logger.Info().Msgf("→ Watched models: %d", len(cfg.Refresh.Models))
	logger.Debug().Stringer("config", cfg).Msg("effective configuration")

	// Telemetry before any upstream call, so startup traffic is traced.
	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    "hubgate",
		ServiceVersion: cfg.Version,
		Environment:    cfg.OTel.Environment,
		ExporterType:   cfg.OTel.ExporterType,
		Endpoint:       cfg.OTel.Endpoint,
		SamplingRate:   cfg.OTel.SamplingRate,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "telemetry.init_failed").
			Msg("failed to initialize telemetry")
	}

	// Upstream token: explicit config wins, then ENV, then the saved
	// token file. Anonymous is fine; gated models stay ineligible.
	upstreamToken, tokenSource, err := token.Resolve(cfg.Hub.Token, cfg.DataDir)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "token.resolve_failed").
			Msg("failed to resolve upstream token")
	}
	metrics.SetTokenSource(string(tokenSource))
	if upstreamToken != "" {
		logger.Info().Msgf("→ Upstream token: configured (%s)", tokenSource)
	} else {
		logger.Warn().Msg("→ Upstream token: not configured, private and gated models are unreachable")
	}

	if cfg.APIToken == "" && !cfg.AuthAnonymous {
		logger.Warn().Msg("→ API token: NOT configured; all protected endpoints refuse requests. Set HUBGATE_API_TOKEN or HUBGATE_AUTH_ANONYMOUS=true.")
	}

	policy, err := health.OutboundPolicyFor(cfg)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "policy.build_failed").
			Msg("failed to build outbound policy")
	}

	metaCache, err := cache.New(cfg.Cache.Backend, cache.RedisConfig{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	}, hglog.WithComponent("cache"))
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "cache.init_failed").
			Str("backend", cfg.Cache.Backend).
			Msg("failed to initialize metadata cache")
	}

	hubClient, err := hub.New(hub.Options{
		Endpoint:  cfg.Hub.Endpoint,
		Token:     upstreamToken,
		UserAgent: "hubgate/" + version,
		Timeout:   cfg.Hub.Timeout,
		Cache:     metaCache,
		CacheTTL:  cfg.Hub.CacheTTL,
		Policy:    &policy,
		Breaker:   resilience.NewCircuitBreaker("hub", cfg.Breaker.FailureThreshold, cfg.Breaker.ResetTimeout),
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "hub.init_failed").
			Msg("failed to create hub client")
	}

	store, err := catalog.Open(catalog.Options{
		Path: cfg.Catalog.Path,
		TTL:  cfg.Catalog.TTL,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "catalog.open_failed").
			Str("path", cfg.Catalog.Path).
			Msg("failed to open catalog")
	}

	usageStore, err := usage.NewStore(cfg.Usage.Path)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "usage.open_failed").
			Str("path", cfg.Usage.Path).
			Msg("failed to open usage store")
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(limiterConfig(cfg))
	}

	// Hot reload: watch the config file and accept SIGHUP.
	holder := config.NewHolder(cfg, config.NewLoader(effectiveConfigPath, version), effectiveConfigPath)

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewPingChecker("usage_db", usageStore.Ping))
	hm.RegisterChecker(health.NewCountChecker("catalog", store.Len))

	apiServer, err := api.New(holder.Get, api.Deps{
		Hub:           hubClient,
		Catalog:       store,
		Usage:         usageStore,
		Limiter:       limiter,
		Health:        hm,
		Policy:        &policy,
		Breaker:       resilience.NewCircuitBreaker("inference", cfg.Breaker.FailureThreshold, cfg.Breaker.ResetTimeout),
		UpstreamToken: upstreamToken,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "api.init_failed").
			Msg("failed to create API server")
	}

	// Readiness follows the refresh job once an interval is configured.
	if cfg.Refresh.Interval > 0 {
		maxAge := 3 * cfg.Refresh.Interval
		hm.RegisterChecker(health.NewLastRunChecker(maxAge, func() (time.Time, string) {
			status := apiServer.LastRefresh()
			if status == nil {
				return time.Time{}, "no refresh has run yet"
			}
			return status.LastRun, status.Error
		}))
	}

	// Initial catalog fill before the listeners come up. Disable with
	// HUBGATE_INITIAL_REFRESH=false.
	if config.ParseBool("HUBGATE_INITIAL_REFRESH", true) && len(cfg.Refresh.Models) > 0 {
		logger.Info().Msg("performing initial catalog refresh")
		if _, err := apiServer.RunRefresh(ctx); err != nil {
			logger.Error().Err(err).Msg("initial catalog refresh failed")
			logger.Warn().Msg("→ Catalog may be empty until a manual refresh via POST /api/v1/refresh")
		} else {
			logger.Info().Msg("initial catalog refresh completed")
		}
	}

	mgr, err := daemon.NewManager(daemon.ServerConfig{
		ListenAddr: cfg.Listen,
	}, daemon.Deps{
		Logger:         logger,
		APIHandler:     apiServer.Handler(),
		MetricsHandler: promhttp.Handler(),
		MetricsAddr:    cfg.MetricsListen,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.creation.failed").
			Msg("failed to create daemon manager")
	}

	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	mgr.RegisterShutdownHook("catalog", func(context.Context) error { return store.Close() })
	mgr.RegisterShutdownHook("usage_db", func(context.Context) error { return usageStore.Close() })
	mgr.RegisterShutdownHook("config_watcher", func(context.Context) error {
		holder.Stop()
		return nil
	})

	app := daemon.NewApp(logger, mgr, holder, apiServer)
	if err := app.Run(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "daemon.failed").
			Msg("daemon app failed")
	}

	logger.Info().Msg("server exiting")
}

// limiterConfig maps the flat rate-limit config onto the limiter's
// richer shape, keeping the built-in per-class defaults.
func limiterConfig(cfg config.Config) ratelimit.Config {
	rc := ratelimit.DefaultConfig()
	if cfg.RateLimit.GlobalRate > 0 {
		rc.GlobalRate = rate.Limit(cfg.RateLimit.GlobalRate)
	}
	if cfg.RateLimit.GlobalBurst > 0 {
		rc.GlobalBurst = cfg.RateLimit.GlobalBurst
	}
	if cfg.RateLimit.PerIPRate > 0 {
		rc.PerIPRate = rate.Limit(cfg.RateLimit.PerIPRate)
	}
	if cfg.RateLimit.PerIPBurst > 0 {
		rc.PerIPBurst = cfg.RateLimit.PerIPBurst
	}
	return rc
}
