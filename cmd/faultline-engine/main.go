package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/faultlinehq/faultline-engine/internal/api"
	"github.com/faultlinehq/faultline-engine/internal/cache"
	"github.com/faultlinehq/faultline-engine/internal/collectors"
	"github.com/faultlinehq/faultline-engine/internal/config"
	"github.com/faultlinehq/faultline-engine/internal/engine"
	"github.com/faultlinehq/faultline-engine/internal/evidence"
	"github.com/faultlinehq/faultline-engine/internal/history"
	"github.com/faultlinehq/faultline-engine/internal/metrics"
	"github.com/faultlinehq/faultline-engine/internal/reasoning"
	"github.com/faultlinehq/faultline-engine/internal/repo"
	"github.com/faultlinehq/faultline-engine/internal/resolve"
	"github.com/faultlinehq/faultline-engine/internal/synthesis"
	"github.com/faultlinehq/faultline-engine/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting faultline-engine", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled {
		provider := cache.NewMemoryProvider()
		defer provider.Close()
		cacheProvider = provider
	}

	gateway := repo.NewGatewayClient(repo.GatewayConfig{
		BaseURL:     cfg.Gateway.BaseURL,
		Timeout:     cfg.Gateway.Timeout,
		HealthPath:  cfg.Gateway.HealthPath,
		ChangesPath: cfg.Gateway.ChangesPath,
		ConfigPath:  cfg.Gateway.ConfigPath,
		LogsPath:    cfg.Gateway.LogsPath,
		MetricsPath: cfg.Gateway.MetricsPath,
		TracePath:   cfg.Gateway.TracePath,
		HealthTTL:   cfg.Cache.HealthTTL,
		ChangesTTL:  cfg.Cache.ChangesTTL,
	}, cacheProvider)

	resolver := resolve.NewResolver(gateway, logger)
	gatherer := evidence.NewGatherer(
		collectors.NewDefaultRegistry(gateway),
		gateway,
		gateway,
		cfg.Investigation.MaxConcurrency,
		cfg.Investigation.PerStepTimeout,
		logger,
	)
	orchestrator := engine.NewOrchestrator(engine.DefaultRegistry(), cfg.Investigation, logger)

	var synthesizer synthesis.Synthesizer = synthesis.NewHeuristic()
	if cfg.Reasoning.Provider == "anthropic" {
		unit := reasoning.NewAnthropicUnit(reasoning.AnthropicConfig{
			Model:     cfg.Reasoning.Model,
			MaxTokens: int64(cfg.Reasoning.MaxTokens),
		})
		synthesizer = synthesis.NewGrounded(unit, cfg.Reasoning.Timeout, logger)
	}

	advisor, err := synthesis.NewAdvisor(cfg.Advice.RulesPath, logger)
	if err != nil {
		logger.Error("failed to load advice rule pack", slog.Any("error", err))
		os.Exit(1)
	}

	inv := engine.New(resolver, gatherer, orchestrator, synthesizer, advisor, cfg.Investigation, logger)

	store := history.NewStore(cfg.History.Limit)
	miner := history.NewMiner(store, logger)
	handler := api.NewHandler(inv, store, miner, logger)

	server, err := api.NewServer(cfg.Server, handler)
	if err != nil {
		logger.Error("failed to create HTTP server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("HTTP server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("faultline-engine stopped")
}
