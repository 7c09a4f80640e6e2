// Package main wires together the webscout service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/webscout/webscout/internal/api"
	"github.com/webscout/webscout/internal/cache"
	"github.com/webscout/webscout/internal/clock/system"
	"github.com/webscout/webscout/internal/config"
	"github.com/webscout/webscout/internal/extractor"
	"github.com/webscout/webscout/internal/extractor/detector"
	"github.com/webscout/webscout/internal/extractor/headless"
	"github.com/webscout/webscout/internal/extractor/htmlpage"
	"github.com/webscout/webscout/internal/extractor/reader"
	"github.com/webscout/webscout/internal/hash/sha256"
	"github.com/webscout/webscout/internal/id/uuid"
	"github.com/webscout/webscout/internal/logging"
	"github.com/webscout/webscout/internal/metrics"
	"github.com/webscout/webscout/internal/orchestrator"
	"github.com/webscout/webscout/internal/pipeline"
	"github.com/webscout/webscout/internal/progress"
	"github.com/webscout/webscout/internal/progress/sinks"
	"github.com/webscout/webscout/internal/provider"
	"github.com/webscout/webscout/internal/provider/duckduckgo"
	"github.com/webscout/webscout/internal/provider/google"
	memorypublisher "github.com/webscout/webscout/internal/publisher/memory"
	gpubsub "github.com/webscout/webscout/internal/publisher/pubsub"
	queuememory "github.com/webscout/webscout/internal/queue/memory"
	"github.com/webscout/webscout/internal/ratelimit"
	"github.com/webscout/webscout/internal/scout"
	storememory "github.com/webscout/webscout/internal/storage/memory"
	"github.com/webscout/webscout/internal/storage/postgres"
	"github.com/webscout/webscout/internal/telemetry"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := telemetry.Init(ctx, "webscoutd")
	if err != nil {
		logger.Fatal("telemetry init failed", zap.Error(err))
	}

	hasher := sha256.New()
	clock := system.New()
	idGen := uuid.New()

	var logs scout.LogStore
	if cfg.DB.DSN != "" {
		pgLogs, err := postgres.NewLogStore(ctx, postgres.LogStoreConfig{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			logger.Fatal("postgres log store init failed", zap.Error(err))
		}
		defer pgLogs.Close()
		logs = pgLogs
	} else {
		logs = storememory.NewLogStore()
	}
	lists := storememory.NewListStore()
	settings := storememory.NewSettingsStore(cfg.Settings)

	var backends []provider.Named
	if cfg.Search.GoogleAPIKey != "" {
		backends = append(backends, google.New(google.Config{
			APIKey:   cfg.Search.GoogleAPIKey,
			EngineID: cfg.Search.GoogleEngineID,
		}))
	}
	if cfg.Search.DuckDuckGo {
		backends = append(backends, duckduckgo.New(duckduckgo.Config{}))
	}
	searchProvider := provider.NewMulti(logger.Named("search"), backends...)

	var primary extractor.Named
	if cfg.Extractor.Reader {
		primary = reader.New(reader.Config{
			APIKey:  cfg.Extractor.ReaderAPIKey,
			BaseURL: cfg.Extractor.ReaderBaseURL,
			Timeout: time.Duration(cfg.Extractor.ReaderTimeoutSec) * time.Second,
		})
	} else {
		primary = htmlpage.New(htmlpage.Config{
			UserAgent: cfg.Extractor.UserAgent,
			Timeout:   time.Duration(cfg.Extractor.TimeoutSec) * time.Second,
		})
	}
	var renderer extractor.Named
	if cfg.Headless.Enabled {
		headlessExtractor, err := headless.New(headless.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Extractor.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			logger.Warn("headless extractor init failed", zap.Error(err))
		} else {
			renderer = headlessExtractor
		}
	}
	extract := extractor.NewPromoting(
		primary,
		renderer,
		detector.NewHeuristic(cfg.Extractor.MinWordCount),
		logger.Named("extractor"),
	)

	limiter := ratelimit.New(ratelimit.Config{
		SearchPerMinute: cfg.Settings.SearchRateLimit,
		FetchPerMinute:  cfg.Settings.FetchRateLimit,
		MaxAttempts:     cfg.Pipeline.RateLimitAttempts,
	})
	docs := cache.New(cfg.CacheTTL(), clock)

	pipe := pipeline.New(
		searchProvider,
		extract,
		limiter,
		docs,
		hasher,
		clock,
		pipeline.Config{
			FetchConcurrency: cfg.Pipeline.FetchConcurrency,
			SearchTimeout:    cfg.SearchTimeout(),
			FetchTimeout:     cfg.FetchTimeout(),
		},
		logger.Named("pipeline"),
	)

	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal("prometheus sink init failed", zap.Error(err))
	}
	hub := progress.NewHub(
		progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
	)

	var publisher scout.Publisher
	if cfg.PubSub.ProjectID != "" {
		pub, err := gpubsub.NewFromProject(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("pubsub init failed", zap.Error(err))
		}
		defer func() {
			if closeErr := pub.Close(); closeErr != nil {
				logger.Warn("pubsub close error", zap.Error(closeErr))
			}
		}()
		publisher = pub
	} else {
		publisher = memorypublisher.New()
	}

	queue := queuememory.NewQueue(cfg.Orchestrator.QueueDepth)
	orch := orchestrator.New(
		pipe,
		queue,
		logs,
		settings,
		lists,
		publisher,
		hub,
		idGen,
		clock,
		orchestrator.Config{
			Workers: cfg.Orchestrator.Workers,
			Topic:   cfg.PubSub.TopicName,
		},
		logger.Named("orchestrator"),
	)
	orch.Start(ctx)

	apiServer := api.NewServer(orch, logs, settings, lists, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownSec)*time.Second,
	)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	queue.Close()
	orch.Wait()
	if err := hub.Close(shutdownCtx); err != nil {
		logger.Error("progress hub close error", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		logger.Error("tracer shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
