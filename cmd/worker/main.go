package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/brightlens/shootbook/internal/common"
	"github.com/brightlens/shootbook/internal/config"
	"github.com/brightlens/shootbook/internal/notify"
	"github.com/brightlens/shootbook/internal/obs"
	"github.com/brightlens/shootbook/internal/queue"
	"github.com/brightlens/shootbook/internal/repo"
	"github.com/brightlens/shootbook/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(envOrDefault("OBS_LOG_FORMAT", "json"), envOrDefault("OBS_LOG_LEVEL", "info")).
		With().Str("env", cfg.AppEnv).Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bootCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(bootCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(bootCtx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()
	if err := redisClient.Ping(bootCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "shootbook")
	httpMetrics := obs.NewHTTPMetrics(metricsNamespace)
	domainMetrics := obs.NewDomainMetrics(metricsNamespace, httpMetrics.Registry)
	resilience.RegisterMetrics(httpMetrics.Registry)

	outbound := &http.Client{Timeout: cfg.OutboundTimeout}
	calendarClient := &notify.CalendarClient{
		HTTP: resilience.HTTPClient{
			Client:      outbound,
			Breaker:     resilience.NewBreaker("calendar", cfg.CircuitMinReq, cfg.CircuitFailureRate, cfg.CircuitOpenFor),
			BaseBackoff: cfg.RetryBase,
			MaxAttempts: cfg.RetryMaxAttempts,
			Jitter:      cfg.RetryJitterPercent,
		},
		BaseURL: cfg.CalendarBaseURL,
		APIKey:  cfg.CalendarAPIKey,
	}
	crmClient := &notify.CRMClient{
		HTTP: resilience.HTTPClient{
			Client:      outbound,
			Breaker:     resilience.NewBreaker("crm", cfg.CircuitMinReq, cfg.CircuitFailureRate, cfg.CircuitOpenFor),
			BaseBackoff: cfg.RetryBase,
			MaxAttempts: cfg.RetryMaxAttempts,
			Jitter:      cfg.RetryJitterPercent,
		},
		BaseURL: cfg.CRMBaseURL,
		APIKey:  cfg.CRMAPIKey,
	}
	var mail common.EmailSender = common.NopEmailSender{}

	dispatcher := notify.Dispatcher{
		Bookings:  repo.Bookings{Pool: pool},
		Calendar:  calendarClient,
		CRM:       crmClient,
		Mail:      mail,
		EmailFrom: cfg.NotifyEmailFrom,
		Metrics:   domainMetrics,
		Logger:    logger,
	}

	kinds := []string{notify.TaskCalendarSync, notify.TaskCRMPush, notify.TaskEmailSend}
	var wg sync.WaitGroup
	for _, kind := range kinds {
		worker := queue.Worker{
			R:                 redisClient,
			Prefix:            cfg.QueueRedisPrefix,
			Kind:              kind,
			Concurrency:       cfg.QueueConcurrency,
			VisibilityTimeout: cfg.QueueVisibilityTimeout,
			Handler:           dispatcher.Handle,
			RetryBase:         cfg.QueueBackoffBase,
			RetryJitter:       cfg.QueueBackoffJitter,
			Logger:            logger.With().Str("queue", kind).Logger(),
		}
		wg.Add(1)
		go func(kind string, w queue.Worker) {
			defer wg.Done()
			logger.Info().Str("queue", kind).Msg("worker starting")
			if err := w.Run(ctx); err != nil {
				logger.Error().Err(err).Str("queue", kind).Msg("worker stopped")
			}
		}(kind, worker)
	}

	go sampleQueueDepths(ctx, logger, redisClient, cfg.QueueRedisPrefix, kinds, domainMetrics)

	// metrics endpoint for the worker process
	metricsSrv := &http.Server{
		Addr:    envOrDefault("WORKER_METRICS_ADDR", ":9091"),
		Handler: httpMetrics.Handler(),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("worker metrics server")
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	wg.Wait()
	logger.Info().Msg("worker drained")
}

func sampleQueueDepths(ctx context.Context, logger zerolog.Logger, r *redis.Client, prefix string, kinds []string, m *obs.DomainMetrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, kind := range kinds {
				depths, err := queue.Inspect(ctx, r, prefix, kind)
				if err != nil {
					logger.Warn().Err(err).Str("queue", kind).Msg("inspect queue depth")
					continue
				}
				m.QueueDepth.WithLabelValues(kind, "pending").Set(float64(depths.Pending))
				m.QueueDepth.WithLabelValues(kind, "processing").Set(float64(depths.Processing))
				m.QueueDepth.WithLabelValues(kind, "dead").Set(float64(depths.Dead))
			}
		}
	}
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
