// Command api is the access-core process: one HTTP server exposing the
// access pipeline and command callback endpoints (spec §6), plus the
// background outbox dispatcher, lock janitor, DLQ/parking-lot sinks, and
// policy-invalidation consumer that keep every node's candidate cache
// and outbox queue converging (spec §4.4, §4.5).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/slack-go/slack"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/arc-self/access-core/internal/access"
	"github.com/arc-self/access-core/internal/cache"
	"github.com/arc-self/access-core/internal/callback"
	"github.com/arc-self/access-core/internal/config"
	"github.com/arc-self/access-core/internal/engine"
	"github.com/arc-self/access-core/internal/handler"
	"github.com/arc-self/access-core/internal/idempotency"
	"github.com/arc-self/access-core/internal/outbox"
	"github.com/arc-self/access-core/internal/platform/natsclient"
	"github.com/arc-self/access-core/internal/platform/telemetry"
	"github.com/arc-self/access-core/internal/policy"
	"github.com/arc-self/access-core/internal/repository"
	db "github.com/arc-self/access-core/internal/repository/db"
	"github.com/arc-self/access-core/internal/zone"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		tp, err := telemetry.InitTracer(context.Background(), "access-core", endpoint)
		if err != nil {
			logger.Error("failed to init OTel tracer", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
		}
		if mp, err := telemetry.InitMeterProvider(context.Background(), "access-core", endpoint); err != nil {
			logger.Error("failed to init OTel meter provider", zap.Error(err))
		} else {
			defer mp.Shutdown(context.Background())
		}
	}

	vaultAddr := envOr("VAULT_ADDR", "http://localhost:8200")
	vaultToken := envOr("VAULT_TOKEN", "root")
	secretPath := envOr("VAULT_SECRET_PATH", "secret/data/arc/access-core")

	vaultManager, err := config.NewSecretManager(vaultAddr, vaultToken)
	if err != nil {
		logger.Fatal("vault connection failed", zap.Error(err))
	}
	secrets, err := vaultManager.GetKV2(secretPath)
	if err != nil {
		logger.Warn("failed to load secrets from vault, falling back to environment", zap.Error(err))
		secrets = map[string]interface{}{}
	}
	settings := config.LoadSettings(secrets)

	poolCfg, err := pgxpool.ParseConfig(settings.PGUrl)
	if err != nil {
		logger.Fatal("failed to parse PG_URL", zap.Error(err))
	}
	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	natsClient, err := natsclient.NewClient(settings.NATSUrl, logger)
	if err != nil {
		logger.Fatal("nats initialization failed", zap.Error(err))
	}
	defer natsClient.Close()
	if err := natsClient.ProvisionStreams(); err != nil {
		logger.Fatal("nats stream provisioning failed", zap.Error(err))
	}

	var idemCache *idempotency.Cache
	if settings.RedisURL != "" {
		opts, err := redis.ParseURL(settings.RedisURL)
		if err != nil {
			logger.Fatal("failed to parse REDIS_URL", zap.Error(err))
		}
		rdb := redis.NewClient(opts)
		idemCache = idempotency.NewCache(rdb, time.Duration(settings.CacheTTLSeconds)*time.Second, logger)
	} else {
		logger.Warn("REDIS_URL not configured, idempotency lookaside cache disabled")
	}

	reg := prometheus.DefaultRegisterer
	root := db.New(pool)

	// --- Rule candidate cache, zone resolution, decision engine ---
	candidateCache := cache.NewCandidateCache(time.Duration(settings.CacheTTLSeconds) * time.Second)
	candidateProvider := cache.NewProvider(candidateCache, repository.RuleReader{Querier: root})
	zoneProvider := zone.NewProvider(root, logger)
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "access_core", Subsystem: "zone", Name: "utc_fallbacks",
		Help: "Zone resolutions that fell back to UTC since process start.",
	}, func() float64 { return float64(zoneProvider.FallbackCount()) }))

	zoneFallback := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "access_core", Subsystem: "engine", Name: "zone_fallback_total",
		Help: "Evaluations that defaulted to UTC because no zone was supplied.",
	})
	malformedWindow := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "access_core", Subsystem: "engine", Name: "malformed_window_total",
		Help: "Rule windows that could not be evaluated due to malformed start/end.",
	})
	reg.MustRegister(zoneFallback, malformedWindow)
	decisionEngine := engine.NewEngine(zoneFallback, malformedWindow)

	// --- Outbox: publisher, transport, dispatcher, janitor, DLQ chain ---
	outboxMetrics := outbox.NewMetrics(reg)
	cacheInvalidateOnCommit := func(orgID string, ev outbox.Event) {
		if ev.EventType == policy.EventInvalidateAllRequested {
			candidateCache.InvalidateAll(orgID)
			return
		}
		if ev.EventType == policy.EventPolicyChanged {
			if areaID, ok := ev.Payload["areaId"].(string); ok {
				candidateCache.Invalidate(orgID, areaID)
			}
		}
	}
	outboxPublisher := outbox.NewPublisher(logger, cacheInvalidateOnCommit)

	transport := outbox.NewHTTPTransport(settings.TransportURL, time.Duration(settings.TransportTimeoutMillis)*time.Millisecond)
	backoff := outbox.NewBackoffPolicy(settings.RetryMaxAttempts, time.Duration(settings.RetryBaseMillis)*time.Millisecond, time.Duration(settings.RetryMaxMillis)*time.Millisecond)
	dispatcher := outbox.NewDispatcher(root, transport, backoff, natsClient, settings.InstanceID, settings.DispatchBatchSize, time.Duration(settings.DispatchInterval)*time.Millisecond, outboxMetrics, logger)
	janitor := outbox.NewJanitor(root, settings.LockTTLSeconds, logger)

	var slackClient *slack.Client
	if settings.SlackBotToken != "" {
		slackClient = slack.New(settings.SlackBotToken)
	}
	dlqConsumer := outbox.NewDLQConsumer(natsClient, "access.events.*.dlq", "access.events.*.parked", slackClient, settings.SlackChannel, outboxMetrics, logger)
	parkingLotConsumer := outbox.NewParkingLotConsumer(natsClient, "access.events.*.parked", outboxMetrics, logger)

	policyConsumer := policy.NewConsumer(natsClient, candidateCache, logger)

	// --- Access pipeline and callback services ---
	accessMetrics := access.NewMetrics(reg)
	accessService := access.NewService(pool, root, candidateProvider, zoneProvider, decisionEngine, outboxPublisher, idemCache, accessMetrics, logger)
	callbackService := callback.NewService(pool, root, outboxPublisher, logger)

	// --- Background workers ---
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	go dispatcher.Run(bgCtx)
	if err := janitor.Start(bgCtx); err != nil {
		logger.Fatal("outbox janitor start failed", zap.Error(err))
	}
	if err := dlqConsumer.Start(bgCtx); err != nil {
		logger.Fatal("dlq consumer start failed", zap.Error(err))
	}
	if err := parkingLotConsumer.Start(bgCtx); err != nil {
		logger.Fatal("parking lot consumer start failed", zap.Error(err))
	}
	if err := policyConsumer.Start(bgCtx); err != nil {
		logger.Fatal("policy consumer start failed", zap.Error(err))
	}

	// --- HTTP server ---
	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware("access-core"))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			logger.Info("http request", zap.String("uri", v.URI), zap.Int("status", v.Status))
			return nil
		},
	}))
	e.Use(echomw.Recover())

	handler.Register(e, handler.NewAttemptHandler(accessService), handler.NewCallbackHandler(callbackService))

	go func() {
		logger.Info("access-core http server listening", zap.String("addr", ":8080"))
		if err := e.Start(":8080"); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failure", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo shutdown error", zap.Error(err))
	}
	bgCancel()

	natsClient.Close()
	pool.Close()
	logger.Info("access-core shut down cleanly")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
