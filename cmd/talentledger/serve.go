package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/djlord-it/talentledger/internal/analytics"
	"github.com/djlord-it/talentledger/internal/api"
	"github.com/djlord-it/talentledger/internal/circuitbreaker"
	"github.com/djlord-it/talentledger/internal/config"
	"github.com/djlord-it/talentledger/internal/ledger"
	"github.com/djlord-it/talentledger/internal/metrics"
	"github.com/djlord-it/talentledger/internal/outreach"
	"github.com/djlord-it/talentledger/internal/reconciler"
	"github.com/djlord-it/talentledger/internal/transport/channel"
	"github.com/djlord-it/talentledger/internal/workflow"
)

// sessionSweepInterval is how often idle recruiter sessions are evicted.
const sessionSweepInterval = time.Minute

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadValid()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			return runServe(cmd.Context(), cfg, logger.Named("talentledger"))
		},
	}
}

// runServe blocks until ctx is cancelled, then shuts down in order: HTTP
// server, recruiter sessions, store.
func runServe(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	logConfigWarnings(cfg, logger)

	store, _, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fail(exitRuntimeError, "%w", err)
	}
	defer store.Close()

	var sink metrics.Sink = metrics.NewNoopSink()
	if cfg.MetricsEnabled {
		sink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer, logger)
		logger.Info("metrics enabled", zap.String("path", cfg.MetricsPath))
	}

	bus := channel.NewSignalBus(channel.WithLogger(logger), channel.WithMetrics(sink))

	sessions := ledger.NewSessions(store, bus, ledger.SessionsConfig{
		Reconciler: reconciler.Config{
			SettleDelay:    cfg.LedgerSettleDelay,
			ResyncSchedule: cfg.LedgerResyncSchedule,
			Timezone:       cfg.LedgerTimezone,
		},
		TTL: cfg.LedgerSessionTTL,
	}, logger, sink)

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	go sessions.RunSweeper(sweepCtx, sessionSweepInterval)

	sender := workflow.NewHTTPSender()
	gateway := workflow.NewGateway(store, store, sender).
		WithMetrics(sink).
		WithLogger(logger).
		WithTimeout(cfg.WorkflowTimeout).
		WithSigning(cfg.WorkflowSigningSecret)

	if cfg.CircuitBreakerThreshold > 0 {
		gateway = gateway.WithBreaker(
			circuitbreaker.New(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown).WithLogger(logger),
		)
		logger.Info("circuit breaker enabled",
			zap.Int("threshold", cfg.CircuitBreakerThreshold),
			zap.Duration("cooldown", cfg.CircuitBreakerCooldown),
		)
	}

	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		gateway = gateway.WithAnalytics(analytics.NewRedisSink(redisClient, analytics.DefaultConfig(), logger))
		logger.Info("analytics enabled", zap.String("redis", cfg.RedisAddr))
	}

	notifier := workflow.NewContactNotifier(sender, cfg.ContactWebhookURL).
		WithMetrics(sink).
		WithLogger(logger).
		WithTimeout(cfg.WorkflowTimeout).
		WithSigning(cfg.WorkflowSigningSecret)

	emails := outreach.NewService(
		outreach.NewHTTPMailer(cfg.MailAPIURL, cfg.MailAPIKey),
		sessions,
		store,
		notifier,
		cfg.MailFrom,
	).WithLogger(logger)

	if !cfg.LogDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := api.NewHandler(sessions, gateway, emails, bus).
		WithHealthChecker(store).
		WithDispatchLog(store).
		WithLogger(logger).
		WithDefaultEndpoint(cfg.WorkflowDefaultEndpoint)
	router := handler.Router()
	if cfg.MetricsEnabled {
		router.GET(cfg.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	logger.Info("started",
		zap.String("http", cfg.HTTPAddr),
		zap.Duration("settle_delay", cfg.LedgerSettleDelay),
	)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-serveErr:
		if err != nil {
			logger.Error("http server error", zap.Error(err))
			runErr = fail(exitRuntimeError, "http server: %w", err)
		}
	}

	logger.Info("stopping http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown error", zap.Error(err))
	}

	logger.Info("closing recruiter sessions")
	stopSweeper()
	sessions.Close()

	logger.Info("stopped")
	return runErr
}

// logConfigWarnings reports optional integrations that are switched off.
func logConfigWarnings(cfg config.Config, logger *zap.Logger) {
	if cfg.WorkflowDefaultEndpoint == "" {
		logger.Warn("WORKFLOW_DEFAULT_ENDPOINT not set; dispatch requests must name a targetEndpoint")
	}
	if cfg.ContactWebhookURL == "" {
		logger.Info("CONTACT_WEBHOOK_URL not set; contact notifications disabled")
	}
	if cfg.MailAPIKey == "" {
		logger.Warn("MAIL_API_KEY not set; candidate email will be rejected by the mail API")
	}
	if cfg.CircuitBreakerThreshold == 0 {
		logger.Warn("CIRCUIT_BREAKER_THRESHOLD=0; a failing workflow endpoint is called on every dispatch")
	}
	if cfg.RedisAddr == "" {
		logger.Info("REDIS_ADDR not set; dispatch analytics disabled")
	}
	if !cfg.MetricsEnabled {
		logger.Info("METRICS_ENABLED not set; metrics disabled")
	}
	if cfg.LedgerResyncSchedule == "" {
		logger.Info("LEDGER_RESYNC_SCHEDULE not set; ledgers reload only on writes and completion signals")
	}
}
