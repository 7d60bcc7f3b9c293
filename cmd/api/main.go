package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/career-journal-signup/cmd/mainconfig"
	"github.com/wolfman30/career-journal-signup/internal/account"
	"github.com/wolfman30/career-journal-signup/internal/api/router"
	"github.com/wolfman30/career-journal-signup/internal/app/bootstrap"
	"github.com/wolfman30/career-journal-signup/internal/calendar"
	appconfig "github.com/wolfman30/career-journal-signup/internal/config"
	httpmiddleware "github.com/wolfman30/career-journal-signup/internal/http/middleware"
	"github.com/wolfman30/career-journal-signup/internal/notify"
	"github.com/wolfman30/career-journal-signup/internal/observability/metrics"
	"github.com/wolfman30/career-journal-signup/internal/signup"
	"github.com/wolfman30/career-journal-signup/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting career journal signup API",
		"env", cfg.Env,
		"port", cfg.Port,
		"session_backend", cfg.SessionBackend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	signupMetrics := metrics.NewSignupMetrics(reg)

	var sqsClient *sqs.Client
	var sesClient *sesv2.Client
	if mainconfig.AWSEnabled(cfg) {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return fmt.Errorf("load AWS config: %w", err)
		}
		sqsClient = sqs.NewFromConfig(awsCfg)
		sesClient = sesv2.NewFromConfig(awsCfg)
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}
	sessions := bootstrap.BuildSessionBackends(cfg, redisClient, logger)

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	var workers sync.WaitGroup
	workerCtx, cancelWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer func() {
		cancelWorkers()
		workers.Wait()
	}()

	tracking := bootstrap.BuildAnalytics(cfg, pool, sqsClient, signupMetrics, logger)
	workers.Add(1)
	go func() {
		defer workers.Done()
		tracking.Tracker.Run(workerCtx)
	}()
	if tracking.Relay != nil {
		workers.Add(1)
		go func() {
			defer workers.Done()
			tracking.Relay.Start(workerCtx)
		}()
	}
	workers.Add(1)
	go func() {
		defer workers.Done()
		sessions.RunSweeper(workerCtx, time.Minute)
	}()

	notifier := notify.NewService(bootstrap.BuildEmailSender(cfg, sesClient, logger), logger)
	defer notifier.Wait()

	clock := calendar.SystemClock{}
	accounts := account.WithReminderEmail(
		account.NewSimulator(account.SimulatorConfig{
			CreateLatency:  cfg.AccountCreateLatency,
			ProfileLatency: cfg.ProfileUpdateLatency,
			FailureRate:    cfg.EffectFailureRate,
			Logger:         logger,
		}),
		notifier, clock, logger,
	)

	machine := signup.NewMachine(signup.Options{
		Store:           sessions.Store,
		Gate:            sessions.Gate,
		Accounts:        accounts,
		Tracker:         tracking.Tracker,
		Metrics:         signupMetrics,
		Clock:           clock,
		Logger:          logger,
		SessionTTL:      cfg.SessionTTL,
		NoticeTTL:       cfg.NoticeTTL,
		DefaultTimezone: cfg.ReminderTimezone,
		DashboardURL:    cfg.DashboardURL,
	})

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	workers.Add(1)
	go func() {
		defer workers.Done()
		limiter.RunSweeper(workerCtx, 5*time.Minute)
	}()

	checks := map[string]router.HealthCheck{}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if pool != nil {
		checks["postgres"] = pool.Ping
	}

	srv := newServer(cfg.Port, router.New(&router.Config{
		Logger:             logger,
		SignupHandler:      signup.NewHandler(machine, logger),
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
		HealthChecks:       checks,
	}))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	tracking.Tracker.Close()
	return nil
}

// newServer sets timeouts long enough for the slowest awaited effect.
func newServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
