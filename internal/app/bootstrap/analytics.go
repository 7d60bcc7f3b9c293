package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/career-journal-signup/internal/analytics"
	appconfig "github.com/wolfman30/career-journal-signup/internal/config"
	"github.com/wolfman30/career-journal-signup/internal/observability/metrics"
	"github.com/wolfman30/career-journal-signup/pkg/logging"
)

// BuildPostgresPool connects to DATABASE_URL, or returns nil when it is unset.
func BuildPostgresPool(ctx context.Context, cfg *appconfig.Config) (*pgxpool.Pool, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	return pool, nil
}

// Analytics bundles the tracker and the optional outbox relay.
type Analytics struct {
	Tracker *analytics.Tracker
	Relay   *analytics.Relay
}

// BuildAnalytics always logs events. With a pool, events also land in the
// outbox; with a queue URL and SQS client, the outbox is relayed to SQS.
func BuildAnalytics(cfg *appconfig.Config, pool *pgxpool.Pool, sqsClient *sqs.Client, m *metrics.SignupMetrics, logger *logging.Logger) Analytics {
	if logger == nil {
		logger = logging.Default()
	}
	buffer := 0
	if cfg != nil {
		buffer = cfg.AnalyticsBuffer
	}

	sinks := []analytics.Sink{analytics.NewLogSink(logger)}
	var out Analytics
	if pool != nil {
		store := analytics.NewOutboxStore(pool)
		sinks = append(sinks, store)
		if sqsClient != nil && cfg != nil && cfg.AnalyticsQueueURL != "" {
			out.Relay = analytics.NewRelay(store, analytics.NewSQSPublisher(sqsClient, cfg.AnalyticsQueueURL), logger).
				WithBatchSize(int32(cfg.OutboxBatchSize)).
				WithInterval(cfg.OutboxPollInterval)
			logger.Info("analytics outbox relay enabled")
		}
	}
	out.Tracker = analytics.NewTracker(buffer, m, logger, sinks...)
	return out
}
