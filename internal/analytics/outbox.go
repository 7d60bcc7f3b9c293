package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wolfman30/career-journal-signup/pkg/logging"
)

// OutboxEntry is a stored event awaiting relay.
type OutboxEntry struct {
	ID        uuid.UUID
	Event     string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// DeliveryHandler ships outbox entries downstream.
type DeliveryHandler interface {
	Handle(ctx context.Context, entry OutboxEntry) error
}

type outboxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OutboxStore persists analytics events in Postgres.
type OutboxStore struct {
	db outboxDB
}

func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	if pool == nil {
		panic("analytics: pgx pool required")
	}
	return newOutboxStoreWithExec(pool)
}

func newOutboxStoreWithExec(db outboxDB) *OutboxStore {
	return &OutboxStore{db: db}
}

// Insert stores an event and returns its id.
func (s *OutboxStore) Insert(ctx context.Context, e Event) (uuid.UUID, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return uuid.Nil, fmt.Errorf("analytics: marshal event: %w", err)
	}
	id := uuid.New()
	query := `
		INSERT INTO analytics_outbox (id, event, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.Exec(ctx, query, id, e.Name, data, e.OccurredAt); err != nil {
		return uuid.Nil, fmt.Errorf("analytics: insert outbox: %w", err)
	}
	return id, nil
}

// Write makes the store usable as a tracker sink.
func (s *OutboxStore) Write(ctx context.Context, e Event) error {
	_, err := s.Insert(ctx, e)
	return err
}

func (s *OutboxStore) FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error) {
	query := `
		SELECT id, event, payload, created_at
		FROM analytics_outbox
		WHERE delivered_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("analytics: fetch pending: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var entry OutboxEntry
		var payload []byte
		if err := rows.Scan(&entry.ID, &entry.Event, &payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("analytics: scan outbox: %w", err)
		}
		entry.Payload = append([]byte(nil), payload...)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *OutboxStore) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE analytics_outbox
		SET delivered_at = now()
		WHERE id = $1 AND delivered_at IS NULL
	`
	ct, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("analytics: mark delivered: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

type outboxSource interface {
	FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error)
}

// Relay polls the outbox and hands entries to the delivery handler.
type Relay struct {
	store     outboxSource
	handler   DeliveryHandler
	logger    *logging.Logger
	batchSize int32
	interval  time.Duration
}

func NewRelay(store *OutboxStore, handler DeliveryHandler, logger *logging.Logger) *Relay {
	return newRelay(store, handler, logger)
}

func newRelay(store outboxSource, handler DeliveryHandler, logger *logging.Logger) *Relay {
	if logger == nil {
		logger = logging.Default()
	}
	return &Relay{
		store:     store,
		handler:   handler,
		logger:    logger.Component("analytics_relay"),
		batchSize: 25,
		interval:  2 * time.Second,
	}
}

func (r *Relay) WithBatchSize(size int32) *Relay {
	if size > 0 {
		r.batchSize = size
	}
	return r
}

func (r *Relay) WithInterval(interval time.Duration) *Relay {
	if interval > 0 {
		r.interval = interval
	}
	return r
}

// Start polls until ctx is done.
func (r *Relay) Start(ctx context.Context) {
	if r.store == nil || r.handler == nil {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

// drain relays one batch and returns how many entries were delivered.
func (r *Relay) drain(ctx context.Context) int {
	entries, err := r.store.FetchPending(ctx, r.batchSize)
	if err != nil {
		r.logger.Error("outbox fetch failed", "error", err)
		return 0
	}
	delivered := 0
	for _, entry := range entries {
		if err := r.handler.Handle(ctx, entry); err != nil {
			r.logger.Error("outbox delivery failed", "error", err, "event_id", entry.ID, "event", entry.Event)
			continue
		}
		if ok, err := r.store.MarkDelivered(ctx, entry.ID); err != nil {
			r.logger.Error("failed to mark outbox delivered", "error", err, "event_id", entry.ID)
		} else if ok {
			delivered++
			r.logger.Debug("outbox delivered", "event_id", entry.ID, "event", entry.Event)
		}
	}
	return delivered
}
