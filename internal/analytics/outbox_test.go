package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxStoreFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newOutboxStoreWithExec(mock)
	occurred := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO analytics_outbox").
		WithArgs(pgxmock.AnyArg(), "account_created", pgxmock.AnyArg(), occurred).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	if err := store.Write(context.Background(), Event{Name: "account_created", Props: map[string]any{"method": "email"}, OccurredAt: occurred}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	id := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "event", "payload", "created_at"}).
		AddRow(id, "account_created", []byte(`{"event":"account_created"}`), occurred)
	mock.ExpectQuery("SELECT id").WithArgs(int32(10)).WillReturnRows(rows)

	entries, err := store.FetchPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("fetch pending failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != id {
		t.Fatalf("unexpected entries: %#v", entries)
	}

	mock.ExpectExec("UPDATE analytics_outbox").WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := store.MarkDelivered(context.Background(), id)
	if err != nil {
		t.Fatalf("mark delivered failed: %v", err)
	}
	if !ok {
		t.Fatal("expected mark delivered to report success")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOutboxStoreInsertError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newOutboxStoreWithExec(mock)
	mock.ExpectExec("INSERT INTO analytics_outbox").WillReturnError(errors.New("connection reset"))

	_, err = store.Insert(context.Background(), Event{Name: "session_started"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert outbox")
}

type fakeSource struct {
	entries   []OutboxEntry
	delivered []uuid.UUID
	fetchErr  error
}

func (f *fakeSource) FetchPending(context.Context, int32) ([]OutboxEntry, error) {
	return f.entries, f.fetchErr
}

func (f *fakeSource) MarkDelivered(_ context.Context, id uuid.UUID) (bool, error) {
	f.delivered = append(f.delivered, id)
	return true, nil
}

type handlerFunc func(context.Context, OutboxEntry) error

func (f handlerFunc) Handle(ctx context.Context, e OutboxEntry) error { return f(ctx, e) }

func TestRelayDrainSkipsFailedEntries(t *testing.T) {
	ok, bad := uuid.New(), uuid.New()
	src := &fakeSource{entries: []OutboxEntry{
		{ID: bad, Event: "signup_failed", Payload: json.RawMessage(`{}`)},
		{ID: ok, Event: "account_created", Payload: json.RawMessage(`{}`)},
	}}
	relay := newRelay(src, handlerFunc(func(_ context.Context, e OutboxEntry) error {
		if e.ID == bad {
			return errors.New("queue unavailable")
		}
		return nil
	}), nil)

	assert.Equal(t, 1, relay.drain(context.Background()))
	assert.Equal(t, []uuid.UUID{ok}, src.delivered)
}

func TestRelayDrainFetchError(t *testing.T) {
	src := &fakeSource{fetchErr: errors.New("db down")}
	relay := newRelay(src, handlerFunc(func(context.Context, OutboxEntry) error { return nil }), nil)
	assert.Equal(t, 0, relay.drain(context.Background()))
}

func TestRelayOptions(t *testing.T) {
	relay := newRelay(&fakeSource{}, nil, nil).WithBatchSize(0).WithInterval(-1)
	assert.Equal(t, int32(25), relay.batchSize)
	assert.Equal(t, 2*time.Second, relay.interval)

	relay.WithBatchSize(5).WithInterval(time.Second)
	assert.Equal(t, int32(5), relay.batchSize)
	assert.Equal(t, time.Second, relay.interval)
}

func TestRelayStartWithoutHandlerReturns(t *testing.T) {
	relay := newRelay(&fakeSource{}, nil, nil)
	relay.Start(context.Background())
}
