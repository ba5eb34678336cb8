package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"condo/internal/core/id"
	"condo/internal/domain"
	"condo/pkg/logger"
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed" // parked after MaxRetries
)

// OutboxMessage represents a message in the transactional outbox.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"` // e.g. "UnifiedCharge"
	AggregateID   id.ID        `db:"aggregate_id"`
	EventType     string       `db:"event_type"` // e.g. "charge.issued"
	Payload       []byte       `db:"payload"`    // JSON payload
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

// Decode unmarshals the payload into v.
func (m *OutboxMessage) Decode(v any) error {
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.EventType, err)
	}
	return nil
}

const insertOutboxSQL = `
	INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

// OutboxPublisher writes events to the outbox table in the caller's transaction.
type OutboxPublisher struct {
	txManager *TxManager
}

var _ domain.EventPublisher = (*OutboxPublisher)(nil)

// NewOutboxPublisher creates a new outbox publisher.
func NewOutboxPublisher(txManager *TxManager) *OutboxPublisher {
	return &OutboxPublisher{txManager: txManager}
}

// Publish writes an event to the outbox within the current transaction.
// MUST be called inside a transaction context.
func (p *OutboxPublisher) Publish(ctx context.Context, event domain.Event) error {
	tx := p.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("outbox publish requires transaction context")
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = tx.Exec(ctx, insertOutboxSQL,
		id.New(), event.AggregateType, event.AggregateID, event.EventType, payload, OutboxStatusPending, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// PublishBatch writes multiple events in one round-trip.
func (p *OutboxPublisher) PublishBatch(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx := p.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("outbox publish requires transaction context")
	}

	batch := &pgx.Batch{}
	now := time.Now().UTC()
	for _, event := range events {
		payload, err := json.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
		batch.Queue(insertOutboxSQL,
			id.New(), event.AggregateType, event.AggregateID, event.EventType, payload, OutboxStatusPending, now)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert outbox message: %w", err)
		}
	}
	return nil
}

// OutboxHandler processes outbox messages.
type OutboxHandler interface {
	// Handle processes a message and returns error if failed
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxHandlerFunc adapts a function to OutboxHandler.
type OutboxHandlerFunc func(ctx context.Context, msg *OutboxMessage) error

func (f OutboxHandlerFunc) Handle(ctx context.Context, msg *OutboxMessage) error { return f(ctx, msg) }

// OutboxMux routes messages to handlers by event type. Messages without a
// handler are acknowledged.
type OutboxMux struct {
	handlers map[string]OutboxHandler
}

// NewOutboxMux creates an empty router.
func NewOutboxMux() *OutboxMux {
	return &OutboxMux{handlers: make(map[string]OutboxHandler)}
}

// Handle registers h for eventType.
func (m *OutboxMux) Handle(eventType string, h OutboxHandler) *OutboxMux {
	m.handlers[eventType] = h
	return m
}

// Dispatch implements OutboxHandler.
func (m *OutboxMux) Dispatch(ctx context.Context, msg *OutboxMessage) error {
	h, ok := m.handlers[msg.EventType]
	if !ok {
		logger.Debug(ctx, "no outbox handler", "event_type", msg.EventType, "message_id", msg.ID)
		return nil
	}
	return h.Handle(ctx, msg)
}

// RelayConfig tunes the outbox relay.
type RelayConfig struct {
	BatchSize   int
	MaxRetries  int           // attempts before a message is parked
	BaseBackoff time.Duration // delay after the first failure, doubled per retry
	MaxBackoff  time.Duration
	Lease       time.Duration // how long a claimed message stays invisible
}

// DefaultRelayConfig returns relay defaults.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		BatchSize:   100,
		MaxRetries:  5,
		BaseBackoff: time.Minute,
		MaxBackoff:  time.Hour,
		Lease:       5 * time.Minute,
	}
}

// RelayStats summarizes one ProcessBatch call.
type RelayStats struct {
	Claimed   int
	Published int
	Retried   int
	Parked    int
}

// OutboxRelay reads and processes messages from the outbox.
// Used by the background worker to deliver notifications.
type OutboxRelay struct {
	txManager *TxManager
	cfg       RelayConfig
	mux       *OutboxMux
	now       func() time.Time
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(txManager *TxManager, cfg RelayConfig, mux *OutboxMux) *OutboxRelay {
	def := DefaultRelayConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.Lease <= 0 {
		cfg.Lease = def.Lease
	}
	return &OutboxRelay{txManager: txManager, cfg: cfg, mux: mux, now: time.Now}
}

// ProcessBatch claims due messages and delivers them one by one. A failed
// delivery is rescheduled with backoff and parked after MaxRetries.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (RelayStats, error) {
	messages, err := r.claim(ctx)
	if err != nil {
		return RelayStats{}, err
	}

	stats := RelayStats{Claimed: len(messages)}
	for _, msg := range messages {
		handleErr := r.mux.Dispatch(ctx, msg)
		if handleErr == nil {
			if err := r.markPublished(ctx, msg); err != nil {
				return stats, err
			}
			stats.Published++
			continue
		}

		parked, err := r.markFailed(ctx, msg, handleErr)
		if err != nil {
			return stats, err
		}
		if parked {
			stats.Parked++
			logger.Error(ctx, "outbox message parked",
				"message_id", msg.ID, "event_type", msg.EventType, "retries", msg.RetryCount+1, "error", handleErr)
		} else {
			stats.Retried++
			logger.Warn(ctx, "outbox delivery failed, will retry",
				"message_id", msg.ID, "event_type", msg.EventType, "retries", msg.RetryCount+1, "error", handleErr)
		}
	}

	if stats.Claimed > 0 {
		logger.Info(ctx, "outbox batch processed",
			"claimed", stats.Claimed,
			"published", stats.Published,
			"retried", stats.Retried,
			"parked", stats.Parked,
		)
	}
	return stats, nil
}

// claim locks due rows, pushes their next_retry_at past the lease and
// commits, so concurrent relays never pick the same message.
func (r *OutboxRelay) claim(ctx context.Context) ([]*OutboxMessage, error) {
	var messages []*OutboxMessage
	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		q := r.txManager.GetQuerier(ctx)
		if err := pgxscan.Select(ctx, q, &messages, `
			SELECT id, aggregate_type, aggregate_id, event_type, payload, status,
			       retry_count, last_error, next_retry_at, created_at, published_at
			FROM sys_outbox
			WHERE status = $1
			  AND (next_retry_at IS NULL OR next_retry_at <= $2)
			ORDER BY created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		`, OutboxStatusPending, r.now().UTC(), r.cfg.BatchSize); err != nil {
			return fmt.Errorf("fetch outbox messages: %w", err)
		}
		if len(messages) == 0 {
			return nil
		}

		ids := make([]id.ID, len(messages))
		for i, m := range messages {
			ids[i] = m.ID
		}
		if _, err := q.Exec(ctx, `UPDATE sys_outbox SET next_retry_at = $1 WHERE id = ANY($2)`,
			r.now().UTC().Add(r.cfg.Lease), ids); err != nil {
			return fmt.Errorf("lease outbox messages: %w", err)
		}
		return nil
	})
	return messages, err
}

func (r *OutboxRelay) markPublished(ctx context.Context, msg *OutboxMessage) error {
	_, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_outbox
		SET status = $1, published_at = $2, next_retry_at = NULL
		WHERE id = $3
	`, OutboxStatusPublished, r.now().UTC(), msg.ID)
	if err != nil {
		return fmt.Errorf("mark outbox message published: %w", err)
	}
	return nil
}

func (r *OutboxRelay) markFailed(ctx context.Context, msg *OutboxMessage, cause error) (parked bool, err error) {
	retries := msg.RetryCount + 1
	status := OutboxStatusPending
	if retries >= r.cfg.MaxRetries {
		status = OutboxStatusFailed
		parked = true
	}
	next := r.now().UTC().Add(Backoff(r.cfg.BaseBackoff, r.cfg.MaxBackoff, msg.RetryCount))

	_, err = r.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_outbox
		SET retry_count = $1, last_error = $2, next_retry_at = $3, status = $4
		WHERE id = $5
	`, retries, cause.Error(), next, status, msg.ID)
	if err != nil {
		return false, fmt.Errorf("update failed outbox message: %w", err)
	}
	return parked, nil
}

// Requeue moves parked messages back to pending. Returns rows moved.
func (r *OutboxRelay) Requeue(ctx context.Context) (int64, error) {
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_outbox
		SET status = $1, retry_count = 0, next_retry_at = NULL
		WHERE status = $2
	`, OutboxStatusPending, OutboxStatusFailed)
	if err != nil {
		return 0, fmt.Errorf("requeue parked messages: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Backoff returns base doubled retry times, capped at ceiling.
func Backoff(base, ceiling time.Duration, retry int) time.Duration {
	d := base
	for i := 0; i < retry && d < ceiling; i++ {
		d *= 2
	}
	if d > ceiling {
		return ceiling
	}
	return d
}
