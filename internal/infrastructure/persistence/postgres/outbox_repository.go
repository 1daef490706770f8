package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Haleralex/walletledger/internal/application/ports"
	"github.com/Haleralex/walletledger/internal/domain/events"
)

// Compile-time checks: the outbox persists events and doubles as the
// EventPublisher the use cases write through.
var _ ports.OutboxRepository = (*OutboxRepository)(nil)
var _ ports.EventPublisher = (*OutboxRepository)(nil)

// maxOutboxRetries bounds how often a failed message returns to PENDING.
const maxOutboxRetries = 5

// OutboxRepository implements the transactional outbox over the outbox
// relation. Save runs inside the caller's UnitOfWork transaction, so the
// event row commits atomically with the business change; the relay drains
// PENDING rows afterwards and publishes them to the broker.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

// NewOutboxRepository creates an OutboxRepository over the pool.
func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

func (r *OutboxRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// Save appends the event as a PENDING outbox row. Call it with a transaction
// context when the event must commit with the business change.
func (r *OutboxRepository) Save(ctx context.Context, event events.DomainEvent) error {
	q := r.getQuerier(ctx)

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event %s: %w", event.EventType(), err)
	}

	query := `
		INSERT INTO outbox (
			id, aggregate_type, aggregate_id, event_type,
			payload, status, partition_key, retry_count, created_at
		) VALUES ($1, $2, $3, $4, $5, 'PENDING', $6, 0, $7)
	`

	_, err = q.Exec(ctx, query,
		event.EventID(),
		aggregateTypeOf(event.EventType()),
		event.AggregateID(),
		event.EventType(),
		payload,
		event.AggregateID().String(),
		event.OccurredAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to save event to outbox: %w", err)
	}

	return nil
}

// Publish implements EventPublisher; with an outbox, publishing is saving.
func (r *OutboxRepository) Publish(ctx context.Context, event events.DomainEvent) error {
	return r.Save(ctx, event)
}

// PublishBatch saves several events, failing on the first error.
func (r *OutboxRepository) PublishBatch(ctx context.Context, eventsList []events.DomainEvent) error {
	for _, event := range eventsList {
		if err := r.Save(ctx, event); err != nil {
			return fmt.Errorf("failed to publish event %s: %w", event.EventType(), err)
		}
	}
	return nil
}

// FindUnpublished claims up to limit PENDING messages, oldest first.
// FOR UPDATE SKIP LOCKED keeps concurrent relay instances off each other's
// batches; run it inside a transaction so the claim survives until the
// batch is marked.
func (r *OutboxRepository) FindUnpublished(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	q := r.getQuerier(ctx)

	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, partition_key, retry_count, created_at
		FROM outbox
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`

	rows, err := q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find unpublished events: %w", err)
	}
	defer rows.Close()

	var messages []ports.OutboxMessage
	for rows.Next() {
		var msg ports.OutboxMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.AggregateType,
			&msg.AggregateID,
			&msg.EventType,
			&msg.Payload,
			&msg.PartitionKey,
			&msg.RetryCount,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outbox row: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox rows: %w", err)
	}

	return messages, nil
}

// MarkPublished transitions a claimed message to PUBLISHED.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	q := r.getQuerier(ctx)

	query := `
		UPDATE outbox
		SET status = 'PUBLISHED', published_at = $2
		WHERE id = $1 AND status = 'PENDING'
	`

	result, err := q.Exec(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark event as published: %w", err)
	}
	if result.RowsAffected() == 0 {
		return errors.New("event not found or already published")
	}

	return nil
}

// MarkFailed records a publish failure and bumps the retry counter.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	q := r.getQuerier(ctx)

	query := `
		UPDATE outbox
		SET status = 'FAILED',
			failed_at = $2,
			last_error = $3,
			retry_count = retry_count + 1
		WHERE id = $1
	`

	_, err := q.Exec(ctx, query, id, time.Now().UTC(), reason)
	if err != nil {
		return fmt.Errorf("failed to mark event as failed: %w", err)
	}

	return nil
}

// MarkForRetry returns a FAILED message to PENDING while retry budget remains.
func (r *OutboxRepository) MarkForRetry(ctx context.Context, id uuid.UUID) error {
	q := r.getQuerier(ctx)

	query := `
		UPDATE outbox
		SET status = 'PENDING',
			failed_at = NULL,
			last_error = NULL
		WHERE id = $1 AND status = 'FAILED' AND retry_count < $2
	`

	result, err := q.Exec(ctx, query, id, maxOutboxRetries)
	if err != nil {
		return fmt.Errorf("failed to mark event for retry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return errors.New("event not found, not failed, or max retries exceeded")
	}

	return nil
}

// CleanupPublished deletes PUBLISHED messages older than the cutoff.
func (r *OutboxRepository) CleanupPublished(ctx context.Context, olderThan time.Duration) (int64, error) {
	q := r.getQuerier(ctx)

	cutoff := time.Now().UTC().Add(-olderThan)

	query := `
		DELETE FROM outbox
		WHERE status = 'PUBLISHED' AND published_at < $1
	`

	result, err := q.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup published events: %w", err)
	}

	return result.RowsAffected(), nil
}

// aggregateTypeOf derives the aggregate name from the event type prefix.
func aggregateTypeOf(eventType string) string {
	switch {
	case strings.HasPrefix(eventType, "wallet."):
		return "Wallet"
	case strings.HasPrefix(eventType, "transfer."):
		return "Transfer"
	default:
		return "Unknown"
	}
}
