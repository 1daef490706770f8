package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/walletledger/internal/domain/events"
)

// EventPublisher records domain events for delivery. The outbox-backed
// implementation appends them to the outbox relation; when called with a
// UnitOfWork transaction context the append commits atomically with the
// business change, which is the whole point of the pattern.
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch records several events; it fails on the first error.
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// OutboxMessage is one claimed outbox row, in the form the relay consumes:
// the serialized payload plus the routing fields needed to build a subject.
type OutboxMessage struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       []byte
	PartitionKey  string
	RetryCount    int
	CreatedAt     time.Time
}

// OutboxRepository persists and drains the transactional outbox.
type OutboxRepository interface {
	// Save appends an event as a PENDING message.
	Save(ctx context.Context, event events.DomainEvent) error

	// FindUnpublished claims up to limit PENDING messages, oldest first,
	// skipping rows another relay instance holds. Call it inside a
	// transaction so the claim lasts until the batch is marked.
	FindUnpublished(ctx context.Context, limit int) ([]OutboxMessage, error)

	// MarkPublished transitions a claimed message to PUBLISHED.
	MarkPublished(ctx context.Context, id uuid.UUID) error

	// MarkFailed records a publish failure and bumps the retry counter.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error

	// MarkForRetry returns a FAILED message to PENDING while retry budget
	// remains.
	MarkForRetry(ctx context.Context, id uuid.UUID) error

	// CleanupPublished deletes PUBLISHED messages older than the cutoff and
	// reports how many went away.
	CleanupPublished(ctx context.Context, olderThan time.Duration) (int64, error)
}
