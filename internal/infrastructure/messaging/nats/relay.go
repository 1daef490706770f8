package nats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Haleralex/walletledger/internal/application/ports"
)

// RelayConfig tunes the outbox drain loop.
type RelayConfig struct {
	// PollInterval is how often the relay looks for PENDING messages.
	PollInterval time.Duration

	// BatchSize caps how many messages one tick claims.
	BatchSize int

	// CleanupInterval is how often PUBLISHED rows are purged.
	CleanupInterval time.Duration

	// CleanupAge is the minimum age of a PUBLISHED row before purging.
	CleanupAge time.Duration
}

// DefaultRelayConfig returns the standard drain cadence.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		PollInterval:    time.Second,
		BatchSize:       100,
		CleanupInterval: time.Hour,
		CleanupAge:      24 * time.Hour,
	}
}

// messagePublisher is what the relay needs from the transport; *Publisher
// satisfies it, tests substitute their own.
type messagePublisher interface {
	Publish(msg ports.OutboxMessage) error
}

// OutboxRelay drains the transactional outbox into the broker.
//
// Each tick claims a batch of PENDING rows under FOR UPDATE SKIP LOCKED
// (safe with concurrent relay instances), publishes them, and marks each row
// PUBLISHED or FAILED inside the same claim transaction. Failed rows return
// to PENDING while their retry budget lasts, so delivery is at-least-once.
type OutboxRelay struct {
	outbox    ports.OutboxRepository
	uow       ports.UnitOfWork
	publisher messagePublisher
	config    RelayConfig
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewOutboxRelay creates a relay; call Run to start draining.
func NewOutboxRelay(
	outbox ports.OutboxRepository,
	uow ports.UnitOfWork,
	publisher messagePublisher,
	config RelayConfig,
	logger *slog.Logger,
) *OutboxRelay {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultRelayConfig().PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultRelayConfig().BatchSize
	}

	return &OutboxRelay{
		outbox:    outbox,
		uow:       uow,
		publisher: publisher,
		config:    config,
		logger:    logger.With(slog.String("component", "outbox_relay")),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Run drains the outbox until the context is canceled or Stop is called.
// Blocks; start it on its own goroutine.
func (r *OutboxRelay) Run(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	defer close(r.doneCh)

	r.logger.Info("outbox relay started",
		slog.Duration("poll_interval", r.config.PollInterval),
		slog.Int("batch_size", r.config.BatchSize),
	)

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	var cleanupCh <-chan time.Time
	if r.config.CleanupInterval > 0 {
		cleanup := time.NewTicker(r.config.CleanupInterval)
		defer cleanup.Stop()
		cleanupCh = cleanup.C
	}

	// Drain whatever accumulated before startup.
	r.drainOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopping (context done)")
			return
		case <-r.stopCh:
			r.logger.Info("outbox relay stopping (stop signal)")
			return
		case <-ticker.C:
			r.drainOnce(ctx)
		case <-cleanupCh:
			r.cleanup(ctx)
		}
	}
}

// Stop signals the loop to exit and waits for the in-flight tick to finish.
func (r *OutboxRelay) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh
}

// drainOnce claims one batch and publishes it. The claim, the publish marks,
// and the retry re-queue all commit together, so a crash mid-batch leaves
// every unmarked row PENDING for the next tick.
func (r *OutboxRelay) drainOnce(ctx context.Context) {
	err := r.uow.Execute(ctx, func(txCtx context.Context) error {
		messages, err := r.outbox.FindUnpublished(txCtx, r.config.BatchSize)
		if err != nil {
			return err
		}
		if len(messages) == 0 {
			return nil
		}

		published := 0
		for _, msg := range messages {
			if err := r.publisher.Publish(msg); err != nil {
				r.handlePublishFailure(txCtx, msg, err)
				continue
			}

			if err := r.outbox.MarkPublished(txCtx, msg.ID); err != nil {
				r.logger.Error("failed to mark message published",
					slog.String("message_id", msg.ID.String()),
					slog.String("error", err.Error()),
				)
				continue
			}
			published++
		}

		if published > 0 {
			r.logger.Debug("outbox batch drained",
				slog.Int("published", published),
				slog.Int("claimed", len(messages)),
			)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("outbox drain failed", slog.String("error", err.Error()))
	}
}

// handlePublishFailure records the failure and re-queues the message while
// retry budget remains; exhausted messages stay FAILED for operators.
func (r *OutboxRelay) handlePublishFailure(ctx context.Context, msg ports.OutboxMessage, pubErr error) {
	r.logger.Warn("failed to publish outbox message",
		slog.String("message_id", msg.ID.String()),
		slog.String("event_type", msg.EventType),
		slog.Int("retry_count", msg.RetryCount),
		slog.String("error", pubErr.Error()),
	)

	if err := r.outbox.MarkFailed(ctx, msg.ID, pubErr.Error()); err != nil {
		r.logger.Error("failed to mark message failed",
			slog.String("message_id", msg.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := r.outbox.MarkForRetry(ctx, msg.ID); err != nil {
		r.logger.Error("outbox message exhausted its retries",
			slog.String("message_id", msg.ID.String()),
			slog.String("event_type", msg.EventType),
		)
	}
}

func (r *OutboxRelay) cleanup(ctx context.Context) {
	deleted, err := r.outbox.CleanupPublished(ctx, r.config.CleanupAge)
	if err != nil {
		r.logger.Error("outbox cleanup failed", slog.String("error", err.Error()))
		return
	}
	if deleted > 0 {
		r.logger.Info("outbox cleanup", slog.Int64("deleted", deleted))
	}
}
