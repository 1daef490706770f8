package transfer

import (
	"context"
	"log/slog"
	"time"

	"github.com/Haleralex/walletledger/internal/application/ports"
	"github.com/Haleralex/walletledger/internal/domain/events"
)

// failureRecordTimeout bounds the post-mortem write. The parent request may
// already be cancelled, so the recorder runs on a detached context.
const failureRecordTimeout = 5 * time.Second

// failureRecorder flips the surviving PENDING log to FAILED after the
// executor errors out. Everything here is best-effort: a recorder failure
// is logged and swallowed, never surfaced to the caller, because the
// caller's error is the executor's error, not ours.
type failureRecorder struct {
	logs      ports.TransactionLogRepository
	publisher ports.EventPublisher
	logger    *slog.Logger
}

func newFailureRecorder(logs ports.TransactionLogRepository, publisher ports.EventPublisher, logger *slog.Logger) *failureRecorder {
	return &failureRecorder{logs: logs, publisher: publisher, logger: logger}
}

// record loads the log by key and marks it FAILED with the cause. No-op
// when no row exists (the PENDING insert itself failed) or the row is
// already terminal (another path resolved it first).
func (f *failureRecorder) record(ctx context.Context, idempotencyKey string, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureRecordTimeout)
	defer cancel()

	log, err := f.logs.FindByIdempotencyKey(ctx, idempotencyKey)
	if err != nil {
		f.logger.Warn("failure recorder could not load transaction log",
			slog.String("idempotency_key", idempotencyKey),
			slog.String("error", err.Error()))
		return
	}
	if log == nil || log.IsTerminal() {
		return
	}

	if err := log.MarkFailed(cause.Error()); err != nil {
		f.logger.Warn("failure recorder could not mark transaction log",
			slog.String("idempotency_key", idempotencyKey),
			slog.String("error", err.Error()))
		return
	}
	if err := f.logs.Update(ctx, log); err != nil {
		f.logger.Warn("failure recorder could not persist FAILED status",
			slog.String("idempotency_key", idempotencyKey),
			slog.String("transaction_id", log.ID().String()),
			slog.String("error", err.Error()))
		return
	}

	event := events.NewTransferFailed(
		log.ID(), log.FromWalletID(), log.ToWalletID(),
		log.Amount().String(), log.ErrorMessage(), idempotencyKey,
	)
	if err := f.publisher.Publish(ctx, event); err != nil {
		f.logger.Warn("failure recorder could not publish transfer.failed",
			slog.String("idempotency_key", idempotencyKey),
			slog.String("transaction_id", log.ID().String()),
			slog.String("error", err.Error()))
	}
}
