// Package transfer implements the idempotent money transfer pipeline.
//
// A transfer request passes through three idempotency tiers before any
// money moves:
//
//	tier 1: Redis result cache    replays a finished result without touching Postgres
//	tier 2: Redis SETNX lease     serializes concurrent holders of one key
//	tier 3: Postgres constraint   the durable word on whether a key was used
//
// Redis is an optimization in both tiers: on any cache error the pipeline
// logs and falls through, because tier 3 alone is sufficient for
// correctness. The ledger (transaction_logs) is the source of truth; the
// cache only makes replays cheap and contention polite.
package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Haleralex/walletledger/internal/application/dtos"
	"github.com/Haleralex/walletledger/internal/application/ports"
	"github.com/Haleralex/walletledger/internal/domain/entities"
	domainerrors "github.com/Haleralex/walletledger/internal/domain/errors"
)

// Response messages. The replay message and the " (from cache)" suffix are
// part of the API contract: clients distinguish a fresh execution from a
// replay by them.
const (
	MsgTransferCompleted = "Transfer completed successfully"
	MsgAlreadyProcessed  = "Transfer already processed (idempotent request)"
	MsgProcessing        = "Transfer is being processed"
	MsgPreviouslyFailed  = "Transfer previously failed"

	// MsgFromCacheSuffix marks results served from the replay cache.
	MsgFromCacheSuffix = " (from cache)"
)

// Cache key namespaces under the store's global prefix.
const (
	resultKeyPrefix = "idempotency:"
	lockKeyPrefix   = "lock:"
)

// leaseReleaseTimeout bounds the deferred lock deletion; the lease TTL is
// the real cleanup if the delete fails.
const leaseReleaseTimeout = 2 * time.Second

// IdempotencyConfig tunes the replay cache and the per-key lease.
type IdempotencyConfig struct {
	// ResultTTL is how long a finished result stays replayable from cache.
	ResultTTL time.Duration
	// LockTTL caps how long a crashed holder can block a key.
	LockTTL time.Duration
	// LockRetries is the number of additional acquisition attempts after
	// the first, each spaced LockRetryDelay apart.
	LockRetries int
	// LockRetryDelay is the pause between acquisition attempts.
	LockRetryDelay time.Duration
}

// DefaultIdempotencyConfig returns the production defaults: 24h replay
// window, 30s lease, and ~5s of lock waiting (50 x 100ms).
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		ResultTTL:      24 * time.Hour,
		LockTTL:        30 * time.Second,
		LockRetries:    50,
		LockRetryDelay: 100 * time.Millisecond,
	}
}

// TransferUseCase coordinates one transfer request end to end: validation,
// the idempotency tiers, execution, result caching, and failure recording.
type TransferUseCase struct {
	cache    ports.CacheStore
	logs     ports.TransactionLogRepository
	executor *transferExecutor
	recorder *failureRecorder
	config   IdempotencyConfig
	logger   *slog.Logger
}

func NewTransferUseCase(
	wallets ports.WalletRepository,
	logs ports.TransactionLogRepository,
	cache ports.CacheStore,
	publisher ports.EventPublisher,
	uow ports.UnitOfWork,
	config IdempotencyConfig,
	logger *slog.Logger,
) *TransferUseCase {
	defaults := DefaultIdempotencyConfig()
	if config.ResultTTL <= 0 {
		config.ResultTTL = defaults.ResultTTL
	}
	if config.LockTTL <= 0 {
		config.LockTTL = defaults.LockTTL
	}
	if config.LockRetries < 0 {
		config.LockRetries = defaults.LockRetries
	}
	if config.LockRetryDelay <= 0 {
		config.LockRetryDelay = defaults.LockRetryDelay
	}
	return &TransferUseCase{
		cache:    cache,
		logs:     logs,
		executor: newTransferExecutor(wallets, logs, publisher, uow),
		recorder: newFailureRecorder(logs, publisher, logger),
		config:   config,
		logger:   logger.With(slog.String("usecase", "transfer")),
	}
}

// Execute runs one transfer attempt. Retrying with the same idempotency key
// returns the first attempt's outcome; money moves at most once per key.
func (uc *TransferUseCase) Execute(ctx context.Context, cmd dtos.TransferCommand) (*dtos.TransferResultDTO, error) {
	req, err := validateTransfer(cmd)
	if err != nil {
		return nil, err
	}
	key := req.IdempotencyKey

	// Tier 1: finished result already cached.
	if result, ok := uc.cachedResult(ctx, key); ok {
		result.Message += MsgFromCacheSuffix
		return result, nil
	}

	// Tier 2: per-key lease.
	lease, err := uc.acquireLease(ctx, key)
	if err != nil {
		return nil, err
	}
	if lease.contended {
		return uc.resolveContended(ctx, key)
	}
	if lease.acquired {
		defer uc.releaseLease(ctx, key)
	}

	// The holder before us (or an attempt made while Redis was down) may
	// have already settled this key in the ledger.
	if result, done, err := uc.replayFromLedger(ctx, key); done {
		return result, err
	}

	result, err := uc.executor.execute(ctx, req)
	if err != nil {
		// A duplicate-key abort means a prior log owns the key; there is
		// no fresh PENDING row of ours to mark.
		if domainerrors.CodeOf(err) != domainerrors.CodeDuplicateRequest {
			uc.recorder.record(ctx, key, err)
		}
		return nil, err
	}

	uc.storeResult(ctx, key, result)
	return result, nil
}

// leaseState reports how the acquisition loop ended. Exactly one of the
// flags is set, or neither when Redis failed and the pipeline fails open.
type leaseState struct {
	acquired  bool
	contended bool
}

func (uc *TransferUseCase) acquireLease(ctx context.Context, key string) (leaseState, error) {
	attempts := uc.config.LockRetries + 1
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return leaseState{}, ctx.Err()
			case <-time.After(uc.config.LockRetryDelay):
			}
		}
		won, err := uc.cache.SetNX(ctx, lockKeyPrefix+key,
			time.Now().UTC().Format(time.RFC3339Nano), uc.config.LockTTL)
		if err != nil {
			// Fail open: the unique constraint still prevents a double
			// execution, we just lose the politeness of queueing.
			uc.logger.Warn("lease acquisition failed, proceeding without lease",
				slog.String("idempotency_key", key),
				slog.String("error", err.Error()))
			return leaseState{}, nil
		}
		if won {
			return leaseState{acquired: true}, nil
		}
	}
	return leaseState{contended: true}, nil
}

// releaseLease deletes our lock key. It runs on a detached context so a
// cancelled request still returns the lease instead of squatting on it for
// the full TTL.
func (uc *TransferUseCase) releaseLease(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), leaseReleaseTimeout)
	defer cancel()
	if err := uc.cache.Del(ctx, lockKeyPrefix+key); err != nil {
		uc.logger.Warn("lease release failed, TTL will reclaim it",
			slog.String("idempotency_key", key),
			slog.String("error", err.Error()))
	}
}

// resolveContended handles lease exhaustion: a live holder kept the key for
// the whole waiting window. If the ledger already has a terminal outcome we
// replay it; otherwise the client is told to retry later.
func (uc *TransferUseCase) resolveContended(ctx context.Context, key string) (*dtos.TransferResultDTO, error) {
	log, err := uc.logs.FindByIdempotencyKey(ctx, key)
	if err != nil {
		uc.logger.Warn("ledger lookup during lease contention failed",
			slog.String("idempotency_key", key),
			slog.String("error", err.Error()))
	}
	if log != nil && log.IsTerminal() {
		return uc.replayTerminal(ctx, key, log)
	}
	return nil, domainerrors.NewDomainError(domainerrors.CodeConcurrentProcessing,
		MsgProcessing, domainerrors.ErrConcurrentProcessing)
}

// replayFromLedger checks whether the key is already settled before we
// execute. done=false means the key is unused and execution should proceed.
func (uc *TransferUseCase) replayFromLedger(ctx context.Context, key string) (result *dtos.TransferResultDTO, done bool, err error) {
	log, err := uc.logs.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, true, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	if log == nil {
		return nil, false, nil
	}
	result, err = uc.replayTerminal(ctx, key, log)
	return result, true, err
}

// replayTerminal converts an existing log row into the response a retry
// should see. PENDING rows land here only when their holder is still alive
// (or crashed moments ago), so they surface as concurrent processing.
func (uc *TransferUseCase) replayTerminal(ctx context.Context, key string, log *entities.TransactionLog) (*dtos.TransferResultDTO, error) {
	switch log.Status() {
	case entities.TransactionStatusSuccess:
		result := replayResult(log)
		uc.storeResult(ctx, key, result)
		return result, nil
	case entities.TransactionStatusFailed:
		var cause error
		if msg := log.ErrorMessage(); msg != "" {
			cause = errors.New(msg)
		}
		return nil, domainerrors.NewDomainError(domainerrors.CodeTransferFailed, MsgPreviouslyFailed, cause)
	default:
		return nil, domainerrors.NewDomainError(domainerrors.CodeConcurrentProcessing,
			MsgProcessing, domainerrors.ErrConcurrentProcessing)
	}
}

// replayResult rebuilds the success response from the log row. Balances
// come from the completion metadata and reflect the state right after the
// original transfer, not the current one.
func replayResult(log *entities.TransactionLog) *dtos.TransferResultDTO {
	from, _ := log.FromBalanceAfter()
	to, _ := log.ToBalanceAfter()
	return &dtos.TransferResultDTO{
		Success:       true,
		TransactionID: log.ID().String(),
		Message:       MsgAlreadyProcessed,
		FromBalance:   from,
		ToBalance:     to,
	}
}

// storeResult caches the finished result in replay form: the cached copy
// carries the already-processed message so every later hit reads as a
// replay, with the transport suffix appended at read time.
func (uc *TransferUseCase) storeResult(ctx context.Context, key string, result *dtos.TransferResultDTO) {
	cached := *result
	cached.Message = MsgAlreadyProcessed
	payload, err := json.Marshal(&cached)
	if err != nil {
		uc.logger.Warn("failed to serialize transfer result for cache",
			slog.String("idempotency_key", key),
			slog.String("error", err.Error()))
		return
	}
	if err := uc.cache.Set(ctx, resultKeyPrefix+key, string(payload), uc.config.ResultTTL); err != nil {
		uc.logger.Warn("failed to cache transfer result",
			slog.String("idempotency_key", key),
			slog.String("error", err.Error()))
	}
}

// cachedResult reads tier 1. Any cache problem, including a corrupt entry,
// degrades to a miss.
func (uc *TransferUseCase) cachedResult(ctx context.Context, key string) (*dtos.TransferResultDTO, bool) {
	raw, found, err := uc.cache.Get(ctx, resultKeyPrefix+key)
	if err != nil {
		uc.logger.Warn("result cache read failed, falling through to ledger",
			slog.String("idempotency_key", key),
			slog.String("error", err.Error()))
		return nil, false
	}
	if !found {
		return nil, false
	}
	var result dtos.TransferResultDTO
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		uc.logger.Warn("ignoring corrupt cache entry",
			slog.String("idempotency_key", key),
			slog.String("error", err.Error()))
		return nil, false
	}
	return &result, true
}
