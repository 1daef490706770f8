package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Haleralex/walletledger/internal/application/ports"
	"github.com/Haleralex/walletledger/internal/domain/entities"
	domainErrors "github.com/Haleralex/walletledger/internal/domain/errors"
	"github.com/Haleralex/walletledger/internal/domain/valueobjects"
)

var _ ports.TransactionLogRepository = (*TransactionLogRepository)(nil)

// TransactionLogRepository implements ports.TransactionLogRepository.
//
// The unique index on idempotency_key is the durable idempotency tier: a
// second insert with the same key loses the race at the database, whatever
// happened to the cache and the lease above it.
type TransactionLogRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionLogRepository creates a TransactionLogRepository over the pool.
func NewTransactionLogRepository(pool *pgxpool.Pool) *TransactionLogRepository {
	return &TransactionLogRepository{pool: pool}
}

func (r *TransactionLogRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// Create inserts the log in its current state.
func (r *TransactionLogRepository) Create(ctx context.Context, log *entities.TransactionLog) error {
	q := r.getQuerier(ctx)

	metadataJSON, err := json.Marshal(log.Metadata())
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO transaction_logs (
			id, from_wallet_id, to_wallet_id, amount, status,
			idempotency_key, error_message, metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = q.Exec(ctx, query,
		log.ID(),
		log.FromWalletID(),
		log.ToWalletID(),
		log.Amount().String(),
		string(log.Status()),
		log.IdempotencyKey(),
		nullableString(log.ErrorMessage()),
		metadataJSON,
		log.CreatedAt(),
		log.UpdatedAt(),
	)

	if err != nil {
		if isUniqueViolation(err, "idempotency_key") {
			return fmt.Errorf("key %q: %w", log.IdempotencyKey(), domainErrors.ErrDuplicateIdempotencyKey)
		}
		return fmt.Errorf("failed to insert transaction log: %w", err)
	}

	return nil
}

// Update persists status, errorMessage, and metadata changes in place.
func (r *TransactionLogRepository) Update(ctx context.Context, log *entities.TransactionLog) error {
	q := r.getQuerier(ctx)

	metadataJSON, err := json.Marshal(log.Metadata())
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		UPDATE transaction_logs
		SET status = $2, error_message = $3, metadata = $4, updated_at = $5
		WHERE id = $1
	`

	result, err := q.Exec(ctx, query,
		log.ID(),
		string(log.Status()),
		nullableString(log.ErrorMessage()),
		metadataJSON,
		log.UpdatedAt(),
	)

	if err != nil {
		return fmt.Errorf("failed to update transaction log: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("log %s: %w", log.ID(), domainErrors.ErrLogNotFound)
	}

	return nil
}

// FindByIdempotencyKey returns the log owning the key, or (nil, nil) when no
// attempt with that key was ever recorded.
func (r *TransactionLogRepository) FindByIdempotencyKey(ctx context.Context, key string) (*entities.TransactionLog, error) {
	q := r.getQuerier(ctx)

	query := `
		SELECT id, from_wallet_id, to_wallet_id, amount::text, status,
		       idempotency_key, error_message, metadata, created_at, updated_at
		FROM transaction_logs
		WHERE idempotency_key = $1
	`

	return r.scanLog(q.QueryRow(ctx, query, key))
}

// ListByWallet returns up to limit logs touching the wallet as source or
// destination, newest first.
func (r *TransactionLogRepository) ListByWallet(ctx context.Context, walletID uuid.UUID, limit int) ([]*entities.TransactionLog, error) {
	q := r.getQuerier(ctx)

	query := `
		SELECT id, from_wallet_id, to_wallet_id, amount::text, status,
		       idempotency_key, error_message, metadata, created_at, updated_at
		FROM transaction_logs
		WHERE from_wallet_id = $1 OR to_wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := q.Query(ctx, query, walletID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transaction logs: %w", err)
	}
	defer rows.Close()

	var logs []*entities.TransactionLog
	for rows.Next() {
		log, err := scanLogRow(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction log rows: %w", err)
	}

	return logs, nil
}

// scanLog rebuilds a TransactionLog from one row, mapping no-rows to
// (nil, nil).
func (r *TransactionLogRepository) scanLog(row pgx.Row) (*entities.TransactionLog, error) {
	log, err := scanLogRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return log, nil
}

func scanLogRow(row pgx.Row) (*entities.TransactionLog, error) {
	var (
		id, fromWalletID, toWalletID uuid.UUID
		amountText, statusStr, key   string
		errorMessage                 *string
		metadataJSON                 []byte
		createdAt, updatedAt         time.Time
	)

	err := row.Scan(
		&id,
		&fromWalletID,
		&toWalletID,
		&amountText,
		&statusStr,
		&key,
		&errorMessage,
		&metadataJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transaction log: %w", err)
	}

	amount, err := valueobjects.NewMoney(amountText)
	if err != nil {
		return nil, fmt.Errorf("invalid amount in database: %w", err)
	}

	var metadata map[string]interface{}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	errMsg := ""
	if errorMessage != nil {
		errMsg = *errorMessage
	}

	return entities.ReconstructTransactionLog(
		id,
		fromWalletID,
		toWalletID,
		amount,
		entities.TransactionStatus(statusStr),
		key,
		errMsg,
		metadata,
		createdAt,
		updatedAt,
	), nil
}

// nullableString maps "" to NULL so optional text columns stay NULL instead
// of holding empty strings.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
