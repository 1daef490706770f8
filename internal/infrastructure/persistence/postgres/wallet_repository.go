package postgres

import (
	"context"
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

var _ ports.WalletRepository = (*WalletRepository)(nil)

// WalletRepository implements ports.WalletRepository.
//
// Balances live in a NUMERIC(19,4) column and travel as text on both sides
// of the driver, so no float ever touches a monetary value. Updates carry an
// optimistic version guard on top of the executor's row locks.
type WalletRepository struct {
	pool *pgxpool.Pool
}

// NewWalletRepository creates a WalletRepository over the pool.
func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

func (r *WalletRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// Create inserts a new wallet row.
func (r *WalletRepository) Create(ctx context.Context, wallet *entities.Wallet) error {
	q := r.getQuerier(ctx)

	query := `
		INSERT INTO wallets (id, owner_id, balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := q.Exec(ctx, query,
		wallet.ID(),
		wallet.OwnerID(),
		wallet.Balance().String(),
		wallet.Version(),
		wallet.CreatedAt(),
		wallet.UpdatedAt(),
	)

	if err != nil {
		if isUniqueViolation(err, "owner_id") {
			return fmt.Errorf("owner %q: %w", wallet.OwnerID(), domainErrors.ErrOwnerAlreadyExists)
		}
		return fmt.Errorf("failed to insert wallet: %w", err)
	}

	return nil
}

// Update persists a mutated wallet guarded by its pre-mutation version.
//
// The entity increments version on every balance change, so the row must
// still hold version-1 for the update to apply. Zero affected rows means a
// concurrent writer got there first; unreachable under the executor's row
// locks but kept as a contract check.
func (r *WalletRepository) Update(ctx context.Context, wallet *entities.Wallet) error {
	q := r.getQuerier(ctx)

	query := `
		UPDATE wallets
		SET balance = $2, version = $3, updated_at = $4
		WHERE id = $1 AND version = $5
	`

	expectedVersion := wallet.Version() - 1

	result, err := q.Exec(ctx, query,
		wallet.ID(),
		wallet.Balance().String(),
		wallet.Version(),
		wallet.UpdatedAt(),
		expectedVersion,
	)

	if err != nil {
		return fmt.Errorf("failed to update wallet: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domainErrors.NewConcurrencyError(
			"Wallet",
			wallet.ID().String(),
			fmt.Sprintf("wallet was modified by another transaction (expected version: %d)", expectedVersion),
		)
	}

	return nil
}

// FindByID loads a wallet without locking it. Returns (nil, nil) when the
// row does not exist.
func (r *WalletRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	q := r.getQuerier(ctx)

	query := `
		SELECT id, owner_id, balance::text, version, created_at, updated_at
		FROM wallets
		WHERE id = $1
	`

	return r.scanWallet(q.QueryRow(ctx, query, id))
}

// FindByIDForUpdate loads a wallet under SELECT ... FOR UPDATE. The caller
// must hold a UnitOfWork transaction; the row lock lives until it ends.
// Returns (nil, nil) when the row does not exist.
func (r *WalletRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	q := r.getQuerier(ctx)

	query := `
		SELECT id, owner_id, balance::text, version, created_at, updated_at
		FROM wallets
		WHERE id = $1
		FOR UPDATE
	`

	return r.scanWallet(q.QueryRow(ctx, query, id))
}

// FindByOwnerID loads a wallet by its unique owner handle. Returns (nil, nil)
// when no wallet exists for the owner.
func (r *WalletRepository) FindByOwnerID(ctx context.Context, ownerID string) (*entities.Wallet, error) {
	q := r.getQuerier(ctx)

	query := `
		SELECT id, owner_id, balance::text, version, created_at, updated_at
		FROM wallets
		WHERE owner_id = $1
	`

	return r.scanWallet(q.QueryRow(ctx, query, ownerID))
}

// scanWallet rebuilds a Wallet entity from one row.
func (r *WalletRepository) scanWallet(row pgx.Row) (*entities.Wallet, error) {
	var (
		id                   uuid.UUID
		ownerID, balanceText string
		version              int64
		createdAt, updatedAt time.Time
	)

	err := row.Scan(&id, &ownerID, &balanceText, &version, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan wallet: %w", err)
	}

	balance, err := valueobjects.NewMoney(balanceText)
	if err != nil {
		return nil, fmt.Errorf("invalid balance in database: %w", err)
	}

	return entities.ReconstructWallet(id, ownerID, balance, version, createdAt, updatedAt), nil
}
