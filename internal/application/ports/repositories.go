// Package ports declares the contracts the application layer expects from
// infrastructure. Implementations live under internal/infrastructure; use
// cases depend only on these interfaces.
package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/Haleralex/walletledger/internal/domain/entities"
)

// WalletRepository persists wallets.
//
// Lookups return (nil, nil) when no row matches; callers decide whether
// absence is an error. Mutations enforce optimistic versioning.
type WalletRepository interface {
	// Create inserts a new wallet. A duplicate ownerId surfaces as
	// errors.ErrOwnerAlreadyExists.
	Create(ctx context.Context, wallet *entities.Wallet) error

	// Update persists a mutated wallet, guarded by the version the entity
	// held before the mutation. Zero affected rows means the row changed
	// underneath us and surfaces as a ConcurrencyError.
	Update(ctx context.Context, wallet *entities.Wallet) error

	// FindByID loads a wallet without locking it.
	FindByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error)

	// FindByIDForUpdate loads a wallet under SELECT ... FOR UPDATE. Must be
	// called inside a UnitOfWork transaction; the row lock holds until that
	// transaction ends.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Wallet, error)

	// FindByOwnerID loads a wallet by its unique owner handle.
	FindByOwnerID(ctx context.Context, ownerID string) (*entities.Wallet, error)
}

// TransactionLogRepository persists transfer attempt logs.
//
// The idempotency key is globally unique across all statuses, so a key
// resolves to at most one log row forever.
type TransactionLogRepository interface {
	// Create inserts a log in its current (normally PENDING) state. A
	// duplicate idempotency key surfaces as errors.ErrDuplicateIdempotencyKey.
	Create(ctx context.Context, log *entities.TransactionLog) error

	// Update persists status, errorMessage, and metadata changes in place.
	Update(ctx context.Context, log *entities.TransactionLog) error

	// FindByIdempotencyKey returns the log owning the key, or (nil, nil).
	FindByIdempotencyKey(ctx context.Context, key string) (*entities.TransactionLog, error)

	// ListByWallet returns up to limit logs where the wallet is source or
	// destination, newest first, any status.
	ListByWallet(ctx context.Context, walletID uuid.UUID, limit int) ([]*entities.TransactionLog, error)
}
