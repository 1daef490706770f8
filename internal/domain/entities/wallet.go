// Package entities holds the ledger aggregates: Wallet and TransactionLog.
// Entities carry identity and enforce their own invariants; repositories
// hydrate them through the Reconstruct functions.
package entities

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/walletledger/internal/domain/errors"
	"github.com/Haleralex/walletledger/internal/domain/valueobjects"
)

// walletIDPattern accepts only the canonical 8-4-4-4-12 hex form,
// case-insensitive. uuid.Parse alone is too permissive (braces, URNs,
// dashless forms), so the pattern gates it.
var walletIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ParseWalletID parses a wallet id in canonical UUID form. Anything else
// fails with a coded INVALID_WALLET_ID error.
func ParseWalletID(s string) (uuid.UUID, error) {
	if !walletIDPattern.MatchString(s) {
		return uuid.Nil, errors.NewDomainError(
			errors.CodeInvalidWalletID,
			fmt.Sprintf("invalid wallet id format: %q", s),
			nil,
		)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errors.NewDomainError(
			errors.CodeInvalidWalletID,
			fmt.Sprintf("invalid wallet id format: %q", s),
			err,
		)
	}
	return id, nil
}

// Wallet is a single-currency account managed by the ledger.
//
// Invariants enforced here:
//   - balance never goes negative (Debit refuses overdrafts),
//   - version increments on every balance mutation,
//   - ownerId is non-empty (uniqueness is the store's unique constraint).
type Wallet struct {
	id        uuid.UUID
	ownerID   string
	balance   valueobjects.Money
	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewWallet creates a wallet for an external owner handle with an initial
// balance. New wallets start at version 0.
func NewWallet(ownerID string, initialBalance valueobjects.Money) (*Wallet, error) {
	if ownerID == "" {
		return nil, errors.ValidationError{
			Field:   "ownerId",
			Message: "owner id is required",
		}
	}

	now := time.Now().UTC()
	return &Wallet{
		id:        uuid.New(),
		ownerID:   ownerID,
		balance:   initialBalance,
		version:   0,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructWallet hydrates a Wallet from stored data.
func ReconstructWallet(
	id uuid.UUID,
	ownerID string,
	balance valueobjects.Money,
	version int64,
	createdAt, updatedAt time.Time,
) *Wallet {
	return &Wallet{
		id:        id,
		ownerID:   ownerID,
		balance:   balance,
		version:   version,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

func (w *Wallet) ID() uuid.UUID {
	return w.id
}

func (w *Wallet) OwnerID() string {
	return w.ownerID
}

func (w *Wallet) Balance() valueobjects.Money {
	return w.balance
}

func (w *Wallet) Version() int64 {
	return w.version
}

func (w *Wallet) CreatedAt() time.Time {
	return w.createdAt
}

func (w *Wallet) UpdatedAt() time.Time {
	return w.updatedAt
}

// HasSufficientBalance reports whether the wallet can cover the amount.
func (w *Wallet) HasSufficientBalance(amount valueobjects.Money) bool {
	return w.balance.GreaterThanOrEqual(amount)
}

// Debit subtracts funds. Fails with a coded INSUFFICIENT_BALANCE error whose
// message carries the available and required values; that message is what the
// failure recorder persists.
func (w *Wallet) Debit(amount valueobjects.Money) error {
	if !w.HasSufficientBalance(amount) {
		return errors.NewDomainError(
			errors.CodeInsufficientBalance,
			fmt.Sprintf("insufficient balance: available %s, required %s", w.balance.String(), amount.String()),
			errors.ErrInsufficientBalance,
		)
	}

	newBalance, err := w.balance.Sub(amount)
	if err != nil {
		return err
	}

	w.balance = newBalance
	w.version++
	w.updatedAt = time.Now().UTC()
	return nil
}

// Credit adds funds, revalidating the NUMERIC(19,4) range on the result.
func (w *Wallet) Credit(amount valueobjects.Money) error {
	newBalance, err := valueobjects.NewMoneyFromDecimal(w.balance.Decimal().Add(amount.Decimal()))
	if err != nil {
		return err
	}

	w.balance = newBalance
	w.version++
	w.updatedAt = time.Now().UTC()
	return nil
}
