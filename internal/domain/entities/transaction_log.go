package entities

import (
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/walletledger/internal/domain/errors"
	"github.com/Haleralex/walletledger/internal/domain/valueobjects"
)

// TransactionStatus is the tri-state of a logged transfer attempt.
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "PENDING"
	TransactionStatusSuccess TransactionStatus = "SUCCESS"
	TransactionStatusFailed  TransactionStatus = "FAILED"
)

// IsValid checks if the status is one of the known states.
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusSuccess, TransactionStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for SUCCESS and FAILED; no transitions leave them.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusSuccess || s == TransactionStatusFailed
}

// MaxIdempotencyKeyLength is the largest accepted key size in octets.
const MaxIdempotencyKeyLength = 255

// maxErrorMessageBytes caps what MarkFailed persists as errorMessage.
const maxErrorMessageBytes = 1024

// Metadata keys conventionally carried by a log.
const (
	MetadataRequestedAt      = "requestedAt"
	MetadataCompletedAt      = "completedAt"
	MetadataFailedAt         = "failedAt"
	MetadataFromBalanceAfter = "fromBalanceAfter"
	MetadataToBalanceAfter   = "toBalanceAfter"
)

// TransactionLog records one transfer attempt between two wallets.
//
// State machine: PENDING -> SUCCESS (executor commit) or PENDING -> FAILED
// (failure recorder). Terminal states never transition. The idempotencyKey
// is globally unique (store constraint), so a key maps to at most one log.
type TransactionLog struct {
	id             uuid.UUID
	fromWalletID   uuid.UUID
	toWalletID     uuid.UUID
	amount         valueobjects.Money
	status         TransactionStatus
	idempotencyKey string
	errorMessage   string
	metadata       map[string]interface{}
	createdAt      time.Time
	updatedAt      time.Time
}

// NewTransactionLog creates a PENDING log for a transfer attempt.
// The request validator runs first, so these checks are the last line of
// defense, not the primary error surface.
func NewTransactionLog(
	fromWalletID, toWalletID uuid.UUID,
	amount valueobjects.Money,
	idempotencyKey string,
) (*TransactionLog, error) {
	if idempotencyKey == "" {
		return nil, errors.ValidationError{
			Field:   "idempotencyKey",
			Message: "idempotency key is required",
		}
	}
	if len(idempotencyKey) > MaxIdempotencyKeyLength {
		return nil, errors.ValidationError{
			Field:   "idempotencyKey",
			Message: "idempotency key exceeds 255 octets",
		}
	}
	if fromWalletID == toWalletID {
		return nil, errors.ValidationError{
			Field:   "toWalletId",
			Message: "source and destination wallets must differ",
		}
	}
	if amount.LessThan(valueobjects.MinTransferAmount()) {
		return nil, errors.ValidationError{
			Field:   "amount",
			Message: "amount must be at least 0.0001",
		}
	}

	now := time.Now().UTC()
	return &TransactionLog{
		id:             uuid.New(),
		fromWalletID:   fromWalletID,
		toWalletID:     toWalletID,
		amount:         amount,
		status:         TransactionStatusPending,
		idempotencyKey: idempotencyKey,
		metadata: map[string]interface{}{
			MetadataRequestedAt: now.Format(time.RFC3339Nano),
		},
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructTransactionLog hydrates a TransactionLog from stored data.
func ReconstructTransactionLog(
	id, fromWalletID, toWalletID uuid.UUID,
	amount valueobjects.Money,
	status TransactionStatus,
	idempotencyKey string,
	errorMessage string,
	metadata map[string]interface{},
	createdAt, updatedAt time.Time,
) *TransactionLog {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	return &TransactionLog{
		id:             id,
		fromWalletID:   fromWalletID,
		toWalletID:     toWalletID,
		amount:         amount,
		status:         status,
		idempotencyKey: idempotencyKey,
		errorMessage:   errorMessage,
		metadata:       metadata,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

func (t *TransactionLog) ID() uuid.UUID {
	return t.id
}

func (t *TransactionLog) FromWalletID() uuid.UUID {
	return t.fromWalletID
}

func (t *TransactionLog) ToWalletID() uuid.UUID {
	return t.toWalletID
}

func (t *TransactionLog) Amount() valueobjects.Money {
	return t.amount
}

func (t *TransactionLog) Status() TransactionStatus {
	return t.status
}

func (t *TransactionLog) IdempotencyKey() string {
	return t.idempotencyKey
}

func (t *TransactionLog) ErrorMessage() string {
	return t.errorMessage
}

func (t *TransactionLog) Metadata() map[string]interface{} {
	return t.metadata
}

func (t *TransactionLog) CreatedAt() time.Time {
	return t.createdAt
}

func (t *TransactionLog) UpdatedAt() time.Time {
	return t.updatedAt
}

// IsTerminal reports whether the log reached SUCCESS or FAILED.
func (t *TransactionLog) IsTerminal() bool {
	return t.status.IsTerminal()
}

// MarkCompleted moves PENDING -> SUCCESS and merges the completion metadata
// (completedAt plus both post-trade balances), preserving prior keys.
func (t *TransactionLog) MarkCompleted(fromBalanceAfter, toBalanceAfter valueobjects.Money) error {
	if t.status.IsTerminal() {
		return errors.ErrLogTerminal
	}

	now := time.Now().UTC()
	t.status = TransactionStatusSuccess
	t.metadata[MetadataCompletedAt] = now.Format(time.RFC3339Nano)
	t.metadata[MetadataFromBalanceAfter] = fromBalanceAfter.String()
	t.metadata[MetadataToBalanceAfter] = toBalanceAfter.String()
	t.updatedAt = now
	return nil
}

// MarkFailed moves the log to FAILED, records the error message (truncated),
// and merges failedAt into the metadata, preserving prior keys.
func (t *TransactionLog) MarkFailed(message string) error {
	if t.status.IsTerminal() {
		return errors.ErrLogTerminal
	}

	if len(message) > maxErrorMessageBytes {
		message = message[:maxErrorMessageBytes]
	}

	now := time.Now().UTC()
	t.status = TransactionStatusFailed
	t.errorMessage = message
	t.metadata[MetadataFailedAt] = now.Format(time.RFC3339Nano)
	t.updatedAt = now
	return nil
}

// FromBalanceAfter returns the recorded post-trade source balance, if any.
func (t *TransactionLog) FromBalanceAfter() (string, bool) {
	return t.metadataString(MetadataFromBalanceAfter)
}

// ToBalanceAfter returns the recorded post-trade destination balance, if any.
func (t *TransactionLog) ToBalanceAfter() (string, bool) {
	return t.metadataString(MetadataToBalanceAfter)
}

func (t *TransactionLog) metadataString(key string) (string, bool) {
	v, ok := t.metadata[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
