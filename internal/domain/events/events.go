// Package events defines the domain events the ledger records in the outbox
// and relays to the message broker. Events are immutable facts; amounts are
// carried as fixed-point strings so payloads serialize exactly.
package events

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is the base interface for all domain events.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
}

// BaseEvent provides the identity fields shared by all events.
type BaseEvent struct {
	eventID     uuid.UUID
	eventType   string
	occurredAt  time.Time
	aggregateID uuid.UUID
}

func newBaseEvent(eventType string, aggregateID uuid.UUID) BaseEvent {
	return BaseEvent{
		eventID:     uuid.New(),
		eventType:   eventType,
		occurredAt:  time.Now().UTC(),
		aggregateID: aggregateID,
	}
}

func (e BaseEvent) EventID() uuid.UUID {
	return e.eventID
}

func (e BaseEvent) EventType() string {
	return e.eventType
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.occurredAt
}

func (e BaseEvent) AggregateID() uuid.UUID {
	return e.aggregateID
}

// Event types. Also used as NATS subject suffixes by the relay.
const (
	EventTypeWalletCreated     = "wallet.created"
	EventTypeTransferCompleted = "transfer.completed"
	EventTypeTransferFailed    = "transfer.failed"
)

// WalletCreated is raised when a wallet is provisioned through the
// administrative path or the seed utility.
type WalletCreated struct {
	BaseEvent
	WalletID       uuid.UUID `json:"walletId"`
	OwnerID        string    `json:"ownerId"`
	InitialBalance string    `json:"initialBalance"`
}

func NewWalletCreated(walletID uuid.UUID, ownerID, initialBalance string) *WalletCreated {
	return &WalletCreated{
		BaseEvent:      newBaseEvent(EventTypeWalletCreated, walletID),
		WalletID:       walletID,
		OwnerID:        ownerID,
		InitialBalance: initialBalance,
	}
}

// TransferCompleted is raised inside the executor transaction once both
// balances are updated and the log is SUCCESS.
type TransferCompleted struct {
	BaseEvent
	TransactionID    uuid.UUID `json:"transactionId"`
	FromWalletID     uuid.UUID `json:"fromWalletId"`
	ToWalletID       uuid.UUID `json:"toWalletId"`
	Amount           string    `json:"amount"`
	FromBalanceAfter string    `json:"fromBalanceAfter"`
	ToBalanceAfter   string    `json:"toBalanceAfter"`
	IdempotencyKey   string    `json:"idempotencyKey"`
}

func NewTransferCompleted(
	transactionID, fromWalletID, toWalletID uuid.UUID,
	amount, fromBalanceAfter, toBalanceAfter, idempotencyKey string,
) *TransferCompleted {
	return &TransferCompleted{
		BaseEvent:        newBaseEvent(EventTypeTransferCompleted, transactionID),
		TransactionID:    transactionID,
		FromWalletID:     fromWalletID,
		ToWalletID:       toWalletID,
		Amount:           amount,
		FromBalanceAfter: fromBalanceAfter,
		ToBalanceAfter:   toBalanceAfter,
		IdempotencyKey:   idempotencyKey,
	}
}

// TransferFailed is raised best-effort after the failure recorder marks a
// log FAILED. It never blocks the request path.
type TransferFailed struct {
	BaseEvent
	TransactionID  uuid.UUID `json:"transactionId"`
	FromWalletID   uuid.UUID `json:"fromWalletId"`
	ToWalletID     uuid.UUID `json:"toWalletId"`
	Amount         string    `json:"amount"`
	Reason         string    `json:"reason"`
	IdempotencyKey string    `json:"idempotencyKey"`
}

func NewTransferFailed(
	transactionID, fromWalletID, toWalletID uuid.UUID,
	amount, reason, idempotencyKey string,
) *TransferFailed {
	return &TransferFailed{
		BaseEvent:      newBaseEvent(EventTypeTransferFailed, transactionID),
		TransactionID:  transactionID,
		FromWalletID:   fromWalletID,
		ToWalletID:     toWalletID,
		Amount:         amount,
		Reason:         reason,
		IdempotencyKey: idempotencyKey,
	}
}
