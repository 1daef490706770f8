// Package dtos defines the data transfer objects crossing the application
// boundary. Commands come in from the HTTP adapter, result DTOs go back out;
// domain entities never leave the application layer.
//
// Monetary values are decimal strings end to end. The HTTP adapter preserves
// the literal request text of amounts, so the validator sees exactly what the
// client sent regardless of whether it was a JSON number or string.
package dtos

import "time"

// ============================================
// Commands
// ============================================

// TransferCommand describes one transfer attempt.
type TransferCommand struct {
	FromWalletID   string `json:"fromWalletId"`
	ToWalletID     string `json:"toWalletId"`
	Amount         string `json:"amount"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// ============================================
// Results
// ============================================

// TransferResultDTO is the flat success body of a transfer. The same shape,
// with the message in replay form, is what the result cache stores, so cache
// replays and ledger replays serialize identically.
type TransferResultDTO struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId"`
	Message       string `json:"message"`
	FromBalance   string `json:"fromBalance"`
	ToBalance     string `json:"toBalance"`
}

// TransactionLogDTO is one transfer attempt in a history listing.
type TransactionLogDTO struct {
	ID             string    `json:"id"`
	FromWalletID   string    `json:"fromWalletId"`
	ToWalletID     string    `json:"toWalletId"`
	Amount         string    `json:"amount"`
	Status         string    `json:"status"`
	IdempotencyKey string    `json:"idempotencyKey"`
	ErrorMessage   string    `json:"errorMessage,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// WalletHistoryDTO is the transaction listing for one wallet.
type WalletHistoryDTO struct {
	WalletID     string              `json:"walletId"`
	Count        int                 `json:"count"`
	Transactions []TransactionLogDTO `json:"transactions"`
}

// WalletBalanceDTO is the balance view of one wallet.
type WalletBalanceDTO struct {
	WalletID string `json:"walletId"`
	Balance  string `json:"balance"`
}
