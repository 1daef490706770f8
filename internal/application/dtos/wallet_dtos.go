package dtos

import "time"

// ============================================
// Commands
// ============================================

// CreateWalletCommand provisions a wallet for an external owner handle.
// InitialBalance is optional; empty means zero.
type CreateWalletCommand struct {
	OwnerID        string `json:"ownerId"`
	InitialBalance string `json:"initialBalance,omitempty"`
}

// ============================================
// Response DTOs
// ============================================

// WalletDTO is the full wallet view returned by the administrative path.
type WalletDTO struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Balance   string    `json:"balance"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
