package dtos

import (
	"github.com/google/uuid"

	"github.com/Haleralex/walletledger/internal/domain/entities"
)

// ============================================
// Wallet Mappers
// ============================================

// ToWalletDTO converts a Wallet entity into its DTO.
func ToWalletDTO(wallet *entities.Wallet) WalletDTO {
	return WalletDTO{
		ID:        wallet.ID().String(),
		OwnerID:   wallet.OwnerID(),
		Balance:   wallet.Balance().String(),
		Version:   wallet.Version(),
		CreatedAt: wallet.CreatedAt(),
		UpdatedAt: wallet.UpdatedAt(),
	}
}

// ToWalletBalanceDTO converts a Wallet entity into the balance view.
func ToWalletBalanceDTO(wallet *entities.Wallet) WalletBalanceDTO {
	return WalletBalanceDTO{
		WalletID: wallet.ID().String(),
		Balance:  wallet.Balance().String(),
	}
}

// ============================================
// Transaction Log Mappers
// ============================================

// ToTransactionLogDTO converts a TransactionLog entity into its DTO.
func ToTransactionLogDTO(log *entities.TransactionLog) TransactionLogDTO {
	return TransactionLogDTO{
		ID:             log.ID().String(),
		FromWalletID:   log.FromWalletID().String(),
		ToWalletID:     log.ToWalletID().String(),
		Amount:         log.Amount().String(),
		Status:         string(log.Status()),
		IdempotencyKey: log.IdempotencyKey(),
		ErrorMessage:   log.ErrorMessage(),
		CreatedAt:      log.CreatedAt(),
		UpdatedAt:      log.UpdatedAt(),
	}
}

// ToWalletHistoryDTO assembles the transaction listing for one wallet.
// The wallet is never loaded, so the listing works for unknown ids too.
func ToWalletHistoryDTO(walletID uuid.UUID, logs []*entities.TransactionLog) WalletHistoryDTO {
	transactions := make([]TransactionLogDTO, len(logs))
	for i, log := range logs {
		transactions[i] = ToTransactionLogDTO(log)
	}
	return WalletHistoryDTO{
		WalletID:     walletID.String(),
		Count:        len(transactions),
		Transactions: transactions,
	}
}
