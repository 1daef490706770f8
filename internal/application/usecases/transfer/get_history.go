package transfer

import (
	"context"
	"fmt"

	"github.com/Haleralex/walletledger/internal/application/dtos"
	"github.com/Haleralex/walletledger/internal/application/ports"
	"github.com/Haleralex/walletledger/internal/domain/entities"
)

// historyLimit caps the listing. There is no pagination beyond it.
const historyLimit = 100

// GetHistoryUseCase lists a wallet's transfer attempts, all statuses
// included, newest first.
type GetHistoryUseCase struct {
	logs ports.TransactionLogRepository
}

func NewGetHistoryUseCase(logs ports.TransactionLogRepository) *GetHistoryUseCase {
	return &GetHistoryUseCase{logs: logs}
}

// Execute returns up to 100 most recent attempts where the wallet is source
// or destination. The wallet itself is never loaded: an unknown id yields
// an empty listing, not a 404. Only a malformed id is rejected.
func (uc *GetHistoryUseCase) Execute(ctx context.Context, walletID string) (*dtos.WalletHistoryDTO, error) {
	id, err := entities.ParseWalletID(walletID)
	if err != nil {
		return nil, err
	}

	logs, err := uc.logs.ListByWallet(ctx, id, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet transactions: %w", err)
	}

	history := dtos.ToWalletHistoryDTO(id, logs)
	return &history, nil
}
