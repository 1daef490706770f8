package wallet

import (
	"context"
	"fmt"

	"github.com/Haleralex/walletledger/internal/application/dtos"
	"github.com/Haleralex/walletledger/internal/application/ports"
	"github.com/Haleralex/walletledger/internal/domain/entities"
	domainerrors "github.com/Haleralex/walletledger/internal/domain/errors"
)

// GetBalanceUseCase reads one wallet's current balance. Plain read, no
// locking: the balance may be stale by the time the caller sees it.
type GetBalanceUseCase struct {
	wallets ports.WalletRepository
}

// NewGetBalanceUseCase creates a new GetBalanceUseCase.
func NewGetBalanceUseCase(wallets ports.WalletRepository) *GetBalanceUseCase {
	return &GetBalanceUseCase{wallets: wallets}
}

// Execute returns the wallet's balance view. Unlike the history listing,
// an unknown wallet id here is an error: the wallet must exist to have a
// balance.
func (uc *GetBalanceUseCase) Execute(ctx context.Context, walletID string) (*dtos.WalletBalanceDTO, error) {
	id, err := entities.ParseWalletID(walletID)
	if err != nil {
		return nil, err
	}

	wallet, err := uc.wallets.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	if wallet == nil {
		return nil, domainerrors.NewDomainError(domainerrors.CodeWalletNotFound,
			fmt.Sprintf("wallet not found: %s", walletID), domainerrors.ErrWalletNotFound)
	}

	balance := dtos.ToWalletBalanceDTO(wallet)
	return &balance, nil
}
