// Package wallet holds the wallet provisioning and balance query use cases.
// The transfer pipeline lives in the transfer package; this one covers the
// administrative surface around it.
package wallet

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Haleralex/walletledger/internal/application/dtos"
	"github.com/Haleralex/walletledger/internal/application/ports"
	"github.com/Haleralex/walletledger/internal/domain/entities"
	domainerrors "github.com/Haleralex/walletledger/internal/domain/errors"
	"github.com/Haleralex/walletledger/internal/domain/events"
	"github.com/Haleralex/walletledger/internal/domain/valueobjects"
)

// CreateWalletUseCase provisions a wallet for an external owner handle.
//
// Flow:
//  1. Parse the optional initial balance (empty means zero).
//  2. Reject the owner handle if it already has a wallet.
//  3. Create the wallet entity and persist it.
//  4. Publish WalletCreated inside the same transaction.
//
// One wallet per owner: the pre-check gives a clean error message, the
// unique constraint on owner_id is the actual guarantee under races.
type CreateWalletUseCase struct {
	wallets   ports.WalletRepository
	publisher ports.EventPublisher
	uow       ports.UnitOfWork
}

// NewCreateWalletUseCase creates a new CreateWalletUseCase.
func NewCreateWalletUseCase(
	wallets ports.WalletRepository,
	publisher ports.EventPublisher,
	uow ports.UnitOfWork,
) *CreateWalletUseCase {
	return &CreateWalletUseCase{
		wallets:   wallets,
		publisher: publisher,
		uow:       uow,
	}
}

// Execute provisions the wallet and returns its full view.
func (uc *CreateWalletUseCase) Execute(ctx context.Context, cmd dtos.CreateWalletCommand) (*dtos.WalletDTO, error) {
	if cmd.OwnerID == "" {
		return nil, domainerrors.ValidationError{
			Field:   "ownerId",
			Message: "owner id is required",
		}
	}

	balance, err := parseInitialBalance(cmd.InitialBalance)
	if err != nil {
		return nil, err
	}

	var result dtos.WalletDTO
	err = uc.uow.Execute(ctx, func(txCtx context.Context) error {
		existing, err := uc.wallets.FindByOwnerID(txCtx, cmd.OwnerID)
		if err != nil {
			return fmt.Errorf("failed to check owner: %w", err)
		}
		if existing != nil {
			return domainerrors.NewDomainError(domainerrors.CodeOwnerAlreadyExists,
				fmt.Sprintf("owner %q already has a wallet", cmd.OwnerID),
				domainerrors.ErrOwnerAlreadyExists)
		}

		wallet, err := entities.NewWallet(cmd.OwnerID, balance)
		if err != nil {
			return err
		}

		if err := uc.wallets.Create(txCtx, wallet); err != nil {
			// Lost the race to another create with the same owner.
			if domainerrors.CodeOf(err) == domainerrors.CodeOwnerAlreadyExists {
				return err
			}
			return fmt.Errorf("failed to create wallet: %w", err)
		}

		event := events.NewWalletCreated(wallet.ID(), wallet.OwnerID(), wallet.Balance().String())
		if err := uc.publisher.Publish(txCtx, event); err != nil {
			return fmt.Errorf("failed to publish wallet created event: %w", err)
		}

		result = dtos.ToWalletDTO(wallet)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// parseInitialBalance turns the optional balance string into Money.
// Empty input means a zero opening balance.
func parseInitialBalance(s string) (valueobjects.Money, error) {
	if s == "" {
		return valueobjects.Zero(), nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return valueobjects.Money{}, domainerrors.NewDomainError(domainerrors.CodeInvalidAmount,
			fmt.Sprintf("initial balance is not a valid decimal: %q", s), err)
	}
	balance, err := valueobjects.NewMoneyFromDecimal(d)
	if err != nil {
		return valueobjects.Money{}, domainerrors.NewDomainError(domainerrors.CodeInvalidAmount, err.Error(), err)
	}
	return balance, nil
}
