package transfer

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Haleralex/walletledger/internal/application/dtos"
	"github.com/Haleralex/walletledger/internal/domain/entities"
	domainerrors "github.com/Haleralex/walletledger/internal/domain/errors"
	"github.com/Haleralex/walletledger/internal/domain/valueobjects"
)

// validatedTransfer is a TransferCommand after validation: ids parsed,
// amount fixed-point, key bounded. Everything past this point trusts it.
type validatedTransfer struct {
	FromWalletID   uuid.UUID
	ToWalletID     uuid.UUID
	Amount         valueobjects.Money
	IdempotencyKey string
}

// validateTransfer checks a transfer command field by field. It is pure:
// no I/O, no clock, and the only place request-shape rejections originate.
// Checks run in a fixed order so a request with several problems always
// reports the same first one.
func validateTransfer(cmd dtos.TransferCommand) (*validatedTransfer, error) {
	if cmd.FromWalletID == "" {
		return nil, domainerrors.NewDomainError(domainerrors.CodeInvalidRequest, "fromWalletId is required", nil)
	}
	if cmd.ToWalletID == "" {
		return nil, domainerrors.NewDomainError(domainerrors.CodeInvalidRequest, "toWalletId is required", nil)
	}
	if cmd.Amount == "" {
		return nil, domainerrors.NewDomainError(domainerrors.CodeInvalidRequest, "amount is required", nil)
	}
	if cmd.IdempotencyKey == "" {
		return nil, domainerrors.NewDomainError(domainerrors.CodeInvalidRequest, "idempotencyKey is required", nil)
	}
	if len(cmd.IdempotencyKey) > entities.MaxIdempotencyKeyLength {
		return nil, domainerrors.NewDomainError(domainerrors.CodeInvalidRequest,
			fmt.Sprintf("idempotencyKey exceeds %d bytes", entities.MaxIdempotencyKeyLength), nil)
	}

	fromID, err := entities.ParseWalletID(cmd.FromWalletID)
	if err != nil {
		return nil, err
	}
	toID, err := entities.ParseWalletID(cmd.ToWalletID)
	if err != nil {
		return nil, err
	}
	if fromID == toID {
		return nil, domainerrors.NewDomainError(domainerrors.CodeSameWalletTransfer,
			"source and destination wallets must differ", nil)
	}

	d, err := decimal.NewFromString(cmd.Amount)
	if err != nil {
		return nil, domainerrors.NewDomainError(domainerrors.CodeInvalidAmount,
			fmt.Sprintf("amount is not a valid decimal: %q", cmd.Amount), err)
	}
	if !d.IsPositive() {
		return nil, domainerrors.NewDomainError(domainerrors.CodeInvalidAmount, "amount must be positive", nil)
	}
	amount, err := valueobjects.NewMoneyFromDecimal(d)
	if err != nil {
		return nil, domainerrors.NewDomainError(domainerrors.CodeInvalidAmount, err.Error(), err)
	}
	if amount.LessThan(valueobjects.MinTransferAmount()) {
		return nil, domainerrors.NewDomainError(domainerrors.CodeAmountTooSmall,
			fmt.Sprintf("amount must be at least %s", valueobjects.MinTransferAmount()), nil)
	}

	return &validatedTransfer{
		FromWalletID:   fromID,
		ToWalletID:     toID,
		Amount:         amount,
		IdempotencyKey: cmd.IdempotencyKey,
	}, nil
}
