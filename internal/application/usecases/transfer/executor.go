package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/Haleralex/walletledger/internal/application/dtos"
	"github.com/Haleralex/walletledger/internal/application/ports"
	"github.com/Haleralex/walletledger/internal/domain/entities"
	domainerrors "github.com/Haleralex/walletledger/internal/domain/errors"
	"github.com/Haleralex/walletledger/internal/domain/events"
)

// transferExecutor moves the funds. It owns the two-phase write:
//
//  1. Insert the PENDING log as its own committed statement. The row is
//     the durable claim on the idempotency key (unique constraint) and it
//     survives a rollback of the money movement, which is what lets the
//     failure recorder explain a failed attempt afterwards.
//  2. Run the balance mutation in one transaction: lock both wallet rows
//     in lockOrder, debit, credit, bump versions, mark the log SUCCESS and
//     append the completion event to the outbox. All of it commits or none
//     of it does.
type transferExecutor struct {
	wallets   ports.WalletRepository
	logs      ports.TransactionLogRepository
	publisher ports.EventPublisher
	uow       ports.UnitOfWork
}

func newTransferExecutor(
	wallets ports.WalletRepository,
	logs ports.TransactionLogRepository,
	publisher ports.EventPublisher,
	uow ports.UnitOfWork,
) *transferExecutor {
	return &transferExecutor{
		wallets:   wallets,
		logs:      logs,
		publisher: publisher,
		uow:       uow,
	}
}

func (e *transferExecutor) execute(ctx context.Context, req *validatedTransfer) (*dtos.TransferResultDTO, error) {
	log, err := entities.NewTransactionLog(req.FromWalletID, req.ToWalletID, req.Amount, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	// Deliberately outside the unit of work: the PENDING row must outlive
	// a failed transfer.
	if err := e.logs.Create(ctx, log); err != nil {
		if errors.Is(err, domainerrors.ErrDuplicateIdempotencyKey) {
			return nil, domainerrors.NewDomainError(domainerrors.CodeDuplicateRequest,
				fmt.Sprintf("idempotency key already used: %s", req.IdempotencyKey), err)
		}
		return nil, fmt.Errorf("failed to create transaction log: %w", err)
	}

	var result *dtos.TransferResultDTO
	err = e.uow.Execute(ctx, func(txCtx context.Context) error {
		firstID, secondID := lockOrder(req.FromWalletID, req.ToWalletID)

		first, err := e.wallets.FindByIDForUpdate(txCtx, firstID)
		if err != nil {
			return fmt.Errorf("failed to lock wallet %s: %w", firstID, err)
		}
		second, err := e.wallets.FindByIDForUpdate(txCtx, secondID)
		if err != nil {
			return fmt.Errorf("failed to lock wallet %s: %w", secondID, err)
		}

		from, to := first, second
		if firstID != req.FromWalletID {
			from, to = second, first
		}
		if from == nil {
			return domainerrors.NewDomainError(domainerrors.CodeWalletNotFound,
				fmt.Sprintf("source wallet not found: %s", req.FromWalletID), domainerrors.ErrWalletNotFound)
		}
		if to == nil {
			return domainerrors.NewDomainError(domainerrors.CodeWalletNotFound,
				fmt.Sprintf("destination wallet not found: %s", req.ToWalletID), domainerrors.ErrWalletNotFound)
		}

		if err := from.Debit(req.Amount); err != nil {
			return err
		}
		if err := to.Credit(req.Amount); err != nil {
			return fmt.Errorf("failed to credit destination wallet: %w", err)
		}

		if err := e.wallets.Update(txCtx, from); err != nil {
			return fmt.Errorf("failed to update source wallet: %w", err)
		}
		if err := e.wallets.Update(txCtx, to); err != nil {
			return fmt.Errorf("failed to update destination wallet: %w", err)
		}

		if err := log.MarkCompleted(from.Balance(), to.Balance()); err != nil {
			return fmt.Errorf("failed to complete transaction log: %w", err)
		}
		if err := e.logs.Update(txCtx, log); err != nil {
			return fmt.Errorf("failed to update transaction log: %w", err)
		}

		event := events.NewTransferCompleted(
			log.ID(), req.FromWalletID, req.ToWalletID,
			req.Amount.String(), from.Balance().String(), to.Balance().String(),
			req.IdempotencyKey,
		)
		if err := e.publisher.Publish(txCtx, event); err != nil {
			return fmt.Errorf("failed to publish transfer event: %w", err)
		}

		result = &dtos.TransferResultDTO{
			Success:       true,
			TransactionID: log.ID().String(),
			Message:       MsgTransferCompleted,
			FromBalance:   from.Balance().String(),
			ToBalance:     to.Balance().String(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
