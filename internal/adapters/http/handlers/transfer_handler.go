// Package handlers - Transfer HTTP handler.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Haleralex/walletledger/internal/adapters/http/common"
	"github.com/Haleralex/walletledger/internal/adapters/http/middleware"
	"github.com/Haleralex/walletledger/internal/application/dtos"
	"github.com/Haleralex/walletledger/internal/application/usecases/transfer"
	domainerrors "github.com/Haleralex/walletledger/internal/domain/errors"
)

// ============================================
// Use Case Interfaces
// ============================================

// TransferUseCase runs the idempotent transfer pipeline.
type TransferUseCase interface {
	Execute(ctx context.Context, cmd dtos.TransferCommand) (*dtos.TransferResultDTO, error)
}

// ============================================
// Transfer Handler
// ============================================

// TransferHandler handles the money movement endpoint.
type TransferHandler struct {
	transfer TransferUseCase
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transfer TransferUseCase) *TransferHandler {
	SetupValidator()
	return &TransferHandler{transfer: transfer}
}

// ============================================
// Request DTOs
// ============================================

// amountLiteral keeps the literal request text of a monetary field. Clients
// send amounts as JSON numbers or strings; either way the exact characters
// reach the decimal parser, so no float conversion can distort the value.
type amountLiteral string

func (a *amountLiteral) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = amountLiteral(s)
		return nil
	}
	if string(data) == "null" {
		*a = ""
		return nil
	}
	*a = amountLiteral(data)
	return nil
}

// TransferRequest is the transfer request body. Fields carry no binding
// tags: the application-level validator owns categorization, so a missing
// field reports INVALID_REQUEST and a malformed id INVALID_WALLET_ID rather
// than a generic binding failure.
type TransferRequest struct {
	FromWalletID   string        `json:"fromWalletId"`
	ToWalletID     string        `json:"toWalletId"`
	Amount         amountLiteral `json:"amount"`
	IdempotencyKey string        `json:"idempotencyKey"`
}

// ============================================
// HTTP Handlers
// ============================================

// Transfer moves funds between two wallets, idempotently.
//
// @Summary Transfer funds between wallets
// @Description Idempotent transfer; replaying the same idempotencyKey returns the recorded outcome
// @Tags Transfers
// @Accept json
// @Produce json
// @Param request body TransferRequest true "Transfer data"
// @Success 200 {object} dtos.TransferResultDTO
// @Failure 400 {object} common.APIResponse "Validation or balance failure"
// @Failure 404 {object} common.APIResponse "Wallet not found"
// @Failure 409 {object} common.APIResponse "Duplicate or concurrent request"
// @Failure 500 {object} common.APIResponse
// @Router /api/transfer [post]
func (h *TransferHandler) Transfer(c *gin.Context) {
	var req TransferRequest
	if !BindJSON(c, &req) {
		return
	}

	cmd := dtos.TransferCommand{
		FromWalletID:   req.FromWalletID,
		ToWalletID:     req.ToWalletID,
		Amount:         string(req.Amount),
		IdempotencyKey: req.IdempotencyKey,
	}

	result, err := h.transfer.Execute(c.Request.Context(), cmd)
	if err != nil {
		middleware.RecordTransferFailed(domainerrors.CodeOf(err))
		common.HandleDomainError(c, err)
		return
	}

	recordTransferResult(result)

	// Flat body, no envelope: this shape is the public contract and is also
	// what the idempotency result cache stores.
	c.JSON(http.StatusOK, result)
}

// recordTransferResult classifies a successful result for the metrics. The
// message conventions are part of the API contract, so they are safe to
// dispatch on.
func recordTransferResult(result *dtos.TransferResultDTO) {
	switch {
	case strings.HasSuffix(result.Message, transfer.MsgFromCacheSuffix):
		middleware.RecordTransferReplayed("cache")
	case result.Message == transfer.MsgAlreadyProcessed:
		middleware.RecordTransferReplayed("ledger")
	default:
		middleware.RecordTransferCompleted()
	}
}

// RegisterRoutes registers transfer routes on the API group.
//
// Routes:
// - POST /transfer - Execute an idempotent transfer
func (h *TransferHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/transfer", h.Transfer)
}
