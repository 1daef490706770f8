// Package handlers - Wallet HTTP handlers.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Haleralex/walletledger/internal/adapters/http/common"
	"github.com/Haleralex/walletledger/internal/application/dtos"
)

// ============================================
// Use Case Interfaces
// ============================================

// CreateWalletUseCase provisions a wallet for an owner handle.
type CreateWalletUseCase interface {
	Execute(ctx context.Context, cmd dtos.CreateWalletCommand) (*dtos.WalletDTO, error)
}

// GetBalanceUseCase reads one wallet's balance.
type GetBalanceUseCase interface {
	Execute(ctx context.Context, walletID string) (*dtos.WalletBalanceDTO, error)
}

// GetHistoryUseCase lists a wallet's transfer attempts.
type GetHistoryUseCase interface {
	Execute(ctx context.Context, walletID string) (*dtos.WalletHistoryDTO, error)
}

// ============================================
// Wallet Handler
// ============================================

// WalletHandler handles wallet provisioning and the query endpoints.
type WalletHandler struct {
	createWallet CreateWalletUseCase
	getBalance   GetBalanceUseCase
	getHistory   GetHistoryUseCase
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(
	createWallet CreateWalletUseCase,
	getBalance GetBalanceUseCase,
	getHistory GetHistoryUseCase,
) *WalletHandler {
	SetupValidator()
	return &WalletHandler{
		createWallet: createWallet,
		getBalance:   getBalance,
		getHistory:   getHistory,
	}
}

// ============================================
// Request DTOs
// ============================================

// CreateWalletRequest is the administrative wallet creation body.
//
// @Description Create wallet request body
type CreateWalletRequest struct {
	OwnerID        string `json:"ownerId" binding:"required,min=1,max=255"`
	InitialBalance string `json:"initialBalance" binding:"omitempty,money_amount"`
}

// WalletIDParam is the wallet id URL parameter. Format checking is left to
// the use case so malformed ids report INVALID_WALLET_ID.
type WalletIDParam struct {
	ID string `uri:"id" binding:"required"`
}

// ============================================
// HTTP Handlers
// ============================================

// CreateWallet provisions a new wallet.
//
// @Summary Create a new wallet
// @Description Create a wallet for an external owner handle, optionally funded
// @Tags Wallets
// @Accept json
// @Produce json
// @Param request body CreateWalletRequest true "Wallet data"
// @Success 201 {object} common.APIResponse{data=dtos.WalletDTO}
// @Failure 400 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse "Owner already has a wallet"
// @Failure 500 {object} common.APIResponse
// @Router /api/wallet [post]
func (h *WalletHandler) CreateWallet(c *gin.Context) {
	var req CreateWalletRequest
	if !BindJSON(c, &req) {
		return
	}

	cmd := dtos.CreateWalletCommand{
		OwnerID:        req.OwnerID,
		InitialBalance: req.InitialBalance,
	}

	result, err := h.createWallet.Execute(c.Request.Context(), cmd)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusCreated, result)
}

// GetBalance returns one wallet's current balance.
//
// @Summary Get wallet balance
// @Description Current balance as a decimal string with four fractional digits
// @Tags Wallets
// @Accept json
// @Produce json
// @Param id path string true "Wallet ID" format(uuid)
// @Success 200 {object} dtos.WalletBalanceDTO
// @Failure 400 {object} common.APIResponse "Malformed wallet id"
// @Failure 404 {object} common.APIResponse "Wallet not found"
// @Failure 500 {object} common.APIResponse
// @Router /api/wallet/{id}/balance [get]
func (h *WalletHandler) GetBalance(c *gin.Context) {
	var params WalletIDParam
	if !BindURI(c, &params) {
		return
	}

	result, err := h.getBalance.Execute(c.Request.Context(), params.ID)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetTransactions lists a wallet's transfer history.
//
// @Summary List wallet transactions
// @Description Up to 100 most recent transfer attempts, newest first; unknown wallets yield an empty list
// @Tags Wallets
// @Accept json
// @Produce json
// @Param id path string true "Wallet ID" format(uuid)
// @Success 200 {object} dtos.WalletHistoryDTO
// @Failure 400 {object} common.APIResponse "Malformed wallet id"
// @Failure 500 {object} common.APIResponse
// @Router /api/wallet/{id}/transactions [get]
func (h *WalletHandler) GetTransactions(c *gin.Context) {
	var params WalletIDParam
	if !BindURI(c, &params) {
		return
	}

	result, err := h.getHistory.Execute(c.Request.Context(), params.ID)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RegisterRoutes registers wallet routes on the API group.
//
// Routes:
// - POST /wallet                   - Create wallet (administrative)
// - GET  /wallet/:id/balance       - Get balance
// - GET  /wallet/:id/transactions  - List transfer history
func (h *WalletHandler) RegisterRoutes(router *gin.RouterGroup) {
	wallet := router.Group("/wallet")
	{
		wallet.POST("", h.CreateWallet)
		wallet.GET("/:id/balance", h.GetBalance)
		wallet.GET("/:id/transactions", h.GetTransactions)
	}
}
