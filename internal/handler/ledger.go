package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/betting-ledger/internal/auth"
	"github.com/josh-kwaku/betting-ledger/internal/domain"
	"github.com/josh-kwaku/betting-ledger/internal/service/ledger"
)

type ledgerService interface {
	Deposit(ctx context.Context, req ledger.DepositRequest) (*domain.LedgerEntry, error)
	Withdrawal(ctx context.Context, req ledger.WithdrawalRequest) (*domain.LedgerEntry, error)
	BonusCredit(ctx context.Context, req ledger.BonusRequest) (*domain.LedgerEntry, error)
	AgentCommission(ctx context.Context, req ledger.CommissionRequest) (*domain.LedgerEntry, error)
	AgentSettlement(ctx context.Context, req ledger.AgentSettlementRequest) (*domain.LedgerEntry, error)
	OperatorRevenueShare(ctx context.Context, req ledger.RevenueShareRequest) (*domain.LedgerEntry, error)
	SystemAdjustment(ctx context.Context, req ledger.AdjustmentRequest) (*domain.LedgerEntry, error)
	ReverseEntry(ctx context.Context, req ledger.ReverseRequest) (*domain.LedgerEntry, error)
	ApproveEntry(ctx context.Context, entryID, approvedBy uuid.UUID) (*domain.LedgerEntry, error)
	GetEntry(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error)
	GetWallet(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetAccountBalance(ctx context.Context, walletID uuid.UUID) (*domain.AccountBalance, error)
}

type LedgerHandler struct {
	ledger ledgerService
}

func NewLedgerHandler(l ledgerService) *LedgerHandler {
	return &LedgerHandler{ledger: l}
}

type walletMoneyRequest struct {
	WalletID    uuid.UUID       `json:"wallet_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"required,gt=0"`
	ExternalRef *string         `json:"external_ref" validate:"omitempty,max=255"`
	Description string          `json:"description" validate:"max=500"`
	Metadata    map[string]any  `json:"metadata"`
}

type bonusRequest struct {
	WalletID    uuid.UUID       `json:"wallet_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"required,gt=0"`
	BonusID     *uuid.UUID      `json:"bonus_id"`
	Description string          `json:"description" validate:"max=500"`
}

type commissionRequest struct {
	AgentWalletID uuid.UUID        `json:"agent_wallet_id" validate:"required"`
	Amount        decimal.Decimal  `json:"amount" validate:"required,gt=0"`
	Rate          *decimal.Decimal `json:"rate" validate:"omitempty,gt=0,lte=1"`
	Description   string           `json:"description" validate:"max=500"`
}

type agentSettlementRequest struct {
	AgentWalletID uuid.UUID       `json:"agent_wallet_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Description   string          `json:"description" validate:"max=500"`
}

type revenueShareRequest struct {
	OperatorID  uuid.UUID        `json:"operator_id" validate:"required"`
	Amount      decimal.Decimal  `json:"amount" validate:"required,gt=0"`
	Rate        *decimal.Decimal `json:"rate" validate:"omitempty,gt=0,lte=1"`
	Currency    string           `json:"currency" validate:"required,oneof=USD EUR GBP IDR NGN"`
	Description string           `json:"description" validate:"max=500"`
}

type adjustmentRequest struct {
	WalletID uuid.UUID       `json:"wallet_id" validate:"required"`
	Amount   decimal.Decimal `json:"amount" validate:"required"`
	Reason   string          `json:"reason" validate:"required,max=500"`
}

type reverseRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// tenantWallet loads a wallet the caller is about to move money on. Wallets of
// other tenants answer 404.
func (h *LedgerHandler) tenantWallet(w http.ResponseWriter, r *http.Request, id auth.Identity, walletID uuid.UUID) bool {
	wallet, err := h.ledger.GetWallet(r.Context(), walletID)
	if err != nil {
		RespondDomainError(w, r, err)
		return false
	}
	if wallet.TenantID != id.TenantID {
		RespondAppError(w, ErrResourceNotFound, nil)
		return false
	}
	return true
}

func (h *LedgerHandler) respondEntry(w http.ResponseWriter, r *http.Request, entry *domain.LedgerEntry, err error) {
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, toEntryDTO(entry))
}

func (h *LedgerHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.walletMoney(w, r, h.ledger.Deposit)
}

// Withdrawal answers 201 for both completed and pending entries; the entry
// status tells them apart.
func (h *LedgerHandler) Withdrawal(w http.ResponseWriter, r *http.Request) {
	h.walletMoney(w, r, h.ledger.Withdrawal)
}

func (h *LedgerHandler) walletMoney(w http.ResponseWriter, r *http.Request, op func(context.Context, ledger.DepositRequest) (*domain.LedgerEntry, error)) {
	id, appErr := caller(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	var req walletMoneyRequest
	if !decode(w, r, &req) {
		return
	}
	if !h.tenantWallet(w, r, id, req.WalletID) {
		return
	}

	entry, err := op(r.Context(), ledger.DepositRequest{
		TenantID:    id.TenantID,
		WalletID:    req.WalletID,
		Amount:      req.Amount,
		ExternalRef: req.ExternalRef,
		Description: req.Description,
		CreatedBy:   id.UserID,
		Metadata:    req.Metadata,
	})
	h.respondEntry(w, r, entry, err)
}

func (h *LedgerHandler) Bonus(w http.ResponseWriter, r *http.Request) {
	id, appErr := caller(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	var req bonusRequest
	if !decode(w, r, &req) {
		return
	}
	if !h.tenantWallet(w, r, id, req.WalletID) {
		return
	}

	entry, err := h.ledger.BonusCredit(r.Context(), ledger.BonusRequest{
		TenantID:    id.TenantID,
		WalletID:    req.WalletID,
		Amount:      req.Amount,
		BonusID:     req.BonusID,
		Description: req.Description,
		CreatedBy:   id.UserID,
	})
	h.respondEntry(w, r, entry, err)
}

func (h *LedgerHandler) Commission(w http.ResponseWriter, r *http.Request) {
	id, appErr := caller(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	var req commissionRequest
	if !decode(w, r, &req) {
		return
	}
	if !h.tenantWallet(w, r, id, req.AgentWalletID) {
		return
	}

	entry, err := h.ledger.AgentCommission(r.Context(), ledger.CommissionRequest{
		TenantID:      id.TenantID,
		AgentWalletID: req.AgentWalletID,
		Amount:        req.Amount,
		Rate:          req.Rate,
		Description:   req.Description,
		CreatedBy:     id.UserID,
	})
	h.respondEntry(w, r, entry, err)
}

func (h *LedgerHandler) AgentSettlement(w http.ResponseWriter, r *http.Request) {
	id, appErr := caller(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	var req agentSettlementRequest
	if !decode(w, r, &req) {
		return
	}
	if !h.tenantWallet(w, r, id, req.AgentWalletID) {
		return
	}

	entry, err := h.ledger.AgentSettlement(r.Context(), ledger.AgentSettlementRequest{
		TenantID:      id.TenantID,
		AgentWalletID: req.AgentWalletID,
		Amount:        req.Amount,
		Description:   req.Description,
		CreatedBy:     id.UserID,
	})
	h.respondEntry(w, r, entry, err)
}

func (h *LedgerHandler) RevenueShare(w http.ResponseWriter, r *http.Request) {
	id, appErr := caller(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	var req revenueShareRequest
	if !decode(w, r, &req) {
		return
	}

	entry, err := h.ledger.OperatorRevenueShare(r.Context(), ledger.RevenueShareRequest{
		TenantID:    id.TenantID,
		OperatorID:  req.OperatorID,
		Amount:      req.Amount,
		Rate:        req.Rate,
		Currency:    domain.Currency(req.Currency),
		Description: req.Description,
		CreatedBy:   id.UserID,
	})
	h.respondEntry(w, r, entry, err)
}

func (h *LedgerHandler) Adjustment(w http.ResponseWriter, r *http.Request) {
	id, appErr := caller(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	var req adjustmentRequest
	if !decode(w, r, &req) {
		return
	}
	if !h.tenantWallet(w, r, id, req.WalletID) {
		return
	}

	entry, err := h.ledger.SystemAdjustment(r.Context(), ledger.AdjustmentRequest{
		TenantID:  id.TenantID,
		WalletID:  req.WalletID,
		Amount:    req.Amount,
		Reason:    req.Reason,
		CreatedBy: id.UserID,
	})
	h.respondEntry(w, r, entry, err)
}

// tenantEntry loads an entry from the path and hides entries of other tenants.
func (h *LedgerHandler) tenantEntry(w http.ResponseWriter, r *http.Request, id auth.Identity) (*domain.LedgerEntry, bool) {
	entryID, appErr := pathID(r, "id")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return nil, false
	}
	entry, err := h.ledger.GetEntry(r.Context(), entryID)
	if err != nil {
		RespondDomainError(w, r, err)
		return nil, false
	}
	if entry.TenantID != id.TenantID {
		RespondAppError(w, ErrResourceNotFound, nil)
		return nil, false
	}
	return entry, true
}

func (h *LedgerHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, appErr := caller(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	entry, ok := h.tenantEntry(w, r, id)
	if !ok {
		return
	}
	RespondSuccess(w, http.StatusOK, toEntryDTO(entry))
}

type reversalDTO struct {
	Reversal entryDTO  `json:"reversal"`
	Original uuid.UUID `json:"original_entry_id"`
}

func (h *LedgerHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	id, appErr := caller(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	entry, ok := h.tenantEntry(w, r, id)
	if !ok {
		return
	}
	var req reverseRequest
	if !decode(w, r, &req) {
		return
	}

	mirror, err := h.ledger.ReverseEntry(r.Context(), ledger.ReverseRequest{
		EntryID:    entry.ID,
		Reason:     req.Reason,
		ReversedBy: id.UserID,
	})
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, reversalDTO{Reversal: toEntryDTO(mirror), Original: entry.ID})
}

func (h *LedgerHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, appErr := caller(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	entry, ok := h.tenantEntry(w, r, id)
	if !ok {
		return
	}

	approved, err := h.ledger.ApproveEntry(r.Context(), entry.ID, id.UserID)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toEntryDTO(approved))
}

type balanceDTO struct {
	WalletID          uuid.UUID       `json:"wallet_id"`
	Currency          string          `json:"currency"`
	AvailableBalance  decimal.Decimal `json:"available_balance"`
	TotalCredits      decimal.Decimal `json:"total_credits"`
	TotalDebits       decimal.Decimal `json:"total_debits"`
	TransactionCount  int64           `json:"transaction_count"`
	LastTransactionAt *time.Time      `json:"last_transaction_at,omitempty"`
}

func (h *LedgerHandler) Balance(w http.ResponseWriter, r *http.Request) {
	id, appErr := caller(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	walletID, appErr := pathID(r, "id")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	wallet, err := h.ledger.GetWallet(r.Context(), walletID)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	if !canSeeWallet(id, wallet) {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	dto := balanceDTO{
		WalletID:         wallet.ID,
		Currency:         string(wallet.Currency),
		AvailableBalance: wallet.AvailableBalance,
		TotalCredits:     decimal.Zero,
		TotalDebits:      decimal.Zero,
	}
	agg, err := h.ledger.GetAccountBalance(r.Context(), wallet.ID)
	switch {
	case err == nil:
		dto.TotalCredits = agg.TotalCredits
		dto.TotalDebits = agg.TotalDebits
		dto.TransactionCount = agg.TransactionCount
		dto.LastTransactionAt = agg.LastTransactionAt
	case domain.IsNotFound(err):
		// no entries yet
	default:
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, dto)
}
