package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/betting-ledger/internal/domain"
	"github.com/josh-kwaku/betting-ledger/internal/limits"
	"github.com/josh-kwaku/betting-ledger/internal/service/betslip"
	"github.com/josh-kwaku/betting-ledger/internal/service/settlement"
)

type slipService interface {
	ValidateSlip(ctx context.Context, tenantID uuid.UUID, stake decimal.Decimal, sels []betslip.SelectionInput) (limits.Result, error)
	PlaceBet(ctx context.Context, req betslip.PlaceBetRequest) (*domain.Bet, error)
}

type betSettler interface {
	GetBet(ctx context.Context, id uuid.UUID) (*domain.Bet, error)
	ManualSettleBet(ctx context.Context, req settlement.ManualSettleRequest) (*domain.Bet, error)
}

type BetHandler struct {
	slips   slipService
	settler betSettler
}

func NewBetHandler(slips slipService, settler betSettler) *BetHandler {
	return &BetHandler{slips: slips, settler: settler}
}

type selectionRequest struct {
	EventID       uuid.UUID       `json:"event_id" validate:"required"`
	MarketName    string          `json:"market_name" validate:"required,max=100"`
	SelectionName string          `json:"selection_name" validate:"required,max=100"`
	Odds          decimal.Decimal `json:"odds" validate:"required,gt=0"`
}

// An empty selection list is left to the limit checks, which report it as a
// rule violation alongside anything else wrong with the slip.
type slipRequest struct {
	Stake      decimal.Decimal    `json:"stake" validate:"required,gt=0"`
	Selections []selectionRequest `json:"selections" validate:"max=50,dive"`
}

type placeBetRequest struct {
	WalletID   uuid.UUID          `json:"wallet_id" validate:"required"`
	Stake      decimal.Decimal    `json:"stake" validate:"required,gt=0"`
	Selections []selectionRequest `json:"selections" validate:"max=50,dive"`
}

func selectionInputs(sels []selectionRequest) []betslip.SelectionInput {
	out := make([]betslip.SelectionInput, len(sels))
	for i, sel := range sels {
		out[i] = betslip.SelectionInput{
			EventID:       sel.EventID,
			MarketName:    sel.MarketName,
			SelectionName: sel.SelectionName,
			Odds:          sel.Odds,
		}
	}
	return out
}

func (h *BetHandler) Validate(w http.ResponseWriter, r *http.Request) {
	id, appErr := caller(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	var req slipRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.slips.ValidateSlip(r.Context(), id.TenantID, req.Stake, selectionInputs(req.Selections))
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	if res.Violations == nil {
		res.Violations = []limits.Violation{}
	}
	RespondSuccess(w, http.StatusOK, res)
}

func (h *BetHandler) Place(w http.ResponseWriter, r *http.Request) {
	id, appErr := caller(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	var req placeBetRequest
	if !decode(w, r, &req) {
		return
	}

	bet, err := h.slips.PlaceBet(r.Context(), betslip.PlaceBetRequest{
		TenantID:   id.TenantID,
		UserID:     id.UserID,
		WalletID:   req.WalletID,
		Stake:      req.Stake,
		Selections: selectionInputs(req.Selections),
	})
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, toBetDTO(bet))
}

func (h *BetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, appErr := caller(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	betID, appErr := pathID(r, "id")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	bet, err := h.settler.GetBet(r.Context(), betID)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	if !canSee(id, bet.TenantID, bet.UserID) {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}
	RespondSuccess(w, http.StatusOK, toBetDTO(bet))
}

type manualSettleRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=won lost void"`
	Reason  string `json:"reason" validate:"required,max=500"`
}

func (h *BetHandler) ManualSettle(w http.ResponseWriter, r *http.Request) {
	id, appErr := caller(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	betID, appErr := pathID(r, "id")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	var req manualSettleRequest
	if !decode(w, r, &req) {
		return
	}

	bet, err := h.settler.GetBet(r.Context(), betID)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	if bet.TenantID != id.TenantID {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	settled, err := h.settler.ManualSettleBet(r.Context(), settlement.ManualSettleRequest{
		BetID:     bet.ID,
		Outcome:   domain.BetStatus(req.Outcome),
		SettledBy: id.UserID,
		Reason:    req.Reason,
	})
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toBetDTO(settled))
}
