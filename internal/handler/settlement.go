package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/betting-ledger/internal/domain"
	"github.com/josh-kwaku/betting-ledger/internal/service/settlement"
)

type settlementService interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	SetEventResult(ctx context.Context, eventID uuid.UUID, score domain.Score, settledBy uuid.UUID) (*settlement.EventSettlementSummary, error)
	CancelEvent(ctx context.Context, eventID, cancelledBy uuid.UUID, reason string) (*settlement.EventSettlementSummary, error)
	RetryEventSettlement(ctx context.Context, eventID, actor uuid.UUID) (*settlement.EventSettlementSummary, error)
	GetSettlementStats(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*settlement.SettlementStats, error)
	GetPendingSettlements(ctx context.Context, tenantID uuid.UUID, limit, offset int) (*settlement.PendingSettlements, error)
}

type SettlementHandler struct {
	settlement settlementService
}

func NewSettlementHandler(s settlementService) *SettlementHandler {
	return &SettlementHandler{settlement: s}
}

type resultRequest struct {
	HomeScore *int `json:"home_score" validate:"required,gte=0"`
	AwayScore *int `json:"away_score" validate:"required,gte=0"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type summaryDTO struct {
	EventID      uuid.UUID       `json:"event_id"`
	BetsFound    int             `json:"bets_found"`
	BetsSettled  int             `json:"bets_settled"`
	BetsPending  int             `json:"bets_pending"`
	BetsFailed   int             `json:"bets_failed"`
	Won          int             `json:"won"`
	Lost         int             `json:"lost"`
	Void         int             `json:"void"`
	TotalStaked  decimal.Decimal `json:"total_staked"`
	TotalPaidOut decimal.Decimal `json:"total_paid_out"`
	GGR          decimal.Decimal `json:"ggr"`
}

func toSummaryDTO(s *settlement.EventSettlementSummary) summaryDTO {
	return summaryDTO{
		EventID:      s.EventID,
		BetsFound:    s.BetsFound,
		BetsSettled:  s.BetsSettled,
		BetsPending:  s.BetsPending,
		BetsFailed:   s.BetsFailed,
		Won:          s.Won,
		Lost:         s.Lost,
		Void:         s.Void,
		TotalStaked:  s.TotalStaked,
		TotalPaidOut: s.TotalPaidOut,
		GGR:          s.GGR,
	}
}

// tenantEvent resolves the event in the path; events of other tenants answer 404.
func (h *SettlementHandler) tenantEvent(w http.ResponseWriter, r *http.Request, tenantID uuid.UUID) (*domain.Event, bool) {
	eventID, appErr := pathID(r, "id")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return nil, false
	}
	ev, err := h.settlement.GetEvent(r.Context(), eventID)
	if err != nil {
		RespondDomainError(w, r, err)
		return nil, false
	}
	if ev.TenantID != tenantID {
		RespondAppError(w, ErrResourceNotFound, nil)
		return nil, false
	}
	return ev, true
}

func (h *SettlementHandler) SetResult(w http.ResponseWriter, r *http.Request) {
	id, appErr := caller(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	ev, ok := h.tenantEvent(w, r, id.TenantID)
	if !ok {
		return
	}
	var req resultRequest
	if !decode(w, r, &req) {
		return
	}

	s, err := h.settlement.SetEventResult(r.Context(), ev.ID, domain.Score{Home: *req.HomeScore, Away: *req.AwayScore}, id.UserID)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toSummaryDTO(s))
}

func (h *SettlementHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, appErr := caller(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	ev, ok := h.tenantEvent(w, r, id.TenantID)
	if !ok {
		return
	}
	var req cancelRequest
	if !decode(w, r, &req) {
		return
	}

	s, err := h.settlement.CancelEvent(r.Context(), ev.ID, id.UserID, req.Reason)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toSummaryDTO(s))
}

func (h *SettlementHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id, appErr := caller(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	ev, ok := h.tenantEvent(w, r, id.TenantID)
	if !ok {
		return
	}

	s, err := h.settlement.RetryEventSettlement(r.Context(), ev.ID, id.UserID)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toSummaryDTO(s))
}

type statusStatDTO struct {
	Status    string          `json:"status"`
	Count     int64           `json:"count"`
	Stake     decimal.Decimal `json:"stake"`
	ActualWin decimal.Decimal `json:"actual_win"`
}

type statsDTO struct {
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	ByStatus     []statusStatDTO `json:"by_status"`
	TotalBets    int64           `json:"total_bets"`
	SettledBets  int64           `json:"settled_bets"`
	PendingBets  int64           `json:"pending_bets"`
	PendingStake decimal.Decimal `json:"pending_stake"`
	TotalStaked  decimal.Decimal `json:"total_staked"`
	TotalPaidOut decimal.Decimal `json:"total_paid_out"`
	GGR          decimal.Decimal `json:"ggr"`
}

func (h *SettlementHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, appErr := caller(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	from, to, fields := timeRange(r, reportWindow)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	st, err := h.settlement.GetSettlementStats(r.Context(), id.TenantID, from, to)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	dto := statsDTO{
		From:         st.From,
		To:           st.To,
		ByStatus:     make([]statusStatDTO, len(st.ByStatus)),
		TotalBets:    st.TotalBets,
		SettledBets:  st.SettledBets,
		PendingBets:  st.PendingBets,
		PendingStake: st.PendingStake,
		TotalStaked:  st.TotalStaked,
		TotalPaidOut: st.TotalPaidOut,
		GGR:          st.GGR,
	}
	for i, s := range st.ByStatus {
		dto.ByStatus[i] = statusStatDTO{Status: string(s.Status), Count: s.Count, Stake: s.Stake, ActualWin: s.ActualWin}
	}
	RespondSuccess(w, http.StatusOK, dto)
}

type pendingEventDTO struct {
	Event           eventDTO        `json:"event"`
	PendingBets     int64           `json:"pending_bets"`
	TotalStake      decimal.Decimal `json:"total_stake"`
	PotentialPayout decimal.Decimal `json:"potential_payout"`
}

type pendingDTO struct {
	Events []pendingEventDTO `json:"events"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

func (h *SettlementHandler) Pending(w http.ResponseWriter, r *http.Request) {
	id, appErr := caller(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	limit, offset, fields := pagination(r)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	p, err := h.settlement.GetPendingSettlements(r.Context(), id.TenantID, limit, offset)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	dto := pendingDTO{
		Events: make([]pendingEventDTO, len(p.Events)),
		Total:  p.Total,
		Limit:  p.Limit,
		Offset: p.Offset,
	}
	for i, e := range p.Events {
		dto.Events[i] = pendingEventDTO{
			Event:           toEventDTO(&e.Event),
			PendingBets:     e.PendingBets,
			TotalStake:      e.TotalStake,
			PotentialPayout: e.PotentialPayout,
		}
	}
	RespondSuccess(w, http.StatusOK, dto)
}
