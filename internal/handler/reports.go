package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/betting-ledger/internal/domain"
	"github.com/josh-kwaku/betting-ledger/internal/service/ledger"
)

const (
	statementWindow = 30 * 24 * time.Hour
	reportWindow    = 24 * time.Hour
)

type reportService interface {
	GetWallet(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetAccountStatement(ctx context.Context, q ledger.StatementQuery) (*ledger.Statement, error)
	GetPlayerWinLossHistory(ctx context.Context, tenantID, userID uuid.UUID, from, to time.Time) (*ledger.WinLoss, error)
	GenerateFinancialReport(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*ledger.FinancialReport, error)
}

type ReportHandler struct {
	reports reportService
}

func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

type statementLineDTO struct {
	Entry     entryDTO        `json:"entry"`
	Direction string          `json:"direction"`
	Change    decimal.Decimal `json:"change"`
	Balance   decimal.Decimal `json:"balance"`
}

type statementDTO struct {
	WalletID       uuid.UUID          `json:"wallet_id"`
	Currency       string             `json:"currency"`
	From           time.Time          `json:"from"`
	To             time.Time          `json:"to"`
	OpeningBalance decimal.Decimal    `json:"opening_balance"`
	ClosingBalance decimal.Decimal    `json:"closing_balance"`
	Lines          []statementLineDTO `json:"lines"`
	Total          int                `json:"total"`
	Limit          int                `json:"limit"`
	Offset         int                `json:"offset"`
}

func (h *ReportHandler) Statement(w http.ResponseWriter, r *http.Request) {
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
	from, to, fields := timeRange(r, statementWindow)
	limit, offset, more := pagination(r)
	if fields = append(fields, more...); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	wallet, err := h.reports.GetWallet(r.Context(), walletID)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	if !canSeeWallet(id, wallet) {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	st, err := h.reports.GetAccountStatement(r.Context(), ledger.StatementQuery{
		WalletID: wallet.ID,
		From:     from,
		To:       to,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}

	dto := statementDTO{
		WalletID:       st.WalletID,
		Currency:       string(st.Currency),
		From:           st.From,
		To:             st.To,
		OpeningBalance: st.OpeningBalance,
		ClosingBalance: st.ClosingBalance,
		Lines:          make([]statementLineDTO, len(st.Lines)),
		Total:          st.Total,
		Limit:          st.Limit,
		Offset:         st.Offset,
	}
	for i, l := range st.Lines {
		dto.Lines[i] = statementLineDTO{
			Entry:     toEntryDTO(&l.Entry),
			Direction: string(l.Direction),
			Change:    l.Change,
			Balance:   l.Balance,
		}
	}
	RespondSuccess(w, http.StatusOK, dto)
}

type winLossDTO struct {
	UserID        uuid.UUID       `json:"user_id"`
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	TotalStaked   decimal.Decimal `json:"total_staked"`
	TotalWon      decimal.Decimal `json:"total_won"`
	TotalLost     decimal.Decimal `json:"total_lost"`
	TotalRefunded decimal.Decimal `json:"total_refunded"`
	NetResult     decimal.Decimal `json:"net_result"`
	BetsPlaced    int64           `json:"bets_placed"`
	BetsWon       int64           `json:"bets_won"`
	BetsRefunded  int64           `json:"bets_refunded"`
	WinRate       decimal.Decimal `json:"win_rate"`
}

func (h *ReportHandler) WinLoss(w http.ResponseWriter, r *http.Request) {
	id, appErr := caller(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	userID, appErr := pathID(r, "id")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	if !canSee(id, id.TenantID, userID) {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}
	from, to, fields := timeRange(r, statementWindow)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	wl, err := h.reports.GetPlayerWinLossHistory(r.Context(), id.TenantID, userID, from, to)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, winLossDTO{
		UserID:        wl.UserID,
		From:          wl.From,
		To:            wl.To,
		TotalStaked:   wl.TotalStaked,
		TotalWon:      wl.TotalWon,
		TotalLost:     wl.TotalLost,
		TotalRefunded: wl.TotalRefunded,
		NetResult:     wl.NetResult,
		BetsPlaced:    wl.BetsPlaced,
		BetsWon:       wl.BetsWon,
		BetsRefunded:  wl.BetsRefunded,
		WinRate:       wl.WinRate,
	})
}

type financialReportDTO struct {
	TenantID     uuid.UUID       `json:"tenant_id"`
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	Deposits     decimal.Decimal `json:"deposits"`
	Withdrawals  decimal.Decimal `json:"withdrawals"`
	BetStakes    decimal.Decimal `json:"bet_stakes"`
	Payouts      decimal.Decimal `json:"payouts"`
	Bonuses      decimal.Decimal `json:"bonuses"`
	Commissions  decimal.Decimal `json:"commissions"`
	RevenueShare decimal.Decimal `json:"revenue_share"`
	Adjustments  decimal.Decimal `json:"adjustments"`
	GrossRevenue decimal.Decimal `json:"gross_revenue"`
	NetRevenue   decimal.Decimal `json:"net_revenue"`
	EntryCount   int64           `json:"entry_count"`
}

func (h *ReportHandler) Financial(w http.ResponseWriter, r *http.Request) {
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

	rep, err := h.reports.GenerateFinancialReport(r.Context(), id.TenantID, from, to)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, financialReportDTO{
		TenantID:     rep.TenantID,
		From:         rep.From,
		To:           rep.To,
		Deposits:     rep.Deposits,
		Withdrawals:  rep.Withdrawals,
		BetStakes:    rep.BetStakes,
		Payouts:      rep.Payouts,
		Bonuses:      rep.Bonuses,
		Commissions:  rep.Commissions,
		RevenueShare: rep.RevenueShare,
		Adjustments:  rep.Adjustments,
		GrossRevenue: rep.GrossRevenue,
		NetRevenue:   rep.NetRevenue,
		EntryCount:   rep.EntryCount,
	})
}
