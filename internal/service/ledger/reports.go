package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/betting-ledger/internal/domain"
	"github.com/josh-kwaku/betting-ledger/internal/repository"
)

const (
	defaultStatementLimit = 50
	maxStatementLimit     = 500
)

type StatementQuery struct {
	WalletID uuid.UUID
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

type StatementLine struct {
	Entry     domain.LedgerEntry
	Direction Direction
	// Change is signed from the wallet's point of view.
	Change  decimal.Decimal
	Balance decimal.Decimal
}

type Statement struct {
	WalletID       uuid.UUID
	Currency       domain.Currency
	From           time.Time
	To             time.Time
	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal
	Lines          []StatementLine
	Total          int
	Limit          int
	Offset         int
}

// GetAccountStatement lists entries touching the wallet in [From, To) oldest
// first. Each line carries the wallet balance right after that entry.
func (e *Engine) GetAccountStatement(ctx context.Context, q StatementQuery) (*Statement, error) {
	if !q.To.After(q.From) {
		return nil, fmt.Errorf("GetAccountStatement: empty range: %w", domain.ErrInvalidRequest)
	}
	switch {
	case q.Limit <= 0:
		q.Limit = defaultStatementLimit
	case q.Limit > maxStatementLimit:
		q.Limit = maxStatementLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	w, err := e.wallets.GetByID(ctx, q.WalletID)
	if err != nil {
		return nil, fmt.Errorf("GetAccountStatement: %w", err)
	}

	entries, total, err := e.entries.ListByWallet(ctx, w.ID, q.From, q.To, q.Limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("GetAccountStatement: %w", err)
	}
	opening, err := e.entries.BalanceAt(ctx, w.ID, q.From)
	if err != nil {
		return nil, fmt.Errorf("GetAccountStatement: opening: %w", err)
	}
	closing, err := e.entries.BalanceAt(ctx, w.ID, q.To)
	if err != nil {
		return nil, fmt.Errorf("GetAccountStatement: closing: %w", err)
	}

	return &Statement{
		WalletID:       w.ID,
		Currency:       w.Currency,
		From:           q.From,
		To:             q.To,
		OpeningBalance: opening,
		ClosingBalance: closing,
		Lines:          StatementLines(w.ID, entries),
		Total:          total,
		Limit:          q.Limit,
		Offset:         q.Offset,
	}, nil
}

// StatementLines projects entries onto one wallet.
func StatementLines(walletID uuid.UUID, entries []domain.LedgerEntry) []StatementLine {
	lines := make([]StatementLine, 0, len(entries))
	for _, en := range entries {
		line := StatementLine{Entry: en}
		if en.Credit.WalletID != nil && *en.Credit.WalletID == walletID {
			line.Direction = DirectionCredit
			line.Change = en.Amount
			if en.CreditBalanceAfter != nil {
				line.Balance = *en.CreditBalanceAfter
			}
		} else {
			line.Direction = DirectionDebit
			line.Change = en.Amount.Neg()
			if en.DebitBalanceAfter != nil {
				line.Balance = *en.DebitBalanceAfter
			}
		}
		lines = append(lines, line)
	}
	return lines
}

type WinLoss struct {
	UserID        uuid.UUID
	From          time.Time
	To            time.Time
	TotalStaked   decimal.Decimal
	TotalWon      decimal.Decimal
	TotalLost     decimal.Decimal
	TotalRefunded decimal.Decimal
	NetResult     decimal.Decimal
	BetsPlaced    int64
	BetsWon       int64
	BetsRefunded  int64
	// WinRate is BetsWon over BetsPlaced as a percentage.
	WinRate decimal.Decimal
}

func (e *Engine) GetPlayerWinLossHistory(ctx context.Context, tenantID, userID uuid.UUID, from, to time.Time) (*WinLoss, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("GetPlayerWinLossHistory: empty range: %w", domain.ErrInvalidRequest)
	}
	totals, err := e.entries.SumByType(ctx, repository.TotalsFilter{
		TenantID: tenantID,
		UserID:   &userID,
		From:     from,
		To:       to,
	})
	if err != nil {
		return nil, fmt.Errorf("GetPlayerWinLossHistory: %w", err)
	}

	wl := SummarizeWinLoss(totals)
	wl.UserID, wl.From, wl.To = userID, from, to
	return &wl, nil
}

// SummarizeWinLoss folds per-type totals into a player's betting result.
// Reversals count against the type they reverse.
func SummarizeWinLoss(totals []repository.TypeTotal) WinLoss {
	wl := WinLoss{
		TotalStaked:   decimal.Zero,
		TotalWon:      decimal.Zero,
		TotalLost:     decimal.Zero,
		TotalRefunded: decimal.Zero,
		WinRate:       decimal.Zero,
	}
	for _, t := range totals {
		amount, count := t.Amount, t.Count
		if t.Type.IsReversal() {
			amount, count = amount.Neg(), -count
		}
		switch t.Type.Base() {
		case domain.TxBetPlacement:
			wl.TotalStaked = wl.TotalStaked.Add(amount)
			wl.BetsPlaced += count
		case domain.TxBetWinning:
			wl.TotalWon = wl.TotalWon.Add(amount)
			wl.BetsWon += count
		case domain.TxBetLoss:
			wl.TotalLost = wl.TotalLost.Add(amount)
		case domain.TxBetRefund:
			wl.TotalRefunded = wl.TotalRefunded.Add(amount)
			wl.BetsRefunded += count
		}
	}
	wl.NetResult = wl.TotalWon.Add(wl.TotalRefunded).Sub(wl.TotalStaked)
	if wl.BetsPlaced > 0 {
		wl.WinRate = decimal.NewFromInt(wl.BetsWon).
			Div(decimal.NewFromInt(wl.BetsPlaced)).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}
	return wl
}

type FinancialReport struct {
	TenantID     uuid.UUID
	From         time.Time
	To           time.Time
	Deposits     decimal.Decimal
	Withdrawals  decimal.Decimal
	BetStakes    decimal.Decimal
	Payouts      decimal.Decimal
	Bonuses      decimal.Decimal
	Commissions  decimal.Decimal
	RevenueShare decimal.Decimal
	Adjustments  decimal.Decimal
	GrossRevenue decimal.Decimal
	NetRevenue   decimal.Decimal
	EntryCount   int64
}

func (e *Engine) GenerateFinancialReport(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*FinancialReport, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("GenerateFinancialReport: empty range: %w", domain.ErrInvalidRequest)
	}
	totals, err := e.entries.SumByType(ctx, repository.TotalsFilter{TenantID: tenantID, From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("GenerateFinancialReport: %w", err)
	}

	r := BucketTotals(totals)
	r.TenantID, r.From, r.To = tenantID, from, to
	return &r, nil
}

// BucketTotals sorts per-type totals into report buckets. A reversal is
// subtracted from the bucket of the type it reverses. Adjustments are reported
// as a gross amount regardless of direction.
func BucketTotals(totals []repository.TypeTotal) FinancialReport {
	r := FinancialReport{
		Deposits:     decimal.Zero,
		Withdrawals:  decimal.Zero,
		BetStakes:    decimal.Zero,
		Payouts:      decimal.Zero,
		Bonuses:      decimal.Zero,
		Commissions:  decimal.Zero,
		RevenueShare: decimal.Zero,
		Adjustments:  decimal.Zero,
	}
	for _, t := range totals {
		amount := t.Amount
		if t.Type.IsReversal() {
			amount = amount.Neg()
		}
		r.EntryCount += t.Count

		switch t.Type.Base() {
		case domain.TxDeposit:
			r.Deposits = r.Deposits.Add(amount)
		case domain.TxWithdrawal:
			r.Withdrawals = r.Withdrawals.Add(amount)
		case domain.TxBetPlacement:
			r.BetStakes = r.BetStakes.Add(amount)
		case domain.TxBetWinning, domain.TxBetRefund:
			r.Payouts = r.Payouts.Add(amount)
		case domain.TxBonusCredit:
			r.Bonuses = r.Bonuses.Add(amount)
		case domain.TxAgentCommission:
			r.Commissions = r.Commissions.Add(amount)
		case domain.TxOperatorRevenueShare:
			r.RevenueShare = r.RevenueShare.Add(amount)
		case domain.TxSystemAdjustment:
			r.Adjustments = r.Adjustments.Add(amount)
		case domain.TxBetLoss, domain.TxAgentSettlement:
			// moves no revenue
		}
	}
	r.GrossRevenue = r.BetStakes.Sub(r.Payouts)
	r.NetRevenue = r.GrossRevenue.Sub(r.Bonuses).Sub(r.Commissions)
	return r
}
