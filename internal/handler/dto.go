package handler

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/betting-ledger/internal/domain"
)

type accountDTO struct {
	Kind     string     `json:"kind"`
	WalletID *uuid.UUID `json:"wallet_id,omitempty"`
	UserID   *uuid.UUID `json:"user_id,omitempty"`
	Label    string     `json:"label,omitempty"`
}

func toAccountDTO(a domain.LedgerAccount) accountDTO {
	return accountDTO{Kind: string(a.Kind), WalletID: a.WalletID, UserID: a.UserID, Label: a.Label}
}

type entryDTO struct {
	ID                  uuid.UUID        `json:"id"`
	EntryNumber         int64            `json:"entry_number"`
	TenantID            uuid.UUID        `json:"tenant_id"`
	Debit               accountDTO       `json:"debit"`
	Credit              accountDTO       `json:"credit"`
	Amount              decimal.Decimal  `json:"amount"`
	Currency            string           `json:"currency"`
	DebitBalanceBefore  *decimal.Decimal `json:"debit_balance_before,omitempty"`
	DebitBalanceAfter   *decimal.Decimal `json:"debit_balance_after,omitempty"`
	CreditBalanceBefore *decimal.Decimal `json:"credit_balance_before,omitempty"`
	CreditBalanceAfter  *decimal.Decimal `json:"credit_balance_after,omitempty"`
	TransactionType     string           `json:"transaction_type"`
	ReferenceType       *string          `json:"reference_type,omitempty"`
	ReferenceID         *uuid.UUID       `json:"reference_id,omitempty"`
	ExternalRef         *string          `json:"external_ref,omitempty"`
	Description         string           `json:"description"`
	CreatedBy           uuid.UUID        `json:"created_by"`
	Metadata            json.RawMessage  `json:"metadata,omitempty"`
	Status              string           `json:"status"`
	ApprovedBy          *uuid.UUID       `json:"approved_by,omitempty"`
	ApprovedAt          *time.Time       `json:"approved_at,omitempty"`
	ReversedBy          *uuid.UUID       `json:"reversed_by,omitempty"`
	ReversedAt          *time.Time       `json:"reversed_at,omitempty"`
	ReversalReason      *string          `json:"reversal_reason,omitempty"`
	ReversalEntryID     *uuid.UUID       `json:"reversal_entry_id,omitempty"`
	ReversesEntryID     *uuid.UUID       `json:"reverses_entry_id,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
}

func toEntryDTO(e *domain.LedgerEntry) entryDTO {
	d := entryDTO{
		ID:                  e.ID,
		EntryNumber:         e.EntryNumber,
		TenantID:            e.TenantID,
		Debit:               toAccountDTO(e.Debit),
		Credit:              toAccountDTO(e.Credit),
		Amount:              e.Amount,
		Currency:            string(e.Currency),
		DebitBalanceBefore:  e.DebitBalanceBefore,
		DebitBalanceAfter:   e.DebitBalanceAfter,
		CreditBalanceBefore: e.CreditBalanceBefore,
		CreditBalanceAfter:  e.CreditBalanceAfter,
		TransactionType:     string(e.TransactionType),
		ReferenceID:         e.ReferenceID,
		ExternalRef:         e.ExternalRef,
		Description:         e.Description,
		CreatedBy:           e.CreatedBy,
		Metadata:            e.Metadata,
		Status:              string(e.Status),
		ApprovedBy:          e.ApprovedBy,
		ApprovedAt:          e.ApprovedAt,
		ReversedBy:          e.ReversedBy,
		ReversedAt:          e.ReversedAt,
		ReversalReason:      e.ReversalReason,
		ReversalEntryID:     e.ReversalEntryID,
		ReversesEntryID:     e.ReversesEntryID,
		CreatedAt:           e.CreatedAt,
	}
	if e.ReferenceType != nil {
		rt := string(*e.ReferenceType)
		d.ReferenceType = &rt
	}
	return d
}

type selectionDTO struct {
	ID            uuid.UUID       `json:"id"`
	EventID       uuid.UUID       `json:"event_id"`
	MarketName    string          `json:"market_name"`
	SelectionName string          `json:"selection_name"`
	MarketFamily  string          `json:"market_family"`
	Pick          string          `json:"pick"`
	Line          *string         `json:"line,omitempty"`
	Odds          decimal.Decimal `json:"odds"`
	Status        string          `json:"status"`
	ResultHome    *int            `json:"result_home,omitempty"`
	ResultAway    *int            `json:"result_away,omitempty"`
	SettledAt     *time.Time      `json:"settled_at,omitempty"`
}

type betDTO struct {
	ID                uuid.UUID        `json:"id"`
	UserID            uuid.UUID        `json:"user_id"`
	TenantID          uuid.UUID        `json:"tenant_id"`
	WalletID          uuid.UUID        `json:"wallet_id"`
	Type              string           `json:"type"`
	Stake             decimal.Decimal  `json:"stake"`
	Currency          string           `json:"currency"`
	TotalOdds         decimal.Decimal  `json:"total_odds"`
	PotentialWin      decimal.Decimal  `json:"potential_win"`
	Status            string           `json:"status"`
	ActualWin         *decimal.Decimal `json:"actual_win,omitempty"`
	SettledAt         *time.Time       `json:"settled_at,omitempty"`
	SettledBy         *string          `json:"settled_by,omitempty"`
	SettlementReason  *string          `json:"settlement_reason,omitempty"`
	PlacementEntryID  *uuid.UUID       `json:"placement_entry_id,omitempty"`
	SettlementEntryID *uuid.UUID       `json:"settlement_entry_id,omitempty"`
	Selections        []selectionDTO   `json:"selections"`
	CreatedAt         time.Time        `json:"created_at"`
}

func toBetDTO(b *domain.Bet) betDTO {
	d := betDTO{
		ID:                b.ID,
		UserID:            b.UserID,
		TenantID:          b.TenantID,
		WalletID:          b.WalletID,
		Type:              string(b.Type),
		Stake:             b.Stake,
		Currency:          string(b.Currency),
		TotalOdds:         b.TotalOdds,
		PotentialWin:      b.PotentialWin,
		Status:            string(b.Status),
		ActualWin:         b.ActualWin,
		SettledAt:         b.SettledAt,
		SettlementReason:  b.SettlementReason,
		PlacementEntryID:  b.PlacementEntryID,
		SettlementEntryID: b.SettlementEntryID,
		Selections:        make([]selectionDTO, len(b.Selections)),
		CreatedAt:         b.CreatedAt,
	}
	if b.SettledBy != nil {
		s := string(*b.SettledBy)
		d.SettledBy = &s
	}
	for i, s := range b.Selections {
		sd := selectionDTO{
			ID:            s.ID,
			EventID:       s.EventID,
			MarketName:    s.MarketName,
			SelectionName: s.SelectionName,
			MarketFamily:  string(s.Market.Family),
			Pick:          string(s.Market.Pick),
			Odds:          s.Odds,
			Status:        string(s.Status),
			ResultHome:    s.ResultHome,
			ResultAway:    s.ResultAway,
			SettledAt:     s.SettledAt,
		}
		if s.Market.Line != nil {
			l := s.Market.Line.String()
			sd.Line = &l
		}
		d.Selections[i] = sd
	}
	return d
}

type eventDTO struct {
	ID            uuid.UUID  `json:"id"`
	HomeTeam      string     `json:"home_team"`
	AwayTeam      string     `json:"away_team"`
	HomeScore     *int       `json:"home_score,omitempty"`
	AwayScore     *int       `json:"away_score,omitempty"`
	Status        string     `json:"status"`
	IsBettingOpen bool       `json:"is_betting_open"`
	StartsAt      time.Time  `json:"starts_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

func toEventDTO(e *domain.Event) eventDTO {
	return eventDTO{
		ID:            e.ID,
		HomeTeam:      e.HomeTeam,
		AwayTeam:      e.AwayTeam,
		HomeScore:     e.HomeScore,
		AwayScore:     e.AwayScore,
		Status:        string(e.Status),
		IsBettingOpen: e.IsBettingOpen,
		StartsAt:      e.StartsAt,
		FinishedAt:    e.FinishedAt,
	}
}
