package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BetType string

const (
	BetTypeSingle   BetType = "single"
	BetTypeMultiple BetType = "multiple"
)

type BetStatus string

const (
	BetStatusPending BetStatus = "pending"
	BetStatusWon     BetStatus = "won"
	BetStatusLost    BetStatus = "lost"
	BetStatusVoid    BetStatus = "void"
	BetStatusCashout BetStatus = "cashout"
)

func (s BetStatus) IsTerminal() bool {
	return s != BetStatusPending
}

type SettledBy string

const (
	SettledByAuto   SettledBy = "auto"
	SettledByManual SettledBy = "manual"
)

type SelectionStatus string

const (
	SelectionPending SelectionStatus = "pending"
	SelectionWon     SelectionStatus = "won"
	SelectionLost    SelectionStatus = "lost"
	SelectionVoid    SelectionStatus = "void"
)

// MarketFamily and Pick are decided when the bet is placed so settlement never
// has to parse free-text market labels.
type MarketFamily string

const (
	MarketMatchWinner  MarketFamily = "match_winner"
	MarketOverUnder    MarketFamily = "over_under"
	MarketBothToScore  MarketFamily = "both_teams_to_score"
	MarketDoubleChance MarketFamily = "double_chance"
	MarketUnknown      MarketFamily = "unknown"
)

type Pick string

const (
	PickHome       Pick = "home"
	PickDraw       Pick = "draw"
	PickAway       Pick = "away"
	PickOver       Pick = "over"
	PickUnder      Pick = "under"
	PickYes        Pick = "yes"
	PickNo         Pick = "no"
	PickHomeOrDraw Pick = "home_or_draw"
	PickHomeOrAway Pick = "home_or_away"
	PickDrawOrAway Pick = "draw_or_away"
	PickUnknown    Pick = "unknown"
)

type MarketDescriptor struct {
	Family MarketFamily
	Pick   Pick
	Line   *decimal.Decimal
}

type Selection struct {
	ID            uuid.UUID
	BetID         uuid.UUID
	EventID       uuid.UUID
	MarketName    string
	SelectionName string
	Market        MarketDescriptor
	Odds          decimal.Decimal
	Status        SelectionStatus
	ResultHome    *int
	ResultAway    *int
	SettledAt     *time.Time
}

func (s *Selection) IsTerminal() bool {
	return s.Status != SelectionPending
}

type Bet struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	TenantID          uuid.UUID
	WalletID          uuid.UUID
	Type              BetType
	Stake             decimal.Decimal
	Currency          Currency
	TotalOdds         decimal.Decimal
	PotentialWin      decimal.Decimal
	Status            BetStatus
	ActualWin         *decimal.Decimal
	SettledAt         *time.Time
	SettledBy         *SettledBy
	SettlementReason  *string
	PlacementEntryID  *uuid.UUID
	SettlementEntryID *uuid.UUID
	Selections        []Selection
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PendingSelections counts legs that are not yet terminal.
func (b *Bet) PendingSelections() int {
	n := 0
	for i := range b.Selections {
		if !b.Selections[i].IsTerminal() {
			n++
		}
	}
	return n
}

// CombineOdds multiplies leg odds into the slip's total odds. The product is
// exact; only money derived from it is rounded.
func CombineOdds(odds []decimal.Decimal) decimal.Decimal {
	total := decimal.NewFromInt(1)
	for _, o := range odds {
		total = total.Mul(o)
	}
	return total
}

// Payout is stake times odds rounded to cents.
func Payout(stake, odds decimal.Decimal) decimal.Decimal {
	return stake.Mul(odds).Round(2)
}
