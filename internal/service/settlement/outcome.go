package settlement

import (
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/betting-ledger/internal/domain"
)

// Resolution is the terminal state a bet settles into.
type Resolution struct {
	Status domain.BetStatus
	Payout decimal.Decimal
	// Odds is what the payout was computed at. It differs from the bet's
	// TotalOdds only when void legs were dropped.
	Odds decimal.Decimal
}

// ResolveOutcome aggregates a bet's legs. It returns false while any leg is
// still pending.
//
// Any lost leg loses the bet. Void legs are dropped and the remaining legs are
// re-priced; a bet with only void legs is refunded in full.
func ResolveOutcome(b *domain.Bet) (Resolution, bool) {
	if b.PendingSelections() > 0 {
		return Resolution{}, false
	}

	var (
		remaining []decimal.Decimal
		voided    bool
	)
	for i := range b.Selections {
		switch b.Selections[i].Status {
		case domain.SelectionLost:
			return Resolution{Status: domain.BetStatusLost, Payout: decimal.Zero, Odds: b.TotalOdds}, true
		case domain.SelectionVoid:
			voided = true
		default:
			remaining = append(remaining, b.Selections[i].Odds)
		}
	}

	if !voided {
		return Resolution{Status: domain.BetStatusWon, Payout: b.PotentialWin, Odds: b.TotalOdds}, true
	}
	if len(remaining) == 0 {
		return Resolution{Status: domain.BetStatusVoid, Payout: b.Stake, Odds: decimal.NewFromInt(1)}, true
	}

	odds := domain.CombineOdds(remaining)
	return Resolution{Status: domain.BetStatusWon, Payout: domain.Payout(b.Stake, odds), Odds: odds}, true
}

// ManualResolution prices an administrative override without looking at legs.
func ManualResolution(b *domain.Bet, status domain.BetStatus) (Resolution, error) {
	switch status {
	case domain.BetStatusWon:
		return Resolution{Status: status, Payout: b.PotentialWin, Odds: b.TotalOdds}, nil
	case domain.BetStatusLost:
		return Resolution{Status: status, Payout: decimal.Zero, Odds: b.TotalOdds}, nil
	case domain.BetStatusVoid:
		return Resolution{Status: status, Payout: b.Stake, Odds: decimal.NewFromInt(1)}, nil
	default:
		return Resolution{}, domain.ErrInvalidRequest
	}
}

func selectionStatusFor(s domain.BetStatus) domain.SelectionStatus {
	switch s {
	case domain.BetStatusWon:
		return domain.SelectionWon
	case domain.BetStatusLost:
		return domain.SelectionLost
	default:
		return domain.SelectionVoid
	}
}
