package market

import (
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/betting-ledger/internal/domain"
)

type Outcome string

const (
	OutcomeWon     Outcome = "won"
	OutcomeLost    Outcome = "lost"
	OutcomePending Outcome = "pending"
)

// SelectionStatus maps an outcome to the per-leg status stored on the selection.
func (o Outcome) SelectionStatus() domain.SelectionStatus {
	switch o {
	case OutcomeWon:
		return domain.SelectionWon
	case OutcomeLost:
		return domain.SelectionLost
	default:
		return domain.SelectionPending
	}
}

// Evaluate scores one leg against a final score. It never returns void; voiding
// is an administrative action.
func Evaluate(d domain.MarketDescriptor, s domain.Score) Outcome {
	switch d.Family {
	case domain.MarketMatchWinner:
		return evaluateWinner(d.Pick, s)
	case domain.MarketOverUnder:
		return evaluateOverUnder(d, s)
	case domain.MarketBothToScore:
		both := s.Home > 0 && s.Away > 0
		switch d.Pick {
		case domain.PickYes:
			return wonIf(both)
		case domain.PickNo:
			return wonIf(!both)
		}
	case domain.MarketDoubleChance:
		switch d.Pick {
		case domain.PickHomeOrDraw:
			return wonIf(s.Home >= s.Away)
		case domain.PickHomeOrAway:
			return wonIf(s.Home != s.Away)
		case domain.PickDrawOrAway:
			return wonIf(s.Away >= s.Home)
		}
	}
	return OutcomePending
}

func evaluateWinner(p domain.Pick, s domain.Score) Outcome {
	switch p {
	case domain.PickHome:
		return wonIf(s.Home > s.Away)
	case domain.PickDraw:
		return wonIf(s.Home == s.Away)
	case domain.PickAway:
		return wonIf(s.Away > s.Home)
	default:
		return OutcomePending
	}
}

// A total landing exactly on the line is a push; leave it to manual settlement.
func evaluateOverUnder(d domain.MarketDescriptor, s domain.Score) Outcome {
	if d.Line == nil {
		return OutcomePending
	}
	cmp := decimal.NewFromInt(int64(s.Total())).Cmp(*d.Line)
	if cmp == 0 {
		return OutcomePending
	}
	switch d.Pick {
	case domain.PickOver:
		return wonIf(cmp > 0)
	case domain.PickUnder:
		return wonIf(cmp < 0)
	default:
		return OutcomePending
	}
}

func wonIf(cond bool) Outcome {
	if cond {
		return OutcomeWon
	}
	return OutcomeLost
}
