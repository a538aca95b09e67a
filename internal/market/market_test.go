package market

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/betting-ledger/internal/domain"
)

func TestParse(t *testing.T) {
	teams := Teams{Home: "Arsenal", Away: "Chelsea"}

	tests := []struct {
		name      string
		market    string
		selection string
		family    domain.MarketFamily
		pick      domain.Pick
		line      string
	}{
		{"match winner home", "Match Winner", "Home", domain.MarketMatchWinner, domain.PickHome, ""},
		{"1x2 draw shorthand", "1X2", "X", domain.MarketMatchWinner, domain.PickDraw, ""},
		{"full time result away", "Full Time Result", "2", domain.MarketMatchWinner, domain.PickAway, ""},
		{"team name as selection", "Match Winner", "  chelsea ", domain.MarketMatchWinner, domain.PickAway, ""},
		{"over with line in selection", "Over/Under", "Over 2.5", domain.MarketOverUnder, domain.PickOver, "2.5"},
		{"under with line in market", "Over/Under 3.5", "Under", domain.MarketOverUnder, domain.PickUnder, "3.5"},
		{"total goals", "Total Goals", "Over 1.5", domain.MarketOverUnder, domain.PickOver, "1.5"},
		{"btts yes", "Both Teams To Score", "Yes", domain.MarketBothToScore, domain.PickYes, ""},
		{"btts no", "BTTS", "No", domain.MarketBothToScore, domain.PickNo, ""},
		{"double chance 1X", "Double Chance", "1X", domain.MarketDoubleChance, domain.PickHomeOrDraw, ""},
		{"double chance slash", "Double Chance", "Home/Away", domain.MarketDoubleChance, domain.PickHomeOrAway, ""},
		{"double chance words", "Double Chance", "Draw or Away", domain.MarketDoubleChance, domain.PickDrawOrAway, ""},
		{"unknown market", "Correct Score", "2-1", domain.MarketUnknown, domain.PickUnknown, ""},
		{"over without line", "Over/Under", "Over", domain.MarketUnknown, domain.PickUnknown, ""},
		{"unknown winner pick", "Match Winner", "Liverpool", domain.MarketUnknown, domain.PickUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Parse(tt.market, tt.selection, teams)
			assert.Equal(t, tt.family, d.Family)
			assert.Equal(t, tt.pick, d.Pick)
			if tt.line == "" {
				assert.Nil(t, d.Line)
				return
			}
			require.NotNil(t, d.Line)
			assert.True(t, decimal.RequireFromString(tt.line).Equal(*d.Line))
		})
	}
}

func TestEvaluate(t *testing.T) {
	line := func(s string) *decimal.Decimal {
		d := decimal.RequireFromString(s)
		return &d
	}

	tests := []struct {
		name  string
		desc  domain.MarketDescriptor
		score domain.Score
		want  Outcome
	}{
		{"home wins", domain.MarketDescriptor{Family: domain.MarketMatchWinner, Pick: domain.PickHome}, domain.Score{Home: 2, Away: 1}, OutcomeWon},
		{"home loses on draw", domain.MarketDescriptor{Family: domain.MarketMatchWinner, Pick: domain.PickHome}, domain.Score{Home: 1, Away: 1}, OutcomeLost},
		{"draw", domain.MarketDescriptor{Family: domain.MarketMatchWinner, Pick: domain.PickDraw}, domain.Score{Home: 0, Away: 0}, OutcomeWon},
		{"away wins", domain.MarketDescriptor{Family: domain.MarketMatchWinner, Pick: domain.PickAway}, domain.Score{Home: 0, Away: 3}, OutcomeWon},
		{"over 2.5 with three goals", domain.MarketDescriptor{Family: domain.MarketOverUnder, Pick: domain.PickOver, Line: line("2.5")}, domain.Score{Home: 2, Away: 1}, OutcomeWon},
		{"under 2.5 with three goals", domain.MarketDescriptor{Family: domain.MarketOverUnder, Pick: domain.PickUnder, Line: line("2.5")}, domain.Score{Home: 2, Away: 1}, OutcomeLost},
		{"under 2.5 with two goals", domain.MarketDescriptor{Family: domain.MarketOverUnder, Pick: domain.PickUnder, Line: line("2.5")}, domain.Score{Home: 1, Away: 1}, OutcomeWon},
		{"integer line push", domain.MarketDescriptor{Family: domain.MarketOverUnder, Pick: domain.PickOver, Line: line("2")}, domain.Score{Home: 1, Away: 1}, OutcomePending},
		{"over without line", domain.MarketDescriptor{Family: domain.MarketOverUnder, Pick: domain.PickOver}, domain.Score{Home: 4, Away: 1}, OutcomePending},
		{"btts yes", domain.MarketDescriptor{Family: domain.MarketBothToScore, Pick: domain.PickYes}, domain.Score{Home: 1, Away: 1}, OutcomeWon},
		{"btts yes clean sheet", domain.MarketDescriptor{Family: domain.MarketBothToScore, Pick: domain.PickYes}, domain.Score{Home: 2, Away: 0}, OutcomeLost},
		{"btts no", domain.MarketDescriptor{Family: domain.MarketBothToScore, Pick: domain.PickNo}, domain.Score{Home: 0, Away: 0}, OutcomeWon},
		{"home or draw on draw", domain.MarketDescriptor{Family: domain.MarketDoubleChance, Pick: domain.PickHomeOrDraw}, domain.Score{Home: 1, Away: 1}, OutcomeWon},
		{"home or away on draw", domain.MarketDescriptor{Family: domain.MarketDoubleChance, Pick: domain.PickHomeOrAway}, domain.Score{Home: 1, Away: 1}, OutcomeLost},
		{"draw or away on home win", domain.MarketDescriptor{Family: domain.MarketDoubleChance, Pick: domain.PickDrawOrAway}, domain.Score{Home: 2, Away: 1}, OutcomeLost},
		{"unknown market defers", domain.MarketDescriptor{Family: domain.MarketUnknown, Pick: domain.PickUnknown}, domain.Score{Home: 2, Away: 1}, OutcomePending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.desc, tt.score))
		})
	}
}

func TestParseThenEvaluate_SpecimenSlip(t *testing.T) {
	score := domain.Score{Home: 2, Away: 1}

	winner := Parse("Match Winner", "Home", Teams{Home: "A", Away: "B"})
	total := Parse("Over/Under", "Over 2.5", Teams{Home: "A", Away: "B"})

	assert.Equal(t, OutcomeWon, Evaluate(winner, score))
	assert.Equal(t, OutcomeWon, Evaluate(total, score))
	assert.Equal(t, domain.SelectionWon, Evaluate(total, score).SelectionStatus())
}
