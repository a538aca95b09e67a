package limits

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/betting-ledger/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testLimits() TenantLimits {
	return TenantLimits{
		MinStake:             d("1"),
		MaxStake:             d("1000"),
		MaxWinning:           d("5000"),
		MaxSelectionsPerSlip: 3,
		MinOdds:              d("1.10"),
		MaxOdds:              d("500"),
		MaxOddsPerSelection:  d("50"),
	}
}

func openEvent() *domain.Event {
	return &domain.Event{ID: uuid.New(), Status: domain.EventStatusScheduled, IsBettingOpen: true}
}

func rules(r Result) []Rule {
	out := make([]Rule, len(r.Violations))
	for i, v := range r.Violations {
		out[i] = v.Rule
	}
	return out
}

func TestValidate_ValidSlip(t *testing.T) {
	e1, e2 := openEvent(), openEvent()
	events := map[uuid.UUID]*domain.Event{e1.ID: e1, e2.ID: e2}

	res := Validate(d("20"), []Leg{
		{EventID: e1.ID, Odds: d("1.80")},
		{EventID: e2.ID, Odds: d("1.90")},
	}, events, testLimits())

	require.True(t, res.Valid, "violations: %v", res.Violations)
	assert.True(t, d("3.42").Equal(res.TotalOdds))
	assert.True(t, d("68.40").Equal(res.PotentialWin))
	assert.Nil(t, res.MaxAllowedStake)
	assert.NoError(t, res.Err())
}

func TestValidate_MaxWinningReportsCorrection(t *testing.T) {
	e1, e2 := openEvent(), openEvent()
	events := map[uuid.UUID]*domain.Event{e1.ID: e1, e2.ID: e2}

	res := Validate(d("1000"), []Leg{
		{EventID: e1.ID, Odds: d("3.00")},
		{EventID: e2.ID, Odds: d("7.00")},
	}, events, testLimits())

	require.False(t, res.Valid)
	assert.Equal(t, []Rule{RuleMaxWinning}, rules(res))
	assert.True(t, d("21000").Equal(res.PotentialWin))
	require.NotNil(t, res.MaxAllowedStake)
	assert.True(t, d("238.09").Equal(*res.MaxAllowedStake), "got %s", res.MaxAllowedStake)
	assert.True(t, domain.Payout(*res.MaxAllowedStake, res.TotalOdds).LessThanOrEqual(d("5000")))

	err := res.Err()
	require.ErrorIs(t, err, domain.ErrValidation)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Result.Violations[0].Message, "reduce stake to 238.09")
}

func TestValidate_MaxWinningIsOnlyCombinedCap(t *testing.T) {
	l := testLimits()
	l.MaxStake = decimal.Zero
	l.MaxSelectionsPerSlip = 0

	legs := make([]Leg, 0, 6)
	events := map[uuid.UUID]*domain.Event{}
	for range 6 {
		e := openEvent()
		events[e.ID] = e
		legs = append(legs, Leg{EventID: e.ID, Odds: d("1.20")})
	}

	res := Validate(d("1500"), legs, events, l)
	assert.True(t, res.Valid, "violations: %v", res.Violations)
}

func TestValidate_RuleViolations(t *testing.T) {
	open := openEvent()
	finished := &domain.Event{ID: uuid.New(), Status: domain.EventStatusFinished}
	closed := &domain.Event{ID: uuid.New(), Status: domain.EventStatusLive, IsBettingOpen: false}
	missing := uuid.New()
	events := map[uuid.UUID]*domain.Event{open.ID: open, finished.ID: finished, closed.ID: closed}

	tests := []struct {
		name  string
		stake string
		legs  []Leg
		want  []Rule
	}{
		{
			name:  "no selections",
			stake: "10",
			legs:  nil,
			want:  []Rule{RuleNoSelections},
		},
		{
			name:  "stake below minimum",
			stake: "0.50",
			legs:  []Leg{{EventID: open.ID, Odds: d("2")}},
			want:  []Rule{RuleMinStake},
		},
		{
			name:  "stake above maximum",
			stake: "1500",
			legs:  []Leg{{EventID: open.ID, Odds: d("1.5")}},
			want:  []Rule{RuleMaxStake},
		},
		{
			name:  "duplicate event",
			stake: "10",
			legs:  []Leg{{EventID: open.ID, Odds: d("2")}, {EventID: open.ID, Odds: d("2")}},
			want:  []Rule{RuleDuplicateEvent},
		},
		{
			name:  "finished and closed events",
			stake: "10",
			legs:  []Leg{{EventID: finished.ID, Odds: d("2")}, {EventID: closed.ID, Odds: d("2")}},
			want:  []Rule{RuleEventClosed, RuleEventClosed},
		},
		{
			name:  "missing event",
			stake: "10",
			legs:  []Leg{{EventID: missing, Odds: d("2")}},
			want:  []Rule{RuleEventNotFound},
		},
		{
			name:  "leg odds above per-selection cap",
			stake: "1",
			legs:  []Leg{{EventID: open.ID, Odds: d("60")}},
			want:  []Rule{RuleMaxOddsPerSelection},
		},
		{
			name:  "odds not above one",
			stake: "10",
			legs:  []Leg{{EventID: open.ID, Odds: d("1")}},
			want:  []Rule{RuleInvalidOdds, RuleMinOdds},
		},
		{
			name:  "too many selections",
			stake: "1",
			legs: []Leg{
				{EventID: uuid.New(), Odds: d("1.5")},
				{EventID: uuid.New(), Odds: d("1.5")},
				{EventID: uuid.New(), Odds: d("1.5")},
				{EventID: uuid.New(), Odds: d("1.5")},
			},
			want: []Rule{RuleMaxSelections, RuleEventNotFound, RuleEventNotFound, RuleEventNotFound, RuleEventNotFound},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(d(tt.stake), tt.legs, events, testLimits())
			assert.False(t, res.Valid)
			assert.Equal(t, tt.want, rules(res))
			assert.ErrorIs(t, res.Err(), domain.ErrValidation)
		})
	}
}

func TestValidate_MaxWinningUsesUnroundedWin(t *testing.T) {
	l := testLimits()
	l.MinOdds = d("1.01")

	legs := make([]Leg, 0, 3)
	events := map[uuid.UUID]*domain.Event{}
	for range 3 {
		e := openEvent()
		events[e.ID] = e
		legs = append(legs, Leg{EventID: e.ID, Odds: d("1.01")})
	}

	tests := []struct {
		name       string
		maxWinning string
		wantValid  bool
	}{
		{"win rounding down to the limit is rejected", "103.03", false},
		{"win exactly at the limit is accepted", "103.0301", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l.MaxWinning = d(tt.maxWinning)
			res := Validate(d("100"), legs, events, l)

			assert.True(t, d("1.030301").Equal(res.TotalOdds), "got %s", res.TotalOdds)
			assert.True(t, d("103.03").Equal(res.PotentialWin), "got %s", res.PotentialWin)
			require.Equal(t, tt.wantValid, res.Valid, "violations: %v", res.Violations)
			if tt.wantValid {
				return
			}
			assert.Equal(t, []Rule{RuleMaxWinning}, rules(res))
			require.NotNil(t, res.MaxAllowedStake)
			assert.True(t, d("99.99").Equal(*res.MaxAllowedStake), "got %s", res.MaxAllowedStake)
		})
	}
}

func TestValidate_TotalOddsAboveMaximum(t *testing.T) {
	l := testLimits()
	l.MaxOdds = d("10")
	l.MaxWinning = decimal.Zero

	e1, e2 := openEvent(), openEvent()
	events := map[uuid.UUID]*domain.Event{e1.ID: e1, e2.ID: e2}

	res := Validate(d("5"), []Leg{
		{EventID: e1.ID, Odds: d("4")},
		{EventID: e2.ID, Odds: d("3")},
	}, events, l)

	assert.Equal(t, []Rule{RuleMaxOdds}, rules(res))
}

func TestMaxStakeFor(t *testing.T) {
	tests := []struct {
		maxWinning, odds, want string
	}{
		{"5000", "21", "238.09"},
		{"1000", "3.42", "292.39"},
		{"100", "2", "50"},
	}
	for _, tt := range tests {
		got := MaxStakeFor(d(tt.maxWinning), d(tt.odds))
		assert.True(t, d(tt.want).Equal(got), "MaxStakeFor(%s, %s) = %s", tt.maxWinning, tt.odds, got)
	}
}
