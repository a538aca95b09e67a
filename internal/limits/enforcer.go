// Package limits checks a bet slip against a tenant's exposure limits before
// any money moves.
package limits

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/betting-ledger/internal/domain"
)

// TenantLimits holds one tenant's betting limits. A zero maximum means the
// rule is not enforced.
type TenantLimits struct {
	MinStake             decimal.Decimal `json:"min_stake"`
	MaxStake             decimal.Decimal `json:"max_stake"`
	MaxWinning           decimal.Decimal `json:"max_winning"`
	MaxSelectionsPerSlip int             `json:"max_selections_per_slip"`
	MinOdds              decimal.Decimal `json:"min_odds"`
	MaxOdds              decimal.Decimal `json:"max_odds"`
	MaxOddsPerSelection  decimal.Decimal `json:"max_odds_per_selection"`
}

type Rule string

const (
	RuleNoSelections        Rule = "no_selections"
	RuleMaxSelections       Rule = "max_selections"
	RuleDuplicateEvent      Rule = "duplicate_event"
	RuleEventNotFound       Rule = "event_not_found"
	RuleEventClosed         Rule = "event_closed"
	RuleInvalidOdds         Rule = "invalid_odds"
	RuleMaxOddsPerSelection Rule = "max_odds_per_selection"
	RuleMinStake            Rule = "min_stake"
	RuleMaxStake            Rule = "max_stake"
	RuleMinOdds             Rule = "min_odds"
	RuleMaxOdds             Rule = "max_odds"
	RuleMaxWinning          Rule = "max_winning"
)

type Violation struct {
	Rule    Rule             `json:"rule"`
	Message string           `json:"message"`
	EventID *uuid.UUID       `json:"event_id,omitempty"`
	Limit   *decimal.Decimal `json:"limit,omitempty"`
	Actual  *decimal.Decimal `json:"actual,omitempty"`
}

type Leg struct {
	EventID uuid.UUID
	Odds    decimal.Decimal
}

// Result is the full outcome of a slip check. MaxAllowedStake is only set when
// the max-winning ceiling was hit.
type Result struct {
	Valid           bool             `json:"valid"`
	TotalOdds       decimal.Decimal  `json:"total_odds"`
	PotentialWin    decimal.Decimal  `json:"potential_win"`
	Violations      []Violation      `json:"violations"`
	MaxAllowedStake *decimal.Decimal `json:"max_allowed_stake,omitempty"`
}

// Err returns nil for a valid slip, otherwise a *ValidationError.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Result: r}
}

// ValidationError carries the rule breakdown and unwraps to domain.ErrValidation.
type ValidationError struct {
	Result Result
}

func (e *ValidationError) Error() string {
	rules := make([]string, len(e.Result.Violations))
	for i, v := range e.Result.Violations {
		rules[i] = string(v.Rule)
	}
	return fmt.Sprintf("bet slip rejected: %s", strings.Join(rules, ", "))
}

func (e *ValidationError) Unwrap() error { return domain.ErrValidation }

// Validate checks stake and legs against the tenant's limits. It only reads its
// inputs. Events missing from the map are reported as not found.
func Validate(stake decimal.Decimal, legs []Leg, events map[uuid.UUID]*domain.Event, l TenantLimits) Result {
	var vs []Violation
	add := func(v Violation) { vs = append(vs, v) }

	odds := make([]decimal.Decimal, len(legs))
	for i, leg := range legs {
		odds[i] = leg.Odds
	}
	totalOdds := domain.CombineOdds(odds)
	potentialWin := domain.Payout(stake, totalOdds)

	if len(legs) == 0 {
		add(Violation{Rule: RuleNoSelections, Message: "slip has no selections"})
	}
	if l.MaxSelectionsPerSlip > 0 && len(legs) > l.MaxSelectionsPerSlip {
		add(Violation{
			Rule:    RuleMaxSelections,
			Message: fmt.Sprintf("slip has %d selections, maximum is %d", len(legs), l.MaxSelectionsPerSlip),
			Limit:   ptr(decimal.NewFromInt(int64(l.MaxSelectionsPerSlip))),
			Actual:  ptr(decimal.NewFromInt(int64(len(legs)))),
		})
	}

	seen := make(map[uuid.UUID]bool, len(legs))
	for _, leg := range legs {
		id := leg.EventID
		if seen[id] {
			add(Violation{Rule: RuleDuplicateEvent, Message: "event appears more than once on the slip", EventID: &id})
			continue
		}
		seen[id] = true

		ev, ok := events[id]
		switch {
		case !ok || ev == nil:
			add(Violation{Rule: RuleEventNotFound, Message: "event does not exist", EventID: &id})
		case !ev.AcceptsBets():
			add(Violation{Rule: RuleEventClosed, Message: fmt.Sprintf("event is %s and not open for betting", ev.Status), EventID: &id})
		}

		if leg.Odds.LessThanOrEqual(decimal.NewFromInt(1)) {
			add(Violation{Rule: RuleInvalidOdds, Message: "selection odds must be greater than 1", EventID: &id, Actual: ptr(leg.Odds)})
		} else if l.MaxOddsPerSelection.IsPositive() && leg.Odds.GreaterThan(l.MaxOddsPerSelection) {
			add(Violation{
				Rule:    RuleMaxOddsPerSelection,
				Message: fmt.Sprintf("selection odds %s exceed maximum %s", leg.Odds, l.MaxOddsPerSelection),
				EventID: &id,
				Limit:   ptr(l.MaxOddsPerSelection),
				Actual:  ptr(leg.Odds),
			})
		}
	}

	if !stake.IsPositive() || stake.LessThan(l.MinStake) {
		add(Violation{
			Rule:    RuleMinStake,
			Message: fmt.Sprintf("stake %s is below minimum %s", stake, l.MinStake),
			Limit:   ptr(l.MinStake),
			Actual:  ptr(stake),
		})
	}
	if l.MaxStake.IsPositive() && stake.GreaterThan(l.MaxStake) {
		add(Violation{
			Rule:    RuleMaxStake,
			Message: fmt.Sprintf("stake %s exceeds maximum %s", stake, l.MaxStake),
			Limit:   ptr(l.MaxStake),
			Actual:  ptr(stake),
		})
	}

	if len(legs) > 0 {
		if totalOdds.LessThan(l.MinOdds) {
			add(Violation{
				Rule:    RuleMinOdds,
				Message: fmt.Sprintf("total odds %s are below minimum %s", totalOdds, l.MinOdds),
				Limit:   ptr(l.MinOdds),
				Actual:  ptr(totalOdds),
			})
		}
		if l.MaxOdds.IsPositive() && totalOdds.GreaterThan(l.MaxOdds) {
			add(Violation{
				Rule:    RuleMaxOdds,
				Message: fmt.Sprintf("total odds %s exceed maximum %s", totalOdds, l.MaxOdds),
				Limit:   ptr(l.MaxOdds),
				Actual:  ptr(totalOdds),
			})
		}
	}

	// The ceiling is checked against the unrounded win so that a payout that
	// rounds down to the limit is still rejected.
	var maxAllowed *decimal.Decimal
	if l.MaxWinning.IsPositive() && stake.Mul(totalOdds).GreaterThan(l.MaxWinning) {
		if totalOdds.IsPositive() {
			maxAllowed = ptr(MaxStakeFor(l.MaxWinning, totalOdds))
		}
		msg := fmt.Sprintf("potential win %s exceeds maximum %s", potentialWin, l.MaxWinning)
		if maxAllowed != nil {
			msg += fmt.Sprintf("; reduce stake to %s", maxAllowed.StringFixed(2))
		}
		add(Violation{
			Rule:    RuleMaxWinning,
			Message: msg,
			Limit:   ptr(l.MaxWinning),
			Actual:  ptr(potentialWin),
		})
	}

	return Result{
		Valid:           len(vs) == 0,
		TotalOdds:       totalOdds,
		PotentialWin:    potentialWin,
		Violations:      vs,
		MaxAllowedStake: maxAllowed,
	}
}

// MaxStakeFor is the largest stake, in cents, whose payout at totalOdds stays
// within maxWinning.
func MaxStakeFor(maxWinning, totalOdds decimal.Decimal) decimal.Decimal {
	return maxWinning.Div(totalOdds).Truncate(2)
}

func ptr(d decimal.Decimal) *decimal.Decimal { return &d }
