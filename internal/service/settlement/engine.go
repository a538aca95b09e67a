// Package settlement resolves pending bets against event results and pays
// them out through the ledger.
package settlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/betting-ledger/internal/audit"
	"github.com/josh-kwaku/betting-ledger/internal/domain"
	"github.com/josh-kwaku/betting-ledger/internal/logging"
	"github.com/josh-kwaku/betting-ledger/internal/market"
	"github.com/josh-kwaku/betting-ledger/internal/metrics"
	"github.com/josh-kwaku/betting-ledger/internal/repository"
	"github.com/josh-kwaku/betting-ledger/internal/service/ledger"
)

type betRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Bet, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Bet, error)
	ListPendingIDsByEvent(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error)
	UpdateSelection(ctx context.Context, tx *sql.Tx, s *domain.Selection) error
	UpdateSettlement(ctx context.Context, tx *sql.Tx, b *domain.Bet) error
	StatsByStatus(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]repository.StatusTotal, error)
	PendingByEvent(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]repository.PendingEventExposure, int, error)
}

type eventRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	MarkFinished(ctx context.Context, id uuid.UUID, score domain.Score, at time.Time) (bool, error)
	MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

type payer interface {
	BetWinning(ctx context.Context, tx *sql.Tx, req ledger.BetMoneyRequest) (*domain.LedgerEntry, error)
	BetRefund(ctx context.Context, tx *sql.Tx, req ledger.BetMoneyRequest) (*domain.LedgerEntry, error)
	Committed(ctx context.Context, entry *domain.LedgerEntry)
}

type Engine struct {
	db      *sql.DB
	bets    betRepo
	events  eventRepo
	ledger  payer
	audit   audit.Sink
	metrics *metrics.Metrics
}

func NewEngine(db *sql.DB, bets betRepo, events eventRepo, l payer, sink audit.Sink, m *metrics.Metrics) *Engine {
	return &Engine{
		db:      db,
		bets:    bets,
		events:  events,
		ledger:  l,
		audit:   sink,
		metrics: m,
	}
}

// EventSettlementSummary describes one settlement run over an event. Stake and
// payout totals only include bets that reached a terminal status in the run.
type EventSettlementSummary struct {
	EventID      uuid.UUID
	BetsFound    int
	BetsSettled  int
	BetsPending  int
	BetsFailed   int
	Won          int
	Lost         int
	Void         int
	TotalStaked  decimal.Decimal
	TotalPaidOut decimal.Decimal
	GGR          decimal.Decimal
}

func (s *EventSettlementSummary) add(b *domain.Bet, r Resolution) {
	s.BetsSettled++
	s.TotalStaked = s.TotalStaked.Add(b.Stake)
	s.TotalPaidOut = s.TotalPaidOut.Add(r.Payout)
	s.GGR = s.TotalStaked.Sub(s.TotalPaidOut)
	switch r.Status {
	case domain.BetStatusWon:
		s.Won++
	case domain.BetStatusLost:
		s.Lost++
	case domain.BetStatusVoid:
		s.Void++
	}
}

func (s *EventSettlementSummary) auditDetails() map[string]any {
	return map[string]any{
		"bets_found":     s.BetsFound,
		"bets_settled":   s.BetsSettled,
		"bets_pending":   s.BetsPending,
		"bets_failed":    s.BetsFailed,
		"total_staked":   s.TotalStaked.String(),
		"total_paid_out": s.TotalPaidOut.String(),
		"ggr":            s.GGR.String(),
	}
}

// legRule decides the new status of a pending leg on the event being settled.
// Returning SelectionPending leaves the leg untouched.
type legRule func(sel *domain.Selection) domain.SelectionStatus

// SetEventResult records the final score and settles every pending bet with a
// leg on the event. Only the first caller for an event gets past the status
// flip; later callers get ErrAlreadySettled.
func (e *Engine) SetEventResult(ctx context.Context, eventID uuid.UUID, score domain.Score, settledBy uuid.UUID) (*EventSettlementSummary, error) {
	if score.Home < 0 || score.Away < 0 {
		return nil, fmt.Errorf("SetEventResult: negative score: %w", domain.ErrInvalidRequest)
	}

	start := time.Now()
	ok, err := e.events.MarkFinished(ctx, eventID, score, start.UTC())
	if err != nil {
		return nil, fmt.Errorf("SetEventResult: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("SetEventResult: %w", e.explainClosed(ctx, eventID))
	}

	ev, err := e.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("SetEventResult: %w", err)
	}

	summary := e.settleEvent(ctx, ev, settledBy, resultRule(ev.ID, score))
	e.finishRun(ctx, "result", ev, settledBy, audit.ActionEventResulted, summary, start, map[string]any{
		"home_score": score.Home,
		"away_score": score.Away,
	})
	return summary, nil
}

// CancelEvent closes an event that will not be played and voids every pending
// leg on it. Bets whose other legs are decided settle immediately.
func (e *Engine) CancelEvent(ctx context.Context, eventID, cancelledBy uuid.UUID, reason string) (*EventSettlementSummary, error) {
	if reason == "" {
		return nil, fmt.Errorf("CancelEvent: reason required: %w", domain.ErrInvalidRequest)
	}

	start := time.Now()
	ok, err := e.events.MarkCancelled(ctx, eventID, start.UTC())
	if err != nil {
		return nil, fmt.Errorf("CancelEvent: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("CancelEvent: %w", e.explainClosed(ctx, eventID))
	}

	ev, err := e.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("CancelEvent: %w", err)
	}

	summary := e.settleEvent(ctx, ev, cancelledBy, voidRule(ev.ID))
	e.finishRun(ctx, "cancel", ev, cancelledBy, audit.ActionEventCancelled, summary, start, map[string]any{
		"reason": reason,
	})
	return summary, nil
}

// RetryEventSettlement walks the pending bets of a closed event again. It is
// the recovery path for bets whose settlement transaction failed.
func (e *Engine) RetryEventSettlement(ctx context.Context, eventID, actor uuid.UUID) (*EventSettlementSummary, error) {
	ev, err := e.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("RetryEventSettlement: %w", err)
	}

	var rule legRule
	switch ev.Status {
	case domain.EventStatusFinished:
		if ev.HomeScore == nil || ev.AwayScore == nil {
			return nil, fmt.Errorf("RetryEventSettlement: finished event without score: %w", domain.ErrInvalidRequest)
		}
		rule = resultRule(ev.ID, domain.Score{Home: *ev.HomeScore, Away: *ev.AwayScore})
	case domain.EventStatusCancelled:
		rule = voidRule(ev.ID)
	default:
		return nil, fmt.Errorf("RetryEventSettlement: event is %s: %w", ev.Status, domain.ErrInvalidRequest)
	}

	start := time.Now()
	summary := e.settleEvent(ctx, ev, actor, rule)
	e.finishRun(ctx, "retry", ev, actor, audit.ActionEventRetried, summary, start, nil)
	return summary, nil
}

func (e *Engine) explainClosed(ctx context.Context, eventID uuid.UUID) error {
	ev, err := e.events.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if ev.Status == domain.EventStatusFinished {
		return domain.ErrAlreadySettled
	}
	return domain.ErrEventClosed
}

func resultRule(eventID uuid.UUID, score domain.Score) legRule {
	return func(sel *domain.Selection) domain.SelectionStatus {
		if sel.EventID != eventID {
			return domain.SelectionPending
		}
		return market.Evaluate(sel.Market, score).SelectionStatus()
	}
}

func voidRule(eventID uuid.UUID) legRule {
	return func(sel *domain.Selection) domain.SelectionStatus {
		if sel.EventID != eventID {
			return domain.SelectionPending
		}
		return domain.SelectionVoid
	}
}

// settleEvent settles each bet in its own transaction. A failing bet is logged
// and counted; it stays pending for RetryEventSettlement.
func (e *Engine) settleEvent(ctx context.Context, ev *domain.Event, actor uuid.UUID, rule legRule) *EventSettlementSummary {
	log := logging.FromContext(ctx)
	summary := &EventSettlementSummary{
		EventID:      ev.ID,
		TotalStaked:  decimal.Zero,
		TotalPaidOut: decimal.Zero,
		GGR:          decimal.Zero,
	}

	ids, err := e.bets.ListPendingIDsByEvent(ctx, ev.ID)
	if err != nil {
		log.Error("list pending bets failed", "event_id", ev.ID, "error", err)
		summary.BetsFailed++
		return summary
	}
	summary.BetsFound = len(ids)

	for _, id := range ids {
		b, res, settled, err := e.settleBet(ctx, id, ev, actor, rule)
		switch {
		case errors.Is(err, domain.ErrBetNotPending):
			// settled concurrently by another run or a manual override
		case err != nil:
			summary.BetsFailed++
			e.metrics.BetSettleFailures.Inc()
			log.Error("bet settlement failed", "bet_id", id, "event_id", ev.ID, "error", err)
		case settled:
			summary.add(b, res)
		default:
			summary.BetsPending++
		}
	}
	return summary
}

func (e *Engine) settleBet(ctx context.Context, betID uuid.UUID, ev *domain.Event, actor uuid.UUID, rule legRule) (*domain.Bet, Resolution, bool, error) {
	var (
		bet     *domain.Bet
		res     Resolution
		settled bool
		entry   *domain.LedgerEntry
	)
	err := repository.InTx(ctx, e.db, nil, func(tx *sql.Tx) error {
		var err error
		bet, err = e.bets.GetForUpdate(ctx, tx, betID)
		if err != nil {
			return err
		}
		if bet.Status != domain.BetStatusPending {
			return domain.ErrBetNotPending
		}

		now := time.Now().UTC()
		for i := range bet.Selections {
			sel := &bet.Selections[i]
			if sel.IsTerminal() {
				continue
			}
			status := rule(sel)
			if status == domain.SelectionPending {
				continue
			}
			sel.Status = status
			sel.ResultHome, sel.ResultAway = ev.HomeScore, ev.AwayScore
			sel.SettledAt = &now
			if err := e.bets.UpdateSelection(ctx, tx, sel); err != nil {
				return err
			}
		}

		var done bool
		res, done = ResolveOutcome(bet)
		if !done {
			return nil
		}
		entry, err = e.finalize(ctx, tx, bet, res, domain.SettledByAuto, nil, actor, now)
		if err != nil {
			return err
		}
		settled = true
		return nil
	})
	if err != nil {
		return nil, Resolution{}, false, fmt.Errorf("settleBet: %w", err)
	}

	if settled {
		e.afterSettle(ctx, bet, res, entry, actor, audit.ActionBetSettled)
	}
	return bet, res, settled, nil
}

// finalize writes the bet's terminal state and, when there is a payout, the
// ledger credit in the same transaction.
func (e *Engine) finalize(ctx context.Context, tx *sql.Tx, bet *domain.Bet, res Resolution, by domain.SettledBy, reason *string, actor uuid.UUID, now time.Time) (*domain.LedgerEntry, error) {
	var entry *domain.LedgerEntry
	if res.Payout.IsPositive() {
		req := ledger.BetMoneyRequest{
			TenantID:       bet.TenantID,
			BetID:          bet.ID,
			PlayerWalletID: bet.WalletID,
			Amount:         res.Payout,
			Currency:       bet.Currency,
			CreatedBy:      actor,
			Metadata: map[string]any{
				"odds":       res.Odds.String(),
				"settled_by": string(by),
			},
		}
		var err error
		if res.Status == domain.BetStatusVoid {
			entry, err = e.ledger.BetRefund(ctx, tx, req)
		} else {
			entry, err = e.ledger.BetWinning(ctx, tx, req)
		}
		if err != nil {
			return nil, err
		}
		bet.SettlementEntryID = &entry.ID
	}

	payout := res.Payout
	bet.Status = res.Status
	bet.ActualWin = &payout
	bet.SettledAt = &now
	bet.SettledBy = &by
	bet.SettlementReason = reason
	bet.UpdatedAt = now
	if err := e.bets.UpdateSettlement(ctx, tx, bet); err != nil {
		return nil, err
	}
	return entry, nil
}

func (e *Engine) afterSettle(ctx context.Context, bet *domain.Bet, res Resolution, entry *domain.LedgerEntry, actor uuid.UUID, action string) {
	if entry != nil {
		e.ledger.Committed(ctx, entry)
		e.metrics.SettlementPayout.WithLabelValues(string(bet.Currency)).Add(metrics.Amount(res.Payout))
	}
	e.metrics.BetsSettled.WithLabelValues(string(res.Status), string(*bet.SettledBy)).Inc()

	details := map[string]any{
		"status": string(res.Status),
		"payout": res.Payout.String(),
		"odds":   res.Odds.String(),
		"stake":  bet.Stake.String(),
	}
	if entry != nil {
		details["entry_id"] = entry.ID.String()
	}
	if bet.SettlementReason != nil {
		details["reason"] = *bet.SettlementReason
	}
	e.audit.Log(ctx, domain.Audit{
		Action:      action,
		PerformedBy: actor,
		TenantID:    bet.TenantID,
		TargetType:  "bet",
		TargetID:    bet.ID,
		Details:     details,
	})

	logging.FromContext(ctx).Info("bet settled",
		"bet_id", bet.ID,
		"status", res.Status,
		"payout", res.Payout,
		"settled_by", *bet.SettledBy,
	)
}

func (e *Engine) finishRun(ctx context.Context, kind string, ev *domain.Event, actor uuid.UUID, action string, s *EventSettlementSummary, start time.Time, extra map[string]any) {
	result := "ok"
	if s.BetsFailed > 0 {
		result = "partial"
	}
	e.metrics.SettlementRuns.WithLabelValues(kind, result).Inc()
	e.metrics.SettlementDuration.Observe(time.Since(start).Seconds())

	details := s.auditDetails()
	for k, v := range extra {
		details[k] = v
	}
	e.audit.Log(ctx, domain.Audit{
		Action:      action,
		PerformedBy: actor,
		TenantID:    ev.TenantID,
		TargetType:  "event",
		TargetID:    ev.ID,
		Details:     details,
	})

	logging.FromContext(ctx).Info("event settlement run finished",
		"event_id", ev.ID,
		"kind", kind,
		"bets_found", s.BetsFound,
		"bets_settled", s.BetsSettled,
		"bets_failed", s.BetsFailed,
		"ggr", s.GGR,
	)
}
