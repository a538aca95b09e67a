package settlement

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/betting-ledger/internal/audit"
	"github.com/josh-kwaku/betting-ledger/internal/domain"
	"github.com/josh-kwaku/betting-ledger/internal/repository"
)

type ManualSettleRequest struct {
	BetID     uuid.UUID
	Outcome   domain.BetStatus
	SettledBy uuid.UUID
	Reason    string
}

// ManualSettleBet forces a pending bet to the given outcome. Every leg takes
// the outcome and the evaluator is not consulted.
func (e *Engine) ManualSettleBet(ctx context.Context, req ManualSettleRequest) (*domain.Bet, error) {
	if req.Reason == "" {
		return nil, fmt.Errorf("ManualSettleBet: reason required: %w", domain.ErrInvalidRequest)
	}

	var (
		bet   *domain.Bet
		res   Resolution
		entry *domain.LedgerEntry
	)
	err := repository.InTx(ctx, e.db, nil, func(tx *sql.Tx) error {
		var err error
		bet, err = e.bets.GetForUpdate(ctx, tx, req.BetID)
		if err != nil {
			return err
		}
		if bet.Status != domain.BetStatusPending {
			return domain.ErrBetNotPending
		}

		res, err = ManualResolution(bet, req.Outcome)
		if err != nil {
			return fmt.Errorf("outcome %q: %w", req.Outcome, err)
		}

		now := time.Now().UTC()
		legStatus := selectionStatusFor(res.Status)
		for i := range bet.Selections {
			sel := &bet.Selections[i]
			sel.Status = legStatus
			sel.SettledAt = &now
			if err := e.bets.UpdateSelection(ctx, tx, sel); err != nil {
				return err
			}
		}

		reason := req.Reason
		entry, err = e.finalize(ctx, tx, bet, res, domain.SettledByManual, &reason, req.SettledBy, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ManualSettleBet: %w", err)
	}

	e.afterSettle(ctx, bet, res, entry, req.SettledBy, audit.ActionBetManuallySettled)
	return bet, nil
}

func (e *Engine) GetBet(ctx context.Context, id uuid.UUID) (*domain.Bet, error) {
	b, err := e.bets.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetBet: %w", err)
	}
	return b, nil
}

func (e *Engine) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	ev, err := e.events.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetEvent: %w", err)
	}
	return ev, nil
}
