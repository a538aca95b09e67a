// Package betslip accepts bet slips: limit checks first, then the bet row and
// its stake debit in one transaction.
package betslip

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/betting-ledger/internal/domain"
	"github.com/josh-kwaku/betting-ledger/internal/limits"
	"github.com/josh-kwaku/betting-ledger/internal/logging"
	"github.com/josh-kwaku/betting-ledger/internal/market"
	"github.com/josh-kwaku/betting-ledger/internal/metrics"
	"github.com/josh-kwaku/betting-ledger/internal/repository"
	"github.com/josh-kwaku/betting-ledger/internal/service/ledger"
)

type eventRepo interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Event, error)
	GetForBetting(ctx context.Context, tx *sql.Tx, ids []uuid.UUID) (map[uuid.UUID]*domain.Event, error)
}

type walletRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
}

type betRepo interface {
	Create(ctx context.Context, tx *sql.Tx, b *domain.Bet) error
}

type stakeTaker interface {
	BetPlacement(ctx context.Context, tx *sql.Tx, req ledger.BetMoneyRequest) (*domain.LedgerEntry, error)
	Committed(ctx context.Context, entry *domain.LedgerEntry)
}

type Service struct {
	db      *sql.DB
	events  eventRepo
	wallets walletRepo
	bets    betRepo
	limits  limits.Store
	ledger  stakeTaker
	metrics *metrics.Metrics
}

func NewService(db *sql.DB, events eventRepo, wallets walletRepo, bets betRepo, store limits.Store, l stakeTaker, m *metrics.Metrics) *Service {
	return &Service{
		db:      db,
		events:  events,
		wallets: wallets,
		bets:    bets,
		limits:  store,
		ledger:  l,
		metrics: m,
	}
}

type SelectionInput struct {
	EventID       uuid.UUID
	MarketName    string
	SelectionName string
	Odds          decimal.Decimal
}

type PlaceBetRequest struct {
	TenantID   uuid.UUID
	UserID     uuid.UUID
	WalletID   uuid.UUID
	Stake      decimal.Decimal
	Selections []SelectionInput
}

// ValidateSlip runs the limit checks without touching any state.
func (s *Service) ValidateSlip(ctx context.Context, tenantID uuid.UUID, stake decimal.Decimal, sels []SelectionInput) (limits.Result, error) {
	res, _, err := s.check(ctx, tenantID, stake, sels)
	if err != nil {
		return limits.Result{}, fmt.Errorf("ValidateSlip: %w", err)
	}
	return res, nil
}

func (s *Service) check(ctx context.Context, tenantID uuid.UUID, stake decimal.Decimal, sels []SelectionInput) (limits.Result, map[uuid.UUID]*domain.Event, error) {
	if !stake.IsPositive() || !stake.Equal(stake.Round(2)) {
		return limits.Result{}, nil, domain.ErrInvalidAmount
	}

	ids := make([]uuid.UUID, len(sels))
	legs := make([]limits.Leg, len(sels))
	for i, sel := range sels {
		ids[i] = sel.EventID
		legs[i] = limits.Leg{EventID: sel.EventID, Odds: sel.Odds}
	}

	events, err := s.events.GetByIDs(ctx, ids)
	if err != nil {
		return limits.Result{}, nil, err
	}
	// Events from another tenant are treated as unknown.
	for id, ev := range events {
		if ev.TenantID != tenantID {
			delete(events, id)
		}
	}

	l, err := s.limits.Get(ctx, tenantID)
	if err != nil {
		return limits.Result{}, nil, err
	}
	return limits.Validate(stake, legs, events, l), events, nil
}

// PlaceBet validates the slip, then writes the stake debit and the bet in one
// transaction. A rejected slip returns a *limits.ValidationError.
func (s *Service) PlaceBet(ctx context.Context, req PlaceBetRequest) (*domain.Bet, error) {
	res, events, err := s.check(ctx, req.TenantID, req.Stake, req.Selections)
	if err != nil {
		return nil, fmt.Errorf("PlaceBet: %w", err)
	}
	if !res.Valid {
		s.metrics.BetsRejected.WithLabelValues(string(res.Violations[0].Rule)).Inc()
		logging.FromContext(ctx).Info("bet slip rejected",
			"user_id", req.UserID,
			"rule", res.Violations[0].Rule,
			"violations", len(res.Violations),
		)
		return nil, fmt.Errorf("PlaceBet: %w", res.Err())
	}

	wallet, err := s.wallets.GetByID(ctx, req.WalletID)
	if err != nil {
		return nil, fmt.Errorf("PlaceBet: %w", err)
	}
	if wallet.OwnerID != req.UserID || wallet.TenantID != req.TenantID || wallet.OwnerKind != domain.AccountKindPlayer {
		return nil, fmt.Errorf("PlaceBet: wallet %s does not belong to the player: %w", wallet.ID, domain.ErrInvalidAccount)
	}

	bet := newBet(req, wallet.Currency, res, events)

	var entry *domain.LedgerEntry
	err = repository.InTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		locked, err := s.events.GetForBetting(ctx, tx, eventIDs(req.Selections))
		if err != nil {
			return err
		}
		if closed := closedLegs(req.Selections, locked); len(closed) > 0 {
			res.Valid = false
			res.Violations = closed
			return res.Err()
		}

		entry, err = s.ledger.BetPlacement(ctx, tx, ledger.BetMoneyRequest{
			TenantID:       req.TenantID,
			BetID:          bet.ID,
			PlayerWalletID: wallet.ID,
			Amount:         bet.Stake,
			Currency:       bet.Currency,
			CreatedBy:      req.UserID,
			Metadata: map[string]any{
				"total_odds":    bet.TotalOdds.String(),
				"potential_win": bet.PotentialWin.String(),
			},
		})
		if err != nil {
			return err
		}
		bet.PlacementEntryID = &entry.ID
		return s.bets.Create(ctx, tx, bet)
	})
	if err != nil {
		var verr *limits.ValidationError
		switch {
		case errors.Is(err, domain.ErrInsufficientFunds):
			s.metrics.BetsRejected.WithLabelValues("insufficient_funds").Inc()
		case errors.As(err, &verr):
			s.metrics.BetsRejected.WithLabelValues(string(limits.RuleEventClosed)).Inc()
			logging.FromContext(ctx).Info("bet slip rejected at placement",
				"user_id", req.UserID,
				"rule", limits.RuleEventClosed,
			)
		}
		return nil, fmt.Errorf("PlaceBet: %w", err)
	}

	s.ledger.Committed(ctx, entry)
	s.metrics.BetsPlaced.WithLabelValues(string(bet.Type), string(bet.Currency)).Inc()
	logging.FromContext(ctx).Info("bet placed",
		"bet_id", bet.ID,
		"user_id", bet.UserID,
		"stake", bet.Stake,
		"total_odds", bet.TotalOdds,
		"potential_win", bet.PotentialWin,
		"selections", len(bet.Selections),
	)
	return bet, nil
}

func eventIDs(sels []SelectionInput) []uuid.UUID {
	ids := make([]uuid.UUID, len(sels))
	for i, sel := range sels {
		ids[i] = sel.EventID
	}
	return ids
}

// closedLegs re-checks the legs against event rows read inside the placement
// transaction. An event can close between the limit check and the commit.
func closedLegs(sels []SelectionInput, events map[uuid.UUID]*domain.Event) []limits.Violation {
	var vs []limits.Violation
	for _, sel := range sels {
		id := sel.EventID
		ev, ok := events[id]
		if ok && ev.AcceptsBets() {
			continue
		}
		vs = append(vs, limits.Violation{
			Rule:    limits.RuleEventClosed,
			Message: "event closed while the bet was being placed",
			EventID: &id,
		})
	}
	return vs
}

func newBet(req PlaceBetRequest, currency domain.Currency, res limits.Result, events map[uuid.UUID]*domain.Event) *domain.Bet {
	now := time.Now().UTC()
	bet := &domain.Bet{
		ID:           uuid.New(),
		UserID:       req.UserID,
		TenantID:     req.TenantID,
		WalletID:     req.WalletID,
		Type:         domain.BetTypeSingle,
		Stake:        req.Stake,
		Currency:     currency,
		TotalOdds:    res.TotalOdds,
		PotentialWin: res.PotentialWin,
		Status:       domain.BetStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if len(req.Selections) > 1 {
		bet.Type = domain.BetTypeMultiple
	}

	for _, in := range req.Selections {
		ev := events[in.EventID]
		bet.Selections = append(bet.Selections, domain.Selection{
			ID:            uuid.New(),
			BetID:         bet.ID,
			EventID:       in.EventID,
			MarketName:    in.MarketName,
			SelectionName: in.SelectionName,
			Market:        market.Parse(in.MarketName, in.SelectionName, market.Teams{Home: ev.HomeTeam, Away: ev.AwayTeam}),
			Odds:          in.Odds,
			Status:        domain.SelectionPending,
		})
	}
	return bet
}
