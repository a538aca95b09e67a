package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/betting-ledger/internal/domain"
)

const betColumns = `id, user_id, tenant_id, wallet_id, bet_type, stake, currency, total_odds,
	potential_win, status, actual_win, settled_at, settled_by, settlement_reason,
	placement_entry_id, settlement_entry_id, created_at, updated_at`

const selectionColumns = `id, bet_id, event_id, market_name, selection_name,
	market_family, pick, market_line, odds, status, result_home, result_away, settled_at`

// StatusTotal is one row of the settlement stats aggregate.
type StatusTotal struct {
	Status    domain.BetStatus
	Count     int64
	Stake     decimal.Decimal
	ActualWin decimal.Decimal
}

// PendingEventExposure is an event that still has unsettled legs.
type PendingEventExposure struct {
	Event           domain.Event
	PendingBets     int64
	TotalStake      decimal.Decimal
	PotentialPayout decimal.Decimal
}

type BetRepository struct {
	db *sql.DB
}

func NewBetRepository(db *sql.DB) *BetRepository {
	return &BetRepository{db: db}
}

// Create inserts the bet row and all of its selections.
func (r *BetRepository) Create(ctx context.Context, tx *sql.Tx, b *domain.Bet) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO bets (`+betColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		b.ID, b.UserID, b.TenantID, b.WalletID, b.Type, b.Stake, b.Currency, b.TotalOdds,
		b.PotentialWin, b.Status, b.ActualWin, b.SettledAt, b.SettledBy, b.SettlementReason,
		b.PlacementEntryID, b.SettlementEntryID, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: bet: %w", err)
	}

	for i := range b.Selections {
		s := &b.Selections[i]
		_, err := tx.ExecContext(ctx,
			`INSERT INTO bet_selections (`+selectionColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			s.ID, s.BetID, s.EventID, s.MarketName, s.SelectionName,
			s.Market.Family, s.Market.Pick, s.Market.Line, s.Odds, s.Status,
			s.ResultHome, s.ResultAway, s.SettledAt,
		)
		if err != nil {
			return fmt.Errorf("Create: selection %d: %w", i, err)
		}
	}
	return nil
}

func (r *BetRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Bet, error) {
	b, err := scanBet(r.db.QueryRowContext(ctx,
		`SELECT `+betColumns+` FROM bets WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrBetNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}

	if b.Selections, err = listSelections(ctx, r.db, id, false); err != nil {
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return b, nil
}

// GetForUpdate locks the bet row and its selections for the rest of tx.
func (r *BetRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Bet, error) {
	b, err := scanBet(tx.QueryRowContext(ctx,
		`SELECT `+betColumns+` FROM bets WHERE id = $1 FOR UPDATE`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrBetNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}

	if b.Selections, err = listSelections(ctx, tx, id, true); err != nil {
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return b, nil
}

// ListPendingIDsByEvent returns pending bets holding a still-pending leg on the event.
func (r *BetRepository) ListPendingIDsByEvent(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT b.id FROM bets b
		JOIN bet_selections s ON s.bet_id = b.id
		WHERE s.event_id = $1 AND s.status = $2 AND b.status = $3
		ORDER BY b.id`,
		eventID, domain.SelectionPending, domain.BetStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("ListPendingIDsByEvent: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ListPendingIDsByEvent: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListPendingIDsByEvent: rows: %w", err)
	}
	return ids, nil
}

func (r *BetRepository) UpdateSelection(ctx context.Context, tx *sql.Tx, s *domain.Selection) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE bet_selections
		SET status = $1, result_home = $2, result_away = $3, settled_at = $4
		WHERE id = $5`,
		s.Status, s.ResultHome, s.ResultAway, s.SettledAt, s.ID,
	)
	if err != nil {
		return fmt.Errorf("UpdateSelection: %w", err)
	}
	return nil
}

// UpdateSettlement writes the terminal state of a bet that is still pending.
func (r *BetRepository) UpdateSettlement(ctx context.Context, tx *sql.Tx, b *domain.Bet) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE bets
		SET status = $1, actual_win = $2, settled_at = $3, settled_by = $4,
			settlement_reason = $5, settlement_entry_id = $6, updated_at = $7
		WHERE id = $8 AND status = $9`,
		b.Status, b.ActualWin, b.SettledAt, b.SettledBy,
		b.SettlementReason, b.SettlementEntryID, b.UpdatedAt,
		b.ID, domain.BetStatusPending,
	)
	if err != nil {
		return fmt.Errorf("UpdateSettlement: %w", err)
	}
	return expectOneRow(res, "UpdateSettlement", domain.ErrBetNotPending)
}

// StatsByStatus groups bets placed in [from, to) by status.
func (r *BetRepository) StatsByStatus(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]StatusTotal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*), COALESCE(SUM(stake), 0), COALESCE(SUM(actual_win), 0)
		FROM bets
		WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3
		GROUP BY status`,
		tenantID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("StatsByStatus: %w", err)
	}
	defer rows.Close()

	var totals []StatusTotal
	for rows.Next() {
		var t StatusTotal
		if err := rows.Scan(&t.Status, &t.Count, &t.Stake, &t.ActualWin); err != nil {
			return nil, fmt.Errorf("StatsByStatus: scan: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("StatsByStatus: rows: %w", err)
	}
	return totals, nil
}

// PendingByEvent lists events that still have pending legs on pending bets,
// earliest kick-off first.
func (r *BetRepository) PendingByEvent(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]PendingEventExposure, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT e.id) FROM events e
		JOIN bet_selections s ON s.event_id = e.id AND s.status = $2
		JOIN bets b ON b.id = s.bet_id AND b.status = $3
		WHERE e.tenant_id = $1`,
		tenantID, domain.SelectionPending, domain.BetStatusPending,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("PendingByEvent: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT e.id, e.tenant_id, e.home_team, e.away_team, e.home_score, e.away_score,
			e.status, e.is_betting_open, e.starts_at, e.finished_at, e.created_at,
			COUNT(p.bet_id), COALESCE(SUM(p.stake), 0), COALESCE(SUM(p.potential_win), 0)
		FROM events e
		JOIN (
			SELECT DISTINCT s.event_id, b.id AS bet_id, b.stake, b.potential_win
			FROM bet_selections s
			JOIN bets b ON b.id = s.bet_id AND b.status = $3
			WHERE s.status = $2
		) p ON p.event_id = e.id
		WHERE e.tenant_id = $1
		GROUP BY e.id
		ORDER BY e.starts_at, e.id
		LIMIT $4 OFFSET $5`,
		tenantID, domain.SelectionPending, domain.BetStatusPending, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("PendingByEvent: %w", err)
	}
	defer rows.Close()

	var out []PendingEventExposure
	for rows.Next() {
		var (
			p          PendingEventExposure
			home, away sql.NullInt64
		)
		err := rows.Scan(
			&p.Event.ID, &p.Event.TenantID, &p.Event.HomeTeam, &p.Event.AwayTeam, &home, &away,
			&p.Event.Status, &p.Event.IsBettingOpen, &p.Event.StartsAt, &p.Event.FinishedAt, &p.Event.CreatedAt,
			&p.PendingBets, &p.TotalStake, &p.PotentialPayout,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("PendingByEvent: scan: %w", err)
		}
		p.Event.HomeScore = intPtr(home)
		p.Event.AwayScore = intPtr(away)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("PendingByEvent: rows: %w", err)
	}
	return out, total, nil
}

func listSelections(ctx context.Context, q Querier, betID uuid.UUID, forUpdate bool) ([]domain.Selection, error) {
	query := `SELECT ` + selectionColumns + ` FROM bet_selections WHERE bet_id = $1 ORDER BY id`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	rows, err := q.QueryContext(ctx, query, betID)
	if err != nil {
		return nil, fmt.Errorf("listSelections: %w", err)
	}
	defer rows.Close()

	var sels []domain.Selection
	for rows.Next() {
		s, err := scanSelection(rows)
		if err != nil {
			return nil, fmt.Errorf("listSelections: scan: %w", err)
		}
		sels = append(sels, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listSelections: rows: %w", err)
	}
	return sels, nil
}

func scanBet(s scanner) (*domain.Bet, error) {
	var b domain.Bet
	err := s.Scan(
		&b.ID, &b.UserID, &b.TenantID, &b.WalletID, &b.Type, &b.Stake, &b.Currency, &b.TotalOdds,
		&b.PotentialWin, &b.Status, &b.ActualWin, &b.SettledAt, &b.SettledBy, &b.SettlementReason,
		&b.PlacementEntryID, &b.SettlementEntryID, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func scanSelection(s scanner) (*domain.Selection, error) {
	var (
		sel        domain.Selection
		home, away sql.NullInt64
	)
	err := s.Scan(
		&sel.ID, &sel.BetID, &sel.EventID, &sel.MarketName, &sel.SelectionName,
		&sel.Market.Family, &sel.Market.Pick, &sel.Market.Line, &sel.Odds, &sel.Status,
		&home, &away, &sel.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	sel.ResultHome = intPtr(home)
	sel.ResultAway = intPtr(away)
	return &sel, nil
}
