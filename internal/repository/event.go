package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/josh-kwaku/betting-ledger/internal/domain"
)

const eventColumns = `id, tenant_id, home_team, away_team, home_score, away_score,
	status, is_betting_open, starts_at, finished_at, created_at`

type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Create(ctx context.Context, e *domain.Event) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (id, tenant_id, home_team, away_team, home_score, away_score,
			status, is_betting_open, starts_at, finished_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.TenantID, e.HomeTeam, e.AwayTeam, e.HomeScore, e.AwayScore,
		e.Status, e.IsBettingOpen, e.StartsAt, e.FinishedAt, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *EventRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id,
	)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrEventNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return e, nil
}

// GetByIDs returns the events that exist; missing ids are simply absent.
func (r *EventRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Event, error) {
	out := make(map[uuid.UUID]*domain.Event, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ANY($1::uuid[])`, pq.Array(strs),
	)
	if err != nil {
		return nil, fmt.Errorf("GetByIDs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("GetByIDs: scan: %w", err)
		}
		out[e.ID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByIDs: rows: %w", err)
	}
	return out, nil
}

// GetForBetting reads events inside a placement transaction under FOR SHARE.
// MarkFinished and MarkCancelled wait for the placement to commit, so a
// settlement run that follows them sees the new bet.
func (r *EventRepository) GetForBetting(ctx context.Context, tx *sql.Tx, ids []uuid.UUID) (map[uuid.UUID]*domain.Event, error) {
	out := make(map[uuid.UUID]*domain.Event, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ANY($1::uuid[]) ORDER BY id FOR SHARE`, pq.Array(strs),
	)
	if err != nil {
		return nil, fmt.Errorf("GetForBetting: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("GetForBetting: scan: %w", err)
		}
		out[e.ID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetForBetting: rows: %w", err)
	}
	return out, nil
}

// MarkFinished records the final score and closes betting, but only if the
// event is neither finished nor cancelled. It returns false when another
// caller got there first; the caller decides whether that means not found.
func (r *EventRepository) MarkFinished(ctx context.Context, id uuid.UUID, score domain.Score, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE events
		SET home_score = $1, away_score = $2, status = $3, is_betting_open = false, finished_at = $4
		WHERE id = $5 AND status NOT IN ($3, $6)`,
		score.Home, score.Away, domain.EventStatusFinished, at, id, domain.EventStatusCancelled,
	)
	if err != nil {
		return false, fmt.Errorf("MarkFinished: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("MarkFinished: rows affected: %w", err)
	}
	return n == 1, nil
}

// MarkCancelled closes an event that has not finished yet.
func (r *EventRepository) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE events
		SET status = $1, is_betting_open = false, finished_at = $2
		WHERE id = $3 AND status NOT IN ($1, $4)`,
		domain.EventStatusCancelled, at, id, domain.EventStatusFinished,
	)
	if err != nil {
		return false, fmt.Errorf("MarkCancelled: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("MarkCancelled: rows affected: %w", err)
	}
	return n == 1, nil
}

func scanEvent(s scanner) (*domain.Event, error) {
	var (
		e          domain.Event
		home, away sql.NullInt64
	)
	err := s.Scan(
		&e.ID, &e.TenantID, &e.HomeTeam, &e.AwayTeam, &home, &away,
		&e.Status, &e.IsBettingOpen, &e.StartsAt, &e.FinishedAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.HomeScore = intPtr(home)
	e.AwayScore = intPtr(away)
	return &e, nil
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
