package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/betting-ledger/internal/domain"
	"github.com/josh-kwaku/betting-ledger/internal/repository"
)

const (
	defaultPendingLimit = 50
	maxPendingLimit     = 500
)

type StatusStat struct {
	Status    domain.BetStatus
	Count     int64
	Stake     decimal.Decimal
	ActualWin decimal.Decimal
}

// SettlementStats covers bets placed in [From, To). Staked and paid-out totals
// only count settled bets so that GGR is not skewed by open exposure.
type SettlementStats struct {
	TenantID     uuid.UUID
	From         time.Time
	To           time.Time
	ByStatus     []StatusStat
	TotalBets    int64
	SettledBets  int64
	PendingBets  int64
	PendingStake decimal.Decimal
	TotalStaked  decimal.Decimal
	TotalPaidOut decimal.Decimal
	GGR          decimal.Decimal
}

func (e *Engine) GetSettlementStats(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*SettlementStats, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("GetSettlementStats: empty range: %w", domain.ErrInvalidRequest)
	}
	totals, err := e.bets.StatsByStatus(ctx, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("GetSettlementStats: %w", err)
	}

	s := SummarizeStats(totals)
	s.TenantID, s.From, s.To = tenantID, from, to
	return &s, nil
}

func SummarizeStats(totals []repository.StatusTotal) SettlementStats {
	s := SettlementStats{
		PendingStake: decimal.Zero,
		TotalStaked:  decimal.Zero,
		TotalPaidOut: decimal.Zero,
		GGR:          decimal.Zero,
	}
	for _, t := range totals {
		s.ByStatus = append(s.ByStatus, StatusStat(t))
		s.TotalBets += t.Count
		if !t.Status.IsTerminal() {
			s.PendingBets += t.Count
			s.PendingStake = s.PendingStake.Add(t.Stake)
			continue
		}
		s.SettledBets += t.Count
		s.TotalStaked = s.TotalStaked.Add(t.Stake)
		s.TotalPaidOut = s.TotalPaidOut.Add(t.ActualWin)
	}
	s.GGR = s.TotalStaked.Sub(s.TotalPaidOut)
	return s
}

type PendingSettlements struct {
	Events []repository.PendingEventExposure
	Total  int
	Limit  int
	Offset int
}

// GetPendingSettlements lists events that still hold pending legs on pending
// bets. Finished events show up here when a bet failed to settle.
func (e *Engine) GetPendingSettlements(ctx context.Context, tenantID uuid.UUID, limit, offset int) (*PendingSettlements, error) {
	switch {
	case limit <= 0:
		limit = defaultPendingLimit
	case limit > maxPendingLimit:
		limit = maxPendingLimit
	}
	if offset < 0 {
		offset = 0
	}

	events, total, err := e.bets.PendingByEvent(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("GetPendingSettlements: %w", err)
	}
	return &PendingSettlements{Events: events, Total: total, Limit: limit, Offset: offset}, nil
}
