package limits

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Store resolves the limits that apply to a tenant.
type Store interface {
	Get(ctx context.Context, tenantID uuid.UUID) (TenantLimits, error)
}

// override is the document kept in Redis. Absent fields keep the default.
type override struct {
	MinStake             *decimal.Decimal `json:"min_stake,omitempty"`
	MaxStake             *decimal.Decimal `json:"max_stake,omitempty"`
	MaxWinning           *decimal.Decimal `json:"max_winning,omitempty"`
	MaxSelectionsPerSlip *int             `json:"max_selections_per_slip,omitempty"`
	MinOdds              *decimal.Decimal `json:"min_odds,omitempty"`
	MaxOdds              *decimal.Decimal `json:"max_odds,omitempty"`
	MaxOddsPerSelection  *decimal.Decimal `json:"max_odds_per_selection,omitempty"`
}

func (o override) apply(l TenantLimits) TenantLimits {
	if o.MinStake != nil {
		l.MinStake = *o.MinStake
	}
	if o.MaxStake != nil {
		l.MaxStake = *o.MaxStake
	}
	if o.MaxWinning != nil {
		l.MaxWinning = *o.MaxWinning
	}
	if o.MaxSelectionsPerSlip != nil {
		l.MaxSelectionsPerSlip = *o.MaxSelectionsPerSlip
	}
	if o.MinOdds != nil {
		l.MinOdds = *o.MinOdds
	}
	if o.MaxOdds != nil {
		l.MaxOdds = *o.MaxOdds
	}
	if o.MaxOddsPerSelection != nil {
		l.MaxOddsPerSelection = *o.MaxOddsPerSelection
	}
	return l
}

// RedisStore reads per-tenant overrides from tenant:{id}:bet_limits.
type RedisStore struct {
	client   *redis.Client
	defaults TenantLimits
}

func NewRedisStore(client *redis.Client, defaults TenantLimits) *RedisStore {
	return &RedisStore{client: client, defaults: defaults}
}

func key(tenantID uuid.UUID) string { return "tenant:" + tenantID.String() + ":bet_limits" }

// Get returns the defaults when the tenant has no override. A Redis failure is
// returned rather than masked so placement fails closed.
func (s *RedisStore) Get(ctx context.Context, tenantID uuid.UUID) (TenantLimits, error) {
	b, err := s.client.Get(ctx, key(tenantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return s.defaults, nil
	}
	if err != nil {
		return TenantLimits{}, fmt.Errorf("Get: %w", err)
	}

	var o override
	if err := json.Unmarshal(b, &o); err != nil {
		return TenantLimits{}, fmt.Errorf("Get: decode %s: %w", key(tenantID), err)
	}
	return o.apply(s.defaults), nil
}

// Set stores a complete limits document for the tenant.
func (s *RedisStore) Set(ctx context.Context, tenantID uuid.UUID, l TenantLimits) error {
	b, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("Set: %w", err)
	}
	if err := s.client.Set(ctx, key(tenantID), b, 0).Err(); err != nil {
		return fmt.Errorf("Set: %w", err)
	}
	return nil
}

// StaticStore serves the same limits to every tenant.
type StaticStore struct {
	Limits TenantLimits
}

func (s StaticStore) Get(context.Context, uuid.UUID) (TenantLimits, error) {
	return s.Limits, nil
}
