package limits_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/betting-ledger/internal/limits"
	"github.com/josh-kwaku/betting-ledger/internal/testutil"
)

func TestRedisStore(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	ctx := context.Background()

	defaults := limits.TenantLimits{
		MinStake:             decimal.NewFromInt(1),
		MaxStake:             decimal.NewFromInt(1000),
		MaxWinning:           decimal.NewFromInt(50000),
		MaxSelectionsPerSlip: 20,
		MinOdds:              decimal.RequireFromString("1.01"),
		MaxOdds:              decimal.NewFromInt(1000),
		MaxOddsPerSelection:  decimal.NewFromInt(100),
	}
	store := limits.NewRedisStore(client, defaults)

	t.Run("defaults without override", func(t *testing.T) {
		got, err := store.Get(ctx, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, defaults, got)
	})

	t.Run("partial override keeps other defaults", func(t *testing.T) {
		tenant := uuid.New()
		err := client.Set(ctx, "tenant:"+tenant.String()+":bet_limits",
			`{"max_winning":"2500","max_selections_per_slip":5}`, 0).Err()
		require.NoError(t, err)

		got, err := store.Get(ctx, tenant)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(2500).Equal(got.MaxWinning))
		assert.Equal(t, 5, got.MaxSelectionsPerSlip)
		assert.True(t, defaults.MaxStake.Equal(got.MaxStake))
	})

	t.Run("set then get round trip", func(t *testing.T) {
		tenant := uuid.New()
		custom := defaults
		custom.MaxStake = decimal.NewFromInt(250)

		require.NoError(t, store.Set(ctx, tenant, custom))

		got, err := store.Get(ctx, tenant)
		require.NoError(t, err)
		assert.True(t, custom.MaxStake.Equal(got.MaxStake))
	})

	t.Run("corrupt document is an error", func(t *testing.T) {
		tenant := uuid.New()
		require.NoError(t, client.Set(ctx, "tenant:"+tenant.String()+":bet_limits", "{not json", 0).Err())

		_, err := store.Get(ctx, tenant)
		assert.Error(t, err)
	})
}
