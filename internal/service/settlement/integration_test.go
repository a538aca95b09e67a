package settlement_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/betting-ledger/internal/audit"
	"github.com/josh-kwaku/betting-ledger/internal/domain"
	"github.com/josh-kwaku/betting-ledger/internal/limits"
	"github.com/josh-kwaku/betting-ledger/internal/market"
	"github.com/josh-kwaku/betting-ledger/internal/metrics"
	"github.com/josh-kwaku/betting-ledger/internal/repository"
	"github.com/josh-kwaku/betting-ledger/internal/service/betslip"
	"github.com/josh-kwaku/betting-ledger/internal/service/ledger"
	"github.com/josh-kwaku/betting-ledger/internal/service/settlement"
	tu "github.com/josh-kwaku/betting-ledger/internal/testutil"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type recordingSink struct {
	mu      sync.Mutex
	actions []string
}

func (r *recordingSink) Log(_ context.Context, a domain.Audit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, a.Action)
}

func (r *recordingSink) count(action string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.actions {
		if a == action {
			n++
		}
	}
	return n
}

type fixture struct {
	db      *sql.DB
	ledger  *ledger.Engine
	slips   *betslip.Service
	engine  *settlement.Engine
	sink    *recordingSink
	player  *domain.Wallet
	revenue *domain.Wallet
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := tu.SetupTestDB(t)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	sink := &recordingSink{}

	led := ledger.NewEngine(
		db,
		repository.NewWalletRepository(db),
		repository.NewLedgerRepository(db),
		repository.NewAccountBalanceRepository(db),
		sink,
		m,
		ledger.Config{},
	)
	slips := betslip.NewService(
		db,
		repository.NewEventRepository(db),
		repository.NewWalletRepository(db),
		repository.NewBetRepository(db),
		limits.StaticStore{Limits: limits.TenantLimits{MinStake: dec("1"), MaxWinning: dec("100000")}},
		led,
		m,
	)
	eng := settlement.NewEngine(
		db,
		repository.NewBetRepository(db),
		repository.NewEventRepository(db),
		led,
		sink,
		m,
	)

	return &fixture{
		db:      db,
		ledger:  led,
		slips:   slips,
		engine:  eng,
		sink:    sink,
		player:  tu.SeedPlayerWallet(t, db, "500"),
		revenue: tu.SeedRevenueWallet(t, db, "10000"),
	}
}

func (f *fixture) place(t *testing.T, stake string, sels ...betslip.SelectionInput) *domain.Bet {
	t.Helper()
	b, err := f.slips.PlaceBet(context.Background(), betslip.PlaceBetRequest{
		TenantID:   tu.TenantID,
		UserID:     f.player.OwnerID,
		WalletID:   f.player.ID,
		Stake:      dec(stake),
		Selections: sels,
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) bet(t *testing.T, id uuid.UUID) *domain.Bet {
	t.Helper()
	b, err := f.engine.GetBet(context.Background(), id)
	require.NoError(t, err)
	return b
}

func winner(ev *domain.Event, pick, odds string) betslip.SelectionInput {
	return betslip.SelectionInput{EventID: ev.ID, MarketName: "Match Winner", SelectionName: pick, Odds: dec(odds)}
}

// The same-game ticket cannot come through the slip checks, so it is written
// the way placement would write it.
func (f *fixture) seedSameGameBet(t *testing.T, ev *domain.Event, stake string, legs ...[3]string) *domain.Bet {
	t.Helper()
	ctx := context.Background()
	teams := market.Teams{Home: ev.HomeTeam, Away: ev.AwayTeam}

	b := &domain.Bet{
		ID:        uuid.New(),
		UserID:    f.player.OwnerID,
		TenantID:  tu.TenantID,
		WalletID:  f.player.ID,
		Type:      domain.BetTypeMultiple,
		Stake:     dec(stake),
		Currency:  domain.CurrencyUSD,
		Status:    domain.BetStatusPending,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	var odds []decimal.Decimal
	for _, l := range legs {
		odds = append(odds, dec(l[2]))
		b.Selections = append(b.Selections, domain.Selection{
			ID:            uuid.New(),
			BetID:         b.ID,
			EventID:       ev.ID,
			MarketName:    l[0],
			SelectionName: l[1],
			Market:        market.Parse(l[0], l[1], teams),
			Odds:          dec(l[2]),
			Status:        domain.SelectionPending,
		})
	}
	b.TotalOdds = domain.CombineOdds(odds)
	b.PotentialWin = domain.Payout(b.Stake, b.TotalOdds)

	err := repository.InTx(ctx, f.db, nil, func(tx *sql.Tx) error {
		e, err := f.ledger.BetPlacement(ctx, tx, ledger.BetMoneyRequest{
			TenantID: tu.TenantID, BetID: b.ID, PlayerWalletID: f.player.ID, Amount: b.Stake, CreatedBy: f.player.OwnerID,
		})
		if err != nil {
			return err
		}
		b.PlacementEntryID = &e.ID
		return repository.NewBetRepository(f.db).Create(ctx, tx, b)
	})
	require.NoError(t, err)
	return b
}

func TestSetEventResult_SameGameAccumulator(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ev := tu.SeedEvent(t, f.db, "A", "B")
	b := f.seedSameGameBet(t, ev, "20",
		[3]string{"Match Winner", "Home", "1.80"},
		[3]string{"Over/Under 2.5", "Over 2.5", "1.90"},
	)
	assert.Equal(t, "3.4200", b.TotalOdds.StringFixed(4))

	summary, err := f.engine.SetEventResult(ctx, ev.ID, domain.Score{Home: 2, Away: 1}, tu.AdminID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.BetsFound)
	assert.Equal(t, 1, summary.BetsSettled)
	assert.Equal(t, 1, summary.Won)
	assert.Equal(t, "20.00", summary.TotalStaked.StringFixed(2))
	assert.Equal(t, "68.40", summary.TotalPaidOut.StringFixed(2))
	assert.Equal(t, "-48.40", summary.GGR.StringFixed(2))

	got := f.bet(t, b.ID)
	assert.Equal(t, domain.BetStatusWon, got.Status)
	assert.Equal(t, "68.40", got.ActualWin.StringFixed(2))
	assert.Equal(t, domain.SettledByAuto, *got.SettledBy)
	require.NotNil(t, got.SettlementEntryID)
	for _, s := range got.Selections {
		assert.Equal(t, domain.SelectionWon, s.Status)
		assert.Equal(t, 2, *s.ResultHome)
		assert.Equal(t, 1, *s.ResultAway)
	}

	trail, err := repository.NewLedgerRepository(f.db).ListByReference(ctx, domain.ReferenceBet, b.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, domain.TxBetPlacement, trail[0].TransactionType)
	assert.Equal(t, domain.TxBetWinning, trail[1].TransactionType)
	assert.Equal(t, *got.SettlementEntryID, trail[1].ID)
	assert.Equal(t, "548.40", tu.GetWalletBalance(t, f.db, f.player.ID).StringFixed(2))
	assert.Equal(t, "9951.60", tu.GetWalletBalance(t, f.db, f.revenue.ID).StringFixed(2))

	assert.Equal(t, 1, f.sink.count(audit.ActionBetSettled))
	assert.Equal(t, 1, f.sink.count(audit.ActionEventResulted))
}

func TestSetEventResult_AlreadyFinished(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ev := tu.SeedEvent(t, f.db, "Home FC", "Away FC")
	b := f.place(t, "10", winner(ev, "Home", "2.5"))

	_, err := f.engine.SetEventResult(ctx, ev.ID, domain.Score{Home: 1, Away: 0}, tu.AdminID)
	require.NoError(t, err)

	_, err = f.engine.SetEventResult(ctx, ev.ID, domain.Score{Home: 0, Away: 3}, tu.AdminID)
	require.ErrorIs(t, err, domain.ErrAlreadySettled)
	assert.True(t, domain.IsStateConflict(err))

	_, err = f.engine.CancelEvent(ctx, ev.ID, tu.AdminID, "late cancel")
	require.ErrorIs(t, err, domain.ErrAlreadySettled)

	assert.Equal(t, 1, tu.CountEntriesByReference(t, f.db, b.ID, domain.TxBetWinning))
	assert.Equal(t, "515.00", tu.GetWalletBalance(t, f.db, f.player.ID).StringFixed(2))

	_, err = f.engine.SetEventResult(ctx, uuid.New(), domain.Score{}, tu.AdminID)
	require.ErrorIs(t, err, domain.ErrEventNotFound)
}

func TestSetEventResult_ConcurrentCallersSettleOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ev := tu.SeedEvent(t, f.db, "Home FC", "Away FC")
	b := f.place(t, "10", winner(ev, "Draw", "3.2"))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.SetEventResult(ctx, ev.ID, domain.Score{Home: 1, Away: 1}, tu.AdminID)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrAlreadySettled)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, tu.CountEntriesByReference(t, f.db, b.ID, domain.TxBetWinning))
	assert.Equal(t, "522.00", tu.GetWalletBalance(t, f.db, f.player.ID).StringFixed(2))
}

func TestSettlement_VoidLegRepricesAccumulator(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ev1 := tu.SeedEvent(t, f.db, "One", "Uno")
	ev2 := tu.SeedEvent(t, f.db, "Two", "Dos")
	ev3 := tu.SeedEvent(t, f.db, "Three", "Tres")
	b := f.place(t, "10", winner(ev1, "Home", "2.0"), winner(ev2, "Away", "3.0"), winner(ev3, "Home", "1.8"))
	assert.Equal(t, "108.00", b.PotentialWin.StringFixed(2))

	s, err := f.engine.CancelEvent(ctx, ev3.ID, tu.AdminID, "waterlogged pitch")
	require.NoError(t, err)
	assert.Equal(t, 1, s.BetsPending)

	s, err = f.engine.SetEventResult(ctx, ev1.ID, domain.Score{Home: 2, Away: 0}, tu.AdminID)
	require.NoError(t, err)
	assert.Equal(t, 1, s.BetsPending)
	assert.Equal(t, domain.BetStatusPending, f.bet(t, b.ID).Status)

	s, err = f.engine.SetEventResult(ctx, ev2.ID, domain.Score{Home: 0, Away: 1}, tu.AdminID)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Won)

	got := f.bet(t, b.ID)
	assert.Equal(t, domain.BetStatusWon, got.Status)
	assert.Equal(t, "60.00", got.ActualWin.StringFixed(2))
	assert.Equal(t, "550.00", tu.GetWalletBalance(t, f.db, f.player.ID).StringFixed(2))
	assert.Equal(t, 1, f.sink.count(audit.ActionEventCancelled))
}

func TestSettlement_AllLegsVoidRefunds(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ev := tu.SeedEvent(t, f.db, "Home FC", "Away FC")
	b := f.place(t, "25", winner(ev, "Away", "4.0"))

	s, err := f.engine.CancelEvent(ctx, ev.ID, tu.AdminID, "abandoned")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Void)

	got := f.bet(t, b.ID)
	assert.Equal(t, domain.BetStatusVoid, got.Status)
	assert.Equal(t, "25.00", got.ActualWin.StringFixed(2))
	assert.Equal(t, 1, tu.CountEntriesByReference(t, f.db, b.ID, domain.TxBetRefund))
	assert.Equal(t, "500.00", tu.GetWalletBalance(t, f.db, f.player.ID).StringFixed(2))

	_, err = f.engine.CancelEvent(ctx, ev.ID, tu.AdminID, "again")
	require.ErrorIs(t, err, domain.ErrEventClosed)
}

func TestSettlement_LostLegLosesBet(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ev1 := tu.SeedEvent(t, f.db, "One", "Uno")
	ev2 := tu.SeedEvent(t, f.db, "Two", "Dos")
	b := f.place(t, "10", winner(ev1, "Home", "2.0"), winner(ev2, "Home", "3.0"))

	_, err := f.engine.SetEventResult(ctx, ev1.ID, domain.Score{Home: 1, Away: 0}, tu.AdminID)
	require.NoError(t, err)
	s, err := f.engine.SetEventResult(ctx, ev2.ID, domain.Score{Home: 0, Away: 0}, tu.AdminID)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Lost)
	assert.Equal(t, "10.00", s.GGR.StringFixed(2))

	got := f.bet(t, b.ID)
	assert.Equal(t, domain.BetStatusLost, got.Status)
	assert.True(t, got.ActualWin.IsZero())
	assert.Nil(t, got.SettlementEntryID)
	assert.Zero(t, tu.CountEntriesByReference(t, f.db, b.ID, domain.TxBetWinning))
	assert.Equal(t, "490.00", tu.GetWalletBalance(t, f.db, f.player.ID).StringFixed(2))
}

func TestSettlement_UnknownMarketWaitsForManualSettlement(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ev := tu.SeedEvent(t, f.db, "Home FC", "Away FC")
	b := f.place(t, "10", betslip.SelectionInput{
		EventID: ev.ID, MarketName: "First Goalscorer", SelectionName: "Striker", Odds: dec("6.5"),
	})

	s, err := f.engine.SetEventResult(ctx, ev.ID, domain.Score{Home: 1, Away: 0}, tu.AdminID)
	require.NoError(t, err)
	assert.Equal(t, 1, s.BetsPending)
	assert.Equal(t, domain.BetStatusPending, f.bet(t, b.ID).Status)

	pending, err := f.engine.GetPendingSettlements(ctx, tu.TenantID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, pending.Total)
	require.Len(t, pending.Events, 1)
	assert.Equal(t, ev.ID, pending.Events[0].Event.ID)
	assert.Equal(t, int64(1), pending.Events[0].PendingBets)
	assert.Equal(t, "65.00", pending.Events[0].PotentialPayout.StringFixed(2))

	settled, err := f.engine.ManualSettleBet(ctx, settlement.ManualSettleRequest{
		BetID:     b.ID,
		Outcome:   domain.BetStatusWon,
		SettledBy: tu.AdminID,
		Reason:    "striker scored the opener",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.BetStatusWon, settled.Status)
	assert.Equal(t, domain.SettledByManual, *settled.SettledBy)
	assert.Equal(t, "striker scored the opener", *settled.SettlementReason)
	assert.Equal(t, "555.00", tu.GetWalletBalance(t, f.db, f.player.ID).StringFixed(2))
	assert.Equal(t, 1, f.sink.count(audit.ActionBetManuallySettled))

	_, err = f.engine.ManualSettleBet(ctx, settlement.ManualSettleRequest{
		BetID: b.ID, Outcome: domain.BetStatusVoid, SettledBy: tu.AdminID, Reason: "oops",
	})
	require.ErrorIs(t, err, domain.ErrBetNotPending)
	assert.Equal(t, "555.00", tu.GetWalletBalance(t, f.db, f.player.ID).StringFixed(2))

	pending, err = f.engine.GetPendingSettlements(ctx, tu.TenantID, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, pending.Total)
}

func TestManualSettleBet_Validation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ev := tu.SeedEvent(t, f.db, "Home FC", "Away FC")
	b := f.place(t, "10", winner(ev, "Home", "2"))

	_, err := f.engine.ManualSettleBet(ctx, settlement.ManualSettleRequest{BetID: b.ID, Outcome: domain.BetStatusWon, SettledBy: tu.AdminID})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = f.engine.ManualSettleBet(ctx, settlement.ManualSettleRequest{BetID: b.ID, Outcome: domain.BetStatusCashout, SettledBy: tu.AdminID, Reason: "x"})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = f.engine.ManualSettleBet(ctx, settlement.ManualSettleRequest{BetID: uuid.New(), Outcome: domain.BetStatusLost, SettledBy: tu.AdminID, Reason: "x"})
	require.ErrorIs(t, err, domain.ErrBetNotFound)

	lost, err := f.engine.ManualSettleBet(ctx, settlement.ManualSettleRequest{BetID: b.ID, Outcome: domain.BetStatusLost, SettledBy: tu.AdminID, Reason: "void market"})
	require.NoError(t, err)
	assert.Equal(t, domain.BetStatusLost, lost.Status)
	for _, s := range lost.Selections {
		assert.Equal(t, domain.SelectionLost, s.Status)
	}
	assert.Equal(t, "490.00", tu.GetWalletBalance(t, f.db, f.player.ID).StringFixed(2))
}

func TestRetryEventSettlement(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ev := tu.SeedEvent(t, f.db, "Home FC", "Away FC")
	b := f.place(t, "10", winner(ev, "Away", "3.0"))

	_, err := f.engine.RetryEventSettlement(ctx, ev.ID, tu.AdminID)
	require.ErrorIs(t, err, domain.ErrInvalidRequest)

	// Result recorded without a settlement run, as if the run died mid-way.
	ok, err := repository.NewEventRepository(f.db).MarkFinished(ctx, ev.ID, domain.Score{Home: 0, Away: 2}, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, ok)

	s, err := f.engine.RetryEventSettlement(ctx, ev.ID, tu.AdminID)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Won)
	assert.Equal(t, domain.BetStatusWon, f.bet(t, b.ID).Status)
	assert.Equal(t, "520.00", tu.GetWalletBalance(t, f.db, f.player.ID).StringFixed(2))

	s, err = f.engine.RetryEventSettlement(ctx, ev.ID, tu.AdminID)
	require.NoError(t, err)
	assert.Zero(t, s.BetsFound)
	assert.Equal(t, 1, tu.CountEntriesByReference(t, f.db, b.ID, domain.TxBetWinning))
	assert.Equal(t, 2, f.sink.count(audit.ActionEventRetried))
}

func TestGetSettlementStats(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ev := tu.SeedEvent(t, f.db, "Home FC", "Away FC")
	other := tu.SeedEvent(t, f.db, "Later FC", "Never FC")
	f.place(t, "20", winner(ev, "Home", "2.0"))
	f.place(t, "30", winner(ev, "Away", "4.0"))
	f.place(t, "5", winner(other, "Draw", "3.0"))

	_, err := f.engine.SetEventResult(ctx, ev.ID, domain.Score{Home: 3, Away: 1}, tu.AdminID)
	require.NoError(t, err)

	from, to := time.Now().Add(-time.Hour), time.Now().Add(time.Hour)
	stats, err := f.engine.GetSettlementStats(ctx, tu.TenantID, from, to)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalBets)
	assert.Equal(t, int64(2), stats.SettledBets)
	assert.Equal(t, int64(1), stats.PendingBets)
	assert.Equal(t, "5.00", stats.PendingStake.StringFixed(2))
	assert.Equal(t, "50.00", stats.TotalStaked.StringFixed(2))
	assert.Equal(t, "40.00", stats.TotalPaidOut.StringFixed(2))
	assert.Equal(t, "10.00", stats.GGR.StringFixed(2))

	_, err = f.engine.GetSettlementStats(ctx, tu.TenantID, to, from)
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
}
