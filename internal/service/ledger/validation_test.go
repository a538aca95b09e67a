package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/betting-ledger/internal/domain"
	"github.com/josh-kwaku/betting-ledger/internal/repository"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func validRequest() EntryRequest {
	return EntryRequest{
		TenantID: uuid.New(),
		Debit:    systemAccount("payment gateway"),
		Credit:   playerAccount(uuid.New()),
		Amount:   dec("25.50"),
		Type:     domain.TxDeposit,
	}
}

func TestEntryRequestValidate(t *testing.T) {
	walletID := uuid.New()

	tests := []struct {
		name    string
		mutate  func(r *EntryRequest)
		wantErr error
	}{
		{name: "valid deposit", mutate: func(*EntryRequest) {}},
		{
			name:    "zero amount",
			mutate:  func(r *EntryRequest) { r.Amount = decimal.Zero },
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			mutate:  func(r *EntryRequest) { r.Amount = dec("-1") },
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "sub-cent amount",
			mutate:  func(r *EntryRequest) { r.Amount = dec("1.005") },
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "unknown currency",
			mutate:  func(r *EntryRequest) { r.Currency = "XYZ" },
			wantErr: domain.ErrInvalidCurrency,
		},
		{
			name:    "unknown transaction type",
			mutate:  func(r *EntryRequest) { r.Type = "CASHBACK" },
			wantErr: domain.ErrInvalidRequest,
		},
		{
			name:   "reversal type is valid",
			mutate: func(r *EntryRequest) { r.Type = domain.TxDeposit.Reversal() },
		},
		{
			name:    "unknown account kind",
			mutate:  func(r *EntryRequest) { r.Debit.Kind = "house" },
			wantErr: domain.ErrInvalidAccount,
		},
		{
			name:    "player side without wallet",
			mutate:  func(r *EntryRequest) { r.Credit.WalletID = nil },
			wantErr: domain.ErrInvalidAccount,
		},
		{
			name: "same wallet both sides",
			mutate: func(r *EntryRequest) {
				r.Debit = playerAccount(walletID)
				r.Credit = playerAccount(walletID)
			},
			wantErr: domain.ErrSameAccount,
		},
		{
			name:    "same boundary account both sides",
			mutate:  func(r *EntryRequest) { r.Credit = systemAccount("payment gateway") },
			wantErr: domain.ErrSameAccount,
		},
		{
			name:    "missing tenant",
			mutate:  func(r *EntryRequest) { r.TenantID = uuid.Nil },
			wantErr: domain.ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			err := req.validate()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestBalanceDeltas(t *testing.T) {
	player, revenue := uuid.New(), uuid.New()

	t.Run("wallet to wallet", func(t *testing.T) {
		e := &domain.LedgerEntry{
			Debit:  domain.LedgerAccount{Kind: domain.AccountKindPlayer, WalletID: &player},
			Credit: domain.LedgerAccount{Kind: domain.AccountKindRevenue, WalletID: &revenue},
			Amount: dec("20"),
		}
		deltas := BalanceDeltas(e)
		require.Len(t, deltas, 2)
		assert.Equal(t, player, deltas[0].WalletID)
		assert.True(t, deltas[0].Debits.Equal(dec("20")))
		assert.True(t, deltas[0].Credits.IsZero())
		assert.Equal(t, revenue, deltas[1].WalletID)
		assert.True(t, deltas[1].Credits.Equal(dec("20")))
		assert.True(t, deltas[1].Debits.IsZero())
	})

	t.Run("boundary side has no aggregate", func(t *testing.T) {
		e := &domain.LedgerEntry{
			Debit:  systemAccount("payment gateway"),
			Credit: domain.LedgerAccount{Kind: domain.AccountKindPlayer, WalletID: &player},
			Amount: dec("100"),
		}
		deltas := BalanceDeltas(e)
		require.Len(t, deltas, 1)
		assert.Equal(t, player, deltas[0].WalletID)
		assert.True(t, deltas[0].Credits.Equal(dec("100")))
	})
}

func TestApplyRate(t *testing.T) {
	amount, meta := applyRate(dec("1000"), nil)
	assert.True(t, amount.Equal(dec("1000")))
	assert.Nil(t, meta)

	rate := dec("0.035")
	amount, meta = applyRate(dec("1234.56"), &rate)
	assert.Equal(t, "43.21", amount.StringFixed(2))
	assert.Equal(t, "1234.56", meta["base"])
	assert.Equal(t, "0.035", meta["rate"])
}

func TestRequiresApproval(t *testing.T) {
	e := &Engine{cfg: Config{WithdrawalApprovalThreshold: dec("10000")}}
	assert.False(t, e.requiresApproval(dec("10000")))
	assert.True(t, e.requiresApproval(dec("10000.01")))

	off := &Engine{}
	assert.False(t, off.requiresApproval(dec("1000000")))
}

func TestStatementLines(t *testing.T) {
	wallet := uuid.New()
	before1, after1 := dec("0"), dec("100")
	before2, after2 := dec("100"), dec("80")

	entries := []domain.LedgerEntry{
		{
			Debit:               systemAccount("payment gateway"),
			Credit:              domain.LedgerAccount{Kind: domain.AccountKindPlayer, WalletID: &wallet},
			Amount:              dec("100"),
			CreditBalanceBefore: &before1,
			CreditBalanceAfter:  &after1,
		},
		{
			Debit:              domain.LedgerAccount{Kind: domain.AccountKindPlayer, WalletID: &wallet},
			Credit:             systemAccount("tenant revenue"),
			Amount:             dec("20"),
			DebitBalanceBefore: &before2,
			DebitBalanceAfter:  &after2,
		},
	}

	lines := StatementLines(wallet, entries)
	require.Len(t, lines, 2)
	assert.Equal(t, DirectionCredit, lines[0].Direction)
	assert.True(t, lines[0].Change.Equal(dec("100")))
	assert.True(t, lines[0].Balance.Equal(dec("100")))
	assert.Equal(t, DirectionDebit, lines[1].Direction)
	assert.True(t, lines[1].Change.Equal(dec("-20")))
	assert.True(t, lines[1].Balance.Equal(dec("80")))
}

func TestSummarizeWinLoss(t *testing.T) {
	wl := SummarizeWinLoss([]repository.TypeTotal{
		{Type: domain.TxBetPlacement, Amount: dec("120"), Count: 4},
		{Type: domain.TxBetWinning, Amount: dec("68.40"), Count: 1},
		{Type: domain.TxBetRefund, Amount: dec("10"), Count: 1},
		{Type: domain.TxBetPlacement.Reversal(), Amount: dec("20"), Count: 1},
		{Type: domain.TxDeposit, Amount: dec("500"), Count: 1},
	})

	assert.Equal(t, "100.00", wl.TotalStaked.StringFixed(2))
	assert.Equal(t, "68.40", wl.TotalWon.StringFixed(2))
	assert.Equal(t, "10.00", wl.TotalRefunded.StringFixed(2))
	assert.Equal(t, "-21.60", wl.NetResult.StringFixed(2))
	assert.Equal(t, int64(3), wl.BetsPlaced)
	assert.Equal(t, int64(1), wl.BetsWon)
	assert.Equal(t, "33.33", wl.WinRate.StringFixed(2))
}

func TestSummarizeWinLoss_NoBets(t *testing.T) {
	wl := SummarizeWinLoss(nil)
	assert.True(t, wl.WinRate.IsZero())
	assert.True(t, wl.NetResult.IsZero())
}

func TestBucketTotals(t *testing.T) {
	r := BucketTotals([]repository.TypeTotal{
		{Type: domain.TxDeposit, Amount: dec("1000"), Count: 2},
		{Type: domain.TxWithdrawal, Amount: dec("300"), Count: 1},
		{Type: domain.TxBetPlacement, Amount: dec("500"), Count: 10},
		{Type: domain.TxBetWinning, Amount: dec("250"), Count: 3},
		{Type: domain.TxBetRefund, Amount: dec("20"), Count: 1},
		{Type: domain.TxBonusCredit, Amount: dec("50"), Count: 2},
		{Type: domain.TxAgentCommission, Amount: dec("30"), Count: 1},
		{Type: domain.TxOperatorRevenueShare, Amount: dec("40"), Count: 1},
		{Type: domain.TxDeposit.Reversal(), Amount: dec("100"), Count: 1},
		{Type: domain.TxBetWinning.Reversal(), Amount: dec("50"), Count: 1},
	})

	assert.Equal(t, "900.00", r.Deposits.StringFixed(2))
	assert.Equal(t, "300.00", r.Withdrawals.StringFixed(2))
	assert.Equal(t, "500.00", r.BetStakes.StringFixed(2))
	assert.Equal(t, "220.00", r.Payouts.StringFixed(2))
	assert.Equal(t, "50.00", r.Bonuses.StringFixed(2))
	assert.Equal(t, "30.00", r.Commissions.StringFixed(2))
	assert.Equal(t, "40.00", r.RevenueShare.StringFixed(2))
	assert.Equal(t, "280.00", r.GrossRevenue.StringFixed(2))
	assert.Equal(t, "200.00", r.NetRevenue.StringFixed(2))
	assert.Equal(t, int64(23), r.EntryCount)

	// net identity
	assert.True(t, r.NetRevenue.Equal(r.BetStakes.Sub(r.Payouts).Sub(r.Bonuses).Sub(r.Commissions)))
}
