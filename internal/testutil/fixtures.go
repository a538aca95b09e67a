package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/betting-ledger/internal/domain"
	"github.com/josh-kwaku/betting-ledger/internal/repository"
)

var (
	TenantID = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	AdminID  = uuid.MustParse("00000000-0000-0000-0000-000000000001")
)

// SeedWallet inserts a wallet with the given opening balance. The balance is
// written directly; it has no ledger history behind it.
func SeedWallet(t *testing.T, db *sql.DB, ownerID uuid.UUID, kind domain.AccountKind, currency domain.Currency, balance string) *domain.Wallet {
	t.Helper()

	w := &domain.Wallet{
		ID:               uuid.New(),
		OwnerID:          ownerID,
		TenantID:         TenantID,
		OwnerKind:        kind,
		Currency:         currency,
		AvailableBalance: decimal.RequireFromString(balance),
		CreatedAt:        time.Now().UTC(),
	}
	if err := repository.NewWalletRepository(db).Create(context.Background(), w); err != nil {
		t.Fatalf("seed %s wallet %s: %v", kind, currency, err)
	}
	return w
}

func SeedPlayerWallet(t *testing.T, db *sql.DB, balance string) *domain.Wallet {
	t.Helper()
	return SeedWallet(t, db, uuid.New(), domain.AccountKindPlayer, domain.CurrencyUSD, balance)
}

// SeedRevenueWallet gives the tenant a tracked revenue wallet so stakes and
// payouts move a real balance.
func SeedRevenueWallet(t *testing.T, db *sql.DB, balance string) *domain.Wallet {
	t.Helper()
	return SeedWallet(t, db, TenantID, domain.AccountKindRevenue, domain.CurrencyUSD, balance)
}

func SeedEvent(t *testing.T, db *sql.DB, home, away string) *domain.Event {
	t.Helper()

	e := &domain.Event{
		ID:            uuid.New(),
		TenantID:      TenantID,
		HomeTeam:      home,
		AwayTeam:      away,
		Status:        domain.EventStatusScheduled,
		IsBettingOpen: true,
		StartsAt:      time.Now().UTC().Add(time.Hour),
		CreatedAt:     time.Now().UTC(),
	}
	if err := repository.NewEventRepository(db).Create(context.Background(), e); err != nil {
		t.Fatalf("seed event %s vs %s: %v", home, away, err)
	}
	return e
}

func GetWalletBalance(t *testing.T, db *sql.DB, walletID uuid.UUID) decimal.Decimal {
	t.Helper()

	var balance decimal.Decimal
	err := db.QueryRow(`SELECT available_balance FROM wallets WHERE id = $1`, walletID).Scan(&balance)
	if err != nil {
		t.Fatalf("get wallet balance %s: %v", walletID, err)
	}
	return balance
}

func CountEntriesByReference(t *testing.T, db *sql.DB, refID uuid.UUID, txType domain.TransactionType) int {
	t.Helper()

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM ledger_entries WHERE reference_id = $1 AND transaction_type = $2`,
		refID, txType,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count %s entries for %s: %v", txType, refID, err)
	}
	return count
}

// SumEntryAmounts totals the amounts of every entry crediting minus every
// entry debiting the wallet. For a wallet seeded at zero it must equal the
// wallet balance.
func SumEntryAmounts(t *testing.T, db *sql.DB, walletID uuid.UUID) decimal.Decimal {
	t.Helper()

	var sum decimal.Decimal
	err := db.QueryRow(
		`SELECT COALESCE(SUM(CASE WHEN credit_wallet_id = $1 THEN amount ELSE -amount END), 0)
		 FROM ledger_entries WHERE credit_wallet_id = $1 OR debit_wallet_id = $1`,
		walletID,
	).Scan(&sum)
	if err != nil {
		t.Fatalf("sum entries for %s: %v", walletID, err)
	}
	return sum
}
