package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/betting-ledger/internal/domain"
	"github.com/josh-kwaku/betting-ledger/internal/logging"
	"github.com/josh-kwaku/betting-ledger/internal/repository"
)

// BalanceDelta is what one entry adds to one wallet's reporting aggregate.
type BalanceDelta struct {
	WalletID uuid.UUID
	Credits  decimal.Decimal
	Debits   decimal.Decimal
}

// BalanceDeltas returns one delta per wallet-backed side of the entry.
// Boundary accounts without a wallet have no aggregate.
func BalanceDeltas(e *domain.LedgerEntry) []BalanceDelta {
	var out []BalanceDelta
	if e.Debit.WalletID != nil {
		out = append(out, BalanceDelta{WalletID: *e.Debit.WalletID, Credits: decimal.Zero, Debits: e.Amount})
	}
	if e.Credit.WalletID != nil {
		out = append(out, BalanceDelta{WalletID: *e.Credit.WalletID, Credits: e.Amount, Debits: decimal.Zero})
	}
	return out
}

func (e *Engine) GetWallet(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error) {
	w, err := e.wallets.GetByID(ctx, walletID)
	if err != nil {
		return nil, fmt.Errorf("GetWallet: %w", err)
	}
	return w, nil
}

func (e *Engine) GetAccountBalance(ctx context.Context, walletID uuid.UUID) (*domain.AccountBalance, error) {
	b, err := e.balances.Get(ctx, walletID)
	if err != nil {
		return nil, fmt.Errorf("GetAccountBalance: %w", err)
	}
	return b, nil
}

func (e *Engine) GetDailyBalances(ctx context.Context, walletID uuid.UUID, from, to time.Time) ([]domain.DailyAccountBalance, error) {
	days, err := e.balances.ListDaily(ctx, walletID, from, to)
	if err != nil {
		return nil, fmt.Errorf("GetDailyBalances: %w", err)
	}
	return days, nil
}

// RebuildAccountBalance recomputes a wallet's aggregates from ledger history.
// The wallet row is locked so no entry lands mid-rebuild.
func (e *Engine) RebuildAccountBalance(ctx context.Context, walletID uuid.UUID) (*domain.AccountBalance, error) {
	err := repository.InTx(ctx, e.db, nil, func(tx *sql.Tx) error {
		w, err := e.wallets.GetForUpdate(ctx, tx, walletID)
		if err != nil {
			return err
		}
		return e.balances.Rebuild(ctx, tx, w.ID, w.TenantID, time.Now().UTC())
	})
	if err != nil {
		return nil, fmt.Errorf("RebuildAccountBalance: %w", err)
	}

	b, err := e.balances.Get(ctx, walletID)
	if err != nil {
		return nil, fmt.Errorf("RebuildAccountBalance: %w", err)
	}

	logging.FromContext(ctx).Info("account balance rebuilt",
		"wallet_id", walletID,
		"total_credits", b.TotalCredits,
		"total_debits", b.TotalDebits,
		"transaction_count", b.TransactionCount,
	)
	return b, nil
}
