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

type AccountBalanceRepository struct {
	db *sql.DB
}

func NewAccountBalanceRepository(db *sql.DB) *AccountBalanceRepository {
	return &AccountBalanceRepository{db: db}
}

// Apply adds credits/debits for one entry to the lifetime and daily aggregates.
func (r *AccountBalanceRepository) Apply(ctx context.Context, tx *sql.Tx, walletID, tenantID uuid.UUID, credits, debits decimal.Decimal, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO account_balances (wallet_id, tenant_id, total_credits, total_debits, transaction_count, last_transaction_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, $5, $5)
		ON CONFLICT (wallet_id) DO UPDATE SET
			total_credits = account_balances.total_credits + EXCLUDED.total_credits,
			total_debits = account_balances.total_debits + EXCLUDED.total_debits,
			transaction_count = account_balances.transaction_count + 1,
			last_transaction_at = GREATEST(account_balances.last_transaction_at, EXCLUDED.last_transaction_at),
			updated_at = EXCLUDED.updated_at`,
		walletID, tenantID, credits, debits, at,
	)
	if err != nil {
		return fmt.Errorf("Apply: totals: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO account_balance_daily (wallet_id, day, credits, debits, transaction_count)
		VALUES ($1, ($2::timestamptz AT TIME ZONE 'UTC')::date, $3, $4, 1)
		ON CONFLICT (wallet_id, day) DO UPDATE SET
			credits = account_balance_daily.credits + EXCLUDED.credits,
			debits = account_balance_daily.debits + EXCLUDED.debits,
			transaction_count = account_balance_daily.transaction_count + 1`,
		walletID, at, credits, debits,
	)
	if err != nil {
		return fmt.Errorf("Apply: daily: %w", err)
	}
	return nil
}

func (r *AccountBalanceRepository) Get(ctx context.Context, walletID uuid.UUID) (*domain.AccountBalance, error) {
	var b domain.AccountBalance
	err := r.db.QueryRowContext(ctx,
		`SELECT wallet_id, tenant_id, total_credits, total_debits, transaction_count, last_transaction_at, updated_at
		FROM account_balances WHERE wallet_id = $1`, walletID,
	).Scan(&b.WalletID, &b.TenantID, &b.TotalCredits, &b.TotalDebits, &b.TransactionCount, &b.LastTransactionAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("Get: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &b, nil
}

func (r *AccountBalanceRepository) ListDaily(ctx context.Context, walletID uuid.UUID, from, to time.Time) ([]domain.DailyAccountBalance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT wallet_id, day, credits, debits, transaction_count
		FROM account_balance_daily
		WHERE wallet_id = $1 AND day >= $2::date AND day < $3::date
		ORDER BY day`,
		walletID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("ListDaily: %w", err)
	}
	defer rows.Close()

	var days []domain.DailyAccountBalance
	for rows.Next() {
		var d domain.DailyAccountBalance
		if err := rows.Scan(&d.WalletID, &d.Day, &d.Credits, &d.Debits, &d.TransactionCount); err != nil {
			return nil, fmt.Errorf("ListDaily: scan: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListDaily: rows: %w", err)
	}
	return days, nil
}

// Rebuild recomputes both aggregates for a wallet from ledger history.
func (r *AccountBalanceRepository) Rebuild(ctx context.Context, tx *sql.Tx, walletID, tenantID uuid.UUID, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO account_balances (wallet_id, tenant_id, total_credits, total_debits, transaction_count, last_transaction_at, updated_at)
		SELECT $1::uuid, $2::uuid,
			COALESCE(SUM(amount) FILTER (WHERE credit_wallet_id = $1), 0),
			COALESCE(SUM(amount) FILTER (WHERE debit_wallet_id = $1), 0),
			COUNT(*),
			MAX(created_at),
			$3::timestamptz
		FROM ledger_entries
		WHERE debit_wallet_id = $1 OR credit_wallet_id = $1
		ON CONFLICT (wallet_id) DO UPDATE SET
			total_credits = EXCLUDED.total_credits,
			total_debits = EXCLUDED.total_debits,
			transaction_count = EXCLUDED.transaction_count,
			last_transaction_at = EXCLUDED.last_transaction_at,
			updated_at = EXCLUDED.updated_at`,
		walletID, tenantID, now,
	)
	if err != nil {
		return fmt.Errorf("Rebuild: totals: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM account_balance_daily WHERE wallet_id = $1`, walletID); err != nil {
		return fmt.Errorf("Rebuild: clear daily: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO account_balance_daily (wallet_id, day, credits, debits, transaction_count)
		SELECT $1::uuid, (created_at AT TIME ZONE 'UTC')::date,
			COALESCE(SUM(amount) FILTER (WHERE credit_wallet_id = $1), 0),
			COALESCE(SUM(amount) FILTER (WHERE debit_wallet_id = $1), 0),
			COUNT(*)
		FROM ledger_entries
		WHERE debit_wallet_id = $1 OR credit_wallet_id = $1
		GROUP BY (created_at AT TIME ZONE 'UTC')::date`,
		walletID,
	)
	if err != nil {
		return fmt.Errorf("Rebuild: daily: %w", err)
	}
	return nil
}
