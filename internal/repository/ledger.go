package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/betting-ledger/internal/domain"
)

const ledgerColumns = `id, entry_number, tenant_id,
	debit_kind, debit_wallet_id, debit_user_id, debit_label,
	credit_kind, credit_wallet_id, credit_user_id, credit_label,
	amount, currency,
	debit_balance_before, debit_balance_after, credit_balance_before, credit_balance_after,
	transaction_type, reference_type, reference_id, external_ref, description, created_by, metadata, status,
	approved_by, approved_at,
	reversed_by, reversed_at, reversal_reason, reversal_entry_id, reverses_entry_id,
	created_at`

// TypeTotal is one row of a GROUP BY transaction_type aggregate.
type TypeTotal struct {
	Type   domain.TransactionType
	Amount decimal.Decimal
	Count  int64
}

// TotalsFilter narrows SumByType. A nil UserID aggregates the whole tenant;
// otherwise only entries where that user's player account is a side count.
type TotalsFilter struct {
	TenantID uuid.UUID
	UserID   *uuid.UUID
	From     time.Time
	To       time.Time
}

type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Create inserts the entry and fills in its sequential entry number.
func (r *LedgerRepository) Create(ctx context.Context, tx *sql.Tx, e *domain.LedgerEntry) error {
	err := tx.QueryRowContext(ctx,
		`INSERT INTO ledger_entries (
			id, tenant_id,
			debit_kind, debit_wallet_id, debit_user_id, debit_label,
			credit_kind, credit_wallet_id, credit_user_id, credit_label,
			amount, currency,
			debit_balance_before, debit_balance_after, credit_balance_before, credit_balance_after,
			transaction_type, reference_type, reference_id, external_ref, description, created_by, metadata, status,
			reverses_entry_id, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26
		) RETURNING entry_number`,
		e.ID, e.TenantID,
		e.Debit.Kind, e.Debit.WalletID, e.Debit.UserID, e.Debit.Label,
		e.Credit.Kind, e.Credit.WalletID, e.Credit.UserID, e.Credit.Label,
		e.Amount, e.Currency,
		e.DebitBalanceBefore, e.DebitBalanceAfter, e.CreditBalanceBefore, e.CreditBalanceAfter,
		e.TransactionType, e.ReferenceType, e.ReferenceID, e.ExternalRef, e.Description, e.CreatedBy,
		nullableJSON(e.Metadata), e.Status,
		e.ReversesEntryID, e.CreatedAt,
	).Scan(&e.EntryNumber)
	if err != nil {
		if isUniqueViolation(err) && e.ReversesEntryID != nil {
			return fmt.Errorf("Create: %w", domain.ErrAlreadyReversed)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *LedgerRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE id = $1`, id,
	)
	e, err := scanLedgerEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrEntryNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return e, nil
}

func (r *LedgerRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.LedgerEntry, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE id = $1 FOR UPDATE`, id,
	)
	e, err := scanLedgerEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrEntryNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return e, nil
}

// MarkReversed flips a non-reversed entry to reversed and links its mirror.
func (r *LedgerRepository) MarkReversed(ctx context.Context, tx *sql.Tx, id, reversedBy, reversalEntryID uuid.UUID, reason string, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE ledger_entries
		SET status = $1, reversed_by = $2, reversed_at = $3, reversal_reason = $4, reversal_entry_id = $5
		WHERE id = $6 AND status <> $1`,
		domain.EntryStatusReversed, reversedBy, at, reason, reversalEntryID, id,
	)
	if err != nil {
		return fmt.Errorf("MarkReversed: %w", err)
	}
	return expectOneRow(res, "MarkReversed", domain.ErrAlreadyReversed)
}

// MarkApproved moves a pending entry to completed.
func (r *LedgerRepository) MarkApproved(ctx context.Context, tx *sql.Tx, id, approvedBy uuid.UUID, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE ledger_entries
		SET status = $1, approved_by = $2, approved_at = $3
		WHERE id = $4 AND status = $5`,
		domain.EntryStatusCompleted, approvedBy, at, id, domain.EntryStatusPending,
	)
	if err != nil {
		return fmt.Errorf("MarkApproved: %w", err)
	}
	return expectOneRow(res, "MarkApproved", domain.ErrEntryNotPending)
}

// ListByWallet returns entries touching the wallet in [from, to), oldest first,
// with the total count for pagination.
func (r *LedgerRepository) ListByWallet(ctx context.Context, walletID uuid.UUID, from, to time.Time, limit, offset int) ([]domain.LedgerEntry, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger_entries
		WHERE (debit_wallet_id = $1 OR credit_wallet_id = $1)
		AND created_at >= $2 AND created_at < $3`,
		walletID, from, to,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByWallet: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries
		WHERE (debit_wallet_id = $1 OR credit_wallet_id = $1)
		AND created_at >= $2 AND created_at < $3
		ORDER BY entry_number ASC LIMIT $4 OFFSET $5`,
		walletID, from, to, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByWallet: %w", err)
	}
	defer rows.Close()

	entries, err := collectLedgerEntries(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByWallet: %w", err)
	}
	return entries, total, nil
}

// BalanceAt reconstructs the wallet balance as of t from balance snapshots.
// It uses the last entry before t, else the first entry at or after t, else
// the wallet's current balance (no ledger history at all).
func (r *LedgerRepository) BalanceAt(ctx context.Context, walletID uuid.UUID, t time.Time) (decimal.Decimal, error) {
	var bal decimal.NullDecimal
	err := r.db.QueryRowContext(ctx,
		`SELECT CASE WHEN debit_wallet_id = $1 THEN debit_balance_after ELSE credit_balance_after END
		FROM ledger_entries
		WHERE (debit_wallet_id = $1 OR credit_wallet_id = $1) AND created_at < $2
		ORDER BY entry_number DESC LIMIT 1`,
		walletID, t,
	).Scan(&bal)
	if err == nil && bal.Valid {
		return bal.Decimal, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("BalanceAt: before: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT CASE WHEN debit_wallet_id = $1 THEN debit_balance_before ELSE credit_balance_before END
		FROM ledger_entries
		WHERE (debit_wallet_id = $1 OR credit_wallet_id = $1) AND created_at >= $2
		ORDER BY entry_number ASC LIMIT 1`,
		walletID, t,
	).Scan(&bal)
	if err == nil && bal.Valid {
		return bal.Decimal, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("BalanceAt: after: %w", err)
	}

	var current decimal.Decimal
	err = r.db.QueryRowContext(ctx,
		`SELECT available_balance FROM wallets WHERE id = $1`, walletID,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("BalanceAt: %w", domain.ErrWalletNotFound)
		}
		return decimal.Zero, fmt.Errorf("BalanceAt: wallet: %w", err)
	}
	return current, nil
}

// SumByType aggregates non-pending entries in [From, To) per transaction type.
func (r *LedgerRepository) SumByType(ctx context.Context, f TotalsFilter) ([]TypeTotal, error) {
	query := `SELECT transaction_type, COALESCE(SUM(amount), 0), COUNT(*)
		FROM ledger_entries
		WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3 AND status <> $4`
	args := []any{f.TenantID, f.From, f.To, domain.EntryStatusPending}

	if f.UserID != nil {
		query += ` AND ((debit_kind = $5 AND debit_user_id = $6) OR (credit_kind = $5 AND credit_user_id = $6))`
		args = append(args, domain.AccountKindPlayer, *f.UserID)
	}
	query += ` GROUP BY transaction_type`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("SumByType: %w", err)
	}
	defer rows.Close()

	var totals []TypeTotal
	for rows.Next() {
		var t TypeTotal
		if err := rows.Scan(&t.Type, &t.Amount, &t.Count); err != nil {
			return nil, fmt.Errorf("SumByType: scan: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SumByType: rows: %w", err)
	}
	return totals, nil
}

// ListByReference returns entries linked to a domain object, oldest first.
func (r *LedgerRepository) ListByReference(ctx context.Context, refType domain.ReferenceType, refID uuid.UUID) ([]domain.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries
		WHERE reference_type = $1 AND reference_id = $2 ORDER BY entry_number`,
		refType, refID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByReference: %w", err)
	}
	defer rows.Close()

	entries, err := collectLedgerEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("ListByReference: %w", err)
	}
	return entries, nil
}

func collectLedgerEntries(rows *sql.Rows) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return entries, nil
}

func scanLedgerEntry(s scanner) (*domain.LedgerEntry, error) {
	var (
		e    domain.LedgerEntry
		meta []byte
	)
	err := s.Scan(
		&e.ID, &e.EntryNumber, &e.TenantID,
		&e.Debit.Kind, &e.Debit.WalletID, &e.Debit.UserID, &e.Debit.Label,
		&e.Credit.Kind, &e.Credit.WalletID, &e.Credit.UserID, &e.Credit.Label,
		&e.Amount, &e.Currency,
		&e.DebitBalanceBefore, &e.DebitBalanceAfter, &e.CreditBalanceBefore, &e.CreditBalanceAfter,
		&e.TransactionType, &e.ReferenceType, &e.ReferenceID, &e.ExternalRef, &e.Description, &e.CreatedBy,
		&meta, &e.Status,
		&e.ApprovedBy, &e.ApprovedAt,
		&e.ReversedBy, &e.ReversedAt, &e.ReversalReason, &e.ReversalEntryID, &e.ReversesEntryID,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		e.Metadata = json.RawMessage(meta)
	}
	return &e, nil
}

func nullableJSON(m json.RawMessage) any {
	if len(m) == 0 {
		return nil
	}
	return string(m)
}

func expectOneRow(res sql.Result, op string, zeroErr error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, zeroErr)
	}
	return nil
}
