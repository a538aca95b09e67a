package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/betting-ledger/internal/audit"
	"github.com/josh-kwaku/betting-ledger/internal/domain"
	"github.com/josh-kwaku/betting-ledger/internal/logging"
	"github.com/josh-kwaku/betting-ledger/internal/metrics"
	"github.com/josh-kwaku/betting-ledger/internal/repository"
)

type walletRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByOwner(ctx context.Context, ownerID uuid.UUID, kind domain.AccountKind, currency domain.Currency) (*domain.Wallet, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, newBalance decimal.Decimal, newVersion int64) error
}

type entryRepo interface {
	Create(ctx context.Context, tx *sql.Tx, e *domain.LedgerEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.LedgerEntry, error)
	MarkReversed(ctx context.Context, tx *sql.Tx, id, reversedBy, reversalEntryID uuid.UUID, reason string, at time.Time) error
	MarkApproved(ctx context.Context, tx *sql.Tx, id, approvedBy uuid.UUID, at time.Time) error
	ListByWallet(ctx context.Context, walletID uuid.UUID, from, to time.Time, limit, offset int) ([]domain.LedgerEntry, int, error)
	BalanceAt(ctx context.Context, walletID uuid.UUID, t time.Time) (decimal.Decimal, error)
	SumByType(ctx context.Context, f repository.TotalsFilter) ([]repository.TypeTotal, error)
}

type balanceRepo interface {
	Apply(ctx context.Context, tx *sql.Tx, walletID, tenantID uuid.UUID, credits, debits decimal.Decimal, at time.Time) error
	Get(ctx context.Context, walletID uuid.UUID) (*domain.AccountBalance, error)
	ListDaily(ctx context.Context, walletID uuid.UUID, from, to time.Time) ([]domain.DailyAccountBalance, error)
	Rebuild(ctx context.Context, tx *sql.Tx, walletID, tenantID uuid.UUID, now time.Time) error
}

type Config struct {
	// Withdrawals strictly above this are written pending. Zero disables it.
	WithdrawalApprovalThreshold decimal.Decimal
}

// Engine is the only writer of wallet balances. Every entry it writes moves
// Amount out of the debit side and into the credit side in one transaction.
type Engine struct {
	db       *sql.DB
	wallets  walletRepo
	entries  entryRepo
	balances balanceRepo
	audit    audit.Sink
	metrics  *metrics.Metrics
	cfg      Config
}

func NewEngine(
	db *sql.DB,
	wallets walletRepo,
	entries entryRepo,
	balances balanceRepo,
	sink audit.Sink,
	m *metrics.Metrics,
	cfg Config,
) *Engine {
	return &Engine{
		db:       db,
		wallets:  wallets,
		entries:  entries,
		balances: balances,
		audit:    sink,
		metrics:  m,
		cfg:      cfg,
	}
}

// EntryRequest describes one balanced transfer. Wallet-backed sides may leave
// UserID empty; it is filled from the wallet owner. Currency may be empty when
// at least one side is wallet-backed.
type EntryRequest struct {
	TenantID      uuid.UUID
	Debit         domain.LedgerAccount
	Credit        domain.LedgerAccount
	Amount        decimal.Decimal
	Currency      domain.Currency
	Type          domain.TransactionType
	ReferenceType *domain.ReferenceType
	ReferenceID   *uuid.UUID
	ExternalRef   *string
	Description   string
	CreatedBy     uuid.UUID
	Metadata      map[string]any

	// RequiresApproval writes the entry as pending. Wallets still move.
	RequiresApproval bool
	// RequireFunds rejects the entry if the debit wallet cannot cover Amount.
	RequireFunds bool

	reverses *uuid.UUID
}

func (r *EntryRequest) validate() error {
	if !r.Amount.IsPositive() || !r.Amount.Equal(r.Amount.Round(2)) {
		return fmt.Errorf("validate: %w", domain.ErrInvalidAmount)
	}
	if r.Currency != "" && !r.Currency.IsValid() {
		return fmt.Errorf("validate: %w", domain.ErrInvalidCurrency)
	}
	if !r.Type.IsValid() {
		return fmt.Errorf("validate: transaction type %q: %w", r.Type, domain.ErrInvalidRequest)
	}
	if err := r.Debit.Validate(); err != nil {
		return fmt.Errorf("validate: debit: %w", err)
	}
	if err := r.Credit.Validate(); err != nil {
		return fmt.Errorf("validate: credit: %w", err)
	}
	if r.Debit.SameAs(r.Credit) {
		return fmt.Errorf("validate: %w", domain.ErrSameAccount)
	}
	if r.TenantID == uuid.Nil {
		return fmt.Errorf("validate: tenant required: %w", domain.ErrInvalidRequest)
	}
	return nil
}

// CreateEntry writes one entry in its own transaction.
func (e *Engine) CreateEntry(ctx context.Context, req EntryRequest) (*domain.LedgerEntry, error) {
	var entry *domain.LedgerEntry
	err := repository.InTx(ctx, e.db, nil, func(tx *sql.Tx) error {
		var err error
		entry, err = e.CreateEntryTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("CreateEntry: %w", err)
	}

	e.Committed(ctx, entry)
	return entry, nil
}

// CreateEntryTx writes one entry inside the caller's transaction so the entry
// commits together with whatever domain row it pays for. The caller must call
// Committed after a successful commit.
func (e *Engine) CreateEntryTx(ctx context.Context, tx *sql.Tx, req EntryRequest) (*domain.LedgerEntry, error) {
	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("CreateEntryTx: %w", err)
	}

	var ids []uuid.UUID
	for _, side := range []*domain.LedgerAccount{&req.Debit, &req.Credit} {
		if side.WalletID != nil {
			ids = append(ids, *side.WalletID)
		}
	}

	locked, err := lockWalletsInOrder(ctx, tx, e.wallets, ids...)
	if err != nil {
		return nil, fmt.Errorf("CreateEntryTx: %w", err)
	}

	currency := req.Currency
	for _, side := range []*domain.LedgerAccount{&req.Debit, &req.Credit} {
		if side.WalletID == nil {
			continue
		}
		w := locked[*side.WalletID]
		if w.OwnerKind != side.Kind {
			return nil, fmt.Errorf("CreateEntryTx: %s side on %s wallet: %w", side.Kind, w.OwnerKind, domain.ErrInvalidAccount)
		}
		if currency == "" {
			currency = w.Currency
		}
		if w.Currency != currency {
			return nil, fmt.Errorf("CreateEntryTx: wallet %s: %w", w.ID, domain.ErrCurrencyMismatch)
		}
		if side.UserID == nil {
			owner := w.OwnerID
			side.UserID = &owner
		}
	}
	if currency == "" {
		return nil, fmt.Errorf("CreateEntryTx: %w", domain.ErrInvalidCurrency)
	}

	now := time.Now().UTC()
	entry := &domain.LedgerEntry{
		ID:              uuid.New(),
		TenantID:        req.TenantID,
		Debit:           req.Debit,
		Credit:          req.Credit,
		Amount:          req.Amount,
		Currency:        currency,
		TransactionType: req.Type,
		ReferenceType:   req.ReferenceType,
		ReferenceID:     req.ReferenceID,
		ExternalRef:     req.ExternalRef,
		Description:     req.Description,
		CreatedBy:       req.CreatedBy,
		Status:          domain.EntryStatusCompleted,
		ReversesEntryID: req.reverses,
		CreatedAt:       now,
	}
	if req.RequiresApproval {
		entry.Status = domain.EntryStatusPending
	}
	if len(req.Metadata) > 0 {
		meta, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, fmt.Errorf("CreateEntryTx: metadata: %w", err)
		}
		entry.Metadata = meta
	}

	if req.Debit.WalletID != nil {
		w := locked[*req.Debit.WalletID]
		if req.RequireFunds && w.AvailableBalance.LessThan(req.Amount) {
			return nil, fmt.Errorf("CreateEntryTx: %w", domain.ErrInsufficientFunds)
		}
		before, after := w.AvailableBalance, w.AvailableBalance.Sub(req.Amount)
		if err := e.wallets.UpdateBalance(ctx, tx, w.ID, after, w.Version+1); err != nil {
			return nil, fmt.Errorf("CreateEntryTx: update debit wallet: %w", err)
		}
		entry.DebitBalanceBefore, entry.DebitBalanceAfter = &before, &after
	}

	if req.Credit.WalletID != nil {
		w := locked[*req.Credit.WalletID]
		before, after := w.AvailableBalance, w.AvailableBalance.Add(req.Amount)
		if err := e.wallets.UpdateBalance(ctx, tx, w.ID, after, w.Version+1); err != nil {
			return nil, fmt.Errorf("CreateEntryTx: update credit wallet: %w", err)
		}
		entry.CreditBalanceBefore, entry.CreditBalanceAfter = &before, &after
	}

	if err := e.entries.Create(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("CreateEntryTx: %w", err)
	}

	for _, d := range BalanceDeltas(entry) {
		if err := e.balances.Apply(ctx, tx, d.WalletID, req.TenantID, d.Credits, d.Debits, now); err != nil {
			return nil, fmt.Errorf("CreateEntryTx: %w", err)
		}
	}

	return entry, nil
}

// Committed records metrics and the log line for an entry whose transaction
// has committed.
func (e *Engine) Committed(ctx context.Context, entry *domain.LedgerEntry) {
	e.metrics.LedgerEntries.WithLabelValues(string(entry.TransactionType), string(entry.Status)).Inc()
	e.metrics.LedgerAmount.WithLabelValues(string(entry.TransactionType), string(entry.Currency)).
		Add(metrics.Amount(entry.Amount))

	logging.FromContext(ctx).Info("ledger entry created",
		"entry_id", entry.ID,
		"entry_number", entry.EntryNumber,
		"transaction_type", entry.TransactionType,
		"amount", entry.Amount,
		"currency", entry.Currency,
		"status", entry.Status,
	)
}

// lockWalletsInOrder takes row locks in a fixed id order so two entries that
// touch the same pair of wallets cannot deadlock.
func lockWalletsInOrder(ctx context.Context, tx *sql.Tx, wallets walletRepo, ids ...uuid.UUID) (map[uuid.UUID]*domain.Wallet, error) {
	sorted := make([]uuid.UUID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].String() < sorted[j].String()
	})

	result := make(map[uuid.UUID]*domain.Wallet, len(ids))
	for _, id := range sorted {
		if _, ok := result[id]; ok {
			continue
		}
		w, err := wallets.GetForUpdate(ctx, tx, id)
		if err != nil {
			return nil, fmt.Errorf("lockWalletsInOrder: %w", err)
		}
		result[id] = w
	}
	return result, nil
}
