package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyIDR Currency = "IDR"
	CurrencyNGN Currency = "NGN"
)

func (c Currency) IsValid() bool {
	switch c {
	case CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencyIDR, CurrencyNGN:
		return true
	default:
		return false
	}
}

// AccountKind is the closed set of ledger account holders. Routing money to an
// account always goes through one of these values, never a free-text tag.
type AccountKind string

const (
	AccountKindPlayer     AccountKind = "player"
	AccountKindAgent      AccountKind = "agent"
	AccountKindTenant     AccountKind = "tenant"
	AccountKindOperator   AccountKind = "operator"
	AccountKindSystem     AccountKind = "system"
	AccountKindRevenue    AccountKind = "revenue"
	AccountKindBonus      AccountKind = "bonus"
	AccountKindCommission AccountKind = "commission"
)

func (k AccountKind) IsValid() bool {
	switch k {
	case AccountKindPlayer, AccountKindAgent, AccountKindTenant, AccountKindOperator,
		AccountKindSystem, AccountKindRevenue, AccountKindBonus, AccountKindCommission:
		return true
	default:
		return false
	}
}

// RequiresWallet reports whether money moved to or from this kind of account
// must land in a tracked wallet.
func (k AccountKind) RequiresWallet() bool {
	switch k {
	case AccountKindPlayer, AccountKindAgent:
		return true
	case AccountKindTenant, AccountKindOperator, AccountKindSystem,
		AccountKindRevenue, AccountKindBonus, AccountKindCommission:
		return false
	default:
		return false
	}
}

// LedgerAccount is one side of a ledger entry. WalletID is nil for boundary
// buckets (e.g. the external system side of a deposit) that carry no balance.
type LedgerAccount struct {
	Kind     AccountKind
	WalletID *uuid.UUID
	UserID   *uuid.UUID
	Label    string
}

func (a LedgerAccount) Validate() error {
	if !a.Kind.IsValid() {
		return fmt.Errorf("account kind %q: %w", a.Kind, ErrInvalidAccount)
	}
	if a.Kind.RequiresWallet() && a.WalletID == nil {
		return fmt.Errorf("%s account without wallet: %w", a.Kind, ErrInvalidAccount)
	}
	return nil
}

// SameAs reports whether two sides of an entry resolve to the same logical account.
func (a LedgerAccount) SameAs(b LedgerAccount) bool {
	if a.WalletID != nil || b.WalletID != nil {
		return a.WalletID != nil && b.WalletID != nil && *a.WalletID == *b.WalletID
	}
	if a.Kind != b.Kind || a.Label != b.Label {
		return false
	}
	if a.UserID == nil || b.UserID == nil {
		return a.UserID == nil && b.UserID == nil
	}
	return *a.UserID == *b.UserID
}

type Wallet struct {
	ID               uuid.UUID
	OwnerID          uuid.UUID
	TenantID         uuid.UUID
	OwnerKind        AccountKind
	Currency         Currency
	AvailableBalance decimal.Decimal
	Version          int64
	CreatedAt        time.Time
}

// Account returns the ledger side backed by this wallet.
func (w *Wallet) Account(label string) LedgerAccount {
	id := w.ID
	owner := w.OwnerID
	return LedgerAccount{
		Kind:     w.OwnerKind,
		WalletID: &id,
		UserID:   &owner,
		Label:    label,
	}
}

// AccountBalance is a reporting aggregate rebuilt from ledger history; the
// wallet row stays authoritative.
type AccountBalance struct {
	WalletID          uuid.UUID
	TenantID          uuid.UUID
	TotalCredits      decimal.Decimal
	TotalDebits       decimal.Decimal
	TransactionCount  int64
	LastTransactionAt *time.Time
	UpdatedAt         time.Time
}

type DailyAccountBalance struct {
	WalletID         uuid.UUID
	Day              time.Time
	Credits          decimal.Decimal
	Debits           decimal.Decimal
	TransactionCount int64
}
