package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TxDeposit              TransactionType = "DEPOSIT"
	TxWithdrawal           TransactionType = "WITHDRAWAL"
	TxBetPlacement         TransactionType = "BET_PLACEMENT"
	TxBetWinning           TransactionType = "BET_WINNING"
	TxBetLoss              TransactionType = "BET_LOSS"
	TxBetRefund            TransactionType = "BET_REFUND"
	TxBonusCredit          TransactionType = "BONUS_CREDIT"
	TxAgentCommission      TransactionType = "AGENT_COMMISSION"
	TxAgentSettlement      TransactionType = "AGENT_SETTLEMENT"
	TxOperatorRevenueShare TransactionType = "OPERATOR_REVENUE_SHARE"
	TxSystemAdjustment     TransactionType = "SYSTEM_ADJUSTMENT"
)

const reversalSuffix = "_REVERSAL"

var baseTransactionTypes = []TransactionType{
	TxDeposit, TxWithdrawal, TxBetPlacement, TxBetWinning, TxBetLoss, TxBetRefund,
	TxBonusCredit, TxAgentCommission, TxAgentSettlement, TxOperatorRevenueShare,
	TxSystemAdjustment,
}

func (t TransactionType) IsReversal() bool {
	return strings.HasSuffix(string(t), reversalSuffix)
}

// Base strips the reversal suffix.
func (t TransactionType) Base() TransactionType {
	return TransactionType(strings.TrimSuffix(string(t), reversalSuffix))
}

// Reversal returns the mirror type. Reversing a reversal is not a thing.
func (t TransactionType) Reversal() TransactionType {
	if t.IsReversal() {
		return t
	}
	return t + reversalSuffix
}

func (t TransactionType) IsValid() bool {
	base := t.Base()
	for _, b := range baseTransactionTypes {
		if b == base {
			return true
		}
	}
	return false
}

type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "pending"
	EntryStatusCompleted EntryStatus = "completed"
	EntryStatusReversed  EntryStatus = "reversed"
)

type ReferenceType string

const (
	ReferenceBet         ReferenceType = "bet"
	ReferenceTransaction ReferenceType = "transaction"
	ReferenceBonus       ReferenceType = "bonus"
	ReferenceSettlement  ReferenceType = "settlement"
	ReferenceEntry       ReferenceType = "ledger_entry"
)

type LedgerEntry struct {
	ID          uuid.UUID
	EntryNumber int64
	TenantID    uuid.UUID

	Debit  LedgerAccount
	Credit LedgerAccount

	Amount   decimal.Decimal
	Currency Currency

	DebitBalanceBefore  *decimal.Decimal
	DebitBalanceAfter   *decimal.Decimal
	CreditBalanceBefore *decimal.Decimal
	CreditBalanceAfter  *decimal.Decimal

	TransactionType TransactionType
	ReferenceType   *ReferenceType
	ReferenceID     *uuid.UUID
	ExternalRef     *string
	Description     string
	CreatedBy       uuid.UUID
	Metadata        json.RawMessage
	Status          EntryStatus

	ApprovedBy *uuid.UUID
	ApprovedAt *time.Time

	ReversedBy      *uuid.UUID
	ReversedAt      *time.Time
	ReversalReason  *string
	ReversalEntryID *uuid.UUID
	ReversesEntryID *uuid.UUID

	CreatedAt time.Time
}

// Touches reports whether the entry moved money in or out of the given wallet.
func (e *LedgerEntry) Touches(walletID uuid.UUID) bool {
	return (e.Debit.WalletID != nil && *e.Debit.WalletID == walletID) ||
		(e.Credit.WalletID != nil && *e.Credit.WalletID == walletID)
}
