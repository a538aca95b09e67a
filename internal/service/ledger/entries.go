package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/betting-ledger/internal/domain"
)

type DepositRequest struct {
	TenantID    uuid.UUID
	WalletID    uuid.UUID
	Amount      decimal.Decimal
	ExternalRef *string
	Description string
	CreatedBy   uuid.UUID
	Metadata    map[string]any
}

type WithdrawalRequest = DepositRequest

// BetMoneyRequest moves stake or payout between a player wallet and the
// tenant's revenue account, inside the caller's transaction.
type BetMoneyRequest struct {
	TenantID       uuid.UUID
	BetID          uuid.UUID
	PlayerWalletID uuid.UUID
	Amount         decimal.Decimal
	Currency       domain.Currency
	CreatedBy      uuid.UUID
	Description    string
	Metadata       map[string]any
}

type BonusRequest struct {
	TenantID    uuid.UUID
	WalletID    uuid.UUID
	Amount      decimal.Decimal
	BonusID     *uuid.UUID
	Description string
	CreatedBy   uuid.UUID
}

// CommissionRequest pays an agent. When Rate is set, Amount is the base the
// rate applies to (e.g. the agent's turnover for the period).
type CommissionRequest struct {
	TenantID      uuid.UUID
	AgentWalletID uuid.UUID
	Amount        decimal.Decimal
	Rate          *decimal.Decimal
	Description   string
	CreatedBy     uuid.UUID
}

// AgentSettlementRequest moves money an agent collected back to the tenant.
type AgentSettlementRequest struct {
	TenantID      uuid.UUID
	AgentWalletID uuid.UUID
	Amount        decimal.Decimal
	Description   string
	CreatedBy     uuid.UUID
}

// RevenueShareRequest pays the operator its share. When Rate is set, Amount is
// the tenant revenue the rate applies to.
type RevenueShareRequest struct {
	TenantID    uuid.UUID
	OperatorID  uuid.UUID
	Amount      decimal.Decimal
	Rate        *decimal.Decimal
	Currency    domain.Currency
	Description string
	CreatedBy   uuid.UUID
}

// AdjustmentRequest corrects a wallet. A positive Amount credits the wallet,
// a negative one debits it.
type AdjustmentRequest struct {
	TenantID  uuid.UUID
	WalletID  uuid.UUID
	Amount    decimal.Decimal
	Reason    string
	CreatedBy uuid.UUID
}

func (e *Engine) Deposit(ctx context.Context, req DepositRequest) (*domain.LedgerEntry, error) {
	wallet, err := e.walletAccount(ctx, req.WalletID, "wallet")
	if err != nil {
		return nil, fmt.Errorf("Deposit: %w", err)
	}

	entry, err := e.CreateEntry(ctx, EntryRequest{
		TenantID:      req.TenantID,
		Debit:         systemAccount("payment gateway"),
		Credit:        wallet,
		Amount:        req.Amount,
		Type:          domain.TxDeposit,
		ReferenceType: refType(domain.ReferenceTransaction),
		ExternalRef:   req.ExternalRef,
		Description:   describe(req.Description, "Deposit"),
		CreatedBy:     req.CreatedBy,
		Metadata:      req.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("Deposit: %w", err)
	}
	return entry, nil
}

// Withdrawal debits the wallet. Amounts above the approval threshold are
// written pending and must be approved or reversed.
func (e *Engine) Withdrawal(ctx context.Context, req WithdrawalRequest) (*domain.LedgerEntry, error) {
	wallet, err := e.walletAccount(ctx, req.WalletID, "wallet")
	if err != nil {
		return nil, fmt.Errorf("Withdrawal: %w", err)
	}

	entry, err := e.CreateEntry(ctx, EntryRequest{
		TenantID:         req.TenantID,
		Debit:            wallet,
		Credit:           systemAccount("payment gateway"),
		Amount:           req.Amount,
		Type:             domain.TxWithdrawal,
		ReferenceType:    refType(domain.ReferenceTransaction),
		ExternalRef:      req.ExternalRef,
		Description:      describe(req.Description, "Withdrawal"),
		CreatedBy:        req.CreatedBy,
		Metadata:         req.Metadata,
		RequireFunds:     true,
		RequiresApproval: e.requiresApproval(req.Amount),
	})
	if err != nil {
		return nil, fmt.Errorf("Withdrawal: %w", err)
	}
	return entry, nil
}

func (e *Engine) requiresApproval(amount decimal.Decimal) bool {
	t := e.cfg.WithdrawalApprovalThreshold
	return t.IsPositive() && amount.GreaterThan(t)
}

// BetPlacement takes the stake from the player into tenant revenue.
func (e *Engine) BetPlacement(ctx context.Context, tx *sql.Tx, req BetMoneyRequest) (*domain.LedgerEntry, error) {
	revenue, err := e.revenueAccount(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("BetPlacement: %w", err)
	}

	entry, err := e.CreateEntryTx(ctx, tx, EntryRequest{
		TenantID:      req.TenantID,
		Debit:         playerAccount(req.PlayerWalletID),
		Credit:        revenue,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Type:          domain.TxBetPlacement,
		ReferenceType: refType(domain.ReferenceBet),
		ReferenceID:   &req.BetID,
		Description:   describe(req.Description, "Bet stake"),
		CreatedBy:     req.CreatedBy,
		Metadata:      req.Metadata,
		RequireFunds:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("BetPlacement: %w", err)
	}
	return entry, nil
}

// BetWinning credits a payout from tenant revenue to the player.
func (e *Engine) BetWinning(ctx context.Context, tx *sql.Tx, req BetMoneyRequest) (*domain.LedgerEntry, error) {
	entry, err := e.payPlayer(ctx, tx, req, domain.TxBetWinning, "Bet winnings")
	if err != nil {
		return nil, fmt.Errorf("BetWinning: %w", err)
	}
	return entry, nil
}

// BetRefund returns the stake of a voided bet.
func (e *Engine) BetRefund(ctx context.Context, tx *sql.Tx, req BetMoneyRequest) (*domain.LedgerEntry, error) {
	entry, err := e.payPlayer(ctx, tx, req, domain.TxBetRefund, "Bet refund")
	if err != nil {
		return nil, fmt.Errorf("BetRefund: %w", err)
	}
	return entry, nil
}

func (e *Engine) payPlayer(ctx context.Context, tx *sql.Tx, req BetMoneyRequest, t domain.TransactionType, desc string) (*domain.LedgerEntry, error) {
	revenue, err := e.revenueAccount(ctx, req)
	if err != nil {
		return nil, err
	}
	return e.CreateEntryTx(ctx, tx, EntryRequest{
		TenantID:      req.TenantID,
		Debit:         revenue,
		Credit:        playerAccount(req.PlayerWalletID),
		Amount:        req.Amount,
		Currency:      req.Currency,
		Type:          t,
		ReferenceType: refType(domain.ReferenceBet),
		ReferenceID:   &req.BetID,
		Description:   describe(req.Description, desc),
		CreatedBy:     req.CreatedBy,
		Metadata:      req.Metadata,
	})
}

func (e *Engine) revenueAccount(ctx context.Context, req BetMoneyRequest) (domain.LedgerAccount, error) {
	currency := req.Currency
	if currency == "" {
		currency = e.currencyOf(ctx, req.PlayerWalletID)
	}
	return e.tenantAccount(ctx, req.TenantID, domain.AccountKindRevenue, currency, "tenant revenue")
}

func (e *Engine) BonusCredit(ctx context.Context, req BonusRequest) (*domain.LedgerEntry, error) {
	wallet, err := e.walletAccount(ctx, req.WalletID, "wallet")
	if err != nil {
		return nil, fmt.Errorf("BonusCredit: %w", err)
	}
	pool, err := e.tenantAccount(ctx, req.TenantID, domain.AccountKindBonus, e.currencyOf(ctx, req.WalletID), "bonus pool")
	if err != nil {
		return nil, fmt.Errorf("BonusCredit: %w", err)
	}

	entry, err := e.CreateEntry(ctx, EntryRequest{
		TenantID:      req.TenantID,
		Debit:         pool,
		Credit:        wallet,
		Amount:        req.Amount,
		Type:          domain.TxBonusCredit,
		ReferenceType: refType(domain.ReferenceBonus),
		ReferenceID:   req.BonusID,
		Description:   describe(req.Description, "Bonus credit"),
		CreatedBy:     req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("BonusCredit: %w", err)
	}
	return entry, nil
}

func (e *Engine) AgentCommission(ctx context.Context, req CommissionRequest) (*domain.LedgerEntry, error) {
	agent, err := e.agentAccount(ctx, req.AgentWalletID)
	if err != nil {
		return nil, fmt.Errorf("AgentCommission: %w", err)
	}
	source, err := e.tenantAccount(ctx, req.TenantID, domain.AccountKindCommission, e.currencyOf(ctx, req.AgentWalletID), "agent commissions")
	if err != nil {
		return nil, fmt.Errorf("AgentCommission: %w", err)
	}

	amount, meta := applyRate(req.Amount, req.Rate)
	entry, err := e.CreateEntry(ctx, EntryRequest{
		TenantID:    req.TenantID,
		Debit:       source,
		Credit:      agent,
		Amount:      amount,
		Type:        domain.TxAgentCommission,
		Description: describe(req.Description, "Agent commission"),
		CreatedBy:   req.CreatedBy,
		Metadata:    meta,
	})
	if err != nil {
		return nil, fmt.Errorf("AgentCommission: %w", err)
	}
	return entry, nil
}

func (e *Engine) AgentSettlement(ctx context.Context, req AgentSettlementRequest) (*domain.LedgerEntry, error) {
	agent, err := e.agentAccount(ctx, req.AgentWalletID)
	if err != nil {
		return nil, fmt.Errorf("AgentSettlement: %w", err)
	}
	treasury, err := e.tenantAccount(ctx, req.TenantID, domain.AccountKindTenant, e.currencyOf(ctx, req.AgentWalletID), "tenant treasury")
	if err != nil {
		return nil, fmt.Errorf("AgentSettlement: %w", err)
	}

	entry, err := e.CreateEntry(ctx, EntryRequest{
		TenantID:      req.TenantID,
		Debit:         agent,
		Credit:        treasury,
		Amount:        req.Amount,
		Type:          domain.TxAgentSettlement,
		ReferenceType: refType(domain.ReferenceSettlement),
		Description:   describe(req.Description, "Agent settlement"),
		CreatedBy:     req.CreatedBy,
		RequireFunds:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("AgentSettlement: %w", err)
	}
	return entry, nil
}

func (e *Engine) OperatorRevenueShare(ctx context.Context, req RevenueShareRequest) (*domain.LedgerEntry, error) {
	if !req.Currency.IsValid() {
		return nil, fmt.Errorf("OperatorRevenueShare: %w", domain.ErrInvalidCurrency)
	}
	treasury, err := e.tenantAccount(ctx, req.TenantID, domain.AccountKindTenant, req.Currency, "tenant treasury")
	if err != nil {
		return nil, fmt.Errorf("OperatorRevenueShare: %w", err)
	}
	operator, err := e.tenantAccount(ctx, req.OperatorID, domain.AccountKindOperator, req.Currency, "operator revenue share")
	if err != nil {
		return nil, fmt.Errorf("OperatorRevenueShare: %w", err)
	}

	amount, meta := applyRate(req.Amount, req.Rate)
	entry, err := e.CreateEntry(ctx, EntryRequest{
		TenantID:    req.TenantID,
		Debit:       treasury,
		Credit:      operator,
		Amount:      amount,
		Currency:    req.Currency,
		Type:        domain.TxOperatorRevenueShare,
		Description: describe(req.Description, "Operator revenue share"),
		CreatedBy:   req.CreatedBy,
		Metadata:    meta,
	})
	if err != nil {
		return nil, fmt.Errorf("OperatorRevenueShare: %w", err)
	}
	return entry, nil
}

func (e *Engine) SystemAdjustment(ctx context.Context, req AdjustmentRequest) (*domain.LedgerEntry, error) {
	if req.Amount.IsZero() {
		return nil, fmt.Errorf("SystemAdjustment: %w", domain.ErrInvalidAmount)
	}
	if req.Reason == "" {
		return nil, fmt.Errorf("SystemAdjustment: reason required: %w", domain.ErrInvalidRequest)
	}
	wallet, err := e.walletAccount(ctx, req.WalletID, "wallet")
	if err != nil {
		return nil, fmt.Errorf("SystemAdjustment: %w", err)
	}

	debit, credit := systemAccount("manual adjustment"), wallet
	if req.Amount.IsNegative() {
		debit, credit = wallet, debit
	}

	entry, err := e.CreateEntry(ctx, EntryRequest{
		TenantID:    req.TenantID,
		Debit:       debit,
		Credit:      credit,
		Amount:      req.Amount.Abs(),
		Type:        domain.TxSystemAdjustment,
		Description: "Adjustment: " + req.Reason,
		CreatedBy:   req.CreatedBy,
		Metadata:    map[string]any{"reason": req.Reason},
	})
	if err != nil {
		return nil, fmt.Errorf("SystemAdjustment: %w", err)
	}
	return entry, nil
}

func (e *Engine) walletAccount(ctx context.Context, walletID uuid.UUID, label string) (domain.LedgerAccount, error) {
	w, err := e.wallets.GetByID(ctx, walletID)
	if err != nil {
		return domain.LedgerAccount{}, err
	}
	return w.Account(label), nil
}

func (e *Engine) agentAccount(ctx context.Context, walletID uuid.UUID) (domain.LedgerAccount, error) {
	acct, err := e.walletAccount(ctx, walletID, "agent wallet")
	if err != nil {
		return domain.LedgerAccount{}, err
	}
	if acct.Kind != domain.AccountKindAgent {
		return domain.LedgerAccount{}, fmt.Errorf("wallet %s is a %s wallet: %w", walletID, acct.Kind, domain.ErrInvalidAccount)
	}
	return acct, nil
}

// tenantAccount resolves an owner's account of the given kind. Owners without a
// wallet of that kind get a boundary account that carries no balance.
func (e *Engine) tenantAccount(ctx context.Context, ownerID uuid.UUID, kind domain.AccountKind, currency domain.Currency, label string) (domain.LedgerAccount, error) {
	if currency != "" {
		w, err := e.wallets.GetByOwner(ctx, ownerID, kind, currency)
		if err == nil {
			return w.Account(label), nil
		}
		if !errors.Is(err, domain.ErrWalletNotFound) {
			return domain.LedgerAccount{}, err
		}
	}
	owner := ownerID
	return domain.LedgerAccount{Kind: kind, UserID: &owner, Label: label}, nil
}

// currencyOf is best effort; an unknown wallet surfaces later as not found.
func (e *Engine) currencyOf(ctx context.Context, walletID uuid.UUID) domain.Currency {
	w, err := e.wallets.GetByID(ctx, walletID)
	if err != nil {
		return ""
	}
	return w.Currency
}

func playerAccount(walletID uuid.UUID) domain.LedgerAccount {
	id := walletID
	return domain.LedgerAccount{Kind: domain.AccountKindPlayer, WalletID: &id, Label: "player wallet"}
}

func systemAccount(label string) domain.LedgerAccount {
	return domain.LedgerAccount{Kind: domain.AccountKindSystem, Label: label}
}

func refType(t domain.ReferenceType) *domain.ReferenceType { return &t }

func describe(given, fallback string) string {
	if given != "" {
		return given
	}
	return fallback
}

func applyRate(amount decimal.Decimal, rate *decimal.Decimal) (decimal.Decimal, map[string]any) {
	if rate == nil {
		return amount, nil
	}
	return amount.Mul(*rate).Round(2), map[string]any{
		"base": amount.String(),
		"rate": rate.String(),
	}
}
