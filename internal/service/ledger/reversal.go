package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/betting-ledger/internal/audit"
	"github.com/josh-kwaku/betting-ledger/internal/domain"
	"github.com/josh-kwaku/betting-ledger/internal/logging"
	"github.com/josh-kwaku/betting-ledger/internal/repository"
)

type ReverseRequest struct {
	EntryID    uuid.UUID
	Reason     string
	ReversedBy uuid.UUID
}

// ReverseEntry writes the mirror of an entry and marks the original reversed.
// The original row is never edited beyond its reversal markers.
func (e *Engine) ReverseEntry(ctx context.Context, req ReverseRequest) (*domain.LedgerEntry, error) {
	if req.Reason == "" {
		return nil, fmt.Errorf("ReverseEntry: reason required: %w", domain.ErrInvalidRequest)
	}

	var original, mirror *domain.LedgerEntry
	err := repository.InTx(ctx, e.db, nil, func(tx *sql.Tx) error {
		orig, err := e.entries.GetForUpdate(ctx, tx, req.EntryID)
		if err != nil {
			return err
		}
		if orig.Status == domain.EntryStatusReversed || orig.ReversalEntryID != nil {
			return domain.ErrAlreadyReversed
		}
		if orig.TransactionType.IsReversal() {
			return fmt.Errorf("entry %s is itself a reversal: %w", orig.ID, domain.ErrInvalidRequest)
		}

		ref := domain.ReferenceEntry
		origID := orig.ID
		mirror, err = e.CreateEntryTx(ctx, tx, EntryRequest{
			TenantID:      orig.TenantID,
			Debit:         orig.Credit,
			Credit:        orig.Debit,
			Amount:        orig.Amount,
			Currency:      orig.Currency,
			Type:          orig.TransactionType.Reversal(),
			ReferenceType: &ref,
			ReferenceID:   &origID,
			Description:   "Reversal: " + req.Reason,
			CreatedBy:     req.ReversedBy,
			Metadata: map[string]any{
				"reason":                req.Reason,
				"original_entry_number": orig.EntryNumber,
			},
			reverses: &origID,
		})
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := e.entries.MarkReversed(ctx, tx, orig.ID, req.ReversedBy, mirror.ID, req.Reason, now); err != nil {
			return err
		}
		orig.Status = domain.EntryStatusReversed
		orig.ReversedBy = &req.ReversedBy
		orig.ReversedAt = &now
		orig.ReversalReason = &req.Reason
		orig.ReversalEntryID = &mirror.ID
		original = orig
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ReverseEntry: %w", err)
	}

	e.Committed(ctx, mirror)
	e.metrics.LedgerReversals.WithLabelValues(string(original.TransactionType)).Inc()
	e.audit.Log(ctx, domain.Audit{
		Action:      audit.ActionEntryReversed,
		PerformedBy: req.ReversedBy,
		TenantID:    original.TenantID,
		TargetType:  "ledger_entry",
		TargetID:    original.ID,
		Details: map[string]any{
			"reason":            req.Reason,
			"reversal_entry_id": mirror.ID.String(),
			"amount":            original.Amount.String(),
			"transaction_type":  string(original.TransactionType),
		},
	})
	log := logging.FromContext(ctx)
	log.Info("ledger entry reversed",
		"entry_id", original.ID,
		"reversal_entry_id", mirror.ID,
		"reason", req.Reason,
	)
	if mirror.DebitBalanceAfter != nil && mirror.DebitBalanceAfter.IsNegative() {
		log.Warn("reversal left wallet negative",
			"wallet_id", *mirror.Debit.WalletID,
			"balance", *mirror.DebitBalanceAfter,
		)
	}
	return mirror, nil
}

// ApproveEntry completes a pending entry. Balances already moved when the entry
// was written; approval only releases it into reporting.
func (e *Engine) ApproveEntry(ctx context.Context, entryID, approvedBy uuid.UUID) (*domain.LedgerEntry, error) {
	var entry *domain.LedgerEntry
	err := repository.InTx(ctx, e.db, nil, func(tx *sql.Tx) error {
		var err error
		entry, err = e.entries.GetForUpdate(ctx, tx, entryID)
		if err != nil {
			return err
		}
		if entry.Status != domain.EntryStatusPending {
			return domain.ErrEntryNotPending
		}

		now := time.Now().UTC()
		if err := e.entries.MarkApproved(ctx, tx, entry.ID, approvedBy, now); err != nil {
			return err
		}
		entry.Status = domain.EntryStatusCompleted
		entry.ApprovedBy = &approvedBy
		entry.ApprovedAt = &now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ApproveEntry: %w", err)
	}

	e.metrics.LedgerApprovals.Inc()
	e.audit.Log(ctx, domain.Audit{
		Action:      audit.ActionEntryApproved,
		PerformedBy: approvedBy,
		TenantID:    entry.TenantID,
		TargetType:  "ledger_entry",
		TargetID:    entry.ID,
		Details: map[string]any{
			"amount":           entry.Amount.String(),
			"transaction_type": string(entry.TransactionType),
		},
	})
	logging.FromContext(ctx).Info("ledger entry approved", "entry_id", entry.ID, "approved_by", approvedBy)
	return entry, nil
}

func (e *Engine) GetEntry(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	entry, err := e.entries.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetEntry: %w", err)
	}
	return entry, nil
}
