// Package audit publishes a record of every settlement, reversal, manual
// override and event change. Publishing is best effort: a failure is logged and
// counted but never reaches the financial operation that triggered it.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/betting-ledger/internal/domain"
	"github.com/josh-kwaku/betting-ledger/internal/logging"
)

const (
	ActionEntryReversed      = "ledger.entry_reversed"
	ActionEntryApproved      = "ledger.entry_approved"
	ActionEventResulted      = "settlement.event_resulted"
	ActionEventCancelled     = "settlement.event_cancelled"
	ActionEventRetried       = "settlement.event_retried"
	ActionBetSettled         = "settlement.bet_settled"
	ActionBetManuallySettled = "settlement.bet_manual_override"
)

// Sink receives audit records. Implementations must not block on failure.
type Sink interface {
	Log(ctx context.Context, a domain.Audit)
}

// Record is the wire form of an audit entry.
type Record struct {
	ID          uuid.UUID      `json:"id"`
	Action      string         `json:"action"`
	PerformedBy uuid.UUID      `json:"performed_by"`
	TenantID    uuid.UUID      `json:"tenant_id"`
	TargetType  string         `json:"target_type"`
	TargetID    uuid.UUID      `json:"target_id"`
	Details     map[string]any `json:"details,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

func encode(a domain.Audit) ([]byte, error) {
	at := a.OccurredAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return json.Marshal(Record{
		ID:          uuid.New(),
		Action:      a.Action,
		PerformedBy: a.PerformedBy,
		TenantID:    a.TenantID,
		TargetType:  a.TargetType,
		TargetID:    a.TargetID,
		Details:     a.Details,
		OccurredAt:  at,
	})
}

// LogSink writes audit records to the context logger. It is the fallback when
// no broker is configured.
type LogSink struct{}

func (LogSink) Log(ctx context.Context, a domain.Audit) {
	logging.FromContext(ctx).Info("audit",
		"action", a.Action,
		"performed_by", a.PerformedBy,
		"tenant_id", a.TenantID,
		"target_type", a.TargetType,
		"target_id", a.TargetID,
		"details", a.Details,
	)
}

// Nop drops every record.
type Nop struct{}

func (Nop) Log(context.Context, domain.Audit) {}
