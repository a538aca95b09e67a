package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventStatus string

const (
	EventStatusScheduled EventStatus = "scheduled"
	EventStatusLive      EventStatus = "live"
	EventStatusFinished  EventStatus = "finished"
	EventStatusCancelled EventStatus = "cancelled"
)

type Event struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	HomeTeam      string
	AwayTeam      string
	HomeScore     *int
	AwayScore     *int
	Status        EventStatus
	IsBettingOpen bool
	StartsAt      time.Time
	FinishedAt    *time.Time
	CreatedAt     time.Time
}

// AcceptsBets reports whether new selections may reference the event.
func (e *Event) AcceptsBets() bool {
	return e.IsBettingOpen &&
		e.Status != EventStatusFinished &&
		e.Status != EventStatusCancelled
}

type Score struct {
	Home int
	Away int
}

func (s Score) Total() int { return s.Home + s.Away }

// Audit is the record handed to the audit sink for every settlement, reversal,
// manual override and event change.
type Audit struct {
	Action      string
	PerformedBy uuid.UUID
	TenantID    uuid.UUID
	TargetType  string
	TargetID    uuid.UUID
	Details     map[string]any
	OccurredAt  time.Time
}
