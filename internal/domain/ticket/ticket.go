package ticket

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a ticket.
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusClosed     Status = "closed"
)

// Priority is assigned automatically at creation by the keyword classifier.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// UpdateOutcome reports what a user message did to an existing ticket, so the
// calling layer can pick user-facing copy without re-deriving lifecycle logic.
type UpdateOutcome string

const (
	OutcomeAdded     UpdateOutcome = "ADDED"
	OutcomeGratitude UpdateOutcome = "GRATITUDE"
	OutcomeReopened  UpdateOutcome = "REOPENED"
)

// Ticket is a single support request.
// DailyID is unique only within the creation calendar date; PublicID is the
// globally unique identifier. StaffMessageID is the Telegram message ID of the
// latest staff-chat notification, used to correlate staff replies back to the
// ticket. Owned by the ticket service; mutated only through its operations.
type Ticket struct {
	ID              int64
	PublicID        uuid.UUID
	DailyID         int
	RequesterID     int64 // Foreign key to users.id
	Category        sql.NullString
	Source          string // e.g. "tg"
	QuestionText    sql.NullString
	Summary         sql.NullString
	Status          Status
	Priority        Priority
	Rating          sql.NullInt16 // 1..5, set once by the requester after close
	AssignedTo      sql.NullInt64 // Staff Telegram ID
	StaffMessageID  sql.NullInt64
	CreatedAt       time.Time
	FirstResponseAt sql.NullTime // SLA metric, set on the first staff reply only
	ClosedAt        sql.NullTime
}

// Open reports whether the ticket still accepts staff replies.
func (t *Ticket) Open() bool {
	return t.Status == StatusNew || t.Status == StatusInProgress
}
