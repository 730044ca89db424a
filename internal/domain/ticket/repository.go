package ticket

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned by repository lookups that match no ticket.
var ErrNotFound = errors.New("ticket not found")

// DailyCounter holds the last issued daily ticket number for one calendar
// date. Rows are created lazily on the first ticket of a day and never
// deleted. Gaps in issued numbers are tolerated; duplicates are not.
type DailyCounter struct {
	Date    time.Time
	Counter int
}

// Allocator issues per-calendar-day ticket numbers. Next is safe for
// concurrent callers: a number is never issued twice for the same date, and
// the internal insert/lock race is absorbed without surfacing to the caller.
type Allocator interface {
	Next(ctx context.Context, day time.Time) (int, error)
}

// DayStats aggregates ticket activity for one reporting window.
type DayStats struct {
	Created            int
	Closed             int
	ByPriority         map[Priority]int
	AvgResponseMinutes sql.NullFloat64
	AvgRating          sql.NullFloat64
}

// Repository defines persistence operations for tickets and their messages.
// Create persists the ticket together with its first message in a single
// transaction.
type Repository interface {
	Create(ctx context.Context, t *Ticket, first *Message) error
	GetByID(ctx context.Context, id int64) (*Ticket, error)
	GetActiveByRequester(ctx context.Context, requesterID int64) (*Ticket, error)
	GetLatestByRequester(ctx context.Context, requesterID int64) (*Ticket, error)
	GetByStaffMessageID(ctx context.Context, messageID int64) (*Ticket, error)
	Update(ctx context.Context, t *Ticket) error

	AppendMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context, ticketID int64) ([]*Message, error)

	ListRecentByRequester(ctx context.Context, requesterID int64, limit int) ([]*Ticket, error)
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]*Ticket, error)
	Stats(ctx context.Context, from, to time.Time) (*DayStats, error)
}
