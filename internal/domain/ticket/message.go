package ticket

import (
	"database/sql"
	"time"
)

// SenderRole distinguishes requester messages from staff messages.
type SenderRole string

const (
	SenderUser  SenderRole = "user"
	SenderStaff SenderRole = "staff"
)

// ContentType is the kind of payload carried by a message.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentPhoto    ContentType = "photo"
	ContentDocument ContentType = "document"
)

// Message is one entry in a ticket's conversation history. Messages are
// append-only: never edited or deleted. Text may be empty for media-only
// messages.
type Message struct {
	ID          int64
	TicketID    int64
	SenderRole  SenderRole
	Text        sql.NullString
	ContentType ContentType
	MediaRef    sql.NullString
	CreatedAt   time.Time
}
