package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"helpdesk_bot/internal/domain/ticket"
)

const ticketColumns = `id, public_id, daily_id, requester_id, category, source, question_text,
	summary, status, priority, rating, assigned_to, staff_message_id,
	created_at, first_response_at, closed_at`

type PostgresTicketRepository struct {
	db *sql.DB
}

func NewPostgresTicketRepository(db *sql.DB) *PostgresTicketRepository {
	return &PostgresTicketRepository{db: db}
}

// Create persists the ticket and its first message in a single transaction.
func (r *PostgresTicketRepository) Create(ctx context.Context, t *ticket.Ticket, first *ticket.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin ticket create transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO tickets (public_id, daily_id, requester_id, category, source,
                question_text, status, priority)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
              RETURNING id, created_at`
	err = tx.QueryRowContext(ctx, query,
		t.PublicID, t.DailyID, t.RequesterID, t.Category, t.Source,
		t.QuestionText, t.Status, t.Priority,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating ticket: %w", err)
	}

	first.TicketID = t.ID
	err = tx.QueryRowContext(ctx,
		`INSERT INTO messages (ticket_id, sender_role, text, content_type, media_ref)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING id, created_at`,
		first.TicketID, first.SenderRole, first.Text, first.ContentType, first.MediaRef,
	).Scan(&first.ID, &first.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating first ticket message: %w", err)
	}

	return tx.Commit()
}

func (r *PostgresTicketRepository) GetByID(ctx context.Context, id int64) (*ticket.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id), "error getting ticket by ID")
}

func (r *PostgresTicketRepository) GetActiveByRequester(ctx context.Context, requesterID int64) (*ticket.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
              WHERE requester_id = $1 AND status IN ('new', 'in_progress')
              ORDER BY created_at DESC LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, requesterID), "error getting active ticket")
}

func (r *PostgresTicketRepository) GetLatestByRequester(ctx context.Context, requesterID int64) (*ticket.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
              WHERE requester_id = $1 ORDER BY created_at DESC LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, requesterID), "error getting latest ticket")
}

func (r *PostgresTicketRepository) GetByStaffMessageID(ctx context.Context, messageID int64) (*ticket.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE staff_message_id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, messageID), "error getting ticket by staff message")
}

func (r *PostgresTicketRepository) Update(ctx context.Context, t *ticket.Ticket) error {
	query := `UPDATE tickets
              SET category = $1, summary = $2, status = $3, priority = $4, rating = $5,
                  assigned_to = $6, staff_message_id = $7, first_response_at = $8, closed_at = $9
              WHERE id = $10`
	res, err := r.db.ExecContext(ctx, query,
		t.Category, t.Summary, t.Status, t.Priority, t.Rating,
		t.AssignedTo, t.StaffMessageID, t.FirstResponseAt, t.ClosedAt, t.ID)
	if err != nil {
		return fmt.Errorf("error updating ticket: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking ticket update result: %w", err)
	}
	if affected == 0 {
		return ticket.ErrNotFound
	}
	return nil
}

func (r *PostgresTicketRepository) AppendMessage(ctx context.Context, m *ticket.Message) error {
	query := `INSERT INTO messages (ticket_id, sender_role, text, content_type, media_ref)
              VALUES ($1, $2, $3, $4, $5)
              RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		m.TicketID, m.SenderRole, m.Text, m.ContentType, m.MediaRef,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("error appending message: %w", err)
	}
	return nil
}

func (r *PostgresTicketRepository) ListMessages(ctx context.Context, ticketID int64) ([]*ticket.Message, error) {
	query := `SELECT id, ticket_id, sender_role, text, content_type, media_ref, created_at
              FROM messages WHERE ticket_id = $1 ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("error listing messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*ticket.Message, 0)
	for rows.Next() {
		m := &ticket.Message{}
		if err := rows.Scan(&m.ID, &m.TicketID, &m.SenderRole, &m.Text, &m.ContentType, &m.MediaRef, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning message: %w", err)
		}
		messages = append(messages, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

func (r *PostgresTicketRepository) ListRecentByRequester(ctx context.Context, requesterID int64, limit int) ([]*ticket.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
              WHERE requester_id = $1 ORDER BY created_at DESC LIMIT $2`
	return r.list(ctx, query, requesterID, limit)
}

func (r *PostgresTicketRepository) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]*ticket.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
              WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at`
	return r.list(ctx, query, from, to)
}

// Stats aggregates the reporting window in SQL so the digest stays a handful
// of scalar queries instead of a full table scan in Go.
func (r *PostgresTicketRepository) Stats(ctx context.Context, from, to time.Time) (*ticket.DayStats, error) {
	stats := &ticket.DayStats{ByPriority: make(map[ticket.Priority]int)}

	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tickets WHERE created_at >= $1 AND created_at < $2`,
		from, to).Scan(&stats.Created)
	if err != nil {
		return nil, fmt.Errorf("error counting created tickets: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tickets WHERE closed_at >= $1 AND closed_at < $2`,
		from, to).Scan(&stats.Closed)
	if err != nil {
		return nil, fmt.Errorf("error counting closed tickets: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT priority, COUNT(*) FROM tickets
         WHERE created_at >= $1 AND created_at < $2 GROUP BY priority`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("error grouping tickets by priority: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p ticket.Priority
		var n int
		if err := rows.Scan(&p, &n); err != nil {
			return nil, fmt.Errorf("error scanning priority group: %w", err)
		}
		stats.ByPriority[p] = n
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating priority groups: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT AVG(EXTRACT(EPOCH FROM (first_response_at - created_at)) / 60)
         FROM tickets
         WHERE created_at >= $1 AND created_at < $2 AND first_response_at IS NOT NULL`,
		from, to).Scan(&stats.AvgResponseMinutes)
	if err != nil {
		return nil, fmt.Errorf("error computing average response time: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT AVG(rating) FROM tickets
         WHERE closed_at >= $1 AND closed_at < $2 AND rating IS NOT NULL`,
		from, to).Scan(&stats.AvgRating)
	if err != nil {
		return nil, fmt.Errorf("error computing average rating: %w", err)
	}

	return stats, nil
}

func (r *PostgresTicketRepository) list(ctx context.Context, query string, args ...any) ([]*ticket.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing tickets: %w", err)
	}
	defer rows.Close()

	tickets := make([]*ticket.Ticket, 0)
	for rows.Next() {
		t := &ticket.Ticket{}
		if err := scanTicket(rows, t); err != nil {
			return nil, fmt.Errorf("error scanning ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickets: %w", err)
	}
	return tickets, nil
}

func (r *PostgresTicketRepository) scanOne(row *sql.Row, errContext string) (*ticket.Ticket, error) {
	t := &ticket.Ticket{}
	if err := scanTicket(row, t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ticket.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", errContext, err)
	}
	return t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner, t *ticket.Ticket) error {
	return row.Scan(
		&t.ID, &t.PublicID, &t.DailyID, &t.RequesterID, &t.Category, &t.Source,
		&t.QuestionText, &t.Summary, &t.Status, &t.Priority, &t.Rating,
		&t.AssignedTo, &t.StaffMessageID, &t.CreatedAt, &t.FirstResponseAt, &t.ClosedAt,
	)
}
