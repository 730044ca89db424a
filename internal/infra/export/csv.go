package export

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"helpdesk_bot/internal/domain/ticket"
	"helpdesk_bot/internal/notify"
)

var reportHeader = []string{
	"id", "daily_id", "created_at", "requester", "category", "priority",
	"status", "question", "summary", "rating", "first_response_at", "closed_at",
}

// Report renders tickets as a CSV document. Every cell passes through the
// formula-injection guard so the file is safe to open in spreadsheet software.
func Report(tickets []*ticket.Ticket, requesterName func(id int64) string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(reportHeader); err != nil {
		return nil, fmt.Errorf("error writing CSV header: %w", err)
	}
	for _, t := range tickets {
		if err := w.Write(notify.GuardRow(ticketRow(t, requesterName))); err != nil {
			return nil, fmt.Errorf("error writing CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("error flushing CSV report: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename returns the report file name for the given day.
func Filename(day time.Time) string {
	return "tickets_" + day.Format("2006-01-02") + ".csv"
}

func ticketRow(t *ticket.Ticket, requesterName func(id int64) string) []string {
	name := ""
	if requesterName != nil {
		name = requesterName(t.RequesterID)
	}
	return []string{
		strconv.FormatInt(t.ID, 10),
		strconv.Itoa(t.DailyID),
		t.CreatedAt.Format(time.RFC3339),
		name,
		t.Category.String,
		string(t.Priority),
		string(t.Status),
		t.QuestionText.String,
		t.Summary.String,
		nullInt16String(t.Rating),
		nullTimeString(t.FirstResponseAt),
		nullTimeString(t.ClosedAt),
	}
}

func nullInt16String(v sql.NullInt16) string {
	if !v.Valid {
		return ""
	}
	return strconv.Itoa(int(v.Int16))
}

func nullTimeString(v sql.NullTime) string {
	if !v.Valid {
		return ""
	}
	return v.Time.Format(time.RFC3339)
}
