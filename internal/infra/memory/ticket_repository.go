package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"helpdesk_bot/internal/domain/ticket"
)

// TicketRepository is an in-memory ticket.Repository. It mirrors the
// PostgreSQL implementation's semantics closely enough for the service layer
// to run unchanged against it.
type TicketRepository struct {
	mu       sync.RWMutex
	tickets  map[int64]*ticket.Ticket
	messages map[int64][]*ticket.Message
	nextID   int64
	nextMsg  int64
}

func NewTicketRepository() *TicketRepository {
	return &TicketRepository{
		tickets:  make(map[int64]*ticket.Ticket),
		messages: make(map[int64][]*ticket.Message),
		nextID:   1,
		nextMsg:  1,
	}
}

func (r *TicketRepository) Create(_ context.Context, t *ticket.Ticket, first *ticket.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t.ID = r.nextID
	r.nextID++
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	stored := *t
	r.tickets[t.ID] = &stored

	first.ID = r.nextMsg
	r.nextMsg++
	first.TicketID = t.ID
	if first.CreatedAt.IsZero() {
		first.CreatedAt = time.Now()
	}
	msg := *first
	r.messages[t.ID] = append(r.messages[t.ID], &msg)
	return nil
}

func (r *TicketRepository) GetByID(_ context.Context, id int64) (*ticket.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tickets[id]
	if !ok {
		return nil, ticket.ErrNotFound
	}
	out := *t
	return &out, nil
}

func (r *TicketRepository) GetActiveByRequester(_ context.Context, requesterID int64) (*ticket.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latestMatching(requesterID, func(t *ticket.Ticket) bool { return t.Open() })
}

func (r *TicketRepository) GetLatestByRequester(_ context.Context, requesterID int64) (*ticket.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latestMatching(requesterID, func(*ticket.Ticket) bool { return true })
}

func (r *TicketRepository) latestMatching(requesterID int64, match func(*ticket.Ticket) bool) (*ticket.Ticket, error) {
	var latest *ticket.Ticket
	for _, t := range r.tickets {
		if t.RequesterID != requesterID || !match(t) {
			continue
		}
		if latest == nil || t.CreatedAt.After(latest.CreatedAt) ||
			(t.CreatedAt.Equal(latest.CreatedAt) && t.ID > latest.ID) {
			latest = t
		}
	}
	if latest == nil {
		return nil, ticket.ErrNotFound
	}
	out := *latest
	return &out, nil
}

func (r *TicketRepository) GetByStaffMessageID(_ context.Context, messageID int64) (*ticket.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.tickets {
		if t.StaffMessageID.Valid && t.StaffMessageID.Int64 == messageID {
			out := *t
			return &out, nil
		}
	}
	return nil, ticket.ErrNotFound
}

func (r *TicketRepository) Update(_ context.Context, t *ticket.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tickets[t.ID]; !ok {
		return ticket.ErrNotFound
	}
	stored := *t
	r.tickets[t.ID] = &stored
	return nil
}

func (r *TicketRepository) AppendMessage(_ context.Context, m *ticket.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tickets[m.TicketID]; !ok {
		return ticket.ErrNotFound
	}
	m.ID = r.nextMsg
	r.nextMsg++
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	msg := *m
	r.messages[m.TicketID] = append(r.messages[m.TicketID], &msg)
	return nil
}

func (r *TicketRepository) ListMessages(_ context.Context, ticketID int64) ([]*ticket.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ticket.Message, 0, len(r.messages[ticketID]))
	for _, m := range r.messages[ticketID] {
		msg := *m
		out = append(out, &msg)
	}
	return out, nil
}

func (r *TicketRepository) ListRecentByRequester(_ context.Context, requesterID int64, limit int) ([]*ticket.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*ticket.Ticket, 0)
	for _, t := range r.tickets {
		if t.RequesterID == requesterID {
			matched = append(matched, t)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]*ticket.Ticket, 0, len(matched))
	for _, t := range matched {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (r *TicketRepository) ListCreatedBetween(_ context.Context, from, to time.Time) ([]*ticket.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*ticket.Ticket, 0)
	for _, t := range r.tickets {
		if !t.CreatedAt.Before(from) && t.CreatedAt.Before(to) {
			cp := *t
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return matched, nil
}

func (r *TicketRepository) Stats(_ context.Context, from, to time.Time) (*ticket.DayStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &ticket.DayStats{ByPriority: make(map[ticket.Priority]int)}
	var responseSum float64
	var responseN int
	var ratingSum float64
	var ratingN int

	for _, t := range r.tickets {
		if !t.CreatedAt.Before(from) && t.CreatedAt.Before(to) {
			stats.Created++
			stats.ByPriority[t.Priority]++
			if t.FirstResponseAt.Valid {
				responseSum += t.FirstResponseAt.Time.Sub(t.CreatedAt).Minutes()
				responseN++
			}
		}
		if t.ClosedAt.Valid && !t.ClosedAt.Time.Before(from) && t.ClosedAt.Time.Before(to) {
			stats.Closed++
			if t.Rating.Valid {
				ratingSum += float64(t.Rating.Int16)
				ratingN++
			}
		}
	}
	if responseN > 0 {
		stats.AvgResponseMinutes.Valid = true
		stats.AvgResponseMinutes.Float64 = responseSum / float64(responseN)
	}
	if ratingN > 0 {
		stats.AvgRating.Valid = true
		stats.AvgRating.Float64 = ratingSum / float64(ratingN)
	}
	return stats, nil
}
