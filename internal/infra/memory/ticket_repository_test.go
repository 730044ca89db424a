package memory

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"helpdesk_bot/internal/domain/ticket"

	"github.com/google/uuid"
)

func newStoredTicket(t *testing.T, repo *TicketRepository, requesterID int64, status ticket.Status, createdAt time.Time) *ticket.Ticket {
	t.Helper()
	tk := &ticket.Ticket{
		PublicID:    uuid.New(),
		DailyID:     1,
		RequesterID: requesterID,
		Source:      "tg",
		Status:      status,
		Priority:    ticket.PriorityNormal,
		CreatedAt:   createdAt,
	}
	first := &ticket.Message{SenderRole: ticket.SenderUser, ContentType: ticket.ContentText}
	if err := repo.Create(context.Background(), tk, first); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return tk
}

func TestTicketRepositoryCreateAssignsIDs(t *testing.T) {
	repo := NewTicketRepository()
	tk := newStoredTicket(t, repo, 1, ticket.StatusNew, time.Now())
	if tk.ID == 0 {
		t.Fatal("ticket ID not assigned")
	}

	msgs, err := repo.ListMessages(context.Background(), tk.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].TicketID != tk.ID {
		t.Fatalf("first message not stored with ticket: %+v", msgs)
	}
}

func TestTicketRepositoryActiveAndLatestLookups(t *testing.T) {
	repo := NewTicketRepository()
	base := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	closed := newStoredTicket(t, repo, 7, ticket.StatusClosed, base)
	open := newStoredTicket(t, repo, 7, ticket.StatusInProgress, base.Add(time.Hour))
	newer := newStoredTicket(t, repo, 7, ticket.StatusClosed, base.Add(2*time.Hour))
	_ = closed

	got, err := repo.GetActiveByRequester(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetActiveByRequester: %v", err)
	}
	if got.ID != open.ID {
		t.Errorf("active = #%d, want #%d", got.ID, open.ID)
	}

	got, err = repo.GetLatestByRequester(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetLatestByRequester: %v", err)
	}
	if got.ID != newer.ID {
		t.Errorf("latest = #%d, want #%d", got.ID, newer.ID)
	}

	if _, err := repo.GetActiveByRequester(context.Background(), 8); !errors.Is(err, ticket.ErrNotFound) {
		t.Errorf("unknown requester: err = %v, want ErrNotFound", err)
	}
}

func TestTicketRepositoryStaffMessageLookup(t *testing.T) {
	repo := NewTicketRepository()
	tk := newStoredTicket(t, repo, 1, ticket.StatusNew, time.Now())

	tk.StaffMessageID = sql.NullInt64{Int64: 555, Valid: true}
	if err := repo.Update(context.Background(), tk); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := repo.GetByStaffMessageID(context.Background(), 555)
	if err != nil {
		t.Fatalf("GetByStaffMessageID: %v", err)
	}
	if got.ID != tk.ID {
		t.Errorf("lookup returned #%d, want #%d", got.ID, tk.ID)
	}

	if _, err := repo.GetByStaffMessageID(context.Background(), 999); !errors.Is(err, ticket.ErrNotFound) {
		t.Errorf("unknown message: err = %v, want ErrNotFound", err)
	}
}

func TestTicketRepositoryUpdateUnknown(t *testing.T) {
	repo := NewTicketRepository()
	err := repo.Update(context.Background(), &ticket.Ticket{ID: 42})
	if !errors.Is(err, ticket.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestTicketRepositoryReturnsCopies(t *testing.T) {
	repo := NewTicketRepository()
	tk := newStoredTicket(t, repo, 1, ticket.StatusNew, time.Now())

	got, _ := repo.GetByID(context.Background(), tk.ID)
	got.Status = ticket.StatusClosed

	again, _ := repo.GetByID(context.Background(), tk.ID)
	if again.Status != ticket.StatusNew {
		t.Error("mutating a returned ticket must not affect the store")
	}
}

func TestTicketRepositoryListCreatedBetween(t *testing.T) {
	repo := NewTicketRepository()
	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	inside := newStoredTicket(t, repo, 1, ticket.StatusNew, day.Add(9*time.Hour))
	newStoredTicket(t, repo, 1, ticket.StatusNew, day.AddDate(0, 0, -1))
	newStoredTicket(t, repo, 1, ticket.StatusNew, day.AddDate(0, 0, 1))

	got, err := repo.ListCreatedBetween(context.Background(), day, day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("ListCreatedBetween: %v", err)
	}
	if len(got) != 1 || got[0].ID != inside.ID {
		t.Fatalf("window returned %d tickets, want exactly #%d", len(got), inside.ID)
	}
}
