package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"helpdesk_bot/internal/domain/ticket"
	"helpdesk_bot/internal/domain/user"
	"helpdesk_bot/internal/infra/memory"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const testStaffChatID int64 = -100500

type sentMessage struct {
	ChatID int64
	Text   string
	Opts   *telebot.SendOptions
}

type fakeTelegram struct {
	sent     []sentMessage
	nextID   int
	failSend bool
}

func (f *fakeTelegram) SendMessage(chatID int64, text string, opts *telebot.SendOptions) (int, error) {
	if f.failSend {
		return 0, errors.New("telegram unavailable")
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text, Opts: opts})
	return f.nextID, nil
}

func (f *fakeTelegram) SendDocument(chatID int64, filename string, payload []byte, caption string) (int, error) {
	if f.failSend {
		return 0, errors.New("telegram unavailable")
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: caption})
	return f.nextID, nil
}

func (f *fakeTelegram) staffMessages() []sentMessage {
	var out []sentMessage
	for _, m := range f.sent {
		if m.ChatID == testStaffChatID {
			out = append(out, m)
		}
	}
	return out
}

type fakeSummarizer struct {
	text string
	err  error
}

func (f *fakeSummarizer) Summarize(context.Context, string) (string, error) {
	return f.text, f.err
}

type serviceFixture struct {
	service    *TicketService
	tickets    *memory.TicketRepository
	users      *memory.UserRepository
	telegram   *fakeTelegram
	summarizer *fakeSummarizer
	requester  *user.User
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	f := &serviceFixture{
		tickets:    memory.NewTicketRepository(),
		users:      memory.NewUserRepository(),
		telegram:   &fakeTelegram{},
		summarizer: &fakeSummarizer{text: "Вопрос о пропуске, решён."},
	}
	f.service = NewTicketService(
		f.tickets, f.users, memory.NewDailyIDAllocator(), f.summarizer, f.telegram,
		nil, nil, testStaffChatID, logrus.NewEntry(log),
	)

	f.requester = &user.User{Source: "tg", ExternalID: 777}
	if err := f.users.Create(context.Background(), f.requester); err != nil {
		t.Fatalf("create requester: %v", err)
	}
	return f
}

func (f *serviceFixture) createTicket(t *testing.T, text string) *ticket.Ticket {
	t.Helper()
	res, err := f.service.Create(context.Background(), f.requester, Content{Text: text}, "")
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return res.Ticket
}

func (f *serviceFixture) closeTicket(t *testing.T, id int64) *ticket.Ticket {
	t.Helper()
	closed, _, err := f.service.StaffReply(context.Background(), id, Content{Text: "Готово."}, true)
	if err != nil {
		t.Fatalf("close ticket: %v", err)
	}
	return closed
}

func TestCreateAllocatesDailyIDAndNotifiesStaff(t *testing.T) {
	f := newServiceFixture(t)

	res, err := f.service.Create(context.Background(), f.requester, Content{Text: "срочно, не могу войти"}, "IT")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	tk := res.Ticket
	if tk.ID == 0 || tk.DailyID != 1 {
		t.Errorf("unexpected identifiers: ID=%d DailyID=%d", tk.ID, tk.DailyID)
	}
	if tk.Status != ticket.StatusNew {
		t.Errorf("status = %s, want %s", tk.Status, ticket.StatusNew)
	}
	if tk.Priority != ticket.PriorityUrgent {
		t.Errorf("priority = %s, want %s", tk.Priority, ticket.PriorityUrgent)
	}
	if !res.StaffNotify.Delivered {
		t.Fatalf("staff notification not delivered: %v", res.StaffNotify.Err)
	}
	if !tk.StaffMessageID.Valid || int(tk.StaffMessageID.Int64) != res.StaffNotify.MessageID {
		t.Errorf("staff message reference not stored: %+v", tk.StaffMessageID)
	}

	staff := f.telegram.staffMessages()
	if len(staff) != 1 {
		t.Fatalf("staff messages = %d, want 1", len(staff))
	}
	if !strings.Contains(staff[0].Text, fmt.Sprintf("ID: #%d", tk.ID)) {
		t.Errorf("staff notification missing ticket reference:\n%s", staff[0].Text)
	}

	second := f.createTicket(t, "ещё одна заявка")
	if second.DailyID != 2 {
		t.Errorf("second DailyID = %d, want 2", second.DailyID)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newServiceFixture(t)

	if _, err := f.service.Create(context.Background(), f.requester, Content{Text: "   "}, ""); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("blank text: err = %v, want ErrEmptyMessage", err)
	}
	long := strings.Repeat("ж", MaxQuestionRunes+1)
	if _, err := f.service.Create(context.Background(), f.requester, Content{Text: long}, ""); !errors.Is(err, ErrMessageTooLong) {
		t.Errorf("overlong text: err = %v, want ErrMessageTooLong", err)
	}

	// Media-only content is valid.
	res, err := f.service.Create(context.Background(), f.requester,
		Content{ContentType: ticket.ContentPhoto, MediaRef: "file123"}, "")
	if err != nil {
		t.Fatalf("media-only create: %v", err)
	}
	if res.Ticket.QuestionText.Valid {
		t.Error("media-only ticket should have no question text")
	}
}

func TestCreateNotificationFailureDoesNotAffectTicket(t *testing.T) {
	f := newServiceFixture(t)
	f.telegram.failSend = true

	res, err := f.service.Create(context.Background(), f.requester, Content{Text: "вопрос по оплате"}, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res.StaffNotify.Delivered || res.StaffNotify.Err == nil {
		t.Errorf("expected failed notification, got %+v", res.StaffNotify)
	}
	stored, err := f.tickets.GetByID(context.Background(), res.Ticket.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.StaffMessageID.Valid {
		t.Error("staff message reference must not be stored on send failure")
	}
}

func TestStaffReplySetsFirstResponseOnce(t *testing.T) {
	f := newServiceFixture(t)
	tk := f.createTicket(t, "как получить справку")

	replied, _, err := f.service.StaffReply(context.Background(), tk.ID, Content{Text: "Справка в деканате."}, false)
	if err != nil {
		t.Fatalf("StaffReply: %v", err)
	}
	if replied.Status != ticket.StatusInProgress {
		t.Errorf("status = %s, want %s", replied.Status, ticket.StatusInProgress)
	}
	if !replied.FirstResponseAt.Valid {
		t.Fatal("first response timestamp not set")
	}
	firstStamp := replied.FirstResponseAt.Time

	replied, _, err = f.service.StaffReply(context.Background(), tk.ID, Content{Text: "Ещё уточнение."}, false)
	if err != nil {
		t.Fatalf("second StaffReply: %v", err)
	}
	if !replied.FirstResponseAt.Time.Equal(firstStamp) {
		t.Error("first response timestamp must not change on later replies")
	}

	// The requester got both replies in their direct chat.
	var userMsgs int
	for _, m := range f.telegram.sent {
		if m.ChatID == f.requester.ExternalID {
			userMsgs++
		}
	}
	if userMsgs != 2 {
		t.Errorf("requester messages = %d, want 2", userMsgs)
	}
}

func TestStaffReplyCloseSummarizes(t *testing.T) {
	f := newServiceFixture(t)
	tk := f.createTicket(t, "потерял пропуск")

	closed := f.closeTicket(t, tk.ID)
	if closed.Status != ticket.StatusClosed || !closed.ClosedAt.Valid {
		t.Fatalf("ticket not closed: status=%s closedAt=%+v", closed.Status, closed.ClosedAt)
	}
	if closed.Summary.String != "Вопрос о пропуске, решён." {
		t.Errorf("summary = %q", closed.Summary.String)
	}

	// The requester-facing reply carries the rating prompt.
	last := f.telegram.sent[len(f.telegram.sent)-1]
	if last.ChatID != f.requester.ExternalID {
		t.Fatalf("last message went to chat %d", last.ChatID)
	}
	if !strings.Contains(last.Text, "Заявка закрыта") {
		t.Errorf("close notice missing:\n%s", last.Text)
	}
	if last.Opts == nil || last.Opts.ReplyMarkup == nil {
		t.Error("rating keyboard missing on close notification")
	}

	if _, _, err := f.service.StaffReply(context.Background(), tk.ID, Content{Text: "ещё"}, false); !errors.Is(err, ErrTicketClosed) {
		t.Errorf("reply to closed ticket: err = %v, want ErrTicketClosed", err)
	}
}

func TestStaffReplyCloseSummarizerFailureUsesPlaceholder(t *testing.T) {
	f := newServiceFixture(t)
	f.summarizer.err = errors.New("llm down")
	tk := f.createTicket(t, "вопрос")

	closed := f.closeTicket(t, tk.ID)
	if closed.Summary.String != summaryPlaceholder {
		t.Errorf("summary = %q, want placeholder", closed.Summary.String)
	}
	if closed.Status != ticket.StatusClosed {
		t.Errorf("summarizer failure must not block closing, status = %s", closed.Status)
	}
}

func TestUserMessageOnOpenTicketNotifiesStaff(t *testing.T) {
	f := newServiceFixture(t)
	tk := f.createTicket(t, "первое сообщение")
	staffBefore := len(f.telegram.staffMessages())

	outcome, res, err := f.service.UserMessage(context.Background(), f.requester, tk, Content{Text: "дополняю детали"})
	if err != nil {
		t.Fatalf("UserMessage: %v", err)
	}
	if outcome != ticket.OutcomeAdded {
		t.Errorf("outcome = %s, want %s", outcome, ticket.OutcomeAdded)
	}
	if !res.Delivered {
		t.Errorf("staff follow-up not delivered: %v", res.Err)
	}
	if got := len(f.telegram.staffMessages()); got != staffBefore+1 {
		t.Errorf("staff messages = %d, want %d", got, staffBefore+1)
	}

	msgs, err := f.tickets.ListMessages(context.Background(), tk.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("stored messages = %d, want 2", len(msgs))
	}
}

func TestUserMessageGratitudeKeepsTicketClosed(t *testing.T) {
	f := newServiceFixture(t)
	tk := f.createTicket(t, "вопрос")
	closed := f.closeTicket(t, tk.ID)
	staffBefore := len(f.telegram.staffMessages())

	outcome, _, err := f.service.UserMessage(context.Background(), f.requester, closed, Content{Text: "Спасибо большое!"})
	if err != nil {
		t.Fatalf("UserMessage: %v", err)
	}
	if outcome != ticket.OutcomeGratitude {
		t.Errorf("outcome = %s, want %s", outcome, ticket.OutcomeGratitude)
	}
	stored, _ := f.tickets.GetByID(context.Background(), tk.ID)
	if stored.Status != ticket.StatusClosed {
		t.Errorf("gratitude must keep the ticket closed, status = %s", stored.Status)
	}
	if got := len(f.telegram.staffMessages()); got != staffBefore {
		t.Error("gratitude must not notify staff")
	}
}

func TestUserMessageSubstantiveReopens(t *testing.T) {
	f := newServiceFixture(t)
	tk := f.createTicket(t, "вопрос")
	closed := f.closeTicket(t, tk.ID)

	outcome, _, err := f.service.UserMessage(context.Background(), f.requester, closed, Content{Text: "не помогло, всё ещё не работает"})
	if err != nil {
		t.Fatalf("UserMessage: %v", err)
	}
	if outcome != ticket.OutcomeReopened {
		t.Errorf("outcome = %s, want %s", outcome, ticket.OutcomeReopened)
	}
	stored, _ := f.tickets.GetByID(context.Background(), tk.ID)
	if stored.Status != ticket.StatusInProgress {
		t.Errorf("status = %s, want %s", stored.Status, ticket.StatusInProgress)
	}
	if stored.ClosedAt.Valid {
		t.Error("closed_at must be cleared on reopen")
	}

	staff := f.telegram.staffMessages()
	if !strings.Contains(staff[len(staff)-1].Text, "переоткрыта") {
		t.Errorf("reopen notification missing:\n%s", staff[len(staff)-1].Text)
	}
}

func TestUserMessageGratitudeWithMediaReopens(t *testing.T) {
	f := newServiceFixture(t)
	tk := f.createTicket(t, "вопрос")
	closed := f.closeTicket(t, tk.ID)

	outcome, _, err := f.service.UserMessage(context.Background(), f.requester, closed,
		Content{Text: "спасибо", ContentType: ticket.ContentPhoto, MediaRef: "file42"})
	if err != nil {
		t.Fatalf("UserMessage: %v", err)
	}
	if outcome != ticket.OutcomeReopened {
		t.Errorf("media message must reopen, outcome = %s", outcome)
	}
}

func TestRate(t *testing.T) {
	f := newServiceFixture(t)
	tk := f.createTicket(t, "вопрос")

	if err := f.service.Rate(context.Background(), tk.ID, f.requester.ID, 5); !errors.Is(err, ErrTicketNotClosed) {
		t.Errorf("rating open ticket: err = %v, want ErrTicketNotClosed", err)
	}
	f.closeTicket(t, tk.ID)

	if err := f.service.Rate(context.Background(), tk.ID, f.requester.ID+1, 5); !errors.Is(err, ErrNotTicketOwner) {
		t.Errorf("rating by non-owner: err = %v, want ErrNotTicketOwner", err)
	}
	if err := f.service.Rate(context.Background(), tk.ID, f.requester.ID, 6); !errors.Is(err, ErrRatingOutOfRange) {
		t.Errorf("rating 6: err = %v, want ErrRatingOutOfRange", err)
	}
	if err := f.service.Rate(context.Background(), tk.ID, f.requester.ID, 0); !errors.Is(err, ErrRatingOutOfRange) {
		t.Errorf("rating 0: err = %v, want ErrRatingOutOfRange", err)
	}
	if err := f.service.Rate(context.Background(), tk.ID, f.requester.ID, 4); err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if err := f.service.Rate(context.Background(), tk.ID, f.requester.ID, 5); !errors.Is(err, ErrAlreadyRated) {
		t.Errorf("second rating: err = %v, want ErrAlreadyRated", err)
	}

	stored, _ := f.tickets.GetByID(context.Background(), tk.ID)
	if !stored.Rating.Valid || stored.Rating.Int16 != 4 {
		t.Errorf("stored rating = %+v, want 4", stored.Rating)
	}
}

func TestAssign(t *testing.T) {
	f := newServiceFixture(t)
	tk := f.createTicket(t, "вопрос")

	assigned, err := f.service.Assign(context.Background(), tk.ID, 9001)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if !assigned.AssignedTo.Valid || assigned.AssignedTo.Int64 != 9001 {
		t.Errorf("assignee = %+v, want 9001", assigned.AssignedTo)
	}
	if assigned.Status != ticket.StatusInProgress {
		t.Errorf("status = %s, want %s", assigned.Status, ticket.StatusInProgress)
	}

	f.closeTicket(t, tk.ID)
	if _, err := f.service.Assign(context.Background(), tk.ID, 9002); !errors.Is(err, ErrTicketClosed) {
		t.Errorf("assigning closed ticket: err = %v, want ErrTicketClosed", err)
	}
}

func TestStaffReplyUnknownTicket(t *testing.T) {
	f := newServiceFixture(t)
	if _, _, err := f.service.StaffReply(context.Background(), 404, Content{Text: "привет"}, false); !errors.Is(err, ticket.ErrNotFound) {
		t.Errorf("err = %v, want ticket.ErrNotFound", err)
	}
}
