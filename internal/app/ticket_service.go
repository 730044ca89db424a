package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"helpdesk_bot/internal/domain/summary"
	"helpdesk_bot/internal/domain/ticket"
	domainTelegram "helpdesk_bot/internal/domain/telegram"
	"helpdesk_bot/internal/domain/user"
	"helpdesk_bot/internal/infra/metrics"
	"helpdesk_bot/internal/notify"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// Validation errors: rejected before any persistence, no partial state.
var (
	ErrEmptyMessage   = errors.New("message text is empty and no attachment is present")
	ErrMessageTooLong = errors.New("message text exceeds the maximum length")
)

// State errors: lifecycle precondition violations, each distinguishable.
var (
	ErrTicketClosed     = errors.New("ticket is already closed")
	ErrTicketNotClosed  = errors.New("ticket is not closed")
	ErrAlreadyRated     = errors.New("ticket is already rated")
	ErrNotTicketOwner   = errors.New("only the ticket requester may rate it")
	ErrRatingOutOfRange = errors.New("rating must be between 1 and 5")
)

// MaxQuestionRunes is the upper bound on user message text at intake.
const MaxQuestionRunes = 4000

const summaryPlaceholder = "Резюме недоступно."

const summarizeTimeout = 15 * time.Second

// Content is the payload of a single inbound message: text, a media
// attachment, or both.
type Content struct {
	Text        string
	ContentType ticket.ContentType
	MediaRef    string
}

// HasMedia reports whether the content carries a photo or document reference.
func (c Content) HasMedia() bool {
	return c.MediaRef != "" &&
		(c.ContentType == ticket.ContentPhoto || c.ContentType == ticket.ContentDocument)
}

func (c Content) validate() error {
	if strings.TrimSpace(c.Text) == "" && !c.HasMedia() {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(c.Text) > MaxQuestionRunes {
		return ErrMessageTooLong
	}
	return nil
}

func (c Content) contentType() ticket.ContentType {
	if c.ContentType == "" {
		return ticket.ContentText
	}
	return c.ContentType
}

// NotifyResult reports the outcome of a best-effort notification dispatch.
// Dispatch happens strictly after the domain transaction commits; a failed
// send is logged and recorded here but never affects ticket state.
type NotifyResult struct {
	Delivered bool
	MessageID int
	Err       error
}

// CreateResult is the outcome of ticket creation.
type CreateResult struct {
	Ticket      *ticket.Ticket
	StaffNotify NotifyResult
}

// TicketService is the lifecycle manager for tickets: it owns every ticket
// mutation and dispatches the staff- and requester-facing notifications.
type TicketService struct {
	tickets     ticket.Repository
	users       user.Repository
	allocator   ticket.Allocator
	summarizer  summary.Client
	telegram    domainTelegram.Client
	counters    *metrics.Metrics
	ack         AckPolicy
	staffChatID int64
	logger      *logrus.Entry
}

func NewTicketService(
	tickets ticket.Repository,
	users user.Repository,
	allocator ticket.Allocator,
	summarizer summary.Client,
	tg domainTelegram.Client,
	counters *metrics.Metrics,
	ack AckPolicy,
	staffChatID int64,
	logger *logrus.Entry,
) *TicketService {
	if ack == nil {
		ack = DefaultAckPolicy
	}
	return &TicketService{
		tickets:     tickets,
		users:       users,
		allocator:   allocator,
		summarizer:  summarizer,
		telegram:    tg,
		counters:    counters,
		ack:         ack,
		staffChatID: staffChatID,
		logger:      logger,
	}
}

// Create validates the first message, classifies priority, obtains the daily
// number from the allocator, persists the ticket with its first message, and
// then notifies the staff chat. The staff message reference is stored only
// when the send succeeds, so a later staff reply can be correlated.
func (s *TicketService) Create(ctx context.Context, requester *user.User, content Content, category string) (*CreateResult, error) {
	if err := content.validate(); err != nil {
		return nil, err
	}

	priority := ClassifyPriority(content.Text, category)

	// Gathered before Create so the new ticket does not list itself.
	history := s.requesterHistory(ctx, requester.ID)

	now := time.Now()
	dailyID, err := s.allocator.Next(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate daily ticket number: %w", err)
	}

	t := &ticket.Ticket{
		PublicID:    uuid.New(),
		DailyID:     dailyID,
		RequesterID: requester.ID,
		Source:      requester.Source,
		Status:      ticket.StatusNew,
		Priority:    priority,
	}
	if category != "" {
		t.Category.String = category
		t.Category.Valid = true
	}
	if txt := strings.TrimSpace(content.Text); txt != "" {
		t.QuestionText.String = txt
		t.QuestionText.Valid = true
	}

	first := s.newMessage(0, ticket.SenderUser, content)
	if err := s.tickets.Create(ctx, t, first); err != nil {
		return nil, fmt.Errorf("failed to persist ticket: %w", err)
	}
	if s.counters != nil {
		s.counters.TicketsCreated.Inc()
	}
	s.logger.WithFields(logrus.Fields{
		"ticket_id": t.ID,
		"daily_id":  t.DailyID,
		"priority":  t.Priority,
	}).Info("Ticket created")

	card := notify.TicketCard{
		TicketID:      t.ID,
		DailyID:       t.DailyID,
		Category:      category,
		Priority:      PriorityLabel(priority),
		SenderName:    requester.DisplayName(),
		Department:    requester.Department.String,
		Username:      requester.Username.String,
		Text:          content.Text,
		HasAttachment: content.HasMedia(),
		History:       history,
	}
	res := s.notifyStaff(ctx, t, notify.NewTicketNotification(card))

	return &CreateResult{Ticket: t, StaffNotify: res}, nil
}

// StaffReply appends a staff message to an open ticket and notifies the
// requester. The first call stamps first_response_at (set once). With close
// set, the dialogue is summarized (placeholder on failure) and the ticket
// transitions to CLOSED before the reply is dispatched.
func (s *TicketService) StaffReply(ctx context.Context, ticketID int64, content Content, closeTicket bool) (*ticket.Ticket, NotifyResult, error) {
	var none NotifyResult

	t, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, none, err
	}
	if t.Status == ticket.StatusClosed {
		return nil, none, ErrTicketClosed
	}
	if err := content.validate(); err != nil {
		return nil, none, err
	}

	now := time.Now()
	if err := s.tickets.AppendMessage(ctx, s.newMessage(t.ID, ticket.SenderStaff, content)); err != nil {
		return nil, none, fmt.Errorf("failed to append staff message: %w", err)
	}

	if !t.FirstResponseAt.Valid {
		t.FirstResponseAt.Time = now
		t.FirstResponseAt.Valid = true
	}

	if closeTicket {
		// The summary is produced before the transition commits; a summarizer
		// failure degrades to the placeholder and never blocks closing.
		t.Summary.String = s.summarizeDialogue(ctx, t)
		t.Summary.Valid = true
		t.Status = ticket.StatusClosed
		t.ClosedAt.Time = now
		t.ClosedAt.Valid = true
	} else if t.Status == ticket.StatusNew {
		t.Status = ticket.StatusInProgress
	}

	if err := s.tickets.Update(ctx, t); err != nil {
		return nil, none, fmt.Errorf("failed to update ticket %d: %w", t.ID, err)
	}
	if closeTicket && s.counters != nil {
		s.counters.TicketsClosed.Inc()
	}
	s.logger.WithFields(logrus.Fields{
		"ticket_id": t.ID,
		"status":    t.Status,
	}).Info("Staff reply recorded")

	res := s.notifyRequester(ctx, t, content.Text, closeTicket)
	return t, res, nil
}

// UserMessage handles a follow-up from the requester. Open tickets simply get
// the message appended. On a CLOSED ticket the acknowledgment policy decides:
// gratitude keeps the ticket closed, anything substantive reopens it and
// clears closed_at.
func (s *TicketService) UserMessage(ctx context.Context, requester *user.User, t *ticket.Ticket, content Content) (ticket.UpdateOutcome, NotifyResult, error) {
	var none NotifyResult

	if err := content.validate(); err != nil {
		return "", none, err
	}

	outcome := ticket.OutcomeAdded
	reopened := false
	if t.Status == ticket.StatusClosed {
		if s.ack(content.Text) && !content.HasMedia() {
			outcome = ticket.OutcomeGratitude
		} else {
			outcome = ticket.OutcomeReopened
			reopened = true
			t.Status = ticket.StatusInProgress
			t.ClosedAt = sql.NullTime{}
			if err := s.tickets.Update(ctx, t); err != nil {
				return "", none, fmt.Errorf("failed to reopen ticket %d: %w", t.ID, err)
			}
			if s.counters != nil {
				s.counters.TicketsReopened.Inc()
			}
		}
	}

	if err := s.tickets.AppendMessage(ctx, s.newMessage(t.ID, ticket.SenderUser, content)); err != nil {
		return "", none, fmt.Errorf("failed to append user message: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"ticket_id": t.ID,
		"outcome":   outcome,
	}).Info("User message recorded")

	// Gratitude stays between the requester and the closed ticket; staff are
	// only notified about content that needs action.
	if outcome == ticket.OutcomeGratitude {
		return outcome, none, nil
	}

	card := notify.TicketCard{
		TicketID:      t.ID,
		DailyID:       t.DailyID,
		SenderName:    requester.DisplayName(),
		Department:    requester.Department.String,
		Username:      requester.Username.String,
		Text:          content.Text,
		HasAttachment: content.HasMedia(),
	}
	res := s.notifyStaff(ctx, t, notify.FollowUpNotification(card, reopened))
	return outcome, res, nil
}

// Rate records the requester's 1-5 rating. Allowed only while the ticket is
// CLOSED, only by its owner, and only once.
func (s *TicketService) Rate(ctx context.Context, ticketID, requesterID int64, value int) error {
	t, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return err
	}
	if t.Status != ticket.StatusClosed {
		return ErrTicketNotClosed
	}
	if t.RequesterID != requesterID {
		return ErrNotTicketOwner
	}
	if t.Rating.Valid {
		return ErrAlreadyRated
	}
	if value < 1 || value > 5 {
		return ErrRatingOutOfRange
	}
	t.Rating.Int16 = int16(value)
	t.Rating.Valid = true
	if err := s.tickets.Update(ctx, t); err != nil {
		return fmt.Errorf("failed to store rating for ticket %d: %w", t.ID, err)
	}
	s.logger.WithFields(logrus.Fields{"ticket_id": t.ID, "rating": value}).Info("Ticket rated")
	return nil
}

// Assign records the responsible staff member; a NEW ticket moves to
// IN_PROGRESS. Closed tickets cannot be assigned.
func (s *TicketService) Assign(ctx context.Context, ticketID, staffID int64) (*ticket.Ticket, error) {
	t, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.Status == ticket.StatusClosed {
		return nil, ErrTicketClosed
	}
	t.AssignedTo.Int64 = staffID
	t.AssignedTo.Valid = true
	if t.Status == ticket.StatusNew {
		t.Status = ticket.StatusInProgress
	}
	if err := s.tickets.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to assign ticket %d: %w", t.ID, err)
	}
	return t, nil
}

// TicketByID returns a ticket by its global identifier.
func (s *TicketService) TicketByID(ctx context.Context, ticketID int64) (*ticket.Ticket, error) {
	return s.tickets.GetByID(ctx, ticketID)
}

// ActiveTicket returns the requester's most recent open ticket.
func (s *TicketService) ActiveTicket(ctx context.Context, requesterID int64) (*ticket.Ticket, error) {
	return s.tickets.GetActiveByRequester(ctx, requesterID)
}

// LatestTicket returns the requester's most recent ticket in any state.
func (s *TicketService) LatestTicket(ctx context.Context, requesterID int64) (*ticket.Ticket, error) {
	return s.tickets.GetLatestByRequester(ctx, requesterID)
}

// TicketByStaffMessage resolves a staff-chat reply back to its ticket via the
// stored notification message ID.
func (s *TicketService) TicketByStaffMessage(ctx context.Context, messageID int64) (*ticket.Ticket, error) {
	return s.tickets.GetByStaffMessageID(ctx, messageID)
}

func (s *TicketService) newMessage(ticketID int64, role ticket.SenderRole, content Content) *ticket.Message {
	m := &ticket.Message{
		TicketID:    ticketID,
		SenderRole:  role,
		ContentType: content.contentType(),
	}
	if txt := strings.TrimSpace(content.Text); txt != "" {
		m.Text.String = txt
		m.Text.Valid = true
	}
	if content.MediaRef != "" {
		m.MediaRef.String = content.MediaRef
		m.MediaRef.Valid = true
	}
	return m
}

// notifyStaff sends the composed payload to the staff chat. On success the
// message ID is stored on the ticket as the correlation reference; on failure
// the error is logged and reported in the result only.
func (s *TicketService) notifyStaff(ctx context.Context, t *ticket.Ticket, payload string) NotifyResult {
	msgID, err := s.telegram.SendMessage(s.staffChatID, payload, &telebot.SendOptions{ParseMode: telebot.ModeHTML})
	if err != nil {
		if s.counters != nil {
			s.counters.NotifyFailures.Inc()
		}
		s.logger.WithError(err).WithField("ticket_id", t.ID).Error("Failed to deliver staff notification")
		return NotifyResult{Err: err}
	}
	t.StaffMessageID.Int64 = int64(msgID)
	t.StaffMessageID.Valid = true
	if err := s.tickets.Update(ctx, t); err != nil {
		s.logger.WithError(err).WithField("ticket_id", t.ID).Error("Failed to store staff message reference")
	}
	return NotifyResult{Delivered: true, MessageID: msgID}
}

func (s *TicketService) notifyRequester(ctx context.Context, t *ticket.Ticket, replyText string, closed bool) NotifyResult {
	requester, err := s.users.GetByID(ctx, t.RequesterID)
	if err != nil {
		s.logger.WithError(err).WithField("ticket_id", t.ID).Error("Failed to resolve requester for notification")
		return NotifyResult{Err: err}
	}

	opts := &telebot.SendOptions{ParseMode: telebot.ModeHTML}
	if closed {
		opts.ReplyMarkup = ratingKeyboard(t.ID)
	}
	payload := notify.UserReplyNotification(t.ID, replyText, closed)
	msgID, err := s.telegram.SendMessage(requester.ExternalID, payload, opts)
	if err != nil {
		if s.counters != nil {
			s.counters.NotifyFailures.Inc()
		}
		s.logger.WithError(err).WithFields(logrus.Fields{
			"ticket_id":    t.ID,
			"requester_id": requester.ID,
		}).Error("Failed to deliver requester notification")
		return NotifyResult{Err: err}
	}
	return NotifyResult{Delivered: true, MessageID: msgID}
}

func (s *TicketService) summarizeDialogue(ctx context.Context, t *ticket.Ticket) string {
	msgs, err := s.tickets.ListMessages(ctx, t.ID)
	if err != nil {
		s.logger.WithError(err).WithField("ticket_id", t.ID).Warn("Failed to load dialogue for summarization")
		return summaryPlaceholder
	}

	sctx, cancel := context.WithTimeout(ctx, summarizeTimeout)
	defer cancel()
	text, err := s.summarizer.Summarize(sctx, formatDialogue(msgs))
	if err != nil || strings.TrimSpace(text) == "" {
		s.logger.WithError(err).WithField("ticket_id", t.ID).Warn("Summarizer unavailable, using placeholder")
		return summaryPlaceholder
	}
	return strings.TrimSpace(text)
}

func (s *TicketService) requesterHistory(ctx context.Context, requesterID int64) []string {
	prior, err := s.tickets.ListRecentByRequester(ctx, requesterID, 3)
	if err != nil {
		s.logger.WithError(err).WithField("requester_id", requesterID).Warn("Failed to load requester history")
		return nil
	}
	var lines []string
	for _, p := range prior {
		gist := p.QuestionText.String
		if p.Summary.Valid {
			gist = p.Summary.String
		}
		lines = append(lines, fmt.Sprintf("#%d (%s) %s", p.ID, p.Status, gist))
	}
	return lines
}

func formatDialogue(msgs []*ticket.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		role := "Студент"
		if m.SenderRole == ticket.SenderStaff {
			role = "Поддержка"
		}
		line := m.Text.String
		if !m.Text.Valid {
			line = "(вложение)"
		}
		b.WriteString(role + ": " + line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func ratingKeyboard(ticketID int64) *telebot.ReplyMarkup {
	rm := &telebot.ReplyMarkup{}
	row := make(telebot.Row, 0, 5)
	for v := 1; v <= 5; v++ {
		row = append(row, rm.Data(fmt.Sprintf("%d ⭐", v), fmt.Sprintf("rate_%d_%d", ticketID, v)))
	}
	rm.Inline(row)
	return rm
}
