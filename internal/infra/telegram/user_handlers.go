package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"helpdesk_bot/internal/app"
	"helpdesk_bot/internal/domain/ticket"
	"helpdesk_bot/internal/domain/user"
	"helpdesk_bot/internal/notify"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// Categories offered by the /start keyboard. The key is the callback payload,
// the value is the stored category name.
var categories = []struct {
	Key   string
	Label string
}{
	{"study", "Учёба"},
	{"it", "IT"},
	{"lk", "Личный кабинет"},
	{"dorm", "Общежитие"},
	{"other", "Другое"},
}

// pendingCategoryTTL bounds how long a /start category pick stays armed. A
// requester who walks away must not have an unrelated message days later
// labeled with the stale pick.
const pendingCategoryTTL = 15 * time.Minute

type pendingCategory struct {
	category string
	pickedAt time.Time
}

// pendingCategories remembers a category picked via the /start keyboard until
// the requester sends their first message or the pick expires.
type pendingCategories struct {
	mu sync.Mutex
	m  map[int64]pendingCategory
}

func (p *pendingCategories) set(userID int64, category string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	// Expired picks of other users are swept here so the map stays bounded by
	// the number of recently active requesters.
	for id, e := range p.m {
		if time.Since(e.pickedAt) > pendingCategoryTTL {
			delete(p.m, id)
		}
	}
	p.m[userID] = pendingCategory{category: category, pickedAt: time.Now()}
}

func (p *pendingCategories) take(userID int64) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.m[userID]
	if !ok {
		return "", false
	}
	delete(p.m, userID)
	if time.Since(e.pickedAt) > pendingCategoryTTL {
		return "", false
	}
	return e.category, true
}

func (p *pendingCategories) clear(userID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.m, userID)
}

// RegisterUserHandlers wires the requester-facing flows: /start with the
// category keyboard, message intake (FAQ auto-answer, follow-ups, new
// tickets) and the post-close rating callback.
func RegisterUserHandlers(
	ctx context.Context,
	b *telebot.Bot,
	ticketService *app.TicketService,
	faqService *app.FAQService,
	userRepo user.Repository,
	workingHours app.WorkingHours,
	staffChatID int64,
	baseLogger *logrus.Entry,
) {
	pending := &pendingCategories{m: make(map[int64]pendingCategory)}
	logger := baseLogger.WithField("handler_group", "user")

	b.Handle("/start", func(c telebot.Context) error {
		if c.Chat().ID == staffChatID {
			return nil
		}
		logCtx := logger.WithField("command", "/start").WithField("sender_id", c.Sender().ID)
		logCtx.Info("Processing /start command")

		u, err := ensureUser(ctx, userRepo, c.Sender())
		if err != nil {
			logCtx.WithError(err).Error("Error registering user")
			return c.Send("Произошла ошибка. Пожалуйста, попробуйте позже.")
		}
		// /start restarts the intake flow, so an earlier pick is dropped.
		pending.clear(u.ID)

		rm := &telebot.ReplyMarkup{}
		rows := make([]telebot.Row, 0, len(categories))
		for _, cat := range categories {
			rows = append(rows, rm.Row(rm.Data(cat.Label, "cat_"+cat.Key)))
		}
		rm.Inline(rows...)
		return c.Send(
			"Привет! Я бот поддержки. Выберите категорию вопроса или просто опишите проблему сообщением.",
			rm,
		)
	})

	b.Handle(telebot.OnText, func(c telebot.Context) error {
		if c.Chat().ID == staffChatID {
			return handleStaffChatReply(ctx, c, ticketService, logger)
		}
		return handleIncoming(ctx, c, app.Content{Text: c.Text()},
			ticketService, faqService, userRepo, workingHours, pending, logger)
	})

	b.Handle(telebot.OnPhoto, func(c telebot.Context) error {
		if c.Chat().ID == staffChatID {
			return nil
		}
		photo := c.Message().Photo
		content := app.Content{
			Text:        c.Message().Caption,
			ContentType: ticket.ContentPhoto,
			MediaRef:    photo.FileID,
		}
		return handleIncoming(ctx, c, content,
			ticketService, faqService, userRepo, workingHours, pending, logger)
	})

	b.Handle(telebot.OnDocument, func(c telebot.Context) error {
		if c.Chat().ID == staffChatID {
			return nil
		}
		doc := c.Message().Document
		content := app.Content{
			Text:        c.Message().Caption,
			ContentType: ticket.ContentDocument,
			MediaRef:    doc.FileID,
		}
		return handleIncoming(ctx, c, content,
			ticketService, faqService, userRepo, workingHours, pending, logger)
	})

	b.Handle(telebot.OnCallback, func(c telebot.Context) error {
		// telebot prefixes callback payloads with "\f".
		data := strings.TrimPrefix(c.Callback().Data, "\f")

		switch {
		case strings.HasPrefix(data, "cat_"):
			return handleCategoryCallback(ctx, c, data, userRepo, pending, logger)
		case strings.HasPrefix(data, "rate_"):
			return handleRatingCallback(ctx, c, data, ticketService, userRepo, logger)
		}
		logger.WithField("data", data).Warn("Unhandled callback data")
		return c.Respond(&telebot.CallbackResponse{Text: "Неизвестное действие."})
	})
}

func handleCategoryCallback(
	ctx context.Context,
	c telebot.Context,
	data string,
	userRepo user.Repository,
	pending *pendingCategories,
	logger *logrus.Entry,
) error {
	key := strings.TrimPrefix(data, "cat_")
	for _, cat := range categories {
		if cat.Key != key {
			continue
		}
		u, err := ensureUser(ctx, userRepo, c.Sender())
		if err != nil {
			logger.WithError(err).Error("Error registering user from category callback")
			return c.Respond(&telebot.CallbackResponse{Text: "Произошла ошибка."})
		}
		pending.set(u.ID, cat.Label)
		if err := c.Respond(&telebot.CallbackResponse{Text: "Категория: " + cat.Label}); err != nil {
			return err
		}
		return c.Send(fmt.Sprintf("Категория «%s» выбрана. Опишите ваш вопрос одним сообщением.", cat.Label))
	}
	return c.Respond(&telebot.CallbackResponse{Text: "Неизвестная категория."})
}

func handleRatingCallback(
	ctx context.Context,
	c telebot.Context,
	data string,
	ticketService *app.TicketService,
	userRepo user.Repository,
	logger *logrus.Entry,
) error {
	parts := strings.Split(data, "_") // rate_<ticketID>_<value>
	if len(parts) != 3 {
		return c.Respond(&telebot.CallbackResponse{Text: "Ошибка обработки оценки."})
	}
	ticketID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return c.Respond(&telebot.CallbackResponse{Text: "Ошибка ID заявки."})
	}
	value, err := strconv.Atoi(parts[2])
	if err != nil {
		return c.Respond(&telebot.CallbackResponse{Text: "Ошибка значения оценки."})
	}

	u, err := ensureUser(ctx, userRepo, c.Sender())
	if err != nil {
		logger.WithError(err).Error("Error resolving user for rating callback")
		return c.Respond(&telebot.CallbackResponse{Text: "Произошла ошибка."})
	}

	err = ticketService.Rate(ctx, ticketID, u.ID, value)
	switch {
	case err == nil:
		if err := c.Respond(&telebot.CallbackResponse{Text: "Спасибо за оценку!"}); err != nil {
			return err
		}
		return c.Send(fmt.Sprintf("Спасибо! Ваша оценка %d ⭐ сохранена.", value))
	case errors.Is(err, app.ErrAlreadyRated):
		return c.Respond(&telebot.CallbackResponse{Text: "Эта заявка уже оценена."})
	case errors.Is(err, app.ErrTicketNotClosed):
		return c.Respond(&telebot.CallbackResponse{Text: "Заявка ещё не закрыта."})
	case errors.Is(err, app.ErrNotTicketOwner):
		return c.Respond(&telebot.CallbackResponse{Text: "Оценить может только автор заявки."})
	case errors.Is(err, app.ErrRatingOutOfRange):
		return c.Respond(&telebot.CallbackResponse{Text: "Оценка должна быть от 1 до 5."})
	case errors.Is(err, ticket.ErrNotFound):
		return c.Respond(&telebot.CallbackResponse{Text: "Заявка не найдена."})
	default:
		logger.WithError(err).WithField("ticket_id", ticketID).Error("Error storing rating")
		return c.Respond(&telebot.CallbackResponse{Text: "Произошла ошибка."})
	}
}

func handleIncoming(
	ctx context.Context,
	c telebot.Context,
	content app.Content,
	ticketService *app.TicketService,
	faqService *app.FAQService,
	userRepo user.Repository,
	workingHours app.WorkingHours,
	pending *pendingCategories,
	logger *logrus.Entry,
) error {
	logCtx := logger.WithField("sender_id", c.Sender().ID)

	u, err := ensureUser(ctx, userRepo, c.Sender())
	if err != nil {
		logCtx.WithError(err).Error("Error registering user")
		return c.Send("Произошла ошибка. Пожалуйста, попробуйте позже.")
	}

	category, hasCategory := pending.take(u.ID)

	// A FAQ hit answers instantly without opening a ticket, but never hijacks
	// an explicit category flow or an ongoing conversation.
	if !hasCategory && content.Text != "" {
		if _, err := ticketService.ActiveTicket(ctx, u.ID); errors.Is(err, ticket.ErrNotFound) {
			if entry, ok := faqService.Match(content.Text); ok {
				logCtx.WithField("trigger", entry.TriggerWord).Info("FAQ auto-answer sent")
				return c.Send("🤖 Авто-ответ:\n\n" + entry.AnswerText)
			}
		}
	}

	// Without an explicit category the message continues the latest
	// conversation when one exists.
	if !hasCategory {
		t, err := ticketService.LatestTicket(ctx, u.ID)
		if err == nil {
			return handleFollowUp(ctx, c, ticketService, u, t, content, logCtx)
		}
		if !errors.Is(err, ticket.ErrNotFound) {
			logCtx.WithError(err).Error("Error resolving latest ticket")
			return c.Send("Произошла ошибка. Пожалуйста, попробуйте позже.")
		}
	}

	result, err := ticketService.Create(ctx, u, content, category)
	switch {
	case err == nil:
	case errors.Is(err, app.ErrEmptyMessage):
		return c.Send("Сообщение пустое. Опишите, пожалуйста, ваш вопрос.")
	case errors.Is(err, app.ErrMessageTooLong):
		return c.Send(fmt.Sprintf("Сообщение слишком длинное (максимум %d символов). Сократите его, пожалуйста.", app.MaxQuestionRunes))
	default:
		logCtx.WithError(err).Error("Error creating ticket")
		return c.Send("Произошла ошибка при создании заявки. Пожалуйста, попробуйте позже.")
	}

	reply := fmt.Sprintf("✅ Заявка %s (№%d за сегодня) принята! Мы ответим вам в ближайшее время.",
		notify.FormatTicketID(result.Ticket.ID), result.Ticket.DailyID)
	if now := time.Now(); !workingHours.Within(now) {
		reply += "\n\n" + workingHours.OffHoursNotice(now)
	}
	return c.Send(reply)
}

func handleFollowUp(
	ctx context.Context,
	c telebot.Context,
	ticketService *app.TicketService,
	u *user.User,
	t *ticket.Ticket,
	content app.Content,
	logCtx *logrus.Entry,
) error {
	outcome, _, err := ticketService.UserMessage(ctx, u, t, content)
	switch {
	case err == nil:
	case errors.Is(err, app.ErrEmptyMessage):
		return c.Send("Сообщение пустое. Опишите, пожалуйста, ваш вопрос.")
	case errors.Is(err, app.ErrMessageTooLong):
		return c.Send(fmt.Sprintf("Сообщение слишком длинное (максимум %d символов). Сократите его, пожалуйста.", app.MaxQuestionRunes))
	default:
		logCtx.WithError(err).WithField("ticket_id", t.ID).Error("Error recording user message")
		return c.Send("Произошла ошибка. Пожалуйста, попробуйте позже.")
	}

	switch outcome {
	case ticket.OutcomeGratitude:
		return c.Send("Рады помочь! Обращайтесь ещё. 👋")
	case ticket.OutcomeReopened:
		return c.Send(fmt.Sprintf("🔄 Заявка %s переоткрыта. Мы вернёмся к вам с ответом.", notify.FormatTicketID(t.ID)))
	default:
		return c.Send(fmt.Sprintf("Сообщение добавлено к заявке %s.", notify.FormatTicketID(t.ID)))
	}
}

// ensureUser registers the sender on first contact and refreshes their
// profile fields on subsequent ones.
func ensureUser(ctx context.Context, userRepo user.Repository, sender *telebot.User) (*user.User, error) {
	u := &user.User{
		Source:     "tg",
		ExternalID: sender.ID,
		Role:       user.RoleUser,
	}
	if sender.Username != "" {
		u.Username.String = sender.Username
		u.Username.Valid = true
	}
	fullName := strings.TrimSpace(sender.FirstName + " " + sender.LastName)
	if fullName != "" {
		u.FullName.String = fullName
		u.FullName.Valid = true
	}
	if err := userRepo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
