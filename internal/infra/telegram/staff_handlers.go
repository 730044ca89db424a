package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"helpdesk_bot/internal/app"
	"helpdesk_bot/internal/domain/ticket"
	domainTelegram "helpdesk_bot/internal/domain/telegram"
	"helpdesk_bot/internal/domain/user"
	"helpdesk_bot/internal/infra/export"
	"helpdesk_bot/internal/notify"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const defaultCloseText = "Заявка закрыта."

// RegisterStaffHandlers wires the staff-chat commands: /reply, /close,
// /assign, /export, /stats and /faq_refresh. Plain reply-to messages in the
// staff chat are handled by the OnText dispatch in RegisterUserHandlers.
// /export and /faq_refresh are restricted to the configured administrator.
func RegisterStaffHandlers(
	ctx context.Context,
	b *telebot.Bot,
	ticketService *app.TicketService,
	statsService *app.StatsService,
	faqService *app.FAQService,
	ticketRepo ticket.Repository,
	userRepo user.Repository,
	tgClient domainTelegram.Client,
	staffChatID int64,
	adminTelegramID int64,
	baseLogger *logrus.Entry,
) {
	logger := baseLogger.WithField("handler_group", "staff")

	b.Handle("/reply", func(c telebot.Context) error {
		if c.Chat().ID != staffChatID {
			return nil
		}
		ticketID, text, err := parseTicketCommand(c.Message().Payload)
		if err != nil {
			return c.Send("Использование: /reply <ID заявки> <текст ответа>")
		}
		if text == "" {
			return c.Send("Текст ответа не может быть пустым.")
		}
		return sendStaffReply(ctx, c, ticketService, ticketID, text, false, logger)
	})

	b.Handle("/close", func(c telebot.Context) error {
		if c.Chat().ID != staffChatID {
			return nil
		}
		ticketID, text, err := parseTicketCommand(c.Message().Payload)
		if err != nil {
			return c.Send("Использование: /close <ID заявки> [текст ответа]")
		}
		if text == "" {
			text = defaultCloseText
		}
		return sendStaffReply(ctx, c, ticketService, ticketID, text, true, logger)
	})

	b.Handle("/assign", func(c telebot.Context) error {
		if c.Chat().ID != staffChatID {
			return nil
		}
		ticketID, _, err := parseTicketCommand(c.Message().Payload)
		if err != nil {
			return c.Send("Использование: /assign <ID заявки>")
		}
		t, err := ticketService.Assign(ctx, ticketID, c.Sender().ID)
		switch {
		case err == nil:
			return c.Send(fmt.Sprintf("👤 Заявка %s назначена на @%s.",
				notify.FormatTicketID(t.ID), c.Sender().Username))
		case errors.Is(err, ticket.ErrNotFound):
			return c.Send("Заявка не найдена.")
		case errors.Is(err, app.ErrTicketClosed):
			return c.Send("Заявка уже закрыта, назначение невозможно.")
		default:
			logger.WithError(err).WithField("ticket_id", ticketID).Error("Error assigning ticket")
			return c.Send("Произошла ошибка при назначении заявки.")
		}
	})

	b.Handle("/export", func(c telebot.Context) error {
		if c.Chat().ID != staffChatID {
			return nil
		}
		if !isAdmin(c.Sender().ID, adminTelegramID) {
			return c.Send("Команда доступна только администратору.")
		}
		day := time.Now()
		if payload := strings.TrimSpace(c.Message().Payload); payload != "" {
			parsed, err := time.Parse("2006-01-02", payload)
			if err != nil {
				return c.Send("Использование: /export [ГГГГ-ММ-ДД]")
			}
			day = parsed
		}
		return sendExport(ctx, c, ticketRepo, userRepo, tgClient, staffChatID, day, logger)
	})

	b.Handle("/stats", func(c telebot.Context) error {
		if c.Chat().ID != staffChatID {
			return nil
		}
		digest, err := statsService.DailyDigest(ctx, time.Now())
		if err != nil {
			logger.WithError(err).Error("Error building statistics digest")
			return c.Send("Произошла ошибка при сборе статистики.")
		}
		return c.Send(digest, &telebot.SendOptions{ParseMode: telebot.ModeHTML})
	})

	b.Handle("/faq_refresh", func(c telebot.Context) error {
		if c.Chat().ID != staffChatID {
			return nil
		}
		if !isAdmin(c.Sender().ID, adminTelegramID) {
			return c.Send("Команда доступна только администратору.")
		}
		if err := faqService.Refresh(ctx); err != nil {
			logger.WithError(err).Error("Error refreshing FAQ cache")
			return c.Send("Произошла ошибка при обновлении FAQ.")
		}
		return c.Send(fmt.Sprintf("✅ FAQ обновлён: %d записей.", len(faqService.Snapshot())))
	})
}

// handleStaffChatReply handles a plain reply-to message in the staff chat: the
// replied-to notification is correlated back to its ticket and the text is
// relayed to the requester.
func handleStaffChatReply(
	ctx context.Context,
	c telebot.Context,
	ticketService *app.TicketService,
	logger *logrus.Entry,
) error {
	replyTo := c.Message().ReplyTo
	if replyTo == nil || strings.HasPrefix(c.Text(), "/") {
		return nil
	}

	t, err := ticketService.TicketByStaffMessage(ctx, int64(replyTo.ID))
	if errors.Is(err, ticket.ErrNotFound) {
		// The stored reference is missing, e.g. after a redeploy. Fall back to
		// the ticket ID embedded in the notification text itself.
		if id, ok := notify.ParseTicketID(replyTo.Text); ok {
			t, err = ticketService.TicketByID(ctx, id)
		}
	}
	if err != nil {
		if errors.Is(err, ticket.ErrNotFound) {
			return c.Send("Не удалось определить заявку по этому сообщению. Используйте /reply <ID заявки> <текст>.")
		}
		logger.WithError(err).Error("Error correlating staff reply")
		return c.Send("Произошла ошибка при поиске заявки.")
	}

	return sendStaffReply(ctx, c, ticketService, t.ID, c.Text(), false, logger)
}

func sendStaffReply(
	ctx context.Context,
	c telebot.Context,
	ticketService *app.TicketService,
	ticketID int64,
	text string,
	closeTicket bool,
	logger *logrus.Entry,
) error {
	t, notifyRes, err := ticketService.StaffReply(ctx, ticketID, app.Content{Text: text}, closeTicket)
	switch {
	case err == nil:
	case errors.Is(err, ticket.ErrNotFound):
		return c.Send("Заявка не найдена.")
	case errors.Is(err, app.ErrTicketClosed):
		return c.Send("Заявка уже закрыта. Используйте /reply после её переоткрытия.")
	case errors.Is(err, app.ErrEmptyMessage):
		return c.Send("Текст ответа не может быть пустым.")
	case errors.Is(err, app.ErrMessageTooLong):
		return c.Send("Текст ответа слишком длинный.")
	default:
		logger.WithError(err).WithField("ticket_id", ticketID).Error("Error recording staff reply")
		return c.Send("Произошла ошибка при отправке ответа.")
	}

	if !notifyRes.Delivered {
		return c.Send(fmt.Sprintf("⚠️ Ответ по заявке %s сохранён, но доставить его пользователю не удалось.",
			notify.FormatTicketID(t.ID)))
	}
	if closeTicket {
		return c.Send(fmt.Sprintf("✅ Заявка %s закрыта, ответ отправлен пользователю.", notify.FormatTicketID(t.ID)))
	}
	return c.Send(fmt.Sprintf("✉️ Ответ по заявке %s отправлен пользователю.", notify.FormatTicketID(t.ID)))
}

func sendExport(
	ctx context.Context,
	c telebot.Context,
	ticketRepo ticket.Repository,
	userRepo user.Repository,
	tgClient domainTelegram.Client,
	staffChatID int64,
	day time.Time,
	logger *logrus.Entry,
) error {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	to := from.AddDate(0, 0, 1)

	tickets, err := ticketRepo.ListCreatedBetween(ctx, from, to)
	if err != nil {
		logger.WithError(err).Error("Error listing tickets for export")
		return c.Send("Произошла ошибка при выгрузке заявок.")
	}
	if len(tickets) == 0 {
		return c.Send(fmt.Sprintf("За %s заявок нет.", from.Format("02.01.2006")))
	}

	// Resolved once per distinct requester, not per row.
	names := make(map[int64]string)
	requesterName := func(id int64) string {
		if name, ok := names[id]; ok {
			return name
		}
		name := ""
		if u, err := userRepo.GetByID(ctx, id); err == nil {
			name = u.DisplayName()
		}
		names[id] = name
		return name
	}

	payload, err := export.Report(tickets, requesterName)
	if err != nil {
		logger.WithError(err).Error("Error rendering CSV export")
		return c.Send("Произошла ошибка при формировании отчёта.")
	}

	caption := fmt.Sprintf("📄 Выгрузка заявок за %s (%d шт.)", from.Format("02.01.2006"), len(tickets))
	if _, err := tgClient.SendDocument(staffChatID, export.Filename(from), payload, caption); err != nil {
		logger.WithError(err).Error("Error sending CSV export")
		return c.Send("Произошла ошибка при отправке отчёта.")
	}
	return nil
}

// isAdmin reports whether senderID is the configured administrator. A zero
// adminID never matches, so a misconfigured deployment fails closed.
func isAdmin(senderID, adminID int64) bool {
	return adminID != 0 && senderID == adminID
}

func parseTicketCommand(payload string) (int64, string, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return 0, "", fmt.Errorf("empty command payload")
	}
	parts := strings.SplitN(payload, " ", 2)
	idPart := strings.TrimPrefix(strings.TrimPrefix(parts[0], "ID:"), "#")
	ticketID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid ticket ID %q: %w", parts[0], err)
	}
	text := ""
	if len(parts) == 2 {
		text = strings.TrimSpace(parts[1])
	}
	return ticketID, text, nil
}
