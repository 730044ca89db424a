package app

import (
	"strings"

	"helpdesk_bot/internal/domain/ticket"
)

// Keyword tiers for automatic priority detection. Tiers are evaluated in
// order: the first tier with a match wins, with no scoring or weighting.
var urgentKeywords = []string{
	"срочно", "urgent", "экзамен", "завтра", "сегодня", "не могу войти",
	"не работает личный кабинет", "заблокирован", "потерял пропуск",
	"сессия", "аккредитация", "отчисление", "стипендия не пришла",
}

var highKeywords = []string{
	"важно", "скоро", "на этой неделе", "через пару дней",
	"проблема с оценками", "ошибка в расписании", "конфликт пар",
	"не могу записаться", "дипломная работа", "deadline",
}

var lowKeywords = []string{
	"когда будет", "планируется ли", "вопрос", "интересно",
	"можно узнать", "подскажите", "хотел бы узнать",
}

// ClassifyPriority detects ticket priority from the message text and,
// failing a keyword match, from the category. Blank text is always NORMAL
// without inspecting keywords.
func ClassifyPriority(text, category string) ticket.Priority {
	if strings.TrimSpace(text) == "" {
		return ticket.PriorityNormal
	}
	lower := strings.ToLower(text)

	for _, kw := range urgentKeywords {
		if strings.Contains(lower, kw) {
			return ticket.PriorityUrgent
		}
	}
	for _, kw := range highKeywords {
		if strings.Contains(lower, kw) {
			return ticket.PriorityHigh
		}
	}
	for _, kw := range lowKeywords {
		if strings.Contains(lower, kw) {
			return ticket.PriorityLow
		}
	}

	// Some categories are inherently time-sensitive: account and IT issues
	// block everything else the requester does. Matches both the short "ЛК"
	// label and the full "Личный кабинет" one.
	if category != "" {
		lowerCat := strings.ToLower(category)
		if strings.Contains(lowerCat, "it") ||
			strings.Contains(lowerCat, "лк") ||
			strings.Contains(lowerCat, "кабинет") {
			return ticket.PriorityHigh
		}
	}

	return ticket.PriorityNormal
}

// PriorityLabel returns the display label used in staff notifications.
func PriorityLabel(p ticket.Priority) string {
	switch p {
	case ticket.PriorityUrgent:
		return "🔴 Срочно"
	case ticket.PriorityHigh:
		return "🟠 Высокий"
	case ticket.PriorityLow:
		return "⚪ Низкий"
	default:
		return "🟢 Обычный"
	}
}
