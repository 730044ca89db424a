// Package notify renders outbound notification payloads. Every user-originated
// field is HTML-escaped before it reaches a template, variable content is
// fitted into the remaining size budget of the target channel, and the final
// payload is re-checked against the hard limit before being handed to the
// transport.
package notify

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"helpdesk_bot/internal/domain/telegram"
)

const (
	// TruncationMarker is appended whenever variable content had to be cut.
	TruncationMarker = "... (truncated)"

	// safetyMargin keeps the payload comfortably under the transport limit
	// even if the transport counts lengths slightly differently than we do.
	safetyMargin = 16

	// minContentBudget guarantees the variable content a minimum slice of the
	// payload even when the boilerplate is pathologically large.
	minContentBudget = 256

	// historyEntryMax caps each prior-ticket history line before it enters
	// the budget computation, so one oversized entry cannot starve it.
	historyEntryMax   = 120
	maxHistoryEntries = 3

	attachmentPlaceholder = "(вложение)"
)

// EscapeHTML escapes markup-significant characters in a user-originated
// field. There is no trusted field: message text, names and history summaries
// all pass through here before interpolation.
func EscapeHTML(s string) string {
	return html.EscapeString(s)
}

// Compose fits escaped variable content between fixed, already-escaped
// boilerplate so the result never exceeds limit. Content is escaped here;
// header and footer must be escaped by the caller because only the caller
// knows which of their parts are user-originated.
func Compose(header, footer, content string, hasAttachment bool, limit int) string {
	content = strings.TrimSpace(content)
	if content == "" && hasAttachment {
		content = attachmentPlaceholder
	}
	escaped := EscapeHTML(content)

	markerLen := utf8.RuneCountInString(TruncationMarker)

	budget := limit - utf8.RuneCountInString(header) - utf8.RuneCountInString(footer) - safetyMargin
	if budget < minContentBudget {
		budget = minContentBudget
	}
	if utf8.RuneCountInString(escaped) > budget {
		escaped = trimPartialEntity(truncateRunes(escaped, budget-markerLen)) + TruncationMarker
	}

	payload := header + escaped + footer

	// Defensive re-check: the minimum-budget clamp can push the payload over
	// the hard limit when the boilerplate alone almost fills it. Only the
	// content segment shrinks here; cutting into the boilerplate could leave
	// an open tag the transport's HTML parser rejects.
	if over := utf8.RuneCountInString(payload) - limit; over > 0 {
		keep := utf8.RuneCountInString(escaped) - over - markerLen
		escaped = trimPartialEntity(truncateRunes(escaped, keep)) + TruncationMarker
		payload = header + escaped + footer
	}

	// Last resort for boilerplate that alone exceeds the limit: a raw cut,
	// with any tag or entity opened by the cut stripped off.
	if utf8.RuneCountInString(payload) > limit {
		payload = trimPartialMarkup(truncateRunes(payload, limit-markerLen)) + TruncationMarker
	}
	return payload
}

// trimPartialEntity removes a trailing HTML entity that a cut left open,
// e.g. the "&qu" remnant of "&quot;".
func trimPartialEntity(s string) string {
	if i := strings.LastIndex(s, "&"); i >= 0 && !strings.Contains(s[i:], ";") {
		return s[:i]
	}
	return s
}

// trimPartialMarkup additionally removes a trailing tag that a cut left open.
func trimPartialMarkup(s string) string {
	if i := strings.LastIndex(s, "<"); i >= 0 && !strings.Contains(s[i:], ">") {
		s = s[:i]
	}
	return trimPartialEntity(s)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func limitFor(hasAttachment bool) int {
	if hasAttachment {
		return telegram.MaxCaptionLength
	}
	return telegram.MaxMessageLength
}

// TicketCard carries everything the staff-chat templates interpolate.
// SenderName, Department, Username, Text and History are user-originated and
// are escaped during rendering.
type TicketCard struct {
	TicketID      int64
	DailyID       int
	Category      string
	Priority      string // Display label, system-generated
	SenderName    string
	Department    string
	Username      string
	Text          string
	HasAttachment bool
	History       []string
}

// NewTicketNotification renders the staff-chat card for a freshly created
// ticket, including the requester's recent ticket history.
func NewTicketNotification(c TicketCard) string {
	var h strings.Builder
	h.WriteString("🆕 <b>Новая заявка " + FormatTicketID(c.TicketID) + "</b>")
	h.WriteString(" (№" + strconv.Itoa(c.DailyID) + " за сегодня)\n")
	if c.Category != "" {
		h.WriteString("Категория: " + EscapeHTML(c.Category) + "\n")
	}
	if c.Priority != "" {
		h.WriteString("Приоритет: " + c.Priority + "\n")
	}
	h.WriteString("От: " + senderLine(c) + "\n\n")

	footer := historyBlock(c.History)
	return Compose(h.String(), footer, c.Text, c.HasAttachment, limitFor(c.HasAttachment))
}

// FollowUpNotification renders the staff-chat card for a new user message on
// an existing ticket. Reopened tickets get a distinct header so staff can see
// the state change at a glance.
func FollowUpNotification(c TicketCard, reopened bool) string {
	var h strings.Builder
	if reopened {
		h.WriteString("🔄 <b>Заявка " + FormatTicketID(c.TicketID) + " переоткрыта</b>\n")
	} else {
		h.WriteString("💬 <b>Новое сообщение по заявке " + FormatTicketID(c.TicketID) + "</b>\n")
	}
	h.WriteString("От: " + senderLine(c) + "\n\n")
	return Compose(h.String(), "", c.Text, c.HasAttachment, limitFor(c.HasAttachment))
}

// UserReplyNotification renders the requester-facing staff reply.
func UserReplyNotification(ticketID int64, replyText string, closed bool) string {
	header := "🔔 <b>Ответ на заявку " + FormatTicketID(ticketID) + ":</b>\n\n"
	footer := ""
	if closed {
		footer = "\n\n✅ Заявка закрыта. Пожалуйста, оцените качество ответа."
	}
	return Compose(header, footer, replyText, false, telegram.MaxMessageLength)
}

func senderLine(c TicketCard) string {
	from := EscapeHTML(c.SenderName)
	if c.Department != "" {
		from += " (" + EscapeHTML(c.Department) + ")"
	}
	if c.Username != "" {
		from += " @" + EscapeHTML(c.Username)
	}
	return from
}

func historyBlock(entries []string) string {
	if len(entries) == 0 {
		return ""
	}
	if len(entries) > maxHistoryEntries {
		entries = entries[:maxHistoryEntries]
	}
	var b strings.Builder
	b.WriteString("\n\n📋 Прошлые обращения:\n")
	for _, e := range entries {
		b.WriteString("• " + EscapeHTML(truncateRunes(e, historyEntryMax)) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatTicketID renders the ticket reference used in notification headers,
// e.g. "ID: #123".
func FormatTicketID(id int64) string {
	return fmt.Sprintf("ID: #%d", id)
}

var ticketIDPattern = regexp.MustCompile(`ID:\s*#(\d+)`)

// ParseTicketID extracts a ticket reference from a previously composed
// notification. Used to correlate staff replies when the stored message
// reference is missing.
func ParseTicketID(text string) (int64, bool) {
	m := ticketIDPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
