package telegram

import "gopkg.in/telebot.v3"

// Hard payload size limits of the transport. Stand-alone text messages may be
// longer than captions that accompany a media attachment; the notification
// composer must respect whichever applies.
const (
	MaxMessageLength = 4096
	MaxCaptionLength = 1024
)

// Client defines the outbound operations the application needs from the bot
// library. Both methods return the transport message ID of the sent message so
// callers can correlate later replies to it. Delivery is best-effort,
// at-most-one-attempt; callers must treat a failure as a logged event, never
// as a reason to roll back domain state.
type Client interface {
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) (int, error)
	SendDocument(recipientChatID int64, filename string, payload []byte, caption string) (int, error)
}
