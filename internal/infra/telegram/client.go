package telegram

import (
	"bytes"

	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements the domain telegram.Client interface using the
// gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendMessage sends a text message and returns the Telegram message ID, which
// the service layer stores to correlate staff replies back to tickets.
func (tba *TelebotAdapter) SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) (int, error) {
	if options == nil {
		options = &telebot.SendOptions{}
	}

	recipient := &telebot.Chat{ID: recipientChatID}
	msg, err := tba.bot.Send(recipient, text, options)
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

// SendDocument sends an in-memory file as a document attachment.
func (tba *TelebotAdapter) SendDocument(recipientChatID int64, filename string, payload []byte, caption string) (int, error) {
	doc := &telebot.Document{
		File:     telebot.FromReader(bytes.NewReader(payload)),
		FileName: filename,
		Caption:  caption,
	}
	recipient := &telebot.Chat{ID: recipientChatID}
	msg, err := tba.bot.Send(recipient, doc)
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}
