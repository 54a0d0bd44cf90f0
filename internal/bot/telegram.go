package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"dialog-bot/internal/keyboard"
	"dialog-bot/internal/reply"
)

const ownerNotificationPrefix = "System message:\n"

// API is the subset of *tgbotapi.BotAPI the messenger talks to.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// TelegramMessenger sends, edits and deletes Telegram messages on behalf of
// the host. Texts are rendered as Markdown.
type TelegramMessenger struct {
	api     API
	ownerID int64
}

func NewTelegramMessenger(api API, ownerID int64) *TelegramMessenger {
	return &TelegramMessenger{api: api, ownerID: ownerID}
}

func (m *TelegramMessenger) SendText(ctx context.Context, chatID int64, text string, kb *keyboard.Keyboard, silent bool) (reply.State, error) {
	if err := ctx.Err(); err != nil {
		return reply.State{}, err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableNotification = silent
	markup := renderKeyboard(kb)
	if markup != nil {
		msg.ReplyMarkup = *markup
	}

	sent, err := m.api.Send(msg)
	if err != nil {
		return reply.State{}, fmt.Errorf("send message to chat %d: %w", chatID, err)
	}

	return reply.State{
		ChatID:      chatID,
		MessageID:   sent.MessageID,
		HasKeyboard: markup != nil,
	}, nil
}

func (m *TelegramMessenger) EditText(ctx context.Context, st reply.State, text string, kb *keyboard.Keyboard) (reply.State, error) {
	if err := ctx.Err(); err != nil {
		return st, err
	}

	edit := tgbotapi.NewEditMessageText(st.ChatID, st.MessageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	edit.ReplyMarkup = renderKeyboard(kb)

	if _, err := m.api.Send(edit); err != nil {
		return st, fmt.Errorf("edit message %d in chat %d: %w", st.MessageID, st.ChatID, err)
	}

	st.HasKeyboard = edit.ReplyMarkup != nil
	return st, nil
}

func (m *TelegramMessenger) EditKeyboard(ctx context.Context, st reply.State, kb *keyboard.Keyboard) (reply.State, error) {
	if err := ctx.Err(); err != nil {
		return st, err
	}

	markup := renderKeyboard(kb)
	edit := tgbotapi.NewEditMessageReplyMarkup(st.ChatID, st.MessageID, emptyMarkup())
	if markup != nil {
		edit.ReplyMarkup = markup
	}

	if _, err := m.api.Request(edit); err != nil {
		return st, fmt.Errorf("edit keyboard of message %d in chat %d: %w", st.MessageID, st.ChatID, err)
	}

	st.HasKeyboard = markup != nil
	return st, nil
}

func (m *TelegramMessenger) Delete(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := m.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete message %d in chat %d: %w", messageID, chatID, err)
	}
	return nil
}

// AnswerCallback stops the client's loading indicator on a pressed button.
func (m *TelegramMessenger) AnswerCallback(ctx context.Context, callbackID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := m.api.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		return fmt.Errorf("answer callback %s: %w", callbackID, err)
	}
	return nil
}

// NotifyOwner sends a plain-text system message to the bot owner.
func (m *TelegramMessenger) NotifyOwner(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// No parse mode: error texts are full of underscores.
	if _, err := m.api.Send(tgbotapi.NewMessage(m.ownerID, ownerNotificationPrefix+text)); err != nil {
		return fmt.Errorf("notify owner: %w", err)
	}
	return nil
}

// renderKeyboard converts kb to an inline keyboard. Empty rows are dropped,
// and a keyboard without any button renders as nil.
func renderKeyboard(kb *keyboard.Keyboard) *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, row := range kb.Rows() {
		if len(row) == 0 {
			continue
		}
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Payload))
		}
		rows = append(rows, buttons)
	}
	if len(rows) == 0 {
		return nil
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

func emptyMarkup() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
}
