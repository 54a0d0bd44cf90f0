// Package reply decides how the bot's outgoing messages change over a turn:
// send, edit in place, strip a keyboard, delete, or nothing.
package reply

import (
	"context"

	"dialog-bot/internal/keyboard"
)

// NoMessage marks a State that does not point at any message yet.
const NoMessage = -1

// State describes the bot's latest outgoing message in a chat. HasKeyboard
// must match what the chat actually renders.
type State struct {
	ChatID      int64 `json:"chat_id"`
	MessageID   int   `json:"message_id"`
	HasKeyboard bool  `json:"has_keyboard"`
}

// Initial is the state of a chat the bot has not written to yet.
func Initial(chatID int64) State {
	return State{ChatID: chatID, MessageID: NoMessage}
}

// HasMessage reports whether the state refers to an existing message.
func (s State) HasMessage() bool {
	return s.MessageID != NoMessage
}

// Messenger is the transport capability responses are applied against.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, kb *keyboard.Keyboard, silent bool) (State, error)
	// EditText replaces text and keyboard of the message st points at.
	EditText(ctx context.Context, st State, text string, kb *keyboard.Keyboard) (State, error)
	// EditKeyboard replaces only the keyboard; a nil kb removes it.
	EditKeyboard(ctx context.Context, st State, kb *keyboard.Keyboard) (State, error)
	Delete(ctx context.Context, chatID int64, messageID int) error
}
