package model

import (
	"time"

	"dialog-bot/internal/reply"
)

// StateNew is the conversation state of a user the bot just met.
const StateNew = "new"

// User is a conversation partner. The host mutates it in place during a turn
// and the store commits it on persist.
type User struct {
	ChatID    int64       `json:"chat_id"`
	Name      string      `json:"name"`
	State     string      `json:"state"`
	LastReply reply.State `json:"last_reply"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NewUser creates the record for a first contact.
func NewUser(chatID int64, name string) *User {
	now := time.Now().UTC()
	return &User{
		ChatID:    chatID,
		Name:      name,
		State:     StateNew,
		LastReply: reply.Initial(chatID),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
