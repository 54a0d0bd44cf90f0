// Package storage keeps user records between turns.
package storage

import (
	"context"
	"errors"

	"dialog-bot/internal/model"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

var ErrUnknownDriver = errors.New("unknown store driver")

// Store hands out one Tx per turn.
type Store interface {
	Begin() Tx
	Close() error
}

// Tx is the record-store capability of a single turn. Users returned by
// GetOrCreate may be mutated freely; Persist commits every one of them.
type Tx interface {
	// GetOrCreate loads the user of chatID, creating it on first contact.
	// A non-empty name that differs from the stored one replaces it.
	GetOrCreate(ctx context.Context, chatID int64, name string) (*model.User, error)
	Persist(ctx context.Context) error
}

func refreshName(user *model.User, name string) {
	if name != "" && user.Name != name {
		user.Name = name
	}
}
