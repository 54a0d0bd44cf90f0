package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"dialog-bot/internal/model"
)

// Memory keeps users in process memory. Records are lost on restart.
type Memory struct {
	mu    sync.RWMutex
	users map[int64]model.User
}

func NewMemory() *Memory {
	return &Memory{users: make(map[int64]model.User)}
}

func (m *Memory) Begin() Tx {
	return &memoryTx{store: m, touched: make(map[int64]*model.User)}
}

func (m *Memory) Close() error { return nil }

// All returns copies of every stored user ordered by chat id.
func (m *Memory) All() []model.User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out
}

type memoryTx struct {
	store   *Memory
	touched map[int64]*model.User
}

func (tx *memoryTx) GetOrCreate(_ context.Context, chatID int64, name string) (*model.User, error) {
	if u, ok := tx.touched[chatID]; ok {
		refreshName(u, name)
		return u, nil
	}

	tx.store.mu.Lock()
	stored, ok := tx.store.users[chatID]
	if !ok {
		stored = *model.NewUser(chatID, name)
		tx.store.users[chatID] = stored
	}
	tx.store.mu.Unlock()

	u := stored
	refreshName(&u, name)
	tx.touched[chatID] = &u
	return &u, nil
}

func (tx *memoryTx) Persist(context.Context) error {
	now := time.Now().UTC()

	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	for id, u := range tx.touched {
		u.UpdatedAt = now
		tx.store.users[id] = *u
	}
	return nil
}
