// Package redis stores user records as JSON documents in Redis.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dialog-bot/internal/model"
	"dialog-bot/internal/storage"
	redisclient "dialog-bot/pkg/redis"
)

// KV is the part of pkg/redis.Client the store needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetMany(ctx context.Context, values map[string][]byte, ttl time.Duration) error
	Close() error
}

var _ KV = (*redisclient.Client)(nil)

// Storage keeps every user under user:<chat id>. Each persist refreshes
// the TTL, so idle conversations eventually expire.
type Storage struct {
	kv     KV
	ttl    time.Duration
	logger *zap.Logger
}

func New(kv KV, ttl time.Duration, logger *zap.Logger) *Storage {
	return &Storage{kv: kv, ttl: ttl, logger: logger}
}

func (s *Storage) Begin() storage.Tx {
	return &tx{store: s, touched: make(map[int64]*model.User)}
}

func (s *Storage) Close() error {
	return s.kv.Close()
}

func (s *Storage) getUser(ctx context.Context, chatID int64) (*model.User, error) {
	data, err := s.kv.Get(ctx, buildUserKey(chatID))
	if redisclient.IsNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("unmarshal failure: %w", err)
	}
	return &user, nil
}

type tx struct {
	store   *Storage
	touched map[int64]*model.User
}

func (t *tx) GetOrCreate(ctx context.Context, chatID int64, name string) (*model.User, error) {
	if u, ok := t.touched[chatID]; ok {
		if name != "" {
			u.Name = name
		}
		return u, nil
	}

	u, err := t.store.getUser(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("storage/redis.GetOrCreate: %w", err)
	}
	if u == nil {
		u = model.NewUser(chatID, name)
		t.store.logger.Info("Created user", zap.Int64("chat_id", chatID))
	} else if name != "" {
		u.Name = name
	}
	t.touched[chatID] = u
	return u, nil
}

func (t *tx) Persist(ctx context.Context) error {
	if len(t.touched) == 0 {
		return nil
	}

	now := time.Now().UTC()
	values := make(map[string][]byte, len(t.touched))
	for id, u := range t.touched {
		u.UpdatedAt = now
		data, err := json.Marshal(u)
		if err != nil {
			return fmt.Errorf("marshal user %d: %w", id, err)
		}
		values[buildUserKey(id)] = data
	}

	if err := t.store.kv.SetMany(ctx, values, t.store.ttl); err != nil {
		return fmt.Errorf("storage/redis.Persist: %w", err)
	}
	return nil
}

func buildUserKey(chatID int64) string {
	return fmt.Sprintf("user:%d", chatID)
}
