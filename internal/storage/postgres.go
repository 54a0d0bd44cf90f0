package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"dialog-bot/internal/model"
	"dialog-bot/internal/reply"
	"dialog-bot/internal/storage/migrations"
)

type PostgresConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
}

func (c PostgresConfig) dsn() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name,
	)
}

type PostgresStorage struct {
	db     *sqlx.DB
	logger *zap.Logger
}

type userRow struct {
	ChatID          int64     `db:"chat_id"`
	Name            string    `db:"name"`
	State           string    `db:"state"`
	LastChatID      int64     `db:"last_chat_id"`
	LastMessageID   int       `db:"last_message_id"`
	LastHasKeyboard bool      `db:"last_has_keyboard"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r userRow) toModel() *model.User {
	return &model.User{
		ChatID: r.ChatID,
		Name:   r.Name,
		State:  r.State,
		LastReply: reply.State{
			ChatID:      r.LastChatID,
			MessageID:   r.LastMessageID,
			HasKeyboard: r.LastHasKeyboard,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func rowFromModel(u *model.User) userRow {
	return userRow{
		ChatID:          u.ChatID,
		Name:            u.Name,
		State:           u.State,
		LastChatID:      u.LastReply.ChatID,
		LastMessageID:   u.LastReply.MessageID,
		LastHasKeyboard: u.LastReply.HasKeyboard,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

// NewPostgresStorage connects with exponential backoff and migrates the
// schema to the latest version.
func NewPostgresStorage(ctx context.Context, cfg PostgresConfig, logger *zap.Logger) (*PostgresStorage, error) {
	const operation = "storage.NewPostgresStorage"

	db, err := ConnectPostgres(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	if err := migrations.Up(ctx, db.DB, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	logger.Info("Successfully connected to PostgreSQL")
	return &PostgresStorage{db: db, logger: logger}, nil
}

// ConnectPostgres opens a pooled connection, retrying until
// cfg.ConnectTimeout (two minutes when unset) has elapsed.
func ConnectPostgres(ctx context.Context, cfg PostgresConfig, logger *zap.Logger) (*sqlx.DB, error) {
	var db *sqlx.DB

	retryPolicy := backoff.NewExponentialBackOff()
	retryPolicy.MaxElapsedTime = 2 * time.Minute
	if cfg.ConnectTimeout > 0 {
		retryPolicy.MaxElapsedTime = cfg.ConnectTimeout
	}
	retryPolicy.MaxInterval = 15 * time.Second

	logger.Info("Connecting to PostgreSQL...",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Name))

	err := backoff.RetryNotify(
		func() error {
			conn, err := sqlx.ConnectContext(ctx, "postgres", cfg.dsn())
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			if err := conn.PingContext(ctx); err != nil {
				_ = conn.Close()
				return fmt.Errorf("ping: %w", err)
			}
			db = conn
			return nil
		},
		backoff.WithContext(retryPolicy, ctx),
		func(err error, next time.Duration) {
			logger.Warn("PostgreSQL connection failed, retrying...",
				zap.Error(err),
				zap.Duration("next_attempt_in", next))
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect after retries: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func (s *PostgresStorage) Begin() Tx {
	return &postgresTx{store: s, touched: make(map[int64]*model.User)}
}

const selectUser = `
	SELECT chat_id, name, state, last_chat_id, last_message_id, last_has_keyboard, created_at, updated_at
	FROM users
	WHERE chat_id = $1
`

// GetUser loads a single user without tracking it for persist.
func (s *PostgresStorage) GetUser(ctx context.Context, chatID int64) (*model.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, selectUser, chatID); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return row.toModel(), nil
}

type postgresTx struct {
	store   *PostgresStorage
	touched map[int64]*model.User
}

func (tx *postgresTx) GetOrCreate(ctx context.Context, chatID int64, name string) (*model.User, error) {
	const operation = "storage.GetOrCreate"

	if u, ok := tx.touched[chatID]; ok {
		refreshName(u, name)
		return u, nil
	}

	u, err := tx.store.GetUser(ctx, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		u, err = tx.store.createUser(ctx, chatID, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	refreshName(u, name)
	tx.touched[chatID] = u
	return u, nil
}

func (s *PostgresStorage) createUser(ctx context.Context, chatID int64, name string) (*model.User, error) {
	const query = `
		INSERT INTO users (
			chat_id, name, state, last_chat_id, last_message_id, last_has_keyboard, created_at, updated_at
		) VALUES (
			:chat_id, :name, :state, :last_chat_id, :last_message_id, :last_has_keyboard, :created_at, :updated_at
		)
		ON CONFLICT (chat_id) DO NOTHING
	`
	if _, err := s.db.NamedExecContext(ctx, query, rowFromModel(model.NewUser(chatID, name))); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.logger.Info("Created user", zap.Int64("chat_id", chatID))

	// A concurrent insert may have won; read back whatever is stored.
	return s.GetUser(ctx, chatID)
}

func (tx *postgresTx) Persist(ctx context.Context) error {
	const operation = "storage.Persist"

	if len(tx.touched) == 0 {
		return nil
	}

	const query = `
		UPDATE users SET
			name = :name,
			state = :state,
			last_chat_id = :last_chat_id,
			last_message_id = :last_message_id,
			last_has_keyboard = :last_has_keyboard,
			updated_at = :updated_at
		WHERE chat_id = :chat_id
	`

	dbTx, err := tx.store.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", operation, err)
	}
	defer func() { _ = dbTx.Rollback() }()

	now := time.Now().UTC()
	for _, u := range tx.touched {
		u.UpdatedAt = now
		if _, err := dbTx.NamedExecContext(ctx, query, rowFromModel(u)); err != nil {
			return fmt.Errorf("%s: update user %d: %w", operation, u.ChatID, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", operation, err)
	}
	return nil
}
