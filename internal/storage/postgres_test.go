package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dialog-bot/internal/model"
	"dialog-bot/internal/reply"
)

var userColumns = []string{
	"chat_id", "name", "state", "last_chat_id", "last_message_id", "last_has_keyboard", "created_at", "updated_at",
}

func newMockPostgres(t *testing.T) (*PostgresStorage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return &PostgresStorage{db: sqlx.NewDb(db, "postgres"), logger: zap.NewNop()}, mock
}

func TestPostgresGetOrCreateLoadsExistingUser(t *testing.T) {
	store, mock := newMockPostgres(t)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery("SELECT chat_id, name, state").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(int64(42), "Ada", "loud", int64(42), int64(9), true, created, created))

	tx := store.Begin()
	u, err := tx.GetOrCreate(context.Background(), 42, "Ada L.")
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", u.Name)
	assert.Equal(t, "loud", u.State)
	assert.Equal(t, reply.State{ChatID: 42, MessageID: 9, HasKeyboard: true}, u.LastReply)

	again, err := tx.GetOrCreate(context.Background(), 42, "")
	require.NoError(t, err)
	assert.Same(t, u, again, "a user is loaded once per turn")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetOrCreateReadsBackAfterInsert(t *testing.T) {
	store, mock := newMockPostgres(t)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery("SELECT chat_id, name, state").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(userColumns))
	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(0, 0))
	// another turn inserted the row first
	mock.ExpectQuery("SELECT chat_id, name, state").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(int64(7), "Grace", model.StateNew, int64(7), int64(0), false, created, created))

	u, err := store.Begin().GetOrCreate(context.Background(), 7, "Grace")
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ChatID)
	assert.Equal(t, model.StateNew, u.State)
	assert.Equal(t, created, u.CreatedAt)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPersistUpdatesInTransaction(t *testing.T) {
	store, mock := newMockPostgres(t)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery("SELECT chat_id, name, state").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(int64(42), "Ada", model.StateNew, int64(42), int64(0), false, created, created))

	tx := store.Begin()
	u, err := tx.GetOrCreate(context.Background(), 42, "Ada")
	require.NoError(t, err)
	u.State = "quiet"
	u.LastReply = reply.State{ChatID: 42, MessageID: 15, HasKeyboard: true}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET").
		WithArgs("Ada", "quiet", int64(42), int64(15), true, sqlmock.AnyArg(), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, tx.Persist(context.Background()))
	assert.True(t, u.UpdatedAt.After(created))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPersistRollsBackOnError(t *testing.T) {
	store, mock := newMockPostgres(t)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery("SELECT chat_id, name, state").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(int64(42), "Ada", model.StateNew, int64(42), int64(0), false, created, created))

	tx := store.Begin()
	_, err := tx.GetOrCreate(context.Background(), 42, "Ada")
	require.NoError(t, err)

	boom := errors.New("connection reset")
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET").WillReturnError(boom)
	mock.ExpectRollback()

	err = tx.Persist(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "storage.Persist")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPersistWithoutUsersSkipsDatabase(t *testing.T) {
	store, mock := newMockPostgres(t)

	require.NoError(t, store.Begin().Persist(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
