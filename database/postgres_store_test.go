package database_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/MouadFiali/gke-cloud-project/database"
)

func newMockPostgres(t *testing.T) (*database.PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return database.NewPostgresStore(db), mock
}

var (
	selectCart = regexp.QuoteMeta(`SELECT * FROM "cart_records" WHERE user_id = $1`)
	insertCart = regexp.QuoteMeta(`INSERT INTO "cart_records"`)
)

func TestPostgresStore_Get(t *testing.T) {
	store, mock := newMockPostgres(t)

	rows := sqlmock.NewRows([]string{"user_id", "data", "updated_at"}).
		AddRow("u1", []byte{0x0a, 0x02, 'u', '1'}, time.Now())
	mock.ExpectQuery(selectCart).WillReturnRows(rows)

	got, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0x02, 'u', '1'}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMissing(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectQuery(selectCart).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "data", "updated_at"}))

	_, err := store.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, database.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetError(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectQuery(selectCart).WillReturnError(errors.New("connection reset"))

	_, err := store.Get(context.Background(), "u1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, database.ErrNotFound)
}

func TestPostgresStore_SetUpserts(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectExec(insertCart + `.*ON CONFLICT`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Set(context.Background(), "u1", []byte("cart")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateLocksRow(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec(insertCart + `.*ON CONFLICT .* DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectCart + `.*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "data", "updated_at"}).
			AddRow("u1", []byte("old"), time.Now()))
	mock.ExpectExec(insertCart + `.*DO UPDATE`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Update(context.Background(), "u1", func(current []byte, found bool) ([]byte, error) {
		assert.True(t, found)
		assert.Equal(t, []byte("old"), current)
		return []byte("new"), nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateNewKeyInsertsPlaceholderFirst(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec(insertCart + `.*ON CONFLICT .* DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertCart + `.*DO UPDATE`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Update(context.Background(), "u1", func(current []byte, found bool) ([]byte, error) {
		assert.False(t, found)
		assert.Empty(t, current)
		return []byte("first"), nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRollsBackOnCallbackError(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec(insertCart + `.*DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := store.Update(context.Background(), "u1", func(current []byte, found bool) ([]byte, error) {
		assert.False(t, found)
		return nil, assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}
