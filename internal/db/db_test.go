package db

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "pgx"), mock
}

func TestRunInTxCommits(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := RunInTx(context.Background(), db, func(tx *sqlx.Tx) error {
		_, err := tx.Exec("UPDATE users SET name = 'x'")
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	sentinel := errors.New("insert failed")
	err := RunInTx(context.Background(), db, func(tx *sqlx.Tx) error {
		return sentinel
	})

	assert.ErrorIs(t, err, sentinel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxRollsBackOnPanic(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = RunInTx(context.Background(), db, func(tx *sqlx.Tx) error {
			panic("boom")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationsAreEmbeddedInPairs(t *testing.T) {
	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationsFS, "migrations/*.down.sql")
	require.NoError(t, err)

	require.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))

	body, err := fs.ReadFile(migrationsFS, "migrations/000001_init.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "ON DELETE CASCADE")
	assert.Contains(t, string(body), "users_email_key")
}

func TestNewPoolConfigSetsSessionTimeZone(t *testing.T) {
	cfg, err := NewPoolConfig(Config{
		DSN:      "postgres://u:p@localhost:5432/app?sslmode=disable",
		MaxConns: 4,
		TimeZone: "Europe/Moscow",
	})
	require.NoError(t, err)

	assert.Equal(t, "Europe/Moscow", cfg.ConnConfig.RuntimeParams["timezone"])
	assert.Equal(t, int32(4), cfg.MaxConns)
	assert.Equal(t, int32(2), cfg.MinConns)
}

func TestNewPoolConfigKeepsServerZoneWhenEmpty(t *testing.T) {
	cfg, err := NewPoolConfig(Config{DSN: "postgres://u:p@localhost:5432/app?sslmode=disable"})
	require.NoError(t, err)

	_, ok := cfg.ConnConfig.RuntimeParams["timezone"]
	assert.False(t, ok)
}

func TestSessionTimeZone(t *testing.T) {
	moscow, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	assert.Equal(t, "Europe/Moscow", SessionTimeZone(moscow))
	assert.Equal(t, "UTC", SessionTimeZone(time.UTC))
	assert.Equal(t, "", SessionTimeZone(nil))

	t.Setenv("TZ", "Asia/Tokyo")
	assert.Equal(t, "Asia/Tokyo", SessionTimeZone(time.Local))

	t.Setenv("TZ", ":/etc/localtime")
	assert.Equal(t, "", SessionTimeZone(time.Local))
}
