package database

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"network/internal/config"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	db := &DB{
		DB:     sqlx.NewDb(conn, "sqlmock"),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestConnString(t *testing.T) {
	cfg := config.Default().DB

	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=password dbname=network sslmode=disable",
		connString(cfg))
}

func TestRunMigrations(t *testing.T) {
	t.Run("creates snapshot table", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS query_snapshots`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.NoError(t, db.RunMigrations(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps failure", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(`CREATE TABLE`).WillReturnError(fmt.Errorf("permission denied"))

		err := db.RunMigrations(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "create snapshot table")
	})
}

func TestHealthCheck(t *testing.T) {
	var nilDB *DB
	assert.Error(t, nilDB.HealthCheck())

	db, mock := newMockDB(t)
	mock.ExpectPing()
	assert.NoError(t, db.HealthCheck())
	assert.NoError(t, mock.ExpectationsWereMet())
}
