package postgresql

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClientWithDB(sqlx.NewDb(db, "postgres"), logger), mock
}

func TestConfigDSN(t *testing.T) {
	cfg := &Config{
		Host:     "localhost",
		Port:     5432,
		User:     "tracker",
		Password: "secret",
		Database: "tasks",
		SSLMode:  "disable",
	}

	assert.Equal(t, "host=localhost port=5432 user=tracker password=secret dbname=tasks sslmode=disable", cfg.DSN())
}

func TestHealthCheck(t *testing.T) {
	c, mock := newMockClient(t)

	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	assert.NoError(t, c.HealthCheck(context.Background()))

	mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("connection refused"))
	err := c.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database health check failed")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	c, mock := newMockClient(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "002_second.sql"), []byte("CREATE INDEX two"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_first.sql"), []byte("CREATE TABLE one"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o600))

	mock.ExpectExec("CREATE TABLE one").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX two").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, c.Migrate(context.Background(), dir))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_StopsOnError(t *testing.T) {
	c, mock := newMockClient(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_bad.sql"), []byte("CREATE TABLE broken"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "002_next.sql"), []byte("CREATE TABLE next"), 0o600))

	mock.ExpectExec("CREATE TABLE broken").WillReturnError(errors.New("syntax error"))

	err := c.Migrate(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "001_bad.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}
