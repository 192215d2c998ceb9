package metadata

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

func TestGetReturnsScannedMetadata(t *testing.T) {
	store, mock := newMockStore(t)
	captured := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"vod_id", "title", "url", "channel", "captured_at_utc", "duration_secs"}).
		AddRow("v1", "Epic Stream", "https://example.com/v1", "some_channel", captured, 3600.0)
	mock.ExpectQuery(`select .* from "vod_metadata"`).WithArgs("v1").WillReturnRows(rows)

	m, err := store.Get(context.Background(), "v1")
	require.NoError(t, err)
	require.Equal(t, "Epic Stream", m.Title)
	require.Equal(t, "some_channel", m.Channel)
	require.Equal(t, captured, m.CapturedAtUtc)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReturnsNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`select .* from "vod_metadata"`).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := store.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}
