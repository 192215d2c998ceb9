package job

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

func TestInsertExecutesSingleStatement(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`insert into "jobs"`).
		WithArgs("vod-1", string(Pending), "My VOD", "", "", "", "", "").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Insert(context.Background(), &Job{VodID: "vod-1", Stage: Pending, Description: "My VOD"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNextEligibleOrdersByStagePriority(t *testing.T) {
	store, mock := newMockStore(t)
	cols := []string{
		"vod_id", "stage", "description",
		"vod_file_path", "chat_text_file_path", "chat_video_file_path",
		"final_video_file_path", "uploaded_video_id",
		"leased_by", "leased_at_utc",
		"failed", "fail_reason", "fail_count",
	}
	rows := sqlmock.NewRows(cols).AddRow(
		"vod-2", string(RenderingChat), "", "v", "c", "", "", "",
		"", nil, false, "", 0,
	)
	mock.ExpectQuery(`select .* from "jobs" where "failed" = false and \(case "stage" when`).
		WillReturnRows(rows)

	got, err := store.NextEligible(context.Background())
	require.NoError(t, err)
	require.Equal(t, "vod-2", got.VodID)
	require.Equal(t, RenderingChat, got.Stage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNextEligibleReturnsNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	cols := []string{
		"vod_id", "stage", "description",
		"vod_file_path", "chat_text_file_path", "chat_video_file_path",
		"final_video_file_path", "uploaded_video_id",
		"leased_by", "leased_at_utc",
		"failed", "fail_reason", "fail_count",
	}
	mock.ExpectQuery(`select .* from "jobs"`).WillReturnRows(sqlmock.NewRows(cols))

	_, err := store.NextEligible(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementFailCountReturnsNewCount(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`update "jobs"`).
		WithArgs("boom", "vod-1").
		WillReturnRows(sqlmock.NewRows([]string{"fail_count"}).AddRow(2))

	count, err := store.IncrementFailCount(context.Background(), "vod-1", "boom")
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailedSetsFailedFlag(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`update "jobs" set "fail_reason" = \$1, "failed" = true`).
		WithArgs("permanent error", "vod-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.MarkFailed(context.Background(), "vod-1", "permanent error")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetArtifactRejectsUnknownField(t *testing.T) {
	store, _ := newMockStore(t)
	err := store.SetArtifact(context.Background(), "vod-1", "NotAField", "x")
	require.Error(t, err)
}

func TestResetFailureClearsFailedFlagOnly(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`update "jobs" set "failed" = false, "fail_reason" = '' where`).
		WithArgs("vod-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.ResetFailure(context.Background(), "vod-1", false)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResetFailureAlsoClearsFailCount(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`update "jobs" set "failed" = false, "fail_reason" = '', "fail_count" = 0 where`).
		WithArgs("vod-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.ResetFailure(context.Background(), "vod-1", true)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
