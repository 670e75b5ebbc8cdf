package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/praxis-labs/deepresearch/internal/research"
)

func newTestPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	store := newPostgresStoreWithDB(sqlx.NewDb(db, "sqlmock"), zap.NewNop())
	t.Cleanup(func() { _ = store.Close() })
	return store, mock
}

func TestPostgresStoreAppend(t *testing.T) {
	store, mock := newTestPostgresStore(t)
	res := sampleResult("id-1", "quantum computing", research.StatusCompleted)

	mock.ExpectExec(`INSERT INTO research_results`).
		WithArgs(res.ID, res.Query, string(res.Status), res.IterationCount,
			res.FinalReport, sqlmock.AnyArg(), res.StartedAt, res.FinishedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Append(context.Background(), res))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGet(t *testing.T) {
	store, mock := newTestPostgresStore(t)
	res := sampleResult("id-1", "quantum computing", research.StatusFailed)
	payload, err := json.Marshal(res)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT payload FROM research_results WHERE id = \$1`).
		WithArgs("id-1").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

	got, err := store.Get(context.Background(), "id-1")
	require.NoError(t, err)
	assert.Equal(t, res.ID, got.ID)
	assert.Equal(t, research.StatusFailed, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetNotFound(t *testing.T) {
	store, mock := newTestPostgresStore(t)

	mock.ExpectQuery(`SELECT payload FROM research_results WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStoreList(t *testing.T) {
	store, mock := newTestPostgresStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT id, query, status, iteration_count, finished_at`).
		WithArgs(2).
		WillReturnRows(sqlmock.
			NewRows([]string{"id", "query", "status", "iteration_count", "finished_at"}).
			AddRow("id-2", "second", "completed", 3, now).
			AddRow("id-1", "first", "failed", 1, now.Add(-time.Hour)))

	sums, err := store.List(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, "id-2", sums[0].ID)
	assert.Equal(t, research.StatusFailed, sums[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
