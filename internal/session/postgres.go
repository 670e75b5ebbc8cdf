package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/praxis-labs/deepresearch/internal/metrics"
	"github.com/praxis-labs/deepresearch/internal/research"
)

const createResultsTable = `
CREATE TABLE IF NOT EXISTS research_results (
    id              TEXT PRIMARY KEY,
    query           TEXT NOT NULL,
    status          TEXT NOT NULL,
    iteration_count INTEGER NOT NULL,
    final_report    TEXT NOT NULL,
    payload         JSONB NOT NULL,
    started_at      TIMESTAMPTZ NOT NULL,
    finished_at     TIMESTAMPTZ NOT NULL
)`

// PostgresStore archives results durably. The full Result is stored as JSONB
// alongside the columns List and Get filter on.
type PostgresStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPostgresStore connects, verifies the connection, and ensures the schema.
func NewPostgresStore(dsn string, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, createResultsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return &PostgresStore{db: db, logger: logger}, nil
}

// newPostgresStoreWithDB is the injection seam for tests.
func newPostgresStoreWithDB(db *sqlx.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// Append implements Store.
func (s *PostgresStore) Append(ctx context.Context, result research.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		metrics.StoreAppends.WithLabelValues("postgres", "error").Inc()
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO research_results
		     (id, query, status, iteration_count, final_report, payload, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		result.ID, result.Query, result.Status, result.IterationCount,
		result.FinalReport, payload, result.StartedAt, result.FinishedAt,
	)
	if err != nil {
		metrics.StoreAppends.WithLabelValues("postgres", "error").Inc()
		return fmt.Errorf("store result: %w", err)
	}
	metrics.StoreAppends.WithLabelValues("postgres", "ok").Inc()
	return nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id string) (research.Result, error) {
	var payload []byte
	err := s.db.QueryRowxContext(ctx,
		`SELECT payload FROM research_results WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return research.Result{}, ErrNotFound
	}
	if err != nil {
		return research.Result{}, fmt.Errorf("fetch result: %w", err)
	}
	var r research.Result
	if err := json.Unmarshal(payload, &r); err != nil {
		return research.Result{}, fmt.Errorf("decode result: %w", err)
	}
	return r, nil
}

type resultRow struct {
	ID             string    `db:"id"`
	Query          string    `db:"query"`
	Status         string    `db:"status"`
	IterationCount int       `db:"iteration_count"`
	FinishedAt     time.Time `db:"finished_at"`
}

// List implements Store. Results come back newest first.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]research.Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []resultRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, query, status, iteration_count, finished_at
		   FROM research_results
		  ORDER BY finished_at DESC
		  LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	out := make([]research.Summary, 0, len(rows))
	for _, row := range rows {
		out = append(out, research.Summary{
			ID:             row.ID,
			Query:          row.Query,
			Status:         research.Status(row.Status),
			IterationCount: row.IterationCount,
			FinishedAt:     row.FinishedAt,
		})
	}
	return out, nil
}

// Close implements Store.
func (s *PostgresStore) Close() error { return s.db.Close() }
