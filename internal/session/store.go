// Package session persists finished research results and serves them back to
// API clients. Three backends share one contract: in-memory for tests and
// single-node runs, Redis for shared short-lived storage, Postgres for a
// durable archive.
package session

import (
	"context"
	"errors"

	"github.com/praxis-labs/deepresearch/internal/research"
)

// ErrNotFound is returned by Get when no result exists for the id.
var ErrNotFound = errors.New("research result not found")

// Store is the read/write contract for finished research results. Append is
// the only write: results are immutable once a session finishes.
type Store interface {
	Append(ctx context.Context, result research.Result) error
	Get(ctx context.Context, id string) (research.Result, error)
	List(ctx context.Context, limit int) ([]research.Summary, error)
	Close() error
}

func summarize(r research.Result) research.Summary {
	return research.Summary{
		ID:             r.ID,
		Query:          r.Query,
		Status:         r.Status,
		IterationCount: r.IterationCount,
		FinishedAt:     r.FinishedAt,
	}
}
