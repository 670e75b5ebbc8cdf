package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxis-labs/deepresearch/internal/research"
)

func sampleResult(id, query string, status research.Status) research.Result {
	return research.Result{
		ID:             id,
		Query:          query,
		FinalReport:    "# Report for " + query,
		IterationCount: 2,
		Status:         status,
		StartedAt:      time.Now().Add(-time.Minute),
		FinishedAt:     time.Now(),
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	res := sampleResult("id-1", "quantum computing", research.StatusCompleted)
	require.NoError(t, s.Append(ctx, res))

	got, err := s.Get(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, res.FinalReport, got.FinalReport)
	assert.Equal(t, research.StatusCompleted, got.Status)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreListNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("id-%d", i)
		require.NoError(t, s.Append(ctx, sampleResult(id, "q", research.StatusCompleted)))
	}

	sums, err := s.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, sums, 3)
	assert.Equal(t, "id-4", sums[0].ID)
	assert.Equal(t, "id-3", sums[1].ID)
	assert.Equal(t, "id-2", sums[2].ID)

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestMemoryStoreFailedResultsListed(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, sampleResult("ok", "q", research.StatusCompleted)))
	require.NoError(t, s.Append(ctx, sampleResult("bad", "q", research.StatusFailed)))

	sums, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, research.StatusFailed, sums[0].Status)
}
