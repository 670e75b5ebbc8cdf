package retriever

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClientSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)

		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "quantum computing", req.Query)
		assert.Equal(t, 5, req.TopK)

		_ = json.NewEncoder(w).Encode(searchResponse{Results: []Document{
			{Title: "a", URL: "https://a", Content: "x", RelevanceScore: 0.9, SourceType: SourceAcademic},
			{Title: "b", URL: "https://b", Content: "y", RelevanceScore: 1.4},
		}})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, zap.NewNop())
	docs, err := c.Search(context.Background(), "quantum computing", 5)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, SourceAcademic, docs[0].SourceType)
	// Out-of-range scores clamp, untagged sources default to web.
	assert.Equal(t, 1.0, docs[1].RelevanceScore)
	assert.Equal(t, SourceWeb, docs[1].SourceType)
}

func TestClientSearchEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(searchResponse{})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, zap.NewNop())
	docs, err := c.Search(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestClientSearchBackendDown(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, zap.NewNop())
	_, err := c.Search(context.Background(), "anything", 3)
	assert.Error(t, err)
}

func TestStubDeterministicShape(t *testing.T) {
	s := NewStub()
	docs, err := s.Search(context.Background(), "impact of X on Y", 5)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, SourceAcademic, docs[0].SourceType)
	assert.Equal(t, SourceIndustry, docs[1].SourceType)
	assert.Equal(t, SourceNews, docs[2].SourceType)
	for _, d := range docs {
		assert.GreaterOrEqual(t, d.RelevanceScore, 0.0)
		assert.LessOrEqual(t, d.RelevanceScore, 1.0)
		assert.NotEmpty(t, d.URL)
	}
}

func TestStubRespectsK(t *testing.T) {
	s := NewStub()
	docs, err := s.Search(context.Background(), "q", 1)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	docs, err = s.Search(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Empty(t, docs)
}
