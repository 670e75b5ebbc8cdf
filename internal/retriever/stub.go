package retriever

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Stub is a deterministic offline retriever. For every query it fabricates
// one academic, one industry and one news result with decaying relevance
// scores, so search behavior is reproducible without a live search backend.
type Stub struct {
	mu sync.Mutex
	// seq counts searches to vary URLs across calls.
	seq int
}

// NewStub creates a deterministic stub retriever.
func NewStub() *Stub { return &Stub{} }

// Search implements Retriever.
func (s *Stub) Search(_ context.Context, query string, k int) ([]Document, error) {
	if k <= 0 {
		return nil, nil
	}
	slug := strings.ReplaceAll(strings.TrimSpace(query), " ", "-")
	if slug == "" {
		slug = "untitled"
	}
	s.mu.Lock()
	i := s.seq
	s.seq++
	s.mu.Unlock()

	decay := float64(i%3) * 0.1
	docs := []Document{
		{
			Title:          fmt.Sprintf("Research Article: %s", query),
			URL:            fmt.Sprintf("https://example.com/research/%s-%d", slug, i),
			Content:        fmt.Sprintf("A comprehensive article about %s with detailed insights, methodology and evidence-based conclusions.", query),
			RelevanceScore: 0.95 - decay,
			SourceType:     SourceAcademic,
		},
		{
			Title:          fmt.Sprintf("Industry Report: %s", query),
			URL:            fmt.Sprintf("https://example.com/industry/%s-%d", slug, i),
			Content:        fmt.Sprintf("An industry analysis of %s covering market trends, predictions and practical applications.", query),
			RelevanceScore: 0.88 - decay,
			SourceType:     SourceIndustry,
		},
		{
			Title:          fmt.Sprintf("News Article: %s", query),
			URL:            fmt.Sprintf("https://example.com/news/%s-%d", slug, i),
			Content:        fmt.Sprintf("Recent news and developments related to %s with current perspectives on the topic.", query),
			RelevanceScore: 0.82 - decay,
			SourceType:     SourceNews,
		},
	}
	if k < len(docs) {
		docs = docs[:k]
	}
	return docs, nil
}
