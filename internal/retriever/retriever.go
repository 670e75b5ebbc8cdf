package retriever

import "context"

// SourceType tags where a document came from.
type SourceType string

const (
	SourceAcademic SourceType = "academic"
	SourceIndustry SourceType = "industry"
	SourceNews     SourceType = "news"
	SourceWeb      SourceType = "web"
)

// Document is one scored passage returned by a search.
type Document struct {
	Title          string     `json:"title"`
	URL            string     `json:"url"`
	Content        string     `json:"content"`
	RelevanceScore float64    `json:"relevance_score"`
	SourceType     SourceType `json:"source_type"`
}

// Retriever is an opaque search capability returning scored passages.
// An empty result list is valid and is not an error.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]Document, error)
}
