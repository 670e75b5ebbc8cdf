package retriever

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/praxis-labs/deepresearch/internal/metrics"
	"github.com/praxis-labs/deepresearch/internal/tracing"
)

// Config controls the HTTP retriever client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	TopK    int
}

// Client calls a search sidecar service over HTTP.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient builds an HTTP retriever client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.TopK == 0 {
		cfg.TopK = 5
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type searchResponse struct {
	Results []Document `json:"results"`
}

// Search implements Retriever.
func (c *Client) Search(ctx context.Context, query string, k int) ([]Document, error) {
	if k <= 0 {
		k = c.cfg.TopK
	}

	url := fmt.Sprintf("%s/search", c.cfg.BaseURL)
	payload := searchRequest{Query: query, TopK: k}
	buf, _ := json.Marshal(payload)

	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodPost, url)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordRetrieverSearch("error", 0)
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordRetrieverSearch("error", 0)
		return nil, fmt.Errorf("search http status %d", resp.StatusCode)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		metrics.RecordRetrieverSearch("error", 0)
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	// Clamp scores to [0,1] rather than trusting the backend.
	out := make([]Document, 0, len(sr.Results))
	for _, d := range sr.Results {
		if d.RelevanceScore < 0 {
			d.RelevanceScore = 0
		} else if d.RelevanceScore > 1 {
			d.RelevanceScore = 1
		}
		if d.SourceType == "" {
			d.SourceType = SourceWeb
		}
		out = append(out, d)
	}
	metrics.RecordRetrieverSearch("ok", len(out))
	return out, nil
}
