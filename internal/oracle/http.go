package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/praxis-labs/deepresearch/internal/circuitbreaker"
	"github.com/praxis-labs/deepresearch/internal/metrics"
	"github.com/praxis-labs/deepresearch/internal/ratecontrol"
	"github.com/praxis-labs/deepresearch/internal/tracing"
)

// Config controls the HTTP oracle client.
type Config struct {
	BaseURL      string
	DefaultModel string
	Provider     string
	Timeout      time.Duration
}

// Client calls an OpenAI-compatible completion sidecar over HTTP. Rate
// limiting and circuit breaking live here, not in the orchestrator.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *ratecontrol.Limiter
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewClient builds an HTTP oracle client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o-mini"
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: ratecontrol.LimiterForProvider(cfg.Provider),
		breaker: circuitbreaker.New("oracle", circuitbreaker.DefaultConfig(), logger),
		logger:  logger,
	}
}

type completionRequest struct {
	Model          string `json:"model"`
	Role           string `json:"role,omitempty"`
	SystemPrompt   string `json:"system_prompt"`
	UserPrompt     string `json:"user_prompt"`
	ResponseFormat string `json:"response_format"`
}

type completionResponse struct {
	Text string `json:"text"`
}

// Complete implements Oracle.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", &Error{Kind: KindTimeout, Msg: "rate limit wait", Err: err}
	}

	start := time.Now()
	var text string
	err := c.breaker.Execute(ctx, func() error {
		var err error
		text, err = c.doComplete(ctx, req)
		return err
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			metrics.RecordOracleRequest("rejected", 0)
			return "", &Error{Kind: KindUnavailable, Msg: "circuit open", Err: err}
		}
		metrics.RecordOracleRequest("error", time.Since(start).Seconds())
		return "", err
	}
	metrics.RecordOracleRequest("ok", time.Since(start).Seconds())
	return text, nil
}

func (c *Client) doComplete(ctx context.Context, req CompletionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.DefaultModel
	}
	format := req.Format
	if format == "" {
		format = FormatText
	}

	url := fmt.Sprintf("%s/completions/", c.cfg.BaseURL)
	payload := completionRequest{
		Model:          model,
		Role:           string(req.Role),
		SystemPrompt:   req.SystemPrompt,
		UserPrompt:     req.UserPrompt,
		ResponseFormat: string(format),
	}
	buf, _ := json.Marshal(payload)

	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodPost, url)
	defer span.End()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return "", &Error{Kind: KindUnavailable, Msg: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil || isTimeoutErr(err) {
			return "", &Error{Kind: KindTimeout, Msg: "completion request", Err: err}
		}
		return "", &Error{Kind: KindUnavailable, Msg: "completion request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("Oracle returned non-200",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return "", &Error{Kind: KindStatus, Msg: fmt.Sprintf("completion http status %d", resp.StatusCode)}
	}

	var cr completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", &Error{Kind: KindStatus, Msg: "decode completion response", Err: err}
	}
	return cr.Text, nil
}

func isTimeoutErr(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
