package httpapi

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/praxis-labs/deepresearch/internal/streaming"
)

func newStreamingServer(t *testing.T) (*httptest.Server, *streaming.Manager) {
	t.Helper()
	mgr := streaming.NewManager(64)
	h := NewStreamingHandler(mgr, zap.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, mgr
}

func TestSSERequiresResearchID(t *testing.T) {
	srv, _ := newStreamingServer(t)

	resp, err := http.Get(srv.URL + "/stream/sse")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSSEReplaysBacklog(t *testing.T) {
	srv, mgr := newStreamingServer(t)

	mgr.PublishResearchEvent("r1", "planning", "research plan created")
	mgr.PublishResearchEvent("r1", "searching", "found 3 relevant sources")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/stream/sse?research_id=r1", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var lines []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) >= 8 {
			break
		}
	}

	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, ": connected to research r1")
	assert.Contains(t, joined, "event: planning")
	assert.Contains(t, joined, "event: searching")
	assert.Contains(t, joined, "research plan created")
}

func TestSSETypeFilter(t *testing.T) {
	srv, mgr := newStreamingServer(t)

	mgr.PublishResearchEvent("r1", "planning", "plan")
	mgr.PublishResearchEvent("r1", "searching", "search")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		srv.URL+"/stream/sse?research_id=r1&types=searching", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var lines []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) >= 5 {
			break
		}
	}

	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "event: searching")
	assert.NotContains(t, joined, "event: planning")
}

func TestWebSocketDeliversEvents(t *testing.T) {
	srv, mgr := newStreamingServer(t)

	mgr.PublishResearchEvent("r1", "planning", "backlog event")

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream/ws?research_id=r1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Replay arrives first, then live events.
	var evt streaming.Event
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, "planning", evt.Type)
	assert.Equal(t, "backlog event", evt.Message)

	mgr.PublishResearchEvent("r1", "reporting", "live event")
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, "reporting", evt.Type)
}

func TestWebSocketRequiresResearchID(t *testing.T) {
	srv, _ := newStreamingServer(t)

	resp, err := http.Get(srv.URL + "/stream/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
