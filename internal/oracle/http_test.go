package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/completions/", r.URL.Path)

		var req completionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "planner", req.Role)
		assert.Equal(t, "json", req.ResponseFormat)
		assert.Equal(t, "test-model", req.Model)

		_ = json.NewEncoder(w).Encode(completionResponse{Text: `{"sub_questions":["q"]}`})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, DefaultModel: "test-model"}, zap.NewNop())
	out, err := c.Complete(context.Background(), CompletionRequest{
		Role:         RolePlanner,
		SystemPrompt: "sys",
		UserPrompt:   "user",
		Format:       FormatJSON,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"sub_questions":["q"]}`, out)
}

func TestClientCompleteStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, zap.NewNop())
	_, err := c.Complete(context.Background(), CompletionRequest{Role: RoleReporter})
	require.Error(t, err)

	var oe *Error
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, KindStatus, oe.Kind)
}

func TestClientCompleteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, zap.NewNop())
	_, err := c.Complete(context.Background(), CompletionRequest{Role: RoleAnalyst})
	require.Error(t, err)
	assert.True(t, IsTimeout(err), "expected timeout kind, got %v", err)
}

func TestClientCompleteUnavailable(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, zap.NewNop())
	_, err := c.Complete(context.Background(), CompletionRequest{Role: RolePlanner})
	require.Error(t, err)

	var oe *Error
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, KindUnavailable, oe.Kind)
}

func TestStubRoleRouting(t *testing.T) {
	s := &Stub{
		Responses: map[Role]string{RolePlanner: "plan"},
		Default:   "fallback",
	}
	out, err := s.Complete(context.Background(), CompletionRequest{Role: RolePlanner})
	require.NoError(t, err)
	assert.Equal(t, "plan", out)

	out, err = s.Complete(context.Background(), CompletionRequest{Role: RoleAnalyst})
	require.NoError(t, err)
	assert.Equal(t, "fallback", out)
	assert.Equal(t, 1, s.CallCount(RolePlanner))
	assert.Equal(t, 1, s.CallCount(RoleAnalyst))
}
