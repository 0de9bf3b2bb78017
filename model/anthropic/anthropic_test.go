package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hupe1980/tickmesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ model.Model = (*Model)(nil)

func TestModel_Generate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-0",
			"content": [{"type": "text", "text": "review complete"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 2}
		}`))
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test-key"
		o.BaseURL = srv.URL
	})
	resp, err := m.Generate(context.Background(), model.Request{Model: "claude-sonnet-4-0", Instructions: "persona", Input: "actor outputs"})
	require.NoError(t, err)
	assert.Equal(t, "review complete", resp.Text)
	assert.Equal(t, "end_turn", resp.FinishReason)
	assert.Equal(t, 12, resp.Usage.TotalTokens)

	assert.Equal(t, "claude-sonnet-4-0", got["model"])
	system, ok := got["system"].([]any)
	require.True(t, ok)
	assert.Equal(t, "persona", system[0].(map[string]any)["text"])
}

func TestModel_Info(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "k" })
	assert.Equal(t, ProviderName, m.Info().Provider)
}
