// internal/llm/providers/deepseek/deepseek_test.go
package deepseek

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyu-ai/moyu-writer/internal/llm"
)

func newProvider(t *testing.T, config map[string]string) llm.Provider {
	t.Helper()
	provider, err := llm.GetProvider("deepseek", config)
	require.NoError(t, err)
	return provider
}

func TestCompleteTextSimulatedWithoutKey(t *testing.T) {
	provider := newProvider(t, map[string]string{})

	resp, err := provider.CompleteText(context.Background(), llm.CompletionRequest{
		Prompt: "写一个开头。",
	})
	require.NoError(t, err)
	assert.True(t, resp.Simulated)
	assert.Equal(t, "deepseek-chat", resp.ModelName)
	assert.Contains(t, resp.Text, "模拟输出")
	assert.Contains(t, resp.Text, "deepseek-chat")
}

func TestCompleteTextWireFormat(t *testing.T) {
	var captured struct {
		auth string
		body map[string]interface{}
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.auth = r.Header.Get("Authorization")
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured.body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"雨停了。"}}]}`))
	}))
	defer server.Close()

	provider := newProvider(t, map[string]string{
		"api_key":  "sk-test",
		"base_url": server.URL,
	})

	resp, err := provider.CompleteText(context.Background(), llm.CompletionRequest{
		Prompt:      "续写一句。",
		Model:       "deepseek-reasoner",
		Temperature: 0.9,
		MaxTokens:   320,
	})
	require.NoError(t, err)
	assert.False(t, resp.Simulated)
	assert.Equal(t, "雨停了。", resp.Text)
	assert.Equal(t, "deepseek-reasoner", resp.ModelName)
	assert.Equal(t, "DeepSeek", resp.ProviderName)

	assert.Equal(t, "Bearer sk-test", captured.auth)
	assert.Equal(t, "deepseek-reasoner", captured.body["model"])
	assert.Equal(t, float64(320), captured.body["max_tokens"])
	messages, ok := captured.body["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 2)
	first := messages[0].(map[string]interface{})
	assert.Equal(t, "system", first["role"])
	second := messages[1].(map[string]interface{})
	assert.Equal(t, "续写一句。", second["content"])
}

func TestCompleteTextUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error":{"message":"Invalid API key"}}`))
	}))
	defer server.Close()

	provider := newProvider(t, map[string]string{
		"api_key":  "sk-bad",
		"base_url": server.URL,
	})

	_, err := provider.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API key")
}
