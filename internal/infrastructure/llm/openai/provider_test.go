package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/planwright/planwright/internal/domain/service"
	llm "github.com/planwright/planwright/internal/infrastructure/llm"
	"go.uber.org/zap"
)

func newServerProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(llm.ProviderConfig{
		Name:    "openai",
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Models:  []string{"gpt-4o", "gpt-4o-mini"},
	}, zap.NewNop())
}

func TestChatCompletion(t *testing.T) {
	var gotAuth, gotPath string
	var gotReq map[string]any
	p := newServerProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(`{
			"model": "gpt-4o-2024-08-06",
			"choices": [{"message": {"role": "assistant", "content": "hello"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3}
		}`))
	})

	resp, err := p.ChatCompletion(context.Background(), &llm.Request{
		Model: "openai/gpt-4o",
		Messages: []service.ChatMessage{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hi"},
		},
		Temperature: 0.2,
		MaxTokens:   128,
	})
	if err != nil {
		t.Fatalf("ChatCompletion() error: %v", err)
	}

	if gotPath != "/chat/completions" {
		t.Errorf("path = %s", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header = %q", gotAuth)
	}
	// The provider prefix is stripped before the wire.
	if gotReq["model"] != "gpt-4o" {
		t.Errorf("wire model = %v, want gpt-4o", gotReq["model"])
	}

	if resp.Text != "hello" || resp.FinishReason != "stop" {
		t.Errorf("response = %+v", resp)
	}
	if resp.PromptTokens != 12 || resp.CompletionTokens != 3 {
		t.Errorf("usage = %d/%d", resp.PromptTokens, resp.CompletionTokens)
	}
	if resp.Model != "gpt-4o-2024-08-06" {
		t.Errorf("model = %q, want the server-reported version", resp.Model)
	}
}

func TestChatCompletionToolCall(t *testing.T) {
	p := newServerProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"model": "gpt-4o",
			"choices": [{
				"message": {
					"role": "assistant",
					"content": null,
					"tool_calls": [
						{"id": "c1", "type": "function", "function": {"name": "create_plan", "arguments": "{\"description\":\"d\"}"}},
						{"id": "c2", "type": "function", "function": {"name": "create_plan", "arguments": "{}"}}
					]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 10}
		}`))
	})

	resp, err := p.ChatCompletion(context.Background(), &llm.Request{
		Model:    "gpt-4o",
		Messages: []service.ChatMessage{{Role: "user", Content: "plan it"}},
		Tools:    []service.ToolSchema{{Name: "create_plan", Parameters: map[string]any{"type": "object"}}},
	})
	if err != nil {
		t.Fatalf("ChatCompletion() error: %v", err)
	}

	if resp.Text != `{"description":"d"}` {
		t.Errorf("text = %q, want the first call's arguments", resp.Text)
	}
	if resp.FinishReason != "tool_calls" || resp.ToolCallCount != 2 {
		t.Errorf("finish = %q, tool calls = %d", resp.FinishReason, resp.ToolCallCount)
	}
}

func TestChatCompletionAPIError(t *testing.T) {
	p := newServerProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limit"}}`))
	})

	_, err := p.ChatCompletion(context.Background(), &llm.Request{
		Model:    "gpt-4o",
		Messages: []service.ChatMessage{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("ChatCompletion() succeeded on a 429")
	}
	if !strings.Contains(err.Error(), "API error 429") {
		t.Errorf("error = %v", err)
	}
}

func TestChatCompletionEmptyChoices(t *testing.T) {
	p := newServerProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"model": "gpt-4o", "choices": []}`))
	})

	if _, err := p.ChatCompletion(context.Background(), &llm.Request{
		Model:    "gpt-4o",
		Messages: []service.ChatMessage{{Role: "user", Content: "hi"}},
	}); err == nil {
		t.Fatal("ChatCompletion() accepted a response without choices")
	}
}

func TestEmbedding(t *testing.T) {
	p := newServerProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data": [{"embedding": [0.25, 0.5, 0.75]}]}`))
	})

	vec, err := p.Embedding(context.Background(), "some text")
	if err != nil {
		t.Fatalf("Embedding() error: %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.5 {
		t.Errorf("vector = %v", vec)
	}
}

func TestSupportsModel(t *testing.T) {
	p := New(llm.ProviderConfig{Name: "openai", Models: []string{"gpt-4o"}}, zap.NewNop())
	if !p.SupportsModel("gpt-4o") {
		t.Error("configured model reported unsupported")
	}
	if p.SupportsModel("claude-sonnet-4-20250514") {
		t.Error("foreign model reported supported")
	}

	// An empty model list accepts anything (self-hosted gateways).
	open := New(llm.ProviderConfig{Name: "local"}, zap.NewNop())
	if !open.SupportsModel("whatever") {
		t.Error("open provider rejected a model")
	}
}

func TestDefaultModelFallbacks(t *testing.T) {
	tests := []struct {
		name string
		cfg  llm.ProviderConfig
		want string
	}{
		{"explicit", llm.ProviderConfig{DefaultModel: "gpt-4o-mini", Models: []string{"gpt-4o"}}, "gpt-4o-mini"},
		{"first model", llm.ProviderConfig{Models: []string{"gpt-4.1", "gpt-4o"}}, "gpt-4.1"},
		{"built-in", llm.ProviderConfig{}, "gpt-4o"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := New(tt.cfg, zap.NewNop()).DefaultModel(); got != tt.want {
				t.Errorf("DefaultModel() = %q, want %q", got, tt.want)
			}
		})
	}
}
