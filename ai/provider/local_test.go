package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLocalClient_RequestShape(t *testing.T) {
	var got localChatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"model":   "qwen2.5:7b",
			"message": map[string]string{"role": "assistant", "content": `{"keywords":["x"]}`},
		})
	}))
	defer server.Close()

	client := NewLocalClient(server.URL, LocalOptions{ContextSize: 8192})
	client.SetHTTPClient(server.Client())

	resp, err := client.Chat(context.Background(), Request{
		System:      "extract filters",
		User:        "find urgent bugs",
		Model:       "qwen2.5:7b",
		Temperature: 0.1,
		MaxTokens:   800,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Stream {
		t.Error("stream must be false")
	}
	if got.Options.NumPredict != 800 {
		t.Errorf("num_predict = %d", got.Options.NumPredict)
	}
	if got.Options.NumCtx != 8192 {
		t.Errorf("num_ctx = %d", got.Options.NumCtx)
	}
	if len(got.Messages) != 2 {
		t.Errorf("unexpected messages: %+v", got.Messages)
	}

	if resp.Text != `{"keywords":["x"]}` {
		t.Errorf("text = %q", resp.Text)
	}
}

func TestLocalClient_EstimatesUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No usage block in the local contract
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": strings.Repeat("a", 400)},
		})
	}))
	defer server.Close()

	client := NewLocalClient(server.URL, LocalOptions{})
	client.SetHTTPClient(server.Client())

	system := strings.Repeat("s", 200)
	user := strings.Repeat("u", 200)

	resp, err := client.Chat(context.Background(), Request{System: system, User: user, Model: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Usage.Source != TokenSourceEstimated {
		t.Errorf("source = %s, want estimated", resp.Usage.Source)
	}
	if resp.Usage.PromptTokens != 100 { // 400 chars / 4
		t.Errorf("prompt tokens = %d", resp.Usage.PromptTokens)
	}
	if resp.Usage.CompletionTokens != 100 {
		t.Errorf("completion tokens = %d", resp.Usage.CompletionTokens)
	}
	if resp.Usage.TotalTokens != resp.Usage.PromptTokens+resp.Usage.CompletionTokens {
		t.Errorf("total invariant violated: %+v", resp.Usage)
	}
}

func TestLocalClient_ModelNotFoundHint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model \"mistral\" not found"}`))
	}))
	defer server.Close()

	client := NewLocalClient(server.URL, LocalOptions{})
	client.SetHTTPClient(server.Client())

	_, err := client.Chat(context.Background(), Request{User: "q", Model: "mistral"})
	ie, ok := AsInvokeError(err)
	if !ok {
		t.Fatalf("expected InvokeError, got %v", err)
	}
	if ie.StatusCode != 404 {
		t.Errorf("status = %d", ie.StatusCode)
	}
	if !strings.Contains(ie.Solution, "ollama pull mistral") {
		t.Errorf("expected pull hint, got %q", ie.Solution)
	}
}

func TestLocalClient_NoKeyRequired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "ok"},
		})
	}))
	defer server.Close()

	client := NewLocalClient(server.URL, LocalOptions{})
	client.SetHTTPClient(server.Client())

	if _, err := client.Chat(context.Background(), Request{User: "q", Model: "m"}); err != nil {
		t.Fatalf("local inference must not require credentials: %v", err)
	}
}
