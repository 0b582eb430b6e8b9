package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func chatResponse(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(b)
}

func TestOpenAIClient_Generate(t *testing.T) {
	var gotPath string
	var gotAuth string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatResponse("  the answer  ")))
	}))
	defer server.Close()

	client := NewOpenAIClient(&ClientConfig{APIKey: "sk-test", Provider: ProviderOpenAI})
	client.baseURL = server.URL

	answer, err := client.Generate(context.Background(), "prompt text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "the answer" {
		t.Errorf("answer = %q, want trimmed %q", answer, "the answer")
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotBody["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v, want default gpt-4o-mini", gotBody["model"])
	}
	msgs, ok := gotBody["messages"].([]any)
	if !ok || len(msgs) != 1 {
		t.Fatalf("expected a single user message, got %v", gotBody["messages"])
	}
}

func TestOpenAIClient_GenerateErrors(t *testing.T) {
	tests := []struct {
		name        string
		apiKey      string
		status      int
		body        string
		expectedErr string
	}{
		{
			name:        "missing api key",
			apiKey:      "",
			expectedErr: "PROVIDER_API_KEY unset",
		},
		{
			name:        "backend error message surfaced",
			apiKey:      "sk-test",
			status:      429,
			body:        `{"error":{"message":"rate limit exceeded"}}`,
			expectedErr: "rate limit exceeded",
		},
		{
			name:        "non-2xx without message",
			apiKey:      "sk-test",
			status:      500,
			body:        `{}`,
			expectedErr: "500",
		},
		{
			name:        "empty choices",
			apiKey:      "sk-test",
			status:      200,
			body:        `{"choices":[]}`,
			expectedErr: "no choices",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewOpenAIClient(&ClientConfig{APIKey: tt.apiKey, Provider: ProviderOpenAI})
			client.baseURL = server.URL

			_, err := client.Generate(context.Background(), "prompt")
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.expectedErr) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.expectedErr)
			}
		})
	}
}

func TestOpenAIClient_Summarize(t *testing.T) {
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(chatResponse("Line one.\nLine two.")))
	}))
	defer server.Close()

	client := NewOpenAIClient(&ClientConfig{APIKey: "sk-test", Provider: ProviderOpenAI})
	client.baseURL = server.URL

	summary, err := client.Summarize(context.Background(), "main.go", "package main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary != "Line one. Line two." {
		t.Errorf("summary = %q, newlines should be flattened", summary)
	}

	msgs, ok := gotBody["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Fatalf("expected system+user messages, got %v", gotBody["messages"])
	}
	first, _ := msgs[0].(map[string]any)
	if first["role"] != "system" {
		t.Errorf("first message role = %v, want system", first["role"])
	}
}

func TestOpenAIClient_SummarizeTruncatesInput(t *testing.T) {
	var userContent string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		msgs := body["messages"].([]any)
		user := msgs[len(msgs)-1].(map[string]any)
		userContent = user["content"].(string)
		_, _ = w.Write([]byte(chatResponse("ok")))
	}))
	defer server.Close()

	client := NewOpenAIClient(&ClientConfig{APIKey: "sk-test", Provider: ProviderOpenAI})
	client.baseURL = server.URL

	long := strings.Repeat("x", 20000)
	if _, err := client.Summarize(context.Background(), "big.go", long); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Path prefix plus at most 8000 bytes of content
	if len(userContent) > 8100 {
		t.Errorf("summarize input not truncated: %d bytes", len(userContent))
	}
}
