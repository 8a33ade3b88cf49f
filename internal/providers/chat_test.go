package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(url string) *ChatClient {
	return NewChatClient("perplexity", url, "test-key", "sonar-pro")
}

func TestChatClient_Analyze(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("Missing or wrong Authorization header")
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Model != "sonar-pro" {
			t.Errorf("Model = %q, want sonar-pro", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("Messages = %+v, want system then user", req.Messages)
		}
		if req.Messages[1].Content != "prompt" {
			t.Errorf("user content = %q", req.Messages[1].Content)
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  {\"verdict\":\"clear\"}\n"}}],"usage":{"total_tokens":50}}`))
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).Analyze(context.Background(), Request{
		SystemPrompt: "system",
		UserPrompt:   "prompt",
		Timeout:      5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}
	if resp.Content != `{"verdict":"clear"}` {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.TokensUsed != 50 {
		t.Errorf("TokensUsed = %d, want 50", resp.TokensUsed)
	}
}

func TestChatClient_StatusErrors(t *testing.T) {
	tests := []struct {
		status      int
		auth        bool
		rateLimited bool
		retryable   bool
	}{
		{http.StatusUnauthorized, true, false, false},
		{http.StatusForbidden, true, false, false},
		{http.StatusTooManyRequests, false, true, true},
		{http.StatusInternalServerError, false, false, true},
		{http.StatusBadRequest, false, false, false},
	}
	for _, tt := range tests {
		attempts := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			w.WriteHeader(tt.status)
			w.Write([]byte(`{"error":"nope"}`))
		}))

		_, err := newTestClient(server.URL).Analyze(context.Background(), Request{UserPrompt: "x"})
		server.Close()

		var ue *UpstreamError
		if !errors.As(err, &ue) {
			t.Fatalf("status %d: err = %v, want *UpstreamError", tt.status, err)
		}
		if ue.StatusCode != tt.status {
			t.Errorf("StatusCode = %d, want %d", ue.StatusCode, tt.status)
		}
		if IsAuthError(err) != tt.auth {
			t.Errorf("status %d: IsAuthError = %v", tt.status, !tt.auth)
		}
		if IsRateLimited(err) != tt.rateLimited {
			t.Errorf("status %d: IsRateLimited = %v", tt.status, !tt.rateLimited)
		}
		if IsRetryable(err) != tt.retryable {
			t.Errorf("status %d: IsRetryable = %v", tt.status, !tt.retryable)
		}
		if attempts != 1 {
			t.Errorf("status %d: %d attempts, client must not retry", tt.status, attempts)
		}
	}
}

func TestChatClient_MalformedEnvelope(t *testing.T) {
	bodies := []string{
		`not json`,
		`{"choices":[]}`,
		`{"choices":[{"message":{"role":"assistant"}}]}`,
		`{"choices":[{}]}`,
	}
	for _, body := range bodies {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))
		_, err := newTestClient(server.URL).Analyze(context.Background(), Request{UserPrompt: "x"})
		server.Close()

		if !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("body %q: err = %v, want ErrMalformedResponse", body, err)
		}
		if IsRetryable(err) {
			t.Errorf("body %q: malformed envelope should not be retryable", body)
		}
	}
}

func TestChatClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Analyze(context.Background(), Request{
		UserPrompt: "x",
		Timeout:    50 * time.Millisecond,
	})
	if !IsTimeout(err) {
		t.Fatalf("err = %v, want *TimeoutError", err)
	}
}

func TestChatClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(url).Analyze(context.Background(), Request{UserPrompt: "x", Timeout: time.Second})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *TransportError", err)
	}
}

func TestChatClient_NoKeyNoHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("Authorization header should be omitted without a key")
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	c := NewChatClient("ollama", server.URL, "", "llama3.3")
	if _, err := c.Analyze(context.Background(), Request{UserPrompt: "x"}); err != nil {
		t.Fatalf("Analyze error: %v", err)
	}
}

func TestNew(t *testing.T) {
	t.Setenv("PERPLEXITY_API_KEY", "")

	if _, err := New(Options{Provider: "unknown"}); err == nil {
		t.Error("Expected error for unknown provider")
	}
	if _, err := New(Options{Provider: "perplexity"}); err == nil {
		t.Error("Expected error for missing API key")
	}

	c, err := New(Options{Provider: "perplexity", APIKey: "k"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if c.Model() != "sonar-pro" {
		t.Errorf("Model() = %q, want default sonar-pro", c.Model())
	}
	if c.Name() != "perplexity" {
		t.Errorf("Name() = %q", c.Name())
	}

	o, err := New(Options{Provider: "lmstudio", Model: "qwen2.5", BaseURL: "http://localhost:1234/v1"})
	if err != nil {
		t.Fatalf("New(lmstudio) error: %v", err)
	}
	if o.baseURL != "http://localhost:1234/v1/chat/completions" {
		t.Errorf("baseURL = %q", o.baseURL)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := map[string]string{
		"http://localhost:11434":                     "http://localhost:11434/v1/chat/completions",
		"http://localhost:11434/":                    "http://localhost:11434/v1/chat/completions",
		"http://localhost:11434/v1":                  "http://localhost:11434/v1/chat/completions",
		"http://localhost:11434/v1/chat/completions": "http://localhost:11434/v1/chat/completions",
		"https://api.perplexity.ai":                  "https://api.perplexity.ai/chat/completions",
	}
	for in, want := range tests {
		if got := normalizeURL(in); got != want {
			t.Errorf("normalizeURL(%q) = %q, want %q", in, got, want)
		}
	}
}
