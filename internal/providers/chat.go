package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

// ChatClient implements Analyzer for OpenAI-compatible chat completions
// endpoints (Perplexity Sonar, OpenAI, Ollama, LM Studio).
type ChatClient struct {
	name    string
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewChatClient creates a client for the given completions URL. The HTTP
// client carries no timeout of its own; each call is bounded by
// Request.Timeout.
func NewChatClient(name, url, apiKey, model string) *ChatClient {
	return &ChatClient{
		name:    name,
		apiKey:  apiKey,
		model:   model,
		baseURL: url,
		client:  &http.Client{},
	}
}

func (c *ChatClient) Name() string { return c.name }

func (c *ChatClient) Model() string { return c.model }

// Analyze sends one request and returns the first choice's content.
func (c *ChatClient) Analyze(ctx context.Context, req Request) (Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return Response{}, classify(err, req.Timeout)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return Response{}, classify(err, req.Timeout)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return Response{}, &UpstreamError{StatusCode: httpResp.StatusCode, Body: string(respBody)}
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return Response{}, &UpstreamError{
			StatusCode: httpResp.StatusCode,
			Body:       string(respBody),
			Err:        fmt.Errorf("%w: %v", ErrMalformedResponse, err),
		}
	}
	if len(result.Choices) == 0 || result.Choices[0].Message == nil || result.Choices[0].Message.Content == nil {
		return Response{}, &UpstreamError{
			StatusCode: httpResp.StatusCode,
			Body:       string(respBody),
			Err:        fmt.Errorf("%w: no choices[0].message.content", ErrMalformedResponse),
		}
	}

	return Response{
		Content:    strings.TrimSpace(*result.Choices[0].Message.Content),
		TokensUsed: result.Usage.TotalTokens,
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Message *chatReply `json:"message"`
}

type chatReply struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

type chatUsage struct {
	TotalTokens int `json:"total_tokens"`
}
