package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultModel     = "gpt-4o-mini"
	DefaultMaxTokens = 300
	maxReplyBytes    = 64 << 10
)

// Backend turns a prompt into reply text.
type Backend interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// -- Chat completion --

// CompletionBackend calls an OpenAI-compatible /chat/completions endpoint.
type CompletionBackend struct {
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
	http      *http.Client
}

func NewCompletionBackend(baseURL, apiKey, model string, timeout time.Duration) *CompletionBackend {
	if model == "" {
		model = DefaultModel
	}
	return &CompletionBackend{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		model:     model,
		maxTokens: DefaultMaxTokens,
		http:      &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type completionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (b *CompletionBackend) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:     b.model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens: b.maxTokens,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	raw, err := do(b.http, req)
	if err != nil {
		return "", err
	}
	var parsed completionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("completion returned no content")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// -- Workflow webhook --

// WebhookBackend posts {"message": prompt} to a workflow URL. The reply is
// read from a JSON "message" field, or taken as plain text.
type WebhookBackend struct {
	url  string
	http *http.Client
}

func NewWebhookBackend(url string, timeout time.Duration) *WebhookBackend {
	return &WebhookBackend{url: url, http: &http.Client{Timeout: timeout}}
}

func (b *WebhookBackend) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]string{"message": prompt})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := do(b.http, req)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(raw))
	if strings.HasPrefix(text, "{") {
		var parsed struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return "", fmt.Errorf("decode webhook reply: %w", err)
		}
		text = strings.TrimSpace(parsed.Message)
	}
	if text == "" {
		return "", fmt.Errorf("webhook returned no message")
	}
	return text, nil
}

// -- Disabled --

// NoBackend always fails so callers fall back to the static reply.
type NoBackend struct{}

func (NoBackend) Complete(context.Context, string) (string, error) {
	return "", fmt.Errorf("ai backend disabled")
}

func do(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ai endpoint error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
