package openai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"interview-backend/internal/llm"
	"interview-backend/internal/shared/telemetry"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 120 * time.Second
)

// Client implements llm.Client using OpenAI-compatible Chat Completions.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds one-shot completions. Streams are bounded by the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient constructs a new OpenAI client.
func NewClient(apiKey, model, baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		apiKey:  apiKey,
		model:   strings.TrimSpace(model),
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		timeout: defaultTimeout,
		// No client-level timeout: it would cut long streams mid-answer.
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float32      `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

// Complete returns the whole model response for the prompt.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	content, err := c.completeOnce(ctx, prompt, !isGPT5(c.model))
	if err != nil && isTemperatureUnsupported(err) {
		content, err = c.completeOnce(ctx, prompt, false)
	}
	return content, err
}

func (c *Client) completeOnce(ctx context.Context, prompt string, withTemperature bool) (string, error) {
	resp, err := c.post(ctx, c.newRequest(prompt, withTemperature, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", llm.NewTransientError(fmt.Errorf("openai read body: %w", err))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode >= 400 {
			return "", statusError(resp.StatusCode, nil, body)
		}
		return "", fmt.Errorf("openai response parse: %w", err)
	}
	if parsed.Error != nil || resp.StatusCode >= 400 {
		return "", statusError(resp.StatusCode, parsed.Error, body)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai response missing choices")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("openai response empty content")
	}
	fields := map[string]any{
		"model":       c.model,
		"prompt_hash": hashPromptString(prompt),
	}
	if parsed.Usage != nil {
		fields["prompt_tokens"] = parsed.Usage.PromptTokens
		fields["completion_tokens"] = parsed.Usage.CompletionTokens
		fields["total_tokens"] = parsed.Usage.TotalTokens
	}
	telemetry.Info("llm.complete", fields)
	return content, nil
}

func (c *Client) newRequest(prompt string, withTemperature, stream bool) chatRequest {
	req := chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   stream,
	}
	if withTemperature {
		temp := float32(0.7)
		if !stream {
			temp = 0
		}
		req.Temperature = &temp
	}
	return req
}

func (c *Client) post(ctx context.Context, reqBody chatRequest) (*http.Response, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if reqBody.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return nil, llm.NewTransientError(fmt.Errorf("openai request timeout: %w", err))
		}
		return nil, llm.NewTransientError(err)
	}
	return resp, nil
}

func statusError(status int, apiErr *apiError, body []byte) error {
	var err error
	if apiErr != nil {
		err = fmt.Errorf("openai http status %d: %s (%s)", status, apiErr.Message, apiErr.Type)
	} else {
		err = fmt.Errorf("openai http status %d: %s", status, strings.TrimSpace(string(body)))
	}
	if status == http.StatusTooManyRequests || status >= 500 {
		return llm.NewTransientError(err)
	}
	return err
}

func isTemperatureUnsupported(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "temperature") && (strings.Contains(msg, "unsupported") || strings.Contains(msg, "does not support"))
}

func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

func hashPromptString(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

var _ llm.Client = (*Client)(nil)
