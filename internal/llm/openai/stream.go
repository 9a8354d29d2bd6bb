package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"interview-backend/internal/llm"
	"interview-backend/internal/shared/telemetry"
)

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

// StreamCompletion opens a server-sent-events completion. Cancelling ctx or
// calling Close aborts the underlying request.
func (c *Client) StreamCompletion(ctx context.Context, prompt string) (llm.TokenStream, error) {
	ctx, cancel := context.WithCancel(ctx)

	resp, err := c.post(ctx, c.newRequest(prompt, !isGPT5(c.model), true))
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer cancel()
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var parsed chatResponse
		if json.Unmarshal(body, &parsed) == nil && parsed.Error != nil {
			return nil, statusError(resp.StatusCode, parsed.Error, body)
		}
		return nil, statusError(resp.StatusCode, nil, body)
	}

	telemetry.Info("llm.stream.start", map[string]any{
		"model":       c.model,
		"prompt_hash": hashPromptString(prompt),
	})
	return &sseStream{
		ctx:    ctx,
		cancel: cancel,
		body:   resp.Body,
		reader: bufio.NewReader(resp.Body),
	}, nil
}

type sseStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	body   io.ReadCloser
	reader *bufio.Reader

	once sync.Once
	done bool
}

// Recv returns the next non-empty content delta, or io.EOF after [DONE].
func (s *sseStream) Recv() (string, error) {
	for {
		if s.done {
			return "", io.EOF
		}
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if ctxErr := s.ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			if err == io.EOF {
				// Some compatible servers end the body without [DONE].
				s.done = true
				if tok := s.parseLine(line); tok != "" {
					return tok, nil
				}
				return "", io.EOF
			}
			return "", llm.NewTransientError(fmt.Errorf("openai stream read: %w", err))
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			s.done = true
			return "", io.EOF
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return "", fmt.Errorf("openai stream parse: %w", err)
		}
		if chunk.Error != nil {
			return "", fmt.Errorf("openai stream error: %s (%s)", chunk.Error.Message, chunk.Error.Type)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if tok := chunk.Choices[0].Delta.Content; tok != "" {
			return tok, nil
		}
	}
}

func (s *sseStream) parseLine(line string) string {
	data, ok := strings.CutPrefix(strings.TrimSpace(line), "data:")
	if !ok {
		return ""
	}
	var chunk streamChunk
	if json.Unmarshal([]byte(strings.TrimSpace(data)), &chunk) != nil || len(chunk.Choices) == 0 {
		return ""
	}
	return chunk.Choices[0].Delta.Content
}

// Close aborts the request and releases the body. Safe to call repeatedly.
func (s *sseStream) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.body.Close()
	})
	return err
}
