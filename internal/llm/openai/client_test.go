package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-backend/internal/llm"
)

func TestIsGPT5(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  bool
	}{
		{name: "gpt5", model: "gpt-5", want: true},
		{name: "gpt5 variant", model: "gpt-5-mini", want: true},
		{name: "gpt5 uppercase", model: " GPT-5o ", want: true},
		{name: "gpt4", model: "gpt-4o", want: false},
		{name: "empty", model: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isGPT5(tt.model); got != tt.want {
				t.Fatalf("isGPT5(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestNewClientRequiresModelAndKey(t *testing.T) {
	_, err := NewClient("key", "", "")
	require.Error(t, err)
	_, err = NewClient("", "gpt-4o-mini", "")
	require.Error(t, err)

	c, err := NewClient("key", "gpt-4o-mini", "")
	require.NoError(t, err)
	assert.Equal(t, defaultBaseURL, c.baseURL)
}

func TestStreamCompletionYieldsDeltas(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "text/event-stream")
		for _, tok := range []string{"Tell me ", "about ", "Go."} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", tok)
		}
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	c, err := NewClient("test-key", "gpt-4o-mini", server.URL)
	require.NoError(t, err)

	stream, err := c.StreamCompletion(context.Background(), "prompt")
	require.NoError(t, err)

	text, err := llm.Collect(context.Background(), stream)
	require.NoError(t, err)
	assert.Equal(t, "Tell me about Go.", text)
	assert.Equal(t, true, got["stream"])
	assert.Equal(t, "gpt-4o-mini", got["model"])
}

func TestStreamCompletionStatusErrorIsTransientOn5xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream down","type":"server_error"}}`))
	}))
	defer server.Close()

	c, err := NewClient("test-key", "gpt-4o-mini", server.URL)
	require.NoError(t, err)

	_, err = c.StreamCompletion(context.Background(), "prompt")
	require.Error(t, err)
	assert.True(t, llm.IsRetryable(err))
	assert.Contains(t, err.Error(), "upstream down")
}

func TestStreamCloseAbortsPendingRead(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"first\"}}]}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	c, err := NewClient("test-key", "gpt-4o-mini", server.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := c.StreamCompletion(ctx, "prompt")
	require.NoError(t, err)

	tok, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "first", tok)

	errCh := make(chan error, 1)
	go func() {
		_, err := stream.Recv()
		errCh <- err
	}()
	cancel()

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.False(t, errors.Is(err, io.EOF))
	case <-time.After(2 * time.Second):
		t.Fatal("Recv did not return after cancel")
	}
	assert.NoError(t, stream.Close())
	assert.NoError(t, stream.Close())
}

func TestCompleteRetriesWithoutTemperature(t *testing.T) {
	var mu sync.Mutex
	var bodies []map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		mu.Lock()
		bodies = append(bodies, payload)
		call := len(bodies)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if call == 1 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"Unsupported value: 'temperature' does not support 0 with this model.","type":"invalid_request_error"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" {\"score\": 80} "}}],"usage":{"prompt_tokens":3,"completion_tokens":4,"total_tokens":7}}`))
	}))
	defer server.Close()

	c, err := NewClient("test-key", "gpt-4o-mini", server.URL)
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "evaluate")
	require.NoError(t, err)
	assert.Equal(t, `{"score": 80}`, out)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 2)
	_, hasTemp := bodies[0]["temperature"]
	assert.True(t, hasTemp)
	_, hasTemp = bodies[1]["temperature"]
	assert.False(t, hasTemp)
	_, hasStream := bodies[0]["stream"]
	assert.False(t, hasStream)
}

func TestCompleteClientErrorIsNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	c, err := NewClient("test-key", "gpt-4o-mini", server.URL)
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "evaluate")
	require.Error(t, err)
	assert.False(t, llm.IsRetryable(err))
}

func TestPromptHashDeterministic(t *testing.T) {
	assert.Equal(t, hashPromptString("a"), hashPromptString("a"))
	assert.NotEqual(t, hashPromptString("a"), hashPromptString("b"))
}
