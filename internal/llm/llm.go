package llm

import (
	"context"
	"errors"
	"io"
	"strings"
)

// Client abstracts the generative-text backend used by interviews.
type Client interface {
	// StreamCompletion starts a streamed completion. The caller must Close the stream.
	StreamCompletion(ctx context.Context, prompt string) (TokenStream, error)
	// Complete returns the whole completion for a one-shot prompt.
	Complete(ctx context.Context, prompt string) (string, error)
}

// TokenStream is a finite, non-restartable sequence of text tokens.
// Recv returns io.EOF once the backend finished. Close releases the underlying
// request and may be called at any point, including mid-stream.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// ErrNotConfigured is returned by the placeholder client.
var ErrNotConfigured = errors.New("llm client not configured")

// PlaceholderClient is used when no provider is configured.
type PlaceholderClient struct{}

// StreamCompletion returns ErrNotConfigured.
func (PlaceholderClient) StreamCompletion(ctx context.Context, prompt string) (TokenStream, error) {
	_ = ctx
	_ = prompt
	return nil, ErrNotConfigured
}

// Complete returns ErrNotConfigured.
func (PlaceholderClient) Complete(ctx context.Context, prompt string) (string, error) {
	_ = ctx
	_ = prompt
	return "", ErrNotConfigured
}

// Tagged chunks are diagnostics some backends interleave with content.
var diagnosticPrefixes = []string{"[ERROR]", "[DEBUG]"}

// IsDiagnostic reports whether a chunk or line is a backend diagnostic.
func IsDiagnostic(s string) bool {
	trimmed := strings.TrimSpace(s)
	for _, p := range diagnosticPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

// Collect drains the stream and concatenates its tokens, dropping diagnostic
// chunks and diagnostic lines. It always closes the stream. If the context is
// cancelled the partial text is discarded and the context error returned.
func Collect(ctx context.Context, stream TokenStream) (string, error) {
	defer stream.Close()

	var b strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		tok, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", err
		}
		if IsDiagnostic(tok) {
			continue
		}
		b.WriteString(tok)
	}
	return stripDiagnosticLines(b.String()), nil
}

func stripDiagnosticLines(text string) string {
	if !strings.Contains(text, "[ERROR]") && !strings.Contains(text, "[DEBUG]") {
		return strings.TrimSpace(text)
	}
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if IsDiagnostic(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// SliceStream replays fixed tokens; useful for tests and scripted backends.
type SliceStream struct {
	Tokens []string
	Err    error
	pos    int
	closed bool
}

// Recv returns the next token, then Err (or io.EOF).
func (s *SliceStream) Recv() (string, error) {
	if s.closed {
		return "", io.ErrClosedPipe
	}
	if s.pos < len(s.Tokens) {
		tok := s.Tokens[s.pos]
		s.pos++
		return tok, nil
	}
	if s.Err != nil {
		return "", s.Err
	}
	return "", io.EOF
}

// Close marks the stream closed.
func (s *SliceStream) Close() error {
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *SliceStream) Closed() bool { return s.closed }
