// Package speech talks to OpenAI-compatible transcription and synthesis endpoints.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"interview-backend/internal/llm"
)

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Synthesizer turns text into playable audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ErrNotConfigured is returned when no speech endpoint is set.
var ErrNotConfigured = errors.New("speech endpoint not configured")

const (
	defaultTimeout = 60 * time.Second
	maxAudioBytes  = 25 << 20
)

// HTTPTranscriber posts audio as multipart form data (file=audio.webm).
type HTTPTranscriber struct {
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewHTTPTranscriber constructs a transcriber. An empty url yields a transcriber that always errors.
func NewHTTPTranscriber(url, apiKey, model string, hc *http.Client) *HTTPTranscriber {
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &HTTPTranscriber{url: strings.TrimSpace(url), apiKey: apiKey, model: model, httpClient: hc}
}

type transcriptionResponse struct {
	Text  string `json:"text"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Transcribe returns the recognized text, trimmed. Silence yields "".
func (t *HTTPTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if t.url == "" {
		return "", ErrNotConfigured
	}
	if len(audio) == 0 {
		return "", nil
	}
	if len(audio) > maxAudioBytes {
		return "", fmt.Errorf("audio too large: %d bytes", len(audio))
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "audio.webm")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	if t.model != "" {
		if err := mw.WriteField("model", t.model); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	setAuth(req, t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", wrapTransport("transcription", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	var parsed transcriptionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		if resp.StatusCode >= 400 {
			return "", fmt.Errorf("transcription http status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return "", fmt.Errorf("transcription response parse: %w", err)
	}
	if resp.StatusCode >= 400 {
		msg := strings.TrimSpace(string(raw))
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return "", fmt.Errorf("transcription http status %d: %s", resp.StatusCode, msg)
	}
	return strings.TrimSpace(parsed.Text), nil
}

// HTTPSynthesizer posts {model,input,voice} and returns the audio body.
type HTTPSynthesizer struct {
	url        string
	apiKey     string
	model      string
	voice      string
	httpClient *http.Client
}

// NewHTTPSynthesizer constructs a synthesizer.
func NewHTTPSynthesizer(url, apiKey, model, voice string, hc *http.Client) *HTTPSynthesizer {
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &HTTPSynthesizer{url: strings.TrimSpace(url), apiKey: apiKey, model: model, voice: voice, httpClient: hc}
}

type synthesisRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
	Voice string `json:"voice"`
}

// Synthesize returns encoded audio for text.
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if s.url == "" {
		return nil, ErrNotConfigured
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("synthesis input is empty")
	}
	payload, err := json.Marshal(synthesisRequest{Model: s.model, Input: text, Voice: s.voice})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	setAuth(req, s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, wrapTransport("synthesis", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("synthesis http status %d: %s", resp.StatusCode, strings.TrimSpace(string(audio)))
	}
	if len(audio) == 0 {
		return nil, errors.New("synthesis returned no audio")
	}
	return audio, nil
}

func setAuth(req *http.Request, apiKey string) {
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

func wrapTransport(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return llm.NewTransientError(fmt.Errorf("%s request: %w", op, err))
}

var (
	_ Transcriber = (*HTTPTranscriber)(nil)
	_ Synthesizer = (*HTTPSynthesizer)(nil)
)
