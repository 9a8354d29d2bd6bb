package interview

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"interview-backend/internal/attempts"
	"interview-backend/internal/evaluation"
	"interview-backend/internal/llm"
	"interview-backend/internal/prompts"
	"interview-backend/internal/queue"
)

type fakeChannel struct {
	frames chan Frame
	out    chan Message
	done   chan struct{}

	once   sync.Once
	mu     sync.Mutex
	closed bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		frames: make(chan Frame, 8),
		out:    make(chan Message, 64),
		done:   make(chan struct{}),
	}
}

func (f *fakeChannel) Send(ctx context.Context, msg Message) error {
	select {
	case <-f.done:
		return ErrDisconnected
	default:
	}
	f.out <- msg
	return nil
}

func (f *fakeChannel) Frames() <-chan Frame   { return f.frames }
func (f *fakeChannel) Done() <-chan struct{} { return f.done }

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.disconnect()
	return nil
}

func (f *fakeChannel) disconnect() {
	f.once.Do(func() { close(f.done) })
}

func (f *fakeChannel) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeChannel) answer(t *testing.T, text string) {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"answer": text})
	if err != nil {
		t.Fatalf("marshal answer: %v", err)
	}
	f.frames <- Frame{Data: payload}
}

func (f *fakeChannel) raw(data string) {
	f.frames <- Frame{Data: []byte(data)}
}

// next waits for the next outbound message.
func (f *fakeChannel) next(t *testing.T) Message {
	t.Helper()
	select {
	case msg := <-f.out:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outbound message")
		return Message{}
	}
}

// expect waits for the next outbound message and checks its type.
func (f *fakeChannel) expect(t *testing.T, typ string) Message {
	t.Helper()
	msg := f.next(t)
	if msg.Type != typ {
		t.Fatalf("expected %s message, got %+v", typ, msg)
	}
	return msg
}

// drain returns whatever is still buffered.
func (f *fakeChannel) drain() []Message {
	var msgs []Message
	for {
		select {
		case msg := <-f.out:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

type streamResult struct {
	tokens []string
	err    error
}

// scriptedLLM replays streamed replies in order; the last one repeats.
type scriptedLLM struct {
	mu       sync.Mutex
	replies  []streamResult
	calls    int
	prompts  []string
	evalText string
	evalErr  error
}

func (s *scriptedLLM) StreamCompletion(ctx context.Context, prompt string) (llm.TokenStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	i := s.calls
	s.calls++
	if len(s.replies) == 0 {
		return nil, errors.New("no scripted reply")
	}
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	r := s.replies[i]
	return &llm.SliceStream{Tokens: r.tokens, Err: r.err}, nil
}

func (s *scriptedLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return s.evalText, s.evalErr
}

func (s *scriptedLLM) streamCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func replies(texts ...string) []streamResult {
	out := make([]streamResult, 0, len(texts))
	for _, t := range texts {
		out = append(out, streamResult{tokens: []string{t}})
	}
	return out
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f fakeTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	return f.text, f.err
}

type fakeSynthesizer struct{ audio []byte }

func (f fakeSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return f.audio, nil
}

type harness struct {
	repo  *attempts.MemoryRepo
	llm   *scriptedLLM
	queue *queue.MemoryClient
	ch    *fakeChannel
	deps  Deps
	cfg   Config
}

func newHarness(t *testing.T, llmReplies []streamResult, evalText string) *harness {
	t.Helper()
	repo := attempts.NewMemoryRepo()
	client := &scriptedLLM{replies: llmReplies, evalText: evalText}
	q := &queue.MemoryClient{}
	profile := prompts.MustDefault()
	return &harness{
		repo:  repo,
		llm:   client,
		queue: q,
		ch:    newFakeChannel(),
		deps: Deps{
			Attempts:  repo,
			LLM:       client,
			Evaluator: evaluation.New(client, profile.EvaluationPrompt),
			Queue:     q,
			Prompts:   profile,
			Registry:  NewRegistry(),
		},
		cfg: Config{
			MaxQuestions:      3,
			AnswerTimeout:     2 * time.Second,
			SummarizeEvery:    3,
			ContextMessages:   6,
			GenerationRetries: 1,
			EvaluationTimeout: time.Second,
		},
	}
}

func (h *harness) seed(t *testing.T, mutate func(*attempts.Attempt)) attempts.Attempt {
	t.Helper()
	a := attempts.Attempt{
		ID:             "attempt-1",
		SubjectID:      "subject-1",
		PositionID:     "position-1",
		JobTitle:       "Backend Engineer",
		JobDescription: "We build Go services on Postgres. You will own APIs end to end.",
		ResumeText:     "Five years of Go. Built payment systems.",
		Status:         attempts.StatusInProgress,
		CreatedAt:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	if mutate != nil {
		mutate(&a)
	}
	if err := h.repo.Create(context.Background(), a); err != nil {
		t.Fatalf("seed attempt: %v", err)
	}
	return a
}

// start runs the session in the background and returns a channel with its final state.
func (h *harness) start(attemptID string) (*Session, <-chan State) {
	sess := NewSession(attemptID, h.ch, h.cfg, h.deps)
	done := make(chan State, 1)
	go func() { done <- sess.Run(context.Background()) }()
	return sess, done
}

func waitState(t *testing.T, done <-chan State) State {
	t.Helper()
	select {
	case st := <-done:
		return st
	case <-time.After(3 * time.Second):
		t.Fatal("session did not finish")
		return StateAborted
	}
}
