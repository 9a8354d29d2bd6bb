// Package interview runs one live interview over a duplex channel: it asks
// questions generated from the conversation memory, collects answers within a
// time limit, and hands the finished transcript to the evaluator.
package interview

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"interview-backend/internal/attempts"
	"interview-backend/internal/evaluation"
	"interview-backend/internal/llm"
	"interview-backend/internal/memory"
	"interview-backend/internal/prompts"
	"interview-backend/internal/queue"
	"interview-backend/internal/shared/metrics"
	"interview-backend/internal/shared/telemetry"
	"interview-backend/internal/speech"
)

// NoResume stands in for the résumé when none could be read.
const NoResume = "No resume provided."

const (
	generationRetryDelay = 300 * time.Millisecond
	abortNotifyTimeout   = 5 * time.Second
)

var errEmptyReply = errors.New("empty reply from llm")

// ResumeExtractor reads résumé text from object storage.
type ResumeExtractor interface {
	ExtractText(ctx context.Context, key string) (string, error)
}

// Evaluator scores a finished transcript.
type Evaluator interface {
	Evaluate(ctx context.Context, turns []attempts.Turn) evaluation.Result
}

// Config tunes one session.
type Config struct {
	MaxQuestions      int
	AnswerTimeout     time.Duration
	SummarizeEvery    int
	ContextMessages   int
	GenerationRetries int
	EvaluationTimeout time.Duration
	// Voice enables synthesized audio on every question.
	Voice bool
}

// DefaultConfig mirrors the service defaults.
func DefaultConfig() Config {
	return Config{
		MaxQuestions:      10,
		AnswerTimeout:     120 * time.Second,
		SummarizeEvery:    3,
		ContextMessages:   6,
		GenerationRetries: 1,
		EvaluationTimeout: 90 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxQuestions <= 0 {
		c.MaxQuestions = d.MaxQuestions
	}
	if c.AnswerTimeout <= 0 {
		c.AnswerTimeout = d.AnswerTimeout
	}
	if c.SummarizeEvery <= 0 {
		c.SummarizeEvery = d.SummarizeEvery
	}
	if c.ContextMessages <= 0 {
		c.ContextMessages = d.ContextMessages
	}
	if c.GenerationRetries < 0 {
		c.GenerationRetries = 0
	}
	if c.EvaluationTimeout <= 0 {
		c.EvaluationTimeout = d.EvaluationTimeout
	}
	return c
}

// Deps are the collaborators a session talks to. Resumes, Transcriber,
// Synthesizer and Queue are optional.
type Deps struct {
	Attempts    attempts.Repo
	Resumes     ResumeExtractor
	LLM         llm.Client
	Evaluator   Evaluator
	Transcriber speech.Transcriber
	Synthesizer speech.Synthesizer
	Queue       queue.Client
	Prompts     *prompts.Profile
	Registry    *Registry
	Now         func() time.Time
}

// Session drives one attempt from the first question to the stored result.
// It is used by a single goroutine.
type Session struct {
	ID        string
	AttemptID string

	cfg  Config
	deps Deps
	ch   Channel

	state    State
	attempt  attempts.Attempt
	mem      *memory.Memory
	total    int
	index    int
	deadline time.Time

	lastAnswer   string
	lastTimedOut bool
	closingReply string
	endReason    string

	claimed bool
	loaded  bool
	started bool
}

// NewSession prepares a session for attemptID on ch.
func NewSession(attemptID string, ch Channel, cfg Config, deps Deps) *Session {
	if deps.Prompts == nil {
		deps.Prompts = prompts.MustDefault()
	}
	if deps.Registry == nil {
		deps.Registry = NewRegistry()
	}
	if deps.Queue == nil {
		deps.Queue = queue.NopClient{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Session{
		ID:        uuid.NewString(),
		AttemptID: attemptID,
		cfg:       cfg.withDefaults(),
		deps:      deps,
		ch:        ch,
		state:     StateInitializing,
	}
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Run executes the session to a terminal state. The channel is always closed
// and the attempt released on return.
func (s *Session) Run(ctx context.Context) (final State) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.ch.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			telemetry.Error("interview.panic", s.fields(map[string]any{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			}))
			final = s.abort(ctx, msgInternal, fmt.Errorf("panic: %v", r))
		}
		if s.claimed {
			s.deps.Registry.Release(s.AttemptID, s.ID)
		}
		_ = s.ch.Close()
	}()

	s.state = s.initialize(ctx)
	for !s.state.Terminal() {
		telemetry.Info("interview.state", s.fields(nil))
		switch s.state {
		case StateAwaitingAnswer:
			s.state = s.awaitAnswer(ctx)
		case StateGenerating:
			s.state = s.generateNext(ctx)
		case StateEvaluating:
			s.state = s.evaluate(ctx)
		default:
			s.state = s.abort(ctx, msgInternal, fmt.Errorf("unexpected state %s", s.state))
		}
	}
	return s.state
}

func (s *Session) initialize(ctx context.Context) State {
	if err := s.deps.Registry.Acquire(s.AttemptID, s.ID); err != nil {
		return s.abort(ctx, msgBusy, err)
	}
	s.claimed = true

	attempt, err := s.deps.Attempts.GetByID(ctx, s.AttemptID)
	if errors.Is(err, attempts.ErrNotFound) {
		return s.abort(ctx, msgNotFound, err)
	}
	if err != nil {
		return s.abort(ctx, msgLoadFailed, err)
	}
	if !attempt.Open() {
		return s.abort(ctx, msgNotOpen, fmt.Errorf("attempt status=%s questions=%d", attempt.Status, attempt.QuestionCount))
	}
	subject, err := s.deps.Attempts.SubjectContext(ctx, s.AttemptID)
	if err != nil {
		return s.abort(ctx, msgLoadFailed, err)
	}
	s.attempt = attempt
	s.loaded = true

	jobText := subject.JobDescription
	if strings.TrimSpace(jobText) == "" {
		jobText = subject.JobTitle
	}
	s.mem = memory.New(jobText, s.resumeText(ctx, subject),
		memory.WithSummarizeEvery(s.cfg.SummarizeEvery),
		memory.WithContextMessages(s.cfg.ContextMessages),
	)

	s.total = s.cfg.MaxQuestions
	if n := len(s.attempt.Questions); n > 0 && n < s.total {
		s.total = n
	}

	metrics.SessionStarted()
	s.started = true
	telemetry.Info("interview.started", s.fields(map[string]any{
		"total_questions": s.total,
		"scripted":        s.scripted(),
		"voice":           s.cfg.Voice,
	}))

	if err := s.send(ctx, welcomeMsg(s.deps.Prompts.WelcomeMessage, s.total)); err != nil {
		return s.abort(ctx, "", err)
	}

	var first string
	if s.scripted() {
		first = s.attempt.Questions[0]
	} else {
		prompt := s.deps.Prompts.Opening(s.mem.BuildContext(s.deps.Prompts.SystemPrompt))
		first, err = s.generate(ctx, prompt)
		if err != nil {
			return s.abort(ctx, msgOpeningFailed, fmt.Errorf("opening question: %w", err))
		}
	}
	s.mem.AddMessage(memory.RoleAI, first)
	if err := s.ask(ctx, first); err != nil {
		return s.abort(ctx, msgSaveFailed, err)
	}
	return StateAwaitingAnswer
}

func (s *Session) resumeText(ctx context.Context, subject attempts.SubjectContext) string {
	if text := strings.TrimSpace(subject.ResumeText); text != "" {
		return text
	}
	if subject.ResumeKey == "" || s.deps.Resumes == nil {
		return NoResume
	}
	text, err := s.deps.Resumes.ExtractText(ctx, subject.ResumeKey)
	if err != nil || strings.TrimSpace(text) == "" {
		telemetry.Warn("interview.resume_unavailable", s.fields(map[string]any{
			"resume_key": subject.ResumeKey,
			"error":      err,
		}))
		return NoResume
	}
	return text
}

// ask persists the next turn and emits it. The answer window starts here.
func (s *Session) ask(ctx context.Context, question string) error {
	index := s.index + 1
	askedAt := attempts.Timestamp(s.deps.Now())
	turn := attempts.Turn{Index: index, Question: question, AskedAt: askedAt}
	if err := s.deps.Attempts.AppendTurn(ctx, s.AttemptID, turn); err != nil {
		return fmt.Errorf("append turn %d: %w", index, err)
	}
	s.attempt.Turns = append(s.attempt.Turns, turn)
	s.attempt.QuestionCount = index
	s.index = index
	s.deadline = time.Now().Add(s.cfg.AnswerTimeout)

	var audio []byte
	if s.cfg.Voice && s.deps.Synthesizer != nil {
		var err error
		audio, err = s.deps.Synthesizer.Synthesize(ctx, question)
		if err != nil {
			telemetry.Warn("interview.synthesis_failed", s.fields(map[string]any{"error": err}))
			audio = nil
		}
	}

	metrics.IncQuestionsAsked()
	return s.send(ctx, questionMsg(question, index, s.total, audio))
}

func (s *Session) awaitAnswer(ctx context.Context) State {
	timer := time.NewTimer(time.Until(s.deadline))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.abort(ctx, "", ErrDisconnected)
		case <-s.ch.Done():
			return s.abort(ctx, "", ErrDisconnected)
		case <-timer.C:
			return s.onTimeout(ctx)
		case frame := <-s.ch.Frames():
			answer, next, ok := s.handleFrame(ctx, frame)
			if next != StateAwaitingAnswer {
				return next
			}
			if !ok {
				continue
			}
			return s.onAnswer(ctx, answer)
		}
	}
}

// handleFrame interprets one inbound frame. ok is set when answer holds a
// usable answer; a next state other than AwaitingAnswer ends the wait.
func (s *Session) handleFrame(ctx context.Context, frame Frame) (answer string, next State, ok bool) {
	next = StateAwaitingAnswer
	if frame.Binary {
		if s.deps.Transcriber == nil {
			s.notify(ctx, errorMsg(msgAudioUnsupported))
			return "", next, false
		}
		text, err := s.deps.Transcriber.Transcribe(ctx, frame.Data)
		if err != nil {
			if ctx.Err() != nil {
				return "", s.abort(ctx, "", ErrDisconnected), false
			}
			telemetry.Warn("interview.transcription_failed", s.fields(map[string]any{"error": err}))
			s.notify(ctx, errorMsg(msgTranscribeFailed))
			return "", next, false
		}
		if text = strings.TrimSpace(text); text == "" {
			s.notify(ctx, ackMsg(msgNotHeard))
			return "", next, false
		}
		return text, next, true
	}

	in, err := parseInbound(frame.Data)
	if err != nil {
		s.notify(ctx, errorMsg(msgInvalidFormat))
		return "", next, false
	}
	if in.kind == inboundEnd {
		s.endReason = "ended_by_candidate"
		return "", StateEvaluating, false
	}
	if in.answer == "" {
		s.notify(ctx, ackMsg(msgProvideAnswer))
		return "", next, false
	}
	return in.answer, next, true
}

func (s *Session) onAnswer(ctx context.Context, answer string) State {
	answeredAt := attempts.Timestamp(s.deps.Now())
	if err := s.deps.Attempts.RecordAnswer(ctx, s.AttemptID, s.index, &answer, answeredAt, false); err != nil {
		return s.abort(ctx, msgSaveFailed, fmt.Errorf("record answer %d: %w", s.index, err))
	}
	s.closeTurn(&answer, answeredAt, false)
	s.lastAnswer = answer
	s.lastTimedOut = false
	if err := s.send(ctx, ackMsg(msgAnswerReceived)); err != nil {
		return s.abort(ctx, "", err)
	}
	return StateGenerating
}

func (s *Session) onTimeout(ctx context.Context) State {
	answeredAt := attempts.Timestamp(s.deps.Now())
	if err := s.deps.Attempts.RecordAnswer(ctx, s.AttemptID, s.index, nil, answeredAt, true); err != nil {
		return s.abort(ctx, msgSaveFailed, fmt.Errorf("record timeout %d: %w", s.index, err))
	}
	s.closeTurn(nil, answeredAt, true)
	s.lastAnswer = ""
	s.lastTimedOut = true
	metrics.IncAnswerTimeouts()
	telemetry.Info("interview.answer_timeout", s.fields(nil))
	if err := s.send(ctx, timeoutMsg(s.deps.Prompts.TimeoutMessage, s.index)); err != nil {
		return s.abort(ctx, "", err)
	}
	return StateGenerating
}

func (s *Session) closeTurn(answer *string, answeredAt time.Time, timedOut bool) {
	last := &s.attempt.Turns[len(s.attempt.Turns)-1]
	if answeredAt.Before(last.AskedAt) {
		answeredAt = last.AskedAt
	}
	last.Answer = answer
	last.AnsweredAt = &answeredAt
	last.TimedOut = timedOut
}

func (s *Session) generateNext(ctx context.Context) State {
	if s.index >= s.total {
		s.endReason = "max_questions"
		return StateEvaluating
	}

	userMsg := s.lastAnswer
	if s.lastTimedOut {
		userMsg = s.deps.Prompts.NoAnswerMarker
	}

	var next string
	if s.scripted() {
		next = s.attempt.Questions[s.index]
	} else {
		prompt, err := s.deps.Prompts.FollowUp(s.mem.BuildContext(s.deps.Prompts.SystemPrompt), s.lastAnswer)
		if err != nil {
			return s.abort(ctx, msgInternal, err)
		}
		next, err = s.generate(ctx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return s.abort(ctx, "", ErrDisconnected)
			}
			telemetry.Error("interview.generation_failed", s.fields(map[string]any{"error": err}))
			s.endReason = "backend_error"
			return StateEvaluating
		}
		if IsClosing(next, s.deps.Prompts.ClosingPhrases) {
			s.mem.AddMessage(memory.RoleUser, userMsg)
			s.mem.AddMessage(memory.RoleAI, next)
			s.closingReply = next
			s.endReason = "closing_phrase"
			return StateEvaluating
		}
	}

	s.mem.AddMessage(memory.RoleUser, userMsg)
	s.mem.AddMessage(memory.RoleAI, next)
	if s.mem.MaybeSummarize() {
		telemetry.Info("interview.memory_summarized", s.fields(nil))
	}
	if err := s.ask(ctx, next); err != nil {
		if ctx.Err() != nil {
			return s.abort(ctx, "", ErrDisconnected)
		}
		return s.abort(ctx, msgSaveFailed, err)
	}
	return StateAwaitingAnswer
}

// generate streams one reply, retrying transient failures.
func (s *Session) generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.GenerationRetries; attempt++ {
		if attempt > 0 {
			s.notify(ctx, errorMsg(msgRetrying))
			select {
			case <-time.After(generationRetryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		start := time.Now()
		reply, err := s.streamReply(ctx, prompt)
		metrics.ObserveGeneration(time.Since(start), err)
		if err == nil {
			return reply, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
		telemetry.Warn("interview.generation_attempt_failed", s.fields(map[string]any{
			"attempt": attempt + 1,
			"error":   err,
		}))
		if !errors.Is(err, errEmptyReply) && !llm.IsRetryable(err) {
			break
		}
	}
	return "", lastErr
}

func (s *Session) streamReply(ctx context.Context, prompt string) (string, error) {
	stream, err := s.deps.LLM.StreamCompletion(ctx, prompt)
	if err != nil {
		return "", err
	}
	reply, err := llm.Collect(ctx, stream)
	if err != nil {
		return "", err
	}
	if reply == "" {
		return "", errEmptyReply
	}
	return reply, nil
}

func (s *Session) evaluate(ctx context.Context) State {
	evalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.EvaluationTimeout)
	defer cancel()

	turns := append([]attempts.Turn(nil), s.attempt.Turns...)
	var res evaluation.Result
	if s.deps.Evaluator != nil {
		res = s.deps.Evaluator.Evaluate(evalCtx, turns)
	} else {
		res = evaluation.FallbackResult()
	}
	if res.Fallback {
		metrics.IncEvaluationFallbacks()
	}

	completedAt := attempts.Timestamp(s.deps.Now())
	err := s.deps.Attempts.Finalize(evalCtx, s.AttemptID, attempts.Result{
		Score:       res.Score,
		Feedback:    res.Feedback,
		Verdict:     res.Verdict,
		CompletedAt: completedAt,
	})
	if err != nil {
		telemetry.Error("interview.finalize_failed", s.fields(map[string]any{"error": err}))
		s.notify(evalCtx, errorMsg(msgSaveFailed))
		s.finish("aborted")
		return StateAborted
	}

	message := s.deps.Prompts.CompletionMessage
	if s.closingReply != "" {
		message = s.closingReply
	}
	s.notify(evalCtx, completeMsg(message, fmt.Sprintf("Completed %d questions", s.index)))
	s.notify(evalCtx, evaluationMsg(res.Score, res.Feedback, res.Verdict))

	event := queue.Message{
		AttemptID:   s.AttemptID,
		SubjectID:   s.attempt.SubjectID,
		PositionID:  s.attempt.PositionID,
		Score:       res.Score,
		Verdict:     res.Verdict,
		Questions:   s.index,
		Fallback:    res.Fallback,
		CompletedAt: queue.FormatTime(completedAt),
		Version:     queue.MessageVersion,
	}
	if err := s.deps.Queue.Send(evalCtx, event); err != nil {
		telemetry.Warn("interview.completion_publish_failed", s.fields(map[string]any{"error": err}))
	}

	telemetry.Info("interview.completed", s.fields(map[string]any{
		"score":    res.Score,
		"verdict":  res.Verdict,
		"fallback": res.Fallback,
		"reason":   s.endReason,
	}))
	s.finish("completed")
	return StateCompleted
}

// abort notifies the peer when message is set, abandons a loaded attempt and
// returns StateAborted.
func (s *Session) abort(ctx context.Context, message string, cause error) State {
	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortNotifyTimeout)
	defer cancel()

	if message != "" {
		s.notify(detached, errorMsg(message))
	}
	if s.loaded {
		if err := s.deps.Attempts.Abandon(detached, s.AttemptID); err != nil {
			telemetry.Warn("interview.abandon_failed", s.fields(map[string]any{"error": err}))
		}
	}
	level := telemetry.Warn
	if errors.Is(cause, ErrDisconnected) || errors.Is(cause, ErrAttemptBusy) || errors.Is(cause, attempts.ErrNotFound) {
		level = telemetry.Info
	}
	level("interview.aborted", s.fields(map[string]any{"error": cause, "message": message}))
	s.finish("aborted")
	return StateAborted
}

func (s *Session) finish(outcome string) {
	if s.started {
		metrics.SessionFinished(outcome)
		s.started = false
	}
}

func (s *Session) send(ctx context.Context, msg Message) error {
	if err := s.ch.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

// notify is a best-effort send, skipped once the peer is gone.
func (s *Session) notify(ctx context.Context, msg Message) {
	select {
	case <-s.ch.Done():
		return
	default:
	}
	if err := s.ch.Send(ctx, msg); err != nil && !errors.Is(err, ErrDisconnected) {
		telemetry.Warn("interview.send_failed", s.fields(map[string]any{"type": msg.Type, "error": err}))
	}
}

func (s *Session) scripted() bool {
	return len(s.attempt.Questions) > 0
}

func (s *Session) fields(extra map[string]any) map[string]any {
	f := map[string]any{
		"attempt_id": s.AttemptID,
		"session_id": s.ID,
		"state":      s.state.String(),
		"index":      s.index,
	}
	for k, v := range extra {
		f[k] = v
	}
	return f
}
