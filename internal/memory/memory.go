// Package memory keeps the bounded conversational context of one interview.
//
// The generative backend is stateless per call, so every prompt re-supplies
// the whole situation: instructions, job and résumé summaries, a rolling
// summary of older turns and a short window of verbatim recent messages.
// Raw history beyond the window is never resent.
package memory

import (
	"strings"

	"interview-backend/internal/summarize"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// InitialSummary is the rolling summary before any summarization pass.
const InitialSummary = "The conversation has just begun."

const (
	defaultSummarizeEvery  = 3
	defaultContextMessages = 6
	summarySentences       = 4
)

// Message is one entry of the recent conversation window.
type Message struct {
	Role    Role
	Content string
}

// Option customizes a Memory.
type Option func(*Memory)

// WithSummarizeEvery sets how many exchanges accumulate before a summarization pass.
// The recent window holds 2*n messages.
func WithSummarizeEvery(n int) Option {
	return func(m *Memory) {
		if n > 0 {
			m.summarizeEvery = n
		}
	}
}

// WithContextMessages sets how many recent messages BuildContext renders.
func WithContextMessages(k int) Option {
	return func(m *Memory) {
		if k > 0 {
			m.contextMessages = k
		}
	}
}

// WithSummarizer replaces the summarizer, mainly for tests.
func WithSummarizer(fn func(text string, n int) string) Option {
	return func(m *Memory) {
		if fn != nil {
			m.summarize = fn
		}
	}
}

// Memory is owned by a single session and is not safe for concurrent use.
type Memory struct {
	jobSummary      string
	resumeSummary   string
	summary         string
	recent          []Message
	summarizeEvery  int
	contextMessages int
	summarize       func(text string, n int) string
}

// New builds a Memory, summarizing the job description and résumé once.
func New(jobDescription, resumeText string, opts ...Option) *Memory {
	m := &Memory{
		summary:         InitialSummary,
		summarizeEvery:  defaultSummarizeEvery,
		contextMessages: defaultContextMessages,
		summarize:       summarize.Summarize,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.jobSummary = m.safeSummarize(jobDescription)
	m.resumeSummary = m.safeSummarize(resumeText)
	m.recent = make([]Message, 0, m.Cap())
	return m
}

// Cap is the maximum number of recent messages retained.
func (m *Memory) Cap() int {
	return 2 * m.summarizeEvery
}

// AddMessage appends to the recent window, evicting the oldest entries when full.
func (m *Memory) AddMessage(role Role, content string) {
	m.recent = append(m.recent, Message{Role: role, Content: content})
	if over := len(m.recent) - m.Cap(); over > 0 {
		m.recent = append(m.recent[:0], m.recent[over:]...)
	}
}

// MaybeSummarize folds the recent window into the rolling summary once it holds
// SummarizeEvery exchanges. The window is cleared afterwards; the cap alone
// bounds it between passes. It reports whether a pass ran.
func (m *Memory) MaybeSummarize() bool {
	if len(m.recent) == 0 || len(m.recent) < m.Cap() {
		return false
	}
	var b strings.Builder
	b.WriteString("Previous summary:\n")
	b.WriteString(m.summary)
	b.WriteString("\n\nRecent conversation:\n")
	writeMessages(&b, m.recent)

	m.summary = m.safeSummarize(b.String())
	m.recent = m.recent[:0]
	return true
}

// BuildContext renders the prompt block sent with every backend call.
// Section order is fixed; it does not mutate the memory.
func (m *Memory) BuildContext(systemPrompt string) string {
	var b strings.Builder
	section(&b, "SYSTEM INSTRUCTIONS", strings.TrimSpace(systemPrompt))
	section(&b, "JOB DESCRIPTION SUMMARY", m.jobSummary)
	section(&b, "CANDIDATE RESUME SUMMARY", m.resumeSummary)
	section(&b, "CONVERSATION SUMMARY", m.summary)

	b.WriteString("===== RECENT CONVERSATION =====\n")
	window := m.recent
	if len(window) > m.contextMessages {
		window = window[len(window)-m.contextMessages:]
	}
	writeMessages(&b, window)
	b.WriteString("\n===== END OF CONTEXT =====")
	return b.String()
}

// Recent returns a copy of the recent window.
func (m *Memory) Recent() []Message {
	out := make([]Message, len(m.recent))
	copy(out, m.recent)
	return out
}

// Summary returns the rolling summary.
func (m *Memory) Summary() string { return m.summary }

// JobSummary returns the summarized job description.
func (m *Memory) JobSummary() string { return m.jobSummary }

// ResumeSummary returns the summarized résumé.
func (m *Memory) ResumeSummary() string { return m.resumeSummary }

// safeSummarize shields the memory from a misbehaving summarizer.
func (m *Memory) safeSummarize(text string) (out string) {
	defer func() {
		if rec := recover(); rec != nil {
			out = summarize.Fallback(text)
		}
	}()
	return m.summarize(text, summarySentences)
}

// Label renders a role the way it appears in prompts.
func (r Role) Label() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAI:
		return "AI"
	default:
		return string(r)
	}
}

func section(b *strings.Builder, title, body string) {
	b.WriteString("===== ")
	b.WriteString(title)
	b.WriteString(" =====\n")
	b.WriteString(body)
	b.WriteString("\n\n")
}

func writeMessages(b *strings.Builder, msgs []Message) {
	for _, msg := range msgs {
		b.WriteString(msg.Role.Label())
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(msg.Content))
		b.WriteString("\n")
	}
}
