// Package evaluation scores a finished interview transcript with the LLM.
package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"interview-backend/internal/attempts"
	"interview-backend/internal/llm"
	"interview-backend/internal/shared/telemetry"
)

const (
	DefaultPassThreshold = 60
	FallbackScore        = 50
	FallbackFeedback     = "Evaluation failed due to formatting issue. Please retry."

	noAnswer = "(no answer)"
)

// Result is the outcome of one evaluation. Fallback is set when the model
// output could not be used and the neutral values were substituted.
type Result struct {
	Score    float64
	Feedback string
	Verdict  string
	Fallback bool
}

// FallbackResult is returned whenever the backend fails or its reply is unusable.
func FallbackResult() Result {
	return Result{Score: FallbackScore, Feedback: FallbackFeedback, Verdict: attempts.VerdictFail, Fallback: true}
}

// Evaluator sends the transcript to the LLM and parses its verdict.
type Evaluator struct {
	LLM           llm.Client
	Prompt        string
	PassThreshold float64
}

// New constructs an Evaluator with the default pass threshold.
func New(client llm.Client, prompt string) *Evaluator {
	return &Evaluator{LLM: client, Prompt: prompt, PassThreshold: DefaultPassThreshold}
}

// Evaluate never fails: backend and parse errors degrade to FallbackResult.
func (e *Evaluator) Evaluate(ctx context.Context, turns []attempts.Turn) Result {
	if e.LLM == nil {
		telemetry.Warn("evaluation.fallback", map[string]any{"reason": "no llm client"})
		return FallbackResult()
	}
	raw, err := e.LLM.Complete(ctx, BuildPrompt(e.Prompt, turns))
	if err != nil {
		telemetry.Warn("evaluation.fallback", map[string]any{"reason": "llm error", "error": err})
		return FallbackResult()
	}
	res, err := Parse(raw, e.threshold())
	if err != nil {
		telemetry.Warn("evaluation.fallback", map[string]any{"reason": "parse error", "error": err, "raw_len": len(raw)})
		return FallbackResult()
	}
	return res
}

func (e *Evaluator) threshold() float64 {
	if e.PassThreshold <= 0 {
		return DefaultPassThreshold
	}
	return e.PassThreshold
}

// BuildPrompt appends the transcript as "Q: ...\nA: ..." pairs to prompt.
func BuildPrompt(prompt string, turns []attempts.Turn) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(prompt))
	b.WriteString("\n\nTranscript:\n")
	if len(turns) == 0 {
		b.WriteString("(no questions were asked)\n")
		return b.String()
	}
	for _, t := range turns {
		answer := noAnswer
		if t.Answer != nil && strings.TrimSpace(*t.Answer) != "" {
			answer = strings.TrimSpace(*t.Answer)
		}
		fmt.Fprintf(&b, "Q: %s\nA: %s\n\n", strings.TrimSpace(t.Question), answer)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// Parse reads {score, feedback, status|verdict} out of a model reply that may
// be wrapped in prose or code fences. A missing or non-numeric score is an error.
func Parse(raw string, passThreshold float64) (Result, error) {
	body := llm.ExtractJSON(raw)
	if body == "" {
		return Result{}, errors.New("no json object in reply")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return Result{}, fmt.Errorf("decode evaluation: %w", err)
	}

	rawScore, ok := fields["score"]
	if !ok {
		return Result{}, errors.New("evaluation has no score")
	}
	score, err := parseScore(rawScore)
	if err != nil {
		return Result{}, err
	}

	res := Result{Score: score}
	if fb, ok := fields["feedback"].(string); ok {
		res.Feedback = strings.TrimSpace(fb)
	}
	verdict, _ := fields["verdict"].(string)
	if verdict == "" {
		verdict, _ = fields["status"].(string)
	}
	res.Verdict = normalizeVerdict(verdict, score, passThreshold)
	return res, nil
}

func parseScore(v any) (float64, error) {
	var f float64
	switch s := v.(type) {
	case json.Number:
		parsed, err := s.Float64()
		if err != nil {
			return 0, fmt.Errorf("score %q: %w", s, err)
		}
		f = parsed
	case string:
		parsed, err := parseScoreText(s)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, fmt.Errorf("score has type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("score is not finite")
	}
	return math.Min(100, math.Max(0, f)), nil
}

// parseScoreText accepts "85", "85%" and "85/100".
func parseScoreText(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
		if err != nil {
			return 0, fmt.Errorf("score %q: %w", s, err)
		}
		d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err != nil || d <= 0 {
			return 0, fmt.Errorf("score %q: bad denominator", s)
		}
		return n / d * 100, nil
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("score %q: %w", s, err)
	}
	return f, nil
}

func normalizeVerdict(v string, score, threshold float64) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "pass", "passed":
		return attempts.VerdictPass
	case "fail", "failed":
		return attempts.VerdictFail
	}
	if score >= threshold {
		return attempts.VerdictPass
	}
	return attempts.VerdictFail
}
