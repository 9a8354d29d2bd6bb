// Package prompts holds the interviewer's prompt profile.
//
// The profile ships embedded and can be replaced by a YAML file at startup;
// fields missing from the file keep their embedded values.
package prompts

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultProfile []byte

// Profile is the full set of interviewer prompts and canned messages.
type Profile struct {
	SystemPrompt       string   `yaml:"system_prompt"`
	OpeningInstruction string   `yaml:"opening_instruction"`
	FollowUpTemplate   string   `yaml:"followup_template"`
	NoAnswerMarker     string   `yaml:"no_answer_marker"`
	EvaluationPrompt   string   `yaml:"evaluation_prompt"`
	ClosingPhrases     []string `yaml:"closing_phrases"`
	WelcomeMessage     string   `yaml:"welcome_message"`
	CompletionMessage  string   `yaml:"completion_message"`
	TimeoutMessage     string   `yaml:"timeout_message"`

	followUp *template.Template
}

// Default returns the embedded profile.
func Default() (*Profile, error) {
	return parse(defaultProfile, nil)
}

// MustDefault is Default for callers that cannot handle a broken build.
func MustDefault() *Profile {
	p, err := Default()
	if err != nil {
		panic(err)
	}
	return p
}

// Load reads a YAML profile from path and overlays it on the embedded one.
// An empty path returns the embedded profile.
func Load(path string) (*Profile, error) {
	base, err := Default()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(path) == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompt profile: %w", err)
	}
	return parse(data, base)
}

func parse(data []byte, base *Profile) (*Profile, error) {
	p := &Profile{}
	if base != nil {
		*p = *base
		p.ClosingPhrases = append([]string(nil), base.ClosingPhrases...)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing prompt profile: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	tmpl, err := template.New("followup").Option("missingkey=error").Parse(p.FollowUpTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing followup_template: %w", err)
	}
	p.followUp = tmpl
	return p, nil
}

func (p *Profile) validate() error {
	required := map[string]string{
		"system_prompt":       p.SystemPrompt,
		"opening_instruction": p.OpeningInstruction,
		"followup_template":   p.FollowUpTemplate,
		"evaluation_prompt":   p.EvaluationPrompt,
	}
	for name, val := range required {
		if strings.TrimSpace(val) == "" {
			return fmt.Errorf("prompt profile: %s is required", name)
		}
	}
	phrases := p.ClosingPhrases[:0]
	for _, ph := range p.ClosingPhrases {
		if ph = strings.ToLower(strings.TrimSpace(ph)); ph != "" {
			phrases = append(phrases, ph)
		}
	}
	p.ClosingPhrases = phrases
	return nil
}

// Opening renders the prompt for the first question.
func (p *Profile) Opening(context string) string {
	return context + "\n\n" + strings.TrimSpace(p.OpeningInstruction)
}

// FollowUp renders the prompt for the question after answer.
// An empty answer is replaced by the no-answer marker.
func (p *Profile) FollowUp(context, answer string) (string, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = strings.TrimSpace(p.NoAnswerMarker)
	}
	var b strings.Builder
	err := p.followUp.Execute(&b, struct {
		Context string
		Answer  string
	}{Context: context, Answer: answer})
	if err != nil {
		return "", fmt.Errorf("rendering followup prompt: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}
