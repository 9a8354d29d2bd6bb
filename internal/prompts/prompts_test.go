package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProfileIsComplete(t *testing.T) {
	p, err := Default()
	require.NoError(t, err)

	assert.NotEmpty(t, p.SystemPrompt)
	assert.Equal(t, "Begin the interview with a brief welcome and the first question.", p.OpeningInstruction)
	assert.Contains(t, p.ClosingPhrases, "this concludes our interview")
	assert.Len(t, p.ClosingPhrases, 6)
	assert.NotEmpty(t, p.CompletionMessage)
	assert.NotEmpty(t, p.TimeoutMessage)
}

func TestFollowUpRendersContextAndAnswer(t *testing.T) {
	p := MustDefault()

	got, err := p.FollowUp("CONTEXT BLOCK", "  I used channels.  ")

	require.NoError(t, err)
	assert.Contains(t, got, "CONTEXT BLOCK")
	assert.Contains(t, got, `"I used channels."`)
}

func TestFollowUpUsesNoAnswerMarker(t *testing.T) {
	p := MustDefault()

	got, err := p.FollowUp("ctx", "")

	require.NoError(t, err)
	assert.Contains(t, got, p.NoAnswerMarker)
}

func TestOpeningAppendsInstruction(t *testing.T) {
	p := MustDefault()
	assert.Equal(t, "ctx\n\n"+p.OpeningInstruction, p.Opening("ctx"))
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("opening_instruction: Say hi and ask one question.\nclosing_phrases:\n  - \" That's All \"\n  - \"\"\n"), 0o644))

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Say hi and ask one question.", p.OpeningInstruction)
	assert.Equal(t, []string{"that's all"}, p.ClosingPhrases)
	assert.Equal(t, MustDefault().SystemPrompt, p.SystemPrompt)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sytem_prompt: typo\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsBlankRequiredField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("evaluation_prompt: \"  \"\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "evaluation_prompt")
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, MustDefault().EvaluationPrompt, p.EvaluationPrompt)
}
