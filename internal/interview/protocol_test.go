package interview

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInbound(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    inbound
		wantErr bool
	}{
		{name: "answer", data: `{"answer": "  I use Go.  "}`, want: inbound{kind: inboundAnswer, answer: "I use Go."}},
		{name: "empty answer", data: `{"answer": ""}`, want: inbound{kind: inboundAnswer}},
		{name: "null answer", data: `{"answer": null}`, want: inbound{kind: inboundAnswer}},
		{name: "end", data: `{"type": "end"}`, want: inbound{kind: inboundEnd}},
		{name: "end interview", data: `{"type": "END_INTERVIEW"}`, want: inbound{kind: inboundEnd}},
		{name: "plain text", data: `hello`, wantErr: true},
		{name: "array", data: `["answer"]`, wantErr: true},
		{name: "numeric answer", data: `{"answer": 42}`, wantErr: true},
		{name: "truncated", data: `{"answer": "x`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseInbound([]byte(tt.data))
			if tt.wantErr {
				assert.ErrorIs(t, err, errInvalidInbound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOutboundMessagesUseCamelCase(t *testing.T) {
	raw, err := json.Marshal(questionMsg("Why Go?", 2, 10, []byte{1, 2}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"question","text":"Why Go?","index":2,"totalQuestions":10,"audio":"AQI="}`, string(raw))

	raw, err = json.Marshal(evaluationMsg(0, "Weak.", "fail"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"evaluation","score":0,"feedback":"Weak.","verdict":"fail"}`, string(raw))

	raw, err = json.Marshal(timeoutMsg("Time is up.", 3))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"timeout","message":"Time is up.","index":3}`, string(raw))
}

func TestIsClosing(t *testing.T) {
	phrases := []string{"that concludes", "best of luck"}

	assert.True(t, IsClosing("Well, THAT CONCLUDES our session.", phrases))
	assert.True(t, IsClosing("Best of luck!", phrases))
	assert.False(t, IsClosing("What would you conclude from that?", phrases))
	assert.False(t, IsClosing("anything", nil))
	assert.False(t, IsClosing("anything", []string{"  "}))
}

func TestRegistryExclusiveOwnership(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Acquire("a1", "s1"))
	assert.ErrorIs(t, r.Acquire("a1", "s2"), ErrAttemptBusy)
	require.NoError(t, r.Acquire("a2", "s2"))

	r.Release("a1", "s2")
	assert.Equal(t, 2, r.Active())

	r.Release("a1", "s1")
	assert.Equal(t, 1, r.Active())
	require.NoError(t, r.Acquire("a1", "s3"))
}

func TestStateTerminal(t *testing.T) {
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateAborted.Terminal())
	assert.False(t, StateGenerating.Terminal())
	assert.Equal(t, "awaiting_answer", StateAwaitingAnswer.String())
}
