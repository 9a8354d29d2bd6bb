package interview

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

// Outbound message types.
const (
	TypeWelcome    = "welcome"
	TypeQuestion   = "question"
	TypeAck        = "ack"
	TypeTimeout    = "timeout"
	TypeComplete   = "complete"
	TypeEvaluation = "evaluation"
	TypeError      = "error"
)

// Message is one server-to-peer frame. Only the fields of its Type are set.
type Message struct {
	Type           string   `json:"type"`
	Text           string   `json:"text,omitempty"`
	Index          int      `json:"index,omitempty"`
	TotalQuestions int      `json:"totalQuestions,omitempty"`
	Audio          string   `json:"audio,omitempty"`
	Message        string   `json:"message,omitempty"`
	Summary        string   `json:"summary,omitempty"`
	Score          *float64 `json:"score,omitempty"`
	Feedback       string   `json:"feedback,omitempty"`
	Verdict        string   `json:"verdict,omitempty"`
}

func welcomeMsg(message string, total int) Message {
	return Message{Type: TypeWelcome, Message: message, TotalQuestions: total}
}

func questionMsg(text string, index, total int, audio []byte) Message {
	m := Message{Type: TypeQuestion, Text: text, Index: index, TotalQuestions: total}
	if len(audio) > 0 {
		m.Audio = base64.StdEncoding.EncodeToString(audio)
	}
	return m
}

func ackMsg(message string) Message {
	return Message{Type: TypeAck, Message: message}
}

func timeoutMsg(message string, index int) Message {
	return Message{Type: TypeTimeout, Message: message, Index: index}
}

func completeMsg(message, summary string) Message {
	return Message{Type: TypeComplete, Message: message, Summary: summary}
}

func evaluationMsg(score float64, feedback, verdict string) Message {
	return Message{Type: TypeEvaluation, Score: &score, Feedback: feedback, Verdict: verdict}
}

func errorMsg(message string) Message {
	return Message{Type: TypeError, Message: message}
}

// Peer-facing texts.
const (
	msgAnswerReceived   = "Answer received"
	msgProvideAnswer    = "Please provide your answer"
	msgNotHeard         = "We couldn't hear an answer, please try again"
	msgInvalidFormat    = "Invalid message format"
	msgTranscribeFailed = "We could not process your audio, please try again"
	msgAudioUnsupported = "Audio answers are not supported for this interview"
	msgRetrying         = "Question generation failed, retrying"
	msgNotFound         = "Interview attempt not found"
	msgNotOpen          = "Interview attempt is not open"
	msgBusy             = "Interview attempt is already in progress"
	msgLoadFailed       = "Interview attempt could not be loaded"
	msgOpeningFailed    = "Could not start the interview, please try again later"
	msgSaveFailed       = "Interview progress could not be saved"
	msgInternal         = "Internal error"
)

type inboundKind int

const (
	inboundAnswer inboundKind = iota
	inboundEnd
)

type inbound struct {
	kind   inboundKind
	answer string
}

var errInvalidInbound = errors.New("invalid inbound message")

// parseInbound decodes {"answer": "..."} or {"type":"end"}.
func parseInbound(data []byte) (inbound, error) {
	var raw struct {
		Type   string          `json:"type"`
		Answer json.RawMessage `json:"answer"`
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return inbound{}, errInvalidInbound
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return inbound{}, errInvalidInbound
	}
	switch strings.ToLower(strings.TrimSpace(raw.Type)) {
	case "end", "end_interview":
		return inbound{kind: inboundEnd}, nil
	}
	var answer string
	if len(raw.Answer) > 0 && string(raw.Answer) != "null" {
		if err := json.Unmarshal(raw.Answer, &answer); err != nil {
			return inbound{}, errInvalidInbound
		}
	}
	return inbound{kind: inboundAnswer, answer: strings.TrimSpace(answer)}, nil
}
