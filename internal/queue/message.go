package queue

import (
	"encoding/json"
	"time"
)

// MessageVersion is bumped whenever Message changes shape.
const MessageVersion = 1

// Message is the completion event published when an attempt is finalized.
type Message struct {
	AttemptID   string  `json:"attemptId"`
	SubjectID   string  `json:"subjectId"`
	PositionID  string  `json:"positionId,omitempty"`
	Score       float64 `json:"score"`
	Verdict     string  `json:"verdict"`
	Questions   int     `json:"questions"`
	Fallback    bool    `json:"evaluationFallback,omitempty"`
	CompletedAt string  `json:"completedAt"`
	Version     int     `json:"version"`
}

// FormatTime renders t the way CompletedAt expects.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	if msg.Version == 0 {
		msg.Version = MessageVersion
	}
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
