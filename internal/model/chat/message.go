package chat

import "time"

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// MessageType is the display bucket of a bot message. The zero value marks
// user messages and the final aggregate reply.
type MessageType string

const (
	TypeNone   MessageType = ""
	TypeAction MessageType = "action"
	TypeInfo   MessageType = "info"
	TypeAlert  MessageType = "alert"
)

// Message is one entry of a session transcript. Messages are append-only.
type Message struct {
	ID        string      `json:"id"`
	SessionID string      `json:"sessionId"`
	TurnID    string      `json:"turnId,omitempty"`
	Sender    Sender      `json:"sender"`
	Type      MessageType `json:"type,omitempty"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"createdAt"`
}

// IsBot reports whether the message was produced by the assistant.
func (m Message) IsBot() bool {
	return m.Sender == SenderBot
}
