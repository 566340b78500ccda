package socket

import (
	"encoding/json"
	"time"
)

// Event names on the wire.
const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventTypingStart = "typing-start"
	EventTypingStop  = "typing-stop"

	EventNewMessage   = "new-message"
	EventTypingUpdate = "typing-update"
)

// Envelope frames every event in both directions.
type Envelope struct {
	EventType      string          `json:"event_type"`
	ConversationID string          `json:"conversation_id,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// InboundMessage is the payload of a new-message event. The sender's
// client message ID travels with the echo so the local placeholder can
// be reconciled instead of duplicated.
type InboundMessage struct {
	ID              string    `json:"id"`
	ConversationID  string    `json:"conversation_id"`
	SenderID        string    `json:"sender_id"`
	Content         string    `json:"content"`
	MessageType     string    `json:"message_type"`
	MediaURL        string    `json:"media_url,omitempty"`
	MediaDuration   float64   `json:"media_duration,omitempty"`
	MeteringValues  []float64 `json:"metering_values,omitempty"`
	ReplyToID       string    `json:"reply_to_id,omitempty"`
	ClientMessageID string    `json:"client_message_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// TypingUpdate is the payload of a typing-update event.
type TypingUpdate struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Typing         bool   `json:"typing"`
}
