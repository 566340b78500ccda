package message

import (
	"time"

	"github.com/google/uuid"
)

// Type enumerates the supported message payload kinds.
type Type string

const (
	TypeText     Type = "text"
	TypeVoice    Type = "voice"
	TypeImage    Type = "image"
	TypeDocument Type = "document"
)

// Message is the central chat entity. ID is the canonical backend
// identifier; TempID is assigned at creation time for any message not
// yet acknowledged by the backend and is stable for the lifetime of
// the placeholder.
type Message struct {
	ID             string
	TempID         string
	ConversationID string
	SenderID       string
	Content        string
	Type           Type
	MediaURL       string
	MediaDuration  float64
	MediaWidth     int
	MediaHeight    int
	MeteringValues []float64
	ReplyToID      string
	Status         Status
	IsOptimistic   bool
	IsDeleted      bool
	IsEdited       bool
	CreatedAt      time.Time
}

// Key returns the identifier messages are addressed by in the local
// store: the canonical ID once confirmed, the temp ID before that.
func (m Message) Key() string {
	if m.ID != "" {
		return m.ID
	}
	return m.TempID
}

// NewTempID generates a client-side placeholder identifier.
func NewTempID() string {
	return "temp-" + uuid.NewString()
}

// NewPlaceholder builds the optimistic entry inserted into the store
// before the backend has acknowledged the send.
func NewPlaceholder(conversationID, senderID string, msgType Type) Message {
	return Message{
		TempID:         NewTempID(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Type:           msgType,
		Status:         StatusSending,
		IsOptimistic:   true,
		CreatedAt:      time.Now(),
	}
}
