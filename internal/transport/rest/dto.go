package rest

import (
	"time"

	"coachchat/internal/domain/message"
)

// Message is the wire shape the backend uses for chat messages.
type Message struct {
	ID              string    `json:"id"`
	ConversationID  string    `json:"conversation_id"`
	SenderID        string    `json:"sender_id"`
	Content         string    `json:"content"`
	MessageType     string    `json:"message_type"`
	MediaURL        string    `json:"media_url,omitempty"`
	MediaDuration   float64   `json:"media_duration,omitempty"`
	MediaWidth      int       `json:"media_width,omitempty"`
	MediaHeight     int       `json:"media_height,omitempty"`
	MeteringValues  []float64 `json:"metering_values,omitempty"`
	ReplyToID       string    `json:"reply_to_id,omitempty"`
	ClientMessageID string    `json:"client_message_id,omitempty"`
	IsDeleted       bool      `json:"is_deleted"`
	IsEdited        bool      `json:"is_edited"`
	CreatedAt       time.Time `json:"created_at"`
}

// Domain converts the wire message to the domain entity. Confirmed
// backend messages arrive with status sent.
func (m Message) Domain() message.Message {
	return message.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		Type:           message.Type(m.MessageType),
		MediaURL:       m.MediaURL,
		MediaDuration:  m.MediaDuration,
		MediaWidth:     m.MediaWidth,
		MediaHeight:    m.MediaHeight,
		MeteringValues: m.MeteringValues,
		ReplyToID:      m.ReplyToID,
		Status:         message.StatusSent,
		IsDeleted:      m.IsDeleted,
		IsEdited:       m.IsEdited,
		CreatedAt:      m.CreatedAt,
	}
}

// MessagesPage is one page of conversation history. NextCursor is nil
// when no older messages remain.
type MessagesPage struct {
	Messages   []Message `json:"messages"`
	NextCursor *string   `json:"next_cursor"`
}

type SendMessageRequest struct {
	Content         string    `json:"content"`
	MessageType     string    `json:"message_type"`
	ClientMessageID string    `json:"client_message_id"`
	ReplyToID       string    `json:"reply_to_id,omitempty"`
	MediaURL        string    `json:"media_url,omitempty"`
	MediaDuration   float64   `json:"media_duration,omitempty"`
	MediaWidth      int       `json:"media_width,omitempty"`
	MediaHeight     int       `json:"media_height,omitempty"`
	MeteringValues  []float64 `json:"metering_values,omitempty"`
}

type EditMessageRequest struct {
	Content string `json:"content"`
}

// VoiceUpload is the response of POST /audio/upload-voice.
type VoiceUpload struct {
	URL          string  `json:"url"`
	Duration     float64 `json:"duration"`
	VoiceMessage string  `json:"voiceMessage,omitempty"`
}

// ImageUpload is the response of the generic asset upload endpoint.
type ImageUpload struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}
