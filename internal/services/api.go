package services

import (
	"context"
	"io"

	"coachchat/internal/transport/rest"
)

// BackendAPI is the slice of the REST client the coordinators consume.
// *rest.Client satisfies it; tests substitute fakes.
type BackendAPI interface {
	ListMessages(ctx context.Context, conversationID, cursor string, limit int) (rest.MessagesPage, error)
	SendMessage(ctx context.Context, conversationID string, req rest.SendMessageRequest) (rest.Message, error)
	MarkRead(ctx context.Context, conversationID string) error
	EditMessage(ctx context.Context, messageID, content string) (rest.Message, error)
	DeleteMessage(ctx context.Context, messageID string) error
	UploadVoice(ctx context.Context, audio io.Reader, filename string, duration float64) (rest.VoiceUpload, error)
	UploadImage(ctx context.Context, image io.Reader, filename, contentType string) (rest.ImageUpload, error)
}
