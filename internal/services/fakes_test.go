package services

import (
	"context"
	"io"
	"sync"

	"coachchat/internal/transport/rest"
)

// fakeAPI substitutes the REST client in coordinator tests. Each field
// overrides one endpoint; unset endpoints return zero values. Call
// counters are guarded because coordinators may dispatch concurrently.
type fakeAPI struct {
	mu sync.Mutex

	listMessages  func(conversationID, cursor string, limit int) (rest.MessagesPage, error)
	sendMessage   func(conversationID string, req rest.SendMessageRequest) (rest.Message, error)
	markRead      func(conversationID string) error
	editMessage   func(messageID, content string) (rest.Message, error)
	deleteMessage func(messageID string) error
	uploadVoice   func(filename string, duration float64) (rest.VoiceUpload, error)
	uploadImage   func(filename, contentType string) (rest.ImageUpload, error)

	listCalls        int
	sendCalls        int
	markReadCalls    int
	editCalls        int
	deleteCalls      int
	uploadVoiceCalls int
	uploadImageCalls int
}

func (f *fakeAPI) ListMessages(_ context.Context, conversationID, cursor string, limit int) (rest.MessagesPage, error) {
	f.mu.Lock()
	f.listCalls++
	fn := f.listMessages
	f.mu.Unlock()
	if fn == nil {
		return rest.MessagesPage{}, nil
	}
	return fn(conversationID, cursor, limit)
}

func (f *fakeAPI) SendMessage(_ context.Context, conversationID string, req rest.SendMessageRequest) (rest.Message, error) {
	f.mu.Lock()
	f.sendCalls++
	fn := f.sendMessage
	f.mu.Unlock()
	if fn == nil {
		return rest.Message{}, nil
	}
	return fn(conversationID, req)
}

func (f *fakeAPI) MarkRead(_ context.Context, conversationID string) error {
	f.mu.Lock()
	f.markReadCalls++
	fn := f.markRead
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(conversationID)
}

func (f *fakeAPI) EditMessage(_ context.Context, messageID, content string) (rest.Message, error) {
	f.mu.Lock()
	f.editCalls++
	fn := f.editMessage
	f.mu.Unlock()
	if fn == nil {
		return rest.Message{}, nil
	}
	return fn(messageID, content)
}

func (f *fakeAPI) DeleteMessage(_ context.Context, messageID string) error {
	f.mu.Lock()
	f.deleteCalls++
	fn := f.deleteMessage
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(messageID)
}

func (f *fakeAPI) UploadVoice(_ context.Context, _ io.Reader, filename string, duration float64) (rest.VoiceUpload, error) {
	f.mu.Lock()
	f.uploadVoiceCalls++
	fn := f.uploadVoice
	f.mu.Unlock()
	if fn == nil {
		return rest.VoiceUpload{}, nil
	}
	return fn(filename, duration)
}

func (f *fakeAPI) UploadImage(_ context.Context, _ io.Reader, filename, contentType string) (rest.ImageUpload, error) {
	f.mu.Lock()
	f.uploadImageCalls++
	fn := f.uploadImage
	f.mu.Unlock()
	if fn == nil {
		return rest.ImageUpload{}, nil
	}
	return fn(filename, contentType)
}

func (f *fakeAPI) calls(which *int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *which
}

var _ BackendAPI = (*fakeAPI)(nil)
