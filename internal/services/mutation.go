package services

import (
	"context"
	"strings"
	"sync"

	"coachchat/internal/auth"
	"coachchat/internal/domain/message"
	"coachchat/internal/store"
	coachchat_errors "coachchat/pkg/errors"
	"coachchat/pkg/logger"
)

// Clipboard abstracts the system clipboard. Copy is a pure side
// effect; nothing in the store changes.
type Clipboard interface {
	WriteText(text string) error
}

// MutationService owns edit, delete, copy and reply targeting. Edits
// and deletes mutate the local entry immediately and then call the
// backend; a backend failure is logged but not rolled back, since the
// backend is source of truth on the next refresh.
type MutationService struct {
	api       BackendAPI
	store     *store.Store
	session   *auth.Session
	clipboard Clipboard
	log       *logger.Logger

	mu         sync.Mutex
	replyingTo *message.Message
}

func NewMutationService(api BackendAPI, st *store.Store, session *auth.Session, clipboard Clipboard, log *logger.Logger) *MutationService {
	return &MutationService{
		api:       api,
		store:     st,
		session:   session,
		clipboard: clipboard,
		log:       log,
	}
}

// CanEdit: own text messages only, and not already deleted.
func (s *MutationService) CanEdit(msg message.Message) bool {
	return msg.SenderID == s.session.UserID() &&
		msg.Type == message.TypeText &&
		!msg.IsDeleted
}

// CanDelete: own messages only, and not already deleted.
func (s *MutationService) CanDelete(msg message.Message) bool {
	return msg.SenderID == s.session.UserID() && !msg.IsDeleted
}

// Edit applies new content locally, then calls the backend.
func (s *MutationService) Edit(ctx context.Context, messageID, newContent string) error {
	newContent = strings.TrimSpace(newContent)
	if newContent == "" {
		return coachchat_errors.ErrEmptyContent
	}
	conversationID := s.store.ActiveID()
	if conversationID == "" {
		return coachchat_errors.ErrNoConversation
	}
	msg, ok := s.store.Find(conversationID, messageID)
	if !ok {
		return coachchat_errors.ErrNotFound
	}
	if !s.CanEdit(msg) {
		return coachchat_errors.ErrInvalidInput
	}

	s.store.ApplyEdit(conversationID, messageID, newContent)

	if msg.ID == "" {
		// Unconfirmed placeholder; nothing to edit server-side yet.
		return nil
	}
	if _, err := s.api.EditMessage(ctx, msg.ID, newContent); err != nil {
		s.log.Errorf("mutation: edit failed message=%s: %v", msg.ID, err)
	}
	return nil
}

// Delete marks the local entry deleted, then calls the backend.
func (s *MutationService) Delete(ctx context.Context, messageID string) error {
	conversationID := s.store.ActiveID()
	if conversationID == "" {
		return coachchat_errors.ErrNoConversation
	}
	msg, ok := s.store.Find(conversationID, messageID)
	if !ok {
		return coachchat_errors.ErrNotFound
	}
	if !s.CanDelete(msg) {
		return coachchat_errors.ErrInvalidInput
	}

	s.store.ApplyDelete(conversationID, messageID)

	if msg.ID == "" {
		return nil
	}
	if err := s.api.DeleteMessage(ctx, msg.ID); err != nil {
		s.log.Errorf("mutation: delete failed message=%s: %v", msg.ID, err)
	}
	return nil
}

// SetReplyingTo records the pending reply target for the active
// composition. A reference, not ownership.
func (s *MutationService) SetReplyingTo(msg message.Message) {
	s.mu.Lock()
	s.replyingTo = &msg
	s.mu.Unlock()
}

func (s *MutationService) ClearReply() {
	s.mu.Lock()
	s.replyingTo = nil
	s.mu.Unlock()
}

func (s *MutationService) ReplyingTo() *message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replyingTo == nil {
		return nil
	}
	out := *s.replyingTo
	return &out
}

// Copy writes the message content to the system clipboard.
func (s *MutationService) Copy(msg message.Message) error {
	if s.clipboard == nil {
		return nil
	}
	return s.clipboard.WriteText(msg.Content)
}
