package services

import (
	"context"
	"sync"
	"time"

	"coachchat/internal/auth"
	"coachchat/internal/store"
	coachchat_errors "coachchat/pkg/errors"
	"coachchat/pkg/logger"
)

const DefaultPageSize = 30

// HistoryService loads and paginates message history for the active
// conversation. Transport errors are logged and returned; prior store
// state is left untouched on failure.
type HistoryService struct {
	api      BackendAPI
	store    *store.Store
	session  *auth.Session
	pageSize int
	log      *logger.Logger

	mu          sync.Mutex
	loadingMore bool
	refreshing  bool
}

func NewHistoryService(api BackendAPI, st *store.Store, session *auth.Session, pageSize int, log *logger.Logger) *HistoryService {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &HistoryService{
		api:      api,
		store:    st,
		session:  session,
		pageSize: pageSize,
		log:      log,
	}
}

// IsLoadingMore is the busy flag guarding loadMore mutual exclusion.
func (s *HistoryService) IsLoadingMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingMore
}

// Refresh fetches the newest page and replaces the in-memory list for
// the active conversation, resetting the cursor from the response.
func (s *HistoryService) Refresh(ctx context.Context) error {
	conversationID := s.store.ActiveID()
	if conversationID == "" {
		return coachchat_errors.ErrNoConversation
	}
	if !s.session.Valid() {
		return coachchat_errors.ErrNoToken
	}

	s.mu.Lock()
	if s.refreshing {
		s.mu.Unlock()
		return nil
	}
	s.refreshing = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.refreshing = false
		s.mu.Unlock()
	}()

	page, err := s.api.ListMessages(ctx, conversationID, "", s.pageSize)
	if err != nil {
		s.log.Errorf("history: refresh failed conversation=%s: %v", conversationID, err)
		return err
	}

	// The conversation may have been switched while the request was in
	// flight; a late page must not corrupt another conversation's view.
	if s.store.ActiveID() != conversationID {
		s.log.Debugf("history: dropping stale refresh for %s", conversationID)
		return nil
	}

	s.store.ReplaceAll(conversationID, domainFromWire(page.Messages), page.NextCursor)
	return nil
}

// LoadMore fetches the next older page and prepends it. It is a no-op
// when there is no active conversation, no more pages, or another load
// is already in flight.
func (s *HistoryService) LoadMore(ctx context.Context) error {
	conversationID := s.store.ActiveID()
	if conversationID == "" || !s.store.HasMore(conversationID) {
		return nil
	}

	s.mu.Lock()
	if s.loadingMore {
		s.mu.Unlock()
		return nil
	}
	s.loadingMore = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loadingMore = false
		s.mu.Unlock()
	}()

	cursor := s.store.Cursor(conversationID)
	if cursor == "" {
		// No cursor cached; fall back to the oldest visible message's
		// timestamp.
		if oldest, ok := s.store.OldestCreatedAt(conversationID); ok {
			cursor = oldest.UTC().Format(time.RFC3339Nano)
		}
	}

	page, err := s.api.ListMessages(ctx, conversationID, cursor, s.pageSize)
	if err != nil {
		s.log.Errorf("history: loadMore failed conversation=%s: %v", conversationID, err)
		return err
	}
	if s.store.ActiveID() != conversationID {
		s.log.Debugf("history: dropping stale page for %s", conversationID)
		return nil
	}

	s.store.Prepend(conversationID, domainFromWire(page.Messages), page.NextCursor)
	return nil
}

// MarkAsRead marks the active conversation read locally and informs
// the backend. Idempotent; callers debounce. A backend failure is
// logged only; the local state stands.
func (s *HistoryService) MarkAsRead(ctx context.Context) error {
	conversationID := s.store.ActiveID()
	if conversationID == "" {
		return coachchat_errors.ErrNoConversation
	}
	s.store.MarkAllRead(conversationID)
	if err := s.api.MarkRead(ctx, conversationID); err != nil {
		s.log.Errorf("history: markAsRead failed conversation=%s: %v", conversationID, err)
	}
	return nil
}
