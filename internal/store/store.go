package store

import (
	"sort"
	"sync"
	"time"

	"coachchat/internal/domain/conversation"
	"coachchat/internal/domain/message"
)

// EventType identifies what changed in a notification.
type EventType string

const (
	EventMessagesChanged    EventType = "messages_changed"
	EventTypingChanged      EventType = "typing_changed"
	EventActiveConversation EventType = "active_conversation"
)

// Event is delivered to subscribers after every mutation.
type Event struct {
	Type           EventType
	ConversationID string
}

// Store is the single mutable shared resource of the chat core: the
// per-conversation message lists. Every mutation goes through a typed
// method and serializes on one mutex, so optimistic inserts,
// reconciliations, inbound socket merges and pagination prepends are
// applied in the order they are issued. Subscribers are notified
// outside the lock.
type Store struct {
	mu            sync.Mutex
	conversations map[string]*conversation.Conversation
	activeID      string

	subMu       sync.Mutex
	subscribers map[int]func(Event)
	nextSubID   int
}

func New() *Store {
	return &Store{
		conversations: make(map[string]*conversation.Conversation),
		subscribers:   make(map[int]func(Event)),
	}
}

// Subscribe registers an observer. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(ev Event) {
	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (s *Store) conv(id string) *conversation.Conversation {
	c, ok := s.conversations[id]
	if !ok {
		c = &conversation.Conversation{ID: id, HasMore: true}
		s.conversations[id] = c
	}
	return c
}

// SetActive switches the active conversation. Only the active
// conversation is visible for pagination and markAsRead, and it
// governs which socket room should be joined.
func (s *Store) SetActive(conversationID string) {
	s.mu.Lock()
	if conversationID != "" {
		s.conv(conversationID)
	}
	s.activeID = conversationID
	s.mu.Unlock()
	s.notify(Event{Type: EventActiveConversation, ConversationID: conversationID})
}

func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Snapshot returns a copy of the conversation's message list in
// ascending CreatedAt order.
func (s *Store) Snapshot(conversationID string) []message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return nil
	}
	out := make([]message.Message, len(c.Messages))
	copy(out, c.Messages)
	return out
}

// Find looks a message up by canonical or temp ID.
func (s *Store) Find(conversationID, messageID string) (message.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return message.Message{}, false
	}
	for _, m := range c.Messages {
		if m.Key() == messageID || m.ID == messageID || m.TempID == messageID {
			return m, true
		}
	}
	return message.Message{}, false
}

func (s *Store) HasMore(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return false
	}
	return c.HasMore
}

func (s *Store) Cursor(conversationID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return ""
	}
	return c.Cursor
}

// OldestCreatedAt is the loadMore fallback when no cursor was cached.
func (s *Store) OldestCreatedAt(conversationID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok || len(c.Messages) == 0 {
		return time.Time{}, false
	}
	return c.Messages[0].CreatedAt, true
}

// ReplaceAll installs a freshly fetched newest page, replacing the
// in-memory list and resetting the cursor. nextCursor == nil means no
// older messages remain.
func (s *Store) ReplaceAll(conversationID string, msgs []message.Message, nextCursor *string) {
	s.mu.Lock()
	c := s.conv(conversationID)
	c.Messages = sortedCopy(msgs)
	applyCursor(c, nextCursor)
	c.LastSyncedAt = time.Now()
	s.mu.Unlock()
	s.notify(Event{Type: EventMessagesChanged, ConversationID: conversationID})
}

// Prepend inserts an older history page at the front of the list and
// advances the cursor.
func (s *Store) Prepend(conversationID string, msgs []message.Message, nextCursor *string) {
	s.mu.Lock()
	c := s.conv(conversationID)
	page := sortedCopy(msgs)
	// Drop anything we already hold; a page boundary can overlap.
	seen := make(map[string]struct{}, len(c.Messages))
	for _, m := range c.Messages {
		seen[m.Key()] = struct{}{}
	}
	fresh := page[:0]
	for _, m := range page {
		if _, dup := seen[m.Key()]; !dup {
			fresh = append(fresh, m)
		}
	}
	c.Messages = append(fresh, c.Messages...)
	applyCursor(c, nextCursor)
	s.mu.Unlock()
	s.notify(Event{Type: EventMessagesChanged, ConversationID: conversationID})
}

// InsertOptimistic appends a placeholder. The invariant that exactly
// one live entry exists per temp ID is enforced here: a second insert
// with the same temp ID is ignored.
func (s *Store) InsertOptimistic(conversationID string, msg message.Message) {
	s.mu.Lock()
	c := s.conv(conversationID)
	for _, existing := range c.Messages {
		if existing.TempID != "" && existing.TempID == msg.TempID {
			s.mu.Unlock()
			return
		}
	}
	c.Messages = append(c.Messages, msg)
	s.mu.Unlock()
	s.notify(Event{Type: EventMessagesChanged, ConversationID: conversationID})
}

// Reconcile atomically replaces the optimistic entry matched by temp
// ID with the backend-confirmed message, in place. Concurrent readers
// never observe a duplicate or a missing entry. Returns false if no
// placeholder with that temp ID is live.
func (s *Store) Reconcile(conversationID, tempID string, canonical message.Message) bool {
	var swapped bool
	s.mu.Lock()
	c := s.conv(conversationID)
	for i, existing := range c.Messages {
		if existing.TempID == tempID && existing.ID == "" {
			canonical.TempID = tempID
			canonical.IsOptimistic = false
			if canonical.Status == "" || canonical.Status == message.StatusSending {
				canonical.Status = message.StatusSent
			}
			c.Messages[i] = canonical
			swapped = true
			break
		}
	}
	s.mu.Unlock()
	if swapped {
		s.notify(Event{Type: EventMessagesChanged, ConversationID: conversationID})
	}
	return swapped
}

// MarkFailed flags a pending placeholder for manual retry. The entry
// stays in the list.
func (s *Store) MarkFailed(conversationID, tempID string) {
	var changed bool
	s.mu.Lock()
	c := s.conv(conversationID)
	for i, existing := range c.Messages {
		if existing.TempID == tempID && existing.ID == "" {
			if message.CanTransition(existing.Status, message.StatusFailed) {
				c.Messages[i].Status = message.StatusFailed
				changed = true
			}
			break
		}
	}
	s.mu.Unlock()
	if changed {
		s.notify(Event{Type: EventMessagesChanged, ConversationID: conversationID})
	}
}

// MarkSending re-arms a failed placeholder for a manual retry.
func (s *Store) MarkSending(conversationID, tempID string) {
	var changed bool
	s.mu.Lock()
	c := s.conv(conversationID)
	for i, existing := range c.Messages {
		if existing.TempID == tempID && existing.ID == "" {
			c.Messages[i].Status = message.StatusSending
			changed = true
			break
		}
	}
	s.mu.Unlock()
	if changed {
		s.notify(Event{Type: EventMessagesChanged, ConversationID: conversationID})
	}
}

// ApplyInbound merges a message delivered over the socket.
// clientMessageID carries the sender's temp ID when the event is the
// echo of our own in-flight send; in that case the pending placeholder
// is reconciled instead of appending a duplicate entry. Messages whose
// canonical ID is already present are dropped.
func (s *Store) ApplyInbound(conversationID string, msg message.Message, clientMessageID string) {
	s.mu.Lock()
	c := s.conv(conversationID)
	if clientMessageID != "" {
		for i, existing := range c.Messages {
			if existing.TempID == clientMessageID && existing.ID == "" {
				msg.TempID = clientMessageID
				msg.IsOptimistic = false
				if msg.Status == "" {
					msg.Status = message.StatusSent
				}
				c.Messages[i] = msg
				s.mu.Unlock()
				s.notify(Event{Type: EventMessagesChanged, ConversationID: conversationID})
				return
			}
		}
	}
	for _, existing := range c.Messages {
		if msg.ID != "" && existing.ID == msg.ID {
			s.mu.Unlock()
			return
		}
	}
	if msg.Status == "" {
		msg.Status = message.StatusDelivered
	}
	c.Messages = append(c.Messages, msg)
	s.mu.Unlock()
	s.notify(Event{Type: EventMessagesChanged, ConversationID: conversationID})
}

// MarkAllRead is idempotent: every message not already read moves to
// read, where the status machine allows it.
func (s *Store) MarkAllRead(conversationID string) {
	var changed bool
	s.mu.Lock()
	c := s.conv(conversationID)
	for i, existing := range c.Messages {
		if message.CanTransition(existing.Status, message.StatusRead) {
			c.Messages[i].Status = message.StatusRead
			changed = true
		}
	}
	s.mu.Unlock()
	if changed {
		s.notify(Event{Type: EventMessagesChanged, ConversationID: conversationID})
	}
}

// ApplyEdit rewrites the content of a local entry.
func (s *Store) ApplyEdit(conversationID, messageID, content string) bool {
	var changed bool
	s.mu.Lock()
	c := s.conv(conversationID)
	for i, existing := range c.Messages {
		if existing.Key() == messageID || existing.ID == messageID {
			c.Messages[i].Content = content
			c.Messages[i].IsEdited = true
			changed = true
			break
		}
	}
	s.mu.Unlock()
	if changed {
		s.notify(Event{Type: EventMessagesChanged, ConversationID: conversationID})
	}
	return changed
}

// ApplyDelete soft-deletes a local entry.
func (s *Store) ApplyDelete(conversationID, messageID string) bool {
	var changed bool
	s.mu.Lock()
	c := s.conv(conversationID)
	for i, existing := range c.Messages {
		if existing.Key() == messageID || existing.ID == messageID {
			c.Messages[i].IsDeleted = true
			changed = true
			break
		}
	}
	s.mu.Unlock()
	if changed {
		s.notify(Event{Type: EventMessagesChanged, ConversationID: conversationID})
	}
	return changed
}

// SetTyping records the counterpart's typing state for a conversation.
func (s *Store) SetTyping(conversationID string, active bool, at time.Time) {
	s.mu.Lock()
	c := s.conv(conversationID)
	c.Typing = conversation.TypingIndicator{Active: active, UpdatedAt: at}
	s.mu.Unlock()
	s.notify(Event{Type: EventTypingChanged, ConversationID: conversationID})
}

func (s *Store) Typing(conversationID string) conversation.TypingIndicator {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return conversation.TypingIndicator{}
	}
	return c.Typing
}

func applyCursor(c *conversation.Conversation, nextCursor *string) {
	if nextCursor == nil || *nextCursor == "" {
		c.Cursor = ""
		c.HasMore = false
		return
	}
	c.Cursor = *nextCursor
	c.HasMore = true
}

func sortedCopy(msgs []message.Message) []message.Message {
	out := make([]message.Message, len(msgs))
	copy(out, msgs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
