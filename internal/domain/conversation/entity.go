package conversation

import (
	"time"

	"coachchat/internal/domain/message"
)

// TypingIndicator is scoped to a single conversation. Staleness is
// judged by the caller from UpdatedAt.
type TypingIndicator struct {
	Active    bool
	UpdatedAt time.Time
}

// Conversation holds the ordered message sequence for one counterpart
// pairing plus the pagination state for it. Messages are kept in
// ascending CreatedAt order; history pages prepend, live messages
// append.
type Conversation struct {
	ID            string
	CounterpartID string
	Messages      []message.Message
	HasMore       bool
	Cursor        string // opaque pagination token, "" = none cached
	Typing        TypingIndicator
	LastSyncedAt  time.Time
}
