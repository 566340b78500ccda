package services

import (
	"time"

	"coachchat/internal/domain/message"
	"coachchat/internal/socket"
	"coachchat/internal/store"
	"coachchat/pkg/logger"
)

// StoreBridge feeds inbound socket events into the store. Events for a
// conversation that is no longer active are dropped rather than
// applied, so a race between a room switch and an in-flight event
// cannot corrupt another conversation's view.
type StoreBridge struct {
	store *store.Store
	log   *logger.Logger
}

func NewStoreBridge(st *store.Store, log *logger.Logger) *StoreBridge {
	return &StoreBridge{store: st, log: log}
}

var _ socket.Handler = (*StoreBridge)(nil)

func (b *StoreBridge) HandleNewMessage(msg socket.InboundMessage) {
	if b.store.ActiveID() != msg.ConversationID {
		b.log.Debugf("bridge: dropping message for inactive conversation %s", msg.ConversationID)
		return
	}
	b.store.ApplyInbound(msg.ConversationID, message.Message{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		Type:           message.Type(msg.MessageType),
		MediaURL:       msg.MediaURL,
		MediaDuration:  msg.MediaDuration,
		MeteringValues: msg.MeteringValues,
		ReplyToID:      msg.ReplyToID,
		Status:         message.StatusDelivered,
		CreatedAt:      msg.CreatedAt,
	}, msg.ClientMessageID)
}

func (b *StoreBridge) HandleTypingUpdate(update socket.TypingUpdate) {
	if b.store.ActiveID() != update.ConversationID {
		return
	}
	b.store.SetTyping(update.ConversationID, update.Typing, time.Now())
}
