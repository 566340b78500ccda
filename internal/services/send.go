package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"coachchat/internal/auth"
	"coachchat/internal/domain/message"
	"coachchat/internal/permissions"
	"coachchat/internal/store"
	"coachchat/internal/transport/rest"
	coachchat_errors "coachchat/pkg/errors"
	"coachchat/pkg/logger"
)

// VoiceAttachment carries everything the recorder produced. The send
// payload is built from the upload result plus these fields, so the
// media URL, duration and metering samples always travel together.
type VoiceAttachment struct {
	Audio    io.Reader
	Filename string
	Duration float64
	Metering []float64
}

// ImageAttachment is a raw image asset plus its pixel dimensions.
type ImageAttachment struct {
	Image       io.Reader
	Filename    string
	ContentType string
	Width       int
	Height      int
}

// SendOptions supplies the media payload for non-text sends.
type SendOptions struct {
	Voice *VoiceAttachment
	Image *ImageAttachment
}

// SendService turns a user intent into an immediately visible
// placeholder, performs any required media upload, sends to the
// backend and reconciles the result.
type SendService struct {
	api       BackendAPI
	store     *store.Store
	session   *auth.Session
	mutations *MutationService
	log       *logger.Logger

	mu        sync.Mutex
	tier      permissions.Tier
	sentToday int
	sentDay   time.Time
}

func NewSendService(api BackendAPI, st *store.Store, session *auth.Session, mutations *MutationService, tier permissions.Tier, log *logger.Logger) *SendService {
	return &SendService{
		api:       api,
		store:     st,
		session:   session,
		mutations: mutations,
		tier:      tier,
		sentToday: 0,
		sentDay:   today(),
		log:       log,
	}
}

// Permissions returns the current send-eligibility snapshot.
func (s *SendService) Permissions() permissions.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollDayLocked()
	return permissions.Compute(s.tier, s.sentToday)
}

// SetTier updates the subscription tier, e.g. after an upgrade.
func (s *SendService) SetTier(tier permissions.Tier) {
	s.mu.Lock()
	s.tier = tier
	s.mu.Unlock()
}

// SetSentToday seeds the daily counter from the backend's usage view.
func (s *SendService) SetSentToday(count int) {
	s.mu.Lock()
	s.sentToday = count
	s.sentDay = today()
	s.mu.Unlock()
}

// Send dispatches a user intent. Empty text is a silent no-op. Media
// types upload first; an upload failure aborts before any placeholder
// exists, so a message entry never references a missing media URL.
func (s *SendService) Send(ctx context.Context, msgType message.Type, content string, opts SendOptions) error {
	conversationID := s.store.ActiveID()
	if conversationID == "" {
		return coachchat_errors.ErrNoConversation
	}
	if !s.session.Valid() {
		return coachchat_errors.ErrNoToken
	}

	snapshot := s.Permissions()
	if !snapshot.CanSendMessages {
		return coachchat_errors.ErrLimitReached
	}

	req := rest.SendMessageRequest{MessageType: string(msgType)}

	switch msgType {
	case message.TypeText:
		content = strings.TrimSpace(content)
		if content == "" {
			return nil
		}
		req.Content = content
	case message.TypeVoice:
		if !snapshot.CanSendVoice {
			return coachchat_errors.ErrNotAllowed
		}
		if opts.Voice == nil {
			return coachchat_errors.ErrInvalidInput
		}
		upload, err := s.api.UploadVoice(ctx, opts.Voice.Audio, opts.Voice.Filename, opts.Voice.Duration)
		if err != nil {
			s.log.Errorf("send: voice upload failed: %v", err)
			return fmt.Errorf("%w: %v", coachchat_errors.ErrUploadFailed, err)
		}
		req.MediaURL = upload.URL
		req.MediaDuration = opts.Voice.Duration
		if upload.Duration > 0 {
			req.MediaDuration = upload.Duration
		}
		req.MeteringValues = opts.Voice.Metering
		req.Content = content
	case message.TypeImage:
		if !snapshot.CanSendImages {
			return coachchat_errors.ErrNotAllowed
		}
		if opts.Image == nil {
			return coachchat_errors.ErrInvalidInput
		}
		upload, err := s.api.UploadImage(ctx, opts.Image.Image, opts.Image.Filename, opts.Image.ContentType)
		if err != nil {
			s.log.Errorf("send: image upload failed: %v", err)
			return fmt.Errorf("%w: %v", coachchat_errors.ErrUploadFailed, err)
		}
		req.MediaURL = upload.URL
		req.MediaWidth = firstNonZero(upload.Width, opts.Image.Width)
		req.MediaHeight = firstNonZero(upload.Height, opts.Image.Height)
		req.Content = content
	default:
		return coachchat_errors.ErrInvalidInput
	}

	placeholder := message.NewPlaceholder(conversationID, s.session.UserID(), msgType)
	placeholder.Content = req.Content
	placeholder.MediaURL = req.MediaURL
	placeholder.MediaDuration = req.MediaDuration
	placeholder.MediaWidth = req.MediaWidth
	placeholder.MediaHeight = req.MediaHeight
	placeholder.MeteringValues = req.MeteringValues
	if s.mutations != nil {
		if replyTo := s.mutations.ReplyingTo(); replyTo != nil {
			placeholder.ReplyToID = replyTo.Key()
			req.ReplyToID = replyTo.Key()
		}
	}
	req.ClientMessageID = placeholder.TempID

	s.store.InsertOptimistic(conversationID, placeholder)

	return s.dispatch(ctx, conversationID, placeholder.TempID, req)
}

// Retry re-sends a failed placeholder, reusing its temp ID so the
// entry is reconciled in place.
func (s *SendService) Retry(ctx context.Context, tempID string) error {
	conversationID := s.store.ActiveID()
	if conversationID == "" {
		return coachchat_errors.ErrNoConversation
	}
	msg, ok := s.store.Find(conversationID, tempID)
	if !ok || msg.Status != message.StatusFailed {
		return coachchat_errors.ErrNotFound
	}

	req := rest.SendMessageRequest{
		Content:         msg.Content,
		MessageType:     string(msg.Type),
		ClientMessageID: msg.TempID,
		ReplyToID:       msg.ReplyToID,
		MediaURL:        msg.MediaURL,
		MediaDuration:   msg.MediaDuration,
		MediaWidth:      msg.MediaWidth,
		MediaHeight:     msg.MediaHeight,
		MeteringValues:  msg.MeteringValues,
	}
	s.store.MarkSending(conversationID, msg.TempID)
	return s.dispatch(ctx, conversationID, msg.TempID, req)
}

// dispatch performs the network send and reconciles the placeholder:
// exactly one canonical message on success, status failed on error,
// never both and never neither.
func (s *SendService) dispatch(ctx context.Context, conversationID, tempID string, req rest.SendMessageRequest) error {
	sent, err := s.api.SendMessage(ctx, conversationID, req)
	if err != nil {
		s.log.Errorf("send: failed conversation=%s temp=%s: %v", conversationID, tempID, err)
		s.store.MarkFailed(conversationID, tempID)
		return err
	}

	s.store.Reconcile(conversationID, tempID, sent.Domain())
	if s.mutations != nil {
		s.mutations.ClearReply()
	}

	s.mu.Lock()
	s.rollDayLocked()
	s.sentToday++
	s.mu.Unlock()
	return nil
}

// rollDayLocked resets the daily counter when the calendar day
// changes. Caller holds s.mu.
func (s *SendService) rollDayLocked() {
	if d := today(); !d.Equal(s.sentDay) {
		s.sentDay = d
		s.sentToday = 0
	}
}

func today() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
