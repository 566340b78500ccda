package coachchat_errors

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrNoToken           = errors.New("no auth token")
	ErrNoConversation    = errors.New("no active conversation")
	ErrEmptyContent      = errors.New("empty content")
	ErrLimitReached      = errors.New("daily message limit reached")
	ErrNotAllowed        = errors.New("not allowed for tier")
	ErrUploadFailed      = errors.New("media upload failed")
	ErrRecorderBusy      = errors.New("recorder busy")
	ErrNotRecording      = errors.New("not recording")
)

// NowPtr returns a pointer to current time
func NowPtr() *time.Time {
	now := time.Now()
	return &now
}
