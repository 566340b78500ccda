package auth

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	coachchat_errors "coachchat/pkg/errors"
)

// Session holds the authenticated user's identity and bearer token.
// The token is attached to every REST call and to the socket
// handshake; a missing or expired token is a precondition failure, not
// a retryable error.
type Session struct {
	mu     sync.RWMutex
	userID string
	token  string
}

func NewSession(userID, token string) *Session {
	return &Session{userID: userID, token: token}
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// SetToken replaces the bearer token, e.g. after a refresh performed
// by the surrounding application.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Token returns the bearer token, rejecting empty or locally expired
// tokens. JWTs are inspected without signature verification (the
// backend owns the key); the check only avoids sending calls that are
// guaranteed to fail. Opaque tokens pass through untouched.
func (s *Session) Token() (string, error) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	if token == "" {
		return "", coachchat_errors.ErrNoToken
	}
	if expired(token) {
		return "", coachchat_errors.ErrUnauthorized
	}
	return token, nil
}

// Valid reports whether the session can currently authenticate.
func (s *Session) Valid() bool {
	_, err := s.Token()
	return err == nil
}

func expired(token string) bool {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		// Not a JWT; treat as opaque.
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
