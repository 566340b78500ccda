package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"coachchat/internal/auth"
	"coachchat/pkg/logger"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Handler receives inbound real-time events. Implementations decide
// whether the event still applies (e.g. conversation no longer
// active).
type Handler interface {
	HandleNewMessage(msg InboundMessage)
	HandleTypingUpdate(update TypingUpdate)
}

// Manager maintains exactly one live socket connection per
// authenticated session. Connection lifetime is tied to the session,
// never to a single screen: Disconnect is explicit only.
type Manager struct {
	url     string
	dialer  *websocket.Dialer
	session *auth.Session
	handler Handler
	log     *logger.Logger

	mu     sync.Mutex // guards conn, joined and writes
	conn   *websocket.Conn
	joined string
	done   chan struct{}
}

func NewManager(socketURL string, session *auth.Session, handler Handler, log *logger.Logger) *Manager {
	return &Manager{
		url:     socketURL,
		dialer:  websocket.DefaultDialer,
		session: session,
		handler: handler,
		log:     log,
	}
}

// Connect establishes the connection. Repeated calls while already
// connected are no-ops.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.conn != nil {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	token, err := m.session.Token()
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, resp, err := m.dialer.DialContext(ctx, m.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.conn != nil {
		// Lost the race against another Connect; keep the first.
		m.mu.Unlock()
		conn.Close()
		return nil
	}
	m.conn = conn
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go m.readLoop(conn, done)
	go m.pingLoop(conn, done)
	m.log.Infof("socket: connected user=%s", m.session.UserID())
	return nil
}

// Disconnect tears the connection down. It must never be triggered by
// a UI component unmounting.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	conn := m.conn
	done := m.done
	m.conn = nil
	m.done = nil
	m.joined = ""
	m.mu.Unlock()

	if done != nil {
		close(done)
	}
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		conn.Close()
		m.log.Infof("socket: disconnected")
	}
}

// IsConnected reports whether a join can be issued immediately.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// JoinConversation switches the server-side room membership. Must be
// re-invoked whenever the active conversation changes while connected.
func (m *Manager) JoinConversation(conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.joined != "" && m.joined != conversationID {
		if err := m.writeLocked(Envelope{EventType: EventLeaveRoom, ConversationID: m.joined}); err != nil {
			return err
		}
		m.joined = ""
	}
	if err := m.writeLocked(Envelope{EventType: EventJoinRoom, ConversationID: conversationID}); err != nil {
		return err
	}
	m.joined = conversationID
	return nil
}

func (m *Manager) LeaveConversation() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.joined == "" {
		return nil
	}
	err := m.writeLocked(Envelope{EventType: EventLeaveRoom, ConversationID: m.joined})
	m.joined = ""
	return err
}

// StartTyping is fire-and-forget; debouncing is the caller's job.
func (m *Manager) StartTyping() {
	m.fireTyping(EventTypingStart)
}

func (m *Manager) StopTyping() {
	m.fireTyping(EventTypingStop)
}

func (m *Manager) fireTyping(eventType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.joined == "" {
		return
	}
	if err := m.writeLocked(Envelope{EventType: eventType, ConversationID: m.joined}); err != nil {
		m.log.Debugf("socket: %s dropped: %v", eventType, err)
	}
}

// writeLocked marshals and sends one envelope. Caller holds m.mu.
func (m *Manager) writeLocked(env Envelope) error {
	if m.conn == nil {
		return websocket.ErrCloseSent
	}
	env.OccurredAt = time.Now()
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	_ = m.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return m.conn.WriteMessage(websocket.TextMessage, payload)
}

func (m *Manager) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer m.dropConn(conn)
	for {
		select {
		case <-done:
			return
		default:
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
			default:
				m.log.Warnf("socket: read failed: %v", err)
			}
			return
		}
		m.dispatch(raw)
	}
}

func (m *Manager) dispatch(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		m.log.Warnf("socket: bad envelope: %v", err)
		return
	}
	switch env.EventType {
	case EventNewMessage:
		var msg InboundMessage
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			m.log.Warnf("socket: bad new-message payload: %v", err)
			return
		}
		if msg.ConversationID == "" {
			msg.ConversationID = env.ConversationID
		}
		m.handler.HandleNewMessage(msg)
	case EventTypingUpdate:
		var update TypingUpdate
		if err := json.Unmarshal(env.Payload, &update); err != nil {
			m.log.Warnf("socket: bad typing-update payload: %v", err)
			return
		}
		if update.ConversationID == "" {
			update.ConversationID = env.ConversationID
		}
		m.handler.HandleTypingUpdate(update)
	default:
		m.log.Debugf("socket: ignoring event %q", env.EventType)
	}
}

func (m *Manager) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			m.mu.Lock()
			if m.conn != conn {
				m.mu.Unlock()
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, []byte("ping"))
			m.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// dropConn clears state after the read loop ends so a later Connect
// can re-establish.
func (m *Manager) dropConn(conn *websocket.Conn) {
	m.mu.Lock()
	if m.conn == conn {
		m.conn = nil
		m.joined = ""
		if m.done != nil {
			select {
			case <-m.done:
			default:
				close(m.done)
			}
			m.done = nil
		}
	}
	m.mu.Unlock()
	conn.Close()
}
