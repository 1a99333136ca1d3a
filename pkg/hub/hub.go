package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/pushrelay/pushrelay/pkg/spool"
)

// AckHandler is invoked when a device acknowledges receipt of a message id.
type AckHandler func(ctx context.Context, deviceKey, messageID string) error

// Hub is the in-memory registry of live device sessions.
// All methods are safe for concurrent use.
type Hub struct {
	queue *spool.Queue
	ack   AckHandler
	log   *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger sets the logger for the Hub.
func WithHubLogger(log *slog.Logger) HubOption {
	return func(h *Hub) {
		if log != nil {
			h.log = log
		}
	}
}

// WithAckHandler overrides what happens when a device acknowledges a
// message id. The default removes the entry from the offline spool.
func WithAckHandler(ack AckHandler) HubOption {
	return func(h *Hub) {
		if ack != nil {
			h.ack = ack
		}
	}
}

// NewHub creates a hub that drains the given spool on session registration.
func NewHub(queue *spool.Queue, opts ...HubOption) *Hub {
	h := &Hub{
		queue:    queue,
		log:      slog.Default(),
		sessions: make(map[string]*Session),
	}
	h.ack = func(ctx context.Context, deviceKey, messageID string) error {
		return h.queue.Remove(ctx, deviceKey, messageID)
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterSession stores a new live session for the device key, forcibly
// closing any prior one - a second login displaces the first. Pending
// offline messages are drained and pushed in ascending creation order
// before the call returns.
func (h *Hub) RegisterSession(ctx context.Context, deviceKey string, conn Conn) (*Session, error) {
	if deviceKey == "" {
		return nil, ErrEmptyDeviceKey
	}
	if conn == nil {
		return nil, ErrNilConn
	}

	session := newSession(deviceKey, conn)

	h.mu.Lock()
	prior := h.sessions[deviceKey]
	h.sessions[deviceKey] = session
	h.mu.Unlock()

	// Closing the displaced transport happens outside the lock
	if prior != nil {
		prior.close()
		h.log.InfoContext(ctx, "session displaced", "device_key", deviceKey)
	}

	session.open()
	h.log.InfoContext(ctx, "session registered", "device_key", deviceKey)

	h.pushPending(ctx, session)
	return session, nil
}

// pushPending drains the offline spool and replays every pending message on
// the fresh session. Failures are logged, never fatal to registration.
func (h *Hub) pushPending(ctx context.Context, session *Session) {
	messages, err := h.queue.Drain(ctx, session.deviceKey)
	if err != nil {
		h.log.ErrorContext(ctx, "failed to drain offline messages",
			"device_key", session.deviceKey, "error", err)
		return
	}

	for _, msg := range messages {
		frame := Frame{
			Type:      FrameMessage,
			ID:        msg.ID,
			Timestamp: msg.CreatedAt,
			Data:      payloadData(msg),
		}
		if err := session.send(frame); err != nil {
			h.log.WarnContext(ctx, "failed to replay offline message",
				"device_key", session.deviceKey, "message_id", msg.ID, "error", err)
			return
		}
	}
}

// payloadData picks the wire shape of a spooled message: ciphertext goes
// out wrapped in an encrypted_content field, plaintext goes out as-is.
func payloadData(msg spool.Message) any {
	if msg.Encrypted != "" {
		return map[string]any{"encrypted_content": msg.Encrypted}
	}
	return msg.Data
}

// UnregisterSession removes the session if it is still the one registered
// for its device key. Idempotent: displacement, close, and transport error
// paths may race to unregister the same session.
func (h *Hub) UnregisterSession(session *Session) {
	if session == nil {
		return
	}

	h.mu.Lock()
	if h.sessions[session.deviceKey] == session {
		delete(h.sessions, session.deviceKey)
	}
	h.mu.Unlock()

	session.close()
}

// Send delivers one frame to the device's live session. Delivered is true
// only when a session exists and its channel is currently open. A write
// failure closes and removes the session.
func (h *Hub) Send(ctx context.Context, deviceKey string, frame Frame) bool {
	h.mu.RLock()
	session := h.sessions[deviceKey]
	h.mu.RUnlock()

	if session == nil {
		return false
	}

	if err := session.send(frame); err != nil {
		if !errors.Is(err, ErrSessionClosed) {
			h.log.WarnContext(ctx, "send failed, dropping session",
				"device_key", deviceKey, "error", err)
		}
		h.UnregisterSession(session)
		return false
	}
	return true
}

// IsOnline reports whether the device has a live, open session.
func (h *Hub) IsOnline(deviceKey string) bool {
	h.mu.RLock()
	session := h.sessions[deviceKey]
	h.mu.RUnlock()

	return session != nil && session.Open()
}

// OnlineCount reports the number of registered sessions.
func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// OnlineKeys returns the device keys with a registered session.
func (h *Hub) OnlineKeys() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	keys := make([]string, 0, len(h.sessions))
	for key := range h.sessions {
		keys = append(keys, key)
	}
	return keys
}

// HandleFrame processes one inbound frame from a device: ping is answered
// with pong carrying the current timestamp, ack removes the acknowledged
// message from the spool. Other frame types are ignored.
func (h *Hub) HandleFrame(ctx context.Context, session *Session, raw []byte) error {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return errors.Join(ErrMalformedFrame, err)
	}

	switch frame.Type {
	case FramePing:
		return session.send(NewFrame(FramePong, "", nil))
	case FrameAck:
		if frame.ID == "" {
			return nil
		}
		return h.ack(ctx, session.deviceKey, frame.ID)
	default:
		return nil
	}
}
