package hub

import (
	"encoding/json"
	"sync/atomic"
)

// Conn is the transport collaborator surface backing one session: a single
// duplex channel that can write text frames, close, and report openness.
// Implementations must be safe for concurrent use.
type Conn interface {
	// Send writes one text frame to the peer synchronously with respect to
	// the caller; any buffering is the transport's own.
	Send(data []byte) error

	// Close closes the underlying channel. Close is idempotent.
	Close() error

	// Open reports whether the channel can currently accept writes.
	Open() bool
}

// Session states. A session moves Connecting -> Open -> Closed and never
// leaves Closed.
const (
	stateConnecting int32 = iota
	stateOpen
	stateClosed
)

// Session is the live connection state the hub holds for one device.
type Session struct {
	deviceKey string
	conn      Conn
	state     atomic.Int32
}

func newSession(deviceKey string, conn Conn) *Session {
	return &Session{deviceKey: deviceKey, conn: conn}
}

// DeviceKey returns the owning device key.
func (s *Session) DeviceKey() string {
	return s.deviceKey
}

// Open reports whether the session accepts sends: it has been registered
// and neither side has closed the channel.
func (s *Session) Open() bool {
	return s.state.Load() == stateOpen && s.conn.Open()
}

// send marshals and writes one frame. Returns ErrSessionClosed once the
// session has left the open state.
func (s *Session) send(frame Frame) error {
	if !s.Open() {
		return ErrSessionClosed
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return s.conn.Send(data)
}

func (s *Session) open() {
	s.state.CompareAndSwap(stateConnecting, stateOpen)
}

// close transitions to Closed and closes the transport. Idempotent.
func (s *Session) close() {
	if s.state.Swap(stateClosed) == stateClosed {
		return
	}
	_ = s.conn.Close()
}
