package stereoserver

import (
	"bufio"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionState is the kind of a SessionEvent.
type SessionState int

const (
	SessionOpened   SessionState = iota // A peer was admitted
	SessionClosed                       // The live peer went away or was torn down
	SessionRejected                     // A second peer was refused while one was live
)

// String returns a human-readable name for the session state.
func (s SessionState) String() string {
	switch s {
	case SessionOpened:
		return "Opened"
	case SessionClosed:
		return "Closed"
	case SessionRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// SessionInfo describes a session without exposing its connection.
type SessionInfo struct {
	ID          uuid.UUID
	RemoteAddr  string
	ConnectedAt time.Time
}

// SessionEvent is passed to the handler registered in Config.OnSessionState.
type SessionEvent struct {
	State     SessionState
	Session   SessionInfo // Zero for SessionRejected
	Remote    string      // Remote address of the peer concerned
	Reason    string      // Why a session closed ("peer closed", "send failed", "stopped")
	Timestamp time.Time
}

// SessionStateHandler receives session events. It runs on its own goroutine
// and must be safe for concurrent use.
type SessionStateHandler func(event SessionEvent)

// session is the live state of one admitted peer. The listener holds it
// exclusively while it is recorded as current.
type session struct {
	info SessionInfo
	conn net.Conn
	peek *bufio.Reader

	closeOnce sync.Once
	closeErr  error
}

func newSession(conn net.Conn) *session {
	return &session{
		info: SessionInfo{
			ID:          uuid.New(),
			RemoteAddr:  conn.RemoteAddr().String(),
			ConnectedAt: time.Now(),
		},
		conn: conn,
		peek: bufio.NewReaderSize(conn, 16),
	}
}

// Close closes the connection once; later calls return the first result.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})

	return s.closeErr
}
