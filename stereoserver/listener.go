// Package stereoserver implements the capture-side Session Listener: it accepts
// at most one processing client at a time, watches that peer for disconnects,
// and sends stereo pairs to it on request.
package stereoserver

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jpillora/backoff"

	"github.com/cyberinferno/stereolink/framing"
	"github.com/cyberinferno/stereolink/logger"
	"github.com/cyberinferno/stereolink/perfmonitor"
)

// Config holds the listener settings.
type Config struct {
	// Name labels log entries, e.g. "capture".
	Name string
	// Addr is the "host:port" to listen on. Port 0 picks a free port.
	Addr string
	// PollInterval is the delay between two liveness checks of the peer.
	PollInterval time.Duration
	// PeekTimeout bounds how long one liveness check may block.
	PeekTimeout time.Duration
	// StopTimeout bounds how long Stop waits for background goroutines.
	StopTimeout time.Duration
	// Logger receives listener logs. Nil discards them.
	Logger logger.Logger
	// OnSessionState, if set, is called for every session event.
	OnSessionState SessionStateHandler
}

// DefaultConfig returns a Config for addr with PollInterval 250ms,
// PeekTimeout 10ms and StopTimeout 5s.
//
// Parameters:
//   - addr: The "host:port" to listen on
//
// Returns:
//   - A Config ready to pass to NewListener
func DefaultConfig(addr string) Config {
	return Config{
		Name:         "stereo",
		Addr:         addr,
		PollInterval: 250 * time.Millisecond,
		PeekTimeout:  10 * time.Millisecond,
		StopTimeout:  5 * time.Second,
	}
}

// Listener is the single-peer Session Listener. Start it, call Send whenever a
// pair is captured, and Stop it on shutdown. All methods are safe for
// concurrent use.
type Listener struct {
	config Config
	log    logger.Logger

	// mu guards the fields below. No socket read or write happens while it
	// is held.
	mu        sync.Mutex
	ln        net.Listener
	listening bool
	current   *session
	stopCh    chan struct{}

	sendMu sync.Mutex
	wg     sync.WaitGroup
}

// NewListener creates a Listener. Zero durations in cfg take the
// DefaultConfig values.
//
// Parameters:
//   - cfg: Listener settings
//
// Returns:
//   - A stopped *Listener; call Start to begin accepting
func NewListener(cfg Config) *Listener {
	defaults := DefaultConfig(cfg.Addr)
	if cfg.Name == "" {
		cfg.Name = defaults.Name
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.PeekTimeout <= 0 {
		cfg.PeekTimeout = defaults.PeekTimeout
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaults.StopTimeout
	}

	return &Listener{
		config: cfg,
		log:    logger.OrNop(cfg.Logger).With(logger.Field{Key: "listener", Value: cfg.Name}),
	}
}

// Start binds Addr and runs the accept loop in a goroutine. It returns as
// soon as the socket is listening.
//
// Returns:
//   - ErrAlreadyRunning if the listener is running, or the bind error
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.listening {
		return fmt.Errorf("%s: %w", l.config.Name, ErrAlreadyRunning)
	}

	ln, err := net.Listen("tcp", l.config.Addr)
	if err != nil {
		l.log.Error("listener failed to start", logger.Field{Key: "error", Value: err})
		return fmt.Errorf("%s listener failed to start: %w", l.config.Name, err)
	}

	l.ln = ln
	l.listening = true
	l.stopCh = make(chan struct{})

	l.log.Info(fmt.Sprintf("%s listener started", l.config.Name), logger.Field{Key: "addr", Value: ln.Addr().String()})

	l.wg.Add(1)
	go l.acceptLoop(ln, l.stopCh)

	return nil
}

// Stop closes the listening socket and the active session, then waits up to
// StopTimeout for the accept loop, monitors and event handlers to return.
// Calling it on a stopped listener does nothing.
//
// Returns:
//   - ErrStopTimeout if background goroutines were still running at the deadline
func (l *Listener) Stop() error {
	l.mu.Lock()
	if !l.listening {
		l.mu.Unlock()
		return nil
	}

	ln := l.ln
	s := l.current
	if s != nil {
		l.emitLocked(SessionEvent{State: SessionClosed, Session: s.info, Remote: s.info.RemoteAddr, Reason: "stopped"})
	}
	l.listening = false
	l.current = nil
	close(l.stopCh)
	l.mu.Unlock()

	_ = ln.Close()
	if s != nil {
		_ = s.Close()
		l.log.Info("session closed", logger.Field{Key: "session", Value: s.info.ID.String()}, logger.Field{Key: "reason", Value: "stopped"})
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		l.log.Info(fmt.Sprintf("%s listener stopped", l.config.Name))
		return nil
	case <-time.After(l.config.StopTimeout):
		l.log.Warn(fmt.Sprintf("%s listener stop timed out", l.config.Name))
		return ErrStopTimeout
	}
}

// Send writes left then right to the connected peer. Concurrent calls are
// serialised so frames never interleave. A failed write tears the session
// down so a new peer can connect; Send never retries.
//
// Parameters:
//   - left: Left camera payload
//   - right: Right camera payload
//
// Returns:
//   - ErrNotConnected if no peer is connected (no I/O is performed)
//   - A *TransportError if the write failed
func (l *Listener) Send(left, right []byte) error {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()

	l.mu.Lock()
	s := l.current
	l.mu.Unlock()

	if s == nil {
		return ErrNotConnected
	}

	pm := perfmonitor.NewPerformanceMonitor()
	pm.Start()

	if err := framing.WritePair(s.conn, left, right); err != nil {
		l.dropSession(s, "send failed", err)
		return &TransportError{Op: "send", Session: s.info.ID.String(), Err: err}
	}

	pm.Stop()
	l.log.Debug("stereo pair sent",
		logger.Field{Key: "session", Value: s.info.ID.String()},
		logger.Field{Key: "left_bytes", Value: len(left)},
		logger.Field{Key: "right_bytes", Value: len(right)},
		logger.Field{Key: "elapsed_ms", Value: pm.ElapsedMilliseconds()})

	return nil
}

// Addr returns the bound address, or nil if the listener is not running.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.listening {
		return nil
	}

	return l.ln.Addr()
}

// IsRunning reports whether the listener is accepting connections.
func (l *Listener) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.listening
}

// IsConnected reports whether a peer session is live.
func (l *Listener) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current != nil
}

// CurrentSession returns the live session, if any.
//
// Returns:
//   - The session info and true, or a zero value and false when no peer is connected
func (l *Listener) CurrentSession() (SessionInfo, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current == nil {
		return SessionInfo{}, false
	}

	return l.current.info, true
}

func (l *Listener) acceptLoop(ln net.Listener, stopCh <-chan struct{}) {
	defer l.wg.Done()

	b := backoff.Backoff{Min: 5 * time.Millisecond, Max: time.Second}

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || !l.IsRunning() {
				return
			}

			wait := b.Duration()
			l.log.Error(fmt.Sprintf("%s listener accept error", l.config.Name),
				logger.Field{Key: "error", Value: err},
				logger.Field{Key: "retry_in", Value: wait.String()})

			select {
			case <-stopCh:
				return
			case <-time.After(wait):
			}

			continue
		}

		b.Reset()
		l.admit(conn, stopCh)
	}
}

// admit records conn as the current session, or closes it if one is live.
func (l *Listener) admit(conn net.Conn, stopCh <-chan struct{}) {
	remote := conn.RemoteAddr().String()

	l.mu.Lock()
	if !l.listening {
		l.mu.Unlock()
		_ = conn.Close()
		return
	}

	if l.current != nil {
		l.emitLocked(SessionEvent{State: SessionRejected, Remote: remote, Reason: "peer already connected"})
		l.mu.Unlock()
		_ = conn.Close()
		l.log.Info("admission rejected, peer already connected", logger.Field{Key: "remote", Value: remote})
		return
	}

	s := newSession(conn)
	l.current = s
	l.wg.Add(1)
	go l.monitor(s, stopCh)
	l.emitLocked(SessionEvent{State: SessionOpened, Session: s.info, Remote: remote})
	l.mu.Unlock()

	l.log.Info("session opened",
		logger.Field{Key: "session", Value: s.info.ID.String()},
		logger.Field{Key: "remote", Value: remote})
}

// dropSession closes s and clears the state if s is still the current session.
// SessionClosed is only emitted while the listener is running.
func (l *Listener) dropSession(s *session, reason string, cause error) {
	l.mu.Lock()
	owned := l.current == s
	if owned {
		l.current = nil
		if l.listening {
			l.emitLocked(SessionEvent{State: SessionClosed, Session: s.info, Remote: s.info.RemoteAddr, Reason: reason})
		}
	}
	l.mu.Unlock()

	_ = s.Close()

	if !owned {
		return
	}

	fields := []logger.Field{
		{Key: "session", Value: s.info.ID.String()},
		{Key: "remote", Value: s.info.RemoteAddr},
		{Key: "reason", Value: reason},
	}
	if cause != nil {
		fields = append(fields, logger.Field{Key: "error", Value: cause})
	}

	l.log.Info("session closed", fields...)
}

// emitLocked runs the session handler on a goroutine tracked by wg. l.mu must
// be held, which orders the wg.Add before Stop's wait.
func (l *Listener) emitLocked(event SessionEvent) {
	handler := l.config.OnSessionState
	if handler == nil {
		return
	}

	event.Timestamp = time.Now()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		handler(event)
	}()
}
